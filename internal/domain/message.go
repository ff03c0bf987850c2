// Package domain defines the core conversation types shared across the
// orchestrator, executor, and store layers.
package domain

import "time"

// Role identifies the author of a conversation message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
	RoleTool      Role = "tool"
)

// Message is a single conversation turn. Messages are immutable once
// appended to a session history; ordering is append-only.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
	// Agent records which agent produced an assistant message. Empty for
	// user and system messages.
	Agent string `json:"agent,omitempty"`
}

// CloneHistory returns a copy of a message slice so callers can hand out
// session history without exposing the backing array.
func CloneHistory(messages []Message) []Message {
	if messages == nil {
		return nil
	}
	out := make([]Message, len(messages))
	copy(out, messages)
	return out
}

// TurnRecord is a persisted transcript row. Epoch identifies the session
// generation (incremented on every re-initialization) so transcripts from
// abandoned sessions remain distinguishable.
type TurnRecord struct {
	Epoch     int64
	Seq       int
	Role      Role
	Content   string
	Agent     string
	CreatedAt time.Time
}
