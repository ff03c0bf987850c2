// Package orchestrator owns the session lifecycle: it routes operator
// turns to agents, maintains the shared message history, and coordinates
// hand-offs between agents over a shared environment bundle.
package orchestrator

import (
	"github.com/mkraev/switchboard/internal/agents"
	"github.com/mkraev/switchboard/internal/domain"
	"github.com/mkraev/switchboard/internal/env"
	"github.com/mkraev/switchboard/internal/executor"
)

// session is the single mutable conversation state of an orchestrator.
// It is an explicit value (not a package global) so a future multi-tenant
// extension only needs a map keyed by session id.
//
// Invariant: an uninitialized session has an empty history and no active
// agent. Messages are append-only; they are never reordered or deleted.
type session struct {
	epoch       int64
	activeAgent string
	messages    []domain.Message
	registry    *agents.Registry
	context     map[string]string
	bundle      *env.Bundle
	modelID     string
	exec        executor.Executor
}

// historyCopy returns a defensive copy of the message history.
func (s *session) historyCopy() []domain.Message {
	return domain.CloneHistory(s.messages)
}
