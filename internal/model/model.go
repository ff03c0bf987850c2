// Package model abstracts the language-model providers behind a single
// completion interface so the executor does not branch per vendor.
package model

import (
	"context"
	"strings"

	"github.com/mkraev/switchboard/internal/domain"
)

// ToolCall is a function call request surfaced by a provider, unified
// across vendors.
type ToolCall struct {
	ID        string
	Name      string
	Arguments string // JSON-encoded arguments
}

// ToolDefinition declaratively exposes a callable function to the model.
// Parameters is a minimal JSON Schema object.
type ToolDefinition struct {
	Name        string
	Description string
	Parameters  map[string]any
}

// Request is the normalized model input built by the executor. Tool
// messages in the history are rendered as observation turns so the model
// sees the output of its own tool calls.
type Request struct {
	System   string
	Messages []domain.Message
	Tools    []ToolDefinition
}

// Response is a completed (non-streaming) model turn.
type Response struct {
	Text      string
	ToolCalls []ToolCall
}

// Provider produces completions for a normalized request.
type Provider interface {
	Complete(ctx context.Context, req Request) (Response, error)
}

// ForIdentifier selects a provider implementation from a model identifier:
// "claude-*" models go to Anthropic, everything else to OpenAI.
func ForIdentifier(identifier string) Provider {
	if strings.HasPrefix(identifier, "claude") {
		return NewAnthropicProvider(identifier)
	}
	return NewOpenAIProvider(identifier)
}
