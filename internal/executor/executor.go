// Package executor runs one agent turn: given an agent identity, the
// conversation history, and the shared environment, it produces new
// messages and reports which agent holds the next turn.
package executor

import (
	"context"

	"github.com/mkraev/switchboard/internal/agents"
	"github.com/mkraev/switchboard/internal/domain"
	"github.com/mkraev/switchboard/internal/env"
)

// Request carries everything an execution needs. History is read-only;
// implementations must not mutate it.
type Request struct {
	Agent    agents.Agent
	History  []domain.Message
	Registry *agents.Registry
	Bundle   *env.Bundle
	// Context is the shared per-session context (working directory name and
	// similar), surfaced to agents through their instructions.
	Context map[string]string
}

// Result is the outcome of a completed execution.
type Result struct {
	// Messages are appended to the session history in the order produced.
	Messages []domain.Message
	// NextAgent is the normalized name of the agent holding the next turn.
	// An agent may hand off to itself, to the triage agent, or to any
	// registered specialist.
	NextAgent string
}

// Executor is the agent-execution collaborator. Execute may block for a
// long time (it can run sandboxed code or fetch pages); the orchestrator
// schedules it off the request path.
type Executor interface {
	Execute(ctx context.Context, req Request) (Result, error)
}
