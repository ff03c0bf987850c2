package executor

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/mkraev/switchboard/internal/agents"
	"github.com/mkraev/switchboard/internal/domain"
	"github.com/mkraev/switchboard/internal/env"
	"github.com/mkraev/switchboard/internal/model"
)

// maxTurns bounds the reasoning loop of a single execution so a
// transfer cycle between agents cannot spin forever.
const maxTurns = 8

const (
	toolTransfer  = "transfer_to_agent"
	toolRunCode   = "run_code"
	toolFetchPage = "fetch_page"
	toolReadFile  = "read_file"
)

// ModelExecutor drives an agent turn through a language-model provider.
// Agents act in a loop: each model call may finish with a reply, invoke an
// environment tool (code, web, files), or hand the turn to another agent.
type ModelExecutor struct {
	provider model.Provider
}

// NewModelExecutor creates an executor backed by the given provider.
func NewModelExecutor(provider model.Provider) *ModelExecutor {
	return &ModelExecutor{provider: provider}
}

// Execute runs the bounded reasoning loop and returns the produced
// messages plus the agent holding the next turn.
func (e *ModelExecutor) Execute(ctx context.Context, req Request) (Result, error) {
	current := req.Agent
	history := domain.CloneHistory(req.History)
	var produced []domain.Message

	appendMsg := func(m domain.Message) {
		history = append(history, m)
		produced = append(produced, m)
	}

	for turn := 0; turn < maxTurns; turn++ {
		resp, err := e.provider.Complete(ctx, model.Request{
			System:   e.systemPrompt(current, req),
			Messages: history,
			Tools:    e.toolDefinitions(current, req.Registry),
		})
		if err != nil {
			return Result{}, fmt.Errorf("execute agent %s: %w", current.Name, err)
		}

		if resp.Text != "" {
			appendMsg(domain.Message{
				Role:    domain.RoleAssistant,
				Content: resp.Text,
				Agent:   current.Name,
			})
		}

		if len(resp.ToolCalls) == 0 {
			return Result{
				Messages:  produced,
				NextAgent: agents.NormalizeName(current.Name),
			}, nil
		}

		for _, call := range resp.ToolCalls {
			observation, next := e.handleToolCall(ctx, call, current, req)
			appendMsg(domain.Message{
				Role:    domain.RoleTool,
				Content: observation,
				Agent:   current.Name,
			})
			if next != nil {
				current = *next
			}
		}
	}

	// The loop budget ran out. Surface what happened instead of replying
	// with nothing; the turn stays with the last active agent.
	appendMsg(domain.Message{
		Role:    domain.RoleAssistant,
		Content: "I could not finish this request within my step budget. Please narrow it down and try again.",
		Agent:   current.Name,
	})
	return Result{
		Messages:  produced,
		NextAgent: agents.NormalizeName(current.Name),
	}, nil
}

// handleToolCall executes one tool call and returns the observation text
// plus, for transfers, the agent taking over the turn.
func (e *ModelExecutor) handleToolCall(ctx context.Context, call model.ToolCall, current agents.Agent, req Request) (string, *agents.Agent) {
	args := map[string]string{}
	if call.Arguments != "" {
		if err := json.Unmarshal([]byte(call.Arguments), &args); err != nil {
			return fmt.Sprintf("%s: invalid arguments: %v", call.Name, err), nil
		}
	}

	switch call.Name {
	case toolTransfer:
		target := agents.NormalizeName(args["agent"])
		next, ok := req.Registry.Resolve(target)
		if !ok {
			return fmt.Sprintf("%s: no agent named %q is registered", toolTransfer, args["agent"]), nil
		}
		slog.Info("Agent hand-off", "from", current.Name, "to", next.Name)
		return fmt.Sprintf("Transferred to %s.", next.Name), &next

	case toolRunCode:
		return e.runSurface(ctx, req.Bundle.Code, toolRunCode, args["command"])

	case toolFetchPage:
		return e.runSurface(ctx, req.Bundle.Web, toolFetchPage, args["url"])

	case toolReadFile:
		return e.runSurface(ctx, req.Bundle.File, toolReadFile, args["path"])

	default:
		return fmt.Sprintf("unknown tool %q", call.Name), nil
	}
}

func (e *ModelExecutor) runSurface(ctx context.Context, s env.Surface, tool, task string) (string, *agents.Agent) {
	if strings.TrimSpace(task) == "" {
		return fmt.Sprintf("%s: empty task", tool), nil
	}
	out, err := s.Run(ctx, task)
	if err != nil {
		return fmt.Sprintf("%s failed: %v\n%s", tool, err, out), nil
	}
	return out, nil
}

func (e *ModelExecutor) systemPrompt(agent agents.Agent, req Request) string {
	var b strings.Builder
	b.WriteString(agent.Instructions)
	fmt.Fprintf(&b, "\n\nYou are %s. The shared working directory is %s.", agent.Name, req.Bundle.RemoteWorkdir)
	if wd := req.Context["working_dir"]; wd != "" {
		fmt.Fprintf(&b, " Uploaded files live under %s/files.", wd)
	}
	if names := req.Registry.Names(); len(names) > 1 {
		fmt.Fprintf(&b, "\nRegistered agents: %s. Use %s to hand the turn to one of them.",
			strings.Join(names, ", "), toolTransfer)
	}
	return b.String()
}

func (e *ModelExecutor) toolDefinitions(agent agents.Agent, registry *agents.Registry) []model.ToolDefinition {
	defs := []model.ToolDefinition{
		{
			Name:        toolRunCode,
			Description: "Run a shell command in the shared sandbox working directory.",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"command": map[string]any{"type": "string", "description": "Shell command to run"},
				},
				"required": []string{"command"},
			},
		},
		{
			Name:        toolFetchPage,
			Description: "Fetch a web page and return its contents.",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"url": map[string]any{"type": "string", "description": "URL to fetch"},
				},
				"required": []string{"url"},
			},
		},
		{
			Name:        toolReadFile,
			Description: "Read a file from the shared working directory.",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"path": map[string]any{"type": "string", "description": "Path relative to the working directory"},
				},
				"required": []string{"path"},
			},
		},
	}
	if len(registry.Names()) > 1 {
		defs = append(defs, model.ToolDefinition{
			Name:        toolTransfer,
			Description: "Hand the turn to another registered agent better suited for the task.",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"agent": map[string]any{"type": "string", "description": "Target agent name"},
				},
				"required": []string{"agent"},
			},
		})
	}
	return defs
}
