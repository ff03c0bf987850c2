package orchestrator

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/mkraev/switchboard/internal/agents"
	"github.com/mkraev/switchboard/internal/domain"
	"github.com/mkraev/switchboard/internal/env"
	"github.com/mkraev/switchboard/internal/executor"
	"github.com/mkraev/switchboard/internal/model"
	"github.com/mkraev/switchboard/internal/shared"
	"github.com/mkraev/switchboard/internal/store"
)

// directiveMarker prefixes a chat token that targets a specific agent for
// the current turn, e.g. "@Coding_Agent fix the tests".
const directiveMarker = "@"

// systemAgentName tags replies produced by the orchestrator itself rather
// than an agent, e.g. when the dispatch target could not be resolved.
const systemAgentName = "System"

// uploadDirName is the working-directory subdirectory uploads land in.
const uploadDirName = "files"

// ExecutorFactory builds the execution collaborator for a given model
// identifier. Overridable in tests.
type ExecutorFactory func(modelID string) executor.Executor

// Options configures an Orchestrator.
type Options struct {
	// LocalRoot is the host directory for session working directories.
	LocalRoot string
	// SandboxImage is the container image for the code surface.
	SandboxImage string
	// GitCloneURL optionally seeds new working directories.
	GitCloneURL string
	// RosterPath optionally points at an agents.yaml roster file; the
	// built-in roster is used when empty.
	RosterPath string
	// Workers sizes the execution worker pool.
	Workers int
	// Repository receives the durable conversation transcript. Optional.
	Repository store.Repository
	// NewExecutor overrides the default model-backed executor factory.
	NewExecutor ExecutorFactory
}

// Orchestrator owns exactly one session and serves concurrent chat,
// upload, and status requests against it. Dispatches are serialized; state
// reads stay responsive while an execution is in flight.
type Orchestrator struct {
	mu         sync.RWMutex // guards sess and its mutable fields
	dispatchMu sync.Mutex   // serializes dispatch and initialization

	sess  *session
	epoch int64

	opts Options
	pool *workerPool
	bus  *eventBus
}

// New creates an orchestrator. ctx bounds the lifetime of the worker pool.
func New(ctx context.Context, opts Options) *Orchestrator {
	if opts.LocalRoot == "" {
		opts.LocalRoot = os.TempDir()
	}
	if opts.NewExecutor == nil {
		opts.NewExecutor = func(modelID string) executor.Executor {
			return executor.NewModelExecutor(model.ForIdentifier(modelID))
		}
	}
	return &Orchestrator{
		opts: opts,
		pool: newWorkerPool(ctx, opts.Workers, 4*opts.Workers),
		bus:  newEventBus(),
	}
}

// InitParams mirrors the initialize operation's inputs.
type InitParams struct {
	ContainerName     string
	Port              int
	PullImage         string
	GitClone          bool
	UseLocalExecution bool
	Model             string
}

// Initialize provisions a complete new session (environment bundle, agent
// registry, triage agent active, empty history) and swaps it in only on
// success. On failure the previous state is untouched: an uninitialized
// orchestrator stays uninitialized, an initialized one keeps its session.
// Re-initialization fully replaces the prior session, closing its bundle.
func (o *Orchestrator) Initialize(ctx context.Context, p InitParams) error {
	o.dispatchMu.Lock()
	defer o.dispatchMu.Unlock()

	triage, roster, err := o.loadRoster()
	if err != nil {
		return &InitializationError{Err: err}
	}
	registry, err := agents.NewRegistry(triage, roster)
	if err != nil {
		return &InitializationError{Err: err}
	}

	image := p.PullImage
	if image == "" {
		image = o.opts.SandboxImage
	}
	gitCloneURL := ""
	if p.GitClone {
		gitCloneURL = o.opts.GitCloneURL
	}
	bundle, err := env.Provision(ctx, env.Options{
		ContainerName:     p.ContainerName,
		Port:              p.Port,
		Image:             image,
		LocalRoot:         o.opts.LocalRoot,
		WorkplaceName:     "workplace_" + p.ContainerName,
		GitCloneURL:       gitCloneURL,
		UseLocalExecution: p.UseLocalExecution,
	})
	if err != nil {
		return &InitializationError{Err: err}
	}

	newSess := &session{
		activeAgent: registry.TriageName(),
		registry:    registry,
		bundle:      bundle,
		modelID:     p.Model,
		exec:        o.opts.NewExecutor(p.Model),
		context: map[string]string{
			"working_dir": bundle.RemoteWorkdir,
		},
	}

	o.mu.Lock()
	old := o.sess
	o.epoch++
	newSess.epoch = o.epoch
	o.sess = newSess
	o.mu.Unlock()

	if old != nil && old.bundle != nil {
		// Abandoned bundle teardown must not delay the new session.
		go old.bundle.Close(context.WithoutCancel(ctx))
	}

	slog.Info("Session initialized",
		"epoch", newSess.epoch,
		"active_agent", newSess.activeAgent,
		"model", p.Model,
		"local_execution", p.UseLocalExecution,
	)
	o.bus.publish(EventInitialized, newSess.activeAgent, "")
	return nil
}

func (o *Orchestrator) loadRoster() (agents.Agent, []agents.Agent, error) {
	if o.opts.RosterPath == "" {
		triage, roster := agents.DefaultRoster()
		return triage, roster, nil
	}
	return agents.LoadRoster(o.opts.RosterPath)
}

// ChatResult is the outcome of a dispatched chat turn.
type ChatResult struct {
	// Response is the display text: the extracted solution when the final
	// agent message carries one, otherwise the raw final message.
	Response string `json:"response"`
	// AgentName is the agent holding the next turn ("System" for a
	// rejected dispatch).
	AgentName string `json:"agent_name"`
	// Messages is the full updated conversation history.
	Messages []domain.Message `json:"messages"`
}

// resolvedTarget is the tagged outcome of directive resolution: either a
// concrete agent or an unresolved placeholder naming what was asked for.
type resolvedTarget struct {
	agent *agents.Agent
	raw   string
}

// resolveTarget scans the message left to right for directive tokens and
// keeps overwriting the target on each resolvable match, so the last
// resolvable mention wins. Unresolvable mentions never overwrite. With no
// resolvable directive the currently active agent is targeted.
func resolveTarget(sess *session, message string) resolvedTarget {
	target := resolvedTarget{raw: sess.activeAgent}
	if a, ok := sess.registry.Resolve(sess.activeAgent); ok {
		target.agent = &a
	}
	for _, word := range strings.Fields(message) {
		if !strings.HasPrefix(word, directiveMarker) {
			continue
		}
		name := strings.TrimPrefix(word, directiveMarker)
		if a, ok := sess.registry.Resolve(name); ok {
			target = resolvedTarget{agent: &a, raw: name}
		}
	}
	return target
}

// Chat dispatches one operator turn: it resolves the target agent, runs
// the execution collaborator on the worker pool, and commits the produced
// messages. History mutation is all-or-nothing per dispatch; a failed or
// rejected dispatch leaves the history unchanged.
func (o *Orchestrator) Chat(ctx context.Context, message string) (ChatResult, error) {
	o.dispatchMu.Lock()
	defer o.dispatchMu.Unlock()

	o.mu.RLock()
	sess := o.sess
	o.mu.RUnlock()
	if sess == nil {
		return ChatResult{}, ErrSessionNotReady
	}

	target := resolveTarget(sess, message)
	if target.agent == nil {
		// Error-shaped reply, tagged as the system, history untouched.
		return ChatResult{
			Response:  fmt.Sprintf("Unknown or invalid agent selected: %s", target.raw),
			AgentName: systemAgentName,
			Messages:  sess.historyCopy(),
		}, nil
	}

	o.bus.publish(EventDispatchStarted, agents.NormalizeName(target.agent.Name), "")
	previousAgent := sess.activeAgent

	userMsg := domain.Message{Role: domain.RoleUser, Content: message}
	req := executor.Request{
		Agent:    *target.agent,
		History:  append(sess.historyCopy(), userMsg),
		Registry: sess.registry,
		Bundle:   sess.bundle,
		Context:  sess.context,
	}

	done, err := o.pool.submit(ctx, sess.exec, req)
	if err != nil {
		return ChatResult{}, fmt.Errorf("submit dispatch: %w", err)
	}
	outcome := <-done
	if outcome.err != nil {
		return ChatResult{}, fmt.Errorf("dispatch failed: %w", outcome.err)
	}

	// Commit: user message plus everything produced, in order.
	o.mu.Lock()
	firstSeq := len(sess.messages)
	sess.messages = append(sess.messages, userMsg)
	sess.messages = append(sess.messages, outcome.result.Messages...)
	if outcome.result.NextAgent != "" {
		sess.activeAgent = outcome.result.NextAgent
	}
	activeAgent := sess.activeAgent
	history := sess.historyCopy()
	o.mu.Unlock()

	o.persistTurns(ctx, sess.epoch, firstSeq, history[firstSeq:])

	display := ""
	if n := len(outcome.result.Messages); n > 0 {
		display = ExtractSolution(outcome.result.Messages[n-1].Content)
	}

	if activeAgent != previousAgent {
		o.bus.publish(EventHandoff, activeAgent, "from "+previousAgent)
	}
	o.bus.publish(EventDispatchCompleted, activeAgent, "")

	return ChatResult{
		Response:  display,
		AgentName: activeAgent,
		Messages:  history,
	}, nil
}

// persistTurns appends the committed messages of a dispatch to the
// transcript store. Best-effort: a store failure is logged and never
// unwinds the in-memory session.
func (o *Orchestrator) persistTurns(ctx context.Context, epoch int64, firstSeq int, msgs []domain.Message) {
	if o.opts.Repository == nil {
		return
	}
	records := make([]domain.TurnRecord, len(msgs))
	now := time.Now()
	for i, m := range msgs {
		records[i] = domain.TurnRecord{
			Epoch:     epoch,
			Seq:       firstSeq + i,
			Role:      m.Role,
			Content:   m.Content,
			Agent:     m.Agent,
			CreatedAt: now,
		}
	}
	// SQLITE_BUSY can surface when an upload and a dispatch commit land
	// together; retry with backoff before giving up.
	const maxRetries = 3
	baseDelay := 50 * time.Millisecond
	var err error
	for i := 0; i < maxRetries; i++ {
		err = o.opts.Repository.AppendTurns(ctx, records)
		if err == nil {
			return
		}
		if !shared.IsSQLiteConflictError(err) || i == maxRetries-1 {
			break
		}
		time.Sleep(baseDelay * time.Duration(1<<i))
	}
	slog.Warn("Failed to persist transcript turns", "error", err, "epoch", epoch)
}

// UploadFile is one incoming file to place in the shared workspace.
type UploadFile struct {
	Filename string
	Content  io.Reader
}

// UploadInfo reports where an uploaded file landed, expressed in the
// execution-visible (remote) working directory.
type UploadInfo struct {
	Filename    string `json:"filename"`
	Destination string `json:"destination"`
}

// Upload copies files into the working directory's upload area. Repeated
// uploads of the same filename overwrite; there is no versioning. Uploads
// may run concurrently with an in-flight dispatch but hold the session
// read lock so they cannot race re-initialization.
func (o *Orchestrator) Upload(_ context.Context, files []UploadFile) ([]UploadInfo, error) {
	o.mu.RLock()
	defer o.mu.RUnlock()

	if o.sess == nil {
		return nil, ErrSessionNotReady
	}
	bundle := o.sess.bundle

	localDir := filepath.Join(bundle.LocalWorkdir, uploadDirName)
	if err := os.MkdirAll(localDir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload directory: %w", err)
	}

	infos := make([]UploadInfo, 0, len(files))
	for _, f := range files {
		name := filepath.Base(f.Filename)
		dst, err := os.Create(filepath.Join(localDir, name))
		if err != nil {
			return nil, fmt.Errorf("create upload file %s: %w", name, err)
		}
		if _, err := io.Copy(dst, f.Content); err != nil {
			dst.Close()
			return nil, fmt.Errorf("write upload file %s: %w", name, err)
		}
		if err := dst.Close(); err != nil {
			return nil, fmt.Errorf("close upload file %s: %w", name, err)
		}
		infos = append(infos, UploadInfo{
			Filename:    name,
			Destination: path.Join(bundle.RemoteWorkdir, uploadDirName, name),
		})
	}

	o.bus.publish(EventUploaded, "", fmt.Sprintf("%d file(s)", len(infos)))
	return infos, nil
}

// State is the idempotent snapshot returned by GetState.
type State struct {
	Initialized     bool             `json:"initialized"`
	AgentName       string           `json:"agent_name,omitempty"`
	Messages        []domain.Message `json:"messages,omitempty"`
	AvailableAgents []string         `json:"available_agents,omitempty"`
}

// State never fails and never mutates the session; before initialization
// it reports just {initialized: false}.
func (o *Orchestrator) State() State {
	o.mu.RLock()
	defer o.mu.RUnlock()

	if o.sess == nil {
		return State{Initialized: false}
	}
	return State{
		Initialized:     true,
		AgentName:       o.sess.activeAgent,
		Messages:        o.sess.historyCopy(),
		AvailableAgents: o.sess.registry.Names(),
	}
}

// Subscribe registers for session lifecycle events.
func (o *Orchestrator) Subscribe() (<-chan Event, func()) {
	return o.bus.Subscribe()
}
