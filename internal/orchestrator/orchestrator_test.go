package orchestrator

import (
	"context"
	"errors"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mkraev/switchboard/internal/domain"
	"github.com/mkraev/switchboard/internal/executor"
)

// fakeExecutor is a scriptable execution collaborator.
type fakeExecutor struct {
	mu     sync.Mutex
	calls  []executor.Request
	result executor.Result
	err    error
}

func (f *fakeExecutor) Execute(_ context.Context, req executor.Request) (executor.Result, error) {
	f.mu.Lock()
	f.calls = append(f.calls, req)
	f.mu.Unlock()
	if f.err != nil {
		return executor.Result{}, f.err
	}
	res := f.result
	if res.NextAgent == "" {
		res.NextAgent = "System_Triage_Agent"
	}
	return res, nil
}

func (f *fakeExecutor) lastCall(t *testing.T) executor.Request {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	require.NotEmpty(t, f.calls)
	return f.calls[len(f.calls)-1]
}

func newTestOrchestrator(t *testing.T, exec executor.Executor) *Orchestrator {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	return New(ctx, Options{
		LocalRoot: t.TempDir(),
		Workers:   2,
		NewExecutor: func(string) executor.Executor {
			return exec
		},
	})
}

func initSession(t *testing.T, o *Orchestrator) {
	t.Helper()
	err := o.Initialize(context.Background(), InitParams{
		ContainerName:     "test",
		Port:              12399,
		UseLocalExecution: true,
		Model:             "test-model",
	})
	require.NoError(t, err)
}

func assistantReply(content string) executor.Result {
	return executor.Result{
		Messages: []domain.Message{
			{Role: domain.RoleAssistant, Content: content, Agent: "System Triage Agent"},
		},
		NextAgent: "System_Triage_Agent",
	}
}

func TestStateBeforeInitialize(t *testing.T) {
	o := newTestOrchestrator(t, &fakeExecutor{})

	state := o.State()
	assert.False(t, state.Initialized)
	assert.Empty(t, state.AgentName)
	assert.Empty(t, state.Messages)
}

func TestChatBeforeInitialize(t *testing.T) {
	o := newTestOrchestrator(t, &fakeExecutor{})

	_, err := o.Chat(context.Background(), "hello")
	require.ErrorIs(t, err, ErrSessionNotReady)
	assert.Empty(t, o.State().Messages)
}

func TestUploadBeforeInitialize(t *testing.T) {
	o := newTestOrchestrator(t, &fakeExecutor{})

	_, err := o.Upload(context.Background(), []UploadFile{
		{Filename: "a.txt", Content: strings.NewReader("x")},
	})
	require.ErrorIs(t, err, ErrSessionNotReady)
}

func TestInitializeSetsTriageActiveWithEmptyHistory(t *testing.T) {
	o := newTestOrchestrator(t, &fakeExecutor{})
	initSession(t, o)

	state := o.State()
	assert.True(t, state.Initialized)
	assert.Equal(t, "System_Triage_Agent", state.AgentName)
	assert.Empty(t, state.Messages)
	assert.Contains(t, state.AvailableAgents, "Coding_Agent")
}

func TestDispatchAppendsHistoryAndUpdatesActiveAgent(t *testing.T) {
	fake := &fakeExecutor{result: executor.Result{
		Messages: []domain.Message{
			{Role: domain.RoleTool, Content: "Transferred to Coding Agent.", Agent: "System Triage Agent"},
			{Role: domain.RoleAssistant, Content: "On it.", Agent: "Coding Agent"},
		},
		NextAgent: "Coding_Agent",
	}}
	o := newTestOrchestrator(t, fake)
	initSession(t, o)

	result, err := o.Chat(context.Background(), "please fix the build")
	require.NoError(t, err)

	assert.Equal(t, "On it.", result.Response)
	assert.Equal(t, "Coding_Agent", result.AgentName)
	// 1 user message + 2 produced.
	require.Len(t, result.Messages, 3)
	assert.Equal(t, domain.RoleUser, result.Messages[0].Role)
	assert.Equal(t, "please fix the build", result.Messages[0].Content)

	assert.Equal(t, "Coding_Agent", o.State().AgentName)
}

func TestDispatchLastDirectiveWins(t *testing.T) {
	fake := &fakeExecutor{result: assistantReply("ok")}
	o := newTestOrchestrator(t, fake)
	initSession(t, o)

	_, err := o.Chat(context.Background(), "@Coding_Agent @Web_Surfer_Agent hello")
	require.NoError(t, err)
	assert.Equal(t, "Web Surfer Agent", fake.lastCall(t).Agent.Name)
}

func TestDispatchUnresolvableDirectiveDoesNotOverride(t *testing.T) {
	fake := &fakeExecutor{result: assistantReply("ok")}
	o := newTestOrchestrator(t, fake)
	initSession(t, o)

	// The later mention is unresolvable and must not override the earlier
	// resolvable one.
	_, err := o.Chat(context.Background(), "@Coding_Agent @Nobody hello")
	require.NoError(t, err)
	assert.Equal(t, "Coding Agent", fake.lastCall(t).Agent.Name)
}

func TestDispatchUnknownDirectiveFallsBackToActiveAgent(t *testing.T) {
	fake := &fakeExecutor{result: assistantReply("ok")}
	o := newTestOrchestrator(t, fake)
	initSession(t, o)

	result, err := o.Chat(context.Background(), "@Nobody hello")
	require.NoError(t, err)

	assert.Equal(t, "System Triage Agent", fake.lastCall(t).Agent.Name)
	// History grows by exactly 1 user + 1 produced message.
	assert.Len(t, result.Messages, 2)
}

func TestDispatchUnresolvableActiveAgent(t *testing.T) {
	fake := &fakeExecutor{result: assistantReply("ok")}
	o := newTestOrchestrator(t, fake)
	initSession(t, o)

	// Simulate a session whose active-agent pointer no longer resolves.
	o.mu.Lock()
	o.sess.activeAgent = "Ghost"
	o.mu.Unlock()

	result, err := o.Chat(context.Background(), "hello")
	require.NoError(t, err)

	assert.Equal(t, "System", result.AgentName)
	assert.Contains(t, result.Response, "Ghost")
	// A rejected dispatch leaves the history unchanged.
	assert.Empty(t, result.Messages)
	assert.Empty(t, o.State().Messages)
}

func TestDispatchExecutorErrorLeavesHistoryUnchanged(t *testing.T) {
	fake := &fakeExecutor{err: errors.New("model unavailable")}
	o := newTestOrchestrator(t, fake)
	initSession(t, o)

	_, err := o.Chat(context.Background(), "hello")
	require.Error(t, err)
	assert.Empty(t, o.State().Messages)
}

func TestDispatchExtractsSolution(t *testing.T) {
	fake := &fakeExecutor{result: assistantReply("Case resolved. <solution>42</solution>")}
	o := newTestOrchestrator(t, fake)
	initSession(t, o)

	result, err := o.Chat(context.Background(), "what is the answer?")
	require.NoError(t, err)

	assert.Equal(t, "42", result.Response)
	// The history keeps the raw message; extraction is display-only.
	assert.Equal(t, "Case resolved. <solution>42</solution>", result.Messages[1].Content)
}

func TestUploadOverwritesAndReportsRemotePath(t *testing.T) {
	o := newTestOrchestrator(t, &fakeExecutor{result: assistantReply("ok")})
	initSession(t, o)

	o.mu.RLock()
	bundle := o.sess.bundle
	o.mu.RUnlock()
	wantDest := path.Join(bundle.RemoteWorkdir, "files", "notes.txt")

	first, err := o.Upload(context.Background(), []UploadFile{
		{Filename: "notes.txt", Content: strings.NewReader("one")},
	})
	require.NoError(t, err)
	require.Len(t, first, 1)
	assert.Equal(t, wantDest, first[0].Destination)

	second, err := o.Upload(context.Background(), []UploadFile{
		{Filename: "notes.txt", Content: strings.NewReader("two")},
	})
	require.NoError(t, err)
	assert.Equal(t, first[0].Destination, second[0].Destination)

	data, err := os.ReadFile(filepath.Join(bundle.LocalWorkdir, "files", "notes.txt"))
	require.NoError(t, err)
	assert.Equal(t, "two", string(data))
}

func TestReinitializeResetsSession(t *testing.T) {
	fake := &fakeExecutor{result: assistantReply("ok")}
	o := newTestOrchestrator(t, fake)
	initSession(t, o)

	_, err := o.Chat(context.Background(), "hello")
	require.NoError(t, err)
	require.NotEmpty(t, o.State().Messages)

	initSession(t, o)

	state := o.State()
	assert.True(t, state.Initialized)
	assert.Empty(t, state.Messages)
	assert.Equal(t, "System_Triage_Agent", state.AgentName)
}

func TestStateIsIdempotent(t *testing.T) {
	fake := &fakeExecutor{result: assistantReply("ok")}
	o := newTestOrchestrator(t, fake)
	initSession(t, o)

	_, err := o.Chat(context.Background(), "hello")
	require.NoError(t, err)

	first := o.State()
	// Mutating the returned snapshot must not affect the session.
	if len(first.Messages) > 0 {
		first.Messages[0].Content = "tampered"
	}
	second := o.State()
	assert.Equal(t, "hello", second.Messages[0].Content)
	assert.Equal(t, first.AgentName, second.AgentName)
}

func TestEventsPublishedDuringDispatch(t *testing.T) {
	fake := &fakeExecutor{result: executor.Result{
		Messages:  []domain.Message{{Role: domain.RoleAssistant, Content: "done", Agent: "Coding Agent"}},
		NextAgent: "Coding_Agent",
	}}
	o := newTestOrchestrator(t, fake)
	initSession(t, o)

	events, unsubscribe := o.Subscribe()
	defer unsubscribe()

	_, err := o.Chat(context.Background(), "hello")
	require.NoError(t, err)

	var types []EventType
	deadline := time.After(2 * time.Second)
	for len(types) < 3 {
		select {
		case ev := <-events:
			types = append(types, ev.Type)
		case <-deadline:
			t.Fatalf("timed out waiting for events, got %v", types)
		}
	}
	assert.Equal(t, []EventType{EventDispatchStarted, EventHandoff, EventDispatchCompleted}, types)
}
