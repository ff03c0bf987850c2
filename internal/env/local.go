package env

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// LocalEnv is the code surface variant that runs tasks directly on the
// host, used when the orchestrator is started with local execution. The
// remote working directory is simply the local one.
type LocalEnv struct {
	workdir     string
	gitCloneURL string
}

// NewLocalEnv creates a host-local code surface rooted at workdir.
func NewLocalEnv(workdir, gitCloneURL string) *LocalEnv {
	return &LocalEnv{workdir: workdir, gitCloneURL: gitCloneURL}
}

// Init optionally seeds the working directory from the configured repo.
func (e *LocalEnv) Init(ctx context.Context) error {
	if e.gitCloneURL == "" {
		return nil
	}
	task := fmt.Sprintf("[ -d .git ] || git clone %s .", e.gitCloneURL)
	if out, err := e.Run(ctx, task); err != nil {
		return fmt.Errorf("seed working directory: %w (output: %s)", err, strings.TrimSpace(out))
	}
	return nil
}

// Run executes a shell task in the working directory.
func (e *LocalEnv) Run(ctx context.Context, task string) (string, error) {
	cmd := exec.CommandContext(ctx, "sh", "-c", task)
	cmd.Dir = e.workdir
	output, err := cmd.CombinedOutput()
	if err != nil {
		return string(output), fmt.Errorf("run local task: %w", err)
	}
	return string(output), nil
}

// Close is a no-op for local execution.
func (e *LocalEnv) Close(_ context.Context) error { return nil }
