// Package env provisions the execution surfaces (code, web, files) shared
// by all agents in a session, bound to a single working directory.
package env

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
)

// Surface is one execution surface of the bundle. The orchestrator only
// needs provisioning, task execution, and teardown; everything else about a
// surface is its own business.
type Surface interface {
	// Init provisions the surface. It must be safe to call once per bundle.
	Init(ctx context.Context) error

	// Run executes a task on the surface and returns its textual output.
	// Run may block for a long time; callers decide how to schedule it.
	Run(ctx context.Context, task string) (string, error)

	// Close releases the surface's resources. Close is idempotent.
	Close(ctx context.Context) error
}

// Options configures bundle provisioning.
type Options struct {
	// ContainerName names the sandbox container (and scopes the local
	// working directory).
	ContainerName string
	// Port is published from the sandbox container to the host.
	Port int
	// Image is the container image for the code surface.
	Image string
	// LocalRoot is the host directory under which per-session working
	// directories are created.
	LocalRoot string
	// WorkplaceName is the working directory name, visible under LocalRoot
	// on the host and at the container root inside the sandbox.
	WorkplaceName string
	// GitCloneURL, when set, is cloned into the working directory during
	// provisioning.
	GitCloneURL string
	// UseLocalExecution runs code tasks on the host instead of in a
	// container.
	UseLocalExecution bool
}

// Bundle groups the three execution surfaces bound to one working
// directory. A bundle is owned exclusively by a session and lives exactly
// as long as it.
type Bundle struct {
	Code Surface
	Web  Surface
	File Surface

	// LocalWorkdir is the host path of the shared working directory.
	LocalWorkdir string
	// RemoteWorkdir is the same directory as seen from inside the code
	// surface. Upload descriptors and agent prompts use this path.
	RemoteWorkdir string
}

// Provision creates the working directory and initializes all three
// surfaces. On any failure the partially provisioned bundle is torn down
// and an error is returned; no partial state escapes.
func Provision(ctx context.Context, opts Options) (*Bundle, error) {
	localWorkdir := filepath.Join(opts.LocalRoot, opts.WorkplaceName)
	if err := os.MkdirAll(localWorkdir, 0o755); err != nil {
		return nil, fmt.Errorf("create working directory: %w", err)
	}
	remoteWorkdir := "/" + opts.WorkplaceName

	b := &Bundle{
		LocalWorkdir:  localWorkdir,
		RemoteWorkdir: remoteWorkdir,
	}

	if opts.UseLocalExecution {
		b.Code = NewLocalEnv(localWorkdir, opts.GitCloneURL)
		b.RemoteWorkdir = localWorkdir
	} else {
		code, err := NewDockerEnv(DockerOptions{
			ContainerName: opts.ContainerName,
			Image:         opts.Image,
			Port:          opts.Port,
			LocalWorkdir:  localWorkdir,
			RemoteWorkdir: remoteWorkdir,
			GitCloneURL:   opts.GitCloneURL,
		})
		if err != nil {
			return nil, fmt.Errorf("create code surface: %w", err)
		}
		b.Code = code
	}
	b.Web = NewWebEnv()
	b.File = NewFileEnv(localWorkdir, defaultViewportSize)

	for _, s := range []Surface{b.Code, b.Web, b.File} {
		if err := s.Init(ctx); err != nil {
			b.Close(ctx)
			return nil, fmt.Errorf("initialize surface: %w", err)
		}
	}

	slog.Info("Environment bundle provisioned",
		"local_workdir", b.LocalWorkdir,
		"remote_workdir", b.RemoteWorkdir,
		"local_execution", opts.UseLocalExecution,
	)
	return b, nil
}

// Close tears down all surfaces. Errors are logged, not returned: teardown
// runs when a session is replaced and must never block re-initialization.
func (b *Bundle) Close(ctx context.Context) {
	for _, s := range []Surface{b.Code, b.Web, b.File} {
		if s == nil {
			continue
		}
		if err := s.Close(ctx); err != nil {
			slog.Warn("Failed to close surface", "error", err)
		}
	}
}
