package env

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/containerd/errdefs"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/mount"
	"github.com/docker/docker/api/types/network"
	"github.com/docker/docker/client"
	"github.com/docker/go-connections/nat"
)

const (
	defaultImage    = "switchboard-sandbox:latest"
	stopTimeoutSecs = 10

	// Resource limits for the sandbox container.
	memoryLimitBytes = 2 * 1024 * 1024 * 1024 // 2GB
	pidsLimit        = 512

	createRetryAttempts = 10
	createRetryDelay    = 250 * time.Millisecond
)

// DockerOptions configures the Docker-backed code surface.
type DockerOptions struct {
	ContainerName string
	Image         string
	Port          int
	LocalWorkdir  string
	RemoteWorkdir string
	GitCloneURL   string
}

// DockerEnv is the code-execution surface backed by a Docker container.
// The session working directory is bind-mounted into the container so the
// file surface and upload coordinator see the same tree.
type DockerEnv struct {
	cli         *client.Client
	opts        DockerOptions
	containerID string
}

// NewDockerEnv creates the surface without touching the daemon; Init does
// the actual provisioning.
func NewDockerEnv(opts DockerOptions) (*DockerEnv, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("create docker client: %w", err)
	}
	if opts.Image == "" {
		opts.Image = defaultImage
	}
	return &DockerEnv{cli: cli, opts: opts}, nil
}

// Init ensures the sandbox container exists and is running. An existing
// container with the same name is reused if running, started if stopped,
// and recreated on conflict.
func (e *DockerEnv) Init(ctx context.Context) error {
	inspect, err := e.cli.ContainerInspect(ctx, e.opts.ContainerName)
	if err == nil {
		if inspect.State.Running {
			slog.Info("Sandbox container already running", "container_id", inspect.ID)
			e.containerID = inspect.ID
			return e.seedWorkdir(ctx)
		}
		slog.Info("Restarting stopped sandbox container", "container_id", inspect.ID)
		if startErr := e.cli.ContainerStart(ctx, inspect.ID, container.StartOptions{}); startErr == nil {
			e.containerID = inspect.ID
			return e.seedWorkdir(ctx)
		}
		// Could not restart; recycle it below.
		if stopErr := e.stopAndRemove(ctx, inspect.ID); stopErr != nil {
			slog.Warn("Failed to remove stale sandbox container", "error", stopErr, "container_id", inspect.ID)
		}
	}

	portKey, err := nat.NewPort("tcp", fmt.Sprintf("%d", e.opts.Port))
	if err != nil {
		return fmt.Errorf("invalid sandbox port %d: %w", e.opts.Port, err)
	}

	config := &container.Config{
		Image:      e.opts.Image,
		Cmd:        []string{"tail", "-f", "/dev/null"},
		WorkingDir: e.opts.RemoteWorkdir,
		Tty:        true,
		ExposedPorts: nat.PortSet{
			portKey: struct{}{},
		},
	}
	hostConfig := &container.HostConfig{
		Mounts: []mount.Mount{{
			Type:   mount.TypeBind,
			Source: e.opts.LocalWorkdir,
			Target: e.opts.RemoteWorkdir,
		}},
		PortBindings: nat.PortMap{
			portKey: []nat.PortBinding{{HostPort: fmt.Sprintf("%d", e.opts.Port)}},
		},
		Resources: container.Resources{
			Memory:    memoryLimitBytes,
			PidsLimit: ptr(int64(pidsLimit)),
		},
	}

	var resp container.CreateResponse
	var createErr error
	for i := 0; i < createRetryAttempts; i++ {
		resp, createErr = e.cli.ContainerCreate(ctx, config, hostConfig, &network.NetworkingConfig{}, nil, e.opts.ContainerName)
		if createErr == nil {
			break
		}

		errStr := strings.ToLower(createErr.Error())
		if !strings.Contains(errStr, "is already in use") && !strings.Contains(errStr, "conflict") {
			return fmt.Errorf("create sandbox container: %w", createErr)
		}

		// A delayed cleanup can leave the old named container briefly.
		slog.Warn("Sandbox container name conflict during create, retrying",
			"container_name", e.opts.ContainerName,
			"attempt", i+1,
			"error", createErr,
		)
		if inspect, inspectErr := e.cli.ContainerInspect(ctx, e.opts.ContainerName); inspectErr == nil {
			if stopErr := e.stopAndRemove(ctx, inspect.ID); stopErr != nil {
				slog.Warn("Failed to remove conflicting container before retry", "container_id", inspect.ID, "error", stopErr)
			}
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(createRetryDelay):
		}
	}
	if createErr != nil {
		return fmt.Errorf("create sandbox container after retries: %w", createErr)
	}

	if err := e.cli.ContainerStart(ctx, resp.ID, container.StartOptions{}); err != nil {
		if removeErr := e.cli.ContainerRemove(ctx, resp.ID, container.RemoveOptions{Force: true}); removeErr != nil {
			slog.Warn("Failed to remove container after start failure", "container_id", resp.ID, "error", removeErr)
		}
		return fmt.Errorf("start sandbox container %s: %w", resp.ID, err)
	}

	e.containerID = resp.ID
	slog.Info("Sandbox container started", "container_id", resp.ID, "image", e.opts.Image)
	return e.seedWorkdir(ctx)
}

// seedWorkdir clones the seed repository into the working directory when
// one is configured and the directory is still empty.
func (e *DockerEnv) seedWorkdir(ctx context.Context) error {
	if e.opts.GitCloneURL == "" {
		return nil
	}
	task := fmt.Sprintf(
		"[ -d %s/.git ] || git clone %s %s",
		e.opts.RemoteWorkdir, e.opts.GitCloneURL, e.opts.RemoteWorkdir,
	)
	if out, err := e.Run(ctx, task); err != nil {
		return fmt.Errorf("seed working directory: %w (output: %s)", err, strings.TrimSpace(out))
	}
	return nil
}

// Run executes a shell task inside the sandbox container and returns its
// combined output. It blocks until the task exits.
func (e *DockerEnv) Run(ctx context.Context, task string) (string, error) {
	if e.containerID == "" {
		return "", fmt.Errorf("sandbox container not initialized")
	}

	execConfig := container.ExecOptions{
		Cmd:          []string{"sh", "-c", task},
		WorkingDir:   e.opts.RemoteWorkdir,
		AttachStdout: true,
		AttachStderr: true,
	}
	resp, err := e.cli.ContainerExecCreate(ctx, e.containerID, execConfig)
	if err != nil {
		return "", fmt.Errorf("create exec in container %s: %w", e.containerID, err)
	}

	attachResp, err := e.cli.ContainerExecAttach(ctx, resp.ID, container.ExecStartOptions{})
	if err != nil {
		return "", fmt.Errorf("attach exec %s: %w", resp.ID, err)
	}
	defer attachResp.Close()

	output, err := io.ReadAll(attachResp.Reader)
	if err != nil {
		return "", fmt.Errorf("read exec output: %w", err)
	}

	inspect, err := e.cli.ContainerExecInspect(ctx, resp.ID)
	if err != nil {
		return "", fmt.Errorf("inspect exec %s: %w", resp.ID, err)
	}
	if inspect.ExitCode != 0 {
		return string(output), fmt.Errorf("task exited with code %d", inspect.ExitCode)
	}
	return string(output), nil
}

// Close stops and removes the sandbox container. It is idempotent and
// tolerates concurrent removal.
func (e *DockerEnv) Close(ctx context.Context) error {
	if e.containerID == "" {
		return nil
	}
	err := e.stopAndRemove(ctx, e.containerID)
	e.containerID = ""
	return err
}

func (e *DockerEnv) stopAndRemove(ctx context.Context, containerID string) error {
	_, err := e.cli.ContainerInspect(ctx, containerID)
	if err != nil {
		if errdefs.IsNotFound(err) {
			return nil
		}
		return fmt.Errorf("inspect container %s: %w", containerID, err)
	}

	timeout := stopTimeoutSecs
	if err := e.cli.ContainerStop(ctx, containerID, container.StopOptions{Timeout: &timeout}); err != nil {
		if !errdefs.IsNotFound(err) {
			slog.Debug("Container stop returned error, continuing to remove", "container_id", containerID, "error", err)
		}
	}

	if err := e.cli.ContainerRemove(ctx, containerID, container.RemoveOptions{Force: true}); err != nil {
		if errdefs.IsNotFound(err) {
			return nil
		}
		if strings.Contains(err.Error(), "is already in progress") {
			return nil
		}
		return fmt.Errorf("remove container %s: %w", containerID, err)
	}

	slog.Info("Sandbox container removed", "container_id", containerID)
	return nil
}

func ptr[T any](v T) *T {
	return &v
}
