package dispatch

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/mount"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/stdcopy"

	"github.com/antigravity-dev/workgraphd/internal/graph"
	"github.com/antigravity-dev/workgraphd/internal/wgerr"
)

// DockerExecutor runs the configured command inside a container built from
// cfg.Image, binding workDir in at /workspace. It is used for executors that
// need an isolated filesystem/toolchain rather than the host's own.
type DockerExecutor struct {
	cli *client.Client
}

// NewDockerExecutor negotiates a client against the local Docker daemon
// using the ambient environment (DOCKER_HOST etc).
func NewDockerExecutor() (*DockerExecutor, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, wgerr.Wrap(wgerr.IOFailure, err, "initialise docker client")
	}
	return &DockerExecutor{cli: cli}, nil
}

func (d *DockerExecutor) Name() string { return "docker" }

func (d *DockerExecutor) Spawn(cfg Config, task *graph.Task, model, prompt, workDir, outputDir string) (Spawned, error) {
	if cfg.Image == "" {
		return Spawned{}, wgerr.New(wgerr.Validation, "executor %q has kind=docker but no image configured", cfg.Name)
	}

	outputFile := OutputFilePath(outputDir, task.ID)
	if err := os.MkdirAll(filepath.Dir(outputFile), 0o755); err != nil {
		return Spawned{}, wgerr.Wrap(wgerr.IOFailure, err, "create output dir for task %s", task.ID)
	}
	workDirAbs, err := filepath.Abs(workDir)
	if err != nil {
		return Spawned{}, wgerr.Wrap(wgerr.IOFailure, err, "resolve work dir %s", workDir)
	}
	if err := os.MkdirAll(workDirAbs, 0o755); err != nil {
		return Spawned{}, wgerr.Wrap(wgerr.IOFailure, err, "create work dir %s", workDirAbs)
	}

	args := RenderArgs(cfg.Args, task, prompt)
	env := RenderEnv(cfg.Env, task, prompt)
	if model != "" {
		env = append(env, "WORKGRAPH_MODEL="+model)
	}

	containerConfig := &container.Config{
		Image:      cfg.Image,
		Cmd:        append([]string{cfg.Command}, args...),
		Env:        env,
		WorkingDir: "/workspace",
		Tty:        false,
	}
	hostConfig := &container.HostConfig{
		Mounts: []mount.Mount{
			{Type: mount.TypeBind, Source: workDirAbs, Target: "/workspace"},
		},
		AutoRemove: false,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	name := "workgraph-" + task.ID
	resp, err := d.cli.ContainerCreate(ctx, containerConfig, hostConfig, nil, nil, name)
	if err != nil {
		return Spawned{}, wgerr.Wrap(wgerr.IOFailure, err, "create container for task %s", task.ID)
	}
	if err := d.cli.ContainerStart(ctx, resp.ID, container.StartOptions{}); err != nil {
		return Spawned{}, wgerr.Wrap(wgerr.IOFailure, err, "start container for task %s", task.ID)
	}

	inspect, err := d.cli.ContainerInspect(ctx, resp.ID)
	if err != nil {
		return Spawned{}, wgerr.Wrap(wgerr.IOFailure, err, "inspect container for task %s", task.ID)
	}

	// The host-namespace PID of the container's init process stands in for
	// a subprocess PID everywhere the registry checks liveness; it remains
	// valid for as long as the container is running.
	go d.streamLogs(resp.ID, outputFile)

	return Spawned{PID: inspect.State.Pid, OutputFile: outputFile}, nil
}

func (d *DockerExecutor) streamLogs(containerID, outputFile string) {
	out, err := os.OpenFile(outputFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return
	}
	defer out.Close()

	logs, err := d.cli.ContainerLogs(context.Background(), containerID, container.LogsOptions{
		ShowStdout: true,
		ShowStderr: true,
		Follow:     true,
	})
	if err != nil {
		return
	}
	defer logs.Close()
	stdcopy.StdCopy(out, out, logs)
}

// Kill force-removes a container previously created by Spawn.
func (d *DockerExecutor) Kill(taskID string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	err := d.cli.ContainerRemove(ctx, "workgraph-"+taskID, container.RemoveOptions{Force: true, RemoveVolumes: true})
	if err != nil {
		return wgerr.Wrap(wgerr.IOFailure, err, "remove container for task %s", taskID)
	}
	return nil
}
