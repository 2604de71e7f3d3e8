package dispatch

import (
	"os"
	"os/exec"
	"path/filepath"

	"github.com/antigravity-dev/workgraphd/internal/graph"
	"github.com/antigravity-dev/workgraphd/internal/wgerr"
)

// ShellExecutor spawns the configured command directly via os/exec —
// appropriate for a local CLI agent binary that heartbeats by touching a
// file the daemon polls.
type ShellExecutor struct{}

func (ShellExecutor) Name() string { return "shell" }

func (ShellExecutor) Spawn(cfg Config, task *graph.Task, model, prompt, workDir, outputDir string) (Spawned, error) {
	outputFile := OutputFilePath(outputDir, task.ID)
	if err := os.MkdirAll(filepath.Dir(outputFile), 0o755); err != nil {
		return Spawned{}, wgerr.Wrap(wgerr.IOFailure, err, "create output dir for task %s", task.ID)
	}
	if err := os.MkdirAll(workDir, 0o755); err != nil {
		return Spawned{}, wgerr.Wrap(wgerr.IOFailure, err, "create work dir %s", workDir)
	}

	args := RenderArgs(cfg.Args, task, prompt)
	cmd := exec.Command(cfg.Command, args...)
	cmd.Dir = workDir
	cmd.Env = append(os.Environ(), RenderEnv(cfg.Env, task, prompt)...)
	if model != "" {
		cmd.Env = append(cmd.Env, "WORKGRAPH_MODEL="+model)
	}
	cmd.Env = append(cmd.Env, "WORKGRAPH_OUTPUT_FILE="+outputFile)

	out, err := os.OpenFile(outputFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return Spawned{}, wgerr.Wrap(wgerr.IOFailure, err, "open output file %s", outputFile)
	}
	cmd.Stdout = out
	cmd.Stderr = out

	if err := cmd.Start(); err != nil {
		out.Close()
		return Spawned{}, wgerr.Wrap(wgerr.IOFailure, err, "start shell executor for task %s", task.ID)
	}

	// The child is detached from our stdio wiring and is expected to run to
	// completion independently; the daemon observes it via PID liveness and
	// the registry heartbeat, not via Wait().
	go func() {
		cmd.Wait()
		out.Close()
	}()

	return Spawned{PID: cmd.Process.Pid, OutputFile: outputFile}, nil
}
