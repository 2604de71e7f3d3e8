package dispatch

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/antigravity-dev/workgraphd/internal/graph"
)

func writeExecutorConfig(t *testing.T, dir, name, toml string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name+".toml"), []byte(toml), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()
	writeExecutorConfig(t, dir, "claude", `
command = "claude"
args = ["--task", "{{task_id}}", "--prompt", "{{task_context}}"]
kind = "shell"

[env]
WORKGRAPH_TASK_TITLE = "{{task_title}}"
`)

	cfg, err := LoadConfig(dir, "claude")
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.Command != "claude" {
		t.Fatalf("Command = %q, want claude", cfg.Command)
	}
	if cfg.Kind != "shell" {
		t.Fatalf("Kind = %q, want shell", cfg.Kind)
	}
	if len(cfg.Args) != 4 {
		t.Fatalf("Args = %v, want 4 entries", cfg.Args)
	}
}

func TestLoadConfigMissing(t *testing.T) {
	dir := t.TempDir()
	_, err := LoadConfig(dir, "nope")
	if err == nil {
		t.Fatalf("expected error for missing config")
	}
}

func TestRenderArgsSubstitutesPlaceholders(t *testing.T) {
	task := &graph.Task{ID: "task-1", Title: "Fix the bug"}
	args := RenderArgs([]string{"--id", "{{task_id}}", "--title", "{{task_title}}"}, task, "ctx")
	want := []string{"--id", "task-1", "--title", "Fix the bug"}
	for i := range want {
		if args[i] != want[i] {
			t.Fatalf("args[%d] = %q, want %q", i, args[i], want[i])
		}
	}
}

func TestRenderEnvSubstitutesPlaceholders(t *testing.T) {
	task := &graph.Task{ID: "task-1", Title: "Fix the bug"}
	env := RenderEnv(map[string]string{"TASK_CONTEXT": "{{task_context}}"}, task, "some context")
	if len(env) != 1 || env[0] != "TASK_CONTEXT=some context" {
		t.Fatalf("env = %v, want [TASK_CONTEXT=some context]", env)
	}
}

func TestOutputFilePath(t *testing.T) {
	got := OutputFilePath("/var/workgraph/output", "task-7")
	want := filepath.Join("/var/workgraph/output", "task-7", "log.json")
	if got != want {
		t.Fatalf("OutputFilePath = %q, want %q", got, want)
	}
}

func TestCommandLineEscapesArguments(t *testing.T) {
	cfg := Config{Command: "echo", Args: []string{"{{task_title}}"}}
	task := &graph.Task{ID: "t1", Title: "hello world"}
	got := CommandLine(cfg, task, "")
	want := "echo 'hello world'"
	if got != want {
		t.Fatalf("CommandLine = %q, want %q", got, want)
	}
}
