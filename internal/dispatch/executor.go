// Package dispatch implements the executor adapter contract of spec.md
// §4.6: given a task, a chosen model, and a rendered prompt, spawn a
// subprocess and return its PID plus the path to a per-agent output file.
package dispatch

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/antigravity-dev/workgraphd/internal/graph"
	"github.com/antigravity-dev/workgraphd/internal/wgerr"
)

// Config is one executor's configuration, resolved by name from a directory
// of config files (`executors/<name>.toml`).
type Config struct {
	Name    string            `toml:"-"`
	Command string            `toml:"command"`
	Args    []string          `toml:"args"`
	Env     map[string]string `toml:"env"`
	Kind    string            `toml:"kind"` // "shell" or "docker"
	Image   string            `toml:"image,omitempty"`
}

// LoadConfig resolves name against <dir>/<name>.toml.
func LoadConfig(dir, name string) (Config, error) {
	path := filepath.Join(dir, name+".toml")
	var cfg Config
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		if os.IsNotExist(err) {
			return Config{}, wgerr.New(wgerr.NotFound, "no executor config named %q in %s", name, dir)
		}
		return Config{}, wgerr.Wrap(wgerr.ParseFailure, err, "parse executor config %s", path)
	}
	cfg.Name = name
	return cfg, nil
}

// Spawned is what a successful Spawn returns: the child's PID and the path
// it will write output to.
type Spawned struct {
	PID        int
	OutputFile string
}

// Executor is the pluggable backend contract: render a task into a
// subprocess and launch it. It never interprets task semantics beyond
// rendering the three placeholders.
type Executor interface {
	Spawn(cfg Config, task *graph.Task, model, prompt, workDir, outputDir string) (Spawned, error)
	Name() string
}

// RenderArgs substitutes {{task_id}}, {{task_title}}, {{task_context}} into
// each configured arg/env value.
func RenderArgs(args []string, task *graph.Task, context string) []string {
	out := make([]string, len(args))
	for i, a := range args {
		out[i] = substitute(a, task, context)
	}
	return out
}

// RenderEnv substitutes the same placeholders into a configured env map,
// returning an os/exec-style []"KEY=VALUE" slice.
func RenderEnv(env map[string]string, task *graph.Task, context string) []string {
	out := make([]string, 0, len(env))
	for k, v := range env {
		out = append(out, k+"="+substitute(v, task, context))
	}
	return out
}

func substitute(s string, task *graph.Task, context string) string {
	r := strings.NewReplacer(
		"{{task_id}}", task.ID,
		"{{task_title}}", task.Title,
		"{{task_context}}", context,
	)
	return r.Replace(s)
}

// OutputFilePath returns the conventional per-agent output path for a task,
// under outputDir/<task-id>/log.json (spec.md §6 on-disk layout).
func OutputFilePath(outputDir, taskID string) string {
	return filepath.Join(outputDir, taskID, "log.json")
}

// CommandLine renders the shell-equivalent of what Spawn would execute, for
// provenance logging. It never runs through an actual shell; it exists so a
// human reading the provenance log can see exactly what ran, with each
// argument escaped the way it would need to be if replayed by hand.
func CommandLine(cfg Config, task *graph.Task, context string) string {
	return BuildShellCommand(cfg.Command, RenderArgs(cfg.Args, task, context)...)
}
