package daemon

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/antigravity-dev/workgraphd/internal/config"
	"github.com/antigravity-dev/workgraphd/internal/dispatch"
	"github.com/antigravity-dev/workgraphd/internal/graph"
	"github.com/antigravity-dev/workgraphd/internal/identity"
	"github.com/antigravity-dev/workgraphd/internal/models"
	"github.com/antigravity-dev/workgraphd/internal/registry"
	"github.com/antigravity-dev/workgraphd/internal/store"
)

const shellExecutorConfig = `
kind = "shell"
command = "/bin/sh"
args = ["-c", "true"]
`

// newTestDaemon lays out a full .workgraph directory (graph, registry,
// identity, executors) and returns a Daemon wired against it, matching
// cmd/workgraphd's real wiring but rooted in a temp dir per test.
func newTestDaemon(t *testing.T, mutate func(*config.Config)) (*Daemon, string) {
	t.Helper()
	workDir := t.TempDir()

	for _, d := range []string{"service", "executors", "output", "run-work"} {
		require.NoError(t, os.MkdirAll(filepath.Join(workDir, d), 0o755))
	}
	require.NoError(t, os.WriteFile(filepath.Join(workDir, "executors", "shell.toml"), []byte(shellExecutorConfig), 0o644))

	cfg := config.Default()
	cfg.Coordinator.MaxAgents = 2
	cfg.Coordinator.Executor = "shell"
	if mutate != nil {
		mutate(&cfg)
	}
	cfgPath := filepath.Join(workDir, "config.toml")
	require.NoError(t, config.Save(cfgPath, cfg))
	mgr, err := config.NewManager(cfgPath, nil)
	require.NoError(t, err)

	dirs, err := identity.Init(filepath.Join(workDir, "identity"))
	require.NoError(t, err)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	deps := Deps{
		WorkgraphDir:      workDir,
		Config:            mgr,
		GraphStore:        store.NewGraphStore(filepath.Join(workDir, "graph.jsonl")),
		Provenance:        store.NewProvenanceLog(workDir, 10_000_000),
		Identity:          dirs,
		Models:            models.Registry{},
		Executors:         map[string]dispatch.Executor{"shell": dispatch.ShellExecutor{}},
		ExecutorConfigDir: filepath.Join(workDir, "executors"),
		OutputDir:         filepath.Join(workDir, "output"),
		WorkDir:           filepath.Join(workDir, "run-work"),
		Logger:            logger,
	}
	return New(deps), workDir
}

func mustSaveGraph(t *testing.T, d *Daemon, g *graph.Graph) {
	t.Helper()
	require.NoError(t, d.deps.GraphStore.Save(g))
}

func TestTickOnceSpawnsReadyTask(t *testing.T) {
	d, workDir := newTestDaemon(t, nil)
	now := time.Now()

	g := graph.New()
	g.AddTask(graph.Task{ID: "t1", Title: "first", Status: graph.StatusOpen, CreatedAt: now})
	mustSaveGraph(t, d, g)

	require.NoError(t, d.tickOnce(context.Background(), now))

	// Give the detached shell child a moment to exit so the test doesn't
	// depend on scheduling timing for the registry-side assertions below.
	time.Sleep(50 * time.Millisecond)

	reg, err := registry.Load(workDir)
	require.NoError(t, err)
	require.Equal(t, 1, reg.ActiveCount(), "agents: %+v", reg.Agents)

	g2, err := d.deps.GraphStore.Load()
	require.NoError(t, err)
	task, ok := g2.GetTask("t1")
	require.True(t, ok, "task t1 missing after tick")
	require.Equal(t, graph.StatusInProgress, task.Status)
	require.NotNil(t, task.StartedAt)
}

func TestTickOnceRespectsMaxAgents(t *testing.T) {
	d, workDir := newTestDaemon(t, func(c *config.Config) { c.Coordinator.MaxAgents = 1 })
	now := time.Now()

	g := graph.New()
	g.AddTask(graph.Task{ID: "t1", Title: "first", Status: graph.StatusOpen, CreatedAt: now})
	g.AddTask(graph.Task{ID: "t2", Title: "second", Status: graph.StatusOpen, CreatedAt: now})
	mustSaveGraph(t, d, g)

	require.NoError(t, d.tickOnce(context.Background(), now))
	time.Sleep(50 * time.Millisecond)

	reg, err := registry.Load(workDir)
	require.NoError(t, err)
	require.Equal(t, 1, reg.ActiveCount(), "max_agents=1 must cap spawns regardless of ready-set size")
}

func TestDetectFailuresResetsDeadTask(t *testing.T) {
	d, _ := newTestDaemon(t, nil)
	now := time.Now()

	g := graph.New()
	g.AddTask(graph.Task{ID: "t1", Title: "first", Status: graph.StatusInProgress, CreatedAt: now, AgentID: "agent-1"})

	reg := registry.New()
	reg.Agents["agent-1"] = registry.Entry{
		ID: "agent-1", PID: unusedPID(), TaskID: "t1", Status: registry.StatusWorking,
		StartedAt: now.Add(-time.Minute), LastHeartbeat: now.Add(-time.Minute),
	}

	cfg := d.deps.Config.Get()
	finished, dead := d.detectFailures(reg, g, cfg, now)

	require.Empty(t, finished)
	require.Equal(t, []string{"agent-1"}, dead)

	task, ok := g.GetTask("t1")
	require.True(t, ok)
	require.Equal(t, graph.StatusOpen, task.Status, "dead agent's task must reopen")
	require.Empty(t, task.AgentID, "assignment must clear on reset")
	require.NotEmpty(t, task.Log, "reset must be logged")
}

func TestDetectFailuresMarksDoneWhenArtifactsPresent(t *testing.T) {
	d, _ := newTestDaemon(t, nil)
	now := time.Now()

	g := graph.New()
	g.AddTask(graph.Task{
		ID: "t1", Title: "first", Status: graph.StatusInProgress, CreatedAt: now,
		AgentID: "agent-1", Artifacts: []string{"output/t1/changes.patch"},
	})

	reg := registry.New()
	reg.Agents["agent-1"] = registry.Entry{
		ID: "agent-1", PID: unusedPID(), TaskID: "t1", Status: registry.StatusWorking,
		StartedAt: now, LastHeartbeat: now,
	}

	cfg := d.deps.Config.Get()
	finished, dead := d.detectFailures(reg, g, cfg, now)

	require.Empty(t, dead)
	require.Equal(t, []string{"t1"}, finished)
	require.Equal(t, registry.StatusDone, reg.Agents["agent-1"].Status)
}

func TestOnTaskFinishedFiresLoop(t *testing.T) {
	d, _ := newTestDaemon(t, nil)
	now := time.Now()

	g := graph.New()
	g.AddTask(graph.Task{
		ID: "t1", Status: graph.StatusInProgress, CreatedAt: now,
		LoopEdges: []graph.LoopEdge{{Target: "t2", Guard: graph.Guard{Kind: graph.GuardIterationLessThan, N: 3}, MaxIterations: 3}},
	})
	g.AddTask(graph.Task{ID: "t2", Status: graph.StatusDone, CreatedAt: now})
	cfg := d.deps.Config.Get()

	d.onTaskFinished(g, "t1", cfg, now)

	// The loop edge reopens both the target and the source cycle member, per
	// graph.FireLoops — a run through the loop starts the source over too.
	source, _ := g.GetTask("t1")
	require.Equal(t, graph.StatusOpen, source.Status, "source reopened by its own loop edge")

	target, _ := g.GetTask("t2")
	require.Equal(t, graph.StatusOpen, target.Status)
	require.Equal(t, uint32(1), target.LoopIteration)
}

func TestCoordinatorHeartbeatPersisted(t *testing.T) {
	d, workDir := newTestDaemon(t, nil)
	now := time.Now()

	g := graph.New()
	mustSaveGraph(t, d, g)

	require.NoError(t, d.tickOnce(context.Background(), now))
	st, err := ReadCoordinatorState(workDir)
	require.NoError(t, err)
	require.EqualValues(t, 1, st.Tick)

	require.NoError(t, d.tickOnce(context.Background(), now.Add(time.Second)))
	st, err = ReadCoordinatorState(workDir)
	require.NoError(t, err)
	require.EqualValues(t, 2, st.Tick)
}

func TestRunDrainsOnRequestShutdown(t *testing.T) {
	d, workDir := newTestDaemon(t, nil)

	g := graph.New()
	mustSaveGraph(t, d, g)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- d.Run(ctx) }()

	// Let the daemon start its IPC listener and write service state before
	// asking it to shut down.
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if _, err := ReadServiceState(workDir); err == nil {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}

	require.NoError(t, d.RequestShutdown())

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(4 * time.Second):
		t.Fatal("Run did not return after shutdown request")
	}

	_, err := ReadServiceState(workDir)
	require.Error(t, err, "service state must be removed after clean shutdown")
}

// unusedPID returns a PID that is virtually guaranteed not to exist, for
// exercising the PID-gone branch of detectFailures deterministically.
func unusedPID() int { return 1 << 30 }
