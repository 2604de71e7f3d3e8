// Package daemon implements the scheduling daemon of spec.md §4.5 and §5:
// a single-threaded cooperative tick loop, driven by a poll timer and a
// local IPC socket, that detects dead agents, computes the ready set,
// spawns workers under a concurrency cap, and records its own heartbeat.
package daemon

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"sync"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/antigravity-dev/workgraphd/internal/config"
	"github.com/antigravity-dev/workgraphd/internal/dispatch"
	"github.com/antigravity-dev/workgraphd/internal/federation"
	"github.com/antigravity-dev/workgraphd/internal/graph"
	"github.com/antigravity-dev/workgraphd/internal/identity"
	"github.com/antigravity-dev/workgraphd/internal/ipc"
	"github.com/antigravity-dev/workgraphd/internal/models"
	"github.com/antigravity-dev/workgraphd/internal/registry"
	"github.com/antigravity-dev/workgraphd/internal/reward"
	"github.com/antigravity-dev/workgraphd/internal/store"
	"github.com/antigravity-dev/workgraphd/internal/wgerr"
)

// Deps wires every leaf package the tick loop needs. Daemon owns none of
// their lifecycles except what Run starts itself (the IPC listener, the
// optional metrics server, the optional NATS connection).
type Deps struct {
	WorkgraphDir      string
	Config            *config.Manager
	GraphStore        *store.GraphStore
	Provenance        *store.ProvenanceLog
	Identity          identity.Dirs
	Models            models.Registry
	Executors         map[string]dispatch.Executor // keyed by Config.Kind
	ExecutorConfigDir string
	OutputDir         string
	WorkDir           string
	EvaluatorBin      string
	Limiter           *dispatch.SpawnLimiter
	FederationOptions federation.TransferOptions
	Logger            *slog.Logger
}

// Daemon runs the tick loop described above. Construct with New, then call
// Run with a context whose cancellation (or an IPC "shutdown" command)
// triggers the drain described in spec.md §4.5's cancellation semantics.
type Daemon struct {
	deps    Deps
	metrics *metrics
	notify  *notifier
	logger  *slog.Logger

	statusMu sync.Mutex
	status   ipc.Status

	wakeCh     chan struct{}
	shutdownCh chan struct{}
	shutOnce   sync.Once
}

// New constructs a Daemon ready to Run.
func New(deps Deps) *Daemon {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	cfg := deps.Config.Get()
	return &Daemon{
		deps:       deps,
		metrics:    newMetrics(),
		notify:     newNotifier(cfg.Federation.NATSURL, deps.Logger),
		logger:     deps.Logger,
		wakeCh:     make(chan struct{}, 1),
		shutdownCh: make(chan struct{}),
	}
}

// NotifyGraphChanged implements ipc.Handler: wakes the tick loop immediately
// instead of waiting for the next poll tick.
func (d *Daemon) NotifyGraphChanged() error {
	select {
	case d.wakeCh <- struct{}{}:
	default:
	}
	return nil
}

// RequestShutdown implements ipc.Handler: begins the drain. Idempotent.
func (d *Daemon) RequestShutdown() error {
	d.shutOnce.Do(func() { close(d.shutdownCh) })
	return nil
}

// CurrentStatus implements ipc.Handler.
func (d *Daemon) CurrentStatus() (ipc.Status, error) {
	d.statusMu.Lock()
	defer d.statusMu.Unlock()
	return d.status, nil
}

func (d *Daemon) setStatus(st ipc.Status) {
	d.statusMu.Lock()
	d.status = st
	d.statusMu.Unlock()
}

// Run sweeps stale registry entries, starts the IPC listener and optional
// metrics server, then loops ticks until ctx is cancelled or a shutdown
// command arrives, at which point it drains alive agents before returning.
func (d *Daemon) Run(ctx context.Context) error {
	defer d.notify.close()

	if err := d.sweepStalePIDs(); err != nil {
		d.logger.Warn("startup registry sweep failed", "error", err)
	}

	srv, err := ipc.Listen(d.socketPath(), d, d.logger)
	if err != nil {
		return err
	}
	defer srv.Close()
	go func() {
		if err := srv.Serve(); err != nil {
			d.logger.Error("ipc server stopped", "error", err)
		}
	}()

	if err := WriteServiceState(d.deps.WorkgraphDir, ServiceState{PID: processPID(), SocketPath: srv.Addr()}); err != nil {
		return err
	}
	defer RemoveServiceState(d.deps.WorkgraphDir) //nolint:errcheck

	metricsCtx, cancelMetrics := context.WithCancel(ctx)
	defer cancelMetrics()
	d.metrics.serve(metricsCtx, d.deps.Config.Get().Daemon.MetricsBind)

	if schedule := d.deps.Config.Get().Federation.AutoSyncCron; schedule != "" {
		autoSync := federation.NewAutoSync(d.deps.WorkgraphDir, d.deps.Identity, d.deps.FederationOptions, d.logger)
		if err := autoSync.Start(schedule); err != nil {
			d.logger.Error("federation auto-sync: invalid cron schedule, disabling", "schedule", schedule, "error", err)
		} else {
			go autoSync.Run()
			defer autoSync.Stop()
		}
	}

	poll := d.deps.Config.Get().Coordinator.PollInterval.Duration
	if poll <= 0 {
		poll = 2 * time.Second
	}
	ticker := time.NewTicker(poll)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			d.drain()
			return ctx.Err()
		case <-d.shutdownCh:
			d.drain()
			return nil
		case <-ticker.C:
			d.runTick()
		case <-d.wakeCh:
			d.runTick()
			d.notify.publishGraphChanged(graphChangedEvent{Timestamp: time.Now()})
		}
	}
}

func (d *Daemon) socketPath() string {
	return d.deps.WorkgraphDir + "/service/wg.sock"
}

func (d *Daemon) runTick() {
	ctx, span := startTickSpan(context.Background())
	defer span.End()

	now := time.Now()
	if err := d.tickOnce(ctx, now); err != nil {
		d.logger.Error("tick failed", "error", err)
	}
	d.metrics.ticksTotal.Inc()
}

// tickOnce runs exactly one pass of spec.md §4.5's six steps.
func (d *Daemon) tickOnce(ctx context.Context, now time.Time) error {
	cfg := d.deps.Config.Get()

	// Steps 1-2: acquire the registry lock, detect dead agents, reset the
	// tasks of newly-dead entries to open. Graph completion detection
	// (process gone and its task carries Artifacts => done) lives in the same pass since both
	// need the registry lock held while they mutate agent status.
	locked, err := registry.LoadLocked(d.deps.WorkgraphDir)
	if err != nil {
		return err
	}
	g, err := d.deps.GraphStore.Load()
	if err != nil {
		locked.Release()
		return err
	}

	finished, dead := d.detectFailures(locked.Registry, g, cfg, now)
	d.metrics.deadAgents.Add(float64(len(dead)))

	if err := locked.Save(); err != nil {
		return err
	}
	if err := d.deps.GraphStore.Save(g); err != nil {
		return err
	}

	for _, taskID := range finished {
		d.onTaskFinished(g, taskID, cfg, now)
	}
	if len(finished) > 0 {
		if err := d.deps.GraphStore.Save(g); err != nil {
			return err
		}
	}

	// Step 3: reload the graph, picking up anything changed by loop firing
	// or any external edit made while the daemon held no lock on it.
	g, err = d.deps.GraphStore.Load()
	if err != nil {
		return err
	}
	g.RecomputeBlockedHints(now)

	// Step 4: compute the ready set.
	ready := g.ReadySet(now)
	d.metrics.readyTasks.Set(float64(len(ready)))

	// Step 5: reacquire the lock, compute available slots, spawn.
	locked, err = registry.LoadLocked(d.deps.WorkgraphDir)
	if err != nil {
		return err
	}
	aliveCount := locked.ActiveCount()
	slots := cfg.Coordinator.MaxAgents - aliveCount
	if slots > len(ready) {
		slots = len(ready)
	}
	var spawned int
	if slots > 0 {
		spawned, err = d.spawnReady(ctx, locked.Registry, g, ready[:slots], cfg, now)
		if err != nil {
			locked.Release()
			return err
		}
	}
	if err := locked.Save(); err != nil {
		return err
	}

	if err := d.deps.GraphStore.Save(g); err != nil {
		return err
	}

	// Step 6: persist the coordinator's own heartbeat.
	prev, _ := ReadCoordinatorState(d.deps.WorkgraphDir)
	tick := prev.Tick + 1
	if err := WriteCoordinatorState(d.deps.WorkgraphDir, CoordinatorState{Tick: tick, LastTick: now}); err != nil {
		return err
	}

	reg, err := registry.Load(d.deps.WorkgraphDir)
	if err != nil {
		return err
	}
	d.metrics.agentsAlive.Set(float64(reg.ActiveCount()))
	d.setStatus(ipc.Status{Tick: tick, LastTick: now, AliveAgents: reg.ActiveCount(), ReadyTasks: len(ready)})
	d.notify.publishTick(tickEvent{Tick: tick, Timestamp: now, AliveAgents: reg.ActiveCount(), ReadyTasks: len(ready), Spawned: spawned})

	return nil
}

// detectFailures implements step 2: PID-gone check, heartbeat-timeout
// mark_dead, and the open/done split on process exit described in the
// comment inside the loop below. Returns the ids of tasks whose process
// exited successfully (for loop/reward handling) and the registry ids
// marked dead.
func (d *Daemon) detectFailures(reg *registry.Registry, g *graph.Graph, cfg config.Config, now time.Time) (finishedTasks []string, deadIDs []string) {
	timeout := cfg.Agent.HeartbeatTimeout.Duration

	for id, entry := range reg.Agents {
		if !entry.IsAlive() {
			continue
		}
		if pidAlive(entry.PID) {
			continue
		}
		// Process is gone. Success is signalled by the task carrying
		// artifacts (populated by the worker before it exited); anything
		// else is a crash.
		if t, ok := g.GetTaskMut(entry.TaskID); ok && len(t.Artifacts) > 0 {
			reg.SetStatus(id, registry.StatusDone)
			finishedTasks = append(finishedTasks, entry.TaskID)
		} else {
			reg.SetStatus(id, registry.StatusDead)
			deadIDs = append(deadIDs, id)
			resetDeadTask(g, entry.TaskID, now)
			d.recordProvenance(store.ProvenanceEntry{Timestamp: now, Op: "agent_died", TaskID: entry.TaskID, Agent: id})
		}
	}

	for _, id := range reg.MarkDead(timeout, now) {
		entry := reg.Agents[id]
		deadIDs = append(deadIDs, id)
		resetDeadTask(g, entry.TaskID, now)
		d.recordProvenance(store.ProvenanceEntry{Timestamp: now, Op: "heartbeat_timeout", TaskID: entry.TaskID, Agent: id})
	}
	return finishedTasks, deadIDs
}

// recordProvenance appends to the provenance log if one is configured,
// logging (not failing the tick) on write error.
func (d *Daemon) recordProvenance(entry store.ProvenanceEntry) {
	if d.deps.Provenance == nil {
		return
	}
	if err := d.deps.Provenance.Append(entry); err != nil {
		d.logger.Warn("provenance append failed", "op", entry.Op, "error", err)
	}
}

// resetDeadTask clears assignment/artifacts on a dead agent's task and
// reopens it, preserving the log, per spec.md §4.5 step 2.
func resetDeadTask(g *graph.Graph, taskID string, now time.Time) {
	t, ok := g.GetTaskMut(taskID)
	if !ok {
		return
	}
	t.AppendLog("daemon", "agent died, resetting task to open", now)
	t.ClearForReactivation()
}

// onTaskFinished fires loop edges and, if configured, kicks off an async
// evaluation now that taskID's process has exited successfully. The task
// itself transitions to done here; loop firing may reopen it again.
func (d *Daemon) onTaskFinished(g *graph.Graph, taskID string, cfg config.Config, now time.Time) {
	t, ok := g.GetTaskMut(taskID)
	if !ok {
		return
	}
	t.Status = graph.StatusDone
	t.CompletedAt = &now
	t.AppendLog("daemon", "agent exited 0, artifacts present", now)
	d.recordProvenance(store.ProvenanceEntry{Timestamp: now, Op: "task_done", TaskID: taskID, Agent: t.AgentID})

	reactivated := g.FireLoops(taskID, now)
	for _, id := range reactivated {
		d.logger.Info("loop reactivated task", "task_id", id, "source", taskID)
	}

	if cfg.Identity.AutoEvaluate {
		taskCopy := t.Clone()
		go d.evaluateAsync(taskCopy, cfg, now)
	}
}

func (d *Daemon) evaluateAsync(task *graph.Task, cfg config.Config, now time.Time) {
	model := cfg.Identity.EvaluatorModel
	if model == "" {
		model = cfg.Agent.DefaultModel
	}
	_, warnings, err := reward.Evaluate(d.deps.Identity, d.deps.EvaluatorBin, model, task, now)
	if err != nil {
		d.logger.Error("auto-evaluate failed", "task_id", task.ID, "error", err)
		return
	}
	for _, w := range warnings {
		d.logger.Warn("auto-evaluate warning", "task_id", task.ID, "warning", w)
	}
}

// spawnReady spawns up to len(ready) tasks concurrently, bounded by
// available slots (len(ready) already reflects that bound), registering
// each resulting PID as its spawn returns. Concurrency is via errgroup, not
// unbounded goroutines, so a burst of ready tasks can't overrun the
// executor backend; registration itself still happens under the single
// registry lock the caller holds.
func (d *Daemon) spawnReady(ctx context.Context, reg *registry.Registry, g *graph.Graph, ready []*graph.Task, cfg config.Config, now time.Time) (int, error) {
	type result struct {
		task     *graph.Task
		spawned  dispatch.Spawned
		executor string
		err      error
	}
	results := make([]result, len(ready))

	eg, _ := errgroup.WithContext(ctx)
	eg.SetLimit(len(ready))
	for i, t := range ready {
		i, t := i, t
		eg.Go(func() error {
			live, ok := g.GetTaskMut(t.ID)
			if !ok {
				results[i] = result{task: t, err: wgerr.New(wgerr.NotFound, "task %s vanished between ready-set and spawn", t.ID)}
				return nil
			}
			if d.deps.Limiter != nil {
				if err := d.deps.Limiter.Wait(ctx); err != nil {
					results[i] = result{task: t, err: err}
					return nil
				}
			}
			spawned, execName, err := d.spawnOne(live, cfg, now)
			results[i] = result{task: live, spawned: spawned, executor: execName, err: err}
			return nil
		})
	}
	_ = eg.Wait()

	var count int
	for _, r := range results {
		if r.err != nil {
			d.logger.Error("spawn failed", "task_id", r.task.ID, "error", r.err)
			continue
		}
		agentID := reg.Register(r.spawned.PID, r.task.ID, r.executor, r.spawned.OutputFile, now)
		d.logger.Info("spawned agent", "agent_id", agentID, "task_id", r.task.ID, "pid", r.spawned.PID)
		d.recordProvenance(store.ProvenanceEntry{Timestamp: now, Op: "spawn", TaskID: r.task.ID, Agent: agentID, Detail: r.executor})
		count++
	}
	return count, nil
}

func (d *Daemon) spawnOne(t *graph.Task, cfg config.Config, now time.Time) (dispatch.Spawned, string, error) {
	_, span := startSpawnSpan(context.Background(), t.ID)
	defer span.End()

	if cfg.Identity.AutoAssign && t.AgentID == "" {
		if agent, ok := autoAssign(d.deps.Identity, t); ok {
			t.AgentID = agent.ID
		}
	}

	model := t.Model
	if model == "" {
		model = cfg.Agent.DefaultModel
	}
	if model == "" {
		if entry, ok := d.deps.Models.GetDefault(); ok {
			model = entry.ID
		}
	}

	executorName := t.ExecutorCommand
	if executorName == "" {
		executorName = cfg.Coordinator.Executor
	}
	if executorName == "" {
		executorName = "shell"
	}

	execCfg, err := dispatch.LoadConfig(d.deps.ExecutorConfigDir, executorName)
	if err != nil {
		return dispatch.Spawned{}, "", err
	}
	kind := execCfg.Kind
	if kind == "" {
		kind = "shell"
	}
	backend, ok := d.deps.Executors[kind]
	if !ok {
		return dispatch.Spawned{}, "", wgerr.New(wgerr.Validation, "no executor backend registered for kind %q", kind)
	}

	promptContext := t.Description
	workDir := d.deps.WorkDir + "/" + t.ID
	spawned, err := backend.Spawn(execCfg, t, model, promptContext, workDir, d.deps.OutputDir)
	if err != nil {
		return dispatch.Spawned{}, "", err
	}

	t.Status = graph.StatusInProgress
	t.StartedAt = &now
	t.AppendLog("daemon", "Spawned by coordinator --executor "+backend.Name()+" --model "+model, now)
	return spawned, backend.Name(), nil
}

// drain implements the shutdown cancellation semantics of spec.md §4.5:
// mark every alive entry stopping, wait for it to exit on its own, then
// force-kill survivors.
func (d *Daemon) drain() {
	locked, err := registry.LoadLocked(d.deps.WorkgraphDir)
	if err != nil {
		d.logger.Error("drain: load registry", "error", err)
		return
	}
	alive := locked.AliveEntries()
	for _, e := range alive {
		locked.SetStatus(e.ID, registry.StatusStopping)
	}
	if err := locked.Save(); err != nil {
		d.logger.Error("drain: save registry", "error", err)
	}
	if len(alive) == 0 {
		return
	}

	timeout := 15 * time.Second
	if cfg := d.deps.Config.Get(); cfg.Daemon.ShutdownTimeout.Duration > 0 {
		timeout = cfg.Daemon.ShutdownTimeout.Duration
	}
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if !anyAlivePID(alive) {
			break
		}
		time.Sleep(200 * time.Millisecond)
	}

	locked, err = registry.LoadLocked(d.deps.WorkgraphDir)
	if err != nil {
		d.logger.Error("drain: reload registry", "error", err)
		return
	}
	for _, e := range alive {
		if pidAlive(e.PID) {
			killPID(e.PID)
		}
		locked.Unregister(e.ID)
	}
	if err := locked.Save(); err != nil {
		d.logger.Error("drain: save registry after kill", "error", err)
	}
}

func anyAlivePID(entries []registry.Entry) bool {
	for _, e := range entries {
		if pidAlive(e.PID) {
			return true
		}
	}
	return false
}

// sweepStalePIDs runs the startup sweep spec.md §4.5's cancellation section
// requires: drop any registry entry whose PID no longer exists, so a crash
// between daemon restarts never leaves an orphaned "alive" entry behind.
func (d *Daemon) sweepStalePIDs() error {
	locked, err := registry.LoadLocked(d.deps.WorkgraphDir)
	if err != nil {
		return err
	}
	var removed []string
	for _, e := range locked.AliveEntries() {
		if !pidAlive(e.PID) {
			locked.Unregister(e.ID)
			removed = append(removed, e.ID)
		}
	}
	if len(removed) > 0 {
		d.logger.Info("startup sweep removed stale agents", "agents", removed)
	}
	return locked.Save()
}

func pidAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	err := syscall.Kill(pid, 0)
	if err == nil {
		return true
	}
	return !errors.Is(err, syscall.ESRCH)
}

func killPID(pid int) {
	syscall.Kill(pid, syscall.SIGKILL) //nolint:errcheck
}

func processPID() int { return os.Getpid() }
