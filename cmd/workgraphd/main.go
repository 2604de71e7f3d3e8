// Command workgraphd runs the scheduling daemon: it loads a workgraph
// directory's config, graph, identity store, and agent registry, then ticks
// the loop described in spec.md §4.5/§5 until signalled to stop. It wires
// the daemon only — the interactive CLI, evaluator subprocess, and executor
// binaries are external collaborators per SPEC_FULL.md §0.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/antigravity-dev/workgraphd/internal/config"
	"github.com/antigravity-dev/workgraphd/internal/daemon"
	"github.com/antigravity-dev/workgraphd/internal/dispatch"
	"github.com/antigravity-dev/workgraphd/internal/federation"
	"github.com/antigravity-dev/workgraphd/internal/identity"
	"github.com/antigravity-dev/workgraphd/internal/models"
	"github.com/antigravity-dev/workgraphd/internal/store"
)

func configureLogger(logLevel string, useDev bool) *slog.Logger {
	level := slog.LevelInfo
	switch strings.ToLower(strings.TrimSpace(logLevel)) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	opts := &slog.HandlerOptions{Level: level}
	if useDev {
		return slog.New(slog.NewTextHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, opts))
}

func main() {
	workgraphDir := flag.String("dir", ".workgraph", "path to the workgraph directory")
	dev := flag.Bool("dev", false, "use text log format (default is JSON)")
	logLevel := flag.String("log-level", "info", "log level: debug, info, warn, error")
	spawnRate := flag.Float64("spawn-rate", 2, "maximum agent spawns per second")
	spawnBurst := flag.Int("spawn-burst", 4, "burst size for the spawn rate limiter")
	flag.Parse()

	logger := configureLogger(*logLevel, *dev)
	slog.SetDefault(logger)

	dir := *workgraphDir
	logger.Info("workgraphd starting", "dir", dir)

	cfgPath := filepath.Join(dir, "config.toml")
	cfgManager, err := config.NewManager(cfgPath, logger.With("component", "config"))
	if err != nil {
		logger.Error("failed to load config", "path", cfgPath, "error", err)
		os.Exit(1)
	}

	watchStop := make(chan struct{})
	go func() {
		if err := cfgManager.Watch(watchStop); err != nil {
			logger.Error("config watcher stopped", "error", err)
		}
	}()
	defer close(watchStop)

	identityDirs, err := identity.Init(filepath.Join(dir, "identity"))
	if err != nil {
		logger.Error("failed to initialise identity store", "error", err)
		os.Exit(1)
	}

	index, err := identity.OpenIndex(filepath.Join(dir, "identity", ".index.sqlite"))
	if err != nil {
		logger.Warn("identity prefix index unavailable, falling back to directory scans", "error", err)
	} else {
		defer index.Close()
		if err := index.Rebuild(identityDirs); err != nil {
			logger.Warn("identity prefix index rebuild failed, falling back to directory scans", "error", err)
		} else {
			identityDirs.Index = index
		}
	}

	modelRegistry, err := models.Load(dir)
	if err != nil {
		logger.Error("failed to load model registry", "error", err)
		os.Exit(1)
	}

	executors := map[string]dispatch.Executor{
		"shell": dispatch.ShellExecutor{},
	}
	if dockerExec, err := dispatch.NewDockerExecutor(); err != nil {
		logger.Warn("docker executor unavailable, docker-backed tasks will fail to spawn", "error", err)
	} else {
		executors["docker"] = dockerExec
	}

	deps := daemon.Deps{
		WorkgraphDir:      dir,
		Config:            cfgManager,
		GraphStore:        store.NewGraphStore(filepath.Join(dir, "graph.jsonl")),
		Provenance:        store.NewProvenanceLog(dir, cfgManager.Get().Log.RotationThreshold),
		Identity:          identityDirs,
		Models:            modelRegistry,
		Executors:         executors,
		ExecutorConfigDir: filepath.Join(dir, "executors"),
		OutputDir:         filepath.Join(dir, "output"),
		WorkDir:           filepath.Join(dir, "runs"),
		EvaluatorBin:      "workgraph-evaluate",
		Limiter:           dispatch.NewSpawnLimiter(*spawnRate, *spawnBurst),
		FederationOptions: federation.TransferOptions{},
		Logger:            logger.With("component", "daemon"),
	}

	d := daemon.New(deps)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("received signal, shutting down", "signal", sig)
		cancel()
	}()

	if err := d.Run(ctx); err != nil && err != context.Canceled {
		logger.Error("daemon exited with error", "error", err)
		os.Exit(1)
	}
	logger.Info("workgraphd stopped")
}
