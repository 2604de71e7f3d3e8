package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestManagerReload(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")

	cfg := Default()
	cfg.Coordinator.MaxAgents = 2
	if err := Save(path, cfg); err != nil {
		t.Fatalf("Save: %v", err)
	}

	mgr, err := NewManager(path, nil)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	if mgr.Get().Coordinator.MaxAgents != 2 {
		t.Fatalf("initial MaxAgents = %d, want 2", mgr.Get().Coordinator.MaxAgents)
	}

	cfg.Coordinator.MaxAgents = 7
	if err := Save(path, cfg); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := mgr.Reload(); err != nil {
		t.Fatalf("Reload: %v", err)
	}
	if mgr.Get().Coordinator.MaxAgents != 7 {
		t.Fatalf("MaxAgents after reload = %d, want 7", mgr.Get().Coordinator.MaxAgents)
	}
}

func TestManagerWatchPicksUpChanges(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")

	cfg := Default()
	cfg.Coordinator.MaxAgents = 3
	if err := Save(path, cfg); err != nil {
		t.Fatalf("Save: %v", err)
	}

	mgr, err := NewManager(path, nil)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}

	stop := make(chan struct{})
	defer close(stop)
	if err := mgr.Watch(stop); err != nil {
		t.Fatalf("Watch: %v", err)
	}

	cfg.Coordinator.MaxAgents = 11
	if err := Save(path, cfg); err != nil {
		t.Fatalf("Save: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if mgr.Get().Coordinator.MaxAgents == 11 {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatalf("config did not hot-reload within deadline, MaxAgents = %d", mgr.Get().Coordinator.MaxAgents)
}

func TestManagerReloadKeepsPriorOnInvalidConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")

	cfg := Default()
	if err := Save(path, cfg); err != nil {
		t.Fatalf("Save: %v", err)
	}

	mgr, err := NewManager(path, nil)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}

	if err := os.WriteFile(path, []byte("[coordinator]\nmax_agents = 0\n"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if err := mgr.Reload(); err == nil {
		t.Fatalf("expected Reload to reject invalid config")
	}
	if mgr.Get().Coordinator.MaxAgents != cfg.Coordinator.MaxAgents {
		t.Fatalf("Reload with invalid config mutated the served snapshot")
	}
}
