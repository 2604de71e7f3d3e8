package config

import (
	"path/filepath"
	"testing"
	"time"
)

func TestLoadMissingReturnsDefault(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "config.toml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	want := Default()
	if cfg.Coordinator.MaxAgents != want.Coordinator.MaxAgents {
		t.Fatalf("MaxAgents = %d, want %d", cfg.Coordinator.MaxAgents, want.Coordinator.MaxAgents)
	}
	if cfg.Agent.DefaultModel != want.Agent.DefaultModel {
		t.Fatalf("DefaultModel = %q, want %q", cfg.Agent.DefaultModel, want.Agent.DefaultModel)
	}
}

func TestSaveAndLoadRoundtrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")

	cfg := Default()
	cfg.Coordinator.MaxAgents = 9
	cfg.Coordinator.Executor = "docker"
	cfg.Coordinator.PollInterval = Duration{5 * time.Second}
	cfg.Project.Name = "example"
	cfg.Daemon.MetricsBind = ":9090"
	cfg.Federation.NATSURL = "nats://localhost:4222"

	if err := Save(path, cfg); err != nil {
		t.Fatalf("Save: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.Coordinator.MaxAgents != 9 {
		t.Fatalf("MaxAgents = %d, want 9", loaded.Coordinator.MaxAgents)
	}
	if loaded.Coordinator.Executor != "docker" {
		t.Fatalf("Executor = %q, want docker", loaded.Coordinator.Executor)
	}
	if loaded.Coordinator.PollInterval.Duration != 5*time.Second {
		t.Fatalf("PollInterval = %v, want 5s", loaded.Coordinator.PollInterval.Duration)
	}
	if loaded.Project.Name != "example" {
		t.Fatalf("Project.Name = %q, want example", loaded.Project.Name)
	}
	if loaded.Daemon.MetricsBind != ":9090" {
		t.Fatalf("Daemon.MetricsBind = %q, want :9090", loaded.Daemon.MetricsBind)
	}
	if loaded.Federation.NATSURL != "nats://localhost:4222" {
		t.Fatalf("Federation.NATSURL = %q", loaded.Federation.NATSURL)
	}
}

func TestValidateRejectsBadConfig(t *testing.T) {
	cfg := Default()
	cfg.Coordinator.MaxAgents = 0
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected error for max_agents=0")
	}

	cfg = Default()
	cfg.Coordinator.PollInterval = Duration{0}
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected error for zero poll_interval")
	}

	cfg = Default()
	cfg.Coordinator.Executor = "nonsense"
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected error for unknown executor")
	}
}

func TestDurationTextRoundtrip(t *testing.T) {
	var d Duration
	if err := d.UnmarshalText([]byte("90s")); err != nil {
		t.Fatalf("UnmarshalText: %v", err)
	}
	if d.Duration != 90*time.Second {
		t.Fatalf("Duration = %v, want 90s", d.Duration)
	}
	text, err := d.MarshalText()
	if err != nil {
		t.Fatalf("MarshalText: %v", err)
	}
	if string(text) != "1m30s" {
		t.Fatalf("MarshalText = %q", text)
	}
}

func TestCloneIsIndependent(t *testing.T) {
	cfg := Default()
	clone := cfg.Clone()
	clone.Coordinator.MaxAgents = 100
	if cfg.Coordinator.MaxAgents == 100 {
		t.Fatalf("Clone shared state with original")
	}
}
