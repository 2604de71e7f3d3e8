// Package config loads and validates workgraphd's TOML configuration:
// the coordinator tick loop, agent defaults, identity pipeline policy,
// provenance log rotation, replay retention, and the project root itself,
// plus the additive daemon/federation sections for metrics and scheduled
// auto-sync. Layout and defaults follow spec.md §6.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/antigravity-dev/workgraphd/internal/wgerr"
)

// Duration is a time.Duration that unmarshals from TOML strings like "60s"
// or "2m", the same idiom the teacher's config package uses.
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", string(text), err)
	}
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// CoordinatorConfig drives the daemon's tick loop (spec.md §4.5).
type CoordinatorConfig struct {
	Executor     string   `toml:"executor"`
	MaxAgents    int      `toml:"max_agents"`
	PollInterval Duration `toml:"poll_interval"`
}

// AgentConfig is applied to every spawned worker unless a task overrides it.
type AgentConfig struct {
	HeartbeatTimeout Duration `toml:"heartbeat_timeout"`
	DefaultModel     string   `toml:"default_model"`
}

// IdentityConfig controls the reward/assignment pipeline's automation.
type IdentityConfig struct {
	EvaluatorModel      string `toml:"evaluator_model"`
	AssignerModel       string `toml:"assigner_model"`
	AutoAssign          bool   `toml:"auto_assign"`
	AutoEvaluate        bool   `toml:"auto_evaluate"`
	RetentionHeuristics bool   `toml:"retention_heuristics"`
}

// LogConfig controls provenance log rotation (internal/store).
type LogConfig struct {
	RotationThreshold int64 `toml:"rotation_threshold"`
}

// ReplayConfig controls how much done-task history replay retains.
type ReplayConfig struct {
	KeepDoneThreshold int `toml:"keep_done_threshold"`
}

// ProjectConfig names the workgraph root this configuration belongs to.
type ProjectConfig struct {
	Name string `toml:"name"`
	Root string `toml:"root"`
}

// DaemonConfig holds the additive observability/lifecycle knobs SPEC_FULL.md
// §8 adds on top of spec.md's daemon description.
type DaemonConfig struct {
	MetricsBind     string   `toml:"metrics_bind"`
	ShutdownTimeout Duration `toml:"shutdown_timeout"`
}

// FederationConfig holds the additive scheduling/notification knobs
// SPEC_FULL.md §12 adds on top of spec.md's federation description.
type FederationConfig struct {
	NATSURL      string `toml:"nats_url"`
	AutoSyncCron string `toml:"auto_sync_cron"`
}

// Config is the full root of config.toml.
type Config struct {
	Coordinator CoordinatorConfig `toml:"coordinator"`
	Agent       AgentConfig       `toml:"agent"`
	Identity    IdentityConfig    `toml:"identity"`
	Log         LogConfig         `toml:"log"`
	Replay      ReplayConfig      `toml:"replay"`
	Project     ProjectConfig     `toml:"project"`
	Daemon      DaemonConfig      `toml:"daemon"`
	Federation  FederationConfig  `toml:"federation"`
}

// Default returns the config a fresh `.workgraph/` gets before any operator
// edits config.toml, matching the test defaults spec.md §4.5 calls out
// (~2s poll interval).
func Default() Config {
	return Config{
		Coordinator: CoordinatorConfig{
			Executor:     "shell",
			MaxAgents:    4,
			PollInterval: Duration{2 * time.Second},
		},
		Agent: AgentConfig{
			HeartbeatTimeout: Duration{60 * time.Second},
			DefaultModel:     "anthropic/claude-sonnet-4-6",
		},
		Identity: IdentityConfig{
			EvaluatorModel: "anthropic/claude-sonnet-4-6",
			AssignerModel:  "anthropic/claude-sonnet-4-6",
			AutoAssign:     true,
			AutoEvaluate:   true,
		},
		Log: LogConfig{
			RotationThreshold: 10 << 20,
		},
		Replay: ReplayConfig{
			KeepDoneThreshold: 500,
		},
		Daemon: DaemonConfig{
			ShutdownTimeout: Duration{15 * time.Second},
		},
	}
}

// Load reads config.toml at path, starting from Default() so that fields
// the file doesn't set keep their defaults rather than zero values. A
// missing file is not an error — it returns the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return Config{}, wgerr.Wrap(wgerr.ParseFailure, err, "parse config %s", path)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Save writes cfg to path as TOML.
func Save(path string, cfg Config) error {
	f, err := os.Create(path)
	if err != nil {
		return wgerr.Wrap(wgerr.IOFailure, err, "create config %s", path)
	}
	defer f.Close()
	if err := toml.NewEncoder(f).Encode(cfg); err != nil {
		return wgerr.Wrap(wgerr.ParseFailure, err, "encode config")
	}
	return nil
}

// Validate rejects configurations the daemon cannot run under.
func (c Config) Validate() error {
	if c.Coordinator.MaxAgents <= 0 {
		return wgerr.New(wgerr.Validation, "coordinator.max_agents must be positive, got %d", c.Coordinator.MaxAgents)
	}
	if c.Coordinator.PollInterval.Duration <= 0 {
		return wgerr.New(wgerr.Validation, "coordinator.poll_interval must be positive")
	}
	if c.Agent.HeartbeatTimeout.Duration <= 0 {
		return wgerr.New(wgerr.Validation, "agent.heartbeat_timeout must be positive")
	}
	switch c.Coordinator.Executor {
	case "shell", "docker", "claude", "":
	default:
		return wgerr.New(wgerr.Validation, "coordinator.executor %q is not a known backend", c.Coordinator.Executor)
	}
	return nil
}

// Clone returns an independent copy — every field is a value type (no
// shared slices or maps), so a plain struct copy suffices.
func (c Config) Clone() Config { return c }
