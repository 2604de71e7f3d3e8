package federation

import (
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/antigravity-dev/workgraphd/internal/wgerr"
)

func configPath(workgraphDir string) string {
	return filepath.Join(workgraphDir, ConfigFileName)
}

// LoadConfig reads federation.yaml from workgraphDir. A missing file is not
// an error — it means no remotes are configured yet.
func LoadConfig(workgraphDir string) (Config, error) {
	raw, err := os.ReadFile(configPath(workgraphDir))
	if err != nil {
		if os.IsNotExist(err) {
			return Config{}, nil
		}
		return Config{}, wgerr.Wrap(wgerr.IOFailure, err, "read federation config")
	}
	var cfg Config
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return Config{}, wgerr.Wrap(wgerr.ParseFailure, err, "parse federation config")
	}
	return cfg, nil
}

// SaveConfig writes federation.yaml to workgraphDir, creating the directory
// if needed.
func SaveConfig(workgraphDir string, cfg Config) error {
	if err := os.MkdirAll(workgraphDir, 0o755); err != nil {
		return wgerr.Wrap(wgerr.IOFailure, err, "create workgraph dir %s", workgraphDir)
	}
	out, err := yaml.Marshal(cfg)
	if err != nil {
		return wgerr.Wrap(wgerr.ParseFailure, err, "marshal federation config")
	}
	if err := os.WriteFile(configPath(workgraphDir), out, 0o644); err != nil {
		return wgerr.Wrap(wgerr.IOFailure, err, "write federation config")
	}
	return nil
}

// TouchRemoteSync stamps remoteName's LastSync in workgraphDir's
// federation.yaml. A remoteName that isn't a named remote (e.g. a bare
// path source) is a silent no-op — only named remotes track sync history.
func TouchRemoteSync(workgraphDir, remoteName string, now time.Time) error {
	cfg, err := LoadConfig(workgraphDir)
	if err != nil {
		return err
	}
	remote, ok := cfg.Remotes[remoteName]
	if !ok {
		return nil
	}
	remote.LastSync = &now
	cfg.Remotes[remoteName] = remote
	return SaveConfig(workgraphDir, cfg)
}
