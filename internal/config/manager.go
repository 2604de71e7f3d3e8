package config

import (
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/antigravity-dev/workgraphd/internal/wgerr"
)

// Manager serves the current Config under a RWMutex and, once Watch is
// called, hot-reloads it whenever config.toml changes on disk. Readers call
// Get; nothing outside this package ever mutates the returned value.
type Manager struct {
	mu     sync.RWMutex
	path   string
	cfg    Config
	logger *slog.Logger
}

// NewManager loads path once and returns a Manager serving that snapshot.
func NewManager(path string, logger *slog.Logger) (*Manager, error) {
	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{path: path, cfg: cfg, logger: logger}, nil
}

// Get returns the current configuration snapshot.
func (m *Manager) Get() Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.cfg.Clone()
}

// Reload re-reads config.toml and, if it parses and validates, swaps it in.
// A reload that fails validation keeps serving the prior snapshot.
func (m *Manager) Reload() error {
	cfg, err := Load(m.path)
	if err != nil {
		return err
	}
	m.mu.Lock()
	prev := m.cfg
	m.cfg = cfg
	m.mu.Unlock()
	if cfg.Project.Root != prev.Project.Root && prev.Project.Root != "" {
		m.logger.Warn("config.toml changed project.root; restart the daemon to apply it",
			"old", prev.Project.Root, "new", cfg.Project.Root)
	}
	return nil
}

// Watch watches the directory containing config.toml and reloads on write
// or create events, the same debounced-fsnotify pattern the gateway's config
// watcher uses: react to the raw fs event, then sleep briefly before
// re-reading, since editors commonly emit several events per save.
func (m *Manager) Watch(stop <-chan struct{}) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return wgerr.Wrap(wgerr.IOFailure, err, "create config watcher")
	}

	dir := filepath.Dir(m.path)
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return wgerr.Wrap(wgerr.IOFailure, err, "watch config dir %s", dir)
	}

	go func() {
		defer watcher.Close()
		var debounce *time.Timer
		for {
			select {
			case <-stop:
				if debounce != nil {
					debounce.Stop()
				}
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != filepath.Clean(m.path) {
					continue
				}
				if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
					continue
				}
				if debounce != nil {
					debounce.Stop()
				}
				debounce = time.AfterFunc(200*time.Millisecond, func() {
					if err := m.Reload(); err != nil {
						m.logger.Error("config reload failed", "error", err)
						return
					}
					m.logger.Info("config reloaded", "path", m.path)
				})
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				m.logger.Error("config watcher error", "error", err)
			}
		}
	}()
	return nil
}
