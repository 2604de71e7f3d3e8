// Package registry tracks running worker agents: PID, assigned task,
// executor kind, heartbeat, and status. It lives at
// <workgraph_dir>/service/registry.json and is the daemon's sole source of
// truth for "who is alive right now".
package registry

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/antigravity-dev/workgraphd/internal/wgerr"
)

// Status is an agent's lifecycle state within the registry.
type Status string

const (
	StatusStarting Status = "starting"
	StatusWorking  Status = "working"
	StatusIdle     Status = "idle"
	StatusStopping Status = "stopping"
	StatusDone     Status = "done"
	StatusFailed   Status = "failed"
	StatusDead     Status = "dead"
)

// Entry is one agent's registry record.
type Entry struct {
	ID            string    `json:"id"`
	PID           int       `json:"pid"`
	TaskID        string    `json:"task_id"`
	Executor      string    `json:"executor"`
	StartedAt     time.Time `json:"started_at"`
	LastHeartbeat time.Time `json:"last_heartbeat"`
	Status        Status    `json:"status"`
	OutputFile    string    `json:"output_file"`
}

// IsAlive reports whether the entry is in a status the daemon still expects
// forward progress from.
func (e Entry) IsAlive() bool {
	switch e.Status {
	case StatusStarting, StatusWorking, StatusIdle:
		return true
	default:
		return false
	}
}

// SecondsSinceHeartbeat returns the elapsed time since LastHeartbeat, as of now.
func (e Entry) SecondsSinceHeartbeat(now time.Time) float64 {
	return now.Sub(e.LastHeartbeat).Seconds()
}

// Registry is the full agent map plus the monotonic id counter.
type Registry struct {
	Agents      map[string]Entry `json:"agents"`
	NextAgentID uint32           `json:"next_agent_id"`
}

// New returns an empty registry with the counter seeded at 1.
func New() *Registry {
	return &Registry{Agents: make(map[string]Entry), NextAgentID: 1}
}

func registryPath(workgraphDir string) string {
	return filepath.Join(workgraphDir, "service", "registry.json")
}

// Load reads the registry from disk, returning a fresh empty one if the
// file doesn't exist yet.
func Load(workgraphDir string) (*Registry, error) {
	path := registryPath(workgraphDir)
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return New(), nil
		}
		return nil, wgerr.Wrap(wgerr.IOFailure, err, "read registry %s", path)
	}
	var r Registry
	if err := json.Unmarshal(raw, &r); err != nil {
		return nil, wgerr.Wrap(wgerr.ParseFailure, err, "parse registry %s", path)
	}
	if r.Agents == nil {
		r.Agents = make(map[string]Entry)
	}
	return &r, nil
}

// Save writes the registry atomically (write-to-temp-then-rename).
func (r *Registry) Save(workgraphDir string) error {
	serviceDir := filepath.Join(workgraphDir, "service")
	if err := os.MkdirAll(serviceDir, 0o755); err != nil {
		return wgerr.Wrap(wgerr.IOFailure, err, "create service dir %s", serviceDir)
	}

	raw, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return wgerr.Wrap(wgerr.ParseFailure, err, "marshal registry")
	}

	path := registryPath(workgraphDir)
	tmp := filepath.Join(serviceDir, ".registry.json.tmp")
	if err := os.WriteFile(tmp, raw, 0o644); err != nil {
		return wgerr.Wrap(wgerr.IOFailure, err, "write temp registry file")
	}
	if err := os.Rename(tmp, path); err != nil {
		return wgerr.Wrap(wgerr.IOFailure, err, "rename temp registry file")
	}
	return nil
}

// Register allocates the next agent handle and inserts a Working entry for it.
func (r *Registry) Register(pid int, taskID, executor, outputFile string, now time.Time) string {
	id := fmt.Sprintf("agent-%d", r.NextAgentID)
	r.NextAgentID++
	r.Agents[id] = Entry{
		ID: id, PID: pid, TaskID: taskID, Executor: executor,
		StartedAt: now, LastHeartbeat: now, Status: StatusWorking, OutputFile: outputFile,
	}
	return id
}

// Heartbeat bumps an entry's LastHeartbeat. Reports false if the handle is unknown.
func (r *Registry) Heartbeat(id string, now time.Time) bool {
	e, ok := r.Agents[id]
	if !ok {
		return false
	}
	e.LastHeartbeat = now
	r.Agents[id] = e
	return true
}

// SetStatus updates an entry's status. Reports false if the handle is unknown.
func (r *Registry) SetStatus(id string, status Status) bool {
	e, ok := r.Agents[id]
	if !ok {
		return false
	}
	e.Status = status
	r.Agents[id] = e
	return true
}

// Unregister removes an entry, returning it if present.
func (r *Registry) Unregister(id string) (Entry, bool) {
	e, ok := r.Agents[id]
	if ok {
		delete(r.Agents, id)
	}
	return e, ok
}

// AgentByTask returns the first entry (in map order) assigned to taskID.
func (r *Registry) AgentByTask(taskID string) (Entry, bool) {
	for _, e := range r.Agents {
		if e.TaskID == taskID {
			return e, true
		}
	}
	return Entry{}, false
}

// AliveEntries returns every entry currently considered alive.
func (r *Registry) AliveEntries() []Entry {
	var out []Entry
	for _, e := range r.Agents {
		if e.IsAlive() {
			out = append(out, e)
		}
	}
	return out
}

// ActiveCount is the number of alive entries.
func (r *Registry) ActiveCount() int { return len(r.AliveEntries()) }

// FindDead returns every alive entry whose heartbeat is older than timeout.
func (r *Registry) FindDead(timeout time.Duration, now time.Time) []Entry {
	var out []Entry
	for _, e := range r.Agents {
		if e.IsAlive() && now.Sub(e.LastHeartbeat) > timeout {
			out = append(out, e)
		}
	}
	return out
}

// MarkDead sets status = dead on every alive entry whose heartbeat is older
// than timeout, returning their ids.
func (r *Registry) MarkDead(timeout time.Duration, now time.Time) []string {
	var ids []string
	for id, e := range r.Agents {
		if e.IsAlive() && now.Sub(e.LastHeartbeat) > timeout {
			e.Status = StatusDead
			r.Agents[id] = e
			ids = append(ids, id)
		}
	}
	return ids
}
