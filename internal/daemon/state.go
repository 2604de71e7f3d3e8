package daemon

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/antigravity-dev/workgraphd/internal/wgerr"
)

// ServiceState is the contents of service/state.json: the running daemon's
// PID and the IPC socket path it's listening on, so operator-facing
// commands can find it.
type ServiceState struct {
	PID        int    `json:"pid"`
	SocketPath string `json:"socket_path"`
}

func statePath(workgraphDir string) string {
	return filepath.Join(workgraphDir, "service", "state.json")
}

// WriteServiceState records the running daemon's PID and socket path.
func WriteServiceState(workgraphDir string, st ServiceState) error {
	dir := filepath.Join(workgraphDir, "service")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return wgerr.Wrap(wgerr.IOFailure, err, "create service dir %s", dir)
	}
	raw, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return wgerr.Wrap(wgerr.ParseFailure, err, "marshal service state")
	}
	if err := os.WriteFile(statePath(workgraphDir), raw, 0o644); err != nil {
		return wgerr.Wrap(wgerr.IOFailure, err, "write service state")
	}
	return nil
}

// ReadServiceState loads service/state.json, used by operator commands to
// locate a running daemon's IPC socket.
func ReadServiceState(workgraphDir string) (ServiceState, error) {
	raw, err := os.ReadFile(statePath(workgraphDir))
	if err != nil {
		if os.IsNotExist(err) {
			return ServiceState{}, wgerr.New(wgerr.NotInitialised, "no daemon is running (service/state.json not found)")
		}
		return ServiceState{}, wgerr.Wrap(wgerr.IOFailure, err, "read service state")
	}
	var st ServiceState
	if err := json.Unmarshal(raw, &st); err != nil {
		return ServiceState{}, wgerr.Wrap(wgerr.ParseFailure, err, "parse service state")
	}
	return st, nil
}

// RemoveServiceState deletes service/state.json on clean shutdown so a
// stale file never points an operator command at a dead daemon.
func RemoveServiceState(workgraphDir string) error {
	if err := os.Remove(statePath(workgraphDir)); err != nil && !os.IsNotExist(err) {
		return wgerr.Wrap(wgerr.IOFailure, err, "remove service state")
	}
	return nil
}

// CoordinatorState is the daemon's self-heartbeat: how many ticks it has
// run and when the last one completed, written to
// service/coordinator-state.json after every tick so an operator (or a
// liveness probe) can tell the daemon itself is still making progress.
type CoordinatorState struct {
	Tick     uint64    `json:"tick"`
	LastTick time.Time `json:"last_tick"`
}

func coordinatorStatePath(workgraphDir string) string {
	return filepath.Join(workgraphDir, "service", "coordinator-state.json")
}

// WriteCoordinatorState persists the tick counter and timestamp atomically.
func WriteCoordinatorState(workgraphDir string, st CoordinatorState) error {
	dir := filepath.Join(workgraphDir, "service")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return wgerr.Wrap(wgerr.IOFailure, err, "create service dir %s", dir)
	}
	raw, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return wgerr.Wrap(wgerr.ParseFailure, err, "marshal coordinator state")
	}
	path := coordinatorStatePath(workgraphDir)
	tmp := filepath.Join(dir, ".coordinator-state.json.tmp")
	if err := os.WriteFile(tmp, raw, 0o644); err != nil {
		return wgerr.Wrap(wgerr.IOFailure, err, "write temp coordinator state")
	}
	if err := os.Rename(tmp, path); err != nil {
		return wgerr.Wrap(wgerr.IOFailure, err, "rename temp coordinator state")
	}
	return nil
}

// ReadCoordinatorState loads service/coordinator-state.json, returning a
// zero state if the daemon has never completed a tick.
func ReadCoordinatorState(workgraphDir string) (CoordinatorState, error) {
	raw, err := os.ReadFile(coordinatorStatePath(workgraphDir))
	if err != nil {
		if os.IsNotExist(err) {
			return CoordinatorState{}, nil
		}
		return CoordinatorState{}, wgerr.Wrap(wgerr.IOFailure, err, "read coordinator state")
	}
	var st CoordinatorState
	if err := json.Unmarshal(raw, &st); err != nil {
		return CoordinatorState{}, wgerr.Wrap(wgerr.ParseFailure, err, "parse coordinator state")
	}
	return st, nil
}
