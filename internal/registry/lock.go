package registry

import (
	"os"
	"path/filepath"
	"syscall"

	"github.com/antigravity-dev/workgraphd/internal/wgerr"
)

// Locked wraps a Registry together with the exclusive file lock that was
// held while it was loaded. Release (or Save, which releases) must be
// called exactly once.
type Locked struct {
	*Registry
	workgraphDir string
	lockFile     *os.File
}

// LoadLocked acquires an exclusive lock on the registry's lock file, then
// loads the registry. The lock blocks until available — unlike the
// non-blocking instance lock in internal/dispatch, the registry is expected
// to be contended briefly by the daemon and CLI commands, not held for a
// process lifetime.
func LoadLocked(workgraphDir string) (*Locked, error) {
	serviceDir := filepath.Join(workgraphDir, "service")
	if err := os.MkdirAll(serviceDir, 0o755); err != nil {
		return nil, wgerr.Wrap(wgerr.IOFailure, err, "create service dir %s", serviceDir)
	}

	lockPath := filepath.Join(serviceDir, ".registry.lock")
	f, err := os.OpenFile(lockPath, os.O_CREATE|os.O_RDWR, 0o600)
	if err != nil {
		return nil, wgerr.Wrap(wgerr.IOFailure, err, "open lock file %s", lockPath)
	}

	if err := syscall.Flock(int(f.Fd()), syscall.LOCK_EX); err != nil {
		f.Close()
		return nil, wgerr.Wrap(wgerr.IOFailure, err, "acquire registry lock %s", lockPath)
	}

	r, err := Load(workgraphDir)
	if err != nil {
		releaseFlock(f)
		return nil, err
	}

	return &Locked{Registry: r, workgraphDir: workgraphDir, lockFile: f}, nil
}

// Save persists the registry and releases the lock. The Locked handle must
// not be used afterward.
func (l *Locked) Save() error {
	defer releaseFlock(l.lockFile)
	return l.Registry.Save(l.workgraphDir)
}

// Release drops the lock without saving, for read-only callers.
func (l *Locked) Release() {
	releaseFlock(l.lockFile)
}

func releaseFlock(f *os.File) {
	syscall.Flock(int(f.Fd()), syscall.LOCK_UN)
	f.Close()
}
