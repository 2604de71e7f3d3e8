package federation

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/antigravity-dev/workgraphd/internal/identity"
	"github.com/antigravity-dev/workgraphd/internal/wgerr"
)

// ResolveStore resolves source, a filesystem path to a peer's workgraph
// root, to that peer's identity store. The identity/ subdirectory (and its
// per-kind children) is created if missing, matching the local Init
// convention — resolving a peer for read never fails just because its
// identity store hasn't been initialised yet.
func ResolveStore(source string) (identity.Dirs, error) {
	abs, err := resolvePath(source)
	if err != nil {
		return identity.Dirs{}, err
	}
	return identity.Init(filepath.Join(abs, "identity"))
}

// ResolveWithRemotes resolves source against workgraphDir's federation.yaml
// named remotes first, falling back to treating source as a bare path.
func ResolveWithRemotes(source, workgraphDir string) (identity.Dirs, error) {
	cfg, err := LoadConfig(workgraphDir)
	if err != nil {
		return identity.Dirs{}, err
	}
	if remote, ok := cfg.Remotes[source]; ok {
		return ResolveStore(remote.Path)
	}
	return ResolveStore(source)
}

func resolvePath(pathStr string) (string, error) {
	expanded := pathStr
	if strings.HasPrefix(pathStr, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", wgerr.Wrap(wgerr.IOFailure, err, "determine home directory")
		}
		expanded = home + pathStr[1:]
	}
	if !filepath.IsAbs(expanded) {
		wd, err := os.Getwd()
		if err != nil {
			return "", wgerr.Wrap(wgerr.IOFailure, err, "resolve working directory")
		}
		expanded = filepath.Join(wd, expanded)
	}
	return expanded, nil
}

// Resolver implements internal/function's PeerResolver interface so
// trace-function `--from peer:id` sources can be resolved without that
// package importing this one. A caller (the daemon, an IPC handler) builds
// one of these around its own workgraph root and passes it down.
type Resolver struct {
	WorkgraphDir string
}

// ResolveFunctionsDir resolves peerName to its functions directory via this
// workgraph root's federation.yaml.
func (r Resolver) ResolveFunctionsDir(peerName string) (string, error) {
	cfg, err := LoadConfig(r.WorkgraphDir)
	if err != nil {
		return "", err
	}
	remote, ok := cfg.Remotes[peerName]
	if !ok {
		return "", wgerr.New(wgerr.NotFound, "no remote named '%s' in federation.yaml", peerName)
	}
	abs, err := resolvePath(remote.Path)
	if err != nil {
		return "", err
	}
	return filepath.Join(abs, "functions"), nil
}
