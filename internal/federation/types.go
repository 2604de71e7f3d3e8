// Package federation lets one workgraph root pull and merge identity
// entities (roles, objectives, agents) and trace functions from another —
// a peer checked out at an arbitrary filesystem path, named for convenience
// in federation.yaml, or addressed directly by path.
package federation

import "time"

// Remote is one named peer entry in federation.yaml. Path points at the
// peer's workgraph root (the directory that itself contains identity/ and
// functions/), not at either subdirectory directly.
type Remote struct {
	Path        string     `yaml:"path"`
	Description string     `yaml:"description,omitempty"`
	LastSync    *time.Time `yaml:"last_sync,omitempty"`
}

// Config is the federation.yaml document: named remotes this workgraph
// root knows about.
type Config struct {
	Remotes map[string]Remote `yaml:"remotes,omitempty"`
}

// ConfigFileName is federation.yaml's name within a workgraph root.
const ConfigFileName = "federation.yaml"
