// Package store implements the on-disk persistence contract of spec.md
// §4.3: an append-only JSONL graph log with last-wins reconstruction, and a
// size-rotated provenance log of every mutating operation. Identity entity
// persistence lives in internal/identity, which owns the YAML per-kind
// directories directly.
package store

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/antigravity-dev/workgraphd/internal/graph"
	"github.com/antigravity-dev/workgraphd/internal/wgerr"
)

// GraphStore persists a graph.Graph as one JSON object per line, one line
// per task, at a fixed path.
type GraphStore struct {
	path string
}

// NewGraphStore returns a store bound to path (created on first Save).
func NewGraphStore(path string) *GraphStore {
	return &GraphStore{path: path}
}

// Load reconstructs a graph by reading every line with last-wins semantics
// per task id — a later line for the same id replaces an earlier one. A
// missing file yields an empty graph (first run).
func (s *GraphStore) Load() (*graph.Graph, error) {
	f, err := os.Open(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return graph.New(), nil
		}
		return nil, wgerr.Wrap(wgerr.IOFailure, err, "open graph log %s", s.path)
	}
	defer f.Close()

	latest := map[string]graph.Task{}
	order := []string{}
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var t graph.Task
		if err := json.Unmarshal(line, &t); err != nil {
			return nil, wgerr.Wrap(wgerr.ParseFailure, err, "parse graph log line")
		}
		if _, seen := latest[t.ID]; !seen {
			order = append(order, t.ID)
		}
		latest[t.ID] = t
	}
	if err := scanner.Err(); err != nil {
		return nil, wgerr.Wrap(wgerr.IOFailure, err, "scan graph log %s", s.path)
	}

	g := graph.New()
	for _, id := range order {
		g.AddTask(latest[id])
	}
	return g, nil
}

// Save rewrites the entire log under a temp name and renames over the
// original — atomic on POSIX. Acceptable because graphs are bounded in size
// relative to disk bandwidth and the daemon is the sole writer.
func (s *GraphStore) Save(g *graph.Graph) error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return wgerr.Wrap(wgerr.IOFailure, err, "create graph log dir %s", dir)
	}

	tmp := filepath.Join(dir, ".graph.jsonl.tmp")
	f, err := os.Create(tmp)
	if err != nil {
		return wgerr.Wrap(wgerr.IOFailure, err, "create temp graph log %s", tmp)
	}

	w := bufio.NewWriter(f)
	for _, t := range g.Tasks() {
		line, err := json.Marshal(t)
		if err != nil {
			f.Close()
			return wgerr.Wrap(wgerr.ParseFailure, err, "marshal task %s", t.ID)
		}
		if _, err := w.Write(line); err != nil {
			f.Close()
			return wgerr.Wrap(wgerr.IOFailure, err, "write task %s", t.ID)
		}
		if err := w.WriteByte('\n'); err != nil {
			f.Close()
			return wgerr.Wrap(wgerr.IOFailure, err, "write newline")
		}
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return wgerr.Wrap(wgerr.IOFailure, err, "flush temp graph log")
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return wgerr.Wrap(wgerr.IOFailure, err, "sync temp graph log")
	}
	if err := f.Close(); err != nil {
		return wgerr.Wrap(wgerr.IOFailure, err, "close temp graph log")
	}

	if err := os.Rename(tmp, s.path); err != nil {
		return wgerr.Wrap(wgerr.IOFailure, err, "rename temp graph log over %s", s.path)
	}
	return nil
}

// AppendTask appends a single task line to the log without a full rewrite —
// used by callers on the hot path (one task mutated per tick) to avoid
// rewriting the whole file every tick; Save is still used for bulk/replay
// operations and compaction.
func (s *GraphStore) AppendTask(t *graph.Task) error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return wgerr.Wrap(wgerr.IOFailure, err, "create graph log dir %s", dir)
	}
	f, err := os.OpenFile(s.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return wgerr.Wrap(wgerr.IOFailure, err, "open graph log %s", s.path)
	}
	defer f.Close()

	line, err := json.Marshal(t)
	if err != nil {
		return wgerr.Wrap(wgerr.ParseFailure, err, "marshal task %s", t.ID)
	}
	line = append(line, '\n')
	if _, err := f.Write(line); err != nil {
		return wgerr.Wrap(wgerr.IOFailure, err, "append task %s", t.ID)
	}
	return nil
}

// Compact rewrites the log to its minimal last-wins form — one line per
// task — collapsing however many append-only lines accumulated. Equivalent
// to Load followed by Save, exposed separately so callers can schedule it on
// a size threshold rather than every tick.
func (s *GraphStore) Compact() error {
	g, err := s.Load()
	if err != nil {
		return err
	}
	return s.Save(g)
}
