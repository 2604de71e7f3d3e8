package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/antigravity-dev/workgraphd/internal/wgerr"
)

// ProvenanceEntry is one append-only record of a mutating operation.
type ProvenanceEntry struct {
	Timestamp time.Time `json:"timestamp"`
	Op        string    `json:"op"`
	TaskID    string    `json:"task_id,omitempty"`
	Agent     string    `json:"agent,omitempty"`
	Detail    string    `json:"detail,omitempty"`
}

// ProvenanceLog appends JSONL entries to a current file, rolling it to
// log.<N>.jsonl once it exceeds RotateBytes and starting a fresh log.jsonl.
type ProvenanceLog struct {
	dir         string
	currentName string
	rotateBytes int64
}

// NewProvenanceLog returns a log rooted at dir/log.jsonl, rotating once the
// current file exceeds rotateBytes.
func NewProvenanceLog(dir string, rotateBytes int64) *ProvenanceLog {
	return &ProvenanceLog{dir: dir, currentName: "log.jsonl", rotateBytes: rotateBytes}
}

func (p *ProvenanceLog) currentPath() string {
	return filepath.Join(p.dir, p.currentName)
}

// Append writes one entry, rotating first if the current file has grown
// past the configured threshold.
func (p *ProvenanceLog) Append(entry ProvenanceEntry) error {
	if err := os.MkdirAll(p.dir, 0o755); err != nil {
		return wgerr.Wrap(wgerr.IOFailure, err, "create provenance dir %s", p.dir)
	}
	if err := p.rotateIfNeeded(); err != nil {
		return err
	}

	f, err := os.OpenFile(p.currentPath(), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return wgerr.Wrap(wgerr.IOFailure, err, "open provenance log %s", p.currentPath())
	}
	defer f.Close()

	line, err := json.Marshal(entry)
	if err != nil {
		return wgerr.Wrap(wgerr.ParseFailure, err, "marshal provenance entry")
	}
	line = append(line, '\n')
	if _, err := f.Write(line); err != nil {
		return wgerr.Wrap(wgerr.IOFailure, err, "write provenance entry")
	}
	return nil
}

func (p *ProvenanceLog) rotateIfNeeded() error {
	if p.rotateBytes <= 0 {
		return nil
	}
	info, err := os.Stat(p.currentPath())
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return wgerr.Wrap(wgerr.IOFailure, err, "stat provenance log %s", p.currentPath())
	}
	if info.Size() < p.rotateBytes {
		return nil
	}

	n := 1
	for {
		candidate := filepath.Join(p.dir, fmt.Sprintf("log.%d.jsonl", n))
		if _, err := os.Stat(candidate); os.IsNotExist(err) {
			if err := os.Rename(p.currentPath(), candidate); err != nil {
				return wgerr.Wrap(wgerr.IOFailure, err, "rotate provenance log to %s", candidate)
			}
			return nil
		}
		n++
	}
}
