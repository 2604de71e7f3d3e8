package store

import (
	"bufio"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func countLines(t *testing.T, path string) int {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open %s: %v", path, err)
	}
	defer f.Close()
	n := 0
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		if len(scanner.Bytes()) > 0 {
			n++
		}
	}
	return n
}

func TestProvenanceLogAppend(t *testing.T) {
	dir := t.TempDir()
	log := NewProvenanceLog(dir, 0)

	if err := log.Append(ProvenanceEntry{Timestamp: time.Now(), Op: "task_created", TaskID: "A"}); err != nil {
		t.Fatalf("Append failed: %v", err)
	}
	if err := log.Append(ProvenanceEntry{Timestamp: time.Now(), Op: "task_done", TaskID: "A"}); err != nil {
		t.Fatalf("Append failed: %v", err)
	}

	if n := countLines(t, filepath.Join(dir, "log.jsonl")); n != 2 {
		t.Fatalf("line count = %d, want 2", n)
	}
}

func TestProvenanceLogRotatesOnThreshold(t *testing.T) {
	dir := t.TempDir()
	// A tiny threshold forces rotation after the first entry.
	log := NewProvenanceLog(dir, 10)

	if err := log.Append(ProvenanceEntry{Timestamp: time.Now(), Op: "first"}); err != nil {
		t.Fatalf("Append failed: %v", err)
	}
	if err := log.Append(ProvenanceEntry{Timestamp: time.Now(), Op: "second"}); err != nil {
		t.Fatalf("Append failed: %v", err)
	}

	if _, err := os.Stat(filepath.Join(dir, "log.1.jsonl")); err != nil {
		t.Fatalf("expected rotated file log.1.jsonl: %v", err)
	}
	if n := countLines(t, filepath.Join(dir, "log.jsonl")); n != 1 {
		t.Fatalf("current log line count = %d, want 1 (post-rotation)", n)
	}
}
