package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/antigravity-dev/workgraphd/internal/graph"
)

func TestGraphStoreSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "graph.jsonl")
	s := NewGraphStore(path)

	g := graph.New()
	now := time.Now()
	g.AddTask(graph.Task{ID: "A", Status: graph.StatusOpen, CreatedAt: now})
	g.AddTask(graph.Task{ID: "B", Status: graph.StatusOpen, CreatedAt: now})
	g.Link("B", "A")

	if err := s.Save(g); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loaded, err := s.Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if loaded.Len() != 2 {
		t.Fatalf("Len = %d, want 2", loaded.Len())
	}
	b, ok := loaded.GetTask("B")
	if !ok {
		t.Fatalf("task B missing after reload")
	}
	if len(b.BlockedBy) != 1 || b.BlockedBy[0] != "A" {
		t.Fatalf("B.BlockedBy = %v, want [A]", b.BlockedBy)
	}
}

func TestGraphStoreLoadMissingFileIsEmpty(t *testing.T) {
	s := NewGraphStore(filepath.Join(t.TempDir(), "missing.jsonl"))
	g, err := s.Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if g.Len() != 0 {
		t.Fatalf("Len = %d, want 0", g.Len())
	}
}

func TestGraphStoreAppendLastWins(t *testing.T) {
	path := filepath.Join(t.TempDir(), "graph.jsonl")
	s := NewGraphStore(path)
	now := time.Now()

	taskV1 := graph.Task{ID: "A", Status: graph.StatusOpen, CreatedAt: now}
	if err := s.AppendTask(&taskV1); err != nil {
		t.Fatalf("AppendTask v1 failed: %v", err)
	}

	taskV2 := graph.Task{ID: "A", Status: graph.StatusDone, CreatedAt: now}
	if err := s.AppendTask(&taskV2); err != nil {
		t.Fatalf("AppendTask v2 failed: %v", err)
	}

	loaded, err := s.Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if loaded.Len() != 1 {
		t.Fatalf("Len = %d, want 1 (last-wins dedup)", loaded.Len())
	}
	a, _ := loaded.GetTask("A")
	if a.Status != graph.StatusDone {
		t.Fatalf("status = %v, want done (latest append wins)", a.Status)
	}
}

func TestGraphStoreCompactCollapsesAppends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "graph.jsonl")
	s := NewGraphStore(path)
	now := time.Now()

	for i := 0; i < 5; i++ {
		task := graph.Task{ID: "A", Status: graph.StatusOpen, CreatedAt: now, LoopIteration: uint32(i)}
		if err := s.AppendTask(&task); err != nil {
			t.Fatalf("AppendTask failed: %v", err)
		}
	}

	if err := s.Compact(); err != nil {
		t.Fatalf("Compact failed: %v", err)
	}

	loaded, err := s.Load()
	if err != nil {
		t.Fatalf("Load after compact failed: %v", err)
	}
	if loaded.Len() != 1 {
		t.Fatalf("Len after compact = %d, want 1", loaded.Len())
	}
	a, _ := loaded.GetTask("A")
	if a.LoopIteration != 4 {
		t.Fatalf("LoopIteration = %d, want 4 (last write)", a.LoopIteration)
	}
}
