package graph

import (
	"sort"
	"time"
)

// Graph holds the full set of tasks and keeps blocked_by/blocks symmetric
// at rest (spec.md §3 invariant i). All mutation goes through its methods
// so that symmetry can never be violated by a one-sided edit.
type Graph struct {
	nodes map[string]*Task
}

// New returns an empty graph.
func New() *Graph {
	return &Graph{nodes: make(map[string]*Task)}
}

// AddTask inserts or replaces a task by id. The task is cloned so the
// graph never aliases the caller's value.
func (g *Graph) AddTask(t Task) {
	g.nodes[t.ID] = t.Clone()
}

// GetTask returns a read-only copy, or (nil, false) if unknown.
func (g *Graph) GetTask(id string) (*Task, bool) {
	t, ok := g.nodes[id]
	if !ok {
		return nil, false
	}
	return t.Clone(), true
}

// GetTaskMut returns the live pointer for in-place mutation. Callers that
// touch Blocks/BlockedBy directly must instead use Link/Unlink to keep
// symmetry; GetTaskMut is for status/timestamp/log fields only.
func (g *Graph) GetTaskMut(id string) (*Task, bool) {
	t, ok := g.nodes[id]
	return t, ok
}

// Tasks returns every task, in unspecified order. Copies are returned.
func (g *Graph) Tasks() []*Task {
	out := make([]*Task, 0, len(g.nodes))
	for _, t := range g.nodes {
		out = append(out, t.Clone())
	}
	return out
}

// Len reports the number of tasks in the graph.
func (g *Graph) Len() int { return len(g.nodes) }

// Link adds a blocked_by edge from -> to (from is blocked by to), updating
// both sides: to.Blocks gains from, from.BlockedBy gains to.
func (g *Graph) Link(fromID, toID string) {
	from, okFrom := g.nodes[fromID]
	to, okTo := g.nodes[toID]
	if !okFrom || !okTo {
		return
	}
	if !contains(from.BlockedBy, toID) {
		from.BlockedBy = append(from.BlockedBy, toID)
	}
	if !contains(to.Blocks, fromID) {
		to.Blocks = append(to.Blocks, fromID)
	}
}

// Unlink removes a blocked_by edge from both sides.
func (g *Graph) Unlink(fromID, toID string) {
	if from, ok := g.nodes[fromID]; ok {
		from.BlockedBy = remove(from.BlockedBy, toID)
	}
	if to, ok := g.nodes[toID]; ok {
		to.Blocks = remove(to.Blocks, fromID)
	}
}

func contains(ss []string, s string) bool {
	for _, x := range ss {
		if x == s {
			return true
		}
	}
	return false
}

func remove(ss []string, s string) []string {
	out := ss[:0]
	for _, x := range ss {
		if x != s {
			out = append(out, x)
		}
	}
	return out
}

// CheckSymmetric verifies invariant (i): every blocked_by/blocks edge has
// its mirror on the other side. Used by tests; not required on the hot
// path since Link/Unlink always maintain it.
func (g *Graph) CheckSymmetric() []string {
	var violations []string
	for id, t := range g.nodes {
		for _, dep := range t.BlockedBy {
			other, ok := g.nodes[dep]
			if !ok || !contains(other.Blocks, id) {
				violations = append(violations, id+" blocked_by "+dep+" has no mirror")
			}
		}
		for _, dep := range t.Blocks {
			other, ok := g.nodes[dep]
			if !ok || !contains(other.BlockedBy, id) {
				violations = append(violations, id+" blocks "+dep+" has no mirror")
			}
		}
	}
	return violations
}

// IsReady implements the ready-set rule of spec.md §4.1: status open,
// every blocker done, not paused, and ready_after absent or <= now.
func (g *Graph) IsReady(t *Task, now time.Time) bool {
	if t.Status != StatusOpen || t.Paused {
		return false
	}
	if t.ReadyAfter != nil && t.ReadyAfter.After(now) {
		return false
	}
	for _, dep := range t.BlockedBy {
		depTask, ok := g.nodes[dep]
		if !ok || depTask.Status != StatusDone {
			return false
		}
	}
	return true
}

// ReadySet returns the ready tasks, tie-broken per spec.md §4.1: fewer
// remaining dependents first, then earlier creation timestamp, then
// lexicographic id.
func (g *Graph) ReadySet(now time.Time) []*Task {
	var ready []*Task
	for _, t := range g.nodes {
		if g.IsReady(t, now) {
			ready = append(ready, t.Clone())
		}
	}
	sort.SliceStable(ready, func(i, j int) bool {
		di := g.remainingDependents(ready[i].ID)
		dj := g.remainingDependents(ready[j].ID)
		if di != dj {
			return di < dj
		}
		if !ready[i].CreatedAt.Equal(ready[j].CreatedAt) {
			return ready[i].CreatedAt.Before(ready[j].CreatedAt)
		}
		return ready[i].ID < ready[j].ID
	})
	return ready
}

// remainingDependents counts direct+transitive dependents that are not done.
func (g *Graph) remainingDependents(id string) int {
	seen := map[string]bool{}
	var walk func(string)
	count := 0
	walk = func(cur string) {
		t, ok := g.nodes[cur]
		if !ok {
			return
		}
		for _, dependent := range t.Blocks {
			if seen[dependent] {
				continue
			}
			seen[dependent] = true
			if dt, ok := g.nodes[dependent]; ok && dt.Status != StatusDone {
				count++
			}
			walk(dependent)
		}
	}
	walk(id)
	return count
}

// TransitiveDependents walks the reverse index (Blocks) to enumerate every
// task transitively downstream of id, used for replay reset and subgraph
// collection.
func (g *Graph) TransitiveDependents(id string) []string {
	seen := map[string]bool{}
	var out []string
	var walk func(string)
	walk = func(cur string) {
		t, ok := g.nodes[cur]
		if !ok {
			return
		}
		for _, dependent := range t.Blocks {
			if seen[dependent] {
				continue
			}
			seen[dependent] = true
			out = append(out, dependent)
			walk(dependent)
		}
	}
	walk(id)
	return out
}

// RecomputeBlockedHints sets Status = blocked (a hint only — readiness is
// always recomputed authoritatively by IsReady/ReadySet) on every open task
// whose blockers aren't all done, and clears the hint back to open when
// blockers clear. Tasks in any other status are left untouched.
func (g *Graph) RecomputeBlockedHints(now time.Time) {
	for _, t := range g.nodes {
		switch t.Status {
		case StatusOpen:
			if !g.blockersAllDone(t) {
				t.Status = StatusBlocked
			}
		case StatusBlocked:
			if g.blockersAllDone(t) {
				t.Status = StatusOpen
			}
		}
	}
}

func (g *Graph) blockersAllDone(t *Task) bool {
	for _, dep := range t.BlockedBy {
		depTask, ok := g.nodes[dep]
		if !ok || depTask.Status != StatusDone {
			return false
		}
	}
	return true
}
