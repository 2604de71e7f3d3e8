package graph

import "time"

// FireLoops implements spec.md §4.2: evaluated immediately after sourceID
// transitions to done, for every outgoing loop edge on the source. Returns
// the set of reactivated task ids (target plus cycle intermediates plus
// source), for callers to log and to trigger another scheduling sweep.
func (g *Graph) FireLoops(sourceID string, now time.Time) []string {
	source, ok := g.nodes[sourceID]
	if !ok {
		return nil
	}

	var reactivated []string
	for _, edge := range source.LoopEdges {
		target, ok := g.nodes[edge.Target]
		if !ok {
			continue // target missing: skip silently
		}

		statusOf := func(id string) (Status, bool) {
			t, ok := g.nodes[id]
			if !ok {
				return "", false
			}
			return t.Status, true
		}
		if !edge.Guard.Evaluate(target.LoopIteration, statusOf) {
			continue
		}
		if target.LoopIteration >= edge.MaxIterations {
			continue
		}

		target.LoopIteration++
		target.ClearForReactivation()
		if edge.Delay != nil {
			ra := now.Add(*edge.Delay)
			target.ReadyAfter = &ra
		} else {
			target.ReadyAfter = nil
		}

		fired := map[string]bool{target.ID: true}
		if target.ID == sourceID {
			reactivated = appendUnique(reactivated, target.ID)
			continue
		}

		intermediates := g.cycleIntermediates(edge.Target, sourceID)
		for _, id := range intermediates {
			t, ok := g.nodes[id]
			if !ok || fired[id] {
				continue
			}
			if t.Status == StatusDone {
				iter := t.LoopIteration
				t.ClearForReactivation()
				t.LoopIteration = iter
			}
			fired[id] = true
		}

		// The source itself is part of the cycle and is reset too, so a
		// multi-task loop doesn't leave a stale done source behind the
		// reopened target.
		if source.Status == StatusDone {
			iter := source.LoopIteration
			source.ClearForReactivation()
			source.LoopIteration = iter
		}
		fired[sourceID] = true

		for id := range fired {
			reactivated = appendUnique(reactivated, id)
		}
	}
	return reactivated
}

// cycleIntermediates computes the set of tasks transitively reachable
// forward from target via Blocks *and* transitively reachable backward
// from source via BlockedBy (spec.md §4.2 step 5). target and source
// themselves are excluded; callers add them back explicitly.
func (g *Graph) cycleIntermediates(targetID, sourceID string) []string {
	forward := map[string]bool{}
	var walkForward func(string)
	walkForward = func(id string) {
		t, ok := g.nodes[id]
		if !ok {
			return
		}
		for _, next := range t.Blocks {
			if forward[next] {
				continue
			}
			forward[next] = true
			walkForward(next)
		}
	}
	walkForward(targetID)

	backward := map[string]bool{}
	var walkBackward func(string)
	walkBackward = func(id string) {
		t, ok := g.nodes[id]
		if !ok {
			return
		}
		for _, prev := range t.BlockedBy {
			if backward[prev] {
				continue
			}
			backward[prev] = true
			walkBackward(prev)
		}
	}
	walkBackward(sourceID)

	var out []string
	for id := range forward {
		if backward[id] && id != targetID && id != sourceID {
			out = append(out, id)
		}
	}
	return out
}

func appendUnique(ss []string, s string) []string {
	for _, x := range ss {
		if x == s {
			return ss
		}
	}
	return append(ss, s)
}
