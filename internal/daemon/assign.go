package daemon

import (
	"github.com/antigravity-dev/workgraphd/internal/graph"
	"github.com/antigravity-dev/workgraphd/internal/identity"
)

// autoAssign picks an agent for task when [identity] auto_assign is enabled
// and the task doesn't already carry one. It scores every known agent by
// how many of the task's declared skills appear in the agent's Capabilities,
// then by the agent's mean reward, and returns the best match. An empty
// agent pool or a task with no match leaves the task unassigned — there is
// no "default" agent to fall back to.
func autoAssign(dirs identity.Dirs, task *graph.Task) (identity.Agent, bool) {
	agents, err := identity.LoadAllAgents(dirs)
	if err != nil || len(agents) == 0 {
		return identity.Agent{}, false
	}

	best := -1
	var bestScore int
	var bestMean float64
	for i, a := range agents {
		score := skillOverlap(task.Skills, a.Capabilities)
		if score == 0 {
			continue
		}
		mean := 0.0
		if a.Performance.MeanReward != nil {
			mean = *a.Performance.MeanReward
		}
		if best == -1 || score > bestScore || (score == bestScore && mean > bestMean) {
			best, bestScore, bestMean = i, score, mean
		}
	}
	if best == -1 {
		return identity.Agent{}, false
	}
	return agents[best], true
}

func skillOverlap(skills, capabilities []string) int {
	have := make(map[string]bool, len(capabilities))
	for _, c := range capabilities {
		have[c] = true
	}
	n := 0
	for _, s := range skills {
		if have[s] {
			n++
		}
	}
	return n
}
