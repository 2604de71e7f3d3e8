package reward

import (
	"os/exec"
	"strings"
	"time"

	"github.com/antigravity-dev/workgraphd/internal/graph"
	"github.com/antigravity-dev/workgraphd/internal/identity"
	"github.com/antigravity-dev/workgraphd/internal/wgerr"
)

// spawnModelFlag is the marker a daemon-authored spawn log entry carries;
// see ExtractSpawnModel.
const spawnModelFlag = "--model "

// ExtractSpawnModel recovers the model a task actually ran under from its
// spawn log entry ("Spawned by coordinator --executor X --model Y"),
// falling back to the task's own Model field.
func ExtractSpawnModel(task *graph.Task) string {
	for _, entry := range task.Log {
		rest, ok := strings.CutPrefix(entry.Message, "Spawned by ")
		if !ok {
			continue
		}
		idx := strings.Index(rest, spawnModelFlag)
		if idx == -1 {
			continue
		}
		model := strings.TrimSpace(rest[idx+len(spawnModelFlag):])
		if model != "" {
			return model
		}
	}
	return task.Model
}

// ResolvedIdentity is what evaluating a task needs from the identity store:
// the task's agent and, if the agent resolved, its role and objective.
// Any of the three may be nil — a reward can always be recorded, just
// without that context.
type ResolvedIdentity struct {
	Agent     *identity.Agent
	Role      *identity.Role
	Objective *identity.Objective
}

// ResolveTaskIdentity looks up task.AgentID (an agent content hash, possibly
// abbreviated) and its role/objective, warning (via the returned warnings
// slice) rather than failing on anything that doesn't resolve.
func ResolveTaskIdentity(dirs identity.Dirs, task *graph.Task) (ResolvedIdentity, []string) {
	var warnings []string
	if task.AgentID == "" {
		return ResolvedIdentity{}, []string{"task has no assigned agent — evaluating without role/objective context"}
	}

	agent, err := identity.FindAgentByPrefix(dirs, task.AgentID)
	if err != nil {
		return ResolvedIdentity{}, []string{"agent '" + task.AgentID + "' not found (" + err.Error() + "), evaluating without agent context"}
	}

	result := ResolvedIdentity{Agent: &agent}

	if agent.RoleID != "" {
		if role, err := identity.LoadRole(dirs, agent.RoleID); err == nil {
			result.Role = &role
		} else {
			warnings = append(warnings, "role '"+agent.RoleID+"' not found, evaluating without role context")
		}
	}
	if agent.ObjectiveID != "" {
		if obj, err := identity.LoadObjective(dirs, agent.ObjectiveID); err == nil {
			result.Objective = &obj
		} else {
			warnings = append(warnings, "objective '"+agent.ObjectiveID+"' not found, evaluating without objective context")
		}
	}
	return result, warnings
}

// RunEvaluator spawns the evaluator CLI (its name is configurable; the
// reference evaluator is `claude --print --dangerously-skip-permissions`)
// with the rendered prompt as its final argument and returns the raw
// stdout for ExtractJSON/ParseEvalOutput.
func RunEvaluator(evaluatorBin, model, prompt string) (string, error) {
	cmd := exec.Command(evaluatorBin, "--model", model, "--print", "--dangerously-skip-permissions", prompt)
	out, err := cmd.Output()
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			return "", wgerr.Wrap(wgerr.IOFailure, err, "evaluator %q exited %d: %s", evaluatorBin, exitErr.ExitCode(), strings.TrimSpace(string(exitErr.Stderr)))
		}
		return "", wgerr.Wrap(wgerr.IOFailure, err, "run evaluator %q — is it installed and in PATH?", evaluatorBin)
	}
	return string(out), nil
}

// Evaluate runs the full pipeline: resolve identity, render the prompt, run
// the evaluator, parse its verdict, and record the resulting reward. It
// returns the constructed Reward and any non-fatal warnings accumulated
// along the way (missing role/objective/agent, etc).
func Evaluate(dirs identity.Dirs, evaluatorBin, model string, task *graph.Task, now time.Time) (identity.Reward, []string, error) {
	resolved, warnings := ResolveTaskIdentity(dirs, task)

	prompt := RenderEvaluatorPrompt(EvaluatorInput{
		Task:      task,
		Agent:     resolved.Agent,
		Role:      resolved.Role,
		Objective: resolved.Objective,
	})

	raw, err := RunEvaluator(evaluatorBin, model, prompt)
	if err != nil {
		return identity.Reward{}, warnings, err
	}

	parsed, ok := ParseEvalOutput(raw)
	if !ok {
		return identity.Reward{}, warnings, wgerr.New(wgerr.ParseFailure, "failed to extract valid JSON from evaluator output:\n%s", raw)
	}

	agentID, roleID, objectiveID := identity.UnknownID, identity.UnknownID, identity.UnknownID
	if resolved.Agent != nil {
		agentID = resolved.Agent.ID
		if resolved.Agent.RoleID != "" {
			roleID = resolved.Agent.RoleID
		}
		if resolved.Agent.ObjectiveID != "" {
			objectiveID = resolved.Agent.ObjectiveID
		}
	}

	rewardID := "reward-" + task.ID + "-" + strings.ReplaceAll(now.Format(rfc3339), ":", "-")
	r := identity.Reward{
		ID:          rewardID,
		TaskID:      task.ID,
		AgentID:     agentID,
		RoleID:      roleID,
		ObjectiveID: objectiveID,
		Value:       parsed.Value,
		Dimensions:  parsed.Dimensions,
		Notes:       parsed.Notes,
		Evaluator:   "claude:" + model,
		Timestamp:   now,
		Model:       ExtractSpawnModel(task),
		Source:      identity.SourceLLM,
	}

	if err := identity.RecordReward(dirs, r); err != nil {
		return r, warnings, err
	}
	if roleID == identity.UnknownID || objectiveID == identity.UnknownID {
		warnings = append(warnings, "no identity assigned — role/objective performance records not updated")
	}
	return r, warnings, nil
}
