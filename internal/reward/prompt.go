// Package reward drives the evaluator subprocess that turns a completed (or
// failed) task into a scored Reward: render a prompt from the task and its
// resolved agent/role/objective, run an LLM evaluator against it, extract
// the JSON verdict from its output, and hand the result to
// internal/identity for three-level recording.
package reward

import (
	"fmt"
	"strings"

	"github.com/antigravity-dev/workgraphd/internal/graph"
	"github.com/antigravity-dev/workgraphd/internal/identity"
)

// EvaluatorInput is everything the prompt template draws on. Role/Objective
// are nil when the task's agent, or the agent's role/objective file, could
// not be resolved — the prompt still renders, just without that context.
type EvaluatorInput struct {
	Task      *graph.Task
	Agent     *identity.Agent
	Role      *identity.Role
	Objective *identity.Objective
}

// RenderEvaluatorPrompt builds the evaluator's instructions: task context,
// what was delivered, and the exact JSON shape it must answer with.
func RenderEvaluatorPrompt(in EvaluatorInput) string {
	var b strings.Builder

	fmt.Fprintf(&b, "You are evaluating the output of a completed task.\n\n")
	fmt.Fprintf(&b, "Task: %s\n", in.Task.Title)
	if in.Task.Description != "" {
		fmt.Fprintf(&b, "Description: %s\n", in.Task.Description)
	}
	if len(in.Task.Skills) > 0 {
		fmt.Fprintf(&b, "Required skills: %s\n", strings.Join(in.Task.Skills, ", "))
	}
	if in.Task.VerifyCommand != "" {
		fmt.Fprintf(&b, "Verification command: %s\n", in.Task.VerifyCommand)
	}
	fmt.Fprintf(&b, "Status: %s\n", in.Task.Status)
	if in.Task.StartedAt != nil {
		fmt.Fprintf(&b, "Started: %s\n", in.Task.StartedAt.Format(rfc3339))
	}
	if in.Task.CompletedAt != nil {
		fmt.Fprintf(&b, "Completed: %s\n", in.Task.CompletedAt.Format(rfc3339))
	}

	if in.Role != nil {
		fmt.Fprintf(&b, "\nAgent's role: %s\n", in.Role.Name)
		if in.Role.DesiredOutcome != "" {
			fmt.Fprintf(&b, "Desired outcome: %s\n", in.Role.DesiredOutcome)
		}
	}
	if in.Objective != nil {
		fmt.Fprintf(&b, "\nAgent's objective: %s\n", in.Objective.Name)
		if len(in.Objective.AcceptableTradeoffs) > 0 {
			fmt.Fprintf(&b, "Acceptable tradeoffs: %s\n", strings.Join(in.Objective.AcceptableTradeoffs, ", "))
		}
		if len(in.Objective.UnacceptableTradeoffs) > 0 {
			fmt.Fprintf(&b, "Unacceptable tradeoffs: %s\n", strings.Join(in.Objective.UnacceptableTradeoffs, ", "))
		}
	}

	fmt.Fprintf(&b, "\nArtifacts produced (%d):\n", len(in.Task.Artifacts))
	for _, a := range in.Task.Artifacts {
		fmt.Fprintf(&b, "  - %s\n", a)
	}

	fmt.Fprintf(&b, "\nLog (%d entries):\n", len(in.Task.Log))
	for _, entry := range in.Task.Log {
		fmt.Fprintf(&b, "  [%s] %s: %s\n", entry.Timestamp.Format(rfc3339), entry.Actor, entry.Message)
	}

	b.WriteString("\nRespond with ONLY a JSON object of this shape, no commentary and no markdown fences:\n")
	b.WriteString(`{"value": <float 0.0-1.0>, "dimensions": {"correctness": <float>, "completeness": <float>, "efficiency": <float>, "style_adherence": <float>}, "notes": "<string>"}`)
	b.WriteString("\n")

	return b.String()
}

const rfc3339 = "2006-01-02T15:04:05Z07:00"
