package graph

import "time"

// Status is a task's position in the status machine (spec.md §3 invariant ii).
type Status string

const (
	StatusOpen          Status = "open"
	StatusInProgress    Status = "in-progress"
	StatusPendingReview Status = "pending-review"
	StatusDone          Status = "done"
	StatusFailed        Status = "failed"
	StatusBlocked       Status = "blocked"
	StatusAbandoned     Status = "abandoned"
)

// Estimate is a task's structured time/cost estimate.
type Estimate struct {
	Hours float64 `json:"hours,omitempty"`
	Cost  float64 `json:"cost,omitempty"`
}

// LogEntry is one append-only line in a task's log.
type LogEntry struct {
	Timestamp time.Time `json:"timestamp"`
	Actor     string    `json:"actor"`
	Message   string    `json:"message"`
}

// GuardKind discriminates a LoopEdge's guard.
type GuardKind string

const (
	GuardAlways            GuardKind = "always"
	GuardIterationLessThan GuardKind = "iteration_less_than"
	GuardTaskStatus        GuardKind = "task_status"
)

// Guard gates whether a loop edge fires. Always passes unconditionally;
// IterationLessThan passes iff the target's loop_iteration is below N;
// TaskStatus passes iff the named task currently has the given status.
type Guard struct {
	Kind   GuardKind `json:"kind"`
	N      uint32    `json:"n,omitempty"`
	TaskID string    `json:"task_id,omitempty"`
	Status Status    `json:"status,omitempty"`
}

// Evaluate reports whether the guard passes, given a lookup of current
// task status by id (used only by TaskStatus guards).
func (g Guard) Evaluate(targetLoopIteration uint32, statusOf func(id string) (Status, bool)) bool {
	switch g.Kind {
	case GuardIterationLessThan:
		return targetLoopIteration < g.N
	case GuardTaskStatus:
		st, ok := statusOf(g.TaskID)
		return ok && st == g.Status
	default:
		return true
	}
}

// LoopEdge is a directed edge evaluated only on task completion (spec.md §4.2).
type LoopEdge struct {
	Target        string         `json:"target"`
	Guard         Guard          `json:"guard"`
	MaxIterations uint32         `json:"max_iterations"`
	Delay         *time.Duration `json:"delay,omitempty"`
}

// Task is a node in the graph.
type Task struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Status      Status `json:"status"`

	AssignedAgent string   `json:"assigned_agent,omitempty"`
	Estimate      Estimate `json:"estimate,omitempty"`

	Blocks    []string `json:"blocks,omitempty"`
	BlockedBy []string `json:"blocked_by,omitempty"`

	Tags   []string `json:"tags,omitempty"`
	Skills []string `json:"skills,omitempty"`

	Inputs       []string `json:"inputs,omitempty"`
	Deliverables []string `json:"deliverables,omitempty"`
	Artifacts    []string `json:"artifacts,omitempty"`

	ExecutorCommand string     `json:"executor_command,omitempty"`
	NotBefore       *time.Time `json:"not_before,omitempty"`

	CreatedAt   time.Time  `json:"created_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	Log []LogEntry `json:"log,omitempty"`

	Retries       int    `json:"retries"`
	MaxRetries    int    `json:"max_retries,omitempty"`
	FailureReason string `json:"failure_reason,omitempty"`

	Model         string `json:"model,omitempty"`
	VerifyCommand string `json:"verify_command,omitempty"`
	AgentID       string `json:"agent_id,omitempty"`

	LoopEdges     []LoopEdge `json:"loop_edges,omitempty"`
	LoopIteration uint32     `json:"loop_iteration"`
	ReadyAfter    *time.Time `json:"ready_after,omitempty"`

	Paused bool `json:"paused"`
}

// Clone returns a deep-enough copy: slices and optional pointer fields are
// copied so the graph's internal map never aliases a caller's Task.
func (t Task) Clone() *Task {
	c := t
	c.Blocks = append([]string(nil), t.Blocks...)
	c.BlockedBy = append([]string(nil), t.BlockedBy...)
	c.Tags = append([]string(nil), t.Tags...)
	c.Skills = append([]string(nil), t.Skills...)
	c.Inputs = append([]string(nil), t.Inputs...)
	c.Deliverables = append([]string(nil), t.Deliverables...)
	c.Artifacts = append([]string(nil), t.Artifacts...)
	c.Log = append([]LogEntry(nil), t.Log...)
	c.LoopEdges = append([]LoopEdge(nil), t.LoopEdges...)
	if t.StartedAt != nil {
		v := *t.StartedAt
		c.StartedAt = &v
	}
	if t.CompletedAt != nil {
		v := *t.CompletedAt
		c.CompletedAt = &v
	}
	if t.NotBefore != nil {
		v := *t.NotBefore
		c.NotBefore = &v
	}
	if t.ReadyAfter != nil {
		v := *t.ReadyAfter
		c.ReadyAfter = &v
	}
	return &c
}

// AppendLog appends a log entry.
func (t *Task) AppendLog(actor, message string, at time.Time) {
	t.Log = append(t.Log, LogEntry{Timestamp: at, Actor: actor, Message: message})
}

// ClearForReactivation resets the fields a loop firing/reset must clear,
// preserving the log. Callers decide separately whether loop_iteration is
// preserved (cycle intermediates) or incremented (the fired target).
func (t *Task) ClearForReactivation() {
	t.Status = StatusOpen
	t.AssignedAgent = ""
	t.AgentID = ""
	t.StartedAt = nil
	t.CompletedAt = nil
	t.Artifacts = nil
	t.FailureReason = ""
}
