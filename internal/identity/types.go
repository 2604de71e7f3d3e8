// Package identity implements the content-addressed role/objective/agent
// store: immutable identity fields hashed into an id, mutable metadata and
// performance accumulated on top, reward recording, ancestry, and the
// evolutionary mutate/crossover operators.
package identity

import "time"

// TrustLevel reflects how much an operator trusts an agent's output.
type TrustLevel string

const (
	TrustUnknown     TrustLevel = "unknown"
	TrustProvisional TrustLevel = "provisional"
	TrustVerified    TrustLevel = "verified"
)

// Skill is either a named reference into a skills directory or inline text.
// Exactly one of Name/Text is set.
type Skill struct {
	Name string `yaml:"name,omitempty"`
	Text string `yaml:"text,omitempty"`
}

// Lineage tracks where an identity entity came from.
type Lineage struct {
	ParentIDs  []string  `yaml:"parent_ids,omitempty"`
	Generation uint32    `yaml:"generation"`
	Creator    string    `yaml:"creator,omitempty"`
	CreatedAt  time.Time `yaml:"created_at"`
}

// RewardRef is a compact pointer stored on a performance record.
type RewardRef struct {
	Value     float64   `yaml:"value"`
	TaskID    string    `yaml:"task_id"`
	Timestamp time.Time `yaml:"timestamp"`
	ContextID string    `yaml:"context_id,omitempty"`
}

// Performance is the append-only reward digest kept on Role/Objective/Agent.
type Performance struct {
	TaskCount  int        `yaml:"task_count"`
	MeanReward *float64   `yaml:"mean_reward,omitempty"`
	Rewards    []RewardRef `yaml:"rewards,omitempty"`
}

// AppendAndRecompute adds a ref and recomputes MeanReward as the arithmetic
// mean over every stored ref, matching a from-scratch recomputation exactly.
func (p *Performance) AppendAndRecompute(ref RewardRef) {
	p.Rewards = append(p.Rewards, ref)
	p.TaskCount = len(p.Rewards)
	p.recomputeMean()
}

func (p *Performance) recomputeMean() {
	if len(p.Rewards) == 0 {
		p.MeanReward = nil
		return
	}
	var sum float64
	for _, r := range p.Rewards {
		sum += r.Value
	}
	mean := sum / float64(len(p.Rewards))
	p.MeanReward = &mean
}

// Role is hashed over (Skills, DesiredOutcome, Description) — the immutable
// triple. Name, Performance, and Lineage are mutable.
type Role struct {
	ID             string      `yaml:"id"`
	Skills         []Skill     `yaml:"skills,omitempty"`
	DesiredOutcome string      `yaml:"desired_outcome,omitempty"`
	Description    string      `yaml:"description,omitempty"`
	Name           string      `yaml:"name"`
	Performance    Performance `yaml:"performance"`
	Lineage        Lineage     `yaml:"lineage"`
}

// Objective is hashed over (AcceptableTradeoffs, UnacceptableTradeoffs,
// Description).
type Objective struct {
	ID                    string      `yaml:"id"`
	AcceptableTradeoffs   []string    `yaml:"acceptable_tradeoffs,omitempty"`
	UnacceptableTradeoffs []string    `yaml:"unacceptable_tradeoffs,omitempty"`
	Description           string      `yaml:"description,omitempty"`
	Name                  string      `yaml:"name"`
	Performance           Performance `yaml:"performance"`
	Lineage               Lineage     `yaml:"lineage"`
}

// Agent is hashed over (RoleID, ObjectiveID) — same-pairing collisions are
// deliberate.
type Agent struct {
	ID           string      `yaml:"id"`
	RoleID       string      `yaml:"role_id,omitempty"`
	ObjectiveID  string      `yaml:"objective_id,omitempty"`
	Name         string      `yaml:"name"`
	Performance  Performance `yaml:"performance"`
	Lineage      Lineage     `yaml:"lineage"`
	Capabilities []string    `yaml:"capabilities,omitempty"`
	Rate         *float64    `yaml:"rate,omitempty"`
	Capacity     *float64    `yaml:"capacity,omitempty"`
	TrustLevel   TrustLevel  `yaml:"trust_level"`
	Contact      string      `yaml:"contact,omitempty"`
	Executor     string      `yaml:"executor"`
}

// RewardSource identifies who produced a Reward's value.
type RewardSource string

const (
	SourceLLM      RewardSource = "llm"
	SourceManual   RewardSource = "manual"
	SourceExternal RewardSource = "external"
)

// Reward is an append-only evaluation of a completed (or failed) task.
type Reward struct {
	ID          string             `yaml:"id"`
	TaskID      string             `yaml:"task_id"`
	AgentID     string             `yaml:"agent_id,omitempty"`
	RoleID      string             `yaml:"role_id,omitempty"`
	ObjectiveID string             `yaml:"objective_id,omitempty"`
	Value       float64            `yaml:"value"`
	Dimensions  map[string]float64 `yaml:"dimensions,omitempty"`
	Notes       string             `yaml:"notes,omitempty"`
	Evaluator   string             `yaml:"evaluator,omitempty"`
	Timestamp   time.Time          `yaml:"timestamp"`
	Model       string             `yaml:"model,omitempty"`
	Source      RewardSource       `yaml:"source"`
}

// UnknownID is the sentinel used when a reward's partner entity could not
// be resolved (missing agent/role/objective).
const UnknownID = "unknown"
