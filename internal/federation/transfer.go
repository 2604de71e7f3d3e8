package federation

import (
	"github.com/antigravity-dev/workgraphd/internal/identity"
	"github.com/antigravity-dev/workgraphd/internal/wgerr"
)

// EntityFilter narrows a Transfer to one entity kind; dependencies of a
// transferred agent (its role and objective) are always auto-pulled
// regardless of the filter, so the target never ends up with a dangling
// agent reference.
type EntityFilter string

const (
	FilterAll        EntityFilter = ""
	FilterRoles      EntityFilter = "roles"
	FilterObjectives EntityFilter = "objectives"
	FilterAgents     EntityFilter = "agents"
)

// ParseEntityFilter maps a CLI-style entity-type string to an EntityFilter.
func ParseEntityFilter(s string) (EntityFilter, error) {
	switch s {
	case "", "all":
		return FilterAll, nil
	case "role", "roles":
		return FilterRoles, nil
	case "objective", "objectives":
		return FilterObjectives, nil
	case "agent", "agents":
		return FilterAgents, nil
	default:
		return "", wgerr.New(wgerr.Validation, "unknown entity type '%s'; use role, objective, or agent", s)
	}
}

// TransferOptions configures one Transfer call.
type TransferOptions struct {
	DryRun bool
	// NoPerformance drops performance history from newly added entities and
	// skips performance merging on existing ones.
	NoPerformance bool
	// NoRewards skips copying raw reward records (identity.Reward files).
	NoRewards bool
	// Force overwrites an existing target entity wholesale instead of
	// merging performance into it.
	Force bool
	// EntityIDs restricts the transfer to these ids; empty means all.
	// Dependencies auto-pulled for an agent (its role/objective) are never
	// restricted by this list.
	EntityIDs []string
	Filter    EntityFilter
}

// TransferSummary counts what Transfer did (or, in DryRun, would do).
type TransferSummary struct {
	RolesAdded, RolesUpdated, RolesSkipped             int
	ObjectivesAdded, ObjectivesUpdated, ObjectivesSkipped int
	AgentsAdded, AgentsUpdated, AgentsSkipped          int
	RewardsAdded, RewardsSkipped                       int
}

// Add accumulates other into s, for summing per-source summaries across a
// multi-source merge.
func (s *TransferSummary) Add(other TransferSummary) {
	s.RolesAdded += other.RolesAdded
	s.RolesUpdated += other.RolesUpdated
	s.RolesSkipped += other.RolesSkipped
	s.ObjectivesAdded += other.ObjectivesAdded
	s.ObjectivesUpdated += other.ObjectivesUpdated
	s.ObjectivesSkipped += other.ObjectivesSkipped
	s.AgentsAdded += other.AgentsAdded
	s.AgentsUpdated += other.AgentsUpdated
	s.AgentsSkipped += other.AgentsSkipped
	s.RewardsAdded += other.RewardsAdded
	s.RewardsSkipped += other.RewardsSkipped
}

func matchesID(ids []string, id string) bool {
	if len(ids) == 0 {
		return true
	}
	for _, want := range ids {
		if want == id {
			return true
		}
	}
	return false
}

// Transfer copies roles, objectives, and agents from source into target,
// merging performance history (by default) or overwriting (with Force),
// auto-pulling an agent's role/objective, and optionally copying raw
// reward records. Nothing is written to target when opts.DryRun is set,
// but the summary still reflects what would have happened.
func Transfer(source, target identity.Dirs, opts TransferOptions) (TransferSummary, error) {
	var summary TransferSummary
	filter := opts.Filter
	includeRoles := filter == FilterAll || filter == FilterRoles
	includeObjectives := filter == FilterAll || filter == FilterObjectives
	includeAgents := filter == FilterAll || filter == FilterAgents

	pulledRoles := map[string]bool{}
	pulledObjectives := map[string]bool{}

	if includeAgents {
		agents, err := identity.LoadAllAgents(source)
		if err != nil {
			return summary, err
		}
		for _, a := range agents {
			if !matchesID(opts.EntityIDs, a.ID) {
				continue
			}
			if err := transferAgent(target, a, opts, &summary); err != nil {
				return summary, err
			}
			if a.RoleID != "" && !pulledRoles[a.RoleID] {
				pulledRoles[a.RoleID] = true
				if role, err := identity.LoadRole(source, a.RoleID); err == nil {
					if err := transferRole(target, role, opts, &summary); err != nil {
						return summary, err
					}
				}
			}
			if a.ObjectiveID != "" && !pulledObjectives[a.ObjectiveID] {
				pulledObjectives[a.ObjectiveID] = true
				if obj, err := identity.LoadObjective(source, a.ObjectiveID); err == nil {
					if err := transferObjective(target, obj, opts, &summary); err != nil {
						return summary, err
					}
				}
			}
		}
	}

	if includeRoles {
		roles, err := identity.LoadAllRoles(source)
		if err != nil {
			return summary, err
		}
		for _, r := range roles {
			if pulledRoles[r.ID] || !matchesID(opts.EntityIDs, r.ID) {
				continue
			}
			if err := transferRole(target, r, opts, &summary); err != nil {
				return summary, err
			}
		}
	}

	if includeObjectives {
		objectives, err := identity.LoadAllObjectives(source)
		if err != nil {
			return summary, err
		}
		for _, o := range objectives {
			if pulledObjectives[o.ID] || !matchesID(opts.EntityIDs, o.ID) {
				continue
			}
			if err := transferObjective(target, o, opts, &summary); err != nil {
				return summary, err
			}
		}
	}

	if !opts.NoRewards {
		if err := transferRewards(source, target, opts, &summary); err != nil {
			return summary, err
		}
	}

	return summary, nil
}

func transferRole(target identity.Dirs, incoming identity.Role, opts TransferOptions, summary *TransferSummary) error {
	existing, err := identity.LoadRole(target, incoming.ID)
	if err != nil {
		if opts.NoPerformance {
			incoming.Performance = identity.Performance{}
		}
		summary.RolesAdded++
		if opts.DryRun {
			return nil
		}
		_, err := identity.SaveRole(target, incoming)
		return err
	}

	if opts.Force {
		summary.RolesUpdated++
		if opts.DryRun {
			return nil
		}
		_, err := identity.SaveRole(target, incoming)
		return err
	}

	if opts.NoPerformance {
		summary.RolesSkipped++
		return nil
	}

	merged := mergePerformance(existing.Performance, incoming.Performance)
	if len(merged.Rewards) == len(existing.Performance.Rewards) {
		summary.RolesSkipped++
		return nil
	}
	existing.Performance = merged
	summary.RolesUpdated++
	if opts.DryRun {
		return nil
	}
	_, err = identity.SaveRole(target, existing)
	return err
}

func transferObjective(target identity.Dirs, incoming identity.Objective, opts TransferOptions, summary *TransferSummary) error {
	existing, err := identity.LoadObjective(target, incoming.ID)
	if err != nil {
		if opts.NoPerformance {
			incoming.Performance = identity.Performance{}
		}
		summary.ObjectivesAdded++
		if opts.DryRun {
			return nil
		}
		_, err := identity.SaveObjective(target, incoming)
		return err
	}

	if opts.Force {
		summary.ObjectivesUpdated++
		if opts.DryRun {
			return nil
		}
		_, err := identity.SaveObjective(target, incoming)
		return err
	}

	if opts.NoPerformance {
		summary.ObjectivesSkipped++
		return nil
	}

	merged := mergePerformance(existing.Performance, incoming.Performance)
	if len(merged.Rewards) == len(existing.Performance.Rewards) {
		summary.ObjectivesSkipped++
		return nil
	}
	existing.Performance = merged
	summary.ObjectivesUpdated++
	if opts.DryRun {
		return nil
	}
	_, err = identity.SaveObjective(target, existing)
	return err
}

func transferAgent(target identity.Dirs, incoming identity.Agent, opts TransferOptions, summary *TransferSummary) error {
	existing, err := identity.LoadAgent(target, incoming.ID)
	if err != nil {
		if opts.NoPerformance {
			incoming.Performance = identity.Performance{}
		}
		summary.AgentsAdded++
		if opts.DryRun {
			return nil
		}
		_, err := identity.SaveAgent(target, incoming)
		return err
	}

	if opts.Force {
		summary.AgentsUpdated++
		if opts.DryRun {
			return nil
		}
		_, err := identity.SaveAgent(target, incoming)
		return err
	}

	if opts.NoPerformance {
		summary.AgentsSkipped++
		return nil
	}

	merged := mergePerformance(existing.Performance, incoming.Performance)
	if len(merged.Rewards) == len(existing.Performance.Rewards) {
		summary.AgentsSkipped++
		return nil
	}
	existing.Performance = merged
	summary.AgentsUpdated++
	if opts.DryRun {
		return nil
	}
	_, err = identity.SaveAgent(target, existing)
	return err
}

// mergePerformance unions two reward-ref histories by (task_id,
// timestamp), then recomputes the mean from scratch — the same
// append-and-recompute idiom RecordReward uses, just seeded from both
// sides instead of one append.
func mergePerformance(existing, incoming identity.Performance) identity.Performance {
	type key struct {
		taskID string
		ts     int64
	}
	seen := make(map[key]bool, len(existing.Rewards)+len(incoming.Rewards))
	var merged identity.Performance

	for _, r := range existing.Rewards {
		k := key{r.TaskID, r.Timestamp.UnixNano()}
		if !seen[k] {
			seen[k] = true
			merged.AppendAndRecompute(r)
		}
	}
	for _, r := range incoming.Rewards {
		k := key{r.TaskID, r.Timestamp.UnixNano()}
		if !seen[k] {
			seen[k] = true
			merged.AppendAndRecompute(r)
		}
	}
	return merged
}

func transferRewards(source, target identity.Dirs, opts TransferOptions, summary *TransferSummary) error {
	rewards, err := identity.LoadAllRewards(source)
	if err != nil {
		return err
	}
	for _, r := range rewards {
		if _, err := identity.LoadReward(target, r.ID); err == nil {
			summary.RewardsSkipped++
			continue
		}
		summary.RewardsAdded++
		if opts.DryRun {
			continue
		}
		if _, err := identity.SaveReward(target, r); err != nil {
			return err
		}
	}
	return nil
}
