package identity

import "time"

// maxGeneration returns the highest generation among parents.
func maxGeneration(parents []Lineage) uint32 {
	var max uint32
	for _, l := range parents {
		if l.Generation > max {
			max = l.Generation
		}
	}
	return max
}

// MutateRole produces a child role from parent with caller-supplied mutated
// immutable fields, recomputing the content hash and lineage. The caller
// decides the mutation strategy; the evolver only persists the result in the
// expected shape (spec.md §4.4: "Mutation takes a parent and produces a
// child with modified immutable fields").
func MutateRole(parent Role, skills []Skill, desiredOutcome, description, runTag string, now time.Time) Role {
	child := parent
	child.Skills = skills
	child.DesiredOutcome = desiredOutcome
	child.Description = description
	child.ID = ContentHashRole(skills, desiredOutcome, description)
	child.Performance = Performance{}
	child.Lineage = Lineage{
		ParentIDs:  []string{parent.ID},
		Generation: parent.Lineage.Generation + 1,
		Creator:    "evolver-" + runTag,
		CreatedAt:  now,
	}
	return child
}

// CrossoverRole produces a child role from >=2 parents. The immutable fields
// (skills, desiredOutcome, description) are supplied by the caller's
// crossover strategy; this function only fixes the id and lineage.
func CrossoverRole(parents []Role, skills []Skill, desiredOutcome, description, runTag string, now time.Time) Role {
	parentIDs := make([]string, len(parents))
	lineages := make([]Lineage, len(parents))
	for i, p := range parents {
		parentIDs[i] = p.ID
		lineages[i] = p.Lineage
	}
	return Role{
		ID:             ContentHashRole(skills, desiredOutcome, description),
		Skills:         skills,
		DesiredOutcome: desiredOutcome,
		Description:    description,
		Performance:    Performance{},
		Lineage: Lineage{
			ParentIDs:  parentIDs,
			Generation: maxGeneration(lineages) + 1,
			Creator:    "evolver-" + runTag,
			CreatedAt:  now,
		},
	}
}

// MutateObjective mirrors MutateRole for objectives.
func MutateObjective(parent Objective, acceptable, unacceptable []string, description, runTag string, now time.Time) Objective {
	child := parent
	child.AcceptableTradeoffs = acceptable
	child.UnacceptableTradeoffs = unacceptable
	child.Description = description
	child.ID = ContentHashObjective(acceptable, unacceptable, description)
	child.Performance = Performance{}
	child.Lineage = Lineage{
		ParentIDs:  []string{parent.ID},
		Generation: parent.Lineage.Generation + 1,
		Creator:    "evolver-" + runTag,
		CreatedAt:  now,
	}
	return child
}

// CrossoverObjective mirrors CrossoverRole for objectives.
func CrossoverObjective(parents []Objective, acceptable, unacceptable []string, description, runTag string, now time.Time) Objective {
	parentIDs := make([]string, len(parents))
	lineages := make([]Lineage, len(parents))
	for i, p := range parents {
		parentIDs[i] = p.ID
		lineages[i] = p.Lineage
	}
	return Objective{
		ID:                    ContentHashObjective(acceptable, unacceptable, description),
		AcceptableTradeoffs:   acceptable,
		UnacceptableTradeoffs: unacceptable,
		Description:           description,
		Performance:           Performance{},
		Lineage: Lineage{
			ParentIDs:  parentIDs,
			Generation: maxGeneration(lineages) + 1,
			Creator:    "evolver-" + runTag,
			CreatedAt:  now,
		},
	}
}

// MutateAgent re-pairs an agent with a (possibly new) role/objective,
// recomputing its id since an Agent's immutable fields are just the pairing.
func MutateAgent(parent Agent, roleID, objectiveID, runTag string, now time.Time) Agent {
	child := parent
	child.RoleID = roleID
	child.ObjectiveID = objectiveID
	child.ID = ContentHashAgent(roleID, objectiveID)
	child.Performance = Performance{}
	child.Lineage = Lineage{
		ParentIDs:  []string{parent.ID},
		Generation: parent.Lineage.Generation + 1,
		Creator:    "evolver-" + runTag,
		CreatedAt:  now,
	}
	return child
}
