package identity

// RecordReward implements the spec's three-level recording: the reward is
// always saved first, then each of role/objective/agent is updated
// independently if it resolves — a missing agent never blocks the role
// update, and a missing role never blocks saving the reward itself.
func RecordReward(dirs Dirs, r Reward) error {
	if _, err := saveYAML(dirs.Rewards, r.ID, r); err != nil {
		return err
	}

	if r.RoleID != "" && r.RoleID != UnknownID {
		if role, err := LoadRole(dirs, r.RoleID); err == nil {
			role.Performance.AppendAndRecompute(RewardRef{
				Value: r.Value, TaskID: r.TaskID, Timestamp: r.Timestamp, ContextID: r.ObjectiveID,
			})
			if _, err := SaveRole(dirs, role); err != nil {
				return err
			}
		}
	}

	if r.ObjectiveID != "" && r.ObjectiveID != UnknownID {
		if obj, err := LoadObjective(dirs, r.ObjectiveID); err == nil {
			obj.Performance.AppendAndRecompute(RewardRef{
				Value: r.Value, TaskID: r.TaskID, Timestamp: r.Timestamp, ContextID: r.RoleID,
			})
			if _, err := SaveObjective(dirs, obj); err != nil {
				return err
			}
		}
	}

	if r.AgentID != "" && r.AgentID != UnknownID {
		if agent, err := LoadAgent(dirs, r.AgentID); err == nil {
			ctx := r.RoleID
			if ctx == "" {
				ctx = r.TaskID
			}
			agent.Performance.AppendAndRecompute(RewardRef{
				Value: r.Value, TaskID: r.TaskID, Timestamp: r.Timestamp, ContextID: ctx,
			})
			if _, err := SaveAgent(dirs, agent); err != nil {
				return err
			}
		}
	}

	return nil
}

// RecomputeAllPerformance rebuilds every role/objective/agent's performance
// record from scratch off the append-only reward files, for recovery after
// a crash between steps of RecordReward. It never trusts the existing
// on-disk performance blocks — only the raw reward log.
func RecomputeAllPerformance(dirs Dirs) error {
	rewards, err := loadAllYAML[Reward](dirs.Rewards)
	if err != nil {
		return err
	}

	roleRefs := map[string][]RewardRef{}
	objRefs := map[string][]RewardRef{}
	agentRefs := map[string][]RewardRef{}

	for _, r := range rewards {
		if r.RoleID != "" && r.RoleID != UnknownID {
			roleRefs[r.RoleID] = append(roleRefs[r.RoleID], RewardRef{
				Value: r.Value, TaskID: r.TaskID, Timestamp: r.Timestamp, ContextID: r.ObjectiveID,
			})
		}
		if r.ObjectiveID != "" && r.ObjectiveID != UnknownID {
			objRefs[r.ObjectiveID] = append(objRefs[r.ObjectiveID], RewardRef{
				Value: r.Value, TaskID: r.TaskID, Timestamp: r.Timestamp, ContextID: r.RoleID,
			})
		}
		if r.AgentID != "" && r.AgentID != UnknownID {
			ctx := r.RoleID
			if ctx == "" {
				ctx = r.TaskID
			}
			agentRefs[r.AgentID] = append(agentRefs[r.AgentID], RewardRef{
				Value: r.Value, TaskID: r.TaskID, Timestamp: r.Timestamp, ContextID: ctx,
			})
		}
	}

	roles, err := LoadAllRoles(dirs)
	if err != nil {
		return err
	}
	for _, role := range roles {
		role.Performance = rebuild(roleRefs[role.ID])
		if _, err := SaveRole(dirs, role); err != nil {
			return err
		}
	}

	objectives, err := LoadAllObjectives(dirs)
	if err != nil {
		return err
	}
	for _, obj := range objectives {
		obj.Performance = rebuild(objRefs[obj.ID])
		if _, err := SaveObjective(dirs, obj); err != nil {
			return err
		}
	}

	agents, err := LoadAllAgents(dirs)
	if err != nil {
		return err
	}
	for _, agent := range agents {
		agent.Performance = rebuild(agentRefs[agent.ID])
		if _, err := SaveAgent(dirs, agent); err != nil {
			return err
		}
	}

	return nil
}

func rebuild(refs []RewardRef) Performance {
	var p Performance
	for _, ref := range refs {
		p.AppendAndRecompute(ref)
	}
	return p
}
