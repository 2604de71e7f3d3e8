package identity

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/antigravity-dev/workgraphd/internal/wgerr"
)

// Dirs is the identity directory layout: one subdirectory per entity kind.
type Dirs struct {
	Root       string
	Roles      string
	Objectives string
	Agents     string
	Rewards    string

	// Index, when non-nil, accelerates the Find*ByPrefix lookups below over
	// a SQLite cache instead of a directory scan. It is never required: the
	// YAML files under Root remain authoritative and every lookup here falls
	// back to scanning them if Index is nil or returns an error other than
	// NotFound/Ambiguous (those two are returned as final results).
	Index *Index
}

// Init resolves and creates the per-kind subdirectories under root.
func Init(root string) (Dirs, error) {
	d := Dirs{
		Root:       root,
		Roles:      filepath.Join(root, "roles"),
		Objectives: filepath.Join(root, "objectives"),
		Agents:     filepath.Join(root, "agents"),
		Rewards:    filepath.Join(root, "rewards"),
	}
	for _, dir := range []string{d.Roles, d.Objectives, d.Agents, d.Rewards} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return Dirs{}, wgerr.Wrap(wgerr.IOFailure, err, "create identity dir %s", dir)
		}
	}
	return d, nil
}

// saveYAML writes v to <dir>/<id>.yaml atomically (write-to-temp-then-rename).
func saveYAML(dir, id string, v any) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", wgerr.Wrap(wgerr.IOFailure, err, "create dir %s", dir)
	}
	out, err := yaml.Marshal(v)
	if err != nil {
		return "", wgerr.Wrap(wgerr.ParseFailure, err, "marshal %s", id)
	}
	path := filepath.Join(dir, id+".yaml")
	tmp := filepath.Join(dir, "."+id+".yaml.tmp")
	if err := os.WriteFile(tmp, out, 0o644); err != nil {
		return "", wgerr.Wrap(wgerr.IOFailure, err, "write temp file for %s", id)
	}
	if err := os.Rename(tmp, path); err != nil {
		return "", wgerr.Wrap(wgerr.IOFailure, err, "rename temp file for %s", id)
	}
	return path, nil
}

func loadYAML[T any](path string) (T, error) {
	var v T
	raw, err := os.ReadFile(path)
	if err != nil {
		return v, wgerr.Wrap(wgerr.IOFailure, err, "read %s", path)
	}
	if err := yaml.Unmarshal(raw, &v); err != nil {
		return v, wgerr.Wrap(wgerr.ParseFailure, err, "parse %s", path)
	}
	return v, nil
}

// loadAllYAML iterates every *.yaml file in dir. A malformed file fails the
// whole batch — the coordinator must never silently drop identity entries.
func loadAllYAML[T any](dir string) ([]T, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, wgerr.Wrap(wgerr.IOFailure, err, "read dir %s", dir)
	}
	var out []T
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".yaml") {
			continue
		}
		v, err := loadYAML[T](filepath.Join(dir, e.Name()))
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

// findByPrefix scans <dir>/*.yaml and resolves the entity whose id starts
// with query. Zero matches -> NotFound; more than one -> Ambiguous with the
// candidate id list attached.
func findByPrefix(dir, query string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return "", wgerr.New(wgerr.NotFound, "no entities in %s", dir)
		}
		return "", wgerr.Wrap(wgerr.IOFailure, err, "read dir %s", dir)
	}
	var matches []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".yaml") {
			continue
		}
		id := strings.TrimSuffix(e.Name(), ".yaml")
		if strings.HasPrefix(id, query) {
			matches = append(matches, id)
		}
	}
	sort.Strings(matches)
	switch len(matches) {
	case 0:
		return "", wgerr.New(wgerr.NotFound, "no entity matching prefix %q in %s", query, dir)
	case 1:
		return matches[0], nil
	default:
		return "", wgerr.New(wgerr.Ambiguous, "prefix %q matches %d entities", query, len(matches)).WithData(matches)
	}
}

// SaveRole writes a role, keyed by its id.
func SaveRole(dirs Dirs, r Role) (string, error) { return saveYAML(dirs.Roles, r.ID, r) }

// LoadRole loads a role by its full id.
func LoadRole(dirs Dirs, id string) (Role, error) { return loadYAML[Role](filepath.Join(dirs.Roles, id+".yaml")) }

// LoadAllRoles loads every role in the roles directory.
func LoadAllRoles(dirs Dirs) ([]Role, error) { return loadAllYAML[Role](dirs.Roles) }

// FindRoleByPrefix resolves a short hash to a full role id, then loads it.
func FindRoleByPrefix(dirs Dirs, query string) (Role, error) {
	id, err := resolvePrefix(dirs, KindRole, dirs.Roles, query)
	if err != nil {
		return Role{}, err
	}
	return LoadRole(dirs, id)
}

// SaveObjective writes an objective, keyed by its id.
func SaveObjective(dirs Dirs, o Objective) (string, error) {
	return saveYAML(dirs.Objectives, o.ID, o)
}

// LoadObjective loads an objective by its full id.
func LoadObjective(dirs Dirs, id string) (Objective, error) {
	return loadYAML[Objective](filepath.Join(dirs.Objectives, id+".yaml"))
}

// LoadAllObjectives loads every objective in the objectives directory.
func LoadAllObjectives(dirs Dirs) ([]Objective, error) { return loadAllYAML[Objective](dirs.Objectives) }

// FindObjectiveByPrefix resolves a short hash to a full objective id, then loads it.
func FindObjectiveByPrefix(dirs Dirs, query string) (Objective, error) {
	id, err := resolvePrefix(dirs, KindObjective, dirs.Objectives, query)
	if err != nil {
		return Objective{}, err
	}
	return LoadObjective(dirs, id)
}

// SaveAgent writes an agent, keyed by its id.
func SaveAgent(dirs Dirs, a Agent) (string, error) { return saveYAML(dirs.Agents, a.ID, a) }

// LoadAgent loads an agent by its full id.
func LoadAgent(dirs Dirs, id string) (Agent, error) {
	return loadYAML[Agent](filepath.Join(dirs.Agents, id+".yaml"))
}

// LoadAllAgents loads every agent in the agents directory.
func LoadAllAgents(dirs Dirs) ([]Agent, error) { return loadAllYAML[Agent](dirs.Agents) }

// FindAgentByPrefix resolves a short hash to a full agent id, then loads it.
func FindAgentByPrefix(dirs Dirs, query string) (Agent, error) {
	id, err := resolvePrefix(dirs, KindAgent, dirs.Agents, query)
	if err != nil {
		return Agent{}, err
	}
	return LoadAgent(dirs, id)
}

// resolvePrefix prefers dirs.Index, when present, over a directory scan.
// Ambiguous/NotFound results from the index are authoritative (they already
// reflect the full candidate set); any other index error falls back to the
// scan rather than failing the lookup outright, since the index is only a
// disposable cache.
func resolvePrefix(dirs Dirs, kind Kind, dir, query string) (string, error) {
	if dirs.Index != nil {
		id, err := dirs.Index.ResolvePrefix(kind, query)
		if err == nil || wgerr.Is(err, wgerr.NotFound) || wgerr.Is(err, wgerr.Ambiguous) {
			return id, err
		}
	}
	return findByPrefix(dir, query)
}

// SaveReward writes a reward record verbatim, keyed by its id. Unlike
// RecordReward it does not touch any role/objective/agent performance
// block — callers that need the append-and-recompute side effects should
// use RecordReward instead; this is for federation transfer, which merges
// performance separately.
func SaveReward(dirs Dirs, r Reward) (string, error) { return saveYAML(dirs.Rewards, r.ID, r) }

// LoadReward loads a reward by its full id.
func LoadReward(dirs Dirs, id string) (Reward, error) {
	return loadYAML[Reward](filepath.Join(dirs.Rewards, id+".yaml"))
}

// LoadAllRewards loads every reward in the rewards directory.
func LoadAllRewards(dirs Dirs) ([]Reward, error) { return loadAllYAML[Reward](dirs.Rewards) }

// IsHumanExecutor reports whether executor names a human operator rather
// than an AI backend, matching the conventional sentinel value.
func IsHumanExecutor(executor string) bool {
	return strings.EqualFold(executor, "human")
}
