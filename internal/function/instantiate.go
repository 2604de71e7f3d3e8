package function

import (
	"encoding/json"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/antigravity-dev/workgraphd/internal/graph"
	"github.com/antigravity-dev/workgraphd/internal/wgerr"
)

// PeerResolver lets Instantiate's ResolveSource follow a `peer:function-id`
// or bare-peer-name `--from` source without this package depending on
// internal/federation directly. The federation package implements this by
// resolving the peer's workgraph root and pointing at its functions dir.
type PeerResolver interface {
	ResolveFunctionsDir(peerName string) (string, error)
}

// ResolveSource resolves a `--from`-style source string to a TraceFunction,
// per this precedence:
//  1. "peer:function-id" — resolve peer, load remoteFunctionID from its
//     functions dir.
//  2. a path ending in .yaml/.yml — load directly as a file.
//  3. otherwise — treat source as a bare peer name, looking up functionID
//     in its functions dir.
func ResolveSource(source, functionID string, resolver PeerResolver) (TraceFunction, error) {
	if idx := strings.IndexByte(source, ':'); idx != -1 {
		peerName, remoteID := source[:idx], source[idx+1:]
		if resolver == nil {
			return TraceFunction{}, wgerr.New(wgerr.NotFound, "no peer resolver configured, cannot resolve '%s'", source)
		}
		dir, err := resolver.ResolveFunctionsDir(peerName)
		if err != nil {
			return TraceFunction{}, wgerr.Wrap(wgerr.NotFound, err, "from peer '%s'", peerName)
		}
		f, err := FindByPrefix(dir, remoteID)
		if err != nil {
			return TraceFunction{}, wgerr.Wrap(wgerr.NotFound, err, "from peer '%s'", peerName)
		}
		return f, nil
	}

	if strings.HasSuffix(source, ".yaml") || strings.HasSuffix(source, ".yml") {
		abs, err := resolveFilePath(source)
		if err != nil {
			return TraceFunction{}, err
		}
		return Load(abs)
	}

	if resolver == nil {
		return TraceFunction{}, wgerr.New(wgerr.NotFound, "no peer resolver configured, cannot resolve '%s'", source)
	}
	dir, err := resolver.ResolveFunctionsDir(source)
	if err != nil {
		return TraceFunction{}, wgerr.Wrap(wgerr.NotFound, err, "from peer '%s'", source)
	}
	f, err := FindByPrefix(dir, functionID)
	if err != nil {
		return TraceFunction{}, wgerr.Wrap(wgerr.NotFound, err, "from peer '%s'", source)
	}
	return f, nil
}

func resolveFilePath(pathStr string) (string, error) {
	expanded := pathStr
	if strings.HasPrefix(pathStr, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", wgerr.Wrap(wgerr.IOFailure, err, "cannot determine home directory")
		}
		expanded = home + pathStr[1:]
	}
	if !strings.HasPrefix(expanded, "/") {
		wd, err := os.Getwd()
		if err != nil {
			return "", wgerr.Wrap(wgerr.IOFailure, err, "resolve working directory")
		}
		expanded = wd + "/" + expanded
	}
	if _, err := os.Stat(expanded); err != nil {
		return "", wgerr.New(wgerr.NotFound, "file not found: %s", expanded)
	}
	return expanded, nil
}

// ParseInputPair parses a "key=value" CLI-style flag, converting value to
// the type implied by the matching FunctionInput definition (string when
// the key isn't recognized).
func ParseInputPair(input string, defs []FunctionInput) (string, any, error) {
	key, valueStr, ok := strings.Cut(input, "=")
	if !ok {
		return "", nil, wgerr.New(wgerr.Validation, "invalid input format '%s', expected key=value", input)
	}
	key = strings.TrimSpace(key)
	valueStr = strings.TrimSpace(valueStr)

	var def *FunctionInput
	for i := range defs {
		if defs[i].Name == key {
			def = &defs[i]
			break
		}
	}

	if def == nil {
		return key, valueStr, nil
	}

	switch def.Type {
	case InputNumber:
		n, err := strconv.ParseFloat(valueStr, 64)
		if err != nil {
			return "", nil, wgerr.New(wgerr.Validation, "input '%s' should be a number but got '%s'", key, valueStr)
		}
		return key, n, nil
	case InputFileList:
		parts := strings.Split(valueStr, ",")
		items := make([]any, len(parts))
		for i, p := range parts {
			items[i] = strings.TrimSpace(p)
		}
		return key, items, nil
	case InputJSON:
		var v any
		if err := yaml.Unmarshal([]byte(valueStr), &v); err != nil {
			return "", nil, wgerr.Wrap(wgerr.Validation, err, "input '%s' should be valid JSON", key)
		}
		return key, v, nil
	default:
		return key, valueStr, nil
	}
}

// ParseInputFile loads a YAML (or JSON, a YAML subset) file of input
// key/value pairs.
func ParseInputFile(path string) (map[string]any, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, wgerr.Wrap(wgerr.IOFailure, err, "read input file '%s'", path)
	}
	var m map[string]any
	if err := yaml.Unmarshal(raw, &m); err != nil {
		return nil, wgerr.Wrap(wgerr.ParseFailure, err, "parse input file '%s'", path)
	}
	return m, nil
}

// ResolveFileContents replaces file_content inputs' values (a file path)
// with the contents of that file.
func ResolveFileContents(defs []FunctionInput, resolved map[string]any) (map[string]any, error) {
	for _, def := range defs {
		if def.Type != InputFileContent {
			continue
		}
		v, ok := resolved[def.Name]
		if !ok {
			continue
		}
		path, ok := v.(string)
		if !ok {
			continue
		}
		contents, err := os.ReadFile(path)
		if err != nil {
			return nil, wgerr.Wrap(wgerr.IOFailure, err, "read file '%s' for file_content input '%s'", path, def.Name)
		}
		resolved[def.Name] = string(contents)
	}
	return resolved, nil
}

// InstantiateOptions configures one Instantiate call.
type InstantiateOptions struct {
	// Prefix overrides the task-id prefix; falls back to the
	// "feature_name" input, then to the function's own id.
	Prefix string
	// BlockedBy are external task ids applied to every root template (one
	// with no internal blocked_by) in the instantiated subgraph.
	BlockedBy []string
	// Model overrides every instantiated task's Model field.
	Model string
	// DryRun computes the plan (ids, dependency wiring) without mutating g.
	DryRun bool
}

// InstantiateResult is what Instantiate produced.
type InstantiateResult struct {
	CreatedIDs []string
	Prefix     string
}

// Instantiate expands a TraceFunction's task templates into real tasks in
// g, substituting resolvedInputs into every templated field and remapping
// template_id references to the freshly minted task ids.
func Instantiate(g *graph.Graph, f TraceFunction, resolvedInputs map[string]any, opts InstantiateOptions, now time.Time) (InstantiateResult, error) {
	prefix := opts.Prefix
	if prefix == "" {
		if name, ok := resolvedInputs["feature_name"].(string); ok && name != "" {
			prefix = name
		} else {
			prefix = f.ID
		}
	}

	idMap := make(map[string]string, len(f.Tasks))
	for _, tmpl := range f.Tasks {
		taskID := prefix + "-" + tmpl.TemplateID
		if !opts.DryRun {
			if _, exists := g.GetTask(taskID); exists {
				return InstantiateResult{}, wgerr.New(wgerr.Conflict, "task '%s' already exists, use a different prefix", taskID)
			}
		}
		idMap[tmpl.TemplateID] = taskID
	}

	var createdIDs []string
	for _, tmpl := range f.Tasks {
		rendered := SubstituteTaskTemplate(tmpl, resolvedInputs)
		taskID := idMap[tmpl.TemplateID]

		var realBlockedBy []string
		for _, dep := range tmpl.BlockedBy {
			if real, ok := idMap[dep]; ok {
				realBlockedBy = append(realBlockedBy, real)
			}
		}
		if len(tmpl.BlockedBy) == 0 {
			realBlockedBy = append(realBlockedBy, opts.BlockedBy...)
		}

		var realLoopsTo []graph.LoopEdge
		for _, edge := range tmpl.LoopsTo {
			real, ok := idMap[edge.Target]
			if !ok {
				continue
			}
			loopEdge := graph.LoopEdge{Target: real, MaxIterations: edge.MaxIterations, Guard: graph.Guard{Kind: graph.GuardAlways}}
			if edge.Guard != "" {
				var g graph.Guard
				if err := json.Unmarshal([]byte(edge.Guard), &g); err == nil {
					loopEdge.Guard = g
				}
			}
			if edge.Delay != "" {
				if d, err := time.ParseDuration(edge.Delay); err == nil {
					loopEdge.Delay = &d
				}
			}
			realLoopsTo = append(realLoopsTo, loopEdge)
		}

		tags := append([]string(nil), rendered.Tags...)
		for _, skill := range rendered.Skills {
			if skill != "" {
				tags = append(tags, "skill:"+skill)
			}
		}
		if rendered.RoleHint != "" {
			tags = append(tags, "role:"+rendered.RoleHint)
		}

		if !opts.DryRun {
			task := graph.Task{
				ID:            taskID,
				Title:         rendered.Title,
				Description:   rendered.Description,
				Status:        graph.StatusOpen,
				BlockedBy:     realBlockedBy,
				Tags:          tags,
				Skills:        rendered.Skills,
				Deliverables:  rendered.Deliverables,
				VerifyCommand: rendered.Verify,
				Model:         opts.Model,
				LoopEdges:     realLoopsTo,
				CreatedAt:     now,
			}
			g.AddTask(task)
			for _, dep := range realBlockedBy {
				g.Link(taskID, dep)
			}
		}

		createdIDs = append(createdIDs, taskID)
	}

	return InstantiateResult{CreatedIDs: createdIDs, Prefix: prefix}, nil
}
