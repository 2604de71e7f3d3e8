package function

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/antigravity-dev/workgraphd/internal/graph"
	"github.com/antigravity-dev/workgraphd/internal/identity"
	"github.com/antigravity-dev/workgraphd/internal/wgerr"
)

// ExtractOptions controls Extract's behavior.
type ExtractOptions struct {
	// Name overrides the derived function id/title; empty means derive
	// both from the root task's id.
	Name string
	// Subgraph extracts the root task plus everything transitively
	// blocked by it; false extracts only the root task.
	Subgraph bool
}

// Extract builds a TraceFunction from a completed task (and, with
// Subgraph, its downstream subgraph). It does not persist anything —
// callers pass the result to Save once they've decided where it goes.
func Extract(g *graph.Graph, dirs identity.Dirs, taskID string, opts ExtractOptions, now time.Time) (TraceFunction, error) {
	task, ok := g.GetTask(taskID)
	if !ok {
		return TraceFunction{}, wgerr.New(wgerr.NotFound, "task '%s' not found", taskID)
	}
	if task.Status != graph.StatusDone {
		return TraceFunction{}, wgerr.New(wgerr.PreconditionFailed, "task '%s' is in '%s' status; only completed (done) tasks can be extracted into trace functions", taskID, task.Status)
	}

	funcID := opts.Name
	if funcID == "" {
		funcID = SanitizeID(taskID)
	}

	var tasks []*graph.Task
	if opts.Subgraph {
		tasks = CollectSubgraph(g, taskID)
	} else {
		tasks = []*graph.Task{task}
	}

	subgraphIDs := make(map[string]bool, len(tasks))
	for _, t := range tasks {
		subgraphIDs[t.ID] = true
	}

	templates := make([]TaskTemplate, len(tasks))
	for i, t := range tasks {
		templates[i] = BuildTemplate(t, taskID, subgraphIDs, dirs)
	}

	name := opts.Name
	if name == "" {
		name = SanitizeID(taskID)
	}

	description := task.Description
	if description == "" {
		description = task.Title
	}

	f := TraceFunction{
		Kind:        "trace-function",
		Version:     1,
		ID:          funcID,
		Name:        TitleCase(name),
		Description: description,
		ExtractedFrom: []ExtractionSource{{
			TaskID:    taskID,
			Timestamp: now.Format(time.RFC3339),
		}},
		ExtractedBy: task.AssignedAgent,
		ExtractedAt: now.Format(time.RFC3339),
		Tags:        append([]string(nil), task.Tags...),
		Inputs:      DetectParameters(tasks),
		Tasks:       templates,
		Outputs:     BuildOutputs(tasks),
	}

	if err := ValidateFunction(f); err != nil {
		return TraceFunction{}, wgerr.Wrap(wgerr.Validation, err, "extracted function failed validation")
	}

	return f, nil
}

// CollectSubgraph gathers root plus every task transitively blocked by it
// (forward over blocked_by), sorted by ascending blocked_by count so
// upstream tasks precede their dependents in the returned slice.
func CollectSubgraph(g *graph.Graph, rootID string) []*graph.Task {
	visited := map[string]bool{}
	queue := []string{rootID}
	var result []*graph.Task

	for len(queue) > 0 {
		id := queue[len(queue)-1]
		queue = queue[:len(queue)-1]
		if visited[id] {
			continue
		}
		visited[id] = true

		t, ok := g.GetTask(id)
		if !ok {
			continue
		}
		result = append(result, t)
		for _, other := range g.Tasks() {
			for _, b := range other.BlockedBy {
				if b == id {
					queue = append(queue, other.ID)
					break
				}
			}
		}
	}

	sortByBlockedByCount(result)
	return result
}

func sortByBlockedByCount(tasks []*graph.Task) {
	for i := 1; i < len(tasks); i++ {
		j := i
		for j > 0 && len(tasks[j-1].BlockedBy) > len(tasks[j].BlockedBy) {
			tasks[j-1], tasks[j] = tasks[j], tasks[j-1]
			j--
		}
	}
}

// BuildTemplate converts a completed task into a TaskTemplate, remapping
// blocked_by/loops_to targets from real task ids to template ids (via
// StripPrefix) and dropping any reference outside subgraphIDs.
func BuildTemplate(t *graph.Task, rootID string, subgraphIDs map[string]bool, dirs identity.Dirs) TaskTemplate {
	var blockedBy []string
	for _, b := range t.BlockedBy {
		if subgraphIDs[b] {
			blockedBy = append(blockedBy, StripPrefix(b, rootID))
		}
	}

	var loopsTo []LoopEdgeTemplate
	for _, l := range t.LoopEdges {
		if !subgraphIDs[l.Target] {
			continue
		}
		edge := LoopEdgeTemplate{
			Target:        StripPrefix(l.Target, rootID),
			MaxIterations: l.MaxIterations,
		}
		if l.Guard.Kind != "" && l.Guard.Kind != graph.GuardAlways {
			if raw, err := json.Marshal(l.Guard); err == nil {
				edge.Guard = string(raw)
			}
		}
		if l.Delay != nil {
			edge.Delay = l.Delay.String()
		}
		loopsTo = append(loopsTo, edge)
	}

	description := t.Description
	if description == "" {
		description = t.Title
	}

	return TaskTemplate{
		TemplateID:   StripPrefix(t.ID, rootID),
		Title:        t.Title,
		Description:  description,
		Skills:       append([]string(nil), t.Skills...),
		BlockedBy:    blockedBy,
		LoopsTo:      loopsTo,
		RoleHint:     lookupRoleHint(t, dirs),
		Deliverables: append([]string(nil), t.Deliverables...),
		Verify:       t.VerifyCommand,
		Tags:         append([]string(nil), t.Tags...),
	}
}

func lookupRoleHint(t *graph.Task, dirs identity.Dirs) string {
	if t.AgentID == "" {
		return ""
	}
	agent, err := identity.FindAgentByPrefix(dirs, t.AgentID)
	if err != nil {
		return ""
	}
	role, err := identity.FindRoleByPrefix(dirs, agent.RoleID)
	if err != nil {
		return ""
	}
	return strings.ReplaceAll(strings.ToLower(role.Name), " ", "-")
}

// BuildOutputs produces one FunctionOutput per task that carries artifacts,
// sourcing the "artifacts" field of that task.
func BuildOutputs(tasks []*graph.Task) []FunctionOutput {
	var outputs []FunctionOutput
	for _, t := range tasks {
		if len(t.Artifacts) == 0 {
			continue
		}
		templateID := SanitizeID(t.ID)
		outputs = append(outputs, FunctionOutput{
			Name:        strings.ReplaceAll(templateID, "-", "_") + "_artifacts",
			Description: "Artifacts produced by " + t.Title,
			FromTask:    templateID,
			Field:       "artifacts",
		})
	}
	return outputs
}

var fileExtensions = map[string]bool{
	"rs": true, "py": true, "js": true, "ts": true, "tsx": true, "jsx": true,
	"go": true, "java": true, "c": true, "cpp": true, "h": true, "hpp": true,
	"rb": true, "yml": true, "yaml": true, "toml": true, "json": true,
	"md": true, "txt": true, "sh": true, "css": true, "html": true,
	"sql": true, "proto": true, "zig": true, "ex": true, "exs": true,
}

var commandPrefixes = []string{
	"cargo test", "cargo build", "cargo clippy", "cargo check",
	"npm test", "npm run", "yarn test", "pytest", "python -m pytest",
	"go test", "make test", "make check", "make build",
}

// DetectParameters scans task titles/descriptions for instance-specific
// values — a feature-name prefix, file paths, URLs, verify commands, bare
// numbers — and proposes them as FunctionInput definitions.
func DetectParameters(tasks []*graph.Task) []FunctionInput {
	var inputs []FunctionInput
	seen := map[string]bool{}

	var allText strings.Builder
	for _, t := range tasks {
		allText.WriteString(t.Title)
		allText.WriteByte('\n')
		if t.Description != "" {
			allText.WriteString(t.Description)
			allText.WriteByte('\n')
		}
	}
	text := allText.String()

	if len(tasks) > 0 && !seen["feature_name"] {
		inputs = append(inputs, FunctionInput{
			Name:        "feature_name",
			Type:        InputString,
			Description: "Short name for the feature (used as task ID prefix)",
			Required:    true,
			Example:     tasks[0].ID,
		})
		seen["feature_name"] = true
	}

	filePaths := extractFilePaths(text)
	if len(filePaths) > 0 && !seen["source_files"] {
		inputs = append(inputs, FunctionInput{
			Name:        "source_files",
			Type:        InputFileList,
			Description: "Key source files to modify",
			Default:     []any{},
			Example:     toAnySlice(filePaths),
		})
		seen["source_files"] = true
	}
	if !seen["source_files"] {
		var artifactPaths []string
		for _, t := range tasks {
			artifactPaths = append(artifactPaths, t.Artifacts...)
		}
		if len(artifactPaths) > 0 {
			inputs = append(inputs, FunctionInput{
				Name:        "source_files",
				Type:        InputFileList,
				Description: "Key source files to modify",
				Default:     []any{},
				Example:     toAnySlice(artifactPaths),
			})
			seen["source_files"] = true
		}
	}

	for i, url := range extractURLs(text) {
		name := "url"
		if i > 0 {
			name = "url_" + strconv.Itoa(i+1)
		}
		if seen[name] {
			continue
		}
		inputs = append(inputs, FunctionInput{
			Name:        name,
			Type:        InputURL,
			Description: "URL reference",
			Example:     url,
		})
		seen[name] = true
	}

	if commands := extractCommands(text); len(commands) > 0 && !seen["test_command"] {
		inputs = append(inputs, FunctionInput{
			Name:        "test_command",
			Type:        InputString,
			Description: "Command to verify the implementation",
			Default:     commands[0],
		})
		seen["test_command"] = true
	}

	for i, n := range extractNumbers(text) {
		name := "threshold"
		if i > 0 {
			name = "value_" + strconv.Itoa(i+1)
		}
		if seen[name] {
			continue
		}
		inputs = append(inputs, FunctionInput{
			Name:        name,
			Type:        InputNumber,
			Description: "Numeric parameter",
			Default:     n,
		})
		seen[name] = true
	}

	return inputs
}

func toAnySlice(ss []string) []any {
	out := make([]any, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}

func extractFilePaths(text string) []string {
	var paths []string
	seen := map[string]bool{}
	for _, word := range strings.Fields(text) {
		word = strings.Trim(word, ",;\"'()[]")
		if !strings.Contains(word, "/") || strings.HasPrefix(word, "http") || strings.HasPrefix(word, "//") {
			continue
		}
		dot := strings.LastIndex(word, ".")
		if dot == -1 {
			continue
		}
		ext := word[dot+1:]
		if fileExtensions[ext] && !seen[word] {
			seen[word] = true
			paths = append(paths, word)
		}
	}
	return paths
}

func extractURLs(text string) []string {
	var urls []string
	seen := map[string]bool{}
	for _, word := range strings.Fields(text) {
		word = strings.Trim(word, ",;\"'()")
		if (strings.HasPrefix(word, "http://") || strings.HasPrefix(word, "https://")) && len(word) > 10 && !seen[word] {
			seen[word] = true
			urls = append(urls, word)
		}
	}
	return urls
}

func extractCommands(text string) []string {
	var commands []string
	seen := map[string]bool{}
	lower := strings.ToLower(text)
	for _, prefix := range commandPrefixes {
		pos := strings.Index(lower, prefix)
		if pos == -1 {
			continue
		}
		rest := text[pos:]
		end := strings.IndexByte(rest, '\n')
		if end == -1 {
			end = len(rest)
		}
		cmd := strings.TrimSpace(rest[:end])
		if !seen[cmd] {
			seen[cmd] = true
			commands = append(commands, cmd)
		}
	}
	return commands
}

func extractNumbers(text string) []float64 {
	var numbers []float64
	seen := map[string]bool{}
	for _, word := range strings.Fields(text) {
		trimmed := strings.TrimFunc(word, func(r rune) bool {
			return !(r >= '0' && r <= '9') && r != '.' && r != '-'
		})
		if trimmed == "" {
			continue
		}
		if strings.Count(trimmed, ".") > 1 {
			continue
		}
		if len(trimmed) > 8 {
			continue
		}
		n, err := strconv.ParseFloat(trimmed, 64)
		if err != nil {
			continue
		}
		if n == 0 || n == 1 {
			continue
		}
		key := strconv.FormatFloat(n, 'g', -1, 64)
		if !seen[key] {
			seen[key] = true
			numbers = append(numbers, n)
		}
	}
	return numbers
}

// SanitizeID normalizes s into a kebab-case identifier: non-alphanumeric
// runs collapse to a single hyphen, case is lowered, and leading/trailing
// hyphens are trimmed.
func SanitizeID(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r >= 'A' && r <= 'Z':
			b.WriteRune(r - 'A' + 'a')
		default:
			b.WriteByte('-')
		}
	}
	return strings.Trim(b.String(), "-")
}

// StripPrefix shortens taskID by removing a "<rootID>-" prefix, for
// deriving a template id from a real task id. Falls back to the sanitized
// full id when the prefix doesn't apply.
func StripPrefix(taskID, rootID string) string {
	prefix := rootID + "-"
	if strings.HasPrefix(taskID, prefix) && len(taskID) > len(prefix) {
		return SanitizeID(taskID[len(prefix):])
	}
	return SanitizeID(taskID)
}

// TitleCase renders a kebab-case string as space-separated Title Case
// words.
func TitleCase(s string) string {
	parts := strings.Split(s, "-")
	for i, part := range parts {
		if part == "" {
			continue
		}
		parts[i] = strings.ToUpper(part[:1]) + part[1:]
	}
	return strings.Join(parts, " ")
}
