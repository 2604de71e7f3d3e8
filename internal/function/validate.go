package function

import (
	"fmt"

	"github.com/antigravity-dev/workgraphd/internal/wgerr"
)

// ValidateInputs checks provided values against a function's input
// definitions and returns the resolved map with defaults applied. Missing
// required inputs without a default are an error; unrecognized provided
// keys are not validated and are not copied into the returned map.
func ValidateInputs(defs []FunctionInput, provided map[string]any) (map[string]any, error) {
	resolved := make(map[string]any)
	for _, def := range defs {
		value, has := provided[def.Name]
		switch {
		case has:
			if err := validateValue(def.Name, value, def); err != nil {
				return nil, err
			}
			resolved[def.Name] = value
		case def.Default != nil:
			resolved[def.Name] = def.Default
		case def.Required:
			return nil, wgerr.New(wgerr.Validation, "missing required input '%s'", def.Name)
		}
	}
	return resolved, nil
}

func validateValue(name string, value any, def FunctionInput) error {
	switch def.Type {
	case InputString, InputText, InputURL:
		if _, ok := value.(string); !ok {
			return wgerr.New(wgerr.Validation, "input '%s' must be a string, got %s", name, typeName(value))
		}
	case InputNumber:
		num, ok := asFloat(value)
		if !ok {
			return wgerr.New(wgerr.Validation, "input '%s' must be a number, got %s", name, typeName(value))
		}
		if def.Min != nil && num < *def.Min {
			return wgerr.New(wgerr.Validation, "input '%s' value %v is below minimum %v", name, num, *def.Min)
		}
		if def.Max != nil && num > *def.Max {
			return wgerr.New(wgerr.Validation, "input '%s' value %v exceeds maximum %v", name, num, *def.Max)
		}
	case InputFileList:
		if _, ok := value.([]any); !ok {
			if _, ok2 := value.([]string); !ok2 {
				return wgerr.New(wgerr.Validation, "input '%s' must be a list, got %s", name, typeName(value))
			}
		}
	case InputFileContent:
		if _, ok := value.(string); !ok {
			return wgerr.New(wgerr.Validation, "input '%s' must be a file path (string), got %s", name, typeName(value))
		}
	case InputEnum:
		s, ok := value.(string)
		if !ok {
			return wgerr.New(wgerr.Validation, "input '%s' must be a string for enum type, got %s", name, typeName(value))
		}
		if len(def.Values) > 0 && !contains(def.Values, s) {
			return wgerr.New(wgerr.Validation, "input '%s' value '%s' is not one of: %v", name, s, def.Values)
		}
	case InputJSON:
		// any value is accepted
	}
	return nil
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint64:
		return float64(n), true
	default:
		return 0, false
	}
}

func typeName(v any) string {
	if v == nil {
		return "null"
	}
	switch v.(type) {
	case string:
		return "string"
	case bool:
		return "bool"
	case float64, float32, int, int64, uint64:
		return "number"
	case []any, []string:
		return "list"
	case map[string]any:
		return "mapping"
	default:
		return fmt.Sprintf("%T", v)
	}
}

func contains(ss []string, s string) bool {
	for _, v := range ss {
		if v == s {
			return true
		}
	}
	return false
}

// ValidateFunction checks the internal consistency of a TraceFunction
// definition: no duplicate template ids, every blocked_by/loops_to
// reference resolves to a template_id within the function, and no cycle
// exists in the blocked_by graph.
func ValidateFunction(f TraceFunction) error {
	ids := make(map[string]bool, len(f.Tasks))
	for _, t := range f.Tasks {
		if ids[t.TemplateID] {
			return wgerr.New(wgerr.Validation, "duplicate template_id '%s'", t.TemplateID)
		}
		ids[t.TemplateID] = true
	}

	for _, t := range f.Tasks {
		for _, dep := range t.BlockedBy {
			if !ids[dep] {
				return wgerr.New(wgerr.Validation, "task '%s' has blocked_by '%s' which is not a template_id in this function", t.TemplateID, dep)
			}
		}
		for _, edge := range t.LoopsTo {
			if !ids[edge.Target] {
				return wgerr.New(wgerr.Validation, "task '%s' has loops_to target '%s' which is not a template_id in this function", t.TemplateID, edge.Target)
			}
		}
	}

	// blocksOf[x] = templates whose blocked_by contains x, i.e. what x blocks.
	blocksOf := make(map[string][]string)
	for _, t := range f.Tasks {
		for _, dep := range t.BlockedBy {
			blocksOf[dep] = append(blocksOf[dep], t.TemplateID)
		}
	}

	const (
		white = 0
		gray  = 1
		black = 2
	)
	color := make(map[string]int, len(f.Tasks))
	var visit func(id string) error
	visit = func(id string) error {
		color[id] = gray
		for _, next := range blocksOf[id] {
			switch color[next] {
			case gray:
				return wgerr.New(wgerr.Validation, "circular blocked_by dependency detected involving '%s'", next)
			case white:
				if err := visit(next); err != nil {
					return err
				}
			}
		}
		color[id] = black
		return nil
	}
	for _, t := range f.Tasks {
		if color[t.TemplateID] == white {
			if err := visit(t.TemplateID); err != nil {
				return err
			}
		}
	}

	return nil
}
