package function

import (
	"encoding/json"
	"strconv"
	"strings"
)

// RenderValue stringifies a resolved input value for template substitution.
// Sequences render as newline-joined items (convenient for file_list); maps
// render as JSON.
func RenderValue(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case bool:
		return strconv.FormatBool(val)
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case float64:
		if val == float64(int64(val)) {
			return strconv.FormatInt(int64(val), 10)
		}
		return strconv.FormatFloat(val, 'f', -1, 64)
	case []string:
		return strings.Join(val, "\n")
	case []any:
		items := make([]string, len(val))
		for i, item := range val {
			items[i] = RenderValue(item)
		}
		return strings.Join(items, "\n")
	default:
		out, err := json.Marshal(val)
		if err != nil {
			return ""
		}
		return string(out)
	}
}

// Substitute applies `{{input.<name>}}` replacement to template using
// plain string replacement, matching the rest of the codebase's template
// idiom.
func Substitute(template string, inputs map[string]any) string {
	result := template
	for name, value := range inputs {
		placeholder := "{{input." + name + "}}"
		result = strings.ReplaceAll(result, placeholder, RenderValue(value))
	}
	return result
}

// SubstituteTaskTemplate applies Substitute to every templated string field
// of a TaskTemplate, leaving blocked_by/loops_to (template_id references,
// resolved separately during instantiation) and role_hint untouched.
func SubstituteTaskTemplate(t TaskTemplate, inputs map[string]any) TaskTemplate {
	rendered := t
	rendered.Title = Substitute(t.Title, inputs)
	rendered.Description = Substitute(t.Description, inputs)
	rendered.Skills = mapSubstitute(t.Skills, inputs)
	rendered.Deliverables = mapSubstitute(t.Deliverables, inputs)
	if t.Verify != "" {
		rendered.Verify = Substitute(t.Verify, inputs)
	}
	return rendered
}

func mapSubstitute(ss []string, inputs map[string]any) []string {
	if ss == nil {
		return nil
	}
	out := make([]string, len(ss))
	for i, s := range ss {
		out[i] = Substitute(s, inputs)
	}
	return out
}
