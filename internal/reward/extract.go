package reward

import (
	"encoding/json"
	"strings"
)

// ExtractJSON pulls a JSON object out of potentially noisy LLM output. The
// evaluator is instructed to return only JSON, but may wrap it in markdown
// fences or add leading/trailing commentary anyway.
func ExtractJSON(raw string) (string, bool) {
	trimmed := strings.TrimSpace(raw)
	if isValidJSON(trimmed) {
		return trimmed, true
	}

	stripped := trimmed
	if strings.HasPrefix(trimmed, "```") {
		stripped = strings.TrimPrefix(stripped, "```json")
		stripped = strings.TrimPrefix(stripped, "```")
		stripped = strings.TrimSuffix(stripped, "```")
		stripped = strings.TrimSpace(stripped)
		if isValidJSON(stripped) {
			return stripped, true
		}
	}

	start := strings.Index(stripped, "{")
	end := strings.LastIndex(stripped, "}")
	if start == -1 || end == -1 || end < start {
		return "", false
	}
	candidate := stripped[start : end+1]
	if isValidJSON(candidate) {
		return candidate, true
	}
	return "", false
}

func isValidJSON(s string) bool {
	var v any
	return json.Unmarshal([]byte(s), &v) == nil
}

// EvalOutput is the shape the evaluator LLM is instructed to answer with.
type EvalOutput struct {
	Value      float64            `json:"value"`
	Dimensions map[string]float64 `json:"dimensions,omitempty"`
	Notes      string             `json:"notes,omitempty"`
}

// ParseEvalOutput extracts and decodes the evaluator's verdict from raw
// subprocess output.
func ParseEvalOutput(raw string) (EvalOutput, bool) {
	candidate, ok := ExtractJSON(raw)
	if !ok {
		return EvalOutput{}, false
	}
	var out EvalOutput
	if err := json.Unmarshal([]byte(candidate), &out); err != nil {
		return EvalOutput{}, false
	}
	return out, true
}
