package function

import "testing"

func floatPtr(f float64) *float64 { return &f }

func TestValidateInputsAppliesDefaultAndRequires(t *testing.T) {
	f := sampleFunction()
	resolved, err := ValidateInputs(f.Inputs, map[string]any{"feature_name": "my-feature"})
	if err != nil {
		t.Fatalf("ValidateInputs: %v", err)
	}
	if resolved["feature_name"] != "my-feature" {
		t.Fatalf("feature_name = %v", resolved["feature_name"])
	}
	if resolved["test_command"] != "cargo test" {
		t.Fatalf("test_command = %v, want default", resolved["test_command"])
	}
}

func TestValidateInputsMissingRequired(t *testing.T) {
	f := sampleFunction()
	_, err := ValidateInputs(f.Inputs, map[string]any{})
	if err == nil {
		t.Fatalf("expected error for missing required input")
	}
}

func TestValidateInputsWrongType(t *testing.T) {
	f := sampleFunction()
	_, err := ValidateInputs(f.Inputs, map[string]any{"feature_name": 42.0})
	if err == nil {
		t.Fatalf("expected error for wrong type")
	}
}

func TestValidateNumberRange(t *testing.T) {
	defs := []FunctionInput{{Name: "threshold", Type: InputNumber, Required: true, Min: floatPtr(0.0), Max: floatPtr(1.0)}}

	if _, err := ValidateInputs(defs, map[string]any{"threshold": 0.5}); err != nil {
		t.Fatalf("expected valid, got %v", err)
	}
	if _, err := ValidateInputs(defs, map[string]any{"threshold": -0.1}); err == nil {
		t.Fatalf("expected error for below minimum")
	}
	if _, err := ValidateInputs(defs, map[string]any{"threshold": 1.5}); err == nil {
		t.Fatalf("expected error for above maximum")
	}
}

func TestValidateEnumValues(t *testing.T) {
	defs := []FunctionInput{{Name: "language", Type: InputEnum, Required: true, Values: []string{"rust", "python", "go"}}}

	if _, err := ValidateInputs(defs, map[string]any{"language": "rust"}); err != nil {
		t.Fatalf("expected valid, got %v", err)
	}
	if _, err := ValidateInputs(defs, map[string]any{"language": "java"}); err == nil {
		t.Fatalf("expected error for invalid enum value")
	}
}

func TestValidateFunctionValid(t *testing.T) {
	if err := ValidateFunction(sampleFunction()); err != nil {
		t.Fatalf("expected valid function, got %v", err)
	}
}

func TestValidateFunctionBadBlockedBy(t *testing.T) {
	f := sampleFunction()
	f.Tasks[1].BlockedBy = []string{"nonexistent"}
	if err := ValidateFunction(f); err == nil {
		t.Fatalf("expected error for unresolved blocked_by")
	}
}

func TestValidateFunctionBadLoopsTo(t *testing.T) {
	f := sampleFunction()
	f.Tasks[3].LoopsTo[0].Target = "nonexistent"
	if err := ValidateFunction(f); err == nil {
		t.Fatalf("expected error for unresolved loops_to")
	}
}

func TestValidateFunctionDuplicateTemplateIDs(t *testing.T) {
	f := sampleFunction()
	f.Tasks[1].TemplateID = "plan"
	if err := ValidateFunction(f); err == nil {
		t.Fatalf("expected error for duplicate template_id")
	}
}

func TestValidateFunctionDetectsCycle(t *testing.T) {
	f := TraceFunction{
		Tasks: []TaskTemplate{
			{TemplateID: "a", BlockedBy: []string{"b"}},
			{TemplateID: "b", BlockedBy: []string{"a"}},
		},
	}
	if err := ValidateFunction(f); err == nil {
		t.Fatalf("expected error for circular blocked_by")
	}
}
