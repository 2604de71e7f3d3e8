package function

import (
	"path/filepath"
	"testing"
)

func sampleFunction() TraceFunction {
	return TraceFunction{
		Kind:        "trace-function",
		Version:     1,
		ID:          "impl-feature",
		Name:        "Implement Feature",
		Description: "Plan, implement, test a new feature",
		Inputs: []FunctionInput{
			{Name: "feature_name", Type: InputString, Description: "Short name for the feature", Required: true},
			{Name: "test_command", Type: InputString, Description: "Command to verify", Default: "cargo test"},
		},
		Tasks: []TaskTemplate{
			{TemplateID: "plan", Title: "Plan {{input.feature_name}}", Description: "Plan the implementation of {{input.feature_name}}", RoleHint: "analyst"},
			{TemplateID: "implement", Title: "Implement {{input.feature_name}}", Description: "Implement the feature. Run: {{input.test_command}}", BlockedBy: []string{"plan"}, RoleHint: "programmer"},
			{TemplateID: "validate", Title: "Validate {{input.feature_name}}", Description: "Validate the implementation", BlockedBy: []string{"implement"}},
			{TemplateID: "refine", Title: "Refine {{input.feature_name}}", Description: "Address issues found during validation", BlockedBy: []string{"validate"},
				LoopsTo: []LoopEdgeTemplate{{Target: "validate", MaxIterations: 3}}},
		},
	}
}

func TestSaveAndLoad(t *testing.T) {
	dir := t.TempDir()
	f := sampleFunction()
	path, err := Save(f, dir)
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if filepath.Base(path) != "impl-feature.yaml" {
		t.Fatalf("path = %s, want impl-feature.yaml", path)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.ID != "impl-feature" || loaded.Name != "Implement Feature" {
		t.Fatalf("loaded = %+v", loaded)
	}
}

func TestLoadAllSortsByID(t *testing.T) {
	dir := t.TempDir()
	f1 := sampleFunction()
	f1.ID = "zebra"
	f2 := sampleFunction()
	f2.ID = "alpha"
	if _, err := Save(f1, dir); err != nil {
		t.Fatalf("Save f1: %v", err)
	}
	if _, err := Save(f2, dir); err != nil {
		t.Fatalf("Save f2: %v", err)
	}

	all, err := LoadAll(dir)
	if err != nil {
		t.Fatalf("LoadAll: %v", err)
	}
	if len(all) != 2 || all[0].ID != "alpha" || all[1].ID != "zebra" {
		t.Fatalf("LoadAll = %+v", all)
	}
}

func TestLoadAllMissingDir(t *testing.T) {
	all, err := LoadAll(filepath.Join(t.TempDir(), "nonexistent"))
	if err != nil {
		t.Fatalf("LoadAll: %v", err)
	}
	if len(all) != 0 {
		t.Fatalf("LoadAll = %+v, want empty", all)
	}
}

func TestFindByPrefix(t *testing.T) {
	dir := t.TempDir()
	f := sampleFunction()
	if _, err := Save(f, dir); err != nil {
		t.Fatalf("Save: %v", err)
	}

	found, err := FindByPrefix(dir, "impl")
	if err != nil {
		t.Fatalf("FindByPrefix: %v", err)
	}
	if found.ID != "impl-feature" {
		t.Fatalf("found = %+v", found)
	}
}

func TestFindByPrefixAmbiguous(t *testing.T) {
	dir := t.TempDir()
	f1 := sampleFunction()
	f1.ID = "impl-feature"
	f2 := sampleFunction()
	f2.ID = "impl-bug"
	if _, err := Save(f1, dir); err != nil {
		t.Fatalf("Save f1: %v", err)
	}
	if _, err := Save(f2, dir); err != nil {
		t.Fatalf("Save f2: %v", err)
	}

	if _, err := FindByPrefix(dir, "impl"); err == nil {
		t.Fatalf("expected ambiguous error")
	}
}

func TestFindByPrefixNotFound(t *testing.T) {
	dir := t.TempDir()
	if _, err := Save(sampleFunction(), dir); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if _, err := FindByPrefix(dir, "nonexistent"); err == nil {
		t.Fatalf("expected not found error")
	}
}
