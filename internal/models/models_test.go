package models

import "testing"

func TestWithDefaultsHasModels(t *testing.T) {
	reg := WithDefaults()
	if len(reg.Models) < 10 {
		t.Fatalf("len(Models) = %d, want >= 10", len(reg.Models))
	}
	for _, id := range []string{"anthropic/claude-opus-4-6", "openai/gpt-4o", "deepseek/deepseek-chat-v3"} {
		if _, ok := reg.Models[id]; !ok {
			t.Fatalf("expected default catalog to contain %s", id)
		}
	}
}

func TestParseTierRoundtrip(t *testing.T) {
	cases := map[string]Tier{"frontier": TierFrontier, "mid": TierMid, "budget": TierBudget, "FRONTIER": TierFrontier}
	for in, want := range cases {
		got, err := ParseTier(in)
		if err != nil {
			t.Fatalf("ParseTier(%q): %v", in, err)
		}
		if got != want {
			t.Fatalf("ParseTier(%q) = %q, want %q", in, got, want)
		}
	}
	if _, err := ParseTier("unknown"); err == nil {
		t.Fatalf("expected error for unknown tier")
	}
}

func TestTierString(t *testing.T) {
	if TierFrontier.String() != "frontier" || TierMid.String() != "mid" || TierBudget.String() != "budget" {
		t.Fatalf("tier strings did not match expected values")
	}
}

func TestSaveAndLoad(t *testing.T) {
	dir := t.TempDir()
	reg := WithDefaults()
	if err := reg.Save(dir); err != nil {
		t.Fatalf("Save: %v", err)
	}

	loaded, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(loaded.Models) != len(reg.Models) {
		t.Fatalf("len(Models) = %d, want %d", len(loaded.Models), len(reg.Models))
	}
	if _, ok := loaded.Models["anthropic/claude-opus-4-6"]; !ok {
		t.Fatalf("expected loaded registry to retain entry")
	}
}

func TestLoadMissingReturnsDefaults(t *testing.T) {
	reg, err := Load(t.TempDir())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(reg.Models) < 10 {
		t.Fatalf("len(Models) = %d, want >= 10", len(reg.Models))
	}
}

func TestSetDefault(t *testing.T) {
	reg := WithDefaults()
	if _, ok := reg.GetDefault(); ok {
		t.Fatalf("expected no default model initially")
	}

	if err := reg.SetDefault("openai/gpt-4o"); err != nil {
		t.Fatalf("SetDefault: %v", err)
	}
	if reg.DefaultModel != "openai/gpt-4o" {
		t.Fatalf("DefaultModel = %q", reg.DefaultModel)
	}

	if err := reg.SetDefault("nonexistent/model"); err == nil {
		t.Fatalf("expected error for unknown model")
	}
}

func TestGetDefault(t *testing.T) {
	reg := WithDefaults()
	if err := reg.SetDefault("openai/gpt-4o"); err != nil {
		t.Fatalf("SetDefault: %v", err)
	}
	entry, ok := reg.GetDefault()
	if !ok {
		t.Fatalf("expected default model to resolve")
	}
	if entry.ID != "openai/gpt-4o" {
		t.Fatalf("ID = %q", entry.ID)
	}
}

func TestAddModel(t *testing.T) {
	reg := WithDefaults()
	count := len(reg.Models)

	reg.Add(Entry{
		ID: "custom/my-model", Provider: "custom",
		CostPer1MInput: 1.0, CostPer1MOutput: 2.0, ContextWindow: 32_000,
		Capabilities: []string{"coding"}, Tier: TierMid,
	})

	if len(reg.Models) != count+1 {
		t.Fatalf("len(Models) = %d, want %d", len(reg.Models), count+1)
	}
	if _, ok := reg.Models["custom/my-model"]; !ok {
		t.Fatalf("expected custom model in registry")
	}
}

func TestListFilterByTier(t *testing.T) {
	reg := WithDefaults()

	frontier := reg.List(TierFrontier)
	if len(frontier) == 0 {
		t.Fatalf("expected at least one frontier model")
	}
	for _, m := range frontier {
		if m.Tier != TierFrontier {
			t.Fatalf("List(TierFrontier) returned %s with tier %s", m.ID, m.Tier)
		}
	}

	all := reg.List("")
	if len(all) != len(reg.Models) {
		t.Fatalf("List(\"\") = %d entries, want %d", len(all), len(reg.Models))
	}
}

func TestListIsSortedByID(t *testing.T) {
	reg := WithDefaults()
	list := reg.List("")
	for i := 1; i < len(list); i++ {
		if list[i].ID < list[i-1].ID {
			t.Fatalf("List not sorted: %s before %s", list[i-1].ID, list[i].ID)
		}
	}
}

func TestModelPricingSanity(t *testing.T) {
	reg := WithDefaults()
	for _, m := range reg.Models {
		if m.CostPer1MInput < 0 {
			t.Fatalf("negative input cost for %s", m.ID)
		}
		if m.CostPer1MOutput < 0 {
			t.Fatalf("negative output cost for %s", m.ID)
		}
		if m.ContextWindow == 0 {
			t.Fatalf("zero context window for %s", m.ID)
		}
	}
}

func TestEstimateCost(t *testing.T) {
	entry := Entry{CostPer1MInput: 2.0, CostPer1MOutput: 8.0}
	got := EstimateCost(entry, 500_000, 250_000)
	want := 500_000.0/1e6*2.0 + 250_000.0/1e6*8.0
	if got != want {
		t.Fatalf("EstimateCost = %v, want %v", got, want)
	}
}
