// Package models maintains the catalog of AI models: cost, context window,
// capability tags, and a tier classification. The daemon falls back to the
// registry's configured default model (GetDefault) when neither the task
// nor the agent config names one; the tier plays no part in that choice.
// The catalog lives at <workgraph_dir>/models.yaml and ships with a
// built-in default set covering the major providers.
package models

import (
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/antigravity-dev/workgraphd/internal/wgerr"
)

// Tier classifies a model's price/capability band.
type Tier string

const (
	TierFrontier Tier = "frontier"
	TierMid      Tier = "mid"
	TierBudget   Tier = "budget"
)

// ParseTier validates a tier string, accepting any case.
func ParseTier(s string) (Tier, error) {
	switch strings.ToLower(s) {
	case "frontier":
		return TierFrontier, nil
	case "mid":
		return TierMid, nil
	case "budget":
		return TierBudget, nil
	default:
		return "", wgerr.New(wgerr.Validation, "unknown tier %q, must be: frontier, mid, budget", s)
	}
}

// Entry describes one model in the registry.
type Entry struct {
	ID              string   `yaml:"id"`
	Provider        string   `yaml:"provider"`
	CostPer1MInput  float64  `yaml:"cost_per_1m_input"`
	CostPer1MOutput float64  `yaml:"cost_per_1m_output"`
	ContextWindow   uint64   `yaml:"context_window"`
	Capabilities    []string `yaml:"capabilities,omitempty"`
	Tier            Tier     `yaml:"tier"`
}

// Registry is the full model catalog plus the chosen default.
type Registry struct {
	DefaultModel string           `yaml:"default_model,omitempty"`
	Models       map[string]Entry `yaml:"models"`
}

const fileName = "models.yaml"

func path(workgraphDir string) string {
	return filepath.Join(workgraphDir, fileName)
}

// Load reads models.yaml from workgraphDir, returning the built-in defaults
// if the file doesn't exist yet.
func Load(workgraphDir string) (Registry, error) {
	raw, err := os.ReadFile(path(workgraphDir))
	if err != nil {
		if os.IsNotExist(err) {
			return WithDefaults(), nil
		}
		return Registry{}, wgerr.Wrap(wgerr.IOFailure, err, "read model registry")
	}
	var r Registry
	if err := yaml.Unmarshal(raw, &r); err != nil {
		return Registry{}, wgerr.Wrap(wgerr.ParseFailure, err, "parse model registry")
	}
	if r.Models == nil {
		r.Models = make(map[string]Entry)
	}
	return r, nil
}

// Save writes the registry to workgraphDir/models.yaml.
func (r Registry) Save(workgraphDir string) error {
	if err := os.MkdirAll(workgraphDir, 0o755); err != nil {
		return wgerr.Wrap(wgerr.IOFailure, err, "create workgraph dir %s", workgraphDir)
	}
	out, err := yaml.Marshal(r)
	if err != nil {
		return wgerr.Wrap(wgerr.ParseFailure, err, "marshal model registry")
	}
	if err := os.WriteFile(path(workgraphDir), out, 0o644); err != nil {
		return wgerr.Wrap(wgerr.IOFailure, err, "write model registry")
	}
	return nil
}

// Get looks up a model by its provider/model-name id.
func (r Registry) Get(id string) (Entry, bool) {
	e, ok := r.Models[id]
	return e, ok
}

// GetDefault resolves the configured default model, if any.
func (r Registry) GetDefault() (Entry, bool) {
	if r.DefaultModel == "" {
		return Entry{}, false
	}
	return r.Get(r.DefaultModel)
}

// SetDefault sets the registry's default model, failing if id isn't catalogued.
func (r *Registry) SetDefault(id string) error {
	if _, ok := r.Models[id]; !ok {
		return wgerr.New(wgerr.NotFound, "model %q not found in registry", id)
	}
	r.DefaultModel = id
	return nil
}

// Add inserts or replaces a model entry.
func (r *Registry) Add(e Entry) {
	if r.Models == nil {
		r.Models = make(map[string]Entry)
	}
	r.Models[e.ID] = e
}

// List returns every model, optionally filtered to a single tier, sorted by
// id for stable output.
func (r Registry) List(tier Tier) []Entry {
	out := make([]Entry, 0, len(r.Models))
	for _, e := range r.Models {
		if tier != "" && e.Tier != tier {
			continue
		}
		out = append(out, e)
	}
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j].ID < out[j-1].ID; j-- {
			out[j], out[j-1] = out[j-1], out[j]
		}
	}
	return out
}

// EstimateCost returns the dollar cost of inputTokens/outputTokens against a
// model's per-1M-token pricing.
func EstimateCost(e Entry, inputTokens, outputTokens uint64) float64 {
	return float64(inputTokens)/1e6*e.CostPer1MInput + float64(outputTokens)/1e6*e.CostPer1MOutput
}

// WithDefaults returns a registry seeded with the built-in catalog.
func WithDefaults() Registry {
	entries := []Entry{
		{ID: "anthropic/claude-opus-4-6", Provider: "openrouter", CostPer1MInput: 5.0, CostPer1MOutput: 25.0, ContextWindow: 1_000_000, Capabilities: []string{"coding", "analysis", "creative", "reasoning"}, Tier: TierFrontier},
		{ID: "anthropic/claude-sonnet-4-6", Provider: "openrouter", CostPer1MInput: 3.0, CostPer1MOutput: 15.0, ContextWindow: 1_000_000, Capabilities: []string{"coding", "analysis", "creative"}, Tier: TierMid},
		{ID: "anthropic/claude-haiku-4-5", Provider: "openrouter", CostPer1MInput: 0.80, CostPer1MOutput: 4.0, ContextWindow: 200_000, Capabilities: []string{"coding", "analysis"}, Tier: TierBudget},
		{ID: "openai/gpt-4o", Provider: "openrouter", CostPer1MInput: 2.50, CostPer1MOutput: 10.0, ContextWindow: 128_000, Capabilities: []string{"coding", "analysis", "creative"}, Tier: TierMid},
		{ID: "openai/gpt-4o-mini", Provider: "openrouter", CostPer1MInput: 0.15, CostPer1MOutput: 0.60, ContextWindow: 128_000, Capabilities: []string{"coding", "analysis"}, Tier: TierBudget},
		{ID: "openai/o3", Provider: "openrouter", CostPer1MInput: 2.0, CostPer1MOutput: 8.0, ContextWindow: 200_000, Capabilities: []string{"coding", "analysis", "reasoning"}, Tier: TierFrontier},
		{ID: "google/gemini-2.5-pro", Provider: "openrouter", CostPer1MInput: 1.25, CostPer1MOutput: 10.0, ContextWindow: 1_000_000, Capabilities: []string{"coding", "analysis", "creative", "reasoning"}, Tier: TierMid},
		{ID: "google/gemini-2.0-flash", Provider: "openrouter", CostPer1MInput: 0.10, CostPer1MOutput: 0.40, ContextWindow: 1_000_000, Capabilities: []string{"coding", "analysis"}, Tier: TierBudget},
		{ID: "deepseek/deepseek-chat-v3", Provider: "openrouter", CostPer1MInput: 0.30, CostPer1MOutput: 0.88, ContextWindow: 164_000, Capabilities: []string{"coding", "analysis"}, Tier: TierBudget},
		{ID: "deepseek/deepseek-r1", Provider: "openrouter", CostPer1MInput: 0.55, CostPer1MOutput: 2.19, ContextWindow: 164_000, Capabilities: []string{"coding", "analysis", "reasoning"}, Tier: TierMid},
		{ID: "meta-llama/llama-4-maverick", Provider: "openrouter", CostPer1MInput: 0.20, CostPer1MOutput: 0.60, ContextWindow: 1_000_000, Capabilities: []string{"coding", "analysis"}, Tier: TierBudget},
		{ID: "meta-llama/llama-4-scout", Provider: "openrouter", CostPer1MInput: 0.10, CostPer1MOutput: 0.30, ContextWindow: 512_000, Capabilities: []string{"coding", "analysis"}, Tier: TierBudget},
		{ID: "qwen/qwen3-235b-a22b", Provider: "openrouter", CostPer1MInput: 0.20, CostPer1MOutput: 0.60, ContextWindow: 131_072, Capabilities: []string{"coding", "analysis", "reasoning"}, Tier: TierBudget},
	}
	models := make(map[string]Entry, len(entries))
	for _, e := range entries {
		models[e.ID] = e
	}
	return Registry{Models: models}
}

// String renders a tier for display.
func (t Tier) String() string { return string(t) }
