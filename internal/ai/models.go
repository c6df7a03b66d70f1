package ai

import "sort"

// Model metadata and simple pricing helpers for UX warnings.
// Prices are illustrative and should be verified against provider docs.

type ModelInfo struct {
	Name          string  `json:"name"`
	ContextTokens int     `json:"context_tokens"` // approximate context window
	InputPerK     float64 `json:"input_per_1k"`   // USD per 1K input tokens
	OutputPerK    float64 `json:"output_per_1k"`  // USD per 1K output tokens
}

var models = map[string]ModelInfo{
	"gpt-4o":                      {Name: "gpt-4o", ContextTokens: 128000, InputPerK: 0.0025, OutputPerK: 0.01},
	"gpt-4o-mini":                 {Name: "gpt-4o-mini", ContextTokens: 128000, InputPerK: 0.00015, OutputPerK: 0.0006},
	"openai/gpt-4o":               {Name: "openai/gpt-4o", ContextTokens: 128000, InputPerK: 0.0025, OutputPerK: 0.01},
	"openai/gpt-4o-mini":          {Name: "openai/gpt-4o-mini", ContextTokens: 128000, InputPerK: 0.00015, OutputPerK: 0.0006},
	"anthropic/claude-3.5-sonnet": {Name: "anthropic/claude-3.5-sonnet", ContextTokens: 200000, InputPerK: 0.003, OutputPerK: 0.015},
	"claude-sonnet-4-5":           {Name: "claude-sonnet-4-5", ContextTokens: 200000, InputPerK: 0.003, OutputPerK: 0.015},
	"claude-3-5-haiku-latest":     {Name: "claude-3-5-haiku-latest", ContextTokens: 200000, InputPerK: 0.0008, OutputPerK: 0.004},
	"llama3.1:8b":                 {Name: "llama3.1:8b", ContextTokens: 8192},
	"llama3:latest":               {Name: "llama3:latest", ContextTokens: 8192},
	"mistral:7b-instruct":         {Name: "mistral:7b-instruct", ContextTokens: 8192},
}

// defaultModels maps a provider to the model used when none is configured.
var defaultModels = map[string]string{
	ProviderOpenAI:     "gpt-4o",
	ProviderOpenRouter: "openai/gpt-4o",
	ProviderAnthropic:  "claude-sonnet-4-5",
	ProviderOllama:     "llama3.1:8b",
}

// LookupModel returns ModelInfo and ok flag.
func LookupModel(name string) (ModelInfo, bool) {
	mi, ok := models[name]
	return mi, ok
}

// Catalog returns the known models sorted by name.
func Catalog() []ModelInfo {
	out := make([]ModelInfo, 0, len(models))
	for _, mi := range models {
		out = append(out, mi)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// DefaultModel returns the provider's default model name.
func DefaultModel(provider string) (string, bool) {
	m, ok := defaultModels[provider]
	return m, ok
}

// EstimateCostUSD estimates total cost in USD for given tokens using model pricing.
// If the model is unknown, returns 0 and ok=false.
func EstimateCostUSD(model string, promptTokens, completionTokens int) (float64, bool) {
	mi, ok := LookupModel(model)
	if !ok {
		return 0, false
	}
	inCost := (float64(promptTokens) / 1000.0) * mi.InputPerK
	outCost := (float64(completionTokens) / 1000.0) * mi.OutputPerK
	return inCost + outCost, true
}

// ExceedsContext reports whether prompt plus completion budget overflows the
// model's known context window. Unknown models never exceed.
func ExceedsContext(model string, promptTokens, maxTokens int) (int, bool) {
	mi, ok := LookupModel(model)
	if !ok || mi.ContextTokens <= 0 {
		return 0, false
	}
	return mi.ContextTokens, promptTokens+maxTokens > mi.ContextTokens
}
