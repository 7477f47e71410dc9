package llmrouter

// ModelInfo describes a known model in the catalog.
type ModelInfo struct {
	ID            string   `json:"id"`
	Provider      string   `json:"provider"`
	DisplayName   string   `json:"display_name"`
	ContextWindow int      `json:"context_window"`
	MaxOutput     int      `json:"max_output,omitempty"`
	SupportsTools bool     `json:"supports_tools"`
	Aliases       []string `json:"aliases,omitempty"`
}

// Models is the built-in model catalog (February 2026).
var Models = []ModelInfo{
	// Claude
	{
		ID: "claude-opus-4-6", Provider: ProviderClaude, DisplayName: "Claude Opus 4.6",
		ContextWindow: 200000, MaxOutput: 32768, SupportsTools: true,
		Aliases: []string{"opus", "claude-opus"},
	},
	{
		ID: "claude-sonnet-4-5", Provider: ProviderClaude, DisplayName: "Claude Sonnet 4.5",
		ContextWindow: 200000, MaxOutput: 16384, SupportsTools: true,
		Aliases: []string{"sonnet", "claude-sonnet"},
	},

	// OpenAI
	{
		ID: "gpt-5.2", Provider: ProviderOpenAI, DisplayName: "GPT-5.2",
		ContextWindow: 1047576, MaxOutput: 32768, SupportsTools: true,
		Aliases: []string{"gpt5"},
	},
	{
		ID: "gpt-5.2-mini", Provider: ProviderOpenAI, DisplayName: "GPT-5.2 Mini",
		ContextWindow: 1047576, MaxOutput: 16384, SupportsTools: true,
		Aliases: []string{"gpt5-mini"},
	},

	// Qwen (DashScope OpenAI-compatible endpoint)
	{
		ID: "qwen3-max", Provider: ProviderQwen, DisplayName: "Qwen3 Max",
		ContextWindow: 262144, MaxOutput: 32768, SupportsTools: true,
		Aliases: []string{"qwen-max"},
	},
	{
		ID: "qwen3-coder-plus", Provider: ProviderQwen, DisplayName: "Qwen3 Coder Plus",
		ContextWindow: 1048576, MaxOutput: 65536, SupportsTools: true,
		Aliases: []string{"qwen-coder"},
	},
}

// GetModelInfo returns the catalog entry for a model, or nil if unknown.
func GetModelInfo(modelID string) *ModelInfo {
	for i := range Models {
		if Models[i].ID == modelID {
			return &Models[i]
		}
		for _, alias := range Models[i].Aliases {
			if alias == modelID {
				return &Models[i]
			}
		}
	}
	return nil
}

// ListModels returns all known models, optionally filtered by provider.
func ListModels(provider string) []ModelInfo {
	if provider == "" {
		result := make([]ModelInfo, len(Models))
		copy(result, Models)
		return result
	}
	var result []ModelInfo
	for _, m := range Models {
		if m.Provider == provider {
			result = append(result, m)
		}
	}
	return result
}

// DefaultModel returns the default model identifier for a provider. The
// first catalog entry per provider is the default; unknown providers fall
// back to the OpenAI default.
func DefaultModel(provider string) string {
	for _, m := range Models {
		if m.Provider == provider {
			return m.ID
		}
	}
	return "gpt-5.2-mini"
}
