package llmrouter

// DashScope exposes Qwen models through an OpenAI-compatible endpoint, so the
// qwen adapter is the openai adapter pointed at that base URL. Embeddings are
// disabled: the compatible endpoint does not serve the embedding models.
const qwenDefaultBaseURL = "https://dashscope.aliyuncs.com/compatible-mode/v1"

func newQwenAdapter(cfg ProviderConfig) *openaiAdapter {
	if cfg.BaseURL == "" {
		cfg.BaseURL = qwenDefaultBaseURL
	}
	return newOpenAICompatibleAdapter(cfg, ProviderQwen, false)
}
