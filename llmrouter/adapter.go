package llmrouter

import "context"

// ModelAdapter is the capability-tagged client for one LLM vendor. Adapters
// are constructed once per (provider, model, base URL) key and shared across
// concurrent callers; implementations must be safe for concurrent use.
type ModelAdapter interface {
	// Provider returns the provider identifier ("openai", "claude", "qwen", "custom").
	Provider() string

	// Model returns the model identifier the adapter was configured with.
	Model() string

	// Generate produces plain text from the conversation.
	Generate(ctx context.Context, messages []Message, opts GenerateOptions) (string, error)

	// GenerateWithTools produces a response that may request tool execution.
	GenerateWithTools(ctx context.Context, messages []Message, tools []ToolDefinition, opts GenerateOptions) (*ToolResponse, error)

	// GenerateWithToolsStream is the streaming variant. onChunk receives
	// incremental chunks; the final assembled response is also returned.
	// Adapters that do not support streaming return a CANCELLED-free
	// INVALID_REQUEST error; the Manager handles the fallback synthesis.
	GenerateWithToolsStream(ctx context.Context, messages []Message, tools []ToolDefinition, opts GenerateOptions, onChunk ChunkHandler) (*ToolResponse, error)

	// Embed returns an embedding vector for the text. Adapters that do not
	// support embeddings return an INVALID_REQUEST error.
	Embed(ctx context.Context, text string) ([]float64, error)

	// Capability probes.
	SupportsStreaming() bool
	SupportsToolCalling() bool
	SupportsEmbeddings() bool
}
