package llmrouter

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"
	"github.com/teilomillet/gollm"
)

// gollmAdapter serves the custom provider slot through gollm, which fronts a
// long tail of backends (ollama, groq, mistral, deepseek, ...). The model
// field selects the backend as "backend/model", e.g. "ollama/llama3.3";
// a bare model name defaults to ollama.
//
// gollm's Generate API is text-in text-out, so tool calls are carried as
// prompt-level tool definitions and recovered by sniffing structured JSON out
// of the response text.
type gollmAdapter struct {
	llm     gollm.LLM
	backend string
	model   string
}

func newGollmAdapter(cfg ProviderConfig) (*gollmAdapter, error) {
	backend, model := splitBackendModel(cfg.Model)

	opts := []gollm.ConfigOption{
		gollm.SetProvider(backend),
		gollm.SetModel(model),
		gollm.SetMaxRetries(0), // retries belong to the manager
		gollm.SetLogLevel(gollm.LogLevelWarn),
	}
	if cfg.APIKey != "" {
		opts = append(opts, gollm.SetAPIKey(cfg.APIKey))
	}
	if cfg.MaxTokens != nil {
		opts = append(opts, gollm.SetMaxTokens(*cfg.MaxTokens))
	}
	if cfg.Temperature != nil {
		opts = append(opts, gollm.SetTemperature(*cfg.Temperature))
	}

	llm, err := gollm.NewLLM(opts...)
	if err != nil {
		return nil, NewModelError(CodeInvalidRequest, ProviderCustom,
			fmt.Sprintf("creating %s backend: %v", backend, err), err)
	}
	return &gollmAdapter{llm: llm, backend: backend, model: model}, nil
}

func splitBackendModel(model string) (string, string) {
	if backend, rest, ok := strings.Cut(model, "/"); ok && backend != "" && rest != "" {
		return backend, rest
	}
	return "ollama", model
}

func (a *gollmAdapter) Provider() string          { return ProviderCustom }
func (a *gollmAdapter) Model() string             { return a.backend + "/" + a.model }
func (a *gollmAdapter) SupportsStreaming() bool   { return a.llm.SupportsStreaming() }
func (a *gollmAdapter) SupportsToolCalling() bool { return true }
func (a *gollmAdapter) SupportsEmbeddings() bool  { return false }

func (a *gollmAdapter) Generate(ctx context.Context, messages []Message, opts GenerateOptions) (string, error) {
	prompt := a.buildPrompt(messages, nil, opts)
	text, err := a.llm.Generate(ctx, prompt)
	if err != nil {
		return "", Classify(err, ProviderCustom)
	}
	return text, nil
}

func (a *gollmAdapter) GenerateWithTools(ctx context.Context, messages []Message, tools []ToolDefinition, opts GenerateOptions) (*ToolResponse, error) {
	prompt := a.buildPrompt(messages, tools, opts)
	text, err := a.llm.Generate(ctx, prompt)
	if err != nil {
		return nil, Classify(err, ProviderCustom)
	}
	return a.buildResponse(messages, text), nil
}

func (a *gollmAdapter) GenerateWithToolsStream(ctx context.Context, messages []Message, tools []ToolDefinition, opts GenerateOptions, onChunk ChunkHandler) (*ToolResponse, error) {
	prompt := a.buildPrompt(messages, tools, opts)

	stream, err := a.llm.Stream(ctx, prompt)
	if err != nil {
		classified := Classify(err, ProviderCustom)
		if onChunk != nil {
			onChunk(StreamChunk{Kind: ChunkError, Err: classified})
		}
		return nil, classified
	}
	defer stream.Close()

	var text strings.Builder
	for {
		token, err := stream.Next(ctx)
		if err == io.EOF {
			break
		}
		if err != nil {
			classified := Classify(err, ProviderCustom)
			if onChunk != nil {
				onChunk(StreamChunk{Kind: ChunkError, Err: classified})
			}
			return nil, classified
		}
		if token == nil {
			continue
		}
		text.WriteString(token.Text)
		if onChunk != nil {
			onChunk(StreamChunk{Kind: ChunkText, Delta: token.Text})
		}
	}

	resp := a.buildResponse(messages, text.String())
	if onChunk != nil {
		for i := range resp.ToolCalls {
			onChunk(StreamChunk{Kind: ChunkToolCall, ToolCall: &resp.ToolCalls[i]})
		}
		onChunk(StreamChunk{Kind: ChunkDone, Response: resp})
	}
	return resp, nil
}

func (a *gollmAdapter) Embed(ctx context.Context, text string) ([]float64, error) {
	return nil, NewModelError(CodeInvalidRequest, ProviderCustom, "adapter does not support embeddings", nil)
}

// buildPrompt flattens the conversation into gollm's single-prompt shape:
// system messages go into the system prompt, everything else into labeled
// transcript lines.
func (a *gollmAdapter) buildPrompt(messages []Message, tools []ToolDefinition, opts GenerateOptions) *gollm.Prompt {
	var system strings.Builder
	var parts []string

	for _, msg := range messages {
		switch msg.Role {
		case RoleSystem:
			system.WriteString(msg.Content)
			system.WriteString("\n")
		case RoleUser:
			parts = append(parts, msg.Content)
		case RoleAssistant:
			if msg.Content != "" {
				parts = append(parts, "[Assistant]: "+msg.Content)
			}
			for _, tc := range msg.ToolCalls {
				parts = append(parts, fmt.Sprintf("[Assistant called %s]: %s", tc.Name, string(tc.Arguments)))
			}
		case RoleTool:
			parts = append(parts, "[Tool Result]: "+msg.Content)
		}
	}

	promptText := strings.Join(parts, "\n")
	if promptText == "" {
		promptText = "Hello"
	}

	var promptOpts []gollm.PromptOption
	if system.Len() > 0 {
		promptOpts = append(promptOpts, gollm.WithSystemPrompt(strings.TrimSpace(system.String()), gollm.CacheTypeEphemeral))
	}
	if opts.MaxTokens != nil {
		promptOpts = append(promptOpts, gollm.WithMaxLength(*opts.MaxTokens))
	}
	if len(tools) > 0 {
		gollmTools := make([]gollm.Tool, 0, len(tools))
		for _, t := range tools {
			gollmTools = append(gollmTools, gollm.Tool{
				Type: "function",
				Function: gollm.Function{
					Name:        t.Name,
					Description: t.Description,
					Parameters:  t.Parameters,
				},
			})
		}
		promptOpts = append(promptOpts, gollm.WithTools(gollmTools))
	}

	return gollm.NewPrompt(promptText, promptOpts...)
}

func (a *gollmAdapter) buildResponse(messages []Message, text string) *ToolResponse {
	calls := sniffToolCalls(text)
	resp := &ToolResponse{
		Content:      stripToolCallJSON(text, calls),
		ToolCalls:    calls,
		FinishReason: FinishStop,
		Usage:        estimateUsage(messages, text),
	}
	if len(calls) > 0 {
		resp.FinishReason = FinishToolCalls
	}
	return resp
}

// sniffToolCalls extracts tool calls a text-only backend embedded in its
// answer, matching the {"tool_calls": ...} and [{"name": ...}] shapes.
func sniffToolCalls(text string) []ToolCall {
	start := strings.Index(text, `{"tool_calls"`)
	if start >= 0 {
		var wrapper struct {
			ToolCalls []struct {
				Name      string          `json:"name"`
				Arguments json.RawMessage `json:"arguments"`
			} `json:"tool_calls"`
		}
		if err := json.Unmarshal([]byte(text[start:]), &wrapper); err == nil {
			var calls []ToolCall
			for _, rc := range wrapper.ToolCalls {
				calls = append(calls, ToolCall{
					ID:        "call_" + uuid.New().String()[:8],
					Name:      rc.Name,
					Arguments: rawArguments(string(rc.Arguments)),
				})
			}
			return calls
		}
	}

	start = strings.Index(text, `[{"name"`)
	if start < 0 {
		return nil
	}
	var rawCalls []struct {
		Name      string          `json:"name"`
		Arguments json.RawMessage `json:"arguments"`
	}
	if err := json.Unmarshal([]byte(text[start:]), &rawCalls); err != nil {
		return nil
	}
	var calls []ToolCall
	for _, rc := range rawCalls {
		calls = append(calls, ToolCall{
			ID:        "call_" + uuid.New().String()[:8],
			Name:      rc.Name,
			Arguments: rawArguments(string(rc.Arguments)),
		})
	}
	return calls
}

func stripToolCallJSON(text string, calls []ToolCall) string {
	if len(calls) == 0 {
		return text
	}
	result := text
	for _, pattern := range []string{`{"tool_calls"`, `[{"name"`} {
		if idx := strings.Index(result, pattern); idx != -1 {
			result = strings.TrimSpace(result[:idx])
		}
	}
	return result
}

// estimateUsage approximates token counts at four characters per token.
// gollm does not surface the provider's usage numbers.
func estimateUsage(messages []Message, output string) Usage {
	in := len(TextContent(messages)) / 4
	if in == 0 {
		in = 10
	}
	out := len(output) / 4
	return Usage{InputTokens: in, OutputTokens: out, TotalTokens: in + out}
}
