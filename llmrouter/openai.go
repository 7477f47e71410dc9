package llmrouter

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/google/uuid"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/packages/ssestream"
	"github.com/openai/openai-go/shared"
)

// openaiAdapter implements ModelAdapter against the OpenAI Chat Completions
// API. It also backs the qwen adapter, which points the same client at the
// DashScope OpenAI-compatible endpoint.
type openaiAdapter struct {
	client   openai.Client
	provider string
	model    string
	defaults GenerateOptions
	embed    bool
}

func newOpenAIAdapter(cfg ProviderConfig) *openaiAdapter {
	return newOpenAICompatibleAdapter(cfg, ProviderOpenAI, true)
}

func newOpenAICompatibleAdapter(cfg ProviderConfig, provider string, embed bool) *openaiAdapter {
	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	return &openaiAdapter{
		client:   openai.NewClient(opts...),
		provider: provider,
		model:    cfg.Model,
		defaults: GenerateOptions{Temperature: cfg.Temperature, MaxTokens: cfg.MaxTokens},
		embed:    embed,
	}
}

func (a *openaiAdapter) Provider() string          { return a.provider }
func (a *openaiAdapter) Model() string             { return a.model }
func (a *openaiAdapter) SupportsStreaming() bool   { return true }
func (a *openaiAdapter) SupportsToolCalling() bool { return true }
func (a *openaiAdapter) SupportsEmbeddings() bool  { return a.embed }

func (a *openaiAdapter) Generate(ctx context.Context, messages []Message, opts GenerateOptions) (string, error) {
	resp, err := a.GenerateWithTools(ctx, messages, nil, opts)
	if err != nil {
		return "", err
	}
	return resp.Content, nil
}

func (a *openaiAdapter) GenerateWithTools(ctx context.Context, messages []Message, tools []ToolDefinition, opts GenerateOptions) (*ToolResponse, error) {
	params := a.buildParams(messages, tools, opts)

	completion, err := a.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, Classify(err, a.provider)
	}
	if len(completion.Choices) == 0 {
		return nil, NewModelError(CodeUnknown, a.provider, "response contained no choices", nil)
	}

	choice := completion.Choices[0]
	resp := &ToolResponse{
		Content:      choice.Message.Content,
		FinishReason: mapOpenAIFinishReason(string(choice.FinishReason)),
		Usage: Usage{
			InputTokens:  int(completion.Usage.PromptTokens),
			OutputTokens: int(completion.Usage.CompletionTokens),
			TotalTokens:  int(completion.Usage.TotalTokens),
		},
	}
	for _, tc := range choice.Message.ToolCalls {
		resp.ToolCalls = append(resp.ToolCalls, ToolCall{
			ID:        ensureCallID(tc.ID),
			Name:      tc.Function.Name,
			Arguments: rawArguments(tc.Function.Arguments),
		})
	}
	if len(resp.ToolCalls) > 0 {
		resp.FinishReason = FinishToolCalls
	}
	return resp, nil
}

// GenerateWithToolsStream reads the SSE stream, forwarding text deltas as
// they arrive and accumulating tool-call argument fragments by index: the id
// and name appear only in the first delta for an index, and argument JSON
// arrives as concatenable fragments.
func (a *openaiAdapter) GenerateWithToolsStream(ctx context.Context, messages []Message, tools []ToolDefinition, opts GenerateOptions, onChunk ChunkHandler) (*ToolResponse, error) {
	params := a.buildParams(messages, tools, opts)
	stream := a.client.Chat.Completions.NewStreaming(ctx, params)
	defer stream.Close()

	resp, err := a.consumeStream(ctx, stream, onChunk)
	if err != nil {
		if onChunk != nil {
			onChunk(StreamChunk{Kind: ChunkError, Err: err})
		}
		return nil, err
	}
	if onChunk != nil {
		onChunk(StreamChunk{Kind: ChunkDone, Response: resp})
	}
	return resp, nil
}

func (a *openaiAdapter) consumeStream(ctx context.Context, stream *ssestream.Stream[openai.ChatCompletionChunk], onChunk ChunkHandler) (*ToolResponse, error) {
	type pendingCall struct {
		id      string
		name    string
		jsonBuf strings.Builder
	}
	pending := make(map[int]*pendingCall)
	var callOrder []int
	var text strings.Builder
	resp := &ToolResponse{FinishReason: FinishStop}

	flushCalls := func() {
		for _, idx := range callOrder {
			pc := pending[idx]
			args := pc.jsonBuf.String()
			if args == "" {
				args = "{}"
			}
			call := ToolCall{ID: ensureCallID(pc.id), Name: pc.name, Arguments: json.RawMessage(args)}
			resp.ToolCalls = append(resp.ToolCalls, call)
			if onChunk != nil {
				onChunk(StreamChunk{Kind: ChunkToolCall, ToolCall: &call})
			}
		}
		callOrder = nil
	}

	for stream.Next() {
		if err := ctx.Err(); err != nil {
			return nil, Classify(err, a.provider)
		}

		chunk := stream.Current()
		if chunk.Usage.TotalTokens > 0 {
			resp.Usage = Usage{
				InputTokens:  int(chunk.Usage.PromptTokens),
				OutputTokens: int(chunk.Usage.CompletionTokens),
				TotalTokens:  int(chunk.Usage.TotalTokens),
			}
		}
		if len(chunk.Choices) == 0 {
			continue
		}

		choice := chunk.Choices[0]
		if choice.Delta.Content != "" {
			text.WriteString(choice.Delta.Content)
			if onChunk != nil {
				onChunk(StreamChunk{Kind: ChunkText, Delta: choice.Delta.Content})
			}
		}
		for _, tc := range choice.Delta.ToolCalls {
			idx := int(tc.Index)
			pc, ok := pending[idx]
			if !ok {
				pc = &pendingCall{}
				pending[idx] = pc
				callOrder = append(callOrder, idx)
			}
			if tc.ID != "" {
				pc.id = tc.ID
			}
			if tc.Function.Name != "" {
				pc.name = tc.Function.Name
			}
			if tc.Function.Arguments != "" {
				pc.jsonBuf.WriteString(tc.Function.Arguments)
			}
		}
		if string(choice.FinishReason) != "" {
			resp.FinishReason = mapOpenAIFinishReason(string(choice.FinishReason))
			flushCalls()
		}
	}
	if err := stream.Err(); err != nil {
		return nil, Classify(err, a.provider)
	}

	// Streams that end without an explicit finish reason still flush any
	// accumulated calls.
	flushCalls()

	resp.Content = text.String()
	if len(resp.ToolCalls) > 0 {
		resp.FinishReason = FinishToolCalls
	}
	return resp, nil
}

func (a *openaiAdapter) Embed(ctx context.Context, text string) ([]float64, error) {
	if !a.embed {
		return nil, NewModelError(CodeInvalidRequest, a.provider, "adapter does not support embeddings", nil)
	}
	resp, err := a.client.Embeddings.New(ctx, openai.EmbeddingNewParams{
		Input: openai.EmbeddingNewParamsInputUnion{OfString: openai.String(text)},
		Model: openai.EmbeddingModelTextEmbedding3Small,
	})
	if err != nil {
		return nil, Classify(err, a.provider)
	}
	if len(resp.Data) == 0 {
		return nil, NewModelError(CodeUnknown, a.provider, "embedding response contained no data", nil)
	}
	return resp.Data[0].Embedding, nil
}

func (a *openaiAdapter) buildParams(messages []Message, tools []ToolDefinition, opts GenerateOptions) openai.ChatCompletionNewParams {
	params := openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(a.model),
		Messages: buildOpenAIMessages(messages),
	}
	if t := firstFloat(opts.Temperature, a.defaults.Temperature); t != nil {
		params.Temperature = openai.Float(*t)
	}
	if n := firstInt(opts.MaxTokens, a.defaults.MaxTokens); n != nil {
		params.MaxCompletionTokens = openai.Int(int64(*n))
	}
	for _, t := range tools {
		params.Tools = append(params.Tools, openai.ChatCompletionToolParam{
			Type: "function",
			Function: shared.FunctionDefinitionParam{
				Name:        t.Name,
				Description: openai.String(t.Description),
				Parameters:  shared.FunctionParameters(t.Parameters),
			},
		})
	}
	return params
}

func buildOpenAIMessages(messages []Message) []openai.ChatCompletionMessageParamUnion {
	var params []openai.ChatCompletionMessageParamUnion
	for _, msg := range messages {
		switch msg.Role {
		case RoleSystem:
			params = append(params, openai.SystemMessage(msg.Content))
		case RoleUser:
			params = append(params, openai.UserMessage(msg.Content))
		case RoleTool:
			params = append(params, openai.ToolMessage(msg.Content, msg.ToolCallID))
		case RoleAssistant:
			if len(msg.ToolCalls) == 0 {
				params = append(params, openai.AssistantMessage(msg.Content))
				continue
			}
			assistant := openai.ChatCompletionAssistantMessageParam{
				Content: openai.ChatCompletionAssistantMessageParamContentUnion{OfString: openai.String(msg.Content)},
			}
			for _, tc := range msg.ToolCalls {
				assistant.ToolCalls = append(assistant.ToolCalls, openai.ChatCompletionMessageToolCallParam{
					ID:   tc.ID,
					Type: "function",
					Function: openai.ChatCompletionMessageToolCallFunctionParam{
						Name:      tc.Name,
						Arguments: string(tc.Arguments),
					},
				})
			}
			params = append(params, openai.ChatCompletionMessageParamUnion{OfAssistant: &assistant})
		}
	}
	return params
}

func mapOpenAIFinishReason(reason string) FinishReason {
	switch reason {
	case "stop", "":
		return FinishStop
	case "tool_calls", "function_call":
		return FinishToolCalls
	case "length":
		return FinishLength
	case "content_filter":
		return FinishContentFilter
	default:
		return FinishOther
	}
}

// ensureCallID synthesizes an id when the model did not supply one, so tool
// results can always be keyed back to their call.
func ensureCallID(id string) string {
	if id != "" {
		return id
	}
	return "call_" + uuid.New().String()[:8]
}

// rawArguments normalizes empty argument text to an empty JSON object.
func rawArguments(args string) json.RawMessage {
	if strings.TrimSpace(args) == "" {
		return json.RawMessage("{}")
	}
	return json.RawMessage(args)
}

func firstFloat(values ...*float64) *float64 {
	for _, v := range values {
		if v != nil {
			return v
		}
	}
	return nil
}

func firstInt(values ...*int) *int {
	for _, v := range values {
		if v != nil {
			return v
		}
	}
	return nil
}
