package llmrouter

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	anthropicoption "github.com/anthropics/anthropic-sdk-go/option"
)

const claudeDefaultMaxTokens = 8192

// claudeAdapter implements ModelAdapter against the Anthropic Messages API.
type claudeAdapter struct {
	client   anthropic.Client
	model    string
	defaults GenerateOptions
}

func newClaudeAdapter(cfg ProviderConfig) *claudeAdapter {
	opts := []anthropicoption.RequestOption{anthropicoption.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, anthropicoption.WithBaseURL(cfg.BaseURL))
	}
	return &claudeAdapter{
		client:   anthropic.NewClient(opts...),
		model:    cfg.Model,
		defaults: GenerateOptions{Temperature: cfg.Temperature, MaxTokens: cfg.MaxTokens},
	}
}

func (a *claudeAdapter) Provider() string          { return ProviderClaude }
func (a *claudeAdapter) Model() string             { return a.model }
func (a *claudeAdapter) SupportsStreaming() bool   { return true }
func (a *claudeAdapter) SupportsToolCalling() bool { return true }
func (a *claudeAdapter) SupportsEmbeddings() bool  { return false }

func (a *claudeAdapter) Generate(ctx context.Context, messages []Message, opts GenerateOptions) (string, error) {
	resp, err := a.GenerateWithTools(ctx, messages, nil, opts)
	if err != nil {
		return "", err
	}
	return resp.Content, nil
}

func (a *claudeAdapter) GenerateWithTools(ctx context.Context, messages []Message, tools []ToolDefinition, opts GenerateOptions) (*ToolResponse, error) {
	params := a.buildParams(messages, tools, opts)

	msg, err := a.client.Messages.New(ctx, params)
	if err != nil {
		return nil, Classify(err, ProviderClaude)
	}

	resp := &ToolResponse{
		FinishReason: mapClaudeStopReason(msg.StopReason),
		Usage:        claudeUsage(msg.Usage.InputTokens, msg.Usage.OutputTokens),
	}
	var text strings.Builder
	for _, block := range msg.Content {
		switch variant := block.AsAny().(type) {
		case anthropic.TextBlock:
			text.WriteString(variant.Text)
		case anthropic.ToolUseBlock:
			resp.ToolCalls = append(resp.ToolCalls, ToolCall{
				ID:        ensureCallID(variant.ID),
				Name:      variant.Name,
				Arguments: rawArguments(string(variant.Input)),
			})
		}
	}
	resp.Content = text.String()
	if len(resp.ToolCalls) > 0 {
		resp.FinishReason = FinishToolCalls
	}
	return resp, nil
}

// GenerateWithToolsStream follows the Messages SSE event sequence: a
// content_block_start opens a tool_use block, input_json_delta events carry
// argument fragments for that block index, and content_block_stop completes
// the call. Text arrives as text_delta events.
func (a *claudeAdapter) GenerateWithToolsStream(ctx context.Context, messages []Message, tools []ToolDefinition, opts GenerateOptions, onChunk ChunkHandler) (*ToolResponse, error) {
	params := a.buildParams(messages, tools, opts)
	stream := a.client.Messages.NewStreaming(ctx, params)
	defer stream.Close()

	type pendingCall struct {
		id      string
		name    string
		jsonBuf strings.Builder
	}
	pending := make(map[int64]*pendingCall)
	var text strings.Builder
	resp := &ToolResponse{FinishReason: FinishStop}

	fail := func(err error) (*ToolResponse, error) {
		classified := Classify(err, ProviderClaude)
		if onChunk != nil {
			onChunk(StreamChunk{Kind: ChunkError, Err: classified})
		}
		return nil, classified
	}

	var acc anthropic.Message
	for stream.Next() {
		if err := ctx.Err(); err != nil {
			return fail(err)
		}

		event := stream.Current()
		if err := acc.Accumulate(event); err != nil {
			return fail(err)
		}

		switch variant := event.AsAny().(type) {
		case anthropic.ContentBlockStartEvent:
			cb := variant.ContentBlock
			if cb.Type == "tool_use" {
				pending[variant.Index] = &pendingCall{id: cb.ID, name: cb.Name}
			}

		case anthropic.ContentBlockDeltaEvent:
			switch delta := variant.Delta.AsAny().(type) {
			case anthropic.TextDelta:
				text.WriteString(delta.Text)
				if onChunk != nil {
					onChunk(StreamChunk{Kind: ChunkText, Delta: delta.Text})
				}
			case anthropic.InputJSONDelta:
				if pc, ok := pending[variant.Index]; ok {
					pc.jsonBuf.WriteString(delta.PartialJSON)
				}
			}

		case anthropic.ContentBlockStopEvent:
			pc, ok := pending[variant.Index]
			if !ok {
				continue
			}
			call := ToolCall{
				ID:        ensureCallID(pc.id),
				Name:      pc.name,
				Arguments: rawArguments(pc.jsonBuf.String()),
			}
			resp.ToolCalls = append(resp.ToolCalls, call)
			if onChunk != nil {
				onChunk(StreamChunk{Kind: ChunkToolCall, ToolCall: &call})
			}
			delete(pending, variant.Index)
		}
	}
	if err := stream.Err(); err != nil {
		return fail(err)
	}

	resp.Content = text.String()
	resp.FinishReason = mapClaudeStopReason(acc.StopReason)
	resp.Usage = claudeUsage(acc.Usage.InputTokens, acc.Usage.OutputTokens)
	if len(resp.ToolCalls) > 0 {
		resp.FinishReason = FinishToolCalls
	}
	if onChunk != nil {
		onChunk(StreamChunk{Kind: ChunkDone, Response: resp})
	}
	return resp, nil
}

func (a *claudeAdapter) Embed(ctx context.Context, text string) ([]float64, error) {
	return nil, NewModelError(CodeInvalidRequest, ProviderClaude, "adapter does not support embeddings", nil)
}

func (a *claudeAdapter) buildParams(messages []Message, tools []ToolDefinition, opts GenerateOptions) anthropic.MessageNewParams {
	maxTokens := claudeDefaultMaxTokens
	if n := firstInt(opts.MaxTokens, a.defaults.MaxTokens); n != nil {
		maxTokens = *n
	}
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(a.model),
		MaxTokens: int64(maxTokens),
	}
	if t := firstFloat(opts.Temperature, a.defaults.Temperature); t != nil {
		params.Temperature = anthropic.Float(*t)
	}
	if len(opts.StopSequences) > 0 {
		params.StopSequences = opts.StopSequences
	}

	// System prompts travel in a dedicated field, not the message list.
	var system strings.Builder
	for _, msg := range messages {
		if msg.Role == RoleSystem {
			if system.Len() > 0 {
				system.WriteString("\n\n")
			}
			system.WriteString(msg.Content)
		}
	}
	if system.Len() > 0 {
		params.System = []anthropic.TextBlockParam{{Text: system.String()}}
	}

	params.Messages = buildClaudeMessages(messages)

	for _, t := range tools {
		params.Tools = append(params.Tools, anthropic.ToolUnionParam{
			OfTool: &anthropic.ToolParam{
				Name:        t.Name,
				Description: anthropic.String(t.Description),
				InputSchema: claudeInputSchema(t.Parameters),
			},
		})
	}
	return params
}

func buildClaudeMessages(messages []Message) []anthropic.MessageParam {
	var params []anthropic.MessageParam

	// Tool results become tool_result blocks on a user message; consecutive
	// results from a parallel batch collapse into one.
	var toolResults []anthropic.ContentBlockParamUnion
	flushResults := func() {
		if len(toolResults) > 0 {
			params = append(params, anthropic.NewUserMessage(toolResults...))
			toolResults = nil
		}
	}

	for _, msg := range messages {
		switch msg.Role {
		case RoleUser:
			flushResults()
			params = append(params, anthropic.NewUserMessage(anthropic.NewTextBlock(msg.Content)))
		case RoleAssistant:
			flushResults()
			var blocks []anthropic.ContentBlockParamUnion
			if msg.Content != "" {
				blocks = append(blocks, anthropic.NewTextBlock(msg.Content))
			}
			for _, tc := range msg.ToolCalls {
				var input any
				if len(tc.Arguments) > 0 {
					_ = json.Unmarshal(tc.Arguments, &input)
				}
				if input == nil {
					input = map[string]any{}
				}
				blocks = append(blocks, anthropic.NewToolUseBlock(tc.ID, input, tc.Name))
			}
			if len(blocks) > 0 {
				params = append(params, anthropic.NewAssistantMessage(blocks...))
			}
		case RoleTool:
			toolResults = append(toolResults, anthropic.NewToolResultBlock(msg.ToolCallID, msg.Content, false))
		}
	}
	flushResults()
	return params
}

func claudeInputSchema(schema map[string]any) anthropic.ToolInputSchemaParam {
	if props, ok := schema["properties"].(map[string]any); ok {
		param := anthropic.ToolInputSchemaParam{Properties: props}
		if required, ok := schema["required"].([]string); ok {
			param.Required = required
		} else if raw, ok := schema["required"].([]any); ok {
			for _, r := range raw {
				if s, ok := r.(string); ok {
					param.Required = append(param.Required, s)
				}
			}
		}
		return param
	}
	return anthropic.ToolInputSchemaParam{Properties: schema}
}

func claudeUsage(in, out int64) Usage {
	return Usage{
		InputTokens:  int(in),
		OutputTokens: int(out),
		TotalTokens:  int(in + out),
	}
}

func mapClaudeStopReason(reason anthropic.StopReason) FinishReason {
	switch strings.ToLower(string(reason)) {
	case "end_turn", "stop_sequence", "":
		return FinishStop
	case "tool_use":
		return FinishToolCalls
	case "max_tokens":
		return FinishLength
	case "refusal":
		return FinishContentFilter
	default:
		return FinishOther
	}
}
