// Package llmrouter provides provider-agnostic LLM routing: a registry of
// vendor adapters keyed by (provider, model, base URL), task-based routing,
// bounded retry with exponential backoff, and single-shot fallback.
package llmrouter

import (
	"encoding/json"
	"strings"
)

// Role identifies who produced a message in a conversation.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// ToolCall is a model-initiated tool invocation. Arguments hold the raw
// argument text exactly as the model produced it; parsing is the caller's
// concern so a malformed payload can be reported per call.
type ToolCall struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

// Message is the fundamental unit of conversation.
type Message struct {
	Role       Role       `json:"role"`
	Content    string     `json:"content"`
	ToolCallID string     `json:"tool_call_id,omitempty"` // set only on tool messages
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`   // set only on assistant messages
}

// SystemMessage creates a system Message.
func SystemMessage(text string) Message {
	return Message{Role: RoleSystem, Content: text}
}

// UserMessage creates a user Message.
func UserMessage(text string) Message {
	return Message{Role: RoleUser, Content: text}
}

// AssistantMessage creates an assistant Message with text content.
func AssistantMessage(text string) Message {
	return Message{Role: RoleAssistant, Content: text}
}

// AssistantToolCallMessage creates an assistant Message that requests tool
// execution. Content may be empty.
func AssistantToolCallMessage(text string, calls []ToolCall) Message {
	return Message{Role: RoleAssistant, Content: text, ToolCalls: calls}
}

// ToolMessage creates a tool result Message answering the given tool call.
func ToolMessage(toolCallID, content string) Message {
	return Message{Role: RoleTool, Content: content, ToolCallID: toolCallID}
}

// ToolDefinition describes a tool the model may call.
type ToolDefinition struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"` // JSON Schema
}

// FinishReason describes why generation stopped.
type FinishReason string

const (
	FinishStop          FinishReason = "stop"
	FinishToolCalls     FinishReason = "tool_calls"
	FinishLength        FinishReason = "length"
	FinishContentFilter FinishReason = "content_filter"
	FinishOther         FinishReason = "other"
)

// Usage tracks token consumption for one model call.
type Usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
	TotalTokens  int `json:"total_tokens"`
}

// Add returns a new Usage that is the sum of u and other.
func (u Usage) Add(other Usage) Usage {
	return Usage{
		InputTokens:  u.InputTokens + other.InputTokens,
		OutputTokens: u.OutputTokens + other.OutputTokens,
		TotalTokens:  u.TotalTokens + other.TotalTokens,
	}
}

// ToolResponse is the result of a tool-augmented generation call.
type ToolResponse struct {
	Content      string       `json:"content"`
	ToolCalls    []ToolCall   `json:"tool_calls,omitempty"`
	FinishReason FinishReason `json:"finish_reason"`
	Usage        Usage        `json:"usage"`
}

// HasToolCalls reports whether the model requested tool execution.
func (r *ToolResponse) HasToolCalls() bool {
	return len(r.ToolCalls) > 0
}

// GenerateOptions carries per-call generation parameters. Cancellation is
// carried by the context, not by options.
type GenerateOptions struct {
	Temperature   *float64
	MaxTokens     *int
	StopSequences []string
}

// ChunkKind identifies the type of a streamed chunk.
type ChunkKind string

const (
	ChunkText     ChunkKind = "text_delta"
	ChunkToolCall ChunkKind = "tool_call"
	ChunkDone     ChunkKind = "done"
	ChunkError    ChunkKind = "error"
)

// StreamChunk is one incremental piece of a streaming response. A stream ends
// with exactly one ChunkDone (carrying the assembled response) or ChunkError.
type StreamChunk struct {
	Kind     ChunkKind     `json:"kind"`
	Delta    string        `json:"delta,omitempty"`
	ToolCall *ToolCall     `json:"tool_call,omitempty"`
	Response *ToolResponse `json:"response,omitempty"`
	Err      error         `json:"-"`
}

// ChunkHandler receives stream chunks in emission order.
type ChunkHandler func(StreamChunk)

// TextContent returns the concatenation of all text in the messages, used for
// rough token estimation.
func TextContent(messages []Message) string {
	var sb strings.Builder
	for _, m := range messages {
		sb.WriteString(m.Content)
	}
	return sb.String()
}
