package runloop

import (
	"time"

	"github.com/agentcore-dev/agentcore/llmrouter"
)

// Status is the lifecycle state of a run. It is monotonic: once a run leaves
// StatusRunning it never changes again.
type Status string

const (
	StatusRunning       Status = "running"
	StatusCompleted     Status = "completed"
	StatusMaxIterations Status = "max_iterations"
	StatusCancelled     Status = "cancelled"
	StatusError         Status = "error"
)

// Terminal reports whether the status ends a run.
func (s Status) Terminal() bool {
	return s != StatusRunning
}

// Tool failure codes carried on ToolResult.
const (
	ToolErrNotFound      = "TOOL_NOT_FOUND"
	ToolErrArgumentParse = "ARGUMENT_PARSE_ERROR"
	ToolErrExecution     = "EXECUTION_ERROR"
)

// ToolResult is the outcome of one tool execution.
type ToolResult struct {
	Success      bool   `json:"success"`
	Content      string `json:"content"`
	Data         any    `json:"data,omitempty"`
	ErrorCode    string `json:"error_code,omitempty"`
	ErrorMessage string `json:"error_message,omitempty"`
}

// FailedResult builds a failed ToolResult with the given code and message.
// The message doubles as the content so the model sees the failure text.
func FailedResult(code, message string) ToolResult {
	return ToolResult{
		Success:      false,
		Content:      "Error: " + message,
		ErrorCode:    code,
		ErrorMessage: message,
	}
}

// ToolCallRecord captures one executed tool call: the model's request, the
// parsed arguments, the result, and timing.
type ToolCallRecord struct {
	ID        string         `json:"id"`
	ToolName  string         `json:"tool_name"`
	Arguments map[string]any `json:"arguments"`
	Result    ToolResult     `json:"result"`
	Timestamp time.Time      `json:"timestamp"`
	Duration  time.Duration  `json:"duration"`
}

// LoopResult is the terminal outcome of one Run call. Expected terminal
// conditions (max_iterations, cancelled) are reported here via Status, never
// as errors.
type LoopResult struct {
	RunID      string           `json:"run_id"`
	Status     Status           `json:"status"`
	Content    string           `json:"content"`
	ToolCalls  []ToolCallRecord `json:"tool_calls"`
	Iterations int              `json:"iterations"`
	Duration   time.Duration    `json:"duration"`
	Usage      llmrouter.Usage  `json:"usage"`
	Error      string           `json:"error,omitempty"`
}
