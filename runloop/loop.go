package runloop

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/agentcore-dev/agentcore/llmrouter"
)

// DefaultMaxIterations bounds a run when the caller does not set a cap.
const DefaultMaxIterations = 10

// ModelCaller is the slice of llmrouter.Manager the loop depends on.
type ModelCaller interface {
	GenerateWithTools(ctx context.Context, task string, messages []llmrouter.Message, tools []llmrouter.ToolDefinition, opts llmrouter.GenerateOptions) (*llmrouter.ToolResponse, error)
	GenerateWithToolsStream(ctx context.Context, task string, messages []llmrouter.Message, tools []llmrouter.ToolDefinition, opts llmrouter.GenerateOptions, onChunk llmrouter.ChunkHandler) (*llmrouter.ToolResponse, error)
}

// Runner drives the reason-act-observe loop: call the model, execute any
// requested tools, fold the results back into the conversation, and repeat
// until the model answers directly or a terminal condition is reached.
//
// A Runner holds no per-run state. Many Run calls may execute concurrently
// against one Runner and its shared Manager; each run owns its conversation
// exclusively.
type Runner struct {
	manager    ModelCaller
	registry   ToolRegistry
	dispatcher *Dispatcher
	logger     *slog.Logger
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithDispatcher replaces the default parallel dispatcher.
func WithDispatcher(d *Dispatcher) RunnerOption {
	return func(r *Runner) {
		if d != nil {
			r.dispatcher = d
		}
	}
}

// WithLogger sets the structured logger for iteration and termination
// reporting. Without it the Runner is silent.
func WithLogger(logger *slog.Logger) RunnerOption {
	return func(r *Runner) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// NewRunner creates a Runner backed by the given Manager and tool registry.
func NewRunner(manager ModelCaller, registry ToolRegistry, opts ...RunnerOption) (*Runner, error) {
	if manager == nil {
		return nil, llmrouter.NewModelError(llmrouter.CodeInvalidRequest, "", "runner requires a manager", nil)
	}
	if registry == nil {
		return nil, llmrouter.NewModelError(llmrouter.CodeInvalidRequest, "", "runner requires a tool registry", nil)
	}
	r := &Runner{
		manager:    manager,
		registry:   registry,
		dispatcher: &Dispatcher{Registry: registry, Parallel: true},
		logger:     slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// RunOptions configures one Run call.
type RunOptions struct {
	// SystemPrompt is prepended as the first message when non-empty.
	SystemPrompt string

	// History is prior conversation prepended before the new user message.
	// It is read-only input: the run copies it and never mutates it, which
	// is what keeps runs stateless across calls.
	History []llmrouter.Message

	// MaxIterations caps the number of loop iterations. Zero means
	// DefaultMaxIterations.
	MaxIterations int

	// IterationTimeout bounds each iteration (model call plus tool batch).
	// Zero means no per-iteration timeout; the caller's ctx still applies.
	// Expiry during the model call cancels the run; expiry during tool
	// execution fails the affected tool calls instead, and the loop
	// continues with a fresh budget next iteration.
	IterationTimeout time.Duration

	// Task selects the model route; empty routes to the default provider.
	Task string

	// Stream requests streaming generation; text deltas surface as
	// content_chunk events on Sink.
	Stream bool

	// Sink receives the run's ordered event stream. May be nil.
	Sink EventSink

	// RepeatWindow enables repetitive-tool-call detection over the last N
	// executed calls. On detection a user-role notice is appended so the
	// model can break the cycle. Zero disables it.
	RepeatWindow int

	// Generate carries sampling options forwarded to the model.
	Generate llmrouter.GenerateOptions
}

func (o RunOptions) maxIterations() int {
	if o.MaxIterations > 0 {
		return o.MaxIterations
	}
	return DefaultMaxIterations
}

// runState is the per-run mutable state. It is owned exclusively by one Run
// invocation and discarded when Run returns.
type runState struct {
	runID     string
	messages  []llmrouter.Message
	toolCalls []ToolCallRecord
	iteration int
	status    Status
	content   string
	errMsg    string
	usage     llmrouter.Usage
	start     time.Time
}

func (s *runState) finish(status Status) {
	// Status is monotonic: the first terminal transition wins.
	if s.status == StatusRunning {
		s.status = status
	}
}

// Run executes the loop for one user message. Expected terminal conditions
// (max_iterations, cancelled) are reported via LoopResult.Status, never as
// a returned error; the error return is reserved for misconfiguration.
//
// toolCtx is forwarded unmodified to every tool execution of this run.
func (r *Runner) Run(ctx context.Context, userMessage string, toolCtx any, opts RunOptions) (*LoopResult, error) {
	if opts.MaxIterations < 0 {
		return nil, llmrouter.NewModelError(llmrouter.CodeInvalidRequest, "", "max iterations must not be negative", nil)
	}

	state := &runState{
		runID:  uuid.New().String(),
		status: StatusRunning,
		start:  time.Now(),
	}

	if opts.SystemPrompt != "" {
		state.messages = append(state.messages, llmrouter.SystemMessage(opts.SystemPrompt))
	}
	state.messages = append(state.messages, opts.History...)
	state.messages = append(state.messages, llmrouter.UserMessage(userMessage))

	emit(opts.Sink, state.runID, EventProcessingStarted, map[string]any{
		"task":           opts.Task,
		"max_iterations": opts.maxIterations(),
	})
	r.logger.Debug("run started", "run_id", state.runID, "task", opts.Task)

	for state.status == StatusRunning {
		if state.iteration >= opts.maxIterations() {
			state.finish(StatusMaxIterations)
			break
		}
		if ctx.Err() != nil {
			state.finish(StatusCancelled)
			break
		}

		emit(opts.Sink, state.runID, EventIterationStarted, map[string]any{
			"iteration": state.iteration + 1,
		})

		r.runIteration(ctx, state, toolCtx, opts)
		if state.status == StatusCancelled || state.status == StatusError {
			break
		}

		state.iteration++
		emit(opts.Sink, state.runID, EventIterationCompleted, map[string]any{
			"iteration": state.iteration,
		})
	}

	result := &LoopResult{
		RunID:      state.runID,
		Status:     state.status,
		Content:    state.content,
		ToolCalls:  state.toolCalls,
		Iterations: state.iteration,
		Duration:   time.Since(state.start),
		Usage:      state.usage,
		Error:      state.errMsg,
	}

	switch state.status {
	case StatusCancelled:
		emit(opts.Sink, state.runID, EventCancelled, map[string]any{
			"iterations": state.iteration,
		})
	case StatusError:
		emit(opts.Sink, state.runID, EventError, map[string]any{
			"iterations": state.iteration,
			"error":      state.errMsg,
		})
	default:
		emit(opts.Sink, state.runID, EventCompleted, map[string]any{
			"status":     string(state.status),
			"iterations": state.iteration,
			"content":    state.content,
		})
	}
	r.logger.Debug("run finished",
		"run_id", state.runID,
		"status", state.status,
		"iterations", state.iteration,
		"tool_calls", len(state.toolCalls))

	return result, nil
}

// runIteration executes one loop step: model call, then tool dispatch when
// the model requested tools, then state updates. The per-iteration timeout
// covers the model call and the tool batch and is always released on exit.
func (r *Runner) runIteration(ctx context.Context, state *runState, toolCtx any, opts RunOptions) {
	iterCtx := ctx
	if opts.IterationTimeout > 0 {
		var cancel context.CancelFunc
		iterCtx, cancel = context.WithTimeout(ctx, opts.IterationTimeout)
		defer cancel()
	}

	defs := r.registry.Definitions()
	resp, deltas, err := r.callModel(iterCtx, state.messages, defs, opts)
	if err != nil {
		if llmrouter.IsCancelled(err) {
			state.finish(StatusCancelled)
			return
		}
		r.logger.Warn("model call failed", "run_id", state.runID, "error", err)
		state.errMsg = err.Error()
		state.finish(StatusError)
		return
	}
	state.usage = state.usage.Add(resp.Usage)

	if !resp.HasToolCalls() {
		state.messages = append(state.messages, llmrouter.AssistantMessage(resp.Content))
		state.content = resp.Content
		r.flushDeltas(state, deltas, opts)
		state.finish(StatusCompleted)
		return
	}

	// The assistant message records the requested calls; content may be
	// empty at this point.
	state.messages = append(state.messages, llmrouter.AssistantToolCallMessage(resp.Content, resp.ToolCalls))

	records := r.dispatcher.Execute(iterCtx, state.runID, resp.ToolCalls, toolCtx, opts.Sink)
	state.toolCalls = append(state.toolCalls, records...)
	for _, record := range records {
		state.messages = append(state.messages, llmrouter.ToolMessage(record.ID, record.Result.Content))
	}

	r.flushDeltas(state, deltas, opts)

	if opts.RepeatWindow > 0 && detectRepeat(state.toolCalls, opts.RepeatWindow) {
		r.logger.Warn("repetitive tool calls detected", "run_id", state.runID, "window", opts.RepeatWindow)
		notice := fmt.Sprintf("The last %d tool calls follow a repeating pattern. Try a different approach.", opts.RepeatWindow)
		state.messages = append(state.messages, llmrouter.UserMessage(notice))
	}
}

// callModel issues the generation call for the current conversation. In
// streaming mode text deltas are buffered and returned so the caller can
// emit them after the iteration's tool events, keeping the event order
// stable across streaming and batch modes.
func (r *Runner) callModel(ctx context.Context, messages []llmrouter.Message, defs []llmrouter.ToolDefinition, opts RunOptions) (*llmrouter.ToolResponse, []string, error) {
	if !opts.Stream || opts.Sink == nil {
		resp, err := r.manager.GenerateWithTools(ctx, opts.Task, messages, defs, opts.Generate)
		return resp, nil, err
	}

	var deltas []string
	resp, err := r.manager.GenerateWithToolsStream(ctx, opts.Task, messages, defs, opts.Generate, func(chunk llmrouter.StreamChunk) {
		if chunk.Kind == llmrouter.ChunkText && chunk.Delta != "" {
			deltas = append(deltas, chunk.Delta)
		}
	})
	return resp, deltas, err
}

func (r *Runner) flushDeltas(state *runState, deltas []string, opts RunOptions) {
	for _, delta := range deltas {
		emit(opts.Sink, state.runID, EventContentChunk, map[string]any{
			"delta": delta,
		})
	}
}
