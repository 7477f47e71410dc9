package llmrouter

import (
	"context"
	"log/slog"
)

// Manager routes logical tasks to concrete adapters and applies the retry
// and fallback policy. One Manager is created per configuration and shared
// across many concurrent conversation runs; the adapter cache is the only
// mutable state and it is populated at most once per key.
type Manager struct {
	cfg      ManagerConfig
	registry *adapterRegistry
	policy   RetryPolicy
	logger   *slog.Logger
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithLogger sets the structured logger used for retry and fallback
// reporting. Without it the Manager is silent.
func WithLogger(logger *slog.Logger) ManagerOption {
	return func(m *Manager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// NewManager creates a Manager from the given configuration.
func NewManager(cfg ManagerConfig, opts ...ManagerOption) (*Manager, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	m := &Manager{
		cfg:      cfg,
		registry: newAdapterRegistry(),
		policy:   cfg.retryPolicy(),
		logger:   slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// configForTask resolves the provider configuration for a task. Task
// overrides apply only in multi-model mode; otherwise every task maps to
// the default provider.
func (m *Manager) configForTask(task string) ProviderConfig {
	if m.cfg.MultiModel {
		if pc, ok := m.cfg.Tasks[task]; ok {
			return pc
		}
	}
	return m.cfg.Default
}

// AdapterForTask returns the adapter that handles the given task. The result
// is deterministic: the same task always yields the same adapter instance
// for a given configuration.
func (m *Manager) AdapterForTask(task string) (ModelAdapter, error) {
	return m.registry.adapterFor(m.configForTask(task))
}

// fallbackAdapter returns the configured fallback adapter, or nil.
func (m *Manager) fallbackAdapter() (ModelAdapter, error) {
	if m.cfg.Fallback == nil {
		return nil, nil
	}
	return m.registry.adapterFor(*m.cfg.Fallback)
}

// GenerateWithTools routes a tool-augmented generation call for task,
// retrying retryable failures with exponential backoff and substituting the
// fallback adapter exactly once after the retry budget is exhausted. When
// both fail, the primary's error is surfaced, unless the fallback itself was
// cancelled, which takes priority.
func (m *Manager) GenerateWithTools(ctx context.Context, task string, messages []Message, tools []ToolDefinition, opts GenerateOptions) (*ToolResponse, error) {
	return callWithPolicy(ctx, m, task, func(ctx context.Context, adapter ModelAdapter) (*ToolResponse, error) {
		return adapter.GenerateWithTools(ctx, messages, tools, opts)
	})
}

// Generate routes a plain-text generation call for task with the same retry
// and fallback policy as GenerateWithTools.
func (m *Manager) Generate(ctx context.Context, task string, messages []Message, opts GenerateOptions) (string, error) {
	return callWithPolicy(ctx, m, task, func(ctx context.Context, adapter ModelAdapter) (string, error) {
		return adapter.Generate(ctx, messages, opts)
	})
}

// GenerateWithToolsStream routes a streaming tool-augmented call. Routing
// and cancellation checks match GenerateWithTools, but failures are never
// retried: a partially-emitted stream cannot be safely replayed to the
// consumer. When the routed adapter does not support streaming, the call is
// transparently served by the batch path and synthesized as a single text
// chunk followed by a done chunk, so consumers see a uniform stream shape.
func (m *Manager) GenerateWithToolsStream(ctx context.Context, task string, messages []Message, tools []ToolDefinition, opts GenerateOptions, onChunk ChunkHandler) (*ToolResponse, error) {
	if err := ctx.Err(); err != nil {
		return nil, NewModelError(CodeCancelled, "", "cancelled before call", err)
	}

	adapter, err := m.AdapterForTask(task)
	if err != nil {
		return nil, err
	}

	if !adapter.SupportsStreaming() {
		resp, err := adapter.GenerateWithTools(ctx, messages, tools, opts)
		if err != nil {
			return nil, Classify(err, adapter.Provider())
		}
		if onChunk != nil {
			if resp.Content != "" {
				onChunk(StreamChunk{Kind: ChunkText, Delta: resp.Content})
			}
			onChunk(StreamChunk{Kind: ChunkDone, Response: resp})
		}
		return resp, nil
	}

	resp, err := adapter.GenerateWithToolsStream(ctx, messages, tools, opts, onChunk)
	if err != nil {
		return nil, Classify(err, adapter.Provider())
	}
	return resp, nil
}

// Embed routes an embedding request. The task's adapter serves it when
// capable; otherwise the default adapter is tried before giving up.
func (m *Manager) Embed(ctx context.Context, task string, text string) ([]float64, error) {
	if err := ctx.Err(); err != nil {
		return nil, NewModelError(CodeCancelled, "", "cancelled before call", err)
	}

	adapter, err := m.AdapterForTask(task)
	if err != nil {
		return nil, err
	}
	if !adapter.SupportsEmbeddings() {
		fallback, err := m.registry.adapterFor(m.cfg.Default)
		if err != nil {
			return nil, err
		}
		if !fallback.SupportsEmbeddings() {
			return nil, NewModelError(CodeInvalidRequest, adapter.Provider(), "no configured adapter supports embeddings", nil)
		}
		adapter = fallback
	}

	vec, err := adapter.Embed(ctx, text)
	if err != nil {
		return nil, Classify(err, adapter.Provider())
	}
	return vec, nil
}

// callWithPolicy implements the shared retry + fallback sequence for batch
// calls. The cancellation signal is checked before the first attempt and
// again before the fallback attempt; a CANCELLED classification propagates
// immediately and is never retried.
func callWithPolicy[T any](ctx context.Context, m *Manager, task string, call func(context.Context, ModelAdapter) (T, error)) (T, error) {
	var zero T

	if err := ctx.Err(); err != nil {
		return zero, NewModelError(CodeCancelled, "", "cancelled before call", err)
	}

	adapter, err := m.AdapterForTask(task)
	if err != nil {
		return zero, err
	}

	result, primaryErr := attemptWithRetry(ctx, m, adapter, task, call)
	if primaryErr == nil {
		return result, nil
	}
	if IsCancelled(primaryErr) {
		return zero, primaryErr
	}

	fallback, fbErr := m.fallbackAdapter()
	if fbErr != nil || fallback == nil {
		return zero, primaryErr
	}

	// Cancellation is re-checked before the single fallback attempt.
	if err := ctx.Err(); err != nil {
		return zero, NewModelError(CodeCancelled, "", "cancelled before fallback", err)
	}

	m.logger.Warn("falling back to secondary provider",
		"task", task,
		"primary", adapter.Provider(),
		"fallback", fallback.Provider(),
		"cause", primaryErr)

	result, err = call(ctx, fallback)
	if err == nil {
		return result, nil
	}
	classified := Classify(err, fallback.Provider())
	if classified.Code == CodeCancelled {
		return zero, classified
	}
	// The fallback's own failure is less interesting than the original one.
	return zero, primaryErr
}

// attemptWithRetry runs the primary adapter through the retry budget and
// returns the final classified error once the budget is exhausted or the
// failure is not retryable.
func attemptWithRetry[T any](ctx context.Context, m *Manager, adapter ModelAdapter, task string, call func(context.Context, ModelAdapter) (T, error)) (T, error) {
	var zero T

	for attempt := 0; ; attempt++ {
		result, err := call(ctx, adapter)
		if err == nil {
			return result, nil
		}

		classified := Classify(err, adapter.Provider())
		if classified.Code == CodeCancelled {
			return zero, classified
		}
		if !IsRetryable(classified) || attempt >= m.policy.MaxRetries {
			return zero, classified
		}

		delay := m.policy.Delay(attempt)
		m.logger.Warn("retrying model call",
			"task", task,
			"provider", adapter.Provider(),
			"attempt", attempt+1,
			"delay", delay,
			"code", classified.Code)
		if err := sleepOrCancel(ctx, delay); err != nil {
			return zero, Classify(err, adapter.Provider())
		}
	}
}
