package runloop

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/agentcore-dev/agentcore/llmrouter"
)

// Dispatcher executes one model turn's worth of tool-call requests against
// a ToolRegistry. Failures never escape as errors: every call produces a
// ToolCallRecord, failed or not, so the model can react on the next turn.
type Dispatcher struct {
	Registry ToolRegistry

	// Parallel dispatches all calls of a batch concurrently. Records are
	// returned in request order regardless of completion order.
	Parallel bool

	// HaltOnError stops a sequential batch at the first failed call.
	// Ignored in parallel mode, where every call is already in flight.
	HaltOnError bool

	// Per-tool output limits folded into conversation content. The
	// untruncated output still reaches the event stream and the record's
	// Data field when the tool supplied one.
	CharLimits map[string]int
	LineLimits map[string]int
}

// Execute runs the batch and returns one record per executed call, ordered
// by request index. sink may be nil.
func (d *Dispatcher) Execute(ctx context.Context, runID string, calls []llmrouter.ToolCall, toolCtx any, sink EventSink) []ToolCallRecord {
	if len(calls) == 0 {
		return nil
	}

	if d.Parallel && len(calls) > 1 {
		records := make([]ToolCallRecord, len(calls))
		var wg sync.WaitGroup
		for i, call := range calls {
			wg.Add(1)
			go func(i int, call llmrouter.ToolCall) {
				defer wg.Done()
				records[i] = d.executeOne(ctx, runID, call, toolCtx, sink)
			}(i, call)
		}
		wg.Wait()
		return records
	}

	var records []ToolCallRecord
	for _, call := range calls {
		record := d.executeOne(ctx, runID, call, toolCtx, sink)
		records = append(records, record)
		if d.HaltOnError && !record.Result.Success {
			break
		}
	}
	return records
}

// executeOne runs a single call inside its own failure boundary: argument
// parse failures, missing tools, tool errors, and tool panics all come back
// as failed results.
func (d *Dispatcher) executeOne(ctx context.Context, runID string, call llmrouter.ToolCall, toolCtx any, sink EventSink) ToolCallRecord {
	record := ToolCallRecord{
		ID:        call.ID,
		ToolName:  call.Name,
		Timestamp: time.Now(),
	}

	emit(sink, runID, EventToolCallStarted, map[string]any{
		"tool_call_id": call.ID,
		"tool_name":    call.Name,
		"arguments":    string(call.Arguments),
	})

	start := time.Now()
	args, err := ParseToolArguments(call.Arguments)
	if err != nil {
		record.Result = FailedResult(ToolErrArgumentParse, err.Error())
	} else {
		record.Arguments = args
		tool, ok := d.Registry.Get(call.Name)
		if !ok {
			record.Result = FailedResult(ToolErrNotFound, fmt.Sprintf("tool %q is not registered", call.Name))
		} else {
			record.Result = runTool(ctx, tool, args, toolCtx)
		}
	}
	record.Duration = time.Since(start)

	if record.Result.Success {
		full := record.Result.Content
		record.Result.Content = truncateToolOutput(full, call.Name, d.CharLimits, d.LineLimits)
		emit(sink, runID, EventToolCallCompleted, map[string]any{
			"tool_call_id": call.ID,
			"tool_name":    call.Name,
			"duration_ms":  record.Duration.Milliseconds(),
			"content":      full,
		})
	} else {
		emit(sink, runID, EventToolError, map[string]any{
			"tool_call_id": call.ID,
			"tool_name":    call.Name,
			"duration_ms":  record.Duration.Milliseconds(),
			"error_code":   record.Result.ErrorCode,
			"error":        record.Result.ErrorMessage,
		})
	}
	return record
}

// runTool invokes the tool and normalizes every failure mode, including a
// panic, into a failed ToolResult.
func runTool(ctx context.Context, tool Tool, args map[string]any, toolCtx any) (result ToolResult) {
	defer func() {
		if r := recover(); r != nil {
			result = FailedResult(ToolErrExecution, fmt.Sprintf("tool panicked: %v", r))
		}
	}()

	result, err := tool.Execute(ctx, args, toolCtx)
	if err != nil {
		return FailedResult(ToolErrExecution, err.Error())
	}
	return result
}

func emit(sink EventSink, runID string, kind EventKind, data map[string]any) {
	if sink == nil {
		return
	}
	sink.Emit(Event{
		Kind:      kind,
		Timestamp: time.Now(),
		RunID:     runID,
		Data:      data,
	})
}
