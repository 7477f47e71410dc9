package runloop

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/agentcore-dev/agentcore/llmrouter"
)

func sleepyTool(d time.Duration, output string) Tool {
	return ToolFunc(func(ctx context.Context, args map[string]any, toolCtx any) (ToolResult, error) {
		time.Sleep(d)
		return ToolResult{Success: true, Content: output}, nil
	})
}

func failingTool(msg string) Tool {
	return ToolFunc(func(ctx context.Context, args map[string]any, toolCtx any) (ToolResult, error) {
		return ToolResult{}, errors.New(msg)
	})
}

func registryWith(tools map[string]Tool) *StaticRegistry {
	r := NewStaticRegistry()
	for name, tool := range tools {
		r.Register(llmrouter.ToolDefinition{Name: name, Parameters: map[string]any{"type": "object"}}, tool)
	}
	return r
}

func call(id, name, args string) llmrouter.ToolCall {
	return llmrouter.ToolCall{ID: id, Name: name, Arguments: json.RawMessage(args)}
}

func TestDispatcherArgumentParseError(t *testing.T) {
	d := &Dispatcher{Registry: registryWith(map[string]Tool{"echo": sleepyTool(0, "ok")})}

	records := d.Execute(context.Background(), "run", []llmrouter.ToolCall{
		call("c1", "echo", `{not json`),
	}, nil, nil)

	if len(records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(records))
	}
	if records[0].Result.Success {
		t.Fatal("malformed arguments must fail")
	}
	if records[0].Result.ErrorCode != ToolErrArgumentParse {
		t.Errorf("error code = %q", records[0].Result.ErrorCode)
	}
}

func TestDispatcherToolNotFound(t *testing.T) {
	d := &Dispatcher{Registry: NewStaticRegistry()}

	records := d.Execute(context.Background(), "run", []llmrouter.ToolCall{
		call("c1", "nope", `{}`),
	}, nil, nil)

	if records[0].Result.ErrorCode != ToolErrNotFound {
		t.Errorf("error code = %q", records[0].Result.ErrorCode)
	}
}

func TestDispatcherExecutionError(t *testing.T) {
	d := &Dispatcher{Registry: registryWith(map[string]Tool{"boom": failingTool("it broke")})}

	records := d.Execute(context.Background(), "run", []llmrouter.ToolCall{
		call("c1", "boom", `{}`),
	}, nil, nil)

	r := records[0].Result
	if r.Success || r.ErrorCode != ToolErrExecution {
		t.Errorf("result = %+v", r)
	}
	if !strings.Contains(r.ErrorMessage, "it broke") {
		t.Errorf("error message = %q", r.ErrorMessage)
	}
}

func TestDispatcherRecoversPanics(t *testing.T) {
	panicky := ToolFunc(func(ctx context.Context, args map[string]any, toolCtx any) (ToolResult, error) {
		panic("tool bug")
	})
	d := &Dispatcher{Registry: registryWith(map[string]Tool{"panic": panicky})}

	records := d.Execute(context.Background(), "run", []llmrouter.ToolCall{
		call("c1", "panic", `{}`),
	}, nil, nil)

	r := records[0].Result
	if r.Success || r.ErrorCode != ToolErrExecution {
		t.Errorf("panic not converted to failed result: %+v", r)
	}
}

func TestDispatcherParallelPreservesRequestOrder(t *testing.T) {
	d := &Dispatcher{
		Registry: registryWith(map[string]Tool{
			"slow": sleepyTool(30*time.Millisecond, "slow done"),
			"fast": sleepyTool(0, "fast done"),
		}),
		Parallel: true,
	}

	records := d.Execute(context.Background(), "run", []llmrouter.ToolCall{
		call("c1", "slow", `{}`),
		call("c2", "fast", `{}`),
	}, nil, nil)

	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}
	if records[0].ID != "c1" || records[1].ID != "c2" {
		t.Errorf("records out of request order: %s, %s", records[0].ID, records[1].ID)
	}
	if records[0].Result.Content != "slow done" {
		t.Errorf("record 0 content = %q", records[0].Result.Content)
	}
}

func TestDispatcherParallelIsolation(t *testing.T) {
	d := &Dispatcher{
		Registry: registryWith(map[string]Tool{
			"boom": failingTool("dead"),
			"ok":   sleepyTool(10*time.Millisecond, "alive"),
		}),
		Parallel: true,
	}

	records := d.Execute(context.Background(), "run", []llmrouter.ToolCall{
		call("c1", "boom", `{}`),
		call("c2", "ok", `{}`),
	}, nil, nil)

	if records[0].Result.Success {
		t.Error("expected first call to fail")
	}
	if !records[1].Result.Success || records[1].Result.Content != "alive" {
		t.Errorf("failing sibling affected the other call: %+v", records[1].Result)
	}
}

func TestDispatcherSequentialHaltOnError(t *testing.T) {
	var executed int
	counter := ToolFunc(func(ctx context.Context, args map[string]any, toolCtx any) (ToolResult, error) {
		executed++
		return ToolResult{Success: true, Content: "ok"}, nil
	})
	d := &Dispatcher{
		Registry: registryWith(map[string]Tool{
			"boom": failingTool("dead"),
			"next": counter,
		}),
		HaltOnError: true,
	}

	records := d.Execute(context.Background(), "run", []llmrouter.ToolCall{
		call("c1", "boom", `{}`),
		call("c2", "next", `{}`),
	}, nil, nil)

	if len(records) != 1 {
		t.Fatalf("expected the batch to halt after the failure, got %d records", len(records))
	}
	if executed != 0 {
		t.Errorf("second tool ran despite halt-on-error")
	}
}

func TestDispatcherForwardsToolContext(t *testing.T) {
	var got any
	capture := ToolFunc(func(ctx context.Context, args map[string]any, toolCtx any) (ToolResult, error) {
		got = toolCtx
		return ToolResult{Success: true, Content: "ok"}, nil
	})
	d := &Dispatcher{Registry: registryWith(map[string]Tool{"cap": capture})}

	type callerIdentity struct{ User string }
	want := callerIdentity{User: "alice"}
	d.Execute(context.Background(), "run", []llmrouter.ToolCall{call("c1", "cap", `{}`)}, want, nil)

	if got != want {
		t.Errorf("tool context = %#v, want %#v", got, want)
	}
}

func TestDispatcherTruncatesContent(t *testing.T) {
	big := strings.Repeat("x", 500)
	d := &Dispatcher{
		Registry:   registryWith(map[string]Tool{"big": sleepyTool(0, big)}),
		CharLimits: map[string]int{"big": 100},
	}

	records := d.Execute(context.Background(), "run", []llmrouter.ToolCall{call("c1", "big", `{}`)}, nil, nil)
	if len(records[0].Result.Content) >= len(big) {
		t.Error("content not truncated")
	}
	if !strings.Contains(records[0].Result.Content, "truncated") {
		t.Errorf("truncation marker missing: %q", records[0].Result.Content[:80])
	}
}

func TestDispatcherEmitsEventsPerCall(t *testing.T) {
	d := &Dispatcher{Registry: registryWith(map[string]Tool{
		"ok":   sleepyTool(0, "fine"),
		"boom": failingTool("dead"),
	})}

	var mu sync.Mutex
	var kinds []EventKind
	sink := SinkFunc(func(e Event) {
		mu.Lock()
		kinds = append(kinds, e.Kind)
		mu.Unlock()
	})

	d.Execute(context.Background(), "run", []llmrouter.ToolCall{
		call("c1", "ok", `{}`),
		call("c2", "boom", `{}`),
	}, nil, sink)

	want := []EventKind{EventToolCallStarted, EventToolCallCompleted, EventToolCallStarted, EventToolError}
	if len(kinds) != len(want) {
		t.Fatalf("events = %v", kinds)
	}
	for i := range want {
		if kinds[i] != want[i] {
			t.Errorf("event[%d] = %s, want %s", i, kinds[i], want[i])
		}
	}
}

func TestDispatcherEmptyBatch(t *testing.T) {
	d := &Dispatcher{Registry: NewStaticRegistry()}
	if records := d.Execute(context.Background(), "run", nil, nil, nil); records != nil {
		t.Errorf("expected nil for empty batch, got %v", records)
	}
}
