package runloop

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/agentcore-dev/agentcore/llmrouter"
)

func noopTool() Tool {
	return ToolFunc(func(ctx context.Context, args map[string]any, toolCtx any) (ToolResult, error) {
		return ToolResult{Success: true}, nil
	})
}

func TestStaticRegistry(t *testing.T) {
	r := NewStaticRegistry()
	if r.Count() != 0 {
		t.Errorf("new registry not empty")
	}

	r.Register(llmrouter.ToolDefinition{Name: "b"}, noopTool())
	r.Register(llmrouter.ToolDefinition{Name: "a"}, noopTool())

	if _, ok := r.Get("a"); !ok {
		t.Error("registered tool not found")
	}
	if _, ok := r.Get("z"); ok {
		t.Error("unknown tool found")
	}

	// Definitions preserve registration order, not lexical order.
	defs := r.Definitions()
	if len(defs) != 2 || defs[0].Name != "b" || defs[1].Name != "a" {
		t.Errorf("definitions = %v", defs)
	}

	r.Unregister("b")
	if r.Count() != 1 {
		t.Errorf("count after unregister = %d", r.Count())
	}
	if names := r.Names(); len(names) != 1 || names[0] != "a" {
		t.Errorf("names = %v", names)
	}

	// Re-registration replaces without duplicating the order entry.
	r.Register(llmrouter.ToolDefinition{Name: "a", Description: "v2"}, noopTool())
	if defs := r.Definitions(); len(defs) != 1 || defs[0].Description != "v2" {
		t.Errorf("re-registration broken: %v", defs)
	}
}

func TestParseToolArguments(t *testing.T) {
	args, err := ParseToolArguments(json.RawMessage(`{"a": 1, "b": "x"}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(args) != 2 {
		t.Errorf("args = %v", args)
	}

	if _, err := ParseToolArguments(json.RawMessage(`{broken`)); err == nil {
		t.Error("malformed JSON accepted")
	}

	args, err = ParseToolArguments(nil)
	if err != nil || args == nil {
		t.Errorf("empty arguments should yield an empty map, got %v, %v", args, err)
	}

	args, err = ParseToolArguments(json.RawMessage(`null`))
	if err != nil || args == nil {
		t.Errorf("null arguments should yield an empty map, got %v, %v", args, err)
	}
}

func TestArgumentHelpers(t *testing.T) {
	args := map[string]any{
		"s": "text",
		"f": float64(7),
		"i": 3,
		"n": json.Number("42"),
		"b": true,
	}

	if s, ok := GetStringArg(args, "s"); !ok || s != "text" {
		t.Errorf("GetStringArg = %q, %v", s, ok)
	}
	if _, ok := GetStringArg(args, "f"); ok {
		t.Error("non-string accepted as string")
	}
	if n, ok := GetIntArg(args, "f"); !ok || n != 7 {
		t.Errorf("GetIntArg(float64) = %d, %v", n, ok)
	}
	if n, ok := GetIntArg(args, "i"); !ok || n != 3 {
		t.Errorf("GetIntArg(int) = %d, %v", n, ok)
	}
	if n, ok := GetIntArg(args, "n"); !ok || n != 42 {
		t.Errorf("GetIntArg(json.Number) = %d, %v", n, ok)
	}
	if b, ok := GetBoolArg(args, "b"); !ok || !b {
		t.Errorf("GetBoolArg = %v, %v", b, ok)
	}
	if _, ok := GetBoolArg(args, "missing"); ok {
		t.Error("missing key reported present")
	}
}
