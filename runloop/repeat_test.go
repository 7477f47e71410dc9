package runloop

import "testing"

func record(name string, args map[string]any) ToolCallRecord {
	return ToolCallRecord{ToolName: name, Arguments: args}
}

func TestDetectRepeatSingleCall(t *testing.T) {
	records := []ToolCallRecord{
		record("search", map[string]any{"q": "go"}),
		record("search", map[string]any{"q": "go"}),
		record("search", map[string]any{"q": "go"}),
	}
	if !detectRepeat(records, 3) {
		t.Error("three identical calls not detected")
	}
}

func TestDetectRepeatAlternatingPair(t *testing.T) {
	records := []ToolCallRecord{
		record("read", map[string]any{"path": "a"}),
		record("read", map[string]any{"path": "b"}),
		record("read", map[string]any{"path": "a"}),
		record("read", map[string]any{"path": "b"}),
	}
	if !detectRepeat(records, 4) {
		t.Error("alternating pair not detected")
	}
}

func TestDetectRepeatDistinctCalls(t *testing.T) {
	records := []ToolCallRecord{
		record("read", map[string]any{"path": "a"}),
		record("read", map[string]any{"path": "b"}),
		record("read", map[string]any{"path": "c"}),
	}
	if detectRepeat(records, 3) {
		t.Error("distinct calls flagged as a loop")
	}
}

func TestDetectRepeatInsufficientHistory(t *testing.T) {
	records := []ToolCallRecord{
		record("search", map[string]any{"q": "go"}),
	}
	if detectRepeat(records, 3) {
		t.Error("short history flagged")
	}
	if detectRepeat(nil, 3) {
		t.Error("empty history flagged")
	}
	if detectRepeat(records, 0) {
		t.Error("zero window flagged")
	}
}

func TestDetectRepeatOnlyRecentWindow(t *testing.T) {
	records := []ToolCallRecord{
		record("search", map[string]any{"q": "old"}),
		record("search", map[string]any{"q": "old"}),
		record("read", map[string]any{"path": "a"}),
		record("read", map[string]any{"path": "b"}),
		record("read", map[string]any{"path": "c"}),
	}
	if detectRepeat(records, 3) {
		t.Error("old repeats outside the window flagged")
	}
}
