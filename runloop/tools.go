package runloop

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/agentcore-dev/agentcore/llmrouter"
)

// Tool is one executable capability offered to the model. Execute receives
// the parsed arguments and the run's opaque tool context; implementations
// may block and should honor ctx.
type Tool interface {
	Execute(ctx context.Context, args map[string]any, toolCtx any) (ToolResult, error)
}

// ToolFunc adapts a plain function to the Tool interface.
type ToolFunc func(ctx context.Context, args map[string]any, toolCtx any) (ToolResult, error)

func (f ToolFunc) Execute(ctx context.Context, args map[string]any, toolCtx any) (ToolResult, error) {
	return f(ctx, args, toolCtx)
}

// ToolRegistry supplies the tools available to a run. The registry is
// owned by the caller; the loop only reads from it.
type ToolRegistry interface {
	Definitions() []llmrouter.ToolDefinition
	Get(name string) (Tool, bool)
}

// RegisteredTool pairs a tool definition with its implementation.
type RegisteredTool struct {
	Definition llmrouter.ToolDefinition
	Tool       Tool
}

// StaticRegistry is a mutex-guarded in-memory ToolRegistry.
type StaticRegistry struct {
	mu    sync.RWMutex
	tools map[string]*RegisteredTool
	order []string
}

// NewStaticRegistry creates an empty StaticRegistry.
func NewStaticRegistry() *StaticRegistry {
	return &StaticRegistry{tools: make(map[string]*RegisteredTool)}
}

// Register adds or replaces a tool. Registration order is preserved for
// Definitions so the model sees a stable tool list.
func (r *StaticRegistry) Register(def llmrouter.ToolDefinition, tool Tool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.tools[def.Name]; !exists {
		r.order = append(r.order, def.Name)
	}
	r.tools[def.Name] = &RegisteredTool{Definition: def, Tool: tool}
}

// Unregister removes a tool by name.
func (r *StaticRegistry) Unregister(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.tools[name]; !exists {
		return
	}
	delete(r.tools, name)
	for i, n := range r.order {
		if n == name {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
}

// Get returns the tool registered under name.
func (r *StaticRegistry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rt, ok := r.tools[name]
	if !ok {
		return nil, false
	}
	return rt.Tool, true
}

// Definitions returns all tool definitions in registration order.
func (r *StaticRegistry) Definitions() []llmrouter.ToolDefinition {
	r.mu.RLock()
	defer r.mu.RUnlock()
	defs := make([]llmrouter.ToolDefinition, 0, len(r.order))
	for _, name := range r.order {
		defs = append(defs, r.tools[name].Definition)
	}
	return defs
}

// Names returns the registered tool names in registration order.
func (r *StaticRegistry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, len(r.order))
	copy(names, r.order)
	return names
}

// Count returns the number of registered tools.
func (r *StaticRegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tools)
}

// ParseToolArguments unmarshals model-supplied argument text into a map.
func ParseToolArguments(raw json.RawMessage) (map[string]any, error) {
	if len(raw) == 0 {
		return map[string]any{}, nil
	}
	var args map[string]any
	if err := json.Unmarshal(raw, &args); err != nil {
		return nil, fmt.Errorf("invalid tool arguments: %w", err)
	}
	if args == nil {
		args = map[string]any{}
	}
	return args, nil
}

// GetStringArg extracts a string argument from parsed tool arguments.
func GetStringArg(args map[string]any, key string) (string, bool) {
	v, ok := args[key]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// GetIntArg extracts an integer argument from parsed tool arguments.
func GetIntArg(args map[string]any, key string) (int, bool) {
	v, ok := args[key]
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case float64:
		return int(n), true
	case int:
		return n, true
	case json.Number:
		i, err := n.Int64()
		if err != nil {
			return 0, false
		}
		return int(i), true
	default:
		return 0, false
	}
}

// GetBoolArg extracts a boolean argument from parsed tool arguments.
func GetBoolArg(args map[string]any, key string) (bool, bool) {
	v, ok := args[key]
	if !ok {
		return false, false
	}
	b, ok := v.(bool)
	return b, ok
}
