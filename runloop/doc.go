// Package runloop implements the agent execution loop: a model converses
// with tools in reason-act-observe iterations until it produces a final
// answer, hits the iteration cap, is cancelled, or errors.
//
// # Components
//
//   - Runner: the loop state machine. One Run call owns its conversation
//     state exclusively; many runs may share one Runner and Manager.
//   - Dispatcher: executes a model turn's tool calls, sequentially or in
//     parallel, each inside its own failure boundary.
//   - ToolRegistry: caller-supplied tools (StaticRegistry for in-process
//     registration).
//   - EventEmitter / EventSink: the ordered lifecycle event stream.
//
// # Quick Start
//
//	registry := runloop.NewStaticRegistry()
//	registry.Register(llmrouter.ToolDefinition{
//	    Name:        "add",
//	    Description: "Add two numbers",
//	    Parameters:  map[string]any{"type": "object", "properties": map[string]any{
//	        "a": map[string]any{"type": "number"},
//	        "b": map[string]any{"type": "number"},
//	    }},
//	}, runloop.ToolFunc(addTool))
//
//	runner, _ := runloop.NewRunner(mgr, registry)
//	result, _ := runner.Run(ctx, "add 2 and 3", nil, runloop.RunOptions{})
//
// result.Status reports how the run ended; max_iterations and cancelled are
// normal terminal statuses, not errors.
package runloop
