package runloop

import (
	"sync"
	"time"
)

// EventKind identifies the type of run event.
type EventKind string

const (
	EventProcessingStarted  EventKind = "processing_started"
	EventIterationStarted   EventKind = "iteration_started"
	EventToolCallStarted    EventKind = "tool_call_started"
	EventToolCallCompleted  EventKind = "tool_call_completed"
	EventToolError          EventKind = "tool_error"
	EventContentChunk       EventKind = "content_chunk"
	EventIterationCompleted EventKind = "iteration_completed"
	EventCompleted          EventKind = "completed"
	EventCancelled          EventKind = "cancelled"
	EventError              EventKind = "error"
)

// Event is one entry in a run's ordered event stream. Within a run the
// sequence is: processing_started once; per iteration, iteration_started,
// tool_call_started/tool_call_completed (or tool_error) pairs, content_chunk
// events, iteration_completed; finally exactly one of completed, cancelled
// or error. A consumer can rebuild the tool-call history and final answer
// from the stream alone.
type Event struct {
	Kind      EventKind      `json:"kind"`
	Timestamp time.Time      `json:"timestamp"`
	RunID     string         `json:"run_id"`
	Data      map[string]any `json:"data,omitempty"`
}

// EventSink receives run events. Implementations must be safe for calls from
// multiple goroutines: parallel tool execution emits from its workers.
type EventSink interface {
	Emit(Event)
}

// SinkFunc adapts a function to the EventSink interface.
type SinkFunc func(Event)

func (f SinkFunc) Emit(e Event) { f(e) }

// EventEmitter is a buffered-channel EventSink for hosts that prefer to
// drain events from a channel rather than register a callback.
type EventEmitter struct {
	ch     chan Event
	closed bool
	mu     sync.Mutex
}

// NewEventEmitter creates an EventEmitter with the given buffer size.
func NewEventEmitter(bufferSize int) *EventEmitter {
	if bufferSize <= 0 {
		bufferSize = 256
	}
	return &EventEmitter{ch: make(chan Event, bufferSize)}
}

// Emit sends an event to the channel. When the buffer is full the event is
// dropped rather than blocking the loop; closed emitters drop silently.
func (e *EventEmitter) Emit(event Event) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return
	}
	select {
	case e.ch <- event:
	default:
	}
}

// Events returns the read-only event channel.
func (e *EventEmitter) Events() <-chan Event {
	return e.ch
}

// Close closes the event channel. Safe to call multiple times.
func (e *EventEmitter) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.closed {
		e.closed = true
		close(e.ch)
	}
}
