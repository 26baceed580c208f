// Package emit carries observability events out of workflow execution.
//
// The engine reports what it is doing (node start/end, checkpoint writes,
// routing decisions, errors) as Events; an Emitter forwards them to a
// backend. Emitters should be thread-safe and must not panic: losing an
// event is always preferable to failing a workflow step.
package emit

// Event is one observability event from a workflow execution.
type Event struct {
	// ThreadID identifies the conversation the event belongs to.
	ThreadID string

	// Step is the 1-indexed step number within the current run.
	// Zero for run-level events (run_start, run_end, run_error).
	Step int

	// NodeID names the node the event concerns. Empty for run-level events.
	NodeID string

	// Msg is the event name, e.g. "node_start", "checkpoint_saved".
	Msg string

	// Meta holds additional structured data. Common keys: "duration_ms",
	// "error", "checkpoint_id", "signal", "next".
	Meta map[string]interface{}
}

// Emitter receives events from workflow execution.
//
// Emit must be safe for concurrent use and must never panic; backend
// failures are handled internally (dropped, buffered, or logged).
type Emitter interface {
	Emit(event Event)
}

// Multi fans an event out to several emitters in order.
type Multi []Emitter

func (m Multi) Emit(event Event) {
	for _, e := range m {
		e.Emit(event)
	}
}

// NullEmitter discards every event. Useful for tests and for disabling
// observability without touching call sites.
type NullEmitter struct{}

func NewNullEmitter() *NullEmitter { return &NullEmitter{} }

func (*NullEmitter) Emit(Event) {}
