package graph

import "errors"

// ErrIdentityRequired indicates an operation was called without the thread
// id it needs. Thread identity is the durability key; there is no anonymous
// execution.
var ErrIdentityRequired = errors.New("graph: thread id required")

// ErrMaxStepsExceeded indicates a run hit the configured step ceiling
// without reaching a terminal signal. This bounds routing loops.
var ErrMaxStepsExceeded = errors.New("graph: execution exceeded maximum steps limit")

// EngineError is a structured error from engine configuration or
// orchestration. Node-level failures never surface here; nodes report
// failures through the state itself.
type EngineError struct {
	Message string
	Code    string
}

func (e *EngineError) Error() string {
	if e.Code != "" {
		return e.Code + ": " + e.Message
	}
	return e.Message
}
