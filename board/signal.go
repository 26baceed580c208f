package board

import "strings"

// Signal is the enumerated routing value a node sets to tell the engine
// which node (or terminal outcome) comes next.
//
// Valid values are "route-to-<node>" for each registered node, plus the
// terminal values "done" and "error". Anything else falls back to the
// router node when routed (see the engine's route function).
type Signal string

const (
	// SignalNone is the zero value; routing treats it as "consult the router".
	SignalNone Signal = ""

	// SignalDone terminates the execution loop normally.
	SignalDone Signal = "done"

	// SignalError terminates the execution loop after a node-level failure.
	// The failure is recorded in the conversation history, not raised.
	SignalError Signal = "error"
)

const routePrefix = "route-to-"

// RouteTo builds the signal that routes execution to the named node.
func RouteTo(node string) Signal {
	return Signal(routePrefix + node)
}

// Terminal reports whether the signal stops the execution loop.
func (s Signal) Terminal() bool {
	return s == SignalDone || s == SignalError
}

// Target returns the node name a route-to signal points at.
// The second return is false for terminal, empty, or malformed signals.
func (s Signal) Target() (string, bool) {
	name, ok := strings.CutPrefix(string(s), routePrefix)
	if !ok || name == "" {
		return "", false
	}
	return name, true
}
