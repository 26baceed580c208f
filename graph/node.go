// Package graph provides the durable workflow engine that drives coaching
// conversations: a registry of nodes, hub-and-spoke routing on structured
// signals, reducer-based state merging, and a checkpoint written after
// every step.
package graph

import (
	"context"

	"github.com/careerpath/blackboard-go/board"
)

// Node is one processing step in the workflow.
//
// A node reads the shared state and returns a Patch describing what it
// wants changed, including the routing signal for the next hop. Nodes never
// return errors: a node that fails internally (provider outage, timeout,
// bad data) reports it BY PATCH, typically an assistant-facing apology plus
// board.SignalError. A panic in a node is a bug, not a control path.
type Node interface {
	// Name is the unique id the node registers under and routes by.
	Name() string

	// Execute runs the step against a snapshot of the state. The returned
	// patch is merged by the engine; the snapshot itself is never mutated.
	Execute(ctx context.Context, state board.State) board.Patch
}

// NodeFunc adapts a named function to the Node interface.
type NodeFunc struct {
	ID string
	Fn func(ctx context.Context, state board.State) board.Patch
}

func (n NodeFunc) Name() string { return n.ID }

func (n NodeFunc) Execute(ctx context.Context, state board.State) board.Patch {
	return n.Fn(ctx, state)
}
