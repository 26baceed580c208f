// Package store provides append-only persistence of blackboard snapshots,
// keyed by conversation identity and logical time, with parent-chain linkage
// for history and branching.
package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a requested thread or checkpoint does not exist.
var ErrNotFound = errors.New("not found")

// ErrIdentityRequired is returned by Put when the thread id is empty.
// Writes are never attributed to a guessed thread.
var ErrIdentityRequired = errors.New("thread id is required")

// StepMetadata annotates the step that produced a checkpoint.
type StepMetadata struct {
	// Step is the 1-indexed sequence number within one invocation.
	Step int `json:"step"`

	// Source records what wrote the checkpoint: "loop" for node
	// executions, "update" for out-of-band state corrections,
	// "fork" for time-travel branches.
	Source string `json:"source"`

	// Node is the node that produced this snapshot, when Source is "loop".
	Node string `json:"node,omitempty"`
}

// Checkpoint is an immutable snapshot of blackboard state at one point in a
// thread's history. Checkpoints are write-once: they are never mutated or
// deleted individually (bulk Clear is permitted for test isolation).
//
// Checkpoints of one thread form a parent-linked chain. The parent pointer
// may reference any prior checkpoint of the same thread, not necessarily the
// most recent one, so branching histories are representable even though the
// engine appends linearly.
//
// Type parameter S is the snapshot type (must be JSON-serializable).
type Checkpoint[S any] struct {
	ThreadID     string `json:"threadId"`
	CheckpointID string `json:"checkpointId"`

	// ParentCheckpointID is empty only for the first checkpoint of a thread.
	ParentCheckpointID string `json:"parentCheckpointId,omitempty"`

	State S `json:"stateSnapshot"`

	Meta StepMetadata `json:"stepMetadata"`

	CreatedAt time.Time `json:"createdAt"`
}

// Store persists checkpoints per thread.
//
// Implementations must keep checkpoint ids strictly ordered per thread under
// lexical comparison, so GetLatest and List can be expressed as range scans
// over (threadID, checkpointID). Persistence failures propagate to the
// caller uncaught; there is no retry at this layer.
//
// Backends provided: Memory (tests), SQLite, MySQL, Redis.
type Store[S any] interface {
	// Put assigns a new checkpoint id that sorts after all prior ids for
	// the thread, persists the snapshot, and returns the id. Returns
	// ErrIdentityRequired if threadID is empty. The parent id is stored
	// verbatim; an empty parent marks the first checkpoint of a thread.
	Put(ctx context.Context, threadID, parentID string, state S, meta StepMetadata) (string, error)

	// GetLatest returns the checkpoint with the greatest id for the
	// thread, or ErrNotFound if the thread has none.
	GetLatest(ctx context.Context, threadID string) (Checkpoint[S], error)

	// Get is a point lookup by (threadID, checkpointID).
	Get(ctx context.Context, threadID, checkpointID string) (Checkpoint[S], error)

	// List returns the thread's checkpoints ordered newest-first. Results
	// are read from persisted rows on every call, so repeated calls
	// without intervening writes return identical sequences.
	List(ctx context.Context, threadID string) ([]Checkpoint[S], error)

	// Clear bulk-deletes the thread's checkpoints, or every checkpoint
	// when threadID is empty. For test isolation and resets only.
	Clear(ctx context.Context, threadID string) error
}
