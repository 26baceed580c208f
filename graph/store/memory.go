package store

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemStore is an in-memory implementation of Store[S].
//
// Designed for tests and short-lived single-process workflows; data is lost
// when the process terminates. Thread-safe for concurrent access.
type MemStore[S any] struct {
	mu     sync.RWMutex
	chains map[string][]Checkpoint[S] // threadID -> checkpoints in put order
	ids    *idSource
}

// NewMemStore creates a new in-memory checkpoint store.
func NewMemStore[S any]() *MemStore[S] {
	return &MemStore[S]{
		chains: make(map[string][]Checkpoint[S]),
		ids:    newIDSource(),
	}
}

// Put appends a new checkpoint to the thread's chain.
func (m *MemStore[S]) Put(_ context.Context, threadID, parentID string, state S, meta StepMetadata) (string, error) {
	if threadID == "" {
		return "", ErrIdentityRequired
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	cp := Checkpoint[S]{
		ThreadID:           threadID,
		CheckpointID:       m.ids.next(),
		ParentCheckpointID: parentID,
		State:              state,
		Meta:               meta,
		CreatedAt:          time.Now().UTC(),
	}
	m.chains[threadID] = append(m.chains[threadID], cp)
	return cp.CheckpointID, nil
}

// GetLatest returns the checkpoint with the greatest id for the thread.
func (m *MemStore[S]) GetLatest(_ context.Context, threadID string) (Checkpoint[S], error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	chain := m.chains[threadID]
	if len(chain) == 0 {
		var zero Checkpoint[S]
		return zero, ErrNotFound
	}

	// Ids are issued in increasing order, but compare anyway: the store's
	// contract is "greatest id", not "last appended".
	latest := chain[0]
	for _, cp := range chain[1:] {
		if cp.CheckpointID > latest.CheckpointID {
			latest = cp
		}
	}
	return latest, nil
}

// Get is a point lookup by (threadID, checkpointID).
func (m *MemStore[S]) Get(_ context.Context, threadID, checkpointID string) (Checkpoint[S], error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, cp := range m.chains[threadID] {
		if cp.CheckpointID == checkpointID {
			return cp, nil
		}
	}
	var zero Checkpoint[S]
	return zero, ErrNotFound
}

// List returns the thread's checkpoints ordered newest-first.
func (m *MemStore[S]) List(_ context.Context, threadID string) ([]Checkpoint[S], error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	chain := m.chains[threadID]
	out := make([]Checkpoint[S], len(chain))
	copy(out, chain)
	sort.Slice(out, func(i, j int) bool {
		return out[i].CheckpointID > out[j].CheckpointID
	})
	return out, nil
}

// Clear deletes a thread's checkpoints, or everything when threadID is empty.
func (m *MemStore[S]) Clear(_ context.Context, threadID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if threadID == "" {
		m.chains = make(map[string][]Checkpoint[S])
		return nil
	}
	delete(m.chains, threadID)
	return nil
}
