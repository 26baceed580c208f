package thread

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemRegistry is an in-memory Registry for tests and single-process runs.
// It is safe for concurrent use.
type MemRegistry struct {
	mu      sync.RWMutex
	threads map[string]*Thread
	now     func() time.Time // swappable for tests
}

// NewMemRegistry creates an empty in-memory registry.
func NewMemRegistry() *MemRegistry {
	return &MemRegistry{
		threads: make(map[string]*Thread),
		now:     time.Now,
	}
}

// Create mints a new thread for userID.
func (r *MemRegistry) Create(_ context.Context, userID, title string, metadata map[string]string) (*Thread, error) {
	if userID == "" {
		return nil, ErrIdentityRequired
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	t := newThread(userID, title, metadata, r.now().UTC())
	r.threads[t.ID] = t
	return cloneThread(t), nil
}

// Get returns the thread with the given id, or (nil, nil) when absent.
func (r *MemRegistry) Get(_ context.Context, id string) (*Thread, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	t, ok := r.threads[id]
	if !ok {
		return nil, nil
	}
	return cloneThread(t), nil
}

// List returns userID's threads ordered by UpdatedAt descending.
func (r *MemRegistry) List(_ context.Context, userID string, limit, offset int) ([]*Thread, error) {
	if userID == "" {
		return nil, ErrIdentityRequired
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*Thread
	for _, t := range r.threads {
		if t.UserID == userID {
			out = append(out, cloneThread(t))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].UpdatedAt.Equal(out[j].UpdatedAt) {
			return out[i].UpdatedAt.After(out[j].UpdatedAt)
		}
		return out[i].ID < out[j].ID // stable order for equal timestamps
	})

	if offset > 0 {
		if offset >= len(out) {
			return nil, nil
		}
		out = out[offset:]
	}
	if limit > 0 && limit < len(out) {
		out = out[:limit]
	}
	return out, nil
}

// Update applies a partial change and refreshes UpdatedAt.
func (r *MemRegistry) Update(_ context.Context, id string, upd Update) (*Thread, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.threads[id]
	if !ok {
		return nil, nil
	}
	if upd.Title != nil {
		t.Title = *upd.Title
	}
	if upd.Metadata != nil {
		t.Metadata = make(map[string]string, len(upd.Metadata))
		for k, v := range upd.Metadata {
			t.Metadata[k] = v
		}
	}
	t.UpdatedAt = r.now().UTC()
	return cloneThread(t), nil
}

// Touch refreshes UpdatedAt for an existing thread.
func (r *MemRegistry) Touch(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if t, ok := r.threads[id]; ok {
		t.UpdatedAt = r.now().UTC()
	}
	return nil
}

// Delete removes the thread identity, reporting whether it existed.
func (r *MemRegistry) Delete(_ context.Context, id string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.threads[id]; !ok {
		return false, nil
	}
	delete(r.threads, id)
	return true, nil
}
