// Package thread tracks conversation identities independently of their
// checkpoint history. A thread row is the durable handle a client holds
// between sessions: its id keys the checkpoint chain, while the row itself
// carries display metadata (owner, title, timestamps).
//
// Registries deliberately know nothing about checkpoints. Deleting a thread
// removes the identity only; whoever owns the checkpoint store decides
// whether to clear the chain.
package thread

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrIdentityRequired is returned when an operation is missing the user or
// thread id it needs.
var ErrIdentityRequired = errors.New("thread: identity required")

// Thread is one conversation identity.
type Thread struct {
	ID        string            `json:"id"`
	UserID    string            `json:"userId"`
	Title     string            `json:"title"`
	CreatedAt time.Time         `json:"createdAt"`
	UpdatedAt time.Time         `json:"updatedAt"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// Update carries a partial change to a thread. Nil fields are left alone.
type Update struct {
	Title    *string
	Metadata map[string]string // replaces the stored map when non-nil
}

// Registry stores conversation identities.
//
// Lookup misses are not errors: Get returns (nil, nil) and Delete returns
// false for ids the registry has never seen. Errors are reserved for the
// backend failing.
type Registry interface {
	// Create mints a new thread for userID. An empty title is defaulted
	// from the creation date.
	Create(ctx context.Context, userID, title string, metadata map[string]string) (*Thread, error)

	// Get returns the thread with the given id, or (nil, nil) when absent.
	Get(ctx context.Context, id string) (*Thread, error)

	// List returns userID's threads ordered by UpdatedAt descending.
	// limit <= 0 means no limit; offset skips from the top of the order.
	List(ctx context.Context, userID string, limit, offset int) ([]*Thread, error)

	// Update applies a partial change and refreshes UpdatedAt. It returns
	// the stored thread after the change, or (nil, nil) when absent.
	Update(ctx context.Context, id string, upd Update) (*Thread, error)

	// Touch refreshes UpdatedAt, marking the thread as recently active.
	// Touching an absent thread is a no-op.
	Touch(ctx context.Context, id string) error

	// Delete removes the thread identity. It reports whether a thread was
	// actually removed. Checkpoints for the id are left untouched.
	Delete(ctx context.Context, id string) (bool, error)
}

func newThread(userID, title string, metadata map[string]string, now time.Time) *Thread {
	if title == "" {
		title = "Conversation " + now.Format("2006-01-02 15:04")
	}
	var meta map[string]string
	if len(metadata) > 0 {
		meta = make(map[string]string, len(metadata))
		for k, v := range metadata {
			meta[k] = v
		}
	}
	return &Thread{
		ID:        uuid.NewString(),
		UserID:    userID,
		Title:     title,
		CreatedAt: now,
		UpdatedAt: now,
		Metadata:  meta,
	}
}

func cloneThread(t *Thread) *Thread {
	cp := *t
	if t.Metadata != nil {
		cp.Metadata = make(map[string]string, len(t.Metadata))
		for k, v := range t.Metadata {
			cp.Metadata[k] = v
		}
	}
	return &cp
}
