package thread

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// sqliteTimeLayout is RFC 3339 with fixed-width nanoseconds. RFC3339Nano
// trims trailing zeros, which breaks lexical ORDER BY on the stored text;
// this layout keeps string order equal to time order.
const sqliteTimeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// SQLiteRegistry is a SQLite implementation of Registry.
//
// It is intended to share a database file with the SQLite checkpoint store,
// keeping a whole deployment's durable state in a single file, but works
// against any path.
type SQLiteRegistry struct {
	db     *sql.DB
	mu     sync.RWMutex
	closed bool
	now    func() time.Time // swappable for tests
}

// NewSQLiteRegistry creates a SQLite-backed registry at the given path.
func NewSQLiteRegistry(path string) (*SQLiteRegistry, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite connection: %w", err)
	}

	// SQLite supports one writer at a time.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	ctx := context.Background()
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
	} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to apply %s: %w", pragma, err)
		}
	}

	r := &SQLiteRegistry{db: db, now: time.Now}
	if err := r.createTables(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}
	return r, nil
}

func (r *SQLiteRegistry) createTables(ctx context.Context) error {
	table := `
		CREATE TABLE IF NOT EXISTS threads (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			title TEXT NOT NULL,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL,
			metadata TEXT NOT NULL DEFAULT '{}'
		)
	`
	if _, err := r.db.ExecContext(ctx, table); err != nil {
		return fmt.Errorf("failed to create threads table: %w", err)
	}
	if _, err := r.db.ExecContext(ctx,
		"CREATE INDEX IF NOT EXISTS idx_threads_user ON threads(user_id, updated_at DESC)"); err != nil {
		return fmt.Errorf("failed to create idx_threads_user: %w", err)
	}
	return nil
}

// Create mints a new thread for userID.
func (r *SQLiteRegistry) Create(ctx context.Context, userID, title string, metadata map[string]string) (*Thread, error) {
	if userID == "" {
		return nil, ErrIdentityRequired
	}
	if err := r.ensureOpen(); err != nil {
		return nil, err
	}

	t := newThread(userID, title, metadata, r.now().UTC())
	metaJSON, err := json.Marshal(t.Metadata)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal metadata: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO threads (id, user_id, title, created_at, updated_at, metadata)
		VALUES (?, ?, ?, ?, ?, ?)`,
		t.ID, t.UserID, t.Title,
		t.CreatedAt.Format(sqliteTimeLayout), t.UpdatedAt.Format(sqliteTimeLayout),
		string(metaJSON))
	if err != nil {
		return nil, fmt.Errorf("failed to create thread: %w", err)
	}
	return t, nil
}

// Get returns the thread with the given id, or (nil, nil) when absent.
func (r *SQLiteRegistry) Get(ctx context.Context, id string) (*Thread, error) {
	if err := r.ensureOpen(); err != nil {
		return nil, err
	}

	row := r.db.QueryRowContext(ctx, `
		SELECT id, user_id, title, created_at, updated_at, metadata
		FROM threads WHERE id = ?`, id)
	t, err := scanThread(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return t, err
}

// List returns userID's threads ordered by UpdatedAt descending.
func (r *SQLiteRegistry) List(ctx context.Context, userID string, limit, offset int) ([]*Thread, error) {
	if userID == "" {
		return nil, ErrIdentityRequired
	}
	if err := r.ensureOpen(); err != nil {
		return nil, err
	}

	// SQLite requires a LIMIT clause before OFFSET; -1 means unlimited.
	if limit <= 0 {
		limit = -1
	}
	if offset < 0 {
		offset = 0
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, user_id, title, created_at, updated_at, metadata
		FROM threads
		WHERE user_id = ?
		ORDER BY updated_at DESC, id ASC
		LIMIT ? OFFSET ?`, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list threads: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []*Thread
	for rows.Next() {
		t, err := scanThread(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating thread rows: %w", err)
	}
	return out, nil
}

// Update applies a partial change and refreshes UpdatedAt.
func (r *SQLiteRegistry) Update(ctx context.Context, id string, upd Update) (*Thread, error) {
	if err := r.ensureOpen(); err != nil {
		return nil, err
	}

	current, err := r.Get(ctx, id)
	if err != nil || current == nil {
		return nil, err
	}

	if upd.Title != nil {
		current.Title = *upd.Title
	}
	if upd.Metadata != nil {
		current.Metadata = upd.Metadata
	}
	current.UpdatedAt = r.now().UTC()

	metaJSON, err := json.Marshal(current.Metadata)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal metadata: %w", err)
	}
	_, err = r.db.ExecContext(ctx, `
		UPDATE threads SET title = ?, metadata = ?, updated_at = ? WHERE id = ?`,
		current.Title, string(metaJSON), current.UpdatedAt.Format(sqliteTimeLayout), id)
	if err != nil {
		return nil, fmt.Errorf("failed to update thread: %w", err)
	}
	return current, nil
}

// Touch refreshes UpdatedAt for an existing thread.
func (r *SQLiteRegistry) Touch(ctx context.Context, id string) error {
	if err := r.ensureOpen(); err != nil {
		return err
	}

	_, err := r.db.ExecContext(ctx, `UPDATE threads SET updated_at = ? WHERE id = ?`,
		r.now().UTC().Format(sqliteTimeLayout), id)
	if err != nil {
		return fmt.Errorf("failed to touch thread: %w", err)
	}
	return nil
}

// Delete removes the thread identity, reporting whether it existed.
func (r *SQLiteRegistry) Delete(ctx context.Context, id string) (bool, error) {
	if err := r.ensureOpen(); err != nil {
		return false, err
	}

	res, err := r.db.ExecContext(ctx, `DELETE FROM threads WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("failed to delete thread: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read rows affected: %w", err)
	}
	return n > 0, nil
}

func scanThread(scan func(dest ...any) error) (*Thread, error) {
	var (
		t         Thread
		createdAt string
		updatedAt string
		metaJSON  string
	)
	if err := scan(&t.ID, &t.UserID, &t.Title, &createdAt, &updatedAt, &metaJSON); err != nil {
		return nil, err
	}
	var err error
	if t.CreatedAt, err = time.Parse(sqliteTimeLayout, createdAt); err != nil {
		return nil, fmt.Errorf("failed to parse created_at: %w", err)
	}
	if t.UpdatedAt, err = time.Parse(sqliteTimeLayout, updatedAt); err != nil {
		return nil, fmt.Errorf("failed to parse updated_at: %w", err)
	}
	if err := json.Unmarshal([]byte(metaJSON), &t.Metadata); err != nil {
		return nil, fmt.Errorf("failed to unmarshal metadata: %w", err)
	}
	return &t, nil
}

func (r *SQLiteRegistry) ensureOpen() error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		return fmt.Errorf("registry is closed")
	}
	return nil
}

// Close closes the database connection. Double-close is a no-op.
func (r *SQLiteRegistry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil
	}
	r.closed = true
	return r.db.Close()
}

// Ping verifies the database connection is alive.
func (r *SQLiteRegistry) Ping(ctx context.Context) error {
	if err := r.ensureOpen(); err != nil {
		return err
	}
	return r.db.PingContext(ctx)
}
