package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore is a SQLite implementation of Store[S].
//
// It persists checkpoint chains in a single-file database. Designed for:
//   - Development and testing with zero setup
//   - Single-process deployments
//   - Local workflows requiring durability across restarts
//
// The store enables WAL mode so history reads do not block checkpoint
// writes, and addresses rows by the (thread_id, checkpoint_id) primary key
// so one thread's history is a single range scan.
//
// Type parameter S is the snapshot type (must be JSON-serializable).
type SQLiteStore[S any] struct {
	db     *sql.DB
	mu     sync.RWMutex
	closed bool
	path   string
	ids    *idSource
}

// NewSQLiteStore creates a SQLite-backed checkpoint store.
//
// The path names the database file ("./coach.db", ":memory:", ...). The
// store creates the schema on first use and configures WAL journaling,
// foreign keys, and a 5s busy timeout.
func NewSQLiteStore[S any](path string) (*SQLiteStore[S], error) {
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
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
	} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to apply %s: %w", pragma, err)
		}
	}

	s := &SQLiteStore[S]{
		db:   db,
		path: path,
		ids:  newIDSource(),
	}
	if err := s.createTables(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}
	return s, nil
}

func (s *SQLiteStore[S]) createTables(ctx context.Context) error {
	table := `
		CREATE TABLE IF NOT EXISTS checkpoints (
			thread_id TEXT NOT NULL,
			checkpoint_id TEXT NOT NULL,
			parent_checkpoint_id TEXT NOT NULL DEFAULT '',
			state_snapshot TEXT NOT NULL,
			step_metadata TEXT NOT NULL,
			created_at TIMESTAMP NOT NULL,
			PRIMARY KEY (thread_id, checkpoint_id)
		)
	`
	if _, err := s.db.ExecContext(ctx, table); err != nil {
		return fmt.Errorf("failed to create checkpoints table: %w", err)
	}
	if _, err := s.db.ExecContext(ctx,
		"CREATE INDEX IF NOT EXISTS idx_checkpoints_thread ON checkpoints(thread_id, checkpoint_id DESC)"); err != nil {
		return fmt.Errorf("failed to create idx_checkpoints_thread: %w", err)
	}
	return nil
}

// Put persists a new checkpoint row. Checkpoints are insert-only: the
// primary key makes accidental overwrite of an existing snapshot an error
// rather than a silent mutation.
func (s *SQLiteStore[S]) Put(ctx context.Context, threadID, parentID string, state S, meta StepMetadata) (string, error) {
	if threadID == "" {
		return "", ErrIdentityRequired
	}
	if err := s.ensureOpen(); err != nil {
		return "", err
	}

	stateJSON, err := json.Marshal(state)
	if err != nil {
		return "", fmt.Errorf("failed to marshal state: %w", err)
	}
	metaJSON, err := json.Marshal(meta)
	if err != nil {
		return "", fmt.Errorf("failed to marshal step metadata: %w", err)
	}

	checkpointID := s.ids.next()
	query := `
		INSERT INTO checkpoints (thread_id, checkpoint_id, parent_checkpoint_id, state_snapshot, step_metadata, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`
	_, err = s.db.ExecContext(ctx, query,
		threadID, checkpointID, parentID, string(stateJSON), string(metaJSON),
		time.Now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return "", fmt.Errorf("failed to put checkpoint: %w", err)
	}
	return checkpointID, nil
}

// GetLatest returns the checkpoint with the greatest id for the thread.
func (s *SQLiteStore[S]) GetLatest(ctx context.Context, threadID string) (Checkpoint[S], error) {
	var zero Checkpoint[S]
	if err := s.ensureOpen(); err != nil {
		return zero, err
	}

	query := `
		SELECT thread_id, checkpoint_id, parent_checkpoint_id, state_snapshot, step_metadata, created_at
		FROM checkpoints
		WHERE thread_id = ?
		ORDER BY checkpoint_id DESC
		LIMIT 1
	`
	return s.scanRow(s.db.QueryRowContext(ctx, query, threadID))
}

// Get is a point lookup by (threadID, checkpointID).
func (s *SQLiteStore[S]) Get(ctx context.Context, threadID, checkpointID string) (Checkpoint[S], error) {
	var zero Checkpoint[S]
	if err := s.ensureOpen(); err != nil {
		return zero, err
	}

	query := `
		SELECT thread_id, checkpoint_id, parent_checkpoint_id, state_snapshot, step_metadata, created_at
		FROM checkpoints
		WHERE thread_id = ? AND checkpoint_id = ?
	`
	return s.scanRow(s.db.QueryRowContext(ctx, query, threadID, checkpointID))
}

// List returns the thread's checkpoints ordered newest-first.
func (s *SQLiteStore[S]) List(ctx context.Context, threadID string) ([]Checkpoint[S], error) {
	if err := s.ensureOpen(); err != nil {
		return nil, err
	}

	query := `
		SELECT thread_id, checkpoint_id, parent_checkpoint_id, state_snapshot, step_metadata, created_at
		FROM checkpoints
		WHERE thread_id = ?
		ORDER BY checkpoint_id DESC
	`
	rows, err := s.db.QueryContext(ctx, query, threadID)
	if err != nil {
		return nil, fmt.Errorf("failed to list checkpoints: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []Checkpoint[S]
	for rows.Next() {
		cp, err := scanCheckpoint[S](rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, cp)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating checkpoint rows: %w", err)
	}
	return out, nil
}

// Clear deletes a thread's checkpoints, or the whole table when threadID is empty.
func (s *SQLiteStore[S]) Clear(ctx context.Context, threadID string) error {
	if err := s.ensureOpen(); err != nil {
		return err
	}

	if threadID == "" {
		_, err := s.db.ExecContext(ctx, "DELETE FROM checkpoints")
		if err != nil {
			return fmt.Errorf("failed to clear checkpoints: %w", err)
		}
		return nil
	}
	_, err := s.db.ExecContext(ctx, "DELETE FROM checkpoints WHERE thread_id = ?", threadID)
	if err != nil {
		return fmt.Errorf("failed to clear thread checkpoints: %w", err)
	}
	return nil
}

func (s *SQLiteStore[S]) scanRow(row *sql.Row) (Checkpoint[S], error) {
	cp, err := scanCheckpoint[S](row.Scan)
	if err == sql.ErrNoRows {
		var zero Checkpoint[S]
		return zero, ErrNotFound
	}
	return cp, err
}

// scanCheckpoint decodes one checkpoint row from either *sql.Row or *sql.Rows.
func scanCheckpoint[S any](scan func(dest ...any) error) (Checkpoint[S], error) {
	var (
		cp        Checkpoint[S]
		stateJSON string
		metaJSON  string
		createdAt string
	)
	if err := scan(&cp.ThreadID, &cp.CheckpointID, &cp.ParentCheckpointID, &stateJSON, &metaJSON, &createdAt); err != nil {
		return cp, err
	}
	if err := json.Unmarshal([]byte(stateJSON), &cp.State); err != nil {
		var zero Checkpoint[S]
		return zero, fmt.Errorf("failed to unmarshal state snapshot: %w", err)
	}
	if err := json.Unmarshal([]byte(metaJSON), &cp.Meta); err != nil {
		var zero Checkpoint[S]
		return zero, fmt.Errorf("failed to unmarshal step metadata: %w", err)
	}
	ts, err := time.Parse(time.RFC3339Nano, createdAt)
	if err != nil {
		var zero Checkpoint[S]
		return zero, fmt.Errorf("failed to parse created_at: %w", err)
	}
	cp.CreatedAt = ts
	return cp, nil
}

func (s *SQLiteStore[S]) ensureOpen() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return fmt.Errorf("store is closed")
	}
	return nil
}

// Close closes the database connection. Double-close is a no-op.
func (s *SQLiteStore[S]) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}

// Ping verifies the database connection is alive.
func (s *SQLiteStore[S]) Ping(ctx context.Context) error {
	if err := s.ensureOpen(); err != nil {
		return err
	}
	return s.db.PingContext(ctx)
}

// Path returns the database file path.
func (s *SQLiteStore[S]) Path() string {
	return s.path
}
