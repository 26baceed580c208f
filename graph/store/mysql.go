package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	_ "github.com/go-sql-driver/mysql"
)

// MySQLStore is a MySQL/MariaDB implementation of Store[S].
//
// Designed for production deployments where checkpoint history must survive
// process restarts and be shared across workers. Uses connection pooling;
// rows are addressed by the (thread_id, checkpoint_id) primary key so a
// thread's history is one range scan.
//
// The DSN format is the go-sql-driver one:
//
//	user:password@tcp(localhost:3306)/coach
//
// Credentials belong in the environment, not in source.
//
// Type parameter S is the snapshot type (must be JSON-serializable).
type MySQLStore[S any] struct {
	db     *sql.DB
	mu     sync.RWMutex
	closed bool
	ids    *idSource
}

// NewMySQLStore creates a MySQL-backed checkpoint store and its schema.
func NewMySQLStore[S any](dsn string) (*MySQLStore[S], error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open MySQL connection: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)
	db.SetConnMaxIdleTime(10 * time.Minute)

	ctx := context.Background()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping MySQL: %w", err)
	}

	s := &MySQLStore[S]{db: db, ids: newIDSource()}
	if err := s.createTables(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}
	return s, nil
}

func (m *MySQLStore[S]) createTables(ctx context.Context) error {
	table := `
		CREATE TABLE IF NOT EXISTS checkpoints (
			thread_id VARCHAR(255) NOT NULL,
			checkpoint_id VARCHAR(64) NOT NULL,
			parent_checkpoint_id VARCHAR(64) NOT NULL DEFAULT '',
			state_snapshot JSON NOT NULL,
			step_metadata JSON NOT NULL,
			created_at VARCHAR(40) NOT NULL,
			PRIMARY KEY (thread_id, checkpoint_id)
		) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_unicode_ci
	`
	if _, err := m.db.ExecContext(ctx, table); err != nil {
		return fmt.Errorf("failed to create checkpoints table: %w", err)
	}
	return nil
}

// Put persists a new checkpoint row; rows are insert-only.
func (m *MySQLStore[S]) Put(ctx context.Context, threadID, parentID string, state S, meta StepMetadata) (string, error) {
	if threadID == "" {
		return "", ErrIdentityRequired
	}
	if err := m.ensureOpen(); err != nil {
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

	checkpointID := m.ids.next()
	query := `
		INSERT INTO checkpoints (thread_id, checkpoint_id, parent_checkpoint_id, state_snapshot, step_metadata, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`
	_, err = m.db.ExecContext(ctx, query,
		threadID, checkpointID, parentID, string(stateJSON), string(metaJSON),
		time.Now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return "", fmt.Errorf("failed to put checkpoint: %w", err)
	}
	return checkpointID, nil
}

// GetLatest returns the checkpoint with the greatest id for the thread.
func (m *MySQLStore[S]) GetLatest(ctx context.Context, threadID string) (Checkpoint[S], error) {
	var zero Checkpoint[S]
	if err := m.ensureOpen(); err != nil {
		return zero, err
	}

	query := `
		SELECT thread_id, checkpoint_id, parent_checkpoint_id, state_snapshot, step_metadata, created_at
		FROM checkpoints
		WHERE thread_id = ?
		ORDER BY checkpoint_id DESC
		LIMIT 1
	`
	cp, err := scanCheckpoint[S](m.db.QueryRowContext(ctx, query, threadID).Scan)
	if err == sql.ErrNoRows {
		return zero, ErrNotFound
	}
	return cp, err
}

// Get is a point lookup by (threadID, checkpointID).
func (m *MySQLStore[S]) Get(ctx context.Context, threadID, checkpointID string) (Checkpoint[S], error) {
	var zero Checkpoint[S]
	if err := m.ensureOpen(); err != nil {
		return zero, err
	}

	query := `
		SELECT thread_id, checkpoint_id, parent_checkpoint_id, state_snapshot, step_metadata, created_at
		FROM checkpoints
		WHERE thread_id = ? AND checkpoint_id = ?
	`
	cp, err := scanCheckpoint[S](m.db.QueryRowContext(ctx, query, threadID, checkpointID).Scan)
	if err == sql.ErrNoRows {
		return zero, ErrNotFound
	}
	return cp, err
}

// List returns the thread's checkpoints ordered newest-first.
func (m *MySQLStore[S]) List(ctx context.Context, threadID string) ([]Checkpoint[S], error) {
	if err := m.ensureOpen(); err != nil {
		return nil, err
	}

	query := `
		SELECT thread_id, checkpoint_id, parent_checkpoint_id, state_snapshot, step_metadata, created_at
		FROM checkpoints
		WHERE thread_id = ?
		ORDER BY checkpoint_id DESC
	`
	rows, err := m.db.QueryContext(ctx, query, threadID)
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
func (m *MySQLStore[S]) Clear(ctx context.Context, threadID string) error {
	if err := m.ensureOpen(); err != nil {
		return err
	}

	if threadID == "" {
		if _, err := m.db.ExecContext(ctx, "DELETE FROM checkpoints"); err != nil {
			return fmt.Errorf("failed to clear checkpoints: %w", err)
		}
		return nil
	}
	if _, err := m.db.ExecContext(ctx, "DELETE FROM checkpoints WHERE thread_id = ?", threadID); err != nil {
		return fmt.Errorf("failed to clear thread checkpoints: %w", err)
	}
	return nil
}

func (m *MySQLStore[S]) ensureOpen() error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return fmt.Errorf("store is closed")
	}
	return nil
}

// Close closes the database connection. Double-close is a no-op.
func (m *MySQLStore[S]) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil
	}
	m.closed = true
	return m.db.Close()
}

// Ping verifies the database connection is alive.
func (m *MySQLStore[S]) Ping(ctx context.Context) error {
	if err := m.ensureOpen(); err != nil {
		return err
	}
	return m.db.PingContext(ctx)
}
