// Package history keeps a local log of sync, create and delete outcomes
// in SQLite.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// MaxRows is the number of entries kept after each write.
const MaxRows = 1000

const schema = `
CREATE TABLE IF NOT EXISTS sync_history (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	op          TEXT NOT NULL,
	slug        TEXT NOT NULL DEFAULT '',
	ok          INTEGER NOT NULL,
	kind        TEXT NOT NULL DEFAULT '',
	message     TEXT NOT NULL DEFAULT '',
	duration_ms INTEGER NOT NULL DEFAULT 0,
	timestamp   TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_sync_history_slug ON sync_history(slug);
`

// Entry is one recorded operation.
type Entry struct {
	ID        int64
	Op        string // "sync", "create" or "delete"
	Slug      string
	OK        bool
	Kind      string
	Message   string
	Duration  time.Duration
	Timestamp time.Time
}

// Store wraps the history database.
type Store struct {
	conn    *sql.DB
	maxRows int
}

// Open opens or creates the history database at path.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create history dir: %w", err)
	}

	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open history: %w", err)
	}

	// Enable WAL mode for concurrent reads while writes are serialized
	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}
	if _, err := conn.Exec("PRAGMA busy_timeout=500"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}
	conn.Exec("PRAGMA synchronous=NORMAL")

	if _, err := conn.Exec(schema); err != nil {
		conn.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	return &Store{conn: conn, maxRows: MaxRows}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.conn.Close()
}

// Record inserts e and prunes rows beyond the newest MaxRows.
func (s *Store) Record(ctx context.Context, e Entry) error {
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}

	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO sync_history (op, slug, ok, kind, message, duration_ms, timestamp)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, e.Op, e.Slug, e.OK, e.Kind, e.Message, e.Duration.Milliseconds(), e.Timestamp.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("insert history: %w", err)
	}

	if err := prune(ctx, tx, s.maxRows); err != nil {
		return fmt.Errorf("prune history: %w", err)
	}
	return tx.Commit()
}

// prune deletes rows not in the newest maxRows entries.
func prune(ctx context.Context, tx *sql.Tx, maxRows int) error {
	_, err := tx.ExecContext(ctx, `
		DELETE FROM sync_history WHERE id NOT IN (
			SELECT id FROM sync_history ORDER BY id DESC LIMIT ?
		)
	`, maxRows)
	return err
}

// Tail returns the last limit entries in chronological order (oldest
// first). A non-empty slug restricts the result to that project.
func (s *Store) Tail(ctx context.Context, slug string, limit int) ([]Entry, error) {
	query := `
		SELECT id, op, slug, ok, kind, message, duration_ms, timestamp
		FROM sync_history`
	args := []any{}
	if slug != "" {
		query += ` WHERE slug = ?`
		args = append(args, slug)
	}
	query += ` ORDER BY id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			e  Entry
			ms int64
			ts string
		)
		if err := rows.Scan(&e.ID, &e.Op, &e.Slug, &e.OK, &e.Kind, &e.Message, &ms, &ts); err != nil {
			return nil, err
		}
		e.Duration = time.Duration(ms) * time.Millisecond
		parsed, err := time.Parse(time.RFC3339Nano, ts)
		if err != nil {
			return nil, fmt.Errorf("parse timestamp %q: %w", ts, err)
		}
		e.Timestamp = parsed
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Reverse to chronological order
	for i, j := 0, len(entries)-1; i < j; i, j = i+1, j-1 {
		entries[i], entries[j] = entries[j], entries[i]
	}
	return entries, nil
}

// Count returns the number of stored entries.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	err := s.conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM sync_history`).Scan(&n)
	return n, err
}
