// Package history keeps a cross-run record of accepted actions. When
// enabled, the most recent entries are rendered into the extraction
// prompt's {history_actions} placeholder so the model sees what the
// operator already asked for. Disabled by default; the placeholder then
// renders empty.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"concierge/internal/logging"

	_ "modernc.org/sqlite"
)

// Entry is one accepted action.
type Entry struct {
	RunID      string
	ActionID   string
	ActionType string
	WorkerType string
	Details    string
	AcceptedAt time.Time
}

// Store is the sqlite-backed history store.
type Store struct {
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS accepted_actions (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id TEXT NOT NULL,
	action_id TEXT NOT NULL,
	action_type TEXT NOT NULL DEFAULT '',
	worker_type TEXT NOT NULL DEFAULT '',
	details TEXT NOT NULL DEFAULT '',
	accepted_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_accepted_at ON accepted_actions(accepted_at DESC);
`

// Open opens (or creates) the history database at path.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create history directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open history db %s: %w", path, err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize history schema: %w", err)
	}

	logging.Get(logging.CategoryStore).Info("history store opened at %s", path)
	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Record stores one accepted action.
func (s *Store) Record(ctx context.Context, e Entry) error {
	if e.AcceptedAt.IsZero() {
		e.AcceptedAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO accepted_actions (run_id, action_id, action_type, worker_type, details, accepted_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		e.RunID, e.ActionID, e.ActionType, e.WorkerType, e.Details, e.AcceptedAt.Unix())
	if err != nil {
		return fmt.Errorf("failed to record history entry: %w", err)
	}
	return nil
}

// Recent returns the newest entries, most recent first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		return nil, nil
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT run_id, action_id, action_type, worker_type, details, accepted_at
		 FROM accepted_actions ORDER BY accepted_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var ts int64
		if err := rows.Scan(&e.RunID, &e.ActionID, &e.ActionType, &e.WorkerType, &e.Details, &ts); err != nil {
			return nil, fmt.Errorf("failed to scan history row: %w", err)
		}
		e.AcceptedAt = time.Unix(ts, 0)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// FormatForPrompt renders entries as plain lines for the
// {history_actions} placeholder.
func FormatForPrompt(entries []Entry) string {
	if len(entries) == 0 {
		return ""
	}
	var b strings.Builder
	for _, e := range entries {
		fmt.Fprintf(&b, "- [%s] %s: %s\n", e.AcceptedAt.Format("2006-01-02"), e.ActionType, e.Details)
	}
	return b.String()
}
