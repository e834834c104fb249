// Package sqlite provides a SQLite implementation of the journal storage.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/webmondiag/webmondiag/internal/journal"
	"github.com/webmondiag/webmondiag/pkg/types"
)

// SQLiteStorage implements journal.Storage using SQLite.
type SQLiteStorage struct {
	db   *sql.DB
	path string
}

var _ journal.Storage = (*SQLiteStorage)(nil)

// New creates a new SQLite storage instance.
func New(path string) (*SQLiteStorage, error) {
	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	return &SQLiteStorage{
		db:   db,
		path: path,
	}, nil
}

// Init initializes the database schema.
func (s *SQLiteStorage) Init(ctx context.Context) error {
	var version int
	err := s.db.QueryRowContext(ctx, "SELECT MAX(version) FROM schema_version").Scan(&version)
	if err != nil {
		// Table doesn't exist, run all migrations
		version = 0
	}

	for i := version; i < len(migrations); i++ {
		if _, err := s.db.ExecContext(ctx, migrations[i]); err != nil {
			return fmt.Errorf("failed to run migration %d: %w", i+1, err)
		}
	}
	return nil
}

// Close closes the database connection.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

// Append stores ev and assigns its ID.
func (s *SQLiteStorage) Append(ctx context.Context, ev *types.Event) error {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO events (session_id, level, text, created_at)
		VALUES (?, ?, ?, ?)
	`, ev.SessionID, string(ev.Level), ev.Text, ev.CreatedAt.UnixNano())
	if err != nil {
		return fmt.Errorf("failed to append event: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to read event id: %w", err)
	}
	ev.ID = id
	return nil
}

// List returns events oldest first.
func (s *SQLiteStorage) List(ctx context.Context, opts journal.ListOptions) ([]*types.Event, error) {
	query := `SELECT id, session_id, level, text, created_at FROM events`
	var args []any
	if opts.SessionID != "" {
		query += ` WHERE session_id = ?`
		args = append(args, opts.SessionID)
	}
	query += ` ORDER BY id DESC`
	if opts.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, opts.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}
	defer rows.Close()

	var events []*types.Event
	for rows.Next() {
		var ev types.Event
		var level string
		var created int64
		if err := rows.Scan(&ev.ID, &ev.SessionID, &level, &ev.Text, &created); err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		ev.Level = types.EventLevel(level)
		ev.CreatedAt = time.Unix(0, created)
		events = append(events, &ev)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Rows come newest first so the limit keeps the tail.
	for i, j := 0, len(events)-1; i < j; i, j = i+1, j-1 {
		events[i], events[j] = events[j], events[i]
	}
	return events, nil
}

// Sessions summarizes every recorded run, newest first.
func (s *SQLiteStorage) Sessions(ctx context.Context) ([]*types.Session, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT session_id,
			COUNT(*),
			SUM(CASE WHEN level = 'error' THEN 1 ELSE 0 END),
			MIN(created_at),
			MAX(created_at)
		FROM events
		GROUP BY session_id
		ORDER BY MIN(id) DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	defer rows.Close()

	var sessions []*types.Session
	for rows.Next() {
		var sess types.Session
		var first, last int64
		if err := rows.Scan(&sess.ID, &sess.Events, &sess.Errors, &first, &last); err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		sess.StartedAt = time.Unix(0, first)
		sess.LastAt = time.Unix(0, last)
		sessions = append(sessions, &sess)
	}
	return sessions, rows.Err()
}
