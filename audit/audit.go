// Package audit records session events (aggregation passes, deactivations)
// in a SQLite log for later inspection. Purely diagnostic: a failing audit
// store logs a warning and never blocks or fails the session, and the whole
// package stays out of the data path unless a database is configured.
package audit

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "modernc.org/sqlite"
)

// Event kinds.
const (
	EventPass       = "pass"       // one aggregation pass
	EventDeactivate = "deactivate" // one-way lifecycle shutdown
)

// Logger writes session events to the audit database.
type Logger struct {
	db  *sql.DB
	own bool
}

// Open creates a Logger on a SQLite file, initialising the schema.
func Open(path string) (*Logger, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("audit: open: %w", err)
	}
	l := &Logger{db: db, own: true}
	if err := l.init(); err != nil {
		db.Close()
		return nil, err
	}
	return l, nil
}

// New wraps an existing database handle.
func New(db *sql.DB) (*Logger, error) {
	l := &Logger{db: db}
	if err := l.init(); err != nil {
		return nil, err
	}
	return l, nil
}

func (l *Logger) init() error {
	_, err := l.db.Exec(`
		CREATE TABLE IF NOT EXISTS session_events (
			id          INTEGER PRIMARY KEY AUTOINCREMENT,
			event       TEXT NOT NULL,
			page_url    TEXT NOT NULL,
			sum         TEXT,
			count       INTEGER,
			fields_found INTEGER,
			detail      TEXT,
			created_at  INTEGER NOT NULL
		)`)
	if err != nil {
		return fmt.Errorf("audit: init schema: %w", err)
	}
	return nil
}

// Close closes the database if this Logger opened it.
func (l *Logger) Close() error {
	if l.own {
		return l.db.Close()
	}
	return nil
}

// LogPass records one aggregation pass. Errors are logged, not returned.
func (l *Logger) LogPass(ctx context.Context, pageURL, sum string, count int, fieldsFound bool) {
	_, err := l.db.ExecContext(ctx, `
		INSERT INTO session_events (event, page_url, sum, count, fields_found, created_at)
		VALUES (?,?,?,?,?,?)`,
		EventPass, pageURL, sum, count, boolInt(fieldsFound), time.Now().Unix())
	if err != nil {
		slog.Warn("audit: log pass failed", "error", err)
	}
}

// LogDeactivation records the session shutdown with its reason.
func (l *Logger) LogDeactivation(ctx context.Context, pageURL, reason string) {
	_, err := l.db.ExecContext(ctx, `
		INSERT INTO session_events (event, page_url, detail, created_at)
		VALUES (?,?,?,?)`,
		EventDeactivate, pageURL, reason, time.Now().Unix())
	if err != nil {
		slog.Warn("audit: log deactivation failed", "error", err)
	}
}

// Cleanup deletes events older than the retention window. Zero days means
// keep everything.
func Cleanup(ctx context.Context, db *sql.DB, days int) error {
	if days <= 0 {
		return nil
	}
	cutoff := time.Now().Unix() - int64(days*86400)
	if _, err := db.ExecContext(ctx, `DELETE FROM session_events WHERE created_at < ?`, cutoff); err != nil {
		return fmt.Errorf("audit: cleanup: %w", err)
	}
	return nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
