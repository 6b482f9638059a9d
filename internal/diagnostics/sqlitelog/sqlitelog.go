// Package sqlitelog is the Director's optional lifecycle audit log: actor
// registration, start, and stop events recorded to a local SQLite file
// for post-hoc inspection. Queue connections are not recorded. This is diagnostics only —
// it is not a substitute for the in-memory, non-persistent event queues
// the rest of the system relies on, and actor/queue traffic is never
// written here.
//
// Grounded on flowgraph's checkpoint/sqlite.go: restrictive file
// permissions created before sql.Open touches the path, WAL mode, and
// schema-on-open via CREATE TABLE IF NOT EXISTS.
package sqlitelog

import (
	"database/sql"
	"fmt"
	"os"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// Log persists Director lifecycle events to SQLite.
type Log struct {
	db     *sql.DB
	mu     sync.Mutex
	closed bool
}

// Open creates or opens the audit log at path. Use ":memory:" for a
// process-local log that doesn't touch disk.
func Open(path string) (*Log, error) {
	if path != ":memory:" {
		if _, err := os.Stat(path); os.IsNotExist(err) {
			f, createErr := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0600)
			if createErr == nil {
				_ = f.Close()
			}
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("sqlitelog: open: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlitelog: enable WAL mode: %w", err)
	}

	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS director_events (
			id        INTEGER PRIMARY KEY AUTOINCREMENT,
			timestamp TEXT NOT NULL,
			kind      TEXT NOT NULL,
			actor     TEXT NOT NULL,
			detail    TEXT NOT NULL
		)
	`); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlitelog: create table: %w", err)
	}

	if _, err := db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_director_events_kind
		ON director_events(kind)
	`); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlitelog: create index: %w", err)
	}

	if path != ":memory:" {
		_ = os.Chmod(path, 0600)
	}

	return &Log{db: db}, nil
}

// Event is one recorded lifecycle occurrence.
type Event struct {
	Timestamp time.Time
	Kind      string
	Actor     string
	Detail    string
}

// Record appends an event to the log.
func (l *Log) Record(kind, actorName, detail string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return fmt.Errorf("sqlitelog: closed")
	}
	_, err := l.db.Exec(
		`INSERT INTO director_events (timestamp, kind, actor, detail) VALUES (?, ?, ?, ?)`,
		time.Now().UTC().Format(time.RFC3339Nano), kind, actorName, detail,
	)
	if err != nil {
		return fmt.Errorf("sqlitelog: record: %w", err)
	}
	return nil
}

// Recent returns the last limit events, newest last.
func (l *Log) Recent(limit int) ([]Event, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return nil, fmt.Errorf("sqlitelog: closed")
	}
	rows, err := l.db.Query(
		`SELECT timestamp, kind, actor, detail FROM director_events ORDER BY id DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlitelog: query: %w", err)
	}
	defer rows.Close()

	var out []Event
	for rows.Next() {
		var e Event
		var ts string
		if err := rows.Scan(&ts, &e.Kind, &e.Actor, &e.Detail); err != nil {
			return nil, fmt.Errorf("sqlitelog: scan: %w", err)
		}
		e.Timestamp, _ = time.Parse(time.RFC3339Nano, ts)
		out = append([]Event{e}, out...)
	}
	return out, rows.Err()
}

// Close closes the underlying database handle.
func (l *Log) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return nil
	}
	l.closed = true
	return l.db.Close()
}
