// Package eventlog is the append-only sqlite log every accepted event is
// written to before it is acknowledged. Replaying it from the first row
// rebuilds the daemon's state.
package eventlog

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/petekp/claude-hud-sub008/errors"
	"github.com/petekp/claude-hud-sub008/pkg/models"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS events (
	seq         INTEGER PRIMARY KEY AUTOINCREMENT,
	event_id    TEXT    NOT NULL UNIQUE,
	event_type  TEXT    NOT NULL,
	session_id  TEXT    NOT NULL DEFAULT '',
	pid         INTEGER NOT NULL,
	recorded_at INTEGER NOT NULL,
	received_at INTEGER NOT NULL,
	cwd         TEXT    NOT NULL DEFAULT '',
	payload     TEXT
);
CREATE INDEX IF NOT EXISTS idx_events_session ON events(session_id, pid);
`

// Log is an append-only event log.
type Log struct {
	db   *sql.DB
	path string
	now  func() time.Time
}

// Open opens or creates the log at path with WAL journaling and a busy
// timeout, and applies the schema.
func Open(path string) (*Log, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeEventLog, "failed to create event log directory")
		}
	}

	db, err := openDB(path)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeEventLog, "failed to open event log").WithDetail("path", path)
	}
	// A single connection serializes writers and keeps :memory: databases alive.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, errors.ErrCodeEventLog, "failed to apply event log schema")
	}
	return &Log{db: db, path: path, now: time.Now}, nil
}

func openDB(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}

	ctx := context.Background()

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite %s: %w", path, err)
	}

	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set WAL mode on %s: %w", path, err)
	}

	if _, err := db.ExecContext(ctx, "PRAGMA busy_timeout=5000"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set busy_timeout on %s: %w", path, err)
	}

	return db, nil
}

// Path returns the database file path.
func (l *Log) Path() string { return l.path }

// Close closes the database.
func (l *Log) Close() error { return l.db.Close() }

// Append writes e and returns its sequence number. An event_id that is
// already logged is not written again; its original seq is returned with
// inserted=false.
func (l *Log) Append(ctx context.Context, e models.Event) (seq int64, inserted bool, err error) {
	res, err := l.db.ExecContext(ctx, `
		INSERT INTO events (event_id, event_type, session_id, pid, recorded_at, received_at, cwd, payload)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(event_id) DO NOTHING`,
		e.EventID, string(e.Type), e.SessionID, e.PID,
		e.RecordedAt.UnixNano(), l.now().UnixNano(), e.CWD,
		e.Payload,
	)
	if err != nil {
		return 0, false, errors.Wrap(err, errors.ErrCodeEventLog, "failed to append event").
			WithDetail("event_id", e.EventID)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return 0, false, errors.Wrap(err, errors.ErrCodeEventLog, "failed to read append result")
	}
	if n == 1 {
		seq, err = res.LastInsertId()
		if err != nil {
			return 0, false, errors.Wrap(err, errors.ErrCodeEventLog, "failed to read event seq")
		}
		return seq, true, nil
	}

	if err := l.db.QueryRowContext(ctx, `SELECT seq FROM events WHERE event_id = ?`, e.EventID).Scan(&seq); err != nil {
		return 0, false, errors.Wrap(err, errors.ErrCodeEventLog, "failed to look up duplicate event")
	}
	return seq, false, nil
}

// Replay calls fn for every event with seq > after, in seq order. Returning
// an error from fn stops the replay.
func (l *Log) Replay(ctx context.Context, after int64, fn func(seq int64, e models.Event) error) error {
	rows, err := l.db.QueryContext(ctx, `
		SELECT seq, event_id, event_type, session_id, pid, recorded_at, cwd, payload
		FROM events WHERE seq > ? ORDER BY seq`, after)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeEventLog, "failed to query events")
	}
	defer rows.Close()

	for rows.Next() {
		var (
			seq        int64
			e          models.Event
			eventType  string
			recordedAt int64
		)
		if err := rows.Scan(&seq, &e.EventID, &eventType, &e.SessionID, &e.PID, &recordedAt, &e.CWD, &e.Payload); err != nil {
			return errors.Wrap(err, errors.ErrCodeEventLog, "failed to scan event")
		}
		e.Type = models.EventType(eventType)
		e.RecordedAt = time.Unix(0, recordedAt).UTC()

		if err := fn(seq, e); err != nil {
			return err
		}
	}
	if err := rows.Err(); err != nil {
		return errors.Wrap(err, errors.ErrCodeEventLog, "failed to iterate events")
	}
	return nil
}

// LastSeq returns the highest sequence number, or 0 for an empty log.
func (l *Log) LastSeq(ctx context.Context) (int64, error) {
	var seq sql.NullInt64
	if err := l.db.QueryRowContext(ctx, `SELECT MAX(seq) FROM events`).Scan(&seq); err != nil {
		return 0, errors.Wrap(err, errors.ErrCodeEventLog, "failed to read last seq")
	}
	return seq.Int64, nil
}

// Count returns the number of logged events.
func (l *Log) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := l.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM events`).Scan(&n); err != nil {
		return 0, errors.Wrap(err, errors.ErrCodeEventLog, "failed to count events")
	}
	return n, nil
}
