// Package runlog keeps an operational history of acquisition runs in
// SQLite: when each run happened, which strategy won, how many entries
// it produced, and what went wrong. One row per run; the snapshot data
// itself lives in the snapshot store.
package runlog

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/hazyhaar/rankwatch/dbopen"
)

// Schema for the runs table. Applied by New via dbopen.WithSchema or
// manually by the caller.
const Schema = `
CREATE TABLE IF NOT EXISTS runs (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	date TEXT NOT NULL,
	strategy TEXT NOT NULL,
	entry_count INTEGER NOT NULL,
	duration_ms INTEGER NOT NULL,
	error TEXT NOT NULL DEFAULT '',
	created_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_runs_date ON runs(date);
`

// Run is one acquisition run's outcome.
type Run struct {
	ID         int64     `json:"id"`
	Date       string    `json:"date"`
	Strategy   string    `json:"strategy"`
	EntryCount int       `json:"entryCount"`
	Duration   int64     `json:"durationMs"`
	Error      string    `json:"error,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
}

// Log records runs in a SQLite table.
type Log struct {
	db *sql.DB
}

// New wraps an already opened database. The schema must have been
// applied (dbopen.WithSchema(runlog.Schema) does it at open time).
func New(db *sql.DB) *Log {
	return &Log{db: db}
}

// Open opens (or creates) the run log database at path.
func Open(path string) (*Log, *sql.DB, error) {
	db, err := dbopen.Open(path, dbopen.WithMkdirAll(), dbopen.WithSchema(Schema))
	if err != nil {
		return nil, nil, fmt.Errorf("runlog: %w", err)
	}
	return New(db), db, nil
}

// Record inserts one run row. Failures here are reported but must not
// fail the acquisition itself; callers log and continue.
func (l *Log) Record(ctx context.Context, r Run) error {
	created := r.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}
	_, err := dbopen.Exec(ctx, l.db,
		`INSERT INTO runs (date, strategy, entry_count, duration_ms, error, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		r.Date, r.Strategy, r.EntryCount, r.Duration, r.Error, created.UnixMilli())
	if err != nil {
		return fmt.Errorf("runlog: record: %w", err)
	}
	return nil
}

// Recent returns the latest runs, newest first.
func (l *Log) Recent(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := l.db.QueryContext(ctx,
		`SELECT id, date, strategy, entry_count, duration_ms, error, created_at
		 FROM runs ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("runlog: recent: %w", err)
	}
	defer rows.Close()

	var out []Run
	for rows.Next() {
		var r Run
		var created int64
		if err := rows.Scan(&r.ID, &r.Date, &r.Strategy, &r.EntryCount, &r.Duration, &r.Error, &created); err != nil {
			return nil, fmt.Errorf("runlog: scan: %w", err)
		}
		r.CreatedAt = time.UnixMilli(created)
		out = append(out, r)
	}
	return out, rows.Err()
}

// Trim deletes all but the newest keep rows. The count and the delete
// run in one transaction so a concurrent Record cannot slip a row in
// between and get reaped immediately.
func (l *Log) Trim(ctx context.Context, keep int) error {
	if keep <= 0 {
		keep = 500
	}
	err := dbopen.RunTx(ctx, l.db, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx,
			`DELETE FROM runs WHERE id NOT IN (SELECT id FROM runs ORDER BY id DESC LIMIT ?)`, keep)
		return err
	})
	if err != nil {
		return fmt.Errorf("runlog: trim: %w", err)
	}
	return nil
}

// LastSuccess returns the most recent run that produced entries without
// an error, or nil when none exists yet.
func (l *Log) LastSuccess(ctx context.Context) (*Run, error) {
	row := l.db.QueryRowContext(ctx,
		`SELECT id, date, strategy, entry_count, duration_ms, error, created_at
		 FROM runs WHERE error = '' AND entry_count > 0 ORDER BY id DESC LIMIT 1`)
	var r Run
	var created int64
	err := row.Scan(&r.ID, &r.Date, &r.Strategy, &r.EntryCount, &r.Duration, &r.Error, &created)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("runlog: last success: %w", err)
	}
	r.CreatedAt = time.UnixMilli(created)
	return &r, nil
}
