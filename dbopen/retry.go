package dbopen

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"
)

// Linear backoff: attempt n waits n*busyBackoff before trying again.
const (
	busyAttempts = 3
	busyBackoff  = 100 * time.Millisecond
)

// IsBusy reports whether err is an SQLite lock contention error. The
// driver surfaces these as message text, not typed errors, so this
// matches the known SQLITE_BUSY and lock message forms.
func IsBusy(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	for _, marker := range []string{
		"SQLITE_BUSY",
		"database is locked",
		"database table is locked",
	} {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}

// retryBusy runs op, retrying lock contention with linear backoff.
// Non-busy errors pass through unwrapped so callers can errors.Is
// against their own sentinels.
func retryBusy(ctx context.Context, label string, op func() error) error {
	var err error
	for attempt := 1; attempt <= busyAttempts; attempt++ {
		err = op()
		if err == nil || !IsBusy(err) {
			return err
		}
		if attempt == busyAttempts {
			break
		}
		if werr := sleepCtx(ctx, time.Duration(attempt)*busyBackoff); werr != nil {
			return fmt.Errorf("dbopen: %s: cancelled while waiting for lock: %w", label, werr)
		}
	}
	return fmt.Errorf("dbopen: %s: still locked after %d attempts: %w", label, busyAttempts, err)
}

// RunTx runs fn inside a transaction, committing on success and rolling
// back on error. Lock contention restarts the whole transaction.
func RunTx(ctx context.Context, db *sql.DB, fn func(*sql.Tx) error) error {
	return retryBusy(ctx, "tx", func() error {
		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("dbopen: begin tx: %w", err)
		}
		if err := fn(tx); err != nil {
			tx.Rollback()
			return err
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("dbopen: commit: %w", err)
		}
		return nil
	})
}

// Exec runs a single statement, retrying lock contention.
func Exec(ctx context.Context, db *sql.DB, query string, args ...any) (sql.Result, error) {
	var result sql.Result
	err := retryBusy(ctx, "exec", func() error {
		var err error
		result, err = db.ExecContext(ctx, query, args...)
		return err
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
