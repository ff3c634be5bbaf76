// Package snapstore persists daily rank snapshots. The canonical format
// is one CSV file per day, named by the snapshot date, which keeps the
// archive greppable and diffable without any tooling. An XLSX rendering
// of the same data is produced on the side for humans.
package snapstore

import (
	"context"
	"errors"
	"time"

	"github.com/hazyhaar/rankwatch/rank"
)

// ErrNotFound means no snapshot exists for the requested date.
var ErrNotFound = errors.New("snapstore: snapshot not found")

// Store reads and writes dated snapshots.
type Store interface {
	// Write persists the snapshot under its Date, replacing any earlier
	// snapshot for the same day.
	Write(ctx context.Context, snap *rank.Snapshot) error

	// Read returns the snapshot for exactly the given date, or
	// ErrNotFound.
	Read(ctx context.Context, date time.Time) (*rank.Snapshot, error)

	// ReadLatestBefore returns the most recent snapshot strictly before
	// the given date, or ErrNotFound. The returned snapshot's Date says
	// which day actually matched, so callers can report comparison gaps.
	ReadLatestBefore(ctx context.Context, date time.Time) (*rank.Snapshot, error)
}
