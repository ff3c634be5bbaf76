// Package rank defines the canonical data model for ranked catalog
// snapshots: a single Entry, an immutable dated Snapshot, and the pure
// text/identity helpers used to build both.
//
// Everything in this package is deterministic and free of I/O. The
// acquisition layer (package acquire) produces Entries, this package
// turns them into a validated Snapshot, and package trend compares two
// Snapshots.
package rank

import (
	"fmt"
	"time"
)

// Strategy identifies which acquisition path produced a Snapshot.
type Strategy string

const (
	// StrategyProbe means the structured endpoint probe succeeded.
	StrategyProbe Strategy = "probe"
	// StrategyRender means the rendered-page browser fallback succeeded.
	StrategyRender Strategy = "render"
)

// Entry is one catalog item at one point in time.
//
// OriginalPrice and SalePrice are KRW amounts without minor units; zero
// means "unknown" (the source never lists free items). DiscountPct is
// only non-zero when both prices are known and OriginalPrice > SalePrice.
type Entry struct {
	// Rank is 1-based and assigned by final sequence position within a
	// Snapshot, never taken from rank markers scraped off the page.
	Rank int

	// StableKey identifies "the same product" across independent runs.
	// See ResolveKey.
	StableKey string

	DisplayName string
	RawName     string
	Brand       string

	// URL is absolute, or empty when no link could be extracted.
	URL string

	OriginalPrice int
	SalePrice     int
	DiscountPct   int

	// Flags are promotional badges shown on the card ("sale", "gift", ...).
	Flags []string
	// Rating is the review score text as displayed, or empty.
	Rating string

	CapturedAt time.Time
}

// Snapshot is an ordered, immutable collection of Entries for one
// acquisition date. Within a Snapshot, ranks are exactly 1..N and
// stable keys are pairwise distinct.
type Snapshot struct {
	// Date is the acquisition date, truncated to midnight in the
	// tracker's configured location.
	Date       time.Time
	Strategy   Strategy
	CapturedAt time.Time
	Entries    []Entry
}

// Count returns the number of entries.
func (s *Snapshot) Count() int { return len(s.Entries) }

// NewSnapshot builds a validated Snapshot from extracted entries.
//
// De-duplication by stable key happens BEFORE truncation and rank
// assignment, keeping the first occurrence, so the final rank sequence
// is always contiguous 1..N. Entries with an empty stable key are
// dropped outright.
func NewSnapshot(date time.Time, strategy Strategy, capturedAt time.Time, entries []Entry, maxItems int) *Snapshot {
	if maxItems <= 0 {
		maxItems = 100
	}

	seen := make(map[string]bool, len(entries))
	deduped := make([]Entry, 0, len(entries))
	for _, e := range entries {
		if e.StableKey == "" || seen[e.StableKey] {
			continue
		}
		seen[e.StableKey] = true
		deduped = append(deduped, e)
		if len(deduped) == maxItems {
			break
		}
	}

	for i := range deduped {
		deduped[i].Rank = i + 1
		if deduped[i].CapturedAt.IsZero() {
			deduped[i].CapturedAt = capturedAt
		}
	}

	return &Snapshot{
		Date:       date,
		Strategy:   strategy,
		CapturedAt: capturedAt,
		Entries:    deduped,
	}
}

// Validate checks the Snapshot invariants: ranks exactly 1..N with no
// gaps or duplicates, and pairwise-distinct stable keys.
func (s *Snapshot) Validate() error {
	keys := make(map[string]bool, len(s.Entries))
	for i, e := range s.Entries {
		if e.Rank != i+1 {
			return fmt.Errorf("rank: entry %d has rank %d, want %d", i, e.Rank, i+1)
		}
		if e.StableKey == "" {
			return fmt.Errorf("rank: entry %d has empty stable key", i)
		}
		if keys[e.StableKey] {
			return fmt.Errorf("rank: duplicate stable key %q", e.StableKey)
		}
		keys[e.StableKey] = true
	}
	return nil
}

// KeyRanks returns a stable-key → rank map for the Snapshot.
func (s *Snapshot) KeyRanks() map[string]int {
	m := make(map[string]int, len(s.Entries))
	for _, e := range s.Entries {
		m[e.StableKey] = e.Rank
	}
	return m
}

// Day truncates t to midnight in loc. A nil loc means time.Local.
func Day(t time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.Local
	}
	t = t.In(loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
}
