// Package trend compares two daily rank snapshots and classifies every
// product's movement: risers, fallers, new entrants, dropouts, and an
// overall churn figure for the comparison window.
package trend

import (
	"sort"
	"time"

	"github.com/hazyhaar/rankwatch/rank"
)

// Move is one product's position change between two snapshots.
type Move struct {
	Entry        rank.Entry `json:"entry"`
	PreviousRank int        `json:"previousRank"`
	CurrentRank  int        `json:"currentRank"`
	// Delta is previous minus current: positive means the product moved
	// up the chart.
	Delta int `json:"delta"`
}

// Report is the full differential between two snapshots.
type Report struct {
	Risers      []Move       `json:"risers"`
	Fallers     []Move       `json:"fallers"`
	NewEntrants []rank.Entry `json:"newEntrants"`
	Dropouts    []rank.Entry `json:"dropouts"`
	// ChurnCount is the number of chart positions that changed hands:
	// half the symmetric difference of the two windowed key sets. Two
	// fully disjoint top-100s churn 100.
	ChurnCount int `json:"churnCount"`
	// FirstRun marks a diff against no previous snapshot at all.
	FirstRun bool `json:"firstRun"`
	// GapDays is the calendar distance between the two snapshot dates,
	// zero for consecutive days' worth of data or a first run.
	GapDays int `json:"gapDays"`
}

// Options tune the classification.
type Options struct {
	// Threshold is the minimum |Delta| for a move to be reported as a
	// riser or faller.
	Threshold int
	// Window caps the rank range considered for entrant/dropout/churn
	// classification.
	Window int
}

func (o *Options) applyDefaults() {
	if o.Threshold <= 0 {
		o.Threshold = 10
	}
	if o.Window <= 0 {
		o.Window = 100
	}
}

// Diff compares current against previous. A nil previous snapshot yields
// a FirstRun report with every slice empty. Both snapshots must already
// be valid per rank.Snapshot.Validate; Diff itself never fails.
func Diff(current, previous *rank.Snapshot, opts Options) *Report {
	opts.applyDefaults()

	r := &Report{}
	if previous == nil {
		r.FirstRun = true
		return r
	}
	if !previous.Date.IsZero() && !current.Date.IsZero() {
		if gap := calendarDays(previous.Date, current.Date); gap > 1 {
			r.GapDays = gap
		}
	}

	curRanks := windowedRanks(current, opts.Window)
	prevRanks := windowedRanks(previous, opts.Window)

	for _, e := range current.Entries {
		cur, ok := curRanks[e.StableKey]
		if !ok {
			continue
		}
		prev, existed := prevRanks[e.StableKey]
		if !existed {
			r.NewEntrants = append(r.NewEntrants, e)
			continue
		}
		delta := prev - cur
		if delta >= opts.Threshold {
			r.Risers = append(r.Risers, Move{Entry: e, PreviousRank: prev, CurrentRank: cur, Delta: delta})
		} else if -delta >= opts.Threshold {
			r.Fallers = append(r.Fallers, Move{Entry: e, PreviousRank: prev, CurrentRank: cur, Delta: delta})
		}
	}
	for _, e := range previous.Entries {
		if _, ok := prevRanks[e.StableKey]; !ok {
			continue
		}
		if _, still := curRanks[e.StableKey]; !still {
			r.Dropouts = append(r.Dropouts, e)
		}
	}

	r.ChurnCount = (len(r.NewEntrants) + len(r.Dropouts)) / 2

	// Largest moves first; ties break on current rank so output is stable.
	sort.SliceStable(r.Risers, func(i, j int) bool {
		if r.Risers[i].Delta != r.Risers[j].Delta {
			return r.Risers[i].Delta > r.Risers[j].Delta
		}
		return r.Risers[i].CurrentRank < r.Risers[j].CurrentRank
	})
	sort.SliceStable(r.Fallers, func(i, j int) bool {
		if r.Fallers[i].Delta != r.Fallers[j].Delta {
			return r.Fallers[i].Delta < r.Fallers[j].Delta
		}
		return r.Fallers[i].CurrentRank < r.Fallers[j].CurrentRank
	})
	sort.SliceStable(r.NewEntrants, func(i, j int) bool {
		return r.NewEntrants[i].Rank < r.NewEntrants[j].Rank
	})
	sort.SliceStable(r.Dropouts, func(i, j int) bool {
		return r.Dropouts[i].Rank < r.Dropouts[j].Rank
	})
	return r
}

// Interesting reports whether the diff carries anything worth notifying
// about.
func (r *Report) Interesting() bool {
	return len(r.Risers) > 0 || len(r.Fallers) > 0 ||
		len(r.NewEntrants) > 0 || len(r.Dropouts) > 0
}

// calendarDays counts whole calendar days from a to b, each date read in
// its own location. Snapshot dates do not all carry the same zone (the
// store decodes archived dates in UTC while fresh snapshots carry the
// catalog's zone), so wall-clock subtraction would be off by the offset.
func calendarDays(a, b time.Time) int {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	au := time.Date(ay, am, ad, 0, 0, 0, 0, time.UTC)
	bu := time.Date(by, bm, bd, 0, 0, 0, 0, time.UTC)
	return int(bu.Sub(au).Hours() / 24)
}

func windowedRanks(s *rank.Snapshot, window int) map[string]int {
	out := make(map[string]int, len(s.Entries))
	for _, e := range s.Entries {
		if e.Rank > window {
			continue
		}
		out[e.StableKey] = e.Rank
	}
	return out
}
