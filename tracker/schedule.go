package tracker

import (
	"context"
	"fmt"
	"time"
)

// RunDaily blocks until ctx is cancelled, firing fn once per day at the
// configured local wall-clock time. A failed run does not stop the
// loop; the next day's attempt still happens. Wall-clock scheduling
// (rather than a 24h ticker) keeps the run time stable across restarts
// and DST-free in the catalog's timezone.
func (s *Service) RunDaily(ctx context.Context, at string, loc *time.Location) error {
	hour, minute, err := parseClock(at)
	if err != nil {
		return err
	}
	log := s.logger

	for {
		next := nextOccurrence(time.Now().In(loc), hour, minute)
		log.Info("tracker: next run scheduled", "at", next.Format(time.RFC3339))

		timer := time.NewTimer(time.Until(next))
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}

		if err := s.RunOnce(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			log.Error("tracker: scheduled run failed", "error", err)
		}
	}
}

// parseClock parses "HH:MM".
func parseClock(s string) (hour, minute int, err error) {
	if _, err := fmt.Sscanf(s, "%d:%d", &hour, &minute); err != nil {
		return 0, 0, fmt.Errorf("tracker: run_at %q: want HH:MM", s)
	}
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return 0, 0, fmt.Errorf("tracker: run_at %q out of range", s)
	}
	return hour, minute, nil
}

// nextOccurrence is the next time the clock reads hour:minute in now's
// location, strictly after now.
func nextOccurrence(now time.Time, hour, minute int) time.Time {
	next := time.Date(now.Year(), now.Month(), now.Day(), hour, minute, 0, 0, now.Location())
	if !next.After(now) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}
