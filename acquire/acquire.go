// Package acquire obtains one day's ranked catalog. It escalates through
// two strategies: a cheap structured-endpoint probe, then a rendered
// headless-browser fallback, and only fails when neither yields a viable
// result. Rank positions are assigned here, by final sequence order,
// never from rank-like text scraped off the page.
package acquire

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hazyhaar/rankwatch/rank"
)

// ErrEmptyResult means every strategy came back without a viable entry
// list. Fatal for the run; the caller should keep yesterday's snapshot
// as the latest known state.
var ErrEmptyResult = errors.New("acquire: no strategy produced a viable result")

// ErrRenderTimeout means the rendered page never grew a recognizable
// product list within the wait budget.
var ErrRenderTimeout = errors.New("acquire: rendered page never produced a product list")

// Fetcher is one acquisition strategy. A (nil, nil) return means "no
// result": an expected outcome that triggers escalation, not an error.
type Fetcher interface {
	Fetch(ctx context.Context) ([]rank.Entry, error)
}

// Config tunes the Coordinator.
type Config struct {
	// MinViable is the smallest entry count accepted as a real catalog
	// list. Fewer items means the page was a stub or a block screen.
	MinViable int

	// MaxItems caps the snapshot size.
	MaxItems int

	// Location is the catalog's timezone, used to derive the snapshot
	// date. The upstream chart resets on its local midnight.
	Location *time.Location

	Logger *slog.Logger
}

func (c *Config) defaults() {
	if c.MinViable <= 0 {
		c.MinViable = 5
	}
	if c.MaxItems <= 0 {
		c.MaxItems = 100
	}
	if c.Location == nil {
		if loc, err := time.LoadLocation("Asia/Seoul"); err == nil {
			c.Location = loc
		} else {
			c.Location = time.UTC
		}
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Coordinator runs the strategy escalation and wraps the winner's
// entries into a validated snapshot.
type Coordinator struct {
	cfg      Config
	probe    Fetcher
	fallback Fetcher
}

// NewCoordinator builds a Coordinator. Either fetcher may be nil, which
// disables that strategy.
func NewCoordinator(cfg Config, probe, fallback Fetcher) *Coordinator {
	cfg.defaults()
	return &Coordinator{cfg: cfg, probe: probe, fallback: fallback}
}

// Acquire produces today's snapshot or fails with ErrEmptyResult.
func (c *Coordinator) Acquire(ctx context.Context) (*rank.Snapshot, error) {
	log := c.cfg.Logger
	now := time.Now()

	entries, strategy, err := c.run(ctx)
	if err != nil {
		return nil, err
	}

	snap := rank.NewSnapshot(rank.Day(now, c.cfg.Location), strategy, now, entries, c.cfg.MaxItems)
	if err := snap.Validate(); err != nil {
		return nil, fmt.Errorf("acquire: snapshot invalid: %w", err)
	}
	log.Info("acquire: snapshot complete",
		"strategy", strategy, "entries", snap.Count(), "date", snap.Date.Format("2006-01-02"))
	return snap, nil
}

func (c *Coordinator) run(ctx context.Context) ([]rank.Entry, rank.Strategy, error) {
	log := c.cfg.Logger

	if c.probe != nil {
		entries, err := c.probe.Fetch(ctx)
		switch {
		case err != nil:
			log.Warn("acquire: probe failed, escalating", "error", err)
		case len(entries) >= c.cfg.MinViable:
			return entries, rank.StrategyProbe, nil
		default:
			log.Info("acquire: probe below viability, escalating",
				"entries", len(entries), "minViable", c.cfg.MinViable)
		}
	}

	if c.fallback != nil {
		entries, err := c.fallback.Fetch(ctx)
		switch {
		case err != nil:
			log.Error("acquire: fallback failed", "error", err)
			return nil, "", fmt.Errorf("%w: %w", ErrEmptyResult, err)
		case len(entries) >= c.cfg.MinViable:
			return entries, rank.StrategyRender, nil
		default:
			log.Error("acquire: fallback below viability",
				"entries", len(entries), "minViable", c.cfg.MinViable)
		}
	}

	return nil, "", ErrEmptyResult
}
