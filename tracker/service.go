package tracker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/hazyhaar/rankwatch/artifact"
	"github.com/hazyhaar/rankwatch/notify"
	"github.com/hazyhaar/rankwatch/rank"
	"github.com/hazyhaar/rankwatch/runlog"
	"github.com/hazyhaar/rankwatch/snapstore"
	"github.com/hazyhaar/rankwatch/trend"
)

// Acquirer produces one day's snapshot. Satisfied by acquire.Coordinator.
type Acquirer interface {
	Acquire(ctx context.Context) (*rank.Snapshot, error)
}

// Filer exposes the on-disk location of a stored snapshot, used for the
// spreadsheet export and uploads. Satisfied by snapstore.FS.
type Filer interface {
	Path(date time.Time) string
}

// Service runs the daily pipeline. Persistence failures are fatal for
// the run; notification and upload failures are logged and swallowed,
// because the local snapshot archive is the system of record.
type Service struct {
	cfg      *Config
	acquirer Acquirer
	store    snapstore.Store
	filer    Filer
	runs     *runlog.Log
	sink     notify.Sink
	uploader artifact.Uploader
	logger   *slog.Logger

	mu         sync.Mutex
	lastSnap   *rank.Snapshot
	lastReport *trend.Report
}

// NewService wires a Service. filer, runs, sink and uploader may each
// be nil, disabling the corresponding side effect.
func NewService(cfg *Config, acquirer Acquirer, store snapstore.Store, filer Filer,
	runs *runlog.Log, sink notify.Sink, uploader artifact.Uploader, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if sink == nil {
		sink = notify.Discard{Logger: logger}
	}
	return &Service{
		cfg: cfg, acquirer: acquirer, store: store, filer: filer,
		runs: runs, sink: sink, uploader: uploader, logger: logger,
	}
}

// RunOnce executes one full pipeline pass.
func (s *Service) RunOnce(ctx context.Context) error {
	log := s.logger
	start := time.Now()

	snap, err := s.acquirer.Acquire(ctx)
	if err != nil {
		s.recordRun(ctx, runlog.Run{
			Date:     start.Format("2006-01-02"),
			Strategy: "none",
			Duration: time.Since(start).Milliseconds(),
			Error:    err.Error(),
		})
		s.deliver(ctx, notify.FormatFailure(start.Format("2006-01-02"), err, s.lastGoodDate(ctx)))
		return fmt.Errorf("tracker: acquisition failed: %w", err)
	}

	previous, err := s.store.ReadLatestBefore(ctx, snap.Date)
	if err != nil {
		if !errors.Is(err, snapstore.ErrNotFound) {
			// A corrupt archive should not lose today's data; diff as a
			// first run and keep going.
			log.Error("tracker: previous snapshot unreadable", "error", err)
		}
		previous = nil
	}

	report := trend.Diff(snap, previous, trend.Options{
		Threshold: s.cfg.Trend.Threshold,
		Window:    s.cfg.Trend.Window,
	})

	if err := s.store.Write(ctx, snap); err != nil {
		s.recordRun(ctx, runlog.Run{
			Date:       snap.Date.Format("2006-01-02"),
			Strategy:   string(snap.Strategy),
			EntryCount: snap.Count(),
			Duration:   time.Since(start).Milliseconds(),
			Error:      err.Error(),
		})
		return fmt.Errorf("tracker: persist snapshot: %w", err)
	}

	s.export(ctx, snap)
	s.deliver(ctx, notify.FormatReport(snap, report))
	s.recordRun(ctx, runlog.Run{
		Date:       snap.Date.Format("2006-01-02"),
		Strategy:   string(snap.Strategy),
		EntryCount: snap.Count(),
		Duration:   time.Since(start).Milliseconds(),
	})

	s.mu.Lock()
	s.lastSnap = snap
	s.lastReport = report
	s.mu.Unlock()

	log.Info("tracker: run complete",
		"date", snap.Date.Format("2006-01-02"),
		"entries", snap.Count(),
		"strategy", snap.Strategy,
		"churn", report.ChurnCount,
		"took", time.Since(start).Round(time.Millisecond))
	return nil
}

// Latest returns the most recent in-process snapshot and report. Both
// are nil until the first successful run.
func (s *Service) Latest() (*rank.Snapshot, *trend.Report) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSnap, s.lastReport
}

// export renders the spreadsheet and ships both files. Best effort.
func (s *Service) export(ctx context.Context, snap *rank.Snapshot) {
	if s.filer == nil {
		return
	}
	csvPath := s.filer.Path(snap.Date)

	var xlsxPath string
	if !s.cfg.DisableXLSX {
		xlsxPath = strings.TrimSuffix(csvPath, ".csv") + ".xlsx"
		if err := snapstore.WriteXLSX(xlsxPath, snap); err != nil {
			s.logger.Warn("tracker: xlsx export failed", "error", err)
			xlsxPath = ""
		}
	}

	if s.uploader == nil {
		return
	}
	for _, p := range []string{csvPath, xlsxPath} {
		if p == "" {
			continue
		}
		name := filepath.Base(p)
		if err := s.uploader.Upload(ctx, p, name); err != nil {
			s.logger.Warn("tracker: upload failed", "name", name, "error", err)
		}
	}
}

func (s *Service) deliver(ctx context.Context, text string) {
	if err := s.sink.Send(ctx, text); err != nil {
		s.logger.Warn("tracker: notification failed", "error", err)
	}
}

// runHistoryKeep bounds the run log at roughly a year of daily runs.
const runHistoryKeep = 365

func (s *Service) recordRun(ctx context.Context, r runlog.Run) {
	if s.runs == nil {
		return
	}
	if err := s.runs.Record(ctx, r); err != nil {
		s.logger.Warn("tracker: run log write failed", "error", err)
		return
	}
	if err := s.runs.Trim(ctx, runHistoryKeep); err != nil {
		s.logger.Warn("tracker: run log trim failed", "error", err)
	}
}

// lastGoodDate is the date of the most recent successful run, for the
// failure alert. Empty when the log is absent or has no success yet.
func (s *Service) lastGoodDate(ctx context.Context) string {
	if s.runs == nil {
		return ""
	}
	r, err := s.runs.LastSuccess(ctx)
	if err != nil {
		s.logger.Warn("tracker: last success lookup failed", "error", err)
		return ""
	}
	if r == nil {
		return ""
	}
	return r.Date
}
