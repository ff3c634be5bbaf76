package snapstore

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/hazyhaar/rankwatch/rank"
)

const (
	filePrefix = "rank_"
	fileSuffix = ".csv"
	fileDate   = "20060102"
)

// FS is a Store backed by a directory of CSV files, one per day.
type FS struct {
	dir    string
	logger *slog.Logger
}

// NewFS creates the directory if needed and returns a store over it.
func NewFS(dir string, logger *slog.Logger) (*FS, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("snapstore: create dir: %w", err)
	}
	return &FS{dir: dir, logger: logger}, nil
}

// Path returns the file path a snapshot for the given date lives at.
func (s *FS) Path(date time.Time) string {
	return filepath.Join(s.dir, filePrefix+date.Format(fileDate)+fileSuffix)
}

func (s *FS) Write(ctx context.Context, snap *rank.Snapshot) error {
	var buf bytes.Buffer
	if err := encodeCSV(&buf, snap); err != nil {
		return err
	}

	path := s.Path(snap.Date)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("snapstore: write %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("snapstore: rename %s: %w", tmp, err)
	}
	s.logger.Info("snapstore: snapshot written", "path", path, "entries", snap.Count())
	return nil
}

func (s *FS) Read(ctx context.Context, date time.Time) (*rank.Snapshot, error) {
	path := s.Path(date)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("snapstore: read %s: %w", path, err)
	}
	return decodeCSV(bytes.NewReader(data), dayOf(date))
}

func (s *FS) ReadLatestBefore(ctx context.Context, date time.Time) (*rank.Snapshot, error) {
	dates, err := s.dates()
	if err != nil {
		return nil, err
	}
	cutoff := dayOf(date)
	for i := len(dates) - 1; i >= 0; i-- {
		if dates[i].Before(cutoff) {
			return s.Read(ctx, dates[i])
		}
	}
	return nil, ErrNotFound
}

// dates lists snapshot dates present on disk, ascending. Files that do
// not match the naming scheme are ignored.
func (s *FS) dates() ([]time.Time, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("snapstore: list %s: %w", s.dir, err)
	}
	var out []time.Time
	for _, de := range entries {
		name := de.Name()
		if !strings.HasPrefix(name, filePrefix) || !strings.HasSuffix(name, fileSuffix) {
			continue
		}
		stamp := strings.TrimSuffix(strings.TrimPrefix(name, filePrefix), fileSuffix)
		d, err := time.Parse(fileDate, stamp)
		if err != nil {
			continue
		}
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	return out, nil
}

// dayOf strips the time-of-day and zone so dates parsed from filenames
// and dates passed by callers compare on the calendar day alone.
func dayOf(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
