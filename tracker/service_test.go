package tracker

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	_ "modernc.org/sqlite"

	"github.com/hazyhaar/rankwatch/acquire"
	"github.com/hazyhaar/rankwatch/dbopen"
	"github.com/hazyhaar/rankwatch/rank"
	"github.com/hazyhaar/rankwatch/runlog"
	"github.com/hazyhaar/rankwatch/snapstore"
)

type fakeAcquirer struct {
	snap *rank.Snapshot
	err  error
}

func (f *fakeAcquirer) Acquire(ctx context.Context) (*rank.Snapshot, error) {
	return f.snap, f.err
}

type memorySink struct {
	texts []string
	err   error
}

func (m *memorySink) Send(ctx context.Context, text string) error {
	m.texts = append(m.texts, text)
	return m.err
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func snapFor(date time.Time, keys ...string) *rank.Snapshot {
	var entries []rank.Entry
	for _, k := range keys {
		entries = append(entries, rank.Entry{StableKey: k, DisplayName: k})
	}
	return rank.NewSnapshot(date, rank.StrategyProbe, date, entries, 100)
}

func testService(t *testing.T, acq Acquirer, sink *memorySink) (*Service, *snapstore.FS, *runlog.Log) {
	t.Helper()
	store, err := snapstore.NewFS(t.TempDir(), quietLogger())
	if err != nil {
		t.Fatal(err)
	}
	runs := runlog.New(dbopen.OpenMemory(t, dbopen.WithSchema(runlog.Schema)))
	cfg := &Config{}
	cfg.applyDefaults()
	svc := NewService(cfg, acq, store, store, runs, sink, nil, quietLogger())
	return svc, store, runs
}

func TestRunOnce_FullPipeline(t *testing.T) {
	// WHAT: One pass acquires, persists, notifies, and records a run.
	date := time.Date(2026, 8, 24, 0, 0, 0, 0, time.UTC)
	sink := &memorySink{}
	svc, store, runs := testService(t, &fakeAcquirer{snap: snapFor(date, "a", "b", "c")}, sink)

	if err := svc.RunOnce(context.Background()); err != nil {
		t.Fatal(err)
	}

	got, err := store.Read(context.Background(), date)
	if err != nil {
		t.Fatal(err)
	}
	if got.Count() != 3 {
		t.Errorf("stored count = %d", got.Count())
	}

	if len(sink.texts) != 1 || !strings.Contains(sink.texts[0], "첫 수집") {
		t.Errorf("notification = %v", sink.texts)
	}

	rec, err := runs.Recent(context.Background(), 5)
	if err != nil {
		t.Fatal(err)
	}
	if len(rec) != 1 || rec[0].EntryCount != 3 || rec[0].Error != "" {
		t.Errorf("run log = %+v", rec)
	}

	snap, report := svc.Latest()
	if snap == nil || report == nil || !report.FirstRun {
		t.Errorf("latest = %v %v", snap, report)
	}
}

func TestRunOnce_DiffAgainstPrevious(t *testing.T) {
	// WHAT: With a previous snapshot on disk the report is a real diff,
	// not a first run.
	prevDate := time.Date(2026, 8, 23, 0, 0, 0, 0, time.UTC)
	curDate := time.Date(2026, 8, 24, 0, 0, 0, 0, time.UTC)
	sink := &memorySink{}
	svc, store, _ := testService(t, &fakeAcquirer{snap: snapFor(curDate, "a", "b", "d")}, sink)

	if err := store.Write(context.Background(), snapFor(prevDate, "a", "b", "c")); err != nil {
		t.Fatal(err)
	}
	if err := svc.RunOnce(context.Background()); err != nil {
		t.Fatal(err)
	}

	_, report := svc.Latest()
	if report.FirstRun {
		t.Fatal("diff reported as first run")
	}
	if len(report.NewEntrants) != 1 || report.NewEntrants[0].StableKey != "d" {
		t.Errorf("new entrants = %+v", report.NewEntrants)
	}
	if len(report.Dropouts) != 1 || report.Dropouts[0].StableKey != "c" {
		t.Errorf("dropouts = %+v", report.Dropouts)
	}
}

func TestRunOnce_AcquisitionFailure(t *testing.T) {
	// WHAT: A failed acquisition returns an error, records the failure,
	// and sends an alert naming the last good date, but never writes a
	// snapshot.
	sink := &memorySink{}
	svc, store, runs := testService(t, &fakeAcquirer{err: acquire.ErrEmptyResult}, sink)

	// An earlier successful run sits in the log.
	if err := runs.Record(context.Background(), runlog.Run{
		Date: "2026-08-20", Strategy: "probe", EntryCount: 100,
	}); err != nil {
		t.Fatal(err)
	}

	err := svc.RunOnce(context.Background())
	if !errors.Is(err, acquire.ErrEmptyResult) {
		t.Fatalf("err = %v", err)
	}

	if _, err := store.ReadLatestBefore(context.Background(), time.Now().AddDate(0, 0, 1)); !errors.Is(err, snapstore.ErrNotFound) {
		t.Error("snapshot written despite failure")
	}
	if len(sink.texts) != 1 || !strings.Contains(sink.texts[0], "실패") {
		t.Errorf("alert = %v", sink.texts)
	}
	if !strings.Contains(sink.texts[0], "2026-08-20") {
		t.Errorf("alert misses last good date:\n%s", sink.texts[0])
	}
	rec, _ := runs.Recent(context.Background(), 5)
	if len(rec) != 2 || rec[0].Error == "" {
		t.Errorf("run log = %+v", rec)
	}
}

func TestRunOnce_SinkFailureIsNotFatal(t *testing.T) {
	// WHAT: A broken webhook must not fail the run; the snapshot is the
	// system of record.
	date := time.Date(2026, 8, 24, 0, 0, 0, 0, time.UTC)
	sink := &memorySink{err: errors.New("slack down")}
	svc, store, _ := testService(t, &fakeAcquirer{snap: snapFor(date, "a")}, sink)

	if err := svc.RunOnce(context.Background()); err != nil {
		t.Fatal(err)
	}
	if _, err := store.Read(context.Background(), date); err != nil {
		t.Error("snapshot not written")
	}
}

func TestInspectEndpoints(t *testing.T) {
	// WHAT: The inspect API exposes health, run history, and the last
	// snapshot once a run completed.
	date := time.Date(2026, 8, 24, 0, 0, 0, 0, time.UTC)
	svc, _, _ := testService(t, &fakeAcquirer{snap: snapFor(date, "a", "b")}, &memorySink{})
	handler := svc.InspectHandler()

	srv := httptest.NewServer(handler)
	defer srv.Close()

	get := func(path string) (int, string) {
		resp, err := srv.Client().Get(srv.URL + path)
		if err != nil {
			t.Fatal(err)
		}
		defer resp.Body.Close()
		body, _ := io.ReadAll(resp.Body)
		return resp.StatusCode, string(body)
	}

	if code, body := get("/healthz"); code != 200 || !strings.Contains(body, "ok") {
		t.Errorf("healthz = %d %s", code, body)
	}
	if code, _ := get("/api/latest"); code != 404 {
		t.Errorf("latest before run = %d", code)
	}

	if err := svc.RunOnce(context.Background()); err != nil {
		t.Fatal(err)
	}

	if code, body := get("/api/latest"); code != 200 || !strings.Contains(body, "snapshot") {
		t.Errorf("latest = %d %s", code, body)
	}
	if code, body := get("/api/runs"); code != 200 || !strings.Contains(body, "probe") {
		t.Errorf("runs = %d %s", code, body)
	}
}
