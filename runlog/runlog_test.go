package runlog_test

import (
	"context"
	"testing"

	_ "modernc.org/sqlite"

	"github.com/hazyhaar/rankwatch/dbopen"
	"github.com/hazyhaar/rankwatch/runlog"
)

func testLog(t *testing.T) *runlog.Log {
	t.Helper()
	db := dbopen.OpenMemory(t, dbopen.WithSchema(runlog.Schema))
	return runlog.New(db)
}

func TestRecordAndRecent(t *testing.T) {
	// WHAT: Recorded runs come back newest first with fields intact.
	l := testLog(t)
	ctx := context.Background()

	runs := []runlog.Run{
		{Date: "2026-08-22", Strategy: "probe", EntryCount: 100, Duration: 1800},
		{Date: "2026-08-23", Strategy: "render", EntryCount: 98, Duration: 41000},
		{Date: "2026-08-24", Strategy: "probe", EntryCount: 0, Duration: 65000, Error: "no strategy produced a viable result"},
	}
	for _, r := range runs {
		if err := l.Record(ctx, r); err != nil {
			t.Fatal(err)
		}
	}

	got, err := l.Recent(ctx, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 3 {
		t.Fatalf("got %d runs", len(got))
	}
	if got[0].Date != "2026-08-24" || got[0].Error == "" {
		t.Errorf("newest = %+v", got[0])
	}
	if got[2].Strategy != "probe" || got[2].EntryCount != 100 {
		t.Errorf("oldest = %+v", got[2])
	}
	if got[0].CreatedAt.IsZero() {
		t.Error("CreatedAt not filled")
	}
}

func TestRecentLimit(t *testing.T) {
	// WHAT: The limit caps the result set.
	l := testLog(t)
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		if err := l.Record(ctx, runlog.Run{Date: "2026-08-24", Strategy: "probe", EntryCount: 1}); err != nil {
			t.Fatal(err)
		}
	}
	got, err := l.Recent(ctx, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Errorf("got %d runs", len(got))
	}
}

func TestTrim(t *testing.T) {
	// WHAT: Trim keeps the newest rows and deletes the rest.
	// WHY: The run log grows by one row per day forever; the service
	// trims it after each record so the inspect queries stay cheap.
	l := testLog(t)
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		if err := l.Record(ctx, runlog.Run{Date: "2026-08-24", Strategy: "probe", EntryCount: i}); err != nil {
			t.Fatal(err)
		}
	}
	if err := l.Trim(ctx, 3); err != nil {
		t.Fatal(err)
	}

	got, err := l.Recent(ctx, 100)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 3 {
		t.Fatalf("got %d runs after trim", len(got))
	}
	// The survivors are the newest three.
	if got[0].EntryCount != 9 || got[2].EntryCount != 7 {
		t.Errorf("survivors = %+v", got)
	}

	// Trimming an already small log is a no-op.
	if err := l.Trim(ctx, 50); err != nil {
		t.Fatal(err)
	}
	if got, _ := l.Recent(ctx, 100); len(got) != 3 {
		t.Errorf("got %d runs", len(got))
	}
}

func TestLastSuccess(t *testing.T) {
	// WHAT: LastSuccess skips failed and empty runs.
	// WHY: The inspect endpoint reports staleness from this row; a
	// failed run must not look like fresh data.
	l := testLog(t)
	ctx := context.Background()

	if r, err := l.LastSuccess(ctx); err != nil || r != nil {
		t.Fatalf("empty log: run=%v err=%v", r, err)
	}

	l.Record(ctx, runlog.Run{Date: "2026-08-22", Strategy: "probe", EntryCount: 100})
	l.Record(ctx, runlog.Run{Date: "2026-08-23", Strategy: "probe", Error: "boom"})
	l.Record(ctx, runlog.Run{Date: "2026-08-24", Strategy: "render", EntryCount: 0})

	r, err := l.LastSuccess(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if r == nil || r.Date != "2026-08-22" {
		t.Errorf("last success = %+v", r)
	}
}
