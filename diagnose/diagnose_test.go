package diagnose

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func testRecorder(t *testing.T) (*Recorder, string) {
	t.Helper()
	dir := t.TempDir()
	r, err := NewRecorder(dir, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatal(err)
	}
	return r, dir
}

func TestCapture_WritesArtifacts(t *testing.T) {
	// WHAT: One capture produces .html, .md and .png files sharing a stem.
	r, dir := testRecorder(t)

	html := []byte(`<html><body><h1>점검 안내</h1><p>잠시 후 다시 시도해 주세요.</p></body></html>`)
	if err := r.Capture("render_fail_attempt1", html, []byte{0x89, 'P', 'N', 'G'}); err != nil {
		t.Fatal(err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	var exts []string
	for _, de := range entries {
		if !strings.HasPrefix(de.Name(), "render_fail_attempt1_") {
			t.Errorf("unexpected name %q", de.Name())
		}
		exts = append(exts, filepath.Ext(de.Name()))
	}
	if len(exts) != 3 {
		t.Fatalf("got %d files: %v", len(exts), exts)
	}
}

func TestCapture_SkipsMissingInputs(t *testing.T) {
	// WHAT: A capture without a screenshot writes no .png.
	r, dir := testRecorder(t)
	if err := r.Capture("probe_block", []byte("<p>blocked</p>"), nil); err != nil {
		t.Fatal(err)
	}
	entries, _ := os.ReadDir(dir)
	for _, de := range entries {
		if filepath.Ext(de.Name()) == ".png" {
			t.Errorf("unexpected png %q", de.Name())
		}
	}
}

func TestDigest_SanitizesAndConverts(t *testing.T) {
	// WHAT: Script content never reaches the digest; visible text does.
	r, _ := testRecorder(t)
	digest := r.Digest(`<html><body>
	  <script>document.cookie</script>
	  <h2>오늘의 랭킹</h2>
	  <p>1위 토너</p>
	</body></html>`)
	if strings.Contains(digest, "document.cookie") {
		t.Errorf("script leaked into digest:\n%s", digest)
	}
	if !strings.Contains(digest, "오늘의 랭킹") || !strings.Contains(digest, "1위 토너") {
		t.Errorf("visible text missing:\n%s", digest)
	}
}

func TestDigest_Truncates(t *testing.T) {
	// WHAT: A huge page digests to a bounded preview.
	r, _ := testRecorder(t)
	digest := r.Digest("<p>" + strings.Repeat("가나다라 ", 2000) + "</p>")
	if !strings.Contains(digest, "(truncated)") {
		t.Error("no truncation marker")
	}
	if len([]rune(digest)) > digestRunes+20 {
		t.Errorf("digest too long: %d runes", len([]rune(digest)))
	}
}

func TestDigest_EmptyShell(t *testing.T) {
	// WHAT: An empty shell document is reported as such rather than
	// producing an empty file.
	r, _ := testRecorder(t)
	digest := r.Digest(`<html><body><div id="app"></div></body></html>`)
	if !strings.Contains(digest, "empty") {
		t.Errorf("digest = %q", digest)
	}
}

func TestPrune_RemovesOldArtifacts(t *testing.T) {
	// WHAT: Files older than the age cutoff are removed, fresh ones kept.
	r, dir := testRecorder(t)
	old := filepath.Join(dir, "render_fail_old.html")
	os.WriteFile(old, []byte("x"), 0o644)
	stale := time.Now().Add(-48 * time.Hour)
	os.Chtimes(old, stale, stale)

	fresh := filepath.Join(dir, "render_fail_new.html")
	os.WriteFile(fresh, []byte("x"), 0o644)

	if err := r.Prune(24 * time.Hour); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(old); !os.IsNotExist(err) {
		t.Error("old artifact survived")
	}
	if _, err := os.Stat(fresh); err != nil {
		t.Error("fresh artifact removed")
	}
}
