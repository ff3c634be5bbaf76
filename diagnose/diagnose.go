// Package diagnose preserves the evidence when a rendered page fails:
// the raw HTML, a screenshot, and a sanitized markdown digest short
// enough to read in a terminal. Selector rot on the upstream site is
// diagnosed from these artifacts, not by re-running the browser.
package diagnose

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/table"
	"github.com/microcosm-cc/bluemonday"

	"github.com/hazyhaar/rankwatch/idgen"
)

// digestRunes caps the markdown digest length.
const digestRunes = 2000

// Recorder writes diagnostic artifacts into a directory.
type Recorder struct {
	dir         string
	logger      *slog.Logger
	newID       idgen.Generator
	policy      *bluemonday.Policy
	mdConverter *converter.Converter
}

// NewRecorder creates the artifact directory if needed.
func NewRecorder(dir string, logger *slog.Logger) (*Recorder, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("diagnose: create dir: %w", err)
	}
	return &Recorder{
		dir:    dir,
		logger: logger,
		newID:  idgen.Timestamped(idgen.NanoID(6)),
		policy: bluemonday.UGCPolicy(),
		mdConverter: converter.NewConverter(
			converter.WithPlugins(
				base.NewBasePlugin(),
				commonmark.NewCommonmarkPlugin(),
				table.NewTablePlugin(),
			),
		),
	}, nil
}

// Capture writes up to three files sharing one stem: <stem>.html,
// <stem>.png, <stem>.md. Nil or empty inputs skip their file. The first
// write error is returned but later files are still attempted.
func (r *Recorder) Capture(prefix string, html, screenshot []byte) error {
	stem := prefix + "_" + r.newID()
	var firstErr error
	keep := func(err error) {
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}

	if len(html) > 0 {
		keep(r.write(stem+".html", html))
		keep(r.write(stem+".md", []byte(r.Digest(string(html)))))
	}
	if len(screenshot) > 0 {
		keep(r.write(stem+".png", screenshot))
	}
	if firstErr == nil {
		r.logger.Info("diagnose: artifacts captured", "stem", stem)
	}
	return firstErr
}

// Digest sanitizes the page and renders it as markdown, truncated to a
// terminal-friendly length. Returns a placeholder when the page body
// converts to nothing, which itself is a useful signal (empty shell
// document, challenge page).
func (r *Recorder) Digest(html string) string {
	clean := r.policy.Sanitize(html)
	md, err := r.mdConverter.ConvertString(clean)
	if err != nil || strings.TrimSpace(md) == "" {
		md = strings.TrimSpace(clean)
	}
	if strings.TrimSpace(md) == "" {
		return "(document rendered to empty text)"
	}
	md = strings.TrimSpace(md)
	runes := []rune(md)
	if len(runes) > digestRunes {
		md = string(runes[:digestRunes]) + "\n…(truncated)"
	}
	return md
}

// Prune removes artifacts older than maxAge. Called at service startup
// so the directory does not grow without bound.
func (r *Recorder) Prune(maxAge time.Duration) error {
	entries, err := os.ReadDir(r.dir)
	if err != nil {
		return fmt.Errorf("diagnose: list dir: %w", err)
	}
	cutoff := time.Now().Add(-maxAge)
	for _, de := range entries {
		info, err := de.Info()
		if err != nil || info.IsDir() {
			continue
		}
		if info.ModTime().Before(cutoff) {
			if err := os.Remove(filepath.Join(r.dir, de.Name())); err != nil {
				r.logger.Warn("diagnose: prune failed", "name", de.Name(), "error", err)
			}
		}
	}
	return nil
}

func (r *Recorder) write(name string, data []byte) error {
	path := filepath.Join(r.dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("diagnose: write %s: %w", name, err)
	}
	return nil
}
