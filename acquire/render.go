package acquire

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"

	"github.com/hazyhaar/rankwatch/acquire/internal/browser"
	"github.com/hazyhaar/rankwatch/extract"
	"github.com/hazyhaar/rankwatch/rank"
)

// DiagnosticSink receives page state captured when a rendered page fails
// to produce a product list. Implementations must tolerate nil slices.
type DiagnosticSink interface {
	Capture(prefix string, html, screenshot []byte) error
}

// RenderConfig configures the rendered-page fallback.
type RenderConfig struct {
	// PageURLs are the catalog pages tried in order on each attempt.
	PageURLs []string

	// Attempts is how many full passes over PageURLs are made before
	// giving up.
	Attempts int

	// Extract holds the selector cascades.
	Extract extract.Config

	// ListWait bounds how long one page may take to grow a product list
	// after load.
	ListWait time.Duration

	// ScrollRounds caps the lazy-load scroll loop.
	ScrollRounds int

	// RemoteBrowser is the WebSocket URL of an external Chrome. Empty
	// launches a local one.
	RemoteBrowser string

	// UserAgent overrides the tab's User-Agent.
	UserAgent string

	// Diagnostics, when set, receives the page HTML and a screenshot of
	// every page that timed out.
	Diagnostics DiagnosticSink

	Logger *slog.Logger
}

func (c *RenderConfig) defaults() {
	if len(c.PageURLs) == 0 {
		c.PageURLs = []string{
			"https://www.oliveyoung.co.kr/store/main/getBestList.do?dispCatNo=900000100100001",
			"https://www.oliveyoung.co.kr/store/main/main.do",
		}
	}
	if c.Attempts <= 0 {
		c.Attempts = 2
	}
	if c.ListWait <= 0 {
		c.ListWait = 25 * time.Second
	}
	if c.ScrollRounds <= 0 {
		c.ScrollRounds = 8
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Renderer is the expensive acquisition strategy: a stealth headless
// browser session per run. The browser is launched lazily on Fetch and
// torn down before Fetch returns.
type Renderer struct {
	cfg RenderConfig
}

// NewRenderer builds a Renderer.
func NewRenderer(cfg RenderConfig) *Renderer {
	cfg.defaults()
	return &Renderer{cfg: cfg}
}

// Fetch drives the browser through the configured pages until one
// yields entries. Pages that never grow a list are captured for offline
// diagnosis. Returns ErrRenderTimeout when every attempt timed out.
func (r *Renderer) Fetch(ctx context.Context) ([]rank.Entry, error) {
	log := r.cfg.Logger

	mgr := browser.NewManager(browser.Config{
		RemoteURL: r.cfg.RemoteBrowser,
		UserAgent: r.cfg.UserAgent,
		Logger:    r.cfg.Logger,
	})
	if err := mgr.Start(ctx); err != nil {
		return nil, err
	}
	defer mgr.Close()

	timedOut := false
	for attempt := 1; attempt <= r.cfg.Attempts; attempt++ {
		for _, pageURL := range r.cfg.PageURLs {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			entries, err := r.renderOne(ctx, mgr, pageURL, attempt)
			if err != nil {
				if err == errListWait {
					timedOut = true
					continue
				}
				log.Warn("render: page failed", "url", pageURL, "attempt", attempt, "error", err)
				continue
			}
			if len(entries) > 0 {
				return entries, nil
			}
		}
	}
	if timedOut {
		return nil, ErrRenderTimeout
	}
	return nil, nil
}

var errListWait = fmt.Errorf("render: list wait elapsed")

func (r *Renderer) renderOne(ctx context.Context, mgr *browser.Manager, pageURL string, attempt int) ([]rank.Entry, error) {
	log := r.cfg.Logger

	page, err := mgr.OpenPage(ctx, pageURL)
	if err != nil {
		return nil, err
	}
	defer page.Close()

	r.dismissOverlays(page)
	r.scrollThrough(ctx, page)

	waited := r.waitForList(ctx, page)
	htmlSrc, err := page.HTML()
	if err != nil {
		return nil, fmt.Errorf("render: read html: %w", err)
	}

	if !waited {
		log.Warn("render: product list never appeared", "url", pageURL, "attempt", attempt)
		r.captureDiagnostics(page, htmlSrc, attempt)
		// The partial document may still hold a usable list fragment.
		if entries, err := extract.FromHTML(htmlSrc, r.cfg.Extract); err == nil {
			return entries, nil
		}
		return nil, errListWait
	}

	entries, err := extract.FromHTML(htmlSrc, r.cfg.Extract)
	if err != nil {
		return nil, err
	}
	return entries, nil
}

// dismissOverlays closes app-install banners and consent layers that
// cover the list. Best effort; failures are ignored.
func (r *Renderer) dismissOverlays(page *rod.Page) {
	_, _ = page.Eval(`() => {
		const closers = document.querySelectorAll(
			'.popup_close, .btn_close, .layer_close, [class*="close"][class*="banner"]');
		closers.forEach(el => { try { el.click(); } catch (e) {} });
	}`)
}

// scrollThrough walks the page down to trigger lazy-loaded cards,
// stopping when the document height stabilizes or the round cap hits.
func (r *Renderer) scrollThrough(ctx context.Context, page *rod.Page) {
	lastHeight := 0
	for round := 0; round < r.cfg.ScrollRounds; round++ {
		if ctx.Err() != nil {
			return
		}
		if err := page.Mouse.Scroll(0, 1200, 4); err != nil {
			return
		}
		time.Sleep(400 * time.Millisecond)

		res, err := page.Eval(`() => document.body.scrollHeight`)
		if err != nil {
			return
		}
		height := res.Value.Int()
		if height == lastHeight {
			return
		}
		lastHeight = height
	}
}

// waitForList polls until any list selector matches at least MinItems
// cards or the wait budget elapses.
func (r *Renderer) waitForList(ctx context.Context, page *rod.Page) bool {
	selectors, minItems := listProbeParams(r.cfg.Extract)

	sel, _ := json.Marshal(selectors)
	js := fmt.Sprintf(`() => {
		const sels = %s;
		let best = 0;
		for (const s of sels) {
			try { best = Math.max(best, document.querySelectorAll(s).length); } catch (e) {}
		}
		return best;
	}`, sel)

	deadline := time.Now().Add(r.cfg.ListWait)
	for time.Now().Before(deadline) {
		if ctx.Err() != nil {
			return false
		}
		res, err := page.Eval(js)
		if err == nil && res.Value.Int() >= minItems {
			return true
		}
		time.Sleep(500 * time.Millisecond)
	}
	return false
}

func (r *Renderer) captureDiagnostics(page *rod.Page, htmlSrc string, attempt int) {
	if r.cfg.Diagnostics == nil {
		return
	}
	shot, err := page.Screenshot(true, &proto.PageCaptureScreenshot{
		Format: proto.PageCaptureScreenshotFormatPng,
	})
	if err != nil {
		r.cfg.Logger.Warn("render: screenshot failed", "error", err)
	}
	prefix := fmt.Sprintf("render_fail_attempt%d", attempt)
	if err := r.cfg.Diagnostics.Capture(prefix, []byte(htmlSrc), shot); err != nil {
		r.cfg.Logger.Warn("render: diagnostic capture failed", "error", err)
	}
}

func listProbeParams(cfg extract.Config) ([]string, int) {
	d := extract.Default()
	selectors := cfg.ListSelectors
	if len(selectors) == 0 {
		selectors = d.ListSelectors
	}
	minItems := cfg.MinItems
	if minItems <= 0 {
		minItems = d.MinItems
	}
	return selectors, minItems
}
