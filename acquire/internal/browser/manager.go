// Package browser manages the headless Chrome used by the rendered
// fallback: launch, stealth tab creation, teardown. The browser lives
// only for the duration of one acquisition run.
package browser

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
)

// Config configures the browser manager.
type Config struct {
	// RemoteURL is the WebSocket URL of an external Chrome instance.
	// Empty = launch a local Chrome via launcher.
	RemoteURL string

	// NavigateTimeout bounds a single page navigation.
	NavigateTimeout time.Duration

	// UserAgent overrides the tab's User-Agent. Empty keeps Chrome's own.
	UserAgent string

	// Locale and Timezone presented to page scripts. The target site
	// serves a different chart to foreign-looking visitors.
	Locale   string
	Timezone string

	Logger *slog.Logger
}

func (c *Config) defaults() {
	if c.NavigateTimeout <= 0 {
		c.NavigateTimeout = 30 * time.Second
	}
	if c.Locale == "" {
		c.Locale = "ko-KR"
	}
	if c.Timezone == "" {
		c.Timezone = "Asia/Seoul"
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Manager owns one Chrome process and its Rod handle.
type Manager struct {
	cfg     Config
	mu      sync.Mutex
	browser *rod.Browser
	lnch    *launcher.Launcher
	closed  bool
}

// NewManager creates a Manager. Call Start to launch Chrome.
func NewManager(cfg Config) *Manager {
	cfg.defaults()
	return &Manager{cfg: cfg}
}

// Start launches Chrome (or connects to a remote instance).
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return fmt.Errorf("browser: manager is closed")
	}
	if m.browser != nil {
		return nil
	}

	log := m.cfg.Logger
	var wsURL string

	if m.cfg.RemoteURL != "" {
		wsURL = m.cfg.RemoteURL
		log.Info("browser: connecting to remote", "url", wsURL)
	} else {
		l := launcher.New().
			Headless(true).
			Set("disable-blink-features", "AutomationControlled").
			Set("lang", m.cfg.Locale)
		u, err := l.Launch()
		if err != nil {
			return fmt.Errorf("browser: launch: %w", err)
		}
		wsURL = u
		m.lnch = l
		log.Info("browser: launched local chrome", "url", wsURL)
	}

	b := rod.New().ControlURL(wsURL)
	if err := b.Connect(); err != nil {
		return fmt.Errorf("browser: connect: %w", err)
	}
	if err := b.IgnoreCertErrors(true); err != nil {
		log.Warn("browser: ignore cert errors failed", "error", err)
	}
	m.browser = b
	return nil
}

// OpenPage creates a stealth tab, applies the identity overrides, and
// navigates to pageURL, waiting only for initial document load. The
// target keeps background polling forever, so waiting for network idle
// would never return.
func (m *Manager) OpenPage(ctx context.Context, pageURL string) (*rod.Page, error) {
	m.mu.Lock()
	b := m.browser
	m.mu.Unlock()
	if b == nil {
		return nil, fmt.Errorf("browser: not started")
	}

	page, err := stealth.Page(b)
	if err != nil {
		return nil, fmt.Errorf("browser: create tab: %w", err)
	}

	if err := m.applyIdentity(page); err != nil {
		m.cfg.Logger.Warn("browser: identity override failed", "error", err)
	}

	navCtx, cancel := context.WithTimeout(ctx, m.cfg.NavigateTimeout)
	defer cancel()

	if err := page.Context(navCtx).Navigate(pageURL); err != nil {
		page.Close()
		return nil, fmt.Errorf("browser: navigate %s: %w", pageURL, err)
	}
	if err := page.Context(navCtx).WaitLoad(); err != nil {
		m.cfg.Logger.Warn("browser: wait load timeout", "url", pageURL, "error", err)
	}
	return page, nil
}

func (m *Manager) applyIdentity(page *rod.Page) error {
	if m.cfg.UserAgent != "" {
		err := proto.NetworkSetUserAgentOverride{
			UserAgent:      m.cfg.UserAgent,
			AcceptLanguage: m.cfg.Locale,
		}.Call(page)
		if err != nil {
			return err
		}
	}
	return proto.EmulationSetTimezoneOverride{TimezoneID: m.cfg.Timezone}.Call(page)
}

// Close shuts down Chrome.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	if m.browser != nil {
		m.browser.Close()
		m.browser = nil
	}
	if m.lnch != nil {
		m.lnch.Cleanup()
		m.lnch = nil
	}
	return nil
}
