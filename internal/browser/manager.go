// Package browser adapts a live Chrome page to the dom and overlay
// capabilities. It launches (or connects to) Chrome via Rod, injects a
// small page agent for the DOM-touching primitives, and forwards the
// agent's mutation, edit and widget events over a runtime binding.
package browser

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
)

// Config configures the browser manager.
type Config struct {
	// Remote is the WebSocket URL of an external Chrome instance.
	// Empty launches a local Chrome via launcher.
	Remote string

	// Stealth applies the stealth page setup on new pages.
	Stealth bool

	// Headful runs Chrome with a visible window.
	Headful bool

	Logger *slog.Logger
}

func (c *Config) defaults() {
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Manager owns the Chrome connection. Create one, Open pages from it,
// Close when done.
type Manager struct {
	cfg     Config
	browser *rod.Browser
	lnch    *launcher.Launcher
}

// NewManager creates a browser Manager. Call Start to launch Chrome.
func NewManager(cfg Config) *Manager {
	cfg.defaults()
	return &Manager{cfg: cfg}
}

// Start launches Chrome or connects to a remote instance.
func (m *Manager) Start(ctx context.Context) error {
	log := m.cfg.Logger

	var wsURL string
	if m.cfg.Remote != "" {
		wsURL = m.cfg.Remote
		log.Info("browser: connecting to remote", "url", wsURL)
	} else {
		l := launcher.New().Headless(!m.cfg.Headful)
		l = l.Set("disable-blink-features", "AutomationControlled")

		u, err := l.Launch()
		if err != nil {
			return fmt.Errorf("browser: launch: %w", err)
		}
		wsURL = u
		m.lnch = l
		log.Info("browser: launched local chrome", "headful", m.cfg.Headful)
	}

	b := rod.New().ControlURL(wsURL)
	if err := b.Connect(); err != nil {
		return fmt.Errorf("browser: connect: %w", err)
	}
	m.browser = b
	return nil
}

// Open navigates a fresh page to the URL and attaches the agent.
func (m *Manager) Open(ctx context.Context, pageURL string) (*Page, error) {
	if m.browser == nil {
		return nil, fmt.Errorf("browser: not started")
	}

	var page *rod.Page
	var err error
	if m.cfg.Stealth {
		page, err = stealth.Page(m.browser)
	} else {
		page, err = m.browser.Page(proto.TargetCreateTarget{URL: ""})
	}
	if err != nil {
		return nil, fmt.Errorf("browser: create page: %w", err)
	}

	navCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := page.Context(navCtx).Navigate(pageURL); err != nil {
		page.Close()
		return nil, fmt.Errorf("browser: navigate %s: %w", pageURL, err)
	}
	if err := page.Context(navCtx).WaitLoad(); err != nil {
		m.cfg.Logger.Warn("browser: wait load timeout", "url", pageURL, "error", err)
	}

	return attach(ctx, page, pageURL, m.cfg.Logger)
}

// Close shuts down Chrome.
func (m *Manager) Close() error {
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
