// Package browser owns the process-wide headless Chrome used by the
// automated analysis and evidence tools.
//
// The browser is created lazily on first use and released explicitly with
// Shutdown. Acquisition and shutdown are serialized by one mutex, so
// concurrent audits share a single Chrome process.
package browser

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/launcher/flags"
	"github.com/go-rod/rod/lib/proto"

	"allycheck/internal/logging"
)

// ErrShutdown is returned by Acquire once Shutdown has been called. A shut
// down manager cannot be restarted; create a new one instead.
var ErrShutdown = errors.New("browser manager is shut down")

// Config holds browser configuration.
type Config struct {
	// ControlURL connects to an already running Chrome instead of launching one.
	ControlURL string `yaml:"control_url"`
	// Bin overrides the Chrome binary; empty lets rod find or download one.
	Bin                 string   `yaml:"bin"`
	Flags               []string `yaml:"flags"`
	Headless            bool     `yaml:"headless"`
	ViewportWidth       int      `yaml:"viewport_width"`
	ViewportHeight      int      `yaml:"viewport_height"`
	NavigationTimeoutMs int      `yaml:"navigation_timeout_ms"`
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Headless:            true,
		ViewportWidth:       1280,
		ViewportHeight:      800,
		NavigationTimeoutMs: 20000,
	}
}

// GetViewportWidth returns viewport width.
func (c Config) GetViewportWidth() int {
	if c.ViewportWidth == 0 {
		return 1280
	}
	return c.ViewportWidth
}

// GetViewportHeight returns viewport height.
func (c Config) GetViewportHeight() int {
	if c.ViewportHeight == 0 {
		return 800
	}
	return c.ViewportHeight
}

// NavigationTimeout returns the navigation timeout.
func (c Config) NavigationTimeout() time.Duration {
	if c.NavigationTimeoutMs == 0 {
		return 20 * time.Second
	}
	return time.Duration(c.NavigationTimeoutMs) * time.Millisecond
}

// Manager holds the shared browser handle.
type Manager struct {
	cfg Config

	mu       sync.Mutex
	browser  *rod.Browser
	launched *launcher.Launcher
	closed   bool

	// Seams for tests; default to real Chrome.
	connect func(ctx context.Context, cfg Config) (*rod.Browser, *launcher.Launcher, error)
	alive   func(b *rod.Browser) bool
	release func(b *rod.Browser, l *launcher.Launcher) error
}

// NewManager creates a manager. No browser is started until Acquire.
func NewManager(cfg Config) *Manager {
	return &Manager{
		cfg:     cfg,
		connect: connectChrome,
		alive: func(b *rod.Browser) bool {
			_, err := b.Version()
			return err == nil
		},
		release: func(b *rod.Browser, l *launcher.Launcher) error {
			err := b.Close()
			if l != nil {
				l.Kill()
				l.Cleanup()
			}
			return err
		},
	}
}

// Config returns the manager's configuration.
func (m *Manager) Config() Config { return m.cfg }

// Acquire returns the shared browser, starting or reconnecting it if needed.
func (m *Manager) Acquire(ctx context.Context) (*rod.Browser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil, ErrShutdown
	}

	if m.browser != nil {
		if m.alive(m.browser) {
			return m.browser, nil
		}
		logging.BrowserWarn("Stale browser connection detected, reconnecting")
		_ = m.release(m.browser, m.launched)
		m.browser, m.launched = nil, nil
	}

	timer := logging.StartTimer(logging.CategoryBrowser, "browser start")
	b, l, err := m.connect(ctx, m.cfg)
	if err != nil {
		return nil, err
	}
	timer.Stop()

	m.browser, m.launched = b, l
	logging.Browser("Browser ready (headless=%v)", m.cfg.Headless)
	return b, nil
}

// Started reports whether a browser handle currently exists.
func (m *Manager) Started() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.browser != nil
}

// Shutdown closes the browser. Safe to call more than once.
func (m *Manager) Shutdown() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.closed = true
	if m.browser == nil {
		return nil
	}
	err := m.release(m.browser, m.launched)
	m.browser, m.launched = nil, nil
	logging.Browser("Browser shut down")
	return err
}

// WithPage opens an isolated incognito page, runs fn, and closes the page.
// The page context carries ctx and the navigation timeout.
func (m *Manager) WithPage(ctx context.Context, fn func(page *rod.Page) error) error {
	b, err := m.Acquire(ctx)
	if err != nil {
		return err
	}

	incognito, err := b.Incognito()
	if err != nil {
		return fmt.Errorf("incognito context: %w", err)
	}
	defer func() { _ = incognito.Close() }()

	page, err := incognito.Page(proto.TargetCreateTarget{URL: "about:blank"})
	if err != nil {
		return fmt.Errorf("create page: %w", err)
	}
	defer func() { _ = page.Close() }()

	if err := (proto.EmulationSetDeviceMetricsOverride{
		Width:             m.cfg.GetViewportWidth(),
		Height:            m.cfg.GetViewportHeight(),
		DeviceScaleFactor: 1.0,
	}).Call(page); err != nil {
		return fmt.Errorf("set viewport: %w", err)
	}

	return fn(page.Context(ctx).Timeout(m.cfg.NavigationTimeout()))
}

// connectChrome connects to ControlURL or launches a local Chrome.
func connectChrome(ctx context.Context, cfg Config) (*rod.Browser, *launcher.Launcher, error) {
	controlURL := cfg.ControlURL
	var l *launcher.Launcher

	if controlURL == "" {
		l = launcher.New().Headless(cfg.Headless).Leakless(true)
		if cfg.Bin != "" {
			l = l.Bin(cfg.Bin)
		}
		for _, rawFlag := range cfg.Flags {
			name, val, hasVal := strings.Cut(strings.TrimLeft(rawFlag, "-"), "=")
			if hasVal {
				l = l.Set(flags.Flag(name), val)
			} else {
				l = l.Set(flags.Flag(name))
			}
		}
		u, err := l.Launch()
		if err != nil {
			return nil, nil, fmt.Errorf("launch chrome: %w", err)
		}
		controlURL = u
	}

	b := rod.New().ControlURL(controlURL).Context(context.WithoutCancel(ctx))
	if err := b.Connect(); err != nil {
		if l != nil {
			l.Kill()
		}
		return nil, nil, fmt.Errorf("connect to chrome: %w", err)
	}
	return b, l, nil
}
