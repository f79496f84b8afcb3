// Package browser manages the Chrome instance captures run against: launch
// or attach via Rod, open tabs on job postings, and track which tab is
// active.
//
// The manager is the single source of truth for tab identity. The relay
// asks it which tab is active before forwarding a capture command, and the
// popup asks it for the active page address.
package browser

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/stealth"

	"github.com/hazyhaar/jobclip/idgen"
)

// Config configures the browser Manager.
type Config struct {
	// RemoteURL is the WebSocket URL of an external Chrome instance.
	// Empty = launch a local Chrome via launcher.
	RemoteURL string

	// Headful disables headless mode for watching captures live.
	Headful bool

	// NavigateTimeout bounds page navigation. Default: 30s.
	NavigateTimeout time.Duration

	Logger *slog.Logger
}

func (c *Config) defaults() {
	if c.NavigateTimeout <= 0 {
		c.NavigateTimeout = 30 * time.Second
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Tab is one open page.
type Tab struct {
	ID   string
	URL  string
	Page *rod.Page
}

// Manager owns the Chrome connection and the tab registry.
type Manager struct {
	cfg Config

	mu      sync.RWMutex
	browser *rod.Browser
	lnch    *launcher.Launcher
	tabs    map[string]*Tab
	active  string
	closed  bool
}

// NewManager creates a Manager. Call Start to launch or attach Chrome.
func NewManager(cfg Config) *Manager {
	cfg.defaults()
	return &Manager{cfg: cfg, tabs: make(map[string]*Tab)}
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
		l := launcher.New().Headless(!m.cfg.Headful)
		l = l.Set("disable-blink-features", "AutomationControlled")
		u, err := l.Launch()
		if err != nil {
			return fmt.Errorf("browser: launch: %w", err)
		}
		wsURL = u
		m.lnch = l
		log.Info("browser: launched local chrome", "url", wsURL, "headful", m.cfg.Headful)
	}

	b := rod.New().ControlURL(wsURL).Context(ctx)
	if err := b.Connect(); err != nil {
		return fmt.Errorf("browser: connect: %w", err)
	}
	m.browser = b
	return nil
}

// OpenTab opens a new tab on pageURL, waits for the load, and makes it the
// active tab.
func (m *Manager) OpenTab(ctx context.Context, pageURL string) (*Tab, error) {
	m.mu.RLock()
	b := m.browser
	m.mu.RUnlock()
	if b == nil {
		return nil, fmt.Errorf("browser: not started")
	}

	page, err := stealth.Page(b)
	if err != nil {
		return nil, fmt.Errorf("browser: create tab: %w", err)
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

	tab := &Tab{ID: idgen.Session(), URL: pageURL, Page: page}
	m.addTab(tab)
	m.cfg.Logger.Info("browser: tab opened", "tab", tab.ID, "url", pageURL)
	return tab, nil
}

// addTab registers a tab and makes it active.
func (m *Manager) addTab(tab *Tab) {
	m.mu.Lock()
	m.tabs[tab.ID] = tab
	m.active = tab.ID
	m.mu.Unlock()
}

// CloseTab closes a tab. When the active tab closes, no tab is active until
// another opens or is activated.
func (m *Manager) CloseTab(id string) error {
	m.mu.Lock()
	tab, ok := m.tabs[id]
	if ok {
		delete(m.tabs, id)
		if m.active == id {
			m.active = ""
		}
	}
	m.mu.Unlock()

	if !ok {
		return fmt.Errorf("browser: no such tab %q", id)
	}
	if tab.Page != nil {
		return tab.Page.Close()
	}
	return nil
}

// Activate makes an open tab the active one.
func (m *Manager) Activate(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.tabs[id]; !ok {
		return fmt.Errorf("browser: no such tab %q", id)
	}
	m.active = id
	return nil
}

// Tab returns an open tab by ID.
func (m *Manager) Tab(id string) (*Tab, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	tab, ok := m.tabs[id]
	return tab, ok
}

// Tabs lists the open tabs.
func (m *Manager) Tabs() []*Tab {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*Tab, 0, len(m.tabs))
	for _, t := range m.tabs {
		out = append(out, t)
	}
	return out
}

// ActiveTab returns the active tab's ID. Satisfies the relay's tab
// directory.
func (m *Manager) ActiveTab() (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.active == "" {
		return "", false
	}
	return m.active, true
}

// ActiveURL returns the active tab's address. Satisfies the popup's tab
// info.
func (m *Manager) ActiveURL() (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	tab, ok := m.tabs[m.active]
	if !ok {
		return "", false
	}
	return tab.URL, true
}

// Close closes every tab and shuts Chrome down.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true

	for id, tab := range m.tabs {
		if tab.Page != nil {
			if err := tab.Page.Close(); err != nil {
				m.cfg.Logger.Warn("browser: close tab", "tab", id, "error", err)
			}
		}
		delete(m.tabs, id)
	}
	m.active = ""

	if m.browser != nil {
		if err := m.browser.Close(); err != nil {
			return err
		}
		m.browser = nil
	}
	if m.lnch != nil {
		m.lnch.Cleanup()
		m.lnch = nil
	}
	return nil
}
