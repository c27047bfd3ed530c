package browser

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"

	"applymate/internal/config"
	"applymate/internal/logging"
	"applymate/internal/logging/types"
)

// Manager owns the shared browser process and hands out isolated sessions.
type Manager struct {
	config   *config.Config
	launcher *launcher.Launcher
	browser  *rod.Browser
	mu       sync.Mutex
	started  bool
	logger   types.Logger
}

// Session is an isolated page context for a single application run.
type Session struct {
	page      *rod.Page
	dispose   func() error // tears down the incognito browser context
	manager   *Manager
	createdAt time.Time
	closeOnce sync.Once
}

// NewManager creates a browser manager from config. The browser process is
// not launched until Start is called.
func NewManager(cfg *config.Config) *Manager {
	logger := logging.GetGlobalLogger()

	l := launcher.New().
		Headless(cfg.Browser.HeadlessMode).
		NoSandbox(true).
		Set("disable-blink-features", "AutomationControlled").
		Set("disable-web-security").
		Set("disable-background-timer-throttling").
		Set("disable-backgrounding-occluded-windows").
		Set("disable-renderer-backgrounding").
		Set("disable-gpu").
		Set("disable-dev-shm-usage")

	// Use system-installed Chrome/Chromium instead of downloading
	if chromePath := getSystemChromePath(); chromePath != "" {
		l = l.Bin(chromePath)
		logger.Info("Using system Chrome browser", map[string]interface{}{
			"chrome_path": chromePath,
		})
	} else {
		logger.Warn("System Chrome not found, Rod will download browser", map[string]interface{}{})
	}

	if cfg.Browser.UserAgent != "" {
		l = l.Set("user-agent", cfg.Browser.UserAgent)
	}

	return &Manager{
		config:   cfg,
		launcher: l,
		logger:   logger,
	}
}

// Start launches the browser process and connects to it.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.started {
		return nil
	}

	url, err := m.launcher.Launch()
	if err != nil {
		return fmt.Errorf("failed to launch browser: %w", err)
	}

	browser := rod.New().ControlURL(url)
	if err := browser.Connect(); err != nil {
		return fmt.Errorf("failed to connect to browser: %w", err)
	}

	m.browser = browser
	m.started = true
	m.logger.Info("Browser started", map[string]interface{}{
		"headless": m.config.Browser.HeadlessMode,
	})
	return nil
}

// CreateSession opens a fresh incognito page for one application run.
func (m *Manager) CreateSession(ctx context.Context) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.started {
		return nil, fmt.Errorf("browser manager not started")
	}

	incognito, err := m.browser.Incognito()
	if err != nil {
		return nil, fmt.Errorf("failed to create incognito context: %w", err)
	}

	var page *rod.Page
	if m.config.Browser.StealthMode {
		page, err = stealth.Page(incognito)
	} else {
		page, err = incognito.Page(proto.TargetCreateTarget{})
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create page: %w", err)
	}

	err = page.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
		Width:             m.config.Browser.ViewportWidth,
		Height:            m.config.Browser.ViewportHeight,
		DeviceScaleFactor: 1,
	})
	if err != nil {
		m.logger.Warn("Failed to set viewport", map[string]interface{}{
			"error": err.Error(),
		})
	}

	if m.config.Browser.UserAgent != "" {
		err = page.SetUserAgent(&proto.NetworkSetUserAgentOverride{
			UserAgent: m.config.Browser.UserAgent,
		})
		if err != nil {
			m.logger.Warn("Failed to set user agent", map[string]interface{}{
				"error": err.Error(),
			})
		}
	}

	m.logger.Debug("Browser session created", map[string]interface{}{})

	return &Session{
		page: page,
		dispose: func() error {
			return proto.TargetDisposeBrowserContext{
				BrowserContextID: incognito.BrowserContextID,
			}.Call(incognito)
		},
		manager:   m,
		createdAt: time.Now(),
	}, nil
}

// Page returns the session's page behind the automation interface.
func (s *Session) Page() Page {
	return &rodPage{
		page:       s.page,
		navTimeout: s.manager.config.Browser.NavigationTimeout,
		actTimeout: s.manager.config.Browser.ActionTimeout,
	}
}

// Close tears the session down: the page first, then the incognito
// browser context, so contexts never pile up in the browser process. Safe
// to call more than once.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		if s.page != nil {
			if err := rod.Try(func() { s.page.MustClose() }); err != nil {
				s.manager.logger.Debug("Session close failed", map[string]interface{}{
					"error": err.Error(),
				})
			}
		}
		if s.dispose != nil {
			if err := s.dispose(); err != nil {
				s.manager.logger.Debug("Browser context disposal failed", map[string]interface{}{
					"error": err.Error(),
				})
			}
		}
		s.manager.logger.Debug("Browser session closed", map[string]interface{}{
			"age": time.Since(s.createdAt).String(),
		})
	})
}

// Healthy reports whether the browser process is still responsive.
func (m *Manager) Healthy() bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.started || m.browser == nil {
		return false
	}
	return rod.Try(func() { m.browser.MustVersion() }) == nil
}

// Stop closes the browser process.
func (m *Manager) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.started {
		return nil
	}

	m.started = false
	if m.browser != nil {
		if err := m.browser.Close(); err != nil {
			return fmt.Errorf("failed to close browser: %w", err)
		}
		m.browser = nil
	}
	m.launcher.Cleanup()
	m.logger.Info("Browser stopped", map[string]interface{}{})
	return nil
}

// getSystemChromePath finds the system-installed Chrome/Chromium browser
func getSystemChromePath() string {
	// First check environment variables (Docker container configuration)
	if chromeBin := os.Getenv("CHROME_BIN"); chromeBin != "" {
		if _, err := os.Stat(chromeBin); err == nil {
			return chromeBin
		}
	}

	if chromePath := os.Getenv("CHROME_PATH"); chromePath != "" {
		if _, err := os.Stat(chromePath); err == nil {
			return chromePath
		}
	}

	// Check common Chrome/Chromium paths
	commonPaths := []string{
		"/usr/bin/chromium-browser",
		"/usr/bin/chromium",
		"/usr/bin/google-chrome",
		"/usr/bin/google-chrome-stable",
		"/opt/google/chrome/chrome",
		"/Applications/Google Chrome.app/Contents/MacOS/Google Chrome",
		"C:\\Program Files\\Google\\Chrome\\Application\\chrome.exe",
		"C:\\Program Files (x86)\\Google\\Chrome\\Application\\chrome.exe",
	}

	for _, path := range commonPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}
