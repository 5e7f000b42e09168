// internal/browser/manager.go
package browser

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/xkilldash9x/feedpilot/internal/config"
)

const (
	defaultStartupTimeout = 30 * time.Second
	shutdownGracePeriod   = 15 * time.Second
)

// Manager owns the Chrome process and hands out tabs as Sessions.
type Manager struct {
	cfg    config.BrowserConfig
	logger *zap.Logger

	allocCancel   context.CancelFunc
	browserCtx    context.Context
	browserCancel context.CancelFunc

	sessions map[string]*Session
	mu       sync.Mutex
	wg       sync.WaitGroup

	initOnce sync.Once
	initErr  error
}

// NewManager creates a browser manager. Chrome is launched on the first NewSession.
func NewManager(cfg config.BrowserConfig, logger *zap.Logger) *Manager {
	m := &Manager{
		cfg:      cfg,
		logger:   logger.Named("browser_manager"),
		sessions: make(map[string]*Session),
	}
	m.logger.Debug("Browser manager created (launch deferred).")
	return m
}

// AllocatorFlags returns the Chrome command line switches derived from cfg.
// A false value removes a switch that chromedp would otherwise pass.
func AllocatorFlags(cfg config.BrowserConfig) map[string]interface{} {
	flags := map[string]interface{}{
		"headless":               cfg.Headless,
		"enable-automation":      false,
		"disable-blink-features": "AutomationControlled",
		"disable-notifications":  true,
		"start-maximized":        true,
		"disable-extensions":     true,
	}
	if runtime.GOOS == "linux" {
		flags["no-sandbox"] = true
		flags["disable-dev-shm-usage"] = true
	}
	for _, arg := range cfg.Args {
		name, value, hasValue := strings.Cut(strings.TrimLeft(strings.TrimSpace(arg), "-"), "=")
		if name == "" {
			continue
		}
		if hasValue {
			flags[name] = value
		} else {
			flags[name] = true
		}
	}
	return flags
}

// DefaultAllocatorOptions layers AllocatorFlags, the executable path and the
// user agent over chromedp's defaults.
func DefaultAllocatorOptions(cfg config.BrowserConfig) []chromedp.ExecAllocatorOption {
	opts := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)
	for name, value := range AllocatorFlags(cfg) {
		opts = append(opts, chromedp.Flag(name, value))
	}
	if cfg.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(cfg.ExecPath))
	}
	if cfg.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(cfg.UserAgent))
	}
	return opts
}

// initialize launches Chrome. The browser context is rooted in Background so
// it outlives the operation that happened to trigger the launch.
func (m *Manager) initialize(ctx context.Context) error {
	m.initOnce.Do(func() {
		m.logger.Info("Launching browser...", zap.Bool("headless", m.cfg.Headless))

		allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), DefaultAllocatorOptions(m.cfg)...)
		sugar := m.logger.Sugar()
		browserCtx, browserCancel := chromedp.NewContext(allocCtx,
			chromedp.WithLogf(sugar.Debugf),
			chromedp.WithErrorf(sugar.Debugf),
		)

		timeout := m.cfg.StartupTimeout
		if timeout <= 0 {
			timeout = defaultStartupTimeout
		}

		// The first Run binds the process to its context, so it must not carry a deadline.
		started := make(chan error, 1)
		go func() { started <- chromedp.Run(browserCtx) }()

		var err error
		select {
		case err = <-started:
		case <-time.After(timeout):
			err = fmt.Errorf("browser did not start within %v", timeout)
		case <-ctx.Done():
			err = ctx.Err()
		}
		if err != nil {
			browserCancel()
			allocCancel()
			m.initErr = fmt.Errorf("failed to launch browser: %w", err)
			return
		}

		m.allocCancel = allocCancel
		m.browserCtx = browserCtx
		m.browserCancel = browserCancel
		m.logger.Info("Browser launched.")
	})
	return m.initErr
}

// NewSession opens a new tab.
func (m *Manager) NewSession(ctx context.Context) (*Session, error) {
	if err := m.initialize(ctx); err != nil {
		return nil, err
	}

	tabCtx, tabCancel := chromedp.NewContext(m.browserCtx)
	if err := chromedp.Run(tabCtx); err != nil {
		tabCancel()
		return nil, fmt.Errorf("failed to open tab: %w", err)
	}

	session := newSession(tabCtx, tabCancel, m.cfg, m.logger)
	m.wg.Add(1)
	session.onClose = func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		delete(m.sessions, session.ID())
		m.wg.Done()
		m.logger.Debug("Session removed from manager.", zap.String("session_id", session.ID()))
	}

	m.mu.Lock()
	m.sessions[session.ID()] = session
	m.mu.Unlock()

	m.logger.Debug("New session created.", zap.String("session_id", session.ID()))
	return session, nil
}

// Shutdown closes every tab, then the browser process.
func (m *Manager) Shutdown(ctx context.Context) error {
	if m.browserCtx == nil {
		m.logger.Debug("Browser never launched; nothing to shut down.")
		return nil
	}
	m.logger.Info("Shutting down browser.")

	m.mu.Lock()
	open := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		open = append(open, s)
	}
	m.mu.Unlock()

	var errs []error
	for _, s := range open {
		if err := s.Close(ctx); err != nil {
			errs = append(errs, err)
		}
	}

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(shutdownGracePeriod):
		m.logger.Warn("Timed out waiting for sessions to close.")
	case <-ctx.Done():
		errs = append(errs, ctx.Err())
	}

	if err := chromedp.Cancel(m.browserCtx); err != nil && !errors.Is(err, context.Canceled) {
		m.logger.Debug("Graceful browser close failed.", zap.Error(err))
	}
	m.browserCancel()
	m.allocCancel()
	return errors.Join(errs...)
}
