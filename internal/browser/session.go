// internal/browser/session.go
package browser

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xkilldash9x/feedpilot/api/schemas"
	"github.com/xkilldash9x/feedpilot/internal/config"
)

const (
	defaultNavigationTimeout = 90 * time.Second
	evaluateTimeout          = 10 * time.Second
	inputTimeout             = 10 * time.Second
	closeTimeout             = 5 * time.Second
)

// Page is the part of a Session that surfaces, scrapers and the
// authenticator drive.
type Page interface {
	Navigate(ctx context.Context, targetURL string) error
	Location(ctx context.Context) (string, error)
	Evaluate(ctx context.Context, script string, res interface{}) error
	WaitVisible(ctx context.Context, selector string, timeout time.Duration) error
	OuterHTML(ctx context.Context, selector string) (string, error)
	Click(ctx context.Context, selector string) error
	SendKeys(ctx context.Context, selector, keys string) error
}

// CookieJar reads and restores the tab's cookies.
type CookieJar interface {
	Cookies(ctx context.Context) ([]*network.Cookie, error)
	SetCookies(ctx context.Context, cookies []*network.CookieParam) error
}

// Session is one Chrome tab.
type Session struct {
	id     string
	ctx    context.Context // the tab context; carries the CDP target
	cancel context.CancelFunc
	cfg    config.BrowserConfig
	logger *zap.Logger

	// run points to RunActions; tests swap it out.
	run func(ctx context.Context, actions ...chromedp.Action) error

	onClose   func()
	closeOnce sync.Once
}

var (
	_ Page      = (*Session)(nil)
	_ CookieJar = (*Session)(nil)
)

func newSession(tabCtx context.Context, cancel context.CancelFunc, cfg config.BrowserConfig, logger *zap.Logger) *Session {
	id := uuid.NewString()
	s := &Session{
		id:     id,
		ctx:    tabCtx,
		cancel: cancel,
		cfg:    cfg,
		logger: logger.Named("session").With(zap.String("session_id", id)),
	}
	s.run = s.RunActions
	return s
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// RunActions runs actions against the tab, bounded by ctx's deadline and
// cancellation.
func (s *Session) RunActions(ctx context.Context, actions ...chromedp.Action) error {
	runCtx, cancel := CombineContext(s.ctx, ctx)
	defer cancel()
	return chromedp.Run(runCtx, actions...)
}

// runWithTimeout applies timeout to ctx and labels a deadline failure with op.
func (s *Session) runWithTimeout(ctx context.Context, op string, timeout time.Duration, actions ...chromedp.Action) error {
	opCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	err := s.run(opCtx, actions...)
	if err != nil && opCtx.Err() == context.DeadlineExceeded && ctx.Err() == nil {
		s.logger.Debug("Browser operation timed out.", zap.String("op", op), zap.Duration("timeout", timeout))
		return fmt.Errorf("%s timed out after %v: %w", op, timeout, opCtx.Err())
	}
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// Navigate loads targetURL and lets the page settle for browser.post_load_wait.
func (s *Session) Navigate(ctx context.Context, targetURL string) error {
	timeout := s.cfg.NavigationTimeout
	if timeout <= 0 {
		timeout = defaultNavigationTimeout
	}
	s.logger.Debug("Navigating", zap.String("url", targetURL))

	actions := []chromedp.Action{chromedp.Navigate(targetURL)}
	if s.cfg.PostLoadWait > 0 {
		actions = append(actions, chromedp.Sleep(s.cfg.PostLoadWait))
	}
	return s.runWithTimeout(ctx, "navigate to "+targetURL, timeout+s.cfg.PostLoadWait, actions...)
}

// Location returns the tab's current URL.
func (s *Session) Location(ctx context.Context) (string, error) {
	var loc string
	if err := s.runWithTimeout(ctx, "location", evaluateTimeout, chromedp.Location(&loc)); err != nil {
		return "", err
	}
	return loc, nil
}

// Evaluate runs script and decodes its JSON-serialisable result into res,
// which may be nil. Promises are awaited.
func (s *Session) Evaluate(ctx context.Context, script string, res interface{}) error {
	action := chromedp.Evaluate(script, res, func(p *runtime.EvaluateParams) *runtime.EvaluateParams {
		return p.WithReturnByValue(true).WithAwaitPromise(true).WithSilent(true)
	})
	return s.runWithTimeout(ctx, "evaluate", evaluateTimeout, action)
}

// WaitVisible blocks until selector matches a visible element. A timeout is
// reported as schemas.ErrWaitTimeout.
func (s *Session) WaitVisible(ctx context.Context, selector string, timeout time.Duration) error {
	opCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	err := s.run(opCtx, chromedp.WaitVisible(selector, chromedp.ByQuery))
	if err != nil && opCtx.Err() == context.DeadlineExceeded && ctx.Err() == nil {
		return fmt.Errorf("%w: %s after %v", schemas.ErrWaitTimeout, selector, timeout)
	}
	return err
}

// OuterHTML returns the markup of the first element matching selector.
func (s *Session) OuterHTML(ctx context.Context, selector string) (string, error) {
	var markup string
	err := s.runWithTimeout(ctx, "outer html", evaluateTimeout,
		chromedp.OuterHTML(selector, &markup, chromedp.ByQuery, chromedp.AtLeast(1)))
	if err != nil {
		return "", err
	}
	return markup, nil
}

// Click dispatches a real mouse click at the element's center.
func (s *Session) Click(ctx context.Context, selector string) error {
	return s.runWithTimeout(ctx, "click", inputTimeout, chromedp.Click(selector, chromedp.ByQuery, chromedp.NodeVisible))
}

// SendKeys focuses the element and types keys into it.
func (s *Session) SendKeys(ctx context.Context, selector, keys string) error {
	return s.runWithTimeout(ctx, "send keys", inputTimeout, chromedp.SendKeys(selector, keys, chromedp.ByQuery))
}

// Cookies returns every cookie visible to the tab.
func (s *Session) Cookies(ctx context.Context) ([]*network.Cookie, error) {
	var cookies []*network.Cookie
	err := s.runWithTimeout(ctx, "get cookies", evaluateTimeout, chromedp.ActionFunc(func(ctx context.Context) error {
		var err error
		cookies, err = network.GetCookies().Do(ctx)
		return err
	}))
	return cookies, err
}

// SetCookies installs cookies into the browser.
func (s *Session) SetCookies(ctx context.Context, cookies []*network.CookieParam) error {
	if len(cookies) == 0 {
		return nil
	}
	return s.runWithTimeout(ctx, "set cookies", evaluateTimeout, network.SetCookies(cookies))
}

// Close closes the tab. It is safe to call more than once.
func (s *Session) Close(ctx context.Context) error {
	var err error
	s.closeOnce.Do(func() {
		closeCtx, cancel := context.WithTimeout(Detach(ctx), closeTimeout)
		defer cancel()

		done := make(chan error, 1)
		go func() { done <- chromedp.Cancel(s.ctx) }()
		select {
		case err = <-done:
		case <-closeCtx.Done():
			err = fmt.Errorf("closing tab: %w", closeCtx.Err())
		}
		if s.cancel != nil {
			s.cancel()
		}
		if s.onClose != nil {
			s.onClose()
		}
	})
	return err
}

// jsonEncode renders v as a JavaScript literal.
func jsonEncode(v interface{}) string {
	b, err := json.Marshal(v)
	if err != nil {
		return `""`
	}
	return string(b)
}
