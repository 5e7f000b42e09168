// internal/browser/auth.go
package browser

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/network"
	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/xkilldash9x/feedpilot/internal/config"
)

const (
	defaultLoginWait = 5 * time.Minute
	loginPollEvery   = 2 * time.Second
	feedMarker       = "/feed"
	logoutPath       = "/m/logout/"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// ErrLoginTimeout is returned when the user does not finish signing in within auth.login_wait.
var ErrLoginTimeout = errors.New("timed out waiting for manual login")

// AuthPage is what the authenticator needs from a tab.
type AuthPage interface {
	Page
	CookieJar
}

// StoredCookie is the on-disk cookie record.
type StoredCookie struct {
	Name     string  `json:"name"`
	Value    string  `json:"value"`
	Domain   string  `json:"domain"`
	Path     string  `json:"path"`
	Expires  float64 `json:"expires,omitempty"`
	HTTPOnly bool    `json:"httpOnly"`
	Secure   bool    `json:"secure"`
	SameSite string  `json:"sameSite,omitempty"`
}

// Authenticator restores a saved LinkedIn session or waits for a manual login.
type Authenticator struct {
	cookiesFile string
	baseURL     string
	feedURL     string
	loginURL    string
	loginWait   time.Duration
	pollEvery   time.Duration
	logger      *zap.Logger
}

// NewAuthenticator reads URLs, the cookie path and the login wait from cfg.
func NewAuthenticator(cfg config.Interface, logger *zap.Logger) (*Authenticator, error) {
	paths := cfg.Paths()
	cookiesFile, err := paths.Resolve(paths.CookiesFile)
	if err != nil {
		return nil, err
	}
	wait := cfg.Auth().LoginWait
	if wait <= 0 {
		wait = defaultLoginWait
	}
	return &Authenticator{
		cookiesFile: cookiesFile,
		baseURL:     cfg.LinkedIn().BaseURL,
		feedURL:     cfg.LinkedIn().FeedURL,
		loginURL:    cfg.LinkedIn().LoginURL,
		loginWait:   wait,
		pollEvery:   loginPollEvery,
		logger:      logger.Named("auth"),
	}, nil
}

// CookiesFile returns the path the session cookies are stored at.
func (a *Authenticator) CookiesFile() string { return a.cookiesFile }

// EnsureLoggedIn leaves page on the feed with a signed-in session.
func (a *Authenticator) EnsureLoggedIn(ctx context.Context, page AuthPage) error {
	restored, err := a.restoreCookies(ctx, page)
	if err != nil {
		a.logger.Warn("Could not restore saved cookies; falling back to manual login.", zap.Error(err))
	}

	if restored > 0 {
		if err := page.Navigate(ctx, a.feedURL); err != nil {
			return fmt.Errorf("failed to open feed: %w", err)
		}
		if a.onFeed(ctx, page) {
			a.logger.Info("Logged in with saved cookies.", zap.Int("cookies", restored))
			return nil
		}
		a.logger.Info("Saved cookies are no longer valid.")
	}

	if err := a.manualLogin(ctx, page); err != nil {
		return err
	}
	if err := a.SaveCookies(Detach(ctx), page); err != nil {
		a.logger.Warn("Failed to save cookies.", zap.Error(err))
	}
	return nil
}

func (a *Authenticator) manualLogin(ctx context.Context, page AuthPage) error {
	if err := page.Navigate(ctx, a.loginURL); err != nil {
		return fmt.Errorf("failed to open login page: %w", err)
	}
	a.logger.Info("Please log in manually in the browser window.", zap.Duration("wait", a.loginWait))

	deadline := time.Now().Add(a.loginWait)
	ticker := time.NewTicker(a.pollEvery)
	defer ticker.Stop()
	for {
		if a.onFeed(ctx, page) {
			a.logger.Info("Manual login succeeded.")
			return nil
		}
		if !time.Now().Before(deadline) {
			return fmt.Errorf("%w after %v", ErrLoginTimeout, a.loginWait)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (a *Authenticator) onFeed(ctx context.Context, page AuthPage) bool {
	loc, err := page.Location(ctx)
	if err != nil {
		a.logger.Debug("Could not read location.", zap.Error(err))
		return false
	}
	return strings.Contains(loc, feedMarker)
}

func (a *Authenticator) restoreCookies(ctx context.Context, page AuthPage) (int, error) {
	cookies, err := a.LoadCookies()
	if err != nil || len(cookies) == 0 {
		return 0, err
	}
	params := make([]*network.CookieParam, 0, len(cookies))
	for _, c := range cookies {
		params = append(params, c.param())
	}
	if err := page.SetCookies(ctx, params); err != nil {
		return 0, err
	}
	return len(params), nil
}

// LoadCookies reads the cookie file. A missing file yields no cookies.
func (a *Authenticator) LoadCookies() ([]StoredCookie, error) {
	data, err := os.ReadFile(a.cookiesFile)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read cookies: %w", err)
	}
	if len(data) == 0 {
		return nil, nil
	}
	var cookies []StoredCookie
	if err := json.Unmarshal(data, &cookies); err != nil {
		return nil, fmt.Errorf("failed to decode cookies file %s: %w", a.cookiesFile, err)
	}
	return cookies, nil
}

// SaveCookies writes the tab's cookies to the cookie file with owner-only permissions.
func (a *Authenticator) SaveCookies(ctx context.Context, page AuthPage) error {
	cookies, err := page.Cookies(ctx)
	if err != nil {
		return err
	}
	stored := make([]StoredCookie, 0, len(cookies))
	for _, c := range cookies {
		stored = append(stored, storedFrom(c))
	}
	data, err := json.MarshalIndent(stored, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode cookies: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(a.cookiesFile), 0o700); err != nil {
		return fmt.Errorf("failed to create cookie directory: %w", err)
	}
	if err := os.WriteFile(a.cookiesFile, data, 0o600); err != nil {
		return fmt.Errorf("failed to write cookies: %w", err)
	}
	a.logger.Info("Cookies saved.", zap.Int("count", len(stored)), zap.String("path", a.cookiesFile))
	return nil
}

// Logout signs the tab out when page is non-nil and deletes the cookie file.
// The saved session is loaded into the tab first so the sign-out applies to it.
func (a *Authenticator) Logout(ctx context.Context, page AuthPage) error {
	if page != nil {
		if _, err := a.restoreCookies(ctx, page); err != nil {
			a.logger.Warn("Could not restore session before logout.", zap.Error(err))
		}
		target := strings.TrimRight(originOr(a.baseURL), "/") + logoutPath
		if err := page.Navigate(ctx, target); err != nil {
			a.logger.Warn("Remote logout failed.", zap.Error(err))
		}
	}
	err := os.Remove(a.cookiesFile)
	if errors.Is(err, os.ErrNotExist) {
		a.logger.Info("No saved session to remove.")
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to delete cookies: %w", err)
	}
	a.logger.Info("Saved session removed.", zap.String("path", a.cookiesFile))
	return nil
}

func storedFrom(c *network.Cookie) StoredCookie {
	return StoredCookie{
		Name:     c.Name,
		Value:    c.Value,
		Domain:   c.Domain,
		Path:     c.Path,
		Expires:  c.Expires,
		HTTPOnly: c.HTTPOnly,
		Secure:   c.Secure,
		SameSite: c.SameSite.String(),
	}
}

func (c StoredCookie) param() *network.CookieParam {
	p := &network.CookieParam{
		Name:     c.Name,
		Value:    c.Value,
		Domain:   c.Domain,
		Path:     c.Path,
		HTTPOnly: c.HTTPOnly,
		Secure:   c.Secure,
	}
	if c.SameSite != "" {
		p.SameSite = network.CookieSameSite(c.SameSite)
	}
	if c.Expires > 0 {
		sec := int64(c.Expires)
		nsec := int64((c.Expires - float64(sec)) * float64(time.Second))
		expires := cdp.TimeSinceEpoch(time.Unix(sec, nsec))
		p.Expires = &expires
	}
	return p
}
