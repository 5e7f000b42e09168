// internal/browser/browser_helper_test.go
package browser

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/stretchr/testify/require"

	"github.com/xkilldash9x/feedpilot/internal/config"
)

// fakePage is an in-memory Page and CookieJar. Evaluate results come from
// the evaluate hook and are round-tripped through JSON like CDP values.
type fakePage struct {
	mu sync.Mutex

	evaluate func(script string) (interface{}, error)
	location func() string
	outer    map[string]string
	waitErr  error
	navErr   error
	clickErr error

	cookies    []*network.Cookie
	setCookies []*network.CookieParam

	scripts   []string
	navigated []string
	clicked   []string
	typed     map[string]string
}

func newFakePage() *fakePage {
	return &fakePage{
		outer: make(map[string]string),
		typed: make(map[string]string),
	}
}

func (f *fakePage) Navigate(ctx context.Context, targetURL string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.navigated = append(f.navigated, targetURL)
	return f.navErr
}

func (f *fakePage) Location(context.Context) (string, error) {
	f.mu.Lock()
	loc := f.location
	f.mu.Unlock()
	if loc == nil {
		return "about:blank", nil
	}
	return loc(), nil
}

func (f *fakePage) Evaluate(ctx context.Context, script string, res interface{}) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f.mu.Lock()
	f.scripts = append(f.scripts, script)
	hook := f.evaluate
	f.mu.Unlock()

	if hook == nil {
		return nil
	}
	v, err := hook(script)
	if err != nil || res == nil {
		return err
	}
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, res)
}

func (f *fakePage) WaitVisible(ctx context.Context, _ string, _ time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return f.waitErr
}

func (f *fakePage) OuterHTML(_ context.Context, selector string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	markup, ok := f.outer[selector]
	if !ok {
		return "", context.DeadlineExceeded
	}
	return markup, nil
}

func (f *fakePage) Click(_ context.Context, selector string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.clickErr != nil {
		return f.clickErr
	}
	f.clicked = append(f.clicked, selector)
	return nil
}

func (f *fakePage) SendKeys(_ context.Context, selector, keys string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.typed[selector] += keys
	return nil
}

func (f *fakePage) Cookies(context.Context) ([]*network.Cookie, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cookies, nil
}

func (f *fakePage) SetCookies(_ context.Context, cookies []*network.CookieParam) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.setCookies = append(f.setCookies, cookies...)
	return nil
}

func (f *fakePage) Scripts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.scripts...)
}

func (f *fakePage) Navigated() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.navigated...)
}

// cardPage scripts the scanner protocol: each scan pops one batch of refs.
type cardPage struct {
	*fakePage
	batches [][]string
	scrolls int
}

func newCardPage(batches ...[]string) *cardPage {
	p := &cardPage{fakePage: newFakePage(), batches: batches}
	p.evaluate = func(script string) (interface{}, error) {
		switch {
		case strings.Contains(script, "let n = 0"):
			if len(p.batches) == 0 {
				return 0, nil
			}
			n := len(p.batches[0])
			if n == 0 {
				p.batches = p.batches[1:]
			}
			return n, nil
		case strings.Contains(script, "const tagged"):
			batch := p.batches[0]
			p.batches = p.batches[1:]
			return batch, nil
		case strings.Contains(script, "window.scrollBy"):
			p.scrolls++
			return nil, nil
		}
		return nil, nil
	}
	return p
}

func (p *cardPage) addCard(ref, markup string) {
	p.outer[RefSelector(ref)] = markup
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.NewDefaultConfig()
	cfg.PathsCfg.DataDir = t.TempDir()
	cfg.TimeoutsCfg.PollEvery = time.Millisecond
	cfg.TimeoutsCfg.ResultsWait = 10 * time.Millisecond
	cfg.FeedCfg.MaxScrollIterations = 1
	cfg.CampaignCfg.MaxPages = 2
	require.NoError(t, cfg.Validate())
	return cfg
}
