package cmd

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/xkilldash9x/feedpilot/api/schemas"
	"github.com/xkilldash9x/feedpilot/internal/browser"
	"github.com/xkilldash9x/feedpilot/internal/config"
	"github.com/xkilldash9x/feedpilot/internal/humanoid"
	"github.com/xkilldash9x/feedpilot/internal/mocks"
	"github.com/xkilldash9x/feedpilot/internal/observability"
)

// fakePage is a browser tab that serves a scripted list of cards. Each
// listing scan pops one batch of refs; selectors it does not know resolve
// to nothing.
type fakePage struct {
	mu sync.Mutex

	location  string
	waitErr   error
	batches   [][]string
	cards     map[string]string
	navigated []string
	restored  int
}

func newFakePage() *fakePage {
	return &fakePage{
		location: "https://www.linkedin.com/feed/",
		cards:    make(map[string]string),
	}
}

// addBatch queues cards that appear together on the next scan.
func (p *fakePage) addBatch(cards ...[2]string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	refs := make([]string, 0, len(cards))
	for _, c := range cards {
		p.cards[c[0]] = c[1]
		refs = append(refs, c[0])
	}
	p.batches = append(p.batches, refs)
}

func (p *fakePage) Navigate(ctx context.Context, url string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.navigated = append(p.navigated, url)
	return ctx.Err()
}

func (p *fakePage) Location(context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.location, nil
}

func (p *fakePage) Evaluate(ctx context.Context, script string, res interface{}) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.mu.Lock()
	var v interface{}
	switch {
	case strings.Contains(script, "let n = 0"):
		n := 0
		if len(p.batches) > 0 {
			n = len(p.batches[0])
			if n == 0 {
				p.batches = p.batches[1:]
			}
		}
		v = n
	case strings.Contains(script, "const tagged"):
		v = p.batches[0]
		p.batches = p.batches[1:]
	}
	p.mu.Unlock()

	if res == nil || v == nil {
		return nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, res)
}

func (p *fakePage) WaitVisible(ctx context.Context, _ string, _ time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return p.waitErr
}

func (p *fakePage) OuterHTML(_ context.Context, selector string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for ref, markup := range p.cards {
		if browser.RefSelector(ref) == selector {
			return markup, nil
		}
	}
	return "", fmt.Errorf("%w: %s", schemas.ErrWaitTimeout, selector)
}

func (p *fakePage) Click(context.Context, string) error {
	return schemas.ErrControlNotFound
}

func (p *fakePage) SendKeys(context.Context, string, string) error {
	return schemas.ErrControlNotFound
}

func (p *fakePage) Cookies(context.Context) ([]*network.Cookie, error) {
	return []*network.Cookie{{Name: "li_at", Value: "session", Domain: ".linkedin.com", Path: "/"}}, nil
}

func (p *fakePage) SetCookies(_ context.Context, cookies []*network.CookieParam) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.restored += len(cookies)
	return nil
}

func (p *fakePage) Navigated() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.navigated...)
}

// fakeStore records what the commands mirror.
type fakeStore struct {
	mu           sync.Mutex
	interactions []schemas.Interaction
	runs         []schemas.CampaignReport
	recent       []schemas.CampaignReport
	closed       bool
}

func (s *fakeStore) RecordInteraction(_ context.Context, in schemas.Interaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.interactions = append(s.interactions, in)
	return nil
}

func (s *fakeStore) RecordRun(_ context.Context, report schemas.CampaignReport) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runs = append(s.runs, report)
	return nil
}

func (s *fakeStore) RecentRuns(_ context.Context, limit int) ([]schemas.CampaignReport, error) {
	if limit < len(s.recent) {
		return s.recent[:limit], nil
	}
	return s.recent, nil
}

func (s *fakeStore) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
}

// testEnv runs the command tree against fakes in an isolated data directory.
type testEnv struct {
	dataDir string
	page    *fakePage
	llm     *mocks.MockLLMClient
	llmErr  error
	store   *fakeStore
	app     *app

	browserErr error
	shutdowns  int
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	dir := t.TempDir()

	t.Setenv("FEEDPILOT_PATHS_DATA_DIR", dir)
	t.Setenv("FEEDPILOT_LOGGER_LOG_FILE", filepath.Join(dir, "feedpilot.log"))
	t.Setenv("FEEDPILOT_LOGGER_LEVEL", "error")
	t.Setenv("FEEDPILOT_TIMEOUTS_POLL_EVERY", "1ms")
	t.Setenv("FEEDPILOT_TIMEOUTS_RESULTS_WAIT", "10ms")
	t.Setenv("FEEDPILOT_DATABASE_URL", "")
	t.Setenv("FEEDPILOT_LLM_API_KEY", "")
	t.Setenv("GEMINI_API_KEY", "")

	observability.ResetForTest()
	t.Cleanup(observability.ResetForTest)

	llm := new(mocks.MockLLMClient)
	llm.On("Close").Return(nil).Maybe()

	return &testEnv{
		dataDir: dir,
		page:    newFakePage(),
		llm:     llm,
		store:   &fakeStore{},
	}
}

// saveSession writes a cookie file so login takes the saved-cookie path.
func (e *testEnv) saveSession(t *testing.T) {
	t.Helper()
	path := filepath.Join(e.dataDir, "cookies.json")
	require.NoError(t, os.WriteFile(path, []byte(`[{"name":"li_at","value":"session","domain":".linkedin.com","path":"/"}]`), 0o600))
}

// command builds a root command wired to the fakes. Tests may adjust it before running.
func (e *testEnv) command() *cobra.Command {
	rootCmd, a := newRootCmd()
	a.openBrowser = func(ctx context.Context, _ *config.Config, _ *zap.Logger) (browser.AuthPage, func(context.Context) error, error) {
		if e.browserErr != nil {
			return nil, nil, e.browserErr
		}
		return e.page, func(context.Context) error { e.shutdowns++; return nil }, nil
	}
	a.openLLM = func(context.Context, config.LLMConfig, *zap.Logger) (schemas.LLMClient, error) {
		if e.llmErr != nil {
			return nil, e.llmErr
		}
		return e.llm, nil
	}
	a.openStore = func(context.Context, string, *zap.Logger) (auditStore, error) {
		return e.store, nil
	}
	a.newPacer = func(config.HumanoidConfig, *zap.Logger) *humanoid.Humanoid {
		return humanoid.NewInstant()
	}
	e.app = a
	return rootCmd
}

func (e *testEnv) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	return execute(e.command(), args...)
}

func execute(rootCmd *cobra.Command, args ...string) (string, error) {
	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs(args)
	err := rootCmd.ExecuteContext(context.Background())
	return buf.String(), err
}

func findCommand(t *testing.T, root *cobra.Command, name string) *cobra.Command {
	t.Helper()
	for _, c := range root.Commands() {
		if c.Name() == name {
			return c
		}
	}
	t.Fatalf("command %q not registered", name)
	return nil
}

func postCard(id, author, text string) string {
	return fmt.Sprintf(`<div class="feed-shared-update-v2" data-urn="urn:li:activity:%s">
		<span class="feed-shared-actor__name">%s</span>
		<div class="feed-shared-update-v2__description">%s</div></div>`, id, author, text)
}

func searchCard(slug, name string) string {
	return fmt.Sprintf(`<li class="reusable-search__result-container">
		<span class="entity-result__title-text"><a href="/in/%s/">%s</a></span></li>`, slug, name)
}

func connectionCard(slug, name, job string) string {
	return fmt.Sprintf(`<li class="mn-connection-card"><a class="mn-connection-card__link" href="/in/%s/">
		<span class="mn-connection-card__name">%s</span>
		<span class="mn-connection-card__occupation">%s</span></a></li>`, slug, name, job)
}
