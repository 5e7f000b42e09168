// internal/browser/scrape.go
package browser

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xkilldash9x/feedpilot/api/schemas"
	"github.com/xkilldash9x/feedpilot/internal/campaign"
	"github.com/xkilldash9x/feedpilot/internal/config"
	"github.com/xkilldash9x/feedpilot/internal/humanoid"
	"github.com/xkilldash9x/feedpilot/internal/orchestrator"
)

const (
	scrollStepPx       = 800
	defaultResultsWait = 20 * time.Second
)

const countUntaggedScript = `(function(sel, attr) {
	let n = 0;
	document.querySelectorAll(sel).forEach(el => { if (!el.hasAttribute(attr)) n++; });
	return n;
})(%s, %s)`

const tagCardsScript = `(function(sel, attr, refs) {
	const tagged = [];
	for (const el of document.querySelectorAll(sel)) {
		if (tagged.length >= refs.length) break;
		if (el.hasAttribute(attr)) continue;
		const ref = refs[tagged.length];
		el.setAttribute(attr, ref);
		tagged.push(ref);
	}
	return tagged;
})(%s, %s, %s)`

// scanned is one parsed card and the surface that addresses it.
type scanned[T any] struct {
	value   T
	surface *ElementSurface
}

// scanner tags cards that have not been seen yet, reads their markup and
// de-duplicates them by key.
type scanner[T any] struct {
	page      Page
	selector  string
	pollEvery time.Duration
	logger    *zap.Logger
	parse     func(markup string) (value T, key string, err error)
	seen      map[string]struct{}
}

func newScanner[T any](page Page, selector string, pollEvery time.Duration, logger *zap.Logger, parse func(string) (T, string, error)) *scanner[T] {
	return &scanner[T]{
		page:      page,
		selector:  selector,
		pollEvery: pollEvery,
		logger:    logger,
		parse:     parse,
		seen:      make(map[string]struct{}),
	}
}

func (s *scanner[T]) scan(ctx context.Context) ([]scanned[T], error) {
	var pending int
	if err := s.page.Evaluate(ctx, fmt.Sprintf(countUntaggedScript, jsonEncode(s.selector), jsonEncode(RefAttribute)), &pending); err != nil {
		return nil, fmt.Errorf("failed to count cards: %w", err)
	}
	if pending == 0 {
		return nil, nil
	}

	refs := make([]string, pending)
	for i := range refs {
		refs[i] = uuid.NewString()
	}
	var tagged []string
	script := fmt.Sprintf(tagCardsScript, jsonEncode(s.selector), jsonEncode(RefAttribute), jsonEncode(refs))
	if err := s.page.Evaluate(ctx, script, &tagged); err != nil {
		return nil, fmt.Errorf("failed to tag cards: %w", err)
	}

	out := make([]scanned[T], 0, len(tagged))
	for _, ref := range tagged {
		markup, err := s.page.OuterHTML(ctx, RefSelector(ref))
		if err != nil {
			if ctx.Err() != nil {
				return out, ctx.Err()
			}
			s.logger.Debug("Card vanished before it could be read.", zap.String("ref", ref), zap.Error(err))
			continue
		}
		value, key, err := s.parse(markup)
		if err != nil {
			s.logger.Debug("Skipping unreadable card.", zap.String("ref", ref), zap.Error(err))
			continue
		}
		if key != "" {
			if _, dup := s.seen[key]; dup {
				continue
			}
			s.seen[key] = struct{}{}
		}
		out = append(out, scanned[T]{value: value, surface: NewElementSurface(s.page, ref, s.pollEvery)})
	}
	return out, nil
}

func scrollDown(ctx context.Context, page Page) error {
	return page.Evaluate(ctx, fmt.Sprintf("window.scrollBy(0, %d)", scrollStepPx), nil)
}

// waitForCards waits for the first card of a listing.
func waitForCards(ctx context.Context, page Page, selector string, timeout time.Duration) error {
	if timeout <= 0 {
		timeout = defaultResultsWait
	}
	return page.WaitVisible(ctx, selector, timeout)
}

// FeedSource yields posts from the home feed, scrolling for more until
// feed.max_scroll_iterations is spent.
type FeedSource struct {
	page        Page
	pacer       *humanoid.Humanoid
	feedURL     string
	maxScrolls  int
	scrollDelay config.DelayRange
	resultsWait time.Duration
	logger      *zap.Logger
	cards       *scanner[schemas.Post]

	started bool
	scrolls int
	queue   []orchestrator.Item
}

var _ orchestrator.PostSource = (*FeedSource)(nil)

// NewFeedSource creates a feed source. Nothing is loaded until the first Next.
func NewFeedSource(page Page, pacer *humanoid.Humanoid, cfg config.Interface, logger *zap.Logger) *FeedSource {
	base := cfg.LinkedIn().BaseURL
	log := logger.Named("feed_source")
	return &FeedSource{
		page:        page,
		pacer:       pacer,
		feedURL:     cfg.LinkedIn().FeedURL,
		maxScrolls:  cfg.Feed().MaxScrollIterations,
		scrollDelay: cfg.Delays().Scroll,
		resultsWait: cfg.Timeouts().ResultsWait,
		logger:      log,
		cards: newScanner(page, FeedCardSelector, cfg.Timeouts().PollEvery, log, func(markup string) (schemas.Post, string, error) {
			post, err := ParsePostCard(markup, base)
			if err != nil {
				return post, "", err
			}
			if strings.TrimSpace(post.Text) == "" {
				return post, "", errors.New("post has no text")
			}
			return post, post.URN, nil
		}),
	}
}

func (f *FeedSource) Next(ctx context.Context) (orchestrator.Item, error) {
	if err := ctx.Err(); err != nil {
		return orchestrator.Item{}, err
	}
	if !f.started {
		f.started = true
		if err := f.page.Navigate(ctx, f.feedURL); err != nil {
			return orchestrator.Item{}, err
		}
		if err := waitForCards(ctx, f.page, FeedCardSelector, f.resultsWait); err != nil {
			if errors.Is(err, schemas.ErrWaitTimeout) {
				f.logger.Warn("Timeout waiting for feed to load.")
				return orchestrator.Item{}, io.EOF
			}
			return orchestrator.Item{}, err
		}
	}

	for len(f.queue) == 0 {
		found, err := f.cards.scan(ctx)
		if err != nil {
			return orchestrator.Item{}, err
		}
		for _, c := range found {
			f.queue = append(f.queue, orchestrator.Item{Post: c.value, Surface: c.surface})
		}
		if len(f.queue) > 0 {
			break
		}
		if f.scrolls >= f.maxScrolls {
			f.logger.Debug("Feed exhausted.", zap.Int("scrolls", f.scrolls))
			return orchestrator.Item{}, io.EOF
		}
		if err := scrollDown(ctx, f.page); err != nil {
			return orchestrator.Item{}, err
		}
		f.scrolls++
		if err := f.pacer.Pause(ctx, f.scrollDelay); err != nil {
			return orchestrator.Item{}, err
		}
	}

	item := f.queue[0]
	f.queue = f.queue[1:]
	return item, nil
}

// SearchSource walks the pages of a people search.
type SearchSource struct {
	page        Page
	searchURL   string
	maxPages    int
	resultsWait time.Duration
	logger      *zap.Logger
	cards       *scanner[schemas.Profile]

	pageNum int
	queue   []campaign.Candidate
}

var _ campaign.CandidateSource = (*SearchSource)(nil)

// NewSearchSource creates a source over searchURL, reading at most
// campaign.max_pages result pages.
func NewSearchSource(page Page, searchURL string, cfg config.Interface, logger *zap.Logger) *SearchSource {
	base := cfg.LinkedIn().BaseURL
	log := logger.Named("search_source")
	return &SearchSource{
		page:        page,
		searchURL:   searchURL,
		maxPages:    cfg.Campaign().MaxPages,
		resultsWait: cfg.Timeouts().ResultsWait,
		logger:      log,
		cards:       newScanner(page, SearchCardSelector, cfg.Timeouts().PollEvery, log, profileParser(ParseSearchCard, base)),
	}
}

func (s *SearchSource) Next(ctx context.Context) (campaign.Candidate, error) {
	for len(s.queue) == 0 {
		if err := ctx.Err(); err != nil {
			return campaign.Candidate{}, err
		}
		if s.maxPages > 0 && s.pageNum >= s.maxPages {
			return campaign.Candidate{}, io.EOF
		}
		s.pageNum++

		target, err := SearchPageURL(s.searchURL, s.pageNum)
		if err != nil {
			return campaign.Candidate{}, err
		}
		if err := s.page.Navigate(ctx, target); err != nil {
			return campaign.Candidate{}, err
		}
		if err := waitForCards(ctx, s.page, SearchCardSelector, s.resultsWait); err != nil {
			if errors.Is(err, schemas.ErrWaitTimeout) && s.pageNum > 1 {
				s.logger.Debug("No more search results.", zap.Int("page", s.pageNum))
				return campaign.Candidate{}, io.EOF
			}
			return campaign.Candidate{}, fmt.Errorf("waiting for search results: %w", err)
		}

		found, err := s.cards.scan(ctx)
		if err != nil {
			return campaign.Candidate{}, err
		}
		s.logger.Info("Found search results.", zap.Int("page", s.pageNum), zap.Int("count", len(found)))
		if len(found) == 0 {
			return campaign.Candidate{}, io.EOF
		}
		for _, c := range found {
			s.queue = append(s.queue, campaign.Candidate{Profile: c.value, Surface: c.surface})
		}
	}

	c := s.queue[0]
	s.queue = s.queue[1:]
	return c, nil
}

// SearchPageURL sets the page query parameter; page 1 is the URL as given.
func SearchPageURL(searchURL string, page int) (string, error) {
	u, err := url.Parse(searchURL)
	if err != nil {
		return "", fmt.Errorf("invalid search url %q: %w", searchURL, err)
	}
	if page <= 1 {
		return u.String(), nil
	}
	q := u.Query()
	q.Set("page", strconv.Itoa(page))
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// ConnectionSource yields first-degree connections from the connections list.
type ConnectionSource struct {
	page           Page
	pacer          *humanoid.Humanoid
	connectionsURL string
	maxScrolls     int
	scrollDelay    config.DelayRange
	resultsWait    time.Duration
	logger         *zap.Logger
	cards          *scanner[schemas.Profile]

	started bool
	scrolls int
	queue   []campaign.Candidate
}

var _ campaign.CandidateSource = (*ConnectionSource)(nil)

// NewConnectionSource creates a source over linkedin.connections_url.
func NewConnectionSource(page Page, pacer *humanoid.Humanoid, cfg config.Interface, logger *zap.Logger) *ConnectionSource {
	base := cfg.LinkedIn().BaseURL
	log := logger.Named("connection_source")
	return &ConnectionSource{
		page:           page,
		pacer:          pacer,
		connectionsURL: cfg.LinkedIn().ConnectionsURL,
		maxScrolls:     cfg.Feed().MaxScrollIterations,
		scrollDelay:    cfg.Delays().Scroll,
		resultsWait:    cfg.Timeouts().ResultsWait,
		logger:         log,
		cards:          newScanner(page, ConnectionCardSelector, cfg.Timeouts().PollEvery, log, profileParser(ParseConnectionCard, base)),
	}
}

func (c *ConnectionSource) Next(ctx context.Context) (campaign.Candidate, error) {
	if err := ctx.Err(); err != nil {
		return campaign.Candidate{}, err
	}
	if !c.started {
		c.started = true
		if err := c.page.Navigate(ctx, c.connectionsURL); err != nil {
			return campaign.Candidate{}, err
		}
		if err := waitForCards(ctx, c.page, ConnectionCardSelector, c.resultsWait); err != nil {
			return campaign.Candidate{}, fmt.Errorf("waiting for connections: %w", err)
		}
	}

	for len(c.queue) == 0 {
		found, err := c.cards.scan(ctx)
		if err != nil {
			return campaign.Candidate{}, err
		}
		for _, f := range found {
			c.queue = append(c.queue, campaign.Candidate{Profile: f.value, Surface: f.surface})
		}
		if len(c.queue) > 0 {
			break
		}
		if c.scrolls >= c.maxScrolls {
			return campaign.Candidate{}, io.EOF
		}
		if err := scrollDown(ctx, c.page); err != nil {
			return campaign.Candidate{}, err
		}
		c.scrolls++
		if err := c.pacer.Pause(ctx, c.scrollDelay); err != nil {
			return campaign.Candidate{}, err
		}
	}

	next := c.queue[0]
	c.queue = c.queue[1:]
	return next, nil
}

func profileParser(parse func(markup, base string) (schemas.Profile, error), base string) func(string) (schemas.Profile, string, error) {
	return func(markup string) (schemas.Profile, string, error) {
		p, err := parse(markup, base)
		if err != nil {
			return p, "", err
		}
		return p, p.URL, nil
	}
}
