// internal/browser/surface.go
package browser

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/xkilldash9x/feedpilot/api/schemas"
	"github.com/xkilldash9x/feedpilot/internal/executor"
)

// RefAttribute tags elements the scrapers and surfaces hand out, so later
// lookups address exactly the element that was scraped.
const RefAttribute = "data-fp-ref"

const defaultPollEvery = 250 * time.Millisecond

// RefSelector returns the CSS selector for a tagged element.
func RefSelector(ref string) string {
	return fmt.Sprintf(`[%s=%s]`, RefAttribute, jsonEncode(ref))
}

// ElementSurface is the executor.Surface for one scraped card.
type ElementSurface struct {
	page      Page
	ref       string
	pollEvery time.Duration
}

var _ executor.Surface = (*ElementSurface)(nil)

// NewElementSurface binds a surface to the card tagged with ref.
func NewElementSurface(page Page, ref string, pollEvery time.Duration) *ElementSurface {
	if pollEvery <= 0 {
		pollEvery = defaultPollEvery
	}
	return &ElementSurface{page: page, ref: ref, pollEvery: pollEvery}
}

// Ref returns the card's tag value.
func (s *ElementSurface) Ref() string { return s.ref }

const revealScript = `(function(sel) {
	const el = document.querySelector(sel);
	if (!el) return false;
	el.scrollIntoView({behavior: 'smooth', block: 'center'});
	return true;
})(%s)`

func (s *ElementSurface) Reveal(ctx context.Context) error {
	var found bool
	if err := s.page.Evaluate(ctx, fmt.Sprintf(revealScript, jsonEncode(RefSelector(s.ref))), &found); err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("%w: card %s is no longer attached", schemas.ErrControlNotFound, s.ref)
	}
	return nil
}

// findScript resolves sel inside the card (or the document) and tags the
// match, reusing an existing tag.
const findScript = `(function(root, sel, attr, fresh) {
	let scope = document;
	if (root) {
		scope = document.querySelector(root);
		if (!scope) return {detached: true, ref: ''};
	}
	const el = scope.querySelector(sel);
	if (!el) return {detached: false, ref: ''};
	if (!el.hasAttribute(attr)) el.setAttribute(attr, fresh);
	return {detached: false, ref: el.getAttribute(attr)};
})(%s, %s, %s, %s)`

type findResult struct {
	Detached bool   `json:"detached"`
	Ref      string `json:"ref"`
}

func (s *ElementSurface) Find(ctx context.Context, scope executor.Scope, selector string) (executor.Control, error) {
	root := ""
	if scope == executor.ScopeSubject {
		root = RefSelector(s.ref)
	}
	script := fmt.Sprintf(findScript, jsonEncode(root), jsonEncode(selector), jsonEncode(RefAttribute), jsonEncode(uuid.NewString()))

	var res findResult
	if err := s.page.Evaluate(ctx, script, &res); err != nil {
		return nil, err
	}
	if res.Detached {
		return nil, fmt.Errorf("%w: card %s is no longer attached", schemas.ErrControlNotFound, s.ref)
	}
	if res.Ref == "" {
		return nil, fmt.Errorf("%w: %s in %s", schemas.ErrControlNotFound, selector, scope)
	}
	return &elementControl{page: s.page, ref: res.Ref}, nil
}

func (s *ElementSurface) WaitFor(ctx context.Context, scope executor.Scope, selector string, timeout time.Duration) (executor.Control, error) {
	deadline := time.Now().Add(timeout)
	ticker := time.NewTicker(s.pollEvery)
	defer ticker.Stop()

	for {
		ctrl, err := s.Find(ctx, scope, selector)
		if err == nil {
			return ctrl, nil
		}
		if !errors.Is(err, schemas.ErrControlNotFound) {
			return nil, err
		}
		if !time.Now().Before(deadline) {
			return nil, fmt.Errorf("%w: %s after %v", schemas.ErrWaitTimeout, selector, timeout)
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

// elementControl addresses one tagged element.
type elementControl struct {
	page Page
	ref  string
}

const jsClickScript = `(function(sel) {
	const el = document.querySelector(sel);
	if (!el) return false;
	el.click();
	return true;
})(%s)`

// Click prefers a dispatched mouse click and falls back to a DOM click for
// elements covered by overlays.
func (c *elementControl) Click(ctx context.Context) error {
	sel := RefSelector(c.ref)
	err := c.page.Click(ctx, sel)
	if err == nil {
		return nil
	}
	if ctx.Err() != nil {
		return err
	}

	var clicked bool
	if jsErr := c.page.Evaluate(ctx, fmt.Sprintf(jsClickScript, jsonEncode(sel)), &clicked); jsErr != nil {
		return errors.Join(err, jsErr)
	}
	if !clicked {
		return fmt.Errorf("%w: element %s detached before click", schemas.ErrControlNotFound, c.ref)
	}
	return nil
}

const pressedScript = `(function(sel) {
	const el = document.querySelector(sel);
	if (!el) return null;
	return el.getAttribute('aria-pressed') === 'true';
})(%s)`

func (c *elementControl) Pressed(ctx context.Context) (bool, error) {
	var pressed *bool
	if err := c.page.Evaluate(ctx, fmt.Sprintf(pressedScript, jsonEncode(RefSelector(c.ref))), &pressed); err != nil {
		return false, err
	}
	if pressed == nil {
		return false, fmt.Errorf("%w: element %s detached", schemas.ErrControlNotFound, c.ref)
	}
	return *pressed, nil
}

func (c *elementControl) SendKeys(ctx context.Context, keys string) error {
	return c.page.SendKeys(ctx, RefSelector(c.ref), keys)
}
