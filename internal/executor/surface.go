package executor

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/xkilldash9x/feedpilot/api/schemas"
)

// Scope says where a selector is evaluated.
type Scope int

const (
	// ScopeSubject searches inside the subject's own element.
	ScopeSubject Scope = iota
	// ScopeDocument searches the whole page, for controls rendered elsewhere.
	ScopeDocument
)

func (s Scope) String() string {
	if s == ScopeDocument {
		return "document"
	}
	return "subject"
}

// Control is one actionable element.
type Control interface {
	Click(ctx context.Context) error
	// Pressed reports whether a toggle is already active (aria-pressed).
	Pressed(ctx context.Context) (bool, error)
	SendKeys(ctx context.Context, keys string) error
}

// Surface is the interactive handle for one subject, supplied by the scraper.
type Surface interface {
	// Reveal brings the subject into view.
	Reveal(ctx context.Context) error
	// Find returns the first match or an error wrapping schemas.ErrControlNotFound.
	Find(ctx context.Context, scope Scope, selector string) (Control, error)
	// WaitFor polls until the selector matches or returns schemas.ErrWaitTimeout.
	WaitFor(ctx context.Context, scope Scope, selector string, timeout time.Duration) (Control, error)
}

// Selector is a CSS query bound to a scope.
type Selector struct {
	Scope Scope
	Query string
}

func (s Selector) String() string {
	if s.Scope == ScopeDocument {
		return documentPrefix + s.Query
	}
	return s.Query
}

// Chain is an ordered list of fallbacks for the same control.
type Chain []Selector

const documentPrefix = "document:"

// ParseChain reads selector strings; a "document:" prefix selects ScopeDocument.
func ParseChain(entries []string) Chain {
	chain := make(Chain, 0, len(entries))
	for _, e := range entries {
		e = strings.TrimSpace(e)
		if e == "" {
			continue
		}
		if q, ok := strings.CutPrefix(e, documentPrefix); ok {
			chain = append(chain, Selector{Scope: ScopeDocument, Query: strings.TrimSpace(q)})
			continue
		}
		chain = append(chain, Selector{Scope: ScopeSubject, Query: e})
	}
	return chain
}

// Locate tries each selector in order and returns the first match.
func Locate(ctx context.Context, surface Surface, chain Chain) (Control, error) {
	var firstErr error
	for _, sel := range chain {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		ctrl, err := surface.Find(ctx, sel.Scope, sel.Query)
		if err == nil {
			return ctrl, nil
		}
		if !errors.Is(err, schemas.ErrControlNotFound) && firstErr == nil {
			firstErr = err
		}
	}
	if firstErr != nil {
		return nil, firstErr
	}
	return nil, fmt.Errorf("%w: tried %d selectors", schemas.ErrControlNotFound, len(chain))
}

// LocateWait checks every fallback once, then waits up to timeout for the
// primary selector, then checks the fallbacks a final time.
func LocateWait(ctx context.Context, surface Surface, chain Chain, timeout time.Duration) (Control, error) {
	if len(chain) == 0 {
		return nil, fmt.Errorf("%w: empty selector chain", schemas.ErrControlNotFound)
	}
	if ctrl, err := Locate(ctx, surface, chain); err == nil {
		return ctrl, nil
	}

	primary := chain[0]
	ctrl, waitErr := surface.WaitFor(ctx, primary.Scope, primary.Query, timeout)
	if waitErr == nil {
		return ctrl, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(chain) > 1 {
		if ctrl, err := Locate(ctx, surface, chain[1:]); err == nil {
			return ctrl, nil
		}
	}
	return nil, waitErr
}
