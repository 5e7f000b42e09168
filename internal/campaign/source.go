package campaign

import (
	"context"
	"io"
	"sync"

	"github.com/xkilldash9x/feedpilot/api/schemas"
	"github.com/xkilldash9x/feedpilot/internal/executor"
)

// Candidate is one profile card and the surface to act on it.
type Candidate struct {
	Profile schemas.Profile
	Surface executor.Surface
}

// CandidateSource yields candidates lazily, page by page. Next returns io.EOF
// once the source is exhausted.
type CandidateSource interface {
	Next(ctx context.Context) (Candidate, error)
}

// SliceSource serves a fixed list of candidates.
type SliceSource struct {
	mu    sync.Mutex
	items []Candidate
	pos   int
}

// NewSliceSource returns a source over items.
func NewSliceSource(items ...Candidate) *SliceSource {
	return &SliceSource{items: items}
}

func (s *SliceSource) Next(ctx context.Context) (Candidate, error) {
	if err := ctx.Err(); err != nil {
		return Candidate{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pos >= len(s.items) {
		return Candidate{}, io.EOF
	}
	c := s.items[s.pos]
	s.pos++
	return c, nil
}

// Consumed reports how many candidates were handed out.
func (s *SliceSource) Consumed() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pos
}
