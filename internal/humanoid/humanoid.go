// Package humanoid paces UI interactions so they resemble a person: random
// pauses between steps and a keystroke cadence with rhythm and hold times.
package humanoid

import (
	"context"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/xkilldash9x/feedpilot/internal/config"
)

// Sleeper blocks for d or until ctx is done.
type Sleeper func(ctx context.Context, d time.Duration) error

// contextSleep is the production Sleeper.
func contextSleep(ctx context.Context, d time.Duration) error {
	return chromedp.Sleep(d).Do(ctx)
}

// Option configures a Humanoid.
type Option func(*Humanoid)

// WithRand fixes the random source, for reproducible tests.
func WithRand(rng *rand.Rand) Option {
	return func(h *Humanoid) { h.rng = rng }
}

// WithSleeper replaces the blocking primitive.
func WithSleeper(s Sleeper) Option {
	return func(h *Humanoid) { h.sleep = s }
}

// Humanoid owns the timing policy for one browser session.
type Humanoid struct {
	cfg    config.HumanoidConfig
	logger *zap.Logger
	sleep  Sleeper

	mu  sync.Mutex
	rng *rand.Rand
}

// New creates a Humanoid. When cfg.Enabled is false no pause ever blocks.
func New(cfg config.HumanoidConfig, logger *zap.Logger, opts ...Option) *Humanoid {
	h := &Humanoid{
		cfg:    cfg,
		logger: logger.Named("humanoid"),
		sleep:  contextSleep,
	}
	for _, opt := range opts {
		opt(h)
	}
	if h.rng == nil {
		h.rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return h
}

// NewInstant returns a Humanoid that never sleeps.
func NewInstant() *Humanoid {
	return New(config.HumanoidConfig{}, zap.NewNop(), WithRand(rand.New(rand.NewSource(1))))
}

// Enabled reports whether pauses actually block.
func (h *Humanoid) Enabled() bool { return h.cfg.Enabled }

// Draw picks a duration uniformly from r.
func (h *Humanoid) Draw(r config.DelayRange) time.Duration {
	if r.Max <= r.Min {
		return r.Min
	}
	h.mu.Lock()
	f := h.rng.Float64()
	h.mu.Unlock()
	return r.Min + time.Duration(f*float64(r.Max-r.Min))
}

// Pause waits for a random duration drawn from r.
func (h *Humanoid) Pause(ctx context.Context, r config.DelayRange) error {
	return h.wait(ctx, h.Draw(r))
}

// CognitivePause waits for a normally distributed "thinking" interval.
func (h *Humanoid) CognitivePause(ctx context.Context, meanMs, stdDevMs float64) error {
	h.mu.Lock()
	n := h.rng.NormFloat64()
	h.mu.Unlock()
	ms := math.Max(0, meanMs+n*stdDevMs)
	return h.wait(ctx, time.Duration(ms*float64(time.Millisecond)))
}

func (h *Humanoid) wait(ctx context.Context, d time.Duration) error {
	if !h.cfg.Enabled || d <= 0 {
		return ctx.Err()
	}
	return h.sleep(ctx, d)
}
