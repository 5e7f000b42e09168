// Package executor applies a decision to one subject through its interactive
// surface. Every step is independently fault tolerant: a failure is recorded
// on the result and the next step still runs.
package executor

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/feedpilot/api/schemas"
	"github.com/xkilldash9x/feedpilot/internal/config"
	"github.com/xkilldash9x/feedpilot/internal/humanoid"
	"github.com/xkilldash9x/feedpilot/internal/ledger"
)

// Skip reasons reported on ActionResult.
const (
	SkipNotRecommended = "not recommended"
	SkipNoCommentText  = "no comment text"
	SkipAlreadyDone    = "already recorded"
	SkipDailyLimit     = "daily limit reached"
	SkipCancelled      = "cancelled"
	SkipNoSurface      = "no surface"
)

var errNoSurface = fmt.Errorf("%w: subject has no interactive surface", schemas.ErrControlNotFound)

// Option configures an Executor.
type Option func(*Executor)

// WithControls replaces the default selector chains.
func WithControls(c Controls) Option {
	return func(e *Executor) { e.controls = c }
}

// WithDelays sets the pacing policy.
func WithDelays(d config.DelaysConfig) Option {
	return func(e *Executor) { e.delays = d }
}

// WithElementWait bounds the wait for the comment editor.
func WithElementWait(d time.Duration) Option {
	return func(e *Executor) { e.elementWait = d }
}

// WithDailyLimits skips an action once its rolling 24h count reaches the limit.
// Zero limits are ignored.
func WithDailyLimits(l config.LimitsConfig) Option {
	return func(e *Executor) { e.limits = &l }
}

// Executor performs like and comment actions for feed posts.
type Executor struct {
	ledger      *ledger.Ledger
	pacer       *humanoid.Humanoid
	logger      *zap.Logger
	controls    Controls
	delays      config.DelaysConfig
	elementWait time.Duration
	limits      *config.LimitsConfig
}

// New creates an Executor bound to a ledger and a pacer.
func New(l *ledger.Ledger, pacer *humanoid.Humanoid, logger *zap.Logger, opts ...Option) *Executor {
	e := &Executor{
		ledger:      l,
		pacer:       pacer,
		logger:      logger.Named("executor"),
		controls:    DefaultControls(),
		elementWait: 10 * time.Second,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Apply runs the like branch and then the comment branch. It never returns an
// error: failures are collected on the result.
func (e *Executor) Apply(ctx context.Context, subjectID string, surface Surface, d schemas.Decision) schemas.ActionResult {
	res := schemas.ActionResult{SubjectID: subjectID}
	log := e.logger.With(zap.String("subject_id", subjectID))

	if surface == nil {
		res.AddError("reveal", errNoSurface)
		res.LikeSkipReason = SkipNoSurface
		res.CommentSkipReason = SkipNoSurface
		return res
	}

	if err := surface.Reveal(ctx); err != nil {
		log.Warn("Could not bring subject into view.", zap.Error(err))
		res.AddError("reveal", err)
	} else {
		_ = e.pacer.CognitivePause(ctx, 1000, 300)
	}

	e.like(ctx, subjectID, surface, d, &res, log)
	e.comment(ctx, subjectID, surface, d, &res, log)

	log.Info("Actions applied.",
		zap.Bool("liked", res.Liked),
		zap.Bool("commented", res.Commented),
		zap.Int("errors", len(res.Errors)))
	return res
}

// skipReason returns why an action of kind should not run, or "".
func (e *Executor) skipReason(ctx context.Context, subjectID string, kind schemas.ActionKind) string {
	switch {
	case e.ledger.HasInteracted(subjectID, kind):
		return SkipAlreadyDone
	case e.limitReached(kind):
		return SkipDailyLimit
	case ctx.Err() != nil:
		return SkipCancelled
	}
	return ""
}

func (e *Executor) limitReached(kind schemas.ActionKind) bool {
	if e.limits == nil {
		return false
	}
	limit := e.limits.For(kind)
	return limit > 0 && e.ledger.CountRecent(kind, ledger.Day) >= limit
}

func (e *Executor) like(ctx context.Context, subjectID string, surface Surface, d schemas.Decision, res *schemas.ActionResult, log *zap.Logger) {
	if !d.ShouldLike {
		res.LikeSkipReason = SkipNotRecommended
		return
	}
	if reason := e.skipReason(ctx, subjectID, schemas.ActionLike); reason != "" {
		res.LikeSkipReason = reason
		log.Debug("Skipping like.", zap.String("reason", reason))
		return
	}

	ctrl, err := Locate(ctx, surface, e.controls.Like)
	if err != nil {
		log.Warn("Like control not found.", zap.Error(err))
		res.AddError("like", err)
		return
	}

	pressed, err := ctrl.Pressed(ctx)
	if err != nil {
		log.Debug("Could not read like state; clicking anyway.", zap.Error(err))
	}
	if pressed {
		log.Info("Post already liked in the UI.")
	} else {
		if err := ctrl.Click(ctx); err != nil {
			log.Warn("Like click failed.", zap.Error(err))
			res.AddError("like", err)
			return
		}
		_ = e.pacer.Pause(ctx, e.delays.Action)
	}

	res.Liked = true
	if err := e.ledger.Record(ctx, subjectID, schemas.ActionLike, nil); err != nil {
		res.AddError("like", err)
	}
}

func (e *Executor) comment(ctx context.Context, subjectID string, surface Surface, d schemas.Decision, res *schemas.ActionResult, log *zap.Logger) {
	if !d.ShouldComment {
		res.CommentSkipReason = SkipNotRecommended
		return
	}
	if !d.WantsComment() {
		res.CommentSkipReason = SkipNoCommentText
		return
	}
	if reason := e.skipReason(ctx, subjectID, schemas.ActionComment); reason != "" {
		res.CommentSkipReason = reason
		log.Debug("Skipping comment.", zap.String("reason", reason))
		return
	}

	text := d.CommentText
	if err := e.submitComment(ctx, surface, text); err != nil {
		log.Warn("Comment failed.", zap.Error(err))
		res.AddError("comment", err)
		return
	}

	res.Commented = true
	res.CommentText = text
	log.Info("Posted comment.", zap.String("preview", preview(text, 30)))
	if err := e.ledger.Record(ctx, subjectID, schemas.ActionComment, map[string]any{"text": text}); err != nil {
		res.AddError("comment", err)
	}
}

func (e *Executor) submitComment(ctx context.Context, surface Surface, text string) error {
	open, err := Locate(ctx, surface, e.controls.CommentOpen)
	if err != nil {
		return fmt.Errorf("open: %w", err)
	}
	if err := open.Click(ctx); err != nil {
		return fmt.Errorf("open: %w", err)
	}
	_ = e.pacer.Pause(ctx, e.delays.Action)

	editor, err := LocateWait(ctx, surface, e.controls.CommentEditor, e.elementWait)
	if err != nil {
		return fmt.Errorf("editor: %w", err)
	}
	if err := e.pacer.TypeInto(ctx, editor, text); err != nil {
		return fmt.Errorf("type: %w", err)
	}
	_ = e.pacer.Pause(ctx, e.delays.BeforeSubmit)

	submit, err := Locate(ctx, surface, e.controls.CommentSubmit)
	if err != nil {
		return fmt.Errorf("submit: %w", err)
	}
	if err := submit.Click(ctx); err != nil {
		return fmt.Errorf("submit: %w", err)
	}
	_ = e.pacer.Pause(ctx, e.delays.AfterSubmit)
	return nil
}

func preview(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
