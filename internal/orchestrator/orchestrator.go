// File: internal/orchestrator/orchestrator.go
// Description: Runs a feed pass. Each post is scored by the advisor and, unless
// this is a dry run, handed to the executor. Collaborators arrive as interfaces
// so the loop is testable without a browser.

package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xkilldash9x/feedpilot/api/schemas"
	"github.com/xkilldash9x/feedpilot/internal/config"
	"github.com/xkilldash9x/feedpilot/internal/executor"
	"github.com/xkilldash9x/feedpilot/internal/humanoid"
	"github.com/xkilldash9x/feedpilot/internal/interpreter"
)

const skipNoID = "post has no identifiable id"

// Item is one scraped post and the surface for acting on it.
type Item struct {
	Post    schemas.Post
	Surface executor.Surface
}

// PostSource yields feed posts in page order and returns io.EOF when done.
type PostSource interface {
	Next(ctx context.Context) (Item, error)
}

// Decider produces a decision for a post.
type Decider interface {
	Decide(ctx context.Context, post schemas.Post) schemas.Decision
}

// Applier executes a decision against a post surface.
type Applier interface {
	Apply(ctx context.Context, subjectID string, surface executor.Surface, d schemas.Decision) schemas.ActionResult
}

// Options are the per-run knobs.
type Options struct {
	MaxPosts int
	DryRun   bool
}

// Orchestrator manages a single feed run.
type Orchestrator struct {
	advisor  Decider
	executor Applier
	pacer    *humanoid.Humanoid
	logger   *zap.Logger

	betweenPosts config.DelayRange
	now          func() time.Time
}

// New creates an Orchestrator. Every dependency is required.
func New(
	advisor Decider,
	exec Applier,
	pacer *humanoid.Humanoid,
	delays config.DelaysConfig,
	logger *zap.Logger,
) (*Orchestrator, error) {
	if advisor == nil ||
		exec == nil ||
		pacer == nil ||
		logger == nil {
		return nil, fmt.Errorf("cannot initialize orchestrator with nil dependencies")
	}
	return &Orchestrator{
		advisor:      advisor,
		executor:     exec,
		pacer:        pacer,
		logger:       logger.Named("orchestrator"),
		betweenPosts: delays.BetweenPosts,
		now:          time.Now,
	}, nil
}

// Run processes up to opts.MaxPosts posts from source in order.
func (o *Orchestrator) Run(ctx context.Context, source PostSource, opts Options) schemas.FeedReport {
	report := schemas.FeedReport{
		RunID:     uuid.NewString(),
		DryRun:    opts.DryRun,
		Outcomes:  []schemas.PostOutcome{},
		Errors:    []string{},
		StartedAt: o.now(),
	}
	log := o.logger.With(zap.String("run_id", report.RunID))
	log.Info("Processing feed.", zap.Int("max_posts", opts.MaxPosts), zap.Bool("dry_run", opts.DryRun))

	for report.Processed < opts.MaxPosts {
		if ctx.Err() != nil {
			log.Info("Feed run cancelled between posts.")
			break
		}

		item, err := source.Next(ctx)
		if err != nil {
			if !errors.Is(err, io.EOF) && ctx.Err() == nil {
				log.Error("Feed source failed.", zap.Error(err))
				report.Errors = append(report.Errors, fmt.Sprintf("source: %v", err))
			}
			break
		}

		outcome := o.process(ctx, item, opts, log.With(zap.Int("index", report.Processed+1)))
		report.Outcomes = append(report.Outcomes, outcome)
		report.Processed++
		if r := outcome.Result; r != nil {
			if r.Liked {
				report.Liked++
			}
			if r.Commented {
				report.Commented++
			}
			report.Errors = append(report.Errors, r.ErrorStrings()...)
		}

		if report.Processed < opts.MaxPosts {
			_ = o.pacer.Pause(ctx, o.betweenPosts)
		}
	}

	report.FinishedAt = o.now()
	log.Info("Feed run finished.",
		zap.Int("processed", report.Processed),
		zap.Int("liked", report.Liked),
		zap.Int("commented", report.Commented),
		zap.Int("errors", len(report.Errors)))
	return report
}

func (o *Orchestrator) process(ctx context.Context, item Item, opts Options, log *zap.Logger) schemas.PostOutcome {
	post := item.Post
	if !interpreter.IsKnown(post.ID) {
		post.ID = interpreter.PostID(post.URN)
	}
	if post.Author == "" {
		post.Author = "Unknown"
	}
	log = log.With(zap.String("subject_id", post.ID), zap.String("author", post.Author))

	// Cache files and ledger entries are keyed by id; an unknown id would alias unrelated posts.
	if !interpreter.IsKnown(post.ID) {
		log.Warn("Skipping post without an identifiable id.", zap.String("urn", post.URN))
		return schemas.PostOutcome{Post: post, Decision: schemas.NoAction(skipNoID), SkipReason: skipNoID}
	}

	d := o.advisor.Decide(ctx, post)
	log.Info("Post analyzed.",
		zap.Bool("should_like", d.ShouldLike),
		zap.Bool("should_comment", d.ShouldComment),
		zap.String("comment_text", d.CommentText),
		zap.String("reasoning", d.Reasoning))

	outcome := schemas.PostOutcome{Post: post, Decision: d}
	if opts.DryRun {
		log.Info("Dry run: no actions performed.")
		return outcome
	}

	res := o.executor.Apply(ctx, post.ID, item.Surface, d)
	log.Info("Actions applied.",
		zap.Bool("liked", res.Liked),
		zap.Bool("commented", res.Commented),
		zap.Strings("errors", res.ErrorStrings()))
	outcome.Result = &res
	return outcome
}

// SliceSource serves a fixed list of posts.
type SliceSource struct {
	items []Item
	pos   int
}

// NewSliceSource returns a source over items.
func NewSliceSource(items ...Item) *SliceSource {
	return &SliceSource{items: items}
}

func (s *SliceSource) Next(ctx context.Context) (Item, error) {
	if err := ctx.Err(); err != nil {
		return Item{}, err
	}
	if s.pos >= len(s.items) {
		return Item{}, io.EOF
	}
	it := s.items[s.pos]
	s.pos++
	return it, nil
}
