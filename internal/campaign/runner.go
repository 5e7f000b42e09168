// Package campaign runs bulk, rate-limited outreach: connection requests and
// direct messages over paginated candidate lists.
package campaign

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
	"github.com/xkilldash9x/feedpilot/internal/humanoid"
	"github.com/xkilldash9x/feedpilot/internal/interpreter"
	"github.com/xkilldash9x/feedpilot/internal/ledger"
)

// ErrNotEligible is returned by an AttemptFunc that finds, once it starts,
// that the candidate has no usable action. The runner counts it as a skip.
var ErrNotEligible = errors.New("candidate not eligible")

// AttemptFunc performs the single action for a candidate and returns the
// details to record in the ledger.
type AttemptFunc func(ctx context.Context, c Candidate) (map[string]any, error)

// ProbeFunc reports whether the candidate exposes a usable action control.
type ProbeFunc func(ctx context.Context, c Candidate) bool

// Plan describes one campaign run.
type Plan struct {
	Kind       schemas.ActionKind
	DailyLimit int
	// Requested caps this run; zero means up to the daily limit.
	Requested  int
	DryRun     bool
	Source     CandidateSource
	Filter     func(schemas.Profile) bool
	HasControl ProbeFunc
	Attempt    AttemptFunc
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithAuditSink mirrors finished reports.
func WithAuditSink(s schemas.AuditSink) RunnerOption {
	return func(r *Runner) { r.audit = s }
}

// WithBreaker stops a run after n consecutive failed attempts. Zero disables it.
func WithBreaker(n int) RunnerOption {
	return func(r *Runner) { r.maxConsecutiveFailures = n }
}

// WithCandidateDelay sets the pause after each successful action.
func WithCandidateDelay(d config.DelayRange) RunnerOption {
	return func(r *Runner) { r.betweenCandidates = d }
}

// WithRunnerClock overrides the time source used for report timestamps.
func WithRunnerClock(now func() time.Time) RunnerOption {
	return func(r *Runner) { r.now = now }
}

// Runner is the loop shared by every campaign kind.
type Runner struct {
	ledger *ledger.Ledger
	pacer  *humanoid.Humanoid
	logger *zap.Logger
	audit  schemas.AuditSink

	maxConsecutiveFailures int
	betweenCandidates      config.DelayRange
	now                    func() time.Time
}

// NewRunner creates a Runner.
func NewRunner(l *ledger.Ledger, pacer *humanoid.Humanoid, logger *zap.Logger, opts ...RunnerOption) *Runner {
	r := &Runner{
		ledger:                 l,
		pacer:                  pacer,
		logger:                 logger.Named("campaign"),
		maxConsecutiveFailures: 5,
		betweenCandidates:      config.DelayRange{Min: 3 * time.Second, Max: 7 * time.Second},
		now:                    time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run executes plan. It never fails: problems end up in the report.
func (r *Runner) Run(ctx context.Context, plan Plan) (report schemas.CampaignReport) {
	report = schemas.CampaignReport{
		RunID:     uuid.NewString(),
		Kind:      plan.Kind,
		DryRun:    plan.DryRun,
		Errors:    []string{},
		StartedAt: r.now(),
	}
	log := r.logger.With(zap.String("run_id", report.RunID), zap.String("kind", string(plan.Kind)))
	defer func() {
		report.FinishedAt = r.now()
		log.Info("Campaign finished.",
			zap.Int("sent", report.Sent),
			zap.Int("skipped", report.Skipped),
			zap.Int("errors", len(report.Errors)),
			zap.String("stop_reason", string(report.StopReason)))
		if r.audit != nil {
			if err := r.audit.RecordRun(context.WithoutCancel(ctx), report); err != nil {
				log.Warn("Failed to mirror campaign report.", zap.Error(err))
			}
		}
	}()

	recent := r.ledger.CountRecent(plan.Kind, ledger.Day)
	if recent >= plan.DailyLimit {
		msg := fmt.Sprintf("daily limit reached (%d/%d)", recent, plan.DailyLimit)
		log.Warn("Daily limit reached; nothing to do.", zap.Int("recent", recent), zap.Int("limit", plan.DailyLimit))
		report.Errors = append(report.Errors, msg)
		report.StopReason = schemas.StopDailyLimit
		return report
	}

	budget := plan.DailyLimit - recent
	if plan.Requested > 0 && plan.Requested < budget {
		budget = plan.Requested
	}
	report.Budget = budget
	log.Info("Starting campaign.", zap.Int("budget", budget), zap.Int("sent_last_24h", recent), zap.Bool("dry_run", plan.DryRun))

	consecutiveFailures := 0
	eligible := 0
	for {
		if report.Sent >= budget || (plan.DryRun && eligible >= budget) {
			report.StopReason = schemas.StopBudget
			return report
		}
		if ctx.Err() != nil {
			report.StopReason = schemas.StopCancelled
			return report
		}

		cand, err := plan.Source.Next(ctx)
		if err != nil {
			switch {
			case errors.Is(err, io.EOF):
				report.StopReason = schemas.StopExhausted
			case ctx.Err() != nil:
				report.StopReason = schemas.StopCancelled
			default:
				log.Error("Candidate source failed.", zap.Error(err))
				report.Errors = append(report.Errors, fmt.Sprintf("source: %v", err))
				report.StopReason = schemas.StopSourceError
			}
			return report
		}

		// The current candidate runs to completion even if ctx is cancelled meanwhile.
		actx := context.WithoutCancel(ctx)
		if reason := r.ineligible(actx, plan, cand); reason != "" {
			log.Debug("Skipping candidate.", zap.String("subject_id", cand.Profile.ID), zap.String("name", cand.Profile.Name), zap.String("reason", reason))
			report.Skipped++
			continue
		}
		eligible++

		if plan.DryRun {
			log.Info("Dry run: would contact candidate.", zap.String("subject_id", cand.Profile.ID), zap.String("name", cand.Profile.Name))
			report.Skipped++
			continue
		}

		details, err := plan.Attempt(actx, cand)
		if errors.Is(err, ErrNotEligible) {
			log.Debug("Skipping candidate.", zap.String("subject_id", cand.Profile.ID), zap.String("name", cand.Profile.Name), zap.String("reason", err.Error()))
			report.Skipped++
			continue
		}
		if err != nil {
			consecutiveFailures++
			msg := fmt.Sprintf("%s (%s): %v", displayName(cand.Profile), cand.Profile.ID, err)
			log.Warn("Attempt failed.", zap.String("subject_id", cand.Profile.ID), zap.Error(err))
			report.Errors = append(report.Errors, msg)
			report.Skipped++
			if r.maxConsecutiveFailures > 0 && consecutiveFailures >= r.maxConsecutiveFailures {
				log.Error("Too many consecutive failures; stopping campaign.", zap.Int("failures", consecutiveFailures))
				report.StopReason = schemas.StopBreaker
				return report
			}
			continue
		}
		consecutiveFailures = 0

		if err := r.ledger.Record(actx, cand.Profile.ID, plan.Kind, details); err != nil {
			report.Errors = append(report.Errors, err.Error())
		}
		report.Sent++
		log.Info("Action sent.", zap.String("subject_id", cand.Profile.ID), zap.String("name", cand.Profile.Name), zap.Int("sent", report.Sent), zap.Int("budget", budget))

		if report.Sent < budget {
			_ = r.pacer.Pause(ctx, r.betweenCandidates)
		}
	}
}

// ineligible returns the reason a candidate is skipped, or "".
func (r *Runner) ineligible(ctx context.Context, plan Plan, c Candidate) string {
	switch {
	case !interpreter.IsKnown(c.Profile.ID):
		return "no profile id"
	case r.ledger.HasInteracted(c.Profile.ID, plan.Kind):
		return "already contacted"
	case plan.Filter != nil && !plan.Filter(c.Profile):
		return "filtered out"
	case c.Surface == nil:
		return "no surface"
	case plan.HasControl != nil && !plan.HasControl(ctx, c):
		return "no action control"
	}
	return ""
}

func displayName(p schemas.Profile) string {
	if p.Name == "" {
		return "unknown"
	}
	return p.Name
}
