package campaign

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/xkilldash9x/feedpilot/api/schemas"
	"github.com/xkilldash9x/feedpilot/internal/config"
	"github.com/xkilldash9x/feedpilot/internal/executor"
	"github.com/xkilldash9x/feedpilot/internal/humanoid"
)

// Selectors used by the connection flow.
const (
	ConnectButtonSelector   = "button.artdeco-button[aria-label^='Connect with']"
	MoreActionsSelector     = "button.artdeco-dropdown__trigger[aria-label^='More actions']"
	DropdownConnectSelector = "div.artdeco-dropdown__content li button[aria-label^='Connect with']"
	AddNoteSelector         = "button[aria-label='Add a note']"
	NoteInputSelector       = ".send-invite__custom-message"
	SendInvitationSelector  = "button[aria-label='Send invitation']"
	SendWithoutNoteSelector = "button[aria-label='Send now']"
)

// Options are the per-run knobs shared by the campaigns.
type Options struct {
	// Max caps this run; zero means the daily limit.
	Max    int
	DryRun bool
	// Occupation, when set, keeps only connections whose occupation contains it.
	Occupation string
}

// ConnectCampaign sends connection requests to search results.
type ConnectCampaign struct {
	runner   *Runner
	pacer    *humanoid.Humanoid
	composer *Composer
	limit    int
	delays   config.DelaysConfig
	timeouts config.TimeoutsConfig
	logger   *zap.Logger
}

// NewConnectCampaign wires a connection campaign.
func NewConnectCampaign(runner *Runner, pacer *humanoid.Humanoid, composer *Composer, limit int, delays config.DelaysConfig, timeouts config.TimeoutsConfig, logger *zap.Logger) *ConnectCampaign {
	return &ConnectCampaign{
		runner:   runner,
		pacer:    pacer,
		composer: composer,
		limit:    limit,
		delays:   delays,
		timeouts: timeouts,
		logger:   logger.Named("connect"),
	}
}

// Run sends up to opts.Max requests drawn from source.
func (c *ConnectCampaign) Run(ctx context.Context, source CandidateSource, opts Options) schemas.CampaignReport {
	return c.runner.Run(ctx, Plan{
		Kind:       schemas.ActionConnection,
		DailyLimit: c.limit,
		Requested:  opts.Max,
		DryRun:     opts.DryRun,
		Source:     source,
		HasControl: c.hasConnect,
		Attempt:    c.attempt,
	})
}

func (c *ConnectCampaign) hasConnect(ctx context.Context, cand Candidate) bool {
	_, err := executor.Locate(ctx, cand.Surface, executor.ParseChain([]string{ConnectButtonSelector, MoreActionsSelector}))
	return err == nil
}

// findConnect returns the connect button, opening the overflow menu if needed.
func (c *ConnectCampaign) findConnect(ctx context.Context, s executor.Surface) (executor.Control, error) {
	if btn, err := s.Find(ctx, executor.ScopeSubject, ConnectButtonSelector); err == nil {
		return btn, nil
	}
	more, err := s.Find(ctx, executor.ScopeSubject, MoreActionsSelector)
	if err != nil {
		return nil, fmt.Errorf("connect button: %w", err)
	}
	if err := more.Click(ctx); err != nil {
		return nil, fmt.Errorf("more actions: %w", err)
	}
	_ = c.pacer.CognitivePause(ctx, 1000, 200)
	btn, err := s.Find(ctx, executor.ScopeSubject, DropdownConnectSelector)
	if errors.Is(err, schemas.ErrControlNotFound) {
		// Pending and follow-only cards carry the menu without a connect entry.
		return nil, fmt.Errorf("%w: no connect entry under more actions", ErrNotEligible)
	}
	if err != nil {
		return nil, fmt.Errorf("connect in dropdown: %w", err)
	}
	return btn, nil
}

func (c *ConnectCampaign) attempt(ctx context.Context, cand Candidate) (map[string]any, error) {
	s := cand.Surface
	details := cand.Profile.Details()

	btn, err := c.findConnect(ctx, s)
	if err != nil {
		return nil, err
	}
	if err := btn.Click(ctx); err != nil {
		return nil, fmt.Errorf("connect click: %w", err)
	}
	_ = c.pacer.Pause(ctx, c.delays.BeforeSubmit)

	addNote, err := s.WaitFor(ctx, executor.ScopeDocument, AddNoteSelector, c.timeouts.NotePrompt)
	if err != nil {
		if !errors.Is(err, schemas.ErrWaitTimeout) {
			return nil, fmt.Errorf("add note prompt: %w", err)
		}
		// No note prompt: send the bare invitation.
		send, err := s.Find(ctx, executor.ScopeDocument, SendWithoutNoteSelector)
		if err != nil {
			return nil, fmt.Errorf("could not find send button for %s: %w", displayName(cand.Profile), err)
		}
		if err := send.Click(ctx); err != nil {
			return nil, fmt.Errorf("send now: %w", err)
		}
		return details, nil
	}

	if err := addNote.Click(ctx); err != nil {
		return nil, fmt.Errorf("add note: %w", err)
	}
	_ = c.pacer.Pause(ctx, c.delays.BeforeSubmit)

	input, err := s.WaitFor(ctx, executor.ScopeDocument, NoteInputSelector, c.timeouts.NotePrompt)
	if err != nil {
		return nil, fmt.Errorf("note input: %w", err)
	}
	note := c.composer.Compose(ctx, cand.Profile)
	if err := c.pacer.TypeInto(ctx, input, note); err != nil {
		return nil, fmt.Errorf("type note: %w", err)
	}
	_ = c.pacer.Pause(ctx, c.delays.BeforeSubmit)

	send, err := s.Find(ctx, executor.ScopeDocument, SendInvitationSelector)
	if err != nil {
		return nil, fmt.Errorf("send invitation: %w", err)
	}
	if err := send.Click(ctx); err != nil {
		return nil, fmt.Errorf("send invitation: %w", err)
	}
	details["note"] = note
	return details, nil
}
