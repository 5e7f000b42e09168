package campaign

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/xkilldash9x/feedpilot/api/schemas"
	"github.com/xkilldash9x/feedpilot/internal/config"
	"github.com/xkilldash9x/feedpilot/internal/executor"
	"github.com/xkilldash9x/feedpilot/internal/humanoid"
)

// Selectors used by the messaging flow.
const (
	MessageButtonSelector = "button[aria-label^='Message']"
	MessageInputSelector  = ".msg-form__contenteditable"
	MessageSendSelector   = "button.msg-form__send-button"
	CloseOverlaySelector  = "button[data-control-name='overlay.close_conversation_window']"
	OverlayHeaderSelector = ".msg-overlay-bubble-header"
)

// MessageCampaign sends direct messages to existing connections.
type MessageCampaign struct {
	runner   *Runner
	pacer    *humanoid.Humanoid
	composer *Composer
	limit    int
	delays   config.DelaysConfig
	timeouts config.TimeoutsConfig
	logger   *zap.Logger
}

// NewMessageCampaign wires a messaging campaign.
func NewMessageCampaign(runner *Runner, pacer *humanoid.Humanoid, composer *Composer, limit int, delays config.DelaysConfig, timeouts config.TimeoutsConfig, logger *zap.Logger) *MessageCampaign {
	return &MessageCampaign{
		runner:   runner,
		pacer:    pacer,
		composer: composer,
		limit:    limit,
		delays:   delays,
		timeouts: timeouts,
		logger:   logger.Named("message"),
	}
}

// Run messages up to opts.Max connections drawn from source.
func (m *MessageCampaign) Run(ctx context.Context, source CandidateSource, opts Options) schemas.CampaignReport {
	return m.runner.Run(ctx, Plan{
		Kind:       schemas.ActionMessage,
		DailyLimit: m.limit,
		Requested:  opts.Max,
		DryRun:     opts.DryRun,
		Source:     source,
		Filter:     OccupationFilter(opts.Occupation),
		HasControl: m.hasMessageButton,
		Attempt:    m.attempt,
	})
}

// OccupationFilter keeps profiles whose occupation contains want, ignoring
// case. An empty want keeps everyone.
func OccupationFilter(want string) func(schemas.Profile) bool {
	want = strings.ToLower(strings.TrimSpace(want))
	if want == "" {
		return nil
	}
	return func(p schemas.Profile) bool {
		return strings.Contains(strings.ToLower(p.Occupation), want)
	}
}

func (m *MessageCampaign) hasMessageButton(ctx context.Context, cand Candidate) bool {
	_, err := cand.Surface.Find(ctx, executor.ScopeSubject, MessageButtonSelector)
	return err == nil
}

func (m *MessageCampaign) attempt(ctx context.Context, cand Candidate) (map[string]any, error) {
	s := cand.Surface

	btn, err := s.Find(ctx, executor.ScopeSubject, MessageButtonSelector)
	if err != nil {
		return nil, fmt.Errorf("message button: %w", err)
	}
	if err := btn.Click(ctx); err != nil {
		return nil, fmt.Errorf("message button: %w", err)
	}

	input, err := s.WaitFor(ctx, executor.ScopeDocument, MessageInputSelector, m.timeouts.ElementWait)
	if err != nil {
		return nil, fmt.Errorf("message box for %s: %w", displayName(cand.Profile), err)
	}

	text := m.composer.Compose(ctx, cand.Profile)
	if err := m.pacer.TypeInto(ctx, input, text); err != nil {
		return nil, fmt.Errorf("type message: %w", err)
	}
	_ = m.pacer.Pause(ctx, m.delays.BeforeSubmit)

	send, err := s.Find(ctx, executor.ScopeDocument, MessageSendSelector)
	if err != nil {
		return nil, fmt.Errorf("send button: %w", err)
	}
	if err := send.Click(ctx); err != nil {
		return nil, fmt.Errorf("send button: %w", err)
	}
	_ = m.pacer.Pause(ctx, m.delays.AfterSubmit)

	m.closeOverlay(ctx, s)

	details := cand.Profile.Details()
	details["message"] = text
	return details, nil
}

// closeOverlay dismisses the conversation window. Failure is harmless.
func (m *MessageCampaign) closeOverlay(ctx context.Context, s executor.Surface) {
	chain := executor.ParseChain([]string{
		"document:" + CloseOverlaySelector,
		"document:" + OverlayHeaderSelector,
	})
	ctrl, err := executor.Locate(ctx, s, chain)
	if err == nil {
		err = ctrl.Click(ctx)
	}
	if err != nil {
		m.logger.Debug("Could not close conversation window.", zap.Error(err))
	}
}
