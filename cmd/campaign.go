package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xkilldash9x/feedpilot/api/schemas"
	"github.com/xkilldash9x/feedpilot/internal/browser"
	"github.com/xkilldash9x/feedpilot/internal/campaign"
)

// campaignFlags are shared by the outreach commands.
type campaignFlags struct {
	max    int
	dryRun bool
	output string
}

func (f *campaignFlags) register(cmd *cobra.Command, noun string) {
	cmd.Flags().IntVar(&f.max, "max", 0, fmt.Sprintf("Maximum %s to send in this run (default: the remaining daily allowance).", noun))
	cmd.Flags().BoolVar(&f.dryRun, "dry-run", false, "Walk the candidates without sending anything.")
	cmd.Flags().StringVarP(&f.output, "output", "o", "", "Write the run report as JSON to this file.")
}

// composer loads templates from the configured file and attaches the model
// as a refiner when refinement is enabled and the model is reachable. The
// returned close function releases the model client.
func (a *app) composer(ctx context.Context, templatesFile string, defaults []string, logger *zap.Logger, opts ...campaign.ComposerOption) (*campaign.Composer, func(), error) {
	path, err := a.cfg.Paths().Resolve(templatesFile)
	if err != nil {
		return nil, nil, err
	}
	templates := campaign.LoadTemplates(path, defaults, logger)

	release := func() {}
	if a.cfg.Campaign().RefineWithLLM {
		llm, err := a.openLLM(ctx, a.cfg.LLM(), logger)
		if err != nil {
			logger.Warn("Language model unavailable; sending templates unrefined.", zap.Error(err))
		} else {
			opts = append(opts, campaign.WithRefiner(llm, a.cfg.LLM().APITimeout))
			release = func() { _ = llm.Close() }
		}
	}
	return campaign.NewComposer(templates, logger, opts...), release, nil
}

// runner builds the shared campaign loop over the workspace.
func (a *app) runner(ws *workspace, logger *zap.Logger) *campaign.Runner {
	opts := []campaign.RunnerOption{
		campaign.WithBreaker(a.cfg.Campaign().MaxConsecutiveFailures),
		campaign.WithCandidateDelay(a.cfg.Delays().BetweenCandidates),
	}
	if sink := ws.auditSink(); sink != nil {
		opts = append(opts, campaign.WithAuditSink(sink))
	}
	return campaign.NewRunner(ws.ledger, ws.pacer, logger, opts...)
}

// newConnectCmd creates the `connect` command.
func newConnectCmd(a *app) *cobra.Command {
	var (
		flags     campaignFlags
		searchURL string
	)

	connectCmd := &cobra.Command{
		Use:   "connect",
		Short: "Sends connection requests to the people in a search result",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg := a.cfg
			logger := a.logger.Named("connect")

			if _, err := browser.SearchPageURL(searchURL, 1); err != nil {
				return err
			}

			ws, err := a.openWorkspace(ctx)
			defer ws.Close(ctx)
			if err != nil {
				return fmt.Errorf("failed to initialize connect campaign: %w", err)
			}

			composer, release, err := a.composer(ctx, cfg.Paths().NoteTemplates, campaign.DefaultNoteTemplates, logger,
				campaign.WithMaxLength(campaign.NoteMaxLength))
			if err != nil {
				return err
			}
			defer release()

			c := campaign.NewConnectCampaign(a.runner(ws, logger), ws.pacer, composer,
				cfg.Limits().For(schemas.ActionConnection), cfg.Delays(), cfg.Timeouts(), logger)
			report := c.Run(ctx, browser.NewSearchSource(ws.page, searchURL, cfg, logger), campaign.Options{
				Max:    flags.max,
				DryRun: flags.dryRun,
			})

			printCampaignReport(cmd.OutOrStdout(), report)
			if err := writeReport(flags.output, report); err != nil {
				return err
			}
			return ctx.Err()
		},
	}

	connectCmd.Flags().StringVar(&searchURL, "search-url", "", "People search results URL to draw candidates from.")
	_ = connectCmd.MarkFlagRequired("search-url")
	flags.register(connectCmd, "requests")
	return connectCmd
}

// newMessageCmd creates the `message` command.
func newMessageCmd(a *app) *cobra.Command {
	var (
		flags      campaignFlags
		occupation string
	)

	messageCmd := &cobra.Command{
		Use:   "message",
		Short: "Sends direct messages to existing connections",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg := a.cfg
			logger := a.logger.Named("message")

			ws, err := a.openWorkspace(ctx)
			defer ws.Close(ctx)
			if err != nil {
				return fmt.Errorf("failed to initialize message campaign: %w", err)
			}

			composer, release, err := a.composer(ctx, cfg.Paths().MessageTemplates, campaign.DefaultMessageTemplates, logger)
			if err != nil {
				return err
			}
			defer release()

			m := campaign.NewMessageCampaign(a.runner(ws, logger), ws.pacer, composer,
				cfg.Limits().For(schemas.ActionMessage), cfg.Delays(), cfg.Timeouts(), logger)
			report := m.Run(ctx, browser.NewConnectionSource(ws.page, ws.pacer, cfg, logger), campaign.Options{
				Max:        flags.max,
				DryRun:     flags.dryRun,
				Occupation: occupation,
			})

			printCampaignReport(cmd.OutOrStdout(), report)
			if err := writeReport(flags.output, report); err != nil {
				return err
			}
			return ctx.Err()
		},
	}

	messageCmd.Flags().StringVar(&occupation, "occupation", "", "Only message connections whose occupation contains this text.")
	flags.register(messageCmd, "messages")
	return messageCmd
}
