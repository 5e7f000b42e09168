package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xkilldash9x/feedpilot/internal/browser"
	"github.com/xkilldash9x/feedpilot/internal/decision"
	"github.com/xkilldash9x/feedpilot/internal/executor"
	"github.com/xkilldash9x/feedpilot/internal/orchestrator"
)

// newFeedCmd creates the `feed` command.
func newFeedCmd(a *app) *cobra.Command {
	var (
		dryRun bool
		output string
	)

	feedCmd := &cobra.Command{
		Use:   "feed",
		Short: "Reads the feed and likes or comments where the model recommends it",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg := a.cfg
			logger := a.logger.Named("feed")

			ws, err := a.openWorkspace(ctx)
			defer ws.Close(ctx)
			if err != nil {
				return fmt.Errorf("failed to initialize feed run: %w", err)
			}

			cacheFailures := cfg.Decision().CacheFailures
			llm, err := a.openLLM(ctx, cfg.LLM(), logger)
			if err != nil {
				if !dryRun {
					return fmt.Errorf("failed to initialize LLM client: %w", err)
				}
				// Only cached decisions are available; failures must not poison the cache.
				logger.Warn("Language model unavailable; dry run continues with cached decisions only.", zap.Error(err))
				llm = offlineLLM{cause: err}
				cacheFailures = false
			}
			defer llm.Close()

			cacheDir, err := cfg.Paths().Resolve(cfg.Paths().CacheDir)
			if err != nil {
				return err
			}
			cache, err := decision.NewCache(cacheDir, logger, decision.WithCacheFailures(cacheFailures))
			if err != nil {
				return fmt.Errorf("failed to open decision cache: %w", err)
			}

			exec := executor.New(ws.ledger, ws.pacer, logger,
				executor.WithControls(executor.ControlsFromConfig(cfg.Selectors())),
				executor.WithDelays(cfg.Delays()),
				executor.WithElementWait(cfg.Timeouts().ElementWait),
				executor.WithDailyLimits(cfg.Limits()),
			)
			orch, err := orchestrator.New(decision.NewAdvisor(llm, cache, logger), exec, ws.pacer, cfg.Delays(), logger)
			if err != nil {
				return err
			}

			source := browser.NewFeedSource(ws.page, ws.pacer, cfg, logger)
			report := orch.Run(ctx, source, orchestrator.Options{
				MaxPosts: cfg.Feed().MaxPosts,
				DryRun:   dryRun,
			})

			printFeedReport(cmd.OutOrStdout(), report)
			if err := writeReport(output, report); err != nil {
				return err
			}
			return ctx.Err()
		},
	}

	feedCmd.Flags().IntP("posts", "n", 0, "Number of posts to process. (Overrides config/env)")
	bindFlag(feedCmd, "posts", "feed.max_posts")
	feedCmd.Flags().BoolVar(&dryRun, "dry-run", false, "Decide for each post but perform no actions.")
	feedCmd.Flags().StringVarP(&output, "output", "o", "", "Write the run report as JSON to this file.")
	return feedCmd
}
