package cmd

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

// newRunsCmd creates the `runs` command.
func newRunsCmd(a *app) *cobra.Command {
	var limit int

	runsCmd := &cobra.Command{
		Use:   "runs",
		Short: "Lists recent campaign runs from the audit database",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			url := a.cfg.Database().URL
			if url == "" {
				return fmt.Errorf("database URL is not configured (FEEDPILOT_DATABASE_URL)")
			}
			if limit <= 0 {
				return fmt.Errorf("--limit must be positive")
			}

			s, err := a.openStore(ctx, url, a.logger)
			if err != nil {
				return fmt.Errorf("failed to connect to database: %w", err)
			}
			defer s.Close()

			runs, err := s.RecentRuns(ctx, limit)
			if err != nil {
				return err
			}
			if len(runs) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No campaign runs recorded yet.")
				return nil
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "STARTED\tKIND\tSENT\tSKIPPED\tBUDGET\tSTOP\tDRY RUN\tRUN ID")
			for _, r := range runs {
				fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%d\t%s\t%t\t%s\n",
					r.StartedAt.Local().Format(time.DateTime), r.Kind, r.Sent, r.Skipped, r.Budget,
					orDash(string(r.StopReason)), r.DryRun, r.RunID)
			}
			return tw.Flush()
		},
	}

	runsCmd.Flags().IntVar(&limit, "limit", 20, "Number of runs to show.")
	return runsCmd
}
