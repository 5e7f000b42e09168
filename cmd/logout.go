package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xkilldash9x/feedpilot/internal/browser"
)

// newLogoutCmd creates the `logout` command.
func newLogoutCmd(a *app) *cobra.Command {
	var remote bool

	logoutCmd := &cobra.Command{
		Use:   "logout",
		Short: "Forgets the saved LinkedIn session",
		Long: `Deletes the saved session cookies so the next run asks you to log in again.
With --browser the session is also signed out on LinkedIn first.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := a.logger.Named("logout")

			auth, err := browser.NewAuthenticator(a.cfg, logger)
			if err != nil {
				return err
			}

			var page browser.AuthPage
			if remote {
				p, shutdown, err := a.openBrowser(ctx, a.cfg, logger)
				if err != nil {
					return err
				}
				defer func() {
					shutdownCtx, cancel := context.WithTimeout(browser.Detach(ctx), shutdownTimeout)
					defer cancel()
					if err := shutdown(shutdownCtx); err != nil {
						logger.Warn("Error during browser shutdown", zap.Error(err))
					}
				}()
				page = p
			}

			if err := auth.Logout(ctx, page); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Logged out.")
			return nil
		},
	}

	logoutCmd.Flags().BoolVar(&remote, "browser", false, "Also sign out of LinkedIn in the browser.")
	return logoutCmd
}
