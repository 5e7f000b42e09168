package cmd

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/xkilldash9x/feedpilot/internal/config"
	"github.com/xkilldash9x/feedpilot/internal/observability"
)

// viperAnnotation marks a command annotation that binds a flag to a config key.
const viperAnnotation = "viper:"

// NewRootCommand builds a fresh command tree. Each call is independent, which
// keeps flag state from leaking between invocations.
func NewRootCommand() *cobra.Command {
	rootCmd, _ := newRootCmd()
	return rootCmd
}

func newRootCmd() (*cobra.Command, *app) {
	a := newApp()

	rootCmd := &cobra.Command{
		Use:   "feedpilot",
		Short: "feedpilot engages with your LinkedIn feed and runs outreach campaigns.",
		Long: `feedpilot reads your LinkedIn feed, asks a language model how to react to each post,
and likes or comments on your behalf. It can also send connection requests to search
results and direct messages to existing connections, within daily limits.`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.initialize(cmd)
		},
	}

	rootCmd.PersistentFlags().StringVarP(&a.cfgFile, "config", "c", "", "config file (default is ./config.yaml)")
	rootCmd.PersistentFlags().Bool("headless", false, "Run Chrome without a window. (Overrides config/env)")
	bindFlag(rootCmd, "headless", "browser.headless")
	rootCmd.SetVersionTemplate(`{{printf "%s version %s\n" .Name .Version}}`)

	rootCmd.AddCommand(
		newFeedCmd(a),
		newConnectCmd(a),
		newMessageCmd(a),
		newLogoutCmd(a),
		newLogsCmd(a),
		newRunsCmd(a),
		newVersionCmd(),
	)
	return rootCmd, a
}

// Execute runs the command tree under ctx. Errors are reported here; the
// caller only maps them to an exit code.
func Execute(ctx context.Context) error {
	rootCmd, a := newRootCmd()
	defer observability.Sync()

	err := rootCmd.ExecuteContext(ctx)
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) {
		if a.logger != nil {
			a.logger.Warn("Interrupted; state saved up to the last completed action.")
		}
		return err
	}
	if a.logger != nil {
		a.logger.Error("Command execution failed", zap.Error(err))
	}
	fmt.Fprintln(rootCmd.ErrOrStderr(), "Error:", err)
	return err
}

// bindFlag records that flag on cmd overrides the config key. The binding is
// applied in PersistentPreRunE, after flags are parsed.
func bindFlag(cmd *cobra.Command, flag, key string) {
	if cmd.Annotations == nil {
		cmd.Annotations = make(map[string]string)
	}
	cmd.Annotations[viperAnnotation+flag] = key
}

// initialize loads configuration and starts the global logger.
func (a *app) initialize(cmd *cobra.Command) error {
	v := viper.New()
	config.SetDefaults(v)

	if a.cfgFile != "" {
		v.SetConfigFile(a.cfgFile)
	} else {
		v.AddConfigPath(".")
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found; proceed with defaults/env vars
	}

	// Flags are bound on the command that declares them; inherited ones live on a parent.
	for c := cmd; c != nil; c = c.Parent() {
		for name, key := range c.Annotations {
			flagName, ok := strings.CutPrefix(name, viperAnnotation)
			if !ok {
				continue
			}
			if err := v.BindPFlag(key, cmd.Flags().Lookup(flagName)); err != nil {
				return fmt.Errorf("failed to bind --%s to %s: %w", flagName, key, err)
			}
		}
	}

	cfg, err := config.NewConfigFromViper(v)
	if err != nil {
		return err
	}
	a.cfg = cfg

	observability.InitializeLogger(cfg.Logger())
	a.logger = observability.GetLogger()
	a.logger.Debug("Starting feedpilot", zap.String("version", Version), zap.String("command", cmd.Name()))
	return nil
}
