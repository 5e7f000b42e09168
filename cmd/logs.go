package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/hpcloud/tail"
	"github.com/mitchellh/go-homedir"
	"github.com/spf13/cobra"
	"go.uber.org/zap/zapcore"
)

// logFilter keeps JSON log lines at or above a level. Lines that are not JSON
// pass only when no level is set.
type logFilter struct {
	min    zapcore.Level
	active bool
}

func newLogFilter(level string) (logFilter, error) {
	if level == "" {
		return logFilter{}, nil
	}
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return logFilter{}, fmt.Errorf("invalid --level %q: %w", level, err)
	}
	return logFilter{min: lvl, active: true}, nil
}

func (f logFilter) keep(line string) bool {
	if !f.active {
		return true
	}
	var entry struct {
		Level string `json:"level"`
	}
	if err := json.Unmarshal([]byte(line), &entry); err != nil || entry.Level == "" {
		return false
	}
	lvl, err := zapcore.ParseLevel(entry.Level)
	if err != nil {
		return false
	}
	return lvl >= f.min
}

// followLog copies path to w line by line. With follow it keeps reading
// appended and rotated content until ctx is done.
func followLog(ctx context.Context, path string, follow bool, filter logFilter, w io.Writer) error {
	t, err := tail.TailFile(path, tail.Config{
		Follow:    follow,
		ReOpen:    follow,
		MustExist: true,
		Logger:    tail.DiscardingLogger,
	})
	if err != nil {
		return fmt.Errorf("failed to open log file %s: %w", path, err)
	}
	defer func() {
		_ = t.Stop()
		t.Cleanup()
	}()

	for {
		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.Canceled) {
				return nil
			}
			return ctx.Err()
		case line, ok := <-t.Lines:
			if !ok {
				return nil
			}
			if line.Err != nil {
				continue
			}
			text := strings.TrimRight(line.Text, "\r")
			if filter.keep(text) {
				fmt.Fprintln(w, text)
			}
		}
	}
}

// newLogsCmd creates the `logs` command.
func newLogsCmd(a *app) *cobra.Command {
	var (
		follow bool
		level  string
	)

	logsCmd := &cobra.Command{
		Use:   "logs",
		Short: "Prints the log file, optionally following new entries",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			filter, err := newLogFilter(level)
			if err != nil {
				return err
			}
			if a.cfg.Logger().LogFile == "" {
				return fmt.Errorf("file logging is disabled (logger.log_file is empty)")
			}
			path, err := homedir.Expand(a.cfg.Logger().LogFile)
			if err != nil {
				return err
			}
			return followLog(cmd.Context(), path, follow, filter, cmd.OutOrStdout())
		},
	}

	logsCmd.Flags().BoolVarP(&follow, "follow", "f", false, "Keep printing entries as they are written.")
	logsCmd.Flags().StringVar(&level, "level", "", "Only show entries at or above this level (debug, info, warn, error).")
	return logsCmd
}
