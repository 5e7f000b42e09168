package cmd

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	jsoniter "github.com/json-iterator/go"

	"github.com/xkilldash9x/feedpilot/api/schemas"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// writeReport saves report as indented JSON. An empty path is a no-op.
func writeReport(path string, report interface{}) error {
	if path == "" {
		return nil
	}
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode report: %w", err)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create report directory: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write report to %s: %w", path, err)
	}
	return nil
}

func printFeedReport(w io.Writer, r schemas.FeedReport) {
	mode := ""
	if r.DryRun {
		mode = " (dry run)"
	}
	fmt.Fprintf(w, "\nFeed run %s complete%s.\n", r.RunID, mode)
	fmt.Fprintf(w, "  Posts processed: %d\n", r.Processed)
	fmt.Fprintf(w, "  Liked:           %d\n", r.Liked)
	fmt.Fprintf(w, "  Commented:       %d\n", r.Commented)
	for _, o := range r.Outcomes {
		if o.SkipReason != "" {
			fmt.Fprintf(w, "  - %s by %s: skipped (%s)\n", o.Post.ID, orDash(o.Post.Author), o.SkipReason)
			continue
		}
		fmt.Fprintf(w, "  - %s by %s: like=%t comment=%t\n", o.Post.ID, orDash(o.Post.Author), o.Decision.ShouldLike, o.Decision.WantsComment())
	}
	printErrors(w, r.Errors)
}

func printCampaignReport(w io.Writer, r schemas.CampaignReport) {
	mode := ""
	if r.DryRun {
		mode = " (dry run)"
	}
	fmt.Fprintf(w, "\nCampaign %s (%s) complete%s.\n", r.RunID, r.Kind, mode)
	fmt.Fprintf(w, "  Budget:  %d\n", r.Budget)
	fmt.Fprintf(w, "  Sent:    %d\n", r.Sent)
	fmt.Fprintf(w, "  Skipped: %d\n", r.Skipped)
	if r.StopReason != "" {
		fmt.Fprintf(w, "  Stopped: %s\n", r.StopReason)
	}
	printErrors(w, r.Errors)
}

func printErrors(w io.Writer, errs []string) {
	if len(errs) == 0 {
		return
	}
	fmt.Fprintf(w, "  Errors (%d):\n", len(errs))
	for _, e := range errs {
		fmt.Fprintf(w, "    %s\n", e)
	}
}

func orDash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	return s
}
