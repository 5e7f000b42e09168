// internal/llmutil/parser.go
package llmutil

import (
	"regexp"
	"strings"
)

var (
	// Backticks are written as \x60 because raw strings cannot hold them.

	// fencedRegex extracts content wrapped in a markdown fence with an optional language tag.
	fencedRegex = regexp.MustCompile("(?s)^\x60\x60\x60[a-zA-Z]*\\s*(.*?)\\s*\x60\x60\x60$")
	// preambleRegex matches a leading "Here is the message:" style label on its own line.
	preambleRegex = regexp.MustCompile(`(?i)^(here is|here's|sure|certainly|refined message|message)[^\n]*:\s*\n`)
)

// CleanReply strips the formatting models tend to wrap free text in: a
// markdown fence, a one-line preamble and surrounding quotes.
func CleanReply(content string) string {
	content = strings.TrimSpace(content)
	if m := fencedRegex.FindStringSubmatch(content); len(m) > 1 {
		content = strings.TrimSpace(m[1])
	}
	if loc := preambleRegex.FindStringIndex(content); loc != nil && loc[1] < len(content) {
		content = strings.TrimSpace(content[loc[1]:])
	}
	return unquote(content)
}

func unquote(s string) string {
	for _, pair := range [][2]string{{`"`, `"`}, {"'", "'"}, {"“", "”"}} {
		if len(s) >= len(pair[0])+len(pair[1]) && strings.HasPrefix(s, pair[0]) && strings.HasSuffix(s, pair[1]) {
			return strings.TrimSpace(s[len(pair[0]) : len(s)-len(pair[1])])
		}
	}
	return s
}

// Truncate shortens s to at most maxLen bytes for log output.
func Truncate(s string, maxLen int) string {
	if maxLen <= 0 {
		return ""
	}
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
