// Package interpreter turns free-form model output into a typed decision.
package interpreter

import (
	"regexp"
	"strings"

	"github.com/xkilldash9x/feedpilot/api/schemas"
)

// DefaultReasoning is used when the model omits a REASONING line.
const DefaultReasoning = "No reasoning provided"

type marker int

const (
	markerNone marker = iota
	markerLike
	markerComment
	markerCommentText
	markerReasoning
)

// markerPattern matches one marker at the start of a line. Leading whitespace,
// list bullets and markdown emphasis around the label are tolerated. The
// COMMENT_TEXT alternative must precede COMMENT so the longer label wins.
var markerPattern = regexp.MustCompile(`(?i)^[\s>*_\-#]*(COMMENT[_ ]TEXT|COMMENT|LIKE|REASONING)[*_\s]*:[*_\s]*(.*)$`)

func classify(label string) marker {
	switch strings.ToUpper(strings.ReplaceAll(label, " ", "_")) {
	case "LIKE":
		return markerLike
	case "COMMENT":
		return markerComment
	case "COMMENT_TEXT":
		return markerCommentText
	case "REASONING":
		return markerReasoning
	}
	return markerNone
}

// Interpret parses a LIKE/COMMENT/COMMENT_TEXT/REASONING response. It never
// fails: missing or malformed fields fall back to taking no action.
func Interpret(raw string) schemas.Decision {
	var (
		decision       schemas.Decision
		reasoningLines []string
		seenReasoning  bool
		current        = markerNone
		seen           = map[marker]bool{}
	)

	for _, line := range strings.Split(strings.ReplaceAll(raw, "\r\n", "\n"), "\n") {
		m := markerPattern.FindStringSubmatch(line)
		if m == nil {
			// Only REASONING may run over several lines.
			if current == markerReasoning {
				if t := strings.TrimSpace(line); t != "" {
					reasoningLines = append(reasoningLines, t)
				}
			}
			continue
		}

		current = classify(m[1])
		value := strings.TrimSpace(strings.TrimRight(m[2], "*_ \t"))
		// First occurrence wins; models sometimes echo the template afterwards.
		if seen[current] {
			current = markerNone
			continue
		}
		seen[current] = true

		switch current {
		case markerLike:
			decision.ShouldLike = parseBool(value)
		case markerComment:
			decision.ShouldComment = parseBool(value)
		case markerCommentText:
			decision.CommentText = stripBrackets(value)
		case markerReasoning:
			seenReasoning = true
			if r := stripBrackets(value); r != "" {
				reasoningLines = append(reasoningLines, r)
			}
		}
	}

	decision.Reasoning = strings.Join(reasoningLines, " ")
	if !seenReasoning || decision.Reasoning == "" {
		decision.Reasoning = DefaultReasoning
	}
	return decision
}

// parseBool accepts yes, y and true in any case; everything else is false.
func parseBool(value string) bool {
	v := strings.ToLower(strings.Trim(value, " \t.[]()\"'*"))
	if i := strings.IndexAny(v, " \t,;"); i >= 0 {
		v = v[:i]
	}
	switch v {
	case "yes", "y", "true":
		return true
	default:
		return false
	}
}

// stripBrackets removes one pair of enclosing square brackets. The [N/A]
// sentinel is kept intact so downstream suppression can recognise it.
func stripBrackets(value string) string {
	if schemas.IsNoComment(value) {
		return value
	}
	if len(value) >= 2 && strings.HasPrefix(value, "[") && strings.HasSuffix(value, "]") {
		return strings.TrimSpace(value[1 : len(value)-1])
	}
	return value
}
