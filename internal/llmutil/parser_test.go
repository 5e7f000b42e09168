package llmutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCleanReply(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"Plain", "  Hi Ada, great to connect.  ", "Hi Ada, great to connect."},
		{"Quoted", `"Hi Ada, great to connect."`, "Hi Ada, great to connect."},
		{"SmartQuoted", "“Hi Ada”", "Hi Ada"},
		{"Fenced", "```\nHi Ada\n```", "Hi Ada"},
		{"FencedWithTag", "```text\nHi Ada\n```", "Hi Ada"},
		{"Preamble", "Here is the refined message:\n\"Hi Ada\"", "Hi Ada"},
		{"PreambleOnly", "Message:", "Message:"},
		{"InnerQuotesKept", `She said "hi" to me`, `She said "hi" to me`},
		{"SingleQuoteChar", `"`, `"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CleanReply(tt.in))
		})
	}
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "abc", Truncate("abc", 5))
	assert.Equal(t, "ab...", Truncate("abcdef", 2))
	assert.Equal(t, "", Truncate("abc", 0))
}
