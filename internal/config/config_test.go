// File: internal/config/config_test.go
package config

import (
	"bytes"
	"path/filepath"
	"testing"
	"time"

	"github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xkilldash9x/feedpilot/api/schemas"
)

// -- Constructor and Defaults Tests --

func TestNewDefaultConfig(t *testing.T) {
	cfg := NewDefaultConfig()

	assert.Equal(t, "info", cfg.Logger().Level)
	assert.Equal(t, "feedpilot", cfg.Logger().ServiceName)
	assert.Equal(t, 20, cfg.Limits().Likes)
	assert.Equal(t, 10, cfg.Limits().Comments)
	assert.Equal(t, 15, cfg.Limits().Connections)
	assert.Equal(t, 10, cfg.Limits().Messages)
	assert.Equal(t, 1500*time.Millisecond, cfg.Delays().Action.Min)
	assert.Equal(t, 4500*time.Millisecond, cfg.Delays().Action.Max)
	assert.Equal(t, 10*time.Second, cfg.Timeouts().ElementWait)
	assert.Equal(t, 5, cfg.Campaign().MaxConsecutiveFailures)
	assert.Equal(t, 2, cfg.Feed().MaxPosts)
	assert.True(t, cfg.Decision().CacheFailures)
	assert.Equal(t, []string{"gemini-2.5-flash", "gemini-2.5-flash-lite"}, cfg.LLM().FastModels)
	assert.Equal(t, 5*time.Minute, cfg.Auth().LoginWait)
	assert.Equal(t, "https://www.linkedin.com/feed/", cfg.LinkedIn().FeedURL)
	assert.NoError(t, cfg.Validate())
}

func TestLimitsFor(t *testing.T) {
	l := LimitsConfig{Likes: 1, Comments: 2, Connections: 3, Messages: 4}
	assert.Equal(t, 1, l.For(schemas.ActionLike))
	assert.Equal(t, 2, l.For(schemas.ActionComment))
	assert.Equal(t, 3, l.For(schemas.ActionConnection))
	assert.Equal(t, 4, l.For(schemas.ActionMessage))
	assert.Equal(t, 0, l.For(schemas.ActionKind("share")))
}

func TestPathsResolve(t *testing.T) {
	home, err := homedir.Dir()
	require.NoError(t, err)

	p := PathsConfig{DataDir: "~/.feedpilot"}

	got, err := p.Resolve("history.json")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, ".feedpilot", "history.json"), got)

	abs := filepath.Join(t.TempDir(), "ledger.json")
	got, err = p.Resolve(abs)
	require.NoError(t, err)
	assert.Equal(t, abs, got, "absolute paths are not re-anchored")
}

// -- Validation Logic Tests --

func TestConfigValidation(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{"zero max posts", func(c *Config) { c.FeedCfg.MaxPosts = 0 }, "feed.max_posts must be a positive integer"},
		{"negative limit", func(c *Config) { c.LimitsCfg.Messages = -1 }, "limits.messages must not be negative"},
		{"inverted delay", func(c *Config) {
			c.DelaysCfg.Scroll = DelayRange{Min: 3 * time.Second, Max: time.Second}
		}, "delays.scroll"},
		{"negative breaker", func(c *Config) { c.CampaignCfg.MaxConsecutiveFailures = -2 }, "campaign.max_consecutive_failures"},
		{"no element wait", func(c *Config) { c.TimeoutsCfg.ElementWait = 0 }, "timeouts.element_wait"},
		{"unknown provider", func(c *Config) { c.LLMCfg.Provider = "openai" }, "unsupported provider"},
		{"no models", func(c *Config) {
			c.LLMCfg.FastModels = nil
			c.LLMCfg.PowerfulModels = nil
		}, "at least one model"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewDefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

// -- Factory Function Tests --

func TestNewConfigFromViper(t *testing.T) {
	t.Run("Successful Load from YAML", func(t *testing.T) {
		yamlBytes := []byte(`
limits:
  likes: 5
delays:
  between_candidates:
    min: 100ms
    max: 200ms
llm:
  fast_models: ["gemini-2.5-flash-lite"]
`)
		v := viper.New()
		SetDefaults(v)
		v.SetConfigType("yaml")
		require.NoError(t, v.ReadConfig(bytes.NewBuffer(yamlBytes)))

		cfg, err := NewConfigFromViper(v)
		require.NoError(t, err)

		assert.Equal(t, 5, cfg.Limits().Likes)
		assert.Equal(t, 10, cfg.Limits().Comments, "defaults survive partial files")
		assert.Equal(t, 100*time.Millisecond, cfg.Delays().BetweenCandidates.Min)
		assert.Equal(t, []string{"gemini-2.5-flash-lite"}, cfg.LLM().FastModels)
	})

	t.Run("Validation Failure", func(t *testing.T) {
		v := viper.New()
		SetDefaults(v)
		v.Set("feed.max_posts", 0)

		cfg, err := NewConfigFromViper(v)
		assert.Error(t, err)
		assert.Nil(t, cfg)
		assert.Contains(t, err.Error(), "invalid configuration")
		assert.Contains(t, err.Error(), "feed.max_posts must be a positive integer")
	})

	t.Run("Environment Variable Binding", func(t *testing.T) {
		v := viper.New()
		SetDefaults(v)
		v.SetConfigType("yaml")
		require.NoError(t, v.ReadConfig(bytes.NewBufferString(`
database:
  url: "postgres://configfile/db"
`)))

		t.Setenv("FEEDPILOT_DATABASE_URL", "postgres://envvar/db")
		t.Setenv("FEEDPILOT_LLM_API_KEY", "")
		t.Setenv("GEMINI_API_KEY", "gemini-key")

		cfg, err := NewConfigFromViper(v)
		require.NoError(t, err)
		assert.Equal(t, "postgres://envvar/db", cfg.Database().URL, "env overrides the config file")
		assert.Equal(t, "gemini-key", cfg.LLM().APIKey)
	})
}
