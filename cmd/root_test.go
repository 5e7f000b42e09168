package cmd

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCmd_VersionFlag(t *testing.T) {
	out, err := execute(NewRootCommand(), "--version")
	require.NoError(t, err)
	assert.Contains(t, out, "feedpilot version "+Version)
}

func TestVersionCmd(t *testing.T) {
	out, err := execute(NewRootCommand(), "version")
	require.NoError(t, err)
	assert.Equal(t, "feedpilot version "+Version+"\n", out)
}

func TestRootCmd_NoArgsShowsHelp(t *testing.T) {
	out, err := execute(NewRootCommand())
	require.NoError(t, err)
	assert.Contains(t, out, "feedpilot reads your LinkedIn feed")
	for _, name := range []string{"feed", "connect", "message", "logout", "logs", "runs", "version"} {
		assert.Contains(t, out, name)
	}
}

// stubRun replaces a subcommand's RunE so only configuration loading is exercised.
func stubRun(t *testing.T, root *cobra.Command, name string) {
	t.Helper()
	findCommand(t, root, name).RunE = func(*cobra.Command, []string) error { return nil }
}

func TestConfigLoading(t *testing.T) {
	t.Run("DefaultsAndEnvironment", func(t *testing.T) {
		env := newTestEnv(t)
		t.Setenv("FEEDPILOT_LIMITS_LIKES", "7")

		root := env.command()
		stubRun(t, root, "feed")
		_, err := execute(root, "feed")
		require.NoError(t, err)

		cfg := env.app.cfg
		require.NotNil(t, cfg)
		assert.Equal(t, 7, cfg.Limits().Likes)
		assert.Equal(t, 10, cfg.Limits().Comments, "untouched keys keep their defaults")
		assert.Equal(t, env.dataDir, cfg.Paths().DataDir)
		assert.NotNil(t, env.app.logger)
	})

	t.Run("ConfigFile", func(t *testing.T) {
		env := newTestEnv(t)
		path := filepath.Join(t.TempDir(), "feedpilot.yaml")
		require.NoError(t, os.WriteFile(path, []byte(`
limits:
  connections: 4
campaign:
  max_consecutive_failures: 2
feed:
  max_posts: 6
`), 0o600))

		root := env.command()
		stubRun(t, root, "feed")
		_, err := execute(root, "--config", path, "feed")
		require.NoError(t, err)

		cfg := env.app.cfg
		assert.Equal(t, 4, cfg.Limits().Connections)
		assert.Equal(t, 2, cfg.Campaign().MaxConsecutiveFailures)
		assert.Equal(t, 6, cfg.Feed().MaxPosts)
	})

	t.Run("FlagOverridesFileAndEnv", func(t *testing.T) {
		env := newTestEnv(t)
		t.Setenv("FEEDPILOT_FEED_MAX_POSTS", "9")

		root := env.command()
		stubRun(t, root, "feed")
		_, err := execute(root, "feed", "--posts", "3", "--headless")
		require.NoError(t, err)

		assert.Equal(t, 3, env.app.cfg.Feed().MaxPosts)
		assert.True(t, env.app.cfg.Browser().Headless)
	})

	t.Run("UnsetFlagKeepsEnv", func(t *testing.T) {
		env := newTestEnv(t)
		t.Setenv("FEEDPILOT_FEED_MAX_POSTS", "9")

		root := env.command()
		stubRun(t, root, "feed")
		_, err := execute(root, "feed")
		require.NoError(t, err)
		assert.Equal(t, 9, env.app.cfg.Feed().MaxPosts)
	})

	t.Run("MissingExplicitFile", func(t *testing.T) {
		env := newTestEnv(t)
		root := env.command()
		stubRun(t, root, "feed")
		_, err := execute(root, "--config", filepath.Join(t.TempDir(), "absent.yaml"), "feed")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "error reading config file")
	})

	t.Run("InvalidValues", func(t *testing.T) {
		env := newTestEnv(t)
		root := env.command()
		stubRun(t, root, "feed")
		_, err := execute(root, "feed", "--posts", "0")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "feed.max_posts")
	})
}

func TestBindFlag(t *testing.T) {
	c := &cobra.Command{Use: "x"}
	bindFlag(c, "posts", "feed.max_posts")
	assert.Equal(t, "feed.max_posts", c.Annotations["viper:posts"])
}
