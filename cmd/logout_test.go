package cmd

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogoutCmd(t *testing.T) {
	t.Run("RemovesSavedSession", func(t *testing.T) {
		env := newTestEnv(t)
		env.saveSession(t)

		out, err := env.run(t, "logout")
		require.NoError(t, err)
		assert.Contains(t, out, "Logged out.")
		assert.NoFileExists(t, filepath.Join(env.dataDir, "cookies.json"))
		assert.Empty(t, env.page.Navigated(), "no browser without --browser")
	})

	t.Run("NothingToRemove", func(t *testing.T) {
		env := newTestEnv(t)
		_, err := env.run(t, "logout")
		require.NoError(t, err)
	})

	t.Run("SignsOutInBrowser", func(t *testing.T) {
		env := newTestEnv(t)
		env.saveSession(t)

		_, err := env.run(t, "logout", "--browser")
		require.NoError(t, err)
		assert.Equal(t, []string{"https://www.linkedin.com/m/logout/"}, env.page.Navigated())
		assert.Equal(t, 1, env.page.restored)
		assert.Equal(t, 1, env.shutdowns)
		assert.NoFileExists(t, filepath.Join(env.dataDir, "cookies.json"))
	})
}
