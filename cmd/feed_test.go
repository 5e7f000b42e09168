package cmd

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/xkilldash9x/feedpilot/api/schemas"
)

const likeNoComment = "LIKE: yes\nCOMMENT: no\nCOMMENT_TEXT: [N/A]\nREASONING: Relevant engineering news."

func TestFeedCmd_DryRun(t *testing.T) {
	env := newTestEnv(t)
	env.saveSession(t)
	env.page.addBatch([2]string{"r1", postCard("7001", "Grace Hopper", "We shipped the new compiler.")})
	env.llm.On("Generate", mock.Anything, mock.AnythingOfType("schemas.GenerationRequest")).Return(likeNoComment, nil).Once()

	reportPath := filepath.Join(t.TempDir(), "reports", "feed.json")
	out, err := env.run(t, "feed", "--dry-run", "--posts", "1", "--output", reportPath)
	require.NoError(t, err)

	assert.Contains(t, out, "(dry run)")
	assert.Contains(t, out, "Posts processed: 1")
	assert.Contains(t, out, "7001 by Grace Hopper: like=true comment=false")
	env.llm.AssertExpectations(t)

	assert.FileExists(t, filepath.Join(env.dataDir, "cache", "post_7001.json"), "decision is cached")
	assert.NoFileExists(t, filepath.Join(env.dataDir, "history.json"), "dry run records nothing")
	assert.Equal(t, 1, env.page.restored, "saved session reused")
	assert.Equal(t, 1, env.shutdowns, "browser shut down")

	data, err := os.ReadFile(reportPath)
	require.NoError(t, err)
	var report schemas.FeedReport
	require.NoError(t, json.Unmarshal(data, &report))
	assert.True(t, report.DryRun)
	assert.Equal(t, 1, report.Processed)
}

func TestFeedCmd_EmptyFeed(t *testing.T) {
	env := newTestEnv(t)
	env.saveSession(t)
	env.page.waitErr = schemas.ErrWaitTimeout

	out, err := env.run(t, "feed")
	require.NoError(t, err)
	assert.Contains(t, out, "Posts processed: 0")
	env.llm.AssertNotCalled(t, "Generate", mock.Anything, mock.Anything)
}

func TestFeedCmd_ModelUnavailable(t *testing.T) {
	t.Run("LiveRunFails", func(t *testing.T) {
		env := newTestEnv(t)
		env.saveSession(t)
		env.llmErr = errors.New("api key missing")

		_, err := env.run(t, "feed")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to initialize LLM client")
		assert.Equal(t, 1, env.shutdowns)
	})

	t.Run("DryRunDegradesWithoutCaching", func(t *testing.T) {
		env := newTestEnv(t)
		env.saveSession(t)
		env.llmErr = errors.New("api key missing")
		env.page.addBatch([2]string{"r1", postCard("7002", "Ada", "Hello network")})

		out, err := env.run(t, "feed", "--dry-run")
		require.NoError(t, err)
		assert.Contains(t, out, "7002 by Ada: like=false comment=false")
		assert.NoFileExists(t, filepath.Join(env.dataDir, "cache", "post_7002.json"))
	})
}

func TestFeedCmd_BrowserFailure(t *testing.T) {
	env := newTestEnv(t)
	env.browserErr = errors.New("chrome not found")

	_, err := env.run(t, "feed")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "chrome not found")
	assert.Zero(t, env.shutdowns)
}

func TestFeedCmd_MirrorsToAuditStore(t *testing.T) {
	env := newTestEnv(t)
	env.saveSession(t)
	env.page.waitErr = schemas.ErrWaitTimeout
	t.Setenv("FEEDPILOT_DATABASE_URL", "postgres://feedpilot@localhost/feedpilot")

	_, err := env.run(t, "feed")
	require.NoError(t, err)
	assert.True(t, env.store.closed, "store is released with the workspace")
}
