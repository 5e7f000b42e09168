package cmd

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/xkilldash9x/feedpilot/api/schemas"
	"github.com/xkilldash9x/feedpilot/internal/campaign"
)

const searchURL = "https://www.linkedin.com/search/results/people/?keywords=golang"

func TestConnectCmd_RequiresSearchURL(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.run(t, "connect")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"search-url"`)
}

func TestConnectCmd_RejectsBadURL(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.run(t, "connect", "--search-url", "://nope")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid search url")
	assert.Empty(t, env.page.Navigated(), "nothing is opened for a bad url")
}

func TestConnectCmd_DryRunMirrorsReport(t *testing.T) {
	env := newTestEnv(t)
	env.saveSession(t)
	t.Setenv("FEEDPILOT_DATABASE_URL", "postgres://feedpilot@localhost/feedpilot")
	t.Setenv("FEEDPILOT_CAMPAIGN_REFINE_WITH_LLM", "false")
	env.page.addBatch([2]string{"a", searchCard("ada-lovelace", "Ada Lovelace")})

	out, err := env.run(t, "connect", "--search-url", searchURL, "--dry-run", "--max", "1")
	require.NoError(t, err)

	assert.Contains(t, out, "(connection) complete (dry run)")
	assert.Contains(t, env.page.Navigated(), searchURL)
	require.Len(t, env.store.runs, 1)
	assert.Equal(t, schemas.ActionConnection, env.store.runs[0].Kind)
	assert.True(t, env.store.runs[0].DryRun)
	assert.Empty(t, env.store.interactions, "dry runs record nothing")
	env.llm.AssertNotCalled(t, "Generate", mock.Anything, mock.Anything)
}

func TestMessageCmd_DryRun(t *testing.T) {
	env := newTestEnv(t)
	env.saveSession(t)
	env.page.addBatch(
		[2]string{"c1", connectionCard("alan-turing", "Alan Turing", "Software Engineer")},
		[2]string{"c2", connectionCard("grace-hopper", "Grace Hopper", "Rear Admiral")},
	)

	reportPath := filepath.Join(t.TempDir(), "message.json")
	out, err := env.run(t, "message", "--dry-run", "--occupation", "engineer", "--output", reportPath)
	require.NoError(t, err)

	assert.Contains(t, out, "(message) complete (dry run)")
	assert.Equal(t, []string{"https://www.linkedin.com/feed/", "https://www.linkedin.com/mynetwork/invite-connect/connections/"}, env.page.Navigated())

	data, err := os.ReadFile(reportPath)
	require.NoError(t, err)
	var report schemas.CampaignReport
	require.NoError(t, json.Unmarshal(data, &report))
	assert.Equal(t, schemas.ActionMessage, report.Kind)
	assert.Equal(t, 10, report.Budget, "budget is the daily message limit")
}

func TestComposer(t *testing.T) {
	t.Run("TemplatesFromDataDir", func(t *testing.T) {
		env := newTestEnv(t)
		t.Setenv("FEEDPILOT_CAMPAIGN_REFINE_WITH_LLM", "false")
		require.NoError(t, os.MkdirAll(filepath.Join(env.dataDir, "templates"), 0o755))
		require.NoError(t, os.WriteFile(filepath.Join(env.dataDir, "templates", "messages.txt"), []byte("Hey {{name}}!\n\n"), 0o644))

		root := env.command()
		stubRun(t, root, "message")
		_, err := execute(root, "message")
		require.NoError(t, err)

		a := env.app
		c, release, err := a.composer(t.Context(), a.cfg.Paths().MessageTemplates, campaign.DefaultMessageTemplates, a.logger)
		require.NoError(t, err)
		defer release()
		assert.Equal(t, "Hey Ada Lovelace!", c.Compose(t.Context(), schemas.Profile{Name: "Ada Lovelace"}))
	})

	t.Run("RefinerFallsBackWhenModelUnavailable", func(t *testing.T) {
		env := newTestEnv(t)
		env.llmErr = assert.AnError

		root := env.command()
		stubRun(t, root, "connect")
		_, err := execute(root, "connect", "--search-url", searchURL)
		require.NoError(t, err)

		a := env.app
		c, release, err := a.composer(t.Context(), a.cfg.Paths().NoteTemplates, []string{"Hi {{first_name}}"}, a.logger)
		require.NoError(t, err)
		defer release()
		assert.Equal(t, "Hi Ada", c.Compose(t.Context(), schemas.Profile{Name: "Ada Lovelace"}))
	})
}
