package e2e

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/storefront-e2e/internal/pages"
	"github.com/ternarybob/storefront-e2e/internal/report"
	"github.com/ternarybob/storefront-e2e/internal/scenario"
	"github.com/ternarybob/storefront-e2e/internal/snapshot"
	"github.com/ternarybob/storefront-e2e/internal/storefront"
	"github.com/ternarybob/storefront-e2e/internal/suite"
)

func runnerOptions(t *testing.T) scenario.Options {
	return scenario.Options{
		BaseURL:         baseURL,
		ScenarioTimeout: 3 * time.Minute,
		HookTimeout:     30 * time.Second,
		ArtifactsDir:    filepath.Join(t.TempDir(), "artifacts"),
		Capture:         snapshot.Options{Screenshot: true, Document: true},
		Pages:           pages.DefaultOptions(),
		Fixtures:        set,
	}
}

func TestCatalogue(t *testing.T) {
	requireChrome(t)

	runner := scenario.NewRunner(chrome, runnerOptions(t), arbor.NewNoOpLogger())
	groups := suite.Catalogue(set, suite.Paths{Home: storefront.HomePath, AllModels: storefront.AllModelsPath})

	run := runner.Run(context.Background(), groups, nil)

	for _, result := range run.Results {
		t.Run(result.FullName(), func(t *testing.T) {
			if result.Failure != nil {
				t.Logf("logs:\n%v", result.Logs)
			}
			assert.Equal(t, scenario.StatusPassed, result.Status, "%+v", result.Failure)
		})
	}

	dir := t.TempDir()
	paths, err := report.NewService(nil).Write(dir, run, []string{report.FormatMarkdown, report.FormatHTML})
	require.NoError(t, err)
	assert.Len(t, paths, 2)
}

func TestFailureCapturesArtifacts(t *testing.T) {
	requireChrome(t)

	opts := runnerOptions(t)
	runner := scenario.NewRunner(chrome, opts, arbor.NewNoOpLogger())
	groups := []scenario.Group{{
		Name: "Artifacts",
		Scenarios: []scenario.Scenario{{
			Name: "Impossible result count",
			Run: func(ctx context.Context, env *scenario.Env) error {
				if err := env.Nav.NavigateToPage(ctx, storefront.AllModelsPath); err != nil {
					return err
				}
				return env.AllModels.AssertNoResults(ctx)
			},
		}},
	}}

	run := runner.Run(context.Background(), groups, nil)

	require.Len(t, run.Results, 1)
	result := run.Results[0]
	require.Equal(t, scenario.StatusFailed, result.Status)
	assert.Equal(t, scenario.FailureTimeout, result.Failure.Kind)
	require.NotNil(t, result.Artifacts)
	require.NotNil(t, result.Artifacts.Summary)
	assert.Equal(t, storefront.PageSize, result.Artifacts.Summary.ResultCount)
	assert.FileExists(t, filepath.Join(result.Artifacts.Dir, snapshot.ScreenshotFile))
	assert.FileExists(t, filepath.Join(result.Artifacts.Dir, snapshot.MarkdownFile))
}
