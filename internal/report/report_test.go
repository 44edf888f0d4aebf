package report

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/storefront-e2e/internal/scenario"
	"github.com/ternarybob/storefront-e2e/internal/snapshot"
)

func sampleRun() *scenario.Run {
	started := time.Date(2026, 10, 19, 9, 30, 0, 0, time.UTC)
	return &scenario.Run{
		ID:       "4f1c2a9e-0000-4000-8000-000000000001",
		BaseURL:  "http://store.test",
		Started:  started,
		Duration: 42 * time.Second,
		Results: []scenario.Result{
			{
				Group:    "Home Filters Tests",
				Name:     "Filter by sections & reset filters",
				Status:   scenario.StatusPassed,
				Started:  started,
				Duration: 3200 * time.Millisecond,
			},
			{
				Group:    "Invalid Bed and Bath Combinations",
				Name:     "Invalid combination: 1 bedroom(s), 3 bathroom(s)",
				Status:   scenario.StatusFailed,
				Started:  started,
				Duration: 8100 * time.Millisecond,
				Failure: &scenario.Failure{
					Kind:        scenario.FailureTimeout,
					Step:        "assert no results",
					Message:     "timed out after 8s waiting for no results to be passes",
					Expectation: "not equals 50",
					LastValue:   "50",
					Elapsed:     8 * time.Second,
					Attempts:    80,
				},
				Logs:      []string{"[12ms] initial results: 50", "[2.1s] selected 1 bedroom | 3 bathrooms"},
				Artifacts: &snapshot.Artifacts{Dir: "results/artifacts/4f1c2a9e/invalid"},
			},
			{
				Group:      "Invalid Bed and Bath Combinations",
				Name:       "Invalid combination: 2 bedroom(s), 3 bathroom(s)",
				Status:     scenario.StatusSkipped,
				SkipReason: "an earlier scenario in this serial group failed",
			},
		},
	}
}

func TestMarkdown(t *testing.T) {
	md := Markdown(sampleRun())

	assert.True(t, strings.HasPrefix(md, "# "+Title))
	assert.Contains(t, md, "| 1 | 1 | 1 | 3 |")
	assert.Contains(t, md, "| Home Filters Tests | Filter by sections & reset filters | PASSED | 3.2s |")
	assert.Contains(t, md, "### Invalid Bed and Bath Combinations/Invalid combination: 1 bedroom(s), 3 bathroom(s)")
	assert.Contains(t, md, "- **Expected:** not equals 50")
	assert.Contains(t, md, "- **Waited:** 8s over 80 attempts")
	assert.Contains(t, md, "- **Artifacts:** results/artifacts/4f1c2a9e/invalid")
	assert.Contains(t, md, "selected 1 bedroom | 3 bathrooms")
}

func TestMarkdown_AllPassedHasNoFailureSection(t *testing.T) {
	run := sampleRun()
	run.Results = run.Results[:1]

	md := Markdown(run)
	assert.NotContains(t, md, "## Failures")

	run.Results = nil
	assert.Contains(t, Markdown(run), "No scenarios matched.")
}

func TestCellEscapesPipes(t *testing.T) {
	assert.Equal(t, `a \| b`, cell("a | b"))
}

func TestWrite_AllFormats(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "results")
	service := NewService(arbor.NewNoOpLogger())

	paths, err := service.Write(dir, sampleRun(), []string{FormatJSON, FormatMarkdown, FormatHTML, FormatPDF})
	require.NoError(t, err)
	require.Len(t, paths, 4)

	data, err := os.ReadFile(filepath.Join(dir, "report.json"))
	require.NoError(t, err)
	var decoded scenario.Run
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, sampleRun().ID, decoded.ID)
	require.Len(t, decoded.Results, 3)
	assert.Equal(t, scenario.FailureTimeout, decoded.Results[1].Failure.Kind)

	page, err := os.ReadFile(filepath.Join(dir, "report.html"))
	require.NoError(t, err)
	assert.Contains(t, string(page), "<title>"+Title+"</title>")
	assert.Contains(t, string(page), "<table>")
	assert.Contains(t, string(page), "<h3")

	pdf, err := os.ReadFile(filepath.Join(dir, "report.pdf"))
	require.NoError(t, err)
	assert.Equal(t, "%PDF", string(pdf[:4]))

	ctx, err := api.ReadContextFile(filepath.Join(dir, "report.pdf"))
	require.NoError(t, err)
	assert.GreaterOrEqual(t, ctx.PageCount, 1)
}

func TestWrite_NoFormats(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "none")

	paths, err := NewService(nil).Write(dir, sampleRun(), nil)
	require.NoError(t, err)
	assert.Empty(t, paths)
	assert.NoDirExists(t, dir)
}

func TestWrite_UnknownFormat(t *testing.T) {
	_, err := NewService(nil).Write(t.TempDir(), sampleRun(), []string{FormatJSON, "docx"})
	assert.ErrorContains(t, err, `unknown report format "docx"`)
}

func TestPDF_LongTablesPaginate(t *testing.T) {
	run := sampleRun()
	for i := 0; i < 120; i++ {
		run.Results = append(run.Results, scenario.Result{
			Group:    "Valid Bed and Bath Combinations",
			Name:     "Filter by 4 bedroom(s) and 2 bathroom(s) with a rather long scenario name that needs truncating",
			Status:   scenario.StatusPassed,
			Duration: time.Second,
		})
	}

	data, err := NewService(nil).PDF(Markdown(run))
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "long.pdf")
	require.NoError(t, os.WriteFile(path, data, 0644))
	ctx, err := api.ReadContextFile(path)
	require.NoError(t, err)
	assert.Greater(t, ctx.PageCount, 1)
}
