package scenario

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/storefront-e2e/internal/browser"
	"github.com/ternarybob/storefront-e2e/internal/browser/browsertest"
	"github.com/ternarybob/storefront-e2e/internal/pages"
	"github.com/ternarybob/storefront-e2e/internal/poll"
	"github.com/ternarybob/storefront-e2e/internal/snapshot"
)

// sessions hands out fake sessions and remembers them
type sessions struct {
	mu     sync.Mutex
	opened []*browsertest.Session
	setup  func(s *browsertest.Session)
}

func (f *sessions) NewSession(ctx context.Context) (browser.Session, error) {
	s := browsertest.New()
	if f.setup != nil {
		f.setup(s)
	}
	f.mu.Lock()
	f.opened = append(f.opened, s)
	f.mu.Unlock()
	return s, nil
}

func testOptions(t *testing.T) Options {
	pageOpts := pages.DefaultOptions()
	pageOpts.Timeouts.Default = 100 * time.Millisecond
	pageOpts.Poll = poll.Policy{Interval: 10 * time.Millisecond}
	return Options{
		BaseURL:         "http://store.test",
		ScenarioTimeout: 2 * time.Second,
		HookTimeout:     time.Second,
		ArtifactsDir:    t.TempDir(),
		Pages:           pageOpts,
	}
}

func pass(ctx context.Context, env *Env) error { return nil }

func TestRunner_StatusesAndFailureDetail(t *testing.T) {
	factory := &sessions{}
	runner := NewRunner(factory, testOptions(t), arbor.NewNoOpLogger())

	groups := []Group{{
		Name: "Home Filters",
		Scenarios: []Scenario{
			{Name: "passes", Run: func(ctx context.Context, env *Env) error {
				env.Logf("initial results: %d", 50)
				return nil
			}},
			{Name: "times out", Run: func(ctx context.Context, env *Env) error {
				return env.Step(ctx, "wait for update", func(ctx context.Context) error {
					_, err := env.AllModels.ExpectResultCount(ctx, poll.NotEquals(0))
					return err
				})
			}},
		},
	}}

	run := runner.Run(context.Background(), groups, nil)

	require.Len(t, run.Results, 2)
	assert.NotEmpty(t, run.ID)
	assert.False(t, run.Passed())
	assert.Equal(t, 1, run.Count(StatusPassed))
	assert.Equal(t, 1, run.Count(StatusFailed))

	passed := run.Results[0]
	assert.Equal(t, StatusPassed, passed.Status)
	assert.Equal(t, "Home Filters/passes", passed.FullName())
	require.Len(t, passed.Logs, 1)
	assert.Contains(t, passed.Logs[0], "initial results: 50")

	failed := run.Results[1]
	assert.Equal(t, StatusFailed, failed.Status)
	require.NotNil(t, failed.Failure)
	assert.Equal(t, FailureTimeout, failed.Failure.Kind)
	assert.Equal(t, "wait for update", failed.Failure.Step)
	assert.Equal(t, "not equals 0", failed.Failure.Expectation)
	assert.Equal(t, "0", failed.Failure.LastValue)
	assert.GreaterOrEqual(t, failed.Failure.Elapsed, 100*time.Millisecond)
	assert.Nil(t, failed.Artifacts)

	require.Len(t, factory.opened, 2)
	assert.NotSame(t, factory.opened[0], factory.opened[1])
	for _, s := range factory.opened {
		assert.True(t, s.Closed())
	}
}

func TestRunner_SerialGroupSkipsAfterFailure(t *testing.T) {
	runner := NewRunner(&sessions{}, testOptions(t), nil)
	groups := []Group{{
		Name:   "Valid Bed and Bath Combinations",
		Serial: true,
		Scenarios: []Scenario{
			{Name: "one", Run: pass},
			{Name: "two", Run: func(ctx context.Context, env *Env) error { return errors.New("boom") }},
			{Name: "three", Run: pass},
		},
	}}

	run := runner.Run(context.Background(), groups, nil)

	require.Len(t, run.Results, 3)
	assert.Equal(t, StatusPassed, run.Results[0].Status)
	assert.Equal(t, StatusFailed, run.Results[1].Status)
	assert.Equal(t, FailureError, run.Results[1].Failure.Kind)
	assert.Equal(t, StatusSkipped, run.Results[2].Status)
	assert.NotEmpty(t, run.Results[2].SkipReason)
}

func TestRunner_Filter(t *testing.T) {
	runner := NewRunner(&sessions{}, testOptions(t), nil)
	groups := []Group{
		{Name: "All Models Page Tests", Scenarios: []Scenario{{Name: "search", Run: pass}, {Name: "clear", Run: pass}}},
		{Name: "Navigation", Scenarios: []Scenario{{Name: "menus", Run: pass}}},
	}

	run := runner.Run(context.Background(), groups, regexp.MustCompile(`^All Models.*/clear$`))

	require.Len(t, run.Results, 1)
	assert.Equal(t, "All Models Page Tests/clear", run.Results[0].FullName())
}

func TestRunner_HooksRunAroundEachScenario(t *testing.T) {
	var calls []string
	runner := NewRunner(&sessions{}, testOptions(t), nil)
	groups := []Group{{
		Name: "Home Filters",
		BeforeEach: func(ctx context.Context, env *Env) error {
			calls = append(calls, "before")
			return env.Nav.NavigateToPage(ctx, "/shop/all-models")
		},
		AfterEach: func(ctx context.Context, env *Env) error {
			calls = append(calls, "after")
			return nil
		},
		Scenarios: []Scenario{
			{Name: "ok", Run: func(ctx context.Context, env *Env) error {
				calls = append(calls, "body")
				url, err := env.Session.URL(ctx)
				if err != nil {
					return err
				}
				if url != "/shop/all-models" {
					return errors.New("before-each did not navigate")
				}
				return nil
			}},
			{Name: "fails", Run: func(ctx context.Context, env *Env) error {
				calls = append(calls, "body")
				return errors.New("boom")
			}},
		},
	}}

	run := runner.Run(context.Background(), groups, nil)

	assert.Equal(t, []string{"before", "body", "after", "before", "body", "after"}, calls)
	assert.Equal(t, StatusPassed, run.Results[0].Status)
	assert.Equal(t, StatusFailed, run.Results[1].Status)
}

func TestRunner_FailingHooks(t *testing.T) {
	runner := NewRunner(&sessions{setup: func(s *browsertest.Session) {
		s.FailNavigation(errors.New("net::ERR_CONNECTION_REFUSED"))
	}}, testOptions(t), nil)

	bodyRan := false
	groups := []Group{
		{
			Name: "before fails",
			BeforeEach: func(ctx context.Context, env *Env) error {
				return env.Nav.NavigateToPage(ctx, "/shop/all-models")
			},
			Scenarios: []Scenario{{Name: "body", Run: func(ctx context.Context, env *Env) error {
				bodyRan = true
				return nil
			}}},
		},
		{
			Name:      "after fails",
			AfterEach: func(ctx context.Context, env *Env) error { return errors.New("reset failed") },
			Scenarios: []Scenario{{Name: "body", Run: pass}},
		},
	}

	run := runner.Run(context.Background(), groups, nil)

	require.Len(t, run.Results, 2)
	assert.False(t, bodyRan)
	assert.Equal(t, FailureNavigation, run.Results[0].Failure.Kind)
	assert.Equal(t, "before each", run.Results[0].Failure.Step)
	assert.Equal(t, StatusFailed, run.Results[1].Status)
	assert.Equal(t, "after each", run.Results[1].Failure.Step)
	assert.Equal(t, "reset failed", run.Results[1].Failure.Message)
}

func TestRunner_RecoversPanics(t *testing.T) {
	runner := NewRunner(&sessions{}, testOptions(t), nil)
	groups := []Group{{Name: "g", Scenarios: []Scenario{
		{Name: "panics", Run: func(ctx context.Context, env *Env) error {
			var set map[string]int
			set["x"] = 1
			return nil
		}},
		{Name: "still runs", Run: pass},
	}}}

	run := runner.Run(context.Background(), groups, nil)

	require.Len(t, run.Results, 2)
	assert.Equal(t, FailurePanic, run.Results[0].Failure.Kind)
	assert.Contains(t, run.Results[0].Failure.Message, "assignment to entry in nil map")
	assert.NotEmpty(t, run.Results[0].Failure.Stack)
	assert.Equal(t, StatusPassed, run.Results[1].Status)
}

func TestRunner_ScenarioDeadline(t *testing.T) {
	opts := testOptions(t)
	opts.ScenarioTimeout = 80 * time.Millisecond
	opts.Pages.Timeouts.Default = 5 * time.Second
	runner := NewRunner(&sessions{}, opts, nil)

	groups := []Group{{Name: "g", Scenarios: []Scenario{{Name: "slow", Run: func(ctx context.Context, env *Env) error {
		return env.AllModels.ExpectHomesTextVisible(ctx, 50)
	}}}}}

	start := time.Now()
	run := runner.Run(context.Background(), groups, nil)

	assert.Less(t, time.Since(start), time.Second)
	assert.Equal(t, FailureDeadline, run.Results[0].Failure.Kind)
}

func TestRunner_CapturesFailingPage(t *testing.T) {
	opts := testOptions(t)
	opts.Capture = snapshot.Options{Screenshot: true, Document: true}
	runner := NewRunner(&sessions{setup: func(s *browsertest.Session) {
		s.SetHTML(`<html><head><title>All Models</title></head><body><span>50 Homes</span></body></html>`)
	}}, opts, nil)

	reset := false
	groups := []Group{{
		Name:      "Home Filters",
		AfterEach: func(ctx context.Context, env *Env) error { reset = true; return nil },
		Scenarios: []Scenario{{Name: "Filter by Dimensions", Run: func(ctx context.Context, env *Env) error {
			return errors.New("results never changed")
		}}},
	}}

	run := runner.Run(context.Background(), groups, nil)

	require.Len(t, run.Results, 1)
	artifacts := run.Results[0].Artifacts
	require.NotNil(t, artifacts)
	assert.True(t, reset)
	assert.Equal(t, filepath.Join(opts.ArtifactsDir, run.ID[:8], "home-filters", "filter-by-dimensions"), artifacts.Dir)
	assert.FileExists(t, filepath.Join(artifacts.Dir, snapshot.ScreenshotFile))
	require.NotNil(t, artifacts.Summary)
	assert.Equal(t, 50, artifacts.Summary.HomesCount)

	entries, err := os.ReadDir(artifacts.Dir)
	require.NoError(t, err)
	assert.Len(t, entries, 4)
}

func TestRunner_SessionFailure(t *testing.T) {
	factory := SessionFactoryFunc(func(ctx context.Context) (browser.Session, error) {
		return nil, errors.New("chrome crashed")
	})
	run := NewRunner(factory, testOptions(t), nil).Run(context.Background(), []Group{{
		Name: "g", Scenarios: []Scenario{{Name: "s", Run: pass}},
	}}, nil)

	require.Len(t, run.Results, 1)
	assert.Equal(t, "open session", run.Results[0].Failure.Step)
	assert.Equal(t, "chrome crashed", run.Results[0].Failure.Message)
}

func TestRunner_CancelledRunSkipsRemaining(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	runner := NewRunner(&sessions{}, testOptions(t), nil)
	groups := []Group{{Name: "g", Scenarios: []Scenario{
		{Name: "cancels", Run: func(ctx context.Context, env *Env) error { cancel(); return nil }},
		{Name: "never", Run: pass},
	}}}

	run := runner.Run(ctx, groups, nil)

	require.Len(t, run.Results, 2)
	assert.Equal(t, StatusPassed, run.Results[0].Status)
	assert.Equal(t, StatusSkipped, run.Results[1].Status)
	assert.Equal(t, "run cancelled", run.Results[1].SkipReason)
}

func TestSlug(t *testing.T) {
	tests := []struct{ in, want string }{
		{in: "Home Filters Tests", want: "home-filters-tests"},
		{in: "Filter by 2 bedroom(s) and 1 bathroom(s)", want: "filter-by-2-bedroom-s-and-1-bathroom-s"},
		{in: "Out of range filtering returns no results", want: "out-of-range-filtering-returns-no-results"},
		{in: "  ", want: "unnamed"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Slug(tt.in), tt.in)
	}
}

func TestRunner_RecordsScenarioDuration(t *testing.T) {
	runner := NewRunner(&sessions{}, testOptions(t), arbor.NewNoOpLogger())
	groups := []Group{{
		Name: "Timing",
		Scenarios: []Scenario{
			{Name: "sleeps", Run: func(ctx context.Context, env *Env) error {
				time.Sleep(150 * time.Millisecond)
				return nil
			}},
		},
	}}

	run := runner.Run(context.Background(), groups, nil)

	require.Len(t, run.Results, 1)
	assert.Equal(t, StatusPassed, run.Results[0].Status)
	assert.GreaterOrEqual(t, run.Results[0].Duration, 150*time.Millisecond)
}

func TestDescribe_NavigationErrorWrappingExpiredLoad(t *testing.T) {
	err := &browser.NavigationError{
		URL: "http://store.test/about",
		Err: &poll.PollTimeoutError{Name: "load state load", Expectation: "equals true"},
	}

	failure := describe("menu Company", err)

	assert.Equal(t, FailureNavigation, failure.Kind)
	assert.Equal(t, "menu Company", failure.Step)
}
