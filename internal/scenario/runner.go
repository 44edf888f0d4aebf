package scenario

import (
	"context"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/storefront-e2e/internal/browser"
	"github.com/ternarybob/storefront-e2e/internal/common"
	"github.com/ternarybob/storefront-e2e/internal/fixtures"
	"github.com/ternarybob/storefront-e2e/internal/pages"
	"github.com/ternarybob/storefront-e2e/internal/snapshot"
)

const (
	defaultScenarioTimeout = 3 * time.Minute
	defaultHookTimeout     = 30 * time.Second
	captureTimeout         = 15 * time.Second
)

// SessionFactory opens an isolated browser session per scenario
type SessionFactory interface {
	NewSession(ctx context.Context) (browser.Session, error)
}

// SessionFactoryFunc adapts a function to SessionFactory
type SessionFactoryFunc func(ctx context.Context) (browser.Session, error)

func (f SessionFactoryFunc) NewSession(ctx context.Context) (browser.Session, error) {
	return f(ctx)
}

// Options configure a Runner
type Options struct {
	BaseURL         string
	ScenarioTimeout time.Duration // budget for before-each plus the body
	HookTimeout     time.Duration // budget for after-each
	ArtifactsDir    string        // failure captures go under <dir>/<run>/<group>/<scenario>
	Capture         snapshot.Options
	Pages           pages.Options
	Fixtures        *fixtures.Set
}

// OptionsFromConfig builds runner options from the suite configuration
func OptionsFromConfig(config *common.Config, set *fixtures.Set, logger arbor.ILogger) Options {
	return Options{
		BaseURL:         config.Site.BaseURL,
		ScenarioTimeout: common.ParseDuration(config.Timeouts.Scenario, defaultScenarioTimeout),
		ArtifactsDir:    filepath.Join(config.Output.ResultsDir, "artifacts"),
		Capture: snapshot.Options{
			Screenshot: config.Output.Screenshots,
			Document:   config.Output.Snapshots,
		},
		Pages:    pages.OptionsFromConfig(config, logger),
		Fixtures: set,
	}
}

// Runner executes groups of scenarios one at a time
type Runner struct {
	factory   SessionFactory
	opts      Options
	logger    arbor.ILogger
	snapshots *snapshot.Service
}

// NewRunner creates a runner that opens sessions from factory
func NewRunner(factory SessionFactory, opts Options, logger arbor.ILogger) *Runner {
	if logger == nil {
		logger = arbor.NewNoOpLogger()
	}
	if opts.ScenarioTimeout <= 0 {
		opts.ScenarioTimeout = defaultScenarioTimeout
	}
	if opts.HookTimeout <= 0 {
		opts.HookTimeout = defaultHookTimeout
	}
	return &Runner{
		factory:   factory,
		opts:      opts,
		logger:    logger,
		snapshots: snapshot.NewService(logger),
	}
}

// Run executes every scenario whose "Group/Name" matches filter (all when
// filter is nil). Cancelling ctx skips the scenarios not yet started.
func (r *Runner) Run(ctx context.Context, groups []Group, filter *regexp.Regexp) *Run {
	run := &Run{
		ID:      uuid.New().String(),
		BaseURL: r.opts.BaseURL,
		Started: time.Now(),
	}
	logger := r.logger.WithCorrelationId(run.ID)

	logger.Info().
		Str("run_id", run.ID).
		Int("groups", len(groups)).
		Str("base_url", r.opts.BaseURL).
		Msg("Starting scenario run")

	for _, group := range groups {
		groupFailed := false
		for _, sc := range group.Scenarios {
			full := group.Name + "/" + sc.Name
			if filter != nil && !filter.MatchString(full) {
				continue
			}

			var result Result
			switch {
			case ctx.Err() != nil:
				result = skipped(group, sc, "run cancelled")
			case group.Serial && groupFailed:
				result = skipped(group, sc, "an earlier scenario in this serial group failed")
			default:
				result = r.runScenario(ctx, run.ID, group, sc, logger)
			}

			if result.Status == StatusFailed {
				groupFailed = true
			}
			r.logResult(logger, result)
			run.Results = append(run.Results, result)
		}
	}

	run.Duration = time.Since(run.Started)
	logger.Info().
		Int("passed", run.Count(StatusPassed)).
		Int("failed", run.Count(StatusFailed)).
		Int("skipped", run.Count(StatusSkipped)).
		Dur("duration", run.Duration).
		Msg("Scenario run complete")
	return run
}

func skipped(group Group, sc Scenario, reason string) Result {
	return Result{
		Group:      group.Name,
		Name:       sc.Name,
		Status:     StatusSkipped,
		Started:    time.Now(),
		SkipReason: reason,
	}
}

func (r *Runner) runScenario(ctx context.Context, runID string, group Group, sc Scenario, logger arbor.ILogger) (result Result) {
	result = Result{Group: group.Name, Name: sc.Name, Started: time.Now()}
	defer func() { result.Duration = time.Since(result.Started) }()

	logger.Debug().Str("scenario", result.FullName()).Msg("Scenario starting")

	scenarioCtx, cancel := context.WithTimeout(ctx, r.opts.ScenarioTimeout)
	defer cancel()

	session, err := r.factory.NewSession(scenarioCtx)
	if err != nil {
		result.Status = StatusFailed
		result.Failure = describe("open session", err)
		return result
	}
	defer func() {
		if err := session.Close(); err != nil {
			logger.Warn().Err(err).Str("scenario", result.FullName()).Msg("Failed to close session")
		}
	}()

	env := newEnv(session, r.opts.Pages, r.opts.Fixtures, logger, result.FullName())

	step := "before each"
	err = invoke(scenarioCtx, group.BeforeEach, env)
	if err == nil {
		step = ""
		err = invoke(scenarioCtx, sc.Run, env)
	}
	if err != nil {
		if step == "" {
			step = env.step
		}
		result.Failure = describe(step, err)
		result.Artifacts = r.capture(ctx, session, runID, group, sc, logger)
	}

	// after-each runs even when the body failed, on its own budget
	hookCtx, hookCancel := context.WithTimeout(context.WithoutCancel(ctx), r.opts.HookTimeout)
	hookErr := invoke(hookCtx, group.AfterEach, env)
	hookCancel()
	if hookErr != nil {
		if result.Failure == nil {
			result.Failure = describe("after each", hookErr)
		} else {
			env.Logf("after each also failed: %v", hookErr)
		}
	}

	result.Logs = env.Logs()
	if result.Failure != nil {
		result.Status = StatusFailed
	} else {
		result.Status = StatusPassed
	}
	return result
}

// invoke runs fn, turning a panic into an error
func invoke(ctx context.Context, fn Func, env *Env) (err error) {
	if fn == nil {
		return nil
	}
	defer func() {
		if r := recover(); r != nil {
			err = &panicError{value: r, stack: common.GetStackTrace()}
		}
	}()
	return fn(ctx, env)
}

// capture saves the failing page before after-each hooks change it
func (r *Runner) capture(ctx context.Context, session browser.Session, runID string, group Group, sc Scenario, logger arbor.ILogger) *snapshot.Artifacts {
	if !r.opts.Capture.Screenshot && !r.opts.Capture.Document {
		return nil
	}
	captureCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), captureTimeout)
	defer cancel()

	dir := filepath.Join(r.opts.ArtifactsDir, runID[:8], Slug(group.Name), Slug(sc.Name))
	artifacts, err := r.snapshots.Capture(captureCtx, session, dir, r.opts.Capture)
	if err != nil {
		logger.Warn().Err(err).Str("dir", dir).Msg("Failed to capture failure snapshot")
	}
	if artifacts == nil || len(artifacts.Files) == 0 {
		return nil
	}
	return artifacts
}

func (r *Runner) logResult(logger arbor.ILogger, result Result) {
	switch result.Status {
	case StatusPassed:
		logger.Info().
			Str("scenario", result.FullName()).
			Dur("duration", result.Duration).
			Msg("PASS")
	case StatusSkipped:
		logger.Warn().
			Str("scenario", result.FullName()).
			Str("reason", result.SkipReason).
			Msg("SKIP")
	default:
		event := logger.Error().
			Str("scenario", result.FullName()).
			Str("kind", string(result.Failure.Kind)).
			Dur("duration", result.Duration)
		if result.Failure.Step != "" {
			event = event.Str("step", result.Failure.Step)
		}
		event.Msg(fmt.Sprintf("FAIL: %s", result.Failure.Message))
	}
}

var slugPattern = regexp.MustCompile(`[^a-z0-9]+`)

// Slug turns a scenario or group name into a path element
func Slug(name string) string {
	slug := strings.Trim(slugPattern.ReplaceAllString(strings.ToLower(name), "-"), "-")
	if slug == "" {
		return "unnamed"
	}
	return slug
}
