package scenario

import (
	"context"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/storefront-e2e/internal/browser"
	"github.com/ternarybob/storefront-e2e/internal/fixtures"
	"github.com/ternarybob/storefront-e2e/internal/pages"
)

// Env is what a scenario body works with. It is owned by one scenario and
// must not be shared.
type Env struct {
	Session   browser.Session
	Nav       *pages.NavigationPage
	AllModels *pages.AllModelsPage
	Fixtures  *fixtures.Set
	Logger    arbor.ILogger

	scenario string
	started  time.Time
	step     string
	logs     []string
}

func newEnv(session browser.Session, opts pages.Options, set *fixtures.Set, logger arbor.ILogger, scenario string) *Env {
	opts.Logger = logger
	return &Env{
		Session:   session,
		Nav:       pages.NewNavigationPage(session, opts),
		AllModels: pages.NewAllModelsPage(session, opts),
		Fixtures:  set,
		Logger:    logger,
		scenario:  scenario,
		started:   time.Now(),
	}
}

// Logf records a diagnostic line in the scenario result and the run log
func (e *Env) Logf(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	offset := time.Since(e.started).Round(time.Millisecond)
	e.logs = append(e.logs, fmt.Sprintf("[%s] %s", offset, msg))
	e.Logger.Info().Str("scenario", e.scenario).Msg(msg)
}

// Step runs fn as a named step; a failure is reported against the step
func (e *Env) Step(ctx context.Context, name string, fn func(ctx context.Context) error) error {
	previous := e.step
	e.step = name
	e.Logf("step: %s", name)
	if err := fn(ctx); err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	e.step = previous
	return nil
}

// Logs returns the lines recorded so far
func (e *Env) Logs() []string {
	return append([]string(nil), e.logs...)
}
