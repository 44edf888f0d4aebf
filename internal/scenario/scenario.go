// Package scenario runs named end-to-end scenarios against a storefront.
// Each scenario gets its own browser session, a time budget and a log
// buffer, and finishes either passed or failed with the reason.
package scenario

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ternarybob/storefront-e2e/internal/browser"
	"github.com/ternarybob/storefront-e2e/internal/poll"
	"github.com/ternarybob/storefront-e2e/internal/snapshot"
)

// Func is a scenario body or hook
type Func func(ctx context.Context, env *Env) error

// Scenario is one named test
type Scenario struct {
	Name string
	Run  Func
}

// Group is a set of scenarios sharing hooks. In a serial group a failure
// skips the scenarios after it.
type Group struct {
	Name       string
	Serial     bool
	BeforeEach Func
	AfterEach  Func
	Scenarios  []Scenario
}

// Status is a scenario outcome
type Status string

const (
	StatusPassed  Status = "passed"
	StatusFailed  Status = "failed"
	StatusSkipped Status = "skipped"
)

// FailureKind classifies why a scenario failed
type FailureKind string

const (
	FailureTimeout    FailureKind = "timeout"    // an expectation never held
	FailureNavigation FailureKind = "navigation" // a page never loaded
	FailureDeadline   FailureKind = "deadline"   // the scenario budget ran out
	FailurePanic      FailureKind = "panic"
	FailureError      FailureKind = "error"
)

// Failure describes the failing expectation
type Failure struct {
	Kind        FailureKind   `json:"kind"`
	Step        string        `json:"step,omitempty"`
	Message     string        `json:"message"`
	Expectation string        `json:"expectation,omitempty"`
	LastValue   string        `json:"last_value,omitempty"`
	Elapsed     time.Duration `json:"elapsed,omitempty"`
	Attempts    int           `json:"attempts,omitempty"`
	Stack       string        `json:"stack,omitempty"`
}

// Result is the outcome of one scenario
type Result struct {
	Group      string              `json:"group"`
	Name       string              `json:"name"`
	Status     Status              `json:"status"`
	Started    time.Time           `json:"started"`
	Duration   time.Duration       `json:"duration"`
	Failure    *Failure            `json:"failure,omitempty"`
	SkipReason string              `json:"skip_reason,omitempty"`
	Logs       []string            `json:"logs,omitempty"`
	Artifacts  *snapshot.Artifacts `json:"artifacts,omitempty"`
}

// FullName is "Group/Name", the form the run filter matches
func (r Result) FullName() string {
	return r.Group + "/" + r.Name
}

// Run is the outcome of a whole suite run
type Run struct {
	ID       string        `json:"id"`
	BaseURL  string        `json:"base_url"`
	Started  time.Time     `json:"started"`
	Duration time.Duration `json:"duration"`
	Results  []Result      `json:"results"`
}

// Count returns how many results have status
func (r *Run) Count(status Status) int {
	n := 0
	for _, result := range r.Results {
		if result.Status == status {
			n++
		}
	}
	return n
}

// Passed reports whether no scenario failed
func (r *Run) Passed() bool {
	return r.Count(StatusFailed) == 0
}

// panicError carries a recovered panic out of a scenario
type panicError struct {
	value any
	stack string
}

func (e *panicError) Error() string {
	return fmt.Sprintf("panic: %v", e.value)
}

// describe turns a scenario error into a Failure
func describe(step string, err error) *Failure {
	failure := &Failure{Kind: FailureError, Step: step, Message: err.Error()}

	var panicErr *panicError
	if errors.As(err, &panicErr) {
		failure.Kind = FailurePanic
		failure.Stack = panicErr.stack
		return failure
	}
	if browser.IsNavigationError(err) {
		failure.Kind = FailureNavigation
		return failure
	}
	if timeout, ok := poll.AsTimeout(err); ok {
		failure.Kind = FailureTimeout
		failure.Expectation = timeout.Expectation
		if timeout.Observed {
			failure.LastValue = fmt.Sprintf("%v", timeout.LastValue)
		}
		failure.Elapsed = timeout.Elapsed
		failure.Attempts = timeout.Attempts
		if timeout.Cause != nil {
			failure.Kind = FailureDeadline
		}
		return failure
	}
	if errors.Is(err, context.DeadlineExceeded) {
		failure.Kind = FailureDeadline
	}
	return failure
}
