// Package pages holds the page objects for the storefront. Every wait they
// perform goes through the poll package with a budget taken from Timeouts.
package pages

import (
	"context"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/storefront-e2e/internal/browser"
	"github.com/ternarybob/storefront-e2e/internal/common"
	"github.com/ternarybob/storefront-e2e/internal/poll"
)

// Timeouts are the per-call-site wait budgets
type Timeouts struct {
	Default        time.Duration
	FilterEnabled  time.Duration
	UpdatedResults time.Duration
	NoResults      time.Duration
	BedBath        time.Duration
	SelectFilter   time.Duration
	Navigation     time.Duration
}

// DefaultTimeouts returns the budgets the suite was tuned with
func DefaultTimeouts() Timeouts {
	return Timeouts{
		Default:        5 * time.Second,
		FilterEnabled:  20 * time.Second,
		UpdatedResults: 15 * time.Second,
		NoResults:      8 * time.Second,
		BedBath:        10 * time.Second,
		SelectFilter:   15 * time.Second,
		Navigation:     10 * time.Second,
	}
}

// Options configure a page object
type Options struct {
	Timeouts Timeouts
	Poll     poll.Policy // interval, backoff and attempt bound; Timeout is set per call
	Logger   arbor.ILogger
}

// DefaultOptions returns default timeouts and a quiet logger
func DefaultOptions() Options {
	return Options{
		Timeouts: DefaultTimeouts(),
		Logger:   arbor.NewNoOpLogger(),
	}
}

// OptionsFromConfig builds page options from the suite configuration
func OptionsFromConfig(config *common.Config, logger arbor.ILogger) Options {
	d := DefaultTimeouts()
	t := config.Timeouts
	p := config.Poll
	return Options{
		Timeouts: Timeouts{
			Default:        common.ParseDuration(t.Default, d.Default),
			FilterEnabled:  common.ParseDuration(t.FilterEnabled, d.FilterEnabled),
			UpdatedResults: common.ParseDuration(t.UpdatedResults, d.UpdatedResults),
			NoResults:      common.ParseDuration(t.NoResults, d.NoResults),
			BedBath:        common.ParseDuration(t.BedBath, d.BedBath),
			SelectFilter:   common.ParseDuration(t.SelectFilter, d.SelectFilter),
			Navigation:     common.ParseDuration(t.Navigation, d.Navigation),
		},
		Poll: poll.Policy{
			Interval:       common.ParseDuration(p.Interval, poll.DefaultInterval),
			MaxInterval:    common.ParseDuration(p.MaxInterval, poll.DefaultMaxInterval),
			Backoff:        p.Backoff,
			AttemptTimeout: common.ParseDuration(p.AttemptTimeout, poll.DefaultAttemptTimeout),
			ProgressEvery:  common.ParseDuration(p.ProgressEvery, poll.DefaultProgressEvery),
		},
		Logger: logger,
	}
}

// page carries what every page object needs
type page struct {
	session browser.Session
	opts    Options
	logger  arbor.ILogger
}

func newPage(session browser.Session, opts Options) page {
	if opts.Logger == nil {
		opts.Logger = arbor.NewNoOpLogger()
	}
	if opts.Timeouts == (Timeouts{}) {
		opts.Timeouts = DefaultTimeouts()
	}
	return page{session: session, opts: opts, logger: opts.Logger}
}

// policy returns the poll template with a name and budget
func (p page) policy(name string, timeout time.Duration) poll.Policy {
	return p.opts.Poll.WithName(name).WithTimeout(timeout).WithLogger(p.logger)
}

// visible waits for loc to be visible
func (p page) visible(ctx context.Context, loc browser.Locator, timeout time.Duration) error {
	_, err := poll.Until(ctx, p.visibility(loc), poll.Visible(), p.policy(loc.String(), timeout))
	return err
}

// hidden waits for loc to be hidden or detached
func (p page) hidden(ctx context.Context, loc browser.Locator, timeout time.Duration) error {
	_, err := poll.Until(ctx, p.visibility(loc), poll.Absent(), p.policy(loc.String(), timeout))
	return err
}

func (p page) visibility(loc browser.Locator) poll.Observation[bool] {
	return func(ctx context.Context) (bool, error) {
		return p.session.Visible(ctx, loc)
	}
}

// click retries a click until the element is attached and visible
func (p page) click(ctx context.Context, loc browser.Locator, timeout time.Duration) error {
	return poll.Pass(ctx, func(ctx context.Context) error {
		return p.session.Click(ctx, loc)
	}, p.policy("click "+loc.String(), timeout))
}

// hover retries a hover until the element is attached and visible
func (p page) hover(ctx context.Context, loc browser.Locator, timeout time.Duration) error {
	return poll.Pass(ctx, func(ctx context.Context) error {
		return p.session.Hover(ctx, loc)
	}, p.policy("hover "+loc.String(), timeout))
}

// cssEquals waits for a computed style property to reach want
func (p page) cssEquals(ctx context.Context, loc browser.Locator, property, want string, timeout time.Duration) error {
	observe := func(ctx context.Context) (string, error) {
		return p.session.CSS(ctx, loc, property)
	}
	_, err := poll.Until(ctx, observe, poll.Equals(want), p.policy(property+" of "+loc.String(), timeout))
	return err
}
