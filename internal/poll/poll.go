// Package poll waits for eventually consistent browser state.
//
// Every wait in the suite goes through Until or Pass: an observation is read
// repeatedly until an expectation holds or the policy's timeout expires.
// Calls share nothing, so any number can run side by side.
package poll

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/time/rate"
)

// Observation reads the current value of some piece of state. It must not
// change that state. Returning an error that wraps ErrTransientAbsence means
// "not available yet"; any other error aborts the poll.
type Observation[T any] func(ctx context.Context) (T, error)

// State of a single poll
type State int

const (
	Polling State = iota
	Satisfied
	Expired
)

func (s State) String() string {
	switch s {
	case Polling:
		return "polling"
	case Satisfied:
		return "satisfied"
	case Expired:
		return "expired"
	default:
		return "unknown"
	}
}

// Until invokes observe until expect holds and returns the satisfying value.
//
// A value that already satisfies expect on the first read is returned without
// any wait. Otherwise the poller sleeps min(interval, time left) between
// attempts, so expiry happens no earlier than Timeout and no later than one
// interval after it. Cancelling ctx stops the wait at once and prevents new
// attempts; an attempt already running finishes under AttemptTimeout.
func Until[T any](ctx context.Context, observe Observation[T], expect Expectation[T], policy Policy) (T, error) {
	p := policy.withDefaults()
	logger := p.Logger

	start := time.Now()
	deadline := start.Add(p.Timeout)
	interval := p.Interval
	progress := rate.Sometimes{Interval: p.ProgressEvery}

	var (
		last     T
		observed bool
		lastErr  error
		attempts int
	)

	expired := func(cause error) error {
		logger.Debug().
			Str("poll", p.Name).
			Str("state", Expired.String()).
			Int("attempts", attempts).
			Str("elapsed", time.Since(start).String()).
			Msg("Poll expired")
		return &PollTimeoutError{
			Name:        p.Name,
			Expectation: expect.String(),
			LastValue:   last,
			Observed:    observed,
			LastErr:     lastErr,
			Cause:       cause,
			Elapsed:     time.Since(start),
			Attempts:    attempts,
		}
	}

	cancelled := func() error {
		cause := context.Cause(ctx)
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return expired(cause)
		}
		return fmt.Errorf("poll %q cancelled after %s: %w", p.Name, time.Since(start).Round(time.Millisecond), cause)
	}

	for {
		if ctx.Err() != nil {
			return last, cancelled()
		}

		attempts++
		value, err := attempt(ctx, observe, p.AttemptTimeout)
		switch {
		case err == nil:
			last, observed, lastErr = value, true, nil
			if expect.Holds(value) {
				logger.Debug().
					Str("poll", p.Name).
					Str("state", Satisfied.String()).
					Int("attempts", attempts).
					Str("elapsed", time.Since(start).String()).
					Msg("Poll satisfied")
				return value, nil
			}
		case IsPermanent(err):
			return last, err
		case IsTransient(err):
			lastErr = err
		default:
			return last, err
		}

		now := time.Now()
		if !now.Before(deadline) {
			return last, expired(nil)
		}

		progress.Do(func() {
			logger.Debug().
				Str("poll", p.Name).
				Str("state", Polling.String()).
				Str("expect", expect.String()).
				Str("last", fmt.Sprintf("%v", last)).
				Int("attempts", attempts).
				Msg("Still waiting")
		})

		wait := min(interval, deadline.Sub(now))
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return last, cancelled()
		case <-timer.C:
		}
		interval = p.next(interval)
	}
}

// Pass retries block until it returns nil. Transient absences and expired
// inner polls count as "not yet"; permanent and any other errors are
// returned at once.
// When policy.AttemptTimeout is unset each attempt may use the full Timeout.
func Pass(ctx context.Context, block func(ctx context.Context) error, policy Policy) error {
	if policy.AttemptTimeout <= 0 {
		policy.AttemptTimeout = policy.withDefaults().Timeout
	}
	observe := func(ctx context.Context) (struct{}, error) {
		err := block(ctx)
		if err == nil {
			return struct{}{}, nil
		}
		if IsPermanent(err) {
			return struct{}{}, err
		}
		if _, ok := AsTimeout(err); ok {
			return struct{}{}, Transient(err)
		}
		return struct{}{}, err
	}
	_, err := Until(ctx, observe, passes(), policy)
	return err
}

// attempt runs one observation on a context detached from the caller's
// cancellation and bounded by limit. An attempt that overruns limit is
// transient.
func attempt[T any](ctx context.Context, observe Observation[T], limit time.Duration) (T, error) {
	attemptCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), limit)
	defer cancel()

	value, err := observe(attemptCtx)
	if err != nil && attemptCtx.Err() != nil && errors.Is(err, context.DeadlineExceeded) {
		return value, Transient(fmt.Errorf("attempt exceeded %s: %w", limit, err))
	}
	return value, err
}
