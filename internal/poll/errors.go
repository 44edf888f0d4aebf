package poll

import (
	"errors"
	"fmt"
	"time"
)

// ErrTransientAbsence marks an observation that could not be made yet, such
// as an element that is not attached during a page transition. The poller
// treats it as "not satisfied" and keeps waiting.
var ErrTransientAbsence = errors.New("transient absence")

type transientError struct {
	err error
}

func (e *transientError) Error() string {
	return fmt.Sprintf("%s: %v", ErrTransientAbsence, e.err)
}

func (e *transientError) Unwrap() []error {
	return []error{ErrTransientAbsence, e.err}
}

// Transient wraps err so that IsTransient reports true for it.
// Transient(nil) returns nil.
func Transient(err error) error {
	if err == nil {
		return nil
	}
	if IsTransient(err) {
		return err
	}
	return &transientError{err: err}
}

// IsTransient reports whether err should be retried by the poller
func IsTransient(err error) bool {
	return errors.Is(err, ErrTransientAbsence)
}

// Permanent is implemented by errors that end a poll at once, even when
// they wrap an expired inner poll or a transient absence.
type Permanent interface {
	error
	Permanent() bool
}

// IsPermanent reports whether err's chain holds a Permanent error
func IsPermanent(err error) bool {
	var perm Permanent
	return errors.As(err, &perm) && perm.Permanent()
}

// PollTimeoutError is returned when an expectation never held within its budget
type PollTimeoutError struct {
	Name        string        // what was being waited for
	Expectation string        // rendered expectation, e.g. `not equals 50`
	LastValue   any           // last successfully observed value
	Observed    bool          // false when every attempt was a transient absence
	LastErr     error         // last transient error, if any
	Cause       error         // context error when the caller's deadline cut the wait short
	Elapsed     time.Duration // time from first attempt to expiry
	Attempts    int
}

func (e *PollTimeoutError) Error() string {
	subject := e.Name
	if subject == "" {
		subject = "condition"
	}
	msg := fmt.Sprintf("timed out after %s waiting for %s to be %s", e.Elapsed.Round(time.Millisecond), subject, e.Expectation)
	if e.Observed {
		msg += fmt.Sprintf(" (last value: %v, attempts: %d)", e.LastValue, e.Attempts)
	} else {
		msg += fmt.Sprintf(" (no value observed, attempts: %d)", e.Attempts)
	}
	if e.LastErr != nil {
		msg += fmt.Sprintf(": %v", e.LastErr)
	}
	return msg
}

// Unwrap exposes the context error only. LastErr stays a field so that an
// expired poll is never mistaken for a transient absence.
func (e *PollTimeoutError) Unwrap() error {
	return e.Cause
}

// AsTimeout returns the PollTimeoutError in err's chain, if any
func AsTimeout(err error) (*PollTimeoutError, bool) {
	var timeout *PollTimeoutError
	if errors.As(err, &timeout) {
		return timeout, true
	}
	return nil, false
}
