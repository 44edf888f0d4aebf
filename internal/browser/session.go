// Package browser is the session abstraction the page objects drive: a
// steppable browser tab that can navigate, read DOM state and act on
// elements addressed by Locators.
package browser

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ternarybob/storefront-e2e/internal/poll"
)

// LoadState is a document readiness milestone
type LoadState string

const (
	LoadStateLoad             LoadState = "load"
	LoadStateDOMContentLoaded LoadState = "domcontentloaded"
)

// Reached reports whether document.readyState satisfies the state
func (s LoadState) Reached(readyState string) bool {
	switch s {
	case LoadStateDOMContentLoaded:
		return readyState == "interactive" || readyState == "complete"
	default:
		return readyState == "complete"
	}
}

// Session is a single isolated browser tab.
//
// Single-element methods act on the first element the locator resolves to.
// When nothing matches they return an error wrapping ErrNotFound that is
// transient in the poll package's sense; page objects are expected to call
// them under poll.Until or poll.Pass.
type Session interface {
	Navigate(ctx context.Context, url string) error
	WaitForLoad(ctx context.Context, state LoadState) error
	URL(ctx context.Context) (string, error)

	Count(ctx context.Context, loc Locator) (int, error)
	Visible(ctx context.Context, loc Locator) (bool, error)
	Text(ctx context.Context, loc Locator) (string, error)
	Texts(ctx context.Context, loc Locator) ([]string, error)
	Value(ctx context.Context, loc Locator) (string, error)
	Attribute(ctx context.Context, loc Locator, name string) (string, error)
	CSS(ctx context.Context, loc Locator, property string) (string, error)

	Click(ctx context.Context, loc Locator) error
	Hover(ctx context.Context, loc Locator) error
	Fill(ctx context.Context, loc Locator, text string) error

	HTML(ctx context.Context) (string, error)
	Screenshot(ctx context.Context) ([]byte, error)
	Close() error
}

var (
	ErrNotFound   = errors.New("element not found")
	ErrNotVisible = errors.New("element not visible")
)

// NotFound returns the transient error for a locator with no match
func NotFound(loc Locator) error {
	return poll.Transient(fmt.Errorf("%w: %s", ErrNotFound, loc))
}

// NotVisible returns the transient error for an action on a hidden element
func NotVisible(loc Locator) error {
	return poll.Transient(fmt.Errorf("%w: %s", ErrNotVisible, loc))
}

// NavigationError reports a page that never reached a loaded state. It is a
// hard failure: the poller does not retry it.
type NavigationError struct {
	URL string
	Err error
}

func (e *NavigationError) Error() string {
	return fmt.Sprintf("navigation to %s failed: %v", e.URL, e.Err)
}

func (e *NavigationError) Unwrap() error {
	return e.Err
}

// Permanent stops poll.Until and poll.Pass from retrying past the error
func (e *NavigationError) Permanent() bool { return true }

// IsNavigationError reports whether err carries a NavigationError
func IsNavigationError(err error) bool {
	var navErr *NavigationError
	return errors.As(err, &navErr)
}

// transientMarkers are DevTools errors raised while the page is between
// documents; a retry after the navigation settles succeeds.
var transientMarkers = []string{
	"Execution context was destroyed",
	"Cannot find context with specified id",
	"Inspected target navigated or closed",
	"Could not find node with given id",
	"Node is detached from document",
}

// classify marks DevTools errors caused by an in-progress navigation as transient
func classify(err error) error {
	if err == nil {
		return nil
	}
	msg := err.Error()
	for _, marker := range transientMarkers {
		if strings.Contains(msg, marker) {
			return poll.Transient(err)
		}
	}
	return err
}
