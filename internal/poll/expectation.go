package poll

import (
	"cmp"
	"fmt"
	"regexp"
	"strings"
)

// Kind identifies the predicate an Expectation applies. The set is closed:
// expectations are only built through the constructors in this file.
type Kind int

const (
	KindEquals Kind = iota
	KindNotEquals
	KindGreaterThan
	KindLessOrEqual
	KindVisible
	KindAbsent
	KindContains
	KindMatches
	KindPasses
)

func (k Kind) String() string {
	switch k {
	case KindEquals:
		return "equals"
	case KindNotEquals:
		return "not equals"
	case KindGreaterThan:
		return "greater than"
	case KindLessOrEqual:
		return "less or equal"
	case KindVisible:
		return "visible"
	case KindAbsent:
		return "absent"
	case KindContains:
		return "contains"
	case KindMatches:
		return "matches"
	case KindPasses:
		return "passes"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Expectation is a predicate an observed value must eventually satisfy.
// The zero value never holds.
type Expectation[T any] struct {
	kind  Kind
	want  any
	holds func(T) bool
}

// Kind returns the predicate kind
func (e Expectation[T]) Kind() Kind {
	return e.kind
}

// Want returns the operand the expectation compares against, or nil for
// Visible, Absent and Passes.
func (e Expectation[T]) Want() any {
	return e.want
}

// Holds reports whether v satisfies the expectation
func (e Expectation[T]) Holds(v T) bool {
	if e.holds == nil {
		return false
	}
	return e.holds(v)
}

func (e Expectation[T]) String() string {
	if e.want == nil {
		return e.kind.String()
	}
	if re, ok := e.want.(*regexp.Regexp); ok {
		return fmt.Sprintf("%s /%s/", e.kind, re.String())
	}
	if s, ok := e.want.(string); ok {
		return fmt.Sprintf("%s %q", e.kind, s)
	}
	return fmt.Sprintf("%s %v", e.kind, e.want)
}

// Equals holds when the observed value equals want
func Equals[T comparable](want T) Expectation[T] {
	return Expectation[T]{kind: KindEquals, want: want, holds: func(v T) bool { return v == want }}
}

// NotEquals holds as soon as the observed value differs from want,
// e.g. a result count moving away from its value before a filter click.
func NotEquals[T comparable](want T) Expectation[T] {
	return Expectation[T]{kind: KindNotEquals, want: want, holds: func(v T) bool { return v != want }}
}

// GreaterThan holds when the observed value is strictly greater than bound
func GreaterThan[T cmp.Ordered](bound T) Expectation[T] {
	return Expectation[T]{kind: KindGreaterThan, want: bound, holds: func(v T) bool { return cmp.Compare(v, bound) > 0 }}
}

// LessOrEqual holds when the observed value is at most bound
func LessOrEqual[T cmp.Ordered](bound T) Expectation[T] {
	return Expectation[T]{kind: KindLessOrEqual, want: bound, holds: func(v T) bool { return cmp.Compare(v, bound) <= 0 }}
}

// Visible holds when a visibility observation reports true
func Visible() Expectation[bool] {
	return Expectation[bool]{kind: KindVisible, holds: func(v bool) bool { return v }}
}

// Absent holds when a visibility observation reports false. An element that
// is missing from the DOM and one that is hidden are both absent.
func Absent() Expectation[bool] {
	return Expectation[bool]{kind: KindAbsent, holds: func(v bool) bool { return !v }}
}

// Contains holds when the observed text contains sub
func Contains(sub string) Expectation[string] {
	return Expectation[string]{kind: KindContains, want: sub, holds: func(v string) bool { return strings.Contains(v, sub) }}
}

// Matches holds when the observed text matches re
func Matches(re *regexp.Regexp) Expectation[string] {
	return Expectation[string]{kind: KindMatches, want: re, holds: func(v string) bool { return re.MatchString(v) }}
}

func passes() Expectation[struct{}] {
	return Expectation[struct{}]{kind: KindPasses, holds: func(struct{}) bool { return true }}
}
