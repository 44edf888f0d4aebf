package browser

import (
	"fmt"
	"regexp"
	"strings"
)

// Strategy selects how a Locator query is evaluated
type Strategy int

const (
	ByCSS Strategy = iota
	ByXPath
)

// TextMode selects how a Locator's text filter is applied
type TextMode int

const (
	TextNone TextMode = iota
	TextContains
	TextExact
	TextPattern
)

// Locator describes a set of DOM elements: a CSS or XPath query, narrowed by
// an optional text filter, visibility and index. Locators are values; every
// builder returns a modified copy.
//
// Text filters compare whitespace-normalised textContent and keep only the
// innermost matching elements, so CSS("*").WithText("3 Homes") resolves to
// the element that carries the text rather than all of its ancestors.
type Locator struct {
	strategy Strategy
	query    string
	textMode TextMode
	text     string
	visible  bool
	nth      int
}

// CSS returns a locator for a CSS selector
func CSS(selector string) Locator {
	return Locator{strategy: ByCSS, query: selector, nth: -1}
}

// XPath returns a locator for an XPath expression
func XPath(expr string) Locator {
	return Locator{strategy: ByXPath, query: expr, nth: -1}
}

// WithText keeps elements whose text contains text, case-insensitively
func (l Locator) WithText(text string) Locator {
	l.textMode, l.text = TextContains, text
	return l
}

// WithExactText keeps elements whose whole text equals text
func (l Locator) WithExactText(text string) Locator {
	l.textMode, l.text = TextExact, text
	return l
}

// WithPattern keeps elements whose text matches re
func (l Locator) WithPattern(re *regexp.Regexp) Locator {
	l.textMode, l.text = TextPattern, re.String()
	return l
}

// Visible keeps only rendered elements with a non-empty box
func (l Locator) Visible() Locator {
	l.visible = true
	return l
}

// Nth selects the i-th match (zero based)
func (l Locator) Nth(i int) Locator {
	l.nth = i
	return l
}

// First selects the first match
func (l Locator) First() Locator {
	return l.Nth(0)
}

// All drops any index selection
func (l Locator) All() Locator {
	l.nth = -1
	return l
}

// Index returns the selected index, or -1 when the locator spans all matches
func (l Locator) Index() int {
	return l.nth
}

// Query returns the raw selector or expression
func (l Locator) Query() string {
	return l.query
}

// Strategy returns how the query is evaluated
func (l Locator) Strategy() Strategy {
	return l.strategy
}

// IsZero reports whether the locator was never built
func (l Locator) IsZero() bool {
	return l.query == ""
}

// String renders the locator in a stable form used in logs and as a map key
func (l Locator) String() string {
	var b strings.Builder
	if l.strategy == ByXPath {
		b.WriteString("xpath=")
	} else {
		b.WriteString("css=")
	}
	b.WriteString(l.query)

	switch l.textMode {
	case TextContains:
		fmt.Fprintf(&b, " >> has-text=%q", l.text)
	case TextExact:
		fmt.Fprintf(&b, " >> text=%q", l.text)
	case TextPattern:
		fmt.Fprintf(&b, " >> text=/%s/", l.text)
	}
	if l.visible {
		b.WriteString(" >> visible")
	}
	if l.nth >= 0 {
		fmt.Fprintf(&b, " >> nth=%d", l.nth)
	}
	return b.String()
}

// wireLocator is the JSON form handed to the in-page resolver
type wireLocator struct {
	XPath   bool   `json:"xpath"`
	Query   string `json:"query"`
	Mode    string `json:"mode,omitempty"`
	Text    string `json:"text,omitempty"`
	Visible bool   `json:"visible"`
	Nth     int    `json:"nth"`
}

func (l Locator) wire() wireLocator {
	s := wireLocator{
		XPath:   l.strategy == ByXPath,
		Query:   l.query,
		Text:    l.text,
		Visible: l.visible,
		Nth:     l.nth,
	}
	switch l.textMode {
	case TextContains:
		s.Mode = "contains"
	case TextExact:
		s.Mode = "exact"
	case TextPattern:
		s.Mode = "pattern"
	}
	return s
}
