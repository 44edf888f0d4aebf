// Package browsertest provides a scripted in-memory browser.Session for
// testing page objects without Chrome.
package browsertest

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/ternarybob/storefront-e2e/internal/browser"
)

// Element is the state a locator resolves to
type Element struct {
	Hidden bool
	Text   string
	Texts  []string // per-match texts for multi-element locators
	Value  string
	Attrs  map[string]string
	CSS    map[string]string
}

// Hook reacts to an action, typically by rewriting page state
type Hook func(s *Session)

// Session is a browser.Session whose DOM is a map from locator to state.
// Locators are matched by their String form; an indexed locator falls back
// to its un-indexed form when that has enough matches.
type Session struct {
	mu         sync.Mutex
	url        string
	html       string
	counts     map[string]int
	elements   map[string]*Element
	onClick    map[string][]Hook
	onHover    map[string][]Hook
	onFill     map[string][]func(s *Session, text string)
	onNavigate []func(s *Session, url string)
	navErr     error
	loadErr    error
	actions    []string
	reads      int
	timers     []*time.Timer
	closed     bool
}

var _ browser.Session = (*Session)(nil)

// New returns an empty page at about:blank
func New() *Session {
	return &Session{
		url:      "about:blank",
		counts:   make(map[string]int),
		elements: make(map[string]*Element),
		onClick:  make(map[string][]Hook),
		onHover:  make(map[string][]Hook),
		onFill:   make(map[string][]func(*Session, string)),
	}
}

// Set places an element for loc. Unless SetCount says otherwise the locator
// resolves to one match.
func (s *Session) Set(loc browser.Locator, el Element) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := el
	s.elements[loc.String()] = &cp
}

// Update mutates the element for loc, creating it when missing
func (s *Session) Update(loc browser.Locator, fn func(el *Element)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	el, ok := s.elements[loc.String()]
	if !ok {
		el = &Element{}
		s.elements[loc.String()] = el
	}
	fn(el)
}

// SetCount sets how many elements loc matches
func (s *Session) SetCount(loc browser.Locator, n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.counts[loc.String()] = n
}

// Remove detaches loc from the page
func (s *Session) Remove(loc browser.Locator) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.elements, loc.String())
	delete(s.counts, loc.String())
}

// SetURL sets the current location
func (s *Session) SetURL(url string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.url = url
}

// SetHTML sets the document returned by HTML
func (s *Session) SetHTML(html string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.html = html
}

// FailNavigation makes every Navigate return a NavigationError wrapping err
func (s *Session) FailNavigation(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.navErr = err
}

// FailLoad makes WaitForLoad return a NavigationError wrapping err
func (s *Session) FailLoad(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loadErr = err
}

// OnClick registers a hook run after loc is clicked
func (s *Session) OnClick(loc browser.Locator, hook Hook) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onClick[loc.String()] = append(s.onClick[loc.String()], hook)
}

// OnHover registers a hook run after loc is hovered
func (s *Session) OnHover(loc browser.Locator, hook Hook) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onHover[loc.String()] = append(s.onHover[loc.String()], hook)
}

// OnFill registers a hook run after loc is filled
func (s *Session) OnFill(loc browser.Locator, hook func(s *Session, text string)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onFill[loc.String()] = append(s.onFill[loc.String()], hook)
}

// OnNavigate registers a hook run after every successful Navigate
func (s *Session) OnNavigate(hook func(s *Session, url string)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onNavigate = append(s.onNavigate, hook)
}

// After runs hook once d has elapsed, emulating a page that re-renders late
func (s *Session) After(d time.Duration, hook Hook) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.timers = append(s.timers, time.AfterFunc(d, func() { hook(s) }))
}

// Actions returns the recorded clicks, hovers, fills and navigations
func (s *Session) Actions() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.actions...)
}

// Reads returns how many DOM reads have been served
func (s *Session) Reads() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reads
}

// Closed reports whether Close was called
func (s *Session) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// count must be called with mu held
func (s *Session) count(loc browser.Locator) int {
	if n, ok := s.counts[loc.String()]; ok {
		return n
	}
	if _, ok := s.elements[loc.String()]; ok {
		return 1
	}
	if idx := loc.Index(); idx >= 0 {
		if s.count(loc.All()) > idx {
			return 1
		}
	}
	return 0
}

// element must be called with mu held; nil means no match
func (s *Session) element(loc browser.Locator) *Element {
	if s.count(loc) == 0 {
		return nil
	}
	if el, ok := s.elements[loc.String()]; ok {
		return el
	}
	if loc.Index() >= 0 {
		if el, ok := s.elements[loc.All().String()]; ok {
			return el
		}
	}
	return &Element{}
}

func (s *Session) read(loc browser.Locator) (*Element, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reads++
	el := s.element(loc)
	if el == nil {
		return nil, browser.NotFound(loc)
	}
	cp := *el
	return &cp, nil
}

func (s *Session) act(kind string, loc browser.Locator, needVisible bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	el := s.element(loc)
	if el == nil {
		return browser.NotFound(loc)
	}
	if needVisible && el.Hidden {
		return browser.NotVisible(loc)
	}
	s.actions = append(s.actions, kind+" "+loc.String())
	return nil
}

func (s *Session) hooks(table map[string][]Hook, loc browser.Locator) []Hook {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Hook(nil), table[loc.String()]...)
}

func (s *Session) Navigate(ctx context.Context, url string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	if s.navErr != nil {
		err := s.navErr
		s.mu.Unlock()
		return &browser.NavigationError{URL: url, Err: err}
	}
	s.url = url
	s.actions = append(s.actions, "navigate "+url)
	hooks := slices.Clone(s.onNavigate)
	s.mu.Unlock()

	for _, hook := range hooks {
		hook(s, url)
	}
	return nil
}

func (s *Session) WaitForLoad(ctx context.Context, state browser.LoadState) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loadErr != nil {
		return &browser.NavigationError{URL: s.url, Err: s.loadErr}
	}
	return nil
}

func (s *Session) URL(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reads++
	return s.url, nil
}

func (s *Session) Count(ctx context.Context, loc browser.Locator) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reads++
	return s.count(loc), nil
}

func (s *Session) Visible(ctx context.Context, loc browser.Locator) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reads++
	el := s.element(loc)
	return el != nil && !el.Hidden, nil
}

func (s *Session) Text(ctx context.Context, loc browser.Locator) (string, error) {
	el, err := s.read(loc)
	if err != nil {
		return "", err
	}
	if el.Text == "" && len(el.Texts) > 0 {
		idx := max(loc.Index(), 0)
		if idx < len(el.Texts) {
			return el.Texts[idx], nil
		}
	}
	return el.Text, nil
}

func (s *Session) Texts(ctx context.Context, loc browser.Locator) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reads++
	el := s.element(loc)
	if el == nil {
		return nil, nil
	}
	if len(el.Texts) > 0 {
		return append([]string(nil), el.Texts...), nil
	}
	n := s.count(loc)
	texts := make([]string, n)
	for i := range texts {
		texts[i] = el.Text
	}
	return texts, nil
}

func (s *Session) Value(ctx context.Context, loc browser.Locator) (string, error) {
	el, err := s.read(loc)
	if err != nil {
		return "", err
	}
	return el.Value, nil
}

func (s *Session) Attribute(ctx context.Context, loc browser.Locator, name string) (string, error) {
	el, err := s.read(loc)
	if err != nil {
		return "", err
	}
	return el.Attrs[name], nil
}

func (s *Session) CSS(ctx context.Context, loc browser.Locator, property string) (string, error) {
	el, err := s.read(loc)
	if err != nil {
		return "", err
	}
	return el.CSS[property], nil
}

func (s *Session) Click(ctx context.Context, loc browser.Locator) error {
	if err := s.act("click", loc, true); err != nil {
		return err
	}
	for _, hook := range s.hooks(s.onClick, loc) {
		hook(s)
	}
	return nil
}

func (s *Session) Hover(ctx context.Context, loc browser.Locator) error {
	if err := s.act("hover", loc, true); err != nil {
		return err
	}
	for _, hook := range s.hooks(s.onHover, loc) {
		hook(s)
	}
	return nil
}

func (s *Session) Fill(ctx context.Context, loc browser.Locator, text string) error {
	if err := s.act(fmt.Sprintf("fill %q", text), loc, true); err != nil {
		return err
	}
	s.mu.Lock()
	if el, ok := s.elements[loc.String()]; ok {
		el.Value = text
	} else {
		s.elements[loc.String()] = &Element{Value: text}
	}
	hooks := slices.Clone(s.onFill[loc.String()])
	s.mu.Unlock()

	for _, hook := range hooks {
		hook(s, text)
	}
	return nil
}

func (s *Session) HTML(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reads++
	if s.html == "" {
		return "<html><head></head><body></body></html>", nil
	}
	return s.html, nil
}

// Screenshot returns a PNG signature so callers can detect the format
func (s *Session) Screenshot(ctx context.Context) ([]byte, error) {
	return []byte("\x89PNG\r\n\x1a\n"), nil
}

func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range s.timers {
		t.Stop()
	}
	s.closed = true
	return nil
}

// ActionCount returns how many recorded actions start with prefix
func (s *Session) ActionCount(prefix string) int {
	n := 0
	for _, action := range s.Actions() {
		if strings.HasPrefix(action, prefix) {
			n++
		}
	}
	return n
}
