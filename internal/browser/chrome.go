package browser

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/input"
	"github.com/chromedp/chromedp"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/storefront-e2e/internal/common"
	"github.com/ternarybob/storefront-e2e/internal/poll"
)

// Options configures the Chrome process and its tabs
type Options struct {
	BaseURL        string        // relative paths passed to Navigate resolve against this
	ExecPath       string        // empty lets chromedp locate Chrome
	Headless       bool          // run without a window
	DisableGPU     bool          // pass --disable-gpu
	NoSandbox      bool          // pass --no-sandbox, needed in most containers
	WindowWidth    int           // viewport width in pixels
	WindowHeight   int           // viewport height in pixels
	UserAgent      string        // empty keeps Chrome's default
	StartupTimeout time.Duration // bound on launching Chrome and opening a tab
	LoadTimeout    time.Duration // bound on Navigate and WaitForLoad
	PollInterval   time.Duration // readyState polling interval for WaitForLoad
}

// DefaultOptions returns headless 1920x1080 options
func DefaultOptions() Options {
	return Options{
		Headless:       true,
		DisableGPU:     true,
		WindowWidth:    1920,
		WindowHeight:   1080,
		StartupTimeout: 30 * time.Second,
		LoadTimeout:    30 * time.Second,
		PollInterval:   100 * time.Millisecond,
	}
}

// OptionsFromConfig builds launch options from the [site], [browser] and
// [poll] configuration sections
func OptionsFromConfig(config *common.Config) Options {
	defaults := DefaultOptions()
	return Options{
		BaseURL:        config.Site.BaseURL,
		ExecPath:       config.Browser.ExecPath,
		Headless:       config.Browser.Headless,
		DisableGPU:     config.Browser.DisableGPU,
		NoSandbox:      config.Browser.NoSandbox,
		WindowWidth:    config.Browser.WindowWidth,
		WindowHeight:   config.Browser.WindowHeight,
		UserAgent:      config.Browser.UserAgent,
		StartupTimeout: common.ParseDuration(config.Browser.StartupTimeout, defaults.StartupTimeout),
		LoadTimeout:    common.ParseDuration(config.Browser.LoadTimeout, defaults.LoadTimeout),
		PollInterval:   common.ParseDuration(config.Poll.Interval, defaults.PollInterval),
	}
}

// Browser owns a Chrome process. Each scenario opens its own tab through
// NewSession.
type Browser struct {
	opts          Options
	logger        arbor.ILogger
	mu            sync.Mutex
	allocCtx      context.Context
	browserCtx    context.Context
	cancelAlloc   context.CancelFunc
	cancelBrowser context.CancelFunc
	closed        bool
}

// Launch starts Chrome and verifies it responds
func Launch(opts Options, logger arbor.ILogger) (*Browser, error) {
	startTime := time.Now()

	allocatorOpts := append(
		chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", opts.Headless),
		chromedp.Flag("disable-gpu", opts.DisableGPU),
		chromedp.Flag("no-sandbox", opts.NoSandbox),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.WindowSize(opts.WindowWidth, opts.WindowHeight),
	)
	if opts.UserAgent != "" {
		allocatorOpts = append(allocatorOpts, chromedp.UserAgent(opts.UserAgent))
	}
	if opts.ExecPath != "" {
		allocatorOpts = append(allocatorOpts, chromedp.ExecPath(opts.ExecPath))
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(context.Background(), allocatorOpts...)
	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx)

	// The first Run allocates the browser, so it must not carry a timeout
	started := make(chan error, 1)
	go func() { started <- chromedp.Run(browserCtx) }()
	select {
	case err := <-started:
		if err != nil {
			cancelBrowser()
			cancelAlloc()
			return nil, fmt.Errorf("failed to start browser: %w", err)
		}
	case <-time.After(opts.StartupTimeout):
		cancelBrowser()
		cancelAlloc()
		return nil, fmt.Errorf("browser did not start within %s", opts.StartupTimeout)
	}

	logger.Info().
		Bool("headless", opts.Headless).
		Int("width", opts.WindowWidth).
		Int("height", opts.WindowHeight).
		Dur("startup_time", time.Since(startTime)).
		Msg("Browser started")

	return &Browser{
		opts:          opts,
		logger:        logger,
		allocCtx:      allocCtx,
		browserCtx:    browserCtx,
		cancelAlloc:   cancelAlloc,
		cancelBrowser: cancelBrowser,
	}, nil
}

// NewSession opens an isolated tab
func (b *Browser) NewSession(ctx context.Context) (Session, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, fmt.Errorf("browser is closed")
	}

	tabCtx, cancelTab := chromedp.NewContext(b.browserCtx)
	opened := make(chan error, 1)
	go func() { opened <- chromedp.Run(tabCtx) }()
	select {
	case err := <-opened:
		if err != nil {
			cancelTab()
			return nil, fmt.Errorf("failed to open tab: %w", err)
		}
	case <-ctx.Done():
		cancelTab()
		return nil, fmt.Errorf("failed to open tab: %w", ctx.Err())
	case <-time.After(b.opts.StartupTimeout):
		cancelTab()
		return nil, fmt.Errorf("tab did not open within %s", b.opts.StartupTimeout)
	}

	b.logger.Debug().Msg("Browser tab opened")
	return &ChromeSession{
		tabCtx:    tabCtx,
		cancelTab: cancelTab,
		opts:      b.opts,
		logger:    b.logger,
	}, nil
}

// Close shuts Chrome down
func (b *Browser) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true

	done := make(chan struct{})
	go func() {
		b.cancelBrowser()
		b.cancelAlloc()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(30 * time.Second):
		b.logger.Warn().Msg("Browser shutdown timed out")
	}
	b.logger.Debug().Msg("Browser closed")
	return nil
}

// ChromeSession is a Session backed by one Chrome tab
type ChromeSession struct {
	tabCtx    context.Context
	cancelTab context.CancelFunc
	opts      Options
	logger    arbor.ILogger
}

// bind derives a context for a chromedp call from the tab context, carrying
// the caller's deadline and cancellation.
func (s *ChromeSession) bind(ctx context.Context) (context.Context, context.CancelFunc) {
	runCtx, cancel := context.WithCancel(s.tabCtx)
	if deadline, ok := ctx.Deadline(); ok {
		var cancelDeadline context.CancelFunc
		runCtx, cancelDeadline = context.WithDeadline(runCtx, deadline)
		parent := cancel
		cancel = func() {
			cancelDeadline()
			parent()
		}
	}
	stop := context.AfterFunc(ctx, cancel)
	return runCtx, func() {
		stop()
		cancel()
	}
}

func (s *ChromeSession) run(ctx context.Context, actions ...chromedp.Action) error {
	runCtx, cancel := s.bind(ctx)
	defer cancel()
	return classify(chromedp.Run(runCtx, actions...))
}

func (s *ChromeSession) probe(ctx context.Context, loc Locator, op, arg string) (probe, error) {
	var res probe
	expr, err := probeExpr(loc, op, arg)
	if err != nil {
		return res, err
	}
	if err := s.run(ctx, chromedp.Evaluate(expr, &res)); err != nil {
		return res, fmt.Errorf("failed to evaluate %s on %s: %w", op, loc, err)
	}
	return res, nil
}

// probeOne is probe for single-element reads; no match is a transient error
func (s *ChromeSession) probeOne(ctx context.Context, loc Locator, op, arg string) (probe, error) {
	res, err := s.probe(ctx, loc, op, arg)
	if err != nil {
		return res, err
	}
	if !res.Found {
		return res, NotFound(loc)
	}
	return res, nil
}

func (s *ChromeSession) resolve(target string) string {
	if s.opts.BaseURL == "" {
		return target
	}
	ref, err := url.Parse(target)
	if err != nil || ref.IsAbs() {
		return target
	}
	base, err := url.Parse(s.opts.BaseURL)
	if err != nil {
		return target
	}
	return base.ResolveReference(ref).String()
}

func (s *ChromeSession) Navigate(ctx context.Context, target string) error {
	full := s.resolve(target)
	navCtx, cancel := context.WithTimeout(ctx, s.opts.LoadTimeout)
	defer cancel()

	runCtx, cancelRun := s.bind(navCtx)
	defer cancelRun()

	startTime := time.Now()
	// Not classified: a failed navigation is never transient
	if err := chromedp.Run(runCtx, chromedp.Navigate(full)); err != nil {
		return &NavigationError{URL: full, Err: err}
	}
	s.logger.Debug().
		Str("url", full).
		Dur("duration", time.Since(startTime)).
		Msg("Navigated")
	return nil
}

// WaitForLoad polls document.readyState until state is reached. Expiry is a
// NavigationError.
func (s *ChromeSession) WaitForLoad(ctx context.Context, state LoadState) error {
	observe := func(ctx context.Context) (bool, error) {
		var readyState string
		if err := s.run(ctx, chromedp.Evaluate(`document.readyState`, &readyState)); err != nil {
			return false, poll.Transient(err)
		}
		return state.Reached(readyState), nil
	}
	_, err := poll.Until(ctx, observe, poll.Equals(true), poll.Policy{
		Name:     "load state " + string(state),
		Timeout:  s.opts.LoadTimeout,
		Interval: s.opts.PollInterval,
		Logger:   s.logger,
	})
	if err != nil {
		current, _ := s.URL(context.WithoutCancel(ctx))
		return &NavigationError{URL: current, Err: err}
	}
	return nil
}

func (s *ChromeSession) URL(ctx context.Context) (string, error) {
	var location string
	if err := s.run(ctx, chromedp.Location(&location)); err != nil {
		return "", fmt.Errorf("failed to read location: %w", err)
	}
	return location, nil
}

func (s *ChromeSession) Count(ctx context.Context, loc Locator) (int, error) {
	res, err := s.probe(ctx, loc, opCount, "")
	return res.Count, err
}

func (s *ChromeSession) Visible(ctx context.Context, loc Locator) (bool, error) {
	res, err := s.probe(ctx, loc, opText, "")
	return res.Found && res.Visible, err
}

func (s *ChromeSession) Text(ctx context.Context, loc Locator) (string, error) {
	res, err := s.probeOne(ctx, loc, opText, "")
	return res.Text, err
}

func (s *ChromeSession) Texts(ctx context.Context, loc Locator) ([]string, error) {
	res, err := s.probe(ctx, loc, opTexts, "")
	return res.Texts, err
}

func (s *ChromeSession) Value(ctx context.Context, loc Locator) (string, error) {
	res, err := s.probeOne(ctx, loc, opValue, "")
	return res.Text, err
}

func (s *ChromeSession) Attribute(ctx context.Context, loc Locator, name string) (string, error) {
	res, err := s.probeOne(ctx, loc, opAttr, name)
	return res.Text, err
}

func (s *ChromeSession) CSS(ctx context.Context, loc Locator, property string) (string, error) {
	res, err := s.probeOne(ctx, loc, opCSS, property)
	return strings.TrimSpace(res.Text), err
}

// point scrolls loc into view and returns its centre
func (s *ChromeSession) point(ctx context.Context, loc Locator) (float64, float64, error) {
	res, err := s.probeOne(ctx, loc, opBox, "")
	if err != nil {
		return 0, 0, err
	}
	if !res.Visible {
		return 0, 0, NotVisible(loc)
	}
	return res.X, res.Y, nil
}

func (s *ChromeSession) Click(ctx context.Context, loc Locator) error {
	x, y, err := s.point(ctx, loc)
	if err != nil {
		return err
	}
	if err := s.run(ctx, chromedp.MouseClickXY(x, y)); err != nil {
		return fmt.Errorf("failed to click %s: %w", loc, err)
	}
	s.logger.Debug().Str("locator", loc.String()).Msg("Clicked")
	return nil
}

func (s *ChromeSession) Hover(ctx context.Context, loc Locator) error {
	x, y, err := s.point(ctx, loc)
	if err != nil {
		return err
	}
	if err := s.run(ctx, chromedp.MouseEvent(input.MouseMoved, x, y)); err != nil {
		return fmt.Errorf("failed to hover %s: %w", loc, err)
	}
	return nil
}

// Fill replaces the value of an input. Text is typed through the input
// domain so the page sees real input events.
func (s *ChromeSession) Fill(ctx context.Context, loc Locator, text string) error {
	if text == "" {
		_, err := s.probeOne(ctx, loc, opClear, "")
		return err
	}
	if _, err := s.probeOne(ctx, loc, opFocus, ""); err != nil {
		return err
	}
	insert := chromedp.ActionFunc(func(ctx context.Context) error {
		return input.InsertText(text).Do(ctx)
	})
	if err := s.run(ctx, insert); err != nil {
		return fmt.Errorf("failed to fill %s: %w", loc, err)
	}
	return nil
}

func (s *ChromeSession) HTML(ctx context.Context) (string, error) {
	var html string
	if err := s.run(ctx, chromedp.Evaluate(`document.documentElement.outerHTML`, &html)); err != nil {
		return "", fmt.Errorf("failed to read page HTML: %w", err)
	}
	return html, nil
}

func (s *ChromeSession) Screenshot(ctx context.Context) ([]byte, error) {
	var buf []byte
	if err := s.run(ctx, chromedp.CaptureScreenshot(&buf)); err != nil {
		return nil, fmt.Errorf("failed to capture screenshot: %w", err)
	}
	return buf, nil
}

// Close closes the tab
func (s *ChromeSession) Close() error {
	err := chromedp.Cancel(s.tabCtx)
	s.cancelTab()
	if err != nil {
		return fmt.Errorf("failed to close tab: %w", err)
	}
	return nil
}

// chromeNames are the binaries LookChrome searches for on PATH
var chromeNames = []string{
	"google-chrome",
	"google-chrome-stable",
	"chromium",
	"chromium-browser",
	"headless-shell",
	"chrome",
}

// LookChrome reports a Chrome binary from CHROME_PATH or PATH
func LookChrome() (string, bool) {
	if path := os.Getenv("CHROME_PATH"); path != "" {
		if _, err := os.Stat(path); err == nil {
			return path, true
		}
	}
	for _, name := range chromeNames {
		if path, err := exec.LookPath(name); err == nil {
			return path, true
		}
	}
	return "", false
}
