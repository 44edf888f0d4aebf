package browser

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/storefront-e2e/internal/poll"
)

const fixturePage = `<!DOCTYPE html>
<html>
<head>
<title>Fixture</title>
<style>
  a.filter { border: 2px solid rgb(200, 200, 200); }
  a.filter.active { border-color: rgb(0, 149, 250); }
  .menu ul { display: none; }
  .menu:hover ul { display: block; }
</style>
</head>
<body>
  <div id="header"><a href="/" aria-label="Link to home page">Home</a></div>
  <div class="menu">
    <button>Shop</button>
    <ul><li role="menuitem"><a href="/next">All Models</a></li></ul>
  </div>
  <div><span>Bedrooms</span><div><a class="filter" href="/next?bedroomCount=2">2</a></div></div>
  <a class="filter active" href="/">Any</a>
  <p><span>3 Homes</span></p>
  <div id="homecard-1">RGN The Braustin</div>
  <div id="homecard-2">Clayton Tempo 1</div>
  <div id="homecard-3" style="display:none">Hidden</div>
  <input type="search" role="searchbox" value="">
</body>
</html>`

const nextPage = `<!DOCTYPE html><html><head><title>Next</title></head><body><h1>All Models</h1></body></html>`

func newChromeSession(t *testing.T) (*ChromeSession, string) {
	t.Helper()
	if testing.Short() {
		t.Skip("browser tests skipped in short mode")
	}
	path, ok := LookChrome()
	if !ok {
		t.Skip("Chrome not found on PATH or CHROME_PATH")
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/next", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, nextPage)
	})
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, fixturePage)
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	opts := DefaultOptions()
	opts.ExecPath = path
	opts.NoSandbox = true
	opts.BaseURL = server.URL
	b, err := Launch(opts, arbor.NewNoOpLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = b.Close() })

	session, err := b.NewSession(context.Background())
	require.NoError(t, err)
	t.Cleanup(func() { _ = session.Close() })

	return session.(*ChromeSession), server.URL
}

func TestChromeSession_Reads(t *testing.T) {
	s, baseURL := newChromeSession(t)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	require.NoError(t, s.Navigate(ctx, "/"))
	require.NoError(t, s.WaitForLoad(ctx, LoadStateLoad))

	url, err := s.URL(ctx)
	require.NoError(t, err)
	assert.Equal(t, baseURL+"/", url)

	count, err := s.Count(ctx, CSS(`[id^="homecard-"]`))
	require.NoError(t, err)
	assert.Equal(t, 3, count)

	visibleCount, err := s.Count(ctx, CSS(`[id^="homecard-"]`).Visible())
	require.NoError(t, err)
	assert.Equal(t, 2, visibleCount)

	texts, err := s.Texts(ctx, CSS(`[id^="homecard-"]`).Visible())
	require.NoError(t, err)
	assert.Equal(t, []string{"RGN The Braustin", "Clayton Tempo 1"}, texts)

	homes := CSS("body *").WithPattern(regexp.MustCompile(`^3 Home(s)?$`))
	text, err := s.Text(ctx, homes)
	require.NoError(t, err)
	assert.Equal(t, "3 Homes", text)
	homesCount, err := s.Count(ctx, homes)
	require.NoError(t, err)
	assert.Equal(t, 1, homesCount, "only the innermost element matches")

	color, err := s.CSS(ctx, CSS("a").WithExactText("Any"), "border-color")
	require.NoError(t, err)
	assert.Equal(t, "rgb(0, 149, 250)", color)

	label, err := s.Attribute(ctx, CSS("#header a"), "aria-label")
	require.NoError(t, err)
	assert.Equal(t, "Link to home page", label)

	bedroom := XPath(`//span[normalize-space()='Bedrooms']/following-sibling::div//a[contains(@href, 'bedroomCount=2')]`)
	visible, err := s.Visible(ctx, bedroom)
	require.NoError(t, err)
	assert.True(t, visible)

	_, err = s.Text(ctx, CSS("#missing"))
	assert.True(t, poll.IsTransient(err))

	html, err := s.HTML(ctx)
	require.NoError(t, err)
	assert.Contains(t, html, "RGN The Braustin")

	png, err := s.Screenshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, []byte("\x89PNG"), png[:4])
}

func TestChromeSession_Actions(t *testing.T) {
	s, _ := newChromeSession(t)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	require.NoError(t, s.Navigate(ctx, "/"))

	search := CSS(`[role="searchbox"]`)
	require.NoError(t, s.Fill(ctx, search, "Clayton"))
	value, err := s.Value(ctx, search)
	require.NoError(t, err)
	assert.Equal(t, "Clayton", value)

	require.NoError(t, s.Fill(ctx, search, ""))
	value, err = s.Value(ctx, search)
	require.NoError(t, err)
	assert.Empty(t, value)

	link := CSS(`li[role="menuitem"] a[href="/next"]`).Visible()
	hidden, err := s.Visible(ctx, link)
	require.NoError(t, err)
	assert.False(t, hidden)
	assert.True(t, poll.IsTransient(s.Click(ctx, link)), "hidden links are not clickable yet")

	require.NoError(t, s.Hover(ctx, CSS("button").WithExactText("Shop").First()))
	require.NoError(t, poll.Pass(ctx, func(ctx context.Context) error {
		return s.Click(ctx, link)
	}, poll.Policy{Timeout: 5 * time.Second}))

	heading := CSS("h1, h2").WithText("All Models").First()
	_, err = poll.Until(ctx, func(ctx context.Context) (bool, error) {
		return s.Visible(ctx, heading)
	}, poll.Visible(), poll.Policy{Timeout: 10 * time.Second})
	require.NoError(t, err)
}

func TestChromeSession_NavigationFailure(t *testing.T) {
	s, _ := newChromeSession(t)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	err := s.Navigate(ctx, "http://127.0.0.1:1/unreachable")
	require.Error(t, err)
	assert.True(t, IsNavigationError(err))
	assert.False(t, poll.IsTransient(err))
}
