package storefront

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/storefront-e2e/internal/fixtures"
)

//go:embed templates/*.html
var templateFS embed.FS

// Paths the demo serves besides the navigation content pages
const (
	HomePath      = "/"
	AllModelsPath = "/shop/all-models"
	StatusPath    = "/status"
)

// Server serves the demo storefront
type Server struct {
	logger    arbor.ILogger
	nav       fixtures.Navigation
	homes     []Home
	headings  map[string]string
	templates *template.Template
	router    *http.ServeMux
	server    *http.Server
	listener  net.Listener

	listingDelay atomic.Int64
}

// New creates a storefront whose header and content pages follow nav
func New(nav fixtures.Navigation, logger arbor.ILogger) (*Server, error) {
	if logger == nil {
		logger = arbor.NewNoOpLogger()
	}
	tmpl, err := template.New("").Funcs(template.FuncMap{
		"plural": plural,
	}).ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse storefront templates: %w", err)
	}

	s := &Server{
		logger:    logger,
		nav:       nav,
		homes:     Catalogue(),
		headings:  make(map[string]string),
		templates: tmpl,
	}
	for _, menu := range nav.Menus {
		for _, link := range menu.Links {
			s.headings[link.Href] = link.Heading
		}
	}
	s.router = s.setupRoutes()
	return s, nil
}

// SetListingDelay makes every listing response wait d before rendering,
// so scenarios see results arrive late the way a slow backend would.
func (s *Server) SetListingDelay(d time.Duration) {
	s.listingDelay.Store(int64(d))
}

// Handler returns the routed handler with middleware applied
func (s *Server) Handler() http.Handler {
	return s.withMiddleware(s.router)
}

// Start listens on addr (":0" picks a free port) and serves in the
// background. It returns the base URL the storefront answers on.
func (s *Server) Start(addr string) (string, error) {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return "", fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	s.listener = listener
	s.server = &http.Server{
		Handler:      s.Handler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	baseURL := fmt.Sprintf("http://127.0.0.1:%d", listener.Addr().(*net.TCPAddr).Port)
	s.logger.Info().
		Str("url", baseURL).
		Int("homes", len(s.homes)).
		Msg("Demo storefront starting")

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error().Err(err).Msg("Demo storefront failed")
		}
	}()
	return baseURL, nil
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("storefront shutdown failed: %w", err)
	}
	s.logger.Info().Msg("Demo storefront stopped")
	return nil
}

func (s *Server) setupRoutes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET "+StatusPath, s.handleStatus)
	mux.HandleFunc("GET "+AllModelsPath, s.handleListing)
	mux.HandleFunc("GET /", s.handlePage)
	return mux
}

func plural(n int, word string) string {
	if n == 1 {
		return fmt.Sprintf("%d %s", n, word)
	}
	return fmt.Sprintf("%d %ss", n, word)
}
