package storefront

import (
	"fmt"
	"net/http"
	"strings"
	"time"
)

func (s *Server) withMiddleware(handler http.Handler) http.Handler {
	handler = s.latencyMiddleware(handler)
	handler = s.recoveryMiddleware(handler)
	return s.accessLogMiddleware(handler)
}

// accessLogMiddleware writes one debug line per request. Filter changes are
// plain navigations, so the query string is what a failing scenario asked for.
func (s *Server) accessLogMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		event := s.logger.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", rec.status).
			Dur("duration", time.Since(start))
		if r.URL.RawQuery != "" {
			event = event.Str("query", r.URL.RawQuery)
		}
		event.Msg("Storefront request")
	})
}

// latencyMiddleware holds listing responses back by the configured delay
func (s *Server) latencyMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if delay := s.listingDelay.Load(); delay > 0 && strings.HasPrefix(r.URL.Path, AllModelsPath) {
			select {
			case <-time.After(time.Duration(delay)):
			case <-r.Context().Done():
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) recoveryMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rv := recover(); rv != nil {
				s.logger.Error().
					Str("panic", fmt.Sprint(rv)).
					Str("path", r.URL.Path).
					Msg("Storefront handler panicked")
				http.Error(w, "Internal server error", http.StatusInternalServerError)
			}
		}()
		next.ServeHTTP(w, r)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}
