// Package web serves the import API over HTTP.
package web

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/JonMunkholm/salesimport/internal/core"
	"github.com/JonMunkholm/salesimport/internal/logging"
	"github.com/JonMunkholm/salesimport/internal/web/middleware"
)

// multipartOverhead is allowed on top of the file size limit for the
// multipart envelope and form fields.
const multipartOverhead = 1 << 20

// Options configure the HTTP layer. Zero values disable the feature.
type Options struct {
	// MaxFileSize limits uploaded spreadsheets, in bytes.
	MaxFileSize int64
	// RequestTimeout bounds every route except POST /api/import, which is
	// bounded by the service's own run timeout.
	RequestTimeout time.Duration
	// TrustedProxies are the CIDRs whose forwarding headers are honoured.
	TrustedProxies []string
	// RateLimit requests per RateWindow per client IP.
	RateLimit  int
	RateWindow time.Duration

	// Addr and the timeouts configure the listening http.Server.
	Addr         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// Server is the HTTP server for the import service.
type Server struct {
	service *core.Service
	opts    Options
	router  *chi.Mux
	server  *http.Server
}

// NewServer creates a Server. ctx bounds background work such as rate
// limiter sweeps.
func NewServer(ctx context.Context, service *core.Service, opts Options) *Server {
	s := &Server{
		service: service,
		opts:    opts,
		router:  chi.NewRouter(),
	}
	s.setupMiddleware(ctx)
	s.setupRoutes()
	s.server = &http.Server{
		Addr:         opts.Addr,
		Handler:      s.router,
		ReadTimeout:  opts.ReadTimeout,
		WriteTimeout: opts.WriteTimeout,
		IdleTimeout:  opts.IdleTimeout,
	}
	return s
}

func (s *Server) setupMiddleware(ctx context.Context) {
	s.router.Use(chimw.RequestID)
	s.router.Use(middleware.TrustedRealIP(s.opts.TrustedProxies))
	s.router.Use(middleware.Logger)
	s.router.Use(chimw.Recoverer)
	s.router.Use(securityHeaders)

	if s.opts.RateLimit > 0 {
		limiter := middleware.NewRateLimiter(ctx, s.opts.RateLimit, s.opts.RateWindow)
		s.router.Use(limiter.Handler)
	}
}

func (s *Server) setupRoutes() {
	// Imports can run for minutes; the service applies its own timeout.
	s.router.Post("/api/import", s.handleImport)

	s.router.Group(func(r chi.Router) {
		if s.opts.RequestTimeout > 0 {
			r.Use(chimw.Timeout(s.opts.RequestTimeout))
		}

		r.Get("/healthz", s.handleHealth)

		r.Route("/api", func(r chi.Router) {
			r.Get("/import/template", s.handleTemplate)
			r.Get("/imports", s.handleListRuns)
			r.Get("/imports/{runID}", s.handleGetRun)
			r.Get("/imports/{runID}/errors.csv", s.handleRunErrorsCSV)
		})
	})
}

// Start serves until Shutdown. A Shutdown that runs first makes Start
// return nil immediately.
func (s *Server) Start() error {
	slog.Info("starting server", "addr", s.server.Addr)
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully stops the server. It is safe to call before or
// concurrently with Start.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

// Router returns the underlying chi router for testing.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// securityHeaders adds security headers to all responses.
func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		next.ServeHTTP(w, r)
	})
}

// writeJSON encodes v as JSON with the given status.
// Encoding errors are only logged since headers are already sent.
func writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.FromContext(r.Context()).Warn("json encode error", "error", err)
	}
}
