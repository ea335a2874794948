// Package web provides the HTTP server and JSON handlers for the reject list API.
package web

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/JonMunkholm/rejectlist/internal/auth"
	"github.com/JonMunkholm/rejectlist/internal/config"
	"github.com/JonMunkholm/rejectlist/internal/core"
	"github.com/JonMunkholm/rejectlist/internal/metrics"
	mw "github.com/JonMunkholm/rejectlist/internal/web/middleware"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Cookies written next to the session cookie.
const (
	loggedInCookie = "logged_in"
	csrfCookie     = "csrftoken"
)

// limiterCleanupInterval is how often idle rate limit buckets are dropped.
const limiterCleanupInterval = time.Minute

// Server is the HTTP server for the reject list API.
type Server struct {
	service  *core.Service
	sessions *auth.Manager
	metrics  *metrics.Metrics // nil disables instrumentation
	cfg      *config.Config
	router   *chi.Mux
	server   *http.Server

	limiter      *mw.RateLimiter
	loginLimiter *mw.RateLimiter
	stopCleanup  context.CancelFunc
}

// NewServer creates a new Server instance. m may be nil.
func NewServer(service *core.Service, sessions *auth.Manager, m *metrics.Metrics, cfg *config.Config) *Server {
	s := &Server{
		service:  service,
		sessions: sessions,
		metrics:  m,
		cfg:      cfg,
		router:   chi.NewRouter(),
	}
	if cfg.Rate.Enabled {
		s.limiter = mw.NewRateLimiter(cfg.Rate.RequestsPerMinute, s.respondRateLimited)
		s.loginLimiter = mw.NewRateLimiter(cfg.Rate.LoginPerMinute, s.respondRateLimited)
	}
	s.setupMiddleware()
	s.setupRoutes()
	return s
}

// setupMiddleware configures middleware for all routes.
func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(mw.TrustedRealIP(s.cfg.Security.TrustedProxies))
	s.router.Use(mw.Logger)
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.Timeout(s.cfg.Server.RequestTimeout))
	s.router.Use(middleware.StripSlashes)
	s.router.Use(mw.SecurityHeaders(s.cfg.Security.EnableCSP))

	if s.limiter != nil {
		s.router.Use(s.limiter.Middleware)
	}
	if s.metrics != nil {
		s.router.Use(s.metrics.Middleware)
	}
}

// setupRoutes configures all HTTP routes.
func (s *Server) setupRoutes() {
	s.router.Get("/healthz", s.handleHealth)
	if s.metrics != nil && s.cfg.Metrics.Enabled {
		s.router.Handle(s.cfg.Metrics.Path, s.metrics.Handler())
	}

	s.router.Route("/api", func(r chi.Router) {
		r.Use(mw.Sessions(mw.SessionOptions{
			Manager:    s.sessions,
			CookieName: s.cfg.Session.CookieName,
			OnExpired:  s.clearSessionCookies,
			OnError:    s.respondError,
		}))

		// Authentication
		if s.loginLimiter != nil {
			r.With(s.loginLimiter.Middleware).Post("/login", s.handleLogin)
		} else {
			r.Post("/login", s.handleLogin)
		}
		r.Post("/logout", s.handleLogout)
		r.Get("/check-auth", s.handleCheckAuth)

		// Reject list records
		r.Route("/clients", func(r chi.Router) {
			r.Use(mw.RequireLogin(s.cfg.Auth.RequireLogin, s.respondUnauthenticated))

			r.Get("/", s.handleListClients)
			r.Post("/", s.handleCreateClients)
			r.Get("/export", s.handleExportClients)
			r.Post("/import", s.handleImportClients)

			r.Get("/{id}", s.handleGetClient)
			r.Put("/{id}", s.handleUpdateClient)
			r.Patch("/{id}", s.handleUpdateClient)
			r.Delete("/{id}", s.handleDeleteClient)
		})
	})
}

// Start begins listening for HTTP requests on the configured address.
// It returns nil after a graceful Shutdown.
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:         s.cfg.Server.Addr(),
		Handler:      s.router,
		ReadTimeout:  s.cfg.Server.ReadTimeout,
		WriteTimeout: s.cfg.Server.WriteTimeout,
		IdleTimeout:  s.cfg.Server.IdleTimeout,
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.stopCleanup = cancel
	for _, rl := range []*mw.RateLimiter{s.limiter, s.loginLimiter} {
		if rl != nil {
			go rl.RunCleanup(ctx, limiterCleanupInterval)
		}
	}

	slog.Info("starting server", "addr", s.server.Addr)
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.stopCleanup != nil {
		s.stopCleanup()
	}
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Router returns the underlying chi router for testing.
func (s *Server) Router() *chi.Mux {
	return s.router
}
