// Package httpapi is the HTTP surface of socialrelay: the OAuth connect and
// callback endpoints, connection management, and publishing.
package httpapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"golang.org/x/time/rate"

	"github.com/custodia-labs/socialrelay/internal/logger"
)

// Config configures the router and server.
type Config struct {
	Addr           string
	AllowedOrigins []string
	// RateLimit is requests per second per client IP; zero disables limiting.
	RateLimit float64
	RateBurst int
	// TrustProxy applies X-Forwarded-For / X-Real-IP to the client address.
	TrustProxy bool
	Production bool
	// RequestTimeout bounds each request, publishes included.
	RequestTimeout  time.Duration
	ShutdownTimeout time.Duration
}

// NewRouter builds the chi router.
func NewRouter(cfg Config, h *Handlers, auth *Authenticator, limiter *RateLimiter) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	if cfg.TrustProxy {
		r.Use(middleware.RealIP)
	}
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(SecurityHeaders(cfg.Production))
	if cfg.RequestTimeout > 0 {
		r.Use(middleware.Timeout(cfg.RequestTimeout))
	}

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", h.Health)

	r.Group(func(r chi.Router) {
		if limiter != nil {
			r.Use(limiter.Middleware)
		}

		// The provider redirects the browser here; the state identifies the user.
		r.Get("/connect/{platform}/callback", h.Callback)

		r.Group(func(r chi.Router) {
			r.Use(auth.Middleware)

			r.Get("/platforms", h.Platforms)
			r.Get("/connect/{platform}", h.Connect)
			r.Post("/connect/{platform}/disconnect", h.DisconnectPlatform)
			r.Get("/connections", h.ListConnections)
			r.Delete("/connections/{id}", h.DeleteConnection)
			r.Post("/publish/{platform}", h.Publish)
		})
	})

	return r
}

// Server runs the HTTP API until its context is cancelled.
type Server struct {
	cfg     Config
	handler http.Handler
	limiter *RateLimiter
}

// NewServer wires handlers, authentication and rate limiting into a server.
func NewServer(cfg Config, h *Handlers, auth *Authenticator) *Server {
	var limiter *RateLimiter
	if cfg.RateLimit > 0 {
		burst := cfg.RateBurst
		if burst <= 0 {
			burst = int(cfg.RateLimit) * 2
		}
		limiter = NewRateLimiter(rate.Limit(cfg.RateLimit), burst)
	}
	return &Server{
		cfg:     cfg,
		handler: NewRouter(cfg, h, auth, limiter),
		limiter: limiter,
	}
}

// Handler returns the router.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Run listens on cfg.Addr and shuts down gracefully when ctx is done.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	if s.limiter != nil {
		go s.limiter.RunPruner(ctx, 10*time.Minute, 30*time.Minute)
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http: listening on %s", s.cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	timeout := s.cfg.ShutdownTimeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	logger.Info("http: shutting down")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	return nil
}
