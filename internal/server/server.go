// Package server serves the public HTTP endpoints: the Last.fm link
// callback and a health check.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"

	"github.com/jfmyers9/slackfm/internal/link"
	"github.com/jfmyers9/slackfm/internal/ratelimit"
	"github.com/jfmyers9/slackfm/internal/store"
)

const shutdownTimeout = 10 * time.Second

// Redeemer completes account links.
type Redeemer interface {
	Redeem(ctx context.Context, req link.RedeemRequest) (*store.Identity, error)
}

// Pinger reports whether a dependency is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Options configures a Server.
type Options struct {
	// CallbackLimit is requests per minute per client IP on the callback.
	CallbackLimit int

	// DB is checked by the health endpoint when set.
	DB Pinger

	Logger zerolog.Logger
	Now    func() time.Time
}

// Server holds dependencies for HTTP handlers.
type Server struct {
	redeemer Redeemer
	db       Pinger
	limiter  *ratelimit.KeyedRateLimiter
	router   *chi.Mux
	logger   zerolog.Logger
	now      func() time.Time
	started  time.Time
}

// New creates a Server with all routes configured.
func New(redeemer Redeemer, opts Options) *Server {
	if opts.CallbackLimit <= 0 {
		opts.CallbackLimit = 20
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	s := &Server{
		redeemer: redeemer,
		db:       opts.DB,
		limiter:  ratelimit.PerInterval(opts.CallbackLimit, time.Minute),
		router:   chi.NewRouter(),
		logger:   opts.Logger.With().Str("component", "http").Logger(),
		now:      opts.Now,
	}
	s.started = s.now()

	s.setupMiddleware()
	s.setupRoutes()

	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RealIP)
	s.router.Use(hlog.NewHandler(s.logger))
	s.router.Use(hlog.RequestIDHandler("req_id", "X-Request-Id"))
	s.router.Use(hlog.AccessHandler(func(r *http.Request, status, size int, duration time.Duration) {
		hlog.FromRequest(r).Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", status).
			Int("size", size).
			Dur("duration", duration).
			Msg("Request")
	}))
	s.router.Use(middleware.Recoverer)
}

func (s *Server) setupRoutes() {
	s.router.Get("/health", s.handleHealth)

	s.router.Group(func(r chi.Router) {
		r.Use(ratelimit.Middleware(s.limiter))
		r.Get("/lastfm/callback", s.handleCallback)
	})
}

// Run serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().Str("addr", addr).Msg("HTTP server listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	s.logger.Info().Msg("HTTP server stopped")
	return ctx.Err()
}
