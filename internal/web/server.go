// Package web serves the operational HTTP endpoints: health, metrics and
// manual pipeline runs.
package web

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// ServerConfig holds server configuration.
type ServerConfig struct {
	Addr   string
	Runner Runner
	Logger *zap.SugaredLogger

	// Metrics serves /metrics. Defaults to promhttp.Handler().
	Metrics http.Handler
}

// Server is the ops HTTP server.
type Server struct {
	router   chi.Router
	server   *http.Server
	handlers *Handlers
	log      *zap.SugaredLogger
}

// NewServer creates a new ops server.
func NewServer(cfg ServerConfig) (*Server, error) {
	if cfg.Runner == nil {
		return nil, errors.New("web: runner is required")
	}
	if cfg.Addr == "" {
		return nil, errors.New("web: address is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop().Sugar()
	}
	if cfg.Metrics == nil {
		cfg.Metrics = promhttp.Handler()
	}

	router := chi.NewRouter()

	s := &Server{
		router:   router,
		handlers: NewHandlers(cfg.Runner, cfg.Logger),
		log:      cfg.Logger,
	}

	s.setupMiddleware()
	s.setupRoutes(cfg.Metrics)

	s.server = &http.Server{
		Addr:         cfg.Addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s, nil
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// setupMiddleware configures middleware for the router.
func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(requestLogger(s.log))
	s.router.Use(middleware.Recoverer)
}

// setupRoutes configures routes for the application.
func (s *Server) setupRoutes(metrics http.Handler) {
	s.router.Get("/healthz", s.handlers.Health)
	s.router.Method(http.MethodGet, "/metrics", metrics)

	s.router.Route("/runs", func(r chi.Router) {
		r.Post("/", s.handlers.StartRun)
		r.Get("/latest", s.handlers.LatestRun)
	})
}

// requestLogger logs one line per request with zap.
func requestLogger(log *zap.SugaredLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			defer func() {
				log.Infow("http request",
					"method", r.Method,
					"path", r.URL.Path,
					"status", ww.Status(),
					"bytes", ww.BytesWritten(),
					"duration", time.Since(start),
					"request_id", middleware.GetReqID(r.Context()),
				)
			}()
			next.ServeHTTP(ww, r)
		})
	}
}

// Run serves until ctx is cancelled, then shuts down gracefully.
// Background runs started through the API share ctx.
func (s *Server) Run(ctx context.Context) error {
	s.handlers.baseCtx = ctx

	errCh := make(chan error, 1)
	go func() {
		s.log.Infow("starting server", "addr", "http://"+s.server.Addr)
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		s.log.Infow("shutting down server")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := s.server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	s.log.Infow("server stopped")
	return nil
}
