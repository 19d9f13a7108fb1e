// Package server assembles the HTTP surface of the Privileges API: the chi
// router, its middleware chain and the server lifecycle.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/privileges-api/privileges/internal/handler"
	"github.com/privileges-api/privileges/internal/model"
	"github.com/privileges-api/privileges/internal/openapi"
	"github.com/privileges-api/privileges/internal/server/middleware"
	"github.com/privileges-api/privileges/internal/service"
)

// Config holds the HTTP server configuration.
type Config struct {
	Host            string
	Port            int
	ShutdownTimeout time.Duration
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	CORSOrigins     []string
	MaxBodySize     int64 // bytes
	EnableDelete    bool
	Version         string
	BaseURL         string
}

// DefaultConfig returns a Config with sensible production defaults.
func DefaultConfig() Config {
	return Config{
		Host:            "0.0.0.0",
		Port:            8080,
		ShutdownTimeout: 30 * time.Second,
		ReadTimeout:     15 * time.Second,
		WriteTimeout:    60 * time.Second,
		CORSOrigins:     []string{"*"},
		MaxBodySize:     1 << 20,
		Version:         "dev",
	}
}

// Store is the persistence the server owns for its lifetime.
type Store interface {
	Ping(ctx context.Context) error
	Close() error
}

// Services bundles the domain services the handlers call.
type Services struct {
	Auth   *service.AuthService
	Events *service.EventService
	Tokens *service.TokenService
}

// Server is the top-level HTTP server. It owns the Chi router, the store
// handle and the authentication service, whose background work it drains on
// shutdown.
type Server struct {
	cfg        Config
	router     chi.Router
	store      Store
	svc        Services
	httpServer *http.Server
	logger     *slog.Logger
}

// New creates a new Server, wires up all routes and middleware, and returns
// it ready to listen. Call ListenAndServe to start accepting connections.
func New(cfg Config, store Store, svc Services, logger *slog.Logger) (*Server, error) {
	s := &Server{
		cfg:    cfg,
		store:  store,
		svc:    svc,
		logger: logger,
	}
	if err := s.setupRouter(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Server) setupRouter() error {
	docs, err := handler.NewDocsHandler(openapi.Generate(s.cfg.Version, s.cfg.BaseURL))
	if err != nil {
		return err
	}
	webhooks := handler.NewWebhookHandler(s.svc.Events, s.cfg.MaxBodySize, s.logger)
	analytics := handler.NewAnalyticsHandler(s.svc.Events, s.logger)
	exports := handler.NewExportHandler(s.svc.Events, s.logger)
	tokens := handler.NewTokenHandler(s.svc.Tokens, s.logger)

	r := chi.NewRouter()

	// --- Global middleware ---
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(s.logger))
	r.Use(middleware.Recoverer(s.logger))
	r.Use(chimw.RealIP)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:     s.cfg.CORSOrigins,
		AllowedMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:     []string{"Content-Type", "Authorization"},
		ExposedHeaders:     []string{middleware.RequestIDHeader, "Content-Disposition"},
		MaxAge:             300,
		OptionsPassthrough: true,
	}))
	r.Use(preflight)
	r.Use(chimw.Compress(5))
	r.Use(middleware.Gate(s.svc.Auth, s.logger))

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, model.ErrorResponse{Error: "Not found"})
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusMethodNotAllowed, model.ErrorResponse{Error: "Method not allowed"})
	})

	// --- Health checks (public) ---
	r.Get("/healthz", s.handleHealthz)
	r.Get("/readyz", s.handleReadyz)

	// --- Documentation (public) ---
	for _, alias := range []string{"/", "/ui", "/api/docs", "/api/v1/docs", handler.UIPath} {
		r.Get(alias, handler.RedirectToUI)
	}
	r.Get(handler.UIPath+"/*", docs.UI)
	r.Get(handler.OpenAPIPath, docs.OpenAPI)

	// --- API routes ---
	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/webhooks", func(r chi.Router) {
			// Intake is admitted by the gate without a principal.
			r.Post("/", webhooks.Receive)

			r.With(middleware.RequirePermission(model.PermRead)).Get("/", webhooks.List)
			r.With(middleware.RequirePermission(model.PermRead)).Get("/{id}", webhooks.Get)
			r.With(
				middleware.FeatureFlag(s.cfg.EnableDelete, "The DELETE endpoint is currently disabled"),
				middleware.RequirePermission(model.PermDelete),
			).Delete("/{id}", webhooks.Delete)
		})

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequirePermission(model.PermRead))

			r.Get("/analytics/summary", analytics.Summary)
			r.Get("/analytics/events", analytics.Events)

			r.Get("/exports/csv", exports.CSV)
			r.Get("/exports/json", exports.JSON)
		})

		r.Route("/tokens", func(r chi.Router) {
			r.Use(middleware.RequirePermission(model.PermTokenManagement))

			r.Get("/", tokens.List)
			r.Post("/", tokens.Create)
			r.Get("/{id}", tokens.Get)
			r.Delete("/{id}", tokens.Manage)
		})
	})

	s.router = r
	return nil
}

// handleHealthz is a liveness probe. Returns 200 if the process is running.
func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleReadyz is a readiness probe. Returns 200 when the store answers a
// ping, or 503 otherwise.
func (s *Server) handleReadyz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := s.store.Ping(ctx); err != nil {
		s.logger.Warn("readiness check failed", "error", err)
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status": "unavailable",
			"checks": map[string]string{"database": "error: " + err.Error()},
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"checks": map[string]string{"database": "ok"},
	})
}

// ListenAndServe starts the HTTP server and blocks until a SIGINT or SIGTERM
// is received, then shuts down gracefully.
func (s *Server) ListenAndServe() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return s.Run(ctx)
}

// Run serves until ctx is cancelled. Shutdown drains in-flight requests,
// waits for pending last-used updates and then closes the store.
func (s *Server) Run(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
		IdleTimeout:  120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server starting", "addr", addr)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		releaseCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
		defer cancel()
		return errors.Join(fmt.Errorf("server listen: %w", err), s.release(releaseCtx))
	case <-ctx.Done():
		s.logger.Info("shutdown signal received, draining connections...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()

	var shutdownErr error
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		shutdownErr = fmt.Errorf("server shutdown: %w", err)
	}
	if err := errors.Join(shutdownErr, s.release(shutdownCtx)); err != nil {
		return err
	}
	s.logger.Info("server stopped")
	return nil
}

// release waits for pending last-used updates, bounded by ctx, and closes
// the store. It runs on every exit path of Run.
func (s *Server) release(ctx context.Context) error {
	if err := s.svc.Auth.Drain(ctx); err != nil {
		s.logger.Warn("pending token updates abandoned", "error", err)
	}
	if err := s.store.Close(); err != nil {
		return fmt.Errorf("close store: %w", err)
	}
	return nil
}

// Router returns the underlying Chi router, useful for testing.
func (s *Server) Router() chi.Router {
	return s.router
}

// ServeHTTP implements http.Handler, delegating to the router.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// preflight answers every OPTIONS request with 204 once CORS headers are
// set, whether or not a route exists for the path.
func preflight(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
