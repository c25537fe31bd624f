// Package server wires the MediSearch route surface onto a chi router with
// its middleware stack and manages the HTTP server lifecycle.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	_ "net/http/pprof"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/giygas/medisearch/config"
	"github.com/giygas/medisearch/handlers"
	"github.com/giygas/medisearch/interfaces"
	"github.com/giygas/medisearch/logging"
	"github.com/giygas/medisearch/metrics"
)

// Server represents the HTTP server
type Server struct {
	server  *http.Server
	router  chi.Router
	config  *config.Config
	handler interfaces.HTTPHandler
	gate    Resolver
	limiter *RateLimiter
}

// NewServer creates a new server instance. Every route except the
// infrastructure ones goes through gate.
func NewServer(cfg *config.Config, handler interfaces.HTTPHandler, gate Resolver) *Server {
	router := chi.NewRouter()

	s := &Server{
		server: &http.Server{
			Handler:      router,
			Addr:         cfg.Address + ":" + cfg.Port,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		router:  router,
		config:  cfg,
		handler: handler,
		gate:    gate,
		limiter: NewRateLimiter(defaultRate, defaultCapacity),
	}

	s.setupMiddleware()
	s.setupRoutes()

	return s
}

func requestLogger() *slog.Logger {
	if logging.DefaultLoggingService != nil && logging.DefaultLoggingService.Logger != nil {
		return logging.DefaultLoggingService.Logger
	}
	return slog.Default()
}

// setupMiddleware configures all middleware
func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(RealIPMiddleware)
	s.router.Use(logging.LoggingMiddleware(requestLogger()))
	s.router.Use(metrics.Metrics)
	s.router.Use(middleware.RedirectSlashes)
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.Compress(5, "application/json"))
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.config.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Retry-After", "X-RateLimit-Remaining"},
		AllowCredentials: false,
		MaxAge:           300,
	}))
	s.router.Use(RequestSizeMiddleware(s.config))
	s.router.Use(s.limiter.Middleware)
}

// setupRoutes configures all routes
func (s *Server) setupRoutes() {
	h := s.handler

	// Infrastructure, reachable whatever the session phase
	s.router.Get("/health", h.HealthCheck)
	s.router.Handle("/metrics", promhttp.Handler())
	s.router.Get("/preferences/theme", h.GetTheme)
	s.router.Put("/preferences/theme", h.SetTheme)

	s.router.Group(func(r chi.Router) {
		r.Use(GateMiddleware(s.gate))

		r.Get("/login", h.AuthView)
		r.Post("/login", h.SubmitAuth)

		r.Route("/admin", func(r chi.Router) {
			r.Get("/", h.Home)
			r.Get("/search", h.Search)
			r.Post("/search/input", h.SearchInput)
			r.Post("/search/voice", h.VoiceSearch)
			r.Get("/search/current", h.CurrentSearch)
			r.Get("/medicine/{id}", h.MedicineDetail)
			r.Post("/logout", h.SignOut)
		})
	})

	// Unmatched paths are gated too, so they redirect rather than 404
	gated := GateMiddleware(s.gate)
	s.router.NotFound(gated(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handlers.RespondWithError(w, http.StatusNotFound, "Not Found")
	})).ServeHTTP)
	s.router.MethodNotAllowed(gated(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handlers.RespondWithError(w, http.StatusMethodNotAllowed, "Method Not Allowed")
	})).ServeHTTP)
}

// Router returns the configured router
func (s *Server) Router() http.Handler {
	return s.router
}

// Start starts the server
func (s *Server) Start() error {
	if s.config.Env == config.EnvDevelopment {
		s.startProfilingServer()
	}

	s.limiter.StartCleanup(30 * time.Minute)

	logging.Info(fmt.Sprintf("Starting server at: %s:%s", s.config.Address, s.config.Port))
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	logging.Info("Shutting down server...")
	s.limiter.Stop()

	if err := s.server.Shutdown(ctx); err != nil {
		logging.Error("Server forced to shutdown", "error", err)
		if err := s.server.Close(); err != nil {
			logging.Error("Server close error", "error", err)
			return err
		}
	}

	logging.Info("Server shutdown complete")
	return nil
}

// startProfilingServer starts the pprof profiling server in development mode
func (s *Server) startProfilingServer() {
	go func() {
		logging.Info("Profiling server started at http://localhost:6060/debug/pprof/")
		if err := http.ListenAndServe("localhost:6060", nil); err != nil {
			logging.Warn("Profiling server failed", "error", err)
		}
	}()
}
