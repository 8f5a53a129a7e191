// Package server provides the HTTP server and routing for RiskLens.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"github.com/risklens/risklens/internal/config"
	"github.com/risklens/risklens/internal/database"
	"github.com/risklens/risklens/internal/marketdata"
	"github.com/risklens/risklens/internal/modules/optimization"
	optimizationhandlers "github.com/risklens/risklens/internal/modules/optimization/handlers"
	"github.com/risklens/risklens/internal/modules/portfolio"
	portfoliohandlers "github.com/risklens/risklens/internal/modules/portfolio/handlers"
	"github.com/risklens/risklens/internal/modules/risk"
	riskhandlers "github.com/risklens/risklens/internal/modules/risk/handlers"
	"github.com/risklens/risklens/internal/modules/scenarios"
	scenarioshandlers "github.com/risklens/risklens/internal/modules/scenarios/handlers"
	"github.com/risklens/risklens/internal/tasks"
	taskshandlers "github.com/risklens/risklens/internal/tasks/handlers"
)

// Config holds server configuration and the wired services.
type Config struct {
	Log zerolog.Logger
	Cfg *config.Config

	PortfolioDB *database.DB
	TasksDB     *database.DB

	Builder     *marketdata.Builder
	RiskService *risk.Service
	Registry    *scenarios.Registry
	Optimizer   *optimization.Optimizer
	Portfolios  *portfolio.Repository
	Worker      *tasks.Worker
	TaskStore   *tasks.Store
}

// Server is the HTTP server.
type Server struct {
	router *chi.Mux
	server *http.Server
	log    zerolog.Logger

	cfg            *config.Config
	portfolioDB    *database.DB
	tasksDB        *database.DB
	systemHandlers *SystemHandlers
}

// New creates a new HTTP server.
func New(cfg Config) *Server {
	s := &Server{
		router:      chi.NewRouter(),
		log:         cfg.Log.With().Str("component", "server").Logger(),
		cfg:         cfg.Cfg,
		portfolioDB: cfg.PortfolioDB,
		tasksDB:     cfg.TasksDB,
	}
	s.systemHandlers = NewSystemHandlers(cfg.Log, cfg.Builder, []*database.DB{cfg.PortfolioDB, cfg.TasksDB})

	s.setupMiddleware(cfg.Cfg.DevMode)
	s.setupRoutes(cfg)

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Cfg.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// Router exposes the configured router, mainly for tests.
func (s *Server) Router() chi.Router {
	return s.router
}

// setupMiddleware configures middleware
func (s *Server) setupMiddleware(devMode bool) {
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(s.loggingMiddleware)
	s.router.Use(middleware.Timeout(60 * time.Second))

	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	if !devMode {
		s.router.Use(middleware.Compress(5))
	}
}

// setupRoutes configures all routes
func (s *Server) setupRoutes(cfg Config) {
	riskHandler := riskhandlers.NewHandler(cfg.RiskService, cfg.Log)
	scenarioHandler := scenarioshandlers.NewHandler(cfg.Registry, cfg.Log)
	optimizationHandler := optimizationhandlers.NewHandler(cfg.Builder, cfg.Optimizer, cfg.Log)
	portfolioHandler := portfoliohandlers.NewHandler(cfg.Portfolios, cfg.RiskService, cfg.Log)
	taskHandler := taskshandlers.NewHandler(cfg.Worker, cfg.TaskStore, cfg.Log)

	s.router.Get("/health", s.systemHandlers.HandleHealth)

	s.router.Route("/api", func(r chi.Router) {
		r.Get("/health", s.systemHandlers.HandleHealth)
		r.Get("/validate-ticker/{ticker}", s.systemHandlers.HandleValidateTicker)

		riskHandler.RegisterRoutes(r)
		scenarioHandler.RegisterRoutes(r)
		optimizationHandler.RegisterRoutes(r)
		portfolioHandler.RegisterRoutes(r)
		taskHandler.RegisterRoutes(r)
	})
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.log.Info().Int("port", s.cfg.Port).Msg("Starting HTTP server")
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info().Msg("Shutting down HTTP server")
	return s.server.Shutdown(ctx)
}

// loggingMiddleware logs HTTP requests
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		s.log.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Int("bytes", ww.BytesWritten()).
			Dur("duration_ms", time.Since(start)).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("HTTP request")
	})
}
