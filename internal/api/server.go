// Package api wires the domain services into the HTTP server.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"

	apihandlers "github.com/slipstream/decisionengine/internal/api/handlers"
	apimw "github.com/slipstream/decisionengine/internal/api/middleware"
	"github.com/slipstream/decisionengine/internal/config"
	"github.com/slipstream/decisionengine/internal/database"
	"github.com/slipstream/decisionengine/internal/decisioning"
	"github.com/slipstream/decisionengine/internal/decisioning/specifications"
	"github.com/slipstream/decisionengine/internal/indexer/status"
	"github.com/slipstream/decisionengine/internal/library/quality"
	"github.com/slipstream/decisionengine/internal/policy"
	"github.com/slipstream/decisionengine/internal/scheduler"
)

// Server handles HTTP requests for the decision engine API.
type Server struct {
	echo      *echo.Echo
	api       *echo.Group
	db        *database.DB
	logger    zerolog.Logger
	cfg       *config.Config
	startTime time.Time

	// Services
	statusService  *status.Service
	grabTracker    *decisioning.GrabTracker
	decisionStore  *decisioning.Store
	policyStore    *policy.Store
	policyProvider *policy.Provider
	engine         *decisioning.Engine
	scheduler      *scheduler.Scheduler
}

// NewServer creates a new API server instance and its services.
func NewServer(db *database.DB, cfg *config.Config, logger zerolog.Logger) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	s := &Server{
		echo:      e,
		db:        db,
		logger:    logger.With().Str("component", "api").Logger(),
		cfg:       cfg,
		startTime: time.Now(),
	}

	s.statusService = status.NewService(db.Conn(), logger)
	s.statusService.SetBackoff(cfg.Decision.IndexerBackoff)
	s.grabTracker = decisioning.NewGrabTracker(cfg.Decision.PendingGrabTTL)
	s.decisionStore = decisioning.NewStore(db.Conn(), logger)
	s.policyStore = policy.NewStore(db, logger)
	s.policyProvider = policy.NewProvider(s.policyStore, s.statusService, logger)

	s.engine = decisioning.NewEngine(s.policyProvider, specifications.Default(), decisioning.Config{
		Workers:      cfg.Decision.Workers,
		SizeBucketMB: cfg.Decision.SizeBucketMB,
		AgeTolerance: cfg.Decision.AgeTolerance,
	}, logger)
	s.engine.SetGrabTracker(s.grabTracker)
	s.engine.SetRecorder(s.decisionStore)

	s.setupMiddleware()
	s.setupRoutes()

	return s
}

// setupMiddleware configures Echo middleware.
func (s *Server) setupMiddleware() {
	s.echo.Use(middleware.Recover())
	s.echo.Use(middleware.RequestID())
	s.echo.Use(apimw.SecurityHeaders())

	s.echo.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept},
	}))

	s.echo.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogURI:       true,
		LogStatus:    true,
		LogLatency:   true,
		LogMethod:    true,
		LogError:     true,
		LogRequestID: true,
		HandleError:  true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			if v.Error != nil {
				s.logger.Error().
					Str("method", v.Method).
					Str("uri", v.URI).
					Str("requestId", v.RequestID).
					Int("status", v.Status).
					Dur("latency", v.Latency).
					Err(v.Error).
					Msg("request error")
			} else {
				s.logger.Debug().
					Str("method", v.Method).
					Str("uri", v.URI).
					Str("requestId", v.RequestID).
					Int("status", v.Status).
					Dur("latency", v.Latency).
					Msg("request")
			}
			return nil
		},
	}))

	s.echo.Use(middleware.GzipWithConfig(middleware.GzipConfig{Level: 5}))
}

// setupRoutes configures API routes.
func (s *Server) setupRoutes() {
	s.echo.GET("/health", s.healthCheck)

	s.api = s.echo.Group("/api/v1")
	s.api.GET("/status", s.getStatus)

	decisioning.NewHandlers(s.engine, s.grabTracker, s.decisionStore).RegisterRoutes(s.api.Group("/decisions"))
	policy.NewHandlers(s.policyStore).RegisterRoutes(s.api.Group("/policy"))
	status.NewHandlers(s.statusService).RegisterRoutes(s.api.Group("/indexers"))
	quality.NewHandlers().RegisterRoutes(s.api.Group("/qualities"))

	if s.cfg.Logging.Path != "" {
		NewLogsHandlers(s.cfg.Logging.Path).RegisterRoutes(s.api.Group("/system/logs"))
	}
}

// SetScheduler exposes the scheduler's tasks under /api/v1/system.
func (s *Server) SetScheduler(sched *scheduler.Scheduler) {
	s.scheduler = sched
	apihandlers.NewSchedulerHandler(sched).RegisterRoutes(s.api.Group("/system"))
}

// Start begins listening for HTTP requests.
func (s *Server) Start(address string) error {
	s.logger.Info().Str("address", address).Msg("starting HTTP server")
	return s.echo.Start(address)
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info().Msg("shutting down HTTP server")
	return s.echo.Shutdown(ctx)
}

// Echo returns the underlying Echo instance.
func (s *Server) Echo() *echo.Echo {
	return s.echo
}

// Engine returns the decision engine.
func (s *Server) Engine() *decisioning.Engine {
	return s.engine
}

// GrabTracker returns the pending grab tracker.
func (s *Server) GrabTracker() *decisioning.GrabTracker {
	return s.grabTracker
}

// DecisionStore returns the decision log store.
func (s *Server) DecisionStore() *decisioning.Store {
	return s.decisionStore
}

// PolicyStore returns the policy store.
func (s *Server) PolicyStore() *policy.Store {
	return s.policyStore
}

// StatusService returns the indexer status service.
func (s *Server) StatusService() *status.Service {
	return s.statusService
}
