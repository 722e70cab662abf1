package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"example.com/eventhub/config"
	"example.com/eventhub/internal/api/handlers"
	"example.com/eventhub/internal/api/middleware"
	"example.com/eventhub/internal/auth"
	"example.com/eventhub/internal/metrics"
	"example.com/eventhub/internal/search"
	"example.com/eventhub/internal/services"
	"example.com/eventhub/internal/tracing"
)

// Server represents the HTTP server
type Server struct {
	config       config.Config
	router       *gin.Engine
	httpServer   *http.Server
	authService  *auth.Service
	eventService *services.EventService
	elastic      *search.ElasticClient
	metrics      *metrics.Metrics
	tracer       tracing.Tracer
}

// NewServer creates a new HTTP server. elastic may be nil; the search
// endpoint then reports unavailable.
func NewServer(
	cfg config.Config,
	authService *auth.Service,
	eventService *services.EventService,
	elastic *search.ElasticClient,
	metricsCollector *metrics.Metrics,
	tracer tracing.Tracer,
) *Server {
	server := &Server{
		config:       cfg,
		authService:  authService,
		eventService: eventService,
		elastic:      elastic,
		metrics:      metricsCollector,
		tracer:       tracer,
	}

	server.router = server.setupRouter()

	server.httpServer = &http.Server{
		Addr:         cfg.ServerAddress,
		Handler:      server.router,
		ReadTimeout:  cfg.ServerTimeout,
		WriteTimeout: cfg.ServerTimeout,
	}

	return server
}

// setupRouter configures the HTTP router
func (s *Server) setupRouter() *gin.Engine {
	if s.config.Environment != "development" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestLogger())
	if app := s.tracer.Application(); app != nil {
		router.Use(middleware.NewRelicMiddleware(app))
	}

	// Register handlers
	authHandler := handlers.NewAuthHandler(s.authService, s.metrics)
	authHandler.RegisterRoutes(router)

	// The elastic client stays nil-typed behind the interface when absent
	var searcher handlers.EventSearcher
	if s.elastic != nil {
		searcher = s.elastic
	}
	eventHandler := handlers.NewEventHandler(s.eventService, searcher, s.authService)
	eventHandler.RegisterRoutes(router)

	metricsHandler := handlers.NewMetricsHandler(s.metrics)
	metricsHandler.RegisterRoutes(router)

	return router
}

// Start starts the HTTP server
func (s *Server) Start() error {
	log.Info().Str("address", s.config.ServerAddress).Msg("Starting HTTP server")

	if err := s.httpServer.ListenAndServe(); err != nil {
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return errors.Wrap(err, "HTTP server error")
	}

	return nil
}

// Shutdown gracefully stops the HTTP server
func (s *Server) Shutdown(ctx context.Context) error {
	log.Info().Msg("Shutting down HTTP server")

	// Create a timeout context for shutdown
	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return errors.Wrap(err, "HTTP server shutdown error")
	}

	log.Info().Msg("HTTP server shut down successfully")
	return nil
}
