// Package server provides the HTTP server setup and routing configuration.
package server

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/stwalsh4118/airwave/internal/api"
	"github.com/stwalsh4118/airwave/internal/catalog"
	"github.com/stwalsh4118/airwave/internal/channel"
	"github.com/stwalsh4118/airwave/internal/config"
	"github.com/stwalsh4118/airwave/internal/db"
	"github.com/stwalsh4118/airwave/internal/guide"
	"github.com/stwalsh4118/airwave/internal/lineup"
	"github.com/stwalsh4118/airwave/internal/logger"
	"github.com/stwalsh4118/airwave/internal/middleware"
	"github.com/stwalsh4118/airwave/internal/models"
	"github.com/stwalsh4118/airwave/internal/ondemand"
)

// Server represents the HTTP server
type Server struct {
	config          *config.Config
	db              *db.DB
	repos           *db.Repositories
	store           *lineup.Store
	channelService  *channel.ChannelService
	onDemandService *ondemand.Service
	guideService    *guide.Service
	scheduler       *guide.Scheduler
	router          *gin.Engine
	server          *http.Server
}

// New creates a new server instance
func New(cfg *config.Config, database *db.DB) (*Server, error) {
	repos := db.NewRepositories(database)

	store, err := lineup.NewStore(cfg.Lineup.DataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to open lineup store: %w", err)
	}

	channelService := channel.NewChannelService(repos, store)
	onDemandService := ondemand.NewService(store, repos.Channels)
	guideService := guide.NewService(repos, store, catalog.NewDBLookup(repos.Media), onDemandService, cfg.Guide)
	scheduler := guide.NewScheduler(guideService, cfg.Guide.RefreshInterval, cfg.Guide.WindowDuration)

	guideService.SetOnPublish(func(g *models.CachedGuide) {
		logger.Log.Debug().
			Int("channels", len(g.Channels)).
			Int64("built_at_ms", g.BuiltAtMs).
			Msg("Guide publish hook fired")
	})

	return &Server{
		config:          cfg,
		db:              database,
		repos:           repos,
		store:           store,
		channelService:  channelService,
		onDemandService: onDemandService,
		guideService:    guideService,
		scheduler:       scheduler,
	}, nil
}

// GuideService exposes the guide cache for out-of-band triggers
func (s *Server) GuideService() *guide.Service {
	return s.guideService
}

// setupRouter initializes the Gin router with middleware and routes
func (s *Server) setupRouter() {
	// Set Gin mode based on log level
	if s.config.Logging.Level == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	// Create new Gin router
	s.router = gin.New()

	// Add middleware stack
	s.router.Use(middleware.RequestLogger()) // Custom zerolog request logger
	s.router.Use(gin.Recovery())             // Panic recovery
	s.router.Use(cors.Default())             // CORS support (allows all origins)

	// Create API route group
	apiGroup := s.router.Group("/api")

	// Register service routes
	api.SetupHealthRoutes(apiGroup, s.db, s.guideService)
	api.SetupMediaRoutes(apiGroup, s.repos.Media)
	api.SetupChannelRoutes(apiGroup, s.channelService, s.onDemandService)
	api.SetupGuideRoutes(apiGroup, s.guideService, s.config.Guide.WindowDuration)
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.setupRouter()

	// On-demand channels left playing by an unclean shutdown bank their
	// progress before the first guide build reads their cursors.
	if err := s.onDemandService.PauseAll(context.Background()); err != nil {
		logger.Log.Warn().Err(err).Msg("Startup on-demand pause sweep incomplete")
	}

	s.scheduler.Start()

	addr := fmt.Sprintf("%s:%d", s.config.Server.Host, s.config.Server.Port)

	s.server = &http.Server{
		Addr:           addr,
		Handler:        s.router,
		ReadTimeout:    s.config.Server.ReadTimeout,
		WriteTimeout:   s.config.Server.WriteTimeout,
		MaxHeaderBytes: 1 << 20, // 1 MB
	}

	logger.Log.Info().
		Str("host", s.config.Server.Host).
		Int("port", s.config.Server.Port).
		Msg("Starting HTTP server")

	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	logger.Log.Info().Msg("Shutting down server gracefully")

	// Stop the guide refresh loop
	if s.scheduler != nil {
		s.scheduler.Stop()
	}

	// Bank on-demand progress so cursors survive the restart
	if s.onDemandService != nil {
		if err := s.onDemandService.PauseAll(ctx); err != nil {
			logger.Log.Warn().Err(err).Msg("Shutdown on-demand pause sweep incomplete")
		}
	}

	// Check if server was started before attempting shutdown
	if s.server != nil {
		if err := s.server.Shutdown(ctx); err != nil {
			return fmt.Errorf("server shutdown error: %w", err)
		}
	}

	logger.Log.Info().Msg("Server stopped")
	return nil
}
