package api

import (
	"context"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/leozw/zone-health/internal/api/handlers"
	"github.com/leozw/zone-health/internal/api/middleware"
	"github.com/leozw/zone-health/internal/config"
	"github.com/leozw/zone-health/internal/metrics"
)

type Server struct {
	Config    *config.Config
	Router    *gin.Engine
	Engine    handlers.Engine
	Collector *metrics.Collector
	Logger    *zap.Logger
}

// NewServer wires the HTTP API. ctx bounds runs started asynchronously by
// requests.
func NewServer(ctx context.Context, cfg *config.Config, engine handlers.Engine, collector *metrics.Collector, logger *zap.Logger) *Server {
	gin.SetMode(cfg.Server.Mode)
	router := gin.New()

	// Middleware
	var recorder middleware.RequestRecorder
	if collector != nil {
		recorder = collector
	}
	router.Use(middleware.Logger(logger, recorder))
	router.Use(gin.Recovery())
	router.Use(middleware.CORS())

	server := &Server{
		Config:    cfg,
		Router:    router,
		Engine:    engine,
		Collector: collector,
		Logger:    logger,
	}

	server.setupRoutes(ctx)
	return server
}

func (s *Server) setupRoutes(ctx context.Context) {
	h := handlers.NewHandler(ctx, s.Engine, s.Logger)

	s.Router.GET("/health", h.Health)
	if s.Collector != nil {
		s.Router.GET("/metrics", gin.WrapH(s.Collector.Handler()))
	}

	api := s.Router.Group("/api/v1")
	api.Use(middleware.AuthRequired(s.Config.Server.JWTSecret))
	{
		api.GET("/status", h.GetStatus)
		api.GET("/deployment", h.GetDeployment)
		api.GET("/stream", h.Stream)
	}

	checks := api.Group("/checks")
	{
		checks.GET("", h.ListChecks)
		checks.POST("/run", h.RunAll)
		checks.GET("/:id", h.GetCheck)
		checks.POST("/:id/run", h.RunCheck)
		checks.PUT("/:id/active", h.SetActive)
		checks.PUT("/:id/interval", h.SetInterval)
	}
}
