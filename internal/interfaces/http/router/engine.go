package router

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/foodcourt/storefront/internal/infrastructure/config"
	"github.com/foodcourt/storefront/internal/infrastructure/logger"
	"github.com/foodcourt/storefront/internal/interfaces/http/middleware"
)

// EngineConfig configures the gin engine and its global middleware
type EngineConfig struct {
	Release          bool
	TrustedProxies   []string
	CORSAllowOrigins []string
	MaxBodySize      int64
	Tracing          middleware.TracingConfig
}

// EngineConfigFromConfig maps application configuration
func EngineConfigFromConfig(cfg *config.Config) EngineConfig {
	return EngineConfig{
		Release:          cfg.IsProduction(),
		TrustedProxies:   cfg.HTTP.TrustedProxies,
		CORSAllowOrigins: cfg.HTTP.CORSAllowOrigins,
		MaxBodySize:      cfg.HTTP.MaxBodySize,
		Tracing: middleware.TracingConfig{
			ServiceName: cfg.Telemetry.ServiceName,
			Enabled:     cfg.Telemetry.Enabled,
		},
	}
}

// NewEngine creates a gin engine with the middleware every route shares.
// Order matters: the span wraps the whole request, the request id exists
// before anything logs, and recovery sits inside the request logger so a
// panic is logged with its request.
func NewEngine(cfg EngineConfig, log *zap.Logger) (*gin.Engine, error) {
	if cfg.Release {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	if err := engine.SetTrustedProxies(cfg.TrustedProxies); err != nil {
		return nil, err
	}

	cors := middleware.DefaultCORSConfig()
	cors.AllowOrigins = cfg.CORSAllowOrigins

	engine.Use(
		middleware.Tracing(cfg.Tracing),
		middleware.SpanErrorMarker(),
		middleware.RequestID(),
		logger.GinMiddleware(log),
		logger.Recovery(log),
		middleware.CORSWithConfig(cors),
	)
	if cfg.MaxBodySize > 0 {
		engine.Use(middleware.BodyLimit(cfg.MaxBodySize))
	}
	return engine, nil
}
