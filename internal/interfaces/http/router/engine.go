package router

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/voltventures961/Invoice-app-sub000/internal/infrastructure/config"
	"github.com/voltventures961/Invoice-app-sub000/internal/infrastructure/logger"
	"github.com/voltventures961/Invoice-app-sub000/internal/interfaces/http/middleware"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

// EngineConfig selects the global middleware chain of the HTTP engine
type EngineConfig struct {
	HTTP           config.HTTPConfig
	Production     bool
	ServiceName    string
	TracingEnabled bool
	Meter          metric.Meter
	Profiling      middleware.ProfilingConfig
	// RequestTimeout bounds the request context handed to the services; zero disables it
	RequestTimeout time.Duration
}

// NewEngine builds a gin engine with the middleware shared by every route.
// Authentication is not part of it; it is mounted on the API group by Mount.
func NewEngine(cfg EngineConfig, log *zap.Logger) *gin.Engine {
	if cfg.Production {
		gin.SetMode(gin.ReleaseMode)
	}
	middleware.SetupValidator()

	engine := gin.New()
	if len(cfg.HTTP.TrustedProxies) > 0 {
		if err := engine.SetTrustedProxies(cfg.HTTP.TrustedProxies); err != nil {
			log.Warn("Failed to set trusted proxies", zap.Error(err))
		}
	}

	engine.Use(middleware.RequestID())
	engine.Use(middleware.TracingWithConfig(middleware.TracingConfig{
		ServiceName: cfg.ServiceName,
		Enabled:     cfg.TracingEnabled,
	}))
	engine.Use(middleware.SpanErrorMarker())
	engine.Use(logger.Recovery(log))
	engine.Use(logger.GinMiddleware(log))
	engine.Use(middleware.HTTPMetrics(cfg.Meter))
	engine.Use(middleware.ProfilingWithConfig(cfg.Profiling))
	engine.Use(middleware.Secure())
	engine.Use(middleware.CORSWithConfig(middleware.CORSConfigFromHTTP(cfg.HTTP)))
	engine.Use(middleware.BodyLimit(cfg.HTTP.MaxBodySize))
	if cfg.RequestTimeout > 0 {
		engine.Use(middleware.Timeout(cfg.RequestTimeout))
	}

	return engine
}
