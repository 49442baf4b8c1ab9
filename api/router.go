package api

import (
	"log/slog"

	"github.com/gin-gonic/gin"

	"github.com/wyfcoding/binpack/config"
	"github.com/wyfcoding/binpack/metrics"
	"github.com/wyfcoding/binpack/middleware"
	"github.com/wyfcoding/binpack/server"
)

// NewRouter 组装中间件与路由。m 为 nil 时不暴露指标。
func NewRouter(cfg *config.Config, h *Handler, m *metrics.Metrics, logger *slog.Logger) *gin.Engine {
	mws := []gin.HandlerFunc{
		middleware.Recovery(logger),
		middleware.RequestID(),
	}
	if cfg.Tracing.Enabled {
		mws = append(mws, middleware.TracingMiddleware(cfg.Tracing.ServiceName))
	}
	mws = append(mws,
		middleware.Logger(logger),
		middleware.HTTPMetrics(m, cfg.Metrics.Path, "/healthz", "/readyz"),
		middleware.MaxBodyBytes(cfg.Server.MaxBodyBytes),
		middleware.HTTPErrorHandler(),
	)

	engine := server.NewDefaultGinEngine(cfg.Server.Environment, mws...)
	if m != nil && cfg.Metrics.Enabled {
		engine.GET(cfg.Metrics.Path, gin.WrapH(m.Handler()))
	}
	h.Register(engine, middleware.RateLimit(cfg.Server.RateLimit, cfg.Server.RateBurst))
	return engine
}
