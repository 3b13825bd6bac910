package http

import (
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/Thiwanka-Sandakalum/vidsage-google/internal/config"
	"github.com/Thiwanka-Sandakalum/vidsage-google/internal/http/handler"
	httpmiddleware "github.com/Thiwanka-Sandakalum/vidsage-google/internal/http/middleware"
	"github.com/Thiwanka-Sandakalum/vidsage-google/internal/middleware"
	"github.com/Thiwanka-Sandakalum/vidsage-google/internal/telemetry"
)

// NewRouter wires Gin routes and middleware.
func NewRouter(cfg config.Config, googleHandler *handler.GoogleHandler, rateLimiter *middleware.RateLimiter, metrics *telemetry.Metrics) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(httpmiddleware.RequestLogger(nil))
	if rateLimiter != nil {
		r.Use(rateLimiter.Handler())
	}
	r.Use(middleware.CORS(cfg))
	r.Use(otelgin.Middleware(cfg.ServiceName))

	r.GET("/health", googleHandler.Health)
	r.GET("/metrics", gin.WrapH(metrics.Handler()))

	auth := r.Group("/auth")
	{
		auth.GET("/google", googleHandler.BeginAuth)
		auth.GET("/google/callback", googleHandler.Callback)
	}

	google := r.Group("/google")
	{
		google.POST("/docs", googleHandler.CreateDoc)
		google.GET("/docs/list", googleHandler.ListDocs)
		google.POST("/folders", googleHandler.CreateFolder)
		google.GET("/status", googleHandler.Status)
		google.DELETE("/revoke", googleHandler.Revoke)
		google.DELETE("/disconnect", googleHandler.Disconnect)
	}

	return r
}
