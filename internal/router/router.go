package router

import (
	"net/http"
	"time"

	"tmplhub/internal/common"
	"tmplhub/internal/config"
	"tmplhub/internal/domain/template"
	"tmplhub/internal/middleware"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// New creates and configures the Gin router with all middleware and routes.
// The returned rate limiter must be stopped on shutdown.
func New(
	cfg *config.Config,
	templateHandler *template.Handler,
) (*gin.Engine, *middleware.RateLimiter) {
	// Set Gin mode
	gin.SetMode(cfg.Server.Mode)

	r := gin.New()

	// Global middleware stack (order matters)
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.CORS(
		cfg.CORS.AllowedOrigins,
		cfg.CORS.AllowedMethods,
		cfg.CORS.AllowedHeaders,
	))
	r.Use(middleware.Logger())

	// Public routes
	r.GET("/health", healthCheck)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Rate limiter: by IP ahead of Auth, then by API key
	rateLimiter := middleware.NewRateLimiter(
		cfg.RateLimit.RequestsPerSecond,
		cfg.RateLimit.Burst,
		time.Duration(cfg.RateLimit.IdleTTLSec)*time.Second,
	)

	// Protected API routes (API key required)
	protectedAPI := r.Group("/api/v1")
	protectedAPI.Use(rateLimiter.Middleware())
	protectedAPI.Use(middleware.Auth(cfg.Auth.APIKeys))
	protectedAPI.Use(rateLimiter.Middleware())
	{
		templateHandler.RegisterRoutes(protectedAPI)
	}

	return r, rateLimiter
}

// healthCheck handles GET /health
func healthCheck(c *gin.Context) {
	common.Success(c, http.StatusOK, gin.H{
		"status":  "ok",
		"service": "tmplhub",
	})
}
