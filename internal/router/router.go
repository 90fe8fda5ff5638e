package router

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stemsi/scorecast/internal/config"
	"github.com/stemsi/scorecast/internal/handler"
	"github.com/stemsi/scorecast/internal/middleware"
	"github.com/stemsi/scorecast/internal/response"
	"github.com/stemsi/scorecast/internal/service"
)

// Handlers groups all handler instances for route setup.
type Handlers struct {
	Prediction *handler.PredictionHandler
	Form       *handler.FormHandler
	Admin      *handler.AdminHandler
}

// SetupRouter configures all Gin route groups with appropriate middlewares.
// The returned limiter is nil when rate limiting is disabled; callers Stop it
// on shutdown.
func SetupRouter(
	authService *service.AuthService,
	handlers *Handlers,
	cfg *config.Config,
	log zerolog.Logger,
) (*gin.Engine, *middleware.RateLimiter) {
	gin.SetMode(cfg.GinMode)
	router := gin.New()
	router.Use(gin.Recovery())

	// ─── CORS ──────────────────────────────────────────────────────────
	// If AllowedOrigins is set in config, restrict to that list;
	// otherwise allow all (*) so dev works without extra config.
	corsConfig := cors.DefaultConfig()
	if len(cfg.AllowedOrigins) > 0 {
		corsConfig.AllowOrigins = cfg.AllowedOrigins
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization", "X-Request-ID"}
	corsConfig.ExposeHeaders = []string{"X-Request-ID"}
	corsConfig.MaxAge = 12 * time.Hour
	router.Use(cors.New(corsConfig))

	// Apply request ID middleware globally so every response includes metadata.
	router.Use(response.RequestIDMiddleware())
	router.Use(middleware.AccessLog(log))

	router.NoRoute(func(c *gin.Context) {
		response.Fail(c, http.StatusNotFound, response.ErrNotFound)
	})

	// ─── Readiness ─────────────────────────────────────────────────────
	router.GET("/", handlers.Prediction.Home)
	router.GET("/health", handlers.Prediction.Health)

	// ─── Prediction (Rate Limited) ─────────────────────────────────────
	var limiter *middleware.RateLimiter
	limited := router.Group("")
	limited.Use(middleware.NoStore())
	if cfg.RateLimitPerMinute > 0 {
		limiter = middleware.NewRateLimiter(cfg.RateLimitPerMinute, time.Minute)
		limited.Use(limiter.Middleware())
	}
	limited.POST("/predict", handlers.Prediction.Predict)

	// ─── Browser Form ──────────────────────────────────────────────────
	if cfg.FormEnabled && handlers.Form != nil {
		router.SetHTMLTemplate(handler.Templates())
		router.GET("/form", middleware.Brotli(), handlers.Form.Show)
		limited.POST("/form", middleware.Brotli(), handlers.Form.Submit)
	}

	// ─── Admin Group ───────────────────────────────────────────────────
	admin := router.Group("/api/v1/admin")
	admin.Use(middleware.NoStore(), middleware.Brotli())
	{
		admin.POST("/login", handlers.Admin.Login)

		protected := admin.Group("")
		protected.Use(middleware.RequireAdminJWT(authService))
		{
			protected.GET("/model", handlers.Admin.Model)
			protected.GET("/predictions", handlers.Admin.Predictions)
		}
	}

	return router, limiter
}
