package api

import (
	"os"

	"github.com/gin-gonic/gin"
)

// RouterConfig tunes the submission rate limiter fronting POST /run.
type RouterConfig struct {
	RateLimitPerMinute int
	RateLimitBurst     int
}

// DefaultRouterConfig matches the teacher's general-purpose defaults
// (1000 req/min, burst 50), scaled down for a sandbox-fleet-fronting
// endpoint rather than a whole API surface.
func DefaultRouterConfig() RouterConfig {
	return RouterConfig{RateLimitPerMinute: 120, RateLimitBurst: 10}
}

// NewRouter builds the fully-wired gin engine for coderunner.
func NewRouter(h *Handler, cfg RouterConfig) *gin.Engine {
	if os.Getenv("ENVIRONMENT") == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/health", h.Health)
	router.GET("/languages", h.Languages)

	router.POST("/run", SubmissionRateLimit(cfg.RateLimitPerMinute, cfg.RateLimitBurst), h.Run)
	router.GET("/results/:jobId", h.Result)

	return router
}
