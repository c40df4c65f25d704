package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"exam-backend/internal/jobs"
	"exam-backend/internal/services/health"
	"exam-backend/internal/shared/config"
	"exam-backend/internal/shared/metrics"
	"exam-backend/internal/shared/server/middleware"
	"exam-backend/internal/shared/server/respond"
)

// RouterDeps lists the handlers the router mounts.
type RouterDeps struct {
	Config     config.Config
	JobHandler *jobs.Handler
	Health     *health.Service
}

// NewRouter constructs the Gin engine with middleware and routes registered.
func NewRouter(deps RouterDeps) *gin.Engine {
	if deps.Config.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()

	r.Use(
		middleware.RequestID(),
		middleware.Logging(),
		middleware.Recovery(),
		middleware.CORS(deps.Config.CORSAllowOrigin),
	)

	api := r.Group("/api/v1")
	api.GET("/health", func(c *gin.Context) {
		respond.OK(c, deps.Health.Status())
	})
	api.GET("/ready", func(c *gin.Context) {
		checks, ready := deps.Health.Readiness(c.Request.Context())
		status := http.StatusOK
		if !ready {
			status = http.StatusServiceUnavailable
		}
		respond.JSON(c, status, gin.H{"ready": ready, "checks": checks})
	})
	api.GET("/metrics", metrics.Handler())

	if deps.JobHandler != nil {
		deps.JobHandler.RegisterRoutes(api)
	}

	return r
}
