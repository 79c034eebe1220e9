package handler

import (
	"time"

	"assessment-jobs/internal/logger"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// SetupRouter wires the API routes with CORS, request logging and recovery
func SetupRouter(h *JobHandler, allowOrigins []string) *gin.Engine {
	r := gin.New()
	r.Use(gin.LoggerWithWriter(logger.Writer()), gin.Recovery())
	r.Use(cors.New(corsConfig(allowOrigins)))

	apiRoutes := r.Group("/api")
	{
		apiRoutes.POST("/create-job", h.CreateJob)
		apiRoutes.GET("/poll-status", h.PollStatus)

		resourceRoutes := apiRoutes.Group("/resource")
		{
			resourceRoutes.GET("/:id", h.GetResource)
			resourceRoutes.DELETE("/:id", h.DeleteResource)
			resourceRoutes.PATCH("/:id", h.PatchResource)
		}
	}

	r.GET("/metrics", h.GetMetrics)
	r.GET("/healthz", h.Healthz)
	return r
}

func corsConfig(allowOrigins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods:  []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", ClientIDHeader},
		ExposeHeaders: []string{"Content-Length"},
		MaxAge:        12 * time.Hour,
	}

	for _, origin := range allowOrigins {
		if origin == "*" {
			cfg.AllowAllOrigins = true
			return cfg
		}
	}
	cfg.AllowOrigins = allowOrigins
	if len(cfg.AllowOrigins) == 0 {
		cfg.AllowAllOrigins = true
	}
	return cfg
}
