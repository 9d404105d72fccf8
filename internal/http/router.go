package http

import (
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	httpH "github.com/autodevhq/autodev-backend/internal/http/handlers"
	httpMW "github.com/autodevhq/autodev-backend/internal/http/middleware"
	"github.com/autodevhq/autodev-backend/internal/platform/logger"
)

type RouterConfig struct {
	Log *logger.Logger

	HealthHandler   *httpH.HealthHandler
	AnalysisHandler *httpH.AnalysisHandler
	ProgressHandler *httpH.ProgressHandler
	SearchHandler   *httpH.SearchHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(otelgin.Middleware("autodev-backend"))
	r.Use(httpMW.RequestLogger(cfg.Log))
	r.Use(httpMW.CORS())

	// Health
	if cfg.HealthHandler != nil {
		r.GET("/healthcheck", cfg.HealthHandler.HealthCheck)
	}

	api := r.Group("/api")
	{
		// Analysis
		if cfg.AnalysisHandler != nil {
			api.GET("/repos", cfg.AnalysisHandler.ListRepos)
			api.GET("/repos/:owner/:repo", cfg.AnalysisHandler.GetRepo)

			api.POST("/analysis/:owner/:repo", cfg.AnalysisHandler.Trigger)
			api.GET("/analysis/:owner/:repo/architecture", cfg.AnalysisHandler.GetArchitecture)
			api.GET("/analysis/:owner/:repo/conventions", cfg.AnalysisHandler.GetConventions)
			api.GET("/analysis/:owner/:repo/walkthroughs", cfg.AnalysisHandler.GetWalkthroughs)
			api.GET("/analysis/:owner/:repo/env-setup", cfg.AnalysisHandler.GetEnvSetup)

			api.POST("/qa/:owner/:repo", cfg.AnalysisHandler.AskQuestion)
			api.POST("/internal/:owner/:repo/index", cfg.AnalysisHandler.IngestIndex)
		}

		// Progress & skill tracking
		if cfg.ProgressHandler != nil {
			api.POST("/progress/:owner/:repo/event", cfg.ProgressHandler.RecordEvent)
			api.GET("/progress/:owner/:repo/team", cfg.ProgressHandler.GetTeamProgress)
			api.GET("/progress/:owner/:repo/leaderboard", cfg.ProgressHandler.GetLeaderboard)
			api.GET("/progress/:owner/:repo/:userId", cfg.ProgressHandler.GetDeveloperProgress)
			api.GET("/progress/:owner/:repo/:userId/events", cfg.ProgressHandler.ListEvents)
		}

		// Semantic search
		if cfg.SearchHandler != nil {
			api.POST("/search/:owner/:repo", cfg.SearchHandler.Search)
		}
	}

	return r
}
