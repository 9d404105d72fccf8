package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/autodevhq/autodev-backend/internal/clients/gcs"
	"github.com/autodevhq/autodev-backend/internal/clients/redis"
	"github.com/autodevhq/autodev-backend/internal/db"
	httpserver "github.com/autodevhq/autodev-backend/internal/http"
	httpH "github.com/autodevhq/autodev-backend/internal/http/handlers"
	"github.com/autodevhq/autodev-backend/internal/jobs"
	"github.com/autodevhq/autodev-backend/internal/observability"
	"github.com/autodevhq/autodev-backend/internal/platform/envutil"
	"github.com/autodevhq/autodev-backend/internal/platform/logger"
	"github.com/autodevhq/autodev-backend/internal/repos"
	"github.com/autodevhq/autodev-backend/internal/services"
)

func main() {
	// Logger
	logMode := envutil.Str("LOG_MODE", "development")
	log, err := logger.New(logMode)
	if err != nil {
		fmt.Printf("Failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Tracing
	shutdownOtel := observability.InitOTel(ctx, log, observability.OtelConfig{
		ServiceName: "autodev-backend",
		Environment: envutil.Str("APP_ENV", "development"),
		Version:     envutil.Str("APP_VERSION", "dev"),
	})
	if shutdownOtel != nil {
		defer func() {
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer shutdownCancel()
			if err := shutdownOtel(shutdownCtx); err != nil {
				log.Warn("otel shutdown failed", "error", err)
			}
		}()
	}

	// Postgres
	log.Info("Setting up Postgres from main...")
	postgresService, err := db.NewPostgresService(log)
	if err != nil {
		log.Fatal("Postgres init failed", "error", err)
	}
	if err = postgresService.AutoMigrateAll(); err != nil {
		log.Fatal("Postgres auto migration failed", "error", err)
	}
	thePG := postgresService.DB()

	// Repos
	log.Info("Setting up Repos from main...")
	repoRepo := repos.NewRepoRepo(thePG, log)
	analysisRecordRepo := repos.NewAnalysisRecordRepo(thePG, log)
	progressEventRepo := repos.NewProgressEventRepo(thePG, log)

	// Storage clients
	log.Info("Setting up storage clients from main...")
	blobStore, err := gcs.NewBlobStore(log)
	if err != nil {
		log.Fatal("Blob store init failed", "error", err)
	}
	kvStore, err := redis.NewKVStore(log)
	if err != nil {
		log.Fatal("Redis init failed", "error", err)
	}
	defer kvStore.Close()

	// Services
	log.Info("Setting up Services from main...")
	aiClient, err := services.NewAIClient(log)
	if err != nil {
		log.Fatal("AI client init failed", "error", err)
	}
	provider := services.NewAnalysisProvider(log, aiClient)
	runner := jobs.NewRunner(log, envutil.Int("ANALYSIS_MAX_CONCURRENT", 4))
	cacheService := services.NewCacheService(log, kvStore)
	analysisService := services.NewAnalysisService(log, repoRepo, analysisRecordRepo, blobStore, provider, runner, cacheService)
	progressService := services.NewProgressService(log, progressEventRepo, analysisService)
	searchService := services.NewSemanticSearchService(log, blobStore, aiClient, analysisService, cacheService)

	progressService.StartRetentionSweep(ctx)

	// Handlers
	log.Info("Setting up Handlers from main...")
	healthHandler := httpH.NewHealthHandler()
	analysisHandler := httpH.NewAnalysisHandler(analysisService, searchService, runner)
	progressHandler := httpH.NewProgressHandler(progressService)
	searchHandler := httpH.NewSearchHandler(searchService)

	// Server
	server := httpserver.NewServer(httpserver.RouterConfig{
		Log:             log,
		HealthHandler:   healthHandler,
		AnalysisHandler: analysisHandler,
		ProgressHandler: progressHandler,
		SearchHandler:   searchHandler,
	})

	port := envutil.Str("PORT", "8080")
	log.Info("Starting server", "port", port)
	if err := server.Run(":" + port); err != nil {
		log.Fatal("Server exited", "error", err)
	}
}
