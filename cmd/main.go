package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"sitesmith/internal/ai"
	"sitesmith/internal/config"
	"sitesmith/internal/db"
	"sitesmith/internal/handlers"
	"sitesmith/internal/logging"
	"sitesmith/internal/metrics"
	"sitesmith/internal/middleware"
	"sitesmith/internal/pipeline"
	"sitesmith/internal/storage"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	_ "go.uber.org/automaxprocs"
	"golang.org/x/time/rate"
)

func main() {
	godotenv.Load()

	logging.Init()
	defer logging.Sync()

	cfg, err := config.Load()
	if err != nil {
		logging.S().Fatalw("configuration invalid", "error", err)
	}
	logging.S().Infow("starting sitesmith", "config", cfg.Describe())

	database, err := db.New(cfg.DatabaseURL, cfg.SQLitePath)
	if err != nil {
		logging.S().Fatalw("failed to connect to database", "error", err)
	}
	if err := database.Migrate(); err != nil {
		logging.S().Fatalw("failed to run migrations", "error", err)
	}
	if !cfg.IsProduction {
		if err := db.SeedDev(database.DB); err != nil {
			logging.S().Warnw("dev seed failed", "error", err)
		}
	}

	redisClient, err := db.NewRedis(cfg.RedisURL)
	if err != nil {
		logging.S().Warnw("redis unavailable, run guard and imagery cache disabled", "error", err)
		redisClient = nil
	}

	var trees storage.TreeStore
	if cfg.S3Bucket != "" {
		s3Store, err := storage.NewS3TreeStore(context.Background(), cfg.S3Bucket, cfg.S3Region, cfg.S3AccessKey, cfg.S3SecretKey)
		if err != nil {
			logging.S().Fatalw("failed to initialize s3 tree store", "error", err)
		}
		trees = s3Store
	} else {
		trees = storage.NewDBTreeStore(database.DB)
	}

	openai := ai.NewOpenAIClient(cfg.OpenAIAPIKey)
	textClient := metrics.InstrumentClient(openai, "text")
	visionClient := metrics.InstrumentClient(openai, "vision")

	imagery := pipeline.NewImageResolver(visionClient, textClient, cfg.VisionModel, cfg.TextModel, redisClient)
	builder := pipeline.NewLLMBuilder(textClient, cfg.TextModel)
	agentic := pipeline.NewAgenticStrategy(builder, trees)
	legacy := pipeline.NewLegacyStrategy(textClient, cfg.TextModel)
	guard := pipeline.NewRunGuard(redisClient)
	orch := pipeline.NewOrchestrator(database.DB, imagery, agentic, legacy, guard, cfg.PublicBaseURL)

	hub := handlers.NewHub()
	go hub.Run()

	h := handlers.New(database.DB, orch, hub)

	if cfg.IsProduction {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(middleware.RequestID())
	router.Use(middleware.Recovery())
	router.Use(middleware.CORS([]string{cfg.PublicBaseURL}))
	router.Use(gin.LoggerWithWriter(os.Stdout, "/health", "/metrics"))

	limiter := middleware.NewIPRateLimiter(rate.Limit(cfg.RateLimitRPS), cfg.RateLimitBurst)

	router.GET("/health", h.Health)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	router.GET("/preview/:id", h.PreviewDraft)
	router.GET("/preview/:id/files/*path", h.PreviewDraftFile)

	api := router.Group("/api")
	api.Use(limiter.Middleware())
	api.Use(middleware.Auth(cfg.JWTSecret, !cfg.IsProduction))
	{
		api.POST("/drafts", h.CreateDraft)
		api.GET("/drafts/:id", h.GetDraft)
		api.GET("/drafts/:id/files", h.GetDraftFiles)
		api.POST("/drafts/:id/generate", h.GenerateDraft)
		api.GET("/drafts/:id/watch", h.WatchDraft)
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logging.S().Infow("listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logging.S().Fatalw("server error", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logging.S().Info("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logging.S().Errorw("forced shutdown", "error", err)
	}
	if redisClient != nil {
		redisClient.Close()
	}
}
