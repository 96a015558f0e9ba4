package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/joho/godotenv"

	"wingmate/internal/config"
	"wingmate/internal/database"
	"wingmate/internal/handlers"
	"wingmate/internal/jobs"
	"wingmate/internal/logging"
	"wingmate/internal/middleware"
	"wingmate/internal/services"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	// Initialize structured logging (JSON in production, text in dev)
	logging.Init()

	log.Println("🚀 Starting Wingmate Collective Profile Server...")

	// Load .env file (ignore error if file doesn't exist)
	if err := godotenv.Load(); err != nil {
		log.Printf("⚠️  No .env file found or error loading it: %v", err)
	}

	cfg := config.Load()
	log.Printf("📋 Configuration loaded (Port: %s)", cfg.Port)

	if cfg.MongoURI == "" {
		log.Fatal("❌ MONGODB_URI environment variable is required")
	}

	mongoDB, err := database.NewMongoDB(cfg.MongoURI)
	if err != nil {
		log.Fatalf("❌ Failed to connect to MongoDB: %v", err)
	}
	defer mongoDB.Close(context.Background())

	initCtx, cancelInit := context.WithTimeout(context.Background(), 30*time.Second)
	if err := mongoDB.Initialize(initCtx); err != nil {
		cancelInit()
		log.Fatalf("❌ Failed to initialize MongoDB indexes: %v", err)
	}
	cancelInit()

	// Redis backs the insight-brief cache; the server runs without it.
	var redisService *services.RedisService
	if cfg.RedisURL != "" {
		redisService, err = services.NewRedisService(cfg.RedisURL)
		if err != nil {
			log.Printf("⚠️ Redis unavailable: %v (brief caching disabled)", err)
			redisService = nil
		}
	}

	// Metrics
	services.InitMetrics()

	// Core services
	imageStore := services.NewImageStoreService(cfg.UploadDir, cfg.PublicBase)
	dedupService := services.NewDedupService(mongoDB, imageStore)
	avatarService := services.NewAvatarService(mongoDB, dedupService)

	analysisService := services.NewAnalysisService(mongoDB, redisService, services.AnalysisConfig{
		BaseURL: cfg.ReasoningBaseURL,
		APIKey:  cfg.ReasoningAPIKey,
		Model:   cfg.ReasoningModel,
		Workers: cfg.AnalysisWorkers,
	})
	analysisService.Start()

	feedbackService := services.NewFeedbackService(mongoDB, avatarService, analysisService)
	insightsService := services.NewInsightsService(avatarService, redisService)

	// Background jobs: the sweep catches records whose request-path trigger
	// was missed (dropped queue entries, restarts).
	jobScheduler := jobs.NewScheduler()
	jobScheduler.Register("analysis-sweep", jobs.NewAnalysisSweepJob(mongoDB, analysisService, cfg.SweepInterval))
	jobScheduler.Start()

	// Initialize Fiber app
	app := fiber.New(fiber.Config{
		AppName:      "Wingmate v1.0",
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
		BodyLimit:    30 * 1024 * 1024, // profile reports carry base64 photos
	})

	// Middleware
	app.Use(recover.New())
	app.Use(logger.New())

	// Prometheus metrics middleware
	prometheus := fiberprometheus.New("wingmate")
	prometheus.RegisterAt(app, "/metrics")
	app.Use(prometheus.Middleware)
	log.Println("📊 Prometheus metrics endpoint enabled at /metrics")

	allowedOrigins := os.Getenv("ALLOWED_ORIGINS")
	if allowedOrigins == "" {
		allowedOrigins = "http://localhost:5173,http://localhost:3000"
		log.Println("⚠️  ALLOWED_ORIGINS not set, using development defaults")
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins: allowedOrigins,
		AllowMethods: "GET,POST,OPTIONS",
		AllowHeaders: "Origin,Content-Type,Accept,X-API-Key",
	}))

	// First line of defense for the public API surface.
	app.Use("/api", limiter.New(limiter.Config{
		Max:        120,
		Expiration: time.Minute,
	}))

	// Handlers
	healthHandler := handlers.NewHealthHandler(mongoDB)
	profileHandler := handlers.NewProfileHandler(avatarService)
	feedbackHandler := handlers.NewFeedbackHandler(feedbackService)
	insightsHandler := handlers.NewInsightsHandler(insightsService)

	// Routes
	app.Get("/health", healthHandler.Handle)

	api := app.Group("/api/v1", middleware.APIKeyMiddleware(cfg.ServiceAPIKey))
	api.Post("/profiles", profileHandler.ReportProfile)
	api.Post("/feedback", feedbackHandler.ReportFeedback)
	api.Get("/insights", insightsHandler.GetInsightBrief)

	// Stored profile photos
	app.Static(cfg.PublicBase, imageStore.BaseDir())

	// Handle graceful shutdown
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		log.Println("\n🛑 Shutting down server...")

		jobScheduler.Stop()
		analysisService.Stop()

		if redisService != nil {
			if err := redisService.Close(); err != nil {
				log.Printf("⚠️ Error closing Redis: %v", err)
			}
		}

		if err := app.Shutdown(); err != nil {
			log.Printf("⚠️ Error shutting down server: %v", err)
		}
	}()

	if err := app.Listen(":" + cfg.Port); err != nil {
		log.Fatalf("❌ Failed to start server: %v", err)
	}
}
