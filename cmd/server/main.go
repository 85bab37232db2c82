package main

import (
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/joho/godotenv"

	"trendscope/internal/config"
	"trendscope/internal/connectors"
	"trendscope/internal/handlers"
	"trendscope/internal/jobs"
	"trendscope/internal/logging"
	"trendscope/internal/middleware"
	"trendscope/internal/services"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("⚠️  No .env file found, using environment variables")
	}

	logging.Init()
	cfg := config.Load()

	// Connector registry: order is the order results appear in reports
	apiClient := connectors.NewAPIClient(cfg.SourceTimeout)
	registry := connectors.NewRegistry(
		connectors.NewTwitterConnector(apiClient),
		connectors.NewTikTokConnector(apiClient),
		connectors.NewRedditConnector(apiClient),
		connectors.NewGoogleTrendsConnector(apiClient),
		connectors.NewWebSearchConnector(apiClient, cfg.SearXNGURL),
	)
	gateway := connectors.NewGateway(registry, cfg.MaxConcurrentFetches, cfg.SourceTimeout)

	configured := 0
	for _, c := range registry.All() {
		if c.IsConfigured() {
			configured++
		}
	}
	log.Printf("🔌 [CONNECTORS] %d of %d sources configured", configured, registry.Len())

	catalog, err := services.NewQuestionCatalog(cfg.QuestionsFile)
	if err != nil {
		log.Fatalf("❌ Failed to load question catalog: %v", err)
	}
	defer catalog.Close()

	analyzers := services.NewAnalyzerChain(
		services.NewOpenAICompatProvider(cfg.PrimaryLLM),
		services.NewOpenAICompatProvider(cfg.SecondaryLLM),
	)
	if providers := analyzers.Providers(); len(providers) > 0 {
		log.Printf("🧠 [ANALYSIS] providers: %v", providers)
	} else if cfg.AllowPlaceholderAnalysis {
		log.Println("⚠️  [ANALYSIS] no providers configured, sessions will use placeholder analysis")
	} else {
		log.Println("⚠️  [ANALYSIS] no providers configured and placeholder disabled, sessions will fail at analysis")
	}

	store := services.NewSessionStore(cfg.MaxSessions)
	admission := services.NewAdmissionController(cfg.MaxSessions)
	metrics := services.InitMetrics(admission)
	research := services.NewResearchService(cfg, store, admission, gateway, catalog, analyzers, metrics)

	// Background session sweeper
	jobScheduler := jobs.NewJobScheduler()
	jobScheduler.Register("session-cleanup", jobs.NewSessionCleanupJob(
		store, cfg.SweepInterval, cfg.SessionTimeout, cfg.TerminalRetention))
	jobScheduler.Start()

	app := fiber.New(fiber.Config{
		AppName:      "TrendScope v1.0",
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
		BodyLimit:    1 * 1024 * 1024,
	})

	app.Use(recover.New())
	app.Use(logger.New())

	prometheus := fiberprometheus.New("trendscope")
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
		AllowMethods: "GET,POST,DELETE,OPTIONS",
		AllowHeaders: "Origin, Content-Type, Accept",
	}))

	rateLimitConfig := middleware.LoadRateLimitConfig()
	log.Printf("🛡️  [RATE-LIMIT] Loaded config: Global=%d/min, Polling=%d/min, Start=%d/min",
		rateLimitConfig.GlobalAPIMax,
		rateLimitConfig.PollingMax,
		rateLimitConfig.StartMax,
	)

	researchHandler := handlers.NewResearchHandler(research, store, catalog)
	healthHandler := handlers.NewHealthHandler(store)

	app.Get("/health", healthHandler.Handle)

	api := app.Group("/api", middleware.GlobalAPIRateLimiter(rateLimitConfig))

	rsch := api.Group("/research")
	rsch.Post("/start", middleware.StartRateLimiter(rateLimitConfig), researchHandler.Start)
	rsch.Get("/questions", researchHandler.Questions)
	rsch.Get("/sessions", middleware.PollingRateLimiter(rateLimitConfig), researchHandler.List)
	rsch.Get("/statistics", researchHandler.Stats)
	rsch.Get("/:id/status", middleware.PollingRateLimiter(rateLimitConfig), researchHandler.Status)
	rsch.Get("/:id/result", middleware.PollingRateLimiter(rateLimitConfig), researchHandler.Result)
	rsch.Delete("/:id", researchHandler.Delete)

	// Handle graceful shutdown
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		log.Println("\n🛑 Shutting down server...")

		jobScheduler.Stop()

		if err := app.Shutdown(); err != nil {
			log.Printf("⚠️ Error shutting down server: %v", err)
		}
	}()

	log.Printf("🚀 TrendScope listening on :%s (max %d sessions)", cfg.Port, cfg.MaxSessions)
	if err := app.Listen(":" + cfg.Port); err != nil {
		log.Fatalf("❌ Failed to start server: %v", err)
	}
}
