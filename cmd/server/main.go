package main

import (
	"chainboard/internal/config"
	"chainboard/internal/handlers"
	"chainboard/internal/logging"
	"chainboard/internal/middleware"
	"chainboard/internal/services"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/joho/godotenv"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	// Initialize structured logging (JSON in production, text in dev)
	logging.Init()

	log.Println("🚀 Starting chainboard server...")

	// Load .env file (ignore error if file doesn't exist)
	if err := godotenv.Load(); err != nil {
		log.Printf("⚠️  No .env file found or error loading it: %v", err)
	}

	// Load configuration
	cfg := config.Load()
	log.Printf("📋 Configuration loaded (Port: %s, Upstream: %s)", cfg.Port, cfg.BaseURL)

	// Metrics
	metrics := services.InitMetrics()

	// Fetch layer: ledger -> cache -> typed client
	ledger := services.NewRequestLedger(cfg.RequestWindow, cfg.RequestThreshold, cfg.OutboundRate)
	retry := services.RetryConfig{
		MaxRetries: cfg.MaxRetries,
		Base:       cfg.RetryBase,
		Max:        cfg.RetryMax,
		Factor:     2.0,
		Timeout:    cfg.FetchTimeout,
	}
	fetchCache := services.NewFetchCache(cfg.CacheWindow, retry, ledger, metrics)
	fetchClient := services.NewFetchClient()
	apiClient := services.NewAPIClient(fetchClient, fetchCache, metrics, cfg.BaseURL, cfg.BlogURL, cfg.ProposalsURL)
	log.Printf("✅ Fetch layer initialized (window: %v, retries: %d)", cfg.CacheWindow, cfg.MaxRetries)

	// Proposal service
	rawURL := os.Getenv("PROPOSAL_RAW_URL")
	proposalService := services.NewProposalService(apiClient, fetchClient, metrics, rawURL)

	// Background cache refresh
	var refresh *services.RefreshService
	if cfg.RefreshEnabled {
		var err error
		refresh, err = services.NewRefreshService(apiClient, metrics, cfg.RefreshCron)
		if err != nil {
			log.Fatalf("❌ Failed to create refresh service: %v", err)
		}
		if err := refresh.Start(); err != nil {
			log.Fatalf("❌ Failed to start refresh service: %v", err)
		}
		log.Printf("⏰ Background refresh enabled (cron: %s)", cfg.RefreshCron)
	} else {
		log.Println("⚠️  Background refresh disabled")
	}

	// Initialize Fiber app
	app := fiber.New(fiber.Config{
		AppName:      "chainboard v1.0",
		ReadTimeout:  0,
		WriteTimeout: 0,
	})

	// Middleware
	app.Use(recover.New())
	app.Use(logger.New())

	// Prometheus metrics middleware
	prometheus := fiberprometheus.New("chainboard")
	prometheus.RegisterAt(app, "/metrics")
	app.Use(prometheus.Middleware)
	log.Println("📊 Prometheus metrics endpoint enabled at /metrics")

	// Rate limiting configuration
	rateLimitConfig := middleware.LoadRateLimitConfig()
	log.Printf("🛡️  [RATE-LIMIT] Loaded config: Global=%d/min, Admin=%d/min",
		rateLimitConfig.GlobalAPIMax,
		rateLimitConfig.AdminMax,
	)

	// CORS configuration with environment-based origins
	allowedOrigins := os.Getenv("ALLOWED_ORIGINS")
	if allowedOrigins == "" {
		allowedOrigins = "http://localhost:5173,http://localhost:3000"
		log.Println("⚠️  ALLOWED_ORIGINS not set, using development defaults")
	}

	app.Use(cors.New(cors.Config{
		AllowOrigins: allowedOrigins,
		AllowMethods: "GET,DELETE,OPTIONS",
		AllowHeaders: "Origin,Content-Type,Accept",
	}))

	app.Use("/api", middleware.GlobalAPIRateLimiter(rateLimitConfig))

	// Initialize handlers
	healthHandler := handlers.NewHealthHandler(apiClient)
	chainsHandler := handlers.NewChainsHandler(apiClient)
	networkHandler := handlers.NewNetworkHandler(apiClient)
	blogHandler := handlers.NewBlogHandler(apiClient)
	proposalsHandler := handlers.NewProposalsHandler(proposalService)
	cacheHandler := handlers.NewCacheHandler(fetchCache)

	// Routes
	app.Get("/health", healthHandler.Handle)

	api := app.Group("/api")
	api.Get("/chains", chainsHandler.List)
	api.Get("/chains/:id/tps", chainsHandler.TPSHistory)
	api.Get("/network/tps", networkHandler.TPS)
	api.Get("/network/health", healthHandler.Handle)
	api.Get("/messaging/stats", networkHandler.MessageStats)
	api.Get("/blog/posts", blogHandler.Posts)
	api.Get("/blog/tags", blogHandler.Tags)
	api.Get("/proposals", proposalsHandler.List)
	api.Get("/proposals/stats", proposalsHandler.Stats)
	api.Get("/proposals/:id", proposalsHandler.Get)
	api.Get("/proposals/:id/html", proposalsHandler.HTML)

	admin := api.Group("/cache", middleware.AdminRateLimiter(rateLimitConfig))
	admin.Get("/stats", cacheHandler.Stats)
	admin.Delete("/", cacheHandler.Reset)

	// Graceful shutdown
	go func() {
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
		<-sig

		log.Println("⏹️  Shutting down...")
		if refresh != nil {
			if err := refresh.Stop(); err != nil {
				log.Printf("⚠️  Failed to stop refresh service: %v", err)
			}
		}
		if err := app.Shutdown(); err != nil {
			log.Printf("⚠️  Server shutdown error: %v", err)
		}
	}()

	log.Printf("🌐 Listening on :%s", cfg.Port)
	if err := app.Listen(":" + cfg.Port); err != nil {
		log.Fatalf("❌ Server error: %v", err)
	}

	log.Println("✅ Server stopped")
}
