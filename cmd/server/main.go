package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"github.com/songhatch/api/internal/client"
	"github.com/songhatch/api/internal/config"
	"github.com/songhatch/api/internal/handler"
	"github.com/songhatch/api/internal/middleware"
	"github.com/songhatch/api/internal/service"
	"github.com/songhatch/api/internal/store"
	"github.com/songhatch/api/internal/worker"
	ws "github.com/songhatch/api/internal/websocket"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Initialize Redis client
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	// Test Redis connection; fall back to the in-memory store when
	// Redis is absent (single-instance development only).
	ctx := context.Background()
	var st *store.Store
	var asynqClient *asynq.Client
	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Printf("Warning: Redis not available, using in-memory store: %v", err)
		st = store.NewMemoryStore()
	} else {
		st = store.NewRedisStore(redisClient)
		asynqClient = asynq.NewClient(asynq.RedisClientOpt{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer asynqClient.Close()
	}

	// Initialize validator
	validate := validator.New()

	// Initialize WebSocket hub
	hub := ws.NewHub()
	go hub.Run()

	// External clients
	sunoClient := client.NewSunoClient(&cfg.Suno)
	if !sunoClient.IsConfigured() {
		log.Printf("Warning: Suno API key not configured, generations will stay pending")
	}

	var r2Client client.StorageClient
	if c, err := client.NewR2Client(&cfg.R2); err != nil {
		log.Printf("Warning: R2 not configured, album art will reference provider URLs: %v", err)
	} else {
		r2Client = c
	}

	// Initialize services
	callbackURL := cfg.Server.ApiDomain + "/webhooks/suno"
	songService := service.NewSongService(st)
	generationService := service.NewGenerationService(st, sunoClient, callbackURL)
	notificationService := service.NewNotificationService(st, asynqClient)
	reconcileService := service.NewReconcileService(st, sunoClient, r2Client, asynqClient, hub, notificationService)

	// Initialize handlers
	songHandler := handler.NewSongHandler(songService, validate)
	artistHandler := handler.NewArtistHandler(songService, validate)
	generationHandler := handler.NewGenerationHandler(generationService, validate)
	notificationHandler := handler.NewNotificationHandler(notificationService)
	webhookHandler := handler.NewWebhookHandler(reconcileService)

	// Initialize middleware
	authMiddleware := middleware.NewAuthMiddleware(cfg.JWT.Secret)
	rateLimiter := middleware.NewRateLimiter(redisClient)

	// Initialize Fiber app
	app := fiber.New(fiber.Config{
		ErrorHandler: customErrorHandler,
	})

	// Global middleware
	app.Use(recover.New())
	app.Use(logger.New(logger.Config{
		Format: "[${time}] ${status} - ${latency} ${method} ${path}\n",
	}))
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,PUT,DELETE,OPTIONS",
		AllowHeaders: "Origin,Content-Type,Accept,Authorization",
	}))

	// Health check
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	// Provider webhooks (signature-verified, unauthenticated)
	webhooks := app.Group("/webhooks", middleware.WebhookSignature(cfg.Suno.WebhookSecret))
	webhooks.Post("/suno", webhookHandler.Receive)

	// API routes
	api := app.Group("/api", authMiddleware.Authenticate())

	// Artist routes
	artists := api.Group("/artists")
	artists.Post("/", artistHandler.Create)
	artists.Get("/:artistId", artistHandler.Get)
	artists.Post("/:artistId/follow", rateLimiter.FollowLimit(cfg.RateLimit.FollowPerMin), artistHandler.Follow)
	artists.Delete("/:artistId/follow", rateLimiter.FollowLimit(cfg.RateLimit.FollowPerMin), artistHandler.Unfollow)

	// Song routes
	songs := api.Group("/songs")
	songs.Post("/", songHandler.Create)
	songs.Get("/:songId", songHandler.Get)
	songs.Get("/:songId/versions", songHandler.Versions)
	songs.Post("/:songId/versions/:versionId/primary", songHandler.SetPrimary)
	songs.Post("/:songId/generate", rateLimiter.GenerateLimit(cfg.RateLimit.GeneratePerHour), generationHandler.Start)

	// Generation routes
	api.Get("/generations/:generationId", generationHandler.Get)

	// Notification routes
	api.Get("/notifications", notificationHandler.List)

	// WebSocket routes
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})

	app.Get("/ws/generations/:generationId", websocket.New(func(c *websocket.Conn) {
		generationID := c.Params("generationId")
		hub.HandleConnection(c, generationID)
	}))

	// Start Asynq worker server
	if asynqClient != nil {
		go startWorkerServer(cfg, reconcileService, notificationService)
	}

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-quit
		log.Println("Shutting down server...")
		if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
			log.Printf("Server shutdown error: %v", err)
		}
	}()

	// Start server
	addr := ":" + cfg.Server.Port
	log.Printf("Server starting on %s", addr)
	if err := app.Listen(addr); err != nil {
		log.Fatalf("Server error: %v", err)
	}
}

func startWorkerServer(cfg *config.Config, reconcileService *service.ReconcileService, notificationService *service.NotificationService) {
	srv := asynq.NewServer(
		asynq.RedisClientOpt{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		},
		asynq.Config{
			Concurrency: 10,
			Queues: map[string]int{
				"enrich": 6,
				"notify": 4,
			},
		},
	)

	// Create workers
	enrichWorker := worker.NewEnrichWorker(reconcileService)
	fanOutWorker := worker.NewFanOutWorker(notificationService)

	mux := asynq.NewServeMux()
	mux.HandleFunc(service.TaskTypeEnrich, enrichWorker.ProcessTask)
	mux.HandleFunc(service.TaskTypeFanOut, fanOutWorker.ProcessTask)

	if err := srv.Run(mux); err != nil {
		log.Printf("Asynq worker error: %v", err)
	}
}

func customErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "Internal Server Error"

	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
		message = e.Message
	}

	return c.Status(code).JSON(fiber.Map{
		"error": fiber.Map{
			"code":    "SERVICE_ERROR",
			"message": message,
		},
	})
}
