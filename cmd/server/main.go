package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	config "github.com/postpilot/postpilot/configs"
	"github.com/postpilot/postpilot/internal/accounts"
	"github.com/postpilot/postpilot/internal/api/handlers"
	"github.com/postpilot/postpilot/internal/api/middleware"
	"github.com/postpilot/postpilot/internal/campaign"
	job "github.com/postpilot/postpilot/internal/jobs"
	"github.com/postpilot/postpilot/internal/media"
	"github.com/postpilot/postpilot/internal/platform"
	"github.com/postpilot/postpilot/internal/publisher"
	"github.com/postpilot/postpilot/internal/ratelimit"
	"github.com/postpilot/postpilot/internal/scheduler"
	"github.com/postpilot/postpilot/internal/storage"
	"github.com/postpilot/postpilot/internal/webhook"
	"github.com/postpilot/postpilot/internal/worker"
	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: Failed to load environment variables", err)
	}

	cfg := config.LoadConfig()

	var store storage.Store
	var db *sql.DB
	if cfg.PostgresURI != "" {
		var err error
		db, err = sql.Open("postgres", cfg.PostgresURI)
		if err != nil {
			log.Fatalf("Failed to connect to database: %v", err)
		}
		defer closeDB(db)

		if err := db.Ping(); err != nil {
			log.Fatalf("Database is unreachable: %v", err)
		}
		store = storage.NewPostgresStore(db)
	} else {
		log.Println("POSTGRES_URI not set, using in-memory store")
		store = storage.NewMemoryStore()
	}

	var tracker ratelimit.Tracker
	if cfg.RedisURI != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisURI})
		defer rdb.Close()
		tracker = ratelimit.NewRedisTracker(rdb, cfg.HourlyPostLimit)
	} else {
		tracker = ratelimit.NewMemoryTracker(cfg.HourlyPostLimit)
	}

	registry := platform.NewRegistry()
	registry.Register(platform.NewTwitterAdapter(*cfg))
	registry.Register(platform.NewLinkedinAdapter(*cfg))
	registry.RegisterFallback(platform.NewBufferAdapter(*cfg), "facebook", "instagram", "pinterest")

	notifier := webhook.NewNotifier(cfg.WebhookURL)

	accountService := accounts.New(*cfg, store, registry)
	mediaService := media.NewService(*cfg)
	sched := scheduler.New(store, store)
	pub := publisher.New(store, accountService, registry, tracker, notifier)
	orch := campaign.New(store, store, store, sched, registry, pub, notifier)

	app := fiber.New(fiber.Config{
		ReadTimeout:  10 * time.Minute,
		WriteTimeout: 10 * time.Minute,
		BodyLimit:    100 * 1024 * 1024, // 100 MB
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			log.Printf("Error: %v", err)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
		},
	})

	app.Use(logger.New())
	app.Use(cors.New(cors.Config{
		AllowOriginsFunc: func(origin string) bool {
			return true
		},
		AllowMethods:     "GET,POST,PUT,DELETE,OPTIONS",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization",
		AllowCredentials: true,
		MaxAge:           3600,
	}))

	connect := handlers.NewConnectHandler(*cfg, registry, store)
	app.Get("/auth/:platform", connect.AddSocialAccount)
	app.Get("/auth/:platform/callback", connect.CallbackHandler)

	authMiddleware := middleware.NewAuthMiddleware(*cfg)

	api := app.Group("/api")
	api.Use(authMiddleware.AuthMiddleware())

	post := handlers.NewPostHandler(sched)
	api.Post("/posts/create", post.CreatePost)
	api.Get("/posts", post.ListPosts)
	api.Post("/posts/:id/update", post.UpdatePost)
	api.Post("/posts/:id/cancel", post.CancelPost)
	api.Get("/posts/suggest_time", post.SuggestTime)

	camp := handlers.NewCampaignHandler(orch)
	api.Post("/campaigns/create", camp.CreateCampaign)
	api.Get("/campaigns", camp.ListCampaigns)
	api.Post("/campaigns/:id/pause", camp.PauseCampaign)
	api.Post("/campaigns/:id/resume", camp.ResumeCampaign)
	api.Post("/campaigns/:id/cancel", camp.CancelCampaign)
	api.Get("/campaigns/:id/analytics", camp.CampaignAnalytics)
	api.Post("/campaigns/:id/duplicate", camp.DuplicateCampaign)

	account := handlers.NewAccountHandler(accountService)
	api.Get("/accounts", account.ListSocialAccounts)
	api.Post("/accounts/remove", account.DeleteSocialAccount)

	mediaHandler := handlers.NewMediaHandler(mediaService)
	api.Post("/media/upload", mediaHandler.UploadMedia)

	// cron jobs
	refreshTokenJob := job.NewTokenRefreshJob(store, accountService)

	c := cron.New()
	c.AddFunc("@every 00h10m00s", refreshTokenJob.RefreshTokens)
	c.Start()

	workerCtx, stopWorker := context.WithCancel(context.Background())
	w := worker.New(sched, pub, store, store, orch, cfg.PollInterval, cfg.MaxConcurrentPublish)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		log.Println("Starting the publish worker...")
		w.Run(workerCtx)
	}()

	go func() {
		if err := app.Listen(":3000"); err != nil {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()
	log.Println("Server is running on http://localhost:3000")

	gracefulShutdown(app, cfg.ShutdownTimeout, stopWorker, &wg)
}

func closeDB(db *sql.DB) {
	fmt.Fprint(os.Stdout, "Closing database connection... ")
	if err := db.Close(); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to close database: %v", err)
		return
	}
	fmt.Fprintln(os.Stdout, "Done")
}

func gracefulShutdown(app *fiber.App, timeout time.Duration, stopWorker context.CancelFunc, wg *sync.WaitGroup) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	<-quit
	log.Println("Shutting down server...")

	stopWorker()

	drained := make(chan struct{})
	go func() {
		wg.Wait()
		close(drained)
	}()

	select {
	case <-drained:
		log.Println("Worker drained")
	case <-time.After(timeout):
		log.Println("Worker drain timed out, in-flight posts will be marked failed on restart")
	}

	if err := app.Shutdown(); err != nil {
		log.Fatalf("Failed to shut down server: %v", err)
	}
	log.Println("Server shutdown complete.")
}
