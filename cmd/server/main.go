package main

import (
	"database/sql"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/hibiken/asynq"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	config "github.com/maheshrc27/postpilot/configs"
	"github.com/maheshrc27/postpilot/internal/adapter"
	"github.com/maheshrc27/postpilot/internal/api/handlers"
	"github.com/maheshrc27/postpilot/internal/api/middleware"
	"github.com/maheshrc27/postpilot/internal/dispatcher"
	job "github.com/maheshrc27/postpilot/internal/jobs"
	"github.com/maheshrc27/postpilot/internal/models"
	"github.com/maheshrc27/postpilot/internal/queue"
	"github.com/maheshrc27/postpilot/internal/repository"
	"github.com/maheshrc27/postpilot/internal/scheduler"
	"github.com/maheshrc27/postpilot/internal/service"
	"github.com/robfig/cron"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: Failed to load environment variables", err)
	}

	cfg := config.LoadConfig()

	db, err := sql.Open("postgres", cfg.PostgresURI)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer closeDB(db)

	if err := db.Ping(); err != nil {
		log.Fatalf("Database is unreachable: %v", err)
	}

	redisConn := asynq.RedisClientOpt{Addr: cfg.RedisURI}
	timerQueue := queue.NewClient(redisConn)
	defer timerQueue.Close()

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

	userRepo := repository.NewUserRepository(db)
	postRepo := repository.NewPostRepository(db)
	taskRepo := repository.NewPlatformTaskRepository(db)
	credentialRepo := repository.NewCredentialRepository(db)
	apiKeyRepo := repository.NewApiKeyRepository(db)

	registry := adapter.NewRegistry()
	registry.Register(models.PlatformInstagram, adapter.NewInstagramAdapter())
	registry.Register(models.PlatformFacebook, adapter.NewFacebookAdapter())
	registry.Register(models.PlatformYoutube, adapter.NewYoutubeAdapter())
	registry.Register(models.PlatformLinkedin, adapter.NewLinkedinAdapter())

	r2Service, err := service.NewR2Service(*cfg)
	if err != nil {
		log.Fatalf("Failed to configure object storage: %v", err)
	}
	geminiService := service.NewGeminiService(cfg.GeminiRunnerURL)
	videoService := service.NewVideoService()

	d := dispatcher.New(cfg.Dispatch, cfg.SecretKey, postRepo, taskRepo, credentialRepo,
		registry, geminiService, r2Service, videoService)
	sched := scheduler.New(cfg.Sweep, postRepo, taskRepo, d, timerQueue, cfg.Dispatch.MaxConcurrent)

	authService := service.NewAuthService(*cfg, userRepo)
	userService := service.NewUserService(userRepo)
	postService := service.NewPostService(db, postRepo, taskRepo, r2Service, sched, d)
	credentialService := service.NewCredentialService(*cfg, credentialRepo, registry)
	apiKeyService := service.NewApiKeyService(apiKeyRepo)

	authMiddleware := middleware.NewAuthMiddleware(*cfg, apiKeyService)

	auth := handlers.NewAuthHandler(*cfg, authService)
	app.Get("/login", auth.Login)
	app.Get("/login/callback", auth.LoginCallbackHandler)

	api := app.Group("/api")
	api.Use(authMiddleware.AuthMiddleware())

	user := handlers.NewUserHandler(userService)
	api.Get("/user/info", user.GetUserInfo)

	apiKeys := handlers.NewApiKeyHandler(apiKeyService)
	api.Post("/api_key/new", apiKeys.CreateApiKey)
	api.Get("/api_key/list", apiKeys.ListKeys)
	api.Post("/api_key/remove", apiKeys.RemoveAPIKey)

	credentials := handlers.NewCredentialHandler(credentialService)
	api.Post("/credentials/create", credentials.CreateCredential)
	api.Get("/credentials", credentials.ListCredentials)
	api.Post("/credentials/test", credentials.TestCredential)
	api.Post("/credentials/remove", credentials.RemoveCredential)

	post := handlers.NewPostHandler(postService)
	api.Post("/posts/create", post.CreatePost)
	api.Get("/posts", post.ListPosts)
	api.Get("/posts/status", post.GetStatus)
	api.Post("/posts/publish", post.PublishNow)
	api.Post("/posts/schedule", post.SchedulePost)
	api.Post("/posts/cancel", post.CancelScheduled)
	api.Post("/posts/remove", post.RemovePost)

	// cron jobs
	refreshTokenJob := job.NewTokenRefreshJob(credentialRepo, cfg.SecretKey)

	c := cron.New()
	c.AddFunc("@every 00h10m00s", refreshTokenJob.RefreshTokens)
	c.Start()

	sched.Start()

	go func() {
		server := asynq.NewServer(redisConn, asynq.Config{
			Concurrency: cfg.Dispatch.MaxConcurrent,
		})

		worker := queue.NewWorker(d)
		mux := asynq.NewServeMux()
		mux.HandleFunc(queue.TaskTypeDispatchPost, worker.HandleDispatchPostTask)

		log.Println("Starting the Asynq server...")
		if err := server.Run(mux); err != nil {
			log.Fatalf("Could not start Asynq server: %v", err)
		}
	}()

	go func() {
		if err := app.Listen(":3000"); err != nil {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()
	log.Println("Server is running on http://localhost:3000")

	gracefulShutdown(app, db, sched)
}

func closeDB(db *sql.DB) {
	fmt.Fprint(os.Stdout, "Closing database connection... ")
	if err := db.Close(); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to close database: %v", err)
		return
	}
	fmt.Fprintln(os.Stdout, "Done")
}

func gracefulShutdown(app *fiber.App, db *sql.DB, sched *scheduler.Scheduler) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	<-quit
	log.Println("Shutting down server...")

	if err := app.Shutdown(); err != nil {
		log.Fatalf("Failed to shut down server: %v", err)
	}

	sched.Stop()
	closeDB(db)
	log.Println("Server shutdown complete.")
}
