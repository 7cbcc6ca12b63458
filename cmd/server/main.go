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
	config "github.com/linkhubhq/linkhub-api/configs"
	"github.com/linkhubhq/linkhub-api/internal/api/handlers"
	"github.com/linkhubhq/linkhub-api/internal/api/middleware"
	job "github.com/linkhubhq/linkhub-api/internal/jobs"
	"github.com/linkhubhq/linkhub-api/internal/queue"
	"github.com/linkhubhq/linkhub-api/internal/repository"
	"github.com/linkhubhq/linkhub-api/internal/service"
	"github.com/redis/go-redis/v9"
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
	client := asynq.NewClient(redisConn)
	defer client.Close()

	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisURI})
	defer rdb.Close()

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

	draftRepo := repository.NewDraftRepository(db)
	socialAccountRepo := repository.NewSocialAccountRepository(db)
	publishedPostRepo := repository.NewPublishedPostRepository(db)

	mediaService := service.NewMediaService(*cfg)
	tokenService := service.NewTokenService(*cfg, socialAccountRepo)
	stateStore := service.NewOAuthStateStore(rdb)
	platformService := service.NewPlatformService(*cfg, socialAccountRepo, stateStore)

	twitterService := service.NewTwitterService(*cfg, mediaService)
	facebookService := service.NewFacebookService(*cfg, mediaService)
	instagramService := service.NewInstagramService(*cfg, mediaService)
	linkedinService := service.NewLinkedinService(*cfg, mediaService)

	publisherService := service.NewPublisherService(draftRepo, socialAccountRepo, publishedPostRepo, tokenService,
		twitterService, facebookService, instagramService, linkedinService)

	producer := queue.NewProducer(client)
	draftService := service.NewDraftService(db, draftRepo, socialAccountRepo, publishedPostRepo,
		mediaService, publisherService, producer)

	authMiddleware := middleware.NewAuthMiddleware(*cfg)

	platform := handlers.NewPlatformHandler(platformService, *cfg)
	app.Get("/auth/:platform/callback", platform.CallbackHandler)

	api := app.Group("/api")
	api.Use(authMiddleware.AuthMiddleware())

	api.Get("/auth/:platform", platform.AddSocialAccount)
	api.Get("/accounts", platform.ListSocialAccounts)
	api.Post("/accounts/disconnect", platform.DisconnectSocialAccount)

	draft := handlers.NewDraftHandler(draftService)
	api.Post("/drafts/create", draft.CreateDraft)
	api.Get("/drafts", draft.ListDrafts)
	api.Get("/drafts/calendar", draft.Calendar)
	api.Post("/drafts/publish", draft.PublishDraft)
	api.Post("/drafts/remove", draft.RemoveDraft)

	admin := handlers.NewAdminHandler(draftService)
	adminAPI := api.Group("/admin", authMiddleware.AdminOnly())
	adminAPI.Get("/drafts", admin.ListDrafts)
	adminAPI.Post("/drafts/decide", admin.DecideDraft)

	// cron jobs
	schedulerJob := job.NewPublishSchedulerJob(draftRepo, publisherService)

	// queue
	queueW := queue.NewQueue(draftRepo, publisherService)

	c := cron.New()
	c.AddFunc("@every 00h01m00s", schedulerJob.Run)
	c.Start()

	go func() {
		server := asynq.NewServer(redisConn, asynq.Config{
			Concurrency: 10,
		})

		mux := asynq.NewServeMux()
		mux.HandleFunc(queue.TaskTypePublishDraft, queueW.HandlePublishDraftTask)

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

	gracefulShutdown(app, db)
}

func closeDB(db *sql.DB) {
	fmt.Fprint(os.Stdout, "Closing database connection... ")
	if err := db.Close(); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to close database: %v", err)
		return
	}
	fmt.Fprintln(os.Stdout, "Done")
}

func gracefulShutdown(app *fiber.App, db *sql.DB) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	<-quit
	log.Println("Shutting down server...")

	if err := app.Shutdown(); err != nil {
		log.Fatalf("Failed to shut down server: %v", err)
	}

	closeDB(db)
	log.Println("Server shutdown complete.")
}
