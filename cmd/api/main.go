package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"github.com/scoutlink/backend/internal/config"
	"github.com/scoutlink/backend/internal/db"
	"github.com/scoutlink/backend/internal/events"
	apphttp "github.com/scoutlink/backend/internal/http"
	"github.com/scoutlink/backend/internal/http/handlers"
	"github.com/scoutlink/backend/internal/payments"
	"github.com/scoutlink/backend/internal/repositories"
	"github.com/scoutlink/backend/internal/services"
	"go.uber.org/zap"
)

func main() {
	log, _ := zap.NewProduction()
	defer log.Sync()

	cfg := config.Load()
	cfg.Validate(log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Database
	pool, err := db.NewPostgresPool(ctx, cfg.PostgresDSN, log)
	if err != nil {
		log.Fatal("failed to connect to postgres", zap.Error(err))
	}
	defer pool.Close()

	// Run migrations
	if err := db.RunMigrations(ctx, pool, "migrations", log); err != nil {
		log.Fatal("failed to run migrations", zap.Error(err))
	}

	// Redis
	rdb, err := db.NewRedisClient(ctx, cfg.RedisURL, log)
	if err != nil {
		log.Fatal("failed to connect to redis", zap.Error(err))
	}
	defer rdb.Close()

	// Repositories
	userRepo := repositories.NewUserRepo(pool)
	evalRepo := repositories.NewEvaluationRepo(pool)
	auditRepo := repositories.NewAuditRepo(pool)
	notificationRepo := repositories.NewNotificationRepo(pool)
	referralRepo := repositories.NewReferralRepo(pool)

	// Events
	publisher := events.NewRedisPublisher(rdb, log)
	subscriber := events.NewRedisSubscriber(rdb, log)

	// Services
	gateway := payments.NewClient(cfg.PaymentAPIBaseURL, cfg.PaymentSecretKey, log)
	notifier := services.NewNotificationCenter(notificationRepo, publisher, log)
	evalService := services.NewEvaluationService(evalRepo, userRepo, gateway, auditRepo, notifier, publisher, cfg, log)
	webhookService := services.NewWebhookService(evalRepo, evalService, services.NewRedisDeduper(rdb), notifier, auditRepo, cfg, log)
	referralService := services.NewReferralService(referralRepo, userRepo, gateway, auditRepo, notifier, log)

	// Handlers
	authHandler := handlers.NewAuthHandler(userRepo, cfg, log)
	userHandler := handlers.NewUserHandler(userRepo, log)
	evalHandler := handlers.NewEvaluationHandler(evalService, log)
	notificationHandler := handlers.NewNotificationHandler(notifier, log)
	referralHandler := handlers.NewReferralHandler(referralService, log)
	webhookHandler := handlers.NewWebhookHandler(webhookService, log)
	wsHub := handlers.NewWSHub(cfg, subscriber, log)

	// Start WS hub
	wsHub.Start(ctx)

	// Fiber app
	app := fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}
			return c.Status(code).JSON(fiber.Map{"error": err.Error()})
		},
	})

	apphttp.SetupRouter(app, cfg, log, rdb, authHandler, userHandler, evalHandler, notificationHandler, referralHandler, webhookHandler, wsHub)

	// Graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		log.Info("shutting down...")
		cancel()
		_ = app.Shutdown()
	}()

	addr := fmt.Sprintf(":%s", cfg.APIPort)
	log.Info("starting API server", zap.String("addr", addr))
	if err := app.Listen(addr); err != nil {
		log.Fatal("server error", zap.Error(err))
	}
}
