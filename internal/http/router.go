package http

import (
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/redis/go-redis/v9"
	"github.com/scoutlink/backend/internal/config"
	"github.com/scoutlink/backend/internal/http/handlers"
	"github.com/scoutlink/backend/internal/middleware"
	"go.uber.org/zap"
)

func SetupRouter(
	app *fiber.App,
	cfg *config.Config,
	log *zap.Logger,
	rdb *redis.Client,
	authHandler *handlers.AuthHandler,
	userHandler *handlers.UserHandler,
	evalHandler *handlers.EvaluationHandler,
	notificationHandler *handlers.NotificationHandler,
	referralHandler *handlers.ReferralHandler,
	webhookHandler *handlers.WebhookHandler,
	wsHub *handlers.WSHub,
) {
	// Global middleware
	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization, X-Request-ID",
	}))
	app.Use(middleware.RequestIDMiddleware())
	app.Use(middleware.LoggerMiddleware(log))

	// Health check
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	// Processor webhooks: signature-authenticated, never rate limited. The
	// handler needs the raw body bytes for verification.
	app.Post("/webhooks/payments", webhookHandler.HandlePayment)

	api := app.Group("/api/v1")

	// Auth (public)
	api.Post("/auth/login", authHandler.Login)

	// Rate-limited endpoints
	api.Use(middleware.RateLimitMiddleware(rdb, 100, time.Minute))

	// Protected endpoints
	protected := api.Group("", middleware.AuthMiddleware(cfg, log))

	// User
	protected.Get("/me", userHandler.GetMe)
	protected.Post("/me/ping", userHandler.Ping)

	// Evaluations
	protected.Post("/evaluations", evalHandler.Create)
	protected.Post("/evaluations/gift", evalHandler.Gift)
	protected.Get("/evaluations", evalHandler.List)
	protected.Get("/evaluations/:id", evalHandler.Get)
	protected.Post("/evaluations/:id/cancel", evalHandler.Cancel)
	protected.Post("/evaluations/:id/deny", evalHandler.Deny)
	protected.Post("/evaluations/:id/accept", evalHandler.Accept)
	protected.Post("/evaluations/:id/complete", evalHandler.Complete)
	protected.Get("/evaluations/:id/events", evalHandler.GetEvents)

	// Notifications
	protected.Get("/notifications", notificationHandler.List)
	protected.Post("/notifications/:id/read", notificationHandler.MarkRead)

	// Admin
	admin := protected.Group("/admin", middleware.AdminMiddleware())
	admin.Post("/referrals/:id/payout", referralHandler.ProcessPayout)

	// WebSocket
	app.Use("/ws", handlers.WSUpgradeMiddleware())
	app.Get("/ws", websocket.New(wsHub.HandleWS))
}
