package main

import (
	"context"
	"fmt"
	"net/smtp"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/jordan-wright/email"
	"github.com/scoutlink/backend/internal/config"
	"github.com/scoutlink/backend/internal/db"
	"github.com/scoutlink/backend/internal/events"
	"github.com/scoutlink/backend/internal/repositories"
	"go.uber.org/zap"
)

// Mail bridge: subscribes to notification events and mirrors them to email.
// Runs beside the API so a slow SMTP server never sits on a request path.

func main() {
	log, _ := zap.NewProduction()
	defer log.Sync()

	cfg := config.Load()
	if cfg.SMTPHost == "" {
		log.Warn("SMTP_HOST is not set, emails will be dropped")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool, err := db.NewPostgresPool(ctx, cfg.PostgresDSN, log)
	if err != nil {
		log.Fatal("failed to connect to postgres", zap.Error(err))
	}
	defer pool.Close()

	rdb, err := db.NewRedisClient(ctx, cfg.RedisURL, log)
	if err != nil {
		log.Fatal("failed to connect to redis", zap.Error(err))
	}
	defer rdb.Close()

	userRepo := repositories.NewUserRepo(pool)
	subscriber := events.NewRedisSubscriber(rdb, log)

	log.Info("mail-bridge started")

	_ = subscriber.Subscribe(ctx, events.StreamNotifications, func(event events.Event) {
		if event.Type != events.EventNotificationCreated {
			return
		}
		sendMail(ctx, cfg, userRepo, event, log)
	})

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Info("shutting down mail-bridge")
	cancel()
}

func sendMail(ctx context.Context, cfg *config.Config, userRepo *repositories.UserRepo, event events.Event, log *zap.Logger) {
	if cfg.SMTPHost == "" {
		return
	}

	raw, _ := event.Payload["user_id"].(string)
	userID, err := uuid.Parse(raw)
	if err != nil {
		return
	}

	user, err := userRepo.GetByID(ctx, userID)
	if err != nil {
		log.Warn("notification for unknown user", zap.String("user_id", raw))
		return
	}

	title, _ := event.Payload["title"].(string)
	message, _ := event.Payload["message"].(string)
	if title == "" {
		title = "ScoutLink notification"
	}

	e := email.NewEmail()
	e.From = cfg.EmailFrom
	e.To = []string{user.Email}
	e.Subject = title
	e.Text = []byte(message)

	addr := fmt.Sprintf("%s:%d", cfg.SMTPHost, cfg.SMTPPort)
	var auth smtp.Auth
	if cfg.SMTPUser != "" {
		auth = smtp.PlainAuth("", cfg.SMTPUser, cfg.SMTPPassword, cfg.SMTPHost)
	}
	if err := e.Send(addr, auth); err != nil {
		log.Warn("failed to send email",
			zap.String("to", user.Email),
			zap.Error(err))
	}
}
