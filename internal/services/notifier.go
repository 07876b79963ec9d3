package services

import (
	"context"

	"github.com/google/uuid"
	"github.com/scoutlink/backend/internal/events"
	"github.com/scoutlink/backend/internal/models"
	"github.com/scoutlink/backend/internal/repositories"
	"go.uber.org/zap"
)

// Notifier delivers user-facing notifications. Delivery is fire-and-forget:
// implementations must never fail the calling transition.
type Notifier interface {
	Push(ctx context.Context, userID uuid.UUID, notifType, title, message string, link *string, meta map[string]any)
}

// NotificationCenter persists notifications and fans them out over pub/sub so
// the websocket hub and the mail bridge can pick them up.
type NotificationCenter struct {
	repo      *repositories.NotificationRepo
	publisher events.Publisher
	log       *zap.Logger
}

func NewNotificationCenter(repo *repositories.NotificationRepo, publisher events.Publisher, log *zap.Logger) *NotificationCenter {
	return &NotificationCenter{repo: repo, publisher: publisher, log: log}
}

func (n *NotificationCenter) Push(ctx context.Context, userID uuid.UUID, notifType, title, message string, link *string, meta map[string]any) {
	row := models.Notification{
		UserID:  userID,
		Type:    notifType,
		Title:   title,
		Message: message,
		Link:    link,
		Meta:    meta,
	}
	if err := n.repo.Create(ctx, &row); err != nil {
		n.log.Warn("notification not persisted",
			zap.String("user_id", userID.String()),
			zap.String("type", notifType),
			zap.Error(err))
		return
	}

	_ = n.publisher.Publish(ctx, events.StreamNotifications, events.Event{
		Type: events.EventNotificationCreated,
		Payload: map[string]any{
			"notification_id": row.ID.String(),
			"user_id":         userID.String(),
			"type":            notifType,
			"title":           title,
			"message":         message,
		},
	})
}

func (n *NotificationCenter) List(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.Notification, error) {
	return n.repo.ListByUser(ctx, userID, limit, offset)
}

func (n *NotificationCenter) MarkRead(ctx context.Context, id, userID uuid.UUID) error {
	return n.repo.MarkRead(ctx, id, userID)
}
