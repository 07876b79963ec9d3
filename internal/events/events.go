package events

import "context"

// Event types
const (
	EventEvaluationStatusChanged = "evaluation_status_changed"
	EventNotificationCreated     = "notification_created"
	EventPaymentReceived         = "payment_received"
)

// Streams
const (
	StreamEvaluations   = "events:evaluations"
	StreamNotifications = "events:notifications"
)

type Event struct {
	Type    string         `json:"type"`
	Payload map[string]any `json:"payload"`
}

type Publisher interface {
	Publish(ctx context.Context, stream string, event Event) error
}

type Subscriber interface {
	Subscribe(ctx context.Context, stream string, handler func(Event)) error
}
