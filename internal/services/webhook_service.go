package services

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/scoutlink/backend/internal/config"
	"github.com/scoutlink/backend/internal/models"
	"github.com/scoutlink/backend/internal/payments"
	"github.com/scoutlink/backend/internal/repositories"
	"go.uber.org/zap"
)

// EventDeduper remembers processor event ids that were fully handled, so
// at-least-once redelivery turns into a cheap no-op.
type EventDeduper interface {
	Seen(ctx context.Context, eventID string) (bool, error)
	Mark(ctx context.Context, eventID string) error
}

type redisDeduper struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewRedisDeduper keeps handled event ids for three days, comfortably past
// the processor's redelivery window.
func NewRedisDeduper(rdb *redis.Client) EventDeduper {
	return &redisDeduper{rdb: rdb, ttl: 72 * time.Hour}
}

func (d *redisDeduper) Seen(ctx context.Context, eventID string) (bool, error) {
	n, err := d.rdb.Exists(ctx, "webhook:event:"+eventID).Result()
	return n > 0, err
}

func (d *redisDeduper) Mark(ctx context.Context, eventID string) error {
	return d.rdb.Set(ctx, "webhook:event:"+eventID, 1, d.ttl).Err()
}

// WebhookService reconciles processor events into the ledger. Deliveries are
// at-least-once and can arrive out of order, so every handler is idempotent
// and decides from the row's current state, never from delivery order.
type WebhookService struct {
	evals     EvaluationLedger
	lifecycle *EvaluationService
	dedup     EventDeduper
	notifier  Notifier
	audit     AuditSink
	cfg       *config.Config
	log       *zap.Logger
}

func NewWebhookService(
	evals EvaluationLedger,
	lifecycle *EvaluationService,
	dedup EventDeduper,
	notifier Notifier,
	audit AuditSink,
	cfg *config.Config,
	log *zap.Logger,
) *WebhookService {
	return &WebhookService{
		evals:     evals,
		lifecycle: lifecycle,
		dedup:     dedup,
		notifier:  notifier,
		audit:     audit,
		cfg:       cfg,
		log:       log,
	}
}

// HandleEvent verifies, parses and applies one webhook delivery. A nil return
// acknowledges the delivery; an error makes the processor retry it later.
func (s *WebhookService) HandleEvent(ctx context.Context, payload []byte, sigHeader string) error {
	if err := payments.VerifySignature(s.cfg.PaymentWebhookSecret, payload, sigHeader, s.cfg.WebhookTolerance, time.Now()); err != nil {
		return err
	}

	ev, err := payments.ParseEvent(payload)
	if err != nil {
		return err
	}

	if seen, err := s.dedup.Seen(ctx, ev.ID); err == nil && seen {
		s.log.Debug("duplicate webhook delivery", zap.String("event_id", ev.ID))
		return nil
	}

	eval, err := s.resolveEvaluation(ctx, ev)
	if errors.Is(err, repositories.ErrNotFound) {
		// An event we cannot map to a row will never become mappable;
		// acknowledging it avoids a retry storm.
		s.log.Warn("webhook event references no known evaluation",
			zap.String("event_id", ev.ID),
			zap.String("type", ev.Type),
			zap.String("payment_reference", ev.PaymentRef()))
		return s.ack(ctx, ev.ID)
	}
	if err != nil {
		return err
	}

	switch ev.Type {
	case payments.EventPaymentCaptured:
		err = s.handleCaptured(ctx, eval, ev.PaymentRef())
	case payments.EventRefundCompleted:
		err = s.handleRefunded(ctx, eval)
	case payments.EventPaymentFailed:
		err = s.handleFailed(ctx, eval)
	default:
		s.log.Debug("ignoring webhook event type",
			zap.String("event_id", ev.ID), zap.String("type", ev.Type))
	}
	if err != nil {
		return err
	}
	return s.ack(ctx, ev.ID)
}

func (s *WebhookService) handleCaptured(ctx context.Context, eval *models.Evaluation, paymentRef string) error {
	if eval.Status == models.EvalStatusCancelled || eval.Status == models.EvalStatusDenied {
		if eval.PaymentStatus != models.PaymentPending {
			return nil
		}
		// The charge settled after the request was already closed. The money
		// goes straight back instead of being confirmed.
		s.log.Info("capture arrived for a closed evaluation, refunding",
			zap.String("evaluation_id", eval.ID.String()),
			zap.String("status", eval.Status))
		_, err := s.lifecycle.RefundLateCapture(ctx, eval, paymentRef)
		if errors.Is(err, repositories.ErrStatusConflict) {
			current, gerr := s.evals.GetByID(ctx, eval.ID)
			if gerr == nil && current.PaymentStatus != models.PaymentPending {
				return nil
			}
		}
		return err
	}

	switch eval.PaymentStatus {
	case models.PaymentPaid:
		return nil
	case models.PaymentRefunded:
		// A capture arriving after the refund was recorded. The money has
		// already been returned, so the row must not flip back to paid.
		s.log.Info("capture event arrived after refund, ignoring",
			zap.String("evaluation_id", eval.ID.String()))
		return nil
	case models.PaymentNotRequired:
		s.log.Warn("capture event for an evaluation without a payment leg",
			zap.String("evaluation_id", eval.ID.String()))
		return nil
	}

	_, err := s.lifecycle.ConfirmPayment(ctx, eval.ID, paymentRef)
	if errors.Is(err, repositories.ErrStatusConflict) {
		// Someone else settled the payment between our read and write.
		current, gerr := s.evals.GetByID(ctx, eval.ID)
		if gerr == nil && current.PaymentStatus != models.PaymentPending {
			return nil
		}
		return err
	}
	return err
}

func (s *WebhookService) handleRefunded(ctx context.Context, eval *models.Evaluation) error {
	if eval.PaymentStatus == models.PaymentRefunded {
		return nil
	}
	if eval.PaymentStatus == models.PaymentNotRequired {
		s.log.Warn("refund event for an evaluation without a payment leg",
			zap.String("evaluation_id", eval.ID.String()))
		return nil
	}

	_, err := s.evals.SetPaymentStatus(ctx, eval.ID, eval.PaymentStatus, models.PaymentRefunded, nil)
	if errors.Is(err, repositories.ErrStatusConflict) {
		current, gerr := s.evals.GetByID(ctx, eval.ID)
		if gerr == nil && current.PaymentStatus == models.PaymentRefunded {
			return nil
		}
		return err
	}
	if err != nil {
		return err
	}

	_ = s.audit.Log(ctx, models.AuditLog{
		ActorType:  "system",
		Action:     "refund_recorded",
		EntityType: "evaluation",
		EntityID:   &eval.ID,
	})
	s.notifier.Push(ctx, eval.RequesterID, models.NotifPaymentRefunded,
		"Payment refunded",
		"Your evaluation payment has been refunded.",
		evalLink(eval.ID), map[string]any{"evaluation_id": eval.ID.String()})
	return nil
}

func (s *WebhookService) handleFailed(ctx context.Context, eval *models.Evaluation) error {
	if eval.PaymentStatus != models.PaymentPending {
		return nil
	}
	s.notifier.Push(ctx, eval.RequesterID, models.NotifPaymentFailed,
		"Payment failed",
		"Your evaluation payment did not go through. You can try again from the request page.",
		evalLink(eval.ID), map[string]any{"evaluation_id": eval.ID.String()})
	return nil
}

func (s *WebhookService) resolveEvaluation(ctx context.Context, ev *payments.Event) (*models.Evaluation, error) {
	if raw, ok := ev.Data.Object.Metadata["evaluation_id"]; ok {
		if id, err := uuid.Parse(raw); err == nil {
			return s.evals.GetByID(ctx, id)
		}
		s.log.Warn("webhook metadata carries a malformed evaluation id",
			zap.String("event_id", ev.ID), zap.String("evaluation_id", raw))
	}
	if ref := ev.PaymentRef(); ref != "" {
		return s.evals.GetByPaymentRef(ctx, ref)
	}
	return nil, repositories.ErrNotFound
}

func (s *WebhookService) ack(ctx context.Context, eventID string) error {
	if err := s.dedup.Mark(ctx, eventID); err != nil {
		// Losing the mark only means one redundant re-run of an idempotent
		// handler.
		s.log.Warn("webhook dedup mark failed", zap.String("event_id", eventID), zap.Error(err))
	}
	return nil
}
