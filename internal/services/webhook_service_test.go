package services

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/scoutlink/backend/internal/config"
	"github.com/scoutlink/backend/internal/models"
	"github.com/scoutlink/backend/internal/payments"
	"go.uber.org/zap"
)

const testWebhookSecret = "whsec_test"

type memDeduper struct {
	seen map[string]bool
}

func (d *memDeduper) Seen(_ context.Context, eventID string) (bool, error) {
	return d.seen[eventID], nil
}

func (d *memDeduper) Mark(_ context.Context, eventID string) error {
	d.seen[eventID] = true
	return nil
}

type webhookFixture struct {
	*evalFixture
	ws *WebhookService
}

func newWebhookFixture(t *testing.T) *webhookFixture {
	t.Helper()
	f := newEvalFixture(t)
	cfg := &config.Config{
		PaymentWebhookSecret: testWebhookSecret,
		WebhookTolerance:     5 * time.Minute,
	}
	ws := NewWebhookService(f.ledger, f.svc, &memDeduper{seen: map[string]bool{}}, f.notifier, f.audit, cfg, zap.NewNop())
	return &webhookFixture{evalFixture: f, ws: ws}
}

func (f *webhookFixture) deliver(t *testing.T, eventID, eventType string, eval *models.Evaluation) error {
	t.Helper()
	ev := payments.Event{ID: eventID, Type: eventType}
	if eval.PaymentRef != nil {
		ev.Data.Object.ID = *eval.PaymentRef
	}
	ev.Data.Object.Metadata = map[string]string{"evaluation_id": eval.ID.String()}
	payload, err := json.Marshal(ev)
	if err != nil {
		t.Fatalf("marshal event: %v", err)
	}
	sig := payments.SignPayload(testWebhookSecret, payload, time.Now())
	return f.ws.HandleEvent(context.Background(), payload, sig)
}

func TestWebhookCapturedMarksPaid(t *testing.T) {
	f := newWebhookFixture(t)
	eval := f.mustRequest(t)

	if err := f.deliver(t, "evt_1", payments.EventPaymentCaptured, eval); err != nil {
		t.Fatalf("HandleEvent() error = %v", err)
	}

	current, _ := f.ledger.GetByID(context.Background(), eval.ID)
	if current.PaymentStatus != models.PaymentPaid {
		t.Errorf("payment_status = %s, want paid", current.PaymentStatus)
	}
	if f.notifier.countFor(f.payeeID, models.NotifPaymentReceived) != 1 {
		t.Error("payee was not told the request is paid")
	}
}

func TestWebhookDuplicateDeliveryIsNoOp(t *testing.T) {
	f := newWebhookFixture(t)
	eval := f.mustRequest(t)

	if err := f.deliver(t, "evt_1", payments.EventPaymentCaptured, eval); err != nil {
		t.Fatalf("HandleEvent() error = %v", err)
	}
	before := len(f.notifier.pushes)

	if err := f.deliver(t, "evt_1", payments.EventPaymentCaptured, eval); err != nil {
		t.Fatalf("duplicate HandleEvent() error = %v", err)
	}
	if len(f.notifier.pushes) != before {
		t.Error("duplicate delivery produced new notifications")
	}
}

func TestWebhookRedeliveryWithNewIDIsIdempotent(t *testing.T) {
	f := newWebhookFixture(t)
	eval := f.mustRequest(t)

	if err := f.deliver(t, "evt_1", payments.EventPaymentCaptured, eval); err != nil {
		t.Fatalf("HandleEvent() error = %v", err)
	}
	before := len(f.notifier.pushes)

	// Same capture under a fresh event id: the row already says paid.
	if err := f.deliver(t, "evt_2", payments.EventPaymentCaptured, eval); err != nil {
		t.Fatalf("HandleEvent() error = %v", err)
	}
	if len(f.notifier.pushes) != before {
		t.Error("replayed capture produced new notifications")
	}
}

func TestWebhookLateCaptureAfterRefundIsIgnored(t *testing.T) {
	f := newWebhookFixture(t)
	eval := f.mustRequest(t)

	// The refund lands first: events can arrive in any order.
	if err := f.deliver(t, "evt_refund", payments.EventRefundCompleted, eval); err != nil {
		t.Fatalf("HandleEvent(refund) error = %v", err)
	}
	current, _ := f.ledger.GetByID(context.Background(), eval.ID)
	if current.PaymentStatus != models.PaymentRefunded {
		t.Fatalf("payment_status = %s, want refunded", current.PaymentStatus)
	}

	if err := f.deliver(t, "evt_capture", payments.EventPaymentCaptured, eval); err != nil {
		t.Fatalf("HandleEvent(late capture) error = %v", err)
	}
	current, _ = f.ledger.GetByID(context.Background(), eval.ID)
	if current.PaymentStatus != models.PaymentRefunded {
		t.Errorf("payment_status = %s, a late capture must not override a refund", current.PaymentStatus)
	}
}

func TestWebhookCaptureAfterCancelIsRefunded(t *testing.T) {
	f := newWebhookFixture(t)
	eval := f.mustRequest(t)

	// Cancelled while the charge was still pending, so no refund went out.
	if _, err := f.svc.Cancel(context.Background(), eval.ID, f.requesterID, nil); err != nil {
		t.Fatalf("Cancel() error = %v", err)
	}
	if f.gateway.refunds != 0 {
		t.Fatalf("refunds = %d before capture, want 0", f.gateway.refunds)
	}

	// The processor captures the charge anyway.
	if err := f.deliver(t, "evt_late_capture", payments.EventPaymentCaptured, eval); err != nil {
		t.Fatalf("HandleEvent() error = %v", err)
	}

	current, _ := f.ledger.GetByID(context.Background(), eval.ID)
	if current.Status != models.EvalStatusCancelled {
		t.Errorf("status = %s, want cancelled", current.Status)
	}
	if current.PaymentStatus != models.PaymentRefunded {
		t.Errorf("payment_status = %s, a capture on a cancelled row must be refunded", current.PaymentStatus)
	}
	if f.gateway.refunds != 1 {
		t.Errorf("refunds = %d, want 1", f.gateway.refunds)
	}
	if f.notifier.countFor(f.payeeID, models.NotifPaymentReceived) != 0 {
		t.Error("payee was told a cancelled request is paid")
	}
	if f.notifier.countFor(f.requesterID, models.NotifPaymentRefunded) != 1 {
		t.Error("requester was not told about the refund")
	}
}

func TestWebhookCaptureAfterDenyIsRefunded(t *testing.T) {
	f := newWebhookFixture(t)
	eval := f.mustRequest(t)

	if _, err := f.svc.Deny(context.Background(), eval.ID, f.payeeID, nil); err != nil {
		t.Fatalf("Deny() error = %v", err)
	}

	if err := f.deliver(t, "evt_late_capture", payments.EventPaymentCaptured, eval); err != nil {
		t.Fatalf("HandleEvent() error = %v", err)
	}

	current, _ := f.ledger.GetByID(context.Background(), eval.ID)
	if current.Status != models.EvalStatusDenied || current.PaymentStatus != models.PaymentRefunded {
		t.Errorf("got (%s, %s), want (denied, refunded)", current.Status, current.PaymentStatus)
	}
	if f.gateway.refunds != 1 {
		t.Errorf("refunds = %d, want 1", f.gateway.refunds)
	}
}

func TestWebhookRefundForGiftedIsIgnored(t *testing.T) {
	f := newWebhookFixture(t)
	eval, err := f.svc.CreateGifted(context.Background(), f.payeeID, f.requesterID)
	if err != nil {
		t.Fatalf("CreateGifted() error = %v", err)
	}

	if err := f.deliver(t, "evt_gift_refund", payments.EventRefundCompleted, eval); err != nil {
		t.Fatalf("HandleEvent() error = %v", err)
	}

	current, _ := f.ledger.GetByID(context.Background(), eval.ID)
	if current.PaymentStatus != models.PaymentNotRequired {
		t.Errorf("payment_status = %s, evaluations without a payment leg must stay not_required", current.PaymentStatus)
	}
}

func TestWebhookRefundAfterCancelIsNoOp(t *testing.T) {
	f := newWebhookFixture(t)
	eval := f.mustRequest(t)
	f.mustPay(t, eval)
	if _, err := f.svc.Cancel(context.Background(), eval.ID, f.requesterID, nil); err != nil {
		t.Fatalf("Cancel() error = %v", err)
	}
	before := len(f.notifier.pushes)

	// The processor confirms the refund the cancel already recorded.
	if err := f.deliver(t, "evt_refund", payments.EventRefundCompleted, eval); err != nil {
		t.Fatalf("HandleEvent() error = %v", err)
	}
	if len(f.notifier.pushes) != before {
		t.Error("confirming an already recorded refund produced notifications")
	}
}

func TestWebhookPaymentFailedNotifiesRequester(t *testing.T) {
	f := newWebhookFixture(t)
	eval := f.mustRequest(t)

	if err := f.deliver(t, "evt_fail", payments.EventPaymentFailed, eval); err != nil {
		t.Fatalf("HandleEvent() error = %v", err)
	}
	if f.notifier.countFor(f.requesterID, models.NotifPaymentFailed) != 1 {
		t.Error("requester was not notified of the failed payment")
	}
	current, _ := f.ledger.GetByID(context.Background(), eval.ID)
	if current.PaymentStatus != models.PaymentPending {
		t.Errorf("payment_status = %s, a failed attempt keeps the row pending", current.PaymentStatus)
	}
}

func TestWebhookUnknownEvaluationIsAcked(t *testing.T) {
	f := newWebhookFixture(t)
	ghost := &models.Evaluation{ID: uuid.New()}

	if err := f.deliver(t, "evt_ghost", payments.EventPaymentCaptured, ghost); err != nil {
		t.Fatalf("HandleEvent() = %v, unmappable events must be acknowledged", err)
	}
}

func TestWebhookRejectsBadSignature(t *testing.T) {
	f := newWebhookFixture(t)

	payload := []byte(`{"id":"evt_1","type":"payment_captured"}`)
	sig := payments.SignPayload("whsec_wrong", payload, time.Now())

	err := f.ws.HandleEvent(context.Background(), payload, sig)
	if !errors.Is(err, payments.ErrInvalidSignature) {
		t.Fatalf("HandleEvent() = %v, want ErrInvalidSignature", err)
	}
}

func TestWebhookResolvesByPaymentRefWithoutMetadata(t *testing.T) {
	f := newWebhookFixture(t)
	eval := f.mustRequest(t)

	ev := payments.Event{ID: "evt_ref", Type: payments.EventPaymentCaptured}
	ev.Data.Object.ID = *eval.PaymentRef
	payload, _ := json.Marshal(ev)
	sig := payments.SignPayload(testWebhookSecret, payload, time.Now())

	if err := f.ws.HandleEvent(context.Background(), payload, sig); err != nil {
		t.Fatalf("HandleEvent() error = %v", err)
	}
	current, _ := f.ledger.GetByID(context.Background(), eval.ID)
	if current.PaymentStatus != models.PaymentPaid {
		t.Errorf("payment_status = %s, want paid", current.PaymentStatus)
	}
}
