package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/scoutlink/backend/internal/config"
	"github.com/scoutlink/backend/internal/events"
	"github.com/scoutlink/backend/internal/models"
	"github.com/scoutlink/backend/internal/payments"
	"github.com/scoutlink/backend/internal/rbac"
	"github.com/scoutlink/backend/internal/repositories"
	"go.uber.org/zap"
)

// EvaluationLedger is the persistence surface the state machine drives. All
// status moves go through ApplyTransition's conditional write.
type EvaluationLedger interface {
	Create(ctx context.Context, e *models.Evaluation) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Evaluation, error)
	GetByPaymentRef(ctx context.Context, ref string) (*models.Evaluation, error)
	FindActiveByParties(ctx context.Context, payeeID, requesterID uuid.UUID) (*models.Evaluation, error)
	ApplyTransition(ctx context.Context, id uuid.UUID, expectedStatus string, mut repositories.TransitionMutation) (*models.Evaluation, error)
	SetPaymentStatus(ctx context.Context, id uuid.UUID, expected, next string, paymentRef *string) (*models.Evaluation, error)
	List(ctx context.Context, f repositories.EvaluationFilter) ([]models.Evaluation, error)
}

// UserDirectory resolves acting and counterparty users.
type UserDirectory interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

// PaymentGateway is the subset of the processor client the lifecycle needs.
type PaymentGateway interface {
	CreateCheckout(ctx context.Context, p payments.CheckoutParams) (*payments.Checkout, error)
	Refund(ctx context.Context, paymentRef, reason string) (string, error)
	Transfer(ctx context.Context, amountCents int64, destination string, metadata map[string]string) (string, error)
}

// AuditSink records who did what. Logging failures never block transitions.
type AuditSink interface {
	Log(ctx context.Context, entry models.AuditLog) error
}

type EvaluationService struct {
	evals     EvaluationLedger
	users     UserDirectory
	gateway   PaymentGateway
	audit     AuditSink
	notifier  Notifier
	publisher events.Publisher
	cfg       *config.Config
	log       *zap.Logger
}

func NewEvaluationService(
	evals EvaluationLedger,
	users UserDirectory,
	gateway PaymentGateway,
	audit AuditSink,
	notifier Notifier,
	publisher events.Publisher,
	cfg *config.Config,
	log *zap.Logger,
) *EvaluationService {
	return &EvaluationService{
		evals:     evals,
		users:     users,
		gateway:   gateway,
		audit:     audit,
		notifier:  notifier,
		publisher: publisher,
		cfg:       cfg,
		log:       log,
	}
}

// CreateRequest opens a paid evaluation request from a player or parent to a
// scout and returns the evaluation together with the checkout URL the
// requester must complete. The scout's listed price is authoritative: a client
// price that disagrees with it is rejected rather than silently corrected.
func (s *EvaluationService) CreateRequest(ctx context.Context, requesterID, payeeID uuid.UUID, clientPriceCents int64) (*models.Evaluation, string, error) {
	if requesterID == payeeID {
		return nil, "", fmt.Errorf("%w: cannot request an evaluation from yourself", ErrValidation)
	}

	requester, err := s.users.GetByID(ctx, requesterID)
	if err != nil {
		return nil, "", err
	}
	if !rbac.HasPermission(requester.Role, rbac.PermRequestEvaluation) {
		return nil, "", fmt.Errorf("%w: role %s cannot request evaluations", ErrForbidden, requester.Role)
	}

	payee, err := s.users.GetByID(ctx, payeeID)
	if err != nil {
		return nil, "", err
	}
	if payee.Role != models.RoleScout {
		return nil, "", fmt.Errorf("%w: evaluations can only be requested from scouts", ErrValidation)
	}

	priceCents, err := s.resolvePrice(payee, clientPriceCents)
	if err != nil {
		return nil, "", err
	}

	if existing, err := s.evals.FindActiveByParties(ctx, payeeID, requesterID); err == nil {
		return nil, "", fmt.Errorf("%w: an evaluation with this scout is already open (%s)", ErrValidation, existing.Status)
	} else if !errors.Is(err, repositories.ErrNotFound) {
		return nil, "", err
	}

	// The id is generated up front so checkout metadata can carry it: webhook
	// events then map back to the row without a second lookup key.
	id := uuid.New()
	checkout, err := s.gateway.CreateCheckout(ctx, payments.CheckoutParams{
		AmountCents: priceCents,
		SuccessURL:  s.cfg.AppBaseURL + "/evaluations/" + id.String() + "?payment=success",
		CancelURL:   s.cfg.AppBaseURL + "/evaluations/" + id.String() + "?payment=cancelled",
		Metadata: map[string]string{
			"evaluation_id": id.String(),
			"requester_id":  requesterID.String(),
			"payee_id":      payeeID.String(),
		},
	})
	if err != nil {
		return nil, "", fmt.Errorf("create checkout: %w", err)
	}

	eval := &models.Evaluation{
		ID:            id,
		RequesterID:   requesterID,
		PayeeID:       payeeID,
		Status:        models.EvalStatusRequested,
		PriceCents:    priceCents,
		PaymentStatus: models.PaymentPending,
		PaymentRef:    &checkout.Reference,
	}
	if err := s.evals.Create(ctx, eval); err != nil {
		return nil, "", err
	}

	s.recordAudit(ctx, &requesterID, "user", "evaluation_requested", eval.ID,
		map[string]any{"payee_id": payeeID.String(), "price_cents": priceCents})
	s.notifier.Push(ctx, payeeID, models.NotifEvaluationRequested,
		"New evaluation request",
		fmt.Sprintf("%s requested an evaluation.", requester.DisplayName()),
		evalLink(eval.ID), map[string]any{"evaluation_id": eval.ID.String()})

	return eval, checkout.URL, nil
}

// CreateGifted opens a free evaluation a scout offers to a player. It starts
// in progress with no payment leg. If an active evaluation already exists
// between the pair, that one is returned instead of creating a duplicate.
func (s *EvaluationService) CreateGifted(ctx context.Context, payeeID, playerID uuid.UUID) (*models.Evaluation, error) {
	if payeeID == playerID {
		return nil, fmt.Errorf("%w: cannot gift an evaluation to yourself", ErrValidation)
	}

	payee, err := s.users.GetByID(ctx, payeeID)
	if err != nil {
		return nil, err
	}
	if !rbac.HasPermission(payee.Role, rbac.PermGiftEvaluation) {
		return nil, fmt.Errorf("%w: only scouts can gift evaluations", ErrForbidden)
	}

	player, err := s.users.GetByID(ctx, playerID)
	if err != nil {
		return nil, err
	}
	if player.Role != models.RolePlayer {
		return nil, fmt.Errorf("%w: gifted evaluations can only target players", ErrValidation)
	}

	if existing, err := s.evals.FindActiveByParties(ctx, payeeID, playerID); err == nil {
		return existing, nil
	} else if !errors.Is(err, repositories.ErrNotFound) {
		return nil, err
	}

	eval := &models.Evaluation{
		ID:            uuid.New(),
		RequesterID:   playerID,
		PayeeID:       payeeID,
		Status:        models.EvalStatusInProgress,
		PriceCents:    0,
		PaymentStatus: models.PaymentNotRequired,
	}
	if err := s.evals.Create(ctx, eval); err != nil {
		return nil, err
	}

	s.recordAudit(ctx, &payeeID, "user", "evaluation_gifted", eval.ID,
		map[string]any{"player_id": playerID.String()})
	s.notifier.Push(ctx, playerID, models.NotifEvaluationRequested,
		"Evaluation gifted",
		fmt.Sprintf("%s is preparing a free evaluation for you.", payee.DisplayName()),
		evalLink(eval.ID), map[string]any{"evaluation_id": eval.ID.String()})

	return eval, nil
}

// ConfirmPayment records a captured charge: pending -> paid. Called by the
// webhook reconciler, never by users.
func (s *EvaluationService) ConfirmPayment(ctx context.Context, id uuid.UUID, paymentRef string) (*models.Evaluation, error) {
	eval, err := s.evals.SetPaymentStatus(ctx, id, models.PaymentPending, models.PaymentPaid, &paymentRef)
	if err != nil {
		return nil, err
	}

	s.recordAudit(ctx, nil, "system", "payment_captured", eval.ID,
		map[string]any{"payment_reference": paymentRef, "price_cents": eval.PriceCents})
	s.notifier.Push(ctx, eval.PayeeID, models.NotifPaymentReceived,
		"Evaluation request paid",
		"A pending evaluation request has been paid and is ready for review.",
		evalLink(eval.ID), map[string]any{"evaluation_id": eval.ID.String()})
	s.notifier.Push(ctx, eval.RequesterID, models.NotifPaymentReceived,
		"Payment received",
		"Your evaluation payment went through.",
		evalLink(eval.ID), map[string]any{"evaluation_id": eval.ID.String()})

	return eval, nil
}

// RefundLateCapture returns a charge that settled after its evaluation was
// already cancelled or denied. The refund goes out before the row is updated,
// the same ordering Cancel and Deny use, so a crash in between leaves the
// requester refunded rather than charged for a closed request.
func (s *EvaluationService) RefundLateCapture(ctx context.Context, eval *models.Evaluation, paymentRef string) (*models.Evaluation, error) {
	if paymentRef == "" && eval.PaymentRef != nil {
		paymentRef = *eval.PaymentRef
	}
	if _, err := s.gateway.Refund(ctx, paymentRef, "requested_by_customer"); err != nil && !errors.Is(err, payments.ErrAlreadyRefunded) {
		return nil, fmt.Errorf("refund: %w", err)
	}

	out, err := s.evals.SetPaymentStatus(ctx, eval.ID, models.PaymentPending, models.PaymentRefunded, &paymentRef)
	if err != nil {
		return nil, err
	}

	s.recordAudit(ctx, nil, "system", "late_capture_refunded", out.ID,
		map[string]any{"payment_reference": paymentRef})
	s.notifier.Push(ctx, out.RequesterID, models.NotifPaymentRefunded,
		"Payment refunded",
		"Your payment arrived after the request was closed and has been refunded.",
		evalLink(out.ID), map[string]any{"evaluation_id": out.ID.String()})
	return out, nil
}

// Cancel withdraws a request. Only the requester may cancel, and only while
// the evaluation is still requested. Captured money is refunded before the
// cancellation is persisted, so a crash in between leaves the requester
// refunded rather than charged for nothing. Cancelling an already cancelled
// evaluation is a no-op success.
func (s *EvaluationService) Cancel(ctx context.Context, id, by uuid.UUID, reason *string) (*models.Evaluation, error) {
	return s.withConflictRetry(ctx, id, func(eval *models.Evaluation) (*models.Evaluation, error) {
		if eval.Status == models.EvalStatusCancelled {
			return eval, nil
		}
		if eval.RequesterID != by {
			return nil, fmt.Errorf("%w: only the requester can cancel", ErrForbidden)
		}
		if eval.Status != models.EvalStatusRequested {
			return nil, fmt.Errorf("%w: evaluation is already %s", repositories.ErrStatusConflict, eval.Status)
		}

		mut := repositories.TransitionMutation{
			NewStatus:       models.EvalStatusCancelled,
			CancelledReason: reason,
		}
		if eval.Paid() {
			if err := s.refund(ctx, eval, "requested_by_customer"); err != nil {
				return nil, err
			}
			refunded := models.PaymentRefunded
			mut.PaymentStatus = &refunded
		}

		out, err := s.evals.ApplyTransition(ctx, id, models.EvalStatusRequested, mut)
		if err != nil {
			if eval.Paid() && errors.Is(err, repositories.ErrStatusConflict) {
				s.log.Warn("refund issued but cancellation lost the status race",
					zap.String("evaluation_id", id.String()))
			}
			return nil, err
		}

		s.recordAudit(ctx, &by, "user", "evaluation_cancelled", out.ID,
			map[string]any{"refunded": eval.Paid()})
		s.publishStatusChange(ctx, out, models.EvalStatusRequested)
		s.notifier.Push(ctx, out.PayeeID, models.NotifEvaluationCancelled,
			"Evaluation request cancelled",
			"The requester withdrew their evaluation request.",
			evalLink(out.ID), map[string]any{"evaluation_id": out.ID.String()})
		if eval.Paid() {
			s.notifier.Push(ctx, out.RequesterID, models.NotifPaymentRefunded,
				"Payment refunded",
				"Your evaluation payment is on its way back.",
				evalLink(out.ID), map[string]any{"evaluation_id": out.ID.String()})
		}
		return out, nil
	})
}

// Deny rejects a request. Only the payee may deny, and only while the
// evaluation is still requested. Like Cancel, any captured money is refunded
// before the denial is persisted.
func (s *EvaluationService) Deny(ctx context.Context, id, by uuid.UUID, reason *string) (*models.Evaluation, error) {
	return s.withConflictRetry(ctx, id, func(eval *models.Evaluation) (*models.Evaluation, error) {
		if eval.Status == models.EvalStatusDenied {
			return eval, nil
		}
		if eval.PayeeID != by {
			return nil, fmt.Errorf("%w: only the payee can deny", ErrForbidden)
		}
		if eval.Status != models.EvalStatusRequested {
			return nil, fmt.Errorf("%w: evaluation is already %s", repositories.ErrStatusConflict, eval.Status)
		}

		mut := repositories.TransitionMutation{
			NewStatus:    models.EvalStatusDenied,
			DeniedReason: reason,
		}
		if eval.Paid() {
			if err := s.refund(ctx, eval, "requested_by_customer"); err != nil {
				return nil, err
			}
			refunded := models.PaymentRefunded
			mut.PaymentStatus = &refunded
		}

		out, err := s.evals.ApplyTransition(ctx, id, models.EvalStatusRequested, mut)
		if err != nil {
			if eval.Paid() && errors.Is(err, repositories.ErrStatusConflict) {
				s.log.Warn("refund issued but denial lost the status race",
					zap.String("evaluation_id", id.String()))
			}
			return nil, err
		}

		s.recordAudit(ctx, &by, "user", "evaluation_denied", out.ID,
			map[string]any{"refunded": eval.Paid()})
		s.publishStatusChange(ctx, out, models.EvalStatusRequested)
		s.notifier.Push(ctx, out.RequesterID, models.NotifEvaluationDenied,
			"Evaluation request denied",
			"The scout declined your evaluation request. Any payment has been refunded.",
			evalLink(out.ID), map[string]any{"evaluation_id": out.ID.String()})
		return out, nil
	})
}

// Accept confirms a request: the payee commits to doing the work. A paid
// request can only be accepted after the charge has been captured; accepting
// an already confirmed evaluation is a no-op success.
func (s *EvaluationService) Accept(ctx context.Context, id, by uuid.UUID) (*models.Evaluation, error) {
	return s.withConflictRetry(ctx, id, func(eval *models.Evaluation) (*models.Evaluation, error) {
		if eval.Status == models.EvalStatusConfirmed {
			return eval, nil
		}
		if eval.PayeeID != by {
			return nil, fmt.Errorf("%w: only the payee can accept", ErrForbidden)
		}
		if eval.Status != models.EvalStatusRequested {
			return nil, fmt.Errorf("%w: evaluation is already %s", repositories.ErrStatusConflict, eval.Status)
		}
		if eval.PriceCents > 0 && eval.PaymentStatus != models.PaymentPaid {
			return nil, fmt.Errorf("%w: payment has not completed yet", ErrValidation)
		}

		out, err := s.evals.ApplyTransition(ctx, id, models.EvalStatusRequested, repositories.TransitionMutation{
			NewStatus: models.EvalStatusConfirmed,
		})
		if err != nil {
			return nil, err
		}

		s.recordAudit(ctx, &by, "user", "evaluation_accepted", out.ID, nil)
		s.publishStatusChange(ctx, out, models.EvalStatusRequested)
		s.notifier.Push(ctx, out.RequesterID, models.NotifEvaluationConfirmed,
			"Evaluation accepted",
			"Your evaluation request was accepted. The scout will begin shortly.",
			evalLink(out.ID), map[string]any{"evaluation_id": out.ID.String()})
		return out, nil
	})
}

// Complete finishes the work and, for paid evaluations, pays the payee out.
// The transfer happens before the row is persisted; the transfer-once guard
// in the ledger makes sure a lost race cannot record a second payout.
// Completing an already completed evaluation is a no-op success.
func (s *EvaluationService) Complete(ctx context.Context, id, by uuid.UUID) (*models.Evaluation, error) {
	return s.withConflictRetry(ctx, id, func(eval *models.Evaluation) (*models.Evaluation, error) {
		if eval.Status == models.EvalStatusCompleted {
			return eval, nil
		}
		if eval.PayeeID != by {
			return nil, fmt.Errorf("%w: only the payee can complete", ErrForbidden)
		}
		if eval.Status != models.EvalStatusConfirmed && eval.Status != models.EvalStatusInProgress {
			return nil, fmt.Errorf("%w: evaluation is %s", repositories.ErrStatusConflict, eval.Status)
		}

		mut := repositories.TransitionMutation{NewStatus: models.EvalStatusCompleted}
		paidOut := false

		if eval.PriceCents > 0 {
			if eval.PaymentStatus != models.PaymentPaid {
				return nil, fmt.Errorf("%w: evaluation is not paid", ErrValidation)
			}

			payee, err := s.users.GetByID(ctx, eval.PayeeID)
			if err != nil {
				return nil, err
			}
			if payee.PayoutAccountID == nil {
				return nil, payments.ErrDestinationNotOnboarded
			}

			fee, payout := SplitFee(eval.PriceCents)
			transferRef := eval.TransferRef
			if transferRef == nil {
				ref, err := s.gateway.Transfer(ctx, payout, *payee.PayoutAccountID, map[string]string{
					"evaluation_id":      eval.ID.String(),
					"platform_fee_cents": fmt.Sprintf("%d", fee),
				})
				if err != nil {
					return nil, fmt.Errorf("payout transfer: %w", err)
				}
				transferRef = &ref
			}

			mut.PlatformFeeCents = &fee
			mut.PayeePayoutCents = &payout
			mut.TransferRef = transferRef
			mut.RequireNoTransfer = eval.TransferRef == nil
			paidOut = true
		}

		out, err := s.evals.ApplyTransition(ctx, id, eval.Status, mut)
		if err != nil {
			if paidOut && errors.Is(err, repositories.ErrStatusConflict) {
				s.log.Error("payout transfer executed but completion lost the status race",
					zap.String("evaluation_id", id.String()),
					zap.Stringp("transfer_reference", mut.TransferRef))
			}
			return nil, err
		}

		s.recordAudit(ctx, &by, "user", "evaluation_completed", out.ID, map[string]any{
			"platform_fee_cents": out.PlatformFeeCents,
			"payee_payout_cents": out.PayeePayoutCents,
		})
		s.publishStatusChange(ctx, out, eval.Status)
		s.notifier.Push(ctx, out.RequesterID, models.NotifEvaluationCompleted,
			"Evaluation completed",
			"Your evaluation is ready.",
			evalLink(out.ID), map[string]any{"evaluation_id": out.ID.String()})
		if paidOut {
			s.notifier.Push(ctx, out.PayeeID, models.NotifPayoutSent,
				"Payout on its way",
				fmt.Sprintf("Your payout of $%.2f has been sent.", float64(out.PayeePayoutCents)/100),
				evalLink(out.ID), map[string]any{"evaluation_id": out.ID.String()})
		}
		return out, nil
	})
}

// Get returns the evaluation when the caller is a party to it or an admin.
func (s *EvaluationService) Get(ctx context.Context, id, by uuid.UUID) (*models.Evaluation, error) {
	eval, err := s.evals.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if eval.RequesterID == by || eval.PayeeID == by {
		return eval, nil
	}
	caller, err := s.users.GetByID(ctx, by)
	if err != nil {
		return nil, err
	}
	if caller.Role == models.RoleAdmin {
		return eval, nil
	}
	return nil, fmt.Errorf("%w: not a party to this evaluation", ErrForbidden)
}

func (s *EvaluationService) List(ctx context.Context, f repositories.EvaluationFilter) ([]models.Evaluation, error) {
	return s.evals.List(ctx, f)
}

func (s *EvaluationService) GetEvents(ctx context.Context, id uuid.UUID) ([]models.AuditLog, error) {
	type entityLog interface {
		GetByEntity(ctx context.Context, entityType string, entityID uuid.UUID, limit, offset int) ([]models.AuditLog, error)
	}
	if repo, ok := s.audit.(entityLog); ok {
		return repo.GetByEntity(ctx, "evaluation", id, 100, 0)
	}
	return nil, nil
}

// --- helpers ---

// withConflictRetry runs fn against a fresh read of the evaluation and, when
// the conditional write loses a race, retries exactly once against the new
// state. A second conflict surfaces to the caller.
func (s *EvaluationService) withConflictRetry(ctx context.Context, id uuid.UUID, fn func(*models.Evaluation) (*models.Evaluation, error)) (*models.Evaluation, error) {
	var lastErr error
	for attempt := 0; attempt < 2; attempt++ {
		eval, err := s.evals.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}
		out, err := fn(eval)
		if errors.Is(err, repositories.ErrStatusConflict) {
			lastErr = err
			continue
		}
		return out, err
	}
	return nil, lastErr
}

func (s *EvaluationService) resolvePrice(payee *models.User, clientPriceCents int64) (int64, error) {
	priceCents := clientPriceCents
	if payee.PricePerEvalCents != nil {
		listed := *payee.PricePerEvalCents
		if clientPriceCents != 0 && clientPriceCents != listed {
			return 0, fmt.Errorf("%w: price does not match the scout's listed price", ErrValidation)
		}
		priceCents = listed
	}
	if priceCents <= 0 {
		return 0, fmt.Errorf("%w: price must be positive", ErrValidation)
	}
	if priceCents > s.cfg.MaxPriceCents {
		return 0, fmt.Errorf("%w: price exceeds the maximum of %d cents", ErrValidation, s.cfg.MaxPriceCents)
	}
	return priceCents, nil
}

// refund returns captured money. The processor reporting the charge as
// already refunded counts as success: the money is where we want it.
func (s *EvaluationService) refund(ctx context.Context, eval *models.Evaluation, reason string) error {
	_, err := s.gateway.Refund(ctx, *eval.PaymentRef, reason)
	if errors.Is(err, payments.ErrAlreadyRefunded) {
		s.log.Info("charge already refunded",
			zap.String("evaluation_id", eval.ID.String()))
		return nil
	}
	if err != nil {
		return fmt.Errorf("refund: %w", err)
	}
	return nil
}

func (s *EvaluationService) recordAudit(ctx context.Context, actorID *uuid.UUID, actorType, action string, entityID uuid.UUID, meta map[string]any) {
	entry := models.AuditLog{
		ActorUserID: actorID,
		ActorType:   actorType,
		Action:      action,
		EntityType:  "evaluation",
		EntityID:    &entityID,
	}
	if meta != nil {
		entry.Meta = meta
	}
	_ = s.audit.Log(ctx, entry)
}

func (s *EvaluationService) publishStatusChange(ctx context.Context, eval *models.Evaluation, oldStatus string) {
	if s.publisher == nil {
		return
	}
	_ = s.publisher.Publish(ctx, events.StreamEvaluations, events.Event{
		Type: events.EventEvaluationStatusChanged,
		Payload: map[string]any{
			"evaluation_id": eval.ID.String(),
			"old_status":    oldStatus,
			"new_status":    eval.Status,
		},
	})
}

func evalLink(id uuid.UUID) *string {
	link := "/evaluations/" + id.String()
	return &link
}
