package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/scoutlink/backend/internal/models"
	"github.com/scoutlink/backend/internal/payments"
	"github.com/scoutlink/backend/internal/rbac"
	"go.uber.org/zap"
)

// ReferralLedger is the persistence surface for referral payouts.
type ReferralLedger interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Referral, error)
	MarkPaid(ctx context.Context, id uuid.UUID, amountCents int64, transferRef string) (*models.Referral, error)
}

// Payout tiers an admin can choose from, in cents.
var referralPayoutTiers = map[int64]bool{
	4500:  true,
	6500:  true,
	12500: true,
}

// ReferralService pays out referral bonuses. Payouts ride on the same
// transfer primitive and once-only guard as evaluation payouts.
type ReferralService struct {
	referrals ReferralLedger
	users     UserDirectory
	gateway   PaymentGateway
	audit     AuditSink
	notifier  Notifier
	log       *zap.Logger
}

func NewReferralService(
	referrals ReferralLedger,
	users UserDirectory,
	gateway PaymentGateway,
	audit AuditSink,
	notifier Notifier,
	log *zap.Logger,
) *ReferralService {
	return &ReferralService{
		referrals: referrals,
		users:     users,
		gateway:   gateway,
		audit:     audit,
		notifier:  notifier,
		log:       log,
	}
}

// ProcessPayout transfers a referral bonus to the referrer. Only admins may
// trigger it, and a referral can be paid at most once.
func (s *ReferralService) ProcessPayout(ctx context.Context, referralID, by uuid.UUID, amountCents int64) (*models.Referral, error) {
	admin, err := s.users.GetByID(ctx, by)
	if err != nil {
		return nil, err
	}
	if !rbac.HasPermission(admin.Role, rbac.PermProcessPayouts) {
		return nil, fmt.Errorf("%w: only admins can process referral payouts", ErrForbidden)
	}
	if !referralPayoutTiers[amountCents] {
		return nil, fmt.Errorf("%w: %d cents is not a valid payout tier", ErrValidation, amountCents)
	}

	referral, err := s.referrals.GetByID(ctx, referralID)
	if err != nil {
		return nil, err
	}
	if referral.PayoutStatus == models.ReferralPayoutPaid || referral.TransferRef != nil {
		return nil, fmt.Errorf("%w: referral payout already processed", ErrValidation)
	}

	referrer, err := s.users.GetByID(ctx, referral.ReferrerID)
	if err != nil {
		return nil, err
	}
	if referrer.PayoutAccountID == nil {
		return nil, payments.ErrDestinationNotOnboarded
	}

	transferRef, err := s.gateway.Transfer(ctx, amountCents, *referrer.PayoutAccountID, map[string]string{
		"referral_id": referral.ID.String(),
		"reason":      "referral_bonus",
	})
	if err != nil {
		return nil, fmt.Errorf("referral transfer: %w", err)
	}

	out, err := s.referrals.MarkPaid(ctx, referralID, amountCents, transferRef)
	if err != nil {
		// The money moved but the row did not. Surface loudly so support
		// can reconcile against the transfer reference.
		s.log.Error("referral transfer executed but not recorded",
			zap.String("referral_id", referralID.String()),
			zap.String("transfer_reference", transferRef))
		return nil, err
	}

	_ = s.audit.Log(ctx, models.AuditLog{
		ActorUserID: &by,
		ActorType:   "admin",
		Action:      "referral_payout_sent",
		EntityType:  "referral",
		EntityID:    &out.ID,
		Meta:        map[string]any{"amount_cents": amountCents, "transfer_reference": transferRef},
	})
	s.notifier.Push(ctx, out.ReferrerID, models.NotifPayoutSent,
		"Referral bonus sent",
		fmt.Sprintf("Your referral bonus of $%.2f is on its way.", float64(amountCents)/100),
		nil, map[string]any{"referral_id": out.ID.String()})

	return out, nil
}
