package repositories

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/scoutlink/backend/internal/models"
)

var ErrReferralNotFound = errors.New("referral not found")

type ReferralRepo struct {
	pool *pgxpool.Pool
}

func NewReferralRepo(pool *pgxpool.Pool) *ReferralRepo {
	return &ReferralRepo{pool: pool}
}

func (r *ReferralRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Referral, error) {
	var ref models.Referral
	err := r.pool.QueryRow(ctx, `
		SELECT id, referrer_id, referred_id, payout_amount_cents, payout_status, transfer_reference, created_at, updated_at
		FROM referrals WHERE id = $1
	`, id).Scan(&ref.ID, &ref.ReferrerID, &ref.ReferredID, &ref.PayoutAmountCents,
		&ref.PayoutStatus, &ref.TransferRef, &ref.CreatedAt, &ref.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrReferralNotFound
	}
	if err != nil {
		return nil, err
	}
	return &ref, nil
}

// MarkPaid records the payout transfer. The unpaid guard plus the
// transfer_reference IS NULL guard make a second payout attempt match no row.
func (r *ReferralRepo) MarkPaid(ctx context.Context, id uuid.UUID, amountCents int64, transferRef string) (*models.Referral, error) {
	var ref models.Referral
	err := r.pool.QueryRow(ctx, `
		UPDATE referrals SET
			payout_status = 'paid',
			payout_amount_cents = $2,
			transfer_reference = $3,
			updated_at = now()
		WHERE id = $1 AND payout_status = 'unpaid' AND transfer_reference IS NULL
		RETURNING id, referrer_id, referred_id, payout_amount_cents, payout_status, transfer_reference, created_at, updated_at
	`, id, amountCents, transferRef).Scan(&ref.ID, &ref.ReferrerID, &ref.ReferredID,
		&ref.PayoutAmountCents, &ref.PayoutStatus, &ref.TransferRef, &ref.CreatedAt, &ref.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrStatusConflict
	}
	if err != nil {
		return nil, err
	}
	return &ref, nil
}
