package repositories

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/scoutlink/backend/internal/models"
)

// ErrStatusConflict is returned when a conditional transition matched no row:
// the evaluation moved to another status (or its transfer guard tripped)
// between the caller's read and this write.
var ErrStatusConflict = errors.New("evaluation status changed, reload and retry")

// ErrNotFound is returned when the evaluation does not exist.
var ErrNotFound = errors.New("evaluation not found")

const evalColumns = `
	id, requester_id, payee_id, status, price_cents, payment_status,
	payment_reference, platform_fee_cents, payee_payout_cents, transfer_reference,
	cancelled_reason, denied_reason,
	confirmed_at, denied_at, cancelled_at, completed_at, created_at, updated_at`

type EvaluationRepo struct {
	pool *pgxpool.Pool
}

func NewEvaluationRepo(pool *pgxpool.Pool) *EvaluationRepo {
	return &EvaluationRepo{pool: pool}
}

func scanEvaluation(row pgx.Row) (*models.Evaluation, error) {
	var e models.Evaluation
	err := row.Scan(&e.ID, &e.RequesterID, &e.PayeeID, &e.Status, &e.PriceCents, &e.PaymentStatus,
		&e.PaymentRef, &e.PlatformFeeCents, &e.PayeePayoutCents, &e.TransferRef,
		&e.CancelledReason, &e.DeniedReason,
		&e.ConfirmedAt, &e.DeniedAt, &e.CancelledAt, &e.CompletedAt, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// Create inserts a new evaluation. The caller supplies the id so it can be
// embedded in payment metadata before any row exists.
func (r *EvaluationRepo) Create(ctx context.Context, e *models.Evaluation) error {
	return r.pool.QueryRow(ctx, `
		INSERT INTO evaluations (id, requester_id, payee_id, status, price_cents, payment_status, payment_reference)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at, updated_at
	`, e.ID, e.RequesterID, e.PayeeID, e.Status, e.PriceCents, e.PaymentStatus, e.PaymentRef,
	).Scan(&e.CreatedAt, &e.UpdatedAt)
}

func (r *EvaluationRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Evaluation, error) {
	e, err := scanEvaluation(r.pool.QueryRow(ctx, `SELECT`+evalColumns+` FROM evaluations WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return e, err
}

// GetByPaymentRef resolves a processor charge reference back to its evaluation.
func (r *EvaluationRepo) GetByPaymentRef(ctx context.Context, ref string) (*models.Evaluation, error) {
	e, err := scanEvaluation(r.pool.QueryRow(ctx, `SELECT`+evalColumns+` FROM evaluations WHERE payment_reference = $1`, ref))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return e, err
}

// FindActiveByParties returns an evaluation between the pair that is still in
// an active status, if any. Used to block duplicate requests.
func (r *EvaluationRepo) FindActiveByParties(ctx context.Context, payeeID, requesterID uuid.UUID) (*models.Evaluation, error) {
	e, err := scanEvaluation(r.pool.QueryRow(ctx, `
		SELECT`+evalColumns+`
		FROM evaluations
		WHERE payee_id = $1 AND requester_id = $2
		  AND status IN ('requested', 'confirmed', 'in_progress')
		LIMIT 1
	`, payeeID, requesterID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return e, err
}

// TransitionMutation describes the row changes applied together with a status
// move. Nil pointer fields leave the current column value untouched.
type TransitionMutation struct {
	NewStatus        string
	PaymentStatus    *string
	PlatformFeeCents *int64
	PayeePayoutCents *int64
	TransferRef      *string
	CancelledReason  *string
	DeniedReason     *string

	// RequireNoTransfer adds "transfer_reference IS NULL" to the guard so a
	// payout can never be recorded twice.
	RequireNoTransfer bool
}

// ApplyTransition performs the compare-and-swap status move: the UPDATE only
// matches while the row still holds expectedStatus, so of two racing callers
// exactly one wins and the loser gets ErrStatusConflict. This conditional
// write is the sole concurrency-control primitive for evaluations.
func (r *EvaluationRepo) ApplyTransition(ctx context.Context, id uuid.UUID, expectedStatus string, mut TransitionMutation) (*models.Evaluation, error) {
	e, err := scanEvaluation(r.pool.QueryRow(ctx, `
		UPDATE evaluations SET
			status = $3,
			payment_status = COALESCE($4, payment_status),
			platform_fee_cents = COALESCE($5, platform_fee_cents),
			payee_payout_cents = COALESCE($6, payee_payout_cents),
			transfer_reference = COALESCE($7, transfer_reference),
			cancelled_reason = COALESCE($8, cancelled_reason),
			denied_reason = COALESCE($9, denied_reason),
			confirmed_at = CASE WHEN $3 = 'confirmed' THEN now() ELSE confirmed_at END,
			denied_at    = CASE WHEN $3 = 'denied'    THEN now() ELSE denied_at END,
			cancelled_at = CASE WHEN $3 = 'cancelled' THEN now() ELSE cancelled_at END,
			completed_at = CASE WHEN $3 = 'completed' THEN now() ELSE completed_at END,
			updated_at = now()
		WHERE id = $1 AND status = $2
		  AND (NOT $10 OR transfer_reference IS NULL)
		RETURNING`+evalColumns,
		id, expectedStatus, mut.NewStatus,
		mut.PaymentStatus, mut.PlatformFeeCents, mut.PayeePayoutCents, mut.TransferRef,
		mut.CancelledReason, mut.DeniedReason, mut.RequireNoTransfer))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrStatusConflict
	}
	if err != nil {
		return nil, fmt.Errorf("apply transition: %w", err)
	}
	return e, nil
}

// SetPaymentStatus is the payment-side compare-and-swap used by the webhook
// reconciler. Moving to refunded always zeroes the fee fields so a refunded
// evaluation can never carry a stale split.
func (r *EvaluationRepo) SetPaymentStatus(ctx context.Context, id uuid.UUID, expected, next string, paymentRef *string) (*models.Evaluation, error) {
	e, err := scanEvaluation(r.pool.QueryRow(ctx, `
		UPDATE evaluations SET
			payment_status = $3,
			payment_reference = COALESCE($4, payment_reference),
			platform_fee_cents = CASE WHEN $3 = 'refunded' THEN 0 ELSE platform_fee_cents END,
			payee_payout_cents = CASE WHEN $3 = 'refunded' THEN 0 ELSE payee_payout_cents END,
			updated_at = now()
		WHERE id = $1 AND payment_status = $2
		RETURNING`+evalColumns,
		id, expected, next, paymentRef))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrStatusConflict
	}
	if err != nil {
		return nil, fmt.Errorf("set payment status: %w", err)
	}
	return e, nil
}

type EvaluationFilter struct {
	RequesterID *uuid.UUID
	PayeeID     *uuid.UUID
	Status      *string
	Limit       int
	Offset      int
}

func (r *EvaluationRepo) List(ctx context.Context, f EvaluationFilter) ([]models.Evaluation, error) {
	query := `SELECT` + evalColumns + ` FROM evaluations`
	args := []any{}
	argIdx := 1
	where := []string{}

	if f.RequesterID != nil {
		where = append(where, fmt.Sprintf("requester_id = $%d", argIdx))
		args = append(args, *f.RequesterID)
		argIdx++
	}
	if f.PayeeID != nil {
		where = append(where, fmt.Sprintf("payee_id = $%d", argIdx))
		args = append(args, *f.PayeeID)
		argIdx++
	}
	if f.Status != nil {
		where = append(where, fmt.Sprintf("status = $%d", argIdx))
		args = append(args, *f.Status)
		argIdx++
	}

	if len(where) > 0 {
		query += " WHERE "
		for i, w := range where {
			if i > 0 {
				query += " AND "
			}
			query += w
		}
	}

	limit := f.Limit
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	query += fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d OFFSET $%d", argIdx, argIdx+1)
	args = append(args, limit, f.Offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var evals []models.Evaluation
	for rows.Next() {
		e, err := scanEvaluation(rows)
		if err != nil {
			return nil, err
		}
		evals = append(evals, *e)
	}
	return evals, rows.Err()
}
