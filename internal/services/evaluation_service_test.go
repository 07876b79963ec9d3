package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/scoutlink/backend/internal/config"
	"github.com/scoutlink/backend/internal/models"
	"github.com/scoutlink/backend/internal/payments"
	"github.com/scoutlink/backend/internal/repositories"
	"go.uber.org/zap"
)

// --- in-memory fakes ---

type fakeLedger struct {
	mu    sync.Mutex
	evals map[uuid.UUID]*models.Evaluation

	// conflictOnce makes the next conditional write fail as if another
	// writer won the race, without changing state.
	conflictOnce bool
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{evals: map[uuid.UUID]*models.Evaluation{}}
}

func (l *fakeLedger) Create(_ context.Context, e *models.Evaluation) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	e.CreatedAt = time.Now()
	e.UpdatedAt = e.CreatedAt
	cp := *e
	l.evals[e.ID] = &cp
	return nil
}

func (l *fakeLedger) GetByID(_ context.Context, id uuid.UUID) (*models.Evaluation, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	e, ok := l.evals[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	cp := *e
	return &cp, nil
}

func (l *fakeLedger) GetByPaymentRef(_ context.Context, ref string) (*models.Evaluation, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, e := range l.evals {
		if e.PaymentRef != nil && *e.PaymentRef == ref {
			cp := *e
			return &cp, nil
		}
	}
	return nil, repositories.ErrNotFound
}

func (l *fakeLedger) FindActiveByParties(_ context.Context, payeeID, requesterID uuid.UUID) (*models.Evaluation, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, e := range l.evals {
		if e.PayeeID == payeeID && e.RequesterID == requesterID && models.IsActiveEvalStatus(e.Status) {
			cp := *e
			return &cp, nil
		}
	}
	return nil, repositories.ErrNotFound
}

func (l *fakeLedger) ApplyTransition(_ context.Context, id uuid.UUID, expectedStatus string, mut repositories.TransitionMutation) (*models.Evaluation, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.conflictOnce {
		l.conflictOnce = false
		return nil, repositories.ErrStatusConflict
	}
	e, ok := l.evals[id]
	if !ok || e.Status != expectedStatus {
		return nil, repositories.ErrStatusConflict
	}
	if mut.RequireNoTransfer && e.TransferRef != nil {
		return nil, repositories.ErrStatusConflict
	}
	e.Status = mut.NewStatus
	if mut.PaymentStatus != nil {
		e.PaymentStatus = *mut.PaymentStatus
	}
	if mut.PlatformFeeCents != nil {
		e.PlatformFeeCents = *mut.PlatformFeeCents
	}
	if mut.PayeePayoutCents != nil {
		e.PayeePayoutCents = *mut.PayeePayoutCents
	}
	if mut.TransferRef != nil {
		e.TransferRef = mut.TransferRef
	}
	if mut.CancelledReason != nil {
		e.CancelledReason = mut.CancelledReason
	}
	if mut.DeniedReason != nil {
		e.DeniedReason = mut.DeniedReason
	}
	e.UpdatedAt = time.Now()
	cp := *e
	return &cp, nil
}

func (l *fakeLedger) SetPaymentStatus(_ context.Context, id uuid.UUID, expected, next string, paymentRef *string) (*models.Evaluation, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	e, ok := l.evals[id]
	if !ok || e.PaymentStatus != expected {
		return nil, repositories.ErrStatusConflict
	}
	e.PaymentStatus = next
	if paymentRef != nil {
		e.PaymentRef = paymentRef
	}
	if next == models.PaymentRefunded {
		e.PlatformFeeCents = 0
		e.PayeePayoutCents = 0
	}
	e.UpdatedAt = time.Now()
	cp := *e
	return &cp, nil
}

func (l *fakeLedger) List(_ context.Context, f repositories.EvaluationFilter) ([]models.Evaluation, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []models.Evaluation
	for _, e := range l.evals {
		if f.RequesterID != nil && e.RequesterID != *f.RequesterID {
			continue
		}
		if f.PayeeID != nil && e.PayeeID != *f.PayeeID {
			continue
		}
		if f.Status != nil && e.Status != *f.Status {
			continue
		}
		out = append(out, *e)
	}
	return out, nil
}

type fakeUsers struct {
	mu    sync.Mutex
	users map[uuid.UUID]*models.User
}

func (u *fakeUsers) GetByID(_ context.Context, id uuid.UUID) (*models.User, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	usr, ok := u.users[id]
	if !ok {
		return nil, repositories.ErrUserNotFound
	}
	cp := *usr
	return &cp, nil
}

type fakeGateway struct {
	mu          sync.Mutex
	checkouts   int
	refunds     int
	transfers   int
	refundErr   error
	transferErr error
}

func (g *fakeGateway) CreateCheckout(_ context.Context, p payments.CheckoutParams) (*payments.Checkout, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.checkouts++
	ref := fmt.Sprintf("cs_%d", g.checkouts)
	return &payments.Checkout{Reference: ref, URL: "https://pay.test/" + ref}, nil
}

func (g *fakeGateway) Refund(_ context.Context, paymentRef, reason string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.refundErr != nil {
		return "", g.refundErr
	}
	g.refunds++
	return fmt.Sprintf("re_%d", g.refunds), nil
}

func (g *fakeGateway) Transfer(_ context.Context, amountCents int64, destination string, metadata map[string]string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.transferErr != nil {
		return "", g.transferErr
	}
	g.transfers++
	return fmt.Sprintf("tr_%d", g.transfers), nil
}

type fakeAudit struct {
	mu      sync.Mutex
	entries []models.AuditLog
}

func (a *fakeAudit) Log(_ context.Context, entry models.AuditLog) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.entries = append(a.entries, entry)
	return nil
}

type pushRecord struct {
	userID uuid.UUID
	typ    string
}

type fakeNotifier struct {
	mu     sync.Mutex
	pushes []pushRecord
}

func (n *fakeNotifier) Push(_ context.Context, userID uuid.UUID, notifType, title, message string, link *string, meta map[string]any) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.pushes = append(n.pushes, pushRecord{userID: userID, typ: notifType})
}

func (n *fakeNotifier) countFor(userID uuid.UUID, typ string) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	c := 0
	for _, p := range n.pushes {
		if p.userID == userID && p.typ == typ {
			c++
		}
	}
	return c
}

// --- fixture ---

type evalFixture struct {
	ledger   *fakeLedger
	gateway  *fakeGateway
	audit    *fakeAudit
	notifier *fakeNotifier
	svc      *EvaluationService

	requesterID uuid.UUID
	payeeID     uuid.UUID
}

func newEvalFixture(t *testing.T) *evalFixture {
	t.Helper()

	price := int64(10000)
	acct := "acct_test"
	requester := &models.User{ID: uuid.New(), Email: "player@test", Role: models.RolePlayer}
	payee := &models.User{ID: uuid.New(), Email: "scout@test", Role: models.RoleScout,
		PricePerEvalCents: &price, PayoutAccountID: &acct}

	f := &evalFixture{
		ledger:      newFakeLedger(),
		gateway:     &fakeGateway{},
		audit:       &fakeAudit{},
		notifier:    &fakeNotifier{},
		requesterID: requester.ID,
		payeeID:     payee.ID,
	}
	users := &fakeUsers{users: map[uuid.UUID]*models.User{
		requester.ID: requester,
		payee.ID:     payee,
	}}
	cfg := &config.Config{
		MaxPriceCents: 1000000,
		AppBaseURL:    "http://app.test",
	}
	f.svc = NewEvaluationService(f.ledger, users, f.gateway, f.audit, f.notifier, nil, cfg, zap.NewNop())
	return f
}

func (f *evalFixture) mustRequest(t *testing.T) *models.Evaluation {
	t.Helper()
	eval, _, err := f.svc.CreateRequest(context.Background(), f.requesterID, f.payeeID, 0)
	if err != nil {
		t.Fatalf("CreateRequest() error = %v", err)
	}
	return eval
}

func (f *evalFixture) mustPay(t *testing.T, eval *models.Evaluation) *models.Evaluation {
	t.Helper()
	paid, err := f.svc.ConfirmPayment(context.Background(), eval.ID, *eval.PaymentRef)
	if err != nil {
		t.Fatalf("ConfirmPayment() error = %v", err)
	}
	return paid
}

// --- tests ---

func TestCreateRequest(t *testing.T) {
	f := newEvalFixture(t)

	eval, checkoutURL, err := f.svc.CreateRequest(context.Background(), f.requesterID, f.payeeID, 0)
	if err != nil {
		t.Fatalf("CreateRequest() error = %v", err)
	}
	if eval.Status != models.EvalStatusRequested {
		t.Errorf("status = %s, want requested", eval.Status)
	}
	if eval.PaymentStatus != models.PaymentPending {
		t.Errorf("payment_status = %s, want pending", eval.PaymentStatus)
	}
	if eval.PriceCents != 10000 {
		t.Errorf("price_cents = %d, want listed price 10000", eval.PriceCents)
	}
	if eval.PaymentRef == nil {
		t.Error("payment reference not stored")
	}
	if checkoutURL == "" {
		t.Error("checkout URL is empty")
	}
	if f.notifier.countFor(f.payeeID, models.NotifEvaluationRequested) != 1 {
		t.Error("payee was not notified of the new request")
	}
}

func TestCreateRequestRejectsSelf(t *testing.T) {
	f := newEvalFixture(t)
	_, _, err := f.svc.CreateRequest(context.Background(), f.payeeID, f.payeeID, 0)
	if !errors.Is(err, ErrValidation) {
		t.Errorf("CreateRequest(self) = %v, want ErrValidation", err)
	}
}

func TestCreateRequestRejectsPriceMismatch(t *testing.T) {
	f := newEvalFixture(t)
	_, _, err := f.svc.CreateRequest(context.Background(), f.requesterID, f.payeeID, 5000)
	if !errors.Is(err, ErrValidation) {
		t.Errorf("CreateRequest(wrong price) = %v, want ErrValidation", err)
	}
}

func TestCreateRequestRejectsDuplicate(t *testing.T) {
	f := newEvalFixture(t)
	f.mustRequest(t)

	_, _, err := f.svc.CreateRequest(context.Background(), f.requesterID, f.payeeID, 0)
	if !errors.Is(err, ErrValidation) {
		t.Errorf("second CreateRequest() = %v, want ErrValidation", err)
	}
}

func TestCreateRequestRejectsScoutAsRequester(t *testing.T) {
	f := newEvalFixture(t)
	_, _, err := f.svc.CreateRequest(context.Background(), f.payeeID, f.requesterID, 0)
	if !errors.Is(err, ErrForbidden) {
		t.Errorf("CreateRequest(scout as requester) = %v, want ErrForbidden", err)
	}
}

func TestAcceptRequiresCapturedPayment(t *testing.T) {
	f := newEvalFixture(t)
	eval := f.mustRequest(t)

	if _, err := f.svc.Accept(context.Background(), eval.ID, f.payeeID); !errors.Is(err, ErrValidation) {
		t.Fatalf("Accept(unpaid) = %v, want ErrValidation", err)
	}

	f.mustPay(t, eval)
	out, err := f.svc.Accept(context.Background(), eval.ID, f.payeeID)
	if err != nil {
		t.Fatalf("Accept(paid) error = %v", err)
	}
	if out.Status != models.EvalStatusConfirmed {
		t.Errorf("status = %s, want confirmed", out.Status)
	}
}

func TestAcceptIsIdempotent(t *testing.T) {
	f := newEvalFixture(t)
	eval := f.mustRequest(t)
	f.mustPay(t, eval)

	if _, err := f.svc.Accept(context.Background(), eval.ID, f.payeeID); err != nil {
		t.Fatalf("Accept() error = %v", err)
	}
	out, err := f.svc.Accept(context.Background(), eval.ID, f.payeeID)
	if err != nil {
		t.Fatalf("second Accept() error = %v", err)
	}
	if out.Status != models.EvalStatusConfirmed {
		t.Errorf("status = %s, want confirmed", out.Status)
	}
}

func TestCancelRefundsCapturedPayment(t *testing.T) {
	f := newEvalFixture(t)
	eval := f.mustRequest(t)
	f.mustPay(t, eval)

	out, err := f.svc.Cancel(context.Background(), eval.ID, f.requesterID, nil)
	if err != nil {
		t.Fatalf("Cancel() error = %v", err)
	}
	if out.Status != models.EvalStatusCancelled {
		t.Errorf("status = %s, want cancelled", out.Status)
	}
	if out.PaymentStatus != models.PaymentRefunded {
		t.Errorf("payment_status = %s, want refunded", out.PaymentStatus)
	}
	if f.gateway.refunds != 1 {
		t.Errorf("refunds = %d, want 1", f.gateway.refunds)
	}
	if out.PlatformFeeCents != 0 || out.PayeePayoutCents != 0 {
		t.Errorf("split = (%d, %d), cancelled evaluations carry no fees", out.PlatformFeeCents, out.PayeePayoutCents)
	}
}

func TestCancelTwiceIsNoOp(t *testing.T) {
	f := newEvalFixture(t)
	eval := f.mustRequest(t)
	f.mustPay(t, eval)

	if _, err := f.svc.Cancel(context.Background(), eval.ID, f.requesterID, nil); err != nil {
		t.Fatalf("Cancel() error = %v", err)
	}
	out, err := f.svc.Cancel(context.Background(), eval.ID, f.requesterID, nil)
	if err != nil {
		t.Fatalf("second Cancel() error = %v", err)
	}
	if out.Status != models.EvalStatusCancelled {
		t.Errorf("status = %s, want cancelled", out.Status)
	}
	if f.gateway.refunds != 1 {
		t.Errorf("refunds = %d, want exactly 1", f.gateway.refunds)
	}
}

func TestCancelTreatsAlreadyRefundedAsSuccess(t *testing.T) {
	f := newEvalFixture(t)
	eval := f.mustRequest(t)
	f.mustPay(t, eval)
	f.gateway.refundErr = payments.ErrAlreadyRefunded

	out, err := f.svc.Cancel(context.Background(), eval.ID, f.requesterID, nil)
	if err != nil {
		t.Fatalf("Cancel() error = %v", err)
	}
	if out.Status != models.EvalStatusCancelled || out.PaymentStatus != models.PaymentRefunded {
		t.Errorf("got (%s, %s), want (cancelled, refunded)", out.Status, out.PaymentStatus)
	}
}

func TestCancelByNonRequesterForbidden(t *testing.T) {
	f := newEvalFixture(t)
	eval := f.mustRequest(t)

	if _, err := f.svc.Cancel(context.Background(), eval.ID, f.payeeID, nil); !errors.Is(err, ErrForbidden) {
		t.Errorf("Cancel(by payee) = %v, want ErrForbidden", err)
	}
}

func TestCancelAfterAcceptConflicts(t *testing.T) {
	f := newEvalFixture(t)
	eval := f.mustRequest(t)
	f.mustPay(t, eval)
	if _, err := f.svc.Accept(context.Background(), eval.ID, f.payeeID); err != nil {
		t.Fatalf("Accept() error = %v", err)
	}

	_, err := f.svc.Cancel(context.Background(), eval.ID, f.requesterID, nil)
	if !errors.Is(err, repositories.ErrStatusConflict) {
		t.Errorf("Cancel(confirmed) = %v, want ErrStatusConflict", err)
	}
	if f.gateway.refunds != 0 {
		t.Errorf("refunds = %d, confirmed evaluations must not refund", f.gateway.refunds)
	}
}

func TestDenyRefundsAndRecordsReason(t *testing.T) {
	f := newEvalFixture(t)
	eval := f.mustRequest(t)
	f.mustPay(t, eval)

	reason := "not taking new players this season"
	out, err := f.svc.Deny(context.Background(), eval.ID, f.payeeID, &reason)
	if err != nil {
		t.Fatalf("Deny() error = %v", err)
	}
	if out.Status != models.EvalStatusDenied || out.PaymentStatus != models.PaymentRefunded {
		t.Errorf("got (%s, %s), want (denied, refunded)", out.Status, out.PaymentStatus)
	}
	if out.DeniedReason == nil || *out.DeniedReason != reason {
		t.Error("denied reason not recorded")
	}
	if out.PlatformFeeCents != 0 || out.PayeePayoutCents != 0 {
		t.Errorf("split = (%d, %d), denied evaluations carry no fees", out.PlatformFeeCents, out.PayeePayoutCents)
	}
	if f.notifier.countFor(f.requesterID, models.NotifEvaluationDenied) != 1 {
		t.Error("requester was not notified of the denial")
	}
}

func TestCompletePaysOutOnce(t *testing.T) {
	f := newEvalFixture(t)
	eval := f.mustRequest(t)
	f.mustPay(t, eval)
	if _, err := f.svc.Accept(context.Background(), eval.ID, f.payeeID); err != nil {
		t.Fatalf("Accept() error = %v", err)
	}

	out, err := f.svc.Complete(context.Background(), eval.ID, f.payeeID)
	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if out.Status != models.EvalStatusCompleted {
		t.Errorf("status = %s, want completed", out.Status)
	}
	if out.PlatformFeeCents != 1000 || out.PayeePayoutCents != 9000 {
		t.Errorf("split = (%d, %d), want (1000, 9000)", out.PlatformFeeCents, out.PayeePayoutCents)
	}
	if out.TransferRef == nil {
		t.Error("transfer reference not recorded")
	}
	if f.gateway.transfers != 1 {
		t.Errorf("transfers = %d, want 1", f.gateway.transfers)
	}

	// Completing again must not move money a second time.
	again, err := f.svc.Complete(context.Background(), eval.ID, f.payeeID)
	if err != nil {
		t.Fatalf("second Complete() error = %v", err)
	}
	if again.Status != models.EvalStatusCompleted {
		t.Errorf("status = %s, want completed", again.Status)
	}
	if f.gateway.transfers != 1 {
		t.Errorf("transfers = %d after repeat, want still 1", f.gateway.transfers)
	}
}

func TestCompleteRequiresOnboardedPayee(t *testing.T) {
	f := newEvalFixture(t)
	eval := f.mustRequest(t)
	f.mustPay(t, eval)
	if _, err := f.svc.Accept(context.Background(), eval.ID, f.payeeID); err != nil {
		t.Fatalf("Accept() error = %v", err)
	}

	// Payee loses their payout account before completing.
	f.svc.users.(*fakeUsers).users[f.payeeID].PayoutAccountID = nil

	_, err := f.svc.Complete(context.Background(), eval.ID, f.payeeID)
	if !errors.Is(err, payments.ErrDestinationNotOnboarded) {
		t.Fatalf("Complete() = %v, want ErrDestinationNotOnboarded", err)
	}

	current, _ := f.ledger.GetByID(context.Background(), eval.ID)
	if current.Status != models.EvalStatusConfirmed {
		t.Errorf("status = %s, failed payout must not change status", current.Status)
	}
	if f.gateway.transfers != 0 {
		t.Errorf("transfers = %d, want 0", f.gateway.transfers)
	}
}

func TestGiftedEvaluationLifecycle(t *testing.T) {
	f := newEvalFixture(t)

	eval, err := f.svc.CreateGifted(context.Background(), f.payeeID, f.requesterID)
	if err != nil {
		t.Fatalf("CreateGifted() error = %v", err)
	}
	if eval.Status != models.EvalStatusInProgress {
		t.Errorf("status = %s, want in_progress", eval.Status)
	}
	if eval.PaymentStatus != models.PaymentNotRequired {
		t.Errorf("payment_status = %s, want not_required", eval.PaymentStatus)
	}
	if eval.PriceCents != 0 {
		t.Errorf("price_cents = %d, want 0", eval.PriceCents)
	}

	out, err := f.svc.Complete(context.Background(), eval.ID, f.payeeID)
	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if out.Status != models.EvalStatusCompleted {
		t.Errorf("status = %s, want completed", out.Status)
	}
	if f.gateway.checkouts != 0 || f.gateway.transfers != 0 {
		t.Errorf("gateway calls = (%d checkouts, %d transfers), gifted evaluations never touch the processor",
			f.gateway.checkouts, f.gateway.transfers)
	}
	if out.PlatformFeeCents != 0 || out.PayeePayoutCents != 0 {
		t.Errorf("split = (%d, %d), want (0, 0)", out.PlatformFeeCents, out.PayeePayoutCents)
	}
}

func TestGiftedDuplicateReturnsExisting(t *testing.T) {
	f := newEvalFixture(t)

	first, err := f.svc.CreateGifted(context.Background(), f.payeeID, f.requesterID)
	if err != nil {
		t.Fatalf("CreateGifted() error = %v", err)
	}
	second, err := f.svc.CreateGifted(context.Background(), f.payeeID, f.requesterID)
	if err != nil {
		t.Fatalf("second CreateGifted() error = %v", err)
	}
	if first.ID != second.ID {
		t.Errorf("duplicate gift created a new evaluation: %s vs %s", first.ID, second.ID)
	}
}

func TestConflictRetriesOnceAgainstFreshState(t *testing.T) {
	f := newEvalFixture(t)
	eval := f.mustRequest(t)
	f.mustPay(t, eval)

	// First write loses the race; the retry re-reads and succeeds.
	f.ledger.conflictOnce = true
	out, err := f.svc.Accept(context.Background(), eval.ID, f.payeeID)
	if err != nil {
		t.Fatalf("Accept() with one conflict error = %v", err)
	}
	if out.Status != models.EvalStatusConfirmed {
		t.Errorf("status = %s, want confirmed", out.Status)
	}
}

func TestConcurrentAcceptAndCancelOneWinner(t *testing.T) {
	f := newEvalFixture(t)
	eval := f.mustRequest(t)
	f.mustPay(t, eval)

	var wg sync.WaitGroup
	var acceptErr, cancelErr error
	wg.Add(2)
	go func() {
		defer wg.Done()
		_, acceptErr = f.svc.Accept(context.Background(), eval.ID, f.payeeID)
	}()
	go func() {
		defer wg.Done()
		_, cancelErr = f.svc.Cancel(context.Background(), eval.ID, f.requesterID, nil)
	}()
	wg.Wait()

	if (acceptErr == nil) == (cancelErr == nil) {
		t.Fatalf("want exactly one winner, got accept=%v cancel=%v", acceptErr, cancelErr)
	}
	current, _ := f.ledger.GetByID(context.Background(), eval.ID)
	if current.Status != models.EvalStatusConfirmed && current.Status != models.EvalStatusCancelled {
		t.Errorf("status = %s, want confirmed or cancelled", current.Status)
	}
	if current.Status == models.EvalStatusConfirmed && current.PaymentStatus != models.PaymentPaid {
		t.Errorf("confirmed evaluation has payment_status %s, want paid", current.PaymentStatus)
	}
	if current.Status == models.EvalStatusCancelled && current.PaymentStatus != models.PaymentRefunded {
		t.Errorf("cancelled evaluation has payment_status %s, want refunded", current.PaymentStatus)
	}
}

func TestGetRestrictedToParties(t *testing.T) {
	f := newEvalFixture(t)
	eval := f.mustRequest(t)

	if _, err := f.svc.Get(context.Background(), eval.ID, f.requesterID); err != nil {
		t.Errorf("Get(requester) error = %v", err)
	}
	if _, err := f.svc.Get(context.Background(), eval.ID, f.payeeID); err != nil {
		t.Errorf("Get(payee) error = %v", err)
	}

	stranger := &models.User{ID: uuid.New(), Email: "other@test", Role: models.RolePlayer}
	f.svc.users.(*fakeUsers).users[stranger.ID] = stranger
	if _, err := f.svc.Get(context.Background(), eval.ID, stranger.ID); !errors.Is(err, ErrForbidden) {
		t.Errorf("Get(stranger) = %v, want ErrForbidden", err)
	}
}
