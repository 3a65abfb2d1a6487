package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/LavaJover/shvark-ib-service/internal/domain"
	"github.com/LavaJover/shvark-ib-service/internal/infrastructure/memory"
	"github.com/LavaJover/shvark-ib-service/internal/infrastructure/metrics"
	withdrawaldto "github.com/LavaJover/shvark-ib-service/internal/usecase/dto/withdrawal"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
)

// ---------------------------------------------------------------------------
// Fixtures
// ---------------------------------------------------------------------------

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func sequentialReferences() func() string {
	var n atomic.Int64
	return func() string {
		return fmt.Sprintf("IB-W-%010d", n.Add(1))
	}
}

func newTestLedger(store domain.Store) *DefaultLedgerUsecase {
	return NewDefaultLedgerUsecase(store, nil, sequentialReferences(), nil, nil)
}

func seedPartner(t *testing.T, store domain.Store, userID string) *domain.PartnerNode {
	t.Helper()
	p := &domain.PartnerNode{
		ID:           uuid.New().String(),
		OwnerUserID:  userID,
		ReferralCode: strings.ToUpper(uuid.New().String()[:6]),
		Status:       domain.PartnerActive,
		CreatedAt:    time.Now().UTC(),
	}
	if err := store.InsertPartner(context.Background(), p); err != nil {
		t.Fatalf("seed partner: %v", err)
	}
	return p
}

func seedCommission(t *testing.T, store domain.Store, partnerID, amount string) {
	t.Helper()
	_, err := store.AppendCommission(context.Background(), &domain.CommissionEntry{
		ID:           uuid.New().String(),
		PartnerID:    partnerID,
		SourceUserID: "client-" + uuid.New().String(),
		Amount:       dec(amount),
		Volume:       dec(amount).Mul(dec("10")),
	})
	if err != nil {
		t.Fatalf("seed commission: %v", err)
	}
}

// seedWithdrawal stores a request directly, bypassing admission. Approved
// and completed requests are debited so the partner's total stays in step.
func seedWithdrawal(t *testing.T, store domain.Store, partner *domain.PartnerNode, amount string, status domain.WithdrawalStatus) *domain.WithdrawalRequest {
	t.Helper()
	ctx := context.Background()
	w := &domain.WithdrawalRequest{
		ID:               uuid.New().String(),
		PartnerID:        partner.ID,
		RequestingUserID: partner.OwnerUserID,
		Amount:           dec(amount),
		Status:           status,
		Reference:        "IB-W-SEED" + uuid.New().String()[:8],
	}
	if err := store.InsertWithdrawal(ctx, w); err != nil {
		t.Fatalf("seed withdrawal: %v", err)
	}
	if status == domain.WithdrawalApproved || status == domain.WithdrawalCompleted {
		current, err := store.FindPartnerByID(ctx, partner.ID)
		if err != nil {
			t.Fatalf("reload partner: %v", err)
		}
		if err := store.DebitPartner(ctx, partner.ID, w.Amount, current.WithdrawnTotal); err != nil {
			t.Fatalf("seed debit: %v", err)
		}
	}
	return w
}

func mustBalance(t *testing.T, uc *DefaultLedgerUsecase, partnerID string) *domain.Balance {
	t.Helper()
	b, err := uc.ComputeBalance(context.Background(), partnerID)
	if err != nil {
		t.Fatalf("compute balance: %v", err)
	}
	return b
}

func assertDecimal(t *testing.T, name string, got decimal.Decimal, want string) {
	t.Helper()
	if !got.Equal(dec(want)) {
		t.Fatalf("%s: got %s, want %s", name, got.String(), want)
	}
}

// failingDebitStore injects a failure into the debit step of every partner
// transaction, after the status change has been staged.
type failingDebitStore struct {
	domain.Store
}

func (s failingDebitStore) WithinPartnerTx(ctx context.Context, partnerID string, fn func(tx domain.Store) error) error {
	return s.Store.WithinPartnerTx(ctx, partnerID, func(tx domain.Store) error {
		return fn(failingDebitTx{Store: tx})
	})
}

// decideBeforeCommit runs decide after the unit of work has staged its
// writes and before they commit.
type decideBeforeCommit struct {
	domain.Store
	decide func()
}

func (s decideBeforeCommit) WithinPartnerTx(ctx context.Context, partnerID string, fn func(tx domain.Store) error) error {
	return s.Store.WithinPartnerTx(ctx, partnerID, func(tx domain.Store) error {
		if err := fn(tx); err != nil {
			return err
		}
		s.decide()
		return nil
	})
}

type failingDebitTx struct {
	domain.Store
}

func (failingDebitTx) DebitPartner(context.Context, string, decimal.Decimal, decimal.Decimal) error {
	return domain.NewTransientError(errors.New("debit write lost"))
}

// ---------------------------------------------------------------------------
// Tests
// ---------------------------------------------------------------------------

func TestWithdrawalLifecycle_EarnedMinusApproved(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	uc := newTestLedger(store)

	partner := seedPartner(t, store, "user-a")
	seedCommission(t, store, partner.ID, "300.00")
	seedCommission(t, store, partner.ID, "200.00")
	seedWithdrawal(t, store, partner, "150.00", domain.WithdrawalApproved)

	b := mustBalance(t, uc, partner.ID)
	assertDecimal(t, "earned", b.Earned, "500")
	assertDecimal(t, "reserved", b.Reserved, "150")
	assertDecimal(t, "withdrawable", b.Withdrawable, "350")

	_, err := uc.RequestWithdrawal(ctx, &withdrawaldto.RequestWithdrawalInput{UserID: "user-a", Amount: dec("400.00")})
	if !errors.Is(err, domain.ErrInsufficientBalance) {
		t.Fatalf("expected insufficient balance, got %v", err)
	}

	out, err := uc.RequestWithdrawal(ctx, &withdrawaldto.RequestWithdrawalInput{UserID: "user-a", Amount: dec("350.00")})
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if out.Status != string(domain.WithdrawalPending) {
		t.Fatalf("expected pending, got %s", out.Status)
	}
	assertDecimal(t, "withdrawable after request", mustBalance(t, uc, partner.ID).Withdrawable, "0")

	approved, err := uc.ApproveWithdrawal(ctx, &withdrawaldto.ApproveWithdrawalInput{WithdrawalID: out.ID, ReviewerID: "admin-1"})
	if err != nil {
		t.Fatalf("approve: %v", err)
	}
	if approved.Status != string(domain.WithdrawalApproved) || approved.ReviewerID != "admin-1" || approved.ReviewedAt == nil {
		t.Fatalf("unexpected approved output: %+v", approved)
	}
	assertDecimal(t, "withdrawable after approve", mustBalance(t, uc, partner.ID).Withdrawable, "0")

	stored, err := store.FindPartnerByID(ctx, partner.ID)
	if err != nil {
		t.Fatalf("reload partner: %v", err)
	}
	assertDecimal(t, "withdrawn total", stored.WithdrawnTotal, "500")
}

func TestRejectReleasesReservation(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	uc := newTestLedger(store)

	partner := seedPartner(t, store, "user-b")
	seedCommission(t, store, partner.ID, "500.00")

	first, err := uc.RequestWithdrawal(ctx, &withdrawaldto.RequestWithdrawalInput{UserID: "user-b", Amount: dec("100.00")})
	if err != nil {
		t.Fatalf("first request: %v", err)
	}
	if _, err := uc.RequestWithdrawal(ctx, &withdrawaldto.RequestWithdrawalInput{UserID: "user-b", Amount: dec("300.00")}); err != nil {
		t.Fatalf("second request: %v", err)
	}
	assertDecimal(t, "withdrawable with two reservations", mustBalance(t, uc, partner.ID).Withdrawable, "100")

	_, err = uc.RejectWithdrawal(ctx, &withdrawaldto.RejectWithdrawalInput{WithdrawalID: first.ID, ReviewerID: "admin-1", Reason: "   "})
	if !errors.Is(err, domain.ErrMissingReason) {
		t.Fatalf("expected missing reason, got %v", err)
	}

	rejected, err := uc.RejectWithdrawal(ctx, &withdrawaldto.RejectWithdrawalInput{WithdrawalID: first.ID, ReviewerID: "admin-1", Reason: "duplicate"})
	if err != nil {
		t.Fatalf("reject: %v", err)
	}
	if rejected.Status != string(domain.WithdrawalRejected) || rejected.RejectionReason != "duplicate" {
		t.Fatalf("unexpected rejected output: %+v", rejected)
	}
	assertDecimal(t, "withdrawable after reject", mustBalance(t, uc, partner.ID).Withdrawable, "200")
}

func TestRequestWithdrawal_Validation(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	uc := newTestLedger(store)
	partner := seedPartner(t, store, "user-c")
	seedCommission(t, store, partner.ID, "10")

	tests := []struct {
		name   string
		userID string
		amount string
		want   error
	}{
		{name: "zero amount", userID: "user-c", amount: "0", want: domain.ErrInvalidAmount},
		{name: "negative amount", userID: "user-c", amount: "-5", want: domain.ErrInvalidAmount},
		{name: "unknown user", userID: "nobody", amount: "5", want: domain.ErrNoHierarchyRecord},
		{name: "over balance", userID: "user-c", amount: "10.01", want: domain.ErrInsufficientBalance},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := uc.RequestWithdrawal(ctx, &withdrawaldto.RequestWithdrawalInput{UserID: tt.userID, Amount: dec(tt.amount)})
			if !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestDecidedRequestIsImmutable(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	uc := newTestLedger(store)
	partner := seedPartner(t, store, "user-d")
	seedCommission(t, store, partner.ID, "50")

	out, err := uc.RequestWithdrawal(ctx, &withdrawaldto.RequestWithdrawalInput{UserID: "user-d", Amount: dec("20")})
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if _, err := uc.ApproveWithdrawal(ctx, &withdrawaldto.ApproveWithdrawalInput{WithdrawalID: out.ID, ReviewerID: "admin"}); err != nil {
		t.Fatalf("approve: %v", err)
	}

	_, err = uc.ApproveWithdrawal(ctx, &withdrawaldto.ApproveWithdrawalInput{WithdrawalID: out.ID, ReviewerID: "admin"})
	if !errors.Is(err, domain.ErrInvalidStateTransition) {
		t.Fatalf("second approve: expected invalid transition, got %v", err)
	}
	_, err = uc.RejectWithdrawal(ctx, &withdrawaldto.RejectWithdrawalInput{WithdrawalID: out.ID, ReviewerID: "admin", Reason: "late"})
	if !errors.Is(err, domain.ErrInvalidStateTransition) {
		t.Fatalf("reject after approve: expected invalid transition, got %v", err)
	}
	_, err = uc.ApproveWithdrawal(ctx, &withdrawaldto.ApproveWithdrawalInput{WithdrawalID: "missing", ReviewerID: "admin"})
	if !errors.Is(err, domain.ErrWithdrawalNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestApprove_DebitFailureLeavesRequestPending(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	partner := seedPartner(t, store, "user-e")
	seedCommission(t, store, partner.ID, "100")

	uc := newTestLedger(store)
	out, err := uc.RequestWithdrawal(ctx, &withdrawaldto.RequestWithdrawalInput{UserID: "user-e", Amount: dec("60")})
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	before := mustBalance(t, uc, partner.ID)

	faulty := newTestLedger(failingDebitStore{Store: store})
	_, err = faulty.ApproveWithdrawal(ctx, &withdrawaldto.ApproveWithdrawalInput{WithdrawalID: out.ID, ReviewerID: "admin"})
	if domain.KindOf(err) != domain.KindTransient {
		t.Fatalf("expected transient failure, got %v", err)
	}

	w, err := store.GetWithdrawal(ctx, out.ID)
	if err != nil {
		t.Fatalf("reload withdrawal: %v", err)
	}
	if w.Status != domain.WithdrawalPending || w.ReviewerID != "" || w.ReviewedAt != nil {
		t.Fatalf("request was half-applied: %+v", w)
	}
	p, err := store.FindPartnerByID(ctx, partner.ID)
	if err != nil {
		t.Fatalf("reload partner: %v", err)
	}
	assertDecimal(t, "withdrawn total", p.WithdrawnTotal, "0")

	after := mustBalance(t, uc, partner.ID)
	if !after.Withdrawable.Equal(before.Withdrawable) || !after.Settled.Equal(before.Settled) {
		t.Fatalf("balance changed: before %+v after %+v", before, after)
	}

	if _, err := uc.ApproveWithdrawal(ctx, &withdrawaldto.ApproveWithdrawalInput{WithdrawalID: out.ID, ReviewerID: "admin"}); err != nil {
		t.Fatalf("retry approve: %v", err)
	}
}

func TestApprove_RejectedBeforeCommitIsInvalidTransition(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	partner := seedPartner(t, store, "user-r")
	seedCommission(t, store, partner.ID, "100")

	out, err := newTestLedger(store).RequestWithdrawal(ctx, &withdrawaldto.RequestWithdrawalInput{UserID: "user-r", Amount: dec("40")})
	if err != nil {
		t.Fatalf("request: %v", err)
	}

	racing := newTestLedger(decideBeforeCommit{Store: store, decide: func() {
		decision := domain.WithdrawalDecision{Status: domain.WithdrawalRejected, ReviewerID: "other", RejectionReason: "duplicate", ReviewedAt: time.Now().UTC()}
		if err := store.UpdateWithdrawal(ctx, out.ID, decision, domain.WithdrawalPending); err != nil {
			t.Errorf("concurrent reject: %v", err)
		}
	}})
	_, err = racing.ApproveWithdrawal(ctx, &withdrawaldto.ApproveWithdrawalInput{WithdrawalID: out.ID, ReviewerID: "admin"})
	if !errors.Is(err, domain.ErrInvalidStateTransition) {
		t.Fatalf("expected invalid transition, got %v", err)
	}

	w, _ := store.GetWithdrawal(ctx, out.ID)
	if w.Status != domain.WithdrawalRejected {
		t.Fatalf("expected the reject to stand, got %s", w.Status)
	}
	p, _ := store.FindPartnerByID(ctx, partner.ID)
	assertDecimal(t, "withdrawn total", p.WithdrawnTotal, "0")
}

func TestConcurrentApprove_OnlyOneFits(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	uc := newTestLedger(store)
	partner := seedPartner(t, store, "user-f")
	seedCommission(t, store, partner.ID, "500")

	// Both requests predate each other's admission, so together they
	// over-reserve and only one approval can be settled.
	a := seedWithdrawal(t, store, partner, "300", domain.WithdrawalPending)
	b := seedWithdrawal(t, store, partner, "300", domain.WithdrawalPending)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i, id := range []string{a.ID, b.ID} {
		wg.Add(1)
		go func(i int, id string) {
			defer wg.Done()
			_, errs[i] = uc.ApproveWithdrawal(ctx, &withdrawaldto.ApproveWithdrawalInput{WithdrawalID: id, ReviewerID: "admin"})
		}(i, id)
	}
	wg.Wait()

	succeeded, insufficient := 0, 0
	var loser string
	for i, err := range errs {
		switch {
		case err == nil:
			succeeded++
		case errors.Is(err, domain.ErrInsufficientBalance):
			insufficient++
			loser = []string{a.ID, b.ID}[i]
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if succeeded != 1 || insufficient != 1 {
		t.Fatalf("expected exactly one approval, got %d ok / %d insufficient", succeeded, insufficient)
	}

	p, err := store.FindPartnerByID(ctx, partner.ID)
	if err != nil {
		t.Fatalf("reload partner: %v", err)
	}
	assertDecimal(t, "withdrawn total", p.WithdrawnTotal, "300")

	if _, err := uc.RejectWithdrawal(ctx, &withdrawaldto.RejectWithdrawalInput{WithdrawalID: loser, ReviewerID: "admin", Reason: "over-reserved"}); err != nil {
		t.Fatalf("reject loser: %v", err)
	}
	assertDecimal(t, "withdrawable", mustBalance(t, uc, partner.ID).Withdrawable, "200")
}

func TestConcurrentRequests_NeverOverReserve(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	uc := newTestLedger(store)
	partner := seedPartner(t, store, "user-g")
	seedCommission(t, store, partner.ID, "500")

	const workers = 8
	var wg sync.WaitGroup
	var admitted atomic.Int32
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := uc.RequestWithdrawal(ctx, &withdrawaldto.RequestWithdrawalInput{UserID: "user-g", Amount: dec("300")})
			if err == nil {
				admitted.Add(1)
				return
			}
			if !errors.Is(err, domain.ErrInsufficientBalance) {
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	if admitted.Load() != 1 {
		t.Fatalf("expected one admitted request, got %d", admitted.Load())
	}
	assertDecimal(t, "withdrawable", mustBalance(t, uc, partner.ID).Withdrawable, "200")
}

func TestApprove_BalanceDriftRefused(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	uc := newTestLedger(store)
	partner := seedPartner(t, store, "user-h")
	seedCommission(t, store, partner.ID, "100")

	// approved without the matching debit
	if err := store.InsertWithdrawal(ctx, &domain.WithdrawalRequest{
		ID: uuid.New().String(), PartnerID: partner.ID, Amount: dec("10"),
		Status: domain.WithdrawalApproved, Reference: "IB-W-DRIFT",
	}); err != nil {
		t.Fatalf("seed: %v", err)
	}
	pending := seedWithdrawal(t, store, partner, "20", domain.WithdrawalPending)

	_, err := uc.ApproveWithdrawal(ctx, &withdrawaldto.ApproveWithdrawalInput{WithdrawalID: pending.ID, ReviewerID: "admin"})
	if !errors.Is(err, domain.ErrBalanceDrift) {
		t.Fatalf("expected balance drift, got %v", err)
	}
	w, _ := store.GetWithdrawal(ctx, pending.ID)
	if w.Status != domain.WithdrawalPending {
		t.Fatalf("expected request to stay pending, got %s", w.Status)
	}
}

func TestComputeBalance_NegativeFailsClosed(t *testing.T) {
	store := memory.NewStore()
	reg := prometheus.NewRegistry()
	uc := NewDefaultLedgerUsecase(store, nil, sequentialReferences(), metrics.NewIBMetrics(reg), nil)
	partner := seedPartner(t, store, "user-i")
	seedCommission(t, store, partner.ID, "10")
	seedWithdrawal(t, store, partner, "25", domain.WithdrawalPending)

	b, err := uc.ComputeBalance(context.Background(), partner.ID)
	if b != nil || !errors.Is(err, domain.ErrNegativeBalance) {
		t.Fatalf("expected negative balance error, got %+v, %v", b, err)
	}
	if got := testutil.ToFloat64(uc.Metrics.IntegrityViolationsTotal.WithLabelValues("negative_balance")); got != 1 {
		t.Fatalf("expected one integrity violation, got %v", got)
	}
}

func TestRequestWithdrawal_ReferenceCollisionRetries(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	partner := seedPartner(t, store, "user-j")
	seedCommission(t, store, partner.ID, "100")
	if err := store.InsertWithdrawal(ctx, &domain.WithdrawalRequest{
		ID: uuid.New().String(), PartnerID: partner.ID, Amount: dec("1"),
		Status: domain.WithdrawalRejected, Reference: "IB-W-TAKEN",
	}); err != nil {
		t.Fatalf("seed: %v", err)
	}

	refs := []string{"IB-W-TAKEN", "IB-W-TAKEN", "IB-W-FRESH"}
	var i int
	uc := NewDefaultLedgerUsecase(store, nil, func() string {
		ref := refs[i]
		i++
		return ref
	}, nil, nil)

	out, err := uc.RequestWithdrawal(ctx, &withdrawaldto.RequestWithdrawalInput{UserID: "user-j", Amount: dec("5")})
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if out.Reference != "IB-W-FRESH" {
		t.Fatalf("expected fresh reference, got %s", out.Reference)
	}
}

func TestIngestCommission_IgnoresRedelivery(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	reg := prometheus.NewRegistry()
	uc := NewDefaultLedgerUsecase(store, nil, sequentialReferences(), metrics.NewIBMetrics(reg), nil)
	partner := seedPartner(t, store, "user-k")

	entry := &domain.CommissionEntry{ID: "evt-1", PartnerID: partner.ID, SourceUserID: "client-1", Amount: dec("12.5"), Volume: dec("1000")}
	for i := 0; i < 3; i++ {
		added, err := uc.IngestCommission(ctx, entry)
		if err != nil {
			t.Fatalf("ingest %d: %v", i, err)
		}
		if added != (i == 0) {
			t.Fatalf("ingest %d: added=%v", i, added)
		}
	}
	assertDecimal(t, "earned", mustBalance(t, uc, partner.ID).Earned, "12.5")

	_, err := uc.IngestCommission(ctx, &domain.CommissionEntry{ID: "evt-2", PartnerID: "ghost", SourceUserID: "client-1", Amount: dec("1")})
	if !errors.Is(err, domain.ErrPartnerNotFound) {
		t.Fatalf("expected partner not found, got %v", err)
	}

	if got := testutil.ToFloat64(uc.Metrics.CommissionsIngestedTotal.WithLabelValues("duplicate")); got != 2 {
		t.Fatalf("expected 2 duplicates, got %v", got)
	}
}

func TestListWithdrawals_FilterAndOrder(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	uc := newTestLedger(store)
	partner := seedPartner(t, store, "user-l")
	seedCommission(t, store, partner.ID, "100")

	var ids []string
	for _, amount := range []string{"1", "2", "3"} {
		out, err := uc.RequestWithdrawal(ctx, &withdrawaldto.RequestWithdrawalInput{UserID: "user-l", Amount: dec(amount)})
		if err != nil {
			t.Fatalf("request: %v", err)
		}
		ids = append(ids, out.ID)
	}
	if _, err := uc.RejectWithdrawal(ctx, &withdrawaldto.RejectWithdrawalInput{WithdrawalID: ids[1], ReviewerID: "admin", Reason: "typo"}); err != nil {
		t.Fatalf("reject: %v", err)
	}

	pending, err := uc.ListWithdrawals(ctx, &withdrawaldto.ListWithdrawalsInput{PartnerID: partner.ID, Status: "pending"})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(pending) != 2 || pending[0].ID != ids[2] || pending[1].ID != ids[0] {
		t.Fatalf("unexpected pending list: %+v", pending)
	}

	if _, err := uc.ListWithdrawals(ctx, &withdrawaldto.ListWithdrawalsInput{Status: "paid"}); !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
}
