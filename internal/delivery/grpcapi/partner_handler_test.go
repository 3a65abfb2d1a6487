package grpcapi

import (
	"context"
	"errors"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/LavaJover/shvark-ib-service/internal/domain"
	"github.com/LavaJover/shvark-ib-service/internal/infrastructure/codegen"
	"github.com/LavaJover/shvark-ib-service/internal/infrastructure/memory"
	"github.com/LavaJover/shvark-ib-service/internal/usecase/hierarchy"
	"github.com/LavaJover/shvark-ib-service/internal/usecase/ledger"
	"github.com/LavaJover/shvark-ib-service/internal/usecase/referral"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
)

type testEnv struct {
	client *PartnerServiceClient
	conn   *grpc.ClientConn
	ledger *ledger.DefaultLedgerUsecase
}

func startServer(t *testing.T) *testEnv {
	t.Helper()

	store := memory.NewStore()
	codeGen, err := codegen.NewReferralCodeGenerator()
	if err != nil {
		t.Fatalf("code generator: %v", err)
	}
	refs, err := codegen.NewReferenceGenerator(nil)
	if err != nil {
		t.Fatalf("reference generator: %v", err)
	}

	hierarchyUc := hierarchy.NewDefaultHierarchyUsecase(store, nil, 0, 0, nil, nil)
	referralUc := referral.NewDefaultReferralUsecase(store, codeGen, hierarchyUc, 0, nil, nil)
	ledgerUc := ledger.NewDefaultLedgerUsecase(store, nil, refs, nil, nil)

	srv, _ := NewServer(NewPartnerHandler(ledgerUc, referralUc, hierarchyUc, nil), 2*time.Second, zap.NewNop())
	lis := bufconn.Listen(1 << 20)
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })

	return &testEnv{client: NewPartnerServiceClient(conn), conn: conn, ledger: ledgerUc}
}

func assertCode(t *testing.T, err error, want codes.Code, wantPrefix string) {
	t.Helper()
	st, ok := status.FromError(err)
	if !ok {
		t.Fatalf("expected a gRPC status, got %v", err)
	}
	if st.Code() != want {
		t.Fatalf("code = %s, want %s (%s)", st.Code(), want, st.Message())
	}
	if wantPrefix != "" && !strings.HasPrefix(st.Message(), wantPrefix) {
		t.Fatalf("message %q does not start with %q", st.Message(), wantPrefix)
	}
}

func TestPartnerService_WithdrawalFlow(t *testing.T) {
	env := startServer(t)
	ctx := context.Background()

	root, err := env.client.Activate(ctx, &ActivateRequest{UserID: "u-root"})
	if err != nil {
		t.Fatalf("activate: %v", err)
	}
	if root.Partner.Status != string(domain.PartnerActive) || len(root.Partner.ReferralCode) != codegen.ReferralCodeLength {
		t.Fatalf("unexpected root %+v", root.Partner)
	}

	child, err := env.client.EnrollReferral(ctx, &EnrollReferralRequest{UserID: "u-child", ReferralCode: strings.ToLower(root.Partner.ReferralCode)})
	if err != nil {
		t.Fatalf("enroll: %v", err)
	}
	if child.Partner.ParentID != root.Partner.ID || child.Partner.Depth != 1 {
		t.Fatalf("child not attached to root: %+v", child.Partner)
	}

	if _, err := env.ledger.IngestCommission(ctx, &domain.CommissionEntry{
		ID:           "c-1",
		PartnerID:    root.Partner.ID,
		SourceUserID: "u-child",
		Amount:       decimal.RequireFromString("500"),
		Volume:       decimal.RequireFromString("10000"),
	}); err != nil {
		t.Fatalf("ingest: %v", err)
	}

	bal, err := env.client.ComputeBalance(ctx, &ComputeBalanceRequest{UserID: "u-root"})
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if bal.Balance.Withdrawable != "500.00" {
		t.Fatalf("withdrawable = %s, want 500.00", bal.Balance.Withdrawable)
	}

	req, err := env.client.RequestWithdrawal(ctx, &RequestWithdrawalRequest{UserID: "u-root", Amount: "150"})
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if req.Withdrawal.Status != string(domain.WithdrawalPending) || !strings.HasPrefix(req.Withdrawal.Reference, codegen.ReferencePrefix) {
		t.Fatalf("unexpected withdrawal %+v", req.Withdrawal)
	}

	_, err = env.client.RequestWithdrawal(ctx, &RequestWithdrawalRequest{UserID: "u-root", Amount: "400"})
	assertCode(t, err, codes.FailedPrecondition, "insufficient_balance")

	approved, err := env.client.ApproveWithdrawal(ctx, &ApproveWithdrawalRequest{WithdrawalID: req.Withdrawal.ID, ReviewerID: "admin"})
	if err != nil {
		t.Fatalf("approve: %v", err)
	}
	if approved.Withdrawal.Status != string(domain.WithdrawalApproved) || approved.Withdrawal.ReviewerID != "admin" {
		t.Fatalf("unexpected approved withdrawal %+v", approved.Withdrawal)
	}

	_, err = env.client.RejectWithdrawal(ctx, &RejectWithdrawalRequest{WithdrawalID: req.Withdrawal.ID, ReviewerID: "admin", Reason: "late"})
	assertCode(t, err, codes.FailedPrecondition, "invalid_state_transition")

	list, err := env.client.ListWithdrawals(ctx, &ListWithdrawalsRequest{PartnerID: root.Partner.ID})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list.Withdrawals) != 1 {
		t.Fatalf("expected 1 withdrawal, got %d", len(list.Withdrawals))
	}

	bal, err = env.client.ComputeBalance(ctx, &ComputeBalanceRequest{PartnerID: root.Partner.ID})
	if err != nil {
		t.Fatalf("balance after approve: %v", err)
	}
	if bal.Balance.Withdrawable != "350.00" {
		t.Fatalf("withdrawable after approve = %s, want 350.00", bal.Balance.Withdrawable)
	}
}

func TestPartnerService_HierarchyReads(t *testing.T) {
	env := startServer(t)
	ctx := context.Background()

	root, err := env.client.Activate(ctx, &ActivateRequest{UserID: "u-root"})
	if err != nil {
		t.Fatalf("activate: %v", err)
	}
	if _, err := env.client.EnrollReferral(ctx, &EnrollReferralRequest{UserID: "u-child", ReferralCode: root.Partner.ReferralCode}); err != nil {
		t.Fatalf("enroll: %v", err)
	}
	if _, err := env.ledger.IngestCommission(ctx, &domain.CommissionEntry{
		ID:           "c-1",
		PartnerID:    root.Partner.ID,
		SourceUserID: "u-child",
		Amount:       decimal.RequireFromString("5"),
		Volume:       decimal.RequireFromString("100"),
	}); err != nil {
		t.Fatalf("ingest: %v", err)
	}

	downline, err := env.client.BuildDownline(ctx, &BuildDownlineRequest{PartnerID: root.Partner.ID, WithAggregates: true})
	if err != nil {
		t.Fatalf("downline: %v", err)
	}
	d := downline.Downline
	if len(d.Entries) != 1 || d.Entries[0].Level != 1 {
		t.Fatalf("unexpected entries %+v", d.Entries)
	}
	if d.Entries[0].Volume != "100.00" || d.Entries[0].EarnedFromThisPartner != "5.00" {
		t.Fatalf("unexpected aggregates %+v", d.Entries[0])
	}
	if d.Summary.TotalPartners != 1 || d.Summary.DirectCount != 1 {
		t.Fatalf("unexpected summary %+v", d.Summary)
	}

	tree, err := env.client.BuildDisplayTree(ctx, &BuildDisplayTreeRequest{PartnerID: root.Partner.ID})
	if err != nil {
		t.Fatalf("tree: %v", err)
	}
	if tree.Tree.Root.Partner.ID != root.Partner.ID || len(tree.Tree.Root.Children) != 1 || tree.Tree.Root.Children[0].Level != 1 {
		t.Fatalf("unexpected tree %+v", tree.Tree.Root)
	}

	byCode, err := env.client.GetPartner(ctx, &GetPartnerRequest{ReferralCode: root.Partner.ReferralCode})
	if err != nil {
		t.Fatalf("get by code: %v", err)
	}
	if byCode.Partner.ID != root.Partner.ID {
		t.Fatalf("code lookup returned %s", byCode.Partner.ID)
	}
}

func TestPartnerService_ErrorMapping(t *testing.T) {
	env := startServer(t)
	ctx := context.Background()

	_, err := env.client.RequestWithdrawal(ctx, &RequestWithdrawalRequest{UserID: "u-1", Amount: "ten"})
	assertCode(t, err, codes.InvalidArgument, "invalid_amount")

	_, err = env.client.RequestWithdrawal(ctx, &RequestWithdrawalRequest{UserID: "u-1", Amount: "-5"})
	assertCode(t, err, codes.InvalidArgument, "invalid_amount")

	_, err = env.client.RequestWithdrawal(ctx, &RequestWithdrawalRequest{UserID: "nobody", Amount: "5"})
	assertCode(t, err, codes.NotFound, "no_hierarchy_record")

	_, err = env.client.GetWithdrawal(ctx, &GetWithdrawalRequest{WithdrawalID: "missing"})
	assertCode(t, err, codes.NotFound, "withdrawal_not_found")

	_, err = env.client.GetPartner(ctx, &GetPartnerRequest{})
	assertCode(t, err, codes.InvalidArgument, "invalid_input")

	_, err = env.client.EnrollReferral(ctx, &EnrollReferralRequest{UserID: "u-2", ReferralCode: "FFFFFF"})
	assertCode(t, err, codes.NotFound, "referral_code_not_found")

	if _, err := env.client.Activate(ctx, &ActivateRequest{UserID: "u-3"}); err != nil {
		t.Fatalf("activate: %v", err)
	}
	_, err = env.client.Activate(ctx, &ActivateRequest{UserID: "u-3"})
	assertCode(t, err, codes.FailedPrecondition, "already_active")
}

func TestPartnerService_Health(t *testing.T) {
	env := startServer(t)

	resp, err := healthpb.NewHealthClient(env.conn).Check(context.Background(), &healthpb.HealthCheckRequest{Service: ServiceName})
	if err != nil {
		t.Fatalf("health: %v", err)
	}
	if resp.Status != healthpb.HealthCheckResponse_SERVING {
		t.Fatalf("status = %s", resp.Status)
	}
}

func TestToStatus(t *testing.T) {
	logger := zap.NewNop()
	tests := []struct {
		name    string
		err     error
		code    codes.Code
		message string
	}{
		{name: "validation", err: domain.ErrMissingReason, code: codes.InvalidArgument, message: "missing_reason: rejection reason is required"},
		{name: "insufficient", err: domain.ErrInsufficientBalance, code: codes.FailedPrecondition, message: "insufficient_balance: insufficient withdrawable balance"},
		{name: "transient", err: domain.NewTransientError(errors.New("dial tcp: refused")), code: codes.Unavailable, message: "store_unavailable: store temporarily unavailable"},
		{name: "deadline", err: context.DeadlineExceeded, code: codes.Unavailable, message: "store_unavailable: store temporarily unavailable"},
		{name: "integrity is opaque", err: domain.ErrBalanceDrift.Withf("withdrawn 10 settled 20"), code: codes.Internal, message: "balance_drift: internal error"},
		{name: "unknown is opaque", err: errors.New("pq: relation does not exist"), code: codes.Internal, message: "internal error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st, _ := status.FromError(toStatus(logger, "Test", tt.err))
			if st.Code() != tt.code || st.Message() != tt.message {
				t.Fatalf("got %s %q, want %s %q", st.Code(), st.Message(), tt.code, tt.message)
			}
		})
	}
}

func TestTimeoutInterceptor_SetsDeadline(t *testing.T) {
	interceptor := TimeoutInterceptor(50 * time.Millisecond)
	var remaining time.Duration
	_, err := interceptor(context.Background(), nil, &grpc.UnaryServerInfo{FullMethod: "/x/y"}, func(ctx context.Context, _ any) (any, error) {
		deadline, ok := ctx.Deadline()
		if !ok {
			return nil, errors.New("no deadline")
		}
		remaining = time.Until(deadline)
		return nil, nil
	})
	if err != nil {
		t.Fatalf("interceptor: %v", err)
	}
	if remaining <= 0 || remaining > 50*time.Millisecond {
		t.Fatalf("remaining = %v", remaining)
	}
}
