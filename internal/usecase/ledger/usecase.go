package ledger

import (
	"context"
	"time"

	"github.com/LavaJover/shvark-ib-service/internal/domain"
	"github.com/LavaJover/shvark-ib-service/internal/infrastructure/metrics"
	withdrawaldto "github.com/LavaJover/shvark-ib-service/internal/usecase/dto/withdrawal"
	"go.uber.org/zap"
)

const defaultReferenceAttempts = 5

type LedgerUsecase interface {
	ComputeBalance(ctx context.Context, partnerID string) (*domain.Balance, error)

	RequestWithdrawal(ctx context.Context, input *withdrawaldto.RequestWithdrawalInput) (*withdrawaldto.WithdrawalOutput, error)
	ApproveWithdrawal(ctx context.Context, input *withdrawaldto.ApproveWithdrawalInput) (*withdrawaldto.WithdrawalOutput, error)
	RejectWithdrawal(ctx context.Context, input *withdrawaldto.RejectWithdrawalInput) (*withdrawaldto.WithdrawalOutput, error)

	GetWithdrawal(ctx context.Context, withdrawalID string) (*withdrawaldto.WithdrawalOutput, error)
	ListWithdrawals(ctx context.Context, input *withdrawaldto.ListWithdrawalsInput) ([]*withdrawaldto.WithdrawalOutput, error)
	PendingBacklog(ctx context.Context, staleBefore time.Time) (*withdrawaldto.BacklogOutput, error)

	IngestCommission(ctx context.Context, entry *domain.CommissionEntry) (bool, error)
}

type DefaultLedgerUsecase struct {
	Store      domain.Store
	Publisher  domain.WithdrawalEventPublisher
	Metrics    *metrics.IBMetrics
	Logger     *zap.Logger
	References func() string
	Now        func() time.Time

	ReferenceAttempts int
}

func NewDefaultLedgerUsecase(
	store domain.Store,
	publisher domain.WithdrawalEventPublisher,
	references func() string,
	ibMetrics *metrics.IBMetrics,
	logger *zap.Logger) *DefaultLedgerUsecase {

	if logger == nil {
		logger = zap.NewNop()
	}
	return &DefaultLedgerUsecase{
		Store:             store,
		Publisher:         publisher,
		Metrics:           ibMetrics,
		Logger:            logger,
		References:        references,
		Now:               func() time.Time { return time.Now().UTC() },
		ReferenceAttempts: defaultReferenceAttempts,
	}
}
