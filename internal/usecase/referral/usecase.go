package referral

import (
	"context"
	"time"

	"github.com/LavaJover/shvark-ib-service/internal/domain"
	"github.com/LavaJover/shvark-ib-service/internal/infrastructure/metrics"
	partnerdto "github.com/LavaJover/shvark-ib-service/internal/usecase/dto/partner"
	"go.uber.org/zap"
)

const DefaultCodeAttempts = 10

type ReferralUsecase interface {
	EnrollReferral(ctx context.Context, userID, referralCode string) (*partnerdto.PartnerOutput, error)
	Activate(ctx context.Context, userID string) (*partnerdto.PartnerOutput, error)

	GetPartnerByUser(ctx context.Context, userID string) (*partnerdto.PartnerOutput, error)
	GetPartnerByCode(ctx context.Context, code string) (*partnerdto.PartnerOutput, error)
	GetPartnerByID(ctx context.Context, partnerID string) (*partnerdto.PartnerOutput, error)
}

// TreeInvalidator drops cached display trees that may contain a partner.
type TreeInvalidator interface {
	InvalidateAbove(ctx context.Context, partnerID string)
}

type DefaultReferralUsecase struct {
	Store        domain.PartnerRepository
	Codes        func() string
	Trees        TreeInvalidator
	Metrics      *metrics.IBMetrics
	Logger       *zap.Logger
	Now          func() time.Time
	CodeAttempts int
}

func NewDefaultReferralUsecase(
	store domain.PartnerRepository,
	codes func() string,
	trees TreeInvalidator,
	codeAttempts int,
	ibMetrics *metrics.IBMetrics,
	logger *zap.Logger) *DefaultReferralUsecase {

	if codeAttempts <= 0 {
		codeAttempts = DefaultCodeAttempts
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DefaultReferralUsecase{
		Store:        store,
		Codes:        codes,
		Trees:        trees,
		Metrics:      ibMetrics,
		Logger:       logger,
		Now:          func() time.Time { return time.Now().UTC() },
		CodeAttempts: codeAttempts,
	}
}

func (uc *DefaultReferralUsecase) invalidate(ctx context.Context, partnerID string) {
	if uc.Trees != nil {
		uc.Trees.InvalidateAbove(ctx, partnerID)
	}
}

func resultOf(err error) string {
	if err == nil {
		return "ok"
	}
	return domain.CodeOf(err)
}
