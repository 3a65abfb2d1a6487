package setup

import (
	"fmt"

	"github.com/LavaJover/shvark-ib-service/internal/infrastructure/codegen"
	publisher "github.com/LavaJover/shvark-ib-service/internal/infrastructure/kafka"
	"github.com/LavaJover/shvark-ib-service/internal/usecase/hierarchy"
	"github.com/LavaJover/shvark-ib-service/internal/usecase/ledger"
	"github.com/LavaJover/shvark-ib-service/internal/usecase/referral"
)

type UseCases struct {
	LedgerUsecase      ledger.LedgerUsecase
	ReferralUsecase    referral.ReferralUsecase
	HierarchyUsecase   hierarchy.HierarchyUsecase
	CommissionConsumer *publisher.CommissionConsumer
}

func InitializeUseCases(deps *Dependencies) (*UseCases, error) {
	codes, err := codegen.NewReferralCodeGenerator()
	if err != nil {
		return nil, fmt.Errorf("referral code generator: %w", err)
	}
	references, err := codegen.NewReferenceGenerator(nil)
	if err != nil {
		return nil, fmt.Errorf("reference generator: %w", err)
	}

	cfg := deps.Config

	hierarchyUsecase := hierarchy.NewDefaultHierarchyUsecase(
		deps.Store,
		deps.TreeCache,
		cfg.Hierarchy.MaxDepth,
		cfg.Hierarchy.AggregateWorkers,
		deps.Metrics,
		deps.Logger.Named("hierarchy"),
	)

	referralUsecase := referral.NewDefaultReferralUsecase(
		deps.Store,
		codes,
		hierarchyUsecase,
		cfg.Referral.CodeAttempts,
		deps.Metrics,
		deps.Logger.Named("referral"),
	)

	ledgerUsecase := ledger.NewDefaultLedgerUsecase(
		deps.Store,
		deps.WithdrawalPublisher,
		references,
		deps.Metrics,
		deps.Logger.Named("ledger"),
	)

	commissionConsumer := publisher.NewCommissionConsumer(
		deps.Subscriber,
		ledgerUsecase,
		cfg.KafkaService.CommissionTopic,
		cfg.KafkaService.GroupID,
		deps.Logger.Named("commission-consumer"),
	)

	return &UseCases{
		LedgerUsecase:      ledgerUsecase,
		ReferralUsecase:    referralUsecase,
		HierarchyUsecase:   hierarchyUsecase,
		CommissionConsumer: commissionConsumer,
	}, nil
}
