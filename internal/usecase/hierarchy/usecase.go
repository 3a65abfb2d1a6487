package hierarchy

import (
	"context"
	"sync/atomic"

	"github.com/LavaJover/shvark-ib-service/internal/domain"
	"github.com/LavaJover/shvark-ib-service/internal/infrastructure/metrics"
	"go.uber.org/zap"
)

const defaultAggregateWorkers = 8

type HierarchyUsecase interface {
	BuildDownline(ctx context.Context, rootPartnerID string, withAggregates bool) (*domain.Downline, error)
	BuildDisplayTree(ctx context.Context, viewerPartnerID string) (*domain.DisplayTree, error)
	InvalidateAbove(ctx context.Context, partnerID string)
}

type DefaultHierarchyUsecase struct {
	Store            domain.Store
	Cache            domain.TreeCache
	Metrics          *metrics.IBMetrics
	Logger           *zap.Logger
	MaxDepth         int
	AggregateWorkers int

	// invalidations counts InvalidateAbove calls; a tree built across one
	// is not cached.
	invalidations atomic.Uint64
}

func NewDefaultHierarchyUsecase(
	store domain.Store,
	cache domain.TreeCache,
	maxDepth, aggregateWorkers int,
	ibMetrics *metrics.IBMetrics,
	logger *zap.Logger) *DefaultHierarchyUsecase {

	if maxDepth <= 0 {
		maxDepth = DefaultMaxDepth
	}
	if aggregateWorkers <= 0 {
		aggregateWorkers = defaultAggregateWorkers
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DefaultHierarchyUsecase{
		Store:            store,
		Cache:            cache,
		Metrics:          ibMetrics,
		Logger:           logger,
		MaxDepth:         maxDepth,
		AggregateWorkers: aggregateWorkers,
	}
}

func (uc *DefaultHierarchyUsecase) reportIssues(rootID string, issues []domain.IntegrityIssue) {
	for _, is := range issues {
		if is.Kind == domain.IssueDepthTruncated {
			uc.Logger.Warn("downline truncated at depth bound",
				zap.String("root_id", rootID), zap.String("partner_id", is.PartnerID))
			continue
		}
		uc.Metrics.RecordIntegrityViolation(string(is.Kind))
		uc.Logger.Error("hierarchy integrity issue",
			zap.String("root_id", rootID),
			zap.String("partner_id", is.PartnerID),
			zap.String("kind", string(is.Kind)),
			zap.String("detail", is.Detail),
		)
	}
}
