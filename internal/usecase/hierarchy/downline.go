package hierarchy

import (
	"context"
	"time"

	"github.com/LavaJover/shvark-ib-service/internal/domain"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// BuildDownline lists every partner below rootPartnerID with its level
// relative to the root. With aggregates, each entry also carries its own
// volume and the commission the root earned from it; a failed aggregate
// zeroes that entry's figures without failing the listing. A context that
// ends before the build completes fails it as transient.
func (uc *DefaultHierarchyUsecase) BuildDownline(ctx context.Context, rootPartnerID string, withAggregates bool) (*domain.Downline, error) {
	start := time.Now()
	traversal, err := CollectDownline(ctx, uc.Store, rootPartnerID, uc.MaxDepth)
	if traversal == nil {
		return nil, err
	}
	uc.reportIssues(rootPartnerID, traversal.Issues)

	downline := &domain.Downline{
		Root:      traversal.Root,
		Entries:   make([]*domain.DownlineEntry, 0, len(traversal.Visits)),
		Issues:    traversal.Issues,
		Truncated: traversal.Truncated,
	}
	for _, v := range traversal.Visits {
		downline.Entries = append(downline.Entries, &domain.DownlineEntry{
			Partner:               v.Partner,
			Level:                 v.Level,
			DepthLevel:            v.Partner.Depth - traversal.Root.Depth,
			Volume:                decimal.Zero,
			EarnedFromThisPartner: decimal.Zero,
		})
	}

	if withAggregates {
		uc.fillAggregates(ctx, traversal.Root, downline.Entries)
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, domain.NewTransientError(ctxErr)
	}
	downline.Summary = summarize(downline.Entries)

	uc.Metrics.ObserveDownlineBuild(time.Since(start).Seconds())
	uc.Metrics.ObserveDownlineSize(len(downline.Entries))
	return downline, err
}

func (uc *DefaultHierarchyUsecase) fillAggregates(ctx context.Context, root *domain.PartnerNode, entries []*domain.DownlineEntry) {
	var g errgroup.Group
	g.SetLimit(uc.AggregateWorkers)
	for _, entry := range entries {
		g.Go(func() error {
			volume, earned, err := uc.aggregateFor(ctx, root.ID, entry.Partner.OwnerUserID)
			if err != nil {
				entry.AggregateFailed = true
				uc.Metrics.RecordAggregateFailure()
				uc.Logger.Warn("downline aggregate failed, reporting zero",
					zap.String("root_id", root.ID),
					zap.String("partner_id", entry.Partner.ID),
					zap.Error(err),
				)
				return nil
			}
			entry.Volume = volume
			entry.EarnedFromThisPartner = earned
			return nil
		})
	}
	_ = g.Wait()
}

func (uc *DefaultHierarchyUsecase) aggregateFor(ctx context.Context, rootID, ownerUserID string) (decimal.Decimal, decimal.Decimal, error) {
	volume, err := uc.Store.SumCommissions(ctx, domain.CommissionFilter{SourceUserID: ownerUserID})
	if err != nil {
		return decimal.Zero, decimal.Zero, err
	}
	earned, err := uc.Store.SumCommissions(ctx, domain.CommissionFilter{PartnerID: rootID, SourceUserID: ownerUserID})
	if err != nil {
		return decimal.Zero, decimal.Zero, err
	}
	return volume.Volume, earned.Amount, nil
}

func summarize(entries []*domain.DownlineEntry) domain.DownlineSummary {
	s := domain.DownlineSummary{TotalVolume: decimal.Zero, TotalEarned: decimal.Zero}
	for _, e := range entries {
		s.TotalPartners++
		if e.Level == 1 {
			s.DirectCount++
		}
		s.TotalVolume = s.TotalVolume.Add(e.Volume)
		s.TotalEarned = s.TotalEarned.Add(e.EarnedFromThisPartner)
	}
	return s
}
