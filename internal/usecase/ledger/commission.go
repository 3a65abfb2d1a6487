package ledger

import (
	"context"

	"github.com/LavaJover/shvark-ib-service/internal/domain"
	"go.uber.org/zap"
)

// IngestCommission appends an upstream commission entry. Redelivered entries
// are reported as not added.
func (uc *DefaultLedgerUsecase) IngestCommission(ctx context.Context, entry *domain.CommissionEntry) (bool, error) {
	added, err := uc.ingestCommission(ctx, entry)
	switch {
	case err != nil:
		uc.Metrics.RecordCommissionIngested("rejected")
	case added:
		uc.Metrics.RecordCommissionIngested("appended")
	default:
		uc.Metrics.RecordCommissionIngested("duplicate")
		uc.Logger.Debug("duplicate commission entry ignored", zap.String("commission_id", entry.ID))
	}
	return added, err
}

func (uc *DefaultLedgerUsecase) ingestCommission(ctx context.Context, entry *domain.CommissionEntry) (bool, error) {
	if entry.ID == "" || entry.PartnerID == "" || entry.SourceUserID == "" {
		return false, domain.ErrInvalidInput.Withf("commission entry is missing identifiers")
	}
	if entry.Amount.IsNegative() || entry.Volume.IsNegative() {
		return false, domain.ErrInvalidAmount.Withf("commission %s has a negative amount or volume", entry.ID)
	}
	if _, err := uc.Store.FindPartnerByID(ctx, entry.PartnerID); err != nil {
		return false, err
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = uc.Now()
	}
	return uc.Store.AppendCommission(ctx, entry)
}
