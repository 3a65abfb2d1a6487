package ledger

import (
	"context"

	"github.com/LavaJover/shvark-ib-service/internal/domain"
	"go.uber.org/zap"
)

// ComputeBalance derives the partner's balance from one consistent read of
// the commission log and the withdrawal records.
func (uc *DefaultLedgerUsecase) ComputeBalance(ctx context.Context, partnerID string) (*domain.Balance, error) {
	if partnerID == "" {
		return nil, domain.ErrInvalidInput.Withf("partner id is required")
	}

	var balance *domain.Balance
	err := uc.Store.ReadSnapshot(ctx, func(tx domain.Store) error {
		if _, err := tx.FindPartnerByID(ctx, partnerID); err != nil {
			return err
		}
		b, err := computeBalance(ctx, tx, partnerID)
		if err != nil {
			return err
		}
		if b.Withdrawable.IsNegative() {
			return domain.ErrNegativeBalance.Withf("partner %s earned %s reserved %s",
				partnerID, b.Earned.String(), b.Reserved.String())
		}
		balance = b
		return nil
	})
	if err != nil {
		uc.reportIntegrity(err, zap.String("partner_id", partnerID))
		return nil, err
	}
	return balance, nil
}

// computeBalance must run inside a snapshot or a partner transaction. The
// result may be negative; only ComputeBalance treats that as a defect.
func computeBalance(ctx context.Context, tx domain.Store, partnerID string) (*domain.Balance, error) {
	earned, err := tx.SumCommissions(ctx, domain.CommissionFilter{PartnerID: partnerID})
	if err != nil {
		return nil, err
	}
	reserved, err := tx.SumWithdrawals(ctx, partnerID, domain.ReservingStatuses)
	if err != nil {
		return nil, err
	}
	settled, err := tx.SumWithdrawals(ctx, partnerID, domain.SettledStatuses)
	if err != nil {
		return nil, err
	}
	return &domain.Balance{
		PartnerID:    partnerID,
		Earned:       earned.Amount,
		Reserved:     reserved,
		Settled:      settled,
		Withdrawable: earned.Amount.Sub(reserved),
	}, nil
}
