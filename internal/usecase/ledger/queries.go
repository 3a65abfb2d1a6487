package ledger

import (
	"context"
	"time"

	"github.com/LavaJover/shvark-ib-service/internal/domain"
	withdrawaldto "github.com/LavaJover/shvark-ib-service/internal/usecase/dto/withdrawal"
)

const maxListLimit = 500

func (uc *DefaultLedgerUsecase) GetWithdrawal(ctx context.Context, withdrawalID string) (*withdrawaldto.WithdrawalOutput, error) {
	w, err := uc.Store.GetWithdrawal(ctx, withdrawalID)
	if err != nil {
		return nil, err
	}
	return withdrawaldto.ToWithdrawalOutput(w), nil
}

func (uc *DefaultLedgerUsecase) ListWithdrawals(ctx context.Context, input *withdrawaldto.ListWithdrawalsInput) ([]*withdrawaldto.WithdrawalOutput, error) {
	filter := domain.WithdrawalFilter{
		PartnerID: input.PartnerID,
		Status:    domain.WithdrawalStatus(input.Status),
		Limit:     input.Limit,
	}
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, domain.ErrInvalidInput.Withf("unknown status %q", input.Status)
	}
	if filter.Limit <= 0 || filter.Limit > maxListLimit {
		filter.Limit = maxListLimit
	}

	list, err := uc.Store.ListWithdrawals(ctx, filter)
	if err != nil {
		return nil, err
	}
	out := make([]*withdrawaldto.WithdrawalOutput, 0, len(list))
	for _, w := range list {
		out = append(out, withdrawaldto.ToWithdrawalOutput(w))
	}
	return out, nil
}

// PendingBacklog counts every pending request and lists the oldest of those
// created before staleBefore, up to the list limit.
func (uc *DefaultLedgerUsecase) PendingBacklog(ctx context.Context, staleBefore time.Time) (*withdrawaldto.BacklogOutput, error) {
	out := &withdrawaldto.BacklogOutput{}
	err := uc.Store.ReadSnapshot(ctx, func(tx domain.Store) error {
		backlog, err := tx.WithdrawalBacklog(ctx, domain.WithdrawalPending, staleBefore)
		if err != nil {
			return err
		}
		out.Count = backlog.Count
		out.StaleCount = backlog.StaleCount
		out.OldestCreatedAt = backlog.OldestCreatedAt
		if backlog.StaleCount == 0 {
			return nil
		}

		stale, err := tx.ListWithdrawals(ctx, domain.WithdrawalFilter{
			Status:        domain.WithdrawalPending,
			CreatedBefore: staleBefore,
			OldestFirst:   true,
			Limit:         maxListLimit,
		})
		if err != nil {
			return err
		}
		out.Stale = make([]*withdrawaldto.WithdrawalOutput, 0, len(stale))
		for _, w := range stale {
			out.Stale = append(out.Stale, withdrawaldto.ToWithdrawalOutput(w))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
