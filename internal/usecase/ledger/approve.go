package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/LavaJover/shvark-ib-service/internal/domain"
	withdrawaldto "github.com/LavaJover/shvark-ib-service/internal/usecase/dto/withdrawal"
	"go.uber.org/zap"
)

// ApproveWithdrawal re-validates the balance and applies the status change
// together with the partner debit. Either both commit or neither does; a
// failed debit leaves the request pending.
func (uc *DefaultLedgerUsecase) ApproveWithdrawal(ctx context.Context, input *withdrawaldto.ApproveWithdrawalInput) (*withdrawaldto.WithdrawalOutput, error) {
	start := time.Now()
	w, err := uc.approveWithdrawal(ctx, input)
	uc.recordDecision("approve", w, err)
	if err != nil {
		uc.reportIntegrity(err, zap.String("withdrawal_id", input.WithdrawalID))
		return nil, err
	}
	uc.Metrics.ObserveApprove(time.Since(start).Seconds())

	uc.Logger.Info("withdrawal approved",
		zap.String("partner_id", w.PartnerID),
		zap.String("withdrawal_id", w.ID),
		zap.String("reviewer_id", w.ReviewerID),
		zap.String("amount", w.Amount.String()),
	)
	uc.publishAsync(domain.EventWithdrawalApproved, w)
	return withdrawaldto.ToWithdrawalOutput(w), nil
}

func (uc *DefaultLedgerUsecase) approveWithdrawal(ctx context.Context, input *withdrawaldto.ApproveWithdrawalInput) (*domain.WithdrawalRequest, error) {
	if input.WithdrawalID == "" || input.ReviewerID == "" {
		return nil, domain.ErrInvalidInput.Withf("withdrawal id and reviewer id are required")
	}

	current, err := uc.Store.GetWithdrawal(ctx, input.WithdrawalID)
	if err != nil {
		return nil, err
	}
	if current.Status != domain.WithdrawalPending {
		return nil, domain.ErrInvalidStateTransition.Withf("withdrawal %s is %s", current.ID, current.Status)
	}

	decision := domain.WithdrawalDecision{
		Status:                domain.WithdrawalApproved,
		ReviewerID:            input.ReviewerID,
		ReviewedAt:            uc.Now(),
		Notes:                 input.Notes,
		ExternalTransactionID: input.ExternalTransactionID,
	}

	var approved *domain.WithdrawalRequest
	err = uc.Store.WithinPartnerTx(ctx, current.PartnerID, func(tx domain.Store) error {
		w, err := tx.GetWithdrawal(ctx, input.WithdrawalID)
		if err != nil {
			return err
		}
		if w.Status != domain.WithdrawalPending {
			return domain.ErrInvalidStateTransition.Withf("withdrawal %s is %s", w.ID, w.Status)
		}
		partner, err := tx.FindPartnerByID(ctx, w.PartnerID)
		if err != nil {
			return err
		}
		balance, err := computeBalance(ctx, tx, w.PartnerID)
		if err != nil {
			return err
		}
		if !partner.WithdrawnTotal.Equal(balance.Settled) {
			return domain.ErrBalanceDrift.Withf("partner %s debited %s, settled withdrawals %s",
				partner.ID, partner.WithdrawnTotal.String(), balance.Settled.String())
		}
		if w.Amount.GreaterThan(balance.Settleable()) {
			return domain.ErrInsufficientBalance.Withf("approving %s, available %s",
				w.Amount.StringFixed(2), balance.Settleable().StringFixed(2))
		}

		if err := tx.UpdateWithdrawal(ctx, w.ID, decision, domain.WithdrawalPending); err != nil {
			if errors.Is(err, domain.ErrStaleStatus) {
				return domain.ErrInvalidStateTransition.Wrap(err)
			}
			return err
		}
		if err := tx.DebitPartner(ctx, partner.ID, w.Amount, partner.WithdrawnTotal); err != nil {
			return err
		}

		approved, err = tx.GetWithdrawal(ctx, w.ID)
		return err
	})
	if err != nil {
		return nil, uc.decidedElsewhere(ctx, input.WithdrawalID, err)
	}
	return approved, nil
}

// decidedElsewhere reports a stale-status failure as an invalid transition
// when the request has meanwhile left pending.
func (uc *DefaultLedgerUsecase) decidedElsewhere(ctx context.Context, withdrawalID string, err error) error {
	if !errors.Is(err, domain.ErrStaleStatus) || errors.Is(err, domain.ErrInvalidStateTransition) {
		return err
	}
	latest, getErr := uc.Store.GetWithdrawal(ctx, withdrawalID)
	if getErr != nil || latest.Status == domain.WithdrawalPending {
		return err
	}
	return domain.ErrInvalidStateTransition.Wrap(err)
}
