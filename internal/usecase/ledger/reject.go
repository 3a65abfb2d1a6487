package ledger

import (
	"context"
	"errors"
	"strings"

	"github.com/LavaJover/shvark-ib-service/internal/domain"
	withdrawaldto "github.com/LavaJover/shvark-ib-service/internal/usecase/dto/withdrawal"
	"go.uber.org/zap"
)

// RejectWithdrawal releases the reservation of a pending request. No balance
// effect is written; rejected requests drop out of the reserved sum.
func (uc *DefaultLedgerUsecase) RejectWithdrawal(ctx context.Context, input *withdrawaldto.RejectWithdrawalInput) (*withdrawaldto.WithdrawalOutput, error) {
	w, err := uc.rejectWithdrawal(ctx, input)
	uc.recordDecision("reject", w, err)
	if err != nil {
		return nil, err
	}

	uc.Logger.Info("withdrawal rejected",
		zap.String("partner_id", w.PartnerID),
		zap.String("withdrawal_id", w.ID),
		zap.String("reviewer_id", w.ReviewerID),
		zap.String("reason", w.RejectionReason),
	)
	uc.publishAsync(domain.EventWithdrawalRejected, w)
	return withdrawaldto.ToWithdrawalOutput(w), nil
}

func (uc *DefaultLedgerUsecase) rejectWithdrawal(ctx context.Context, input *withdrawaldto.RejectWithdrawalInput) (*domain.WithdrawalRequest, error) {
	reason := strings.TrimSpace(input.Reason)
	if reason == "" {
		return nil, domain.ErrMissingReason
	}
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
		Status:          domain.WithdrawalRejected,
		ReviewerID:      input.ReviewerID,
		ReviewedAt:      uc.Now(),
		RejectionReason: reason,
		Notes:           input.Notes,
	}
	if err := uc.Store.UpdateWithdrawal(ctx, current.ID, decision, domain.WithdrawalPending); err != nil {
		if errors.Is(err, domain.ErrStaleStatus) {
			return nil, domain.ErrInvalidStateTransition.Wrap(err)
		}
		return nil, err
	}
	return uc.Store.GetWithdrawal(ctx, current.ID)
}
