package ledger

import (
	"context"
	"errors"
	"strings"

	"github.com/LavaJover/shvark-ib-service/internal/domain"
	withdrawaldto "github.com/LavaJover/shvark-ib-service/internal/usecase/dto/withdrawal"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// RequestWithdrawal admits a pending withdrawal when the amount fits the
// withdrawable balance at admission time. The balance read and the insert
// run in one partner transaction so two admissions cannot both spend the
// same funds.
func (uc *DefaultLedgerUsecase) RequestWithdrawal(ctx context.Context, input *withdrawaldto.RequestWithdrawalInput) (*withdrawaldto.WithdrawalOutput, error) {
	w, err := uc.requestWithdrawal(ctx, input)
	uc.recordRequested(w, err)
	if err != nil {
		uc.reportIntegrity(err, zap.String("user_id", input.UserID))
		return nil, err
	}

	uc.Logger.Info("withdrawal requested",
		zap.String("partner_id", w.PartnerID),
		zap.String("withdrawal_id", w.ID),
		zap.String("reference", w.Reference),
		zap.String("amount", w.Amount.String()),
	)
	uc.publishAsync(domain.EventWithdrawalRequested, w)
	return withdrawaldto.ToWithdrawalOutput(w), nil
}

func (uc *DefaultLedgerUsecase) requestWithdrawal(ctx context.Context, input *withdrawaldto.RequestWithdrawalInput) (*domain.WithdrawalRequest, error) {
	if !input.Amount.IsPositive() {
		return nil, domain.ErrInvalidAmount
	}
	if strings.TrimSpace(input.UserID) == "" {
		return nil, domain.ErrInvalidInput.Withf("user id is required")
	}

	partner, err := uc.Store.FindPartnerByUser(ctx, input.UserID)
	if err != nil {
		return nil, err
	}

	attempts := uc.ReferenceAttempts
	if attempts <= 0 {
		attempts = defaultReferenceAttempts
	}
	for attempt := 0; attempt < attempts; attempt++ {
		now := uc.Now()
		w := &domain.WithdrawalRequest{
			ID:               uuid.New().String(),
			PartnerID:        partner.ID,
			RequestingUserID: input.UserID,
			Amount:           input.Amount,
			Status:           domain.WithdrawalPending,
			Reference:        uc.References(),
			Notes:            input.Notes,
			CreatedAt:        now,
			UpdatedAt:        now,
		}
		err = uc.Store.WithinPartnerTx(ctx, partner.ID, func(tx domain.Store) error {
			balance, err := computeBalance(ctx, tx, partner.ID)
			if err != nil {
				return err
			}
			if input.Amount.GreaterThan(balance.Withdrawable) {
				return domain.ErrInsufficientBalance.Withf("requested %s, withdrawable %s",
					input.Amount.StringFixed(2), balance.Withdrawable.StringFixed(2))
			}
			return tx.InsertWithdrawal(ctx, w)
		})
		if errors.Is(err, domain.ErrDuplicateReference) {
			uc.Logger.Warn("withdrawal reference collision, retrying", zap.String("reference", w.Reference))
			continue
		}
		if err != nil {
			return nil, err
		}
		return w, nil
	}
	return nil, err
}
