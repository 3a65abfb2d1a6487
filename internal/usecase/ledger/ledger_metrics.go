package ledger

import (
	"github.com/LavaJover/shvark-ib-service/internal/domain"
	"go.uber.org/zap"
)

// reportIntegrity logs and counts integrity failures. Other kinds are left
// to the caller.
func (uc *DefaultLedgerUsecase) reportIntegrity(err error, fields ...zap.Field) {
	if domain.KindOf(err) != domain.KindIntegrity {
		return
	}
	code := domain.CodeOf(err)
	uc.Metrics.RecordIntegrityViolation(code)
	uc.Logger.Error("ledger integrity violation", append(fields, zap.String("code", code), zap.Error(err))...)
}

func outcomeOf(err error) string {
	if err == nil {
		return "accepted"
	}
	return domain.CodeOf(err)
}

func (uc *DefaultLedgerUsecase) recordRequested(w *domain.WithdrawalRequest, err error) {
	if uc.Metrics == nil {
		return
	}
	amount := 0.0
	if w != nil {
		amount = w.Amount.InexactFloat64()
	}
	uc.Metrics.RecordWithdrawalRequested(outcomeOf(err), amount)
}

func (uc *DefaultLedgerUsecase) recordDecision(decision string, w *domain.WithdrawalRequest, err error) {
	if uc.Metrics == nil {
		return
	}
	uc.Metrics.RecordDecision(decision, outcomeOf(err))
	if err == nil && w != nil {
		uc.Metrics.RecordDecidedAmount(string(w.Status), w.Amount.InexactFloat64())
	}
}
