package ledger

import (
	"context"

	"github.com/LavaJover/shvark-ib-service/internal/domain"
	"go.uber.org/zap"
)

// publishAsync hands the event to the publisher off the request path. A
// failed publish is logged and never undoes the committed transition.
func (uc *DefaultLedgerUsecase) publishAsync(eventType string, w *domain.WithdrawalRequest) {
	if uc.Publisher == nil {
		return
	}
	event := domain.WithdrawalEvent{
		EventType:    eventType,
		WithdrawalID: w.ID,
		PartnerID:    w.PartnerID,
		Reference:    w.Reference,
		Amount:       w.Amount,
		Status:       string(w.Status),
		ReviewerID:   w.ReviewerID,
		Reason:       w.RejectionReason,
		OccurredAt:   uc.Now(),
	}
	go func(event domain.WithdrawalEvent) {
		if err := uc.Publisher.PublishWithdrawal(context.Background(), event); err != nil {
			uc.Logger.Error("failed to publish withdrawal event",
				zap.String("event_type", event.EventType),
				zap.String("withdrawal_id", event.WithdrawalID),
				zap.Error(err),
			)
		}
	}(event)
}
