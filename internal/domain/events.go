package domain

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

const (
	EventWithdrawalRequested = "withdrawal.requested"
	EventWithdrawalApproved  = "withdrawal.approved"
	EventWithdrawalRejected  = "withdrawal.rejected"
)

type WithdrawalEvent struct {
	EventType    string          `json:"event_type"`
	WithdrawalID string          `json:"withdrawal_id"`
	PartnerID    string          `json:"partner_id"`
	Reference    string          `json:"reference"`
	Amount       decimal.Decimal `json:"amount"`
	Status       string          `json:"status"`
	ReviewerID   string          `json:"reviewer_id,omitempty"`
	Reason       string          `json:"reason,omitempty"`
	OccurredAt   time.Time       `json:"occurred_at"`
}

type WithdrawalEventPublisher interface {
	PublishWithdrawal(ctx context.Context, event WithdrawalEvent) error
}
