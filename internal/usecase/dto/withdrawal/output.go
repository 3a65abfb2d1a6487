package withdrawaldto

import (
	"time"

	"github.com/LavaJover/shvark-ib-service/internal/domain"
)

type WithdrawalOutput struct {
	ID                    string     `json:"id"`
	PartnerID             string     `json:"partner_id"`
	RequestingUserID      string     `json:"requesting_user_id"`
	Amount                string     `json:"amount"`
	Status                string     `json:"status"`
	Reference             string     `json:"reference"`
	ReviewerID            string     `json:"reviewer_id,omitempty"`
	ReviewedAt            *time.Time `json:"reviewed_at,omitempty"`
	RejectionReason       string     `json:"rejection_reason,omitempty"`
	Notes                 string     `json:"notes,omitempty"`
	ExternalTransactionID string     `json:"external_transaction_id,omitempty"`
	CreatedAt             time.Time  `json:"created_at"`
}

func ToWithdrawalOutput(w *domain.WithdrawalRequest) *WithdrawalOutput {
	return &WithdrawalOutput{
		ID:                    w.ID,
		PartnerID:             w.PartnerID,
		RequestingUserID:      w.RequestingUserID,
		Amount:                w.Amount.StringFixed(2),
		Status:                string(w.Status),
		Reference:             w.Reference,
		ReviewerID:            w.ReviewerID,
		ReviewedAt:            w.ReviewedAt,
		RejectionReason:       w.RejectionReason,
		Notes:                 w.Notes,
		ExternalTransactionID: w.ExternalTransactionID,
		CreatedAt:             w.CreatedAt,
	}
}

type BalanceOutput struct {
	PartnerID    string `json:"partner_id"`
	Earned       string `json:"earned"`
	Reserved     string `json:"reserved"`
	Withdrawable string `json:"withdrawable"`
}

func ToBalanceOutput(b *domain.Balance) *BalanceOutput {
	return &BalanceOutput{
		PartnerID:    b.PartnerID,
		Earned:       b.Earned.StringFixed(2),
		Reserved:     b.Reserved.StringFixed(2),
		Withdrawable: b.Withdrawable.StringFixed(2),
	}
}

type BacklogOutput struct {
	Count           int                 `json:"count"`
	StaleCount      int                 `json:"stale_count"`
	OldestCreatedAt *time.Time          `json:"oldest_created_at,omitempty"`
	Stale           []*WithdrawalOutput `json:"stale"`
}
