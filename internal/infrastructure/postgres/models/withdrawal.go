package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type WithdrawalModel struct {
	ID                    string          `gorm:"primaryKey;type:uuid"`
	PartnerID             string          `gorm:"type:uuid;not null;index:idx_withdrawal_requests_partner_status"`
	RequestingUserID      string          `gorm:"not null"`
	Amount                decimal.Decimal `gorm:"type:numeric(20,8);not null"`
	Status                string          `gorm:"not null;index:idx_withdrawal_requests_partner_status"`
	Reference             string          `gorm:"not null;uniqueIndex:uq_withdrawal_requests_reference"`
	ReviewerID            *string
	ReviewedAt            *time.Time
	RejectionReason       *string
	Notes                 string
	ExternalTransactionID *string
	CreatedAt             time.Time
	UpdatedAt             time.Time
}

func (WithdrawalModel) TableName() string {
	return "withdrawal_requests"
}
