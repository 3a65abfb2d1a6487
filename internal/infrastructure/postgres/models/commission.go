package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// CommissionModel rows are appended by ingestion and never updated.
type CommissionModel struct {
	ID           string          `gorm:"primaryKey"`
	PartnerID    string          `gorm:"type:uuid;not null;index:idx_commission_entries_partner_source"`
	SourceUserID string          `gorm:"not null;index:idx_commission_entries_partner_source;index:idx_commission_entries_source"`
	Amount       decimal.Decimal `gorm:"type:numeric(20,8);not null"`
	Volume       decimal.Decimal `gorm:"type:numeric(24,8);not null"`
	CreatedAt    time.Time
}

func (CommissionModel) TableName() string {
	return "commission_entries"
}
