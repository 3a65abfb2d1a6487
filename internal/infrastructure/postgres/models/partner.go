package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type PartnerModel struct {
	ID             string          `gorm:"primaryKey;type:uuid"`
	OwnerUserID    string          `gorm:"not null;uniqueIndex:uq_partner_nodes_owner_user_id"`
	ReferralCode   *string         `gorm:"size:16;uniqueIndex:uq_partner_nodes_referral_code"`
	ParentID       *string         `gorm:"type:uuid;index:idx_partner_nodes_parent"`
	Depth          int             `gorm:"not null"`
	Status         string          `gorm:"not null"`
	WithdrawnTotal decimal.Decimal `gorm:"type:numeric(20,8);not null;default:0"`
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

func (PartnerModel) TableName() string {
	return "partner_nodes"
}
