package publisher

import (
	"time"

	"github.com/LavaJover/shvark-ib-service/internal/domain"
	"github.com/shopspring/decimal"
)

// CommissionEvent is the upstream trading pipeline's record of a commission
// credited to a partner.
type CommissionEvent struct {
	CommissionID string          `json:"commission_id"`
	PartnerID    string          `json:"partner_id"`
	SourceUserID string          `json:"source_user_id"`
	Amount       decimal.Decimal `json:"amount"`
	Volume       decimal.Decimal `json:"volume"`
	CreatedAt    time.Time       `json:"created_at"`
}

func (e CommissionEvent) ToDomain() *domain.CommissionEntry {
	return &domain.CommissionEntry{
		ID:           e.CommissionID,
		PartnerID:    e.PartnerID,
		SourceUserID: e.SourceUserID,
		Amount:       e.Amount,
		Volume:       e.Volume,
		CreatedAt:    e.CreatedAt.UTC(),
	}
}
