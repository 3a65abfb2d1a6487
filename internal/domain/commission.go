package domain

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// CommissionEntry is written by the upstream trading pipeline and never
// mutated afterwards.
type CommissionEntry struct {
	ID           string
	PartnerID    string
	SourceUserID string
	Amount       decimal.Decimal
	Volume       decimal.Decimal
	CreatedAt    time.Time
}

type CommissionFilter struct {
	PartnerID    string
	SourceUserID string
}

type CommissionTotals struct {
	Amount decimal.Decimal
	Volume decimal.Decimal
}

type CommissionLedger interface {
	SumCommissions(ctx context.Context, filter CommissionFilter) (CommissionTotals, error)
	// AppendCommission reports false when an entry with the same ID exists.
	AppendCommission(ctx context.Context, entry *CommissionEntry) (bool, error)
}
