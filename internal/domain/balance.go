package domain

import "github.com/shopspring/decimal"

// Balance is a partner's ledger position derived from the commission log
// and the withdrawal records.
type Balance struct {
	PartnerID    string
	Earned       decimal.Decimal
	Reserved     decimal.Decimal
	Settled      decimal.Decimal
	Withdrawable decimal.Decimal
}

// Settleable is what an approval may still debit: earned minus what has
// already been approved or completed. Pending reservations are excluded
// because the request being approved is one of them.
func (b Balance) Settleable() decimal.Decimal {
	return b.Earned.Sub(b.Settled)
}
