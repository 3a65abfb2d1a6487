package domain

import "context"

// Store is the shared durable store behind the ledger core. It is the only
// shared mutable resource; workers never hold in-process global locks.
type Store interface {
	PartnerRepository
	CommissionLedger
	WithdrawalRepository

	// WithinPartnerTx runs fn as one atomic unit isolated per partner:
	// concurrent units for the same partner are serialized and nothing fn
	// wrote is visible unless fn returns nil.
	WithinPartnerTx(ctx context.Context, partnerID string, fn func(tx Store) error) error

	// ReadSnapshot runs fn against a single consistent view of the store.
	ReadSnapshot(ctx context.Context, fn func(tx Store) error) error
}
