package domain

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

type WithdrawalStatus string

const (
	WithdrawalPending   WithdrawalStatus = "pending"
	WithdrawalApproved  WithdrawalStatus = "approved"
	WithdrawalRejected  WithdrawalStatus = "rejected"
	WithdrawalCompleted WithdrawalStatus = "completed"
)

// ReservingStatuses hold funds out of the withdrawable balance.
var ReservingStatuses = []WithdrawalStatus{WithdrawalPending, WithdrawalApproved, WithdrawalCompleted}

// SettledStatuses are the statuses whose amount has been debited.
var SettledStatuses = []WithdrawalStatus{WithdrawalApproved, WithdrawalCompleted}

func (s WithdrawalStatus) Valid() bool {
	switch s {
	case WithdrawalPending, WithdrawalApproved, WithdrawalRejected, WithdrawalCompleted:
		return true
	}
	return false
}

type WithdrawalRequest struct {
	ID                    string
	PartnerID             string
	RequestingUserID      string
	Amount                decimal.Decimal
	Status                WithdrawalStatus
	Reference             string
	ReviewerID            string
	ReviewedAt            *time.Time
	RejectionReason       string
	Notes                 string
	ExternalTransactionID string
	CreatedAt             time.Time
	UpdatedAt             time.Time
}

func (w *WithdrawalRequest) Clone() *WithdrawalRequest {
	if w == nil {
		return nil
	}
	cp := *w
	if w.ReviewedAt != nil {
		at := *w.ReviewedAt
		cp.ReviewedAt = &at
	}
	return &cp
}

// WithdrawalDecision is the patch applied by approve/reject.
type WithdrawalDecision struct {
	Status                WithdrawalStatus
	ReviewerID            string
	ReviewedAt            time.Time
	RejectionReason       string
	Notes                 string
	ExternalTransactionID string
}

type WithdrawalFilter struct {
	PartnerID string
	Status    WithdrawalStatus
	// CreatedBefore, when set, keeps only requests created strictly earlier.
	CreatedBefore time.Time
	// OldestFirst orders by creation ascending instead of newest first.
	OldestFirst bool
	Limit       int
}

// WithdrawalBacklog summarises every request in one status, uncapped.
type WithdrawalBacklog struct {
	Count           int
	StaleCount      int
	OldestCreatedAt *time.Time
}

type WithdrawalRepository interface {
	// InsertWithdrawal fails with ErrDuplicateReference on a reference clash.
	InsertWithdrawal(ctx context.Context, w *WithdrawalRequest) error
	GetWithdrawal(ctx context.Context, withdrawalID string) (*WithdrawalRequest, error)
	// UpdateWithdrawal applies decision only while the stored status equals
	// expected, otherwise it fails with ErrStaleStatus.
	UpdateWithdrawal(ctx context.Context, withdrawalID string, decision WithdrawalDecision, expected WithdrawalStatus) error
	SumWithdrawals(ctx context.Context, partnerID string, statuses []WithdrawalStatus) (decimal.Decimal, error)
	ListWithdrawals(ctx context.Context, filter WithdrawalFilter) ([]*WithdrawalRequest, error)
	// WithdrawalBacklog counts requests in status; StaleCount covers those
	// created before staleBefore.
	WithdrawalBacklog(ctx context.Context, status WithdrawalStatus, staleBefore time.Time) (WithdrawalBacklog, error)
}
