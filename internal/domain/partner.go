package domain

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

type PartnerStatus string

const (
	PartnerPending PartnerStatus = "pending"
	PartnerActive  PartnerStatus = "active"
)

// PartnerNode is one enrolled referrer. Depth is a creation-time snapshot
// of parent depth + 1 and is never recomputed.
type PartnerNode struct {
	ID             string
	OwnerUserID    string
	ReferralCode   string
	ParentID       *string
	Depth          int
	Status         PartnerStatus
	WithdrawnTotal decimal.Decimal
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

func (p *PartnerNode) IsRoot() bool {
	return p.ParentID == nil
}

func (p *PartnerNode) Clone() *PartnerNode {
	if p == nil {
		return nil
	}
	cp := *p
	if p.ParentID != nil {
		parentID := *p.ParentID
		cp.ParentID = &parentID
	}
	return &cp
}

type PartnerReader interface {
	FindPartnerByID(ctx context.Context, partnerID string) (*PartnerNode, error)
	FindPartnerByUser(ctx context.Context, userID string) (*PartnerNode, error)
	FindPartnerByCode(ctx context.Context, code string) (*PartnerNode, error)
	// FindChildren returns direct children ordered by creation time.
	FindChildren(ctx context.Context, partnerID string) ([]*PartnerNode, error)
}

type PartnerRepository interface {
	PartnerReader
	// InsertPartner fails with ErrDuplicateCode when the code is taken and
	// ErrAlreadyEnrolled when the owner already has a node.
	InsertPartner(ctx context.Context, partner *PartnerNode) error
	// ActivatePartner assigns code to a pending node that has none.
	// Fails with ErrStaleStatus if the node is not pending any more.
	ActivatePartner(ctx context.Context, partnerID, code string) error
	// DebitPartner adds amount to WithdrawnTotal only if the stored total
	// still equals expectedTotal.
	DebitPartner(ctx context.Context, partnerID string, amount, expectedTotal decimal.Decimal) error
}
