package domain

import (
	"context"

	"github.com/shopspring/decimal"
)

type IntegrityIssueKind string

const (
	IssueCycle          IntegrityIssueKind = "cycle"
	IssueDepthMismatch  IntegrityIssueKind = "depth_mismatch"
	IssueDepthTruncated IntegrityIssueKind = "depth_truncated"
)

type IntegrityIssue struct {
	Kind      IntegrityIssueKind
	PartnerID string
	Detail    string
}

// DownlineEntry is one partner of a downline. Level is the traversal
// distance from the root; DepthLevel is derived from the stored depth.
type DownlineEntry struct {
	Partner               *PartnerNode
	Level                 int
	DepthLevel            int
	Volume                decimal.Decimal
	EarnedFromThisPartner decimal.Decimal
	AggregateFailed       bool
}

type DownlineSummary struct {
	TotalPartners int
	DirectCount   int
	TotalVolume   decimal.Decimal
	TotalEarned   decimal.Decimal
}

type Downline struct {
	Root      *PartnerNode
	Entries   []*DownlineEntry
	Summary   DownlineSummary
	Issues    []IntegrityIssue
	Truncated bool
}

// TreeNode is a display tree node with its level relative to the viewer.
type TreeNode struct {
	Partner  *PartnerNode `json:"partner"`
	Level    int          `json:"level"`
	Children []*TreeNode  `json:"children"`
}

type DisplayTree struct {
	Root      *TreeNode        `json:"root"`
	Issues    []IntegrityIssue `json:"issues,omitempty"`
	Truncated bool             `json:"truncated"`
}

// TreeCache keeps recently built display trees. Implementations may drop
// entries at any time.
type TreeCache interface {
	GetTree(ctx context.Context, partnerID string) (*DisplayTree, bool, error)
	PutTree(ctx context.Context, partnerID string, tree *DisplayTree) error
	Invalidate(ctx context.Context, partnerIDs ...string) error
}
