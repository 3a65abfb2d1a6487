package partnerdto

import (
	"time"

	"github.com/LavaJover/shvark-ib-service/internal/domain"
)

type PartnerOutput struct {
	ID           string    `json:"id"`
	OwnerUserID  string    `json:"owner_user_id"`
	ReferralCode string    `json:"referral_code,omitempty"`
	ParentID     string    `json:"parent_id,omitempty"`
	Depth        int       `json:"depth"`
	Status       string    `json:"status"`
	CreatedAt    time.Time `json:"created_at"`
}

func ToPartnerOutput(p *domain.PartnerNode) *PartnerOutput {
	out := &PartnerOutput{
		ID:           p.ID,
		OwnerUserID:  p.OwnerUserID,
		ReferralCode: p.ReferralCode,
		Depth:        p.Depth,
		Status:       string(p.Status),
		CreatedAt:    p.CreatedAt,
	}
	if p.ParentID != nil {
		out.ParentID = *p.ParentID
	}
	return out
}

type DownlineEntryOutput struct {
	Partner               *PartnerOutput `json:"partner"`
	Level                 int            `json:"level"`
	Volume                string         `json:"volume"`
	EarnedFromThisPartner string         `json:"earned_from_this_partner"`
	AggregateFailed       bool           `json:"aggregate_failed,omitempty"`
}

type DownlineSummaryOutput struct {
	TotalPartners int    `json:"total_partners"`
	DirectCount   int    `json:"direct_count"`
	TotalVolume   string `json:"total_volume"`
	TotalEarned   string `json:"total_earned"`
}

type IntegrityIssueOutput struct {
	Kind      string `json:"kind"`
	PartnerID string `json:"partner_id"`
	Detail    string `json:"detail"`
}

type DownlineOutput struct {
	RootID    string                 `json:"root_id"`
	Entries   []*DownlineEntryOutput `json:"entries"`
	Summary   DownlineSummaryOutput  `json:"summary"`
	Issues    []IntegrityIssueOutput `json:"issues,omitempty"`
	Truncated bool                   `json:"truncated"`
}

func ToDownlineOutput(d *domain.Downline) *DownlineOutput {
	out := &DownlineOutput{
		RootID:    d.Root.ID,
		Entries:   make([]*DownlineEntryOutput, 0, len(d.Entries)),
		Truncated: d.Truncated,
		Summary: DownlineSummaryOutput{
			TotalPartners: d.Summary.TotalPartners,
			DirectCount:   d.Summary.DirectCount,
			TotalVolume:   d.Summary.TotalVolume.StringFixed(2),
			TotalEarned:   d.Summary.TotalEarned.StringFixed(2),
		},
	}
	for _, e := range d.Entries {
		out.Entries = append(out.Entries, &DownlineEntryOutput{
			Partner:               ToPartnerOutput(e.Partner),
			Level:                 e.Level,
			Volume:                e.Volume.StringFixed(2),
			EarnedFromThisPartner: e.EarnedFromThisPartner.StringFixed(2),
			AggregateFailed:       e.AggregateFailed,
		})
	}
	out.Issues = ToIssueOutputs(d.Issues)
	return out
}

func ToIssueOutputs(issues []domain.IntegrityIssue) []IntegrityIssueOutput {
	var out []IntegrityIssueOutput
	for _, is := range issues {
		out = append(out, IntegrityIssueOutput{Kind: string(is.Kind), PartnerID: is.PartnerID, Detail: is.Detail})
	}
	return out
}

type TreeNodeOutput struct {
	Partner  *PartnerOutput    `json:"partner"`
	Level    int               `json:"level"`
	Children []*TreeNodeOutput `json:"children"`
}

type DisplayTreeOutput struct {
	Root      *TreeNodeOutput        `json:"root"`
	Issues    []IntegrityIssueOutput `json:"issues,omitempty"`
	Truncated bool                   `json:"truncated"`
}

func ToDisplayTreeOutput(t *domain.DisplayTree) *DisplayTreeOutput {
	return &DisplayTreeOutput{
		Root:      toTreeNodeOutput(t.Root),
		Issues:    ToIssueOutputs(t.Issues),
		Truncated: t.Truncated,
	}
}

func toTreeNodeOutput(n *domain.TreeNode) *TreeNodeOutput {
	out := &TreeNodeOutput{
		Partner:  ToPartnerOutput(n.Partner),
		Level:    n.Level,
		Children: make([]*TreeNodeOutput, 0, len(n.Children)),
	}
	for _, c := range n.Children {
		out.Children = append(out.Children, toTreeNodeOutput(c))
	}
	return out
}
