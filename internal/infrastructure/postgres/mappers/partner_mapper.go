package mappers

import (
	"github.com/LavaJover/shvark-ib-service/internal/domain"
	"github.com/LavaJover/shvark-ib-service/internal/infrastructure/postgres/models"
)

func ToDomainPartner(model *models.PartnerModel) *domain.PartnerNode {
	p := &domain.PartnerNode{
		ID:             model.ID,
		OwnerUserID:    model.OwnerUserID,
		Depth:          model.Depth,
		Status:         domain.PartnerStatus(model.Status),
		WithdrawnTotal: model.WithdrawnTotal,
		CreatedAt:      model.CreatedAt,
		UpdatedAt:      model.UpdatedAt,
	}
	if model.ReferralCode != nil {
		p.ReferralCode = *model.ReferralCode
	}
	if model.ParentID != nil {
		parentID := *model.ParentID
		p.ParentID = &parentID
	}
	return p
}

func ToGORMPartner(p *domain.PartnerNode) *models.PartnerModel {
	return &models.PartnerModel{
		ID:             p.ID,
		OwnerUserID:    p.OwnerUserID,
		ReferralCode:   optional(p.ReferralCode),
		ParentID:       p.ParentID,
		Depth:          p.Depth,
		Status:         string(p.Status),
		WithdrawnTotal: p.WithdrawnTotal,
		CreatedAt:      p.CreatedAt,
		UpdatedAt:      p.UpdatedAt,
	}
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
