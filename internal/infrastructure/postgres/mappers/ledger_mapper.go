package mappers

import (
	"github.com/LavaJover/shvark-ib-service/internal/domain"
	"github.com/LavaJover/shvark-ib-service/internal/infrastructure/postgres/models"
)

func ToGORMCommission(e *domain.CommissionEntry) *models.CommissionModel {
	return &models.CommissionModel{
		ID:           e.ID,
		PartnerID:    e.PartnerID,
		SourceUserID: e.SourceUserID,
		Amount:       e.Amount,
		Volume:       e.Volume,
		CreatedAt:    e.CreatedAt,
	}
}

func ToDomainWithdrawal(model *models.WithdrawalModel) *domain.WithdrawalRequest {
	return &domain.WithdrawalRequest{
		ID:                    model.ID,
		PartnerID:             model.PartnerID,
		RequestingUserID:      model.RequestingUserID,
		Amount:                model.Amount,
		Status:                domain.WithdrawalStatus(model.Status),
		Reference:             model.Reference,
		ReviewerID:            deref(model.ReviewerID),
		ReviewedAt:            model.ReviewedAt,
		RejectionReason:       deref(model.RejectionReason),
		Notes:                 model.Notes,
		ExternalTransactionID: deref(model.ExternalTransactionID),
		CreatedAt:             model.CreatedAt,
		UpdatedAt:             model.UpdatedAt,
	}
}

func ToGORMWithdrawal(w *domain.WithdrawalRequest) *models.WithdrawalModel {
	return &models.WithdrawalModel{
		ID:                    w.ID,
		PartnerID:             w.PartnerID,
		RequestingUserID:      w.RequestingUserID,
		Amount:                w.Amount,
		Status:                string(w.Status),
		Reference:             w.Reference,
		ReviewerID:            optional(w.ReviewerID),
		ReviewedAt:            w.ReviewedAt,
		RejectionReason:       optional(w.RejectionReason),
		Notes:                 w.Notes,
		ExternalTransactionID: optional(w.ExternalTransactionID),
		CreatedAt:             w.CreatedAt,
		UpdatedAt:             w.UpdatedAt,
	}
}
