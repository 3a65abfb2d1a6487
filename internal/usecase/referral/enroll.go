package referral

import (
	"context"
	"strings"

	"github.com/LavaJover/shvark-ib-service/internal/domain"
	partnerdto "github.com/LavaJover/shvark-ib-service/internal/usecase/dto/partner"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// EnrollReferral places userID under the active partner owning
// referralCode. The new node stays pending until Activate assigns its code.
func (uc *DefaultReferralUsecase) EnrollReferral(ctx context.Context, userID, referralCode string) (*partnerdto.PartnerOutput, error) {
	node, err := uc.enroll(ctx, userID, referralCode)
	uc.Metrics.RecordEnrollment("enroll", resultOf(err))
	if err != nil {
		return nil, err
	}

	uc.Logger.Info("referral enrolled",
		zap.String("partner_id", node.ID),
		zap.String("parent_id", *node.ParentID),
		zap.Int("depth", node.Depth),
	)
	uc.invalidate(ctx, node.ID)
	return partnerdto.ToPartnerOutput(node), nil
}

func (uc *DefaultReferralUsecase) enroll(ctx context.Context, userID, referralCode string) (*domain.PartnerNode, error) {
	userID = strings.TrimSpace(userID)
	referralCode = strings.ToUpper(strings.TrimSpace(referralCode))
	if userID == "" || referralCode == "" {
		return nil, domain.ErrInvalidInput.Withf("user id and referral code are required")
	}

	parent, err := uc.Store.FindPartnerByCode(ctx, referralCode)
	if err != nil {
		return nil, err
	}
	if parent.Status != domain.PartnerActive {
		return nil, domain.ErrParentNotActive
	}

	parentID := parent.ID
	now := uc.Now()
	node := &domain.PartnerNode{
		ID:          uuid.New().String(),
		OwnerUserID: userID,
		ParentID:    &parentID,
		Depth:       parent.Depth + 1,
		Status:      domain.PartnerPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := uc.Store.InsertPartner(ctx, node); err != nil {
		return nil, err
	}
	return node, nil
}
