package referral

import (
	"context"
	"errors"
	"strings"

	"github.com/LavaJover/shvark-ib-service/internal/domain"
	partnerdto "github.com/LavaJover/shvark-ib-service/internal/usecase/dto/partner"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Activate gives userID exactly one referral code. A user without a node
// becomes an active root; a pending node gets its code and turns active; an
// active node is refused with ErrAlreadyActive.
func (uc *DefaultReferralUsecase) Activate(ctx context.Context, userID string) (*partnerdto.PartnerOutput, error) {
	node, err := uc.activate(ctx, strings.TrimSpace(userID))
	uc.Metrics.RecordEnrollment("activate", resultOf(err))
	if err != nil {
		if errors.Is(err, domain.ErrCodeSpaceExhausted) {
			uc.Metrics.RecordIntegrityViolation(domain.ErrCodeSpaceExhausted.Code)
			uc.Logger.Error("referral code generation exhausted", zap.String("user_id", userID), zap.Error(err))
		}
		return nil, err
	}

	uc.Logger.Info("partner activated",
		zap.String("partner_id", node.ID),
		zap.String("referral_code", node.ReferralCode),
	)
	uc.invalidate(ctx, node.ID)
	return partnerdto.ToPartnerOutput(node), nil
}

func (uc *DefaultReferralUsecase) activate(ctx context.Context, userID string) (*domain.PartnerNode, error) {
	if userID == "" {
		return nil, domain.ErrInvalidInput.Withf("user id is required")
	}

	for attempt := 0; attempt < uc.CodeAttempts; attempt++ {
		node, err := uc.Store.FindPartnerByUser(ctx, userID)
		switch {
		case errors.Is(err, domain.ErrNoHierarchyRecord):
			node = nil
		case err != nil:
			return nil, err
		case node.Status == domain.PartnerActive:
			return nil, domain.ErrAlreadyActive
		}

		code := uc.Codes()
		if _, err := uc.Store.FindPartnerByCode(ctx, code); err == nil {
			continue
		} else if !errors.Is(err, domain.ErrReferralCodeNotFound) {
			return nil, err
		}

		if node == nil {
			node, err = uc.insertRoot(ctx, userID, code)
		} else {
			err = uc.Store.ActivatePartner(ctx, node.ID, code)
		}
		switch {
		case err == nil:
			return uc.Store.FindPartnerByUser(ctx, userID)
		case errors.Is(err, domain.ErrDuplicateCode):
			uc.Logger.Warn("referral code collision, retrying", zap.String("code", code))
			continue
		case errors.Is(err, domain.ErrAlreadyEnrolled), errors.Is(err, domain.ErrStaleStatus):
			// a concurrent enrollment or activation won; re-read and decide again
			continue
		default:
			return nil, err
		}
	}
	return nil, domain.ErrCodeSpaceExhausted.Withf("%d attempts", uc.CodeAttempts)
}

func (uc *DefaultReferralUsecase) insertRoot(ctx context.Context, userID, code string) (*domain.PartnerNode, error) {
	now := uc.Now()
	node := &domain.PartnerNode{
		ID:           uuid.New().String(),
		OwnerUserID:  userID,
		ReferralCode: code,
		Depth:        0,
		Status:       domain.PartnerActive,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	return node, uc.Store.InsertPartner(ctx, node)
}
