package referral

import (
	"context"
	"strings"

	partnerdto "github.com/LavaJover/shvark-ib-service/internal/usecase/dto/partner"
)

func (uc *DefaultReferralUsecase) GetPartnerByUser(ctx context.Context, userID string) (*partnerdto.PartnerOutput, error) {
	p, err := uc.Store.FindPartnerByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	return partnerdto.ToPartnerOutput(p), nil
}

func (uc *DefaultReferralUsecase) GetPartnerByCode(ctx context.Context, code string) (*partnerdto.PartnerOutput, error) {
	p, err := uc.Store.FindPartnerByCode(ctx, strings.ToUpper(strings.TrimSpace(code)))
	if err != nil {
		return nil, err
	}
	return partnerdto.ToPartnerOutput(p), nil
}

func (uc *DefaultReferralUsecase) GetPartnerByID(ctx context.Context, partnerID string) (*partnerdto.PartnerOutput, error) {
	p, err := uc.Store.FindPartnerByID(ctx, partnerID)
	if err != nil {
		return nil, err
	}
	return partnerdto.ToPartnerOutput(p), nil
}
