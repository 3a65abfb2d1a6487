package grpcapi

import (
	"context"
	"errors"

	"github.com/LavaJover/shvark-ib-service/internal/domain"
	partnerdto "github.com/LavaJover/shvark-ib-service/internal/usecase/dto/partner"
	withdrawaldto "github.com/LavaJover/shvark-ib-service/internal/usecase/dto/withdrawal"
	"github.com/LavaJover/shvark-ib-service/internal/usecase/hierarchy"
	"github.com/LavaJover/shvark-ib-service/internal/usecase/ledger"
	"github.com/LavaJover/shvark-ib-service/internal/usecase/referral"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type PartnerHandler struct {
	ledgerUc    ledger.LedgerUsecase
	referralUc  referral.ReferralUsecase
	hierarchyUc hierarchy.HierarchyUsecase
	logger      *zap.Logger
}

var _ PartnerServiceServer = (*PartnerHandler)(nil)

func NewPartnerHandler(
	ledgerUc ledger.LedgerUsecase,
	referralUc referral.ReferralUsecase,
	hierarchyUc hierarchy.HierarchyUsecase,
	logger *zap.Logger,
) *PartnerHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PartnerHandler{
		ledgerUc:    ledgerUc,
		referralUc:  referralUc,
		hierarchyUc: hierarchyUc,
		logger:      logger,
	}
}

func (h *PartnerHandler) ComputeBalance(ctx context.Context, r *ComputeBalanceRequest) (*BalanceResponse, error) {
	partnerID := r.PartnerID
	if partnerID == "" {
		if r.UserID == "" {
			return nil, toStatus(h.logger, "ComputeBalance", domain.ErrInvalidInput.Withf("partner_id or user_id is required"))
		}
		partner, err := h.referralUc.GetPartnerByUser(ctx, r.UserID)
		if err != nil {
			return nil, toStatus(h.logger, "ComputeBalance", err)
		}
		partnerID = partner.ID
	}

	balance, err := h.ledgerUc.ComputeBalance(ctx, partnerID)
	if err != nil {
		return nil, toStatus(h.logger, "ComputeBalance", err)
	}
	return &BalanceResponse{Balance: withdrawaldto.ToBalanceOutput(balance)}, nil
}

func (h *PartnerHandler) RequestWithdrawal(ctx context.Context, r *RequestWithdrawalRequest) (*WithdrawalResponse, error) {
	amount, err := decimal.NewFromString(r.Amount)
	if err != nil {
		return nil, toStatus(h.logger, "RequestWithdrawal", domain.ErrInvalidAmount.Withf("%q is not a decimal", r.Amount))
	}

	out, err := h.ledgerUc.RequestWithdrawal(ctx, &withdrawaldto.RequestWithdrawalInput{
		UserID: r.UserID,
		Amount: amount,
		Notes:  r.Notes,
	})
	if err != nil {
		return nil, toStatus(h.logger, "RequestWithdrawal", err)
	}
	return &WithdrawalResponse{Withdrawal: out}, nil
}

func (h *PartnerHandler) ApproveWithdrawal(ctx context.Context, r *ApproveWithdrawalRequest) (*WithdrawalResponse, error) {
	out, err := h.ledgerUc.ApproveWithdrawal(ctx, &withdrawaldto.ApproveWithdrawalInput{
		WithdrawalID:          r.WithdrawalID,
		ReviewerID:            r.ReviewerID,
		Notes:                 r.Notes,
		ExternalTransactionID: r.ExternalTransactionID,
	})
	if err != nil {
		return nil, toStatus(h.logger, "ApproveWithdrawal", err)
	}
	return &WithdrawalResponse{Withdrawal: out}, nil
}

func (h *PartnerHandler) RejectWithdrawal(ctx context.Context, r *RejectWithdrawalRequest) (*WithdrawalResponse, error) {
	out, err := h.ledgerUc.RejectWithdrawal(ctx, &withdrawaldto.RejectWithdrawalInput{
		WithdrawalID: r.WithdrawalID,
		ReviewerID:   r.ReviewerID,
		Reason:       r.Reason,
		Notes:        r.Notes,
	})
	if err != nil {
		return nil, toStatus(h.logger, "RejectWithdrawal", err)
	}
	return &WithdrawalResponse{Withdrawal: out}, nil
}

func (h *PartnerHandler) GetWithdrawal(ctx context.Context, r *GetWithdrawalRequest) (*WithdrawalResponse, error) {
	out, err := h.ledgerUc.GetWithdrawal(ctx, r.WithdrawalID)
	if err != nil {
		return nil, toStatus(h.logger, "GetWithdrawal", err)
	}
	return &WithdrawalResponse{Withdrawal: out}, nil
}

func (h *PartnerHandler) ListWithdrawals(ctx context.Context, r *ListWithdrawalsRequest) (*ListWithdrawalsResponse, error) {
	out, err := h.ledgerUc.ListWithdrawals(ctx, &withdrawaldto.ListWithdrawalsInput{
		PartnerID: r.PartnerID,
		Status:    r.Status,
		Limit:     r.Limit,
	})
	if err != nil {
		return nil, toStatus(h.logger, "ListWithdrawals", err)
	}
	return &ListWithdrawalsResponse{Withdrawals: out}, nil
}

func (h *PartnerHandler) EnrollReferral(ctx context.Context, r *EnrollReferralRequest) (*PartnerResponse, error) {
	out, err := h.referralUc.EnrollReferral(ctx, r.UserID, r.ReferralCode)
	if err != nil {
		return nil, toStatus(h.logger, "EnrollReferral", err)
	}
	return &PartnerResponse{Partner: out}, nil
}

func (h *PartnerHandler) Activate(ctx context.Context, r *ActivateRequest) (*PartnerResponse, error) {
	out, err := h.referralUc.Activate(ctx, r.UserID)
	if err != nil {
		return nil, toStatus(h.logger, "Activate", err)
	}
	return &PartnerResponse{Partner: out}, nil
}

func (h *PartnerHandler) GetPartner(ctx context.Context, r *GetPartnerRequest) (*PartnerResponse, error) {
	var (
		out *partnerdto.PartnerOutput
		err error
	)
	switch {
	case r.PartnerID != "":
		out, err = h.referralUc.GetPartnerByID(ctx, r.PartnerID)
	case r.UserID != "":
		out, err = h.referralUc.GetPartnerByUser(ctx, r.UserID)
	case r.ReferralCode != "":
		out, err = h.referralUc.GetPartnerByCode(ctx, r.ReferralCode)
	default:
		err = domain.ErrInvalidInput.Withf("one of partner_id, user_id or referral_code is required")
	}
	if err != nil {
		return nil, toStatus(h.logger, "GetPartner", err)
	}
	return &PartnerResponse{Partner: out}, nil
}

func (h *PartnerHandler) BuildDownline(ctx context.Context, r *BuildDownlineRequest) (*DownlineResponse, error) {
	downline, err := h.hierarchyUc.BuildDownline(ctx, r.PartnerID, r.WithAggregates)
	if err != nil && !h.partialOnCycle(err, downline != nil, r.PartnerID) {
		return nil, toStatus(h.logger, "BuildDownline", err)
	}
	return &DownlineResponse{Downline: partnerdto.ToDownlineOutput(downline)}, nil
}

func (h *PartnerHandler) BuildDisplayTree(ctx context.Context, r *BuildDisplayTreeRequest) (*DisplayTreeResponse, error) {
	tree, err := h.hierarchyUc.BuildDisplayTree(ctx, r.PartnerID)
	if err != nil && !h.partialOnCycle(err, tree != nil, r.PartnerID) {
		return nil, toStatus(h.logger, "BuildDisplayTree", err)
	}
	return &DisplayTreeResponse{Tree: partnerdto.ToDisplayTreeOutput(tree)}, nil
}

// partialOnCycle reports whether a cycle error should be served as the
// partial result it came with. The issues list tells the caller.
func (h *PartnerHandler) partialOnCycle(err error, hasResult bool, partnerID string) bool {
	if !hasResult || !errors.Is(err, domain.ErrCycleDetected) {
		return false
	}
	h.logger.Warn("serving partial hierarchy after cycle", zap.String("partner_id", partnerID), zap.Error(err))
	return true
}
