package grpcapi

import (
	partnerdto "github.com/LavaJover/shvark-ib-service/internal/usecase/dto/partner"
	withdrawaldto "github.com/LavaJover/shvark-ib-service/internal/usecase/dto/withdrawal"
)

// Either PartnerID or UserID identifies the partner.
type ComputeBalanceRequest struct {
	PartnerID string `json:"partner_id,omitempty"`
	UserID    string `json:"user_id,omitempty"`
}

type BalanceResponse struct {
	Balance *withdrawaldto.BalanceOutput `json:"balance"`
}

// Amount is a decimal string so no precision is lost on the wire.
type RequestWithdrawalRequest struct {
	UserID string `json:"user_id"`
	Amount string `json:"amount"`
	Notes  string `json:"notes,omitempty"`
}

type ApproveWithdrawalRequest struct {
	WithdrawalID          string `json:"withdrawal_id"`
	ReviewerID            string `json:"reviewer_id"`
	Notes                 string `json:"notes,omitempty"`
	ExternalTransactionID string `json:"external_transaction_id,omitempty"`
}

type RejectWithdrawalRequest struct {
	WithdrawalID string `json:"withdrawal_id"`
	ReviewerID   string `json:"reviewer_id"`
	Reason       string `json:"reason"`
	Notes        string `json:"notes,omitempty"`
}

type GetWithdrawalRequest struct {
	WithdrawalID string `json:"withdrawal_id"`
}

type WithdrawalResponse struct {
	Withdrawal *withdrawaldto.WithdrawalOutput `json:"withdrawal"`
}

type ListWithdrawalsRequest struct {
	PartnerID string `json:"partner_id,omitempty"`
	Status    string `json:"status,omitempty"`
	Limit     int    `json:"limit,omitempty"`
}

type ListWithdrawalsResponse struct {
	Withdrawals []*withdrawaldto.WithdrawalOutput `json:"withdrawals"`
}

type EnrollReferralRequest struct {
	UserID       string `json:"user_id"`
	ReferralCode string `json:"referral_code"`
}

type ActivateRequest struct {
	UserID string `json:"user_id"`
}

// Exactly one lookup key is expected; PartnerID wins, then UserID.
type GetPartnerRequest struct {
	PartnerID    string `json:"partner_id,omitempty"`
	UserID       string `json:"user_id,omitempty"`
	ReferralCode string `json:"referral_code,omitempty"`
}

type PartnerResponse struct {
	Partner *partnerdto.PartnerOutput `json:"partner"`
}

type BuildDownlineRequest struct {
	PartnerID      string `json:"partner_id"`
	WithAggregates bool   `json:"with_aggregates"`
}

type DownlineResponse struct {
	Downline *partnerdto.DownlineOutput `json:"downline"`
}

type BuildDisplayTreeRequest struct {
	PartnerID string `json:"partner_id"`
}

type DisplayTreeResponse struct {
	Tree *partnerdto.DisplayTreeOutput `json:"tree"`
}
