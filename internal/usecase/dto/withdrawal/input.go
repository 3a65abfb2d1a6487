package withdrawaldto

import "github.com/shopspring/decimal"

type RequestWithdrawalInput struct {
	UserID string
	Amount decimal.Decimal
	Notes  string
}

type ApproveWithdrawalInput struct {
	WithdrawalID          string
	ReviewerID            string
	Notes                 string
	ExternalTransactionID string
}

type RejectWithdrawalInput struct {
	WithdrawalID string
	ReviewerID   string
	Reason       string
	Notes        string
}

type ListWithdrawalsInput struct {
	PartnerID string
	Status    string
	Limit     int
}
