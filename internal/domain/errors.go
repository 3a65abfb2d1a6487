package domain

import (
	"context"
	"errors"
	"fmt"
)

type ErrorKind string

const (
	KindValidation          ErrorKind = "validation"
	KindNotFound            ErrorKind = "not_found"
	KindStateConflict       ErrorKind = "state_conflict"
	KindInsufficientBalance ErrorKind = "insufficient_balance"
	KindIntegrity           ErrorKind = "integrity"
	KindTransient           ErrorKind = "transient"
	KindInternal            ErrorKind = "internal"
)

// Error is the typed result every rejected ledger or hierarchy operation
// returns. Two errors are the same error when their codes match.
type Error struct {
	Kind ErrorKind
	Code string
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	}
	return e.Msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// Wrap returns a copy of e carrying err as its cause.
func (e *Error) Wrap(err error) *Error {
	return &Error{Kind: e.Kind, Code: e.Code, Msg: e.Msg, Err: err}
}

// Withf returns a copy of e with extra detail appended to the message.
func (e *Error) Withf(format string, args ...any) *Error {
	return &Error{Kind: e.Kind, Code: e.Code, Msg: e.Msg + ": " + fmt.Sprintf(format, args...), Err: e.Err}
}

var (
	ErrInvalidAmount = &Error{Kind: KindValidation, Code: "invalid_amount", Msg: "amount must be greater than zero"}
	ErrMissingReason = &Error{Kind: KindValidation, Code: "missing_reason", Msg: "rejection reason is required"}
	ErrInvalidInput  = &Error{Kind: KindValidation, Code: "invalid_input", Msg: "invalid input"}

	ErrNoHierarchyRecord    = &Error{Kind: KindNotFound, Code: "no_hierarchy_record", Msg: "user has no partner record"}
	ErrPartnerNotFound      = &Error{Kind: KindNotFound, Code: "partner_not_found", Msg: "partner not found"}
	ErrWithdrawalNotFound   = &Error{Kind: KindNotFound, Code: "withdrawal_not_found", Msg: "withdrawal request not found"}
	ErrReferralCodeNotFound = &Error{Kind: KindNotFound, Code: "referral_code_not_found", Msg: "referral code not found"}

	ErrInvalidStateTransition = &Error{Kind: KindStateConflict, Code: "invalid_state_transition", Msg: "withdrawal request is already decided"}
	ErrAlreadyActive          = &Error{Kind: KindStateConflict, Code: "already_active", Msg: "partner is already active"}
	ErrAlreadyEnrolled        = &Error{Kind: KindStateConflict, Code: "already_enrolled", Msg: "user already has a partner record"}
	ErrParentNotActive        = &Error{Kind: KindStateConflict, Code: "parent_not_active", Msg: "referring partner is not active"}
	ErrStaleStatus            = &Error{Kind: KindStateConflict, Code: "stale_status", Msg: "record changed concurrently"}

	ErrInsufficientBalance = &Error{Kind: KindInsufficientBalance, Code: "insufficient_balance", Msg: "insufficient withdrawable balance"}

	ErrCycleDetected      = &Error{Kind: KindIntegrity, Code: "cycle_detected", Msg: "referral hierarchy contains a cycle"}
	ErrDepthMismatch      = &Error{Kind: KindIntegrity, Code: "depth_mismatch", Msg: "stored depth disagrees with traversal level"}
	ErrNegativeBalance    = &Error{Kind: KindIntegrity, Code: "negative_balance", Msg: "withdrawable balance is negative"}
	ErrBalanceDrift       = &Error{Kind: KindIntegrity, Code: "balance_drift", Msg: "partner debit total disagrees with settled withdrawals"}
	ErrCodeSpaceExhausted = &Error{Kind: KindIntegrity, Code: "code_space_exhausted", Msg: "could not generate a unique referral code"}
	ErrDuplicateCode      = &Error{Kind: KindIntegrity, Code: "duplicate_code", Msg: "referral code already taken"}
	ErrDuplicateReference = &Error{Kind: KindIntegrity, Code: "duplicate_reference", Msg: "withdrawal reference already taken"}
	ErrRollbackFailed     = &Error{Kind: KindIntegrity, Code: "rollback_failed", Msg: "failed to roll back partial operation"}

	ErrStoreUnavailable = &Error{Kind: KindTransient, Code: "store_unavailable", Msg: "store temporarily unavailable"}
)

// NewTransientError marks err as a retryable store failure.
func NewTransientError(err error) error {
	if err == nil {
		return nil
	}
	var de *Error
	if errors.As(err, &de) && de.Kind == KindTransient {
		return err
	}
	return ErrStoreUnavailable.Wrap(err)
}

// KindOf classifies any error returned by the core.
func KindOf(err error) ErrorKind {
	if err == nil {
		return ""
	}
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return KindTransient
	}
	return KindInternal
}

// CodeOf returns the stable error code, or "internal" for untyped errors.
func CodeOf(err error) string {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	if KindOf(err) == KindTransient {
		return ErrStoreUnavailable.Code
	}
	return string(KindInternal)
}
