// Package apperr defines the error taxonomy shared by the ledger, the stores
// and the HTTP layer. Every error carries a kind sentinel (matched with
// errors.Is) and a stable reason code for clients.
package apperr

import (
	"errors"
	"fmt"
)

// Kind sentinels.
var (
	ErrValidation = errors.New("validation failed")
	ErrConflict   = errors.New("conflict")
	ErrNotFound   = errors.New("not found")
	ErrIntegrity  = errors.New("integrity violation")
)

// Reason codes.
const (
	ReasonAmountInvalid         = "amount_invalid"
	ReasonBelowMinimum          = "below_minimum"
	ReasonNotMultipleOf100      = "not_multiple_of_100"
	ReasonInsufficientBalance   = "insufficient_balance"
	ReasonTierRequired          = "tier_required"
	ReasonBankProfileMissing    = "bank_profile_missing"
	ReasonProofRequired         = "proof_required"
	ReasonCooldownActive        = "cooldown_active"
	ReasonReferralThreshold     = "referral_threshold"
	ReasonTaskAlreadyCompleted  = "task_already_completed"
	ReasonTierUnavailable       = "tier_unavailable"
	ReasonTierNotAboveCurrent   = "tier_not_above_current"
	ReasonAlreadyResolved       = "already_resolved"
	ReasonNotResolvable         = "not_resolvable"
	ReasonDuplicateMobile       = "duplicate_mobile"
	ReasonDuplicateReferralCode = "duplicate_referral_code"
	ReasonAccountBanned         = "account_banned"
	ReasonInvalidMobile         = "invalid_mobile"
	ReasonReferralCycle         = "referral_cycle"
	ReasonDanglingAccount       = "dangling_account"
	ReasonAccountNotFound       = "account_not_found"
	ReasonEntryNotFound         = "entry_not_found"
	ReasonTierNotFound          = "tier_not_found"
	ReasonTaskNotFound          = "task_not_found"
	ReasonInvalidRequest        = "invalid_request"
)

type Error struct {
	Kind    error
	Reason  string
	Message string
}

func (e *Error) Error() string { return e.Message }

func (e *Error) Unwrap() error { return e.Kind }

func newError(kind error, reason, format string, args ...any) *Error {
	return &Error{Kind: kind, Reason: reason, Message: fmt.Sprintf(format, args...)}
}

func Validation(reason, format string, args ...any) *Error {
	return newError(ErrValidation, reason, format, args...)
}

func Conflict(reason, format string, args ...any) *Error {
	return newError(ErrConflict, reason, format, args...)
}

func NotFound(reason, format string, args ...any) *Error {
	return newError(ErrNotFound, reason, format, args...)
}

// Integrity errors abort the enclosing mutation and need manual investigation.
func Integrity(reason, format string, args ...any) *Error {
	return newError(ErrIntegrity, reason, format, args...)
}

// ReasonOf returns the reason code of err, or "" if err is not an *Error.
func ReasonOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Reason
	}
	return ""
}

// HasReason reports whether err is an *Error with the given reason.
func HasReason(err error, reason string) bool {
	return ReasonOf(err) == reason
}
