package domain

import "errors"

// Validation errors: the request itself is wrong and retrying without a
// change will not help.
var (
	ErrInvalidInput            = errors.New("invalid input")
	ErrNegativeAmount          = errors.New("amount cannot be negative")
	ErrCurrencyMismatch        = errors.New("currency mismatch")
	ErrRuleDisabled            = errors.New("commission rule disabled")
	ErrMissingBaseAmount       = errors.New("percentage rule requires a base amount")
	ErrEventTypeMismatch       = errors.New("event type does not match rule")
	ErrMethodNotConfigured     = errors.New("payout method not configured")
	ErrUnsupportedCountry      = errors.New("country not supported by payout method")
	ErrAmountOutOfRange        = errors.New("amount outside payout method limits")
	ErrInvalidStatusTransition = errors.New("invalid payout status transition")
)

// Resource-state errors: the operation may become valid after the ledger
// changes.
var (
	ErrInsufficientFunds        = errors.New("insufficient funds")
	ErrDuplicateCommissionEvent = errors.New("commission event already applied")
	ErrAccountNotFound          = errors.New("affiliate account not found")
	ErrPayoutNotFound           = errors.New("payout request not found")
	ErrApprovalNotFound         = errors.New("no staged commission for event")
)

// ErrLockTimeout is returned when an account lock could not be acquired
// within the configured wait. Callers may retry.
var ErrLockTimeout = errors.New("account lock timeout")
