package farm

import "errors"

// Sentinel errors for ledger mutations. Every failure is atomic: a rejected
// call leaves no state change behind.
var (
	ErrReentrantCall     = errors.New("farm: reentrant call")
	ErrUnknownPool       = errors.New("farm: unknown pool")
	ErrPoolExists        = errors.New("farm: asset already registered")
	ErrFeeTooHigh        = errors.New("farm: deposit fee exceeds maximum")
	ErrBonusTooHigh      = errors.New("farm: referral bonus exceeds maximum")
	ErrInvalidAmount     = errors.New("farm: amount must be non-negative")
	ErrInsufficientStake = errors.New("farm: withdraw exceeds staked amount")
	ErrZeroAddress       = errors.New("farm: zero address")
	ErrNoReferralLedger  = errors.New("farm: referral ledger not configured")
	ErrDebtInvariant     = errors.New("farm: reward debt exceeds accrued reward")
)
