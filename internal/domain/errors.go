package domain

import "errors"

var (
	ErrNotFound            = errors.New("not found")
	ErrUnknownVenue        = errors.New("unknown venue")
	ErrInvalidOpportunity  = errors.New("invalid opportunity")
	ErrInsufficientFunds   = errors.New("insufficient_funds")
	ErrInsufficientBalance = errors.New("insufficient_balance")
	ErrCapacityExceeded    = errors.New("capacity_exceeded")
	ErrNoLiquidity         = errors.New("no liquidity available")
	ErrStrandedInventory   = errors.New("stranded inventory: fallback sell failed")
	ErrRateLimited         = errors.New("rate limited")
	ErrLockHeld            = errors.New("lock already held")
)
