package domain

import "time"

// ExecState tracks the two-leg execution lifecycle. Transitions:
//
//	PENDING -> BUY_SUBMITTED -> BUY_FILLED -> SELL_SUBMITTED ->
//	  SELL_FILLED | SELL_FAILED_RETRY | SELL_FAILED_FALLBACK -> SETTLED
type ExecState string

const (
	ExecPending            ExecState = "pending"
	ExecBuySubmitted       ExecState = "buy_submitted"
	ExecBuyFilled          ExecState = "buy_filled"
	ExecSellSubmitted      ExecState = "sell_submitted"
	ExecSellFilled         ExecState = "sell_filled"
	ExecSellFailedRetry    ExecState = "sell_failed_retry"
	ExecSellFailedFallback ExecState = "sell_failed_fallback"
	ExecSettled            ExecState = "settled"
)

// LedgerEntry records one settled (or failed) two-leg trade. Append-only:
// entries are never mutated after creation and drive all performance metrics.
// Failed trades still record partial state for forensic recovery.
type LedgerEntry struct {
	ID                string
	Timestamp         time.Time
	Coin              string
	BuyVenue          string
	SellVenue         string // equals BuyVenue when the fallback leg was used
	BuyPrice          float64
	SellPrice         float64
	Amount            float64 // base units actually filled on the buy leg
	FeesUSD           float64
	RealizedProfitUSD float64
	ROIPct            float64
	Success           bool
	FallbackUsed      bool
	BuyOrderID        string
	SellOrderID       string
	FinalState        ExecState
	FailureReason     string
}
