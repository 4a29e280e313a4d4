package domain

import "time"

// Opportunity is a raw cross-exchange price discrepancy as observed by the
// scanner. It is immutable once observed; GrossSpreadPct is always
// (SellPrice-BuyPrice)/BuyPrice*100 at observation time.
type Opportunity struct {
	ID             string
	Coin           string // base asset, e.g. "BTC"
	BuyVenue       string
	SellVenue      string
	BuyPrice       float64
	SellPrice      float64
	GrossSpreadPct float64
	ObservedAt     time.Time
}

// Symbol returns the trading pair for the opportunity's coin against USDT.
func (o Opportunity) Symbol() string {
	return o.Coin + "/USDT"
}

// Validate reports whether the opportunity is structurally usable.
func (o Opportunity) Validate() error {
	if o.Coin == "" || o.BuyVenue == "" || o.SellVenue == "" {
		return ErrInvalidOpportunity
	}
	if o.BuyPrice <= 0 || o.SellPrice <= 0 {
		return ErrInvalidOpportunity
	}
	return nil
}

// MarketData carries optional context used by risk scoring. Zero values mean
// "unknown" and the corresponding factor is skipped.
type MarketData struct {
	VolumeUSD  float64 // 24h traded volume for the pair
	Volatility float64 // recent volatility, percent
}

// EvaluatedOpportunity is an Opportunity that passed the risk gate, enriched
// with fee-adjusted spread, risk score and sizing. It is ephemeral: scoped to
// one decision cycle and never persisted.
type EvaluatedOpportunity struct {
	Opportunity

	BuyFeePct         float64
	SellFeePct        float64
	NetSpreadPct      float64
	RiskScore         float64 // 0..1
	PositionSizeUSD   float64
	ExpectedProfitUSD float64
}
