package domain

import "time"

// VariantParams are the tunable parameters under A/B comparison.
type VariantParams struct {
	MinSpreadPct       float64
	RiskThreshold      float64
	PositionSizeCapUSD float64
}

// Variant is one named parameter configuration with its cumulative results.
// Accumulators are never reset by rotation; only the active pointer moves.
type Variant struct {
	Name          string
	Params        VariantParams
	Opportunities int64
	Trades        int64
	Wins          int64
	Losses        int64
	ProfitUSD     float64
	FeesUSD       float64
	ActiveSince   time.Time
}

// WinRate returns wins/trades, or 0 when the variant has no trades.
func (v Variant) WinRate() float64 {
	if v.Trades == 0 {
		return 0
	}
	return float64(v.Wins) / float64(v.Trades)
}

// AvgProfitUSD returns profit per trade, or 0 when the variant has no trades.
func (v Variant) AvgProfitUSD() float64 {
	if v.Trades == 0 {
		return 0
	}
	return v.ProfitUSD / float64(v.Trades)
}
