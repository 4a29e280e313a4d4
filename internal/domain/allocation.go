package domain

import "time"

// PairStat is an aggregate over historical trades for one (buy,sell) venue
// pair, as produced by the pair-stat query.
type PairStat struct {
	BuyVenue       string
	SellVenue      string
	Count          int64
	AvgSpreadPct   float64
	TotalProfitUSD float64
	LastSeen       time.Time
}

// AllocationTarget maps venue -> target capital in USD. Invariant: the sum of
// all targets plus the configured reserve equals total capital (within
// floating tolerance).
type AllocationTarget map[string]float64

// Total sums the per-venue targets.
func (a AllocationTarget) Total() float64 {
	var total float64
	for _, v := range a {
		total += v
	}
	return total
}

// Transfer is one proposed capital movement between venues. Amounts removed
// from a source never exceed current balance minus the minimum keep balance.
type Transfer struct {
	From      string
	To        string
	AmountUSD float64
}
