package domain

import "time"

// Side indicates the direction of an order or a book walk.
type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

// PriceLevel is a single price+size entry in an order book.
type PriceLevel struct {
	Price float64
	Size  float64
}

// VenueQuote is a per-venue order-book slice for one symbol. It is volatile:
// replaced wholesale on every poll and never merged across polls.
type VenueQuote struct {
	Venue     string
	Symbol    string
	Bids      []PriceLevel // descending by price
	Asks      []PriceLevel // ascending by price
	Timestamp time.Time
}

// BestBid returns the top-of-book bid price, or 0 when the book is empty.
func (q VenueQuote) BestBid() float64 {
	if len(q.Bids) == 0 {
		return 0
	}
	return q.Bids[0].Price
}

// BestAsk returns the top-of-book ask price, or 0 when the book is empty.
func (q VenueQuote) BestAsk() float64 {
	if len(q.Asks) == 0 {
		return 0
	}
	return q.Asks[0].Price
}

// LiquidityProfile describes how well one venue can absorb a target fill.
// Derived from a single VenueQuote; ephemeral.
type LiquidityProfile struct {
	Venue               string
	AvgFillPrice        float64
	CumulativeFillable  float64
	DepthLevelsConsumed int
	SlippagePct         float64
	LiquidityScore      float64 // 0..100
	CanFillFully        bool
}
