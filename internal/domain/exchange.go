package domain

import "context"

// Balances maps asset -> free amount on one venue.
type Balances map[string]float64

// Ticker is a minimal last/bid/ask snapshot for one symbol.
type Ticker struct {
	Last float64
	Bid  float64
	Ask  float64
}

// OrderFill is the venue's response to a market order. Average and Filled
// reflect what actually happened, which may differ from the requested amount.
type OrderFill struct {
	OrderID string
	Average float64 // average fill price
	Filled  float64 // base units filled
	FeeUSD  float64
}

// ExchangeClient is the capability through which the core talks to one venue.
// All calls may fail with a transport or exchange error; callers treat such
// failures as retryable per execution policy, never as a silent zero result.
type ExchangeClient interface {
	Name() string
	FetchBalance(ctx context.Context) (Balances, error)
	FetchOrderBook(ctx context.Context, symbol string, depth int) (VenueQuote, error)
	FetchTicker(ctx context.Context, symbol string) (Ticker, error)
	CreateMarketBuyOrder(ctx context.Context, symbol string, amount float64) (OrderFill, error)
	CreateMarketSellOrder(ctx context.Context, symbol string, amount float64) (OrderFill, error)
}

// ExchangeDirectory resolves venue names to clients.
type ExchangeDirectory interface {
	Venue(name string) (ExchangeClient, error)
	Names() []string
}
