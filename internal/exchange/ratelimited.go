package exchange

import (
	"context"

	"github.com/arbot-io/arbot/internal/domain"
)

// RateLimited decorates an ExchangeClient so that every outbound call first
// waits on the shared per-venue rate limit. The decision core never talks to
// a venue except through this gate.
type RateLimited struct {
	inner   domain.ExchangeClient
	limiter domain.RateLimiter
}

// WithRateLimit wraps client with the given limiter. A nil limiter returns
// the client unchanged.
func WithRateLimit(client domain.ExchangeClient, limiter domain.RateLimiter) domain.ExchangeClient {
	if limiter == nil {
		return client
	}
	return &RateLimited{inner: client, limiter: limiter}
}

func (r *RateLimited) wait(ctx context.Context) error {
	return r.limiter.Wait(ctx, r.inner.Name())
}

// Name returns the wrapped venue name.
func (r *RateLimited) Name() string { return r.inner.Name() }

// FetchBalance waits for a rate-limit slot and delegates.
func (r *RateLimited) FetchBalance(ctx context.Context) (domain.Balances, error) {
	if err := r.wait(ctx); err != nil {
		return nil, err
	}
	return r.inner.FetchBalance(ctx)
}

// FetchOrderBook waits for a rate-limit slot and delegates.
func (r *RateLimited) FetchOrderBook(ctx context.Context, symbol string, depth int) (domain.VenueQuote, error) {
	if err := r.wait(ctx); err != nil {
		return domain.VenueQuote{}, err
	}
	return r.inner.FetchOrderBook(ctx, symbol, depth)
}

// FetchTicker waits for a rate-limit slot and delegates.
func (r *RateLimited) FetchTicker(ctx context.Context, symbol string) (domain.Ticker, error) {
	if err := r.wait(ctx); err != nil {
		return domain.Ticker{}, err
	}
	return r.inner.FetchTicker(ctx, symbol)
}

// CreateMarketBuyOrder waits for a rate-limit slot and delegates.
func (r *RateLimited) CreateMarketBuyOrder(ctx context.Context, symbol string, amount float64) (domain.OrderFill, error) {
	if err := r.wait(ctx); err != nil {
		return domain.OrderFill{}, err
	}
	return r.inner.CreateMarketBuyOrder(ctx, symbol, amount)
}

// CreateMarketSellOrder waits for a rate-limit slot and delegates.
func (r *RateLimited) CreateMarketSellOrder(ctx context.Context, symbol string, amount float64) (domain.OrderFill, error) {
	if err := r.wait(ctx); err != nil {
		return domain.OrderFill{}, err
	}
	return r.inner.CreateMarketSellOrder(ctx, symbol, amount)
}

var _ domain.ExchangeClient = (*RateLimited)(nil)
