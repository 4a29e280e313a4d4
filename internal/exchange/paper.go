package exchange

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/arbot-io/arbot/internal/domain"
)

// PaperConfig seeds a paper venue.
type PaperConfig struct {
	Name            string
	Balances        domain.Balances
	FeePct          float64 // taker fee applied to simulated fills
	FillSlippagePct float64 // price drift applied to market orders
}

// Paper is an in-memory exchange client. Fills are immediate at the seeded
// price adjusted by the configured slippage; failures can be injected per
// order type for testing the retry and fallback paths.
type Paper struct {
	name     string
	feePct   float64
	slipPct  float64
	mu       sync.Mutex
	balances domain.Balances
	prices   map[string]float64           // symbol -> last price
	books    map[string]domain.VenueQuote // symbol -> seeded book

	failBuys  int // next N buy orders fail
	failSells int // next N sell orders fail
}

// NewPaper creates a paper venue from the given config.
func NewPaper(cfg PaperConfig) *Paper {
	balances := make(domain.Balances, len(cfg.Balances))
	for asset, free := range cfg.Balances {
		balances[strings.ToUpper(asset)] = free
	}
	return &Paper{
		name:     cfg.Name,
		feePct:   cfg.FeePct,
		slipPct:  cfg.FillSlippagePct,
		balances: balances,
		prices:   make(map[string]float64),
		books:    make(map[string]domain.VenueQuote),
	}
}

// Name returns the venue name.
func (p *Paper) Name() string { return p.name }

// SetPrice seeds the last price for a symbol.
func (p *Paper) SetPrice(symbol string, price float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.prices[symbol] = price
}

// SetOrderBook seeds the order book returned by FetchOrderBook.
func (p *Paper) SetOrderBook(symbol string, bids, asks []domain.PriceLevel) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.books[symbol] = domain.VenueQuote{
		Venue:     p.name,
		Symbol:    symbol,
		Bids:      bids,
		Asks:      asks,
		Timestamp: time.Now().UTC(),
	}
}

// FailNextBuys makes the next n buy orders return an error.
func (p *Paper) FailNextBuys(n int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.failBuys = n
}

// FailNextSells makes the next n sell orders return an error.
func (p *Paper) FailNextSells(n int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.failSells = n
}

// FetchBalance returns a copy of the venue balances.
func (p *Paper) FetchBalance(ctx context.Context) (domain.Balances, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make(domain.Balances, len(p.balances))
	for asset, free := range p.balances {
		out[asset] = free
	}
	return out, nil
}

// FetchOrderBook returns the seeded book truncated to depth levels per side.
func (p *Paper) FetchOrderBook(ctx context.Context, symbol string, depth int) (domain.VenueQuote, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	book, ok := p.books[symbol]
	if !ok {
		return domain.VenueQuote{}, fmt.Errorf("paper %s: no book for %s: %w", p.name, symbol, domain.ErrNoLiquidity)
	}
	if depth > 0 {
		if len(book.Bids) > depth {
			book.Bids = book.Bids[:depth]
		}
		if len(book.Asks) > depth {
			book.Asks = book.Asks[:depth]
		}
	}
	book.Timestamp = time.Now().UTC()
	return book, nil
}

// FetchTicker derives a ticker from the seeded price.
func (p *Paper) FetchTicker(ctx context.Context, symbol string) (domain.Ticker, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	last, ok := p.prices[symbol]
	if !ok {
		return domain.Ticker{}, fmt.Errorf("paper %s: no price for %s: %w", p.name, symbol, domain.ErrNotFound)
	}
	half := last * p.slipPct / 200
	return domain.Ticker{Last: last, Bid: last - half, Ask: last + half}, nil
}

// CreateMarketBuyOrder fills immediately at last price plus slippage, debits
// the quote asset and credits the base asset.
func (p *Paper) CreateMarketBuyOrder(ctx context.Context, symbol string, amount float64) (domain.OrderFill, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.failBuys > 0 {
		p.failBuys--
		return domain.OrderFill{}, fmt.Errorf("paper %s: buy order rejected", p.name)
	}

	base, quote, err := splitSymbol(symbol)
	if err != nil {
		return domain.OrderFill{}, err
	}
	last, ok := p.prices[symbol]
	if !ok {
		return domain.OrderFill{}, fmt.Errorf("paper %s: no price for %s: %w", p.name, symbol, domain.ErrNotFound)
	}

	price := last * (1 + p.slipPct/100)
	cost := amount * price
	fee := cost * p.feePct / 100
	if p.balances[quote] < cost+fee {
		return domain.OrderFill{}, fmt.Errorf("paper %s: %w", p.name, domain.ErrInsufficientFunds)
	}
	p.balances[quote] -= cost + fee
	p.balances[base] += amount

	return domain.OrderFill{
		OrderID: uuid.New().String(),
		Average: price,
		Filled:  amount,
		FeeUSD:  fee,
	}, nil
}

// CreateMarketSellOrder fills immediately at last price minus slippage,
// debits the base asset and credits the quote asset.
func (p *Paper) CreateMarketSellOrder(ctx context.Context, symbol string, amount float64) (domain.OrderFill, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.failSells > 0 {
		p.failSells--
		return domain.OrderFill{}, fmt.Errorf("paper %s: sell order rejected", p.name)
	}

	base, quote, err := splitSymbol(symbol)
	if err != nil {
		return domain.OrderFill{}, err
	}
	last, ok := p.prices[symbol]
	if !ok {
		return domain.OrderFill{}, fmt.Errorf("paper %s: no price for %s: %w", p.name, symbol, domain.ErrNotFound)
	}
	if p.balances[base] < amount {
		return domain.OrderFill{}, fmt.Errorf("paper %s: %w", p.name, domain.ErrInsufficientBalance)
	}

	price := last * (1 - p.slipPct/100)
	proceeds := amount * price
	fee := proceeds * p.feePct / 100
	p.balances[base] -= amount
	p.balances[quote] += proceeds - fee

	return domain.OrderFill{
		OrderID: uuid.New().String(),
		Average: price,
		Filled:  amount,
		FeeUSD:  fee,
	}, nil
}

func splitSymbol(symbol string) (base, quote string, err error) {
	parts := strings.SplitN(symbol, "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("paper: malformed symbol %q", symbol)
	}
	return strings.ToUpper(parts[0]), strings.ToUpper(parts[1]), nil
}

var _ domain.ExchangeClient = (*Paper)(nil)
