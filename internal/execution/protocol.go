// Package execution drives the two-leg buy/sell against exchange clients: a
// bounded-retry state machine with a same-venue fallback that eliminates
// cross-venue stuck inventory.
package execution

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"github.com/arbot-io/arbot/internal/domain"
)

// Config holds the protocol tunables.
type Config struct {
	MaxSellRetries    int           // attempts on the designated sell venue
	RetryDelay        time.Duration // fixed inter-attempt delay, not a backoff
	MaxInFlightTrades int64         // admission control bound
}

// DefaultConfig returns the calibrated defaults.
func DefaultConfig() Config {
	return Config{
		MaxSellRetries:    3,
		RetryDelay:        2 * time.Second,
		MaxInFlightTrades: 4,
	}
}

// Protocol executes risk-gated opportunities. A semaphore bounds how many
// trades may hold committed capital at once; acquisition failure surfaces as
// capacity_exceeded before any capital moves.
type Protocol struct {
	cfg    Config
	dir    domain.ExchangeDirectory
	clock  Clock
	sem    *semaphore.Weighted
	logger *slog.Logger
}

// NewProtocol creates a Protocol. A nil clock selects the system clock.
func NewProtocol(cfg Config, dir domain.ExchangeDirectory, clock Clock, logger *slog.Logger) *Protocol {
	if clock == nil {
		clock = SystemClock{}
	}
	if cfg.MaxSellRetries <= 0 {
		cfg.MaxSellRetries = 3
	}
	if cfg.MaxInFlightTrades <= 0 {
		cfg.MaxInFlightTrades = 1
	}
	return &Protocol{
		cfg:    cfg,
		dir:    dir,
		clock:  clock,
		sem:    semaphore.NewWeighted(cfg.MaxInFlightTrades),
		logger: logger.With(slog.String("component", "execution")),
	}
}

// Execute runs the full state machine for one evaluated opportunity. When
// plan is non-nil its legs describe how the buy side is split across venues
// (amounts in base units, delays relative to plan start); a nil plan buys the
// whole position on the opportunity's buy venue.
//
// A LedgerEntry is returned for every trade that committed capital, including
// failed ones, so reconciliation is always possible from the ledger alone.
// The entry is nil only for rejections that happen before submission.
func (p *Protocol) Execute(ctx context.Context, eval domain.EvaluatedOpportunity, plan *domain.ExecutionPlan) (*domain.LedgerEntry, error) {
	if !p.sem.TryAcquire(1) {
		return nil, fmt.Errorf("execution: %w", domain.ErrCapacityExceeded)
	}
	defer p.sem.Release(1)

	buyClient, err := p.dir.Venue(eval.BuyVenue)
	if err != nil {
		return nil, err
	}
	sellClient, err := p.dir.Venue(eval.SellVenue)
	if err != nil {
		return nil, err
	}

	// Free balance on the buy venue is checked immediately before submission;
	// shortfall aborts before any capital is committed.
	balances, err := buyClient.FetchBalance(ctx)
	if err != nil {
		return nil, fmt.Errorf("execution: fetch balance %s: %w", eval.BuyVenue, err)
	}
	if balances["USDT"] < eval.PositionSizeUSD {
		return nil, fmt.Errorf("execution: %s free %.2f < position %.2f: %w",
			eval.BuyVenue, balances["USDT"], eval.PositionSizeUSD, domain.ErrInsufficientFunds)
	}

	entry := &domain.LedgerEntry{
		ID:        uuid.New().String(),
		Timestamp: p.clock.Now(),
		Coin:      eval.Coin,
		BuyVenue:  eval.BuyVenue,
		SellVenue: eval.SellVenue,
	}
	log := p.logger.With(
		slog.String("trade_id", entry.ID),
		slog.String("coin", eval.Coin),
		slog.String("buy_venue", eval.BuyVenue),
		slog.String("sell_venue", eval.SellVenue),
	)

	// Buy side. The filled amount, not the requested one, is what gets sold.
	entry.FinalState = domain.ExecBuySubmitted
	filled, buyNotional, buyFees, buyOrderID, err := p.buy(ctx, eval, plan, buyClient, log)
	if err != nil {
		entry.Success = false
		entry.FailureReason = err.Error()
		return entry, fmt.Errorf("execution: buy leg: %w", err)
	}
	entry.FinalState = domain.ExecBuyFilled
	entry.Amount = filled
	entry.BuyPrice = buyNotional / filled
	entry.BuyOrderID = buyOrderID
	entry.FeesUSD = buyFees

	// Sell side: bounded retries on the designated venue.
	entry.FinalState = domain.ExecSellSubmitted
	symbol := eval.Symbol()
	sellFill, sellErr := p.sellWithRetries(ctx, sellClient, symbol, filled, log)
	if sellErr == nil {
		entry.FinalState = domain.ExecSellFilled
		p.settle(entry, eval, buyNotional, sellFill)
		entry.Success = true
		log.Info("trade settled",
			slog.Float64("profit_usd", entry.RealizedProfitUSD),
			slog.Float64("roi_pct", entry.ROIPct),
		)
		return entry, nil
	}

	// All retries failed: fall back to selling the bought amount on the buy
	// venue, once. This trades the spread for the certainty of not leaving
	// inventory stranded across venues.
	entry.FinalState = domain.ExecSellFailedFallback
	entry.FallbackUsed = true
	entry.SellVenue = eval.BuyVenue
	log.Warn("sell leg exhausted retries, falling back to buy venue",
		slog.Int("attempts", p.cfg.MaxSellRetries),
		slog.String("error", sellErr.Error()),
	)

	fallbackFill, fbErr := buyClient.CreateMarketSellOrder(ctx, symbol, filled)
	if fbErr != nil {
		entry.Success = false
		entry.FailureReason = fmt.Sprintf("sell failed (%v); fallback failed (%v)", sellErr, fbErr)
		log.Error("fallback sell failed, inventory stranded",
			slog.String("venue", eval.BuyVenue),
			slog.Float64("amount", filled),
			slog.String("error", fbErr.Error()),
		)
		return entry, fmt.Errorf("execution: %w: %.8f %s on %s", domain.ErrStrandedInventory, filled, eval.Coin, eval.BuyVenue)
	}

	p.settle(entry, eval, buyNotional, fallbackFill)
	entry.Success = true
	entry.FinalState = domain.ExecSettled
	log.Warn("trade settled via fallback",
		slog.Float64("profit_usd", entry.RealizedProfitUSD),
	)
	return entry, nil
}

// buy executes the buy side: either a single market order or the plan's legs
// in schedule order. Plan leg delays are cooperative; a leg at delay d is
// submitted no earlier than d after plan start and is not preempted once due.
func (p *Protocol) buy(
	ctx context.Context,
	eval domain.EvaluatedOpportunity,
	plan *domain.ExecutionPlan,
	primary domain.ExchangeClient,
	log *slog.Logger,
) (filled, notional, fees float64, orderID string, err error) {
	symbol := eval.Symbol()

	if plan == nil {
		amount := eval.PositionSizeUSD / eval.BuyPrice
		fill, err := primary.CreateMarketBuyOrder(ctx, symbol, amount)
		if err != nil {
			return 0, 0, 0, "", err
		}
		// A zero fill commits nothing; treating it as filled would divide by
		// zero downstream and attempt to sell inventory that does not exist.
		if fill.Filled == 0 {
			return 0, 0, 0, "", domain.ErrNoLiquidity
		}
		return fill.Filled, fill.Filled * fill.Average, fill.FeeUSD, fill.OrderID, nil
	}

	start := p.clock.Now()
	for i, leg := range plan.Legs {
		due := start.Add(time.Duration(leg.DelayMs) * time.Millisecond)
		if wait := due.Sub(p.clock.Now()); wait > 0 {
			if err := p.clock.Sleep(ctx, wait); err != nil {
				return filled, notional, fees, orderID, err
			}
		}
		client, err := p.dir.Venue(leg.Venue)
		if err != nil {
			return filled, notional, fees, orderID, err
		}
		fill, err := client.CreateMarketBuyOrder(ctx, symbol, leg.Amount)
		if err != nil {
			// A failed slice with nothing filled yet aborts cleanly; once
			// capital is committed the partial fill proceeds to the sell leg.
			if filled == 0 {
				return 0, 0, 0, "", err
			}
			log.Warn("plan leg failed, selling partial fill",
				slog.Int("leg", i),
				slog.String("venue", leg.Venue),
				slog.String("error", err.Error()),
			)
			break
		}
		filled += fill.Filled
		notional += fill.Filled * fill.Average
		fees += fill.FeeUSD
		if orderID == "" {
			orderID = fill.OrderID
		}
	}
	if filled == 0 {
		return 0, 0, 0, "", domain.ErrNoLiquidity
	}
	return filled, notional, fees, orderID, nil
}

// sellWithRetries attempts the sell leg up to MaxSellRetries times with a
// fixed delay between attempts. Submission is not cancellable mid-attempt;
// cancellation is only honoured between attempts.
func (p *Protocol) sellWithRetries(
	ctx context.Context,
	client domain.ExchangeClient,
	symbol string,
	amount float64,
	log *slog.Logger,
) (domain.OrderFill, error) {
	var lastErr error
	for attempt := 1; attempt <= p.cfg.MaxSellRetries; attempt++ {
		fill, err := client.CreateMarketSellOrder(ctx, symbol, amount)
		if err == nil {
			return fill, nil
		}
		lastErr = err
		log.Warn("sell attempt failed",
			slog.Int("attempt", attempt),
			slog.String("error", err.Error()),
		)
		if attempt < p.cfg.MaxSellRetries {
			if sleepErr := p.clock.Sleep(ctx, p.cfg.RetryDelay); sleepErr != nil {
				return domain.OrderFill{}, sleepErr
			}
		}
	}
	return domain.OrderFill{}, lastErr
}

// settle computes the realized result from the completed sell fill.
func (p *Protocol) settle(entry *domain.LedgerEntry, eval domain.EvaluatedOpportunity, buyNotional float64, sellFill domain.OrderFill) {
	sellNotional := sellFill.Filled * sellFill.Average
	entry.SellPrice = sellFill.Average
	entry.SellOrderID = sellFill.OrderID
	entry.FeesUSD += sellFill.FeeUSD
	entry.RealizedProfitUSD = sellNotional - buyNotional - entry.FeesUSD
	if eval.PositionSizeUSD > 0 {
		entry.ROIPct = entry.RealizedProfitUSD / eval.PositionSizeUSD * 100
	}
	entry.FinalState = domain.ExecSettled
}
