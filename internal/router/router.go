// Package router chooses an execution plan for an order from per-venue
// liquidity profiles: single venue, split across venues, or time/volume
// sliced for large orders.
package router

import (
	"log/slog"

	"github.com/arbot-io/arbot/internal/domain"
	"github.com/arbot-io/arbot/internal/liquidity"
)

// Config holds the routing thresholds and strategy switches.
type Config struct {
	LargeOrderThreshold float64 // base units at which slicing kicks in
	EnableVWAP          bool
	EnableTWAP          bool
	TWAPSlices          int
	TWAPIntervalMs      int64
	MinOrderSize        float64 // legs below this are dropped as dust
	SlippageTolerance   float64 // pct, for the single-venue fast path
}

// DefaultConfig returns the calibrated defaults.
func DefaultConfig() Config {
	return Config{
		LargeOrderThreshold: 10,
		EnableVWAP:          true,
		EnableTWAP:          true,
		TWAPSlices:          4,
		TWAPIntervalMs:      5000,
		MinOrderSize:        0.001,
		SlippageTolerance:   0.5,
	}
}

// Order is a routing request over a set of venue quotes.
type Order struct {
	Side   domain.Side
	Symbol string
	Amount float64 // base units
	Quotes []domain.VenueQuote
}

// Router builds execution plans. Depends only on the liquidity analyzer.
type Router struct {
	cfg      Config
	analyzer *liquidity.Analyzer
	logger   *slog.Logger
}

// New creates a Router over the given analyzer.
func New(cfg Config, analyzer *liquidity.Analyzer, logger *slog.Logger) *Router {
	return &Router{
		cfg:      cfg,
		analyzer: analyzer,
		logger:   logger.With(slog.String("component", "order_router")),
	}
}

// IsLarge reports whether amount crosses the large-order threshold, above
// which time- or volume-sliced strategies become eligible.
func (r *Router) IsLarge(amount float64) bool {
	return amount >= r.cfg.LargeOrderThreshold
}

// Route picks a strategy for the order and produces its plan. It returns
// domain.ErrNoLiquidity when no venue has any depth on the relevant side;
// thin books degrade to partial plans rather than failing.
func (r *Router) Route(order Order) (*domain.ExecutionPlan, error) {
	profiles := r.analyzer.Analyze(order.Quotes, order.Side, order.Amount)
	if len(profiles) == 0 {
		return nil, domain.ErrNoLiquidity
	}

	large := order.Amount >= r.cfg.LargeOrderThreshold
	var plan *domain.ExecutionPlan
	switch {
	case large && r.cfg.EnableVWAP:
		plan = r.vwap(order, profiles)
	case large && r.cfg.EnableTWAP:
		plan = r.twap(order, profiles)
	default:
		plan = r.bestExecution(order, profiles)
	}
	if len(plan.Legs) == 0 {
		return nil, domain.ErrNoLiquidity
	}

	finalize(plan, profiles)
	r.logger.Debug("routed order",
		slog.String("symbol", order.Symbol),
		slog.String("strategy", string(plan.Strategy)),
		slog.Int("legs", len(plan.Legs)),
		slog.Float64("amount", order.Amount),
	)
	return plan, nil
}

// vwap allocates the amount to venues proportionally to their share of total
// fillable liquidity. Dust legs below MinOrderSize are skipped.
func (r *Router) vwap(order Order, profiles []domain.LiquidityProfile) *domain.ExecutionPlan {
	var totalFillable float64
	for _, p := range profiles {
		totalFillable += p.CumulativeFillable
	}
	plan := &domain.ExecutionPlan{Strategy: domain.StrategyVWAP}
	if totalFillable <= 0 {
		return plan
	}
	for _, p := range profiles {
		amount := order.Amount * p.CumulativeFillable / totalFillable
		if amount < r.cfg.MinOrderSize {
			continue
		}
		plan.Legs = append(plan.Legs, domain.PlanLeg{
			Venue:         p.Venue,
			Amount:        amount,
			ExpectedPrice: p.AvgFillPrice,
		})
	}
	return plan
}

// twap splits the order into equal time-sliced chunks. Each chunk goes to the
// first venue by liquidity rank that alone can absorb it; chunks no venue can
// fill are dropped, leaving a gap rather than failing the plan.
func (r *Router) twap(order Order, profiles []domain.LiquidityProfile) *domain.ExecutionPlan {
	plan := &domain.ExecutionPlan{Strategy: domain.StrategyTWAP}
	slices := r.cfg.TWAPSlices
	if slices < 1 {
		slices = 1
	}
	chunk := order.Amount / float64(slices)
	for i := 0; i < slices; i++ {
		for _, p := range profiles {
			if p.CumulativeFillable < chunk {
				continue
			}
			plan.Legs = append(plan.Legs, domain.PlanLeg{
				Venue:         p.Venue,
				Amount:        chunk,
				ExpectedPrice: p.AvgFillPrice,
				DelayMs:       int64(i) * r.cfg.TWAPIntervalMs,
			})
			break
		}
	}
	return plan
}

// bestExecution sends the whole order to the top-ranked venue when it can
// fill fully within the slippage tolerance; otherwise it greedily splits
// across venues in rank order.
func (r *Router) bestExecution(order Order, profiles []domain.LiquidityProfile) *domain.ExecutionPlan {
	top := profiles[0]
	if top.CanFillFully && top.SlippagePct <= r.cfg.SlippageTolerance {
		return &domain.ExecutionPlan{
			Strategy: domain.StrategyBestExecution,
			Legs: []domain.PlanLeg{{
				Venue:         top.Venue,
				Amount:        order.Amount,
				ExpectedPrice: top.AvgFillPrice,
			}},
		}
	}

	plan := &domain.ExecutionPlan{Strategy: domain.StrategyMultiVenue}
	remaining := order.Amount
	for _, p := range profiles {
		if remaining <= 0 {
			break
		}
		amount := p.CumulativeFillable
		if amount > remaining {
			amount = remaining
		}
		if amount < r.cfg.MinOrderSize {
			continue
		}
		plan.Legs = append(plan.Legs, domain.PlanLeg{
			Venue:         p.Venue,
			Amount:        amount,
			ExpectedPrice: p.AvgFillPrice,
		})
		remaining -= amount
	}
	return plan
}

// finalize fills in the aggregate expected slippage (simple average of the
// leg venues' profile slippages) and the estimated notional cost.
func finalize(plan *domain.ExecutionPlan, profiles []domain.LiquidityProfile) {
	slipByVenue := make(map[string]float64, len(profiles))
	for _, p := range profiles {
		slipByVenue[p.Venue] = p.SlippagePct
	}

	var cost, slip float64
	for _, leg := range plan.Legs {
		cost += leg.Amount * leg.ExpectedPrice
		slip += slipByVenue[leg.Venue]
	}
	plan.EstimatedCostUSD = cost
	plan.TotalExpectedSlippage = slip / float64(len(plan.Legs))
}
