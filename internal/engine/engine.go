// Package engine wires the decision pipeline: risk gate, route cost
// optimizer, order router and execution protocol, with outcomes posted to the
// ledger and attributed to the active variant.
package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/arbot-io/arbot/internal/domain"
	"github.com/arbot-io/arbot/internal/execution"
	"github.com/arbot-io/arbot/internal/fees"
	"github.com/arbot-io/arbot/internal/ledger"
	"github.com/arbot-io/arbot/internal/risk"
	"github.com/arbot-io/arbot/internal/router"
	"github.com/arbot-io/arbot/internal/variant"
)

// Channel and stream names on the signal bus.
const (
	ChannelOpportunities = "arbot:opportunities"
	ChannelTrades        = "arbot:trades"
	ChannelAlerts        = "arbot:alerts"
	StreamTrades         = "arbot:stream:trades"
)

// Config holds the engine tunables.
type Config struct {
	AutoExecute      bool // execute passing opportunities without an external trigger
	OrderBookDepth   int  // levels fetched per venue for routing
	RecentLimit      int  // opportunity snapshot ring size
	RotationInterval time.Duration
}

// DefaultConfig returns the calibrated defaults.
func DefaultConfig() Config {
	return Config{
		AutoExecute:      true,
		OrderBookDepth:   20,
		RecentLimit:      100,
		RotationInterval: time.Hour,
	}
}

// Decision is the full outcome of one decision cycle for one opportunity.
type Decision struct {
	Opportunity domain.Opportunity            `json:"opportunity"`
	Evaluated   *domain.EvaluatedOpportunity  `json:"evaluated,omitempty"`
	Routes      *fees.RouteReport             `json:"routes,omitempty"`
	Plan        *domain.ExecutionPlan         `json:"plan,omitempty"`
	Entry       *domain.LedgerEntry           `json:"entry,omitempty"`
	Rejected    string                        `json:"rejected,omitempty"`
}

// Alert is published on the alerts channel for conditions that need a human.
type Alert struct {
	Kind    string    `json:"kind"`
	Message string    `json:"message"`
	At      time.Time `json:"at"`
}

// Engine owns one decision loop instance. Evaluation is synchronous and
// side-effect-free; only execution touches exchanges.
type Engine struct {
	cfg       Config
	gate      *risk.Gate
	optimizer *fees.Optimizer
	orders    *router.Router
	protocol  *execution.Protocol
	books     *ledger.Ledger
	variants  *variant.Tester
	dir       domain.ExchangeDirectory
	bus       domain.SignalBus // optional

	mu     sync.Mutex
	recent []domain.Opportunity

	logger *slog.Logger
}

// New assembles an Engine from its components. bus may be nil; the engine
// then runs purely on direct Submit calls.
func New(
	cfg Config,
	gate *risk.Gate,
	optimizer *fees.Optimizer,
	orders *router.Router,
	protocol *execution.Protocol,
	books *ledger.Ledger,
	variants *variant.Tester,
	dir domain.ExchangeDirectory,
	bus domain.SignalBus,
	logger *slog.Logger,
) *Engine {
	if cfg.RecentLimit <= 0 {
		cfg.RecentLimit = 100
	}
	if cfg.OrderBookDepth <= 0 {
		cfg.OrderBookDepth = 20
	}
	return &Engine{
		cfg:       cfg,
		gate:      gate,
		optimizer: optimizer,
		orders:    orders,
		protocol:  protocol,
		books:     books,
		variants:  variants,
		dir:       dir,
		bus:       bus,
		logger:    logger.With(slog.String("component", "engine")),
	}
}

// Submit runs one full decision cycle for an opportunity. Economic rejections
// come back in Decision.Rejected with a nil error; errors are reserved for
// validation and execution failures.
func (e *Engine) Submit(ctx context.Context, opp domain.Opportunity, md *domain.MarketData) (*Decision, error) {
	if err := opp.Validate(); err != nil {
		return nil, err
	}
	e.remember(opp)
	e.variants.RecordOpportunity(ctx)

	decision := &Decision{Opportunity: opp}

	gate := e.gate.WithParams(e.variants.Params())
	eval := gate.Evaluate(opp, md)
	if eval == nil {
		decision.Rejected = "risk_gate"
		return decision, nil
	}
	decision.Evaluated = eval

	report := e.optimizer.Optimize(opp, eval.PositionSizeUSD)
	decision.Routes = &report
	if report.NetProfitAfterFeesUSD <= 0 {
		decision.Rejected = "negative_after_route_fees"
		e.logger.Debug("rejected: no route clears fees",
			slog.String("coin", opp.Coin),
			slog.Float64("net_after_fees_usd", report.NetProfitAfterFeesUSD),
		)
		return decision, nil
	}

	plan, err := e.planIfLarge(ctx, eval)
	if err != nil {
		return decision, err
	}
	decision.Plan = plan

	if !e.cfg.AutoExecute {
		return decision, nil
	}
	return decision, e.execute(ctx, decision)
}

// Execute runs the execution half of a previously evaluated decision, for
// callers that gate execution behind an external trigger.
func (e *Engine) Execute(ctx context.Context, decision *Decision) error {
	if decision.Evaluated == nil {
		return fmt.Errorf("engine: decision was not evaluated")
	}
	return e.execute(ctx, decision)
}

func (e *Engine) execute(ctx context.Context, decision *Decision) error {
	eval := *decision.Evaluated
	entry, err := e.protocol.Execute(ctx, eval, decision.Plan)
	if entry != nil {
		decision.Entry = entry
		e.books.Record(ctx, *entry)
		e.variants.RecordTrade(ctx, entry.RealizedProfitUSD, entry.FeesUSD)
		e.publishTrade(ctx, *entry)
	}
	if err != nil {
		e.alert(ctx, err, eval)
		return err
	}
	return nil
}

// planIfLarge builds a routed plan when the base amount crosses the router's
// large-order threshold; below it, the protocol's single-order path is used.
func (e *Engine) planIfLarge(ctx context.Context, eval *domain.EvaluatedOpportunity) (*domain.ExecutionPlan, error) {
	amount := eval.PositionSizeUSD / eval.BuyPrice
	if !e.orders.IsLarge(amount) {
		return nil, nil
	}
	quotes := e.fetchQuotes(ctx, eval.Symbol())
	if len(quotes) == 0 {
		// No books reachable; fall back to the single-order path rather than
		// dropping a gated opportunity.
		e.logger.Warn("no order books for routing, using single order",
			slog.String("symbol", eval.Symbol()),
		)
		return nil, nil
	}
	plan, err := e.orders.Route(router.Order{
		Side:   domain.SideBuy,
		Symbol: eval.Symbol(),
		Amount: amount,
		Quotes: quotes,
	})
	if err != nil {
		return nil, fmt.Errorf("engine: route %s: %w", eval.Symbol(), err)
	}
	return plan, nil
}

func (e *Engine) fetchQuotes(ctx context.Context, symbol string) []domain.VenueQuote {
	var quotes []domain.VenueQuote
	for _, name := range e.dir.Names() {
		client, err := e.dir.Venue(name)
		if err != nil {
			continue
		}
		quote, err := client.FetchOrderBook(ctx, symbol, e.cfg.OrderBookDepth)
		if err != nil {
			e.logger.Debug("order book fetch failed",
				slog.String("venue", name),
				slog.String("error", err.Error()),
			)
			continue
		}
		quotes = append(quotes, quote)
	}
	return quotes
}

// Run consumes opportunities from the signal bus and rotates variants until
// the context ends. It requires a bus.
func (e *Engine) Run(ctx context.Context) error {
	if e.bus == nil {
		return fmt.Errorf("engine: run requires a signal bus")
	}
	msgs, err := e.bus.Subscribe(ctx, ChannelOpportunities)
	if err != nil {
		return fmt.Errorf("engine: subscribe opportunities: %w", err)
	}

	rotate := time.NewTicker(e.rotationInterval())
	defer rotate.Stop()

	e.logger.Info("engine started",
		slog.Bool("auto_execute", e.cfg.AutoExecute),
		slog.String("rotation_interval", e.rotationInterval().String()),
	)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-rotate.C:
			e.variants.Rotate(ctx)
		case payload, ok := <-msgs:
			if !ok {
				return fmt.Errorf("engine: opportunity channel closed")
			}
			e.handlePayload(ctx, payload)
		}
	}
}

func (e *Engine) rotationInterval() time.Duration {
	if e.cfg.RotationInterval <= 0 {
		return time.Hour
	}
	return e.cfg.RotationInterval
}

func (e *Engine) handlePayload(ctx context.Context, payload []byte) {
	var msg struct {
		domain.Opportunity
		Market *domain.MarketData `json:"market,omitempty"`
	}
	if err := json.Unmarshal(payload, &msg); err != nil {
		e.logger.Warn("malformed opportunity payload", slog.String("error", err.Error()))
		return
	}
	if _, err := e.Submit(ctx, msg.Opportunity, msg.Market); err != nil {
		e.logger.Error("decision cycle failed",
			slog.String("coin", msg.Coin),
			slog.String("error", err.Error()),
		)
	}
}

func (e *Engine) publishTrade(ctx context.Context, entry domain.LedgerEntry) {
	if e.bus == nil {
		return
	}
	payload, err := json.Marshal(entry)
	if err != nil {
		return
	}
	if err := e.bus.Publish(ctx, ChannelTrades, payload); err != nil {
		e.logger.Warn("trade publish failed", slog.String("error", err.Error()))
	}
	if err := e.bus.StreamAppend(ctx, StreamTrades, payload); err != nil {
		e.logger.Warn("trade stream append failed", slog.String("error", err.Error()))
	}
}

func (e *Engine) alert(ctx context.Context, execErr error, eval domain.EvaluatedOpportunity) {
	var kind string
	switch {
	case errors.Is(execErr, domain.ErrStrandedInventory):
		kind = "stranded_inventory"
	case errors.Is(execErr, domain.ErrCapacityExceeded):
		kind = "capacity_exceeded"
	default:
		kind = "execution_failed"
	}
	e.logger.Error("execution alert",
		slog.String("kind", kind),
		slog.String("coin", eval.Coin),
		slog.String("error", execErr.Error()),
	)
	if e.bus == nil {
		return
	}
	payload, err := json.Marshal(Alert{
		Kind:    kind,
		Message: fmt.Sprintf("%s %s/%s: %v", eval.Coin, eval.BuyVenue, eval.SellVenue, execErr),
		At:      time.Now().UTC(),
	})
	if err != nil {
		return
	}
	if err := e.bus.Publish(ctx, ChannelAlerts, payload); err != nil {
		e.logger.Warn("alert publish failed", slog.String("error", err.Error()))
	}
}

func (e *Engine) remember(opp domain.Opportunity) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.recent = append(e.recent, opp)
	if len(e.recent) > e.cfg.RecentLimit {
		e.recent = e.recent[len(e.recent)-e.cfg.RecentLimit:]
	}
}

// RecentOpportunities returns the newest observed opportunities, newest
// first, optionally filtered by coin.
func (e *Engine) RecentOpportunities(coin string) []domain.Opportunity {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]domain.Opportunity, 0, len(e.recent))
	for i := len(e.recent) - 1; i >= 0; i-- {
		if coin != "" && !strings.EqualFold(e.recent[i].Coin, coin) {
			continue
		}
		out = append(out, e.recent[i])
	}
	return out
}
