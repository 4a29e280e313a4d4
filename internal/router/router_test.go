package router

import (
	"io"
	"log/slog"
	"math"
	"testing"

	"github.com/arbot-io/arbot/internal/domain"
	"github.com/arbot-io/arbot/internal/liquidity"
)

func testRouter(cfg Config) *Router {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(cfg, liquidity.NewAnalyzer(liquidity.DefaultConfig()), logger)
}

func deepQuote(venue string, price, size float64) domain.VenueQuote {
	return domain.VenueQuote{
		Venue:  venue,
		Symbol: "BTC/USDT",
		Asks:   []domain.PriceLevel{{Price: price, Size: size}},
		Bids:   []domain.PriceLevel{{Price: price * 0.999, Size: size}},
	}
}

func TestRouteSmallOrderNeverSliced(t *testing.T) {
	r := testRouter(DefaultConfig())
	order := Order{
		Side:   domain.SideBuy,
		Symbol: "BTC/USDT",
		Amount: 2, // below the default threshold of 10
		Quotes: []domain.VenueQuote{deepQuote("binance", 50000, 100)},
	}

	plan, err := r.Route(order)
	if err != nil {
		t.Fatalf("route: %v", err)
	}
	if plan.Strategy == domain.StrategyTWAP || plan.Strategy == domain.StrategyVWAP {
		t.Fatalf("small order routed as %s", plan.Strategy)
	}
	if len(plan.Legs) != 1 || plan.Legs[0].Amount != 2 {
		t.Fatalf("expected single full leg, got %+v", plan.Legs)
	}
}

func TestRouteLargeOrderVWAPLegsSumToAmount(t *testing.T) {
	r := testRouter(DefaultConfig())
	order := Order{
		Side:   domain.SideBuy,
		Symbol: "BTC/USDT",
		Amount: 40,
		Quotes: []domain.VenueQuote{
			deepQuote("binance", 50000, 100),
			deepQuote("kraken", 50050, 100),
		},
	}

	plan, err := r.Route(order)
	if err != nil {
		t.Fatalf("route: %v", err)
	}
	if plan.Strategy != domain.StrategyVWAP {
		t.Fatalf("strategy = %s, want VWAP", plan.Strategy)
	}
	if math.Abs(plan.TotalAmount()-order.Amount) > 1e-9 {
		t.Fatalf("legs sum to %.6f, want %.6f", plan.TotalAmount(), order.Amount)
	}
	if len(plan.Legs) != 2 {
		t.Fatalf("expected 2 legs, got %d", len(plan.Legs))
	}
}

func TestRouteTWAPSlicesWithIncreasingDelays(t *testing.T) {
	cfg := DefaultConfig()
	cfg.EnableVWAP = false
	r := testRouter(cfg)
	order := Order{
		Side:   domain.SideBuy,
		Symbol: "BTC/USDT",
		Amount: 40,
		Quotes: []domain.VenueQuote{deepQuote("binance", 50000, 100)},
	}

	plan, err := r.Route(order)
	if err != nil {
		t.Fatalf("route: %v", err)
	}
	if plan.Strategy != domain.StrategyTWAP {
		t.Fatalf("strategy = %s, want TWAP", plan.Strategy)
	}
	if len(plan.Legs) != cfg.TWAPSlices {
		t.Fatalf("legs = %d, want %d", len(plan.Legs), cfg.TWAPSlices)
	}
	chunk := order.Amount / float64(cfg.TWAPSlices)
	for i, leg := range plan.Legs {
		if math.Abs(leg.Amount-chunk) > 1e-9 {
			t.Errorf("leg %d amount = %.4f, want %.4f", i, leg.Amount, chunk)
		}
		if want := int64(i) * cfg.TWAPIntervalMs; leg.DelayMs != want {
			t.Errorf("leg %d delay = %d, want %d", i, leg.DelayMs, want)
		}
	}
}

func TestRouteMultiVenueSplitWhenTopCannotFill(t *testing.T) {
	cfg := DefaultConfig()
	cfg.LargeOrderThreshold = 1000 // keep slicing out of the way
	r := testRouter(cfg)
	order := Order{
		Side:   domain.SideBuy,
		Symbol: "BTC/USDT",
		Amount: 8,
		Quotes: []domain.VenueQuote{
			deepQuote("binance", 50000, 5),
			deepQuote("kraken", 50050, 5),
		},
	}

	plan, err := r.Route(order)
	if err != nil {
		t.Fatalf("route: %v", err)
	}
	if plan.Strategy != domain.StrategyMultiVenue {
		t.Fatalf("strategy = %s, want MULTI_VENUE", plan.Strategy)
	}
	if math.Abs(plan.TotalAmount()-8) > 1e-9 {
		t.Fatalf("legs sum to %.4f, want 8", plan.TotalAmount())
	}
}

func TestRouteNoLiquidity(t *testing.T) {
	r := testRouter(DefaultConfig())
	order := Order{
		Side:   domain.SideBuy,
		Symbol: "BTC/USDT",
		Amount: 1,
		Quotes: []domain.VenueQuote{{Venue: "binance", Symbol: "BTC/USDT"}},
	}

	if _, err := r.Route(order); err != domain.ErrNoLiquidity {
		t.Fatalf("err = %v, want ErrNoLiquidity", err)
	}
}

func TestIsLarge(t *testing.T) {
	r := testRouter(DefaultConfig())
	if r.IsLarge(9.99) {
		t.Fatal("9.99 flagged large at threshold 10")
	}
	if !r.IsLarge(10) {
		t.Fatal("10 not flagged large at threshold 10")
	}
}
