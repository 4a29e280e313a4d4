package engine

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/arbot-io/arbot/internal/domain"
	"github.com/arbot-io/arbot/internal/exchange"
	"github.com/arbot-io/arbot/internal/execution"
	"github.com/arbot-io/arbot/internal/fees"
	"github.com/arbot-io/arbot/internal/ledger"
	"github.com/arbot-io/arbot/internal/liquidity"
	"github.com/arbot-io/arbot/internal/risk"
	"github.com/arbot-io/arbot/internal/router"
	"github.com/arbot-io/arbot/internal/variant"
)

// testHarness wires a full engine over two paper venues.
type testHarness struct {
	engine  *Engine
	books   *ledger.Ledger
	tester  *variant.Tester
	binance *exchange.Paper
	kraken  *exchange.Paper
}

func newHarness(t *testing.T) *testHarness {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	model := fees.Default()

	binance := exchange.NewPaper(exchange.PaperConfig{
		Name:     "binance",
		Balances: domain.Balances{"USDT": 10_000, "SOL": 20},
	})
	binance.SetPrice("SOL/USDT", 100)
	binance.SetPrice("BTC/USDT", 50_000)
	binance.SetOrderBook("SOL/USDT",
		[]domain.PriceLevel{{Price: 99.9, Size: 100}},
		[]domain.PriceLevel{{Price: 100, Size: 100}},
	)

	kraken := exchange.NewPaper(exchange.PaperConfig{
		Name:     "kraken",
		Balances: domain.Balances{"USDT": 10_000, "SOL": 20, "BTC": 1},
	})
	kraken.SetPrice("SOL/USDT", 101.8)
	kraken.SetPrice("BTC/USDT", 50_900)
	kraken.SetOrderBook("SOL/USDT",
		[]domain.PriceLevel{{Price: 101.8, Size: 100}},
		[]domain.PriceLevel{{Price: 101.9, Size: 100}},
	)

	dir := exchange.NewDirectory(binance, kraken)
	gate := risk.NewGate(risk.DefaultConfig(), model, logger)
	optimizer := fees.NewOptimizer(model)
	orders := router.New(router.DefaultConfig(), liquidity.NewAnalyzer(liquidity.DefaultConfig()), logger)
	protocol := execution.NewProtocol(execution.DefaultConfig(), dir, nil, logger)
	books := ledger.New(ledger.Config{
		Venues:          []string{"binance", "kraken"},
		InitialQuoteUSD: 10_000,
	}, model, logger)

	tester, err := variant.NewTester(variant.DefaultConfig(), []domain.Variant{
		{Name: "baseline", Params: domain.VariantParams{
			MinSpreadPct: 0.3, RiskThreshold: 0.5, PositionSizeCapUSD: 1000,
		}},
	}, logger)
	require.NoError(t, err)

	eng := New(DefaultConfig(), gate, optimizer, orders, protocol, books, tester, dir, nil, logger)
	return &testHarness{engine: eng, books: books, tester: tester, binance: binance, kraken: kraken}
}

func solOpportunity() domain.Opportunity {
	return domain.Opportunity{
		ID:             "opp-sol",
		Coin:           "SOL",
		BuyVenue:       "binance",
		SellVenue:      "kraken",
		BuyPrice:       100,
		SellPrice:      101.8,
		GrossSpreadPct: 1.8,
		ObservedAt:     time.Now().UTC(),
	}
}

func TestSubmitExecutesProfitableOpportunity(t *testing.T) {
	h := newHarness(t)

	decision, err := h.engine.Submit(context.Background(), solOpportunity(), nil)
	require.NoError(t, err)
	require.Empty(t, decision.Rejected)
	require.NotNil(t, decision.Evaluated)
	require.NotNil(t, decision.Routes)
	require.Greater(t, decision.Routes.NetProfitAfterFeesUSD, 0.0)

	// 10 SOL crosses the large-order threshold; the router must have planned.
	require.NotNil(t, decision.Plan)
	require.InDelta(t, 10.0, decision.Plan.TotalAmount(), 1e-9)

	require.NotNil(t, decision.Entry)
	require.True(t, decision.Entry.Success)
	require.Greater(t, decision.Entry.RealizedProfitUSD, 0.0)

	// The trade is on the books and attributed to the active variant.
	require.Len(t, h.books.Entries(), 1)
	active := h.tester.Active()
	require.EqualValues(t, 1, active.Trades)
	require.EqualValues(t, 1, active.Opportunities)
	require.Greater(t, active.ProfitUSD, 0.0)
}

func TestSubmitRejectsThinSpread(t *testing.T) {
	h := newHarness(t)

	opp := solOpportunity()
	opp.SellPrice = 100.3
	opp.GrossSpreadPct = 0.3

	decision, err := h.engine.Submit(context.Background(), opp, nil)
	require.NoError(t, err)
	require.Equal(t, "risk_gate", decision.Rejected)
	require.Nil(t, decision.Entry)
	require.Empty(t, h.books.Entries())

	// Considered but not traded.
	active := h.tester.Active()
	require.EqualValues(t, 1, active.Opportunities)
	require.EqualValues(t, 0, active.Trades)
}

func TestSubmitRejectsWhenTransferFeesEatTheEdge(t *testing.T) {
	h := newHarness(t)

	// BTC moves cost ~33 USD in withdrawal+network fees; an 18 USD gross
	// profit cannot clear them.
	opp := domain.Opportunity{
		ID:             "opp-btc",
		Coin:           "BTC",
		BuyVenue:       "binance",
		SellVenue:      "kraken",
		BuyPrice:       50_000,
		SellPrice:      50_900,
		GrossSpreadPct: 1.8,
		ObservedAt:     time.Now().UTC(),
	}

	decision, err := h.engine.Submit(context.Background(), opp, nil)
	require.NoError(t, err)
	require.Equal(t, "negative_after_route_fees", decision.Rejected)
	require.NotNil(t, decision.Evaluated)
	require.Nil(t, decision.Entry)
}

func TestSubmitRejectsInvalidOpportunity(t *testing.T) {
	h := newHarness(t)

	_, err := h.engine.Submit(context.Background(), domain.Opportunity{Coin: "SOL"}, nil)
	require.ErrorIs(t, err, domain.ErrInvalidOpportunity)
}

func TestRecentOpportunitiesFilterByCoin(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.engine.Submit(ctx, solOpportunity(), nil)
	require.NoError(t, err)

	btc := solOpportunity()
	btc.ID = "opp-btc"
	btc.Coin = "BTC"
	btc.BuyPrice = 50_000
	btc.SellPrice = 50_900
	_, err = h.engine.Submit(ctx, btc, nil)
	require.NoError(t, err)

	all := h.engine.RecentOpportunities("")
	require.Len(t, all, 2)
	require.Equal(t, "opp-btc", all[0].ID, "newest first")

	solOnly := h.engine.RecentOpportunities("SOL")
	require.Len(t, solOnly, 1)
	require.Equal(t, "opp-sol", solOnly[0].ID)
}
