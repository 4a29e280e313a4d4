package allocation

import (
	"context"
	"io"
	"log/slog"
	"math"
	"testing"
	"time"

	"github.com/arbot-io/arbot/internal/domain"
)

// stubStats returns a fixed pair-stat set.
type stubStats struct {
	pairs []domain.PairStat
}

func (s *stubStats) TopPairs(ctx context.Context, lookbackDays, limit int) ([]domain.PairStat, error) {
	return s.pairs, nil
}

func testPredictor(pairs []domain.PairStat) *Predictor {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewPredictor(DefaultConfig(), &stubStats{pairs: pairs}, logger)
}

func recentPairs() []domain.PairStat {
	now := time.Now().UTC()
	return []domain.PairStat{
		{BuyVenue: "binance", SellVenue: "kraken", Count: 40, TotalProfitUSD: 800, LastSeen: now.Add(-2 * time.Hour)},
		{BuyVenue: "kraken", SellVenue: "coinbase", Count: 10, TotalProfitUSD: 150, LastSeen: now.Add(-24 * time.Hour)},
	}
}

func TestPredictTargetsPlusReserveEqualCapital(t *testing.T) {
	p := testPredictor(recentPairs())
	venues := []string{"binance", "kraken", "coinbase", "kucoin"}

	target, err := p.PredictOptimalDistribution(context.Background(), 10_000, venues)
	if err != nil {
		t.Fatalf("predict: %v", err)
	}
	if len(target) != len(venues) {
		t.Fatalf("targets for %d venues, want %d", len(target), len(venues))
	}
	sum := target.Total() + DefaultConfig().ReserveUSD
	if math.Abs(sum-10_000) > 1e-6 {
		t.Fatalf("targets+reserve = %.6f, want 10000", sum)
	}
}

func TestPredictProfitableVenuesGetMore(t *testing.T) {
	p := testPredictor(recentPairs())
	venues := []string{"binance", "kraken", "coinbase", "kucoin"}

	target, err := p.PredictOptimalDistribution(context.Background(), 10_000, venues)
	if err != nil {
		t.Fatalf("predict: %v", err)
	}
	// binance and kraken carry the most profitable recent pair.
	if target["binance"] <= target["kucoin"] {
		t.Fatalf("binance %.2f not above no-history kucoin %.2f", target["binance"], target["kucoin"])
	}
	if target["kraken"] <= target["coinbase"] {
		t.Fatalf("kraken %.2f not above coinbase %.2f", target["kraken"], target["coinbase"])
	}
}

func TestPredictNoHistorySplitsEqually(t *testing.T) {
	p := testPredictor(nil)
	venues := []string{"binance", "kraken"}

	target, err := p.PredictOptimalDistribution(context.Background(), 4_500, venues)
	if err != nil {
		t.Fatalf("predict: %v", err)
	}
	if math.Abs(target["binance"]-target["kraken"]) > 1e-6 {
		t.Fatalf("equal split expected, got %.2f vs %.2f", target["binance"], target["kraken"])
	}
	sum := target.Total() + DefaultConfig().ReserveUSD
	if math.Abs(sum-4_500) > 1e-6 {
		t.Fatalf("targets+reserve = %.6f, want 4500", sum)
	}
}

func TestPredictCapitalBelowReserve(t *testing.T) {
	p := testPredictor(nil)
	if _, err := p.PredictOptimalDistribution(context.Background(), 400, []string{"binance"}); err == nil {
		t.Fatal("expected error when capital does not cover the reserve")
	}
}

func TestShouldRebalanceThreshold(t *testing.T) {
	p := testPredictor(nil)
	target := domain.AllocationTarget{"binance": 1000, "kraken": 1000}

	// 10% off: under the 20% default threshold.
	if p.ShouldRebalance(map[string]float64{"binance": 1100, "kraken": 900}, target) {
		t.Fatal("rebalance triggered inside threshold")
	}
	// 50% off on one venue.
	if !p.ShouldRebalance(map[string]float64{"binance": 1500, "kraken": 1000}, target) {
		t.Fatal("rebalance not triggered at 50% divergence")
	}
}

func TestCalculateTransfersRespectsMinKeep(t *testing.T) {
	p := testPredictor(nil)
	current := map[string]float64{"binance": 2000, "kraken": 100}
	target := domain.AllocationTarget{"binance": 500, "kraken": 1600}

	plan := p.CalculateTransfers(current, target)
	cfg := DefaultConfig()
	moved := map[string]float64{}
	for _, tr := range plan.Transfers {
		if tr.AmountUSD < cfg.MinTransferUSD {
			t.Fatalf("transfer of %.2f below minimum %.2f", tr.AmountUSD, cfg.MinTransferUSD)
		}
		moved[tr.From] += tr.AmountUSD
	}
	for venue, out := range moved {
		if remaining := current[venue] - out; remaining < cfg.MinKeepBalanceUSD-1e-9 {
			t.Fatalf("%s drained to %.2f, below keep minimum %.2f", venue, remaining, cfg.MinKeepBalanceUSD)
		}
	}
	if plan.TotalMoved <= 0 {
		t.Fatal("no capital moved despite a clear imbalance")
	}
}

func TestCalculateTransfersReportsShortfall(t *testing.T) {
	p := testPredictor(nil)
	// Surplus source can give at most 1000-50=950 but the deficit needs 1500.
	current := map[string]float64{"binance": 1000, "kraken": 0}
	target := domain.AllocationTarget{"binance": 0, "kraken": 1500}

	plan := p.CalculateTransfers(current, target)
	want := 1500.0 - 950.0
	if math.Abs(plan.ShortfallUSD-want) > 1e-9 {
		t.Fatalf("shortfall = %.2f, want %.2f", plan.ShortfallUSD, want)
	}
}

func TestCalculateTransfersDropsDust(t *testing.T) {
	p := testPredictor(nil)
	// 10 USD imbalance is below the 25 USD minimum transfer.
	current := map[string]float64{"binance": 1010, "kraken": 990}
	target := domain.AllocationTarget{"binance": 1000, "kraken": 1000}

	plan := p.CalculateTransfers(current, target)
	if len(plan.Transfers) != 0 {
		t.Fatalf("dust transfer emitted: %+v", plan.Transfers)
	}
}
