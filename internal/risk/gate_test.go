package risk

import (
	"io"
	"log/slog"
	"testing"

	"github.com/arbot-io/arbot/internal/domain"
	"github.com/arbot-io/arbot/internal/fees"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func opp(buyVenue, sellVenue string, grossPct float64) domain.Opportunity {
	return domain.Opportunity{
		ID:             "opp-1",
		Coin:           "BTC",
		BuyVenue:       buyVenue,
		SellVenue:      sellVenue,
		BuyPrice:       50000,
		SellPrice:      50000 * (1 + grossPct/100),
		GrossSpreadPct: grossPct,
	}
}

func TestEvaluateRejectsNetSpreadBelowMinimum(t *testing.T) {
	g := NewGate(DefaultConfig(), fees.Default(), testLogger())

	// binance taker 0.10 + coinbase taker 0.60 eats a 0.5% gross spread.
	if eval := g.Evaluate(opp("binance", "coinbase", 0.5), nil); eval != nil {
		t.Fatalf("expected rejection, got eval with net spread %.4f", eval.NetSpreadPct)
	}
}

func TestEvaluateRejectsLowRiskScore(t *testing.T) {
	g := NewGate(DefaultConfig(), fees.Default(), testLogger())

	// Net spread clears the minimum but the spread factor alone leaves the
	// score at 0.3+0.7*(0.8/5) = 0.412, below the 0.5 threshold.
	if eval := g.Evaluate(opp("binance", "kraken", 0.8), nil); eval != nil {
		t.Fatalf("expected risk-score rejection, got score %.4f", eval.RiskScore)
	}
}

func TestEvaluatePassesAndSizes(t *testing.T) {
	g := NewGate(DefaultConfig(), fees.Default(), testLogger())

	eval := g.Evaluate(opp("binance", "kraken", 2.0), nil)
	if eval == nil {
		t.Fatal("expected pass")
	}
	wantNet := 2.0 - (0.10 + 0.26)
	if diff := eval.NetSpreadPct - wantNet; diff > 1e-9 || diff < -1e-9 {
		t.Fatalf("net spread = %.4f, want %.4f", eval.NetSpreadPct, wantNet)
	}
	// Tier-1 pair, gross >= 1%: full cap.
	if eval.PositionSizeUSD != 1000 {
		t.Fatalf("position = %.2f, want 1000", eval.PositionSizeUSD)
	}
	wantProfit := wantNet / 100 * 1000
	if diff := eval.ExpectedProfitUSD - wantProfit; diff > 1e-9 || diff < -1e-9 {
		t.Fatalf("expected profit = %.4f, want %.4f", eval.ExpectedProfitUSD, wantProfit)
	}
}

func TestEvaluateHalvesSizeBelowOnePercentSpread(t *testing.T) {
	g := NewGate(DefaultConfig(), fees.Default(), testLogger()).
		WithParams(domain.VariantParams{MinSpreadPct: 0.3, RiskThreshold: 0.4, PositionSizeCapUSD: 1000})

	eval := g.Evaluate(opp("binance", "kraken", 0.9), nil)
	if eval == nil {
		t.Fatal("expected pass at relaxed threshold")
	}
	if eval.PositionSizeUSD != 500 {
		t.Fatalf("position = %.2f, want 500 (half cap below 1%% gross)", eval.PositionSizeUSD)
	}
}

func TestEvaluateCutsSizeOnLowVolume(t *testing.T) {
	g := NewGate(DefaultConfig(), fees.Default(), testLogger()).
		WithParams(domain.VariantParams{MinSpreadPct: 0.3, RiskThreshold: 0.4, PositionSizeCapUSD: 1000})

	md := &domain.MarketData{VolumeUSD: 50_000}
	eval := g.Evaluate(opp("binance", "kraken", 4.0), md)
	if eval == nil {
		t.Fatal("expected pass")
	}
	if eval.PositionSizeUSD != 300 {
		t.Fatalf("position = %.2f, want 300 (low-volume cut)", eval.PositionSizeUSD)
	}
}

func TestEvaluateSizeNeverExceedsCap(t *testing.T) {
	g := NewGate(DefaultConfig(), fees.Default(), testLogger())

	for _, gross := range []float64{1.0, 2.0, 5.0, 10.0} {
		eval := g.Evaluate(opp("binance", "kraken", gross), &domain.MarketData{VolumeUSD: 5_000_000})
		if eval == nil {
			continue
		}
		if eval.PositionSizeUSD > 1000 {
			t.Errorf("gross %.1f: position %.2f exceeds cap 1000", gross, eval.PositionSizeUSD)
		}
	}
}

func TestWithParamsDoesNotMutateOriginal(t *testing.T) {
	g := NewGate(DefaultConfig(), fees.Default(), testLogger())
	_ = g.WithParams(domain.VariantParams{MinSpreadPct: 5, RiskThreshold: 0.99, PositionSizeCapUSD: 1})

	// The original gate still passes what it passed before.
	if eval := g.Evaluate(opp("binance", "kraken", 2.0), nil); eval == nil {
		t.Fatal("original gate was mutated by WithParams")
	}
}

func TestVenueTierAffectsReliability(t *testing.T) {
	g := NewGate(DefaultConfig(), fees.Default(), testLogger())

	tier1 := g.Evaluate(opp("binance", "kraken", 3.0), nil)
	unknown := g.Evaluate(opp("binance", "someexchange", 3.0), nil)
	if tier1 == nil || unknown == nil {
		t.Fatal("expected both to pass at 3% gross")
	}
	if unknown.RiskScore >= tier1.RiskScore {
		t.Fatalf("unknown venue score %.4f not below tier-1 score %.4f",
			unknown.RiskScore, tier1.RiskScore)
	}
	if unknown.PositionSizeUSD >= tier1.PositionSizeUSD {
		t.Fatalf("unknown venue position %.2f not below tier-1 position %.2f",
			unknown.PositionSizeUSD, tier1.PositionSizeUSD)
	}
}
