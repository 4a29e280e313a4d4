package fees

import (
	"testing"

	"github.com/arbot-io/arbot/internal/domain"
)

func testOpportunity() domain.Opportunity {
	return domain.Opportunity{
		ID:             "opp-1",
		Coin:           "BTC",
		BuyVenue:       "binance",
		SellVenue:      "coinbase",
		BuyPrice:       50000,
		SellPrice:      50900,
		GrossSpreadPct: 1.8,
	}
}

func TestOptimizeRecommendedIsCheapest(t *testing.T) {
	o := NewOptimizer(Default())
	report := o.Optimize(testOpportunity(), 1000)

	if len(report.Alternatives) != 4 {
		t.Fatalf("expected 4 routes, got %d", len(report.Alternatives))
	}
	for i, r := range report.Alternatives {
		if report.Recommended.TotalFeeUSD > r.TotalFeeUSD {
			t.Errorf("route %d (%s/%s) is cheaper than recommended: %.4f < %.4f",
				i, r.BuyType, r.SellType, r.TotalFeeUSD, report.Recommended.TotalFeeUSD)
		}
		if report.Worst.TotalFeeUSD < r.TotalFeeUSD {
			t.Errorf("route %d (%s/%s) is pricier than worst: %.4f > %.4f",
				i, r.BuyType, r.SellType, r.TotalFeeUSD, report.Worst.TotalFeeUSD)
		}
	}
	if report.FeeSavingsUSD < 0 {
		t.Fatalf("fee savings negative: %.4f", report.FeeSavingsUSD)
	}
}

func TestOptimizeMakerMakerWinsForCoinbase(t *testing.T) {
	// Coinbase taker is 0.60% vs maker 0.40%, so maker/maker must win.
	o := NewOptimizer(Default())
	report := o.Optimize(testOpportunity(), 1000)

	if report.Recommended.BuyType != Maker || report.Recommended.SellType != Maker {
		t.Fatalf("recommended = %s/%s, want maker/maker",
			report.Recommended.BuyType, report.Recommended.SellType)
	}
}

func TestOptimizeNetProfitSubtractsAllFees(t *testing.T) {
	o := NewOptimizer(Default())
	opp := testOpportunity()
	report := o.Optimize(opp, 1000)

	gross := opp.GrossSpreadPct / 100 * 1000
	want := gross - report.Recommended.TotalFeeUSD
	if diff := report.NetProfitAfterFeesUSD - want; diff > 1e-9 || diff < -1e-9 {
		t.Fatalf("net profit = %.6f, want %.6f", report.NetProfitAfterFeesUSD, want)
	}
}

func TestOptimizeTransferFeesIdenticalAcrossRoutes(t *testing.T) {
	o := NewOptimizer(Default())
	report := o.Optimize(testOpportunity(), 1000)

	for i, r := range report.Alternatives {
		if r.WithdrawalFeeUSD != report.Alternatives[0].WithdrawalFeeUSD {
			t.Errorf("route %d withdrawal fee differs", i)
		}
		if r.NetworkFeeUSD != report.Alternatives[0].NetworkFeeUSD {
			t.Errorf("route %d network fee differs", i)
		}
	}
}
