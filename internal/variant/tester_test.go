package variant

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/arbot-io/arbot/internal/domain"
	"github.com/arbot-io/arbot/internal/store/memory"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testVariants() []domain.Variant {
	return []domain.Variant{
		{Name: "conservative", Params: domain.VariantParams{MinSpreadPct: 0.5, RiskThreshold: 0.6, PositionSizeCapUSD: 500}},
		{Name: "baseline", Params: domain.VariantParams{MinSpreadPct: 0.3, RiskThreshold: 0.5, PositionSizeCapUSD: 1000}},
		{Name: "aggressive", Params: domain.VariantParams{MinSpreadPct: 0.2, RiskThreshold: 0.4, PositionSizeCapUSD: 1500}},
	}
}

func newTester(t *testing.T) *Tester {
	t.Helper()
	tester, err := NewTester(Config{RotationInterval: time.Hour, MinSampleSize: 3}, testVariants(), testLogger())
	if err != nil {
		t.Fatalf("new tester: %v", err)
	}
	return tester
}

func TestNewTesterRejectsBadSets(t *testing.T) {
	if _, err := NewTester(DefaultConfig(), nil, testLogger()); err == nil {
		t.Fatal("empty variant set accepted")
	}
	dup := []domain.Variant{{Name: "a"}, {Name: "a"}}
	if _, err := NewTester(DefaultConfig(), dup, testLogger()); err == nil {
		t.Fatal("duplicate names accepted")
	}
	unnamed := []domain.Variant{{Name: ""}}
	if _, err := NewTester(DefaultConfig(), unnamed, testLogger()); err == nil {
		t.Fatal("unnamed variant accepted")
	}
}

func TestRotationCyclesAndPreservesAccumulators(t *testing.T) {
	tester := newTester(t)
	ctx := context.Background()

	if got := tester.Active().Name; got != "conservative" {
		t.Fatalf("initial active = %s, want conservative", got)
	}
	tester.RecordTrade(ctx, 10, 1)
	tester.RecordTrade(ctx, -2, 1)

	tester.Rotate(ctx)
	if got := tester.Active().Name; got != "baseline" {
		t.Fatalf("active after rotate = %s, want baseline", got)
	}

	// Rotate all the way around; conservative keeps its history.
	tester.Rotate(ctx)
	back := tester.Rotate(ctx)
	if back.Name != "conservative" {
		t.Fatalf("wrapped to %s, want conservative", back.Name)
	}
	if back.Trades != 2 || back.Wins != 1 || back.Losses != 1 {
		t.Fatalf("accumulators reset by rotation: %+v", back)
	}
	if back.ProfitUSD != 8 {
		t.Fatalf("profit = %.2f, want 8", back.ProfitUSD)
	}
	if back.ActiveSince.IsZero() {
		t.Fatal("ActiveSince not set on the incoming variant")
	}
}

func TestParamsFollowActiveVariant(t *testing.T) {
	tester := newTester(t)
	if got := tester.Params().PositionSizeCapUSD; got != 500 {
		t.Fatalf("cap = %.0f, want conservative's 500", got)
	}
	tester.Rotate(context.Background())
	if got := tester.Params().PositionSizeCapUSD; got != 1000 {
		t.Fatalf("cap = %.0f, want baseline's 1000", got)
	}
}

func TestReportEligibilityRequiresMinSample(t *testing.T) {
	tester := newTester(t)
	ctx := context.Background()

	tester.RecordTrade(ctx, 10, 1)
	tester.RecordTrade(ctx, 10, 1)

	report := tester.Report()
	if report[0].Eligible {
		t.Fatal("2 trades marked eligible at MinSampleSize 3")
	}
	if report[0].Score != 0 {
		t.Fatalf("ineligible variant carries score %.2f", report[0].Score)
	}

	tester.RecordTrade(ctx, 10, 1)
	report = tester.Report()
	if !report[0].Eligible {
		t.Fatal("3 trades not eligible at MinSampleSize 3")
	}
	// Profit 30 at 100% win rate: 30*0.7 + 100*0.2 + 10*0.1 = 42.
	if report[0].Score != 42 {
		t.Fatalf("score = %.2f, want 42", report[0].Score)
	}
	if !report[0].Active {
		t.Fatal("active flag lost in report")
	}
}

func TestBestPicksHighestEligibleScore(t *testing.T) {
	tester := newTester(t)
	ctx := context.Background()

	if _, ok := tester.Best(); ok {
		t.Fatal("Best reported a winner with no samples")
	}

	for i := 0; i < 3; i++ {
		tester.RecordTrade(ctx, 5, 1)
	}
	tester.Rotate(ctx)
	for i := 0; i < 3; i++ {
		tester.RecordTrade(ctx, 50, 1)
	}

	best, ok := tester.Best()
	if !ok {
		t.Fatal("no best variant found")
	}
	if best.Name != "baseline" {
		t.Fatalf("best = %s, want baseline", best.Name)
	}
}

func TestRecordOpportunityAttributesToActive(t *testing.T) {
	tester := newTester(t)
	ctx := context.Background()
	tester.RecordOpportunity(ctx)
	tester.RecordOpportunity(ctx)

	if got := tester.Active().Opportunities; got != 2 {
		t.Fatalf("opportunities = %d, want 2", got)
	}
}

func TestLoadRestoresAccumulatorsKeepsConfiguredParams(t *testing.T) {
	store := memory.NewVariantStore()
	ctx := context.Background()

	first := newTester(t)
	first.AttachStore(store)
	first.RecordTrade(ctx, 25, 2)
	first.RecordTrade(ctx, 25, 2)

	second := newTester(t)
	second.AttachStore(store)
	if err := second.Load(ctx); err != nil {
		t.Fatalf("load: %v", err)
	}

	v := second.Active()
	if v.Trades != 2 || v.ProfitUSD != 50 {
		t.Fatalf("accumulators not restored: %+v", v)
	}
	// Configured parameters win over whatever was persisted.
	if v.Params.PositionSizeCapUSD != 500 {
		t.Fatalf("params overwritten by load: %+v", v.Params)
	}
}
