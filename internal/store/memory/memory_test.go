package memory

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/arbot-io/arbot/internal/domain"
)

func entry(ts time.Time, buy, sell string, profit float64, ok bool) domain.LedgerEntry {
	return domain.LedgerEntry{
		Coin:              "SOL",
		BuyVenue:          buy,
		SellVenue:         sell,
		BuyPrice:          100,
		SellPrice:         101,
		RealizedProfitUSD: profit,
		Success:           ok,
		Timestamp:         ts,
	}
}

func TestTradeStoreListWindowAndPaging(t *testing.T) {
	s := NewTradeStore()
	ctx := context.Background()
	base := time.Now().UTC().Add(-time.Hour)
	for i := 0; i < 5; i++ {
		if err := s.Insert(ctx, entry(base.Add(time.Duration(i)*time.Minute), "binance", "kraken", float64(i), true)); err != nil {
			t.Fatalf("insert: %v", err)
		}
	}

	since := base.Add(90 * time.Second)
	got, err := s.List(ctx, domain.ListOpts{Since: &since})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("windowed list = %d entries, want 3", len(got))
	}

	page, err := s.List(ctx, domain.ListOpts{Limit: 2, Offset: 1})
	if err != nil {
		t.Fatalf("list page: %v", err)
	}
	if len(page) != 2 || page[0].RealizedProfitUSD != 1 {
		t.Fatalf("page = %+v, want entries 1 and 2", page)
	}

	n, err := s.Count(ctx)
	if err != nil || n != 5 {
		t.Fatalf("count = %d (%v), want 5", n, err)
	}
}

func TestTradeStoreListOlderThan(t *testing.T) {
	s := NewTradeStore()
	ctx := context.Background()
	old := time.Now().UTC().Add(-48 * time.Hour)
	fresh := time.Now().UTC()
	_ = s.Insert(ctx, entry(old, "binance", "kraken", 1, true))
	_ = s.Insert(ctx, entry(fresh, "binance", "kraken", 2, true))

	got, err := s.ListOlderThan(ctx, time.Now().UTC().Add(-24*time.Hour), 0)
	if err != nil {
		t.Fatalf("list older: %v", err)
	}
	if len(got) != 1 || got[0].RealizedProfitUSD != 1 {
		t.Fatalf("older entries = %+v, want only the 48h-old one", got)
	}
}

func TestTopPairsAggregates(t *testing.T) {
	trades := NewTradeStore()
	ctx := context.Background()
	now := time.Now().UTC()

	_ = trades.Insert(ctx, entry(now.Add(-2*time.Hour), "binance", "kraken", 40, true))
	_ = trades.Insert(ctx, entry(now.Add(-time.Hour), "Binance", "KRAKEN", 60, true))
	_ = trades.Insert(ctx, entry(now.Add(-time.Hour), "kraken", "coinbase", 10, true))
	// Failed trades do not count.
	_ = trades.Insert(ctx, entry(now, "kraken", "coinbase", -30, false))
	// Outside the lookback window.
	_ = trades.Insert(ctx, entry(now.AddDate(0, 0, -10), "okx", "kucoin", 500, true))

	stats, err := NewPairStatStore(trades).TopPairs(ctx, 7, 10)
	if err != nil {
		t.Fatalf("top pairs: %v", err)
	}
	if len(stats) != 2 {
		t.Fatalf("pairs = %d, want 2", len(stats))
	}
	top := stats[0]
	if top.BuyVenue != "binance" || top.SellVenue != "kraken" {
		t.Fatalf("top pair = %s->%s, want binance->kraken", top.BuyVenue, top.SellVenue)
	}
	if top.Count != 2 || math.Abs(top.TotalProfitUSD-100) > 1e-9 {
		t.Fatalf("top aggregate = count %d profit %.2f, want 2 / 100", top.Count, top.TotalProfitUSD)
	}
	if math.Abs(top.AvgSpreadPct-1.0) > 1e-9 {
		t.Fatalf("avg spread = %.4f, want 1.0", top.AvgSpreadPct)
	}
	if !top.LastSeen.Equal(now.Add(-time.Hour)) {
		t.Fatalf("last seen = %v", top.LastSeen)
	}
}

func TestVariantStoreRoundTrip(t *testing.T) {
	s := NewVariantStore()
	ctx := context.Background()

	_ = s.Upsert(ctx, domain.Variant{Name: "baseline", Trades: 3})
	_ = s.Upsert(ctx, domain.Variant{Name: "aggressive", Trades: 1})
	_ = s.Upsert(ctx, domain.Variant{Name: "baseline", Trades: 5})

	got, err := s.Load(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("variants = %d, want 2", len(got))
	}
	if got[0].Name != "aggressive" || got[1].Name != "baseline" {
		t.Fatalf("order = %s, %s, want sorted by name", got[0].Name, got[1].Name)
	}
	if got[1].Trades != 5 {
		t.Fatalf("upsert did not replace: trades = %d", got[1].Trades)
	}
}

func TestBalanceStoreReplacesSnapshot(t *testing.T) {
	s := NewBalanceStore()
	ctx := context.Background()

	_ = s.Save(ctx, []domain.BalanceSnapshot{{Venue: "binance", Asset: "USDT", Free: 100}})
	_ = s.Save(ctx, []domain.BalanceSnapshot{
		{Venue: "binance", Asset: "USDT", Free: 90},
		{Venue: "kraken", Asset: "SOL", Free: 2},
	})

	got, err := s.Load(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(got) != 2 || got[0].Free != 90 {
		t.Fatalf("snapshots = %+v, want the second save only", got)
	}
}
