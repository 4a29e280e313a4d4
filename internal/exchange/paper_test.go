package exchange

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/arbot-io/arbot/internal/domain"
)

func solVenue() *Paper {
	p := NewPaper(PaperConfig{
		Name:     "binance",
		Balances: domain.Balances{"usdt": 1_000, "SOL": 5},
		FeePct:   0.1,
	})
	p.SetPrice("SOL/USDT", 100)
	return p
}

func TestPaperBuyMovesBalances(t *testing.T) {
	p := solVenue()
	ctx := context.Background()

	fill, err := p.CreateMarketBuyOrder(ctx, "SOL/USDT", 2)
	if err != nil {
		t.Fatalf("buy: %v", err)
	}
	if fill.Filled != 2 || fill.Average != 100 {
		t.Fatalf("fill = %+v, want 2 @ 100", fill)
	}
	// 200 notional + 0.1% fee.
	if math.Abs(fill.FeeUSD-0.2) > 1e-9 {
		t.Fatalf("fee = %.4f, want 0.20", fill.FeeUSD)
	}

	bal, err := p.FetchBalance(ctx)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if math.Abs(bal["USDT"]-799.8) > 1e-9 {
		t.Fatalf("USDT = %.4f, want 799.80", bal["USDT"])
	}
	if math.Abs(bal["SOL"]-7) > 1e-9 {
		t.Fatalf("SOL = %.4f, want 7", bal["SOL"])
	}
}

func TestPaperSellRoundTrip(t *testing.T) {
	p := solVenue()
	ctx := context.Background()

	fill, err := p.CreateMarketSellOrder(ctx, "SOL/USDT", 5)
	if err != nil {
		t.Fatalf("sell: %v", err)
	}
	if fill.Filled != 5 {
		t.Fatalf("filled = %.2f, want 5", fill.Filled)
	}
	bal, _ := p.FetchBalance(ctx)
	if bal["SOL"] != 0 {
		t.Fatalf("SOL = %.4f, want 0", bal["SOL"])
	}

	// Nothing left to sell.
	_, err = p.CreateMarketSellOrder(ctx, "SOL/USDT", 1)
	if !errors.Is(err, domain.ErrInsufficientBalance) {
		t.Fatalf("err = %v, want ErrInsufficientBalance", err)
	}
}

func TestPaperRejectsOverdraft(t *testing.T) {
	p := solVenue()

	_, err := p.CreateMarketBuyOrder(context.Background(), "SOL/USDT", 50)
	if !errors.Is(err, domain.ErrInsufficientFunds) {
		t.Fatalf("err = %v, want ErrInsufficientFunds", err)
	}
	bal, _ := p.FetchBalance(context.Background())
	if bal["USDT"] != 1_000 {
		t.Fatalf("failed order moved balances: USDT = %.2f", bal["USDT"])
	}
}

func TestPaperFailInjectionIsCounted(t *testing.T) {
	p := solVenue()
	p.FailNextSells(2)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if _, err := p.CreateMarketSellOrder(ctx, "SOL/USDT", 1); err == nil {
			t.Fatalf("injected failure %d did not fire", i)
		}
	}
	if _, err := p.CreateMarketSellOrder(ctx, "SOL/USDT", 1); err != nil {
		t.Fatalf("third sell failed after injection expired: %v", err)
	}
}

func TestPaperSlippageAppliedToFills(t *testing.T) {
	p := NewPaper(PaperConfig{
		Name:            "kraken",
		Balances:        domain.Balances{"USDT": 10_000, "SOL": 10},
		FillSlippagePct: 1,
	})
	p.SetPrice("SOL/USDT", 100)
	ctx := context.Background()

	buy, err := p.CreateMarketBuyOrder(ctx, "SOL/USDT", 1)
	if err != nil {
		t.Fatalf("buy: %v", err)
	}
	if math.Abs(buy.Average-101) > 1e-9 {
		t.Fatalf("buy price = %.4f, want 101", buy.Average)
	}
	sell, err := p.CreateMarketSellOrder(ctx, "SOL/USDT", 1)
	if err != nil {
		t.Fatalf("sell: %v", err)
	}
	if math.Abs(sell.Average-99) > 1e-9 {
		t.Fatalf("sell price = %.4f, want 99", sell.Average)
	}
}

func TestPaperOrderBookDepth(t *testing.T) {
	p := solVenue()
	p.SetOrderBook("SOL/USDT",
		[]domain.PriceLevel{{Price: 99.9, Size: 10}, {Price: 99.8, Size: 10}, {Price: 99.7, Size: 10}},
		[]domain.PriceLevel{{Price: 100, Size: 10}, {Price: 100.1, Size: 10}, {Price: 100.2, Size: 10}},
	)

	book, err := p.FetchOrderBook(context.Background(), "SOL/USDT", 2)
	if err != nil {
		t.Fatalf("book: %v", err)
	}
	if len(book.Bids) != 2 || len(book.Asks) != 2 {
		t.Fatalf("depth not applied: %d bids, %d asks", len(book.Bids), len(book.Asks))
	}

	_, err = p.FetchOrderBook(context.Background(), "DOGE/USDT", 2)
	if !errors.Is(err, domain.ErrNoLiquidity) {
		t.Fatalf("err = %v, want ErrNoLiquidity", err)
	}
}

func TestSplitSymbol(t *testing.T) {
	base, quote, err := splitSymbol("sol/usdt")
	if err != nil {
		t.Fatalf("split: %v", err)
	}
	if base != "SOL" || quote != "USDT" {
		t.Fatalf("split = %s/%s, want SOL/USDT", base, quote)
	}
	for _, bad := range []string{"SOLUSDT", "/USDT", "SOL/"} {
		if _, _, err := splitSymbol(bad); err == nil {
			t.Fatalf("splitSymbol(%q) accepted malformed symbol", bad)
		}
	}
}

func TestDirectoryResolvesCaseInsensitive(t *testing.T) {
	dir := NewDirectory(solVenue())

	c, err := dir.Venue("BINANCE")
	if err != nil {
		t.Fatalf("venue: %v", err)
	}
	if c.Name() != "binance" {
		t.Fatalf("resolved %q, want binance", c.Name())
	}

	_, err = dir.Venue("bitfinex")
	if !errors.Is(err, domain.ErrUnknownVenue) {
		t.Fatalf("err = %v, want ErrUnknownVenue", err)
	}
	if got := dir.Names(); len(got) != 1 || got[0] != "binance" {
		t.Fatalf("names = %v", got)
	}
}
