// Package ledger is the system of record for balances and trade history.
// Balances are owned exclusively by the Ledger and mutated only through Buy,
// Sell, Deposit and Record; everything else reads derived metrics.
package ledger

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/arbot-io/arbot/internal/domain"
	"github.com/arbot-io/arbot/internal/fees"
)

// quoteAsset is the accounting currency for all venues.
const quoteAsset = "USDT"

// Config seeds the ledger.
type Config struct {
	Venues          []string
	InitialQuoteUSD float64 // starting USDT per venue
}

// Result reports the effect of a Buy or Sell.
type Result struct {
	EntryID     string
	NotionalUSD float64
	FeeUSD      float64
	NewFree     float64 // free balance of the mutated asset after the operation
}

// Ledger maintains per-venue per-asset free balances and the append-only
// trade history. Mutation is serialized per (venue,asset) key so two
// overlapping trades can never both pass a funds check against a stale
// balance.
type Ledger struct {
	model *fees.Model

	mu       sync.Mutex             // guards balances, locks and marks maps
	balances map[string]float64     // "venue|ASSET" -> free
	locks    map[string]*sync.Mutex // per (venue,asset) key
	marks    map[string]float64     // ASSET -> last trade price

	entriesMu sync.RWMutex
	entries   []domain.LedgerEntry

	initialUSD float64
	trades     domain.TradeStore   // optional persistence
	balStore   domain.BalanceStore // optional persistence
	logger     *slog.Logger
}

// New creates a Ledger seeded with the configured quote balance per venue.
func New(cfg Config, model *fees.Model, logger *slog.Logger) *Ledger {
	l := &Ledger{
		model:    model,
		balances: make(map[string]float64),
		locks:    make(map[string]*sync.Mutex),
		marks:    make(map[string]float64),
		logger:   logger.With(slog.String("component", "ledger")),
	}
	for _, venue := range cfg.Venues {
		l.balances[key(venue, quoteAsset)] = cfg.InitialQuoteUSD
		l.initialUSD += cfg.InitialQuoteUSD
	}
	return l
}

// AttachStores enables persistence. Entries are inserted as they are created;
// balances are saved via SaveSnapshot.
func (l *Ledger) AttachStores(trades domain.TradeStore, balances domain.BalanceStore) {
	l.trades = trades
	l.balStore = balances
}

func key(venue, asset string) string {
	return strings.ToLower(venue) + "|" + strings.ToUpper(asset)
}

// lockKeys acquires the per-key mutexes for the given keys in sorted order,
// so concurrent operations over overlapping keys cannot deadlock.
func (l *Ledger) lockKeys(keys ...string) func() {
	sorted := append([]string(nil), keys...)
	sort.Strings(sorted)

	held := make([]*sync.Mutex, 0, len(sorted))
	for _, k := range sorted {
		l.mu.Lock()
		m, ok := l.locks[k]
		if !ok {
			m = &sync.Mutex{}
			l.locks[k] = m
		}
		l.mu.Unlock()
		m.Lock()
		held = append(held, m)
	}
	return func() {
		for i := len(held) - 1; i >= 0; i-- {
			held[i].Unlock()
		}
	}
}

func (l *Ledger) free(k string) float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.balances[k]
}

func (l *Ledger) add(k string, delta float64) float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.balances[k] += delta
	return l.balances[k]
}

// Buy debits the venue's quote balance by amount*price plus the venue taker
// fee and credits the base asset. It rejects with insufficient_funds before
// any mutation when the quote balance cannot cover cost plus fee.
func (l *Ledger) Buy(ctx context.Context, venue, asset string, amount, price float64) (Result, error) {
	if amount <= 0 || price <= 0 {
		return Result{}, fmt.Errorf("ledger: buy %s on %s: non-positive amount or price", asset, venue)
	}
	quoteKey := key(venue, quoteAsset)
	baseKey := key(venue, asset)
	unlock := l.lockKeys(quoteKey, baseKey)
	defer unlock()

	cost := amount * price
	fee := l.model.TradingRate(venue, fees.Taker).Apply(cost)
	if l.free(quoteKey) < cost+fee {
		return Result{}, fmt.Errorf("ledger: buy %.8f %s on %s: %w", amount, asset, venue, domain.ErrInsufficientFunds)
	}

	l.add(quoteKey, -(cost + fee))
	newFree := l.add(baseKey, amount)
	l.setMark(asset, price)

	entry := l.append(domain.LedgerEntry{
		ID:         uuid.New().String(),
		Timestamp:  time.Now().UTC(),
		Coin:       strings.ToUpper(asset),
		BuyVenue:   strings.ToLower(venue),
		BuyPrice:   price,
		Amount:     amount,
		FeesUSD:    fee,
		Success:    true,
		FinalState: domain.ExecSettled,
	})
	l.persist(ctx, entry)

	return Result{EntryID: entry.ID, NotionalUSD: cost, FeeUSD: fee, NewFree: newFree}, nil
}

// Sell debits the base asset and credits the quote balance with proceeds
// minus the venue taker fee. It rejects with insufficient_balance before any
// mutation when the base balance is short.
func (l *Ledger) Sell(ctx context.Context, venue, asset string, amount, price float64) (Result, error) {
	if amount <= 0 || price <= 0 {
		return Result{}, fmt.Errorf("ledger: sell %s on %s: non-positive amount or price", asset, venue)
	}
	quoteKey := key(venue, quoteAsset)
	baseKey := key(venue, asset)
	unlock := l.lockKeys(quoteKey, baseKey)
	defer unlock()

	if l.free(baseKey) < amount {
		return Result{}, fmt.Errorf("ledger: sell %.8f %s on %s: %w", amount, asset, venue, domain.ErrInsufficientBalance)
	}

	proceeds := amount * price
	fee := l.model.TradingRate(venue, fees.Taker).Apply(proceeds)
	l.add(baseKey, -amount)
	newFree := l.add(quoteKey, proceeds-fee)
	l.setMark(asset, price)

	entry := l.append(domain.LedgerEntry{
		ID:         uuid.New().String(),
		Timestamp:  time.Now().UTC(),
		Coin:       strings.ToUpper(asset),
		SellVenue:  strings.ToLower(venue),
		SellPrice:  price,
		Amount:     amount,
		FeesUSD:    fee,
		Success:    true,
		FinalState: domain.ExecSettled,
	})
	l.persist(ctx, entry)

	return Result{EntryID: entry.ID, NotionalUSD: proceeds, FeeUSD: fee, NewFree: newFree}, nil
}

// Deposit credits an asset on a venue outside of trading (seeding, manual
// transfers).
func (l *Ledger) Deposit(venue, asset string, amount float64) {
	k := key(venue, asset)
	unlock := l.lockKeys(k)
	defer unlock()
	l.add(k, amount)
	if strings.EqualFold(asset, quoteAsset) {
		l.mu.Lock()
		l.initialUSD += amount
		l.mu.Unlock()
	}
}

// Record posts an externally executed trade (an execution protocol outcome)
// to the history. Balances are not touched: the venue already holds the
// funds; the ledger only keeps the books.
func (l *Ledger) Record(ctx context.Context, entry domain.LedgerEntry) {
	l.append(entry)
	l.persist(ctx, entry)
}

// Balance returns the free amount of one asset on one venue.
func (l *Ledger) Balance(venue, asset string) float64 {
	return l.free(key(venue, asset))
}

// VenueBalances returns a copy of all balances grouped by venue.
func (l *Ledger) VenueBalances() map[string]domain.Balances {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make(map[string]domain.Balances)
	for k, free := range l.balances {
		parts := strings.SplitN(k, "|", 2)
		venue, asset := parts[0], parts[1]
		if out[venue] == nil {
			out[venue] = domain.Balances{}
		}
		out[venue][asset] = free
	}
	return out
}

// Entries returns a copy of the trade history.
func (l *Ledger) Entries() []domain.LedgerEntry {
	l.entriesMu.RLock()
	defer l.entriesMu.RUnlock()
	out := make([]domain.LedgerEntry, len(l.entries))
	copy(out, l.entries)
	return out
}

func (l *Ledger) append(entry domain.LedgerEntry) domain.LedgerEntry {
	l.entriesMu.Lock()
	l.entries = append(l.entries, entry)
	l.entriesMu.Unlock()
	return entry
}

func (l *Ledger) persist(ctx context.Context, entry domain.LedgerEntry) {
	if l.trades == nil {
		return
	}
	if err := l.trades.Insert(ctx, entry); err != nil {
		l.logger.Warn("trade persist failed",
			slog.String("entry_id", entry.ID),
			slog.String("error", err.Error()),
		)
	}
}

func (l *Ledger) setMark(asset string, price float64) {
	l.mu.Lock()
	l.marks[strings.ToUpper(asset)] = price
	l.mu.Unlock()
}

// SaveSnapshot writes current balances to the balance store.
func (l *Ledger) SaveSnapshot(ctx context.Context) error {
	if l.balStore == nil {
		return nil
	}
	l.mu.Lock()
	snapshots := make([]domain.BalanceSnapshot, 0, len(l.balances))
	now := time.Now().UTC()
	for k, free := range l.balances {
		parts := strings.SplitN(k, "|", 2)
		snapshots = append(snapshots, domain.BalanceSnapshot{
			Venue:   parts[0],
			Asset:   parts[1],
			Free:    free,
			SavedAt: now,
		})
	}
	l.mu.Unlock()

	if err := l.balStore.Save(ctx, snapshots); err != nil {
		return fmt.Errorf("ledger: save snapshot: %w", err)
	}
	return nil
}

// Load replaces in-memory state from the stores: balances from the latest
// snapshot, history from the trade store, marks from the last trade price per
// coin. The profit baseline stays at the configured inception value: reloaded
// balances already include profit realized through Buy and Sell, and entries
// posted via Record never touched the balances, so moving the baseline in
// either direction would shift profit-since-inception across a restart.
func (l *Ledger) Load(ctx context.Context) error {
	if l.balStore != nil {
		snapshots, err := l.balStore.Load(ctx)
		if err != nil {
			return fmt.Errorf("ledger: load balances: %w", err)
		}
		if len(snapshots) > 0 {
			l.mu.Lock()
			l.balances = make(map[string]float64, len(snapshots))
			for _, s := range snapshots {
				l.balances[key(s.Venue, s.Asset)] = s.Free
			}
			l.mu.Unlock()
		}
	}
	if l.trades != nil {
		entries, err := l.trades.List(ctx, domain.ListOpts{})
		if err != nil {
			return fmt.Errorf("ledger: load trades: %w", err)
		}
		l.entriesMu.Lock()
		l.entries = entries
		l.entriesMu.Unlock()

		for _, e := range entries {
			switch {
			case e.SellPrice > 0:
				l.setMark(e.Coin, e.SellPrice)
			case e.BuyPrice > 0:
				l.setMark(e.Coin, e.BuyPrice)
			}
		}
	}
	return nil
}
