// Package memory provides in-memory implementations of the domain store
// interfaces, used in paper mode and tests.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/arbot-io/arbot/internal/domain"
)

// TradeStore is an in-memory domain.TradeStore.
type TradeStore struct {
	mu      sync.RWMutex
	entries []domain.LedgerEntry
}

// NewTradeStore creates an empty TradeStore.
func NewTradeStore() *TradeStore {
	return &TradeStore{}
}

// Insert appends one entry.
func (s *TradeStore) Insert(ctx context.Context, entry domain.LedgerEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, entry)
	return nil
}

// List returns entries in chronological order honoring the list options.
func (s *TradeStore) List(ctx context.Context, opts domain.ListOpts) ([]domain.LedgerEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	filtered := make([]domain.LedgerEntry, 0, len(s.entries))
	for _, e := range s.entries {
		if opts.Since != nil && e.Timestamp.Before(*opts.Since) {
			continue
		}
		if opts.Until != nil && e.Timestamp.After(*opts.Until) {
			continue
		}
		filtered = append(filtered, e)
	}
	sort.SliceStable(filtered, func(i, j int) bool {
		return filtered[i].Timestamp.Before(filtered[j].Timestamp)
	})

	if opts.Offset > 0 {
		if opts.Offset >= len(filtered) {
			return nil, nil
		}
		filtered = filtered[opts.Offset:]
	}
	if opts.Limit > 0 && len(filtered) > opts.Limit {
		filtered = filtered[:opts.Limit]
	}
	return filtered, nil
}

// Count returns the number of stored entries.
func (s *TradeStore) Count(ctx context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.entries)), nil
}

// ListOlderThan returns entries before cutoff, oldest first.
func (s *TradeStore) ListOlderThan(ctx context.Context, cutoff time.Time, limit int) ([]domain.LedgerEntry, error) {
	until := cutoff.Add(-time.Nanosecond)
	return s.List(ctx, domain.ListOpts{Limit: limit, Until: &until})
}

// BalanceStore is an in-memory domain.BalanceStore.
type BalanceStore struct {
	mu        sync.RWMutex
	snapshots []domain.BalanceSnapshot
}

// NewBalanceStore creates an empty BalanceStore.
func NewBalanceStore() *BalanceStore {
	return &BalanceStore{}
}

// Save replaces the stored snapshot set.
func (s *BalanceStore) Save(ctx context.Context, snapshots []domain.BalanceSnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshots = append([]domain.BalanceSnapshot(nil), snapshots...)
	return nil
}

// Load returns a copy of the stored snapshot set.
func (s *BalanceStore) Load(ctx context.Context) ([]domain.BalanceSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]domain.BalanceSnapshot(nil), s.snapshots...), nil
}

// VariantStore is an in-memory domain.VariantStore.
type VariantStore struct {
	mu       sync.RWMutex
	variants map[string]domain.Variant
}

// NewVariantStore creates an empty VariantStore.
func NewVariantStore() *VariantStore {
	return &VariantStore{variants: make(map[string]domain.Variant)}
}

// Upsert stores one variant by name.
func (s *VariantStore) Upsert(ctx context.Context, v domain.Variant) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.variants[v.Name] = v
	return nil
}

// Load returns all stored variants sorted by name.
func (s *VariantStore) Load(ctx context.Context) ([]domain.Variant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Variant, 0, len(s.variants))
	for _, v := range s.variants {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// PairStatStore computes pair aggregates from a TradeStore on demand, the
// in-memory counterpart of the SQL GROUP BY query.
type PairStatStore struct {
	trades *TradeStore
}

// NewPairStatStore creates a PairStatStore over the given trade store.
func NewPairStatStore(trades *TradeStore) *PairStatStore {
	return &PairStatStore{trades: trades}
}

// TopPairs aggregates successful trades per venue pair within the lookback
// window, ordered by total profit.
func (s *PairStatStore) TopPairs(ctx context.Context, lookbackDays, limit int) ([]domain.PairStat, error) {
	since := time.Now().UTC().AddDate(0, 0, -lookbackDays)
	entries, err := s.trades.List(ctx, domain.ListOpts{Since: &since})
	if err != nil {
		return nil, err
	}

	type agg struct {
		stat      domain.PairStat
		spreadSum float64
	}
	byPair := make(map[string]*agg)
	for _, e := range entries {
		if !e.Success || e.BuyVenue == "" || e.SellVenue == "" {
			continue
		}
		k := strings.ToLower(e.BuyVenue) + "->" + strings.ToLower(e.SellVenue)
		a, ok := byPair[k]
		if !ok {
			a = &agg{stat: domain.PairStat{
				BuyVenue:  strings.ToLower(e.BuyVenue),
				SellVenue: strings.ToLower(e.SellVenue),
			}}
			byPair[k] = a
		}
		a.stat.Count++
		a.stat.TotalProfitUSD += e.RealizedProfitUSD
		if e.BuyPrice > 0 {
			a.spreadSum += (e.SellPrice - e.BuyPrice) / e.BuyPrice * 100
		}
		if e.Timestamp.After(a.stat.LastSeen) {
			a.stat.LastSeen = e.Timestamp
		}
	}

	stats := make([]domain.PairStat, 0, len(byPair))
	for _, a := range byPair {
		if a.stat.Count > 0 {
			a.stat.AvgSpreadPct = a.spreadSum / float64(a.stat.Count)
		}
		stats = append(stats, a.stat)
	}
	sort.Slice(stats, func(i, j int) bool {
		return stats[i].TotalProfitUSD > stats[j].TotalProfitUSD
	})
	if limit > 0 && len(stats) > limit {
		stats = stats[:limit]
	}
	return stats, nil
}

var (
	_ domain.TradeStore    = (*TradeStore)(nil)
	_ domain.BalanceStore  = (*BalanceStore)(nil)
	_ domain.VariantStore  = (*VariantStore)(nil)
	_ domain.PairStatStore = (*PairStatStore)(nil)
)
