package domain

import (
	"context"
	"time"
)

// ListOpts provides pagination and time filtering for list queries.
type ListOpts struct {
	Limit  int
	Offset int
	Since  *time.Time
	Until  *time.Time
}

// TradeStore persists the append-only trade ledger.
type TradeStore interface {
	Insert(ctx context.Context, entry LedgerEntry) error
	List(ctx context.Context, opts ListOpts) ([]LedgerEntry, error)
	Count(ctx context.Context) (int64, error)
	// ListOlderThan returns settled entries with Timestamp before cutoff,
	// used by the archiver.
	ListOlderThan(ctx context.Context, cutoff time.Time, limit int) ([]LedgerEntry, error)
}

// BalanceSnapshot is one venue+asset free balance at a point in time.
type BalanceSnapshot struct {
	Venue   string
	Asset   string
	Free    float64
	SavedAt time.Time
}

// BalanceStore persists balance snapshots so the ledger can be reloaded to
// the exact same state after a restart.
type BalanceStore interface {
	Save(ctx context.Context, snapshots []BalanceSnapshot) error
	Load(ctx context.Context) ([]BalanceSnapshot, error)
}

// VariantStore persists A/B variant accumulators by name.
type VariantStore interface {
	Upsert(ctx context.Context, v Variant) error
	Load(ctx context.Context) ([]Variant, error)
}

// PairStatStore answers aggregate queries over historical trades, consumed by
// the balance predictor.
type PairStatStore interface {
	TopPairs(ctx context.Context, lookbackDays, limit int) ([]PairStat, error)
}
