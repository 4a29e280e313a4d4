package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/arbot-io/arbot/internal/domain"
)

// BalanceStore implements domain.BalanceStore using PostgreSQL. Balances are
// a snapshot table keyed by (venue,asset): Save upserts the full set so Load
// always reconstructs the ledger exactly.
type BalanceStore struct {
	pool *pgxpool.Pool
}

// NewBalanceStore creates a BalanceStore backed by the given connection pool.
func NewBalanceStore(pool *pgxpool.Pool) *BalanceStore {
	return &BalanceStore{pool: pool}
}

// Save replaces the stored snapshot with the given set atomically.
func (s *BalanceStore) Save(ctx context.Context, snapshots []domain.BalanceSnapshot) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("postgres: begin balance save: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, "DELETE FROM balances"); err != nil {
		return fmt.Errorf("postgres: clear balances: %w", err)
	}

	batch := &pgx.Batch{}
	const query = `
		INSERT INTO balances (venue, asset, free, saved_at)
		VALUES ($1, $2, $3, $4)`
	for _, snap := range snapshots {
		batch.Queue(query, snap.Venue, snap.Asset, snap.Free, snap.SavedAt)
	}
	br := tx.SendBatch(ctx, batch)
	for i := range snapshots {
		if _, err := br.Exec(); err != nil {
			_ = br.Close()
			return fmt.Errorf("postgres: save balance %d: %w", i, err)
		}
	}
	if err := br.Close(); err != nil {
		return fmt.Errorf("postgres: close balance batch: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("postgres: commit balance save: %w", err)
	}
	return nil
}

// Load returns the stored snapshot set.
func (s *BalanceStore) Load(ctx context.Context) ([]domain.BalanceSnapshot, error) {
	rows, err := s.pool.Query(ctx,
		"SELECT venue, asset, free, saved_at FROM balances ORDER BY venue, asset")
	if err != nil {
		return nil, fmt.Errorf("postgres: load balances: %w", err)
	}
	defer rows.Close()

	var snapshots []domain.BalanceSnapshot
	for rows.Next() {
		var snap domain.BalanceSnapshot
		if err := rows.Scan(&snap.Venue, &snap.Asset, &snap.Free, &snap.SavedAt); err != nil {
			return nil, err
		}
		snapshots = append(snapshots, snap)
	}
	return snapshots, rows.Err()
}

var _ domain.BalanceStore = (*BalanceStore)(nil)
