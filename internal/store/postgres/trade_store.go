package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/arbot-io/arbot/internal/domain"
)

// TradeStore implements domain.TradeStore using PostgreSQL.
type TradeStore struct {
	pool *pgxpool.Pool
}

// NewTradeStore creates a TradeStore backed by the given connection pool.
func NewTradeStore(pool *pgxpool.Pool) *TradeStore {
	return &TradeStore{pool: pool}
}

const tradeSelectCols = `id, ts, coin, buy_venue, sell_venue, buy_price,
	sell_price, amount, fees_usd, realized_profit_usd, roi_pct, success,
	fallback_used, buy_order_id, sell_order_id, final_state, failure_reason`

func scanTradeRows(rows pgx.Rows) ([]domain.LedgerEntry, error) {
	var entries []domain.LedgerEntry
	for rows.Next() {
		var e domain.LedgerEntry
		if err := rows.Scan(
			&e.ID, &e.Timestamp, &e.Coin, &e.BuyVenue, &e.SellVenue,
			&e.BuyPrice, &e.SellPrice, &e.Amount, &e.FeesUSD,
			&e.RealizedProfitUSD, &e.ROIPct, &e.Success, &e.FallbackUsed,
			&e.BuyOrderID, &e.SellOrderID, &e.FinalState, &e.FailureReason,
		); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Insert appends one ledger entry. The ledger is append-only; duplicate IDs
// are rejected by the primary key rather than silently replaced.
func (s *TradeStore) Insert(ctx context.Context, entry domain.LedgerEntry) error {
	const query = `
		INSERT INTO trades (
			id, ts, coin, buy_venue, sell_venue, buy_price, sell_price,
			amount, fees_usd, realized_profit_usd, roi_pct, success,
			fallback_used, buy_order_id, sell_order_id, final_state,
			failure_reason
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7,
			$8, $9, $10, $11, $12,
			$13, $14, $15, $16, $17
		)`
	_, err := s.pool.Exec(ctx, query,
		entry.ID, entry.Timestamp, entry.Coin, entry.BuyVenue, entry.SellVenue,
		entry.BuyPrice, entry.SellPrice, entry.Amount, entry.FeesUSD,
		entry.RealizedProfitUSD, entry.ROIPct, entry.Success,
		entry.FallbackUsed, entry.BuyOrderID, entry.SellOrderID,
		entry.FinalState, entry.FailureReason,
	)
	if err != nil {
		return fmt.Errorf("postgres: insert trade %s: %w", entry.ID, err)
	}
	return nil
}

// List returns entries in chronological order with pagination and optional
// time filtering.
func (s *TradeStore) List(ctx context.Context, opts domain.ListOpts) ([]domain.LedgerEntry, error) {
	query := `SELECT ` + tradeSelectCols + ` FROM trades`
	var args []any
	argIdx := 1
	clause := " WHERE"

	if opts.Since != nil {
		query += fmt.Sprintf("%s ts >= $%d", clause, argIdx)
		args = append(args, *opts.Since)
		argIdx++
		clause = " AND"
	}
	if opts.Until != nil {
		query += fmt.Sprintf("%s ts <= $%d", clause, argIdx)
		args = append(args, *opts.Until)
		argIdx++
	}

	query += " ORDER BY ts ASC"
	if opts.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argIdx)
		args = append(args, opts.Limit)
		argIdx++
	}
	if opts.Offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", argIdx)
		args = append(args, opts.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list trades: %w", err)
	}
	defer rows.Close()
	return scanTradeRows(rows)
}

// Count returns the total number of ledger entries.
func (s *TradeStore) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := s.pool.QueryRow(ctx, "SELECT COUNT(*) FROM trades").Scan(&count); err != nil {
		return 0, fmt.Errorf("postgres: count trades: %w", err)
	}
	return count, nil
}

// ListOlderThan returns settled entries before cutoff, oldest first.
func (s *TradeStore) ListOlderThan(ctx context.Context, cutoff time.Time, limit int) ([]domain.LedgerEntry, error) {
	query := `SELECT ` + tradeSelectCols + ` FROM trades WHERE ts < $1 ORDER BY ts ASC`
	args := []any{cutoff}
	if limit > 0 {
		query += " LIMIT $2"
		args = append(args, limit)
	}
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list trades older than %s: %w", cutoff.Format(time.RFC3339), err)
	}
	defer rows.Close()
	return scanTradeRows(rows)
}

var _ domain.TradeStore = (*TradeStore)(nil)
