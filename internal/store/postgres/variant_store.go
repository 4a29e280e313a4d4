package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/arbot-io/arbot/internal/domain"
)

// VariantStore implements domain.VariantStore using PostgreSQL.
type VariantStore struct {
	pool *pgxpool.Pool
}

// NewVariantStore creates a VariantStore backed by the given connection pool.
func NewVariantStore(pool *pgxpool.Pool) *VariantStore {
	return &VariantStore{pool: pool}
}

// Upsert writes one variant's parameters and accumulators keyed by name.
func (s *VariantStore) Upsert(ctx context.Context, v domain.Variant) error {
	const query = `
		INSERT INTO variants (
			name, min_spread_pct, risk_threshold, position_size_cap_usd,
			opportunities, trades, wins, losses, profit_usd, fees_usd,
			active_since
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (name) DO UPDATE SET
			min_spread_pct = EXCLUDED.min_spread_pct,
			risk_threshold = EXCLUDED.risk_threshold,
			position_size_cap_usd = EXCLUDED.position_size_cap_usd,
			opportunities = EXCLUDED.opportunities,
			trades = EXCLUDED.trades,
			wins = EXCLUDED.wins,
			losses = EXCLUDED.losses,
			profit_usd = EXCLUDED.profit_usd,
			fees_usd = EXCLUDED.fees_usd,
			active_since = EXCLUDED.active_since`
	_, err := s.pool.Exec(ctx, query,
		v.Name, v.Params.MinSpreadPct, v.Params.RiskThreshold,
		v.Params.PositionSizeCapUSD, v.Opportunities, v.Trades, v.Wins,
		v.Losses, v.ProfitUSD, v.FeesUSD, v.ActiveSince,
	)
	if err != nil {
		return fmt.Errorf("postgres: upsert variant %s: %w", v.Name, err)
	}
	return nil
}

// Load returns all persisted variants.
func (s *VariantStore) Load(ctx context.Context) ([]domain.Variant, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT name, min_spread_pct, risk_threshold, position_size_cap_usd,
			opportunities, trades, wins, losses, profit_usd, fees_usd,
			active_since
		FROM variants ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("postgres: load variants: %w", err)
	}
	defer rows.Close()

	var variants []domain.Variant
	for rows.Next() {
		var v domain.Variant
		if err := rows.Scan(
			&v.Name, &v.Params.MinSpreadPct, &v.Params.RiskThreshold,
			&v.Params.PositionSizeCapUSD, &v.Opportunities, &v.Trades,
			&v.Wins, &v.Losses, &v.ProfitUSD, &v.FeesUSD, &v.ActiveSince,
		); err != nil {
			return nil, err
		}
		variants = append(variants, v)
	}
	return variants, rows.Err()
}

var _ domain.VariantStore = (*VariantStore)(nil)
