package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/arbot-io/arbot/internal/domain"
)

// PairStatStore answers venue-pair aggregate queries over the trades table.
type PairStatStore struct {
	pool *pgxpool.Pool
}

// NewPairStatStore creates a PairStatStore backed by the given connection
// pool.
func NewPairStatStore(pool *pgxpool.Pool) *PairStatStore {
	return &PairStatStore{pool: pool}
}

// TopPairs aggregates successful trades per (buy,sell) venue pair over the
// lookback window, ordered by total profit. The spread is reconstructed from
// the recorded leg prices.
func (s *PairStatStore) TopPairs(ctx context.Context, lookbackDays, limit int) ([]domain.PairStat, error) {
	const query = `
		SELECT
			buy_venue,
			sell_venue,
			COUNT(*) AS cnt,
			AVG(CASE WHEN buy_price > 0
				THEN (sell_price - buy_price) / buy_price * 100
				ELSE 0 END) AS avg_spread_pct,
			SUM(realized_profit_usd) AS total_profit_usd,
			MAX(ts) AS last_seen
		FROM trades
		WHERE success
			AND buy_venue <> ''
			AND sell_venue <> ''
			AND ts >= NOW() - ($1 || ' days')::interval
		GROUP BY buy_venue, sell_venue
		ORDER BY total_profit_usd DESC
		LIMIT $2`

	rows, err := s.pool.Query(ctx, query, lookbackDays, limit)
	if err != nil {
		return nil, fmt.Errorf("postgres: top pairs: %w", err)
	}
	defer rows.Close()

	var stats []domain.PairStat
	for rows.Next() {
		var p domain.PairStat
		if err := rows.Scan(
			&p.BuyVenue, &p.SellVenue, &p.Count, &p.AvgSpreadPct,
			&p.TotalProfitUSD, &p.LastSeen,
		); err != nil {
			return nil, err
		}
		stats = append(stats, p)
	}
	return stats, rows.Err()
}

var _ domain.PairStatStore = (*PairStatStore)(nil)
