// Package allocation predicts where capital should sit across venues from
// historical pair performance and proposes the transfers to get there.
package allocation

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/arbot-io/arbot/internal/domain"
)

// Config holds the predictor tunables.
type Config struct {
	ReserveUSD            float64 // kept unallocated across all venues
	MinBalancePerVenueUSD float64
	MaxBalancePerVenueUSD float64
	MinKeepBalanceUSD     float64 // never drained from a source below this
	MinTransferUSD        float64 // transfers below this are not worth the fees
	RebalanceThresholdPct float64 // per-venue divergence that triggers rebalance
	LookbackDays          int
	RecencyHalfLife       time.Duration // pair weight halves per this much age
}

// DefaultConfig returns the calibrated defaults.
func DefaultConfig() Config {
	return Config{
		ReserveUSD:            500,
		MinBalancePerVenueUSD: 100,
		MaxBalancePerVenueUSD: 5000,
		MinKeepBalanceUSD:     50,
		MinTransferUSD:        25,
		RebalanceThresholdPct: 20,
		LookbackDays:          30,
		RecencyHalfLife:       7 * 24 * time.Hour,
	}
}

// TransferPlan is the output of CalculateTransfers.
type TransferPlan struct {
	Transfers    []domain.Transfer
	TotalMoved   float64
	ShortfallUSD float64 // deficit left uncovered by available surplus
}

// Predictor computes allocation targets from pair statistics.
type Predictor struct {
	cfg    Config
	stats  domain.PairStatStore
	logger *slog.Logger
}

// NewPredictor creates a Predictor backed by the given pair-stat source.
func NewPredictor(cfg Config, stats domain.PairStatStore, logger *slog.Logger) *Predictor {
	return &Predictor{
		cfg:    cfg,
		stats:  stats,
		logger: logger.With(slog.String("component", "allocation")),
	}
}

// PredictOptimalDistribution allocates totalCapital minus the reserve across
// the given venues. Pairs involving a venue contribute a recency-decayed,
// profit-weighted score to it; venues with no history split whatever the
// scored venues did not claim. The returned targets plus the reserve sum to
// totalCapital.
func (p *Predictor) PredictOptimalDistribution(ctx context.Context, totalCapital float64, venues []string) (domain.AllocationTarget, error) {
	if len(venues) == 0 {
		return nil, fmt.Errorf("allocation: no venues")
	}
	allocatable := totalCapital - p.cfg.ReserveUSD
	if allocatable <= 0 {
		return nil, fmt.Errorf("allocation: capital %.2f does not cover reserve %.2f", totalCapital, p.cfg.ReserveUSD)
	}

	pairs, err := p.stats.TopPairs(ctx, p.cfg.LookbackDays, 100)
	if err != nil {
		return nil, fmt.Errorf("allocation: load pair stats: %w", err)
	}

	scores := p.venueScores(pairs, venues)

	var scoreSum float64
	for _, s := range scores {
		scoreSum += s
	}

	target := make(domain.AllocationTarget, len(venues))
	var noHistory []string
	allocated := 0.0
	for _, venue := range venues {
		v := strings.ToLower(venue)
		if scores[v] <= 0 {
			noHistory = append(noHistory, v)
			continue
		}
		share := allocatable * scores[v] / scoreSum
		share = clamp(share, p.cfg.MinBalancePerVenueUSD, p.cfg.MaxBalancePerVenueUSD)
		target[v] = share
		allocated += share
	}

	// Venues without history split the unallocated remainder equally, still
	// subject to the per-venue bounds.
	if len(noHistory) > 0 {
		remainder := allocatable - allocated
		each := clamp(remainder/float64(len(noHistory)), p.cfg.MinBalancePerVenueUSD, p.cfg.MaxBalancePerVenueUSD)
		for _, v := range noHistory {
			target[v] = each
			allocated += each
		}
	}

	p.rescale(target, allocatable)

	p.logger.Debug("allocation computed",
		slog.Float64("total_capital", totalCapital),
		slog.Float64("allocatable", allocatable),
		slog.Int("venues", len(target)),
	)
	return target, nil
}

// venueScores spreads each pair's weight across its two venues. Weight is
// total profit (floored at a small positive value so active but unprofitable
// pairs still register) scaled by trade count and decayed by age.
func (p *Predictor) venueScores(pairs []domain.PairStat, venues []string) map[string]float64 {
	known := make(map[string]bool, len(venues))
	for _, v := range venues {
		known[strings.ToLower(v)] = true
	}
	now := time.Now().UTC()
	halfLife := p.cfg.RecencyHalfLife
	if halfLife <= 0 {
		halfLife = 7 * 24 * time.Hour
	}

	scores := make(map[string]float64)
	for _, pair := range pairs {
		profit := pair.TotalProfitUSD
		if profit < 1 {
			profit = 1
		}
		age := now.Sub(pair.LastSeen)
		decay := math.Exp2(-age.Hours() / halfLife.Hours())
		weight := profit * math.Log1p(float64(pair.Count)) * decay

		for _, venue := range []string{strings.ToLower(pair.BuyVenue), strings.ToLower(pair.SellVenue)} {
			if known[venue] {
				scores[venue] += weight / 2
			}
		}
	}
	return scores
}

// rescale proportionally adjusts targets so they sum exactly to allocatable,
// keeping the reserve invariant after clamping shifted the total.
func (p *Predictor) rescale(target domain.AllocationTarget, allocatable float64) {
	total := target.Total()
	if total <= 0 {
		return
	}
	factor := allocatable / total
	for venue := range target {
		target[venue] *= factor
	}
}

// ShouldRebalance reports whether any venue's current balance diverges from
// its target by more than the configured threshold percentage of the target.
func (p *Predictor) ShouldRebalance(current map[string]float64, target domain.AllocationTarget) bool {
	for venue, want := range target {
		if want <= 0 {
			continue
		}
		have := current[venue]
		divergence := math.Abs(have-want) / want * 100
		if divergence > p.cfg.RebalanceThresholdPct {
			return true
		}
	}
	return false
}

// CalculateTransfers greedily matches surplus venues to deficit venues.
// A source is never drained below MinKeepBalanceUSD and transfers below
// MinTransferUSD are dropped. Any deficit left uncovered is reported as
// shortfall rather than papered over.
func (p *Predictor) CalculateTransfers(current map[string]float64, target domain.AllocationTarget) TransferPlan {
	type delta struct {
		venue  string
		amount float64
	}
	var surplus, deficit []delta
	for venue, want := range target {
		have := current[venue]
		switch {
		case have > want:
			avail := have - want
			if max := have - p.cfg.MinKeepBalanceUSD; avail > max {
				avail = max
			}
			if avail > 0 {
				surplus = append(surplus, delta{venue, avail})
			}
		case want > have:
			deficit = append(deficit, delta{venue, want - have})
		}
	}
	// Largest first on both sides keeps the plan short.
	sort.Slice(surplus, func(i, j int) bool { return surplus[i].amount > surplus[j].amount })
	sort.Slice(deficit, func(i, j int) bool { return deficit[i].amount > deficit[j].amount })

	var plan TransferPlan
	si := 0
	for _, d := range deficit {
		need := d.amount
		for need > 0 && si < len(surplus) {
			s := &surplus[si]
			move := math.Min(need, s.amount)
			if move < p.cfg.MinTransferUSD {
				// Too small to act on from this source; a later deficit will
				// not do better with less, so move on.
				if s.amount < p.cfg.MinTransferUSD {
					si++
					continue
				}
				break
			}
			plan.Transfers = append(plan.Transfers, domain.Transfer{
				From:      s.venue,
				To:        d.venue,
				AmountUSD: move,
			})
			plan.TotalMoved += move
			s.amount -= move
			need -= move
			if s.amount <= 0 {
				si++
			}
		}
		plan.ShortfallUSD += need
	}
	return plan
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
