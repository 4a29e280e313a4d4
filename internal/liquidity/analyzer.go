// Package liquidity turns raw order-book slices into per-venue fill
// estimates: fillable depth, volume-weighted price, slippage and a composite
// 0-100 score.
package liquidity

import (
	"math"
	"sort"

	"github.com/arbot-io/arbot/internal/domain"
)

// Config holds the analyzer tunables.
type Config struct {
	MaxDepthLevels      int     // book levels considered per venue
	MaxSlippagePct      float64 // slippage at which the score component hits zero
	VolumeNormBase      float64 // fillable base units at which the volume component saturates
	VolumeScoreWeight   float64
	DepthScoreWeight    float64
	SlippageScoreWeight float64
}

// DefaultConfig returns the calibrated defaults.
func DefaultConfig() Config {
	return Config{
		MaxDepthLevels:      20,
		MaxSlippagePct:      2.0,
		VolumeNormBase:      1000,
		VolumeScoreWeight:   50,
		DepthScoreWeight:    30,
		SlippageScoreWeight: 20,
	}
}

// Analyzer computes liquidity profiles from venue quotes. It is stateless and
// safe for concurrent use.
type Analyzer struct {
	cfg Config
}

// NewAnalyzer creates an Analyzer.
func NewAnalyzer(cfg Config) *Analyzer {
	return &Analyzer{cfg: cfg}
}

// Analyze walks each venue's book on the side relevant for the order (asks
// when buying, bids when selling) and returns one profile per venue, sorted
// descending by liquidity score. Venues with an empty relevant side are
// skipped.
func (a *Analyzer) Analyze(quotes []domain.VenueQuote, side domain.Side, targetAmount float64) []domain.LiquidityProfile {
	profiles := make([]domain.LiquidityProfile, 0, len(quotes))
	for _, q := range quotes {
		levels := q.Asks
		if side == domain.SideSell {
			levels = q.Bids
		}
		if len(levels) == 0 {
			continue
		}
		profiles = append(profiles, a.profile(q.Venue, levels, targetAmount))
	}

	sort.SliceStable(profiles, func(i, j int) bool {
		return profiles[i].LiquidityScore > profiles[j].LiquidityScore
	})
	return profiles
}

// profile accumulates fillable size across price levels until targetAmount is
// reached or the depth limit is hit.
func (a *Analyzer) profile(venue string, levels []domain.PriceLevel, targetAmount float64) domain.LiquidityProfile {
	bestPrice := levels[0].Price

	var filled, notional float64
	consumed := 0
	for _, lvl := range levels {
		if consumed >= a.cfg.MaxDepthLevels || filled >= targetAmount {
			break
		}
		take := lvl.Size
		if remaining := targetAmount - filled; take > remaining {
			take = remaining
		}
		filled += take
		notional += take * lvl.Price
		consumed++
	}

	p := domain.LiquidityProfile{
		Venue:               venue,
		CumulativeFillable:  filled,
		DepthLevelsConsumed: consumed,
		CanFillFully:        filled >= targetAmount,
	}
	if filled > 0 {
		p.AvgFillPrice = notional / filled
		p.SlippagePct = math.Abs(p.AvgFillPrice-bestPrice) / bestPrice * 100
	}
	p.LiquidityScore = a.score(p)
	return p
}

// score combines fillable volume, depth consumed and slippage into the
// composite 0-100 metric.
func (a *Analyzer) score(p domain.LiquidityProfile) float64 {
	volume := a.cfg.VolumeScoreWeight * math.Min(p.CumulativeFillable/a.cfg.VolumeNormBase, 1)
	depth := a.cfg.DepthScoreWeight * math.Min(float64(p.DepthLevelsConsumed)/float64(a.cfg.MaxDepthLevels), 1)
	slip := a.cfg.SlippageScoreWeight * (1 - math.Min(p.SlippagePct/a.cfg.MaxSlippagePct, 1))
	return volume + depth + slip
}
