// Package risk filters and sizes raw opportunities before any capital is
// committed.
package risk

import (
	"log/slog"
	"strings"

	"github.com/arbot-io/arbot/internal/domain"
	"github.com/arbot-io/arbot/internal/fees"
)

// Config holds the risk gate tunables. The scoring constants come from live
// calibration of the original strategy; treat them as policy defaults, not
// derived values.
type Config struct {
	MinSpreadPct       float64
	RiskThreshold      float64
	PositionSizeCapUSD float64

	Tier1Venues []string
	Tier2Venues []string

	// Scoring shape.
	SpreadFloor        float64 // base of the spread factor
	SpreadWeight       float64 // weight of the normalized spread
	FullSafetySpread   float64 // gross spread treated as maximally safe, pct
	Tier1Score         float64
	Tier2Score         float64
	UnknownVenueScore  float64
	VolumeNormUSD      float64 // volume at which the volume factor saturates
	LowVolumeUSD       float64 // below this, position size is cut hard
	MaxVolatilityPenal float64 // cap on the volatility penalty
}

// DefaultConfig returns the calibrated defaults.
func DefaultConfig() Config {
	return Config{
		MinSpreadPct:       0.3,
		RiskThreshold:      0.5,
		PositionSizeCapUSD: 1000,
		Tier1Venues:        []string{"binance", "coinbase", "kraken"},
		Tier2Venues:        []string{"kucoin", "bybit", "okx"},
		SpreadFloor:        0.3,
		SpreadWeight:       0.7,
		FullSafetySpread:   5.0,
		Tier1Score:         1.0,
		Tier2Score:         0.85,
		UnknownVenueScore:  0.7,
		VolumeNormUSD:      1_000_000,
		LowVolumeUSD:       100_000,
		MaxVolatilityPenal: 0.3,
	}
}

// Gate scores and sizes opportunities. Rejections are economic, expected and
// frequent: Evaluate returns nil rather than an error.
type Gate struct {
	cfg    Config
	model  *fees.Model
	tier1  map[string]bool
	tier2  map[string]bool
	logger *slog.Logger
}

// NewGate creates a Gate using the given fee model for the simplified taker
// fee lookup.
func NewGate(cfg Config, model *fees.Model, logger *slog.Logger) *Gate {
	tier1 := make(map[string]bool, len(cfg.Tier1Venues))
	for _, v := range cfg.Tier1Venues {
		tier1[strings.ToLower(v)] = true
	}
	tier2 := make(map[string]bool, len(cfg.Tier2Venues))
	for _, v := range cfg.Tier2Venues {
		tier2[strings.ToLower(v)] = true
	}
	return &Gate{
		cfg:    cfg,
		model:  model,
		tier1:  tier1,
		tier2:  tier2,
		logger: logger.With(slog.String("component", "risk_gate")),
	}
}

// WithParams returns a copy of the gate with the variant-tunable parameters
// replaced. Tier tables, the fee model and the scoring shape are shared.
func (g *Gate) WithParams(p domain.VariantParams) *Gate {
	clone := *g
	clone.cfg.MinSpreadPct = p.MinSpreadPct
	clone.cfg.RiskThreshold = p.RiskThreshold
	clone.cfg.PositionSizeCapUSD = p.PositionSizeCapUSD
	return &clone
}

// Evaluate applies the fee-adjusted spread check, the multiplicative risk
// score and position sizing. It returns nil when the opportunity is not
// profitable or too risky; md may be nil when no market data is available.
//
// Sizing haircuts are multiplicative and commutative, but are applied in a
// fixed order (spread, volume, reliability) for reproducibility.
func (g *Gate) Evaluate(opp domain.Opportunity, md *domain.MarketData) *domain.EvaluatedOpportunity {
	buyFeePct, sellFeePct := g.model.TakerFeePctPair(opp)
	netSpread := opp.GrossSpreadPct - (buyFeePct + sellFeePct)
	if netSpread < g.cfg.MinSpreadPct {
		g.logger.Debug("rejected: net spread below minimum",
			slog.String("coin", opp.Coin),
			slog.Float64("net_spread_pct", netSpread),
			slog.Float64("min_spread_pct", g.cfg.MinSpreadPct),
		)
		return nil
	}

	reliability := (g.venueScore(opp.BuyVenue) + g.venueScore(opp.SellVenue)) / 2

	score := 1.0
	score *= clamp01(g.cfg.SpreadFloor + g.cfg.SpreadWeight*minf(opp.GrossSpreadPct/g.cfg.FullSafetySpread, 1))
	score *= clamp01(reliability)
	if md != nil && md.VolumeUSD > 0 {
		score *= clamp01(0.5 + 0.5*minf(md.VolumeUSD/g.cfg.VolumeNormUSD, 1))
	}
	if md != nil && md.Volatility > 0 {
		score *= clamp01(1 - minf(md.Volatility/10, g.cfg.MaxVolatilityPenal))
	}

	if score < g.cfg.RiskThreshold {
		g.logger.Debug("rejected: risk score below threshold",
			slog.String("coin", opp.Coin),
			slog.Float64("risk_score", score),
			slog.Float64("risk_threshold", g.cfg.RiskThreshold),
		)
		return nil
	}

	size := g.cfg.PositionSizeCapUSD
	if opp.GrossSpreadPct < 1.0 {
		size *= 0.5
	}
	if md != nil && md.VolumeUSD > 0 && md.VolumeUSD < g.cfg.LowVolumeUSD {
		size *= 0.3
	}
	size *= reliability

	eval := &domain.EvaluatedOpportunity{
		Opportunity:       opp,
		BuyFeePct:         buyFeePct,
		SellFeePct:        sellFeePct,
		NetSpreadPct:      netSpread,
		RiskScore:         score,
		PositionSizeUSD:   size,
		ExpectedProfitUSD: netSpread / 100 * size,
	}

	g.logger.Debug("opportunity passed gate",
		slog.String("coin", opp.Coin),
		slog.Float64("net_spread_pct", netSpread),
		slog.Float64("risk_score", score),
		slog.Float64("position_usd", size),
	)
	return eval
}

// venueScore maps a venue to its reliability tier score.
func (g *Gate) venueScore(venue string) float64 {
	v := strings.ToLower(venue)
	switch {
	case g.tier1[v]:
		return g.cfg.Tier1Score
	case g.tier2[v]:
		return g.cfg.Tier2Score
	default:
		return g.cfg.UnknownVenueScore
	}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func minf(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}
