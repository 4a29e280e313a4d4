// Package fees holds the static per-venue fee schedule and the route cost
// optimizer built on top of it.
package fees

import (
	"strings"

	"github.com/arbot-io/arbot/internal/domain"
)

// Rate is a trading fee expressed in hundredths of a percent: Rate(10) is
// 0.10%. Keeping the raw integer scale from the venue fee tables avoids the
// unit-confusion bugs that come with pre-divided floats.
type Rate int64

// Pct returns the rate as a percentage (Rate(10) -> 0.10).
func (r Rate) Pct() float64 {
	return float64(r) / 100
}

// Apply returns the fee in USD for the given notional.
func (r Rate) Apply(notionalUSD float64) float64 {
	return notionalUSD * float64(r) / 10000
}

// Liquidity is the order's fee class at the venue.
type Liquidity string

const (
	Maker Liquidity = "maker"
	Taker Liquidity = "taker"
)

// Schedule is one venue's fee schedule.
type Schedule struct {
	Maker             Rate
	Taker             Rate
	WithdrawalUSD     map[string]float64 // per-asset flat withdrawal fee
	WithdrawalDefault float64
}

// NetworkFee is the per-asset on-chain transfer cost in USD by speed tier.
type NetworkFee struct {
	Fast   float64
	Normal float64
	Slow   float64
}

// Speed selects a network fee tier.
type Speed string

const (
	SpeedFast   Speed = "fast"
	SpeedNormal Speed = "normal"
	SpeedSlow   Speed = "slow"
)

// Model is a pure lookup over the fee schedules. It holds no mutable state
// and is safe for concurrent use.
type Model struct {
	schedules map[string]Schedule
	network   map[string]NetworkFee // keyed by asset or asset@network
	fallback  Schedule
}

// NewModel builds a Model from per-venue schedules and a network fee table.
// Venues missing from schedules fall back to the default schedule.
func NewModel(schedules map[string]Schedule, network map[string]NetworkFee, fallback Schedule) *Model {
	return &Model{
		schedules: schedules,
		network:   network,
		fallback:  fallback,
	}
}

// Schedule returns the venue's fee schedule, or the fallback for unknown
// venues.
func (m *Model) Schedule(venue string) Schedule {
	if s, ok := m.schedules[strings.ToLower(venue)]; ok {
		return s
	}
	return m.fallback
}

// Known reports whether the venue has an explicit schedule.
func (m *Model) Known(venue string) bool {
	_, ok := m.schedules[strings.ToLower(venue)]
	return ok
}

// TradingRate returns the maker or taker rate for a venue.
func (m *Model) TradingRate(venue string, liq Liquidity) Rate {
	s := m.Schedule(venue)
	if liq == Maker {
		return s.Maker
	}
	return s.Taker
}

// WithdrawalFee returns the flat withdrawal fee in USD for an asset at a
// venue, falling back to the schedule default for unlisted assets.
func (m *Model) WithdrawalFee(venue, asset string) float64 {
	s := m.Schedule(venue)
	if fee, ok := s.WithdrawalUSD[strings.ToUpper(asset)]; ok {
		return fee
	}
	return s.WithdrawalDefault
}

// NetworkFee returns the transfer cost for an asset at the given speed. For
// assets listed under multiple networks (asset@network keys) without a bare
// entry, the cheapest supported network at that speed wins; USDT resolves to
// TRC20 this way.
func (m *Model) NetworkFee(asset string, speed Speed) float64 {
	asset = strings.ToUpper(asset)
	if nf, ok := m.network[asset]; ok {
		return nf.at(speed)
	}
	best := -1.0
	for key, nf := range m.network {
		if !strings.HasPrefix(key, asset+"@") {
			continue
		}
		if fee := nf.at(speed); best < 0 || fee < best {
			best = fee
		}
	}
	if best < 0 {
		return 0
	}
	return best
}

func (nf NetworkFee) at(speed Speed) float64 {
	switch speed {
	case SpeedFast:
		return nf.Fast
	case SpeedSlow:
		return nf.Slow
	default:
		return nf.Normal
	}
}

// TakerFeePctPair returns the taker fee percentages for the two legs of an
// opportunity, the simplified lookup used by the risk gate.
func (m *Model) TakerFeePctPair(opp domain.Opportunity) (buyPct, sellPct float64) {
	return m.TradingRate(opp.BuyVenue, Taker).Pct(), m.TradingRate(opp.SellVenue, Taker).Pct()
}

// DefaultSchedules returns the built-in venue fee tables. Values are venue
// published tier-0 rates in hundredths of a percent.
func DefaultSchedules() map[string]Schedule {
	return map[string]Schedule{
		"binance": {
			Maker: 10, Taker: 10,
			WithdrawalUSD:     map[string]float64{"BTC": 25, "ETH": 8, "USDT": 1},
			WithdrawalDefault: 5,
		},
		"coinbase": {
			Maker: 40, Taker: 60,
			WithdrawalUSD:     map[string]float64{"BTC": 30, "ETH": 10, "USDT": 2.5},
			WithdrawalDefault: 10,
		},
		"kraken": {
			Maker: 16, Taker: 26,
			WithdrawalUSD:     map[string]float64{"BTC": 20, "ETH": 7, "USDT": 2},
			WithdrawalDefault: 5,
		},
		"kucoin": {
			Maker: 10, Taker: 10,
			WithdrawalUSD:     map[string]float64{"BTC": 25, "ETH": 8, "USDT": 1},
			WithdrawalDefault: 5,
		},
		"bybit": {
			Maker: 10, Taker: 10,
			WithdrawalUSD:     map[string]float64{"BTC": 25, "ETH": 8, "USDT": 1},
			WithdrawalDefault: 5,
		},
		"okx": {
			Maker: 8, Taker: 10,
			WithdrawalUSD:     map[string]float64{"BTC": 22, "ETH": 8, "USDT": 1},
			WithdrawalDefault: 5,
		},
	}
}

// DefaultNetworkFees returns the built-in network fee table. USDT is listed
// per network so lookups resolve to the cheapest one.
func DefaultNetworkFees() map[string]NetworkFee {
	return map[string]NetworkFee{
		"BTC":        {Fast: 15, Normal: 8, Slow: 4},
		"ETH":        {Fast: 12, Normal: 6, Slow: 3},
		"SOL":        {Fast: 0.1, Normal: 0.05, Slow: 0.05},
		"USDT@TRC20": {Fast: 1, Normal: 1, Slow: 1},
		"USDT@ERC20": {Fast: 15, Normal: 8, Slow: 5},
	}
}

// DefaultFallbackSchedule is applied to venues with no explicit entry.
func DefaultFallbackSchedule() Schedule {
	return Schedule{
		Maker:             10,
		Taker:             20,
		WithdrawalUSD:     map[string]float64{},
		WithdrawalDefault: 10,
	}
}

// Default builds a Model from the built-in tables.
func Default() *Model {
	return NewModel(DefaultSchedules(), DefaultNetworkFees(), DefaultFallbackSchedule())
}
