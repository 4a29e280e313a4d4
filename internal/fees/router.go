package fees

import (
	"github.com/arbot-io/arbot/internal/domain"
)

// Route is one of the four maker/taker combinations for the two legs of an
// arbitrage trade, with its full cost breakdown in USD.
type Route struct {
	BuyType          Liquidity
	SellType         Liquidity
	BuyFeeUSD        float64
	SellFeeUSD       float64
	WithdrawalFeeUSD float64
	NetworkFeeUSD    float64
	TotalFeeUSD      float64
}

// RouteReport compares the four routes for one opportunity and trade size.
type RouteReport struct {
	Recommended           Route
	Worst                 Route
	Alternatives          []Route // all four, in enumeration order
	FeeSavingsUSD         float64
	SavingsPct            float64
	NetProfitAfterFeesUSD float64
}

// routeCombos is the fixed enumeration order; ties on total fee resolve to
// the first minimal entry.
var routeCombos = [4][2]Liquidity{
	{Maker, Maker},
	{Maker, Taker},
	{Taker, Maker},
	{Taker, Taker},
}

// Optimizer picks the cheapest maker/taker combination for a two-leg trade.
type Optimizer struct {
	model *Model
}

// NewOptimizer creates an Optimizer over the given fee model.
func NewOptimizer(model *Model) *Optimizer {
	return &Optimizer{model: model}
}

// Optimize enumerates the four maker/taker combinations for the opportunity
// at the given trade size and returns the cheapest as recommended and the
// priciest as worst. Withdrawal and network fees are charged on the buy venue
// side (the leg that moves inventory) and are identical across combinations.
func (o *Optimizer) Optimize(opp domain.Opportunity, tradeSizeUSD float64) RouteReport {
	withdrawal := o.model.WithdrawalFee(opp.BuyVenue, opp.Coin)
	network := o.model.NetworkFee(opp.Coin, SpeedNormal)

	routes := make([]Route, 0, len(routeCombos))
	for _, combo := range routeCombos {
		buyRate := o.model.TradingRate(opp.BuyVenue, combo[0])
		sellRate := o.model.TradingRate(opp.SellVenue, combo[1])

		r := Route{
			BuyType:          combo[0],
			SellType:         combo[1],
			BuyFeeUSD:        buyRate.Apply(tradeSizeUSD),
			SellFeeUSD:       sellRate.Apply(tradeSizeUSD),
			WithdrawalFeeUSD: withdrawal,
			NetworkFeeUSD:    network,
		}
		r.TotalFeeUSD = r.BuyFeeUSD + r.SellFeeUSD + r.WithdrawalFeeUSD + r.NetworkFeeUSD
		routes = append(routes, r)
	}

	best, worst := routes[0], routes[0]
	for _, r := range routes[1:] {
		if r.TotalFeeUSD < best.TotalFeeUSD {
			best = r
		}
		if r.TotalFeeUSD > worst.TotalFeeUSD {
			worst = r
		}
	}

	savings := worst.TotalFeeUSD - best.TotalFeeUSD
	savingsPct := 0.0
	if worst.TotalFeeUSD > 0 {
		savingsPct = savings / worst.TotalFeeUSD * 100
	}

	grossProfit := opp.GrossSpreadPct / 100 * tradeSizeUSD

	return RouteReport{
		Recommended:           best,
		Worst:                 worst,
		Alternatives:          routes,
		FeeSavingsUSD:         savings,
		SavingsPct:            savingsPct,
		NetProfitAfterFeesUSD: grossProfit - best.TotalFeeUSD,
	}
}
