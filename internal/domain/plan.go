package domain

// ExecutionStrategy selects how an order is worked across venues and time.
type ExecutionStrategy string

const (
	StrategyBestExecution ExecutionStrategy = "BEST_EXECUTION"
	StrategyMultiVenue    ExecutionStrategy = "MULTI_VENUE"
	StrategyTWAP          ExecutionStrategy = "TWAP"
	StrategyVWAP          ExecutionStrategy = "VWAP"
)

// PlanLeg is one scheduled slice of an execution plan. DelayMs is relative to
// plan start; a leg at delay d is eligible no earlier than d after start.
type PlanLeg struct {
	Venue         string
	Amount        float64
	ExpectedPrice float64
	DelayMs       int64
}

// ExecutionPlan is the output of the smart order router: an ordered list of
// legs plus aggregate expectations. Ephemeral, never persisted.
type ExecutionPlan struct {
	Strategy              ExecutionStrategy
	Legs                  []PlanLeg
	TotalExpectedSlippage float64
	EstimatedCostUSD      float64
}

// TotalAmount sums the leg amounts.
func (p ExecutionPlan) TotalAmount() float64 {
	var total float64
	for _, leg := range p.Legs {
		total += leg.Amount
	}
	return total
}
