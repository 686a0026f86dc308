package domain

import "github.com/shopspring/decimal"

// Plan the planner's proposal for one rebalancing round. Orders are in
// execution sequence: every funding sell precedes its dependent buy.
type Plan struct {
	// Orders planned orders, empty when no improving plan exists.
	Orders []Order
	// Proposed the portfolio state after simulating all orders and
	// deducting the total fee. Nil when no pairing reduces the worst
	// deviation.
	Proposed *Portfolio
	// TotalFee estimated fees across all orders, in the quote currency.
	TotalFee decimal.Decimal
	// Partial true when at least one sell was clamped to the held balance.
	Partial bool
}

// Degenerate reports whether the planner found no improving plan.
func (p *Plan) Degenerate() bool {
	return p.Proposed == nil
}

// OrderOutcome the terminal record of one order after execution.
type OrderOutcome struct {
	Order    Order
	Attempts int
	Err      error
}

// ExecutionResult the full outcome of one rebalancing round.
type ExecutionResult struct {
	// Name portfolio name from configuration.
	Name string
	// Initial the portfolio as valued before planning.
	Initial *Portfolio
	// Proposed the simulated portfolio after the plan, nil when the round
	// ended without an improving plan or with no need to balance.
	Proposed *Portfolio
	// Orders planned orders in execution sequence.
	Orders []Order
	// Partial true when a sell was clamped to the held balance.
	Partial bool
	// TotalFee estimated total fee in the quote currency.
	TotalFee decimal.Decimal
	// Cancelled order identifiers removed by the cancel pre-pass.
	Cancelled []string
	// Successes outcomes of filled orders.
	Successes []OrderOutcome
	// Failures outcomes of rejected, errored and skipped orders.
	Failures []OrderOutcome
	// DryRun true when no order was submitted to the venue.
	DryRun bool
}

// Success reports whether the round completed without order failures.
func (r *ExecutionResult) Success() bool {
	return len(r.Failures) == 0
}
