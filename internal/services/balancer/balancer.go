// Package balancer plans rebalancing trades by greedy deviation pairing.
package balancer

import (
	"github.com/shopspring/decimal"

	"github.com/quantfell/parita/internal/domain"
)

const (
	// base amounts are rounded down to this scale before ordering
	amountPrecision = 8
	percentDivisor  = 100
)

// Planner turns a valued portfolio into a bounded sequence of limit orders
// that moves it toward its target weights. The planner is pure: it never
// talks to a venue, prices and books are passed in.
type Planner struct {
	maxOrders int
	mode      domain.PriceMode
}

// New returns a planner bounded by maxOrders per round.
func New(maxOrders int, mode domain.PriceMode) *Planner {
	return &Planner{maxOrders: maxOrders, mode: mode}
}

// Plan repeatedly pairs the most over-allocated asset with the most
// under-allocated one, sizing each pairing at the smaller of the seller
// excess and the buyer deficit in quote value. Planning stops when every
// deviation is within the threshold, the order budget is spent, or the
// best pairing no longer strictly reduces the worst deviation. A round
// with no viable pairing at all yields a degenerate plan with a nil
// proposed portfolio.
func (p *Planner) Plan(pf *domain.Portfolio, fees domain.FeeSchedule, books map[string]domain.BookTicker) (*domain.Plan, error) {
	holdings := pf.Holdings()
	cur := pf
	orders := make([]domain.Order, 0, p.maxOrders)
	totalFee := decimal.Zero
	partial := false

	for cur.NeedsBalancing() && len(orders) < p.maxOrders {
		over, under, ok := worstPair(cur)
		if !ok {
			break
		}

		quote := cur.Quote()
		needed := 2
		if over == quote || under == quote {
			needed = 1
		}
		if needed > p.maxOrders-len(orders) {
			break
		}

		devs := cur.Deviations()
		valuation := cur.Valuation()
		hundred := decimal.NewFromInt(percentDivisor)
		sellerExcess := devs[over].Mul(valuation).Div(hundred)
		buyerDeficit := devs[under].Neg().Mul(valuation).Div(hundred)
		tradeValue := decimal.Min(sellerExcess, buyerDeficit)
		if !tradeValue.IsPositive() {
			break
		}

		next := cloneHoldings(holdings)

		var (
			stepOrders []domain.Order
			stepFee    decimal.Decimal
			clamped    bool
			err        error
		)
		switch {
		case under == quote:
			stepOrders, stepFee, clamped, err = p.sellIntoQuote(cur, over, tradeValue, fees, books, next)
		case over == quote:
			stepOrders, stepFee, err = p.buyWithQuote(cur, under, tradeValue, fees, books, next)
		default:
			stepOrders, stepFee, clamped, err = p.swapThroughQuote(cur, over, under, tradeValue, fees, books, next)
		}
		if err != nil {
			return nil, err
		}
		if len(stepOrders) == 0 {
			// amounts rounded down to nothing, no progress possible
			break
		}

		candidate, err := cur.WithHoldings(next)
		if err != nil {
			return nil, err
		}
		if !candidate.MaxError().LessThan(cur.MaxError()) {
			break
		}

		orders = append(orders, stepOrders...)
		totalFee = totalFee.Add(stepFee)
		partial = partial || clamped
		holdings = next
		cur = candidate
	}

	if len(orders) == 0 {
		return &domain.Plan{TotalFee: decimal.Zero}, nil
	}

	// fees settle in the quote currency, deduct them from the simulated
	// quote balance before the final valuation
	final := cloneHoldings(holdings)
	quote := pf.Quote()
	final[quote] = decimal.Max(final[quote].Sub(totalFee), decimal.Zero)

	proposed, err := pf.WithHoldings(final)
	if err != nil {
		return nil, err
	}

	return &domain.Plan{
		Orders:   orders,
		Proposed: proposed,
		TotalFee: totalFee,
		Partial:  partial,
	}, nil
}

// sellIntoQuote liquidates part of an over-allocated asset directly into
// the quote currency. One order.
func (p *Planner) sellIntoQuote(pf *domain.Portfolio, asset string, value decimal.Decimal, fees domain.FeeSchedule,
	books map[string]domain.BookTicker, next map[string]decimal.Decimal) ([]domain.Order, decimal.Decimal, bool, error) {

	price, ok := pf.Price(asset)
	if !ok {
		return nil, decimal.Zero, false, &domain.PriceUnavailableError{Asset: asset}
	}

	amount := value.Div(price).RoundFloor(amountPrecision)
	clamped := false
	if held := next[asset]; amount.GreaterThan(held) {
		amount = held
		clamped = true
	}
	if !amount.IsPositive() {
		return nil, decimal.Zero, false, nil
	}

	order, fee, err := p.makeOrder(asset, domain.SideSell, amount, price, fees, books)
	if err != nil {
		return nil, decimal.Zero, false, err
	}

	next[asset] = next[asset].Sub(amount)
	next[pf.Quote()] = next[pf.Quote()].Add(amount.Mul(price))

	return []domain.Order{order}, fee, clamped, nil
}

// buyWithQuote spends over-allocated quote balance on an under-allocated
// asset. One order.
func (p *Planner) buyWithQuote(pf *domain.Portfolio, asset string, value decimal.Decimal, fees domain.FeeSchedule,
	books map[string]domain.BookTicker, next map[string]decimal.Decimal) ([]domain.Order, decimal.Decimal, error) {

	price, ok := pf.Price(asset)
	if !ok {
		return nil, decimal.Zero, &domain.PriceUnavailableError{Asset: asset}
	}

	amount := value.Div(price).RoundFloor(amountPrecision)
	if !amount.IsPositive() {
		return nil, decimal.Zero, nil
	}

	order, fee, err := p.makeOrder(asset, domain.SideBuy, amount, price, fees, books)
	if err != nil {
		return nil, decimal.Zero, err
	}

	next[asset] = next[asset].Add(amount)
	next[pf.Quote()] = next[pf.Quote()].Sub(amount.Mul(price))

	return []domain.Order{order}, fee, nil
}

// swapThroughQuote moves value between two non-quote assets. The quote
// currency is the transient intermediary: a sell funds a dependent buy,
// two orders, sell first.
func (p *Planner) swapThroughQuote(pf *domain.Portfolio, over, under string, value decimal.Decimal, fees domain.FeeSchedule,
	books map[string]domain.BookTicker, next map[string]decimal.Decimal) ([]domain.Order, decimal.Decimal, bool, error) {

	sellPrice, ok := pf.Price(over)
	if !ok {
		return nil, decimal.Zero, false, &domain.PriceUnavailableError{Asset: over}
	}
	buyPrice, ok := pf.Price(under)
	if !ok {
		return nil, decimal.Zero, false, &domain.PriceUnavailableError{Asset: under}
	}

	sellAmount := value.Div(sellPrice).RoundFloor(amountPrecision)
	clamped := false
	if held := next[over]; sellAmount.GreaterThan(held) {
		sellAmount = held
		clamped = true
	}
	if !sellAmount.IsPositive() {
		return nil, decimal.Zero, false, nil
	}

	sell, sellFee, err := p.makeOrder(over, domain.SideSell, sellAmount, sellPrice, fees, books)
	if err != nil {
		return nil, decimal.Zero, false, err
	}

	proceeds := sellAmount.Mul(sellPrice)
	next[over] = next[over].Sub(sellAmount)
	next[pf.Quote()] = next[pf.Quote()].Add(proceeds)

	buyAmount := proceeds.Div(buyPrice).RoundFloor(amountPrecision)
	if !buyAmount.IsPositive() {
		// proceeds too small to buy anything, the value parks in quote
		return []domain.Order{sell}, sellFee, clamped, nil
	}

	buy, buyFee, err := p.makeOrder(under, domain.SideBuy, buyAmount, buyPrice, fees, books)
	if err != nil {
		return nil, decimal.Zero, false, err
	}
	buy.DependsOn = sell.ID

	next[under] = next[under].Add(buyAmount)
	next[pf.Quote()] = next[pf.Quote()].Sub(buyAmount.Mul(buyPrice))

	return []domain.Order{sell, buy}, sellFee.Add(buyFee), clamped, nil
}

func (p *Planner) makeOrder(asset string, side domain.Side, amount, fallbackPrice decimal.Decimal,
	fees domain.FeeSchedule, books map[string]domain.BookTicker) (domain.Order, decimal.Decimal, error) {

	limit := fees.LimitPrice(side, p.mode, bookFor(asset, fallbackPrice, books))
	if !limit.IsPositive() {
		limit = fallbackPrice
	}

	order, err := domain.NewOrder(asset, side, amount, limit, p.mode)
	if err != nil {
		return domain.Order{}, decimal.Zero, err
	}

	return order, fees.Fee(side, p.mode, amount, limit), nil
}

// worstPair returns the most over-allocated and most under-allocated
// assets. Ties break in lexical symbol order.
func worstPair(pf *domain.Portfolio) (over, under string, ok bool) {
	devs := pf.Deviations()
	for _, asset := range pf.Assets() {
		dev := devs[asset]
		if dev.IsPositive() && (over == "" || dev.GreaterThan(devs[over])) {
			over = asset
		}
		if dev.IsNegative() && (under == "" || dev.LessThan(devs[under])) {
			under = asset
		}
	}

	return over, under, over != "" && under != ""
}

func bookFor(asset string, price decimal.Decimal, books map[string]domain.BookTicker) domain.BookTicker {
	if book, ok := books[asset]; ok && (book.Bid.IsPositive() || book.Ask.IsPositive()) {
		return book
	}

	return domain.FlatBook(asset, price)
}

func cloneHoldings(holdings map[string]decimal.Decimal) map[string]decimal.Decimal {
	clone := make(map[string]decimal.Decimal, len(holdings))
	for asset, amount := range holdings {
		clone[asset] = amount
	}

	return clone
}
