// Package domain defines the core data structures of the rebalancing engine.
package domain

import (
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/shopspring/decimal"
)

const percentMultiplier = 100

// Portfolio an immutable valued snapshot of holdings against target weights.
// Valuation, percentage shares and deviation metrics are computed on first
// use and memoized; derived portfolios are new instances.
type Portfolio struct {
	quote     string
	threshold decimal.Decimal
	holdings  map[string]decimal.Decimal
	prices    map[string]decimal.Decimal
	targets   Weights

	once       sync.Once
	valuation  decimal.Decimal
	shares     map[string]decimal.Decimal
	deviations map[string]decimal.Decimal
	rmsError   decimal.Decimal
	maxError   decimal.Decimal
}

// NewPortfolio creates a snapshot from holdings, per-asset prices in the
// quote currency, and target weights. The quote currency itself always
// prices at 1. Every held asset with a positive balance must have a
// positive price, otherwise a PriceUnavailableError is returned.
func NewPortfolio(quote string, threshold decimal.Decimal, holdings, prices map[string]decimal.Decimal, targets Weights) (*Portfolio, error) {
	if quote == "" {
		return nil, &ConfigError{Reason: "quote currency must not be empty"}
	}
	if threshold.IsNegative() {
		return nil, &ConfigError{Reason: fmt.Sprintf("threshold must be non-negative, got %s", threshold.String())}
	}
	if err := targets.Validate(); err != nil {
		return nil, err
	}

	heldCopy := make(map[string]decimal.Decimal, len(holdings))
	for asset, amount := range holdings {
		if amount.IsNegative() {
			return nil, fmt.Errorf("holding for %s must be non-negative, got %s", asset, amount.String())
		}
		heldCopy[asset] = amount
	}

	priceCopy := make(map[string]decimal.Decimal, len(prices))
	for asset, price := range prices {
		if price.IsNegative() {
			return nil, fmt.Errorf("price for %s must be non-negative, got %s", asset, price.String())
		}
		priceCopy[asset] = price
	}

	for asset, amount := range heldCopy {
		if asset == quote || amount.IsZero() {
			continue
		}
		if price, ok := priceCopy[asset]; !ok || !price.IsPositive() {
			return nil, &PriceUnavailableError{Asset: asset}
		}
	}

	return &Portfolio{
		quote:     quote,
		threshold: threshold,
		holdings:  heldCopy,
		prices:    priceCopy,
		targets:   targets.Clone(),
	}, nil
}

// WithHoldings derives a new snapshot with the same quote currency, prices,
// targets and threshold but different holdings.
func (p *Portfolio) WithHoldings(holdings map[string]decimal.Decimal) (*Portfolio, error) {
	return NewPortfolio(p.quote, p.threshold, holdings, p.prices, p.targets)
}

// Quote returns the quote currency symbol.
func (p *Portfolio) Quote() string {
	return p.quote
}

// Threshold returns the rebalancing tolerance in percentage points.
func (p *Portfolio) Threshold() decimal.Decimal {
	return p.threshold
}

// Holding returns the held amount of asset, zero if absent.
func (p *Portfolio) Holding(asset string) decimal.Decimal {
	return p.holdings[asset]
}

// Holdings returns a copy of the held amounts per asset.
func (p *Portfolio) Holdings() map[string]decimal.Decimal {
	holdings := make(map[string]decimal.Decimal, len(p.holdings))
	for asset, amount := range p.holdings {
		holdings[asset] = amount
	}

	return holdings
}

// Price returns the price of asset in the quote currency. The quote
// currency prices at 1.
func (p *Portfolio) Price(asset string) (decimal.Decimal, bool) {
	if asset == p.quote {
		return decimal.NewFromInt(1), true
	}
	price, ok := p.prices[asset]
	if !ok || !price.IsPositive() {
		return decimal.Zero, false
	}

	return price, true
}

// Targets returns a copy of the target weights.
func (p *Portfolio) Targets() Weights {
	return p.targets.Clone()
}

// Assets returns the union of held and targeted asset symbols in lexical order.
func (p *Portfolio) Assets() []string {
	seen := make(map[string]struct{}, len(p.holdings)+len(p.targets))
	for asset := range p.holdings {
		seen[asset] = struct{}{}
	}
	for asset := range p.targets {
		seen[asset] = struct{}{}
	}

	assets := make([]string, 0, len(seen))
	for asset := range seen {
		assets = append(assets, asset)
	}
	sort.Strings(assets)

	return assets
}

// Valuation returns the total portfolio value in the quote currency.
func (p *Portfolio) Valuation() decimal.Decimal {
	p.compute()
	return p.valuation
}

// Share returns the percentage share of asset in the total valuation.
func (p *Portfolio) Share(asset string) decimal.Decimal {
	p.compute()
	return p.shares[asset]
}

// Shares returns a copy of the percentage shares per asset.
func (p *Portfolio) Shares() map[string]decimal.Decimal {
	p.compute()

	shares := make(map[string]decimal.Decimal, len(p.shares))
	for asset, share := range p.shares {
		shares[asset] = share
	}

	return shares
}

// Deviation returns actual share minus target share for asset, in
// percentage points. Positive values mean over-allocated.
func (p *Portfolio) Deviation(asset string) decimal.Decimal {
	p.compute()
	return p.deviations[asset]
}

// Deviations returns a copy of the deviations over the union of held and
// targeted assets.
func (p *Portfolio) Deviations() map[string]decimal.Decimal {
	p.compute()

	deviations := make(map[string]decimal.Decimal, len(p.deviations))
	for asset, dev := range p.deviations {
		deviations[asset] = dev
	}

	return deviations
}

// RMSError returns the root mean square of the deviations.
func (p *Portfolio) RMSError() decimal.Decimal {
	p.compute()
	return p.rmsError
}

// MaxError returns the largest absolute deviation.
func (p *Portfolio) MaxError() decimal.Decimal {
	p.compute()
	return p.maxError
}

// NeedsBalancing reports whether the largest absolute deviation strictly
// exceeds the threshold. A deviation exactly at the threshold does not
// trigger balancing.
func (p *Portfolio) NeedsBalancing() bool {
	p.compute()
	return p.maxError.GreaterThan(p.threshold)
}

func (p *Portfolio) compute() {
	p.once.Do(func() {
		total := decimal.Zero
		for asset, amount := range p.holdings {
			price, ok := p.Price(asset)
			if !ok {
				continue
			}
			total = total.Add(amount.Mul(price))
		}
		p.valuation = total

		p.shares = make(map[string]decimal.Decimal, len(p.holdings))
		p.deviations = make(map[string]decimal.Decimal, len(p.holdings)+len(p.targets))

		// empty portfolio: nothing to measure, nothing to balance
		if total.IsZero() {
			p.rmsError = decimal.Zero
			p.maxError = decimal.Zero
			return
		}

		hundred := decimal.NewFromInt(percentMultiplier)
		for asset, amount := range p.holdings {
			price, ok := p.Price(asset)
			if !ok {
				p.shares[asset] = decimal.Zero
				continue
			}
			p.shares[asset] = amount.Mul(price).Div(total).Mul(hundred)
		}

		sumSquares := 0.0
		count := 0
		maxErr := decimal.Zero
		for _, asset := range p.Assets() {
			dev := p.shares[asset].Sub(p.targets.Target(asset))
			p.deviations[asset] = dev

			abs := dev.Abs()
			if abs.GreaterThan(maxErr) {
				maxErr = abs
			}

			f, _ := dev.Float64()
			sumSquares += f * f
			count++
		}

		p.maxError = maxErr
		if count > 0 {
			// decimal has no square root, go through float64 for it
			p.rmsError = decimal.NewFromFloat(math.Sqrt(sumSquares / float64(count)))
		} else {
			p.rmsError = decimal.Zero
		}
	})
}
