// Package valuation builds valued portfolio snapshots from venue state.
package valuation

import (
	"context"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/quantfell/parita/internal/domain"
)

type marketData interface {
	Name() string
	Balances(ctx context.Context) (map[string]decimal.Decimal, error)
	Prices(ctx context.Context, assets []string) (map[string]decimal.Decimal, error)
}

// Valuer values venue holdings against target weights. Holdings are
// restricted to the targeted assets plus the quote currency, balances the
// venue reports outside that set are ignored.
type Valuer struct {
	venue     marketData
	quote     string
	threshold decimal.Decimal
	targets   domain.Weights
}

// New returns a configured valuer.
func New(venue marketData, quote string, threshold decimal.Decimal, targets domain.Weights) (*Valuer, error) {
	if quote == "" {
		return nil, &domain.ConfigError{Reason: "quote currency must not be empty"}
	}
	if threshold.IsNegative() {
		return nil, &domain.ConfigError{Reason: "threshold must be non-negative"}
	}
	if err := targets.Validate(); err != nil {
		return nil, err
	}

	return &Valuer{
		venue:     venue,
		quote:     quote,
		threshold: threshold,
		targets:   targets.Clone(),
	}, nil
}

// Snapshot fetches balances and prices and values them into a portfolio.
func (v *Valuer) Snapshot(ctx context.Context) (*domain.Portfolio, error) {
	balances, err := v.venue.Balances(ctx)
	if err != nil {
		return nil, &domain.VenueUnavailableError{Venue: v.venue.Name(), Err: err}
	}

	holdings := make(map[string]decimal.Decimal, len(v.targets)+1)
	for _, asset := range v.targets.Assets() {
		holdings[asset] = balances[asset]
	}
	if _, ok := holdings[v.quote]; !ok {
		holdings[v.quote] = balances[v.quote]
	}

	assets := make([]string, 0, len(holdings))
	for asset := range holdings {
		if asset != v.quote {
			assets = append(assets, asset)
		}
	}
	sort.Strings(assets)

	prices := make(map[string]decimal.Decimal)
	if len(assets) > 0 {
		prices, err = v.venue.Prices(ctx, assets)
		if err != nil {
			if domain.IsPriceUnavailable(err) {
				return nil, err
			}
			return nil, &domain.VenueUnavailableError{Venue: v.venue.Name(), Err: err}
		}
	}

	return domain.NewPortfolio(v.quote, v.threshold, holdings, prices, v.targets)
}
