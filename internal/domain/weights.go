package domain

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"
)

const targetWeightSum = 100

// Weights target percentage allocation per asset symbol.
type Weights map[string]decimal.Decimal

// ParseWeights builds Weights from string percentages keyed by asset symbol.
func ParseWeights(raw map[string]string) (Weights, error) {
	if len(raw) == 0 {
		return nil, &ConfigError{Reason: "no target weights configured"}
	}

	weights := make(Weights, len(raw))
	for asset, value := range raw {
		if asset == "" {
			return nil, &ConfigError{Reason: "empty asset symbol in target weights"}
		}

		weight, err := decimal.NewFromString(value)
		if err != nil {
			return nil, &ConfigError{Reason: fmt.Sprintf("invalid weight %q for %s", value, asset)}
		}

		weights[asset] = weight
	}

	if err := weights.Validate(); err != nil {
		return nil, err
	}

	return weights, nil
}

// Validate checks that weights are non-negative and sum to exactly 100.
func (w Weights) Validate() error {
	if len(w) == 0 {
		return &ConfigError{Reason: "no target weights configured"}
	}

	sum := decimal.Zero
	for asset, weight := range w {
		if weight.IsNegative() {
			return &ConfigError{Reason: fmt.Sprintf("negative weight %s for %s", weight.String(), asset)}
		}
		sum = sum.Add(weight)
	}

	if !sum.Equal(decimal.NewFromInt(targetWeightSum)) {
		return &ConfigError{Reason: fmt.Sprintf("target weights sum to %s, must be %d", sum.String(), targetWeightSum)}
	}

	return nil
}

// Assets returns the targeted asset symbols in lexical order.
func (w Weights) Assets() []string {
	assets := make([]string, 0, len(w))
	for asset := range w {
		assets = append(assets, asset)
	}
	sort.Strings(assets)

	return assets
}

// Target returns the weight for asset, zero if the asset is not targeted.
func (w Weights) Target(asset string) decimal.Decimal {
	return w[asset]
}

// Clone returns an independent copy.
func (w Weights) Clone() Weights {
	clone := make(Weights, len(w))
	for asset, weight := range w {
		clone[asset] = weight
	}

	return clone
}
