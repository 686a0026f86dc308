package domain

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// FeeSchedule estimates trading costs in the quote currency.
type FeeSchedule interface {
	// Fee returns the estimated fee for filling amount at price.
	Fee(side Side, mode PriceMode, amount, price decimal.Decimal) decimal.Decimal
	// LimitPrice picks the limit price for the given mode from a book ticker.
	LimitPrice(side Side, mode PriceMode, book BookTicker) decimal.Decimal
}

// StaticFees flat maker/taker fee schedule. Rates are fractions of the
// notional, e.g. 0.001 for 10 bps.
type StaticFees struct {
	Maker decimal.Decimal
	Taker decimal.Decimal
}

// NewStaticFees creates a flat schedule with the given maker and taker rates.
func NewStaticFees(maker, taker decimal.Decimal) (StaticFees, error) {
	if maker.IsNegative() {
		return StaticFees{}, fmt.Errorf("maker fee must be non-negative, got %s", maker.String())
	}
	if taker.IsNegative() {
		return StaticFees{}, fmt.Errorf("taker fee must be non-negative, got %s", taker.String())
	}

	return StaticFees{Maker: maker, Taker: taker}, nil
}

// DefaultFees returns the fallback 10 bps flat schedule used when a venue
// does not report its own rates.
func DefaultFees() StaticFees {
	rate := decimal.NewFromFloat(0.001)
	return StaticFees{Maker: rate, Taker: rate}
}

// Fee returns notional * rate, with the rate chosen by price mode:
// passive orders pay the maker rate, mid orders the taker rate, cheap
// orders whichever is lower.
func (f StaticFees) Fee(side Side, mode PriceMode, amount, price decimal.Decimal) decimal.Decimal {
	return amount.Mul(price).Mul(f.rate(mode))
}

// LimitPrice resolves the limit price for the given mode. Cheap mode takes
// the passive side when the maker rate is the cheaper one, the midpoint
// otherwise.
func (f StaticFees) LimitPrice(side Side, mode PriceMode, book BookTicker) decimal.Decimal {
	switch mode {
	case PriceModePassive:
		return book.PassiveSide(side)
	case PriceModeCheap:
		if f.Maker.LessThan(f.Taker) {
			return book.PassiveSide(side)
		}
		return book.Mid()
	default:
		return book.Mid()
	}
}

func (f StaticFees) rate(mode PriceMode) decimal.Decimal {
	switch mode {
	case PriceModePassive:
		return f.Maker
	case PriceModeCheap:
		if f.Maker.LessThan(f.Taker) {
			return f.Maker
		}
		return f.Taker
	default:
		return f.Taker
	}
}
