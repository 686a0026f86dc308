package domain

import "github.com/shopspring/decimal"

const midDivisor = 2

// BookTicker best bid and ask for an asset against the quote currency.
type BookTicker struct {
	Asset string
	Bid   decimal.Decimal
	Ask   decimal.Decimal
}

// FlatBook builds a ticker with both sides pinned to a single price.
// Used for venues that expose only a last or mid price.
func FlatBook(asset string, price decimal.Decimal) BookTicker {
	return BookTicker{Asset: asset, Bid: price, Ask: price}
}

// Mid returns the bid/ask midpoint. Falls back to the populated side
// when the other is missing.
func (b BookTicker) Mid() decimal.Decimal {
	switch {
	case b.Bid.IsPositive() && b.Ask.IsPositive():
		return b.Bid.Add(b.Ask).Div(decimal.NewFromInt(midDivisor))
	case b.Bid.IsPositive():
		return b.Bid
	case b.Ask.IsPositive():
		return b.Ask
	default:
		return decimal.Zero
	}
}

// PassiveSide returns the maker price for the given side: the bid for
// buys, the ask for sells.
func (b BookTicker) PassiveSide(side Side) decimal.Decimal {
	if side == SideBuy {
		if b.Bid.IsPositive() {
			return b.Bid
		}
		return b.Mid()
	}
	if b.Ask.IsPositive() {
		return b.Ask
	}

	return b.Mid()
}
