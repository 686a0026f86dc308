package domain

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Side direction of an order.
type Side int

const (
	SideBuy Side = iota
	SideSell
)

// String returns the string representation of the side.
func (s Side) String() string {
	switch s {
	case SideBuy:
		return "buy"
	case SideSell:
		return "sell"
	default:
		return "unknown"
	}
}

// PriceMode limit price selection strategy.
type PriceMode string

const (
	// PriceModeMid prices at the bid/ask midpoint.
	PriceModeMid PriceMode = "mid"
	// PriceModePassive prices at the near side of the book (maker).
	PriceModePassive PriceMode = "passive"
	// PriceModeCheap lets the fee schedule pick the cheapest viable price.
	PriceModeCheap PriceMode = "cheap"
)

// ParsePriceMode validates and returns a price mode from its string form.
func ParsePriceMode(s string) (PriceMode, error) {
	switch PriceMode(s) {
	case PriceModeMid, PriceModePassive, PriceModeCheap:
		return PriceMode(s), nil
	}

	return "", &ConfigError{Reason: fmt.Sprintf("unknown price mode %q", s)}
}

// OrderState lifecycle state of an order.
type OrderState int

const (
	OrderProposed OrderState = iota
	OrderSubmitting
	OrderFilled
	OrderRejected
	OrderSubmitError
)

// String returns the string representation of the state.
func (s OrderState) String() string {
	switch s {
	case OrderProposed:
		return "proposed"
	case OrderSubmitting:
		return "submitting"
	case OrderFilled:
		return "filled"
	case OrderRejected:
		return "rejected"
	case OrderSubmitError:
		return "submit_error"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further transition may leave the state.
func (s OrderState) Terminal() bool {
	switch s {
	case OrderFilled, OrderRejected, OrderSubmitError:
		return true
	}

	return false
}

// ValidTransition reports whether an order may move from one state to another.
func ValidTransition(from, to OrderState) bool {
	switch from {
	case OrderProposed:
		return to == OrderSubmitting
	case OrderSubmitting:
		return to == OrderFilled || to == OrderRejected || to == OrderSubmitError
	default:
		return false
	}
}

// Order a single planned limit order against the quote currency.
type Order struct {
	// ID client order identifier, stable across submission attempts.
	ID string
	// Asset base asset symbol.
	Asset string
	// Side buy or sell.
	Side Side
	// Amount base asset quantity.
	Amount decimal.Decimal
	// Price limit price in the quote currency.
	Price decimal.Decimal
	// Mode price selection strategy used to compute Price.
	Mode PriceMode
	// DependsOn ID of the sell that funds this buy, empty when funded
	// from existing quote balance.
	DependsOn string
	// State current lifecycle state.
	State OrderState
}

// NewOrder creates a validated order in the proposed state.
func NewOrder(asset string, side Side, amount, price decimal.Decimal, mode PriceMode) (Order, error) {
	if asset == "" {
		return Order{}, fmt.Errorf("asset must not be empty")
	}
	if amount.LessThanOrEqual(decimal.Zero) {
		return Order{}, fmt.Errorf("amount must be positive, got %s", amount.String())
	}
	if price.LessThanOrEqual(decimal.Zero) {
		return Order{}, fmt.Errorf("price must be positive, got %s", price.String())
	}

	return Order{
		ID:     uuid.NewString(),
		Asset:  asset,
		Side:   side,
		Amount: amount,
		Price:  price,
		Mode:   mode,
		State:  OrderProposed,
	}, nil
}

// Advance moves the order to the next state, rejecting invalid transitions.
func (o *Order) Advance(next OrderState) error {
	if !ValidTransition(o.State, next) {
		return fmt.Errorf("invalid order state transition %s -> %s", o.State, next)
	}
	o.State = next

	return nil
}

// Notional returns the order value in the quote currency at the limit price.
func (o *Order) Notional() decimal.Decimal {
	return o.Amount.Mul(o.Price)
}

// String returns a human-readable string representation.
func (o *Order) String() string {
	return fmt.Sprintf("%s %s amount: %s price: %s", o.Side.String(), o.Asset, o.Amount.String(), o.Price.String())
}
