// Package venues adapts exchange SDKs to the surface the engine consumes:
// balances, prices, books, fee schedules, order submission and cancellation.
package venues

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/quantfell/parita/internal/domain"
)

// Plans carry eight decimals, spot markets rarely accept more than four.
const orderQtyPrecision = 4

func symbol(asset, quote string) string {
	return asset + quote
}

// wireQty trims an order amount to the precision venues accept. Amounts
// that vanish at that precision are rejected before any network call.
func wireQty(amount decimal.Decimal) (decimal.Decimal, error) {
	qty := amount.RoundFloor(orderQtyPrecision)
	if !qty.IsPositive() {
		return decimal.Decimal{}, &domain.RejectedError{
			Reason: fmt.Sprintf("amount %s rounds to zero at venue precision", amount.String()),
		}
	}

	return qty, nil
}
