package report

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/quantfell/parita/internal/domain"
)

func mustDec(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(s)
	require.NoError(t, err)

	return d
}

func mustPortfolio(t *testing.T, holdings map[string]decimal.Decimal) *domain.Portfolio {
	t.Helper()
	pf, err := domain.NewPortfolio("USDT", decimal.NewFromInt(1),
		holdings,
		map[string]decimal.Decimal{"BTC": decimal.NewFromInt(10000)},
		domain.Weights{
			"BTC":  decimal.NewFromInt(50),
			"USDT": decimal.NewFromInt(50),
		})
	require.NoError(t, err)

	return pf
}

func TestRenderBalancedRound(t *testing.T) {
	out := Render(&domain.ExecutionResult{
		Name: "core",
		Initial: mustPortfolio(t, map[string]decimal.Decimal{
			"BTC":  decimal.NewFromInt(1),
			"USDT": decimal.NewFromInt(10000),
		}),
		DryRun: true,
	})

	require.Contains(t, out, "PORTFOLIO CORE")
	require.Contains(t, out, "dry run")
	require.Contains(t, out, "within threshold, nothing to do")
	require.Contains(t, out, "valuation 20000.00 USDT")
}

func TestRenderNoImprovingPlan(t *testing.T) {
	out := Render(&domain.ExecutionResult{
		Name: "core",
		Initial: mustPortfolio(t, map[string]decimal.Decimal{
			"BTC":  mustDec(t, "1.2"),
			"USDT": decimal.NewFromInt(10000),
		}),
	})

	require.Contains(t, out, "no improving plan found")
}

func TestRenderDryRunPlan(t *testing.T) {
	sell, err := domain.NewOrder("BTC", domain.SideSell, mustDec(t, "0.05"), decimal.NewFromInt(10000), domain.PriceModeMid)
	require.NoError(t, err)

	out := Render(&domain.ExecutionResult{
		Name: "core",
		Initial: mustPortfolio(t, map[string]decimal.Decimal{
			"BTC":  mustDec(t, "1.2"),
			"USDT": decimal.NewFromInt(10000),
		}),
		Orders:   []domain.Order{sell},
		TotalFee: mustDec(t, "0.5"),
		DryRun:   true,
	})

	require.Contains(t, out, "ORDERS")
	require.Contains(t, out, "sell")
	require.Contains(t, out, "0.05 BTC")
	require.Contains(t, out, "planned")
	require.Contains(t, out, "estimated fee 0.5000 USDT")
}

func TestRenderExecutedRound(t *testing.T) {
	sell, err := domain.NewOrder("BTC", domain.SideSell, mustDec(t, "0.05"), decimal.NewFromInt(10000), domain.PriceModeMid)
	require.NoError(t, err)
	buy, err := domain.NewOrder("ETH", domain.SideBuy, mustDec(t, "0.2"), decimal.NewFromInt(2000), domain.PriceModeMid)
	require.NoError(t, err)

	filled := sell
	filled.State = domain.OrderFilled
	rejected := buy
	rejected.State = domain.OrderRejected

	out := Render(&domain.ExecutionResult{
		Name: "core",
		Initial: mustPortfolio(t, map[string]decimal.Decimal{
			"BTC":  mustDec(t, "1.2"),
			"USDT": decimal.NewFromInt(10000),
		}),
		Orders:    []domain.Order{sell, buy},
		Successes: []domain.OrderOutcome{{Order: filled, Attempts: 2}},
		Failures:  []domain.OrderOutcome{{Order: rejected, Attempts: 1, Err: &domain.RejectedError{Reason: "insufficient balance"}}},
		Cancelled: []string{"a", "b"},
		Partial:   true,
		TotalFee:  mustDec(t, "1.25"),
	})

	require.Contains(t, out, "filled, 2 attempts")
	require.Contains(t, out, "rejected")
	require.Contains(t, out, "insufficient balance")
	require.Contains(t, out, "cancelled 2 resting orders")
	require.Contains(t, out, "partial")
	require.NotContains(t, out, "dry run")
}
