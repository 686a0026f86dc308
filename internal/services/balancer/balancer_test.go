package balancer

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/quantfell/parita/internal/domain"
)

func mustDec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func mustPortfolio(t *testing.T, quote string, threshold decimal.Decimal, holdings, prices map[string]decimal.Decimal, targets domain.Weights) *domain.Portfolio {
	t.Helper()

	pf, err := domain.NewPortfolio(quote, threshold, holdings, prices, targets)
	require.NoError(t, err)

	return pf
}

func noBooks() map[string]domain.BookTicker {
	return map[string]domain.BookTicker{}
}

func TestPlanSingleSellIntoQuote(t *testing.T) {
	pf := mustPortfolio(t, "USDT", decimal.NewFromInt(1),
		map[string]decimal.Decimal{
			"BTC":  decimal.NewFromInt(1),
			"USDT": decimal.NewFromInt(9000),
		},
		map[string]decimal.Decimal{
			"BTC": decimal.NewFromInt(10000),
		},
		domain.Weights{
			"BTC":  decimal.NewFromInt(50),
			"USDT": decimal.NewFromInt(50),
		})

	plan, err := New(1, domain.PriceModeMid).Plan(pf, domain.DefaultFees(), noBooks())
	require.NoError(t, err)
	require.False(t, plan.Degenerate())

	require.Len(t, plan.Orders, 1)
	order := plan.Orders[0]
	require.Equal(t, "BTC", order.Asset)
	require.Equal(t, domain.SideSell, order.Side)
	require.True(t, order.Amount.Equal(mustDec("0.05")),
		"expected to sell 0.05 BTC, got %s", order.Amount.String())
	require.True(t, order.Price.Equal(decimal.NewFromInt(10000)))
	require.Empty(t, order.DependsOn)
	require.Equal(t, domain.OrderProposed, order.State)

	// 0.05 * 10000 * 0.001
	require.True(t, plan.TotalFee.Equal(mustDec("0.5")),
		"expected fee 0.5, got %s", plan.TotalFee.String())
	require.False(t, plan.Partial)

	require.False(t, plan.Proposed.NeedsBalancing())
	require.True(t, plan.Proposed.Holding("BTC").Equal(mustDec("0.95")))
	require.True(t, plan.Proposed.Holding("USDT").Equal(mustDec("9499.5")),
		"fee must come out of the quote balance, got %s", plan.Proposed.Holding("USDT").String())
}

func TestPlanBalancedPortfolio(t *testing.T) {
	pf := mustPortfolio(t, "USDT", decimal.NewFromInt(1),
		map[string]decimal.Decimal{
			"BTC":  decimal.NewFromInt(1),
			"USDT": decimal.NewFromInt(10000),
		},
		map[string]decimal.Decimal{
			"BTC": decimal.NewFromInt(10000),
		},
		domain.Weights{
			"BTC":  decimal.NewFromInt(50),
			"USDT": decimal.NewFromInt(50),
		})
	require.False(t, pf.NeedsBalancing())

	plan, err := New(5, domain.PriceModeMid).Plan(pf, domain.DefaultFees(), noBooks())
	require.NoError(t, err)
	require.True(t, plan.Degenerate())
	require.Empty(t, plan.Orders)
	require.Nil(t, plan.Proposed)
}

func TestPlanSwapThroughQuote(t *testing.T) {
	pf := mustPortfolio(t, "USDT", decimal.NewFromInt(1),
		map[string]decimal.Decimal{
			"BTC":  mustDec("0.5"),
			"ETH":  decimal.NewFromInt(3),
			"USDT": decimal.NewFromInt(2000),
		},
		map[string]decimal.Decimal{
			"BTC": decimal.NewFromInt(10000),
			"ETH": decimal.NewFromInt(1000),
		},
		domain.Weights{
			"BTC":  decimal.NewFromInt(40),
			"ETH":  decimal.NewFromInt(40),
			"USDT": decimal.NewFromInt(20),
		})

	plan, err := New(5, domain.PriceModeMid).Plan(pf, domain.DefaultFees(), noBooks())
	require.NoError(t, err)
	require.False(t, plan.Degenerate())

	require.Len(t, plan.Orders, 2)

	sell := plan.Orders[0]
	require.Equal(t, domain.SideSell, sell.Side)
	require.Equal(t, "BTC", sell.Asset)
	require.True(t, sell.Amount.Equal(mustDec("0.1")))

	buy := plan.Orders[1]
	require.Equal(t, domain.SideBuy, buy.Side)
	require.Equal(t, "ETH", buy.Asset)
	require.True(t, buy.Amount.Equal(decimal.NewFromInt(1)))
	require.Equal(t, sell.ID, buy.DependsOn, "the buy must be funded by the sell")

	// both legs pay taker: 1000*0.001 each
	require.True(t, plan.TotalFee.Equal(decimal.NewFromInt(2)))
	require.True(t, plan.Proposed.Holding("USDT").Equal(decimal.NewFromInt(1998)))
	require.False(t, plan.Proposed.NeedsBalancing())
}

func TestPlanRespectsOrderBudget(t *testing.T) {
	// the only useful pairing needs two orders, one slot is not enough
	pf := mustPortfolio(t, "USDT", decimal.NewFromInt(1),
		map[string]decimal.Decimal{
			"BTC":  mustDec("0.5"),
			"ETH":  decimal.NewFromInt(3),
			"USDT": decimal.NewFromInt(2000),
		},
		map[string]decimal.Decimal{
			"BTC": decimal.NewFromInt(10000),
			"ETH": decimal.NewFromInt(1000),
		},
		domain.Weights{
			"BTC":  decimal.NewFromInt(40),
			"ETH":  decimal.NewFromInt(40),
			"USDT": decimal.NewFromInt(20),
		})

	plan, err := New(1, domain.PriceModeMid).Plan(pf, domain.DefaultFees(), noBooks())
	require.NoError(t, err)
	require.True(t, plan.Degenerate())
	require.Empty(t, plan.Orders)
}

func TestPlanMultiRound(t *testing.T) {
	pf := mustPortfolio(t, "USDT", decimal.NewFromInt(1),
		map[string]decimal.Decimal{
			"BTC":  mustDec("0.5"),
			"ETH":  decimal.NewFromInt(2),
			"SOL":  decimal.NewFromInt(40),
			"XMR":  mustDec("12.5"),
			"USDT": decimal.NewFromInt(13000),
		},
		map[string]decimal.Decimal{
			"BTC": decimal.NewFromInt(50000),
			"ETH": decimal.NewFromInt(2500),
			"SOL": decimal.NewFromInt(125),
			"XMR": decimal.NewFromInt(160),
		},
		domain.Weights{
			"BTC":  decimal.NewFromInt(30),
			"ETH":  decimal.NewFromInt(25),
			"SOL":  decimal.NewFromInt(25),
			"XMR":  decimal.NewFromInt(10),
			"USDT": decimal.NewFromInt(10),
		})
	initialMax := pf.MaxError()

	plan, err := New(10, domain.PriceModeMid).Plan(pf, domain.DefaultFees(), noBooks())
	require.NoError(t, err)
	require.False(t, plan.Degenerate())

	require.Len(t, plan.Orders, 5)
	require.True(t, plan.Proposed.MaxError().LessThanOrEqual(initialMax),
		"planning must never worsen the max deviation")
	require.False(t, plan.Proposed.NeedsBalancing())

	// every buy funded by a sell references an earlier order
	seen := map[string]bool{}
	for _, order := range plan.Orders {
		if order.DependsOn != "" {
			require.True(t, seen[order.DependsOn], "funding sell must precede its buy")
		}
		seen[order.ID] = true
	}
}

func TestPlanStopsWhenMaxDeviationStalls(t *testing.T) {
	// deviations +20/+20/-20/-20: pairing the worst pair zeroes one
	// surplus and one deficit but leaves the other two at the same level,
	// so the round must yield no plan
	pf := mustPortfolio(t, "USDT", decimal.NewFromInt(1),
		map[string]decimal.Decimal{
			"BTC":  decimal.NewFromInt(4),
			"ETH":  decimal.NewFromInt(4),
			"SOL":  decimal.NewFromInt(5),
			"USDT": decimal.NewFromInt(300),
		},
		map[string]decimal.Decimal{
			"BTC": decimal.NewFromInt(100),
			"ETH": decimal.NewFromInt(50),
			"SOL": decimal.NewFromInt(20),
		},
		domain.Weights{
			"BTC":  decimal.NewFromInt(20),
			"ETH":  decimal.NewFromInt(40),
			"SOL":  decimal.NewFromInt(30),
			"USDT": decimal.NewFromInt(10),
		})

	plan, err := New(10, domain.PriceModeMid).Plan(pf, domain.DefaultFees(), noBooks())
	require.NoError(t, err)
	require.True(t, plan.Degenerate())
	require.Empty(t, plan.Orders)
	require.Nil(t, plan.Proposed)
}

func TestPlanLexicalTieBreak(t *testing.T) {
	pf := mustPortfolio(t, "USDT", decimal.NewFromInt(1),
		map[string]decimal.Decimal{
			"USDT": decimal.NewFromInt(1000),
		},
		map[string]decimal.Decimal{
			"ADA": decimal.NewFromInt(2),
			"ARB": decimal.NewFromInt(4),
		},
		domain.Weights{
			"ADA":  decimal.NewFromInt(25),
			"ARB":  decimal.NewFromInt(25),
			"USDT": decimal.NewFromInt(50),
		})

	plan, err := New(5, domain.PriceModeMid).Plan(pf, domain.DefaultFees(), noBooks())
	require.NoError(t, err)
	require.Len(t, plan.Orders, 2)

	// equal deficits: the lexically smaller symbol goes first
	require.Equal(t, "ADA", plan.Orders[0].Asset)
	require.Equal(t, "ARB", plan.Orders[1].Asset)
	require.True(t, plan.Orders[0].Amount.Equal(decimal.NewFromInt(125)))
	require.True(t, plan.Orders[1].Amount.Equal(mustDec("62.5")))
}

func TestPlanDeterministic(t *testing.T) {
	build := func() *domain.Portfolio {
		return mustPortfolio(t, "USDT", decimal.NewFromInt(1),
			map[string]decimal.Decimal{
				"BTC":  mustDec("0.731"),
				"ETH":  mustDec("12.4"),
				"SOL":  mustDec("301.77"),
				"USDT": mustDec("1543.21"),
			},
			map[string]decimal.Decimal{
				"BTC": mustDec("64123.5"),
				"ETH": mustDec("3111.42"),
				"SOL": mustDec("144.09"),
			},
			domain.Weights{
				"BTC":  decimal.NewFromInt(40),
				"ETH":  decimal.NewFromInt(30),
				"SOL":  decimal.NewFromInt(20),
				"USDT": decimal.NewFromInt(10),
			})
	}

	first, err := New(10, domain.PriceModeMid).Plan(build(), domain.DefaultFees(), noBooks())
	require.NoError(t, err)
	second, err := New(10, domain.PriceModeMid).Plan(build(), domain.DefaultFees(), noBooks())
	require.NoError(t, err)

	require.Equal(t, len(first.Orders), len(second.Orders))
	for i := range first.Orders {
		require.Equal(t, first.Orders[i].Asset, second.Orders[i].Asset)
		require.Equal(t, first.Orders[i].Side, second.Orders[i].Side)
		require.True(t, first.Orders[i].Amount.Equal(second.Orders[i].Amount))
		require.True(t, first.Orders[i].Price.Equal(second.Orders[i].Price))
	}
	require.True(t, first.TotalFee.Equal(second.TotalFee))
}

func TestPlanConvergesOnOwnProposal(t *testing.T) {
	pf := mustPortfolio(t, "USDT", mustDec("0.0001"),
		map[string]decimal.Decimal{
			"BTC":  mustDec("0.731"),
			"ETH":  mustDec("12.4"),
			"SOL":  mustDec("301.77"),
			"USDT": mustDec("1543.21"),
		},
		map[string]decimal.Decimal{
			"BTC": mustDec("64123.5"),
			"ETH": mustDec("3111.42"),
			"SOL": mustDec("144.09"),
		},
		domain.Weights{
			"BTC":  decimal.NewFromInt(40),
			"ETH":  decimal.NewFromInt(30),
			"SOL":  decimal.NewFromInt(20),
			"USDT": decimal.NewFromInt(10),
		})

	zeroFees, err := domain.NewStaticFees(decimal.Zero, decimal.Zero)
	require.NoError(t, err)
	planner := New(20, domain.PriceModeMid)

	first, err := planner.Plan(pf, zeroFees, noBooks())
	require.NoError(t, err)
	require.False(t, first.Degenerate())
	require.True(t, first.Proposed.MaxError().LessThan(pf.MaxError()))

	// replanning on the proposal must never push the deviation back up
	second, err := planner.Plan(first.Proposed, zeroFees, noBooks())
	require.NoError(t, err)
	if !second.Degenerate() {
		require.True(t, second.Proposed.MaxError().LessThanOrEqual(first.Proposed.MaxError()))
	}
}

func TestPlanMissingBuyPrice(t *testing.T) {
	pf := mustPortfolio(t, "USDT", decimal.NewFromInt(1),
		map[string]decimal.Decimal{
			"USDT": decimal.NewFromInt(1000),
		},
		map[string]decimal.Decimal{},
		domain.Weights{
			"NEW":  decimal.NewFromInt(50),
			"USDT": decimal.NewFromInt(50),
		})

	_, err := New(5, domain.PriceModeMid).Plan(pf, domain.DefaultFees(), noBooks())
	require.Error(t, err)
	require.True(t, domain.IsPriceUnavailable(err))
}

func TestPlanFeeFloorsQuoteAtZero(t *testing.T) {
	pf := mustPortfolio(t, "USDT", decimal.NewFromInt(1),
		map[string]decimal.Decimal{
			"BTC":  decimal.NewFromInt(2),
			"ETH":  decimal.Zero,
			"USDT": decimal.Zero,
		},
		map[string]decimal.Decimal{
			"BTC": decimal.NewFromInt(1000),
			"ETH": decimal.NewFromInt(1000),
		},
		domain.Weights{
			"BTC": decimal.NewFromInt(50),
			"ETH": decimal.NewFromInt(50),
		})

	plan, err := New(5, domain.PriceModeMid).Plan(pf, domain.DefaultFees(), noBooks())
	require.NoError(t, err)
	require.Len(t, plan.Orders, 2)
	require.True(t, plan.TotalFee.Equal(decimal.NewFromInt(2)))

	// no quote balance to absorb fees: the proposed holding floors at zero
	require.True(t, plan.Proposed.Holding("USDT").IsZero())
	require.True(t, plan.Proposed.Holding("BTC").Equal(decimal.NewFromInt(1)))
	require.True(t, plan.Proposed.Holding("ETH").Equal(decimal.NewFromInt(1)))
}

func TestPlanDustPortfolio(t *testing.T) {
	pf := mustPortfolio(t, "USDT", decimal.NewFromInt(1),
		map[string]decimal.Decimal{
			"BTC":  mustDec("0.000000004"),
			"USDT": mustDec("0.000000006"),
		},
		map[string]decimal.Decimal{
			"BTC": decimal.NewFromInt(1),
		},
		domain.Weights{
			"BTC":  decimal.NewFromInt(50),
			"USDT": decimal.NewFromInt(50),
		})
	require.True(t, pf.NeedsBalancing())

	plan, err := New(5, domain.PriceModeMid).Plan(pf, domain.DefaultFees(), noBooks())
	require.NoError(t, err)
	require.True(t, plan.Degenerate(), "amounts below the venue scale must not produce orders")
}

func TestPlanZeroValuation(t *testing.T) {
	pf := mustPortfolio(t, "USDT", decimal.NewFromInt(1),
		map[string]decimal.Decimal{
			"BTC":  decimal.Zero,
			"USDT": decimal.Zero,
		},
		map[string]decimal.Decimal{
			"BTC": decimal.NewFromInt(10000),
		},
		domain.Weights{
			"BTC":  decimal.NewFromInt(50),
			"USDT": decimal.NewFromInt(50),
		})

	plan, err := New(5, domain.PriceModeMid).Plan(pf, domain.DefaultFees(), noBooks())
	require.NoError(t, err)
	require.True(t, plan.Degenerate())
}

func TestPlanPriceModes(t *testing.T) {
	books := map[string]domain.BookTicker{
		"BTC": {Asset: "BTC", Bid: decimal.NewFromInt(9990), Ask: decimal.NewFromInt(10010)},
	}
	fees, err := domain.NewStaticFees(mustDec("0.0005"), mustDec("0.001"))
	require.NoError(t, err)

	build := func() *domain.Portfolio {
		return mustPortfolio(t, "USDT", decimal.NewFromInt(1),
			map[string]decimal.Decimal{
				"BTC":  decimal.NewFromInt(1),
				"USDT": decimal.NewFromInt(9000),
			},
			map[string]decimal.Decimal{
				"BTC": decimal.NewFromInt(10000),
			},
			domain.Weights{
				"BTC":  decimal.NewFromInt(50),
				"USDT": decimal.NewFromInt(50),
			})
	}

	tests := []struct {
		name      string
		mode      domain.PriceMode
		wantPrice decimal.Decimal
	}{
		{name: "mid", mode: domain.PriceModeMid, wantPrice: decimal.NewFromInt(10000)},
		{name: "passive_sell_sits_on_ask", mode: domain.PriceModePassive, wantPrice: decimal.NewFromInt(10010)},
		{name: "cheap_prefers_maker", mode: domain.PriceModeCheap, wantPrice: decimal.NewFromInt(10010)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			plan, err := New(1, tt.mode).Plan(build(), fees, books)
			require.NoError(t, err)
			require.Len(t, plan.Orders, 1)
			require.True(t, plan.Orders[0].Price.Equal(tt.wantPrice),
				"expected limit %s, got %s", tt.wantPrice.String(), plan.Orders[0].Price.String())
		})
	}
}
