package venues

import (
	"context"

	"github.com/hirokisan/bybit/v2"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/quantfell/parita/internal/domain"
)

// Bybit adapts the Bybit V5 spot API. Orders go out as market orders:
// sells sized in the base asset, buys sized in quote because that is how
// Bybit interprets market buy quantities.
type Bybit struct {
	client *bybit.Client
	quote  string
	fees   domain.FeeSchedule
}

func NewBybit(client *bybit.Client, quote string, fees domain.FeeSchedule) *Bybit {
	if fees == nil {
		fees = domain.DefaultFees()
	}

	return &Bybit{client: client, quote: quote, fees: fees}
}

func (b *Bybit) Name() string {
	return "bybit"
}

func (b *Bybit) Balances(ctx context.Context) (map[string]decimal.Decimal, error) {
	res, err := b.client.V5().Account().GetWalletBalance(bybit.AccountTypeV5("UNIFIED"), nil)
	if err != nil {
		return nil, errors.Wrap(err, "get bybit wallet balance")
	}

	balances := make(map[string]decimal.Decimal)
	if len(res.Result.List) == 0 {
		return balances, nil
	}
	for _, coin := range res.Result.List[0].Coin {
		bal, err := decimal.NewFromString(coin.WalletBalance)
		if err != nil {
			return nil, errors.Wrapf(err, "parse bybit %s balance", coin.Coin)
		}
		balances[string(coin.Coin)] = bal
	}

	return balances, nil
}

func (b *Bybit) Prices(ctx context.Context, assets []string) (map[string]decimal.Decimal, error) {
	prices := make(map[string]decimal.Decimal, len(assets))
	for _, asset := range assets {
		ticker, err := b.ticker(asset)
		if err != nil {
			return nil, err
		}

		last, err := decimal.NewFromString(ticker.LastPrice)
		if err != nil {
			return nil, errors.Wrapf(err, "parse bybit price for %s", asset)
		}
		if !last.IsPositive() {
			return nil, &domain.PriceUnavailableError{Asset: asset}
		}
		prices[asset] = last
	}

	return prices, nil
}

// Books builds bid/ask from the spot ticker. When a side is missing the
// last price stands in for it.
func (b *Bybit) Books(ctx context.Context, assets []string) (map[string]domain.BookTicker, error) {
	books := make(map[string]domain.BookTicker, len(assets))
	for _, asset := range assets {
		ticker, err := b.ticker(asset)
		if err != nil {
			return nil, err
		}

		last, _ := decimal.NewFromString(ticker.LastPrice)
		bid, _ := decimal.NewFromString(ticker.Bid1Price)
		ask, _ := decimal.NewFromString(ticker.Ask1Price)
		if !bid.IsPositive() {
			bid = last
		}
		if !ask.IsPositive() {
			ask = last
		}
		if !bid.IsPositive() && !ask.IsPositive() {
			continue
		}
		books[asset] = domain.BookTicker{Asset: asset, Bid: bid, Ask: ask}
	}

	return books, nil
}

func (b *Bybit) ticker(asset string) (*bybit.V5GetTickersSpotItem, error) {
	sym := bybit.SymbolV5(symbol(asset, b.quote))
	res, err := b.client.V5().Market().GetTickers(bybit.V5GetTickersParam{
		Category: "spot",
		Symbol:   &sym,
	})
	if err != nil {
		return nil, errors.Wrapf(err, "get bybit ticker for %s", asset)
	}
	if len(res.Result.Spot.List) == 0 {
		return nil, &domain.PriceUnavailableError{Asset: asset}
	}

	return &res.Result.Spot.List[0], nil
}

func (b *Bybit) Fees(ctx context.Context) (domain.FeeSchedule, error) {
	return b.fees, nil
}

func (b *Bybit) SubmitOrder(ctx context.Context, order domain.Order) error {
	qty, err := wireQty(order.Amount)
	if err != nil {
		return err
	}
	// Market buys are quoted in the quote currency on bybit spot.
	if order.Side == domain.SideBuy {
		qty = qty.Mul(order.Price).RoundFloor(2)
		if !qty.IsPositive() {
			return &domain.RejectedError{Reason: "buy notional rounds to zero"}
		}
	}

	_, err = b.client.V5().Order().CreateOrder(bybit.V5CreateOrderParam{
		Category:   "spot",
		Symbol:     bybit.SymbolV5(symbol(order.Asset, b.quote)),
		Side:       bybitSide(order.Side),
		OrderType:  bybit.OrderTypeMarket,
		Qty:        qty.String(),
		IsLeverage: nil,
	})
	if err != nil {
		return &domain.SubmitError{Err: err}
	}

	return nil
}

// CancelOpenOrders issues a cancel-all per market and reports the symbols
// it swept.
func (b *Bybit) CancelOpenOrders(ctx context.Context, assets []string) ([]string, error) {
	var cancelled []string
	for _, asset := range assets {
		sym := bybit.SymbolV5(symbol(asset, b.quote))
		_, err := b.client.V5().Order().CancelAllOrders(bybit.V5CancelAllOrdersParam{
			Category: "spot",
			Symbol:   &sym,
		})
		if err != nil {
			return cancelled, errors.Wrapf(err, "cancel bybit orders for %s", asset)
		}
		cancelled = append(cancelled, string(sym))
	}

	return cancelled, nil
}

func bybitSide(side domain.Side) bybit.Side {
	if side == domain.SideBuy {
		return bybit.SideBuy
	}

	return bybit.SideSell
}
