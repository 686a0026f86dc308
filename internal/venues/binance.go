package venues

import (
	"context"

	"github.com/adshao/go-binance/v2"
	"github.com/adshao/go-binance/v2/common"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/quantfell/parita/internal/domain"
)

// Binance spot error codes.
const (
	binanceInsufficientBalance = -2010
	binanceFilterFailure       = -1013
	binanceBadPrecision        = -1111
	binanceInvalidSymbol       = -1121
	binanceUnknownOrder        = -2011
	binanceOrderNotFound       = -2013
)

// Binance adapts the Binance spot API. Orders are placed as GTC limit
// orders at the price the plan carries, tagged with the order ID so fills
// can be correlated with the journal.
type Binance struct {
	client *binance.Client
	quote  string
	fees   domain.FeeSchedule
}

func NewBinance(client *binance.Client, quote string, fees domain.FeeSchedule) *Binance {
	if fees == nil {
		fees = domain.DefaultFees()
	}

	return &Binance{client: client, quote: quote, fees: fees}
}

func (b *Binance) Name() string {
	return "binance"
}

func (b *Binance) Balances(ctx context.Context) (map[string]decimal.Decimal, error) {
	account, err := b.client.NewGetAccountService().Do(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "get binance account")
	}

	balances := make(map[string]decimal.Decimal, len(account.Balances))
	for _, bal := range account.Balances {
		free, err := decimal.NewFromString(bal.Free)
		if err != nil {
			return nil, errors.Wrapf(err, "parse binance %s balance", bal.Asset)
		}
		balances[bal.Asset] = free
	}

	return balances, nil
}

func (b *Binance) Prices(ctx context.Context, assets []string) (map[string]decimal.Decimal, error) {
	prices := make(map[string]decimal.Decimal, len(assets))
	for _, asset := range assets {
		listed, err := b.client.NewListPricesService().Symbol(symbol(asset, b.quote)).Do(ctx)
		if err != nil {
			if apiErr, ok := err.(*common.APIError); ok && apiErr.Code == binanceInvalidSymbol {
				return nil, &domain.PriceUnavailableError{Asset: asset}
			}
			return nil, errors.Wrapf(err, "get binance price for %s", asset)
		}
		if len(listed) == 0 {
			return nil, &domain.PriceUnavailableError{Asset: asset}
		}

		price, err := decimal.NewFromString(listed[0].Price)
		if err != nil {
			return nil, errors.Wrapf(err, "parse binance price for %s", asset)
		}
		if !price.IsPositive() {
			return nil, &domain.PriceUnavailableError{Asset: asset}
		}
		prices[asset] = price
	}

	return prices, nil
}

// Books fetches best bid/ask per asset. Assets without a book are left
// out, the planner falls back to valuation prices for them.
func (b *Binance) Books(ctx context.Context, assets []string) (map[string]domain.BookTicker, error) {
	books := make(map[string]domain.BookTicker, len(assets))
	for _, asset := range assets {
		tickers, err := b.client.NewListBookTickersService().Symbol(symbol(asset, b.quote)).Do(ctx)
		if err != nil {
			return nil, errors.Wrapf(err, "get binance book ticker for %s", asset)
		}
		if len(tickers) == 0 {
			continue
		}

		bid, err := decimal.NewFromString(tickers[0].BidPrice)
		if err != nil {
			return nil, errors.Wrapf(err, "parse binance bid for %s", asset)
		}
		ask, err := decimal.NewFromString(tickers[0].AskPrice)
		if err != nil {
			return nil, errors.Wrapf(err, "parse binance ask for %s", asset)
		}
		books[asset] = domain.BookTicker{Asset: asset, Bid: bid, Ask: ask}
	}

	return books, nil
}

func (b *Binance) Fees(ctx context.Context) (domain.FeeSchedule, error) {
	return b.fees, nil
}

func (b *Binance) SubmitOrder(ctx context.Context, order domain.Order) error {
	qty, err := wireQty(order.Amount)
	if err != nil {
		return err
	}

	_, err = b.client.NewCreateOrderService().Symbol(symbol(order.Asset, b.quote)).
		Side(binanceSide(order.Side)).
		Type(binance.OrderTypeLimit).
		TimeInForce(binance.TimeInForceTypeGTC).
		Quantity(qty.String()).
		Price(order.Price.Round(8).String()).
		NewClientOrderID(order.ID).
		Do(ctx)
	if err != nil {
		return classifyBinanceErr(err)
	}

	return nil
}

// CancelOpenOrders cancels every resting order on the given assets'
// markets and returns the client order IDs it removed.
func (b *Binance) CancelOpenOrders(ctx context.Context, assets []string) ([]string, error) {
	var cancelled []string
	for _, asset := range assets {
		open, err := b.client.NewListOpenOrdersService().Symbol(symbol(asset, b.quote)).Do(ctx)
		if err != nil {
			return cancelled, errors.Wrapf(err, "list binance open orders for %s", asset)
		}

		for _, order := range open {
			if order == nil {
				continue
			}
			_, err := b.client.NewCancelOrderService().
				Symbol(symbol(asset, b.quote)).
				OrigClientOrderID(order.ClientOrderID).
				Do(ctx)
			if err != nil {
				if apiErr, ok := err.(*common.APIError); ok &&
					(apiErr.Code == binanceUnknownOrder || apiErr.Code == binanceOrderNotFound) {
					// already filled or gone
					continue
				}
				return cancelled, errors.Wrapf(err, "cancel binance order %s", order.ClientOrderID)
			}
			cancelled = append(cancelled, order.ClientOrderID)
		}
	}

	return cancelled, nil
}

func binanceSide(side domain.Side) binance.SideType {
	if side == domain.SideBuy {
		return binance.SideTypeBuy
	}

	return binance.SideTypeSell
}

// classifyBinanceErr sorts venue declines (insufficient balance, filter
// violations, bad precision or symbol) from transient failures. Declines
// are terminal and never retried.
func classifyBinanceErr(err error) error {
	if apiErr, ok := err.(*common.APIError); ok {
		switch apiErr.Code {
		case binanceInsufficientBalance, binanceFilterFailure, binanceBadPrecision, binanceInvalidSymbol:
			return &domain.RejectedError{Code: int(apiErr.Code), Reason: apiErr.Message}
		}
	}

	return &domain.SubmitError{Err: err}
}
