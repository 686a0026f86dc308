package venues

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	hyperliquid "github.com/sonirico/go-hyperliquid"

	"github.com/quantfell/parita/internal/domain"
)

// hyperliquidSlippage caps how far the marketable IOC limit may cross the
// book, 0.5%.
const hyperliquidSlippage = 0.005

// Hyperliquid adapts the Hyperliquid spot API. Orders are placed as IOC
// limit orders at a slippage-guarded price and verified by cloid right
// after placement; an unfilled IOC surfaces as a transient submit failure
// so the supervisor can retry at a fresh price.
type Hyperliquid struct {
	ex          *hyperliquid.Exchange
	info        *hyperliquid.Info
	accountAddr string
	quote       string
	fees        domain.FeeSchedule
}

func NewHyperliquid(ex *hyperliquid.Exchange, accountAddr, quote string, fees domain.FeeSchedule) (*Hyperliquid, error) {
	if ex == nil {
		return nil, errors.New("hyperliquid exchange is nil")
	}
	if fees == nil {
		fees = domain.DefaultFees()
	}

	return &Hyperliquid{
		ex:          ex,
		info:        ex.Info(),
		accountAddr: accountAddr,
		quote:       quote,
		fees:        fees,
	}, nil
}

func (h *Hyperliquid) Name() string {
	return "hyperliquid"
}

func (h *Hyperliquid) Balances(ctx context.Context) (map[string]decimal.Decimal, error) {
	st, err := h.info.SpotUserState(ctx, h.accountAddr)
	if err != nil {
		return nil, errors.Wrap(err, "get spot user state")
	}

	balances := make(map[string]decimal.Decimal, len(st.Balances))
	for _, bal := range st.Balances {
		total, err := decimal.NewFromString(bal.Total)
		if err != nil {
			return nil, errors.Wrapf(err, "parse hyperliquid %s balance", bal.Coin)
		}
		balances[bal.Coin] = total
	}

	return balances, nil
}

func (h *Hyperliquid) Prices(ctx context.Context, assets []string) (map[string]decimal.Decimal, error) {
	mids, err := h.info.AllMids(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "get all mids")
	}

	prices := make(map[string]decimal.Decimal, len(assets))
	for _, asset := range assets {
		mid, ok := mids[asset]
		if !ok || mid == "" {
			return nil, &domain.PriceUnavailableError{Asset: asset}
		}
		price, err := decimal.NewFromString(mid)
		if err != nil {
			return nil, errors.Wrapf(err, "parse hyperliquid mid for %s", asset)
		}
		prices[asset] = price
	}

	return prices, nil
}

// Books synthesizes flat books from mids, the public info API exposes no
// best bid/ask.
func (h *Hyperliquid) Books(ctx context.Context, assets []string) (map[string]domain.BookTicker, error) {
	mids, err := h.info.AllMids(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "get all mids")
	}

	books := make(map[string]domain.BookTicker, len(assets))
	for _, asset := range assets {
		mid, ok := mids[asset]
		if !ok || mid == "" {
			continue
		}
		price, err := decimal.NewFromString(mid)
		if err != nil || !price.IsPositive() {
			continue
		}
		books[asset] = domain.FlatBook(asset, price)
	}

	return books, nil
}

func (h *Hyperliquid) Fees(ctx context.Context) (domain.FeeSchedule, error) {
	return h.fees, nil
}

func (h *Hyperliquid) SubmitOrder(ctx context.Context, order domain.Order) error {
	size, _ := order.Amount.Round(8).Float64()
	isBuy := order.Side == domain.SideBuy

	px, err := h.ex.SlippagePrice(ctx, order.Asset, isBuy, hyperliquidSlippage, nil)
	if err != nil {
		return &domain.SubmitError{Err: errors.Wrap(err, "slippage price")}
	}

	cloid := cloidFromID(order.ID)
	req := hyperliquid.CreateOrderRequest{
		Coin:          order.Asset,
		IsBuy:         isBuy,
		Price:         px,
		Size:          size,
		ClientOrderID: &cloid,
		OrderType: hyperliquid.OrderType{
			Limit: &hyperliquid.LimitOrderType{Tif: hyperliquid.TifIoc},
		},
	}
	if _, err := h.ex.Order(ctx, req, nil); err != nil {
		return &domain.SubmitError{Err: errors.Wrap(err, "place order")}
	}

	filled, err := h.orderFilled(ctx, cloid)
	if err != nil {
		return &domain.SubmitError{Err: err}
	}
	if !filled {
		return &domain.SubmitError{Err: fmt.Errorf("ioc order %s did not fill", order.ID)}
	}

	return nil
}

func (h *Hyperliquid) orderFilled(ctx context.Context, cloid string) (bool, error) {
	res, err := h.info.QueryOrderByCloid(ctx, h.accountAddr, cloid)
	if err != nil {
		return false, errors.Wrap(err, "query order by cloid")
	}
	if res == nil || res.Status != hyperliquid.OrderQueryStatusSuccess {
		return false, nil
	}

	return res.Order.Status == hyperliquid.OrderStatusValueFilled, nil
}

// CancelOpenOrders sweeps resting orders on the given coins and returns
// the venue order IDs it cancelled.
func (h *Hyperliquid) CancelOpenOrders(ctx context.Context, assets []string) ([]string, error) {
	open, err := h.info.FrontendOpenOrders(ctx, h.accountAddr)
	if err != nil {
		return nil, errors.Wrap(err, "list open orders")
	}

	var cancels []hyperliquid.CancelOrderRequest
	var cancelled []string
	for _, o := range open {
		if !assetListed(o.Coin, assets) {
			continue
		}
		cancels = append(cancels, hyperliquid.CancelOrderRequest{Coin: o.Coin, OrderID: o.Oid})
		cancelled = append(cancelled, fmt.Sprintf("%d", o.Oid))
	}
	if len(cancels) == 0 {
		return nil, nil
	}

	if _, err := h.ex.BulkCancel(ctx, cancels); err != nil {
		return nil, errors.Wrap(err, "cancel open orders")
	}

	return cancelled, nil
}

func assetListed(coin string, assets []string) bool {
	for _, asset := range assets {
		if strings.EqualFold(coin, asset) {
			return true
		}
	}

	return false
}

// cloidFromID converts an order ID into a valid Hyperliquid cloid
// (0x + 32 hex chars). Deterministic so the same order maps to the same
// cloid across attempts.
func cloidFromID(id string) string {
	sum := sha256.Sum256([]byte(id))
	return "0x" + hex.EncodeToString(sum[:16])
}
