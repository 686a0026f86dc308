package venues

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/quantfell/parita/internal/domain"
)

// Paper is an in-memory venue for rehearsals. Every order fills instantly
// at its limit price against a wallet map seeded from config; nothing ever
// rests, so there is nothing to cancel. With a state path the wallet
// survives restarts, which keeps interval-mode paper runs honest about
// their own past fills.
type Paper struct {
	mu        sync.RWMutex
	quote     string
	wallet    map[string]decimal.Decimal
	prices    map[string]decimal.Decimal
	fees      domain.FeeSchedule
	submitted []domain.Order
	logger    *zap.Logger
	statePath string
}

func NewPaper(quote string, seed, prices map[string]decimal.Decimal, fees domain.FeeSchedule, statePath string, logger *zap.Logger) (*Paper, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if fees == nil {
		fees = domain.DefaultFees()
	}

	wallet := make(map[string]decimal.Decimal, len(seed)+1)
	for asset, amount := range seed {
		if amount.IsNegative() {
			return nil, fmt.Errorf("seed balance for %s must be non-negative, got %s", asset, amount.String())
		}
		wallet[asset] = amount
	}
	if _, ok := wallet[quote]; !ok {
		wallet[quote] = decimal.Zero
	}

	quotes := make(map[string]decimal.Decimal, len(prices))
	for asset, price := range prices {
		if !price.IsPositive() {
			return nil, fmt.Errorf("price for %s must be positive, got %s", asset, price.String())
		}
		quotes[asset] = price
	}

	p := &Paper{
		quote:     quote,
		wallet:    wallet,
		prices:    quotes,
		fees:      fees,
		logger:    logger,
		statePath: statePath,
	}
	if err := p.restore(); err != nil {
		logger.Warn("failed to restore paper wallet", zap.Error(err))
	}

	return p, nil
}

func (p *Paper) Name() string {
	return "paper"
}

func (p *Paper) Balances(ctx context.Context) (map[string]decimal.Decimal, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	balances := make(map[string]decimal.Decimal, len(p.wallet))
	for asset, amount := range p.wallet {
		balances[asset] = amount
	}

	return balances, nil
}

func (p *Paper) Prices(ctx context.Context, assets []string) (map[string]decimal.Decimal, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	prices := make(map[string]decimal.Decimal, len(assets))
	for _, asset := range assets {
		price, ok := p.prices[asset]
		if !ok {
			return nil, &domain.PriceUnavailableError{Asset: asset}
		}
		prices[asset] = price
	}

	return prices, nil
}

func (p *Paper) Books(ctx context.Context, assets []string) (map[string]domain.BookTicker, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	books := make(map[string]domain.BookTicker, len(assets))
	for _, asset := range assets {
		if price, ok := p.prices[asset]; ok {
			books[asset] = domain.FlatBook(asset, price)
		}
	}

	return books, nil
}

func (p *Paper) Fees(ctx context.Context) (domain.FeeSchedule, error) {
	return p.fees, nil
}

func (p *Paper) SubmitOrder(ctx context.Context, order domain.Order) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	notional := order.Amount.Mul(order.Price)
	switch order.Side {
	case domain.SideBuy:
		if p.wallet[p.quote].LessThan(notional) {
			return &domain.RejectedError{Reason: fmt.Sprintf("insufficient %s balance: have %s need %s",
				p.quote, p.wallet[p.quote].String(), notional.String())}
		}
		p.wallet[p.quote] = p.wallet[p.quote].Sub(notional)
		p.wallet[order.Asset] = p.wallet[order.Asset].Add(order.Amount)
	case domain.SideSell:
		if p.wallet[order.Asset].LessThan(order.Amount) {
			return &domain.RejectedError{Reason: fmt.Sprintf("insufficient %s balance: have %s need %s",
				order.Asset, p.wallet[order.Asset].String(), order.Amount.String())}
		}
		p.wallet[order.Asset] = p.wallet[order.Asset].Sub(order.Amount)
		p.wallet[p.quote] = p.wallet[p.quote].Add(notional)
	default:
		return fmt.Errorf("unknown order side: %s", order.Side)
	}

	p.submitted = append(p.submitted, order)
	p.persist()
	p.logger.Info("paper fill",
		zap.String("id", order.ID),
		zap.String("asset", order.Asset),
		zap.String("side", order.Side.String()),
		zap.String("amount", order.Amount.String()),
		zap.String("price", order.Price.String()))

	return nil
}

func (p *Paper) CancelOpenOrders(ctx context.Context, assets []string) ([]string, error) {
	return nil, nil
}

// SetPrice moves a quoted price, for rehearsing drift between rounds.
func (p *Paper) SetPrice(asset string, price decimal.Decimal) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.prices[asset] = price
}

// Submitted returns the orders filled so far, oldest first.
func (p *Paper) Submitted() []domain.Order {
	p.mu.RLock()
	defer p.mu.RUnlock()

	orders := make([]domain.Order, len(p.submitted))
	copy(orders, p.submitted)

	return orders
}

type paperState struct {
	Wallet map[string]string `json:"wallet"`
}

func (p *Paper) restore() error {
	if p.statePath == "" {
		return nil
	}

	payload, err := os.ReadFile(p.statePath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return errors.Wrap(err, "read paper state")
	}
	if len(payload) == 0 {
		return nil
	}

	var state paperState
	if err := json.Unmarshal(payload, &state); err != nil {
		return errors.Wrap(err, "decode paper state")
	}

	for asset, raw := range state.Wallet {
		amount, err := decimal.NewFromString(raw)
		if err != nil {
			return errors.Wrapf(err, "decode %s balance", asset)
		}
		p.wallet[asset] = amount
	}

	return nil
}

// persist writes the wallet atomically via temp file + rename. Callers
// hold the lock.
func (p *Paper) persist() {
	if p.statePath == "" {
		return
	}

	state := paperState{Wallet: make(map[string]string, len(p.wallet))}
	for asset, amount := range p.wallet {
		state.Wallet[asset] = amount.String()
	}

	payload, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		p.logger.Warn("failed to encode paper state", zap.Error(err))
		return
	}

	if err := os.MkdirAll(filepath.Dir(p.statePath), 0o755); err != nil {
		p.logger.Warn("failed to create paper state dir", zap.Error(err))
		return
	}
	tmp := p.statePath + ".tmp"
	if err := os.WriteFile(tmp, payload, 0o644); err != nil {
		p.logger.Warn("failed to write paper state", zap.Error(err))
		return
	}
	if err := os.Rename(tmp, p.statePath); err != nil {
		p.logger.Warn("failed to persist paper state", zap.Error(err))
	}
}
