// Command parita keeps multi-asset venue portfolios at their target
// weights. Each round values the holdings, plans a bounded set of limit
// orders that walks the worst deviations back inside the threshold, and
// either reports the plan (dry run) or supervises its submission.
//
// Usage:
//
//	parita --config portfolios.yaml            dry run every portfolio
//	parita --config portfolios.yaml --trade    submit orders
//	parita setup                               interactive config wizard
//
// Required environment variables:
//
//	For Binance: BINANCE_API_KEY, BINANCE_API_SECRET
//	For Bybit: BYBIT_API_KEY, BYBIT_API_SECRET
//	For Hyperliquid: HYPERLIQUID_PRIVATE_KEY (HYPERLIQUID_API_URL optional)
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/quantfell/parita/config"
	"github.com/quantfell/parita/internal/clients"
	"github.com/quantfell/parita/internal/domain"
	"github.com/quantfell/parita/internal/journal"
	"github.com/quantfell/parita/internal/report"
	"github.com/quantfell/parita/internal/services/balancer"
	"github.com/quantfell/parita/internal/services/executor"
	"github.com/quantfell/parita/internal/services/valuation"
	"github.com/quantfell/parita/internal/setup"
	"github.com/quantfell/parita/internal/venues"
)

const (
	journalRoot    = "./wal/journal"
	paperStateRoot = "./wal/paper"
)

// venue is the full surface the engine consumes from an adapter.
type venue interface {
	Name() string
	Balances(ctx context.Context) (map[string]decimal.Decimal, error)
	Prices(ctx context.Context, assets []string) (map[string]decimal.Decimal, error)
	Books(ctx context.Context, assets []string) (map[string]domain.BookTicker, error)
	Fees(ctx context.Context) (domain.FeeSchedule, error)
	SubmitOrder(ctx context.Context, order domain.Order) error
	CancelOpenOrders(ctx context.Context, assets []string) ([]string, error)
}

func main() {
	if len(os.Args) > 1 && os.Args[1] == "setup" {
		if err := setup.RunTUI(); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		return
	}

	logger, _ := zap.NewProduction()
	defer logger.Sync()

	portfolios, flags, err := config.Get()
	if err != nil {
		logger.Fatal("failed to get configuration", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g := new(errgroup.Group)
	for _, pf := range portfolios {
		g.Go(func() error {
			return run(ctx, pf, flags, logger.With(zap.String("portfolio", pf.Name)))
		})
		logger.Info("started", zap.String("portfolio", pf.Name), zap.String("platform", pf.Platform))
	}

	if err := g.Wait(); err != nil {
		logger.Fatal("rebalancing failed", zap.Error(err))
	}
}

// run drives one portfolio: a single round when no interval is
// configured, otherwise a ticker loop until the context is cancelled.
// In interval mode a failed round is logged and the loop keeps going.
func run(ctx context.Context, pf config.Portfolio, flags config.Flags, logger *zap.Logger) error {
	vn, err := buildVenue(pf, logger)
	if err != nil {
		return err
	}

	valuer, err := valuation.New(vn, pf.Quote, pf.Threshold, pf.Targets)
	if err != nil {
		return err
	}

	planner := balancer.New(pf.MaxOrders, pf.Mode)

	opts := executor.Options{
		Trade:      flags.Trade,
		Force:      flags.Force,
		CancelOpen: flags.Cancel,
	}

	var exec *executor.Executor
	if flags.Trade {
		jrnl, err := journal.Open(filepath.Join(journalRoot, pf.Name))
		if err != nil {
			return err
		}
		exec = executor.New(pf.Name, pf.Quote, pf.Targets, vn, valuer, planner, jrnl, logger, opts)
	} else {
		// dry runs leave no journal trail
		exec = executor.New(pf.Name, pf.Quote, pf.Targets, vn, valuer, planner, nil, logger, opts)
	}

	if pf.Interval <= 0 {
		return round(ctx, exec, logger)
	}

	if err := round(ctx, exec, logger); err != nil {
		logger.Error("round failed", zap.Error(err))
	}

	logger.Info("watching", zap.Duration("interval", pf.Interval))
	ticker := time.NewTicker(pf.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := round(ctx, exec, logger); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				logger.Error("round failed", zap.Error(err))
			}
		}
	}
}

func round(ctx context.Context, exec *executor.Executor, logger *zap.Logger) error {
	result, err := exec.Run(ctx)
	if result != nil {
		fmt.Println(report.Render(result))
	}
	if err != nil {
		return err
	}

	if !result.Success() {
		logger.Warn("round finished with failed orders", zap.Int("failed", len(result.Failures)))
	}

	return nil
}

func buildVenue(pf config.Portfolio, logger *zap.Logger) (venue, error) {
	switch pf.Platform {
	case "binance":
		client, err := clients.NewBinanceClient(os.Getenv("BINANCE_API_KEY"), os.Getenv("BINANCE_API_SECRET"))
		if err != nil {
			return nil, err
		}
		return venues.NewBinance(client, pf.Quote, pf.Fees), nil
	case "bybit":
		client, err := clients.NewBybitClient(os.Getenv("BYBIT_API_KEY"), os.Getenv("BYBIT_API_SECRET"))
		if err != nil {
			return nil, err
		}
		return venues.NewBybit(client, pf.Quote, pf.Fees), nil
	case "hyperliquid":
		ex, accountAddr, err := clients.NewHyperliquidClient(os.Getenv("HYPERLIQUID_PRIVATE_KEY"), os.Getenv("HYPERLIQUID_API_URL"))
		if err != nil {
			return nil, err
		}
		return venues.NewHyperliquid(ex, accountAddr, pf.Quote, pf.Fees)
	case "paper":
		statePath := filepath.Join(paperStateRoot, pf.Name+".json")
		return venues.NewPaper(pf.Quote, pf.PaperBalances, pf.PaperPrices, pf.Fees, statePath, logger)
	default:
		return nil, &domain.ConfigError{Reason: fmt.Sprintf("unsupported platform %q", pf.Platform)}
	}
}
