// Package config loads portfolio definitions from yaml and run controls
// from flags. All validation happens here, before any venue is contacted.
package config

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/quantfell/parita/internal/domain"
)

const (
	// DefaultConfigPath is where Get looks when --config is not given.
	DefaultConfigPath = "portfolios.yaml"

	defaultQuote     = "USDT"
	defaultThreshold = "1"
	defaultMaxOrders = 5
)

// Portfolio is one validated rebalancing mandate bound to a venue.
type Portfolio struct {
	Name      string
	Platform  string
	Quote     string
	Targets   domain.Weights
	Threshold decimal.Decimal
	// Interval between rounds; zero means a single round.
	Interval  time.Duration
	MaxOrders int
	Mode      domain.PriceMode
	// Fees nil lets the venue adapter fall back to its default schedule.
	Fees domain.FeeSchedule
	// PaperBalances and PaperPrices seed the paper venue.
	PaperBalances map[string]decimal.Decimal
	PaperPrices   map[string]decimal.Decimal
}

// PortfolioTmp mirrors the yaml layout before parsing and validation.
type PortfolioTmp struct {
	Name          string            `yaml:"name"`
	Platform      string            `yaml:"platform"`
	ValueBase     string            `yaml:"valuebase,omitempty"`
	Targets       map[string]string `yaml:"targets"`
	Threshold     string            `yaml:"threshold,omitempty"`
	Interval      time.Duration     `yaml:"interval,omitempty"`
	MaxOrders     int               `yaml:"max_orders,omitempty"`
	Mode          string            `yaml:"mode,omitempty"`
	MakerFee      string            `yaml:"maker_fee,omitempty"`
	TakerFee      string            `yaml:"taker_fee,omitempty"`
	PaperBalances map[string]string `yaml:"paper_balances,omitempty"`
	PaperPrices   map[string]string `yaml:"paper_prices,omitempty"`
}

// Flags are the run controls shared by every portfolio in the process.
type Flags struct {
	ConfigPath string
	Trade      bool
	Force      bool
	Cancel     bool
	MaxOrders  int
	Mode       domain.PriceMode
	Portfolio  string
	Interval   time.Duration
}

// Get parses flags, loads .env, and returns the selected portfolios.
func Get() ([]Portfolio, Flags, error) {
	configPath := flag.String("config", DefaultConfigPath, "path to yaml config")
	trade := flag.Bool("trade", false, "submit orders to the venue, off means dry run")
	force := flag.Bool("force", false, "plan even when within threshold")
	cancel := flag.Bool("cancel", false, "cancel resting orders on traded markets before valuation")
	maxOrders := flag.Int("max-orders", defaultMaxOrders, "order budget per rebalancing round")
	mode := flag.String("mode", string(domain.PriceModeMid), "limit price mode: mid, passive or cheap")
	portfolio := flag.String("portfolio", "", "run only the named portfolio")
	interval := flag.Duration("interval", 0, "rebalance every interval, overrides per-portfolio settings")
	flag.Parse()

	// .env is optional, real environments may export keys directly
	_ = godotenv.Load()

	priceMode, err := domain.ParsePriceMode(*mode)
	if err != nil {
		return nil, Flags{}, err
	}
	if *maxOrders <= 0 {
		return nil, Flags{}, &domain.ConfigError{Reason: fmt.Sprintf("--max-orders must be positive, got %d", *maxOrders)}
	}

	flags := Flags{
		ConfigPath: *configPath,
		Trade:      *trade,
		Force:      *force,
		Cancel:     *cancel,
		MaxOrders:  *maxOrders,
		Mode:       priceMode,
		Portfolio:  *portfolio,
		Interval:   *interval,
	}

	portfolios, err := Load(flags.ConfigPath, flags)
	if err != nil {
		return nil, Flags{}, err
	}

	if flags.Portfolio != "" {
		portfolios = filterByName(portfolios, flags.Portfolio)
		if len(portfolios) == 0 {
			return nil, Flags{}, &domain.ConfigError{Reason: fmt.Sprintf("no portfolio named %q in %s", flags.Portfolio, flags.ConfigPath)}
		}
	}

	return portfolios, flags, nil
}

// Load reads and validates the yaml portfolio list at path. Flag values
// stand in for fields the yaml leaves unset; the --interval flag wins over
// per-portfolio intervals when given.
func Load(path string, flags Flags) ([]Portfolio, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	var tmp []PortfolioTmp
	if err := yaml.Unmarshal(raw, &tmp); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if len(tmp) == 0 {
		return nil, &domain.ConfigError{Reason: fmt.Sprintf("no portfolios defined in %s", path)}
	}

	seen := make(map[string]bool, len(tmp))
	portfolios := make([]Portfolio, 0, len(tmp))
	for i, t := range tmp {
		p, err := parsePortfolio(i, t, flags)
		if err != nil {
			return nil, err
		}
		if seen[p.Name] {
			return nil, &domain.ConfigError{Reason: fmt.Sprintf("duplicate portfolio name %q", p.Name)}
		}
		seen[p.Name] = true
		portfolios = append(portfolios, p)
	}

	return portfolios, nil
}

func parsePortfolio(idx int, tmp PortfolioTmp, flags Flags) (Portfolio, error) {
	name := tmp.Name
	if name == "" {
		name = fmt.Sprintf("portfolio-%d", idx+1)
	}

	switch tmp.Platform {
	case "binance", "bybit", "hyperliquid", "paper":
	default:
		return Portfolio{}, &domain.ConfigError{Reason: fmt.Sprintf("portfolio %s: unsupported platform %q", name, tmp.Platform)}
	}

	quote := tmp.ValueBase
	if quote == "" {
		quote = defaultQuote
	}

	targets, err := domain.ParseWeights(tmp.Targets)
	if err != nil {
		return Portfolio{}, fmt.Errorf("portfolio %s: %w", name, err)
	}

	thresholdStr := tmp.Threshold
	if thresholdStr == "" {
		thresholdStr = defaultThreshold
	}
	threshold, err := decimal.NewFromString(thresholdStr)
	if err != nil {
		return Portfolio{}, &domain.ConfigError{Reason: fmt.Sprintf("portfolio %s: invalid threshold %q", name, tmp.Threshold)}
	}
	if threshold.IsNegative() {
		return Portfolio{}, &domain.ConfigError{Reason: fmt.Sprintf("portfolio %s: threshold must be non-negative, got %s", name, threshold.String())}
	}

	maxOrders := tmp.MaxOrders
	if maxOrders == 0 {
		maxOrders = flags.MaxOrders
	}
	if maxOrders <= 0 {
		return Portfolio{}, &domain.ConfigError{Reason: fmt.Sprintf("portfolio %s: max_orders must be positive, got %d", name, tmp.MaxOrders)}
	}

	mode := flags.Mode
	if tmp.Mode != "" {
		mode, err = domain.ParsePriceMode(tmp.Mode)
		if err != nil {
			return Portfolio{}, fmt.Errorf("portfolio %s: %w", name, err)
		}
	}

	interval := tmp.Interval
	if flags.Interval > 0 {
		interval = flags.Interval
	}
	if interval < 0 {
		return Portfolio{}, &domain.ConfigError{Reason: fmt.Sprintf("portfolio %s: interval must be non-negative", name)}
	}

	fees, err := parseFees(name, tmp.MakerFee, tmp.TakerFee)
	if err != nil {
		return Portfolio{}, err
	}

	seed, err := parseDecimalMap(name, "paper_balances", tmp.PaperBalances)
	if err != nil {
		return Portfolio{}, err
	}
	prices, err := parseDecimalMap(name, "paper_prices", tmp.PaperPrices)
	if err != nil {
		return Portfolio{}, err
	}

	return Portfolio{
		Name:          name,
		Platform:      tmp.Platform,
		Quote:         quote,
		Targets:       targets,
		Threshold:     threshold,
		Interval:      interval,
		MaxOrders:     maxOrders,
		Mode:          mode,
		Fees:          fees,
		PaperBalances: seed,
		PaperPrices:   prices,
	}, nil
}

func parseFees(name, makerStr, takerStr string) (domain.FeeSchedule, error) {
	if makerStr == "" && takerStr == "" {
		return nil, nil
	}

	maker, taker := decimal.Zero, decimal.Zero
	var err error
	if makerStr != "" {
		maker, err = decimal.NewFromString(makerStr)
		if err != nil {
			return nil, &domain.ConfigError{Reason: fmt.Sprintf("portfolio %s: invalid maker_fee %q", name, makerStr)}
		}
	}
	if takerStr != "" {
		taker, err = decimal.NewFromString(takerStr)
		if err != nil {
			return nil, &domain.ConfigError{Reason: fmt.Sprintf("portfolio %s: invalid taker_fee %q", name, takerStr)}
		}
	}

	fees, err := domain.NewStaticFees(maker, taker)
	if err != nil {
		return nil, fmt.Errorf("portfolio %s: %w", name, err)
	}

	return fees, nil
}

func parseDecimalMap(name, field string, raw map[string]string) (map[string]decimal.Decimal, error) {
	if len(raw) == 0 {
		return nil, nil
	}

	out := make(map[string]decimal.Decimal, len(raw))
	for asset, value := range raw {
		d, err := decimal.NewFromString(value)
		if err != nil {
			return nil, &domain.ConfigError{Reason: fmt.Sprintf("portfolio %s: invalid %s value %q for %s", name, field, value, asset)}
		}
		out[asset] = d
	}

	return out, nil
}

func filterByName(portfolios []Portfolio, name string) []Portfolio {
	var selected []Portfolio
	for _, p := range portfolios {
		if p.Name == name {
			selected = append(selected, p)
		}
	}

	return selected
}
