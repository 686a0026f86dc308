// Package setup hosts the interactive portfolio configuration wizard.
package setup

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/quantfell/parita/config"
	"github.com/quantfell/parita/internal/domain"
)

// GenConfigPath is where the wizard writes its result.
const GenConfigPath = "portfolios.gen.yaml"

var (
	subtle    = lipgloss.AdaptiveColor{Light: "#D9DCCF", Dark: "#383838"}
	highlight = lipgloss.AdaptiveColor{Light: "#874BFD", Dark: "#7D56F4"}
	special   = lipgloss.AdaptiveColor{Light: "#43BF6D", Dark: "#73F59F"}

	headerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("205")).
			Background(highlight).
			Padding(1, 2).
			Bold(true).
			MarginBottom(1)

	stepStyle = lipgloss.NewStyle().
			Foreground(special).
			Bold(true).
			MarginTop(1).
			MarginBottom(0)
)

// RunTUI launches the terminal portfolio wizard.
func RunTUI() error {
	var (
		name         string
		platform     string
		quote        string
		targetsStr   string
		thresholdStr string
		intervalStr  string
		maxOrdersStr string
		mode         string
		makerFeeStr  string
		takerFeeStr  string
		balancesStr  string
		pricesStr    string
		confirm      bool
	)

	// defaults
	quote = "USDT"
	thresholdStr = "1"
	intervalStr = "0s"
	maxOrdersStr = "5"
	mode = string(domain.PriceModeMid)

	// step 1: name and venue
	fmt.Print("\033[H\033[2J") // Clear screen
	fmt.Println(headerStyle.Render("PARITA PORTFOLIO WIZARD"))
	fmt.Println(lipgloss.NewStyle().Foreground(subtle).Render("Describe the portfolio you want kept in balance.\n"))

	fmt.Println(stepStyle.Render("STEP 1: VENUE"))
	err := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Portfolio Name").
				Value(&name).
				Validate(func(s string) error {
					if strings.TrimSpace(s) == "" {
						return fmt.Errorf("name cannot be empty")
					}
					return nil
				}),
			huh.NewSelect[string]().
				Title("Select Venue").
				Options(
					huh.NewOption("Binance", "binance"),
					huh.NewOption("Bybit", "bybit"),
					huh.NewOption("Hyperliquid", "hyperliquid"),
					huh.NewOption("Paper (no real orders)", "paper"),
				).
				Value(&platform),
		),
	).Run()
	if err != nil {
		return err
	}

	// step 2: quote currency
	fmt.Print("\033[H\033[2J")
	fmt.Println(headerStyle.Render("PARITA PORTFOLIO WIZARD"))
	fmt.Println(stepStyle.Render("STEP 2: QUOTE CURRENCY"))
	err = huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Quote Currency").
				Description("Everything is valued and traded against this asset (e.g. USDT)").
				Value(&quote).
				Validate(func(s string) error {
					if strings.TrimSpace(s) == "" {
						return fmt.Errorf("quote currency cannot be empty")
					}
					return nil
				}),
		),
	).Run()
	if err != nil {
		return err
	}

	// step 3: target weights
	fmt.Print("\033[H\033[2J")
	fmt.Println(headerStyle.Render("PARITA PORTFOLIO WIZARD"))
	fmt.Println(stepStyle.Render("STEP 3: TARGET WEIGHTS"))
	err = huh.NewForm(
		huh.NewGroup(
			huh.NewText().
				Title("Target Weights").
				Description("One ASSET=PERCENT per line, percentages must sum to 100\ne.g.\nBTC=60\nETH=30\nUSDT=10").
				Value(&targetsStr).
				Validate(validateTargets),
		),
	).Run()
	if err != nil {
		return err
	}

	// step 4: tolerance and timing
	fmt.Print("\033[H\033[2J")
	fmt.Println(headerStyle.Render("PARITA PORTFOLIO WIZARD"))
	fmt.Println(stepStyle.Render("STEP 4: TOLERANCE & TIMING"))
	err = huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Drift Threshold %").
				Description("Rebalance only when an asset drifts further than this (e.g. 1)").
				Value(&thresholdStr).
				Validate(validateDecimal),
			huh.NewInput().
				Title("Rebalance Interval").
				Description("Duration string (e.g. 1h, 30m); 0s runs a single round").
				Value(&intervalStr).
				Validate(func(s string) error {
					if s == "" {
						return nil
					}
					d, err := time.ParseDuration(s)
					if err != nil {
						return err
					}
					if d < 0 {
						return fmt.Errorf("must be non-negative")
					}
					return nil
				}),
			huh.NewInput().
				Title("Max Orders per Round").
				Value(&maxOrdersStr).
				Validate(func(s string) error {
					n, err := strconv.Atoi(s)
					if err != nil || n < 1 {
						return fmt.Errorf("must be a positive integer")
					}
					return nil
				}),
		),
	).Run()
	if err != nil {
		return err
	}

	// step 5: pricing
	fmt.Print("\033[H\033[2J")
	fmt.Println(headerStyle.Render("PARITA PORTFOLIO WIZARD"))
	fmt.Println(stepStyle.Render("STEP 5: PRICING"))
	err = huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Limit Price Mode").
				Options(
					huh.NewOption("Mid (bid/ask midpoint)", string(domain.PriceModeMid)),
					huh.NewOption("Passive (sit on the near side)", string(domain.PriceModePassive)),
					huh.NewOption("Cheap (whichever side costs less in fees)", string(domain.PriceModeCheap)),
				).
				Value(&mode),
			huh.NewInput().
				Title("Maker Fee Rate").
				Description("Optional override, e.g. 0.001 for 0.1%").
				Value(&makerFeeStr).
				Validate(validateOptionalDecimal),
			huh.NewInput().
				Title("Taker Fee Rate").
				Description("Optional override, e.g. 0.001 for 0.1%").
				Value(&takerFeeStr).
				Validate(validateOptionalDecimal),
		),
	).Run()
	if err != nil {
		return err
	}

	// paper venue needs a starting wallet and prices
	if platform == "paper" {
		fmt.Print("\033[H\033[2J")
		fmt.Println(headerStyle.Render("PARITA PORTFOLIO WIZARD"))
		fmt.Println(stepStyle.Render("STEP 6: PAPER WALLET"))
		err = huh.NewForm(
			huh.NewGroup(
				huh.NewText().
					Title("Starting Balances").
					Description("One ASSET=AMOUNT per line\ne.g.\nBTC=0.5\nUSDT=10000").
					Value(&balancesStr).
					Validate(validateOptionalAssetLines),
				huh.NewText().
					Title("Asset Prices").
					Description("One ASSET=PRICE per line, required for every non-quote asset").
					Value(&pricesStr).
					Validate(validateOptionalAssetLines),
			),
		).Run()
		if err != nil {
			return err
		}
	}

	// confirmation
	fmt.Print("\033[H\033[2J")
	fmt.Println(headerStyle.Render("PARITA PORTFOLIO WIZARD"))
	fmt.Println(stepStyle.Render("FINAL CONFIRMATION"))

	summary := fmt.Sprintf(
		"Name: %s\nVenue: %s\nQuote: %s\nThreshold: %s%%\nInterval: %s\nMax orders: %s\nPrice mode: %s\nTargets:\n%s\n",
		name, platform, quote, thresholdStr, intervalStr, maxOrdersStr, mode, strings.TrimSpace(targetsStr),
	)
	fmt.Println(lipgloss.NewStyle().Border(lipgloss.NormalBorder()).Padding(1).Render(summary))

	err = huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title("Save Configuration?").
				Affirmative("Yes, save").
				Negative("No, exit").
				Value(&confirm),
		),
	).Run()
	if err != nil {
		return err
	}

	if !confirm {
		return fmt.Errorf("setup cancelled by user")
	}

	tmp, err := buildPortfolio(name, platform, quote, targetsStr, thresholdStr, intervalStr, maxOrdersStr,
		mode, makerFeeStr, takerFeeStr, balancesStr, pricesStr)
	if err != nil {
		return err
	}

	data, err := yaml.Marshal([]config.PortfolioTmp{tmp})
	if err != nil {
		return fmt.Errorf("failed to generate yaml: %w", err)
	}

	if err := os.WriteFile(GenConfigPath, data, 0644); err != nil {
		return fmt.Errorf("failed to save config file: %w", err)
	}

	fmt.Println(lipgloss.NewStyle().Foreground(special).Render(
		fmt.Sprintf("\n✓ Configuration saved to %s\nStart with: parita --config %s", GenConfigPath, GenConfigPath)))
	return nil
}

func buildPortfolio(name, platform, quote, targetsStr, thresholdStr, intervalStr, maxOrdersStr,
	mode, makerFeeStr, takerFeeStr, balancesStr, pricesStr string) (config.PortfolioTmp, error) {

	targets, err := parseAssetLines(targetsStr)
	if err != nil {
		return config.PortfolioTmp{}, err
	}

	var interval time.Duration
	if intervalStr != "" {
		interval, err = time.ParseDuration(intervalStr)
		if err != nil {
			return config.PortfolioTmp{}, err
		}
	}

	maxOrders, err := strconv.Atoi(maxOrdersStr)
	if err != nil {
		return config.PortfolioTmp{}, fmt.Errorf("invalid max orders %q", maxOrdersStr)
	}

	tmp := config.PortfolioTmp{
		Name:      strings.TrimSpace(name),
		Platform:  platform,
		ValueBase: strings.ToUpper(strings.TrimSpace(quote)),
		Targets:   targets,
		Threshold: thresholdStr,
		Interval:  interval,
		MaxOrders: maxOrders,
		Mode:      mode,
		MakerFee:  makerFeeStr,
		TakerFee:  takerFeeStr,
	}

	if platform == "paper" {
		if balancesStr != "" {
			tmp.PaperBalances, err = parseAssetLines(balancesStr)
			if err != nil {
				return config.PortfolioTmp{}, err
			}
		}
		if pricesStr != "" {
			tmp.PaperPrices, err = parseAssetLines(pricesStr)
			if err != nil {
				return config.PortfolioTmp{}, err
			}
		}
	}

	return tmp, nil
}

// parseAssetLines parses "ASSET=VALUE" lines into a string map. Blank
// lines are skipped, values must be valid decimals.
func parseAssetLines(raw string) (map[string]string, error) {
	out := make(map[string]string)
	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		asset, value, ok := strings.Cut(line, "=")
		if !ok {
			return nil, fmt.Errorf("line %q: expected ASSET=VALUE", line)
		}
		asset = strings.ToUpper(strings.TrimSpace(asset))
		value = strings.TrimSpace(value)
		if asset == "" || value == "" {
			return nil, fmt.Errorf("line %q: expected ASSET=VALUE", line)
		}
		if _, err := decimal.NewFromString(value); err != nil {
			return nil, fmt.Errorf("line %q: %q is not a number", line, value)
		}

		out[asset] = value
	}

	if len(out) == 0 {
		return nil, fmt.Errorf("no entries given")
	}

	return out, nil
}

func validateTargets(raw string) error {
	targets, err := parseAssetLines(raw)
	if err != nil {
		return err
	}

	_, err = domain.ParseWeights(targets)
	return err
}

func validateDecimal(s string) error {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return fmt.Errorf("must be a valid number")
	}
	if d.IsNegative() {
		return fmt.Errorf("must be non-negative")
	}
	return nil
}

func validateOptionalDecimal(s string) error {
	if s == "" {
		return nil
	}
	return validateDecimal(s)
}

func validateOptionalAssetLines(raw string) error {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	_, err := parseAssetLines(raw)
	return err
}
