// Package report renders rebalancing round results for the terminal.
package report

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/shopspring/decimal"

	"github.com/quantfell/parita/internal/domain"
)

var (
	subtle    = lipgloss.AdaptiveColor{Light: "#D9DCCF", Dark: "#383838"}
	highlight = lipgloss.AdaptiveColor{Light: "#874BFD", Dark: "#7D56F4"}
	special   = lipgloss.AdaptiveColor{Light: "#43BF6D", Dark: "#73F59F"}
	alert     = lipgloss.AdaptiveColor{Light: "#D94F70", Dark: "#F25D94"}

	titleStyle = lipgloss.NewStyle().
			Foreground(highlight).
			Bold(true)

	mutedStyle = lipgloss.NewStyle().Foreground(subtle)
	goodStyle  = lipgloss.NewStyle().Foreground(special)
	badStyle   = lipgloss.NewStyle().Foreground(alert)

	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.NormalBorder()).
			Padding(1, 2)
)

// Render formats the outcome of one rebalancing round.
func Render(r *domain.ExecutionResult) string {
	var b strings.Builder

	title := "PORTFOLIO " + strings.ToUpper(r.Name)
	if r.DryRun {
		title += mutedStyle.Render("  (dry run)")
	}
	b.WriteString(titleStyle.Render(title))
	b.WriteString("\n\n")

	if r.Initial == nil {
		b.WriteString(badStyle.Render("no valuation available"))
		return boxStyle.Render(b.String())
	}

	writeHoldings(&b, r.Initial)

	b.WriteString(fmt.Sprintf("\nvaluation %s %s\n", r.Initial.Valuation().StringFixed(2), r.Initial.Quote()))
	b.WriteString(fmt.Sprintf("max drift %s / threshold %s, rms %s\n",
		r.Initial.MaxError().StringFixed(2),
		r.Initial.Threshold().String(),
		r.Initial.RMSError().StringFixed(2)))

	if len(r.Cancelled) > 0 {
		b.WriteString(fmt.Sprintf("cancelled %d resting orders\n", len(r.Cancelled)))
	}

	if len(r.Orders) == 0 {
		b.WriteString("\n")
		if r.Initial.NeedsBalancing() {
			b.WriteString(badStyle.Render("no improving plan found"))
		} else {
			b.WriteString(goodStyle.Render("within threshold, nothing to do"))
		}
		return boxStyle.Render(b.String())
	}

	b.WriteString("\n" + mutedStyle.Render("ORDERS") + "\n")
	writeOrders(&b, r)

	b.WriteString(fmt.Sprintf("\nestimated fee %s %s\n", r.TotalFee.StringFixed(4), r.Initial.Quote()))
	if r.Partial {
		b.WriteString(mutedStyle.Render("partial: some sells clamped to held balances") + "\n")
	}

	if r.Proposed != nil {
		b.WriteString("\n" + mutedStyle.Render("AFTER") + "\n")
		writeHoldings(&b, r.Proposed)
	}

	return boxStyle.Render(b.String())
}

func writeHoldings(b *strings.Builder, pf *domain.Portfolio) {
	b.WriteString(mutedStyle.Render(fmt.Sprintf("%-8s %16s %9s %9s %9s", "ASSET", "AMOUNT", "SHARE", "TARGET", "DRIFT")))
	b.WriteString("\n")

	targets := pf.Targets()
	for _, asset := range pf.Assets() {
		drift := formatSigned(pf.Deviation(asset))
		line := fmt.Sprintf("%-8s %16s %8s%% %8s%% %9s",
			asset,
			pf.Holding(asset).String(),
			pf.Share(asset).StringFixed(2),
			targets.Target(asset).String(),
			drift)

		if pf.Deviation(asset).Abs().GreaterThan(pf.Threshold()) {
			line = badStyle.Render(line)
		}
		b.WriteString(line)
		b.WriteString("\n")
	}
}

func writeOrders(b *strings.Builder, r *domain.ExecutionResult) {
	outcomes := make(map[string]domain.OrderOutcome, len(r.Successes)+len(r.Failures))
	for _, o := range r.Successes {
		outcomes[o.Order.ID] = o
	}
	for _, o := range r.Failures {
		outcomes[o.Order.ID] = o
	}

	for i, order := range r.Orders {
		line := fmt.Sprintf("%d. %-4s %s %s @ %s (%s)",
			i+1,
			order.Side.String(),
			order.Amount.String(),
			order.Asset,
			order.Price.StringFixed(4),
			order.Mode)

		b.WriteString(line)
		b.WriteString("  ")
		b.WriteString(outcomeText(outcomes, order, r.DryRun))
		b.WriteString("\n")
	}
}

func outcomeText(outcomes map[string]domain.OrderOutcome, order domain.Order, dryRun bool) string {
	if dryRun {
		return mutedStyle.Render("planned")
	}

	outcome, ok := outcomes[order.ID]
	if !ok {
		return mutedStyle.Render("not submitted")
	}

	switch outcome.Order.State {
	case domain.OrderFilled:
		return goodStyle.Render(fmt.Sprintf("filled, %s", attemptsText(outcome.Attempts)))
	case domain.OrderRejected:
		return badStyle.Render(fmt.Sprintf("rejected: %v", outcome.Err))
	default:
		return badStyle.Render(fmt.Sprintf("failed after %s: %v", attemptsText(outcome.Attempts), outcome.Err))
	}
}

func attemptsText(attempts int) string {
	if attempts == 1 {
		return "1 attempt"
	}
	return fmt.Sprintf("%d attempts", attempts)
}

func formatSigned(d decimal.Decimal) string {
	if d.IsPositive() {
		return "+" + d.StringFixed(2)
	}
	return d.StringFixed(2)
}
