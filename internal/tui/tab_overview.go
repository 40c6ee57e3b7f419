package tui

import (
	"fmt"
	"strings"

	"github.com/theirongolddev/fintrack/internal/cli"
	"github.com/theirongolddev/fintrack/internal/model"
	"github.com/theirongolddev/fintrack/internal/pipeline"
	"github.com/theirongolddev/fintrack/internal/tui/components"
	"github.com/theirongolddev/fintrack/internal/tui/theme"

	"github.com/charmbracelet/lipgloss"
	"github.com/shopspring/decimal"
)

func (a App) renderOverviewTab(cw int) string {
	t := theme.Active
	cur := a.currency
	var b strings.Builder

	net := a.totals.Net
	metrics := []components.Metric{
		{
			Label: "Income (month)",
			Value: cli.FormatMoney(a.totals.Income, cur),
			Note:  changeNote(a.totals.Income, a.prev.Income, cur),
			Color: t.Green,
		},
		{
			Label: "Expenses (month)",
			Value: cli.FormatMoney(a.totals.Expense, cur),
			Note:  changeNote(a.totals.Expense, a.prev.Expense, cur),
			Color: t.Red,
		},
		{
			Label: "Net",
			Value: cli.FormatSigned(net, cur),
			Note:  fmt.Sprintf("%d transactions", a.totals.Transactions),
			Color: t.ForFlow(!net.IsNegative()),
		},
		{
			Label: "Bills due",
			Value: fmt.Sprintf("%d", len(a.upcoming)+len(a.overdue)),
			Note:  overdueNote(len(a.overdue)),
		},
	}
	b.WriteString(components.MetricCardRow(metrics, cw))
	b.WriteString("\n")

	halves := components.LayoutRow(cw, 2)
	b.WriteString(components.CardRow([]string{
		components.ContentCard("Last 6 months", a.renderMonths(components.CardInnerWidth(halves[0])), halves[0]),
		components.ContentCard("Recent", a.renderRecent(components.CardInnerWidth(halves[1])), halves[1]),
	}))
	return b.String()
}

func (a App) renderMonths(w int) string {
	t := theme.Active
	if len(a.months) == 0 {
		return lipgloss.NewStyle().Foreground(t.TextDim).Render("No transactions yet")
	}

	// Months arrive most recent first; the sparkline reads left to right.
	nets := make([]float64, len(a.months))
	for i, m := range a.months {
		nets[len(a.months)-1-i] = m.Net.InexactFloat64()
	}

	muted := lipgloss.NewStyle().Foreground(t.TextMuted)
	var b strings.Builder
	b.WriteString(muted.Render("net ") + components.Sparkline(nets, t.Accent) + "\n\n")
	for _, m := range a.months {
		line := fmt.Sprintf("%-8s %12s %12s",
			m.Month.Format("Jan 06"),
			cli.FormatMoney(m.Income, a.currency),
			cli.FormatMoney(m.Expense, a.currency))
		b.WriteString(truncStr(line, w) + "\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func (a App) renderRecent(w int) string {
	t := theme.Active
	if len(a.recent) == 0 {
		return lipgloss.NewStyle().Foreground(t.TextDim).Render("No transactions yet")
	}

	dim := lipgloss.NewStyle().Foreground(t.TextDim)
	amtW := 12
	descW := w - 7 - amtW - 2
	var lines []string
	for _, tx := range a.recent {
		amt := lipgloss.NewStyle().Foreground(t.ForFlow(tx.Type == model.Income)).
			Render(fmt.Sprintf("%*s", amtW, cli.FormatSigned(tx.Signed(), a.currency)))
		desc := tx.Description
		if desc == "" {
			desc = tx.Category
		}
		lines = append(lines, dim.Render(tx.Date.Format("Jan 02"))+" "+
			fmt.Sprintf("%-*s", descW, truncStr(desc, descW))+" "+amt)
	}
	return strings.Join(lines, "\n")
}

func changeNote(curr, prev decimal.Decimal, cur string) string {
	if prev.IsZero() {
		return "no data last month"
	}
	return cli.FormatSigned(curr.Sub(prev), cur) + " vs last month"
}

func overdueNote(n int) string {
	if n == 0 {
		return "none overdue"
	}
	return fmt.Sprintf("%d overdue", n)
}

// budgetNote renders "$120.00 of $200.00" style notes.
func budgetNote(bp pipeline.BudgetProgress, cur string) string {
	return cli.FormatMoney(bp.Spent, cur) + " of " + cli.FormatMoney(bp.Budget, cur)
}
