package tui

import (
	"fmt"
	"strings"

	"github.com/theirongolddev/fintrack/internal/cli"
	"github.com/theirongolddev/fintrack/internal/tui/components"
	"github.com/theirongolddev/fintrack/internal/tui/theme"

	"github.com/charmbracelet/lipgloss"
)

func (a App) renderGoalsTab(cw int) string {
	t := theme.Active
	cur := a.currency
	halves := components.LayoutRow(cw, 2)
	dim := lipgloss.NewStyle().Foreground(t.TextDim)

	// Goals
	inner := components.CardInnerWidth(halves[0])
	labelW := 14
	barW := inner - labelW - 8 - 18
	if barW < 8 {
		barW = 8
	}
	var goalLines []string
	for _, gp := range a.goals {
		note := cli.FormatMoney(gp.Remaining, cur) + " left"
		switch {
		case gp.Reached:
			note = "reached"
		case gp.DaysLeft >= 0:
			note += fmt.Sprintf(" · %dd", gp.DaysLeft)
		}
		goalLines = append(goalLines, components.LabeledBar(gp.Goal.Name, gp.Percent, note, labelW, barW))
	}
	if len(goalLines) == 0 {
		goalLines = append(goalLines, dim.Render("No savings goals"))
	}

	// Loans
	var loanLines []string
	for _, lp := range a.loans {
		note := cli.FormatMoney(lp.Loan.Remaining, cur) + " owed"
		if lp.MonthlyPayment.IsPositive() {
			note += " · " + cli.FormatMoney(lp.MonthlyPayment, cur) + "/mo"
		}
		loanLines = append(loanLines, components.LabeledBar(lp.Loan.Lender, lp.PaidPercent, note, labelW, barW))
	}
	if len(loanLines) == 0 {
		loanLines = append(loanLines, dim.Render("No loans"))
	}

	left := components.ContentCard("Savings goals", strings.Join(goalLines, "\n"), halves[0]) + "\n" +
		components.ContentCard("Loans", strings.Join(loanLines, "\n"), halves[0])

	// Bills
	red := lipgloss.NewStyle().Foreground(t.Red)
	var billLines []string
	for _, bill := range a.overdue {
		billLines = append(billLines, red.Render(fmt.Sprintf("%s  %-16s %s  overdue",
			bill.DueDate.Format("Jan 02"), truncStr(bill.Name, 16), cli.FormatMoney(bill.Amount, cur))))
	}
	for _, bill := range a.upcoming {
		billLines = append(billLines, fmt.Sprintf("%s  %-16s %s",
			bill.DueDate.Format("Jan 02"), truncStr(bill.Name, 16), cli.FormatMoney(bill.Amount, cur)))
	}
	if len(billLines) == 0 {
		billLines = append(billLines, dim.Render("Nothing due this week"))
	}
	right := components.ContentCard("Bills · next 7 days", strings.Join(billLines, "\n"), halves[1])

	return components.CardRow([]string{left, right})
}
