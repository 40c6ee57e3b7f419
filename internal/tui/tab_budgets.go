package tui

import (
	"fmt"
	"strings"

	"github.com/theirongolddev/fintrack/internal/cli"
	"github.com/theirongolddev/fintrack/internal/tui/components"
	"github.com/theirongolddev/fintrack/internal/tui/theme"

	"github.com/charmbracelet/lipgloss"
)

func (a App) renderBudgetsTab(cw int) string {
	t := theme.Active
	inner := components.CardInnerWidth(cw)

	if len(a.budgets) == 0 {
		body := lipgloss.NewStyle().Foreground(t.TextDim).
			Render("No budgets set. Add one with: fintrack category add --budget 500 <name>")
		return components.ContentCard("Budgets", body, cw)
	}

	labelW := 18
	noteW := 26
	barW := inner - labelW - noteW - 8
	if barW < 10 {
		barW = 10
	}

	var lines []string
	over := 0
	for _, bp := range a.budgets {
		name := bp.Category.Name
		if bp.Category.Frequency != "" {
			name += " (" + string(bp.Category.Frequency)[:1] + ")"
		}
		lines = append(lines, components.LabeledBar(name, bp.Percent, budgetNote(bp, a.currency), labelW, barW))
		if bp.Over {
			over++
		}
	}

	title := fmt.Sprintf("Budgets · %d", len(a.budgets))
	var b strings.Builder
	b.WriteString(components.ContentCard(title, strings.Join(lines, "\n"), cw))
	if over > 0 {
		b.WriteString("\n")
		b.WriteString(lipgloss.NewStyle().Foreground(t.Red).Bold(true).
			Render(fmt.Sprintf(" %d budget(s) exceeded", over)))
	}

	var remaining []string
	for _, bp := range a.budgets {
		if bp.Over {
			continue
		}
		remaining = append(remaining, fmt.Sprintf("%s: %s left until %s",
			bp.Category.Name, cli.FormatMoney(bp.Remaining, a.currency),
			bp.PeriodEnd.AddDate(0, 0, -1).Format("Jan 02")))
	}
	if len(remaining) > 0 {
		b.WriteString("\n")
		b.WriteString(components.ContentCard("Remaining", strings.Join(remaining, "\n"), cw))
	}
	return b.String()
}
