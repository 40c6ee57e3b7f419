package tui

import (
	"fmt"
	"strings"

	"github.com/theirongolddev/fintrack/internal/cli"
	"github.com/theirongolddev/fintrack/internal/syncq"
	"github.com/theirongolddev/fintrack/internal/tui/components"
	"github.com/theirongolddev/fintrack/internal/tui/theme"

	"github.com/charmbracelet/lipgloss"
)

func (a App) renderQueueTab(cw int) string {
	t := theme.Active
	st := a.status
	now := a.now()

	onlineVal, onlineColor := "online", t.Green
	if !st.Online {
		onlineVal, onlineColor = "offline", t.Orange
	}
	lastSync := "never"
	if !st.LastSync.IsZero() {
		lastSync = cli.FormatAgo(st.LastSync, now)
	}
	metrics := []components.Metric{
		{Label: "Connection", Value: onlineVal, Color: onlineColor},
		{Label: "Pending", Value: fmt.Sprintf("%d", st.QueueLength), Note: fmt.Sprintf("%d in flight", st.InFlight)},
		{Label: "Oldest", Value: cli.FormatDuration(st.OldestAgeSec), Note: fmt.Sprintf("max retry %d", st.MaxRetry)},
		{Label: "Last sync", Value: lastSync, Note: fmt.Sprintf("%d delivered", st.Delivered)},
	}

	var b strings.Builder
	b.WriteString(components.MetricCardRow(metrics, cw))
	b.WriteString("\n")

	if st.Unpersisted > 0 {
		b.WriteString(lipgloss.NewStyle().Foreground(t.Red).Bold(true).Render(
			fmt.Sprintf(" %d change(s) could not be written to disk and will be lost on exit", st.Unpersisted)))
		b.WriteString("\n")
	}

	b.WriteString(components.ContentCard("Pending changes", a.renderEntries(components.CardInnerWidth(cw)), cw))

	if st.LastError != "" {
		b.WriteString("\n")
		b.WriteString(lipgloss.NewStyle().Foreground(t.Orange).
			Render(" last error: " + truncStr(st.LastError, cw-14)))
	}
	return b.String()
}

func (a App) renderEntries(w int) string {
	t := theme.Active
	if !a.polled {
		return lipgloss.NewStyle().Foreground(t.TextDim).Render(a.spinner.View() + " reading queue…")
	}
	if len(a.entries) == 0 {
		return lipgloss.NewStyle().Foreground(t.TextDim).Render("Everything is synced")
	}

	head := lipgloss.NewStyle().Foreground(t.TextMuted).Bold(true)
	flight := lipgloss.NewStyle().Foreground(t.Accent)
	now := a.now()

	lines := []string{head.Render(fmt.Sprintf("%-3s %-8s %-12s %-10s %-9s %5s  %s",
		"#", "OP", "ENTITY", "ID", "AGE", "RETRY", "ERROR"))}
	for i, e := range a.entries {
		errW := w - 56
		line := fmt.Sprintf("%-3d %-8s %-12s %-10s %-9s %5d  %s",
			i+1, e.Operation, e.Entity, cli.ShortID(e.EntityID),
			cli.FormatAgo(e.EnqueuedAt, now), e.RetryCount, truncStr(e.LastError, errW))
		if e.State == syncq.StateInFlight {
			line = flight.Render(line)
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}
