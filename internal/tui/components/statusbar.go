package components

import (
	"fmt"
	"strings"
	"time"

	"github.com/theirongolddev/fintrack/internal/daemon"
	"github.com/theirongolddev/fintrack/internal/tui/theme"

	"github.com/charmbracelet/lipgloss"
)

// SyncBanner summarizes sync state in one line, e.g.
// "● online · 2 pending · synced 3m ago".
func SyncBanner(st daemon.Status, now time.Time) string {
	t := theme.Active

	dot := lipgloss.NewStyle().Foreground(t.Green).Render("●") + " online"
	if !st.Online {
		dot = lipgloss.NewStyle().Foreground(t.Orange).Render("○") + " offline"
	}

	parts := []string{dot}
	switch {
	case st.QueueLength == 0:
		parts = append(parts, "all changes synced")
	case st.MaxRetry > 0:
		parts = append(parts, fmt.Sprintf("%d pending (retry %d)", st.QueueLength, st.MaxRetry))
	default:
		parts = append(parts, fmt.Sprintf("%d pending", st.QueueLength))
	}
	if st.Unpersisted > 0 {
		parts = append(parts, lipgloss.NewStyle().Foreground(t.Red).
			Render(fmt.Sprintf("%d not saved to disk", st.Unpersisted)))
	}
	if !st.LastSync.IsZero() {
		parts = append(parts, "synced "+agoString(now.Sub(st.LastSync)))
	}
	return strings.Join(parts, " · ")
}

// RenderStatusBar renders the bottom status bar. notice, when set, replaces
// the key hints on the left.
func RenderStatusBar(width int, st daemon.Status, notice string, now time.Time) string {
	t := theme.Active

	style := lipgloss.NewStyle().
		Foreground(t.TextMuted).
		Background(t.Surface).
		Width(width)

	left := " [?]help  [s]ync  [r]eload  [q]uit"
	if notice != "" {
		left = " " + lipgloss.NewStyle().Foreground(t.Orange).Bold(true).Render(notice)
	}
	right := SyncBanner(st, now) + " "

	padding := width - lipgloss.Width(left) - lipgloss.Width(right)
	if padding < 1 {
		padding = 1
	}
	return style.Render(left + strings.Repeat(" ", padding) + right)
}

func agoString(d time.Duration) string {
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	}
	return fmt.Sprintf("%dd ago", int(d.Hours()/24))
}
