// Package tui provides the interactive Bubble Tea dashboard for fintrack.
package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/theirongolddev/fintrack/internal/config"
	"github.com/theirongolddev/fintrack/internal/daemon"
	"github.com/theirongolddev/fintrack/internal/ledger"
	"github.com/theirongolddev/fintrack/internal/model"
	"github.com/theirongolddev/fintrack/internal/pipeline"
	"github.com/theirongolddev/fintrack/internal/syncq"
	"github.com/theirongolddev/fintrack/internal/tui/components"
	"github.com/theirongolddev/fintrack/internal/tui/theme"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
)

// Options wires the dashboard to the ledger and the sync machinery.
type Options struct {
	Ledger   *ledger.Ledger
	Observer *daemon.Observer
	// Worker is nil when another process owns delivery. "Sync now" then
	// calls Wake, if set, to ask that process to sync.
	Worker    *daemon.Worker
	Wake      func() error
	NeedSetup bool
}

// StatusMsg carries a fresh status poll.
type StatusMsg struct {
	Status  daemon.Status
	Entries []syncq.Entry
}

// SyncDoneMsg is sent when a manual sync pass finishes.
type SyncDoneMsg struct {
	Delivered int
	// Woke is set when the pass was handed to the daemon.
	Woke bool
	Err  error
}

var errNoSync = errors.New("no sync backend configured")

// tickMsg schedules the next status poll. Only ticks from the current
// poll generation continue the chain.
type tickMsg struct{ gen int }

// App is the root Bubble Tea model.
type App struct {
	opts Options

	// Data
	currency  string
	workspace model.Workspace
	totals    pipeline.Totals
	prev      pipeline.Totals
	months    []pipeline.MonthTotal
	budgets   []pipeline.BudgetProgress
	goals     []pipeline.GoalProgress
	loans     []pipeline.LoanProgress
	upcoming  []model.Bill
	overdue   []model.Bill
	recent    []model.Transaction

	// Sync
	status  daemon.Status
	entries []syncq.Entry
	syncing bool
	notice  string
	polled  bool
	pollGen int

	// UI state
	width     int
	height    int
	activeTab int
	showHelp  bool
	quitArmed bool
	spinner   spinner.Model
	now       func() time.Time

	// First-run setup (huh form)
	setupForm *huh.Form
	setupVals SetupValues
	needSetup bool
}

const (
	minTerminalWidth = 80
	maxContentWidth  = 160
	minContentHeight = 5

	pollInterval = time.Second
)

// NewApp creates a new TUI app model.
func NewApp(opts Options) App {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(theme.Active.Accent)

	a := App{
		opts:      opts,
		spinner:   sp,
		now:       time.Now,
		needSetup: opts.NeedSetup,
	}
	if a.needSetup {
		cfg, _ := config.Load()
		a.setupVals = SetupValuesFrom(cfg)
		a.setupForm = NewSetupForm(&a.setupVals)
	}
	a.recompute()
	return a
}

// Init implements tea.Model.
func (a App) Init() tea.Cmd {
	cmds := []tea.Cmd{
		tea.EnableMouseCellMotion,
		a.spinner.Tick,
		pollCmd(a.opts.Observer, a.pollGen),
	}
	if a.setupForm != nil {
		cmds = append(cmds, a.setupForm.Init())
	}
	return tea.Batch(cmds...)
}

func (a *App) recompute() {
	l := a.opts.Ledger
	now := a.now()
	a.currency = l.Currency()
	a.workspace = l.Workspace()
	w := a.workspace

	txs := pipeline.FilterByWorkspace(l.Transactions(), w)
	monthStart, monthEnd := pipeline.PeriodBounds(model.Monthly, now)
	a.totals = pipeline.Aggregate(txs, monthStart, monthEnd)
	a.prev = pipeline.Aggregate(txs, monthStart.AddDate(0, -1, 0), monthStart)
	a.months = pipeline.AggregateMonths(txs, monthStart.AddDate(0, -5, 0), monthEnd)
	a.budgets = pipeline.Budgets(pipeline.FilterByWorkspace(l.Categories(), w), txs, now)
	a.goals = pipeline.Goals(pipeline.FilterByWorkspace(l.Goals(), w), now)
	a.loans = pipeline.Loans(pipeline.FilterByWorkspace(l.Loans(), w))
	a.upcoming, a.overdue = pipeline.BillsDue(pipeline.FilterByWorkspace(l.Bills(), w), now, 7)

	a.recent = nil
	for i := len(txs) - 1; i >= 0 && len(a.recent) < 8; i-- {
		a.recent = append(a.recent, txs[i])
	}
}

// Update implements tea.Model.
func (a App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {

	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		if a.setupForm != nil {
			a.setupForm = a.setupForm.WithWidth(msg.Width).WithHeight(msg.Height)
		}
		return a, nil

	case tea.MouseMsg:
		if a.showHelp || a.setupForm != nil {
			return a, nil
		}
		if msg.Button == tea.MouseButtonLeft && msg.Action == tea.MouseActionPress && msg.Y == 0 {
			if tab := a.tabAtX(msg.X); tab >= 0 {
				a.activeTab = tab
			}
		}
		return a, nil

	case tea.KeyMsg:
		return a.updateKey(msg)

	case StatusMsg:
		a.polled = true
		a.status = msg.Status
		a.entries = msg.Entries
		if !a.status.HasUnsavedChanges {
			a.quitArmed = false
		}
		return a, nil

	case SyncDoneMsg:
		a.syncing = false
		switch {
		case errors.Is(msg.Err, errNoSync):
			a.notice = msg.Err.Error()
		case errors.Is(msg.Err, syncq.ErrOwned), errors.Is(msg.Err, syncq.ErrClaimed):
			a.notice = "another fintrack process is syncing"
		case msg.Err != nil:
			a.notice = "sync stopped: " + msg.Err.Error()
		case msg.Woke:
			a.notice = "asked the daemon to sync"
		case msg.Delivered > 0:
			a.notice = fmt.Sprintf("synced %d change(s)", msg.Delivered)
		default:
			a.notice = ""
		}
		return a, a.restartPoll()

	case tickMsg:
		if msg.gen != a.pollGen {
			return a, nil
		}
		return a, pollCmd(a.opts.Observer, a.pollGen)

	case spinner.TickMsg:
		var cmd tea.Cmd
		a.spinner, cmd = a.spinner.Update(msg)
		return a, cmd
	}

	if a.setupForm != nil {
		return a.updateSetupForm(msg)
	}
	return a, nil
}

func (a App) updateKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	key := msg.String()

	if a.setupForm != nil && key != "ctrl+c" {
		return a.updateSetupForm(msg)
	}

	if key == "ctrl+c" || key == "q" {
		return a.requestQuit()
	}
	a.quitArmed = false

	if key == "?" {
		a.showHelp = !a.showHelp
		return a, nil
	}
	if a.showHelp {
		a.showHelp = false
		return a, nil
	}

	switch key {
	case "s":
		if a.syncing {
			return a, nil
		}
		a.syncing = true
		a.notice = "syncing…"
		return a, syncCmd(a.opts.Worker, a.opts.Wake)
	case "r":
		if err := a.opts.Ledger.Reload(); err != nil {
			a.notice = "reload failed: " + err.Error()
			return a, nil
		}
		a.recompute()
		a.notice = ""
		return a, a.restartPoll()
	case "w":
		next := model.WorkspaceBusiness
		if a.workspace == model.WorkspaceBusiness {
			next = model.WorkspacePersonal
		}
		if err := a.opts.Ledger.SetWorkspace(next); err != nil {
			a.notice = err.Error()
			return a, nil
		}
		a.recompute()
		return a, nil
	case "left", "h":
		a.activeTab = (a.activeTab - 1 + len(components.Tabs)) % len(components.Tabs)
	case "right", "l", "tab":
		a.activeTab = (a.activeTab + 1) % len(components.Tabs)
	default:
		if r := []rune(key); len(r) == 1 {
			if idx := components.TabIdxByKey(r[0]); idx >= 0 {
				a.activeTab = idx
			}
		}
	}
	return a, nil
}

// requestQuit quits immediately when everything is synced. With changes
// still queued, the first press arms a warning and the second one quits.
func (a App) requestQuit() (tea.Model, tea.Cmd) {
	if a.status.HasUnsavedChanges && !a.quitArmed {
		a.quitArmed = true
		return a, nil
	}
	return a, tea.Quit
}

func (a App) updateSetupForm(msg tea.Msg) (tea.Model, tea.Cmd) {
	form, cmd := a.setupForm.Update(msg)
	if f, ok := form.(*huh.Form); ok {
		a.setupForm = f
	}

	switch a.setupForm.State {
	case huh.StateCompleted:
		a.saveSetup()
		a.setupForm = nil
		a.needSetup = false
		a.recompute()
		return a, nil
	case huh.StateAborted:
		a.setupForm = nil
		a.needSetup = false
		return a, nil
	}
	return a, cmd
}

func (a *App) saveSetup() {
	cfg, _ := config.Load()
	a.setupVals.Apply(&cfg)
	theme.SetActive(cfg.Appearance.Theme)
	if err := config.Save(cfg); err != nil {
		a.notice = "could not save config: " + err.Error()
	}
	if w, err := model.ParseWorkspace(cfg.General.Workspace); err == nil {
		_ = a.opts.Ledger.SetWorkspace(w)
	}
	if cfg.General.Currency != "" {
		_ = a.opts.Ledger.SetCurrency(cfg.General.Currency)
	}
}

func (a App) contentWidth() int {
	cw := a.width
	if cw > maxContentWidth {
		cw = maxContentWidth
	}
	return cw
}

// View implements tea.Model.
func (a App) View() string {
	if a.width == 0 {
		return ""
	}
	if a.setupForm != nil {
		return a.setupForm.View()
	}
	if a.width < minTerminalWidth {
		return fmt.Sprintf("\n  Terminal too narrow (%d cols)\n\n  fintrack needs at least %d columns.\n",
			a.width, minTerminalWidth)
	}
	if a.showHelp {
		return a.viewHelp()
	}
	return a.viewMain()
}

func (a App) viewMain() string {
	t := theme.Active
	w := a.width
	cw := a.contentWidth()
	h := a.height

	wsStyle := lipgloss.NewStyle().Foreground(t.Accent).Bold(true)
	header := components.RenderTabBar(a.activeTab) + "  " +
		wsStyle.Render(string(a.workspace)) +
		lipgloss.NewStyle().Foreground(t.TextDim).Render(" · "+a.currency)
	if a.syncing {
		header += " " + a.spinner.View()
	}

	notice := a.notice
	if a.quitArmed {
		notice = fmt.Sprintf("%d change(s) not synced yet. Press q again to quit.", a.status.QueueLength)
	}
	statusBar := components.RenderStatusBar(w, a.status, notice, a.now())

	contentH := h - lipgloss.Height(header) - lipgloss.Height(statusBar)
	if contentH < minContentHeight {
		contentH = minContentHeight
	}

	var content string
	switch a.activeTab {
	case 0:
		content = a.renderOverviewTab(cw)
	case 1:
		content = a.renderBudgetsTab(cw)
	case 2:
		content = a.renderGoalsTab(cw)
	case 3:
		content = a.renderQueueTab(cw)
	}
	content = padHeight(truncateHeight(content, contentH), contentH)
	content = lipgloss.PlaceHorizontal(w, lipgloss.Center, content)

	return lipgloss.JoinVertical(lipgloss.Left, header, content, statusBar)
}

func (a App) viewHelp() string {
	t := theme.Active

	cardStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(t.BorderAccent).
		Padding(1, 3)
	titleStyle := lipgloss.NewStyle().Foreground(t.AccentBright).Bold(true)
	keyStyle := lipgloss.NewStyle().Foreground(t.Cyan).Bold(true)
	descStyle := lipgloss.NewStyle().Foreground(t.TextMuted)

	var b strings.Builder
	b.WriteString(titleStyle.Render("◈ Keyboard Shortcuts"))
	b.WriteString("\n\n")
	bindings := []struct{ key, desc string }{
		{"o b g u", "Jump to tab"},
		{"← →", "Previous / Next tab"},
		{"w", "Switch workspace"},
		{"s", "Sync now"},
		{"r", "Reload from disk"},
		{"?", "Toggle help"},
		{"q", "Quit (twice with unsynced changes)"},
	}
	for _, bind := range bindings {
		fmt.Fprintf(&b, "  %s  %s\n",
			keyStyle.Render(fmt.Sprintf("%-10s", bind.key)),
			descStyle.Render(bind.desc))
	}

	return lipgloss.Place(a.width, a.height, lipgloss.Center, lipgloss.Center, cardStyle.Render(b.String()))
}

// ─── Commands ───────────────────────────────────────────────────

// pollCmd polls status off the UI goroutine, then schedules the next poll.
func pollCmd(o *daemon.Observer, gen int) tea.Cmd {
	if o == nil {
		return nil
	}
	return tea.Sequence(
		func() tea.Msg {
			st := o.Poll()
			return StatusMsg{Status: st, Entries: o.Entries()}
		},
		tea.Tick(pollInterval, func(time.Time) tea.Msg { return tickMsg{gen: gen} }),
	)
}

// restartPoll polls now and starts a new chain; ticks from the old chain
// are dropped.
func (a *App) restartPoll() tea.Cmd {
	a.pollGen++
	return pollCmd(a.opts.Observer, a.pollGen)
}

func syncCmd(w *daemon.Worker, wake func() error) tea.Cmd {
	return func() tea.Msg {
		switch {
		case w != nil:
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			n, err := w.Drain(ctx)
			return SyncDoneMsg{Delivered: n, Err: err}
		case wake != nil:
			return SyncDoneMsg{Woke: true, Err: wake()}
		}
		return SyncDoneMsg{Err: errNoSync}
	}
}

// ─── Helpers ────────────────────────────────────────────────────

// tabAtX returns the tab index at the given X coordinate, or -1 if none.
// Hitboxes are derived from the same width rules used by RenderTabBar.
func (a App) tabAtX(x int) int {
	pos := 0
	for i, tab := range components.Tabs {
		tabW := components.TabVisualWidth(tab, i == a.activeTab)
		if x >= pos && x < pos+tabW {
			return i
		}
		pos += tabW + 1
	}
	return -1
}

func truncStr(s string, limit int) string {
	if limit <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit-1]) + "…"
}

func truncateHeight(s string, limit int) string {
	lines := strings.Split(s, "\n")
	if len(lines) <= limit {
		return s
	}
	return strings.Join(lines[:limit], "\n")
}

func padHeight(s string, h int) string {
	lines := strings.Split(s, "\n")
	if len(lines) >= h {
		return s
	}
	return s + strings.Repeat("\n", h-len(lines))
}
