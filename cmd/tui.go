package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/theirongolddev/fintrack/internal/config"
	"github.com/theirongolddev/fintrack/internal/daemon"
	"github.com/theirongolddev/fintrack/internal/remote"
	"github.com/theirongolddev/fintrack/internal/syncq"
	"github.com/theirongolddev/fintrack/internal/tui"
	"github.com/theirongolddev/fintrack/internal/tui/theme"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var tuiCmd = &cobra.Command{
	Use:   "tui",
	Short: "Launch interactive TUI dashboard",
	RunE:  runTUI,
}

func init() {
	rootCmd.AddCommand(tuiCmd)
}

func runTUI(_ *cobra.Command, _ []string) error {
	theme.SetActive(appCfg.Appearance.Theme)

	// Force TrueColor profile so all background styling produces ANSI codes
	// Without this, lipgloss may default to Ascii profile (no colors)
	lipgloss.SetColorProfile(termenv.TrueColor)

	s, err := openSession()
	if err != nil {
		return err
	}
	defer s.Close()

	// Log lines would tear the alternate screen.
	log := zerolog.Nop()

	opts := tui.Options{
		Ledger:    s.ledger,
		NeedSetup: !config.Exists(),
	}

	// Another process owning delivery leaves the dashboard observing. A
	// daemon still reports its delivery state and takes sync requests.
	var worker *daemon.Worker
	var reporter daemon.Reporter
	owner, busy := deliveryOwner(s)
	switch {
	case busy && owner.Role == syncq.RoleDaemon:
		addr, _ := runningDaemonAddr(s)
		reporter = daemon.RemoteReporter{Addr: addr}
		opts.Wake = func() error { return daemon.Wake(addr) }
	case busy:
	default:
		backend, err := openBackend()
		switch {
		case err == nil:
			defer func() { _ = backend.Close() }()
			worker = daemon.NewWorker(daemon.WorkerConfig{
				Queue:    s.ledger.Queue(),
				Backend:  backend,
				Interval: config.SyncInterval(appCfg),
				Role:     syncq.RoleDashboard,
				Logger:   log,
			})
			reporter = worker
		case !errors.Is(err, remote.ErrNoBackend):
			return err
		}
	}
	opts.Worker = worker
	opts.Observer = daemon.NewObserver(s.ledger.Queue(), reporter, log)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	if worker != nil {
		go func() {
			defer close(done)
			_ = worker.Run(ctx)
		}()
	} else {
		close(done)
	}

	p := tea.NewProgram(tui.NewApp(opts), tea.WithAltScreen())
	_, runErr := p.Run()

	// Stopping the worker makes one last bounded delivery attempt.
	cancel()
	<-done

	if runErr != nil {
		return fmt.Errorf("TUI error: %w", runErr)
	}
	if n := s.ledger.Queue().Len(); n > 0 && !flagQuiet {
		fmt.Printf("  %d change(s) still queued for sync\n", n)
	}
	return nil
}
