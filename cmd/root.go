package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/theirongolddev/fintrack/internal/config"
	"github.com/theirongolddev/fintrack/internal/daemon"
	"github.com/theirongolddev/fintrack/internal/ledger"
	"github.com/theirongolddev/fintrack/internal/model"
	"github.com/theirongolddev/fintrack/internal/remote"
	"github.com/theirongolddev/fintrack/internal/store"
	"github.com/theirongolddev/fintrack/internal/syncq"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var (
	flagDBPath    string
	flagWorkspace string
	flagQuiet     bool
	flagVerbose   bool
	flagNoSync    bool
)

// Process-wide state set up before every command.
var (
	appCfg config.Config
	logger = zerolog.Nop()
)

var rootCmd = &cobra.Command{
	Use:   "fintrack",
	Short: "Local-first personal and business finance tracker",
	Long: "Track transactions, budgets, bills, loans, savings goals and quotes.\n" +
		"Every change is saved locally first and synced when a backend is reachable.",
	SilenceUsage:      true,
	PersistentPreRunE: setup,
	RunE:              runSummary,
}

// Execute is the main entry point called from main.go.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagDBPath, "db", "", "Local database path (default "+store.DefaultPath()+")")
	rootCmd.PersistentFlags().StringVarP(&flagWorkspace, "workspace", "w", "", "Workspace to use: personal or business (default: saved preference)")
	rootCmd.PersistentFlags().BoolVarP(&flagQuiet, "quiet", "q", false, "Suppress progress output")
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "Log sync activity to stderr")
	rootCmd.PersistentFlags().BoolVar(&flagNoSync, "no-sync", false, "Only queue changes; skip the sync attempt after writes")
}

func setup(_ *cobra.Command, _ []string) error {
	config.LoadEnv()

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	appCfg = cfg

	level := zerolog.WarnLevel
	switch {
	case flagQuiet:
		level = zerolog.ErrorLevel
	case flagVerbose:
		level = zerolog.DebugLevel
	}
	logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}).
		Level(level).
		With().Timestamp().Logger()
	return nil
}

func dbPath() string {
	if flagDBPath != "" {
		return flagDBPath
	}
	if appCfg.General.DBPath != "" {
		return appCfg.General.DBPath
	}
	return store.DefaultPath()
}

// session bundles what a command needs to read and write finance data.
type session struct {
	db     *store.DB
	ledger *ledger.Ledger
}

func (s *session) Close() {
	_ = s.db.Close()
}

// openSession opens the local store and loads the ledger. The --workspace
// flag, when set, overrides the saved preference for this invocation only.
func openSession() (*session, error) {
	db, err := store.Open(dbPath())
	if err != nil {
		return nil, err
	}
	l, err := ledger.Open(ledger.Config{
		Storage: db,
		Logger:  logger.With().Str("component", "ledger").Logger(),
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("loading local data: %w", err)
	}
	return &session{db: db, ledger: l}, nil
}

// workspace resolves the workspace for new records and listings.
func (s *session) workspace() (model.Workspace, error) {
	if flagWorkspace != "" {
		return model.ParseWorkspace(flagWorkspace)
	}
	return s.ledger.Workspace(), nil
}

func openBackend() (remote.Backend, error) {
	return remote.New(config.Remote(appCfg))
}

// syncAfterWrite makes one bounded delivery attempt so changes reach the
// backend right away when it is reachable. It is skipped when another
// process owns delivery or no backend is configured; either way the change
// stays queued.
func (s *session) syncAfterWrite() {
	if flagNoSync {
		return
	}
	if _, busy := deliveryOwner(s); busy {
		return
	}
	backend, err := openBackend()
	if err != nil {
		if !errors.Is(err, remote.ErrNoBackend) {
			logger.Warn().Err(err).Msg("sync backend unavailable")
		}
		return
	}
	defer func() { _ = backend.Close() }()

	w := daemon.NewWorker(daemon.WorkerConfig{
		Queue:   s.ledger.Queue(),
		Backend: backend,
		Role:    syncq.RoleCLI,
		Logger:  logger.With().Str("component", "worker").Logger(),
	})
	defer w.Release()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := w.Drain(ctx); err != nil {
		logger.Debug().Err(err).Msg("sync after write")
	}
	if n := s.ledger.Queue().Len(); n > 0 && !flagQuiet {
		fmt.Fprintf(os.Stderr, "  %d change(s) queued for sync\n", n)
	}
}

// withSession runs fn against an open session and closes it afterwards.
func withSession(fn func(*session) error) error {
	s, err := openSession()
	if err != nil {
		return err
	}
	defer s.Close()
	return fn(s)
}

// mutate runs fn and then attempts a sync of whatever it queued.
func mutate(fn func(*session) error) error {
	return withSession(func(s *session) error {
		if err := fn(s); err != nil {
			return err
		}
		if n := s.ledger.PersistFailures(); n > 0 {
			fmt.Fprintf(os.Stderr, "  warning: %d write(s) could not be saved to disk\n", n)
		}
		s.syncAfterWrite()
		return nil
	})
}
