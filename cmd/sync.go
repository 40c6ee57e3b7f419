package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/theirongolddev/fintrack/internal/daemon"
	"github.com/theirongolddev/fintrack/internal/remote"
	"github.com/theirongolddev/fintrack/internal/syncq"

	"github.com/spf13/cobra"
)

var flagSyncTimeout time.Duration

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Deliver queued changes to the backend now",
	Long: "Deliver queued changes in order. Stops at the first failure and keeps\n" +
		"the remaining changes queued. When a daemon is running it is asked to\n" +
		"sync instead.",
	RunE: runSync,
}

func init() {
	syncCmd.Flags().DurationVar(&flagSyncTimeout, "timeout", 30*time.Second, "Give up after this long")
	rootCmd.AddCommand(syncCmd)
}

func runSync(_ *cobra.Command, _ []string) error {
	return withSession(func(s *session) error {
		if owner, busy := deliveryOwner(s); busy {
			if owner.Role == syncq.RoleDaemon {
				addr, _ := runningDaemonAddr(s)
				return wakeDaemon(addr)
			}
			fmt.Printf("  Another fintrack process (%s) is syncing; changes stay queued.\n", owner)
			return nil
		}

		q := s.ledger.Queue()
		if q.Len() == 0 {
			fmt.Println("  Nothing to sync.")
			return nil
		}

		backend, err := openBackend()
		if errors.Is(err, remote.ErrNoBackend) {
			fmt.Printf("  %d change(s) queued; no sync backend configured (run `fintrack setup`).\n", q.Len())
			return nil
		}
		if err != nil {
			return err
		}
		defer func() { _ = backend.Close() }()

		ctx, cancel := context.WithTimeout(context.Background(), flagSyncTimeout)
		defer cancel()

		if err := backend.Ping(ctx); err != nil {
			fmt.Printf("  Backend unreachable; %d change(s) stay queued.\n", q.Len())
			logger.Debug().Err(err).Msg("ping")
			return nil
		}

		w := daemon.NewWorker(daemon.WorkerConfig{
			Queue:   q,
			Backend: backend,
			Role:    syncq.RoleCLI,
			Logger:  logger.With().Str("component", "worker").Logger(),
		})
		defer w.Release()
		if !flagQuiet {
			fmt.Fprintf(os.Stderr, "  Syncing %d change(s)...\n", q.Len())
		}
		n, err := w.Drain(ctx)
		left := q.Len()
		fmt.Printf("  Delivered %d, %d remaining\n", n, left)
		switch {
		case err == nil || left == 0:
		case errors.Is(err, syncq.ErrOwned), errors.Is(err, syncq.ErrClaimed):
			fmt.Println("  Another fintrack process started syncing; it will deliver the rest.")
		case remote.Retryable(err):
			fmt.Printf("  Stopped: %v (will retry)\n", err)
		default:
			return fmt.Errorf("sync stopped: %w", err)
		}
		return nil
	})
}

func wakeDaemon(addr string) error {
	if err := daemon.Wake(addr); err != nil {
		return err
	}
	fmt.Println("  Asked the running daemon to sync. Check progress with `fintrack queue`.")
	return nil
}
