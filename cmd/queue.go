package cmd

import (
	"fmt"
	"time"

	"github.com/theirongolddev/fintrack/internal/cli"
	"github.com/theirongolddev/fintrack/internal/config"
	"github.com/theirongolddev/fintrack/internal/daemon"
	"github.com/theirongolddev/fintrack/internal/syncq"

	"github.com/spf13/cobra"
)

var flagQueueLimit int

var queueCmd = &cobra.Command{
	Use:   "queue",
	Short: "Show changes waiting to be synced",
	RunE:  runQueue,
}

func init() {
	queueCmd.Flags().IntVarP(&flagQueueLimit, "limit", "l", 20, "Max entries to list (0 for all)")
	rootCmd.AddCommand(queueCmd)
}

func runQueue(_ *cobra.Command, _ []string) error {
	return withSession(func(s *session) error {
		obs := daemon.NewObserver(s.ledger.Queue(), nil, logger)
		st := obs.Snapshot()
		now := time.Now()

		// The daemon knows connectivity and delivery history; the local
		// snapshot only knows the queue.
		addr, daemonUp := runningDaemonAddr(s)
		if daemonUp {
			if ds, err := daemon.FetchStatus(addr); err == nil {
				st.Online = ds.Sync.Online
				st.LastSync = ds.Sync.LastSync
				st.Delivered = ds.Sync.Delivered
				if ds.Sync.LastError != "" {
					st.LastError = ds.Sync.LastError
				}
			}
		}

		fmt.Println()
		fmt.Println(cli.RenderTitle("SYNC QUEUE"))
		fmt.Println()

		backend := config.Remote(appCfg).Driver
		pairs := [][2]string{
			{"Backend", backend},
			{"Pending", fmt.Sprintf("%d (%d in flight)", st.QueueLength, st.InFlight)},
		}
		if st.QueueLength > 0 {
			pairs = append(pairs,
				[2]string{"Oldest", cli.FormatDuration(st.OldestAgeSec)},
				[2]string{"Max retry", fmt.Sprintf("%d", st.MaxRetry)})
		}
		owner, busy := deliveryOwner(s)
		switch {
		case daemonUp:
			pairs = append(pairs,
				[2]string{"Daemon", "running, " + onlineWord(st.Online)},
				[2]string{"Last sync", cli.FormatAgo(st.LastSync, now)})
		case busy:
			pairs = append(pairs, [2]string{"Syncing", owner.String()})
		default:
			pairs = append(pairs, [2]string{"Daemon", "not running"})
		}
		fmt.Print(cli.RenderKeyValues(pairs))

		if st.Unpersisted > 0 {
			fmt.Println()
			fmt.Println("  " + cli.RenderWarning(fmt.Sprintf("%d change(s) are only in memory", st.Unpersisted)))
		}
		if st.LastError != "" {
			fmt.Println()
			fmt.Println("  " + cli.RenderWarning("last error: "+st.LastError))
		}

		entries := obs.Entries()
		if len(entries) == 0 {
			fmt.Println("\n  Everything is synced.")
			fmt.Println()
			return nil
		}
		shown := entries
		if flagQueueLimit > 0 && len(shown) > flagQueueLimit {
			shown = shown[:flagQueueLimit]
		}

		rows := make([][]string, 0, len(shown))
		for i, e := range shown {
			state := "pending"
			if e.State == syncq.StateInFlight {
				state = "in flight"
			}
			rows = append(rows, []string{
				fmt.Sprintf("%d", i+1),
				string(e.Operation),
				string(e.Entity),
				cli.ShortID(e.EntityID),
				cli.FormatAgo(e.EnqueuedAt, now),
				fmt.Sprintf("%d", e.RetryCount),
				state,
			})
		}
		fmt.Println()
		fmt.Print(cli.RenderTable(cli.Table{
			Headers:   []string{"#", "Op", "Entity", "ID", "Queued", "Retries", "State"},
			Rows:      rows,
			LeftAlign: []int{1, 2, 3, 6},
		}))
		if len(shown) < len(entries) {
			fmt.Printf("  … and %d more\n", len(entries)-len(shown))
		}
		fmt.Println()
		return nil
	})
}
