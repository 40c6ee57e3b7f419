// Package cmd implements the fintrack CLI commands.
package cmd

import (
	"fmt"
	"os"

	"github.com/theirongolddev/fintrack/internal/config"
	"github.com/theirongolddev/fintrack/internal/remote"

	"github.com/spf13/cobra"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show current configuration",
	RunE:  runConfig,
}

func init() {
	rootCmd.AddCommand(configCmd)
}

func runConfig(_ *cobra.Command, _ []string) error {
	cfg := appCfg
	rc := config.Remote(cfg)

	fmt.Printf("  Config file: %s\n", config.ConfigPath())
	if config.Exists() {
		fmt.Println("  Status: loaded")
	} else {
		fmt.Println("  Status: using defaults (no config file)")
	}
	fmt.Printf("  Database: %s\n", dbPath())
	fmt.Println()

	fmt.Println("  [General]")
	fmt.Printf("    Default workspace: %s\n", cfg.General.Workspace)
	fmt.Printf("    Default currency:  %s\n", cfg.General.Currency)
	fmt.Println()

	fmt.Println("  [Backend]")
	fmt.Printf("    Driver:  %s\n", rc.Driver)
	switch rc.Driver {
	case remote.DriverPostgres:
		fmt.Printf("    DSN:     %s%s\n", maskSecret(rc.DSN), envNote(config.EnvDatabaseURL))
	case remote.DriverREST:
		fmt.Printf("    URL:     %s%s\n", rc.URL, envNote(config.EnvAPIURL))
		if rc.APIKey != "" {
			fmt.Printf("    API key: %s%s\n", maskSecret(rc.APIKey), envNote(config.EnvAPIKey))
		} else {
			fmt.Println("    API key: not configured")
		}
	case remote.DriverNone:
		fmt.Println("    Sync is off; changes stay queued locally.")
	}
	fmt.Printf("    Timeout: %ds\n", cfg.Backend.TimeoutSec)
	fmt.Println()

	fmt.Println("  [Sync]")
	fmt.Printf("    Retry interval: %s\n", config.SyncInterval(cfg))
	fmt.Printf("    Daemon address: %s\n", cfg.Sync.Addr)
	fmt.Printf("    Events buffer:  %d\n", cfg.Sync.EventsBuffer)
	fmt.Println()

	fmt.Println("  [Appearance]")
	fmt.Printf("    Theme: %s\n", cfg.Appearance.Theme)
	fmt.Println()

	fmt.Println("  Run `fintrack setup` to reconfigure.")
	return nil
}

func envNote(name string) string {
	if os.Getenv(name) != "" {
		return " (from $" + name + ")"
	}
	return ""
}

func maskSecret(key string) string {
	if len(key) > 16 {
		return key[:8] + "..." + key[len(key)-4:]
	}
	if len(key) > 4 {
		return key[:4] + "..."
	}
	return "****"
}
