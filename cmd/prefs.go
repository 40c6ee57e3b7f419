package cmd

import (
	"fmt"
	"strings"

	"github.com/theirongolddev/fintrack/internal/model"

	"github.com/spf13/cobra"
)

var workspaceCmd = &cobra.Command{
	Use:       "workspace [personal|business]",
	Short:     "Show or switch the active workspace",
	Args:      cobra.MaximumNArgs(1),
	ValidArgs: []string{string(model.WorkspacePersonal), string(model.WorkspaceBusiness)},
	RunE:      runWorkspace,
}

var currencyCmd = &cobra.Command{
	Use:   "currency [code]",
	Short: "Show or set the display currency",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runCurrency,
}

func init() {
	rootCmd.AddCommand(workspaceCmd, currencyCmd)
}

// Preferences are stored locally and are not synced.
func runWorkspace(_ *cobra.Command, args []string) error {
	return withSession(func(s *session) error {
		if len(args) == 0 {
			fmt.Printf("  Workspace: %s\n", s.ledger.Workspace())
			return nil
		}
		w, err := model.ParseWorkspace(args[0])
		if err != nil {
			return err
		}
		if err := s.ledger.SetWorkspace(w); err != nil {
			return err
		}
		fmt.Printf("  Switched to %s workspace\n", w)
		return nil
	})
}

func runCurrency(_ *cobra.Command, args []string) error {
	return withSession(func(s *session) error {
		if len(args) == 0 {
			fmt.Printf("  Currency: %s\n", s.ledger.Currency())
			return nil
		}
		code := strings.ToUpper(strings.TrimSpace(args[0]))
		if len(code) != 3 {
			return fmt.Errorf("%w: currency must be a 3-letter code", model.ErrInvalid)
		}
		if err := s.ledger.SetCurrency(code); err != nil {
			return err
		}
		fmt.Printf("  Currency set to %s\n", code)
		return nil
	})
}
