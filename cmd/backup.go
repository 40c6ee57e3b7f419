package cmd

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/theirongolddev/fintrack/internal/backup"
	"github.com/theirongolddev/fintrack/internal/model"

	"github.com/spf13/cobra"
)

var exportCmd = &cobra.Command{
	Use:   "export [file|dir|-]",
	Short: "Write every record to a JSON Lines backup",
	Long: "Write every record to a JSON Lines backup. With no argument a dated file\n" +
		"is created in the current directory; \"-\" writes to stdout.",
	Args: cobra.MaximumNArgs(1),
	RunE: runExport,
}

var importCmd = &cobra.Command{
	Use:   "import <file|dir>",
	Short: "Restore records from JSON Lines backups",
	Long: "Restore records from a backup file, or from every .jsonl file in a directory.\n" +
		"Records keep their ids, so importing the same backup twice is harmless.\n" +
		"Imported records are queued for sync like any other change.",
	Args: cobra.ExactArgs(1),
	RunE: runImport,
}

func init() {
	rootCmd.AddCommand(exportCmd, importCmd)
}

func runExport(_ *cobra.Command, args []string) error {
	return withSession(func(s *session) error {
		target := backup.FileName(time.Now().Format("20060102-150405"))
		if len(args) == 1 {
			target = args[0]
			if info, err := os.Stat(target); err == nil && info.IsDir() {
				target = filepath.Join(target, backup.FileName(time.Now().Format("20060102-150405")))
			}
		}

		var w io.Writer = os.Stdout
		if target != "-" {
			f, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600) //nolint:gosec // path chosen by the user
			if err != nil {
				return fmt.Errorf("creating backup: %w", err)
			}
			defer func() { _ = f.Close() }()
			w = f
		}

		n, err := backup.Write(w, s.ledger)
		if err != nil {
			return fmt.Errorf("writing backup: %w", err)
		}
		if target != "-" && !flagQuiet {
			fmt.Printf("  Exported %d record(s) to %s\n", n, target)
		}
		return nil
	})
}

func runImport(_ *cobra.Command, args []string) error {
	files, err := backup.ScanDir(args[0])
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return fmt.Errorf("no .jsonl files in %s", args[0])
	}

	var (
		set                  backup.Set
		skipped, parseErrors int
	)
	for _, path := range files {
		res := backup.ParseFile(path)
		if res.Err != nil {
			return fmt.Errorf("reading %s: %w", path, res.Err)
		}
		logger.Debug().Str("file", path).Int("records", res.Set.Len()).Int("errors", res.ParseErrors).Msg("parsed backup")
		merge(&set, res.Set)
		skipped += res.Skipped
		parseErrors += res.ParseErrors
	}
	if set.Len() == 0 {
		return backup.ErrEmpty
	}

	return mutate(func(s *session) error {
		res := backup.Apply(s.ledger, set)
		if flagQuiet {
			return nil
		}
		fmt.Printf("  Imported %d record(s) from %d file(s)\n", res.Total(), len(files))
		for _, kind := range model.EntityTypes {
			if n := res.Applied[kind]; n > 0 {
				fmt.Printf("    %-12s %d\n", kind, n)
			}
		}
		if res.Rejected > 0 {
			fmt.Fprintf(os.Stderr, "  %d record(s) rejected, first: %s\n", res.Rejected, explain(res.Err))
		}
		if parseErrors > 0 {
			fmt.Fprintf(os.Stderr, "  %d unreadable line(s) ignored\n", parseErrors)
		}
		if skipped > 0 {
			fmt.Fprintf(os.Stderr, "  %d line(s) of unknown kinds skipped\n", skipped)
		}
		return nil
	})
}

// merge appends src to dst. Later files win on Apply since records with a
// known id replace the earlier copy.
func merge(dst *backup.Set, src backup.Set) {
	dst.Transactions = append(dst.Transactions, src.Transactions...)
	dst.Categories = append(dst.Categories, src.Categories...)
	dst.Bills = append(dst.Bills, src.Bills...)
	dst.Loans = append(dst.Loans, src.Loans...)
	dst.Goals = append(dst.Goals, src.Goals...)
	dst.Clients = append(dst.Clients, src.Clients...)
	dst.Products = append(dst.Products, src.Products...)
	dst.Quotes = append(dst.Quotes, src.Quotes...)
}
