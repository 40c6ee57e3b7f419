package cmd

import (
	"fmt"
	"time"

	"github.com/theirongolddev/fintrack/internal/cli"
	"github.com/theirongolddev/fintrack/internal/model"
	"github.com/theirongolddev/fintrack/internal/pipeline"

	"github.com/spf13/cobra"
)

var (
	flagTxType     string
	flagTxCategory string
	flagTxDate     string
	flagTxDesc     string
	flagTxAmount   string
	flagTxDays     int
)

var txCmd = &cobra.Command{
	Use:     "tx",
	Aliases: []string{"transaction", "transactions"},
	Short:   "Record and list income and expenses",
}

var txAddCmd = &cobra.Command{
	Use:   "add <amount> [description]",
	Short: "Record a transaction",
	Args:  cobra.RangeArgs(1, 2),
	RunE:  runTxAdd,
}

var txListCmd = &cobra.Command{
	Use:   "list",
	Short: "List transactions",
	RunE:  runTxList,
}

var txUpdateCmd = &cobra.Command{
	Use:   "update <id>",
	Short: "Change fields of a transaction",
	Args:  cobra.ExactArgs(1),
	RunE:  runTxUpdate,
}

var txDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a transaction",
	Args:  cobra.ExactArgs(1),
	RunE:  runTxDelete,
}

func init() {
	for _, c := range []*cobra.Command{txAddCmd, txUpdateCmd} {
		c.Flags().StringVarP(&flagTxType, "type", "t", "", "income or expense (default expense)")
		c.Flags().StringVarP(&flagTxCategory, "category", "c", "", "Category name")
		c.Flags().StringVar(&flagTxDate, "date", "", "Date as YYYY-MM-DD, today or yesterday (default today)")
	}
	txUpdateCmd.Flags().StringVar(&flagTxDesc, "desc", "", "New description")
	txUpdateCmd.Flags().StringVar(&flagTxAmount, "amount", "", "New amount")
	txListCmd.Flags().IntVarP(&flagTxDays, "days", "n", 30, "Time window in days")
	txListCmd.Flags().StringVarP(&flagTxCategory, "category", "c", "", "Filter to category")

	txCmd.AddCommand(txAddCmd, txListCmd, txUpdateCmd, txDeleteCmd)
	rootCmd.AddCommand(txCmd)
}

func runTxAdd(_ *cobra.Command, args []string) error {
	amount, err := parseAmount(args[0])
	if err != nil {
		return err
	}
	typ, err := parseFlow(flagTxType)
	if err != nil {
		return err
	}
	date, err := parseDate(flagTxDate, time.Now())
	if err != nil {
		return err
	}
	tx := model.Transaction{
		Amount:   amount,
		Type:     typ,
		Category: flagTxCategory,
		Date:     date,
	}
	if len(args) > 1 {
		tx.Description = args[1]
	}

	return mutate(func(s *session) error {
		w, err := s.workspace()
		if err != nil {
			return err
		}
		tx.Workspace = w
		saved, err := s.ledger.AddTransaction(tx)
		if err != nil {
			return err
		}
		fmt.Printf("  Recorded %s %s (%s)\n", saved.Type,
			cli.FormatMoney(saved.Amount, s.ledger.Currency()), cli.ShortID(saved.ID))
		return nil
	})
}

func runTxList(_ *cobra.Command, _ []string) error {
	return withSession(func(s *session) error {
		w, err := s.workspace()
		if err != nil {
			return err
		}
		cur := s.ledger.Currency()
		now := time.Now()
		txs := pipeline.FilterByWorkspace(s.ledger.Transactions(), w)
		txs = pipeline.FilterByTime(txs, now.AddDate(0, 0, -flagTxDays), now.Add(24*time.Hour))
		if flagTxCategory != "" {
			txs = pipeline.FilterByCategory(txs, model.Category{Name: flagTxCategory})
		}
		if len(txs) == 0 {
			fmt.Printf("\n  No %s transactions in the last %d days.\n\n", w, flagTxDays)
			return nil
		}

		rows := make([][]string, 0, len(txs))
		for i := len(txs) - 1; i >= 0; i-- {
			tx := txs[i]
			rows = append(rows, []string{
				cli.ShortID(tx.ID),
				cli.FormatDate(tx.Date),
				tx.Description,
				tx.Category,
				cli.RenderAmount(tx.Signed(), cur),
			})
		}
		totals := pipeline.Aggregate(txs, time.Time{}, now.Add(24*time.Hour))

		fmt.Println()
		fmt.Print(cli.RenderTable(cli.Table{
			Title:     fmt.Sprintf("Transactions · %s · last %dd", w, flagTxDays),
			Headers:   []string{"ID", "Date", "Description", "Category", "Amount"},
			Rows:      rows,
			LeftAlign: []int{1, 2, 3},
		}))
		fmt.Printf("  Income %s  Expense %s  Net %s\n\n",
			cli.FormatMoney(totals.Income, cur),
			cli.FormatMoney(totals.Expense, cur),
			cli.FormatSigned(totals.Net, cur))
		return nil
	})
}

func runTxUpdate(c *cobra.Command, args []string) error {
	return mutate(func(s *session) error {
		id, err := matchID(model.EntityTransaction, args[0], recordIDs(s.ledger.Transactions()))
		if err != nil {
			return err
		}
		tx, _ := s.ledger.Transaction(id)

		f := c.Flags()
		if f.Changed("amount") {
			if tx.Amount, err = parseAmount(flagTxAmount); err != nil {
				return err
			}
		}
		if f.Changed("type") {
			if tx.Type, err = parseFlow(flagTxType); err != nil {
				return err
			}
		}
		if f.Changed("date") {
			if tx.Date, err = parseDate(flagTxDate, time.Now()); err != nil {
				return err
			}
		}
		if f.Changed("category") {
			tx.Category = flagTxCategory
		}
		if f.Changed("desc") {
			tx.Description = flagTxDesc
		}

		if _, err := s.ledger.UpdateTransaction(tx); err != nil {
			return err
		}
		fmt.Printf("  Updated transaction %s\n", cli.ShortID(id))
		return nil
	})
}

func runTxDelete(_ *cobra.Command, args []string) error {
	return deleteRecord(model.EntityTransaction, args[0], func(s *session) []string {
		return recordIDs(s.ledger.Transactions())
	})
}

// deleteRecord resolves an id prefix and removes the record.
func deleteRecord(kind model.EntityType, prefix string, ids func(*session) []string) error {
	return mutate(func(s *session) error {
		id, err := matchID(kind, prefix, ids(s))
		if err != nil {
			return err
		}
		if err := s.ledger.Delete(kind, id); err != nil {
			return explain(err)
		}
		fmt.Printf("  Deleted %s %s\n", kind, cli.ShortID(id))
		return nil
	})
}
