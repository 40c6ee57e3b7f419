package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/theirongolddev/fintrack/internal/cli"
	"github.com/theirongolddev/fintrack/internal/model"
	"github.com/theirongolddev/fintrack/internal/pipeline"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

var flagSummaryMonth string

var summaryCmd = &cobra.Command{
	Use:   "summary",
	Short: "Monthly income, spending, budgets and what's due",
	RunE:  runSummary,
}

func init() {
	summaryCmd.Flags().StringVar(&flagSummaryMonth, "month", "", "Month as YYYY-MM (default current month)")
	rootCmd.AddCommand(summaryCmd)
}

func runSummary(_ *cobra.Command, _ []string) error {
	now := time.Now()
	ref := now
	if flagSummaryMonth != "" {
		t, err := time.ParseInLocation("2006-01", flagSummaryMonth, time.Local)
		if err != nil {
			return fmt.Errorf("%w: month %q (want YYYY-MM)", model.ErrInvalid, flagSummaryMonth)
		}
		ref = t
	}

	return withSession(func(s *session) error {
		w, err := s.workspace()
		if err != nil {
			return err
		}
		cur := s.ledger.Currency()
		txs := pipeline.FilterByWorkspace(s.ledger.Transactions(), w)

		since, until := pipeline.PeriodBounds(model.Monthly, ref)
		stats := pipeline.Aggregate(txs, since, until)
		prev := pipeline.Aggregate(txs, since.AddDate(0, -1, 0), since)

		fmt.Println()
		fmt.Println(cli.RenderTitle(fmt.Sprintf("%s  ·  %s", since.Format("JANUARY 2006"), w)))
		fmt.Println()

		if stats.Transactions == 0 && len(txs) == 0 {
			fmt.Println("  No transactions yet.")
			fmt.Println("  Record one with: fintrack tx add 12.50 \"Lunch\" --category Food")
			fmt.Println()
			return nil
		}

		rows := [][]string{
			{"Income", cli.FormatMoney(stats.Income, cur), deltaCell(stats.Income.Sub(prev.Income), prev.Income.IsZero(), cur)},
			{"Expenses", cli.FormatMoney(stats.Expense, cur), deltaCell(stats.Expense.Sub(prev.Expense), prev.Expense.IsZero(), cur)},
			{"Net", cli.RenderAmount(stats.Net, cur), deltaCell(stats.Net.Sub(prev.Net), prev.Transactions == 0, cur)},
			{"Transactions", cli.FormatNumber(int64(stats.Transactions)), ""},
		}
		fmt.Print(cli.RenderTable(cli.Table{
			Headers: []string{"Metric", "This month", "vs last month"},
			Rows:    rows,
		}))

		months := pipeline.AggregateMonths(txs, since.AddDate(0, -5, 0), until)
		spend := make([]float64, len(months))
		for i, m := range months {
			spend[len(months)-1-i] = m.Expense.InexactFloat64()
		}
		fmt.Printf("\n  Spending, last %d months  %s\n", len(months), cli.RenderSparkline(spend))

		// Top spending categories
		var expenses []pipeline.CategoryTotal
		for _, ct := range pipeline.AggregateCategories(txs, since, until) {
			if ct.Type == model.Expense {
				expenses = append(expenses, ct)
			}
		}
		if len(expenses) > 0 {
			if len(expenses) > 5 {
				expenses = expenses[:5]
			}
			maxVal := expenses[0].Amount.InexactFloat64()
			fmt.Println()
			fmt.Println("  Top spending")
			for _, ct := range expenses {
				fmt.Printf("%s  %s\n", cli.RenderHorizontalBar(ct.Category, ct.Amount.InexactFloat64(), maxVal, 24),
					cli.FormatMoney(ct.Amount, cur))
			}
		}

		budgets := pipeline.Budgets(pipeline.FilterByWorkspace(s.ledger.Categories(), w), txs, ref)
		if len(budgets) > 0 {
			brows := make([][]string, 0, len(budgets))
			for _, bp := range budgets {
				brows = append(brows, []string{
					bp.Category.Name, string(bp.Category.Frequency),
					cli.FormatMoney(bp.Spent, cur), cli.FormatMoney(bp.Budget, cur),
					cli.RenderProgressBar(bp.Percent, 12),
				})
			}
			fmt.Println()
			fmt.Print(cli.RenderTable(cli.Table{
				Title:     "Budgets",
				Headers:   []string{"Category", "Period", "Spent", "Budget", "Used"},
				Rows:      brows,
				LeftAlign: []int{1},
			}))
		}

		upcoming, overdue := pipeline.BillsDue(pipeline.FilterByWorkspace(s.ledger.Bills(), w), now, 7)
		if len(overdue) > 0 {
			fmt.Println()
			fmt.Println("  " + cli.RenderWarning(fmt.Sprintf("%d overdue bill(s); see `fintrack bill due`", len(overdue))))
		}
		if len(upcoming) > 0 {
			fmt.Printf("\n  %d bill(s) due in the next 7 days\n", len(upcoming))
		}

		if n := s.ledger.Queue().Len(); n > 0 {
			fmt.Fprintf(os.Stderr, "\n  %d change(s) waiting to sync; see `fintrack queue`\n", n)
		}
		fmt.Println()
		return nil
	})
}

func deltaCell(d decimal.Decimal, noBaseline bool, cur string) string {
	if noBaseline {
		return "-"
	}
	return cli.FormatSigned(d, cur)
}
