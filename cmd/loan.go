package cmd

import (
	"fmt"
	"time"

	"github.com/theirongolddev/fintrack/internal/cli"
	"github.com/theirongolddev/fintrack/internal/model"
	"github.com/theirongolddev/fintrack/internal/pipeline"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

var (
	flagLoanRate  string
	flagLoanTerm  int
	flagLoanStart string
)

var loanCmd = &cobra.Command{
	Use:     "loan",
	Aliases: []string{"loans"},
	Short:   "Track loans and repayments",
}

var loanAddCmd = &cobra.Command{
	Use:   "add <lender> <principal>",
	Short: "Add a loan",
	Args:  cobra.ExactArgs(2),
	RunE:  runLoanAdd,
}

var loanListCmd = &cobra.Command{
	Use:   "list",
	Short: "List loans with monthly payment and payoff progress",
	RunE:  runLoanList,
}

var loanPayCmd = &cobra.Command{
	Use:   "pay <id> <amount>",
	Short: "Record a repayment",
	Args:  cobra.ExactArgs(2),
	RunE:  runLoanPay,
}

var loanDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a loan",
	Args:  cobra.ExactArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		return deleteRecord(model.EntityLoan, args[0], func(s *session) []string {
			return recordIDs(s.ledger.Loans())
		})
	},
}

func init() {
	loanAddCmd.Flags().StringVar(&flagLoanRate, "rate", "0", "Annual interest rate in percent")
	loanAddCmd.Flags().IntVar(&flagLoanTerm, "term", 12, "Term in months")
	loanAddCmd.Flags().StringVar(&flagLoanStart, "start", "", "Start date as YYYY-MM-DD (default today)")

	loanCmd.AddCommand(loanAddCmd, loanListCmd, loanPayCmd, loanDeleteCmd)
	rootCmd.AddCommand(loanCmd)
}

func runLoanAdd(_ *cobra.Command, args []string) error {
	principal, err := parseAmount(args[1])
	if err != nil {
		return err
	}
	rate, err := parseAmount(flagLoanRate)
	if err != nil {
		return err
	}
	start, err := parseDate(flagLoanStart, time.Now())
	if err != nil {
		return err
	}

	return mutate(func(s *session) error {
		w, err := s.workspace()
		if err != nil {
			return err
		}
		saved, err := s.ledger.AddLoan(model.Loan{
			Lender:       args[0],
			Principal:    principal,
			InterestRate: rate,
			TermMonths:   flagLoanTerm,
			StartDate:    start,
			Workspace:    w,
		})
		if err != nil {
			return err
		}
		monthly := pipeline.MonthlyPayment(saved.Principal, saved.InterestRate, saved.TermMonths)
		fmt.Printf("  Added loan from %s (%s), %s/month over %d months\n", saved.Lender, cli.ShortID(saved.ID),
			cli.FormatMoney(monthly, s.ledger.Currency()), saved.TermMonths)
		return nil
	})
}

func runLoanList(_ *cobra.Command, _ []string) error {
	return withSession(func(s *session) error {
		w, err := s.workspace()
		if err != nil {
			return err
		}
		cur := s.ledger.Currency()
		loans := pipeline.Loans(pipeline.FilterByWorkspace(s.ledger.Loans(), w))
		if len(loans) == 0 {
			fmt.Printf("\n  No %s loans.\n\n", w)
			return nil
		}

		rows := make([][]string, 0, len(loans))
		owed := decimal.Zero
		for _, lp := range loans {
			ln := lp.Loan
			owed = owed.Add(ln.Remaining)
			rows = append(rows, []string{
				cli.ShortID(ln.ID), ln.Lender, ln.InterestRate.String() + "%",
				cli.FormatMoney(ln.Principal, cur), cli.FormatMoney(ln.Remaining, cur),
				cli.FormatMoney(lp.MonthlyPayment, cur), cli.RenderProgressBar(lp.PaidPercent, 10),
			})
		}
		fmt.Println()
		fmt.Print(cli.RenderTable(cli.Table{
			Title:     fmt.Sprintf("Loans · %s", w),
			Headers:   []string{"ID", "Lender", "Rate", "Principal", "Remaining", "Monthly", "Paid"},
			Rows:      rows,
			LeftAlign: []int{1},
		}))
		fmt.Printf("  Total owed %s\n\n", cli.FormatMoney(owed, cur))
		return nil
	})
}

func runLoanPay(_ *cobra.Command, args []string) error {
	amount, err := parseAmount(args[1])
	if err != nil {
		return err
	}
	return mutate(func(s *session) error {
		id, err := matchID(model.EntityLoan, args[0], recordIDs(s.ledger.Loans()))
		if err != nil {
			return err
		}
		ln, err := s.ledger.RecordLoanPayment(id, amount)
		if err != nil {
			return explain(err)
		}
		cur := s.ledger.Currency()
		if ln.Status == model.LoanPaid {
			fmt.Printf("  Loan from %s is paid off\n", ln.Lender)
			return nil
		}
		fmt.Printf("  Paid %s to %s, %s remaining\n", cli.FormatMoney(amount, cur), ln.Lender, cli.FormatMoney(ln.Remaining, cur))
		return nil
	})
}
