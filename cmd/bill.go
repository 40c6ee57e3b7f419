package cmd

import (
	"fmt"
	"sort"
	"time"

	"github.com/theirongolddev/fintrack/internal/cli"
	"github.com/theirongolddev/fintrack/internal/model"
	"github.com/theirongolddev/fintrack/internal/pipeline"

	"github.com/spf13/cobra"
)

var (
	flagBillDue    string
	flagBillFreq   string
	flagBillUnpaid bool
	flagBillDays   int
)

var billCmd = &cobra.Command{
	Use:     "bill",
	Aliases: []string{"bills"},
	Short:   "Track bills and due dates",
}

var billAddCmd = &cobra.Command{
	Use:   "add <name> <amount>",
	Short: "Add a bill",
	Args:  cobra.ExactArgs(2),
	RunE:  runBillAdd,
}

var billListCmd = &cobra.Command{
	Use:   "list",
	Short: "List bills by due date",
	RunE:  runBillList,
}

var billDueCmd = &cobra.Command{
	Use:   "due",
	Short: "Show overdue bills and bills due soon",
	RunE:  runBillDue,
}

var billPayCmd = &cobra.Command{
	Use:   "pay <id>",
	Short: "Mark a bill paid (recurring bills roll over to the next due date)",
	Args:  cobra.ExactArgs(1),
	RunE:  runBillPay,
}

var billDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a bill",
	Args:  cobra.ExactArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		return deleteRecord(model.EntityBill, args[0], func(s *session) []string {
			return recordIDs(s.ledger.Bills())
		})
	},
}

func init() {
	billAddCmd.Flags().StringVar(&flagBillDue, "due", "", "Due date as YYYY-MM-DD (required)")
	billAddCmd.Flags().StringVar(&flagBillFreq, "frequency", "", "Repeat weekly, monthly or yearly")
	_ = billAddCmd.MarkFlagRequired("due")
	billListCmd.Flags().BoolVar(&flagBillUnpaid, "unpaid", false, "Only unpaid bills")
	billDueCmd.Flags().IntVarP(&flagBillDays, "days", "n", 7, "Look-ahead window in days")

	billCmd.AddCommand(billAddCmd, billListCmd, billDueCmd, billPayCmd, billDeleteCmd)
	rootCmd.AddCommand(billCmd)
}

func runBillAdd(_ *cobra.Command, args []string) error {
	amount, err := parseAmount(args[1])
	if err != nil {
		return err
	}
	due, err := parseDate(flagBillDue, time.Now())
	if err != nil {
		return err
	}
	freq, err := parseFrequency(flagBillFreq)
	if err != nil {
		return err
	}

	return mutate(func(s *session) error {
		w, err := s.workspace()
		if err != nil {
			return err
		}
		saved, err := s.ledger.AddBill(model.Bill{
			Name:      args[0],
			Amount:    amount,
			DueDate:   due,
			Frequency: freq,
			Workspace: w,
		})
		if err != nil {
			return err
		}
		fmt.Printf("  Added bill %q due %s (%s)\n", saved.Name, cli.FormatDate(saved.DueDate), cli.ShortID(saved.ID))
		return nil
	})
}

func runBillList(_ *cobra.Command, _ []string) error {
	return withSession(func(s *session) error {
		w, err := s.workspace()
		if err != nil {
			return err
		}
		bills := pipeline.FilterByWorkspace(s.ledger.Bills(), w)
		if flagBillUnpaid {
			var unpaid []model.Bill
			for _, b := range bills {
				if b.Status == model.BillUnpaid {
					unpaid = append(unpaid, b)
				}
			}
			bills = unpaid
		}
		if len(bills) == 0 {
			fmt.Printf("\n  No %s bills.\n\n", w)
			return nil
		}
		sort.SliceStable(bills, func(i, j int) bool { return bills[i].DueDate.Before(bills[j].DueDate) })
		printBills(fmt.Sprintf("Bills · %s", w), bills, s.ledger.Currency())
		return nil
	})
}

func runBillDue(_ *cobra.Command, _ []string) error {
	return withSession(func(s *session) error {
		w, err := s.workspace()
		if err != nil {
			return err
		}
		upcoming, overdue := pipeline.BillsDue(pipeline.FilterByWorkspace(s.ledger.Bills(), w), time.Now(), flagBillDays)
		cur := s.ledger.Currency()
		if len(overdue) == 0 && len(upcoming) == 0 {
			fmt.Printf("\n  Nothing due in the next %d days.\n\n", flagBillDays)
			return nil
		}
		if len(overdue) > 0 {
			printBills("Overdue", overdue, cur)
		}
		if len(upcoming) > 0 {
			printBills(fmt.Sprintf("Due in the next %d days", flagBillDays), upcoming, cur)
		}
		return nil
	})
}

func printBills(title string, bills []model.Bill, cur string) {
	rows := make([][]string, 0, len(bills))
	for _, b := range bills {
		freq := string(b.Frequency)
		if freq == "" {
			freq = "once"
		}
		rows = append(rows, []string{
			cli.ShortID(b.ID), b.Name, cli.FormatDate(b.DueDate), freq, string(b.Status),
			cli.FormatMoney(b.Amount, cur),
		})
	}
	fmt.Println()
	fmt.Print(cli.RenderTable(cli.Table{
		Title:     title,
		Headers:   []string{"ID", "Name", "Due", "Repeats", "Status", "Amount"},
		Rows:      rows,
		LeftAlign: []int{1, 2, 3, 4},
	}))
	fmt.Println()
}

func runBillPay(_ *cobra.Command, args []string) error {
	return mutate(func(s *session) error {
		id, err := matchID(model.EntityBill, args[0], recordIDs(s.ledger.Bills()))
		if err != nil {
			return err
		}
		paid, next, err := s.ledger.MarkBillPaid(id)
		if err != nil {
			return explain(err)
		}
		fmt.Printf("  Paid %q (%s)\n", paid.Name, cli.FormatMoney(paid.Amount, s.ledger.Currency()))
		if next != nil {
			fmt.Printf("  Next %q due %s (%s)\n", next.Name, cli.FormatDate(next.DueDate), cli.ShortID(next.ID))
		}
		return nil
	})
}
