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
	flagCatType   string
	flagCatBudget string
	flagCatFreq   string
	flagCatClear  bool
)

var categoryCmd = &cobra.Command{
	Use:     "category",
	Aliases: []string{"categories", "cat"},
	Short:   "Manage categories and their budgets",
}

var categoryAddCmd = &cobra.Command{
	Use:   "add <name>",
	Short: "Create a category",
	Args:  cobra.ExactArgs(1),
	RunE:  runCategoryAdd,
}

var categoryListCmd = &cobra.Command{
	Use:   "list",
	Short: "List categories with budget usage",
	RunE:  runCategoryList,
}

var categoryBudgetCmd = &cobra.Command{
	Use:   "budget <id> [amount]",
	Short: "Set or clear the budget of an expense category",
	Args:  cobra.RangeArgs(1, 2),
	RunE:  runCategoryBudget,
}

var categoryDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a category (transactions keep their category name)",
	Args:  cobra.ExactArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		return deleteRecord(model.EntityCategory, args[0], func(s *session) []string {
			return recordIDs(s.ledger.Categories())
		})
	},
}

func init() {
	categoryAddCmd.Flags().StringVarP(&flagCatType, "type", "t", "expense", "income or expense")
	categoryAddCmd.Flags().StringVar(&flagCatBudget, "budget", "", "Budget amount per period (expense only)")
	categoryAddCmd.Flags().StringVar(&flagCatFreq, "frequency", "monthly", "Budget period: weekly or monthly")
	categoryBudgetCmd.Flags().StringVar(&flagCatFreq, "frequency", "", "Budget period: weekly or monthly")
	categoryBudgetCmd.Flags().BoolVar(&flagCatClear, "clear", false, "Remove the budget")

	categoryCmd.AddCommand(categoryAddCmd, categoryListCmd, categoryBudgetCmd, categoryDeleteCmd)
	rootCmd.AddCommand(categoryCmd)
}

func runCategoryAdd(_ *cobra.Command, args []string) error {
	typ, err := parseFlow(flagCatType)
	if err != nil {
		return err
	}
	c := model.Category{Name: args[0], Type: typ}
	if flagCatBudget != "" {
		b, err := parseAmount(flagCatBudget)
		if err != nil {
			return err
		}
		c.Budget = &b
		if c.Frequency, err = parseFrequency(flagCatFreq); err != nil {
			return err
		}
	}

	return mutate(func(s *session) error {
		w, err := s.workspace()
		if err != nil {
			return err
		}
		c.Workspace = w
		saved, err := s.ledger.AddCategory(c)
		if err != nil {
			return err
		}
		fmt.Printf("  Created %s category %q (%s)\n", saved.Type, saved.Name, cli.ShortID(saved.ID))
		return nil
	})
}

func runCategoryList(_ *cobra.Command, _ []string) error {
	return withSession(func(s *session) error {
		w, err := s.workspace()
		if err != nil {
			return err
		}
		cur := s.ledger.Currency()
		cats := pipeline.FilterByWorkspace(s.ledger.Categories(), w)
		if len(cats) == 0 {
			fmt.Printf("\n  No %s categories yet. Create one with: fintrack category add <name>\n\n", w)
			return nil
		}

		progress := make(map[string]pipeline.BudgetProgress)
		for _, bp := range pipeline.Budgets(cats, s.ledger.Transactions(), time.Now()) {
			progress[bp.Category.ID] = bp
		}

		rows := make([][]string, 0, len(cats))
		for _, c := range cats {
			budget, used := "-", ""
			if bp, ok := progress[c.ID]; ok {
				budget = cli.FormatMoney(bp.Budget, cur) + "/" + string(c.Frequency)
				used = cli.RenderProgressBar(bp.Percent, 12)
			}
			rows = append(rows, []string{cli.ShortID(c.ID), c.Name, string(c.Type), budget, used})
		}

		fmt.Println()
		fmt.Print(cli.RenderTable(cli.Table{
			Title:     fmt.Sprintf("Categories · %s", w),
			Headers:   []string{"ID", "Name", "Type", "Budget", "Used"},
			Rows:      rows,
			LeftAlign: []int{1, 2},
		}))
		fmt.Println()
		return nil
	})
}

func runCategoryBudget(c *cobra.Command, args []string) error {
	return mutate(func(s *session) error {
		id, err := matchID(model.EntityCategory, args[0], recordIDs(s.ledger.Categories()))
		if err != nil {
			return err
		}
		cat, _ := s.ledger.Category(id)

		switch {
		case flagCatClear:
			cat.Budget = nil
			cat.Frequency = ""
		case len(args) == 2:
			b, err := parseAmount(args[1])
			if err != nil {
				return err
			}
			cat.Budget = &b
		case !c.Flags().Changed("frequency"):
			return fmt.Errorf("%w: give an amount, --frequency or --clear", model.ErrInvalid)
		}
		if c.Flags().Changed("frequency") && !flagCatClear {
			if cat.Frequency, err = parseFrequency(flagCatFreq); err != nil {
				return err
			}
		}

		saved, err := s.ledger.UpdateCategory(cat)
		if err != nil {
			return err
		}
		if saved.Budget == nil {
			fmt.Printf("  Cleared budget of %q\n", saved.Name)
			return nil
		}
		fmt.Printf("  Budget of %q is now %s per %s\n", saved.Name,
			cli.FormatMoney(*saved.Budget, s.ledger.Currency()), periodNoun(saved.Frequency))
		return nil
	})
}

func periodNoun(f model.Frequency) string {
	switch f {
	case model.Weekly:
		return "week"
	case model.Yearly:
		return "year"
	}
	return "month"
}
