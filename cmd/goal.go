package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/theirongolddev/fintrack/internal/cli"
	"github.com/theirongolddev/fintrack/internal/model"
	"github.com/theirongolddev/fintrack/internal/pipeline"

	"github.com/spf13/cobra"
)

var (
	flagGoalDeadline string
	flagGoalMember   string
)

var goalCmd = &cobra.Command{
	Use:     "goal",
	Aliases: []string{"goals"},
	Short:   "Savings goals, shared contributions and shopping lists",
}

var goalAddCmd = &cobra.Command{
	Use:   "add <name> <target>",
	Short: "Create a savings goal",
	Args:  cobra.ExactArgs(2),
	RunE:  runGoalAdd,
}

var goalListCmd = &cobra.Command{
	Use:   "list",
	Short: "List goals with progress",
	RunE:  runGoalList,
}

var goalShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show a goal's members and shopping list",
	Args:  cobra.ExactArgs(1),
	RunE:  runGoalShow,
}

var goalContributeCmd = &cobra.Command{
	Use:   "contribute <id> <amount>",
	Short: "Add money to a goal",
	Args:  cobra.ExactArgs(2),
	RunE:  runGoalContribute,
}

var goalItemCmd = &cobra.Command{
	Use:   "item <goal-id> <name> <price>",
	Short: "Add an item to a goal's shopping list",
	Args:  cobra.ExactArgs(3),
	RunE:  runGoalItem,
}

var goalBuyCmd = &cobra.Command{
	Use:   "buy <goal-id> <item-id>",
	Short: "Mark a shopping list item purchased",
	Args:  cobra.ExactArgs(2),
	RunE:  runGoalBuy,
}

var goalDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a goal",
	Args:  cobra.ExactArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		return deleteRecord(model.EntityGoal, args[0], func(s *session) []string {
			return recordIDs(s.ledger.Goals())
		})
	},
}

func init() {
	goalAddCmd.Flags().StringVar(&flagGoalDeadline, "deadline", "", "Target date as YYYY-MM-DD")
	goalContributeCmd.Flags().StringVar(&flagGoalMember, "member", "", "Credit the contribution to a member")

	goalCmd.AddCommand(goalAddCmd, goalListCmd, goalShowCmd, goalContributeCmd, goalItemCmd, goalBuyCmd, goalDeleteCmd)
	rootCmd.AddCommand(goalCmd)
}

func runGoalAdd(_ *cobra.Command, args []string) error {
	target, err := parseAmount(args[1])
	if err != nil {
		return err
	}
	deadline, err := parseDate(flagGoalDeadline, time.Now())
	if err != nil {
		return err
	}

	return mutate(func(s *session) error {
		w, err := s.workspace()
		if err != nil {
			return err
		}
		saved, err := s.ledger.AddGoal(model.SavingsGoal{
			Name:         args[0],
			TargetAmount: target,
			Deadline:     deadline,
			Workspace:    w,
		})
		if err != nil {
			return err
		}
		fmt.Printf("  Created goal %q, target %s (%s)\n", saved.Name,
			cli.FormatMoney(saved.TargetAmount, s.ledger.Currency()), cli.ShortID(saved.ID))
		return nil
	})
}

func runGoalList(_ *cobra.Command, _ []string) error {
	return withSession(func(s *session) error {
		w, err := s.workspace()
		if err != nil {
			return err
		}
		cur := s.ledger.Currency()
		goals := pipeline.Goals(pipeline.FilterByWorkspace(s.ledger.Goals(), w), time.Now())
		if len(goals) == 0 {
			fmt.Printf("\n  No %s goals.\n\n", w)
			return nil
		}

		rows := make([][]string, 0, len(goals))
		for _, gp := range goals {
			left := "-"
			if gp.DaysLeft >= 0 {
				left = fmt.Sprintf("%dd", gp.DaysLeft)
			}
			rows = append(rows, []string{
				cli.ShortID(gp.Goal.ID), gp.Goal.Name,
				cli.FormatMoney(gp.Goal.CurrentAmount, cur), cli.FormatMoney(gp.Goal.TargetAmount, cur),
				cli.RenderProgressBar(gp.Percent, 12), left,
			})
		}
		fmt.Println()
		fmt.Print(cli.RenderTable(cli.Table{
			Title:     fmt.Sprintf("Savings goals · %s", w),
			Headers:   []string{"ID", "Goal", "Saved", "Target", "Progress", "Left"},
			Rows:      rows,
			LeftAlign: []int{1},
		}))
		fmt.Println()
		return nil
	})
}

func runGoalShow(_ *cobra.Command, args []string) error {
	return withSession(func(s *session) error {
		id, err := matchID(model.EntityGoal, args[0], recordIDs(s.ledger.Goals()))
		if err != nil {
			return err
		}
		g, _ := s.ledger.Goal(id)
		gp := pipeline.Goals([]model.SavingsGoal{g}, time.Now())[0]
		cur := s.ledger.Currency()

		deadline := "none"
		if !g.Deadline.IsZero() {
			deadline = fmt.Sprintf("%s (%d days left)", cli.FormatDate(g.Deadline), gp.DaysLeft)
		}
		fmt.Println()
		fmt.Println(cli.RenderTitle(strings.ToUpper(g.Name)))
		fmt.Println()
		fmt.Print(cli.RenderKeyValues([][2]string{
			{"Saved", cli.FormatMoney(g.CurrentAmount, cur)},
			{"Target", cli.FormatMoney(g.TargetAmount, cur)},
			{"Remaining", cli.FormatMoney(gp.Remaining, cur)},
			{"Progress", cli.RenderProgressBar(gp.Percent, 20)},
			{"Deadline", deadline},
		}))

		if len(g.Members) > 0 {
			rows := make([][]string, 0, len(g.Members))
			for _, m := range g.Members {
				rows = append(rows, []string{m.Name, cli.FormatMoney(m.Contributed, cur)})
			}
			fmt.Println()
			fmt.Print(cli.RenderTable(cli.Table{Title: "Members", Headers: []string{"Member", "Contributed"}, Rows: rows}))
		}
		if len(g.Items) > 0 {
			rows := make([][]string, 0, len(g.Items))
			for _, it := range g.Items {
				state := "open"
				if it.Purchased {
					state = "bought"
				}
				rows = append(rows, []string{cli.ShortID(it.ID), it.Name, state, cli.FormatMoney(it.Price, cur)})
			}
			fmt.Println()
			fmt.Print(cli.RenderTable(cli.Table{
				Title:     "Shopping list",
				Headers:   []string{"ID", "Item", "State", "Price"},
				Rows:      rows,
				LeftAlign: []int{1, 2},
			}))
			fmt.Printf("  Still to buy: %s\n", cli.FormatMoney(gp.ItemsOpen, cur))
		}
		fmt.Println()
		return nil
	})
}

func runGoalContribute(_ *cobra.Command, args []string) error {
	amount, err := parseAmount(args[1])
	if err != nil {
		return err
	}
	return mutate(func(s *session) error {
		id, err := matchID(model.EntityGoal, args[0], recordIDs(s.ledger.Goals()))
		if err != nil {
			return err
		}
		g, err := s.ledger.ContributeToGoal(id, amount, flagGoalMember)
		if err != nil {
			return explain(err)
		}
		cur := s.ledger.Currency()
		fmt.Printf("  %q: %s of %s\n", g.Name, cli.FormatMoney(g.CurrentAmount, cur), cli.FormatMoney(g.TargetAmount, cur))
		return nil
	})
}

func runGoalItem(_ *cobra.Command, args []string) error {
	price, err := parseAmount(args[2])
	if err != nil {
		return err
	}
	return mutate(func(s *session) error {
		id, err := matchID(model.EntityGoal, args[0], recordIDs(s.ledger.Goals()))
		if err != nil {
			return err
		}
		g, err := s.ledger.AddGoalItem(id, model.GoalItem{Name: args[1], Price: price})
		if err != nil {
			return explain(err)
		}
		it := g.Items[len(g.Items)-1]
		fmt.Printf("  Added %q to %q (%s)\n", it.Name, g.Name, cli.ShortID(it.ID))
		return nil
	})
}

func runGoalBuy(_ *cobra.Command, args []string) error {
	return mutate(func(s *session) error {
		id, err := matchID(model.EntityGoal, args[0], recordIDs(s.ledger.Goals()))
		if err != nil {
			return err
		}
		g, _ := s.ledger.Goal(id)
		itemIDs := make([]string, len(g.Items))
		for i, it := range g.Items {
			itemIDs[i] = it.ID
		}
		itemID, err := matchID("goal item", args[1], itemIDs)
		if err != nil {
			return err
		}
		g, err = s.ledger.PurchaseGoalItem(id, itemID)
		if err != nil {
			return explain(err)
		}
		fmt.Printf("  Marked purchased; %q now at %s\n", g.Name, cli.FormatMoney(g.CurrentAmount, s.ledger.Currency()))
		return nil
	})
}
