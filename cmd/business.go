package cmd

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/theirongolddev/fintrack/internal/cli"
	"github.com/theirongolddev/fintrack/internal/model"

	"github.com/spf13/cobra"
)

var (
	flagClientEmail   string
	flagClientPhone   string
	flagClientAddress string
	flagProductDesc   string
	flagQuoteItems    []string
	flagQuoteValid    string
	flagQuoteStatus   string
)

var clientCmd = &cobra.Command{
	Use:     "client",
	Aliases: []string{"clients"},
	Short:   "Manage business clients",
}

var clientAddCmd = &cobra.Command{
	Use:   "add <name>",
	Short: "Add a client",
	Args:  cobra.ExactArgs(1),
	RunE:  runClientAdd,
}

var clientListCmd = &cobra.Command{
	Use:   "list",
	Short: "List clients",
	RunE:  runClientList,
}

var clientDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a client",
	Args:  cobra.ExactArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		return deleteRecord(model.EntityClient, args[0], func(s *session) []string {
			return recordIDs(s.ledger.Clients())
		})
	},
}

var productCmd = &cobra.Command{
	Use:     "product",
	Aliases: []string{"products"},
	Short:   "Manage the product catalog used in quotes",
}

var productAddCmd = &cobra.Command{
	Use:   "add <name> <price>",
	Short: "Add a product",
	Args:  cobra.ExactArgs(2),
	RunE:  runProductAdd,
}

var productListCmd = &cobra.Command{
	Use:   "list",
	Short: "List products",
	RunE:  runProductList,
}

var productDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a product",
	Args:  cobra.ExactArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		return deleteRecord(model.EntityProduct, args[0], func(s *session) []string {
			return recordIDs(s.ledger.Products())
		})
	},
}

var quoteCmd = &cobra.Command{
	Use:     "quote",
	Aliases: []string{"quotes"},
	Short:   "Prepare price quotes for clients",
}

var quoteAddCmd = &cobra.Command{
	Use:     "add <client-id>",
	Short:   "Create a quote from product:quantity items",
	Example: "  fintrack quote add 3f2a --item 9c1d:2 --item 77ab:1@45.00 --valid 2024-07-01",
	Args:    cobra.ExactArgs(1),
	RunE:    runQuoteAdd,
}

var quoteListCmd = &cobra.Command{
	Use:   "list",
	Short: "List quotes",
	RunE:  runQuoteList,
}

var quoteStatusCmd = &cobra.Command{
	Use:   "status <id> <draft|sent|accepted|rejected>",
	Short: "Change a quote's status",
	Args:  cobra.ExactArgs(2),
	RunE:  runQuoteStatus,
}

var quoteDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a quote",
	Args:  cobra.ExactArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		return deleteRecord(model.EntityQuote, args[0], func(s *session) []string {
			return recordIDs(s.ledger.Quotes())
		})
	},
}

func init() {
	clientAddCmd.Flags().StringVar(&flagClientEmail, "email", "", "Email address")
	clientAddCmd.Flags().StringVar(&flagClientPhone, "phone", "", "Phone number")
	clientAddCmd.Flags().StringVar(&flagClientAddress, "address", "", "Postal address")
	clientCmd.AddCommand(clientAddCmd, clientListCmd, clientDeleteCmd)

	productAddCmd.Flags().StringVar(&flagProductDesc, "desc", "", "Description")
	productCmd.AddCommand(productAddCmd, productListCmd, productDeleteCmd)

	quoteAddCmd.Flags().StringArrayVar(&flagQuoteItems, "item", nil, "Line item as product-id:quantity[@price] (repeatable)")
	quoteAddCmd.Flags().StringVar(&flagQuoteValid, "valid", "", "Valid until YYYY-MM-DD")
	quoteAddCmd.Flags().StringVar(&flagQuoteStatus, "status", "draft", "Initial status")
	_ = quoteAddCmd.MarkFlagRequired("item")
	quoteCmd.AddCommand(quoteAddCmd, quoteListCmd, quoteStatusCmd, quoteDeleteCmd)

	rootCmd.AddCommand(clientCmd, productCmd, quoteCmd)
}

// businessWorkspace is the workspace for business records unless the
// --workspace flag says otherwise.
func businessWorkspace() (model.Workspace, error) {
	if flagWorkspace != "" {
		return model.ParseWorkspace(flagWorkspace)
	}
	return model.WorkspaceBusiness, nil
}

func runClientAdd(_ *cobra.Command, args []string) error {
	w, err := businessWorkspace()
	if err != nil {
		return err
	}
	return mutate(func(s *session) error {
		c, err := s.ledger.AddClient(model.Client{
			Name:      args[0],
			Email:     flagClientEmail,
			Phone:     flagClientPhone,
			Address:   flagClientAddress,
			Workspace: w,
		})
		if err != nil {
			return err
		}
		fmt.Printf("  Added client %q (%s)\n", c.Name, cli.ShortID(c.ID))
		return nil
	})
}

func runClientList(_ *cobra.Command, _ []string) error {
	return withSession(func(s *session) error {
		clients := s.ledger.Clients()
		if len(clients) == 0 {
			fmt.Println("\n  No clients yet.")
			fmt.Println()
			return nil
		}
		rows := make([][]string, 0, len(clients))
		for _, c := range clients {
			rows = append(rows, []string{cli.ShortID(c.ID), c.Name, c.Email, c.Phone})
		}
		fmt.Println()
		fmt.Print(cli.RenderTable(cli.Table{
			Title:     "Clients",
			Headers:   []string{"ID", "Name", "Email", "Phone"},
			Rows:      rows,
			LeftAlign: []int{1, 2, 3},
		}))
		fmt.Println()
		return nil
	})
}

func runProductAdd(_ *cobra.Command, args []string) error {
	price, err := parseAmount(args[1])
	if err != nil {
		return err
	}
	w, err := businessWorkspace()
	if err != nil {
		return err
	}
	return mutate(func(s *session) error {
		p, err := s.ledger.AddProduct(model.Product{
			Name:        args[0],
			Description: flagProductDesc,
			Price:       price,
			Workspace:   w,
		})
		if err != nil {
			return err
		}
		fmt.Printf("  Added product %q at %s (%s)\n", p.Name, cli.FormatMoney(p.Price, s.ledger.Currency()), cli.ShortID(p.ID))
		return nil
	})
}

func runProductList(_ *cobra.Command, _ []string) error {
	return withSession(func(s *session) error {
		products := s.ledger.Products()
		if len(products) == 0 {
			fmt.Println("\n  No products yet.")
			fmt.Println()
			return nil
		}
		cur := s.ledger.Currency()
		rows := make([][]string, 0, len(products))
		for _, p := range products {
			rows = append(rows, []string{cli.ShortID(p.ID), p.Name, p.Description, cli.FormatMoney(p.Price, cur)})
		}
		fmt.Println()
		fmt.Print(cli.RenderTable(cli.Table{
			Title:     "Products",
			Headers:   []string{"ID", "Name", "Description", "Price"},
			Rows:      rows,
			LeftAlign: []int{1, 2},
		}))
		fmt.Println()
		return nil
	})
}

// parseQuoteItem parses "product:quantity[@price]". A missing price is
// filled from the product when the quote is saved.
func parseQuoteItem(s string, productIDs []string) (model.QuoteItem, error) {
	head, priceStr, hasPrice := strings.Cut(s, "@")
	prefix, qtyStr, hasQty := strings.Cut(head, ":")

	item := model.QuoteItem{Quantity: 1}
	id, err := matchID(model.EntityProduct, prefix, productIDs)
	if err != nil {
		return item, err
	}
	item.ProductID = id
	if hasQty {
		n, err := strconv.Atoi(strings.TrimSpace(qtyStr))
		if err != nil || n <= 0 {
			return item, fmt.Errorf("%w: quantity %q in item %q", model.ErrInvalid, qtyStr, s)
		}
		item.Quantity = n
	}
	if hasPrice {
		if item.Price, err = parseAmount(priceStr); err != nil {
			return item, err
		}
	}
	return item, nil
}

func parseQuoteStatus(s string) (model.QuoteStatus, error) {
	switch st := model.QuoteStatus(strings.ToLower(strings.TrimSpace(s))); st {
	case model.QuoteDraft, model.QuoteSent, model.QuoteAccepted, model.QuoteRejected:
		return st, nil
	}
	return "", fmt.Errorf("%w: quote status %q", model.ErrInvalid, s)
}

func runQuoteAdd(_ *cobra.Command, args []string) error {
	status, err := parseQuoteStatus(flagQuoteStatus)
	if err != nil {
		return err
	}
	valid, err := parseDate(flagQuoteValid, time.Now())
	if err != nil {
		return err
	}
	w, err := businessWorkspace()
	if err != nil {
		return err
	}

	return mutate(func(s *session) error {
		clientID, err := matchID(model.EntityClient, args[0], recordIDs(s.ledger.Clients()))
		if err != nil {
			return err
		}
		productIDs := recordIDs(s.ledger.Products())
		q := model.Quote{ClientID: clientID, Status: status, ValidUntil: valid, Workspace: w}
		for _, raw := range flagQuoteItems {
			item, err := parseQuoteItem(raw, productIDs)
			if err != nil {
				return err
			}
			q.Items = append(q.Items, item)
		}

		saved, err := s.ledger.AddQuote(q)
		if err != nil {
			return err
		}
		fmt.Printf("  Created quote %s for %s, total %s\n", saved.Number, clientName(s, saved.ClientID),
			cli.FormatMoney(saved.Total(), s.ledger.Currency()))
		return nil
	})
}

func clientName(s *session, id string) string {
	if c, ok := s.ledger.Client(id); ok {
		return c.Name
	}
	return cli.ShortID(id)
}

func runQuoteList(_ *cobra.Command, _ []string) error {
	return withSession(func(s *session) error {
		quotes := s.ledger.Quotes()
		if len(quotes) == 0 {
			fmt.Println("\n  No quotes yet.")
			fmt.Println()
			return nil
		}
		cur := s.ledger.Currency()
		rows := make([][]string, 0, len(quotes))
		for _, q := range quotes {
			rows = append(rows, []string{
				cli.ShortID(q.ID), q.Number, clientName(s, q.ClientID), string(q.Status),
				cli.FormatDate(q.IssuedAt), cli.FormatDate(q.ValidUntil), cli.FormatMoney(q.Total(), cur),
			})
		}
		fmt.Println()
		fmt.Print(cli.RenderTable(cli.Table{
			Title:     "Quotes",
			Headers:   []string{"ID", "Number", "Client", "Status", "Issued", "Valid until", "Total"},
			Rows:      rows,
			LeftAlign: []int{1, 2, 3, 4, 5},
		}))
		fmt.Println()
		return nil
	})
}

func runQuoteStatus(_ *cobra.Command, args []string) error {
	status, err := parseQuoteStatus(args[1])
	if err != nil {
		return err
	}
	return mutate(func(s *session) error {
		id, err := matchID(model.EntityQuote, args[0], recordIDs(s.ledger.Quotes()))
		if err != nil {
			return err
		}
		q, _ := s.ledger.Quote(id)
		q.Status = status
		if _, err := s.ledger.UpdateQuote(q); err != nil {
			return explain(err)
		}
		fmt.Printf("  Quote %s is now %s\n", q.Number, status)
		return nil
	})
}
