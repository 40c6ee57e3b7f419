// Package backup writes and reads fintrack backups: JSON Lines files with
// one record per line, tagged with its entity kind.
package backup

import (
	"encoding/json"

	"github.com/theirongolddev/fintrack/internal/model"
)

// Line is one record in a backup file.
type Line struct {
	Entity model.EntityType `json:"entity"`
	Data   json.RawMessage  `json:"data"`
}

// Set holds decoded records per kind, in file order.
type Set struct {
	Transactions []model.Transaction
	Categories   []model.Category
	Bills        []model.Bill
	Loans        []model.Loan
	Goals        []model.SavingsGoal
	Clients      []model.Client
	Products     []model.Product
	Quotes       []model.Quote
}

// Len returns the total number of records.
func (s Set) Len() int {
	return len(s.Transactions) + len(s.Categories) + len(s.Bills) + len(s.Loans) +
		len(s.Goals) + len(s.Clients) + len(s.Products) + len(s.Quotes)
}

// Source is what Write reads from. *ledger.Ledger implements it.
type Source interface {
	Transactions() []model.Transaction
	Categories() []model.Category
	Bills() []model.Bill
	Loans() []model.Loan
	Goals() []model.SavingsGoal
	Clients() []model.Client
	Products() []model.Product
	Quotes() []model.Quote
}

// Target is what Apply writes to. *ledger.Ledger implements it.
type Target interface {
	AddTransaction(model.Transaction) (model.Transaction, error)
	AddCategory(model.Category) (model.Category, error)
	AddBill(model.Bill) (model.Bill, error)
	AddLoan(model.Loan) (model.Loan, error)
	AddGoal(model.SavingsGoal) (model.SavingsGoal, error)
	AddClient(model.Client) (model.Client, error)
	AddProduct(model.Product) (model.Product, error)
	AddQuote(model.Quote) (model.Quote, error)
}
