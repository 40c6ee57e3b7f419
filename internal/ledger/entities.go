package ledger

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/theirongolddev/fintrack/internal/model"
)

// scope must be called with l.mu held.
func (l *Ledger) scope(w model.Workspace) model.Workspace {
	if w == "" {
		return l.workspace
	}
	return w
}

func orNewID(id string) string {
	if id == "" {
		return model.NewID()
	}
	return id
}

// AddTransaction records a transaction. Missing id, date and workspace are
// filled in.
func (l *Ledger) AddTransaction(t model.Transaction) (model.Transaction, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	t.ID = orNewID(t.ID)
	t.Workspace = l.scope(t.Workspace)
	if t.Date.IsZero() {
		t.Date = time.Now().UTC().Truncate(time.Second)
	}
	return add(l, &l.transactions, t)
}

// UpdateTransaction replaces the transaction with the same id.
func (l *Ledger) UpdateTransaction(t model.Transaction) (model.Transaction, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return update(l, &l.transactions, t)
}

// DeleteTransaction removes a transaction.
func (l *Ledger) DeleteTransaction(id string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return remove(l, &l.transactions, id)
}

// Transactions lists transactions in insertion order.
func (l *Ledger) Transactions() []model.Transaction {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.transactions.list()
}

// Transaction returns one transaction.
func (l *Ledger) Transaction(id string) (model.Transaction, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.transactions.get(id)
}

// AddCategory records a category.
func (l *Ledger) AddCategory(c model.Category) (model.Category, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	c.ID = orNewID(c.ID)
	c.Workspace = l.scope(c.Workspace)
	if c.Budget != nil && c.Frequency == "" {
		c.Frequency = model.Monthly
	}
	return add(l, &l.categories, c)
}

// UpdateCategory replaces the category with the same id.
func (l *Ledger) UpdateCategory(c model.Category) (model.Category, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if c.Budget != nil && c.Frequency == "" {
		c.Frequency = model.Monthly
	}
	return update(l, &l.categories, c)
}

// DeleteCategory removes a category. Transactions keep their category name.
func (l *Ledger) DeleteCategory(id string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return remove(l, &l.categories, id)
}

// Categories lists categories in insertion order.
func (l *Ledger) Categories() []model.Category {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.categories.list()
}

// Category returns one category.
func (l *Ledger) Category(id string) (model.Category, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.categories.get(id)
}

// AddBill records a bill, unpaid unless stated otherwise.
func (l *Ledger) AddBill(b model.Bill) (model.Bill, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	b.ID = orNewID(b.ID)
	b.Workspace = l.scope(b.Workspace)
	if b.Status == "" {
		b.Status = model.BillUnpaid
	}
	return add(l, &l.bills, b)
}

// UpdateBill replaces the bill with the same id.
func (l *Ledger) UpdateBill(b model.Bill) (model.Bill, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return update(l, &l.bills, b)
}

// DeleteBill removes a bill.
func (l *Ledger) DeleteBill(id string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return remove(l, &l.bills, id)
}

// Bills lists bills in insertion order.
func (l *Ledger) Bills() []model.Bill {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.bills.list()
}

// AddLoan records a loan. A zero remaining amount defaults to the principal.
func (l *Ledger) AddLoan(ln model.Loan) (model.Loan, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	ln.ID = orNewID(ln.ID)
	ln.Workspace = l.scope(ln.Workspace)
	if ln.Remaining.IsZero() && ln.Status != model.LoanPaid {
		ln.Remaining = ln.Principal
	}
	if ln.Status == "" {
		ln.Status = model.LoanActive
	}
	if ln.StartDate.IsZero() {
		ln.StartDate = time.Now().UTC().Truncate(24 * time.Hour)
	}
	return add(l, &l.loans, ln)
}

// UpdateLoan replaces the loan with the same id.
func (l *Ledger) UpdateLoan(ln model.Loan) (model.Loan, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return update(l, &l.loans, ln)
}

// DeleteLoan removes a loan.
func (l *Ledger) DeleteLoan(id string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return remove(l, &l.loans, id)
}

// Loans lists loans in insertion order.
func (l *Ledger) Loans() []model.Loan {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.loans.list()
}

// AddGoal records a savings goal. Items without ids get one.
func (l *Ledger) AddGoal(g model.SavingsGoal) (model.SavingsGoal, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	g = g.Clone()
	g.ID = orNewID(g.ID)
	g.Workspace = l.scope(g.Workspace)
	for i := range g.Items {
		g.Items[i].ID = orNewID(g.Items[i].ID)
	}
	return add(l, &l.goals, g)
}

// UpdateGoal replaces the goal with the same id.
func (l *Ledger) UpdateGoal(g model.SavingsGoal) (model.SavingsGoal, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return update(l, &l.goals, g.Clone())
}

// DeleteGoal removes a goal.
func (l *Ledger) DeleteGoal(id string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return remove(l, &l.goals, id)
}

// Goals lists goals in insertion order.
func (l *Ledger) Goals() []model.SavingsGoal {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := l.goals.list()
	for i := range out {
		out[i] = out[i].Clone()
	}
	return out
}

// Goal returns one goal.
func (l *Ledger) Goal(id string) (model.SavingsGoal, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	g, ok := l.goals.get(id)
	return g.Clone(), ok
}

// AddClient records a client. Clients default to the business workspace.
func (l *Ledger) AddClient(c model.Client) (model.Client, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	c.ID = orNewID(c.ID)
	if c.Workspace == "" {
		c.Workspace = model.WorkspaceBusiness
	}
	return add(l, &l.clients, c)
}

// UpdateClient replaces the client with the same id.
func (l *Ledger) UpdateClient(c model.Client) (model.Client, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return update(l, &l.clients, c)
}

// DeleteClient removes a client. Quotes referencing it are left alone.
func (l *Ledger) DeleteClient(id string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return remove(l, &l.clients, id)
}

// Clients lists clients in insertion order.
func (l *Ledger) Clients() []model.Client {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.clients.list()
}

// AddProduct records a product. Products default to the business workspace.
func (l *Ledger) AddProduct(p model.Product) (model.Product, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	p.ID = orNewID(p.ID)
	if p.Workspace == "" {
		p.Workspace = model.WorkspaceBusiness
	}
	return add(l, &l.products, p)
}

// UpdateProduct replaces the product with the same id.
func (l *Ledger) UpdateProduct(p model.Product) (model.Product, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return update(l, &l.products, p)
}

// DeleteProduct removes a product.
func (l *Ledger) DeleteProduct(id string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return remove(l, &l.products, id)
}

// Products lists products in insertion order.
func (l *Ledger) Products() []model.Product {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.products.list()
}

// AddQuote records a quote. The client and every product must exist; item
// prices left at zero are taken from the product.
func (l *Ledger) AddQuote(q model.Quote) (model.Quote, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	q = q.Clone()
	q.ID = orNewID(q.ID)
	if q.Workspace == "" {
		q.Workspace = model.WorkspaceBusiness
	}
	if q.Status == "" {
		q.Status = model.QuoteDraft
	}
	if q.IssuedAt.IsZero() {
		q.IssuedAt = time.Now().UTC().Truncate(time.Second)
	}
	if q.Number == "" {
		q.Number = fmt.Sprintf("Q-%04d", nextQuoteNumber(l.quotes.items))
	}
	if err := l.resolveQuote(&q); err != nil {
		return model.Quote{}, err
	}
	return add(l, &l.quotes, q)
}

// nextQuoteNumber follows the highest existing "Q-NNNN" number, so numbers
// are not reused after a delete.
func nextQuoteNumber(quotes []model.Quote) int {
	highest := 0
	for _, q := range quotes {
		n, err := strconv.Atoi(strings.TrimPrefix(q.Number, "Q-"))
		if err == nil && strings.HasPrefix(q.Number, "Q-") && n > highest {
			highest = n
		}
	}
	return highest + 1
}

// UpdateQuote replaces the quote with the same id.
func (l *Ledger) UpdateQuote(q model.Quote) (model.Quote, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	q = q.Clone()
	if l.quotes.index(q.ID) < 0 {
		return model.Quote{}, fmt.Errorf("%w: %s %s", ErrNotFound, model.EntityQuote, q.ID)
	}
	if err := l.resolveQuote(&q); err != nil {
		return model.Quote{}, err
	}
	return update(l, &l.quotes, q)
}

// DeleteQuote removes a quote.
func (l *Ledger) DeleteQuote(id string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return remove(l, &l.quotes, id)
}

// Quotes lists quotes in insertion order.
func (l *Ledger) Quotes() []model.Quote {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := l.quotes.list()
	for i := range out {
		out[i] = out[i].Clone()
	}
	return out
}

func (l *Ledger) resolveQuote(q *model.Quote) error {
	if _, ok := l.clients.get(q.ClientID); !ok {
		return fmt.Errorf("%w: quote: unknown client %q", model.ErrInvalid, q.ClientID)
	}
	for i := range q.Items {
		p, ok := l.products.get(q.Items[i].ProductID)
		if !ok {
			return fmt.Errorf("%w: quote: unknown product %q", model.ErrInvalid, q.Items[i].ProductID)
		}
		if q.Items[i].Price.IsZero() {
			q.Items[i].Price = p.Price
		}
	}
	return nil
}

// Delete removes the record of the given kind.
func (l *Ledger) Delete(kind model.EntityType, id string) error {
	switch kind {
	case model.EntityTransaction:
		return l.DeleteTransaction(id)
	case model.EntityCategory:
		return l.DeleteCategory(id)
	case model.EntityBill:
		return l.DeleteBill(id)
	case model.EntityLoan:
		return l.DeleteLoan(id)
	case model.EntityGoal:
		return l.DeleteGoal(id)
	case model.EntityClient:
		return l.DeleteClient(id)
	case model.EntityProduct:
		return l.DeleteProduct(id)
	case model.EntityQuote:
		return l.DeleteQuote(id)
	}
	return fmt.Errorf("%w: unknown entity %q", model.ErrInvalid, kind)
}

// Counts returns the number of records per kind.
func (l *Ledger) Counts() map[model.EntityType]int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return map[model.EntityType]int{
		model.EntityTransaction: len(l.transactions.items),
		model.EntityCategory:    len(l.categories.items),
		model.EntityBill:        len(l.bills.items),
		model.EntityLoan:        len(l.loans.items),
		model.EntityGoal:        len(l.goals.items),
		model.EntityClient:      len(l.clients.items),
		model.EntityProduct:     len(l.products.items),
		model.EntityQuote:       len(l.quotes.items),
	}
}
