package ledger

import (
	"fmt"
	"strings"

	"github.com/theirongolddev/fintrack/internal/model"

	"github.com/shopspring/decimal"
)

// ContributeToGoal adds amount to the goal's current amount. A non-empty
// member is credited too, and added to the goal if new.
func (l *Ledger) ContributeToGoal(id string, amount decimal.Decimal, member string) (model.SavingsGoal, error) {
	if !amount.IsPositive() {
		return model.SavingsGoal{}, fmt.Errorf("%w: contribution must be positive", model.ErrInvalid)
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	g, ok := l.goals.get(id)
	if !ok {
		return model.SavingsGoal{}, fmt.Errorf("%w: %s %s", ErrNotFound, model.EntityGoal, id)
	}
	g = g.Clone()
	g.CurrentAmount = g.CurrentAmount.Add(amount)

	if member = strings.TrimSpace(member); member != "" {
		found := false
		for i := range g.Members {
			if strings.EqualFold(g.Members[i].Name, member) {
				g.Members[i].Contributed = g.Members[i].Contributed.Add(amount)
				found = true
				break
			}
		}
		if !found {
			g.Members = append(g.Members, model.GoalMember{Name: member, Contributed: amount})
		}
	}
	return update(l, &l.goals, g)
}

// AddGoalItem appends a shopping-list entry to a goal.
func (l *Ledger) AddGoalItem(goalID string, item model.GoalItem) (model.SavingsGoal, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	g, ok := l.goals.get(goalID)
	if !ok {
		return model.SavingsGoal{}, fmt.Errorf("%w: %s %s", ErrNotFound, model.EntityGoal, goalID)
	}
	g = g.Clone()
	item.ID = orNewID(item.ID)
	item.Purchased = false
	g.Items = append(g.Items, item)
	return update(l, &l.goals, g)
}

// PurchaseGoalItem marks a shopping-list entry purchased and adds its price
// to the goal's current amount. Purchasing an item twice is an error.
func (l *Ledger) PurchaseGoalItem(goalID, itemID string) (model.SavingsGoal, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	g, ok := l.goals.get(goalID)
	if !ok {
		return model.SavingsGoal{}, fmt.Errorf("%w: %s %s", ErrNotFound, model.EntityGoal, goalID)
	}
	g = g.Clone()
	for i := range g.Items {
		if g.Items[i].ID != itemID {
			continue
		}
		if g.Items[i].Purchased {
			return model.SavingsGoal{}, fmt.Errorf("%w: item %q already purchased", model.ErrInvalid, g.Items[i].Name)
		}
		g.Items[i].Purchased = true
		g.CurrentAmount = g.CurrentAmount.Add(g.Items[i].Price)
		return update(l, &l.goals, g)
	}
	return model.SavingsGoal{}, fmt.Errorf("%w: goal item %s", ErrNotFound, itemID)
}

// MarkBillPaid sets the bill paid. For a recurring bill the next
// occurrence is added as a new unpaid bill.
func (l *Ledger) MarkBillPaid(id string) (paid model.Bill, next *model.Bill, err error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	b, ok := l.bills.get(id)
	if !ok {
		return model.Bill{}, nil, fmt.Errorf("%w: %s %s", ErrNotFound, model.EntityBill, id)
	}
	if b.Status == model.BillPaid {
		return b, nil, nil
	}
	b.Status = model.BillPaid
	paid, err = update(l, &l.bills, b)
	if err != nil {
		return model.Bill{}, nil, err
	}

	if due := b.NextDue(); !due.IsZero() {
		n := b
		n.ID = model.NewID()
		n.DueDate = due
		n.Status = model.BillUnpaid
		created, err := add(l, &l.bills, n)
		if err != nil {
			return paid, nil, err
		}
		next = &created
	}
	return paid, next, nil
}

// RecordLoanPayment reduces the remaining balance. Overpayment clamps to
// zero and marks the loan paid.
func (l *Ledger) RecordLoanPayment(id string, amount decimal.Decimal) (model.Loan, error) {
	if !amount.IsPositive() {
		return model.Loan{}, fmt.Errorf("%w: payment must be positive", model.ErrInvalid)
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	ln, ok := l.loans.get(id)
	if !ok {
		return model.Loan{}, fmt.Errorf("%w: %s %s", ErrNotFound, model.EntityLoan, id)
	}
	if ln.Status == model.LoanPaid {
		return model.Loan{}, fmt.Errorf("%w: loan from %s is already paid", model.ErrInvalid, ln.Lender)
	}
	ln.Remaining = ln.Remaining.Sub(amount)
	if !ln.Remaining.IsPositive() {
		ln.Remaining = decimal.Zero
		ln.Status = model.LoanPaid
	}
	return update(l, &l.loans, ln)
}

// Bill returns one bill.
func (l *Ledger) Bill(id string) (model.Bill, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.bills.get(id)
}

// Loan returns one loan.
func (l *Ledger) Loan(id string) (model.Loan, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.loans.get(id)
}

// Client returns one client.
func (l *Ledger) Client(id string) (model.Client, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.clients.get(id)
}

// Product returns one product.
func (l *Ledger) Product(id string) (model.Product, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.products.get(id)
}

// Quote returns one quote.
func (l *Ledger) Quote(id string) (model.Quote, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	q, ok := l.quotes.get(id)
	return q.Clone(), ok
}
