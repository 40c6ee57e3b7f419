package model

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// FlowType distinguishes money coming in from money going out.
type FlowType string

// Flow types.
const (
	Income  FlowType = "income"
	Expense FlowType = "expense"
)

func (f FlowType) valid() bool { return f == Income || f == Expense }

// Frequency is a budget or recurrence period.
type Frequency string

// Frequencies. Budgets use weekly or monthly only.
const (
	Weekly  Frequency = "weekly"
	Monthly Frequency = "monthly"
	Yearly  Frequency = "yearly"
)

// Transaction is one income or expense entry.
type Transaction struct {
	ID          string          `json:"id"`
	Date        time.Time       `json:"date"`
	Description string          `json:"description"`
	Amount      decimal.Decimal `json:"amount"`
	Type        FlowType        `json:"type"`
	Category    string          `json:"category,omitempty"`
	Workspace   Workspace       `json:"workspace"`
}

func (t Transaction) RecordID() string { return t.ID }
func (Transaction) Kind() EntityType { return EntityTransaction }
func (t Transaction) Scope() Workspace { return t.Workspace }

// Signed returns the amount as a positive income or negative expense.
func (t Transaction) Signed() decimal.Decimal {
	if t.Type == Expense {
		return t.Amount.Neg()
	}
	return t.Amount
}

func (t Transaction) Validate() error {
	if t.ID == "" {
		return invalid(EntityTransaction, "missing id")
	}
	if !t.Type.valid() {
		return invalid(EntityTransaction, "type must be income or expense, got %q", t.Type)
	}
	if !t.Amount.IsPositive() {
		return invalid(EntityTransaction, "amount must be positive")
	}
	if t.Date.IsZero() {
		return invalid(EntityTransaction, "missing date")
	}
	return checkWorkspace(EntityTransaction, t.Workspace)
}

// Category groups transactions. Only expense categories carry a budget.
type Category struct {
	ID        string           `json:"id"`
	Name      string           `json:"name"`
	Type      FlowType         `json:"type"`
	Workspace Workspace        `json:"workspace"`
	Budget    *decimal.Decimal `json:"budget,omitempty"`
	Frequency Frequency        `json:"frequency,omitempty"`
}

func (c Category) RecordID() string { return c.ID }
func (Category) Kind() EntityType { return EntityCategory }
func (c Category) Scope() Workspace { return c.Workspace }

// HasBudget reports whether the category has a usable budget.
func (c Category) HasBudget() bool {
	return c.Type == Expense && c.Budget != nil && c.Budget.IsPositive()
}

func (c Category) Validate() error {
	if c.ID == "" {
		return invalid(EntityCategory, "missing id")
	}
	if strings.TrimSpace(c.Name) == "" {
		return invalid(EntityCategory, "missing name")
	}
	if !c.Type.valid() {
		return invalid(EntityCategory, "type must be income or expense, got %q", c.Type)
	}
	if c.Budget != nil {
		if c.Type == Income {
			return invalid(EntityCategory, "income category %q cannot have a budget", c.Name)
		}
		if c.Budget.IsNegative() {
			return invalid(EntityCategory, "budget must not be negative")
		}
		if c.Frequency != Weekly && c.Frequency != Monthly {
			return invalid(EntityCategory, "budget frequency must be weekly or monthly, got %q", c.Frequency)
		}
	}
	return checkWorkspace(EntityCategory, c.Workspace)
}

// BillStatus is paid or unpaid.
type BillStatus string

// Bill statuses.
const (
	BillUnpaid BillStatus = "unpaid"
	BillPaid   BillStatus = "paid"
)

// Bill is a payable with a due date and optional recurrence.
type Bill struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	DueDate   time.Time       `json:"dueDate"`
	Amount    decimal.Decimal `json:"amount"`
	Status    BillStatus      `json:"status"`
	Frequency Frequency       `json:"frequency,omitempty"`
	Workspace Workspace       `json:"workspace"`
}

func (b Bill) RecordID() string { return b.ID }
func (Bill) Kind() EntityType { return EntityBill }
func (b Bill) Scope() Workspace { return b.Workspace }

// NextDue returns the due date following the current one for recurring
// bills, and the zero time for one-off bills.
func (b Bill) NextDue() time.Time {
	switch b.Frequency {
	case Weekly:
		return b.DueDate.AddDate(0, 0, 7)
	case Monthly:
		return b.DueDate.AddDate(0, 1, 0)
	case Yearly:
		return b.DueDate.AddDate(1, 0, 0)
	}
	return time.Time{}
}

func (b Bill) Validate() error {
	if b.ID == "" {
		return invalid(EntityBill, "missing id")
	}
	if strings.TrimSpace(b.Name) == "" {
		return invalid(EntityBill, "missing name")
	}
	if !b.Amount.IsPositive() {
		return invalid(EntityBill, "amount must be positive")
	}
	if b.DueDate.IsZero() {
		return invalid(EntityBill, "missing due date")
	}
	if b.Status != BillPaid && b.Status != BillUnpaid {
		return invalid(EntityBill, "status must be paid or unpaid, got %q", b.Status)
	}
	switch b.Frequency {
	case "", Weekly, Monthly, Yearly:
	default:
		return invalid(EntityBill, "unknown frequency %q", b.Frequency)
	}
	return checkWorkspace(EntityBill, b.Workspace)
}

// LoanStatus is active or paid.
type LoanStatus string

// Loan statuses.
const (
	LoanActive LoanStatus = "active"
	LoanPaid   LoanStatus = "paid"
)

// Loan tracks borrowed money. InterestRate is an annual percentage.
type Loan struct {
	ID           string          `json:"id"`
	Lender       string          `json:"lender"`
	Principal    decimal.Decimal `json:"principal"`
	Remaining    decimal.Decimal `json:"remaining"`
	InterestRate decimal.Decimal `json:"interestRate"`
	TermMonths   int             `json:"termMonths"`
	StartDate    time.Time       `json:"startDate"`
	Status       LoanStatus      `json:"status"`
	Workspace    Workspace       `json:"workspace"`
}

func (l Loan) RecordID() string { return l.ID }
func (Loan) Kind() EntityType { return EntityLoan }
func (l Loan) Scope() Workspace { return l.Workspace }

func (l Loan) Validate() error {
	if l.ID == "" {
		return invalid(EntityLoan, "missing id")
	}
	if strings.TrimSpace(l.Lender) == "" {
		return invalid(EntityLoan, "missing lender")
	}
	if !l.Principal.IsPositive() {
		return invalid(EntityLoan, "principal must be positive")
	}
	if l.Remaining.IsNegative() || l.Remaining.GreaterThan(l.Principal) {
		return invalid(EntityLoan, "remaining must be between 0 and principal")
	}
	if l.InterestRate.IsNegative() {
		return invalid(EntityLoan, "interest rate must not be negative")
	}
	if l.TermMonths <= 0 {
		return invalid(EntityLoan, "term must be at least one month")
	}
	if l.Status != LoanActive && l.Status != LoanPaid {
		return invalid(EntityLoan, "status must be active or paid, got %q", l.Status)
	}
	return checkWorkspace(EntityLoan, l.Workspace)
}
