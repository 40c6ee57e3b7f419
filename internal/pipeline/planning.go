package pipeline

import (
	"math"
	"sort"
	"time"

	"github.com/theirongolddev/fintrack/internal/model"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// GoalProgress summarizes a savings goal.
type GoalProgress struct {
	Goal      model.SavingsGoal
	Percent   float64
	Remaining decimal.Decimal
	DaysLeft  int
	Reached   bool
	// ItemsOpen is the total price of items not yet purchased.
	ItemsOpen decimal.Decimal
}

// Goals computes progress for each goal. DaysLeft is -1 without a deadline.
func Goals(goals []model.SavingsGoal, now time.Time) []GoalProgress {
	out := make([]GoalProgress, 0, len(goals))
	for _, g := range goals {
		gp := GoalProgress{Goal: g, DaysLeft: -1}
		if g.TargetAmount.IsPositive() {
			gp.Percent = math.Min(g.CurrentAmount.Div(g.TargetAmount).Mul(hundred).InexactFloat64(), 100)
		}
		gp.Remaining = decimal.Max(g.TargetAmount.Sub(g.CurrentAmount), decimal.Zero)
		gp.Reached = gp.Remaining.IsZero()
		if !g.Deadline.IsZero() {
			gp.DaysLeft = int(math.Max(0, math.Ceil(g.Deadline.Sub(now).Hours()/24)))
		}
		for _, it := range g.Items {
			if !it.Purchased {
				gp.ItemsOpen = gp.ItemsOpen.Add(it.Price)
			}
		}
		out = append(out, gp)
	}
	return out
}

// LoanProgress summarizes repayment of a loan.
type LoanProgress struct {
	Loan           model.Loan
	MonthlyPayment decimal.Decimal
	PaidPercent    float64
}

// MonthlyPayment is the standard amortized payment for principal at an
// annual percentage rate over months, rounded to cents.
func MonthlyPayment(principal, annualRate decimal.Decimal, months int) decimal.Decimal {
	if months <= 0 || !principal.IsPositive() {
		return decimal.Zero
	}
	n := decimal.NewFromInt(int64(months))
	if !annualRate.IsPositive() {
		return principal.Div(n).Round(2)
	}
	r := annualRate.Div(hundred).Div(decimal.NewFromInt(12))
	f := decimal.NewFromInt(1).Add(r).Pow(n)
	return principal.Mul(r).Mul(f).Div(f.Sub(decimal.NewFromInt(1))).Round(2)
}

// Loans computes payment and payoff progress for each loan.
func Loans(loans []model.Loan) []LoanProgress {
	out := make([]LoanProgress, 0, len(loans))
	for _, ln := range loans {
		lp := LoanProgress{
			Loan:           ln,
			MonthlyPayment: MonthlyPayment(ln.Principal, ln.InterestRate, ln.TermMonths),
		}
		if ln.Principal.IsPositive() {
			lp.PaidPercent = ln.Principal.Sub(ln.Remaining).Div(ln.Principal).Mul(hundred).InexactFloat64()
		}
		out = append(out, lp)
	}
	return out
}

// BillsDue returns unpaid bills due within days of now, and unpaid bills
// already past due. Both are sorted by due date.
func BillsDue(bills []model.Bill, now time.Time, days int) (upcoming, overdue []model.Bill) {
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	horizon := today.AddDate(0, 0, days+1)
	for _, b := range bills {
		if b.Status == model.BillPaid {
			continue
		}
		switch {
		case b.DueDate.Before(today):
			overdue = append(overdue, b)
		case b.DueDate.Before(horizon):
			upcoming = append(upcoming, b)
		}
	}
	byDue := func(bs []model.Bill) {
		sort.Slice(bs, func(i, j int) bool { return bs[i].DueDate.Before(bs[j].DueDate) })
	}
	byDue(upcoming)
	byDue(overdue)
	return upcoming, overdue
}
