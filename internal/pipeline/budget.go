package pipeline

import (
	"sort"
	"time"

	"github.com/theirongolddev/fintrack/internal/model"

	"github.com/shopspring/decimal"
)

// BudgetProgress is spending against one category budget for the period
// containing the reference time.
type BudgetProgress struct {
	Category    model.Category
	Budget      decimal.Decimal
	Spent       decimal.Decimal
	Remaining   decimal.Decimal
	Percent     float64
	Over        bool
	PeriodStart time.Time
	PeriodEnd   time.Time
}

// PeriodBounds returns [start, end) of the budget period containing now.
// Monthly is the calendar month; weekly is the ISO week starting Monday.
func PeriodBounds(freq model.Frequency, now time.Time) (time.Time, time.Time) {
	day := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	if freq == model.Weekly {
		offset := (int(day.Weekday()) + 6) % 7
		start := day.AddDate(0, 0, -offset)
		return start, start.AddDate(0, 0, 7)
	}
	start := monthStart(day)
	return start, start.AddDate(0, 1, 0)
}

// Budgets computes progress for every budgeted expense category, sorted by
// percent used descending.
func Budgets(cats []model.Category, txs []model.Transaction, now time.Time) []BudgetProgress {
	var out []BudgetProgress
	for _, c := range cats {
		if !c.HasBudget() {
			continue
		}
		start, end := PeriodBounds(c.Frequency, now)
		bp := BudgetProgress{
			Category:    c,
			Budget:      *c.Budget,
			PeriodStart: start,
			PeriodEnd:   end,
		}
		for _, tx := range FilterByTime(FilterByCategory(txs, c), start, end) {
			if tx.Type == model.Expense && tx.Scope() == c.Workspace {
				bp.Spent = bp.Spent.Add(tx.Amount)
			}
		}
		bp.Remaining = bp.Budget.Sub(bp.Spent)
		bp.Over = bp.Spent.GreaterThan(bp.Budget)
		bp.Percent = bp.Spent.Div(bp.Budget).Mul(decimal.NewFromInt(100)).InexactFloat64()
		out = append(out, bp)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Percent > out[j].Percent })
	return out
}
