package pipeline

import (
	"testing"
	"time"

	"github.com/theirongolddev/fintrack/internal/model"

	"github.com/shopspring/decimal"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func day(y int, m time.Month, dd int) time.Time {
	return time.Date(y, m, dd, 12, 0, 0, 0, time.UTC)
}

func tx(id string, date time.Time, amount string, typ model.FlowType, cat string) model.Transaction {
	return model.Transaction{ID: id, Date: date, Amount: d(amount), Type: typ, Category: cat, Workspace: model.WorkspacePersonal}
}

func TestAggregateTotals(t *testing.T) {
	txs := []model.Transaction{
		tx("a", day(2025, 3, 1), "100", model.Expense, "food"),
		tx("b", day(2025, 3, 2), "50", model.Income, ""),
		tx("c", day(2025, 4, 1), "999", model.Expense, "food"),
	}
	got := Aggregate(txs, day(2025, 3, 1).Add(-time.Hour), day(2025, 4, 1).Add(-time.Hour))
	if got.Transactions != 2 {
		t.Fatalf("Transactions = %d, want 2", got.Transactions)
	}
	if !got.Expense.Equal(d("100")) || !got.Income.Equal(d("50")) || !got.Net.Equal(d("-50")) {
		t.Fatalf("totals = %+v", got)
	}
}

func TestAggregateCategoriesSortedByAmount(t *testing.T) {
	txs := []model.Transaction{
		tx("a", day(2025, 3, 1), "30", model.Expense, "rent"),
		tx("b", day(2025, 3, 2), "60", model.Expense, "food"),
		tx("c", day(2025, 3, 3), "10", model.Expense, "rent"),
	}
	got := AggregateCategories(txs, time.Time{}, time.Time{})
	if len(got) != 2 || got[0].Category != "food" || !got[1].Amount.Equal(d("40")) {
		t.Fatalf("categories = %+v", got)
	}
	if got[0].SharePercent < 59.9 || got[0].SharePercent > 60.1 {
		t.Fatalf("share = %f, want 60", got[0].SharePercent)
	}
}

func TestAggregateMonthsZeroFills(t *testing.T) {
	txs := []model.Transaction{tx("a", day(2025, 1, 10), "5", model.Expense, "")}
	got := AggregateMonths(txs, day(2025, 1, 1), day(2025, 3, 15))
	if len(got) != 3 {
		t.Fatalf("months = %d, want 3", len(got))
	}
	if got[0].Month.Month() != time.March || got[2].Month.Month() != time.January {
		t.Fatal("months not most-recent first")
	}
	if got[2].Transactions != 1 || got[1].Transactions != 0 {
		t.Fatalf("months = %+v", got)
	}
}

func TestPeriodBounds(t *testing.T) {
	// 2025-06-12 is a Thursday.
	now := time.Date(2025, 6, 12, 15, 0, 0, 0, time.UTC)

	start, end := PeriodBounds(model.Weekly, now)
	if start.Weekday() != time.Monday || start.Day() != 9 || end.Day() != 16 {
		t.Fatalf("weekly = %s..%s", start, end)
	}
	start, end = PeriodBounds(model.Monthly, now)
	if start.Day() != 1 || start.Month() != time.June || end.Month() != time.July {
		t.Fatalf("monthly = %s..%s", start, end)
	}

	sunday := time.Date(2025, 6, 15, 9, 0, 0, 0, time.UTC)
	start, _ = PeriodBounds(model.Weekly, sunday)
	if start.Day() != 9 {
		t.Fatalf("sunday belongs to week starting %s", start)
	}
}

func TestBudgets(t *testing.T) {
	food := d("200")
	weekly := d("50")
	cats := []model.Category{
		{ID: "c1", Name: "Food", Type: model.Expense, Budget: &food, Frequency: model.Monthly, Workspace: model.WorkspacePersonal},
		{ID: "c2", Name: "Coffee", Type: model.Expense, Budget: &weekly, Frequency: model.Weekly, Workspace: model.WorkspacePersonal},
		{ID: "c3", Name: "Salary", Type: model.Income, Workspace: model.WorkspacePersonal},
	}
	now := time.Date(2025, 6, 12, 15, 0, 0, 0, time.UTC)
	txs := []model.Transaction{
		tx("a", day(2025, 6, 2), "150", model.Expense, "c1"),
		tx("b", day(2025, 5, 30), "500", model.Expense, "c1"),
		tx("c", day(2025, 6, 10), "30", model.Expense, "coffee"),
		tx("d", day(2025, 6, 11), "30", model.Expense, "Coffee"),
		tx("e", day(2025, 6, 5), "20", model.Expense, "Coffee"),
	}

	got := Budgets(cats, txs, now)
	if len(got) != 2 {
		t.Fatalf("budgets = %d, want 2", len(got))
	}
	coffee, food2 := got[0], got[1]
	if coffee.Category.ID != "c2" || !coffee.Spent.Equal(d("60")) || !coffee.Over {
		t.Fatalf("coffee = %+v", coffee)
	}
	if !coffee.Remaining.Equal(d("-10")) {
		t.Fatalf("coffee remaining = %s", coffee.Remaining)
	}
	if !food2.Spent.Equal(d("150")) || food2.Over || food2.Percent != 75 {
		t.Fatalf("food = %+v", food2)
	}
}

func TestGoals(t *testing.T) {
	now := day(2025, 6, 1)
	goals := []model.SavingsGoal{{
		ID: "g", Name: "Bike", TargetAmount: d("800"), CurrentAmount: d("200"),
		Deadline: day(2025, 6, 11),
		Items:    []model.GoalItem{{ID: "i1", Price: d("500")}, {ID: "i2", Price: d("100"), Purchased: true}},
	}}
	got := Goals(goals, now)[0]
	if got.Percent != 25 || !got.Remaining.Equal(d("600")) || got.Reached {
		t.Fatalf("progress = %+v", got)
	}
	if got.DaysLeft != 10 {
		t.Fatalf("DaysLeft = %d, want 10", got.DaysLeft)
	}
	if !got.ItemsOpen.Equal(d("500")) {
		t.Fatalf("ItemsOpen = %s", got.ItemsOpen)
	}
}

func TestMonthlyPayment(t *testing.T) {
	tests := []struct {
		principal, rate string
		months          int
		want            string
	}{
		{"1000", "12", 12, "88.85"},
		{"1200", "0", 12, "100"},
		{"200000", "6", 360, "1199.10"},
		{"1000", "5", 0, "0"},
	}
	for _, tt := range tests {
		got := MonthlyPayment(d(tt.principal), d(tt.rate), tt.months)
		if !got.Equal(d(tt.want)) {
			t.Errorf("MonthlyPayment(%s, %s, %d) = %s, want %s", tt.principal, tt.rate, tt.months, got, tt.want)
		}
	}
}

func TestLoansPaidPercent(t *testing.T) {
	got := Loans([]model.Loan{{Principal: d("1000"), Remaining: d("250"), TermMonths: 10}})
	if got[0].PaidPercent != 75 || !got[0].MonthlyPayment.Equal(d("100")) {
		t.Fatalf("loan = %+v", got[0])
	}
}

func TestBillsDue(t *testing.T) {
	now := time.Date(2025, 6, 10, 18, 0, 0, 0, time.UTC)
	bills := []model.Bill{
		{ID: "late", DueDate: day(2025, 6, 8), Status: model.BillUnpaid},
		{ID: "paid", DueDate: day(2025, 6, 9), Status: model.BillPaid},
		{ID: "today", DueDate: time.Date(2025, 6, 10, 0, 0, 0, 0, time.UTC), Status: model.BillUnpaid},
		{ID: "soon", DueDate: day(2025, 6, 17), Status: model.BillUnpaid},
		{ID: "later", DueDate: day(2025, 6, 18), Status: model.BillUnpaid},
	}
	upcoming, overdue := BillsDue(bills, now, 7)
	if len(overdue) != 1 || overdue[0].ID != "late" {
		t.Fatalf("overdue = %+v", overdue)
	}
	if len(upcoming) != 2 || upcoming[0].ID != "today" || upcoming[1].ID != "soon" {
		t.Fatalf("upcoming = %+v", upcoming)
	}
}

func TestFilterByWorkspace(t *testing.T) {
	txs := []model.Transaction{
		{ID: "a", Workspace: model.WorkspacePersonal},
		{ID: "b", Workspace: model.WorkspaceBusiness},
	}
	got := FilterByWorkspace(txs, model.WorkspaceBusiness)
	if len(got) != 1 || got[0].ID != "b" {
		t.Fatalf("got %+v", got)
	}
}
