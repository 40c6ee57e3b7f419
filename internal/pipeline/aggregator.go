// Package pipeline aggregates ledger records into the summary views shown by
// the CLI and the dashboard.
package pipeline

import (
	"sort"
	"strings"
	"time"

	"github.com/theirongolddev/fintrack/internal/model"

	"github.com/shopspring/decimal"
)

// Totals is income, expense and net for a set of transactions.
type Totals struct {
	Income       decimal.Decimal
	Expense      decimal.Decimal
	Net          decimal.Decimal
	Transactions int
}

// CategoryTotal is the amount spent or earned under one category.
type CategoryTotal struct {
	Category     string
	Type         model.FlowType
	Amount       decimal.Decimal
	Transactions int
	SharePercent float64
}

// MonthTotal is one calendar month of Totals.
type MonthTotal struct {
	Month time.Time
	Totals
}

// Aggregate computes totals for transactions in [since, until).
func Aggregate(txs []model.Transaction, since, until time.Time) Totals {
	var t Totals
	for _, tx := range FilterByTime(txs, since, until) {
		t.add(tx)
	}
	return t
}

func (t *Totals) add(tx model.Transaction) {
	t.Transactions++
	switch tx.Type {
	case model.Income:
		t.Income = t.Income.Add(tx.Amount)
	case model.Expense:
		t.Expense = t.Expense.Add(tx.Amount)
	}
	t.Net = t.Income.Sub(t.Expense)
}

// AggregateCategories totals transactions per category, sorted by amount
// descending. Uncategorized transactions are grouped under "".
func AggregateCategories(txs []model.Transaction, since, until time.Time) []CategoryTotal {
	byKey := make(map[string]*CategoryTotal)
	sums := make(map[model.FlowType]decimal.Decimal)

	for _, tx := range FilterByTime(txs, since, until) {
		key := string(tx.Type) + "\x00" + tx.Category
		ct, ok := byKey[key]
		if !ok {
			ct = &CategoryTotal{Category: tx.Category, Type: tx.Type}
			byKey[key] = ct
		}
		ct.Amount = ct.Amount.Add(tx.Amount)
		ct.Transactions++
		sums[tx.Type] = sums[tx.Type].Add(tx.Amount)
	}

	out := make([]CategoryTotal, 0, len(byKey))
	for _, ct := range byKey {
		if sum := sums[ct.Type]; sum.IsPositive() {
			ct.SharePercent = ct.Amount.Div(sum).Mul(decimal.NewFromInt(100)).InexactFloat64()
		}
		out = append(out, *ct)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Amount.Equal(out[j].Amount) {
			return out[i].Amount.GreaterThan(out[j].Amount)
		}
		return out[i].Category < out[j].Category
	})
	return out
}

// AggregateMonths returns one entry per calendar month in [since, until),
// most recent first. Months without transactions are zero-filled.
func AggregateMonths(txs []model.Transaction, since, until time.Time) []MonthTotal {
	byMonth := make(map[time.Time]*MonthTotal)
	for _, tx := range FilterByTime(txs, since, until) {
		m := monthStart(tx.Date)
		mt, ok := byMonth[m]
		if !ok {
			mt = &MonthTotal{Month: m}
			byMonth[m] = mt
		}
		mt.add(tx)
	}

	if !since.IsZero() && !until.IsZero() {
		for m := monthStart(since); m.Before(until); m = m.AddDate(0, 1, 0) {
			if _, ok := byMonth[m]; !ok {
				byMonth[m] = &MonthTotal{Month: m}
			}
		}
	}

	out := make([]MonthTotal, 0, len(byMonth))
	for _, mt := range byMonth {
		out = append(out, *mt)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Month.After(out[j].Month) })
	return out
}

// FilterByTime returns transactions dated within [since, until). Zero bounds
// are open.
func FilterByTime(txs []model.Transaction, since, until time.Time) []model.Transaction {
	if since.IsZero() && until.IsZero() {
		return txs
	}
	var out []model.Transaction
	for _, tx := range txs {
		if !since.IsZero() && tx.Date.Before(since) {
			continue
		}
		if !until.IsZero() && !tx.Date.Before(until) {
			continue
		}
		out = append(out, tx)
	}
	return out
}

// FilterByWorkspace keeps records tagged with w.
func FilterByWorkspace[T model.Record](recs []T, w model.Workspace) []T {
	var out []T
	for _, r := range recs {
		if r.Scope() == w {
			out = append(out, r)
		}
	}
	return out
}

// FilterByCategory keeps transactions whose category matches c by id or
// case-insensitive name.
func FilterByCategory(txs []model.Transaction, c model.Category) []model.Transaction {
	var out []model.Transaction
	for _, tx := range txs {
		if inCategory(tx, c) {
			out = append(out, tx)
		}
	}
	return out
}

func inCategory(tx model.Transaction, c model.Category) bool {
	if tx.Category == "" {
		return false
	}
	return tx.Category == c.ID || strings.EqualFold(tx.Category, c.Name)
}

func monthStart(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
}
