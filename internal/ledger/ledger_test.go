package ledger

import (
	"encoding/json"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/theirongolddev/fintrack/internal/model"
	"github.com/theirongolddev/fintrack/internal/store"
	"github.com/theirongolddev/fintrack/internal/syncq"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

func openLedger(t *testing.T) (*Ledger, *store.DB, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "fintrack.db")
	db, err := store.Open(path)
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	l, err := Open(Config{Storage: db, Logger: zerolog.Nop()})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	return l, db, path
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func ops(l *Ledger) []syncq.Operation {
	var out []syncq.Operation
	for _, e := range l.Queue().Entries() {
		out = append(out, e.Operation)
	}
	return out
}

func TestAddTransactionPersistsAndQueues(t *testing.T) {
	l, db, _ := openLedger(t)

	a, err := l.AddTransaction(model.Transaction{Description: "Groceries", Amount: dec("100"), Type: model.Expense})
	if err != nil {
		t.Fatalf("AddTransaction: %v", err)
	}
	if a.ID == "" || a.Workspace != model.WorkspacePersonal || a.Date.IsZero() {
		t.Fatalf("defaults not applied: %+v", a)
	}
	b, err := l.AddTransaction(model.Transaction{Description: "Refund", Amount: dec("50"), Type: model.Income})
	if err != nil {
		t.Fatalf("AddTransaction: %v", err)
	}

	entries := l.Queue().Entries()
	if len(entries) != 2 {
		t.Fatalf("queue len = %d, want 2", len(entries))
	}
	if entries[0].EntityID != a.ID || entries[1].EntityID != b.ID {
		t.Fatal("queue not in insertion order")
	}
	for _, e := range entries {
		if e.Operation != syncq.OpCreate {
			t.Fatalf("op = %s, want create", e.Operation)
		}
	}

	reopened, err := Open(Config{Storage: db, Logger: zerolog.Nop()})
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	txs := reopened.Transactions()
	if len(txs) != 2 || txs[0].ID != a.ID || txs[1].ID != b.ID {
		t.Fatalf("reloaded transactions = %+v", txs)
	}
	if !txs[0].Amount.Equal(dec("100")) {
		t.Fatalf("amount = %s", txs[0].Amount)
	}
}

func TestUpdateMissingIsNotFound(t *testing.T) {
	l, _, _ := openLedger(t)
	_, err := l.UpdateTransaction(model.Transaction{ID: "nope", Amount: dec("1"), Type: model.Expense})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
	if err := l.DeleteBill("nope"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("delete err = %v, want ErrNotFound", err)
	}
	if n := l.Queue().Len(); n != 0 {
		t.Fatalf("queue len = %d after failed mutations, want 0", n)
	}
}

func TestAddWithKnownIDReplaces(t *testing.T) {
	l, _, _ := openLedger(t)
	first, _ := l.AddClient(model.Client{ID: "c1", Name: "Acme"})
	_, _ = l.AddClient(model.Client{ID: "c2", Name: "Globex"})
	if _, err := l.AddClient(model.Client{ID: first.ID, Name: "Acme Corp"}); err != nil {
		t.Fatalf("AddClient: %v", err)
	}

	clients := l.Clients()
	if len(clients) != 2 || clients[0].Name != "Acme Corp" {
		t.Fatalf("clients = %+v", clients)
	}
}

func TestCategoryBudgetUpdateCarriesFullRecord(t *testing.T) {
	l, _, _ := openLedger(t)
	budget := dec("500")
	c, err := l.AddCategory(model.Category{Name: "Food", Type: model.Expense, Budget: &budget})
	if err != nil {
		t.Fatalf("AddCategory: %v", err)
	}
	if c.Frequency != model.Monthly {
		t.Fatalf("frequency = %q, want monthly default", c.Frequency)
	}

	raised := dec("750")
	c.Budget = &raised
	if _, err := l.UpdateCategory(c); err != nil {
		t.Fatalf("UpdateCategory: %v", err)
	}

	entries := l.Queue().Entries()
	last := entries[len(entries)-1]
	if last.Operation != syncq.OpUpdate {
		t.Fatalf("op = %s, want update", last.Operation)
	}
	var sent model.Category
	if err := json.Unmarshal(last.Payload, &sent); err != nil {
		t.Fatalf("payload: %v", err)
	}
	if sent.Name != "Food" || sent.Type != model.Expense || sent.Budget == nil || !sent.Budget.Equal(raised) {
		t.Fatalf("payload = %+v, want full record with budget 750", sent)
	}
}

func TestIncomeCategoryBudgetRejected(t *testing.T) {
	l, _, _ := openLedger(t)
	budget := dec("100")
	_, err := l.AddCategory(model.Category{Name: "Salary", Type: model.Income, Budget: &budget})
	if !errors.Is(err, model.ErrInvalid) {
		t.Fatalf("err = %v, want ErrInvalid", err)
	}
	if len(l.Categories()) != 0 || l.Queue().Len() != 0 {
		t.Fatal("rejected category was stored or queued")
	}
}

func TestDeleteClientKeepsPendingUpdate(t *testing.T) {
	l, _, _ := openLedger(t)
	c, _ := l.AddClient(model.Client{Name: "Initech"})
	c.Email = "billing@initech.example"
	if _, err := l.UpdateClient(c); err != nil {
		t.Fatalf("UpdateClient: %v", err)
	}
	if err := l.DeleteClient(c.ID); err != nil {
		t.Fatalf("DeleteClient: %v", err)
	}

	got := ops(l)
	want := []syncq.Operation{syncq.OpCreate, syncq.OpUpdate, syncq.OpDelete}
	if len(got) != len(want) {
		t.Fatalf("ops = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("ops = %v, want %v", got, want)
		}
	}
	if _, ok := l.Client(c.ID); ok {
		t.Fatal("client still present locally")
	}
}

func TestGoalContributionsEnqueueUpdates(t *testing.T) {
	l, _, _ := openLedger(t)
	g, _ := l.AddGoal(model.SavingsGoal{Name: "Trip", TargetAmount: dec("1000")})

	if _, err := l.ContributeToGoal(g.ID, dec("50"), "Sam"); err != nil {
		t.Fatalf("ContributeToGoal: %v", err)
	}
	g2, err := l.ContributeToGoal(g.ID, dec("30"), "sam")
	if err != nil {
		t.Fatalf("ContributeToGoal: %v", err)
	}
	if !g2.CurrentAmount.Equal(dec("80")) {
		t.Fatalf("current = %s, want 80", g2.CurrentAmount)
	}
	if len(g2.Members) != 1 || !g2.Members[0].Contributed.Equal(dec("80")) {
		t.Fatalf("members = %+v", g2.Members)
	}

	got := ops(l)
	if len(got) != 3 || got[1] != syncq.OpUpdate || got[2] != syncq.OpUpdate {
		t.Fatalf("ops = %v, want create, update, update", got)
	}

	if _, err := l.ContributeToGoal(g.ID, dec("-5"), ""); !errors.Is(err, model.ErrInvalid) {
		t.Fatalf("negative contribution err = %v", err)
	}
}

func TestPurchaseGoalItem(t *testing.T) {
	l, _, _ := openLedger(t)
	g, _ := l.AddGoal(model.SavingsGoal{
		Name:         "Camping",
		TargetAmount: dec("400"),
		Items:        []model.GoalItem{{Name: "Tent", Price: dec("250")}},
	})
	itemID := g.Items[0].ID
	if itemID == "" {
		t.Fatal("item id not assigned")
	}

	g, err := l.PurchaseGoalItem(g.ID, itemID)
	if err != nil {
		t.Fatalf("PurchaseGoalItem: %v", err)
	}
	if !g.Items[0].Purchased || !g.CurrentAmount.Equal(dec("250")) {
		t.Fatalf("goal = %+v", g)
	}
	if _, err := l.PurchaseGoalItem(g.ID, itemID); !errors.Is(err, model.ErrInvalid) {
		t.Fatalf("second purchase err = %v, want ErrInvalid", err)
	}
	if _, err := l.PurchaseGoalItem(g.ID, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("missing item err = %v, want ErrNotFound", err)
	}
}

func TestMarkRecurringBillPaid(t *testing.T) {
	l, _, _ := openLedger(t)
	due := time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC)
	b, _ := l.AddBill(model.Bill{Name: "Rent", Amount: dec("1200"), DueDate: due, Frequency: model.Monthly})

	paid, next, err := l.MarkBillPaid(b.ID)
	if err != nil {
		t.Fatalf("MarkBillPaid: %v", err)
	}
	if paid.Status != model.BillPaid {
		t.Fatalf("status = %s", paid.Status)
	}
	if next == nil || !next.DueDate.Equal(due.AddDate(0, 1, 0)) || next.Status != model.BillUnpaid {
		t.Fatalf("next = %+v", next)
	}
	if len(l.Bills()) != 2 {
		t.Fatalf("bills = %d, want 2", len(l.Bills()))
	}
}

func TestLoanPaymentClampsToZero(t *testing.T) {
	l, _, _ := openLedger(t)
	ln, err := l.AddLoan(model.Loan{Lender: "Bank", Principal: dec("1000"), InterestRate: dec("5"), TermMonths: 12})
	if err != nil {
		t.Fatalf("AddLoan: %v", err)
	}
	if !ln.Remaining.Equal(dec("1000")) || ln.Status != model.LoanActive {
		t.Fatalf("defaults = %+v", ln)
	}

	ln, _ = l.RecordLoanPayment(ln.ID, dec("400"))
	if !ln.Remaining.Equal(dec("600")) {
		t.Fatalf("remaining = %s, want 600", ln.Remaining)
	}
	ln, _ = l.RecordLoanPayment(ln.ID, dec("700"))
	if !ln.Remaining.IsZero() || ln.Status != model.LoanPaid {
		t.Fatalf("after overpayment = %+v", ln)
	}
	if _, err := l.RecordLoanPayment(ln.ID, dec("1")); !errors.Is(err, model.ErrInvalid) {
		t.Fatalf("payment on paid loan err = %v", err)
	}
}

func TestQuoteReferences(t *testing.T) {
	l, _, _ := openLedger(t)
	p, _ := l.AddProduct(model.Product{Name: "Consulting hour", Price: dec("120")})

	_, err := l.AddQuote(model.Quote{ClientID: "ghost", Items: []model.QuoteItem{{ProductID: p.ID, Quantity: 1}}})
	if !errors.Is(err, model.ErrInvalid) {
		t.Fatalf("unknown client err = %v, want ErrInvalid", err)
	}

	c, _ := l.AddClient(model.Client{Name: "Acme"})
	q, err := l.AddQuote(model.Quote{ClientID: c.ID, Items: []model.QuoteItem{{ProductID: p.ID, Quantity: 3}}})
	if err != nil {
		t.Fatalf("AddQuote: %v", err)
	}
	if q.Number != "Q-0001" || q.Status != model.QuoteDraft {
		t.Fatalf("defaults = %+v", q)
	}
	if !q.Total().Equal(dec("360")) {
		t.Fatalf("total = %s, want 360", q.Total())
	}
}

func TestQuoteNumbersNotReusedAfterDelete(t *testing.T) {
	l, _, _ := openLedger(t)
	c, _ := l.AddClient(model.Client{Name: "Acme"})
	p, _ := l.AddProduct(model.Product{Name: "Audit", Price: dec("500")})
	items := []model.QuoteItem{{ProductID: p.ID, Quantity: 1}}

	first, _ := l.AddQuote(model.Quote{ClientID: c.ID, Items: items})
	second, _ := l.AddQuote(model.Quote{ClientID: c.ID, Items: items})
	if first.Number != "Q-0001" || second.Number != "Q-0002" {
		t.Fatalf("numbers = %s, %s", first.Number, second.Number)
	}
	if err := l.DeleteQuote(first.ID); err != nil {
		t.Fatalf("DeleteQuote: %v", err)
	}

	third, err := l.AddQuote(model.Quote{ClientID: c.ID, Items: items})
	if err != nil {
		t.Fatalf("AddQuote: %v", err)
	}
	if third.Number != "Q-0003" {
		t.Fatalf("number after delete = %s, want Q-0003", third.Number)
	}
}

func TestPreferences(t *testing.T) {
	l, db, _ := openLedger(t)
	if l.Currency() != "USD" || l.Workspace() != model.WorkspacePersonal {
		t.Fatalf("defaults = %s/%s", l.Currency(), l.Workspace())
	}
	if err := l.SetCurrency("EUR"); err != nil {
		t.Fatalf("SetCurrency: %v", err)
	}
	if err := l.SetWorkspace(model.WorkspaceBusiness); err != nil {
		t.Fatalf("SetWorkspace: %v", err)
	}
	if err := l.SetWorkspace("shared"); !errors.Is(err, model.ErrInvalid) {
		t.Fatalf("bad workspace err = %v", err)
	}

	tx, _ := l.AddTransaction(model.Transaction{Amount: dec("9"), Type: model.Expense})
	if tx.Workspace != model.WorkspaceBusiness {
		t.Fatalf("workspace = %s, want business", tx.Workspace)
	}

	reopened, _ := Open(Config{Storage: db, Logger: zerolog.Nop()})
	if reopened.Currency() != "EUR" || reopened.Workspace() != model.WorkspaceBusiness {
		t.Fatalf("reloaded = %s/%s", reopened.Currency(), reopened.Workspace())
	}
	if reopened.Queue().Len() != 1 {
		t.Fatalf("preferences were queued for sync: len=%d", reopened.Queue().Len())
	}
}

type brokenPuts struct {
	*store.DB
}

func (brokenPuts) Put(string, []byte) error { return errors.New("disk full") }

func TestPersistFailureIsNonFatal(t *testing.T) {
	_, db, _ := openLedger(t)
	l, err := Open(Config{Storage: brokenPuts{db}, Logger: zerolog.Nop()})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if _, err := l.AddBill(model.Bill{Name: "Power", Amount: dec("80"), DueDate: time.Now()}); err != nil {
		t.Fatalf("AddBill: %v", err)
	}
	if len(l.Bills()) != 1 {
		t.Fatal("bill missing from memory")
	}
	if l.PersistFailures() != 1 {
		t.Fatalf("PersistFailures = %d, want 1", l.PersistFailures())
	}
	if l.Queue().Len() != 1 {
		t.Fatalf("queue len = %d, want 1", l.Queue().Len())
	}
}
