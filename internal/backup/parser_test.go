package backup

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/theirongolddev/fintrack/internal/ledger"
	"github.com/theirongolddev/fintrack/internal/model"
	"github.com/theirongolddev/fintrack/internal/store"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// writeBackup creates a temp JSONL file and returns its path.
func writeBackup(t *testing.T, lines ...string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "backup.jsonl")
	if err := os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func openLedger(t *testing.T) *ledger.Ledger {
	t.Helper()
	db, err := store.Open(filepath.Join(t.TempDir(), "fintrack.db"))
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	l, err := ledger.Open(ledger.Config{Storage: db, Logger: zerolog.Nop()})
	if err != nil {
		t.Fatalf("ledger.Open: %v", err)
	}
	return l
}

func TestParseFile_Records(t *testing.T) {
	path := writeBackup(t,
		`{"entity":"transaction","data":{"id":"t1","date":"2025-06-01T10:00:00Z","description":"Rent","amount":"900","type":"expense","workspace":"personal"}}`,
		`{"entity":"client","data":{"id":"c1","name":"Acme","workspace":"business"}}`,
		``,
		`{"data":{"id":"t2","entity":"bill"},"entity":"transaction"}`,
	)

	result := ParseFile(path)
	if result.Err != nil {
		t.Fatalf("unexpected error: %v", result.Err)
	}
	if result.Lines != 3 {
		t.Errorf("Lines = %d, want 3", result.Lines)
	}
	if n := len(result.Set.Transactions); n != 2 {
		t.Fatalf("Transactions = %d, want 2", n)
	}
	if got := result.Set.Transactions[0].Amount; !got.Equal(decimal.NewFromInt(900)) {
		t.Errorf("Amount = %s, want 900", got)
	}
	if n := len(result.Set.Clients); n != 1 {
		t.Errorf("Clients = %d, want 1", n)
	}
}

func TestParseFile_Dedup(t *testing.T) {
	// Same id twice: the later line wins and keeps its original position.
	path := writeBackup(t,
		`{"entity":"category","data":{"id":"c1","name":"Food","type":"expense","workspace":"personal"}}`,
		`{"entity":"category","data":{"id":"c2","name":"Rent","type":"expense","workspace":"personal"}}`,
		`{"entity":"category","data":{"id":"c1","name":"Groceries","type":"expense","workspace":"personal"}}`,
	)

	result := ParseFile(path)
	cats := result.Set.Categories
	if len(cats) != 2 {
		t.Fatalf("Categories = %d, want 2 (dedup)", len(cats))
	}
	if cats[0].ID != "c1" || cats[0].Name != "Groceries" {
		t.Errorf("first = %+v, want c1 Groceries (last wins)", cats[0])
	}
}

func TestParseFile_BadLines(t *testing.T) {
	path := writeBackup(t,
		`not json`,
		`{"entity":"invoice","data":{"id":"i1"}}`,
		`{"entity":"bill","data":{"name":"no id"}}`,
		`{"entity":"bill","data":"oops"}`,
		`{"entity":"bill","data":{"id":"b1","name":"Power","amount":"60","status":"unpaid","workspace":"personal"}}`,
	)

	result := ParseFile(path)
	if result.Err != nil {
		t.Fatalf("unexpected error: %v", result.Err)
	}
	if result.Skipped != 1 {
		t.Errorf("Skipped = %d, want 1", result.Skipped)
	}
	if result.ParseErrors != 3 {
		t.Errorf("ParseErrors = %d, want 3", result.ParseErrors)
	}
	if len(result.Set.Bills) != 1 {
		t.Errorf("Bills = %d, want 1", len(result.Set.Bills))
	}
}

func TestParseFile_Missing(t *testing.T) {
	result := ParseFile(filepath.Join(t.TempDir(), "nope.jsonl"))
	if result.Err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestExtractTopLevelEntity(t *testing.T) {
	tests := []struct {
		line string
		want string
		ok   bool
	}{
		{`{"entity":"bill","data":{}}`, "bill", true},
		{`{"data":{"entity":"loan"},"entity":"goal"}`, "goal", true},
		{`{"data":{"note":"\"entity\":\"loan\""},"entity" : "quote"}`, "quote", true},
		{`{"kind":"entity","data":{}}`, "", false},
		{`{"entity":42}`, "", false},
		{`{}`, "", false},
	}
	for _, tt := range tests {
		got, ok := extractTopLevelEntity([]byte(tt.line))
		if got != tt.want || ok != tt.ok {
			t.Errorf("extractTopLevelEntity(%s) = %q, %v; want %q, %v", tt.line, got, ok, tt.want, tt.ok)
		}
	}
}

func TestScanDir(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"b.jsonl", "a.jsonl", "notes.txt"} {
		if err := os.WriteFile(filepath.Join(dir, name), nil, 0o600); err != nil {
			t.Fatal(err)
		}
	}

	files, err := ScanDir(dir)
	if err != nil {
		t.Fatalf("ScanDir: %v", err)
	}
	if len(files) != 2 || filepath.Base(files[0]) != "a.jsonl" || filepath.Base(files[1]) != "b.jsonl" {
		t.Fatalf("files = %v", files)
	}

	single, err := ScanDir(filepath.Join(dir, "notes.txt"))
	if err != nil || len(single) != 1 {
		t.Fatalf("ScanDir(file) = %v, %v", single, err)
	}
}

func TestWriteApplyRoundTrip(t *testing.T) {
	src := openLedger(t)
	cl, err := src.AddClient(model.Client{Name: "Acme"})
	if err != nil {
		t.Fatalf("AddClient: %v", err)
	}
	pr, err := src.AddProduct(model.Product{Name: "Widget", Price: decimal.NewFromInt(25)})
	if err != nil {
		t.Fatalf("AddProduct: %v", err)
	}
	if _, err := src.AddQuote(model.Quote{
		ClientID: cl.ID,
		Items:    []model.QuoteItem{{ProductID: pr.ID, Quantity: 4}},
	}); err != nil {
		t.Fatalf("AddQuote: %v", err)
	}
	if _, err := src.AddTransaction(model.Transaction{
		Description: "Coffee", Amount: decimal.NewFromInt(4), Type: model.Expense,
	}); err != nil {
		t.Fatalf("AddTransaction: %v", err)
	}

	var buf bytes.Buffer
	n, err := Write(&buf, src)
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	if n != 4 {
		t.Fatalf("wrote %d records, want 4", n)
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if !strings.HasPrefix(lines[len(lines)-1], `{"entity":"quote"`) {
		t.Errorf("last line = %s, want the quote", lines[len(lines)-1])
	}

	parsed := Parse(&buf)
	if parsed.Set.Len() != 4 || parsed.ParseErrors != 0 {
		t.Fatalf("parsed %d records, %d errors", parsed.Set.Len(), parsed.ParseErrors)
	}

	dst := openLedger(t)
	for i := 0; i < 2; i++ {
		res := Apply(dst, parsed.Set)
		if res.Rejected != 0 {
			t.Fatalf("apply #%d rejected %d: %v", i+1, res.Rejected, res.Err)
		}
		if res.Total() != 4 {
			t.Fatalf("apply #%d applied %d, want 4", i+1, res.Total())
		}
	}
	if got := len(dst.Quotes()); got != 1 {
		t.Fatalf("quotes after two imports = %d, want 1", got)
	}
	if got := dst.Quotes()[0].Total(); !got.Equal(decimal.NewFromInt(100)) {
		t.Errorf("quote total = %s, want 100", got)
	}
}

func TestApplyCountsRejections(t *testing.T) {
	dst := openLedger(t)
	res := Apply(dst, Set{
		Transactions: []model.Transaction{{ID: "t1", Description: "Zero", Type: model.Expense}},
		Clients:      []model.Client{{ID: "c1", Name: "Acme"}},
	})
	if res.Rejected != 1 || res.Err == nil {
		t.Fatalf("Rejected = %d, Err = %v; want 1 rejection", res.Rejected, res.Err)
	}
	if res.Applied[model.EntityClient] != 1 {
		t.Errorf("clients applied = %d, want 1", res.Applied[model.EntityClient])
	}
}
