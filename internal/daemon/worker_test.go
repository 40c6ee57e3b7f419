package daemon

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"math/rand"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/theirongolddev/fintrack/internal/ledger"
	"github.com/theirongolddev/fintrack/internal/model"
	"github.com/theirongolddev/fintrack/internal/remote"
	"github.com/theirongolddev/fintrack/internal/store"
	"github.com/theirongolddev/fintrack/internal/syncq"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

type fixture struct {
	db      *store.DB
	ledger  *ledger.Ledger
	backend *remote.Memory
	worker  *Worker
}

func newFixture(t *testing.T) *fixture {
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
	backend := remote.NewMemory()
	w := NewWorker(WorkerConfig{Queue: l.Queue(), Backend: backend, Logger: zerolog.Nop()})
	return &fixture{db: db, ledger: l, backend: backend, worker: w}
}

func amount(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestOfflineThenOnline(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.backend.SetOffline(true)

	a, _ := f.ledger.AddTransaction(model.Transaction{Description: "A", Amount: amount("100"), Type: model.Expense})
	b, _ := f.ledger.AddTransaction(model.Transaction{Description: "B", Amount: amount("50"), Type: model.Income})

	n, err := f.worker.Drain(ctx)
	if !errors.Is(err, remote.ErrUnavailable) || n != 0 {
		t.Fatalf("Drain offline = %d, %v; want 0, ErrUnavailable", n, err)
	}
	if f.worker.Online() {
		t.Fatal("worker still online after unavailable backend")
	}
	entries := f.ledger.Queue().Entries()
	if len(entries) != 2 || entries[0].RetryCount != 1 || entries[0].State != syncq.StatePending {
		t.Fatalf("queue after failure = %+v", entries)
	}
	if entries[1].RetryCount != 0 {
		t.Fatal("second entry attempted after head failed")
	}

	f.backend.SetOffline(false)
	f.worker.ping(ctx)
	if !f.worker.Online() {
		t.Fatal("ping did not bring worker online")
	}
	n, err = f.worker.Drain(ctx)
	if err != nil || n != 2 {
		t.Fatalf("Drain online = %d, %v; want 2, nil", n, err)
	}
	if f.ledger.Queue().Len() != 0 {
		t.Fatalf("queue len = %d, want 0", f.ledger.Queue().Len())
	}

	calls := f.backend.Calls()
	if len(calls) != 2 || calls[0].Row.ID != a.ID || calls[1].Row.ID != b.ID {
		t.Fatalf("calls = %+v, want A then B", calls)
	}
	if st := f.worker.Stats(); st.Delivered != 2 || st.LastSync.IsZero() || st.LastError != "" {
		t.Fatalf("stats = %+v", st)
	}
}

func TestDrainKeepsFIFOUnderFailures(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	var want []string
	for i := 0; i < 6; i++ {
		c, err := f.ledger.AddClient(model.Client{Name: "client"})
		if err != nil {
			t.Fatalf("AddClient: %v", err)
		}
		want = append(want, c.ID)
	}

	attempt := 0
	f.backend.Inject = func(remote.Call) error {
		attempt++
		if attempt%3 == 0 {
			return remote.ErrRateLimited
		}
		return nil
	}

	for i := 0; i < 20 && f.ledger.Queue().Len() > 0; i++ {
		_, _ = f.worker.Drain(ctx)
	}
	if f.ledger.Queue().Len() != 0 {
		t.Fatalf("queue not drained: %d left", f.ledger.Queue().Len())
	}

	calls := f.backend.Calls()
	if len(calls) != len(want) {
		t.Fatalf("applied %d writes, want %d", len(calls), len(want))
	}
	for i, c := range calls {
		if c.Row.ID != want[i] {
			t.Fatalf("write %d = %s, want %s", i, c.Row.ID, want[i])
		}
	}
	if !f.worker.Online() {
		t.Fatal("rate limiting must not mark the worker offline")
	}
}

func TestRejectedEntryBlocksQueue(t *testing.T) {
	f := newFixture(t)
	_, _ = f.ledger.AddProduct(model.Product{Name: "Widget", Price: amount("5")})
	_, _ = f.ledger.AddProduct(model.Product{Name: "Gadget", Price: amount("7")})

	f.backend.Inject = func(remote.Call) error { return remote.ErrRejected }
	for i := 0; i < 3; i++ {
		_, _ = f.worker.Drain(context.Background())
	}

	entries := f.ledger.Queue().Entries()
	if len(entries) != 2 || entries[0].RetryCount != 3 || entries[1].RetryCount != 0 {
		t.Fatalf("entries = %+v", entries)
	}
	if entries[0].LastError == "" {
		t.Fatal("last error not recorded")
	}
}

func TestRedeliveryIsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	g, _ := f.ledger.AddGoal(model.SavingsGoal{Name: "Trip", TargetAmount: amount("900")})

	// Simulate a crash after the remote write but before the ack.
	head, _ := f.ledger.Queue().Head()
	if err := f.ledger.Queue().MarkInFlight(head.ID); err != nil {
		t.Fatalf("MarkInFlight: %v", err)
	}
	if err := f.worker.deliver(ctx, head); err != nil {
		t.Fatalf("deliver: %v", err)
	}

	q, err := syncq.Open(f.db)
	if err != nil {
		t.Fatalf("reopen queue: %v", err)
	}
	if e, _ := q.Head(); e.State != syncq.StateInFlight {
		t.Fatalf("state after reopen = %s, want in_flight", e.State)
	}
	w := NewWorker(WorkerConfig{Queue: q, Backend: f.backend, Logger: zerolog.Nop()})
	if n, err := w.Drain(ctx); n != 1 || err != nil {
		t.Fatalf("Drain = %d, %v; want 1, nil", n, err)
	}
	if q.Len() != 0 {
		t.Fatalf("queue len = %d after redelivery", q.Len())
	}

	if n := f.backend.Len(model.EntityGoal); n != 1 {
		t.Fatalf("remote goals = %d, want 1", n)
	}
	row, _ := f.backend.Get(model.EntityGoal, g.ID)
	want, _ := json.Marshal(g)
	if !bytes.Equal(row.Data, want) {
		t.Fatalf("remote data = %s, want %s", row.Data, want)
	}
}

func TestQueueSurvivesRestart(t *testing.T) {
	f := newFixture(t)
	f.backend.SetOffline(true)
	_, _ = f.ledger.AddBill(model.Bill{Name: "Water", Amount: amount("40"), DueDate: time.Now()})
	_, _ = f.worker.Drain(context.Background())
	f.worker.Release()

	l2, err := ledger.Open(ledger.Config{Storage: f.db, Logger: zerolog.Nop()})
	if err != nil {
		t.Fatalf("ledger.Open: %v", err)
	}
	entries := l2.Queue().Entries()
	if len(entries) != 1 || entries[0].RetryCount != 1 {
		t.Fatalf("entries after restart = %+v", entries)
	}

	online := remote.NewMemory()
	w := NewWorker(WorkerConfig{Queue: l2.Queue(), Backend: online, Logger: zerolog.Nop()})
	if n, err := w.Drain(context.Background()); n != 1 || err != nil {
		t.Fatalf("Drain = %d, %v", n, err)
	}
	if online.Len(model.EntityBill) != 1 {
		t.Fatal("bill not delivered after restart")
	}
}

func TestDrainSkipsEntryAckedElsewhere(t *testing.T) {
	f := newFixture(t)
	c, _ := f.ledger.AddClient(model.Client{Name: "Acme"})

	other, err := syncq.Open(f.db)
	if err != nil {
		t.Fatalf("syncq.Open: %v", err)
	}
	head, _ := other.Head()
	if err := other.Ack(head.ID); err != nil {
		t.Fatalf("Ack: %v", err)
	}

	n, err := f.worker.Drain(context.Background())
	if err != nil || n != 0 {
		t.Fatalf("Drain = %d, %v; want 0, nil", n, err)
	}
	if _, ok := f.backend.Get(model.EntityClient, c.ID); ok {
		t.Fatal("entry acked by another process was redelivered")
	}
}

// gatedBackend holds the first upsert until release is closed.
type gatedBackend struct {
	remote.Backend
	once    sync.Once
	entered chan struct{}
	release chan struct{}
}

func (g *gatedBackend) Upsert(ctx context.Context, row remote.Row) error {
	g.once.Do(func() {
		close(g.entered)
		<-g.release
	})
	return g.Backend.Upsert(ctx, row)
}

func TestTwoWorkersDeliverInOrder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	c, _ := f.ledger.AddCategory(model.Category{Name: "Food", Type: model.Expense})
	c.Name = "Groceries"
	c, err := f.ledger.UpdateCategory(c)
	if err != nil {
		t.Fatalf("UpdateCategory: %v", err)
	}

	// A second process sharing the same database.
	qb, err := syncq.Open(f.db)
	if err != nil {
		t.Fatalf("syncq.Open: %v", err)
	}
	gate := &gatedBackend{Backend: f.backend, entered: make(chan struct{}), release: make(chan struct{})}
	wb := NewWorker(WorkerConfig{Queue: qb, Backend: gate, Role: syncq.RoleDashboard, Logger: zerolog.Nop()})

	type result struct {
		n   int
		err error
	}
	done := make(chan result, 1)
	go func() {
		n, err := wb.Drain(ctx)
		done <- result{n, err}
	}()
	<-gate.entered

	// While b holds v1 in flight, a must neither deliver nor claim it.
	if n, err := f.worker.Drain(ctx); n != 0 || !errors.Is(err, syncq.ErrOwned) {
		t.Fatalf("concurrent Drain = %d, %v; want 0, ErrOwned", n, err)
	}
	head, _ := f.ledger.Queue().Head()
	if err := f.ledger.Queue().MarkInFlight(head.ID); !errors.Is(err, syncq.ErrClaimed) {
		t.Fatalf("MarkInFlight on claimed head = %v, want ErrClaimed", err)
	}

	close(gate.release)
	res := <-done
	if res.err != nil || res.n != 2 {
		t.Fatalf("owner Drain = %d, %v; want 2, nil", res.n, res.err)
	}

	calls := f.backend.Calls()
	if len(calls) != 2 || calls[0].Op != "upsert" || calls[1].Op != "upsert" {
		t.Fatalf("calls = %+v, want two upserts", calls)
	}
	var first model.Category
	if err := json.Unmarshal(calls[0].Row.Data, &first); err != nil || first.Name != "Food" {
		t.Fatalf("first write = %s, want v1", calls[0].Row.Data)
	}
	row, _ := f.backend.Get(model.EntityCategory, c.ID)
	want, _ := json.Marshal(c)
	if !bytes.Equal(row.Data, want) {
		t.Fatalf("remote = %s, want latest local %s", row.Data, want)
	}

	wb.Release()
	if n, err := f.worker.Drain(ctx); n != 0 || err != nil {
		t.Fatalf("Drain after release = %d, %v; want 0, nil", n, err)
	}
}

// Any interleaving of mutations and failed deliveries converges: once the
// queue drains, the remote tables equal the local collections.
func TestReplayConvergesToLocalState(t *testing.T) {
	for seed := int64(1); seed <= 5; seed++ {
		f := newFixture(t)
		rng := rand.New(rand.NewSource(seed))
		f.backend.Inject = func(remote.Call) error {
			if rng.Intn(4) == 0 {
				return remote.ErrUnavailable
			}
			return nil
		}

		var ids []string
		for step := 0; step < 40; step++ {
			switch op := rng.Intn(4); {
			case op == 0 || len(ids) == 0:
				c, err := f.ledger.AddCategory(model.Category{Name: "cat", Type: model.Expense})
				if err != nil {
					t.Fatalf("seed %d: AddCategory: %v", seed, err)
				}
				ids = append(ids, c.ID)
			case op == 1:
				id := ids[rng.Intn(len(ids))]
				if c, ok := f.ledger.Category(id); ok {
					c.Name = c.Name + "+"
					if _, err := f.ledger.UpdateCategory(c); err != nil {
						t.Fatalf("seed %d: UpdateCategory: %v", seed, err)
					}
				}
			case op == 2:
				i := rng.Intn(len(ids))
				if err := f.ledger.DeleteCategory(ids[i]); err != nil {
					t.Fatalf("seed %d: DeleteCategory: %v", seed, err)
				}
				ids = append(ids[:i], ids[i+1:]...)
			default:
				_, _ = f.worker.Drain(context.Background())
			}
		}

		for i := 0; i < 200 && f.ledger.Queue().Len() > 0; i++ {
			_, _ = f.worker.Drain(context.Background())
		}
		if f.ledger.Queue().Len() != 0 {
			t.Fatalf("seed %d: queue not drained", seed)
		}

		local := f.ledger.Categories()
		if got := f.backend.Len(model.EntityCategory); got != len(local) {
			t.Fatalf("seed %d: remote has %d categories, local %d", seed, got, len(local))
		}
		for _, c := range local {
			row, ok := f.backend.Get(model.EntityCategory, c.ID)
			want, _ := json.Marshal(c)
			if !ok || !bytes.Equal(row.Data, want) {
				t.Fatalf("seed %d: remote %s = %s, want %s", seed, c.ID, row.Data, want)
			}
		}
	}
}

func TestRunDeliversOnEnqueue(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = f.worker.Run(ctx)
	}()

	tx, _ := f.ledger.AddTransaction(model.Transaction{Amount: amount("12"), Type: model.Expense})

	deadline := time.Now().Add(5 * time.Second)
	for f.ledger.Queue().Len() > 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	cancel()
	<-done

	if _, ok := f.backend.Get(model.EntityTransaction, tx.ID); !ok {
		t.Fatal("transaction not delivered by running worker")
	}
}

func TestFinalDrainOnShutdown(t *testing.T) {
	f := newFixture(t)
	f.backend.SetOffline(true)
	_, _ = f.ledger.AddLoan(model.Loan{Lender: "Bank", Principal: amount("100"), TermMonths: 2})
	_, _ = f.worker.Drain(context.Background())

	f.backend.SetOffline(false)
	f.worker.finalDrain()
	if f.ledger.Queue().Len() != 0 {
		t.Fatal("final drain left entries behind")
	}
}
