package daemon

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/theirongolddev/fintrack/internal/model"

	"github.com/rs/zerolog"
)

func TestRemoteReporterReadsDaemonStatus(t *testing.T) {
	f := newFixture(t)
	_, _ = f.ledger.AddClient(model.Client{Name: "Acme"})
	s := newTestService(t, f, 10)
	if n, err := s.worker.Drain(testContext(t)); n != 1 || err != nil {
		t.Fatalf("Drain = %d, %v", n, err)
	}
	s.pollOnce()

	srv := httptest.NewServer(s.Handler())
	defer srv.Close()
	addr := strings.TrimPrefix(srv.URL, "http://")

	ws := RemoteReporter{Addr: addr}.Stats()
	if !ws.Online || ws.Delivered != 1 || ws.LastSync.IsZero() {
		t.Fatalf("remote stats = %+v", ws)
	}

	// An observer in another process shows the daemon's view.
	o := NewObserver(f.ledger.Queue(), RemoteReporter{Addr: addr}, zerolog.Nop())
	if st := o.Poll(); !st.Online || st.Delivered != 1 {
		t.Fatalf("observer status = %+v", st)
	}

	s.worker.SetOnline(false)
	if err := Wake(addr); err != nil {
		t.Fatalf("Wake: %v", err)
	}
	if !s.worker.Online() {
		t.Fatal("Wake did not reach the worker")
	}
}

func TestRemoteReporterUnreachable(t *testing.T) {
	srv := httptest.NewServer(nil)
	addr := strings.TrimPrefix(srv.URL, "http://")
	srv.Close()

	ws := RemoteReporter{Addr: addr}.Stats()
	if ws.Online || ws.LastError == "" {
		t.Fatalf("stats = %+v, want offline with an error", ws)
	}
	if err := Wake(addr); err == nil {
		t.Fatal("Wake succeeded against a stopped daemon")
	}
}

// testContext stands in for t.Context (Go 1.24+): it is canceled when the test ends.
func testContext(t *testing.T) context.Context {
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	return ctx
}
