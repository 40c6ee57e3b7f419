package remote

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/theirongolddev/fintrack/internal/model"

	"github.com/lib/pq"
)

func TestMemoryUpsertIsIdempotent(t *testing.T) {
	m := NewMemory()
	row := Row{
		Entity:    model.EntityCategory,
		ID:        "c1",
		Workspace: model.WorkspacePersonal,
		Data:      json.RawMessage(`{"id":"c1","budget":"750"}`),
	}
	ctx := context.Background()
	for i := 0; i < 2; i++ {
		if err := m.Upsert(ctx, row); err != nil {
			t.Fatalf("Upsert #%d: %v", i+1, err)
		}
	}
	if n := m.Len(model.EntityCategory); n != 1 {
		t.Fatalf("rows = %d, want 1", n)
	}
	got, _ := m.Get(model.EntityCategory, "c1")
	if string(got.Data) != string(row.Data) {
		t.Fatalf("data = %s", got.Data)
	}

	for i := 0; i < 2; i++ {
		if err := m.Delete(ctx, model.EntityCategory, "c1"); err != nil {
			t.Fatalf("Delete #%d: %v", i+1, err)
		}
	}
	if _, ok := m.Get(model.EntityCategory, "c1"); ok {
		t.Fatal("row still present after delete")
	}
}

func TestMemoryOffline(t *testing.T) {
	m := NewMemory()
	m.SetOffline(true)
	err := m.Upsert(context.Background(), Row{Entity: model.EntityBill, ID: "b"})
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("offline upsert err = %v, want ErrUnavailable", err)
	}
	if !errors.Is(m.Ping(context.Background()), ErrUnavailable) {
		t.Fatal("offline ping succeeded")
	}
	if len(m.Calls()) != 0 {
		t.Fatal("offline call was recorded")
	}
}

type recorded struct {
	method, path, query, prefer, apikey, auth, body string
}

func restServer(t *testing.T, status int) (*httptest.Server, *[]recorded) {
	t.Helper()
	var mu sync.Mutex
	var reqs []recorded
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		mu.Lock()
		reqs = append(reqs, recorded{
			method: r.Method,
			path:   r.URL.Path,
			query:  r.URL.RawQuery,
			prefer: r.Header.Get("Prefer"),
			apikey: r.Header.Get("apikey"),
			auth:   r.Header.Get("Authorization"),
			body:   string(body),
		})
		mu.Unlock()
		w.WriteHeader(status)
	}))
	t.Cleanup(srv.Close)
	return srv, &reqs
}

func TestRESTUpsertRequest(t *testing.T) {
	srv, reqs := restServer(t, http.StatusCreated)
	c := NewREST(srv.URL+"/", "anon-key", 0)

	err := c.Upsert(context.Background(), Row{
		Entity:    model.EntityGoal,
		ID:        "g1",
		Workspace: model.WorkspacePersonal,
		Data:      json.RawMessage(`{"id":"g1"}`),
	})
	if err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	if len(*reqs) != 1 {
		t.Fatalf("requests = %d, want 1", len(*reqs))
	}
	r := (*reqs)[0]
	if r.method != http.MethodPost || r.path != "/rest/v1/savings_goals" || r.query != "on_conflict=id" {
		t.Fatalf("request = %s %s?%s", r.method, r.path, r.query)
	}
	if !strings.Contains(r.prefer, "resolution=merge-duplicates") {
		t.Fatalf("Prefer = %q", r.prefer)
	}
	if r.apikey != "anon-key" || r.auth != "Bearer anon-key" {
		t.Fatalf("auth headers = %q / %q", r.apikey, r.auth)
	}

	var rows []restRow
	if err := json.Unmarshal([]byte(r.body), &rows); err != nil {
		t.Fatalf("body: %v", err)
	}
	if len(rows) != 1 || rows[0].ID != "g1" || string(rows[0].Data) != `{"id":"g1"}` {
		t.Fatalf("rows = %+v", rows)
	}
}

func TestRESTDeleteRequest(t *testing.T) {
	srv, reqs := restServer(t, http.StatusNoContent)
	c := NewREST(srv.URL, "", 0)

	if err := c.Delete(context.Background(), model.EntityClient, "a b"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	r := (*reqs)[0]
	if r.method != http.MethodDelete || r.path != "/rest/v1/clients" || r.query != "id=eq.a+b" {
		t.Fatalf("request = %s %s?%s", r.method, r.path, r.query)
	}
	if r.auth != "" {
		t.Fatalf("Authorization sent without key: %q", r.auth)
	}
}

func TestRESTStatusMapping(t *testing.T) {
	tests := []struct {
		status int
		want   error
	}{
		{http.StatusUnauthorized, ErrUnauthorized},
		{http.StatusForbidden, ErrUnauthorized},
		{http.StatusTooManyRequests, ErrRateLimited},
		{http.StatusBadGateway, ErrUnavailable},
		{http.StatusConflict, ErrRejected},
		{http.StatusBadRequest, ErrRejected},
	}
	for _, tt := range tests {
		srv, _ := restServer(t, tt.status)
		c := NewREST(srv.URL, "k", 0)
		err := c.Delete(context.Background(), model.EntityBill, "b1")
		if !errors.Is(err, tt.want) {
			t.Fatalf("status %d: err = %v, want %v", tt.status, err, tt.want)
		}
	}
}

func TestRESTUnreachable(t *testing.T) {
	srv, _ := restServer(t, http.StatusOK)
	url := srv.URL
	srv.Close()

	err := NewREST(url, "", 0).Ping(context.Background())
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("err = %v, want ErrUnavailable", err)
	}
	if !Retryable(err) {
		t.Fatal("unreachable error not retryable")
	}
}

func TestClassifyPostgresErrors(t *testing.T) {
	tests := []struct {
		err  error
		want error
	}{
		{&pq.Error{Code: "08006"}, ErrUnavailable},
		{&pq.Error{Code: "53300"}, ErrUnavailable},
		{&pq.Error{Code: "28P01"}, ErrUnauthorized},
		{&pq.Error{Code: "23505"}, ErrRejected},
		{io.EOF, ErrUnavailable},
		{errors.New("dial tcp 127.0.0.1:5432: connect: connection refused"), ErrUnavailable},
	}
	for _, tt := range tests {
		if got := classify("op", tt.err); !errors.Is(got, tt.want) {
			t.Fatalf("classify(%v) = %v, want %v", tt.err, got, tt.want)
		}
	}
}

func TestNewSelectsDriver(t *testing.T) {
	// The in-memory backend keeps nothing across runs, so it is not a
	// selectable driver.
	if _, err := New(Config{Driver: "memory"}); err == nil || errors.Is(err, ErrNoBackend) {
		t.Fatalf("New(memory) err = %v, want unknown driver", err)
	}
	b, err := New(Config{Driver: DriverREST, URL: "http://127.0.0.1:1"})
	if err != nil {
		t.Fatalf("New(rest): %v", err)
	}
	if _, ok := b.(*REST); !ok {
		t.Fatalf("New(rest) = %T", b)
	}
	if _, err := New(Config{Driver: DriverPostgres}); err == nil {
		t.Fatal("postgres without DSN succeeded")
	}
	if _, err := New(Config{}); !errors.Is(err, ErrNoBackend) {
		t.Fatalf("New(none) err = %v, want ErrNoBackend", err)
	}
	if _, err := New(Config{Driver: "firebase"}); err == nil {
		t.Fatal("unknown driver succeeded")
	}
}
