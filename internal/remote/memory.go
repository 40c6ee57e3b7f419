package remote

import (
	"context"
	"sync"

	"github.com/theirongolddev/fintrack/internal/model"
)

// Call records one write delivered to a Memory backend.
type Call struct {
	Op  string // "upsert" or "delete"
	Row Row
}

// Memory is an in-process backend for tests. Rows live only as long as the
// value, so New never returns one.
type Memory struct {
	mu      sync.Mutex
	tables  map[model.EntityType]map[string]Row
	calls   []Call
	offline bool

	// Inject, when set, is consulted before each write; a non-nil result is
	// returned instead of applying the write.
	Inject func(Call) error
}

// NewMemory returns an empty backend.
func NewMemory() *Memory {
	return &Memory{tables: make(map[model.EntityType]map[string]Row)}
}

// SetOffline makes every call fail with ErrUnavailable.
func (m *Memory) SetOffline(offline bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.offline = offline
}

func (m *Memory) Upsert(_ context.Context, row Row) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check(Call{Op: "upsert", Row: row}); err != nil {
		return err
	}
	t, ok := m.tables[row.Entity]
	if !ok {
		t = make(map[string]Row)
		m.tables[row.Entity] = t
	}
	row.Data = append([]byte(nil), row.Data...)
	t[row.ID] = row
	m.calls = append(m.calls, Call{Op: "upsert", Row: row})
	return nil
}

func (m *Memory) Delete(_ context.Context, entity model.EntityType, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	row := Row{Entity: entity, ID: id}
	if err := m.check(Call{Op: "delete", Row: row}); err != nil {
		return err
	}
	delete(m.tables[entity], id)
	m.calls = append(m.calls, Call{Op: "delete", Row: row})
	return nil
}

func (m *Memory) Ping(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.offline {
		return ErrUnavailable
	}
	return nil
}

func (m *Memory) Close() error { return nil }

// Get returns the stored row.
func (m *Memory) Get(entity model.EntityType, id string) (Row, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	row, ok := m.tables[entity][id]
	return row, ok
}

// Len returns the number of rows stored for entity.
func (m *Memory) Len(entity model.EntityType) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.tables[entity])
}

// Calls returns every applied write in order.
func (m *Memory) Calls() []Call {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Call(nil), m.calls...)
}

func (m *Memory) check(c Call) error {
	if m.offline {
		return ErrUnavailable
	}
	if m.Inject != nil {
		return m.Inject(c)
	}
	return nil
}
