// Package syncq implements the persisted FIFO queue of local mutations
// awaiting delivery to the remote backend.
package syncq

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/theirongolddev/fintrack/internal/model"

	"github.com/google/uuid"
)

// Key is the local storage key holding the queue.
const Key = "sync_queue"

var (
	// ErrPersist indicates the queue change is held in memory only because
	// local storage rejected the write.
	ErrPersist = errors.New("syncq: queue not persisted")
	// ErrUnknownEntry indicates the entry is no longer queued.
	ErrUnknownEntry = errors.New("syncq: entry not queued")
)

// Operation is the kind of mutation an entry carries.
type Operation string

// Operations.
const (
	OpCreate Operation = "create"
	OpUpdate Operation = "update"
	OpDelete Operation = "delete"
)

// State is the delivery state of an entry. Delivered entries are removed,
// so there is no delivered or failed state.
type State string

// States.
const (
	StatePending  State = "pending"
	StateInFlight State = "in_flight"
)

// Entry is one pending mutation.
type Entry struct {
	ID         string           `json:"id"`
	Entity     model.EntityType `json:"entity"`
	Operation  Operation        `json:"operation"`
	EntityID   string           `json:"entityId"`
	Workspace  model.Workspace  `json:"workspace,omitempty"`
	Payload    json.RawMessage  `json:"payload,omitempty"`
	EnqueuedAt time.Time        `json:"enqueuedAt"`
	RetryCount int              `json:"retryCount"`
	State      State            `json:"state"`
	// ClaimedBy is the queue that moved the entry in flight.
	ClaimedBy string `json:"claimedBy,omitempty"`
	LastError string `json:"lastError,omitempty"`
}

// Storage is the persistence the queue needs. Update must run fn and the
// write atomically.
type Storage interface {
	Get(key string) ([]byte, error)
	Update(key string, fn func(old []byte) ([]byte, error)) error
}

// Queue is safe for concurrent use. Every change is a read-modify-write of
// the persisted queue, so entries enqueued by other processes sharing the
// same storage are preserved.
type Queue struct {
	id      string
	mu      sync.Mutex
	storage Storage
	entries []Entry
	unsaved []Entry
	changed chan struct{}
	now     func() time.Time
}

// Open loads the persisted queue. Entries left in flight by a crashed
// worker stay claimed until the next worker takes over the delivery lease.
func Open(storage Storage) (*Queue, error) {
	q := &Queue{
		id:      uuid.NewString(),
		storage: storage,
		changed: make(chan struct{}, 1),
		now:     time.Now,
	}

	raw, err := storage.Get(Key)
	if err != nil {
		return nil, fmt.Errorf("loading sync queue: %w", err)
	}
	entries, err := decode(raw)
	if err != nil {
		return nil, fmt.Errorf("loading sync queue: %w", err)
	}
	q.entries = entries
	return q, nil
}

// Enqueue appends a mutation. The payload is marshaled to JSON; pass nil
// for deletes. A returned ErrPersist still leaves the entry queued in
// memory.
func (q *Queue) Enqueue(rec model.Record, op Operation) (Entry, error) {
	e := Entry{
		ID:        uuid.NewString(),
		Entity:    rec.Kind(),
		Operation: op,
		EntityID:  rec.RecordID(),
		Workspace: rec.Scope(),
		State:     StatePending,
	}
	if op != OpDelete {
		payload, err := json.Marshal(rec)
		if err != nil {
			return Entry{}, fmt.Errorf("encoding %s %s: %w", e.Entity, e.EntityID, err)
		}
		e.Payload = payload
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	e.EnqueuedAt = q.now().UTC()
	err := q.mutate(func(entries []Entry) ([]Entry, error) {
		return append(entries, e), nil
	})
	if err != nil {
		q.entries = append(q.entries, e)
		q.unsaved = append(q.unsaved, e)
		err = fmt.Errorf("%w: %v", ErrPersist, err)
	}
	q.signal()
	return e, err
}

// Entries returns a copy of the queue in FIFO order as last seen.
func (q *Queue) Entries() []Entry {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]Entry(nil), q.entries...)
}

// Len returns the number of queued entries as last seen.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.entries)
}

// Unsaved returns how many entries exist only in memory.
func (q *Queue) Unsaved() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.unsaved)
}

// Refresh re-reads the persisted queue, picking up entries enqueued by other
// processes.
func (q *Queue) Refresh() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	raw, err := q.storage.Get(Key)
	if err != nil {
		return fmt.Errorf("refreshing sync queue: %w", err)
	}
	entries, err := decode(raw)
	if err != nil {
		return fmt.Errorf("refreshing sync queue: %w", err)
	}
	q.entries = append(entries, q.unsaved...)
	return nil
}

// Head returns the oldest entry, if any.
func (q *Queue) Head() (Entry, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.entries) == 0 {
		return Entry{}, false
	}
	return q.entries[0], true
}

// MarkInFlight claims the entry for delivery by this queue. An entry in
// flight under another queue's claim returns ErrClaimed.
func (q *Queue) MarkInFlight(id string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	return q.apply(func(entries []Entry) ([]Entry, error) {
		i := indexOf(entries, id)
		if i < 0 {
			return nil, ErrUnknownEntry
		}
		if entries[i].State == StateInFlight && entries[i].ClaimedBy != q.id {
			return nil, ErrClaimed
		}
		entries[i].State = StateInFlight
		entries[i].ClaimedBy = q.id
		return entries, nil
	})
}

// Fail returns the entry to pending and counts the failed attempt.
func (q *Queue) Fail(id string, cause error) error {
	return q.change(id, func(e *Entry) {
		e.State = StatePending
		e.ClaimedBy = ""
		e.RetryCount++
		if cause != nil {
			e.LastError = cause.Error()
		}
	})
}

// Ack removes a delivered entry.
func (q *Queue) Ack(id string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	remove := func(entries []Entry) ([]Entry, error) {
		i := indexOf(entries, id)
		if i < 0 {
			return nil, ErrUnknownEntry
		}
		return append(entries[:i:i], entries[i+1:]...), nil
	}
	return q.apply(remove)
}

// Changed is signaled after every enqueue. It is buffered, so a receiver
// that was busy sees at most one pending signal.
func (q *Queue) Changed() <-chan struct{} {
	return q.changed
}

func (q *Queue) change(id string, fn func(*Entry)) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	return q.apply(func(entries []Entry) ([]Entry, error) {
		i := indexOf(entries, id)
		if i < 0 {
			return nil, ErrUnknownEntry
		}
		fn(&entries[i])
		return entries, nil
	})
}

// apply persists fn's change; if storage fails, the change is applied to the
// in-memory view so delivery can still make progress this session.
func (q *Queue) apply(fn func([]Entry) ([]Entry, error)) error {
	err := q.mutate(fn)
	if err == nil || errors.Is(err, ErrUnknownEntry) || errors.Is(err, ErrClaimed) {
		return err
	}

	next, ferr := fn(append([]Entry(nil), q.entries...))
	if ferr != nil {
		return ferr
	}
	q.entries = next
	byID := make(map[string]Entry, len(next))
	for _, e := range next {
		byID[e.ID] = e
	}
	kept := q.unsaved[:0]
	for _, e := range q.unsaved {
		if n, ok := byID[e.ID]; ok {
			kept = append(kept, n)
		}
	}
	q.unsaved = kept
	return fmt.Errorf("%w: %v", ErrPersist, err)
}

// mutate must be called with q.mu held.
func (q *Queue) mutate(fn func([]Entry) ([]Entry, error)) error {
	var result []Entry
	err := q.storage.Update(Key, func(old []byte) ([]byte, error) {
		entries, err := decode(old)
		if err != nil {
			return nil, err
		}
		entries = append(entries, q.unsaved...)
		entries, err = fn(entries)
		if err != nil {
			return nil, err
		}
		result = entries
		return json.Marshal(entries)
	})
	if err != nil {
		return err
	}
	q.entries = result
	q.unsaved = nil
	return nil
}

func (q *Queue) signal() {
	select {
	case q.changed <- struct{}{}:
	default:
	}
}

func indexOf(entries []Entry, id string) int {
	for i, e := range entries {
		if e.ID == id {
			return i
		}
	}
	return -1
}

func decode(raw []byte) ([]Entry, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var entries []Entry
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, fmt.Errorf("decoding sync queue: %w", err)
	}
	return entries, nil
}
