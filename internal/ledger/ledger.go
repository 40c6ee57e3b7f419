// Package ledger holds the in-session copy of every finance collection.
// Each mutation updates memory, re-serializes the affected collection to
// local storage and appends a sync queue entry.
package ledger

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/theirongolddev/fintrack/internal/model"
	"github.com/theirongolddev/fintrack/internal/syncq"

	"github.com/rs/zerolog"
)

// ErrNotFound is returned by updates and deletes that name a missing id.
var ErrNotFound = errors.New("record not found")

// Storage is the local key/value persistence.
type Storage interface {
	Get(key string) ([]byte, error)
	Put(key string, value []byte) error
	Update(key string, fn func(old []byte) ([]byte, error)) error
}

// Config wires a Ledger.
type Config struct {
	Storage Storage
	Queue   *syncq.Queue
	Logger  zerolog.Logger
}

// Ledger is the local store. It is safe for concurrent use.
type Ledger struct {
	mu      sync.RWMutex
	storage Storage
	queue   *syncq.Queue
	log     zerolog.Logger

	currency  string
	workspace model.Workspace

	transactions collection[model.Transaction]
	categories   collection[model.Category]
	bills        collection[model.Bill]
	loans        collection[model.Loan]
	goals        collection[model.SavingsGoal]
	clients      collection[model.Client]
	products     collection[model.Product]
	quotes       collection[model.Quote]

	persistFailures int
}

// Preference keys.
const (
	currencyKey  = "currency"
	workspaceKey = "workspace"

	defaultCurrency = "USD"
)

// Open loads every collection from storage. A missing queue in cfg is opened
// on the same storage.
func Open(cfg Config) (*Ledger, error) {
	if cfg.Storage == nil {
		return nil, errors.New("ledger: storage is required")
	}
	q := cfg.Queue
	if q == nil {
		var err error
		q, err = syncq.Open(cfg.Storage)
		if err != nil {
			return nil, err
		}
	}

	l := &Ledger{
		storage:      cfg.Storage,
		queue:        q,
		log:          cfg.Logger,
		transactions: collection[model.Transaction]{kind: model.EntityTransaction},
		categories:   collection[model.Category]{kind: model.EntityCategory},
		bills:        collection[model.Bill]{kind: model.EntityBill},
		loans:        collection[model.Loan]{kind: model.EntityLoan},
		goals:        collection[model.SavingsGoal]{kind: model.EntityGoal},
		clients:      collection[model.Client]{kind: model.EntityClient},
		products:     collection[model.Product]{kind: model.EntityProduct},
		quotes:       collection[model.Quote]{kind: model.EntityQuote},
	}
	if err := l.Reload(); err != nil {
		return nil, err
	}
	return l, nil
}

// Reload re-reads every collection and preference from storage, replacing
// the in-memory copy.
func (l *Ledger) Reload() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	loaders := []func(Storage) error{
		l.transactions.load,
		l.categories.load,
		l.bills.load,
		l.loans.load,
		l.goals.load,
		l.clients.load,
		l.products.load,
		l.quotes.load,
	}
	for _, load := range loaders {
		if err := load(l.storage); err != nil {
			return err
		}
	}

	l.currency = defaultCurrency
	if err := loadJSON(l.storage, currencyKey, &l.currency); err != nil {
		return err
	}
	l.workspace = model.WorkspacePersonal
	if err := loadJSON(l.storage, workspaceKey, &l.workspace); err != nil {
		return err
	}
	return nil
}

// Queue returns the sync queue mutations are appended to.
func (l *Ledger) Queue() *syncq.Queue {
	return l.queue
}

// PersistFailures counts local writes that failed this session.
func (l *Ledger) PersistFailures() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.persistFailures
}

// Currency returns the display currency code.
func (l *Ledger) Currency() string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.currency
}

// SetCurrency stores the display currency. Preferences are local only.
func (l *Ledger) SetCurrency(code string) error {
	if len(code) != 3 {
		return fmt.Errorf("%w: currency must be a 3-letter code, got %q", model.ErrInvalid, code)
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.currency = code
	return l.savePreference(currencyKey, code)
}

// Workspace returns the active workspace.
func (l *Ledger) Workspace() model.Workspace {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.workspace
}

// SetWorkspace switches the active workspace. New records without an
// explicit workspace are tagged with it.
func (l *Ledger) SetWorkspace(w model.Workspace) error {
	w, err := model.ParseWorkspace(string(w))
	if err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.workspace = w
	return l.savePreference(workspaceKey, w)
}

func (l *Ledger) savePreference(key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if err := l.storage.Put(key, data); err != nil {
		l.persistFailures++
		l.log.Warn().Err(err).Str("key", key).Msg("preference not persisted")
	}
	return nil
}

// persist re-serializes c. Failures are logged and counted; memory stays
// authoritative for the session. Must be called with l.mu held.
func persist[T model.Record](l *Ledger, c *collection[T]) {
	data, err := json.Marshal(c.items)
	if err == nil {
		err = l.storage.Put(c.kind.StorageKey(), data)
	}
	if err != nil {
		l.persistFailures++
		l.log.Warn().Err(err).Str("collection", c.kind.StorageKey()).Msg("local persistence failed")
	}
}

// enqueue must be called with l.mu held.
func (l *Ledger) enqueue(rec model.Record, op syncq.Operation) {
	e, err := l.queue.Enqueue(rec, op)
	if err != nil {
		l.persistFailures++
		l.log.Warn().Err(err).
			Str("entity", string(rec.Kind())).
			Str("id", rec.RecordID()).
			Msg("sync entry held in memory")
		return
	}
	l.log.Debug().
		Str("entry", e.ID).
		Str("entity", string(e.Entity)).
		Str("op", string(e.Operation)).
		Str("id", e.EntityID).
		Msg("queued")
}

// add inserts or, for a known id, replaces rec and enqueues a create.
func add[T model.Record](l *Ledger, c *collection[T], rec T) (T, error) {
	if err := rec.Validate(); err != nil {
		var zero T
		return zero, err
	}
	c.put(rec)
	persist(l, c)
	l.enqueue(rec, syncq.OpCreate)
	return rec, nil
}

func update[T model.Record](l *Ledger, c *collection[T], rec T) (T, error) {
	var zero T
	i := c.index(rec.RecordID())
	if i < 0 {
		return zero, fmt.Errorf("%w: %s %s", ErrNotFound, c.kind, rec.RecordID())
	}
	if err := rec.Validate(); err != nil {
		return zero, err
	}
	c.items[i] = rec
	persist(l, c)
	l.enqueue(rec, syncq.OpUpdate)
	return rec, nil
}

func remove[T model.Record](l *Ledger, c *collection[T], id string) error {
	i := c.index(id)
	if i < 0 {
		return fmt.Errorf("%w: %s %s", ErrNotFound, c.kind, id)
	}
	rec := c.items[i]
	c.items = append(c.items[:i:i], c.items[i+1:]...)
	persist(l, c)
	l.enqueue(rec, syncq.OpDelete)
	return nil
}

func loadJSON(s Storage, key string, v any) error {
	raw, err := s.Get(key)
	if err != nil {
		return fmt.Errorf("loading %s: %w", key, err)
	}
	if len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("decoding %s: %w", key, err)
	}
	return nil
}
