package ledger

import (
	"github.com/theirongolddev/fintrack/internal/model"
)

// collection keeps records in insertion order.
type collection[T model.Record] struct {
	kind  model.EntityType
	items []T
}

func (c *collection[T]) index(id string) int {
	for i, it := range c.items {
		if it.RecordID() == id {
			return i
		}
	}
	return -1
}

// put replaces the record with the same id in place, or appends.
func (c *collection[T]) put(rec T) {
	if i := c.index(rec.RecordID()); i >= 0 {
		c.items[i] = rec
		return
	}
	c.items = append(c.items, rec)
}

func (c *collection[T]) get(id string) (T, bool) {
	if i := c.index(id); i >= 0 {
		return c.items[i], true
	}
	var zero T
	return zero, false
}

func (c *collection[T]) list() []T {
	return append([]T(nil), c.items...)
}

func (c *collection[T]) load(s Storage) error {
	c.items = nil
	return loadJSON(s, c.kind.StorageKey(), &c.items)
}
