package syncq

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"
)

// OwnerKey is the local storage key holding the delivery lease.
const OwnerKey = "sync_owner"

// Worker roles recorded in the lease.
const (
	RoleDaemon    = "daemon"
	RoleDashboard = "tui"
	RoleCLI       = "cli"
)

var (
	// ErrOwned indicates another live worker holds the delivery lease.
	ErrOwned = errors.New("syncq: delivery owned by another worker")
	// ErrClaimed indicates the entry is in flight under another worker's
	// claim.
	ErrClaimed = errors.New("syncq: entry claimed by another worker")
)

// Owner is the delivery lease. One worker per store may deliver; the lease
// expires unless renewed, so a crashed owner blocks others for at most one
// TTL.
type Owner struct {
	ID      string    `json:"id"`
	Role    string    `json:"role"`
	PID     int       `json:"pid"`
	Addr    string    `json:"addr,omitempty"`
	Expires time.Time `json:"expires"`
}

// Live reports whether the lease is held at now.
func (o Owner) Live(now time.Time) bool {
	return o.ID != "" && now.Before(o.Expires)
}

func (o Owner) String() string {
	return fmt.Sprintf("%s (pid %d)", o.Role, o.PID)
}

// Acquire takes or renews the delivery lease for this queue. It fails with
// ErrOwned while another queue's lease is live. Taking over from an absent
// or expired owner returns that owner's in-flight entries to pending.
func (q *Queue) Acquire(role, addr string, ttl time.Duration) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	now := q.now()
	takeover := false
	err := q.storage.Update(OwnerKey, func(old []byte) ([]byte, error) {
		cur, err := decodeOwner(old)
		if err != nil {
			return nil, err
		}
		if cur.ID != q.id && cur.Live(now) {
			return nil, fmt.Errorf("%w: %s until %s", ErrOwned, cur, cur.Expires.Local().Format(time.TimeOnly))
		}
		takeover = cur.ID != q.id
		return json.Marshal(Owner{
			ID:      q.id,
			Role:    role,
			PID:     os.Getpid(),
			Addr:    addr,
			Expires: now.Add(ttl).UTC(),
		})
	})
	if err != nil {
		return err
	}
	if !takeover {
		return nil
	}

	stale := func(entries []Entry) ([]Entry, error) {
		for i := range entries {
			if entries[i].State == StateInFlight && entries[i].ClaimedBy != q.id {
				entries[i].State = StatePending
				entries[i].ClaimedBy = ""
			}
		}
		return entries, nil
	}
	if err := q.mutate(stale); err != nil {
		return fmt.Errorf("recovering sync queue: %w", err)
	}
	return nil
}

// Release gives up the lease if this queue holds it.
func (q *Queue) Release() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	return q.storage.Update(OwnerKey, func(old []byte) ([]byte, error) {
		cur, err := decodeOwner(old)
		if err != nil || cur.ID != q.id {
			return old, nil //nolint:nilerr // a corrupt lease is left for the next Acquire to replace
		}
		return []byte{}, nil
	})
}

// Owner returns the live lease when another queue holds it.
func (q *Queue) Owner() (Owner, bool, error) {
	raw, err := q.storage.Get(OwnerKey)
	if err != nil {
		return Owner{}, false, fmt.Errorf("reading sync owner: %w", err)
	}
	o, err := decodeOwner(raw)
	if err != nil {
		return Owner{}, false, err
	}
	if o.ID == q.id || !o.Live(q.now()) {
		return Owner{}, false, nil
	}
	return o, true, nil
}

func decodeOwner(raw []byte) (Owner, error) {
	var o Owner
	if len(raw) == 0 {
		return o, nil
	}
	if err := json.Unmarshal(raw, &o); err != nil {
		return o, fmt.Errorf("decoding sync owner: %w", err)
	}
	return o, nil
}
