package daemon

import (
	"time"

	"github.com/theirongolddev/fintrack/internal/syncq"

	"github.com/rs/zerolog"
)

// Status is the sync state served at /v1/status and shown by the dashboard.
type Status struct {
	At                time.Time `json:"at"`
	QueueLength       int       `json:"queue_length"`
	InFlight          int       `json:"in_flight"`
	Online            bool      `json:"online"`
	HasUnsavedChanges bool      `json:"has_unsaved_changes"`
	// Unpersisted counts entries held only in memory after a storage failure.
	Unpersisted  int       `json:"unpersisted"`
	OldestAgeSec int64     `json:"oldest_age_sec"`
	MaxRetry     int       `json:"max_retry"`
	LastSync     time.Time `json:"last_sync,omitempty"`
	LastError    string    `json:"last_error,omitempty"`
	Delivered    int64     `json:"delivered"`
}

// Delta captures status changes between polls.
type Delta struct {
	QueueLength int   `json:"queue_length"`
	Delivered   int64 `json:"delivered"`
	MaxRetry    int   `json:"max_retry"`
}

func (d Delta) isZero() bool {
	return d.QueueLength == 0 &&
		d.Delivered == 0 &&
		d.MaxRetry == 0
}

func diffStatus(prev, curr Status) Delta {
	return Delta{
		QueueLength: curr.QueueLength - prev.QueueLength,
		Delivered:   curr.Delivered - prev.Delivered,
		MaxRetry:    curr.MaxRetry - prev.MaxRetry,
	}
}

// Reporter exposes delivery state. *Worker implements it.
type Reporter interface {
	Stats() WorkerStats
}

// Observer derives Status from the persisted queue and a worker. Without
// a reporter the status shows offline with no delivery history.
type Observer struct {
	queue    *syncq.Queue
	reporter Reporter
	log      zerolog.Logger
	now      func() time.Time
}

// NewObserver returns an observer over q.
func NewObserver(q *syncq.Queue, r Reporter, log zerolog.Logger) *Observer {
	return &Observer{queue: q, reporter: r, log: log, now: time.Now}
}

// Poll re-reads the persisted queue, so entries enqueued or delivered by
// other processes are reflected, and returns the current status.
func (o *Observer) Poll() Status {
	if err := o.queue.Refresh(); err != nil {
		o.log.Warn().Err(err).Msg("status poll: refreshing queue")
	}
	return o.Snapshot()
}

// Snapshot computes status from the queue as last seen.
func (o *Observer) Snapshot() Status {
	now := o.now()
	entries := o.queue.Entries()
	st := Status{
		At:          now,
		QueueLength: len(entries),
		Unpersisted: o.queue.Unsaved(),
	}
	for i, e := range entries {
		if e.State == syncq.StateInFlight {
			st.InFlight++
		}
		if e.RetryCount > st.MaxRetry {
			st.MaxRetry = e.RetryCount
		}
		if i == 0 && !e.EnqueuedAt.IsZero() {
			st.OldestAgeSec = int64(now.Sub(e.EnqueuedAt) / time.Second)
		}
	}
	st.HasUnsavedChanges = st.QueueLength > 0

	if o.reporter != nil {
		ws := o.reporter.Stats()
		st.Online = ws.Online
		st.LastSync = ws.LastSync
		st.LastError = ws.LastError
		st.Delivered = ws.Delivered
	}
	if st.LastError == "" && len(entries) > 0 {
		st.LastError = entries[0].LastError
	}
	return st
}

// Entries returns the queue as last seen, oldest first.
func (o *Observer) Entries() []syncq.Entry {
	return o.queue.Entries()
}
