package daemon

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/theirongolddev/fintrack/internal/remote"
	"github.com/theirongolddev/fintrack/internal/syncq"

	"github.com/rs/zerolog"
)

// WorkerConfig controls delivery of the sync queue.
type WorkerConfig struct {
	Queue   *syncq.Queue
	Backend remote.Backend
	// Interval is the fallback tick that picks up entries enqueued by other
	// processes and pings the backend while offline.
	Interval time.Duration
	// ShutdownGrace bounds the final drain attempt when Run returns.
	ShutdownGrace time.Duration
	// Role and Addr are recorded in the delivery lease so other processes
	// can tell who is syncing and, for the daemon, where to reach it.
	Role string
	Addr string
	// LeaseTTL is how long the delivery lease lasts without renewal.
	LeaseTTL time.Duration
	Logger   zerolog.Logger
}

// WorkerStats is the delivery state reported to observers.
type WorkerStats struct {
	Online    bool
	LastSync  time.Time
	LastError string
	Delivered int64
	Failures  int64
}

// Worker delivers queued mutations to the backend one at a time, oldest
// first. Drain calls are serialized, and a worker delivers only while it
// holds the store's delivery lease, so one worker per store is active.
type Worker struct {
	queue   *syncq.Queue
	backend remote.Backend
	cfg     WorkerConfig
	log     zerolog.Logger

	online atomic.Bool
	wake   chan struct{}

	// drainM guards the lease fields.
	drainM    sync.Mutex
	held      bool
	claimedAt time.Time

	mu        sync.Mutex
	lastSync  time.Time
	lastError string
	delivered int64
	failures  int64
}

// NewWorker returns a worker that assumes the backend is reachable until a
// delivery says otherwise.
func NewWorker(cfg WorkerConfig) *Worker {
	if cfg.Interval <= 0 {
		cfg.Interval = 30 * time.Second
	}
	if cfg.ShutdownGrace <= 0 {
		cfg.ShutdownGrace = 5 * time.Second
	}
	if cfg.LeaseTTL <= 0 {
		cfg.LeaseTTL = time.Minute
	}
	if cfg.Role == "" {
		cfg.Role = syncq.RoleCLI
	}
	w := &Worker{
		queue:   cfg.Queue,
		backend: cfg.Backend,
		cfg:     cfg,
		log:     cfg.Logger,
		wake:    make(chan struct{}, 1),
	}
	w.online.Store(true)
	return w
}

// Online reports the last known connectivity.
func (w *Worker) Online() bool { return w.online.Load() }

// SetOnline records a connectivity change. Going online wakes the worker.
func (w *Worker) SetOnline(online bool) {
	if w.online.Swap(online) == online {
		return
	}
	if online {
		w.log.Info().Msg("backend reachable, resuming sync")
		w.Wake()
	} else {
		w.log.Warn().Msg("backend unreachable, sync paused")
	}
}

// Wake requests a drain pass.
func (w *Worker) Wake() {
	select {
	case w.wake <- struct{}{}:
	default:
	}
}

// Stats returns the current delivery state.
func (w *Worker) Stats() WorkerStats {
	w.mu.Lock()
	defer w.mu.Unlock()
	return WorkerStats{
		Online:    w.online.Load(),
		LastSync:  w.lastSync,
		LastError: w.lastError,
		Delivered: w.delivered,
		Failures:  w.failures,
	}
}

// Drain delivers entries in FIFO order until the queue is empty or a
// delivery fails. A failed entry goes back to pending with its retry count
// incremented and the pass stops, so later entries never overtake it.
// Without the delivery lease, or when the head is claimed elsewhere, Drain
// delivers nothing and returns syncq.ErrOwned or syncq.ErrClaimed.
func (w *Worker) Drain(ctx context.Context) (int, error) {
	w.drainM.Lock()
	defer w.drainM.Unlock()

	sent := 0
	for {
		if err := ctx.Err(); err != nil {
			return sent, err
		}
		if err := w.claim(); err != nil {
			return sent, err
		}
		e, ok := w.queue.Head()
		if !ok {
			return sent, nil
		}
		if err := w.queue.MarkInFlight(e.ID); err != nil && !errors.Is(err, syncq.ErrPersist) {
			if errors.Is(err, syncq.ErrUnknownEntry) {
				// Delivered by another process since our last refresh.
				if rerr := w.queue.Refresh(); rerr != nil {
					return sent, rerr
				}
				continue
			}
			return sent, err
		}

		err := w.deliver(ctx, e)
		if err != nil && ctx.Err() != nil {
			// Left in flight under our claim. This worker retries it next
			// pass; a later lease owner returns it to pending.
			return sent, ctx.Err()
		}
		if err != nil {
			w.recordFailure(e, err)
			if ferr := w.queue.Fail(e.ID, err); ferr != nil && !errors.Is(ferr, syncq.ErrUnknownEntry) {
				w.log.Warn().Err(ferr).Str("entry", e.ID).Msg("recording failed delivery")
			}
			if errors.Is(err, remote.ErrUnavailable) {
				w.SetOnline(false)
			}
			return sent, err
		}

		if aerr := w.queue.Ack(e.ID); aerr != nil && !errors.Is(aerr, syncq.ErrUnknownEntry) {
			w.log.Warn().Err(aerr).Str("entry", e.ID).Msg("acknowledging delivery")
		}
		sent++
		w.recordSuccess()
		w.log.Debug().
			Str("entity", string(e.Entity)).
			Str("op", string(e.Operation)).
			Str("id", e.EntityID).
			Msg("delivered")
	}
}

// claim takes the delivery lease, or renews it once a third of the TTL
// has passed. Must be called with drainM held.
func (w *Worker) claim() error {
	if w.held && time.Since(w.claimedAt) < w.cfg.LeaseTTL/3 {
		return nil
	}
	if err := w.queue.Acquire(w.cfg.Role, w.cfg.Addr, w.cfg.LeaseTTL); err != nil {
		if w.held {
			w.log.Warn().Err(err).Msg("lost delivery lease")
		}
		w.held = false
		return err
	}
	if !w.held {
		w.log.Debug().Str("role", w.cfg.Role).Msg("acquired delivery lease")
	}
	w.held = true
	w.claimedAt = time.Now()
	return nil
}

// renew keeps a held lease alive between passes. A running Drain renews on
// its own.
func (w *Worker) renew() {
	if !w.drainM.TryLock() {
		return
	}
	defer w.drainM.Unlock()
	if !w.held {
		return
	}
	w.claimedAt = time.Time{}
	_ = w.claim()
}

// Release gives up the delivery lease so another process may sync.
func (w *Worker) Release() {
	w.drainM.Lock()
	defer w.drainM.Unlock()
	if !w.held {
		return
	}
	w.held = false
	if err := w.queue.Release(); err != nil {
		w.log.Warn().Err(err).Msg("releasing delivery lease")
	}
}

func (w *Worker) deliver(ctx context.Context, e syncq.Entry) error {
	switch e.Operation {
	case syncq.OpDelete:
		return w.backend.Delete(ctx, e.Entity, e.EntityID)
	case syncq.OpCreate, syncq.OpUpdate:
		return w.backend.Upsert(ctx, remote.Row{
			Entity:    e.Entity,
			ID:        e.EntityID,
			Workspace: e.Workspace,
			Data:      e.Payload,
		})
	}
	return fmt.Errorf("%w: unknown operation %q", remote.ErrRejected, e.Operation)
}

func (w *Worker) recordSuccess() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.delivered++
	w.lastSync = time.Now()
	w.lastError = ""
}

func (w *Worker) recordFailure(e syncq.Entry, err error) {
	w.mu.Lock()
	w.failures++
	w.lastError = err.Error()
	w.mu.Unlock()

	ev := w.log.Warn()
	if remote.Retryable(err) {
		ev = w.log.Debug()
	}
	ev.Err(err).
		Str("entity", string(e.Entity)).
		Str("id", e.EntityID).
		Int("retry", e.RetryCount+1).
		Msg("delivery failed")
}

// Run drains on every enqueue, wake-up and online transition, and on a
// periodic tick. While offline it pings the backend each tick instead.
// When ctx ends it makes one final bounded drain attempt and releases the
// delivery lease.
func (w *Worker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.cfg.Interval)
	defer ticker.Stop()
	heartbeat := time.NewTicker(w.cfg.LeaseTTL / 3)
	defer heartbeat.Stop()

	w.pass(ctx)
	for {
		select {
		case <-ctx.Done():
			w.finalDrain()
			w.Release()
			return nil
		case <-heartbeat.C:
			w.renew()
		case <-w.queue.Changed():
			if w.Online() {
				w.pass(ctx)
			}
		case <-w.wake:
			w.pass(ctx)
		case <-ticker.C:
			if err := w.queue.Refresh(); err != nil {
				w.log.Warn().Err(err).Msg("refreshing queue")
			}
			if !w.Online() {
				w.ping(ctx)
				continue
			}
			w.pass(ctx)
		}
	}
}

func (w *Worker) pass(ctx context.Context) {
	n, err := w.Drain(ctx)
	if n > 0 {
		w.log.Info().Int("delivered", n).Int("remaining", w.queue.Len()).Msg("sync pass")
	}
	switch {
	case err == nil || ctx.Err() != nil || remote.Retryable(err):
	case errors.Is(err, syncq.ErrOwned), errors.Is(err, syncq.ErrClaimed):
		w.log.Debug().Err(err).Msg("another worker is syncing")
	default:
		w.log.Error().Err(err).Msg("sync pass stopped")
	}
}

func (w *Worker) ping(ctx context.Context) {
	pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := w.backend.Ping(pctx); err == nil {
		w.SetOnline(true)
	}
}

func (w *Worker) finalDrain() {
	if w.queue.Len() == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), w.cfg.ShutdownGrace)
	defer cancel()
	_, _ = w.Drain(ctx)
	if left := w.queue.Len(); left > 0 {
		w.log.Warn().Int("pending", left).Msg("shutting down with unsynced changes")
	}
}
