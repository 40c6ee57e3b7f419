// Package daemon runs the background sync worker and serves its status over
// HTTP.
package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/theirongolddev/fintrack/internal/remote"
	"github.com/theirongolddev/fintrack/internal/syncq"

	"github.com/rs/zerolog"
)

// Config controls the daemon runtime behavior.
type Config struct {
	Queue   *syncq.Queue
	Backend remote.Backend
	// Driver names the backend in status output.
	Driver       string
	Interval     time.Duration
	PollInterval time.Duration
	Addr         string
	EventsBuffer int
	Logger       zerolog.Logger
}

// Event is emitted whenever the sync status changes.
type Event struct {
	ID        int64     `json:"id"`
	Type      string    `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Status    Status    `json:"status"`
	Delta     Delta     `json:"delta"`
}

// Event types.
const (
	EventSnapshot = "snapshot"
	EventDelta    = "sync_delta"
	EventOnline   = "online"
	EventOffline  = "offline"
)

// ServiceStatus is served at /v1/status.
type ServiceStatus struct {
	StartedAt       time.Time `json:"started_at"`
	LastPollAt      time.Time `json:"last_poll_at"`
	SyncIntervalSec int       `json:"sync_interval_sec"`
	PollCount       int64     `json:"poll_count"`
	Driver          string    `json:"driver"`
	Sync            Status    `json:"sync"`
	EventCount      int       `json:"event_count"`
	SubscriberCount int       `json:"subscriber_count"`
}

// Service runs the worker, the status observer and the HTTP API.
type Service struct {
	cfg      Config
	worker   *Worker
	observer *Observer
	log      zerolog.Logger

	mu          sync.RWMutex
	startedAt   time.Time
	lastPollAt  time.Time
	pollCount   int64
	hasStatus   bool
	status      Status
	nextEventID int64
	events      []Event

	nextSubID int
	subs      map[int]chan Event
}

// New returns a new daemon service with the provided config.
func New(cfg Config) *Service {
	if cfg.Interval <= 0 {
		cfg.Interval = 30 * time.Second
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = time.Second
	}
	if cfg.EventsBuffer < 1 {
		cfg.EventsBuffer = 200
	}
	if cfg.Addr == "" {
		cfg.Addr = "127.0.0.1:8787"
	}

	w := NewWorker(WorkerConfig{
		Queue:    cfg.Queue,
		Backend:  cfg.Backend,
		Interval: cfg.Interval,
		Role:     syncq.RoleDaemon,
		Addr:     cfg.Addr,
		Logger:   cfg.Logger.With().Str("component", "worker").Logger(),
	})
	return &Service{
		cfg:       cfg,
		worker:    w,
		observer:  NewObserver(cfg.Queue, w, cfg.Logger),
		log:       cfg.Logger,
		startedAt: time.Now(),
		subs:      make(map[int]chan Event),
	}
}

// Worker returns the service's delivery worker.
func (s *Service) Worker() *Worker { return s.worker }

// Run starts the HTTP endpoints, the worker and status polling until ctx is
// canceled. The worker's final drain completes before Run returns.
func (s *Service) Run(ctx context.Context) error {
	server := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	workerDone := make(chan struct{})
	go func() {
		defer close(workerDone)
		_ = s.worker.Run(ctx)
	}()

	s.log.Info().Str("addr", s.cfg.Addr).Str("driver", s.cfg.Driver).Msg("daemon started")
	s.pollOnce()

	ticker := time.NewTicker(s.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			<-workerDone
			s.pollOnce()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return server.Shutdown(shutdownCtx)
		case <-ticker.C:
			s.pollOnce()
		case err := <-errCh:
			return fmt.Errorf("daemon http server: %w", err)
		}
	}
}

// Handler returns the status API.
func (s *Service) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.HandleFunc("/v1/status", s.handleStatus)
	mux.HandleFunc("/v1/events", s.handleEvents)
	mux.HandleFunc("/v1/stream", s.handleStream)
	mux.HandleFunc("/v1/sync", s.handleSync)
	return mux
}

func (s *Service) pollOnce() {
	st := s.observer.Poll()

	var events []Event

	s.mu.Lock()
	prev := s.status
	prevExists := s.hasStatus

	s.hasStatus = true
	s.status = st
	s.lastPollAt = st.At
	s.pollCount++

	emit := func(typ string, d Delta) {
		s.nextEventID++
		events = append(events, Event{
			ID:        s.nextEventID,
			Type:      typ,
			Timestamp: st.At,
			Status:    st,
			Delta:     d,
		})
	}
	switch {
	case !prevExists:
		emit(EventSnapshot, Delta{})
	default:
		if prev.Online != st.Online {
			if st.Online {
				emit(EventOnline, Delta{})
			} else {
				emit(EventOffline, Delta{})
			}
		}
		if delta := diffStatus(prev, st); !delta.isZero() {
			emit(EventDelta, delta)
		}
	}
	s.mu.Unlock()

	for _, ev := range events {
		s.publishEvent(ev)
	}
}

func (s *Service) publishEvent(ev Event) {
	s.mu.Lock()
	s.events = append(s.events, ev)
	if len(s.events) > s.cfg.EventsBuffer {
		s.events = s.events[len(s.events)-s.cfg.EventsBuffer:]
	}

	for _, ch := range s.subs {
		select {
		case ch <- ev:
		default:
		}
	}
	s.mu.Unlock()
}

func (s *Service) snapshotStatus() ServiceStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return ServiceStatus{
		StartedAt:       s.startedAt,
		LastPollAt:      s.lastPollAt,
		SyncIntervalSec: int(s.cfg.Interval.Seconds()),
		PollCount:       s.pollCount,
		Driver:          s.cfg.Driver,
		Sync:            s.status,
		EventCount:      len(s.events),
		SubscriberCount: len(s.subs),
	}
}

func (s *Service) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("ok\n"))
}

func (s *Service) handleStatus(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(s.snapshotStatus())
}

func (s *Service) handleEvents(w http.ResponseWriter, _ *http.Request) {
	s.mu.RLock()
	events := make([]Event, len(s.events))
	copy(events, s.events)
	s.mu.RUnlock()

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(events)
}

// handleSync asks the worker for an immediate pass, including a reconnect
// attempt when offline.
func (s *Service) handleSync(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	s.worker.SetOnline(true)
	s.worker.Wake()
	w.WriteHeader(http.StatusAccepted)
}

func (s *Service) handleStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	ch := make(chan Event, 16)
	id := s.addSubscriber(ch)
	defer s.removeSubscriber(id)

	writeSSE(w, Event{
		Type:      EventSnapshot,
		Timestamp: time.Now(),
		Status:    s.snapshotStatus().Sync,
	})
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case ev := <-ch:
			writeSSE(w, ev)
			flusher.Flush()
		}
	}
}

func writeSSE(w http.ResponseWriter, ev Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		return
	}
	_, _ = fmt.Fprintf(w, "event: %s\n", ev.Type)
	_, _ = fmt.Fprintf(w, "data: %s\n\n", data)
}

func (s *Service) addSubscriber(ch chan Event) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextSubID++
	id := s.nextSubID
	s.subs[id] = ch
	return id
}

func (s *Service) removeSubscriber(id int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.subs, id)
}
