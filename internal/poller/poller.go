// Package poller runs fetch-and-compare loops against the backend and
// reports a value only when it differs from the last one reported.
package poller

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/ccugym/gymdash/internal/metrics"
)

// Config describes one polling loop
type Config[T any] struct {
	Name     string
	Interval time.Duration
	Fetch    func(ctx context.Context) (T, error)
	// Key serializes a value for change detection
	Key func(T) (string, error)
	// OnChange receives each value whose key differs from the previous one.
	// Calls are serialized and in fetch order.
	OnChange func(T)

	Metrics *metrics.Metrics
	Logger  *slog.Logger
}

// Status is a point-in-time view of a fetcher
type Status struct {
	Name        string    `json:"name"`
	Running     bool      `json:"running"`
	LastError   string    `json:"last_error,omitempty"`
	LastSuccess time.Time `json:"last_success"`
	Applied     uint64    `json:"applied"`
}

// Fetcher polls on a fixed interval. Fetches from successive ticks may
// overlap; every fetch carries a sequence number and a response older than
// the last applied one is dropped.
type Fetcher[T any] struct {
	cfg Config[T]
	log *slog.Logger

	mu          sync.Mutex
	issued      uint64
	applied     uint64
	hasValue    bool
	lastKey     string
	value       T
	lastError   error
	lastSuccess time.Time
	running     bool
	stopped     bool

	emitMu   sync.Mutex
	done     chan struct{}
	loopDone chan struct{}
	inflight sync.WaitGroup
}

// New validates cfg and returns an idle fetcher
func New[T any](cfg Config[T]) (*Fetcher[T], error) {
	if cfg.Interval <= 0 {
		return nil, errors.New("poller: interval must be positive")
	}
	if cfg.Fetch == nil || cfg.Key == nil {
		return nil, errors.New("poller: fetch and key are required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Fetcher[T]{
		cfg: cfg,
		log: logger.With("poller", cfg.Name),
	}, nil
}

// Start fetches immediately and then once per interval until Stop. A
// fetcher can only be started once.
func (f *Fetcher[T]) Start(ctx context.Context) {
	f.mu.Lock()
	if f.running || f.stopped {
		f.mu.Unlock()
		return
	}
	f.running = true
	f.done = make(chan struct{})
	f.loopDone = make(chan struct{})
	f.mu.Unlock()

	go f.loop(ctx)
}

// Stop tears down the ticker. Requests already in flight are not aborted,
// their results are discarded.
func (f *Fetcher[T]) Stop() {
	f.mu.Lock()
	if !f.running {
		f.stopped = true
		f.mu.Unlock()
		return
	}
	f.running = false
	f.stopped = true
	close(f.done)
	loopDone := f.loopDone
	f.mu.Unlock()

	<-loopDone
}

// Latest returns the last value passed to OnChange
func (f *Fetcher[T]) Latest() (T, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.value, f.hasValue
}

// Status returns the current fetcher status
func (f *Fetcher[T]) Status() Status {
	f.mu.Lock()
	defer f.mu.Unlock()

	errStr := ""
	if f.lastError != nil {
		errStr = f.lastError.Error()
	}
	return Status{
		Name:        f.cfg.Name,
		Running:     f.running,
		LastError:   errStr,
		LastSuccess: f.lastSuccess,
		Applied:     f.applied,
	}
}

func (f *Fetcher[T]) loop(ctx context.Context) {
	defer close(f.loopDone)

	f.tick(ctx)

	ticker := time.NewTicker(f.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-f.done:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			f.tick(ctx)
		}
	}
}

func (f *Fetcher[T]) tick(ctx context.Context) {
	f.mu.Lock()
	f.issued++
	seq := f.issued
	f.mu.Unlock()

	// In-flight requests outlive Stop; the client timeout bounds them.
	fetchCtx := context.WithoutCancel(ctx)

	f.inflight.Add(1)
	go func() {
		defer f.inflight.Done()
		v, err := f.cfg.Fetch(fetchCtx)
		f.apply(seq, v, err)
	}()
}

func (f *Fetcher[T]) apply(seq uint64, v T, err error) {
	f.mu.Lock()
	if f.stopped {
		f.mu.Unlock()
		return
	}

	if err != nil {
		f.lastError = err
		f.mu.Unlock()
		f.log.Warn("poll failed, skipping", "seq", seq, "error", err)
		f.cfg.Metrics.ObservePoll(f.cfg.Name, metrics.PollError)
		return
	}

	if seq < f.applied {
		f.mu.Unlock()
		f.log.Debug("discarding stale response", "seq", seq, "applied", f.applied)
		f.cfg.Metrics.ObservePoll(f.cfg.Name, metrics.PollStale)
		return
	}

	key, err := f.cfg.Key(v)
	if err != nil {
		f.lastError = err
		f.mu.Unlock()
		f.log.Warn("cannot serialize response", "seq", seq, "error", err)
		f.cfg.Metrics.ObservePoll(f.cfg.Name, metrics.PollError)
		return
	}

	f.applied = seq
	f.lastError = nil
	f.lastSuccess = time.Now()

	if f.hasValue && key == f.lastKey {
		f.mu.Unlock()
		f.cfg.Metrics.ObservePoll(f.cfg.Name, metrics.PollUnchanged)
		return
	}

	f.hasValue = true
	f.lastKey = key
	f.value = v

	// emitMu is taken before mu is released so OnChange calls keep the
	// order in which values were accepted.
	f.emitMu.Lock()
	f.mu.Unlock()
	defer f.emitMu.Unlock()

	f.cfg.Metrics.ObservePoll(f.cfg.Name, metrics.PollChanged)
	if f.cfg.OnChange != nil {
		f.cfg.OnChange(v)
	}
}

// JSONKey compares values structurally through their JSON encoding
func JSONKey[T any](v T) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// BytesKey compares raw payloads byte for byte
func BytesKey(b []byte) (string, error) {
	return string(b), nil
}
