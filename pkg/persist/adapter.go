package persist

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"learningpulse/pkg/kv"
)

// ErrClosed is returned by Flush after Close.
var ErrClosed = errors.New("persister closed")

const defaultTimeout = 3 * time.Second

type opKind int

const (
	opSet opKind = iota
	opRemove
)

type op struct {
	kind  opKind
	value string
}

// Options configures an Adapter.
type Options struct {
	// Timeout bounds each backend call. Defaults to 3s.
	Timeout time.Duration
	Logger  *slog.Logger
}

// Adapter is a Persister backed by a kv.Store. A single worker applies writes in
// dispatch order; pending writes to the same key collapse into the latest one.
type Adapter struct {
	store   kv.Store
	timeout time.Duration
	logger  *slog.Logger

	mu      sync.Mutex
	pending map[string]op
	order   []string
	closed  bool

	// write currently being applied by the worker
	inflight    bool
	inflightKey string
	inflightOp  op

	wake    chan struct{}
	flush   chan chan struct{}
	stop    chan struct{}
	stopped chan struct{}
	once    sync.Once
}

// NewAdapter starts the background writer for store.
func NewAdapter(store kv.Store, opts Options) *Adapter {
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	a := &Adapter{
		store:   store,
		timeout: opts.Timeout,
		logger:  opts.Logger,
		pending: make(map[string]op),
		wake:    make(chan struct{}, 1),
		flush:   make(chan chan struct{}),
		stop:    make(chan struct{}),
		stopped: make(chan struct{}),
	}
	go a.run()
	return a
}

// Read returns the pending value for key if a write is queued, otherwise it
// asks the backend.
func (a *Adapter) Read(ctx context.Context, key string) ([]byte, bool, error) {
	a.mu.Lock()
	pending, ok := a.pending[key]
	if !ok && a.inflight && a.inflightKey == key {
		pending, ok = a.inflightOp, true
	}
	a.mu.Unlock()
	if ok {
		if pending.kind == opRemove {
			return nil, false, nil
		}
		return []byte(pending.value), true, nil
	}

	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()
	value, found, err := "", false, ctx.Err()
	if err == nil {
		value, found, err = a.store.Get(ctx, key)
	}
	if err != nil {
		err = fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
		a.logger.Warn("load snapshot failed", "key", key, "err", err)
		return nil, false, err
	}
	if !found {
		return nil, false, nil
	}
	return []byte(value), true, nil
}

// Logger returns the logger failures are reported to.
func (a *Adapter) Logger() *slog.Logger { return a.logger }

// Write serializes value now and stores it in the background.
func (a *Adapter) Write(key string, value any) {
	raw, err := json.Marshal(value)
	if err != nil {
		a.logger.Error("encode snapshot failed", "key", key, "err", err)
		return
	}
	a.enqueue(key, op{kind: opSet, value: string(raw)})
}

// Delete removes key in the background.
func (a *Adapter) Delete(key string) {
	a.enqueue(key, op{kind: opRemove})
}

func (a *Adapter) enqueue(key string, o op) {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		a.logger.Warn("dropping write after close", "key", key)
		return
	}
	if _, queued := a.pending[key]; !queued {
		a.order = append(a.order, key)
	}
	a.pending[key] = o
	a.mu.Unlock()

	select {
	case a.wake <- struct{}{}:
	default:
	}
}

// Flush blocks until every write queued before the call has been applied.
func (a *Adapter) Flush(ctx context.Context) error {
	reply := make(chan struct{})
	select {
	case a.flush <- reply:
	case <-a.stopped:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-reply:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close applies pending writes and stops the worker. Later writes are dropped.
func (a *Adapter) Close(ctx context.Context) error {
	a.once.Do(func() {
		a.mu.Lock()
		a.closed = true
		a.mu.Unlock()
		close(a.stop)
	})
	select {
	case <-a.stopped:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (a *Adapter) run() {
	defer close(a.stopped)
	for {
		select {
		case <-a.wake:
			a.drain()
		case reply := <-a.flush:
			a.drain()
			close(reply)
		case <-a.stop:
			a.drain()
			return
		}
	}
}

func (a *Adapter) drain() {
	for {
		a.mu.Lock()
		if len(a.order) == 0 {
			a.mu.Unlock()
			return
		}
		key := a.order[0]
		a.order = a.order[1:]
		o := a.pending[key]
		delete(a.pending, key)
		a.inflight, a.inflightKey, a.inflightOp = true, key, o
		a.mu.Unlock()

		a.apply(key, o)

		a.mu.Lock()
		a.inflight = false
		a.mu.Unlock()
	}
}

func (a *Adapter) apply(key string, o op) {
	ctx, cancel := context.WithTimeout(context.Background(), a.timeout)
	defer cancel()
	var err error
	switch o.kind {
	case opSet:
		err = a.store.Set(ctx, key, o.value)
	case opRemove:
		err = a.store.Remove(ctx, key)
	}
	if err != nil {
		// No retry: the in-memory state stays authoritative until the next write.
		a.logger.Warn("persist snapshot failed", "key", key, "err", fmt.Errorf("%w: %v", ErrStorageUnavailable, err))
	}
}
