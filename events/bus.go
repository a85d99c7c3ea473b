// File: events/bus.go
// Package events delivers scheduler diagnostic events to subscribers.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Bus decouples emitters (worker threads, the stall detector) from
// subscribers: Emit only appends to a buffer, a single dispatcher goroutine
// runs the handlers in batches.

package events

import (
	"sync"
	"sync/atomic"

	"github.com/eapache/queue"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/momentics/hioload-jobs/api"
	"github.com/momentics/hioload-jobs/internal/concurrency"
)

// Handler consumes one event. Handlers run on the dispatcher goroutine and
// should return quickly.
type Handler func(ev api.Event)

type subscription struct {
	id   uint64
	kind string // empty matches every kind
	fn   Handler
}

// Bus is an asynchronous fan-out of api.Event values.
type Bus struct {
	mu      concurrency.Mutex
	cond    *sync.Cond
	pending *queue.Queue
	closed  bool

	maxPending int
	batchSize  int
	logger     zerolog.Logger

	subs      atomic.Pointer[[]*subscription] // copy-on-write
	nextSub   atomic.Uint64
	delivered atomic.Uint64
	dropped   atomic.Uint64

	done chan struct{}
}

var _ api.EventEmitter = (*Bus)(nil)

// Option configures a Bus.
type Option func(*Bus)

// WithMaxPending bounds the buffer; events beyond it are dropped and
// counted. Zero means unbounded.
func WithMaxPending(n int) Option {
	return func(b *Bus) { b.maxPending = n }
}

// WithBatchSize sets how many events the dispatcher takes per lock.
func WithBatchSize(n int) Option {
	return func(b *Bus) {
		if n > 0 {
			b.batchSize = n
		}
	}
}

// WithLogger sets the logger used for handler panics.
func WithLogger(l zerolog.Logger) Option {
	return func(b *Bus) { b.logger = l }
}

// NewBus creates a bus and starts its dispatcher.
func NewBus(opts ...Option) *Bus {
	b := &Bus{
		pending:    queue.New(),
		maxPending: 4096,
		batchSize:  16,
		logger:     log.Logger,
		done:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(b)
	}
	b.logger = b.logger.With().Str("component", "events").Logger()
	b.cond = sync.NewCond(&b.mu)
	b.subs.Store(&[]*subscription{})
	go b.dispatch()
	return b
}

// Emit queues ev for delivery. It never blocks on subscribers.
func (b *Bus) Emit(ev api.Event) {
	if ev == nil {
		return
	}
	b.mu.Lock()
	if b.closed || (b.maxPending > 0 && b.pending.Length() >= b.maxPending) {
		b.mu.Unlock()
		b.dropped.Add(1)
		return
	}
	b.pending.Add(ev)
	b.mu.Unlock()
	b.cond.Signal()
}

// Subscribe registers fn for every event and returns its cancel function.
func (b *Bus) Subscribe(fn Handler) func() {
	return b.SubscribeKind("", fn)
}

// SubscribeKind registers fn for events whose Kind() equals kind.
func (b *Bus) SubscribeKind(kind string, fn Handler) func() {
	s := &subscription{id: b.nextSub.Add(1), kind: kind, fn: fn}
	for {
		old := b.subs.Load()
		next := make([]*subscription, len(*old), len(*old)+1)
		copy(next, *old)
		next = append(next, s)
		if b.subs.CompareAndSwap(old, &next) {
			break
		}
	}
	var once sync.Once
	return func() { once.Do(func() { b.unsubscribe(s.id) }) }
}

func (b *Bus) unsubscribe(id uint64) {
	for {
		old := b.subs.Load()
		next := make([]*subscription, 0, len(*old))
		for _, s := range *old {
			if s.id != id {
				next = append(next, s)
			}
		}
		if b.subs.CompareAndSwap(old, &next) {
			return
		}
	}
}

// Pending returns the number of buffered events.
func (b *Bus) Pending() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.pending.Length()
}

// Delivered returns how many events reached the dispatcher.
func (b *Bus) Delivered() uint64 { return b.delivered.Load() }

// Dropped returns how many events were discarded.
func (b *Bus) Dropped() uint64 { return b.dropped.Load() }

// Close stops accepting events, delivers what is buffered and waits for
// the dispatcher to exit. It is safe to call more than once.
func (b *Bus) Close() {
	b.mu.Lock()
	b.closed = true
	b.mu.Unlock()
	b.cond.Broadcast()
	<-b.done
}

func (b *Bus) dispatch() {
	defer close(b.done)
	batch := make([]api.Event, 0, b.batchSize)
	for {
		b.mu.Lock()
		for b.pending.Length() == 0 && !b.closed {
			b.cond.Wait()
		}
		if b.pending.Length() == 0 && b.closed {
			b.mu.Unlock()
			return
		}
		for len(batch) < b.batchSize && b.pending.Length() > 0 {
			batch = append(batch, b.pending.Remove().(api.Event))
		}
		b.mu.Unlock()

		subs := *b.subs.Load()
		for i, ev := range batch {
			for _, s := range subs {
				if s.kind == "" || s.kind == ev.Kind() {
					b.deliver(s, ev)
				}
			}
			b.delivered.Add(1)
			batch[i] = nil
		}
		batch = batch[:0]
	}
}

func (b *Bus) deliver(s *subscription, ev api.Event) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error().Interface("panic", r).Str("kind", ev.Kind()).Uint64("subscription", s.id).Msg("event handler panicked")
		}
	}()
	s.fn(ev)
}
