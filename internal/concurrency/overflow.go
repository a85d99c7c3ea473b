// File: internal/concurrency/overflow.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Unbounded FIFO spill queue used when a fixed ring is full.

package concurrency

import (
	"sync/atomic"

	"github.com/eapache/queue"
)

// Overflow is a mutex-guarded growable FIFO. It is the slow path behind the
// lock-free rings, so Len is kept in an atomic to let scanners skip the lock.
type Overflow[T any] struct {
	mu    Mutex
	items *queue.Queue
	n     atomic.Int64
}

// NewOverflow returns an empty spill queue.
func NewOverflow[T any]() *Overflow[T] {
	return &Overflow[T]{items: queue.New()}
}

// Push appends v.
func (o *Overflow[T]) Push(v T) {
	o.mu.Lock()
	o.items.Add(v)
	o.n.Add(1)
	o.mu.Unlock()
}

// Pop removes the oldest element.
func (o *Overflow[T]) Pop() (T, bool) {
	var zero T
	if o.n.Load() == 0 {
		return zero, false
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.items.Length() == 0 {
		return zero, false
	}
	v := o.items.Remove().(T)
	o.n.Add(-1)
	return v, true
}

// Len returns the element count.
func (o *Overflow[T]) Len() int {
	return int(o.n.Load())
}
