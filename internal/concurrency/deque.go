// File: internal/concurrency/deque.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Fixed-capacity work-stealing deque (Chase-Lev) over a power-of-two ring.
// The owner pushes and pops at the bottom; any thread steals from the top.

package concurrency

import (
	"sync/atomic"

	"golang.org/x/sys/cpu"
)

// Deque is a bounded single-owner, multi-stealer deque of *T.
//
// PushBottom and PopBottom must only be called by the owning goroutine.
// Steal may be called by any goroutine. Every element is returned by exactly
// one successful PopBottom or Steal.
type Deque[T any] struct {
	top    atomic.Int64 // steal end
	_      cpu.CacheLinePad
	bottom atomic.Int64 // owner end
	_      cpu.CacheLinePad
	mask   int64
	slots  []atomic.Pointer[T]
}

// NewDeque creates a deque with capacity rounded up to a power of two.
func NewDeque[T any](capacity int) *Deque[T] {
	size := roundPow2(capacity)
	return &Deque[T]{
		mask:  int64(size - 1),
		slots: make([]atomic.Pointer[T], size),
	}
}

// PushBottom adds v at the owner end; returns false if full.
func (d *Deque[T]) PushBottom(v *T) bool {
	b := d.bottom.Load()
	t := d.top.Load()
	if b-t >= int64(len(d.slots)) {
		return false
	}
	d.slots[b&d.mask].Store(v)
	d.bottom.Store(b + 1)
	return true
}

// PopBottom removes the most recently pushed element.
func (d *Deque[T]) PopBottom() (*T, bool) {
	b := d.bottom.Load() - 1
	d.bottom.Store(b)
	t := d.top.Load()
	if t > b {
		// empty
		d.bottom.Store(b + 1)
		return nil, false
	}
	v := d.slots[b&d.mask].Load()
	if t < b {
		return v, true
	}
	// Last element: race stealers for it.
	won := d.top.CompareAndSwap(t, t+1)
	d.bottom.Store(b + 1)
	if !won {
		return nil, false
	}
	return v, true
}

// Steal removes the oldest element. It returns false when the deque is
// empty or when a concurrent pop or steal won the race for the element.
func (d *Deque[T]) Steal() (*T, bool) {
	t := d.top.Load()
	b := d.bottom.Load()
	if t >= b {
		return nil, false
	}
	v := d.slots[t&d.mask].Load()
	if !d.top.CompareAndSwap(t, t+1) {
		return nil, false
	}
	return v, true
}

// Len returns an approximate element count.
func (d *Deque[T]) Len() int {
	n := d.bottom.Load() - d.top.Load()
	if n < 0 {
		return 0
	}
	return int(n)
}

// Cap returns the fixed capacity.
func (d *Deque[T]) Cap() int {
	return len(d.slots)
}

func roundPow2(n int) int {
	if n < 2 {
		n = 2
	}
	size := 1
	for size < n {
		size <<= 1
	}
	return size
}
