// File: internal/scheduler/queue.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Per-worker, per-group job queue. Each priority band has an owner deque
// (LIFO for the owner, FIFO for thieves), a bounded MPMC inbox for
// cross-thread submissions, and an unbounded spill queue behind both.
//
// A job's context may travel to goroutines the job starts, so the owner end
// of the deques is claimed with a flag rather than assumed. A goroutine
// that finds it taken uses the inbox instead.

package scheduler

import (
	"sync/atomic"

	"github.com/momentics/hioload-jobs/api"
	"github.com/momentics/hioload-jobs/internal/concurrency"
)

type band struct {
	owner *concurrency.Deque[job]
	inbox *concurrency.LockFreeQueue[*job]
	spill *concurrency.Overflow[*job]
}

type jobQueue struct {
	owner *worker
	group *group
	bands [api.NumPriorities]band
	depth atomic.Int64

	ownerEnd atomic.Bool // held for PushBottom / PopBottom
}

func newJobQueue(owner *worker, g *group, capacity int) *jobQueue {
	q := &jobQueue{owner: owner, group: g}
	for i := range q.bands {
		q.bands[i] = band{
			owner: concurrency.NewDeque[job](capacity),
			inbox: concurrency.NewLockFreeQueue[*job](capacity),
			spill: concurrency.NewOverflow[*job](),
		}
	}
	return q
}

// pushOwner inserts at the owner end, or into the inbox when another
// goroutine holds it.
func (q *jobQueue) pushOwner(j *job) {
	if !q.ownerEnd.CompareAndSwap(false, true) {
		q.enqueue(j)
		return
	}
	q.depth.Add(1)
	b := &q.bands[j.priority]
	ok := b.owner.PushBottom(j)
	q.ownerEnd.Store(false)
	if !ok {
		b.spill.Push(j)
	}
}

// enqueue is the cross-thread insert used by submitters.
func (q *jobQueue) enqueue(j *job) {
	q.depth.Add(1)
	b := &q.bands[j.priority]
	if !b.inbox.Enqueue(j) {
		b.spill.Push(j)
	}
}

// popBand takes from one band on behalf of the owner: newest own job first,
// then the oldest submitted one.
func (q *jobQueue) popBand(p int) *job {
	b := &q.bands[p]
	if b.owner.Len() > 0 && q.ownerEnd.CompareAndSwap(false, true) {
		j, ok := b.owner.PopBottom()
		q.ownerEnd.Store(false)
		if ok {
			q.depth.Add(-1)
			return j
		}
	}
	if j, ok := b.inbox.Dequeue(); ok {
		q.depth.Add(-1)
		return j
	}
	if j, ok := b.spill.Pop(); ok {
		q.depth.Add(-1)
		return j
	}
	return nil
}

// steal takes the oldest job of the highest non-empty band. It returns nil
// when empty or when a race was lost.
func (q *jobQueue) steal() *job {
	for p := api.NumPriorities - 1; p >= 0; p-- {
		b := &q.bands[p]
		if j, ok := b.owner.Steal(); ok {
			q.depth.Add(-1)
			return j
		}
		if j, ok := b.inbox.Dequeue(); ok {
			q.depth.Add(-1)
			return j
		}
		if j, ok := b.spill.Pop(); ok {
			q.depth.Add(-1)
			return j
		}
	}
	return nil
}

// empty reports whether every structure of every band is drained. Unlike
// len it reads the structures themselves.
func (q *jobQueue) empty() bool {
	for i := range q.bands {
		b := &q.bands[i]
		if b.owner.Len() > 0 || b.inbox.Len() > 0 || b.spill.Len() > 0 {
			return false
		}
	}
	return true
}

func (q *jobQueue) len() int {
	if n := q.depth.Load(); n > 0 {
		return int(n)
	}
	return 0
}
