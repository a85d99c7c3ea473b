// File: internal/scheduler/batch.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package scheduler

import (
	"sync/atomic"

	"github.com/momentics/hioload-jobs/api"
)

// Batch is the aggregate handle of jobs submitted together. It completes
// when every job is terminal: Completed if all completed, Failed if any
// failed, otherwise Cancelled.
type Batch struct {
	group string
	jobs  []*job

	remaining atomic.Int64
	failed    atomic.Int64
	cancelled atomic.Int64
	started   atomic.Bool

	state atomic.Int32
	err   error
	done  chan struct{}
}

var _ api.Handle = (*Batch)(nil)

func newBatch(group string, n int) *Batch {
	b := &Batch{
		group: group,
		jobs:  make([]*job, 0, n),
		done:  make(chan struct{}),
	}
	b.remaining.Store(int64(n))
	if n == 0 {
		b.state.Store(int32(api.StateCompleted))
		close(b.done)
	}
	return b
}

// Len returns the number of jobs in the batch.
func (b *Batch) Len() int { return len(b.jobs) }

// Group returns the group every job of the batch was submitted to.
func (b *Batch) Group() string { return b.group }

// Done is closed once every job is terminal.
func (b *Batch) Done() <-chan struct{} { return b.done }

// State returns Pending until a job starts, Running until all are
// terminal, then the aggregate terminal state.
func (b *Batch) State() api.State {
	s := api.State(b.state.Load())
	if s == api.StatePending && b.started.Load() {
		return api.StateRunning
	}
	return s
}

// Err returns nil for a completed batch, an error wrapping ErrJobFailed
// (and the first failure) or ErrCancelled otherwise.
func (b *Batch) Err() error {
	if !api.State(b.state.Load()).Terminal() {
		return nil
	}
	return b.err
}

// Remaining returns how many jobs are not terminal yet.
func (b *Batch) Remaining() int { return int(b.remaining.Load()) }

// Results returns the per-job outcome in submission order. Entries of jobs
// that are not terminal yet carry their current state and a nil error.
func (b *Batch) Results() []api.Result {
	out := make([]api.Result, len(b.jobs))
	for i, j := range b.jobs {
		st := j.loadState()
		r := api.Result{JobID: j.id, State: st}
		if st.Terminal() {
			r.Err = j.err
		}
		out[i] = r
	}
	return out
}

func (b *Batch) markStarted() {
	b.started.Store(true)
}

func (b *Batch) finish(state api.State) {
	switch state {
	case api.StateFailed:
		b.failed.Add(1)
	case api.StateCancelled:
		b.cancelled.Add(1)
	}
	if b.remaining.Add(-1) != 0 {
		return
	}
	// Last job: every other job's outcome is visible through the counter.
	final := api.StateCompleted
	switch {
	case b.failed.Load() > 0:
		final = api.StateFailed
		var first error
		for _, j := range b.jobs {
			if j.loadState() == api.StateFailed {
				first = j.err
				break
			}
		}
		b.err = api.ErrJobFailed.
			WithContext("failed", b.failed.Load()).
			WithContext("total", len(b.jobs)).
			Wrap(first)
	case b.cancelled.Load() > 0:
		final = api.StateCancelled
		b.err = api.ErrCancelled.WithContext("cancelled", b.cancelled.Load())
	}
	b.state.Store(int32(final))
	close(b.done)
}
