// File: internal/scheduler/job.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Job record and the single-job completion handle.

package scheduler

import (
	"sync/atomic"

	"github.com/momentics/hioload-jobs/api"
)

// job is owned by exactly one queue until a worker takes it.
type job struct {
	id       uint64
	group    *group
	priority api.Priority
	fn       api.JobFunc

	state  atomic.Int32
	stolen bool  // set by the taking thread only
	err    error // written before the terminal state is stored

	done  chan struct{} // nil for batch members
	batch *Batch
}

func (j *job) loadState() api.State {
	return api.State(j.state.Load())
}

// claim moves a queued job to Running. It fails only if the job already
// left the queued states, which the queues never allow.
func (j *job) claim() bool {
	return j.state.CompareAndSwap(int32(api.StatePending), int32(api.StateRunning)) ||
		j.state.CompareAndSwap(int32(api.StateStolen), int32(api.StateRunning))
}

func (j *job) markStolen() {
	j.stolen = true
	j.state.CompareAndSwap(int32(api.StatePending), int32(api.StateStolen))
}

// resolve publishes the outcome. Only the thread that took the job calls it.
func (j *job) resolve(state api.State, err error) {
	j.err = err
	j.fn = nil
	j.state.Store(int32(state))
	if j.done != nil {
		close(j.done)
	}
	if j.batch != nil {
		j.batch.finish(state)
	}
}

// Completion is the handle of a single submitted job.
type Completion struct {
	j *job
}

var _ api.Handle = (*Completion)(nil)

// ID returns the pool-unique job id.
func (c *Completion) ID() uint64 { return c.j.id }

// Group returns the name of the job's worker group.
func (c *Completion) Group() string { return c.j.group.name }

// Priority returns the clamped priority the job was queued with.
func (c *Completion) Priority() api.Priority { return c.j.priority }

// Done is closed once the job is terminal.
func (c *Completion) Done() <-chan struct{} { return c.j.done }

// State returns the current job state.
func (c *Completion) State() api.State { return c.j.loadState() }

// Err returns the job error once terminal, nil before.
func (c *Completion) Err() error {
	if !c.j.loadState().Terminal() {
		return nil
	}
	return c.j.err
}
