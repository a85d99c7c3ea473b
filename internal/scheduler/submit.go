// File: internal/scheduler/submit.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Job admission, placement, wake-up and completion bookkeeping.

package scheduler

import (
	"context"
	"errors"
	"time"

	"github.com/momentics/hioload-jobs/api"
)

// Submit enqueues fn for execution by a worker of group. It never blocks on
// queue capacity. Called from a payload running on a member of group, the
// job goes to that worker's own deque; otherwise it goes to the inbox of
// the least loaded member.
func (p *Pool) Submit(ctx context.Context, group string, priority api.Priority, fn api.JobFunc) (*Completion, error) {
	if fn == nil {
		return nil, api.ErrInvalidArgument.WithContext("field", "fn")
	}
	g, err := p.groups.lookup(group)
	if err != nil {
		return nil, err
	}
	caller := p.callerWorker(ctx)
	if err := p.admit(caller, 1); err != nil {
		return nil, err
	}
	defer p.lifecycle.RUnlock()

	j := p.newJob(g, priority, fn)
	j.done = make(chan struct{})
	p.place(caller, j)
	return &Completion{j: j}, nil
}

// SubmitBatch enqueues every task under one aggregate handle. Validation is
// all-or-none: on error nothing is enqueued.
func (p *Pool) SubmitBatch(ctx context.Context, group string, tasks []api.Task) (*Batch, error) {
	for i, t := range tasks {
		if t.Fn == nil {
			return nil, api.ErrInvalidArgument.WithContext("field", "fn").WithContext("index", i)
		}
	}
	g, err := p.groups.lookup(group)
	if err != nil {
		return nil, err
	}
	caller := p.callerWorker(ctx)
	if err := p.admit(caller, len(tasks)); err != nil {
		return nil, err
	}
	defer p.lifecycle.RUnlock()

	b := newBatch(g.name, len(tasks))
	for _, t := range tasks {
		j := p.newJob(g, t.Priority, t.Fn)
		j.batch = b
		b.jobs = append(b.jobs, j)
	}
	// Every job is recorded before the first one can complete.
	for _, j := range b.jobs {
		p.place(caller, j)
	}
	return b, nil
}

// admit takes the lifecycle lock shared and reserves n outstanding jobs.
// On success the caller must release the lock once the jobs are enqueued.
func (p *Pool) admit(caller *worker, n int) error {
	p.lifecycle.RLock()
	switch p.state.Load() {
	case stateRunning:
	case stateDraining:
		// Running jobs may still fan out while the pool drains.
		if caller == nil {
			p.lifecycle.RUnlock()
			return api.ErrPoolClosed
		}
	default:
		p.lifecycle.RUnlock()
		return api.ErrPoolClosed
	}
	p.outstanding.Add(int64(n))
	return nil
}

func (p *Pool) newJob(g *group, priority api.Priority, fn api.JobFunc) *job {
	priority = priority.Clamp()
	j := &job{
		id:       p.nextID.Add(1),
		group:    g,
		priority: priority,
		fn:       fn,
	}
	p.submitted.Add(1)
	p.observer.JobSubmitted(g.name, priority)
	return j
}

func (p *Pool) place(caller *worker, j *job) {
	g := j.group
	if caller != nil {
		if q := caller.byGroup[g.idx]; q != nil {
			q.pushOwner(j)
			// The caller may be a goroutine started by the job, with the
			// worker itself about to park.
			caller.signal()
			p.wakeIdle(g, caller)
			return
		}
	}
	target := p.leastLoaded(g)
	target.byGroup[g.idx].enqueue(j)
	target.signal()
	if !target.idle.Load() {
		p.wakeIdle(g, target)
	}
}

// leastLoaded picks the member with the smallest total queue depth,
// scanning from a rotating start so ties spread round-robin.
func (p *Pool) leastLoaded(g *group) *worker {
	n := len(g.members)
	start := int((g.next.Add(1) - 1) % uint64(n))
	best := p.workers[g.members[start]]
	bestDepth := best.depth()
	for i := 1; i < n && bestDepth > 0; i++ {
		w := p.workers[g.members[(start+i)%n]]
		if d := w.depth(); d < bestDepth {
			best, bestDepth = w, d
		}
	}
	return best
}

// wakeIdle signals one idle worker able to take jobs of g, other than skip.
func (p *Pool) wakeIdle(g *group, skip *worker) {
	for _, id := range g.members {
		w := p.workers[id]
		if w != skip && w.idle.Load() {
			w.signal()
			return
		}
	}
	if !p.cfg.StealAcrossGroups || g.exclusive {
		return
	}
	for _, w := range p.workers {
		if w != skip && !w.reserved && w.idle.Load() {
			w.signal()
			return
		}
	}
}

// finish records the outcome of an executed job.
func (p *Pool) finish(j *job, w *worker, err error, elapsed time.Duration) {
	g, stolen := j.group, j.stolen
	state := api.StateCompleted
	if err != nil {
		state = api.StateFailed
		if !errors.Is(err, api.ErrJobFailed) {
			err = api.ErrJobFailed.WithContext("job_id", j.id).Wrap(err)
		}
	}
	j.resolve(state, err)

	if stolen {
		p.stolen.Add(1)
	}
	if err != nil {
		p.failed.Add(1)
		p.reportFailure(j.id, g.name, w.id, err)
	} else {
		p.completed.Add(1)
	}
	p.observer.JobFinished(g.name, state, elapsed, stolen)
	p.release(1)
}

func (p *Pool) reportFailure(id uint64, group string, workerID int, err error) {
	p.logger.Debug().Err(err).Uint64("job_id", id).Str("group", group).Int("worker", workerID).Msg("job failed")
	p.failLog.Do(func() {
		p.logger.Warn().Err(err).Uint64("job_id", id).Str("group", group).
			Uint64("failed_total", p.failed.Load()).Msg("job failures observed")
	})
	if p.emitter != nil {
		p.emitter.Emit(api.JobFailed{JobID: id, Group: group, WorkerID: workerID, Err: err})
	}
}

// cancelJob resolves a job that was taken from a queue but will not run.
func (p *Pool) cancelJob(j *job) {
	if !j.claim() {
		return
	}
	g := j.group
	j.resolve(api.StateCancelled, api.ErrCancelled.WithContext("job_id", j.id))
	p.cancelled.Add(1)
	p.observer.JobFinished(g.name, api.StateCancelled, 0, false)
	p.release(1)
}

func (p *Pool) release(n int64) {
	if p.outstanding.Add(-n) == 0 && p.state.Load() != stateRunning {
		select {
		case p.drained <- struct{}{}:
		default:
		}
	}
}
