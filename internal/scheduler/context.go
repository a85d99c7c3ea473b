// File: internal/scheduler/context.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package scheduler

import "context"

// WorkerID reports the id of the worker executing the job that received ctx.
// It returns false outside of a job payload.
func WorkerID(ctx context.Context) (int, bool) {
	w := workerFrom(ctx)
	if w == nil {
		return 0, false
	}
	return w.id, true
}

func workerFrom(ctx context.Context) *worker {
	if ctx == nil {
		return nil
	}
	w, _ := ctx.Value(workerKey{}).(*worker)
	return w
}

// callerWorker returns the worker behind ctx if it belongs to p.
func (p *Pool) callerWorker(ctx context.Context) *worker {
	w := workerFrom(ctx)
	if w == nil || w.pool != p {
		return nil
	}
	return w
}
