// File: internal/scheduler/wait.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package scheduler

import (
	"context"

	"github.com/momentics/hioload-jobs/api"
)

// Wait blocks until h is terminal and returns h.Err(), or returns ctx.Err()
// if ctx ends first. Called from a payload running on a worker of this pool,
// Wait executes queued jobs while it waits, so nested fork-join does not
// starve the pool.
func (p *Pool) Wait(ctx context.Context, h api.Handle) error {
	if h == nil {
		return api.ErrInvalidArgument.WithContext("field", "handle")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	done := h.Done()
	select {
	case <-done:
		return h.Err()
	default:
	}

	if w := p.callerWorker(ctx); w != nil {
		if err := w.helpUntil(ctx, done); err != nil {
			return err
		}
		return h.Err()
	}

	select {
	case <-done:
		return h.Err()
	case <-ctx.Done():
		return ctx.Err()
	}
}
