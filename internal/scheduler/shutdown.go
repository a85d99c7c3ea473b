// File: internal/scheduler/shutdown.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package scheduler

import (
	"context"
	"runtime"
	"time"

	"github.com/momentics/hioload-jobs/api"
)

// Shutdown stops the pool.
//
// ShutdownGraceful rejects new external submissions, lets running jobs keep
// submitting, and returns once every accepted job is terminal. If ctx ends
// first the pool escalates to an immediate stop and ctx.Err() is returned.
//
// ShutdownImmediate rejects every submission, cancels the payload context,
// lets in-hand jobs finish and marks every queued job Cancelled.
//
// A second call returns ErrPoolClosed. Shutdown must not be called from a
// payload of this pool.
func (p *Pool) Shutdown(ctx context.Context, mode api.ShutdownMode) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if p.callerWorker(ctx) != nil {
		return api.ErrInvalidArgument.WithContext("reason", "shutdown from a pool worker")
	}

	p.lifecycle.Lock()
	if p.state.Load() != stateRunning {
		p.lifecycle.Unlock()
		return api.ErrPoolClosed
	}
	if mode == api.ShutdownImmediate {
		p.state.Store(stateStopping)
	} else {
		p.state.Store(stateDraining)
	}
	p.lifecycle.Unlock()

	start := time.Now()
	p.logger.Info().Stringer("mode", mode).Int64("outstanding", p.outstanding.Load()).Msg("pool shutting down")

	var err error
	if mode != api.ShutdownImmediate {
		if err = p.drain(ctx); err != nil {
			p.logger.Warn().Err(err).Int64("outstanding", p.outstanding.Load()).Msg("graceful drain interrupted, stopping immediately")
		}
		p.lifecycle.Lock()
		p.state.Store(stateStopping)
		p.lifecycle.Unlock()
	}

	p.stopNow()
	p.state.Store(stateStopped)
	p.logger.Info().Dur("elapsed", time.Since(start)).
		Uint64("completed", p.completed.Load()).
		Uint64("failed", p.failed.Load()).
		Uint64("cancelled", p.cancelled.Load()).
		Msg("pool stopped")
	return err
}

// drain waits until no accepted job is outstanding.
func (p *Pool) drain(ctx context.Context) error {
	for p.outstanding.Load() > 0 {
		select {
		case <-p.drained:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

func (p *Pool) stopNow() {
	p.stopping.Store(true)
	close(p.stopCh)
	p.cancel()
	p.cancelQueued()
	p.workersWG.Wait()
}

// cancelQueued takes every queued job and resolves it Cancelled.
func (p *Pool) cancelQueued() {
	for _, w := range p.workers {
		for _, q := range w.queues {
			for {
				if j := q.steal(); j != nil {
					p.cancelJob(j)
					continue
				}
				if q.empty() {
					break
				}
				// Lost a race with a worker finishing its pop.
				runtime.Gosched()
			}
		}
	}
}
