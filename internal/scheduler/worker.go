// File: internal/scheduler/worker.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Worker thread loop: own queues, then steals, then bounded idle wait.

package scheduler

import (
	"context"
	"fmt"
	"runtime"
	"runtime/debug"
	"strings"
	"sync/atomic"
	"time"

	"github.com/momentics/hioload-jobs/api"
	"github.com/momentics/hioload-jobs/internal/concurrency"
)

type workerKey struct{}

type worker struct {
	id   int
	pool *Pool
	ctx  context.Context

	queues   []*jobQueue // own queues, one per member group
	byGroup  []*jobQueue // indexed by group, nil when not a member
	victims  []*jobQueue // peer queues this worker may steal from
	reserved bool        // member of an exclusive group

	wake chan struct{}
	own  scanner // used by run only

	idle         atomic.Bool
	lastProgress atomic.Int64 // unix nanos of the last finished job
	lastIdle     atomic.Int64 // unix nanos of the last empty scan
	executed     atomic.Uint64
	stolen       atomic.Uint64
}

func newWorker(p *Pool, id int) *worker {
	w := &worker{
		id:      id,
		pool:    p,
		byGroup: make([]*jobQueue, len(p.groups.groups)),
		wake:    make(chan struct{}, 1),
		own:     newScanner(uint64(id)*0x9E3779B97F4A7C15 + 1),
	}
	w.ctx = context.WithValue(p.ctx, workerKey{}, w)
	now := time.Now().UnixNano()
	w.lastProgress.Store(now)
	w.lastIdle.Store(now)
	return w
}

// groupNames lists the groups the worker belongs to.
func (w *worker) groupNames() []string {
	names := make([]string, 0, len(w.queues))
	for _, q := range w.queues {
		names = append(names, q.group.name)
	}
	return names
}

func (w *worker) groupLabel() string {
	return strings.Join(w.groupNames(), ",")
}

// run is the main loop for a worker.
func (w *worker) run() {
	p := w.pool
	defer p.workersWG.Done()

	if p.cfg.PinThreads {
		if err := concurrency.PinCurrentThread(w.id); err != nil {
			p.logger.Warn().Err(err).Int("worker", w.id).Msg("thread pinning failed, running unpinned")
		}
	} else {
		concurrency.LockWorkerThread()
	}
	p.logger.Debug().Int("worker", w.id).Strs("groups", w.groupNames()).Msg("worker started")
	defer p.logger.Debug().Int("worker", w.id).Msg("worker stopped")

	for !p.stopping.Load() {
		if j := w.findWork(&w.own); j != nil {
			if p.stopping.Load() {
				p.cancelJob(j)
				return
			}
			w.execute(j)
			continue
		}
		w.idleWait()
	}
}

// scanner is the private state of one goroutine scanning on behalf of a
// worker: the worker loop itself, or a Wait helping from a payload or from a
// goroutine the payload started.
type scanner struct {
	rng   uint64
	timer *time.Timer
}

func newScanner(seed uint64) scanner {
	t := time.NewTimer(time.Hour)
	t.Stop()
	return scanner{rng: seed | 1, timer: t}
}

// next is xorshift64.
func (s *scanner) next() uint64 {
	x := s.rng
	x ^= x << 13
	x ^= x >> 7
	x ^= x << 17
	s.rng = x
	return x
}

func (w *worker) findWork(s *scanner) *job {
	if j := w.popLocal(); j != nil {
		return j
	}
	return w.steal(s)
}

// popLocal scans bands from the highest priority down across every own queue.
func (w *worker) popLocal() *job {
	for p := api.NumPriorities - 1; p >= 0; p-- {
		for _, q := range w.queues {
			if q.len() == 0 {
				continue
			}
			if j := q.popBand(p); j != nil {
				return j
			}
		}
	}
	return nil
}

// steal visits victims round-robin from a pseudo-random start so that idle
// workers do not all contend on the same peer.
func (w *worker) steal(s *scanner) *job {
	n := len(w.victims)
	if n == 0 {
		return nil
	}
	start := int(s.next() % uint64(n))
	for i := 0; i < n; i++ {
		q := w.victims[(start+i)%n]
		if q.len() == 0 {
			continue
		}
		if j := q.steal(); j != nil {
			j.markStolen()
			return j
		}
	}
	return nil
}

func (w *worker) hasVisibleWork() bool {
	for _, q := range w.queues {
		if q.len() > 0 {
			return true
		}
	}
	for _, q := range w.victims {
		if q.len() > 0 {
			return true
		}
	}
	return false
}

func (w *worker) depth() int {
	n := 0
	for _, q := range w.queues {
		n += q.len()
	}
	return n
}

// signal hands the worker a wake token; tokens do not accumulate.
func (w *worker) signal() {
	select {
	case w.wake <- struct{}{}:
	default:
	}
}

// idleWait spins briefly, then parks until woken, stopped, or the park
// timeout elapses.
func (w *worker) idleWait() {
	p := w.pool
	for i := 0; i < p.cfg.IdleSpinIterations; i++ {
		runtime.Gosched()
		if p.stopping.Load() || w.hasVisibleWork() {
			return
		}
	}

	w.lastIdle.Store(time.Now().UnixNano())
	w.idle.Store(true)
	defer w.idle.Store(false)
	// Submitters that read idle=false before the store above have already
	// made their job visible, so one more scan closes the gap.
	if p.stopping.Load() || w.hasVisibleWork() {
		return
	}
	w.park(&w.own, nil)
}

// park blocks until a wake token, the stop signal, done (if non-nil) or the
// park timeout.
func (w *worker) park(s *scanner, done <-chan struct{}) {
	s.timer.Reset(w.pool.cfg.IdleParkTimeout)
	select {
	case <-w.wake:
	case <-w.pool.stopCh:
	case <-done:
	case <-s.timer.C:
	}
	if !s.timer.Stop() {
		select {
		case <-s.timer.C:
		default:
		}
	}
}

// execute runs the job and publishes its outcome, recovering from panics.
func (w *worker) execute(j *job) {
	if !j.claim() {
		return
	}
	if j.batch != nil {
		j.batch.markStarted()
	}
	start := time.Now()
	err := w.invoke(j)
	elapsed := time.Since(start)

	w.lastProgress.Store(start.Add(elapsed).UnixNano())
	w.executed.Add(1)
	if j.stolen {
		w.stolen.Add(1)
	}
	w.pool.finish(j, w, err, elapsed)
}

func (w *worker) invoke(j *job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			w.pool.logger.Error().
				Uint64("job_id", j.id).
				Str("group", j.group.name).
				Int("worker", w.id).
				Interface("panic", r).
				Str("stack", string(debug.Stack())).
				Msg("job panicked")
			err = api.ErrJobPanicked.Wrap(fmt.Errorf("%v", r))
		}
	}()
	return j.fn(w.ctx)
}

// helpUntil executes queued work until done is closed or ctx ends. Used by
// Wait when called with a job context so the caller keeps doing useful work.
// Any number of goroutines may help the same worker at once.
func (w *worker) helpUntil(ctx context.Context, done <-chan struct{}) error {
	p := w.pool
	s := newScanner(uint64(time.Now().UnixNano()))
	defer s.timer.Stop()
	for {
		select {
		case <-done:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		if p.stopping.Load() {
			// Queued work is being cancelled by Shutdown; done closes soon.
			select {
			case <-done:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		if j := w.findWork(&s); j != nil {
			w.execute(j)
			continue
		}
		w.lastIdle.Store(time.Now().UnixNano())
		select {
		case <-done:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		w.park(&s, done)
	}
}
