package scheduler

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/momentics/hioload-jobs/api"
)

type recordingEmitter struct {
	mu     sync.Mutex
	events []api.Event
}

func (r *recordingEmitter) Emit(ev api.Event) {
	r.mu.Lock()
	r.events = append(r.events, ev)
	r.mu.Unlock()
}

func (r *recordingEmitter) snapshot() []api.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]api.Event(nil), r.events...)
}

func newTestPool(t *testing.T, cfg Config, opts ...Option) *Pool {
	t.Helper()
	opts = append([]Option{WithLogger(zerolog.Nop())}, opts...)
	p, err := New(cfg, opts...)
	require.NoError(t, err)
	t.Cleanup(func() {
		err := p.Shutdown(context.Background(), api.ShutdownImmediate)
		if err != nil && !errors.Is(err, api.ErrPoolClosed) {
			t.Errorf("cleanup shutdown: %v", err)
		}
	})
	return p
}

func waitCtx(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func TestPool_RandomPriorityBatch(t *testing.T) {
	p := newTestPool(t, Config{WorkerCount: 4})
	var counter atomic.Int64

	tasks := make([]api.Task, 1000)
	for i := range tasks {
		tasks[i] = api.Task{
			Priority: api.Priority(rand.Intn(api.NumPriorities)),
			Fn: func(context.Context) error {
				counter.Add(1)
				return nil
			},
		}
	}
	b, err := p.SubmitBatch(context.Background(), DefaultGroup, tasks)
	require.NoError(t, err)
	require.NoError(t, p.Wait(waitCtx(t), b))

	require.Equal(t, api.StateCompleted, b.State())
	require.Equal(t, int64(1000), counter.Load())
	require.Equal(t, 0, b.Remaining())
	for _, r := range b.Results() {
		require.Equal(t, api.StateCompleted, r.State)
		require.NoError(t, r.Err)
	}
}

// Every job, including sub-jobs fanned out from workers and stolen by
// peers, runs exactly once.
func TestPool_AtMostOnce(t *testing.T) {
	const (
		parents  = 2000
		children = 4
	)
	p := newTestPool(t, Config{WorkerCount: 8, QueueCapacity: 16})
	counts := make([]atomic.Int32, parents*(children+1))

	var wg sync.WaitGroup
	handles := make([]*Completion, parents)
	for s := 0; s < 4; s++ {
		wg.Add(1)
		go func(s int) {
			defer wg.Done()
			for i := s; i < parents; i += 4 {
				slot := i * (children + 1)
				h, err := p.Submit(context.Background(), DefaultGroup, api.PriorityNormal, func(ctx context.Context) error {
					counts[slot].Add(1)
					subs := make([]*Completion, 0, children)
					for c := 1; c <= children; c++ {
						idx := slot + c
						sub, err := p.Submit(ctx, DefaultGroup, api.PriorityHigh, func(context.Context) error {
							counts[idx].Add(1)
							return nil
						})
						if err != nil {
							return err
						}
						subs = append(subs, sub)
					}
					for _, sub := range subs {
						if err := p.Wait(ctx, sub); err != nil {
							return err
						}
					}
					return nil
				})
				if err != nil {
					t.Error(err)
					return
				}
				handles[i] = h
			}
		}(s)
	}
	wg.Wait()

	ctx := waitCtx(t)
	for _, h := range handles {
		require.NoError(t, p.Wait(ctx, h))
	}
	for i := range counts {
		require.Equal(t, int32(1), counts[i].Load(), "job slot %d", i)
	}
	st := p.Stats()
	require.Equal(t, uint64(parents*(children+1)), st.Completed)
	require.Zero(t, st.Outstanding)
}

// Goroutines started by a job submit and wait through the job's context;
// every job still runs exactly once.
func TestPool_SubmitFromJobGoroutines(t *testing.T) {
	const (
		fanout = 16
		perG   = 2000
	)
	p := newTestPool(t, Config{WorkerCount: 4, QueueCapacity: 64})
	var ran atomic.Int64
	handles := make([][]*Completion, fanout)

	root, err := p.Submit(context.Background(), DefaultGroup, api.PriorityNormal, func(ctx context.Context) error {
		g, gctx := errgroup.WithContext(ctx)
		for i := 0; i < fanout; i++ {
			g.Go(func() error {
				for k := 0; k < perG; k++ {
					h, err := p.Submit(gctx, DefaultGroup, api.Priority(k%api.NumPriorities), func(context.Context) error {
						ran.Add(1)
						return nil
					})
					if err != nil {
						return err
					}
					handles[i] = append(handles[i], h)
				}
				if i%2 == 0 {
					for _, h := range handles[i] {
						if err := p.Wait(gctx, h); err != nil {
							return err
						}
					}
				}
				return nil
			})
		}
		return g.Wait()
	})
	require.NoError(t, err)

	ctx := waitCtx(t)
	require.NoError(t, p.Wait(ctx, root))
	for _, hs := range handles {
		require.Len(t, hs, perG)
		for _, h := range hs {
			require.NoError(t, p.Wait(ctx, h))
		}
	}
	require.Equal(t, int64(fanout*perG), ran.Load())
	require.NoError(t, p.Shutdown(ctx, api.ShutdownImmediate))
	require.Equal(t, uint64(fanout*perG+1), p.Stats().Completed)
}

func TestPool_ImmediateShutdownWhileJobGoroutinesSubmit(t *testing.T) {
	p := newTestPool(t, Config{WorkerCount: 2})
	var (
		mu      sync.Mutex
		handles []*Completion
	)
	busy := make(chan struct{})

	_, err := p.Submit(context.Background(), DefaultGroup, api.PriorityNormal, func(ctx context.Context) error {
		var wg sync.WaitGroup
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for {
					h, err := p.Submit(ctx, DefaultGroup, api.PriorityNormal, func(context.Context) error {
						time.Sleep(time.Microsecond)
						return nil
					})
					if err != nil {
						return
					}
					mu.Lock()
					handles = append(handles, h)
					if len(handles) == 1000 {
						close(busy)
					}
					mu.Unlock()
				}
			}()
		}
		wg.Wait()
		return nil
	})
	require.NoError(t, err)

	ctx := waitCtx(t)
	select {
	case <-busy:
	case <-ctx.Done():
		t.Fatal("submitters did not start")
	}
	require.NoError(t, p.Shutdown(ctx, api.ShutdownImmediate))

	mu.Lock()
	defer mu.Unlock()
	for _, h := range handles {
		require.True(t, h.State().Terminal(), "job %d is %s", h.ID(), h.State())
	}
	st := p.Stats()
	require.Equal(t, st.Submitted, st.Completed+st.Failed+st.Cancelled)
	require.Zero(t, st.Outstanding)
}

func TestPool_GroupConfinement(t *testing.T) {
	p := newTestPool(t, Config{
		WorkerCount: 6,
		Groups: []GroupSpec{
			{Name: "general", Remaining: true},
			{Name: "render", Threads: 2},
		},
	})
	render, err := p.Resolve("render")
	require.NoError(t, err)
	require.Equal(t, []int{0, 1}, render)
	general, err := p.Resolve("general")
	require.NoError(t, err)
	require.Equal(t, []int{2, 3, 4, 5}, general)

	type ran struct {
		group  string
		worker int
	}
	var mu sync.Mutex
	var seen []ran
	record := func(group string) api.JobFunc {
		return func(ctx context.Context) error {
			id, ok := WorkerID(ctx)
			if !ok {
				return errors.New("no worker in job context")
			}
			mu.Lock()
			seen = append(seen, ran{group, id})
			mu.Unlock()
			return nil
		}
	}

	var handles []api.Handle
	for i := 0; i < 300; i++ {
		for _, g := range []string{"render", "general"} {
			h, err := p.Submit(context.Background(), g, api.PriorityNormal, record(g))
			require.NoError(t, err)
			handles = append(handles, h)
		}
	}
	// General jobs handing work to the render group from a non-member.
	for i := 0; i < 50; i++ {
		h, err := p.Submit(context.Background(), "general", api.PriorityNormal, func(ctx context.Context) error {
			sub, err := p.Submit(ctx, "render", api.PriorityNormal, record("render"))
			if err != nil {
				return err
			}
			return p.Wait(ctx, sub)
		})
		require.NoError(t, err)
		handles = append(handles, h)
	}

	ctx := waitCtx(t)
	for _, h := range handles {
		require.NoError(t, p.Wait(ctx, h))
	}
	mu.Lock()
	defer mu.Unlock()
	require.Len(t, seen, 650)
	for _, r := range seen {
		members := general
		if r.group == "render" {
			members = render
		}
		require.Contains(t, members, r.worker, "job of %s ran on worker %d", r.group, r.worker)
	}
}

func TestPool_InvalidGroup(t *testing.T) {
	p := newTestPool(t, Config{WorkerCount: 2})
	noop := func(context.Context) error { return nil }

	_, err := p.Submit(context.Background(), "render", api.PriorityNormal, noop)
	require.ErrorIs(t, err, api.ErrInvalidGroup)
	_, err = p.SubmitBatch(context.Background(), "render", []api.Task{{Fn: noop}})
	require.ErrorIs(t, err, api.ErrInvalidGroup)
	_, err = p.Resolve("render")
	require.ErrorIs(t, err, api.ErrInvalidGroup)

	_, err = p.Submit(context.Background(), DefaultGroup, api.PriorityNormal, nil)
	require.ErrorIs(t, err, api.ErrInvalidArgument)

	require.Zero(t, p.Stats().Submitted, "rejected submissions create no job")
}

func TestPool_Misconfigured(t *testing.T) {
	_, err := New(Config{
		WorkerCount: 2,
		Groups:      []GroupSpec{{Name: "render", Threads: 3}},
	}, WithLogger(zerolog.Nop()))
	require.ErrorIs(t, err, api.ErrPoolMisconfigured)

	_, err = New(Config{WorkerCount: -1}, WithLogger(zerolog.Nop()))
	require.ErrorIs(t, err, api.ErrPoolMisconfigured)
}

func TestPool_FailureIsolation(t *testing.T) {
	em := &recordingEmitter{}
	p := newTestPool(t, Config{WorkerCount: 1}, WithEventEmitter(em))
	ctx := waitCtx(t)
	boom := errors.New("boom")

	failing, err := p.Submit(ctx, DefaultGroup, api.PriorityNormal, func(context.Context) error { return boom })
	require.NoError(t, err)
	panicking, err := p.Submit(ctx, DefaultGroup, api.PriorityNormal, func(context.Context) error { panic("kaboom") })
	require.NoError(t, err)
	ok, err := p.Submit(ctx, DefaultGroup, api.PriorityNormal, func(context.Context) error { return nil })
	require.NoError(t, err)

	err = p.Wait(ctx, failing)
	require.ErrorIs(t, err, api.ErrJobFailed)
	require.ErrorIs(t, err, boom)
	require.Equal(t, api.StateFailed, failing.State())

	err = p.Wait(ctx, panicking)
	require.ErrorIs(t, err, api.ErrJobFailed)
	require.ErrorIs(t, err, api.ErrJobPanicked)
	require.Equal(t, api.StateFailed, panicking.State())

	require.NoError(t, p.Wait(ctx, ok), "worker survives failing payloads")
	require.Equal(t, api.StateCompleted, ok.State())

	st := p.Stats()
	require.Equal(t, uint64(2), st.Failed)
	require.Equal(t, uint64(1), st.Completed)

	events := em.snapshot()
	require.Len(t, events, 2)
	for _, ev := range events {
		jf, isFail := ev.(api.JobFailed)
		require.True(t, isFail)
		require.Equal(t, DefaultGroup, jf.Group)
		require.Equal(t, 0, jf.WorkerID)
	}
	require.Equal(t, failing.ID(), events[0].(api.JobFailed).JobID)
}

func TestPool_BatchFailedKeepsPerJobStatus(t *testing.T) {
	p := newTestPool(t, Config{WorkerCount: 3})
	boom := errors.New("bad frame")
	tasks := make([]api.Task, 10)
	for i := range tasks {
		i := i
		tasks[i] = api.Task{Fn: func(context.Context) error {
			if i == 3 {
				return boom
			}
			return nil
		}}
	}
	b, err := p.SubmitBatch(context.Background(), DefaultGroup, tasks)
	require.NoError(t, err)
	require.Equal(t, 10, b.Len())

	err = p.Wait(waitCtx(t), b)
	require.ErrorIs(t, err, api.ErrJobFailed)
	require.ErrorIs(t, err, boom)
	require.Equal(t, api.StateFailed, b.State())

	for i, r := range b.Results() {
		if i == 3 {
			require.Equal(t, api.StateFailed, r.State)
			require.ErrorIs(t, r.Err, boom)
			continue
		}
		require.Equal(t, api.StateCompleted, r.State, "job %d", i)
	}
}

func TestPool_EmptyBatchCompletes(t *testing.T) {
	p := newTestPool(t, Config{WorkerCount: 1})
	b, err := p.SubmitBatch(context.Background(), DefaultGroup, nil)
	require.NoError(t, err)
	select {
	case <-b.Done():
	default:
		t.Fatal("empty batch must be done immediately")
	}
	require.Equal(t, api.StateCompleted, b.State())
	require.NoError(t, b.Err())
}

func TestPool_PriorityOrderWithinWorker(t *testing.T) {
	p := newTestPool(t, Config{WorkerCount: 1})
	ctx := waitCtx(t)

	gate := make(chan struct{})
	started := make(chan struct{})
	blocker, err := p.Submit(ctx, DefaultGroup, api.PriorityNormal, func(context.Context) error {
		close(started)
		<-gate
		return nil
	})
	require.NoError(t, err)
	<-started

	var mu sync.Mutex
	var order []string
	submit := func(prio api.Priority, tag string) api.Handle {
		h, err := p.Submit(ctx, DefaultGroup, prio, func(context.Context) error {
			mu.Lock()
			order = append(order, tag)
			mu.Unlock()
			return nil
		})
		require.NoError(t, err)
		return h
	}
	var handles []api.Handle
	handles = append(handles,
		submit(api.PriorityLow, "low-1"),
		submit(api.PriorityHigh, "high-1"),
		submit(api.PriorityNormal, "normal-1"),
		submit(api.PriorityCritical, "critical-1"),
		submit(api.PriorityLow, "low-2"),
		submit(api.PriorityHigh, "high-2"),
		submit(api.Priority(42), "critical-2"),
		submit(api.Priority(-3), "low-3"),
	)
	close(gate)
	require.NoError(t, p.Wait(ctx, blocker))
	for _, h := range handles {
		require.NoError(t, p.Wait(ctx, h))
	}

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, []string{
		"critical-1", "critical-2",
		"high-1", "high-2",
		"normal-1",
		"low-1", "low-2", "low-3",
	}, order)
}

func fib(p *Pool, n int) api.JobFunc {
	return func(ctx context.Context) error {
		if n < 2 {
			return nil
		}
		a, err := p.Submit(ctx, DefaultGroup, api.PriorityNormal, fib(p, n-1))
		if err != nil {
			return err
		}
		b, err := p.Submit(ctx, DefaultGroup, api.PriorityNormal, fib(p, n-2))
		if err != nil {
			return err
		}
		if err := p.Wait(ctx, a); err != nil {
			return err
		}
		return p.Wait(ctx, b)
	}
}

// A job waiting on its own sub-jobs keeps the only worker busy executing
// them instead of deadlocking.
func TestPool_NestedWaitOnSingleWorker(t *testing.T) {
	p := newTestPool(t, Config{WorkerCount: 1})
	h, err := p.Submit(context.Background(), DefaultGroup, api.PriorityNormal, fib(p, 12))
	require.NoError(t, err)
	require.NoError(t, p.Wait(waitCtx(t), h))
	// fib call tree of 12 has 465 nodes.
	require.Equal(t, uint64(465), p.Stats().Completed)
}

func TestPool_GracefulShutdownLosesNothing(t *testing.T) {
	p := newTestPool(t, Config{WorkerCount: 2})
	var ran atomic.Int64
	var handles []api.Handle
	for i := 0; i < 500; i++ {
		h, err := p.Submit(context.Background(), DefaultGroup, api.Priority(i%api.NumPriorities), func(ctx context.Context) error {
			time.Sleep(20 * time.Microsecond)
			ran.Add(1)
			return nil
		})
		require.NoError(t, err)
		handles = append(handles, h)
	}

	require.NoError(t, p.Shutdown(waitCtx(t), api.ShutdownGraceful))
	for _, h := range handles {
		select {
		case <-h.Done():
		default:
			t.Fatal("handle not terminal after graceful shutdown")
		}
		require.Equal(t, api.StateCompleted, h.State())
	}
	require.Equal(t, int64(500), ran.Load())

	_, err := p.Submit(context.Background(), DefaultGroup, api.PriorityNormal, func(context.Context) error { return nil })
	require.ErrorIs(t, err, api.ErrPoolClosed)
	require.ErrorIs(t, p.Shutdown(context.Background(), api.ShutdownGraceful), api.ErrPoolClosed)
	require.Equal(t, "stopped", p.Stats().State)
}

// Running jobs may still fan out while the pool drains; external callers
// may not.
func TestPool_GracefulShutdownAcceptsWorkerSubmissions(t *testing.T) {
	p := newTestPool(t, Config{WorkerCount: 2})
	gate := make(chan struct{})
	started := make(chan struct{})
	child := make(chan *Completion, 1)

	parent, err := p.Submit(context.Background(), DefaultGroup, api.PriorityNormal, func(ctx context.Context) error {
		close(started)
		<-gate
		c, err := p.Submit(ctx, DefaultGroup, api.PriorityNormal, func(context.Context) error { return nil })
		if err != nil {
			return err
		}
		child <- c
		return nil
	})
	require.NoError(t, err)
	<-started

	done := make(chan error, 1)
	shutdownCtx := waitCtx(t)
	go func() { done <- p.Shutdown(shutdownCtx, api.ShutdownGraceful) }()
	require.Eventually(t, p.Closed, time.Second, time.Millisecond)

	_, err = p.Submit(context.Background(), DefaultGroup, api.PriorityNormal, func(context.Context) error { return nil })
	require.ErrorIs(t, err, api.ErrPoolClosed)

	close(gate)
	require.NoError(t, <-done)
	require.Equal(t, api.StateCompleted, parent.State())
	c := <-child
	require.Equal(t, api.StateCompleted, c.State())
}

func TestPool_ImmediateShutdownCancelsQueued(t *testing.T) {
	p := newTestPool(t, Config{WorkerCount: 1})
	started := make(chan struct{})
	running, err := p.Submit(context.Background(), DefaultGroup, api.PriorityNormal, func(ctx context.Context) error {
		close(started)
		<-ctx.Done()
		return ctx.Err()
	})
	require.NoError(t, err)
	<-started

	var ran atomic.Int64
	var queued []*Completion
	for i := 0; i < 100; i++ {
		h, err := p.Submit(context.Background(), DefaultGroup, api.PriorityNormal, func(context.Context) error {
			ran.Add(1)
			return nil
		})
		require.NoError(t, err)
		queued = append(queued, h)
	}
	b, err := p.SubmitBatch(context.Background(), DefaultGroup, []api.Task{
		{Fn: func(context.Context) error { return nil }},
		{Fn: func(context.Context) error { return nil }},
	})
	require.NoError(t, err)

	require.NoError(t, p.Shutdown(waitCtx(t), api.ShutdownImmediate))

	require.Equal(t, api.StateFailed, running.State(), "in-hand job sees its context cancelled")
	require.ErrorIs(t, running.Err(), context.Canceled)
	for _, h := range queued {
		require.Equal(t, api.StateCancelled, h.State())
		require.ErrorIs(t, h.Err(), api.ErrCancelled)
	}
	require.Equal(t, api.StateCancelled, b.State())
	require.ErrorIs(t, b.Err(), api.ErrCancelled)
	require.Zero(t, ran.Load())
	require.Equal(t, uint64(102), p.Stats().Cancelled)
}

func TestPool_GracefulShutdownDeadlineEscalates(t *testing.T) {
	p := newTestPool(t, Config{WorkerCount: 1})
	started := make(chan struct{})
	h, err := p.Submit(context.Background(), DefaultGroup, api.PriorityNormal, func(ctx context.Context) error {
		close(started)
		<-ctx.Done()
		return nil
	})
	require.NoError(t, err)
	<-started

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	err = p.Shutdown(ctx, api.ShutdownGraceful)
	require.ErrorIs(t, err, context.DeadlineExceeded)
	require.True(t, h.State().Terminal())
}

func TestPool_ShutdownFromWorkerRejected(t *testing.T) {
	p := newTestPool(t, Config{WorkerCount: 1})
	h, err := p.Submit(context.Background(), DefaultGroup, api.PriorityNormal, func(ctx context.Context) error {
		return p.Shutdown(ctx, api.ShutdownGraceful)
	})
	require.NoError(t, err)
	err = p.Wait(waitCtx(t), h)
	require.ErrorIs(t, err, api.ErrInvalidArgument)
	require.False(t, p.Closed())
}

func TestPool_WaitHonoursContext(t *testing.T) {
	p := newTestPool(t, Config{WorkerCount: 1})
	gate := make(chan struct{})
	defer close(gate)
	h, err := p.Submit(context.Background(), DefaultGroup, api.PriorityNormal, func(context.Context) error {
		<-gate
		return nil
	})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	require.ErrorIs(t, p.Wait(ctx, h), context.DeadlineExceeded)
	require.NoError(t, h.Err(), "non-terminal handle has no error")
}

// blockWorker parks worker id of group inside a job until the returned
// gate is closed. Probes that land on another member return at once.
func blockWorker(t *testing.T, p *Pool, group string, id int) chan struct{} {
	t.Helper()
	gate := make(chan struct{})
	for attempt := 0; attempt < 100; attempt++ {
		started := make(chan bool, 1)
		_, err := p.Submit(context.Background(), group, api.PriorityNormal, func(ctx context.Context) error {
			if got, _ := WorkerID(ctx); got != id {
				started <- false
				return nil
			}
			started <- true
			<-gate
			return nil
		})
		require.NoError(t, err)
		if <-started {
			return gate
		}
	}
	t.Fatalf("could not block worker %d", id)
	return nil
}

// blockAll occupies every worker with one gate job submitted to group and
// returns the gates by worker id. A blocked worker cannot take a second gate
// job, so the jobs spread over all workers; group must be reachable from
// every worker.
func blockAll(t *testing.T, p *Pool, group string) map[int]chan struct{} {
	t.Helper()
	n := p.NumWorkers()
	gates := make(map[int]chan struct{}, n)
	for id := 0; id < n; id++ {
		gates[id] = make(chan struct{})
	}
	arrived := make(chan int, n)
	for i := 0; i < n; i++ {
		_, err := p.Submit(context.Background(), group, api.PriorityNormal, func(ctx context.Context) error {
			id, _ := WorkerID(ctx)
			arrived <- id
			<-gates[id]
			return nil
		})
		require.NoError(t, err)
	}
	seen := make(map[int]bool, n)
	ctx := waitCtx(t)
	for len(seen) < n {
		select {
		case id := <-arrived:
			require.False(t, seen[id], "worker %d ran two gate jobs", id)
			seen[id] = true
		case <-ctx.Done():
			t.Fatalf("only %d of %d workers blocked", len(seen), n)
		}
	}
	t.Cleanup(func() {
		for _, g := range gates {
			select {
			case <-g:
			default:
				close(g)
			}
		}
	})
	return gates
}

func TestPool_StealAcrossGroups(t *testing.T) {
	p := newTestPool(t, Config{
		WorkerCount:       2,
		StealAcrossGroups: true,
		Groups: []GroupSpec{
			{Name: "render", Threads: 1},
			{Name: "general", Remaining: true},
		},
	})
	gates := blockAll(t, p, "render")
	close(gates[1])

	var where []int
	var mu sync.Mutex
	for i := 0; i < 20; i++ {
		_, err := p.Submit(context.Background(), "render", api.PriorityNormal, func(ctx context.Context) error {
			id, _ := WorkerID(ctx)
			mu.Lock()
			where = append(where, id)
			mu.Unlock()
			return nil
		})
		require.NoError(t, err)
	}
	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(where) == 20
	}, 5*time.Second, time.Millisecond, "general worker steals render jobs")
	for _, id := range where {
		require.Equal(t, 1, id)
	}
	require.GreaterOrEqual(t, p.Stats().Stolen, uint64(20))
}

func TestPool_ExclusiveGroupIsNotStolenFrom(t *testing.T) {
	p := newTestPool(t, Config{
		WorkerCount:       2,
		StealAcrossGroups: true,
		Groups: []GroupSpec{
			{Name: "render", Threads: 1, Exclusive: true},
			{Name: "general", Remaining: true},
		},
	})
	gate := blockWorker(t, p, "render", 0)

	var ran atomic.Int64
	h, err := p.Submit(context.Background(), "render", api.PriorityNormal, func(context.Context) error {
		ran.Add(1)
		return nil
	})
	require.NoError(t, err)
	require.Never(t, func() bool { return ran.Load() > 0 }, 100*time.Millisecond, 5*time.Millisecond)

	close(gate)
	require.NoError(t, p.Wait(waitCtx(t), h))
	require.Equal(t, int64(1), ran.Load())
}

func TestPool_StatsAndTopology(t *testing.T) {
	p := newTestPool(t, Config{
		WorkerCount: 3,
		Groups: []GroupSpec{
			{Name: "render", Threads: 1},
			{Name: "general", Remaining: true},
		},
	})
	require.Equal(t, 3, p.NumWorkers())
	require.Equal(t, []string{"render", "general"}, p.Groups())
	require.NotEmpty(t, p.ID())

	b, err := p.SubmitBatch(context.Background(), "general", []api.Task{
		{Fn: func(context.Context) error { return nil }},
		{Fn: func(context.Context) error { return errors.New("x") }},
	})
	require.NoError(t, err)
	require.Error(t, p.Wait(waitCtx(t), b))

	st := p.Stats()
	require.Equal(t, p.ID(), st.PoolID)
	require.Equal(t, "running", st.State)
	require.Equal(t, uint64(2), st.Submitted)
	require.Equal(t, uint64(1), st.Completed)
	require.Equal(t, uint64(1), st.Failed)
	require.Len(t, st.Workers, 3)
	require.Equal(t, []string{"render"}, st.Workers[0].Groups)
	require.Len(t, st.Groups, 2)
	require.Equal(t, []int{1, 2}, st.Groups[1].Members)

	var executed uint64
	for _, w := range st.Workers {
		executed += w.Executed
	}
	require.Equal(t, uint64(2), executed)
}
