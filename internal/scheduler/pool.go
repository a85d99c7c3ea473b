// File: internal/scheduler/pool.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Pool construction, options and static topology.

package scheduler

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/momentics/hioload-jobs/api"
	"github.com/momentics/hioload-jobs/internal/concurrency"
)

const (
	stateRunning int32 = iota
	stateDraining
	stateStopping
	stateStopped
)

// Pool is a fixed set of worker threads executing submitted jobs.
// It is safe for concurrent use.
type Pool struct {
	id      string
	cfg     Config
	groups  *groupTable
	workers []*worker

	logger   zerolog.Logger
	observer api.Observer
	emitter  api.EventEmitter
	failLog  rate.Sometimes

	baseCtx context.Context
	ctx     context.Context // handed to payloads, cancelled on immediate stop
	cancel  context.CancelFunc

	// lifecycle orders admission against state changes: submitters hold it
	// shared while enqueueing, Shutdown takes it exclusively to flip state.
	lifecycle concurrency.RWMutex
	state     atomic.Int32
	stopping  atomic.Bool
	stopCh    chan struct{}
	workersWG sync.WaitGroup

	nextID      atomic.Uint64
	outstanding atomic.Int64
	drained     chan struct{}

	submitted atomic.Uint64
	completed atomic.Uint64
	failed    atomic.Uint64
	cancelled atomic.Uint64
	stolen    atomic.Uint64
}

var _ api.GracefulShutdown = (*Pool)(nil)

// Option configures a Pool.
type Option func(*Pool)

// WithLogger sets the pool logger.
func WithLogger(l zerolog.Logger) Option {
	return func(p *Pool) { p.logger = l }
}

// WithObserver installs an execution telemetry hook.
func WithObserver(o api.Observer) Option {
	return func(p *Pool) {
		if o != nil {
			p.observer = o
		}
	}
}

// WithEventEmitter routes JobFailed events to e.
func WithEventEmitter(e api.EventEmitter) Option {
	return func(p *Pool) { p.emitter = e }
}

// WithContext sets the parent of the context handed to payloads.
func WithContext(ctx context.Context) Option {
	return func(p *Pool) {
		if ctx != nil {
			p.baseCtx = ctx
		}
	}
}

// New validates cfg, allocates worker groups and queues, and starts the
// worker threads. Invalid group layouts fail with ErrPoolMisconfigured.
func New(cfg Config, opts ...Option) (*Pool, error) {
	cfg = cfg.withDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	groups, err := buildGroups(cfg.WorkerCount, cfg.Groups)
	if err != nil {
		return nil, err
	}

	p := &Pool{
		id:       uuid.NewString(),
		cfg:      cfg,
		groups:   groups,
		logger:   log.Logger,
		observer: api.NopObserver{},
		failLog:  rate.Sometimes{First: 1, Interval: time.Second},
		baseCtx:  context.Background(),
		stopCh:   make(chan struct{}),
		drained:  make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.logger = p.logger.With().Str("component", "scheduler").Str("pool_id", p.id).Logger()
	p.ctx, p.cancel = context.WithCancel(p.baseCtx)

	p.workers = make([]*worker, cfg.WorkerCount)
	for id := range p.workers {
		p.workers[id] = newWorker(p, id)
	}
	for _, g := range groups.groups {
		g.queues = make([]*jobQueue, 0, len(g.members))
		for _, id := range g.members {
			w := p.workers[id]
			q := newJobQueue(w, g, cfg.QueueCapacity)
			g.queues = append(g.queues, q)
			w.queues = append(w.queues, q)
			w.byGroup[g.idx] = q
			if g.exclusive {
				w.reserved = true
			}
		}
	}
	for _, w := range p.workers {
		w.victims = p.victimsOf(w)
	}

	p.workersWG.Add(len(p.workers))
	for _, w := range p.workers {
		go w.run()
	}

	ev := p.logger.Info().Int("workers", len(p.workers)).Bool("steal_across_groups", cfg.StealAcrossGroups)
	for _, g := range groups.groups {
		ev = ev.Ints("group_"+g.name, g.members)
	}
	ev.Msg("pool started")
	return p, nil
}

// victimsOf lists the peer queues w may steal from. Members steal inside
// their groups; with cross-group stealing on, non-reserved workers also
// steal from non-exclusive foreign groups.
func (p *Pool) victimsOf(w *worker) []*jobQueue {
	var out []*jobQueue
	for _, g := range p.groups.groups {
		member := g.has(w.id)
		if !member && (!p.cfg.StealAcrossGroups || g.exclusive || w.reserved) {
			continue
		}
		for _, q := range g.queues {
			if q.owner != w {
				out = append(out, q)
			}
		}
	}
	return out
}

// ID returns the pool instance id.
func (p *Pool) ID() string { return p.id }

// NumWorkers returns the number of worker threads.
func (p *Pool) NumWorkers() int { return len(p.workers) }

// Groups returns the group names in declaration order.
func (p *Pool) Groups() []string {
	out := make([]string, len(p.groups.groups))
	for i, g := range p.groups.groups {
		out[i] = g.name
	}
	return out
}

// Resolve returns the worker ids of group, or ErrInvalidGroup.
func (p *Pool) Resolve(group string) ([]int, error) {
	g, err := p.groups.lookup(group)
	if err != nil {
		return nil, err
	}
	return append([]int(nil), g.members...), nil
}

// Closed reports whether Shutdown has been called.
func (p *Pool) Closed() bool {
	return p.state.Load() != stateRunning
}

// Stopped reports whether Shutdown has finished and every worker exited.
func (p *Pool) Stopped() bool {
	return p.state.Load() == stateStopped
}
