// File: facade/jobs.go
// Unified facade layer for hioload-jobs.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// JobSystem aggregates the thread pool, stall detector, diagnostic event
// bus, control surface and telemetry behind one explicitly owned object
// built from a control.Config.

package facade

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/metric"

	"github.com/momentics/hioload-jobs/adapters"
	"github.com/momentics/hioload-jobs/api"
	"github.com/momentics/hioload-jobs/control"
	"github.com/momentics/hioload-jobs/events"
	"github.com/momentics/hioload-jobs/internal/scheduler"
	"github.com/momentics/hioload-jobs/observability"
)

// Re-exported scheduler types.
type (
	Completion  = scheduler.Completion
	Batch       = scheduler.Batch
	Stats       = scheduler.Stats
	GroupStats  = scheduler.GroupStats
	WorkerStats = scheduler.WorkerStats
)

// DefaultGroup is the group used when the configuration declares none.
const DefaultGroup = scheduler.DefaultGroup

// Metric keys published to Control.
const (
	MetricStallEvents   = "events.stalls_total"
	MetricFailureEvents = "events.job_failures_total"
)

// Option configures a JobSystem.
type Option func(*options)

type options struct {
	logger    *zerolog.Logger
	observers []api.Observer
	meter     metric.Meter
	ctx       context.Context
	config    adapters.ConfigSource
}

// WithLogger sets the base logger. Defaults to the global zerolog logger.
func WithLogger(l zerolog.Logger) Option {
	return func(o *options) { o.logger = &l }
}

// WithObserver adds an execution telemetry hook.
func WithObserver(obs api.Observer) Option {
	return func(o *options) { o.observers = append(o.observers, obs) }
}

// WithMeter records OpenTelemetry metrics through meter instead of the
// global MeterProvider.
func WithMeter(m metric.Meter) Option {
	return func(o *options) { o.meter = m }
}

// WithContext sets the parent context of job payloads.
func WithContext(ctx context.Context) Option {
	return func(o *options) { o.ctx = ctx }
}

// WithConfigSource exposes the loaded configuration through Control, for
// example a *control.Manager.
func WithConfigSource(src adapters.ConfigSource) Option {
	return func(o *options) { o.config = src }
}

// JobSystem is the top-level job system object.
type JobSystem struct {
	cfg       control.Config
	pool      *scheduler.Pool
	stall     *scheduler.StallDetector
	bus       *events.Bus
	control   *adapters.ControlAdapter
	collector *observability.Collector
	logger    zerolog.Logger

	stallEvents   atomic.Int64
	failureEvents atomic.Int64
	unsubscribe   func()
	closeOnce     sync.Once
}

var _ api.GracefulShutdown = (*JobSystem)(nil)

// New builds and starts a job system. Group layout errors are returned
// as ErrPoolMisconfigured before any thread starts.
func New(cfg control.Config, opts ...Option) (*JobSystem, error) {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	logger := log.Logger
	if o.logger != nil {
		logger = *o.logger
	}
	meter := o.meter
	var metrics *observability.Metrics
	if meter != nil {
		metrics = observability.NewMetricsWithMeter(meter)
	} else {
		metrics = observability.NewMetrics()
	}

	poolCfg, err := cfg.PoolConfig()
	if err != nil {
		return nil, err
	}

	js := &JobSystem{
		cfg:     cfg,
		bus:     events.NewBus(events.WithLogger(logger)),
		control: adapters.NewControlAdapter(o.config),
		logger:  logger.With().Str("component", "facade").Logger(),
	}
	js.unsubscribe = js.bus.Subscribe(js.countEvent)

	poolOpts := []scheduler.Option{
		scheduler.WithLogger(logger),
		scheduler.WithEventEmitter(js.bus),
		scheduler.WithObserver(adapters.NewMultiObserver(append([]api.Observer{metrics}, o.observers...)...)),
	}
	if o.ctx != nil {
		poolOpts = append(poolOpts, scheduler.WithContext(o.ctx))
	}
	js.pool, err = scheduler.New(poolCfg, poolOpts...)
	if err != nil {
		js.unsubscribe()
		js.bus.Close()
		return nil, err
	}

	if threshold := cfg.StallThreshold(); threshold > 0 {
		js.stall = scheduler.NewStallDetector(js.pool, threshold, cfg.StallCheckInterval,
			scheduler.WithStallEmitter(js.bus),
			scheduler.WithStallPublisher(js.control.Metrics()),
			scheduler.WithStallLogger(logger),
		)
		js.stall.Start()
	}
	js.collector = observability.NewCollector(js.pool, prometheus.Labels{"pool": js.pool.ID()})

	js.control.SetMetric("pool.id", js.pool.ID())
	js.control.SetMetric("pool.workers", js.pool.NumWorkers())
	js.control.SetMetric("pool.groups", js.pool.Groups())
	js.control.RegisterDebugProbe("pool.stats", func() any { return js.pool.Stats() })
	js.control.RegisterDebugProbe("events.pending", func() any { return js.bus.Pending() })
	js.control.RegisterDebugProbe("events.dropped", func() any { return js.bus.Dropped() })

	js.logger.Info().
		Str("pool_id", js.pool.ID()).
		Int("workers", js.pool.NumWorkers()).
		Strs("groups", js.pool.Groups()).
		Bool("stall_detector", js.stall != nil).
		Msg("job system started")
	return js, nil
}

func (js *JobSystem) countEvent(ev api.Event) {
	switch ev.(type) {
	case api.StallDetected:
		js.control.SetMetric(MetricStallEvents, js.stallEvents.Add(1))
	case api.JobFailed:
		js.control.SetMetric(MetricFailureEvents, js.failureEvents.Add(1))
	}
}

// Submit enqueues fn for group. See scheduler.Pool.Submit.
func (js *JobSystem) Submit(ctx context.Context, group string, priority api.Priority, fn api.JobFunc) (*Completion, error) {
	return js.pool.Submit(ctx, group, priority, fn)
}

// SubmitBatch enqueues tasks under one aggregate handle.
func (js *JobSystem) SubmitBatch(ctx context.Context, group string, tasks []api.Task) (*Batch, error) {
	return js.pool.SubmitBatch(ctx, group, tasks)
}

// Wait blocks until h is terminal. Inside a job it helps execute queued work.
func (js *JobSystem) Wait(ctx context.Context, h api.Handle) error {
	return js.pool.Wait(ctx, h)
}

// Shutdown stops the pool in the given mode, then the stall detector and
// the event bus, delivering pending events. A second call returns
// ErrPoolClosed. A rejected call leaves everything running.
func (js *JobSystem) Shutdown(ctx context.Context, mode api.ShutdownMode) error {
	err := js.pool.Shutdown(ctx, mode)
	if !js.pool.Stopped() {
		return err
	}
	js.closeOnce.Do(func() {
		if js.stall != nil {
			js.stall.Stop()
		}
		js.bus.Close()
		js.unsubscribe()
		st := js.pool.Stats()
		js.control.SetMetric("pool.completed", st.Completed)
		js.control.SetMetric("pool.failed", st.Failed)
		js.control.SetMetric("pool.cancelled", st.Cancelled)
	})
	return err
}

// Stats returns a snapshot of pool counters.
func (js *JobSystem) Stats() Stats { return js.pool.Stats() }

// Resolve returns the worker ids of group.
func (js *JobSystem) Resolve(group string) ([]int, error) { return js.pool.Resolve(group) }

// Groups returns the configured group names.
func (js *JobSystem) Groups() []string { return js.pool.Groups() }

// NumWorkers returns the worker thread count.
func (js *JobSystem) NumWorkers() int { return js.pool.NumWorkers() }

// ID returns the pool instance id.
func (js *JobSystem) ID() string { return js.pool.ID() }

// Config returns the configuration the system was built from.
func (js *JobSystem) Config() control.Config { return js.cfg }

// Control exposes configuration, metrics and debug probes.
func (js *JobSystem) Control() api.Control { return js.control }

// Debug exposes the registered debug probes.
func (js *JobSystem) Debug() api.Debug { return js.control.Debug() }

// Events returns the diagnostic event bus.
func (js *JobSystem) Events() *events.Bus { return js.bus }

// Collector returns a Prometheus collector over pool statistics.
func (js *JobSystem) Collector() prometheus.Collector { return js.collector }

// StallDetector returns the running detector, or nil when disabled.
func (js *JobSystem) StallDetector() *scheduler.StallDetector { return js.stall }
