// File: internal/scheduler/stall.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Stall detector: a low-frequency observer of worker heartbeats.

package scheduler

import (
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/momentics/hioload-jobs/api"
)

// Publisher receives the per-scan stall gauge.
type Publisher interface {
	Set(key string, value any)
}

// MetricStalledWorkers is the Publisher key carrying the stalled count of
// the latest scan.
const MetricStalledWorkers = "scheduler.stalled_workers"

// StallDetector flags workers that made no progress for longer than a
// threshold while work was visible to them. It only reads worker atomics
// and never touches queues or jobs.
type StallDetector struct {
	pool      *Pool
	threshold time.Duration
	interval  time.Duration
	emitter   api.EventEmitter
	publisher Publisher
	logger    zerolog.Logger

	mu       sync.Mutex
	reported []int64 // heartbeat stamp of the last reported episode per worker

	runMu   sync.Mutex
	started bool
	stopped bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// StallOption configures a StallDetector.
type StallOption func(*StallDetector)

// WithStallEmitter routes StallDetected events to e.
func WithStallEmitter(e api.EventEmitter) StallOption {
	return func(d *StallDetector) { d.emitter = e }
}

// WithStallPublisher publishes the stalled worker count after every scan.
func WithStallPublisher(p Publisher) StallOption {
	return func(d *StallDetector) { d.publisher = p }
}

// WithStallLogger overrides the pool logger.
func WithStallLogger(l zerolog.Logger) StallOption {
	return func(d *StallDetector) { d.logger = l }
}

// NewStallDetector builds a detector for p. A non-positive interval
// defaults to half the threshold.
func NewStallDetector(p *Pool, threshold, interval time.Duration, opts ...StallOption) *StallDetector {
	if interval <= 0 {
		interval = threshold / 2
	}
	if interval <= 0 {
		interval = time.Second
	}
	d := &StallDetector{
		pool:      p,
		threshold: threshold,
		interval:  interval,
		logger:    p.logger,
		reported:  make([]int64, len(p.workers)),
		stopCh:    make(chan struct{}),
		doneCh:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(d)
	}
	d.logger = d.logger.With().Str("component", "stall_detector").Logger()
	return d
}

// Threshold returns the configured stall threshold.
func (d *StallDetector) Threshold() time.Duration { return d.threshold }

// Start launches the scan loop. Calls after the first, or after Stop, are
// no-ops.
func (d *StallDetector) Start() {
	d.runMu.Lock()
	defer d.runMu.Unlock()
	if d.started || d.stopped {
		return
	}
	d.started = true
	go d.loop()
}

// Stop terminates the scan loop and waits for it to exit. It may be called
// any number of times, with or without Start.
func (d *StallDetector) Stop() {
	d.runMu.Lock()
	if !d.stopped {
		d.stopped = true
		close(d.stopCh)
	}
	started := d.started
	d.runMu.Unlock()
	if started {
		<-d.doneCh
	}
}

// Running reports whether the scan loop is active.
func (d *StallDetector) Running() bool {
	d.runMu.Lock()
	defer d.runMu.Unlock()
	return d.started && !d.stopped
}

func (d *StallDetector) loop() {
	defer close(d.doneCh)
	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()
	d.logger.Debug().Dur("threshold", d.threshold).Dur("interval", d.interval).Msg("stall detector started")
	for {
		select {
		case <-d.stopCh:
			return
		case now := <-ticker.C:
			if d.pool.Closed() {
				continue
			}
			d.report(d.Scan(now))
		}
	}
}

// Scan evaluates every worker once at now. A worker is stalled when the
// later of its last completion and its last empty scan is older than the
// threshold while its own or any visible queue holds work. Each stall
// episode is returned once.
func (d *StallDetector) Scan(now time.Time) []api.StallDetected {
	d.mu.Lock()
	defer d.mu.Unlock()

	var out []api.StallDetected
	for _, w := range d.pool.workers {
		beat := w.lastProgress.Load()
		if idle := w.lastIdle.Load(); idle > beat {
			beat = idle
		}
		elapsed := now.Sub(time.Unix(0, beat))
		if elapsed <= d.threshold || !w.hasVisibleWork() {
			continue
		}
		if d.reported[w.id] == beat {
			continue
		}
		d.reported[w.id] = beat
		out = append(out, api.StallDetected{
			WorkerID: w.id,
			Group:    w.groupLabel(),
			Duration: elapsed,
			At:       now,
		})
	}
	return out
}

func (d *StallDetector) report(events []api.StallDetected) {
	for _, ev := range events {
		d.logger.Warn().
			Int("worker", ev.WorkerID).
			Str("group", ev.Group).
			Int64("duration_ms", ev.DurationMS()).
			Msg("worker stalled")
		d.pool.observer.StallDetected(ev)
		if d.emitter != nil {
			d.emitter.Emit(ev)
		}
	}
	if d.publisher != nil {
		d.publisher.Set(MetricStalledWorkers, len(events))
	}
}
