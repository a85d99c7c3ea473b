// File: internal/scheduler/config.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package scheduler

import (
	"fmt"
	"runtime"
	"time"

	"github.com/momentics/hioload-jobs/api"
)

// DefaultGroup is the group created when no groups are configured.
const DefaultGroup = "default"

// Config holds pool construction parameters. It is immutable once the pool
// is built.
type Config struct {
	// WorkerCount is the number of worker threads. Zero means GOMAXPROCS.
	WorkerCount int
	// Groups partitions workers. Empty means one DefaultGroup owning all.
	Groups []GroupSpec
	// StealAcrossGroups lets workers steal jobs of non-exclusive groups they
	// are not members of.
	StealAcrossGroups bool
	// IdleSpinIterations is how many yield-and-rescan rounds a worker makes
	// before parking.
	IdleSpinIterations int
	// IdleParkTimeout bounds a single park so missed steal chances are
	// picked up without a wake.
	IdleParkTimeout time.Duration
	// QueueCapacity is the ring size of each priority band, for both the
	// owner deque and the inbox. Overflow spills to an unbounded queue.
	QueueCapacity int
	// PinThreads restricts worker i to the i-th usable CPU.
	PinThreads bool
}

// DefaultConfig returns default configuration values.
func DefaultConfig() Config {
	return Config{
		WorkerCount:        runtime.GOMAXPROCS(0),
		IdleSpinIterations: 64,
		IdleParkTimeout:    10 * time.Millisecond,
		QueueCapacity:      256,
	}
}

func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.WorkerCount == 0 {
		c.WorkerCount = def.WorkerCount
	}
	if c.IdleParkTimeout <= 0 {
		c.IdleParkTimeout = def.IdleParkTimeout
	}
	if c.QueueCapacity <= 0 {
		c.QueueCapacity = def.QueueCapacity
	}
	if c.IdleSpinIterations < 0 {
		c.IdleSpinIterations = 0
	}
	return c
}

func (c Config) validate() error {
	if c.WorkerCount < 0 {
		return misconfigured("worker_count must be positive, got %d", c.WorkerCount)
	}
	return nil
}

func misconfigured(format string, args ...any) error {
	return api.ErrPoolMisconfigured.Wrap(fmt.Errorf(format, args...))
}
