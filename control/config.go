// control/config.go
// Author: momentics <momentics@gmail.com>
//
// Configuration model of the job system and its conversion to pool settings.

package control

import (
	"fmt"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/momentics/hioload-jobs/api"
	"github.com/momentics/hioload-jobs/internal/scheduler"
)

// ThreadsRemaining is the threads value that assigns every worker not taken
// by another group.
const ThreadsRemaining = "remaining"

// Config is the complete job system configuration.
type Config struct {
	WorkerCount        int           `koanf:"worker_count" yaml:"worker_count"`
	Groups             []GroupConfig `koanf:"groups" yaml:"groups"`
	StealAcrossGroups  bool          `koanf:"steal_enabled_across_groups" yaml:"steal_enabled_across_groups"`
	IdleSpinIterations int           `koanf:"idle_spin_iterations" yaml:"idle_spin_iterations"`
	IdleParkTimeout    time.Duration `koanf:"idle_park_timeout" yaml:"idle_park_timeout"`
	StallThresholdMS   int           `koanf:"stall_threshold_ms" yaml:"stall_threshold_ms"`
	StallCheckInterval time.Duration `koanf:"stall_check_interval" yaml:"stall_check_interval"`
	QueueCapacity      int           `koanf:"queue_capacity" yaml:"queue_capacity"`
	PinThreads         bool          `koanf:"pin_threads" yaml:"pin_threads"`
	Log                LogConfig     `koanf:"log" yaml:"log"`
	Metrics            MetricsConfig `koanf:"metrics" yaml:"metrics"`
}

// GroupConfig declares one worker group. Threads is a count or "remaining";
// Workers lists explicit worker ids instead.
type GroupConfig struct {
	Name      string `koanf:"name" yaml:"name"`
	Threads   string `koanf:"threads" yaml:"threads,omitempty"`
	Workers   []int  `koanf:"workers" yaml:"workers,omitempty"`
	Exclusive bool   `koanf:"exclusive" yaml:"exclusive,omitempty"`
}

// LogConfig selects log verbosity and encoding.
type LogConfig struct {
	Level  string `koanf:"level" yaml:"level"`
	Format string `koanf:"format" yaml:"format"` // "text" or "json"
}

// MetricsConfig controls metric export.
type MetricsConfig struct {
	// Addr is the listen address of the Prometheus endpoint; empty disables it.
	Addr string `koanf:"addr" yaml:"addr"`
}

// DefaultConfig returns the baseline configuration.
func DefaultConfig() Config {
	def := scheduler.DefaultConfig()
	return Config{
		WorkerCount:        runtime.GOMAXPROCS(0),
		IdleSpinIterations: def.IdleSpinIterations,
		IdleParkTimeout:    def.IdleParkTimeout,
		StallThresholdMS:   500,
		StallCheckInterval: 100 * time.Millisecond,
		QueueCapacity:      def.QueueCapacity,
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// DefaultConfigAsMap flattens DefaultConfig for the confmap provider so
// every scalar key is known before files and flags are merged.
func DefaultConfigAsMap() map[string]any {
	def := DefaultConfig()
	return map[string]any{
		"worker_count":                def.WorkerCount,
		"steal_enabled_across_groups": def.StealAcrossGroups,
		"idle_spin_iterations":        def.IdleSpinIterations,
		"idle_park_timeout":           def.IdleParkTimeout.String(),
		"stall_threshold_ms":          def.StallThresholdMS,
		"stall_check_interval":        def.StallCheckInterval.String(),
		"queue_capacity":              def.QueueCapacity,
		"pin_threads":                 def.PinThreads,
		"log.level":                   def.Log.Level,
		"log.format":                  def.Log.Format,
		"metrics.addr":                def.Metrics.Addr,
	}
}

// StallThreshold returns the stall threshold as a duration.
func (c Config) StallThreshold() time.Duration {
	return time.Duration(c.StallThresholdMS) * time.Millisecond
}

// PoolConfig converts c into scheduler settings. Malformed group entries
// fail with ErrPoolMisconfigured.
func (c Config) PoolConfig() (scheduler.Config, error) {
	out := scheduler.Config{
		WorkerCount:        c.WorkerCount,
		StealAcrossGroups:  c.StealAcrossGroups,
		IdleSpinIterations: c.IdleSpinIterations,
		IdleParkTimeout:    c.IdleParkTimeout,
		QueueCapacity:      c.QueueCapacity,
		PinThreads:         c.PinThreads,
	}
	for i, g := range c.Groups {
		spec := scheduler.GroupSpec{
			Name:      g.Name,
			Workers:   append([]int(nil), g.Workers...),
			Exclusive: g.Exclusive,
		}
		switch threads := strings.TrimSpace(strings.ToLower(g.Threads)); threads {
		case "":
		case ThreadsRemaining:
			spec.Remaining = true
		default:
			n, err := strconv.Atoi(threads)
			if err != nil {
				return scheduler.Config{}, api.ErrPoolMisconfigured.
					WithContext("group", g.Name).
					Wrap(fmt.Errorf("groups[%d].threads: want a count or %q, got %q", i, ThreadsRemaining, g.Threads))
			}
			spec.Threads = n
		}
		out.Groups = append(out.Groups, spec)
	}
	return out, nil
}
