// Package adapters
// Author: momentics <momentics@gmail.com>
//
// Control adapter implementing api.Control over the control package.

package adapters

import (
	"github.com/momentics/hioload-jobs/api"
	"github.com/momentics/hioload-jobs/control"
)

// ConfigSource yields the effective configuration as flat keys.
type ConfigSource interface {
	Snapshot() map[string]any
}

// ControlAdapter combines configuration, metrics and debug probes.
type ControlAdapter struct {
	config  ConfigSource
	metrics *control.MetricsRegistry
	debug   *control.DebugProbes
}

var _ api.Control = (*ControlAdapter)(nil)

// NewControlAdapter wires a fresh metrics registry and probe set with
// platform probes registered. cfg may be nil.
func NewControlAdapter(cfg ConfigSource) *ControlAdapter {
	adapter := &ControlAdapter{
		config:  cfg,
		metrics: control.NewMetricsRegistry(),
		debug:   control.NewDebugProbes(),
	}
	control.RegisterPlatformProbes(adapter.debug)
	return adapter
}

func (c *ControlAdapter) GetConfig() map[string]any {
	if c.config == nil {
		return map[string]any{}
	}
	return c.config.Snapshot()
}

// Stats merges metrics with probe output under the "debug." prefix.
func (c *ControlAdapter) Stats() map[string]any {
	stats := c.metrics.GetSnapshot()
	debugStats := c.debug.DumpState()
	combined := make(map[string]any, len(stats)+len(debugStats))
	for k, v := range stats {
		combined[k] = v
	}
	for k, v := range debugStats {
		combined["debug."+k] = v
	}
	return combined
}

func (c *ControlAdapter) SetMetric(key string, value any) {
	c.metrics.Set(key, value)
}

func (c *ControlAdapter) RegisterDebugProbe(name string, fn func() any) {
	c.debug.RegisterProbe(name, fn)
}

// Metrics returns the underlying registry.
func (c *ControlAdapter) Metrics() *control.MetricsRegistry { return c.metrics }

// Debug returns the probe set.
func (c *ControlAdapter) Debug() api.Debug { return c.debug }
