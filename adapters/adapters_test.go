package adapters_test

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/momentics/hioload-jobs/adapters"
	"github.com/momentics/hioload-jobs/api"
	"github.com/momentics/hioload-jobs/control"
)

func TestControlAdapter(t *testing.T) {
	m := control.NewManager()
	require.NoError(t, m.Load(nil, ""))
	ctrl := adapters.NewControlAdapter(m)

	cfg := ctrl.GetConfig()
	require.Contains(t, cfg, "worker_count")
	require.Equal(t, "info", cfg["log.level"])

	ctrl.SetMetric("pool.workers", 4)
	ctrl.RegisterDebugProbe("queue", func() any { return "empty" })
	stats := ctrl.Stats()
	require.Equal(t, 4, stats["pool.workers"])
	require.Equal(t, "empty", stats["debug.queue"])
	require.Contains(t, stats, "debug.platform.cpus")
	require.Contains(t, ctrl.Debug().DumpState(), "queue")

	require.Empty(t, adapters.NewControlAdapter(nil).GetConfig())
}

type countingObserver struct {
	submitted, finished, stalls atomic.Int32
}

func (c *countingObserver) JobSubmitted(string, api.Priority) { c.submitted.Add(1) }
func (c *countingObserver) JobFinished(string, api.State, time.Duration, bool) {
	c.finished.Add(1)
}
func (c *countingObserver) StallDetected(api.StallDetected) { c.stalls.Add(1) }

func TestMultiObserver(t *testing.T) {
	require.Equal(t, api.NopObserver{}, adapters.NewMultiObserver(nil))

	a := &countingObserver{}
	require.Same(t, a, adapters.NewMultiObserver(nil, a))

	b := &countingObserver{}
	obs := adapters.NewMultiObserver(a, b)
	obs.JobSubmitted("g", api.PriorityNormal)
	obs.JobFinished("g", api.StateCompleted, time.Millisecond, true)
	obs.StallDetected(api.StallDetected{})
	for _, c := range []*countingObserver{a, b} {
		require.Equal(t, int32(1), c.submitted.Load())
		require.Equal(t, int32(1), c.finished.Load())
		require.Equal(t, int32(1), c.stalls.Load())
	}
}
