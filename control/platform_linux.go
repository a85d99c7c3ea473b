//go:build linux

// control/platform_linux.go
// Author: momentics <momentics@gmail.com>
//
// Linux platform probes.

package control

import (
	"runtime"

	"github.com/momentics/hioload-jobs/internal/concurrency"
)

// RegisterPlatformProbes adds CPU topology probes.
func RegisterPlatformProbes(dp *DebugProbes) {
	dp.RegisterProbe("platform.cpus", func() any {
		return concurrency.NumCPUs()
	})
	dp.RegisterProbe("platform.gomaxprocs", func() any {
		return runtime.GOMAXPROCS(0)
	})
	dp.RegisterProbe("platform.allowed_cpus", func() any {
		return concurrency.AllowedCPUs()
	})
}
