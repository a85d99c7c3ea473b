// File: api/debug.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package api

// Debug exposes named runtime probes of a job system.
type Debug interface {
	// DumpState evaluates every probe and returns the results by name.
	DumpState() map[string]any

	// RegisterProbe adds or replaces a probe.
	RegisterProbe(name string, fn func() any)
}
