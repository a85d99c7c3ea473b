// File: adapters/observer_adapter.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package adapters

import (
	"time"

	"github.com/momentics/hioload-jobs/api"
)

// MultiObserver fans telemetry out to several observers in order.
type MultiObserver []api.Observer

var _ api.Observer = MultiObserver(nil)

// NewMultiObserver drops nil entries and unwraps a single observer.
func NewMultiObserver(obs ...api.Observer) api.Observer {
	out := make(MultiObserver, 0, len(obs))
	for _, o := range obs {
		if o != nil {
			out = append(out, o)
		}
	}
	switch len(out) {
	case 0:
		return api.NopObserver{}
	case 1:
		return out[0]
	}
	return out
}

func (m MultiObserver) JobSubmitted(group string, priority api.Priority) {
	for _, o := range m {
		o.JobSubmitted(group, priority)
	}
}

func (m MultiObserver) JobFinished(group string, state api.State, elapsed time.Duration, stolen bool) {
	for _, o := range m {
		o.JobFinished(group, state, elapsed, stolen)
	}
}

func (m MultiObserver) StallDetected(ev api.StallDetected) {
	for _, o := range m {
		o.StallDetected(ev)
	}
}
