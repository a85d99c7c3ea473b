// Package api
// Author: momentics
//
// Observer contract for execution telemetry.

package api

import "time"

// Observer receives scheduler telemetry. Implementations are called from
// worker threads and must be cheap and non-blocking.
type Observer interface {
	// JobSubmitted is called once per accepted job.
	JobSubmitted(group string, priority Priority)
	// JobFinished is called once per job that reached a terminal state.
	JobFinished(group string, state State, elapsed time.Duration, stolen bool)
	// StallDetected is called for every stall reported by the detector.
	StallDetected(ev StallDetected)
}

// NopObserver discards all telemetry.
type NopObserver struct{}

func (NopObserver) JobSubmitted(string, Priority)                   {}
func (NopObserver) JobFinished(string, State, time.Duration, bool) {}
func (NopObserver) StallDetected(StallDetected)                    {}
