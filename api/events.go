// File: api/events.go
// Package api defines diagnostic event types for hioload-jobs.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package api

import "time"

// Event is a diagnostic notification surfaced to telemetry consumers.
type Event interface {
	Kind() string
}

const (
	KindStallDetected = "stall_detected"
	KindJobFailed     = "job_failed"
)

// StallDetected is emitted when a worker made no progress for longer than
// the configured threshold while work was visible to it.
type StallDetected struct {
	WorkerID int
	Group    string
	Duration time.Duration
	At       time.Time
}

func (StallDetected) Kind() string { return KindStallDetected }

// DurationMS returns the stall duration in milliseconds.
func (e StallDetected) DurationMS() int64 { return e.Duration.Milliseconds() }

// JobFailed is emitted when a payload returned an error or panicked.
type JobFailed struct {
	JobID    uint64
	Group    string
	WorkerID int
	Err      error
}

func (JobFailed) Kind() string { return KindJobFailed }

// EventEmitter accepts diagnostic events. Emit must not block.
type EventEmitter interface {
	Emit(ev Event)
}
