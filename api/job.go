// File: api/job.go
// Package api defines the job contracts shared by the scheduler and its callers.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package api

import (
	"context"
	"fmt"
)

// JobFunc is the executable payload of a job. It is invoked exactly once.
// A non-nil error or a panic marks the job Failed. The context is cancelled
// when the pool shuts down immediately; long payloads should poll it.
// Submissions made with the context, or with one derived from it, prefer
// the executing worker's queue, and Wait through it runs queued jobs.
type JobFunc func(ctx context.Context) error

// Priority orders pending jobs inside one worker's queue.
type Priority int

const (
	PriorityLow Priority = iota
	PriorityNormal
	PriorityHigh
	PriorityCritical

	// NumPriorities is the number of distinct priority bands.
	NumPriorities = int(PriorityCritical) + 1
)

// Clamp maps any integer onto a valid band.
func (p Priority) Clamp() Priority {
	if p < PriorityLow {
		return PriorityLow
	}
	if p > PriorityCritical {
		return PriorityCritical
	}
	return p
}

func (p Priority) String() string {
	switch p.Clamp() {
	case PriorityLow:
		return "low"
	case PriorityHigh:
		return "high"
	case PriorityCritical:
		return "critical"
	default:
		return "normal"
	}
}

// Task is one entry of a batch submission.
type Task struct {
	Fn       JobFunc
	Priority Priority
}

// State is the lifecycle state of a job or batch.
type State int32

const (
	StatePending State = iota
	// StateStolen marks a job taken from a peer queue that has not started yet.
	StateStolen
	StateRunning
	StateCompleted
	StateFailed
	StateCancelled
)

// Terminal reports whether s is a final state.
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateFailed || s == StateCancelled
}

func (s State) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateStolen:
		return "stolen"
	case StateRunning:
		return "running"
	case StateCompleted:
		return "completed"
	case StateFailed:
		return "failed"
	case StateCancelled:
		return "cancelled"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// Handle is the completion token returned by a submission.
type Handle interface {
	// Done is closed once the job (or every job of a batch) is terminal.
	Done() <-chan struct{}
	// State returns the current state; terminal after Done is closed.
	State() State
	// Err is nil for Completed, wraps ErrJobFailed for Failed and
	// ErrCancelled for Cancelled.
	Err() error
}

// Result is the per-job outcome recorded by a batch.
type Result struct {
	JobID uint64
	State State
	Err   error
}
