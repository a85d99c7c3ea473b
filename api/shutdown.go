// File: api/shutdown.go
// Package api defines unified graceful shutdown contract.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package api

import "context"

// ShutdownMode selects how pending work is treated on shutdown.
type ShutdownMode int

const (
	// ShutdownGraceful drains every accepted job before stopping workers.
	ShutdownGraceful ShutdownMode = iota
	// ShutdownImmediate lets in-flight jobs finish and cancels the rest.
	ShutdownImmediate
)

func (m ShutdownMode) String() string {
	if m == ShutdownImmediate {
		return "immediate"
	}
	return "graceful"
}

// GracefulShutdown is implemented by components with an explicit stop.
type GracefulShutdown interface {
	// Shutdown stops the component. It returns ErrPoolClosed when called twice.
	Shutdown(ctx context.Context, mode ShutdownMode) error
}
