//go:build deadlockdebug

// File: internal/concurrency/mutex_deadlock.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Lock-order and hold-time checking for debug builds.

package concurrency

import (
	"time"

	"github.com/rs/zerolog/log"
	"github.com/sasha-s/go-deadlock"
)

type (
	Mutex   = deadlock.Mutex
	RWMutex = deadlock.RWMutex
)

func init() {
	deadlock.Opts.DeadlockTimeout = 2 * time.Second
	deadlock.Opts.OnPotentialDeadlock = func() {
		log.Error().Str("component", "concurrency").Msg("potential deadlock detected")
	}
}
