//go:build !deadlockdebug

// File: internal/concurrency/mutex.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package concurrency

import "sync"

// Mutex and RWMutex are the lock types used by the slow paths of the
// scheduler. Building with -tags deadlockdebug swaps in go-deadlock.
type (
	Mutex   = sync.Mutex
	RWMutex = sync.RWMutex
)
