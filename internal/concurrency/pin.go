// File: internal/concurrency/pin.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// OS thread binding for worker goroutines. Platform files provide
// platformPin / platformUnpin.

package concurrency

import (
	"fmt"
	"runtime"
)

// LockWorkerThread binds the calling goroutine to its own OS thread for the
// rest of its life. Worker loops call it first so every worker is a real
// OS thread, as the scheduler promises.
func LockWorkerThread() {
	runtime.LockOSThread()
}

// PinCurrentThread binds the calling goroutine to an OS thread and restricts
// that thread to the cpuID-th usable CPU, wrapping around.
func PinCurrentThread(cpuID int) error {
	runtime.LockOSThread()
	if cpuID < 0 {
		return fmt.Errorf("pin: %w: cpu %d", ErrInvalidCPU, cpuID)
	}
	return platformPin(cpuID)
}

// UnpinCurrentThread clears the CPU restriction of the calling thread.
func UnpinCurrentThread() error {
	return platformUnpin()
}

// NumCPUs returns the number of logical CPUs.
func NumCPUs() int {
	return runtime.NumCPU()
}
