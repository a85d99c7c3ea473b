//go:build linux

// File: internal/concurrency/pin_linux.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Linux thread affinity through sched_setaffinity(2), no cgo required.
// CPU indices are positions inside the affinity mask the process started
// with, so pinning respects cpusets and taskset restrictions.

package concurrency

import (
	"fmt"
	"sync"

	"golang.org/x/sys/unix"
)

// maxCPUSetBits mirrors CPU_SETSIZE.
const maxCPUSetBits = 1024

var (
	allowedOnce sync.Once
	allowedCPUs []int
	allowedSet  unix.CPUSet
)

func loadAllowed() {
	if err := unix.SchedGetaffinity(0, &allowedSet); err != nil {
		return
	}
	for i := 0; i < maxCPUSetBits; i++ {
		if allowedSet.IsSet(i) {
			allowedCPUs = append(allowedCPUs, i)
		}
	}
}

func platformPin(cpuID int) error {
	allowedOnce.Do(loadAllowed)
	if len(allowedCPUs) == 0 {
		return ErrAffinityNotSupported
	}
	target := allowedCPUs[cpuID%len(allowedCPUs)]
	var set unix.CPUSet
	set.Zero()
	set.Set(target)
	// pid 0 targets the calling thread.
	if err := unix.SchedSetaffinity(0, &set); err != nil {
		return fmt.Errorf("pin: sched_setaffinity cpu %d: %w", target, err)
	}
	return nil
}

func platformUnpin() error {
	allowedOnce.Do(loadAllowed)
	if len(allowedCPUs) == 0 {
		return nil
	}
	set := allowedSet
	if err := unix.SchedSetaffinity(0, &set); err != nil {
		return fmt.Errorf("unpin: sched_setaffinity: %w", err)
	}
	return nil
}

// AllowedCPUs returns the CPUs the process may run on.
func AllowedCPUs() []int {
	allowedOnce.Do(loadAllowed)
	return append([]int(nil), allowedCPUs...)
}
