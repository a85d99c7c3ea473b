//go:build !linux

// File: internal/concurrency/pin_other.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Fallback for platforms without thread affinity support.

package concurrency

func platformPin(cpuID int) error { return ErrAffinityNotSupported }
func platformUnpin() error        { return nil }

// AllowedCPUs is unknown on this platform.
func AllowedCPUs() []int { return nil }
