// File: internal/scheduler/doc.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Package scheduler implements the hioload-jobs work-stealing thread pool.
//
// A Pool owns a fixed set of worker threads partitioned into named worker
// groups. Every worker keeps one job queue per group it belongs to, split
// into priority bands. The owner pushes and pops its own deque LIFO;
// cross-thread submissions land in a bounded MPMC inbox; idle workers steal
// FIFO from peers of the same group (and, when enabled, from non-exclusive
// foreign groups). A StallDetector observes worker heartbeats without
// touching scheduling state.
//
// The context handed to a job payload is bound to the worker executing it.
// Submit and Wait recognise it, also on goroutines the payload starts:
// submissions prefer the worker's own deque and Wait executes other queued
// jobs instead of blocking.
package scheduler
