// File: internal/concurrency/doc.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Lock-free building blocks for the hioload-jobs scheduler: a fixed-capacity
// work-stealing deque, a bounded MPMC inbox ring, an unbounded spill queue,
// and OS thread pinning for worker loops.
//
// All ring structures are power-of-two sized with cache-line padded indices.
package concurrency
