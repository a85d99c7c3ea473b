// File: internal/scheduler/stats.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package scheduler

import "time"

// Stats is a point-in-time snapshot of pool counters. Counters are read
// individually and may be mutually inconsistent by a few jobs.
type Stats struct {
	PoolID      string
	State       string
	Submitted   uint64
	Completed   uint64
	Failed      uint64
	Cancelled   uint64
	Stolen      uint64
	Outstanding int64
	Queued      int
	Groups      []GroupStats
	Workers     []WorkerStats
}

// GroupStats describes one worker group.
type GroupStats struct {
	Name      string
	Members   []int
	Exclusive bool
	Queued    int
}

// WorkerStats describes one worker thread.
type WorkerStats struct {
	ID           int
	Groups       []string
	Queued       int
	Executed     uint64
	Stolen       uint64
	Idle         bool
	LastProgress time.Time
}

// Stats returns a snapshot of pool counters.
func (p *Pool) Stats() Stats {
	s := Stats{
		PoolID:      p.id,
		State:       stateName(p.state.Load()),
		Submitted:   p.submitted.Load(),
		Completed:   p.completed.Load(),
		Failed:      p.failed.Load(),
		Cancelled:   p.cancelled.Load(),
		Stolen:      p.stolen.Load(),
		Outstanding: p.outstanding.Load(),
		Groups:      make([]GroupStats, 0, len(p.groups.groups)),
		Workers:     make([]WorkerStats, 0, len(p.workers)),
	}
	for _, g := range p.groups.groups {
		gs := GroupStats{
			Name:      g.name,
			Members:   append([]int(nil), g.members...),
			Exclusive: g.exclusive,
		}
		for _, q := range g.queues {
			gs.Queued += q.len()
		}
		s.Groups = append(s.Groups, gs)
	}
	for _, w := range p.workers {
		ws := WorkerStats{
			ID:           w.id,
			Groups:       w.groupNames(),
			Queued:       w.depth(),
			Executed:     w.executed.Load(),
			Stolen:       w.stolen.Load(),
			Idle:         w.idle.Load(),
			LastProgress: time.Unix(0, w.lastProgress.Load()),
		}
		s.Queued += ws.Queued
		s.Workers = append(s.Workers, ws)
	}
	return s
}

func stateName(s int32) string {
	switch s {
	case stateRunning:
		return "running"
	case stateDraining:
		return "draining"
	case stateStopping:
		return "stopping"
	default:
		return "stopped"
	}
}
