// File: internal/scheduler/group.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Static worker group allocation and lookup.

package scheduler

import (
	"fmt"
	"sync/atomic"

	"github.com/momentics/hioload-jobs/api"
)

// GroupSpec describes one worker group. Exactly one of Threads, Remaining
// or Workers selects the members.
type GroupSpec struct {
	Name string
	// Threads takes the next N workers not claimed by an explicit list.
	Threads int
	// Remaining takes every worker not claimed by an earlier rule.
	Remaining bool
	// Workers names member ids explicitly; lists may overlap other groups.
	Workers []int
	// Exclusive keeps foreign workers from stealing this group's jobs and
	// keeps members from stealing foreign jobs.
	Exclusive bool
}

type group struct {
	idx       int
	name      string
	members   []int
	memberSet []bool
	exclusive bool
	queues    []*jobQueue   // one per member, in member order
	next      atomic.Uint64 // round-robin tie breaker
}

func (g *group) has(workerID int) bool {
	return workerID >= 0 && workerID < len(g.memberSet) && g.memberSet[workerID]
}

type groupTable struct {
	groups []*group
	byName map[string]*group
}

func (t *groupTable) lookup(name string) (*group, error) {
	g, ok := t.byName[name]
	if !ok {
		return nil, api.ErrInvalidGroup.WithContext("group", name)
	}
	if len(g.members) == 0 {
		return nil, api.ErrInvalidGroup.WithContext("group", name).Wrap(fmt.Errorf("group has no members"))
	}
	return g, nil
}

// buildGroups allocates workers to groups: explicit lists first, then
// counted groups in declaration order, then the remaining group.
func buildGroups(workerCount int, specs []GroupSpec) (*groupTable, error) {
	if len(specs) == 0 {
		specs = []GroupSpec{{Name: DefaultGroup, Remaining: true}}
	}

	t := &groupTable{byName: make(map[string]*group, len(specs))}
	remaining := 0
	for i, s := range specs {
		if s.Name == "" {
			return nil, misconfigured("group #%d has no name", i)
		}
		if _, dup := t.byName[s.Name]; dup {
			return nil, misconfigured("group %q declared twice", s.Name)
		}
		rules := 0
		if s.Threads != 0 {
			rules++
		}
		if s.Remaining {
			rules++
			remaining++
		}
		if len(s.Workers) > 0 {
			rules++
		}
		if rules > 1 {
			return nil, misconfigured("group %q must use one of threads, remaining or workers", s.Name)
		}
		if s.Threads < 0 {
			return nil, misconfigured("group %q requests %d threads", s.Name, s.Threads)
		}
		g := &group{idx: i, name: s.Name, exclusive: s.Exclusive, memberSet: make([]bool, workerCount)}
		t.groups = append(t.groups, g)
		t.byName[s.Name] = g
	}
	if remaining > 1 {
		return nil, misconfigured("only one group may take the remaining threads, got %d", remaining)
	}

	claimed := make([]bool, workerCount)
	for i, s := range specs {
		g := t.groups[i]
		for _, id := range s.Workers {
			if id < 0 || id >= workerCount {
				return nil, misconfigured("group %q lists worker %d, pool has %d workers", s.Name, id, workerCount)
			}
			g.add(id)
			claimed[id] = true
		}
	}

	next := 0
	for i, s := range specs {
		if s.Threads == 0 {
			continue
		}
		g := t.groups[i]
		for n := 0; n < s.Threads; n++ {
			for next < workerCount && claimed[next] {
				next++
			}
			if next >= workerCount {
				return nil, misconfigured("group %q requests %d threads, only %d unassigned", s.Name, s.Threads, n)
			}
			g.add(next)
			claimed[next] = true
		}
	}

	for i, s := range specs {
		if !s.Remaining {
			continue
		}
		g := t.groups[i]
		for id := 0; id < workerCount; id++ {
			if !claimed[id] {
				g.add(id)
				claimed[id] = true
			}
		}
	}

	for _, g := range t.groups {
		if len(g.members) == 0 {
			return nil, misconfigured("group %q resolves to zero threads", g.name)
		}
	}
	for id, ok := range claimed {
		if !ok {
			return nil, misconfigured("worker %d belongs to no group", id)
		}
	}
	return t, nil
}

func (g *group) add(id int) {
	if g.memberSet[id] {
		return
	}
	g.memberSet[id] = true
	g.members = append(g.members, id)
}
