// Package resource implements the shared A/B/C resource counters that every
// core and the coordinator contend for.
package resource

import (
	"fmt"
	"sync"

	"github.com/me/coresim/pkg/model"
)

// Pool guards three counters with one mutex. The lock is held only for a
// single check or mutation, never across a task's execution.
type Pool struct {
	mu       sync.Mutex
	capacity model.Resources
	free     model.Resources
}

// New creates a pool with the given capacities. Negative capacities panic;
// admission validates them first.
func New(capacity model.Resources) *Pool {
	if capacity.A < 0 || capacity.B < 0 || capacity.C < 0 {
		panic(fmt.Sprintf("resource: negative capacity %v", capacity))
	}
	return &Pool{capacity: capacity, free: capacity}
}

// TryAcquire takes one unit of both resources in p, or nothing at all.
func (pl *Pool) TryAcquire(p model.Pair) bool {
	pl.mu.Lock()
	defer pl.mu.Unlock()
	if pl.free.Get(p.First) == 0 || pl.free.Get(p.Second) == 0 {
		return false
	}
	pl.free = pl.free.Add(p.First, -1).Add(p.Second, -1)
	return true
}

// Release returns one unit of both resources in p.
// Releasing a pair that was never acquired panics.
func (pl *Pool) Release(p model.Pair) {
	pl.mu.Lock()
	defer pl.mu.Unlock()
	next := pl.free.Add(p.First, 1).Add(p.Second, 1)
	for _, r := range []model.Resource{p.First, p.Second} {
		if next.Get(r) > pl.capacity.Get(r) {
			panic(fmt.Sprintf("resource: release of %s above capacity %d", r, pl.capacity.Get(r)))
		}
	}
	pl.free = next
}

// Available reports whether p could be acquired right now without taking it.
func (pl *Pool) Available(p model.Pair) bool {
	pl.mu.Lock()
	defer pl.mu.Unlock()
	return pl.free.Get(p.First) > 0 && pl.free.Get(p.Second) > 0
}

// Snapshot returns the current free counts.
func (pl *Pool) Snapshot() model.Resources {
	pl.mu.Lock()
	defer pl.mu.Unlock()
	return pl.free
}

// Capacity returns the initial capacities.
func (pl *Pool) Capacity() model.Resources {
	return pl.capacity
}
