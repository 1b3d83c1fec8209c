package tick

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// ErrBroken is returned once a party has abandoned the barrier.
var ErrBroken = errors.New("tick: barrier broken")

// Barrier is a cyclic rendezvous for a fixed number of parties. The last
// party to arrive releases everyone and the barrier resets for the next
// generation.
//
// A party that gives up because its context ended breaks the barrier: every
// current and future waiter gets ErrBroken. Cancellation only happens at
// shutdown, so the barrier is never reused after that.
type Barrier struct {
	mu      sync.Mutex
	parties int
	arrived int
	release chan struct{}
	broken  chan struct{}
	once    sync.Once
}

// NewBarrier creates a barrier for n parties.
func NewBarrier(n int) *Barrier {
	if n <= 0 {
		panic(fmt.Sprintf("tick: barrier parties must be > 0, got %d", n))
	}
	return &Barrier{
		parties: n,
		release: make(chan struct{}),
		broken:  make(chan struct{}),
	}
}

// Parties returns the number of parties the barrier waits for.
func (b *Barrier) Parties() int {
	return b.parties
}

// Wait blocks until all parties have called Wait for the current generation.
func (b *Barrier) Wait(ctx context.Context) error {
	b.mu.Lock()
	select {
	case <-b.broken:
		b.mu.Unlock()
		return ErrBroken
	default:
	}
	b.arrived++
	if b.arrived == b.parties {
		close(b.release)
		b.release = make(chan struct{})
		b.arrived = 0
		b.mu.Unlock()
		return nil
	}
	release := b.release
	b.mu.Unlock()

	select {
	case <-release:
		return nil
	case <-b.broken:
		return ErrBroken
	case <-ctx.Done():
		b.once.Do(func() { close(b.broken) })
		return ctx.Err()
	}
}
