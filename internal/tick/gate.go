// Package tick provides the two synchronization points of the lockstep
// clock: a per-core wake gate and the tick-boundary barrier.
package tick

import (
	"context"

	"github.com/me/coresim/pkg/model"
)

// Signal is what the coordinator hands a core when it starts a tick.
type Signal struct {
	Tick int
	// Level is the MLQ branch every core takes this tick. Other policies ignore it.
	Level model.Kind
}

// Gate is a single-slot wake signal. Notify fills the slot if it is empty;
// Wait blocks until the slot is full and empties it.
type Gate[T any] struct {
	ch chan T
}

// NewGate creates an empty gate.
func NewGate[T any]() *Gate[T] {
	return &Gate[T]{ch: make(chan T, 1)}
}

// Notify sets the gate. It never blocks; a value sent while the gate is
// already set is dropped. Returns whether v was stored.
func (g *Gate[T]) Notify(v T) bool {
	select {
	case g.ch <- v:
		return true
	default:
		return false
	}
}

// Wait blocks until the gate is set or ctx is done.
func (g *Gate[T]) Wait(ctx context.Context) (T, error) {
	select {
	case v := <-g.ch:
		return v, nil
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}
