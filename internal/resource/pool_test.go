package resource

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/me/coresim/pkg/model"
)

var pairX = model.KindX.Pair()

func TestPool_TryAcquireRelease(t *testing.T) {
	p := New(model.Resources{A: 1, B: 1, C: 1})

	require.True(t, p.TryAcquire(pairX))
	assert.Equal(t, model.Resources{A: 0, B: 0, C: 1}, p.Snapshot())

	// Z needs A which is now exhausted.
	assert.False(t, p.TryAcquire(model.KindZ.Pair()))
	assert.Equal(t, model.Resources{A: 0, B: 0, C: 1}, p.Snapshot(), "failed acquire must not mutate")

	p.Release(pairX)
	assert.Equal(t, p.Capacity(), p.Snapshot())
}

func TestPool_Available(t *testing.T) {
	p := New(model.Resources{A: 0, B: 1, C: 1})
	assert.False(t, p.Available(pairX))
	assert.True(t, p.Available(model.KindY.Pair()))
	assert.Equal(t, model.Resources{A: 0, B: 1, C: 1}, p.Snapshot())
}

func TestPool_ReleaseAboveCapacityPanics(t *testing.T) {
	p := New(model.Resources{A: 1, B: 1, C: 1})
	assert.Panics(t, func() { p.Release(pairX) })
}

func TestPool_NegativeCapacityPanics(t *testing.T) {
	assert.Panics(t, func() { New(model.Resources{A: -1}) })
}

func TestPool_ConcurrentNeverOversubscribes(t *testing.T) {
	p := New(model.Resources{A: 3, B: 2, C: 5})

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		granted int
		maxHeld int
	)
	for i := 0; i < 64; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				if !p.TryAcquire(pairX) {
					continue
				}
				mu.Lock()
				granted++
				if granted > maxHeld {
					maxHeld = granted
				}
				mu.Unlock()

				snap := p.Snapshot()
				if snap.A < 0 || snap.B < 0 {
					t.Errorf("negative counter observed: %v", snap)
				}

				mu.Lock()
				granted--
				mu.Unlock()
				p.Release(pairX)
			}
		}()
	}
	wg.Wait()

	assert.LessOrEqual(t, maxHeld, 2, "B capacity bounds concurrent X holders")
	assert.Equal(t, p.Capacity(), p.Snapshot())
}
