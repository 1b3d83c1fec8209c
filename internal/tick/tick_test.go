package tick

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGate_SingleSlot(t *testing.T) {
	g := NewGate[int]()
	assert.True(t, g.Notify(1))
	assert.False(t, g.Notify(2), "second notify while set is dropped")

	v, err := g.Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, v)

	assert.True(t, g.Notify(3), "gate is empty again after Wait")
}

func TestGate_WaitBlocksUntilNotify(t *testing.T) {
	g := NewGate[Signal]()
	got := make(chan Signal, 1)
	go func() {
		s, err := g.Wait(context.Background())
		if err == nil {
			got <- s
		}
	}()

	select {
	case <-got:
		t.Fatal("Wait returned before Notify")
	case <-time.After(20 * time.Millisecond):
	}

	g.Notify(Signal{Tick: 7})
	select {
	case s := <-got:
		assert.Equal(t, 7, s.Tick)
	case <-time.After(time.Second):
		t.Fatal("Wait did not return after Notify")
	}
}

func TestGate_WaitCancelled(t *testing.T) {
	g := NewGate[int]()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := g.Wait(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestBarrier_ReleasesAllPartiesEachGeneration(t *testing.T) {
	const parties = 5
	const rounds = 50
	b := NewBarrier(parties)

	var (
		wg      sync.WaitGroup
		arrived [rounds]int32
	)
	for p := 0; p < parties; p++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for r := 0; r < rounds; r++ {
				atomic.AddInt32(&arrived[r], 1)
				if err := b.Wait(context.Background()); err != nil {
					t.Errorf("round %d: %v", r, err)
					return
				}
				if n := atomic.LoadInt32(&arrived[r]); n != parties {
					t.Errorf("round %d released with %d/%d parties", r, n, parties)
				}
			}
		}()
	}
	wg.Wait()
}

func TestBarrier_CancelBreaksBarrier(t *testing.T) {
	b := NewBarrier(3)
	ctx, cancel := context.WithCancel(context.Background())

	errs := make(chan error, 2)
	go func() { errs <- b.Wait(ctx) }()
	go func() { errs <- b.Wait(context.Background()) }()

	time.Sleep(20 * time.Millisecond)
	cancel()

	var sawCancel, sawBroken bool
	for i := 0; i < 2; i++ {
		select {
		case err := <-errs:
			switch {
			case errors.Is(err, context.Canceled):
				sawCancel = true
			case errors.Is(err, ErrBroken):
				sawBroken = true
			default:
				t.Fatalf("unexpected error %v", err)
			}
		case <-time.After(time.Second):
			t.Fatal("waiter not released after cancel")
		}
	}
	assert.True(t, sawCancel)
	assert.True(t, sawBroken)
	assert.ErrorIs(t, b.Wait(context.Background()), ErrBroken)
}

func TestNewBarrier_ZeroPanics(t *testing.T) {
	assert.Panics(t, func() { NewBarrier(0) })
}
