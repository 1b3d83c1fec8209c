package core

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/me/coresim/internal/config"
	"github.com/me/coresim/internal/queue"
	"github.com/me/coresim/internal/resource"
	"github.com/me/coresim/internal/tick"
	"github.com/me/coresim/pkg/model"
)

var ample = model.Resources{A: 4, B: 4, C: 4}

func newShared(p model.Policy, res model.Resources) *Shared {
	return &Shared{
		Policy:  p,
		Hold:    config.HoldTick,
		Pool:    resource.New(res),
		Ready:   queue.NewReady(p),
		Waiting: queue.ForPolicy(p),
	}
}

func newCore(id int, sh *Shared) *Core {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(id, sh, tick.NewBarrier(1), make(chan model.CoreReport, 1), logger)
}

func sig(n int) tick.Signal { return tick.Signal{Tick: n, Level: model.KindX} }

func TestFCFS_RunsToCompletionHoldingResources(t *testing.T) {
	sh := newShared(model.PolicyFCFS, model.Resources{A: 1, B: 1, C: 1})
	sh.Ready.Route(model.NewTask(1, "p1", model.KindX, 3))
	c := newCore(0, sh)

	for n := 1; n <= 3; n++ {
		rep := c.Step(sig(n))
		require.Equal(t, model.CoreProcessing, rep.State, "tick %d", n)
		assert.Equal(t, n, rep.Task.Executed)
		if n < 3 {
			assert.NotNil(t, c.InHand())
			assert.Equal(t, model.Resources{A: 0, B: 0, C: 1}, sh.Pool.Snapshot())
			assert.False(t, rep.Completed)
		} else {
			assert.True(t, rep.Completed)
		}
	}
	assert.Nil(t, c.InHand())
	assert.Equal(t, sh.Pool.Capacity(), sh.Pool.Snapshot())

	rep := c.Step(sig(4))
	assert.Equal(t, model.CoreIdle, rep.State)
	assert.Equal(t, 1, rep.IdleCount)
}

func TestFCFS_BlockedTaskGoesToWaitingAndCoreIdles(t *testing.T) {
	sh := newShared(model.PolicyFCFS, model.Resources{A: 0, B: 1, C: 1})
	sh.Ready.Route(model.NewTask(1, "p1", model.KindX, 1))
	sh.Ready.Route(model.NewTask(2, "p2", model.KindY, 1))
	c := newCore(0, sh)

	rep := c.Step(sig(1))
	assert.Equal(t, model.CoreIdle, rep.State, "FCFS does not try the next task")
	assert.Equal(t, 1, sh.Waiting.Len())
	assert.Equal(t, 1, sh.Ready.Len())
	assert.Equal(t, sh.Pool.Capacity(), sh.Pool.Snapshot())

	rep = c.Step(sig(2))
	require.Equal(t, model.CoreProcessing, rep.State)
	assert.Equal(t, "p2", rep.Task.Name)
}

func TestSJF_PicksShortestFirst(t *testing.T) {
	sh := newShared(model.PolicySJF, ample)
	sh.Ready.Route(model.NewTask(1, "long", model.KindX, 5))
	sh.Ready.Route(model.NewTask(2, "short", model.KindX, 1))
	c := newCore(0, sh)

	rep := c.Step(sig(1))
	require.Equal(t, model.CoreProcessing, rep.State)
	assert.Equal(t, "short", rep.Task.Name)
	assert.True(t, rep.Completed)
}

func TestRR_RotatesAndReleasesEveryTick(t *testing.T) {
	sh := newShared(model.PolicyRR, model.Resources{A: 1, B: 1, C: 1})
	sh.Ready.Route(model.NewTask(1, "a", model.KindX, 2))
	sh.Ready.Route(model.NewTask(2, "b", model.KindY, 2))
	c := newCore(0, sh)

	var order []string
	for n := 1; n <= 4; n++ {
		rep := c.Step(sig(n))
		require.Equal(t, model.CoreProcessing, rep.State)
		order = append(order, rep.Task.Name)
		assert.Equal(t, sh.Pool.Capacity(), sh.Pool.Snapshot(), "tick hold releases after each unit")
		assert.Nil(t, c.InHand())
	}
	assert.Equal(t, []string{"a", "b", "a", "b"}, order)
	assert.Equal(t, 0, sh.Ready.Len())
}

func TestRR_SkipsBlockedTasks(t *testing.T) {
	sh := newShared(model.PolicyRR, model.Resources{A: 0, B: 1, C: 1})
	sh.Ready.Route(model.NewTask(1, "x1", model.KindX, 1))
	sh.Ready.Route(model.NewTask(2, "z1", model.KindZ, 1))
	sh.Ready.Route(model.NewTask(3, "y1", model.KindY, 1))
	c := newCore(0, sh)

	rep := c.Step(sig(1))
	require.Equal(t, model.CoreProcessing, rep.State)
	assert.Equal(t, "y1", rep.Task.Name)
	assert.Equal(t, 2, sh.Waiting.Len())
}

func TestRR_TaskRunsAtMostOncePerTick(t *testing.T) {
	sh := newShared(model.PolicyRR, ample)
	sh.Ready.Route(model.NewTask(1, "only", model.KindX, 5))
	c0, c1 := newCore(0, sh), newCore(1, sh)

	r0 := c0.Step(sig(1))
	r1 := c1.Step(sig(1))
	assert.Equal(t, model.CoreProcessing, r0.State)
	assert.Equal(t, model.CoreIdle, r1.State)
	assert.Equal(t, 1, sh.Ready.Len(), "task returned to the queue")

	r1 = c1.Step(sig(2))
	require.Equal(t, model.CoreProcessing, r1.State)
	assert.Equal(t, 2, r1.Task.Executed)
}

func TestRR_LifetimeHoldKeepsPairUntilDone(t *testing.T) {
	sh := newShared(model.PolicyRR, model.Resources{A: 1, B: 1, C: 1})
	sh.Hold = config.HoldLifetime
	sh.Ready.Route(model.NewTask(1, "x", model.KindX, 2))
	sh.Ready.Route(model.NewTask(2, "z", model.KindZ, 1))
	c := newCore(0, sh)

	rep := c.Step(sig(1))
	require.Equal(t, "x", rep.Task.Name)
	assert.Equal(t, model.Resources{A: 0, B: 0, C: 1}, sh.Pool.Snapshot())

	// z needs A, still held by the unfinished x.
	rep = c.Step(sig(2))
	require.Equal(t, model.CoreProcessing, rep.State)
	assert.Equal(t, "x", rep.Task.Name)
	assert.True(t, rep.Completed)
	assert.Equal(t, 1, sh.Waiting.Len())
	assert.Equal(t, sh.Pool.Capacity(), sh.Pool.Snapshot())
}

func TestMLQ_HigherLevelPreemptsInHandX(t *testing.T) {
	sh := newShared(model.PolicyMLQ, model.Resources{A: 1, B: 1, C: 1})
	x := model.NewTask(1, "x", model.KindX, 5)
	sh.Ready.Route(x)
	c := newCore(0, sh)

	rep := c.Step(tick.Signal{Tick: 1, Level: model.KindX})
	require.Equal(t, "x", rep.Task.Name)
	require.Same(t, x, c.InHand())

	sh.Ready.Route(model.NewTask(2, "z", model.KindZ, 2))
	rep = c.Step(tick.Signal{Tick: 2, Level: model.KindZ})
	require.Equal(t, model.CoreProcessing, rep.State)
	assert.Equal(t, "z", rep.Task.Name)
	assert.Equal(t, model.KindZ, rep.Level)
	assert.Nil(t, c.InHand())

	front := sh.Ready.Level(model.KindX).Snapshot()
	require.Len(t, front, 1)
	assert.Equal(t, 1, front[0].Executed, "progress preserved across preemption")
	assert.False(t, x.Holding)
	assert.Equal(t, sh.Pool.Capacity(), sh.Pool.Snapshot())

	rep = c.Step(tick.Signal{Tick: 3, Level: model.KindZ})
	require.True(t, rep.Completed)

	rep = c.Step(tick.Signal{Tick: 4, Level: model.KindX})
	require.Equal(t, "x", rep.Task.Name)
	assert.Equal(t, 2, rep.Task.Executed)
}

func TestMLQ_YLevelIgnoresX(t *testing.T) {
	sh := newShared(model.PolicyMLQ, ample)
	sh.Ready.Route(model.NewTask(1, "x", model.KindX, 1))
	sh.Ready.Route(model.NewTask(2, "y", model.KindY, 1))
	c0, c1 := newCore(0, sh), newCore(1, sh)

	r0 := c0.Step(tick.Signal{Tick: 1, Level: model.KindY})
	r1 := c1.Step(tick.Signal{Tick: 1, Level: model.KindY})
	assert.Equal(t, "y", r0.Task.Name)
	assert.Equal(t, model.CoreIdle, r1.State, "no X task runs while Y was non-empty")
	assert.Equal(t, 1, sh.Ready.Level(model.KindX).Len())
}

func TestCore_RunLoop(t *testing.T) {
	sh := newShared(model.PolicyFCFS, ample)
	sh.Ready.Route(model.NewTask(1, "p1", model.KindX, 2))

	barrier := tick.NewBarrier(2)
	reports := make(chan model.CoreReport, 1)
	c := New(0, sh, barrier, reports, slog.New(slog.NewTextHandler(io.Discard, nil)))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx) }()

	for n := 1; n <= 3; n++ {
		require.True(t, c.Gate().Notify(tick.Signal{Tick: n}))
		require.NoError(t, barrier.Wait(context.Background()))
		rep := <-reports
		assert.Equal(t, n, rep.Tick)
		if n <= 2 {
			assert.Equal(t, model.CoreProcessing, rep.State)
		} else {
			assert.Equal(t, model.CoreIdle, rep.State)
		}
	}

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("core did not stop on cancel")
	}
}
