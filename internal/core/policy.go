package core

import (
	"fmt"

	"github.com/me/coresim/internal/config"
	"github.com/me/coresim/internal/queue"
	"github.com/me/coresim/pkg/model"
)

// Every policy follows the same template:
// select -> acquire or defer -> execute one unit -> requeue or release.
// The variants differ only in how a task is selected, whether it stays in
// hand between ticks, and where an unfinished task goes afterwards.

// runToCompletion is FCFS (and SJF, whose queues are ordered on insertion):
// a task stays in hand, holding its pair, until it finishes.
func (c *Core) runToCompletion(tick int, q *queue.Queue) model.CoreReport {
	if c.inHand == nil {
		if t, ok := q.Pop(); ok {
			if c.acquire(t) {
				c.inHand = t
			} else {
				c.deferTask(t, tick)
			}
		}
	}
	if c.inHand == nil {
		return c.idleReport()
	}

	t := c.inHand
	rep := c.execute(t, tick)
	if t.Done() {
		c.release(t)
		c.inHand = nil
		rep.Completed = true
	}
	return rep
}

// runQuantum is one round-robin unit: pop until a runnable task turns up,
// run it once and put it back at the tail if unfinished.
func (c *Core) runQuantum(tick int, q *queue.Queue) model.CoreReport {
	for {
		t, ok := q.Pop()
		if !ok {
			return c.idleReport()
		}
		// Requeued tasks sit behind every task not yet run this tick, so
		// meeting one means nothing runnable is left.
		if t.LastRun == tick {
			q.PushFront(t)
			return c.idleReport()
		}
		if !c.acquire(t) {
			c.deferTask(t, tick)
			continue
		}

		rep := c.execute(t, tick)
		if t.Done() {
			c.release(t)
			rep.Completed = true
			return rep
		}
		if c.shared.Hold == config.HoldTick {
			c.release(t)
		}
		q.Push(t)
		return rep
	}
}

// preempt returns a run-to-completion task to the front of the X queue with
// its progress intact. Its pair is released; it reacquires when picked again.
func (c *Core) preempt() {
	t := c.inHand
	if t == nil {
		return
	}
	c.inHand = nil
	c.release(t)
	c.shared.Ready.Level(t.Kind).PushFront(t)
	c.logger.Debug("task preempted", "task", t.Name, "executed", t.Executed, "total", t.Total)
}

func (c *Core) acquire(t *model.Task) bool {
	if t.Holding {
		return true
	}
	if !c.shared.Pool.TryAcquire(t.Pair()) {
		return false
	}
	t.Holding = true
	return true
}

func (c *Core) release(t *model.Task) {
	if !t.Holding {
		panic(fmt.Sprintf("core %d: release of %s which holds no resources", c.id, t.Name))
	}
	c.shared.Pool.Release(t.Pair())
	t.Holding = false
}

// deferTask parks a resource-blocked task on the waiting queue.
func (c *Core) deferTask(t *model.Task, tick int) {
	c.shared.Waiting.Push(t)
	c.logger.Debug("task blocked on resources", "tick", tick, "task", t.Name, "pair", t.Pair().String())
}

func (c *Core) execute(t *model.Task, tick int) model.CoreReport {
	t.Advance(tick)
	v := t.Snapshot()
	return model.CoreReport{State: model.CoreProcessing, Task: &v, IdleCount: c.idle}
}

func (c *Core) idleReport() model.CoreReport {
	c.idle++
	return model.CoreReport{State: model.CoreIdle, IdleCount: c.idle}
}
