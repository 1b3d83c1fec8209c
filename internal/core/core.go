// Package core implements a simulated CPU core: a persistent goroutine that
// wakes once per tick, advances at most one task by one unit under the run's
// scheduling policy, reports its status and joins the tick barrier.
package core

import (
	"context"
	"errors"
	"log/slog"

	"github.com/me/coresim/internal/config"
	"github.com/me/coresim/internal/queue"
	"github.com/me/coresim/internal/resource"
	"github.com/me/coresim/internal/tick"
	"github.com/me/coresim/pkg/model"
)

// Shared is the state every core of a run contends for.
type Shared struct {
	Policy  model.Policy
	Hold    config.HoldPolicy
	Pool    *resource.Pool
	Ready   *queue.Ready
	Waiting *queue.Queue
}

// Core is one simulated CPU core.
type Core struct {
	id      int
	shared  *Shared
	gate    *tick.Gate[tick.Signal]
	barrier *tick.Barrier
	reports chan<- model.CoreReport
	logger  *slog.Logger

	inHand *model.Task
	idle   int
}

// New creates a core. reports must be buffered for at least one report per
// core so a core never blocks between reporting and the barrier.
func New(id int, shared *Shared, barrier *tick.Barrier, reports chan<- model.CoreReport, logger *slog.Logger) *Core {
	return &Core{
		id:      id,
		shared:  shared,
		gate:    tick.NewGate[tick.Signal](),
		barrier: barrier,
		reports: reports,
		logger:  logger.With("component", "core", "core", id),
	}
}

// ID returns the core number.
func (c *Core) ID() int { return c.id }

// Gate returns the signal the coordinator uses to start this core's tick.
func (c *Core) Gate() *tick.Gate[tick.Signal] { return c.gate }

// InHand returns the task this core holds across ticks, if any. Only safe to
// call while the core is parked (between ticks).
func (c *Core) InHand() *model.Task { return c.inHand }

// IdleCount returns how many ticks this core has reported idle.
func (c *Core) IdleCount() int { return c.idle }

// Run loops until ctx is cancelled: wait for wake, step, report, rendezvous.
// Cancellation is a normal stop and returns nil.
func (c *Core) Run(ctx context.Context) error {
	c.logger.Debug("core started", "policy", c.shared.Policy)
	for {
		sig, err := c.gate.Wait(ctx)
		if err != nil {
			return c.stopped(err)
		}

		rep := c.Step(sig)

		select {
		case c.reports <- rep:
		case <-ctx.Done():
			return c.stopped(ctx.Err())
		}

		if err := c.barrier.Wait(ctx); err != nil {
			return c.stopped(err)
		}
	}
}

func (c *Core) stopped(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, tick.ErrBroken) {
		c.logger.Debug("core stopped", "idle_count", c.idle)
		return nil
	}
	return err
}

// Step performs this core's unit of work for one tick and returns its report.
func (c *Core) Step(sig tick.Signal) model.CoreReport {
	var rep model.CoreReport
	ready := c.shared.Ready
	switch c.shared.Policy {
	case model.PolicyFCFS, model.PolicySJF:
		rep = c.runToCompletion(sig.Tick, ready.Level(model.KindX))
	case model.PolicyRR:
		rep = c.runQuantum(sig.Tick, ready.Level(model.KindX))
	case model.PolicyMLQ:
		switch sig.Level {
		case model.KindZ, model.KindY:
			c.preempt()
			rep = c.runQuantum(sig.Tick, ready.Level(sig.Level))
		default:
			rep = c.runToCompletion(sig.Tick, ready.Level(model.KindX))
		}
		rep.Level = sig.Level
	default:
		panic("core: unknown policy " + string(c.shared.Policy))
	}
	rep.Core = c.id
	rep.Tick = sig.Tick
	return rep
}
