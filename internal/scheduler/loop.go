package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/me/coresim/internal/tick"
	"github.com/me/coresim/pkg/model"
)

// Run starts the cores, drives the clock until the run ends and stops the
// cores again. Livelock and max_ticks are outcomes, not errors; cancellation
// of ctx returns the partial result together with ctx.Err().
func (s *Simulation) Run(ctx context.Context) (*model.Result, error) {
	if s.ran {
		return nil, errors.New("scheduler: simulation already ran")
	}
	s.ran = true

	start := time.Now()
	s.logger.Info("simulation started", "cores", len(s.cores), "tasks", len(s.tasks),
		"resources", s.shared.Pool.Capacity().String(), "hold", s.config.Hold)

	coreCtx, stopCores := context.WithCancel(ctx)
	g, gctx := errgroup.WithContext(coreCtx)
	for _, c := range s.cores {
		g.Go(func() error { return c.Run(gctx) })
	}

	initial := s.snapshot(0, nil, nil)
	for _, o := range s.observers {
		o.Start(s.policy, initial)
	}

	res, loopErr := s.loop(gctx)

	stopCores()
	if err := g.Wait(); err != nil && loopErr == nil {
		loopErr = fmt.Errorf("core worker: %w", err)
	}
	if loopErr != nil && ctx.Err() != nil {
		res.Outcome = model.OutcomeCancelled
		loopErr = ctx.Err()
	}

	for _, o := range s.observers {
		o.Finish(*res)
	}

	switch res.Outcome {
	case model.OutcomeLivelock:
		s.logger.Warn("simulation livelocked", "tick", res.Ticks, "stuck", len(res.Stuck))
	default:
		s.logger.Info("simulation finished", "outcome", res.Outcome, "ticks", res.Ticks,
			"completed", len(res.Completed), "duration", time.Since(start))
	}
	return res, loopErr
}

// loop is the coordinator. Each iteration is one tick:
// wake -> rendezvous -> drain reports -> reconcile -> evaluate.
func (s *Simulation) loop(ctx context.Context) (*model.Result, error) {
	stall := 0
	for n := 1; ; n++ {
		sig := tick.Signal{Tick: n, Level: s.shared.Ready.Top()}
		for _, c := range s.cores {
			c.Gate().Notify(sig)
		}

		if err := s.barrier.Wait(ctx); err != nil {
			return s.result(n-1, model.OutcomeCancelled), err
		}

		reports, err := s.drain(ctx)
		if err != nil {
			return s.result(n-1, model.OutcomeCancelled), err
		}
		promoted := s.reconcile()

		snap := s.snapshot(n, reports, promoted)
		for _, o := range s.observers {
			o.Tick(snap)
		}
		s.logger.Debug("tick done", "tick", n, "level", sig.Level, "idle", snap.IdleCores(),
			"ready", s.shared.Ready.Len(), "waiting", s.shared.Waiting.Len())

		if s.config.Strict {
			if err := s.checkInvariants(n, sig, reports); err != nil {
				panic(fmt.Sprintf("scheduler: invariant violated at tick %d: %v", n, err))
			}
		}

		if s.finished(reports) {
			return s.result(n, model.OutcomeTerminated), nil
		}

		if allIdle(reports) && promoted == nil && s.shared.Ready.Empty() && s.shared.Waiting.Len() > 0 {
			stall++
		} else {
			stall = 0
		}
		if stall >= max(s.config.LivelockTicks, s.shared.Waiting.Len()) {
			return s.result(n, model.OutcomeLivelock), nil
		}

		if s.config.MaxTicks > 0 && n >= s.config.MaxTicks {
			return s.result(n, model.OutcomeMaxTicks), nil
		}
	}
}

// drain collects exactly one report per core, ordered by core number. Every
// core has sent before joining the barrier, so this never waits in practice.
func (s *Simulation) drain(ctx context.Context) ([]model.CoreReport, error) {
	reports := make([]model.CoreReport, len(s.cores))
	for range s.cores {
		select {
		case rep := <-s.reports:
			reports[rep.Core] = rep
			if rep.Completed && rep.Task != nil {
				s.completed = append(s.completed, *rep.Task)
			}
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return reports, nil
}

// reconcile reconsiders the head of the waiting queue. A task whose pair is
// free now goes back to the ready structure; otherwise it is requeued.
func (s *Simulation) reconcile() *model.TaskView {
	t, ok := s.shared.Waiting.Pop()
	if !ok {
		return nil
	}
	if !s.shared.Pool.Available(t.Pair()) {
		s.shared.Waiting.Push(t)
		return nil
	}
	s.shared.Ready.Route(t)
	v := t.Snapshot()
	s.logger.Debug("task promoted from waiting", "task", t.Name, "kind", t.Kind)
	return &v
}

// finished reports whether no core holds unfinished work and every queue is
// empty.
func (s *Simulation) finished(reports []model.CoreReport) bool {
	for _, r := range reports {
		if !r.Quiescent() {
			return false
		}
	}
	return s.shared.Ready.Empty() && s.shared.Waiting.Len() == 0
}

func allIdle(reports []model.CoreReport) bool {
	for _, r := range reports {
		if r.State != model.CoreIdle {
			return false
		}
	}
	return true
}

func (s *Simulation) snapshot(n int, reports []model.CoreReport, promoted *model.TaskView) model.TickSnapshot {
	return model.TickSnapshot{
		Tick:      n,
		Resources: s.shared.Pool.Snapshot(),
		Ready:     s.shared.Ready.Levels(),
		Queue:     s.shared.Ready.Snapshot(),
		Waiting:   s.shared.Waiting.Snapshot(),
		Reports:   reports,
		Promoted:  promoted,
	}
}

func (s *Simulation) result(n int, outcome model.Outcome) *model.Result {
	res := &model.Result{
		Policy:    s.policy,
		Outcome:   outcome,
		Ticks:     n,
		Completed: s.completed,
		Final:     s.shared.Pool.Snapshot(),
	}
	if res.Completed == nil {
		res.Completed = []model.TaskView{}
	}
	if outcome != model.OutcomeTerminated {
		res.Stuck = s.shared.Waiting.Snapshot()
	}
	return res
}
