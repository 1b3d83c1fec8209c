package scheduler

import (
	"errors"
	"fmt"

	"github.com/me/coresim/internal/tick"
	"github.com/me/coresim/pkg/model"
)

// checkInvariants verifies the tick-boundary invariants. Only called in
// strict mode; cores are parked, so the coordinator sees a stable state.
func (s *Simulation) checkInvariants(n int, sig tick.Signal, reports []model.CoreReport) error {
	return errors.Join(
		s.checkConservation(),
		s.checkOwnership(),
		s.checkProgress(n, reports),
		s.checkOrdering(),
		s.checkPriority(sig, reports),
	)
}

// Free units plus units held by tasks equal the capacity.
func (s *Simulation) checkConservation() error {
	total := s.shared.Pool.Snapshot()
	for _, t := range s.tasks {
		if !t.Holding {
			continue
		}
		p := t.Pair()
		total = total.Add(p.First, 1).Add(p.Second, 1)
	}
	if capacity := s.shared.Pool.Capacity(); total != capacity {
		return fmt.Errorf("conservation: free+held %v != capacity %v", total, capacity)
	}
	return nil
}

// Every admitted task lives in exactly one place.
func (s *Simulation) checkOwnership() error {
	seen := make(map[int]int, len(s.tasks))
	count := func(views []model.TaskView) {
		for _, v := range views {
			seen[v.ID]++
		}
	}
	if levels := s.shared.Ready.Levels(); levels != nil {
		for _, views := range levels {
			count(views)
		}
	} else {
		count(s.shared.Ready.Snapshot())
	}
	count(s.shared.Waiting.Snapshot())
	count(s.completed)
	for _, c := range s.cores {
		if t := c.InHand(); t != nil {
			seen[t.ID]++
		}
	}

	var errs []error
	for _, t := range s.tasks {
		if seen[t.ID] != 1 {
			errs = append(errs, fmt.Errorf("ownership: task %d (%s) found in %d places", t.ID, t.Name, seen[t.ID]))
		}
	}
	return errors.Join(errs...)
}

// Executed never decreases, never exceeds Total, and moves by at most one
// unit per tick.
func (s *Simulation) checkProgress(n int, reports []model.CoreReport) error {
	ran := make(map[int]bool)
	for _, r := range reports {
		if r.State != model.CoreProcessing || r.Task == nil {
			continue
		}
		if ran[r.Task.ID] {
			return fmt.Errorf("progress: task %d ran twice on tick %d", r.Task.ID, n)
		}
		ran[r.Task.ID] = true
	}
	for _, t := range s.tasks {
		prev := s.executed[t.ID]
		switch {
		case t.Executed > t.Total:
			return fmt.Errorf("progress: task %d executed %d > total %d", t.ID, t.Executed, t.Total)
		case t.Executed < prev:
			return fmt.Errorf("progress: task %d went back from %d to %d", t.ID, prev, t.Executed)
		case t.Executed > prev+1:
			return fmt.Errorf("progress: task %d advanced %d units on tick %d", t.ID, t.Executed-prev, n)
		}
		s.executed[t.ID] = t.Executed
	}
	return nil
}

// Sorted policies keep ready and waiting ascending by Total.
func (s *Simulation) checkOrdering() error {
	if !s.policy.Sorted() {
		return nil
	}
	for name, views := range map[string][]model.TaskView{
		"ready":   s.shared.Ready.Snapshot(),
		"waiting": s.shared.Waiting.Snapshot(),
	} {
		for i := 1; i < len(views); i++ {
			if views[i-1].Total > views[i].Total {
				return fmt.Errorf("ordering: %s queue out of order at %d (%d > %d)", name, i, views[i-1].Total, views[i].Total)
			}
		}
	}
	return nil
}

// On a Z or Y tick only tasks of that level run.
func (s *Simulation) checkPriority(sig tick.Signal, reports []model.CoreReport) error {
	if !s.policy.Leveled() || sig.Level == model.KindX {
		return nil
	}
	for _, r := range reports {
		if r.State == model.CoreProcessing && r.Task != nil && r.Task.Kind != sig.Level {
			return fmt.Errorf("priority: core %d ran %s task %s on a %s tick", r.Core, r.Task.Kind, r.Task.Name, sig.Level)
		}
	}
	return nil
}
