package queue

import "github.com/me/coresim/pkg/model"

// Ready is the set of ready queues for a run: a single queue for FCFS, SJF
// and RR, or one queue per kind for MLQ.
type Ready struct {
	policy model.Policy
	single *Queue
	levels map[model.Kind]*Queue
}

// NewReady builds the ready structure the policy needs.
func NewReady(p model.Policy) *Ready {
	r := &Ready{policy: p}
	if p.Leveled() {
		r.levels = make(map[model.Kind]*Queue, len(model.Kinds))
		for _, k := range model.Kinds {
			r.levels[k] = New()
		}
		return r
	}
	r.single = ForPolicy(p)
	return r
}

// Level returns the queue tasks of kind k live in. Without levels every kind
// shares the single queue.
func (r *Ready) Level(k model.Kind) *Queue {
	if r.levels == nil {
		return r.single
	}
	return r.levels[k]
}

// Route inserts t into the queue matching its kind.
func (r *Ready) Route(t *model.Task) {
	r.Level(t.Kind).Push(t)
}

// Top returns the highest-priority level holding a task, or X when all are
// empty. Without levels it always returns X.
func (r *Ready) Top() model.Kind {
	if r.levels == nil {
		return model.KindX
	}
	for i := len(model.Kinds) - 1; i >= 0; i-- {
		k := model.Kinds[i]
		if r.levels[k].Len() > 0 {
			return k
		}
	}
	return model.KindX
}

// Len counts tasks across every level.
func (r *Ready) Len() int {
	if r.levels == nil {
		return r.single.Len()
	}
	n := 0
	for _, q := range r.levels {
		n += q.Len()
	}
	return n
}

// Empty reports whether no ready queue holds a task.
func (r *Ready) Empty() bool {
	return r.Len() == 0
}

// Snapshot returns the single queue's contents, or nil for a leveled structure.
func (r *Ready) Snapshot() []model.TaskView {
	if r.levels != nil {
		return nil
	}
	return r.single.Snapshot()
}

// Levels returns per-level contents for a leveled structure, or nil.
func (r *Ready) Levels() map[model.Kind][]model.TaskView {
	if r.levels == nil {
		return nil
	}
	out := make(map[model.Kind][]model.TaskView, len(r.levels))
	for k, q := range r.levels {
		out[k] = q.Snapshot()
	}
	return out
}
