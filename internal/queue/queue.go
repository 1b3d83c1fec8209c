// Package queue holds the ready and waiting structures tasks move between.
// Every Queue owns its own lock; callers only ever see single pop/push
// operations, never the underlying slice.
package queue

import (
	"sort"
	"sync"

	"github.com/me/coresim/pkg/model"
)

// Queue is a mutex-guarded double-ended task queue.
// A sorted queue keeps tasks ascending by Total on every insertion; ties keep
// arrival order.
type Queue struct {
	mu     sync.Mutex
	items  []*model.Task
	sorted bool
}

// New creates a FIFO queue.
func New() *Queue {
	return &Queue{}
}

// NewSorted creates a queue ordered by total execution units.
func NewSorted() *Queue {
	return &Queue{sorted: true}
}

// ForPolicy creates a queue with the ordering the policy requires.
func ForPolicy(p model.Policy) *Queue {
	if p.Sorted() {
		return NewSorted()
	}
	return New()
}

// Push inserts t at the tail, or at its ordered position for sorted queues.
func (q *Queue) Push(t *model.Task) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if !q.sorted {
		q.items = append(q.items, t)
		return
	}
	i := sort.Search(len(q.items), func(i int) bool { return q.items[i].Total > t.Total })
	q.items = append(q.items, nil)
	copy(q.items[i+1:], q.items[i:])
	q.items[i] = t
}

// PushFront puts t at the head regardless of ordering. Used to return a
// preempted task, or one popped too early, to where it was.
func (q *Queue) PushFront(t *model.Task) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = append([]*model.Task{t}, q.items...)
}

// Pop removes the head. ok is false when the queue is empty.
func (q *Queue) Pop() (t *model.Task, ok bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return nil, false
	}
	t = q.items[0]
	q.items[0] = nil
	q.items = q.items[1:]
	return t, true
}

// Len returns the number of queued tasks.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Snapshot returns copies of the queued tasks in order.
func (q *Queue) Snapshot() []model.TaskView {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]model.TaskView, len(q.items))
	for i, t := range q.items {
		out[i] = t.Snapshot()
	}
	return out
}
