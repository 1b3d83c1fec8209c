package model

import "fmt"

// Task is a unit of simulated work admitted at the start of a run.
//
// A task is owned by exactly one structure at a time (a ready queue, the
// waiting queue, or a single core's hand); only the owner mutates it.
type Task struct {
	ID       int    `json:"id"`
	Name     string `json:"name"`
	Kind     Kind   `json:"kind"`
	Total    int    `json:"total"`
	Executed int    `json:"executed"`

	// LastRun is the tick on which the task last executed a unit (0 = never).
	LastRun int `json:"last_run,omitempty"`

	// Holding is set while the task keeps its resource pair between units.
	Holding bool `json:"holding,omitempty"`
}

// NewTask creates a task that has not executed yet.
func NewTask(id int, name string, kind Kind, total int) *Task {
	return &Task{ID: id, Name: name, Kind: kind, Total: total}
}

// Pair returns the resources the task needs.
func (t *Task) Pair() Pair {
	return t.Kind.Pair()
}

// Remaining returns the number of units left.
func (t *Task) Remaining() int {
	return t.Total - t.Executed
}

// Done reports whether every unit has executed.
func (t *Task) Done() bool {
	return t.Executed >= t.Total
}

// Advance executes one unit on the given tick.
// Advancing a completed task is a scheduling bug and panics.
func (t *Task) Advance(tick int) {
	if t.Done() {
		panic(fmt.Sprintf("model: task %d (%s) advanced past its total %d", t.ID, t.Name, t.Total))
	}
	t.Executed++
	t.LastRun = tick
}

// Snapshot returns a value copy safe to hand to observers.
func (t *Task) Snapshot() TaskView {
	return TaskView{
		ID:        t.ID,
		Name:      t.Name,
		Kind:      t.Kind,
		Total:     t.Total,
		Executed:  t.Executed,
		Remaining: t.Remaining(),
	}
}

func (t *Task) String() string {
	return fmt.Sprintf("%s: {total time: %d, executed time: %d, time left: %d}",
		t.Name, t.Total, t.Executed, t.Remaining())
}

// TaskView is an immutable copy of a task used in reports and snapshots.
type TaskView struct {
	ID        int    `json:"id"`
	Name      string `json:"name"`
	Kind      Kind   `json:"kind"`
	Total     int    `json:"total"`
	Executed  int    `json:"executed"`
	Remaining int    `json:"remaining"`
}
