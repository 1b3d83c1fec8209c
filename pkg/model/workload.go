package model

import (
	"fmt"
	"time"
)

// Workload is everything a simulation run consumes: a policy, resource
// capacities and the ordered list of admitted tasks.
type Workload struct {
	Policy    Policy     `json:"policy" yaml:"policy"`
	Resources Resources  `json:"resources" yaml:"resources"`
	Tasks     []TaskSpec `json:"tasks" yaml:"tasks"`
	Options   *Options   `json:"options,omitempty" yaml:"options,omitempty"`
}

// TaskSpec describes one task as supplied by the operator.
type TaskSpec struct {
	Name  string `json:"name" yaml:"name"`
	Kind  Kind   `json:"kind" yaml:"kind"`
	Total int    `json:"total" yaml:"total"`
}

// Options override simulation defaults for a single workload.
type Options struct {
	LivelockTicks int    `json:"livelock_ticks,omitempty" yaml:"livelock_ticks,omitempty"`
	MaxTicks      int    `json:"max_ticks,omitempty" yaml:"max_ticks,omitempty"`
	Hold          string `json:"hold,omitempty" yaml:"hold,omitempty"`
}

// Validate checks the workload and reports every bad field at once.
func (w *Workload) Validate() error {
	var errs []FieldError
	if !w.Policy.Valid() {
		errs = append(errs, FieldError{Field: "policy", Message: fmt.Sprintf("unknown policy %q", string(w.Policy))})
	}
	for _, f := range []struct {
		name string
		v    int
	}{{"resources.a", w.Resources.A}, {"resources.b", w.Resources.B}, {"resources.c", w.Resources.C}} {
		if f.v < 0 {
			errs = append(errs, FieldError{Field: f.name, Message: "capacity must be non-negative"})
		}
	}
	for i, t := range w.Tasks {
		path := fmt.Sprintf("tasks[%d]", i)
		if t.Name == "" {
			errs = append(errs, FieldError{Field: path + ".name", Message: "name is required"})
		}
		if !t.Kind.Valid() {
			errs = append(errs, FieldError{Field: path + ".kind", Message: fmt.Sprintf("unknown kind %q", string(t.Kind))})
		}
		if t.Total <= 0 {
			errs = append(errs, FieldError{Field: path + ".total", Message: "total must be positive"})
		}
	}
	if w.Options != nil {
		if w.Options.LivelockTicks < 0 {
			errs = append(errs, FieldError{Field: "options.livelock_ticks", Message: "must be non-negative"})
		}
		if w.Options.MaxTicks < 0 {
			errs = append(errs, FieldError{Field: "options.max_ticks", Message: "must be non-negative"})
		}
	}
	if len(errs) > 0 {
		return &ValidationError{Errors: errs}
	}
	return nil
}

// Admit creates the run's tasks in admission order with IDs starting at 1.
func (w *Workload) Admit() []*Task {
	tasks := make([]*Task, 0, len(w.Tasks))
	for i, s := range w.Tasks {
		tasks = append(tasks, NewTask(i+1, s.Name, s.Kind, s.Total))
	}
	return tasks
}

// Run is a finished simulation as recorded in the run ledger.
type Run struct {
	ID         string    `json:"id"`
	Policy     Policy    `json:"policy"`
	Outcome    Outcome   `json:"outcome"`
	Ticks      int       `json:"ticks"`
	Cores      int       `json:"cores"`
	Hold       string    `json:"hold"`
	Workload   Workload  `json:"workload"`
	Result     *Result   `json:"result,omitempty"`
	DurationMS int64     `json:"duration_ms"`
	CreatedAt  time.Time `json:"created_at"`
}

// NewRun records a finished simulation of w under id.
func NewRun(id string, w Workload, res *Result, cores int, hold string, took time.Duration) *Run {
	return &Run{
		ID:         id,
		Policy:     res.Policy,
		Outcome:    res.Outcome,
		Ticks:      res.Ticks,
		Cores:      cores,
		Hold:       hold,
		Workload:   w,
		Result:     res,
		DurationMS: took.Milliseconds(),
		CreatedAt:  time.Now().UTC(),
	}
}
