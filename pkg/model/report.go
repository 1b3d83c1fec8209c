package model

import "fmt"

// CoreReport is the single status line a core emits every tick.
type CoreReport struct {
	Core      int       `json:"core"`
	Tick      int       `json:"tick"`
	State     CoreState `json:"state"`
	Task      *TaskView `json:"task,omitempty"`
	Completed bool      `json:"completed,omitempty"`
	IdleCount int       `json:"idle_count"`
	Level     Kind      `json:"level,omitempty"`
}

// Quiescent reports whether the core holds no unfinished work after the tick.
func (r CoreReport) Quiescent() bool {
	return r.State == CoreIdle || r.Completed
}

// Line renders the report the way the console reporter prints it.
func (r CoreReport) Line() string {
	if r.State == CoreIdle || r.Task == nil {
		return fmt.Sprintf("core core%d idle, idle count: %d", r.Core, r.IdleCount)
	}
	t := r.Task
	return fmt.Sprintf("core%d is processing:\n\t%s: {\n\t\ttotal time: %d\n\t\texecuted time: %d\n\t\ttime left: %d\n\t}",
		r.Core, t.Name, t.Total, t.Executed, t.Remaining)
}

// TickSnapshot is the coordinator's view at the end of a tick.
type TickSnapshot struct {
	Tick      int                 `json:"tick"`
	Resources Resources           `json:"resources"`
	Ready     map[Kind][]TaskView `json:"ready,omitempty"`
	Queue     []TaskView          `json:"queue,omitempty"`
	Waiting   []TaskView          `json:"waiting"`
	Reports   []CoreReport        `json:"reports"`
	Promoted  *TaskView           `json:"promoted,omitempty"`
}

// IdleCores counts the cores that reported idle.
func (s TickSnapshot) IdleCores() int {
	n := 0
	for _, r := range s.Reports {
		if r.State == CoreIdle {
			n++
		}
	}
	return n
}

// Result summarises a finished run.
type Result struct {
	Policy    Policy     `json:"policy"`
	Outcome   Outcome    `json:"outcome"`
	Ticks     int        `json:"ticks"`
	Completed []TaskView `json:"completed"`
	Stuck     []TaskView `json:"stuck,omitempty"`
	Final     Resources  `json:"final_resources"`
}

// Err returns a *LivelockError for a livelocked run and nil otherwise.
func (r *Result) Err() error {
	if r == nil || r.Outcome != OutcomeLivelock {
		return nil
	}
	return &LivelockError{Tick: r.Ticks, Stuck: r.Stuck}
}
