// Package report renders a simulation run for humans (the console format of
// the interactive simulator) or machines (one JSON object per line).
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/me/coresim/pkg/model"
)

// Format selects the printer output.
type Format string

const (
	FormatText  Format = "text"
	FormatJSON  Format = "json"
	FormatQuiet Format = "quiet" // only the final line
)

// ParseFormat accepts text, json or quiet; empty means text.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(s)); f {
	case "":
		return FormatText, nil
	case FormatText, FormatJSON, FormatQuiet:
		return f, nil
	}
	return "", fmt.Errorf("unknown output format %q (want text, json or quiet)", s)
}

// Printer is a scheduler observer that writes the run to w as it happens.
// The first write error is kept and every later write is skipped.
type Printer struct {
	w      io.Writer
	format Format
	policy model.Policy
	err    error
}

// NewPrinter creates a printer.
func NewPrinter(w io.Writer, format Format) *Printer {
	return &Printer{w: w, format: format}
}

// Err returns the first write error.
func (p *Printer) Err() error {
	return p.err
}

// event is one line of JSON output.
type event struct {
	Event    string              `json:"event"`
	Policy   model.Policy        `json:"policy,omitempty"`
	Snapshot *model.TickSnapshot `json:"snapshot,omitempty"`
	Result   *model.Result       `json:"result,omitempty"`
}

// Resume prepares the printer for ticks of a run whose start it never saw,
// such as a stored trace being replayed.
func (p *Printer) Resume(policy model.Policy) {
	p.policy = policy
}

func (p *Printer) Start(policy model.Policy, initial model.TickSnapshot) {
	p.policy = policy
	switch p.format {
	case FormatJSON:
		p.emit(event{Event: "start", Policy: policy, Snapshot: &initial})
	case FormatText:
		p.queues(initial)
	}
}

func (p *Printer) Tick(snap model.TickSnapshot) {
	switch p.format {
	case FormatJSON:
		p.emit(event{Event: "tick", Snapshot: &snap})
	case FormatText:
		p.printf("<<at %d clock>>\n", snap.Tick)
		p.printf("Resources : %s\n", Resources(snap.Resources))
		p.queues(snap)
		for _, r := range snap.Reports {
			p.printf("%s\n", r.Line())
		}
	}
}

func (p *Printer) Finish(res model.Result) {
	if p.format == FormatJSON {
		p.emit(event{Event: "finish", Result: &res})
		return
	}
	switch res.Outcome {
	case model.OutcomeTerminated:
		p.printf("TOTAL CLOCKS:  %d\n", res.Ticks)
	case model.OutcomeLivelock:
		p.printf("LIVELOCK at %d clock: %d task(s) waiting forever\n", res.Ticks, len(res.Stuck))
		if p.format == FormatText {
			p.list("WAITING", res.Stuck)
		}
	case model.OutcomeMaxTicks:
		p.printf("STOPPED after %d clocks: tick limit reached\n", res.Ticks)
	case model.OutcomeCancelled:
		p.printf("CANCELLED after %d clocks\n", res.Ticks)
	}
}

// queues prints the ready structure: one queue, or Z, Y and X for MLQ.
func (p *Printer) queues(snap model.TickSnapshot) {
	if !p.policy.Leveled() {
		p.list("", snap.Queue)
		return
	}
	for i := len(model.Kinds) - 1; i >= 0; i-- {
		k := model.Kinds[i]
		p.list(k.String()+" ", snap.Ready[k])
	}
}

func (p *Printer) list(prefix string, views []model.TaskView) {
	p.printf("%sQUEUE: [\n", prefix)
	for _, v := range views {
		p.printf("%s\n", Task(v))
	}
	p.printf("]\n")
}

func (p *Printer) printf(format string, args ...any) {
	if p.err != nil {
		return
	}
	_, p.err = fmt.Fprintf(p.w, format, args...)
}

func (p *Printer) emit(e event) {
	if p.err != nil {
		return
	}
	data, err := json.Marshal(e)
	if err != nil {
		p.err = fmt.Errorf("encode %s event: %w", e.Event, err)
		return
	}
	data = append(data, '\n')
	_, p.err = p.w.Write(data)
}

// Task renders a task block as the console listing shows it.
func Task(v model.TaskView) string {
	return fmt.Sprintf("\t%s: {\n\t\ttotal time: %d\n\t\texecuted time: %d\n\t\ttime left: %d\n\t}",
		v.Name, v.Total, v.Executed, v.Remaining)
}

// Resources renders the free counters as ((A, n), (B, n), (C, n)).
func Resources(r model.Resources) string {
	return fmt.Sprintf("((A, %d), (B, %d), (C, %d))", r.A, r.B, r.C)
}
