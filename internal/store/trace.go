package store

import (
	"context"

	"github.com/me/coresim/pkg/model"
)

// Trace buffers a run's tick snapshots so they can be written to the ledger
// once the run has an ID. It satisfies the scheduler observer interface.
type Trace struct {
	ticks []model.TickSnapshot
}

func (t *Trace) Start(model.Policy, model.TickSnapshot) {}

func (t *Trace) Tick(snap model.TickSnapshot) {
	t.ticks = append(t.ticks, snap)
}

func (t *Trace) Finish(model.Result) {}

// Len returns the number of buffered ticks.
func (t *Trace) Len() int {
	return len(t.ticks)
}

// Flush writes the buffered ticks under runID.
func (t *Trace) Flush(ctx context.Context, st Store, runID string) error {
	return st.AppendTicks(ctx, runID, t.ticks)
}
