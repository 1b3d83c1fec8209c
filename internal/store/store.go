package store

import (
	"context"

	"github.com/google/uuid"

	"github.com/me/coresim/pkg/model"
)

// Store is the run ledger: finished simulations and, optionally, their
// per-tick trace.
type Store interface {
	// Runs
	CreateRun(ctx context.Context, run *model.Run) error
	GetRun(ctx context.Context, id string) (*model.Run, error)
	ListRuns(ctx context.Context, opts model.ListOptions) ([]*model.Run, int, error)
	DeleteRun(ctx context.Context, id string) error

	// Tick trace
	AppendTicks(ctx context.Context, runID string, ticks []model.TickSnapshot) error
	ListTicks(ctx context.Context, runID string, opts model.ListOptions) ([]model.TickSnapshot, int, error)

	// Lifecycle
	Close() error
	Migrate(ctx context.Context) error
}

// NewRunID returns a fresh ledger ID.
func NewRunID() string {
	return "run_" + uuid.New().String()
}
