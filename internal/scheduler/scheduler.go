// Package scheduler drives a simulation: it owns the clock, wakes every core
// once per tick, collects their reports, reconciles the waiting queue and
// decides when the run is over.
package scheduler

import (
	"fmt"
	"log/slog"

	"github.com/me/coresim/internal/config"
	"github.com/me/coresim/internal/core"
	"github.com/me/coresim/internal/queue"
	"github.com/me/coresim/internal/resource"
	"github.com/me/coresim/internal/tick"
	"github.com/me/coresim/pkg/model"
)

// Observer receives the run as it happens. Calls are made from the
// coordinator goroutine between ticks, never concurrently.
type Observer interface {
	// Start is called once before the first tick with the admitted state.
	Start(policy model.Policy, initial model.TickSnapshot)

	// Tick is called after every tick once reports are drained and the
	// waiting queue reconciled.
	Tick(snap model.TickSnapshot)

	// Finish is called once with the outcome.
	Finish(res model.Result)
}

// Simulation is a single run of a workload. It is not reusable.
type Simulation struct {
	policy    model.Policy
	config    config.SimConfig
	logger    *slog.Logger
	observers []Observer

	shared  *core.Shared
	cores   []*core.Core
	barrier *tick.Barrier
	reports chan model.CoreReport

	tasks     []*model.Task
	completed []model.TaskView
	executed  map[int]int // last seen Executed per task ID, for strict checks
	ran       bool
}

// New validates the workload, applies its options on top of cfg and admits
// every task into the ready structure in order.
func New(w model.Workload, cfg config.SimConfig, logger *slog.Logger, observers ...Observer) (*Simulation, error) {
	if err := w.Validate(); err != nil {
		return nil, err
	}
	cfg, err := cfg.WithOptions(w.Options)
	if err != nil {
		return nil, fmt.Errorf("apply workload options: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid simulation config: %w", err)
	}

	s := &Simulation{
		policy:    w.Policy,
		config:    cfg,
		logger:    logger.With("component", "scheduler", "policy", w.Policy),
		observers: observers,
		shared: &core.Shared{
			Policy:  w.Policy,
			Hold:    cfg.Hold,
			Pool:    resource.New(w.Resources),
			Ready:   queue.NewReady(w.Policy),
			Waiting: queue.ForPolicy(w.Policy),
		},
		barrier:  tick.NewBarrier(cfg.Cores + 1),
		reports:  make(chan model.CoreReport, cfg.Cores),
		tasks:    w.Admit(),
		executed: make(map[int]int),
	}
	for _, t := range s.tasks {
		s.shared.Ready.Route(t)
	}
	for i := 0; i < cfg.Cores; i++ {
		s.cores = append(s.cores, core.New(i, s.shared, s.barrier, s.reports, logger))
	}
	return s, nil
}

// Config returns the effective configuration after workload options.
func (s *Simulation) Config() config.SimConfig {
	return s.config
}

// Policy returns the scheduling policy of the run.
func (s *Simulation) Policy() model.Policy {
	return s.policy
}
