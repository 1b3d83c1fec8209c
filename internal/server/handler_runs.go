package server

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/me/coresim/internal/scheduler"
	"github.com/me/coresim/internal/store"
	"github.com/me/coresim/internal/workload"
	"github.com/me/coresim/pkg/model"
)

// maxWorkloadBytes bounds a POSTed workload.
const maxWorkloadBytes = 1 << 20

// handleCreateRun runs the posted workload to completion and records it.
// The body may be JSON or YAML.
func (s *Server) handleCreateRun(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	ctx := r.Context()

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWorkloadBytes))
	if err != nil {
		respondError(w, reqID, http.StatusBadRequest,
			model.NewValidationError(fmt.Sprintf("read body: %v", err)))
		return
	}
	wl, err := workload.Parse(body)
	if err != nil {
		var ve *model.ValidationError
		if errors.As(err, &ve) {
			respondError(w, reqID, http.StatusBadRequest,
				model.NewValidationError("invalid workload", ve.Errors...))
			return
		}
		respondError(w, reqID, http.StatusBadRequest, model.NewValidationError(err.Error()))
		return
	}
	s.capTicks(wl)

	trace := r.URL.Query().Get("trace") == "true"
	var tr store.Trace
	observers := []scheduler.Observer{s.metrics.Observer()}
	if trace {
		observers = append(observers, &tr)
	}

	sim, err := scheduler.New(*wl, s.sim, s.logger, observers...)
	if err != nil {
		respondError(w, reqID, http.StatusBadRequest, model.NewValidationError(err.Error()))
		return
	}

	if err := s.runs.Acquire(ctx, 1); err != nil {
		respondError(w, reqID, http.StatusServiceUnavailable,
			&model.APIError{Code: model.ErrInternal, Message: "request cancelled while waiting for a free simulation slot"})
		return
	}
	start := time.Now()
	res, err := sim.Run(ctx)
	s.runs.Release(1)
	if err != nil {
		respondInternal(w, reqID, fmt.Errorf("simulation: %w", err))
		return
	}

	cfg := sim.Config()
	run := model.NewRun(store.NewRunID(), *wl, res, cfg.Cores, string(cfg.Hold), time.Since(start))
	if err := s.store.CreateRun(ctx, run); err != nil {
		respondInternal(w, reqID, fmt.Errorf("store run: %w", err))
		return
	}
	if trace {
		if err := tr.Flush(ctx, s.store, run.ID); err != nil {
			respondInternal(w, reqID, fmt.Errorf("store trace: %w", err))
			return
		}
	}

	s.logger.Info("run recorded", "run_id", run.ID, "policy", run.Policy, "outcome", run.Outcome,
		"ticks", run.Ticks, "traced", trace)
	respondCreated(w, reqID, run)
}

// capTicks applies the server's tick limit to a workload's own.
func (s *Server) capTicks(wl *model.Workload) {
	if s.config.MaxTicks <= 0 {
		return
	}
	if wl.Options == nil {
		wl.Options = &model.Options{}
	}
	if wl.Options.MaxTicks == 0 || wl.Options.MaxTicks > s.config.MaxTicks {
		wl.Options.MaxTicks = s.config.MaxTicks
	}
}

func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())

	opts, apiErr := listOptions(r)
	if apiErr != nil {
		respondError(w, reqID, http.StatusBadRequest, apiErr)
		return
	}
	opts.Policy = r.URL.Query().Get("policy")
	opts.Outcome = r.URL.Query().Get("outcome")

	runs, total, err := s.store.ListRuns(r.Context(), opts)
	if err != nil {
		respondInternal(w, reqID, err)
		return
	}
	if runs == nil {
		runs = []*model.Run{}
	}
	opts.Clamp()
	respondList(w, reqID, runs, &model.Pagination{
		Total:   total,
		Limit:   opts.Limit,
		Offset:  opts.Offset,
		HasMore: opts.Offset+opts.Limit < total,
	})
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	id := chi.URLParam(r, "id")

	run, err := s.store.GetRun(r.Context(), id)
	if err != nil {
		respondInternal(w, reqID, err)
		return
	}
	if run == nil {
		respondError(w, reqID, http.StatusNotFound, model.NewNotFoundError("run", id))
		return
	}
	respondOK(w, reqID, run)
}

func (s *Server) handleDeleteRun(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	id := chi.URLParam(r, "id")

	run, err := s.store.GetRun(r.Context(), id)
	if err != nil {
		respondInternal(w, reqID, err)
		return
	}
	if run == nil {
		respondError(w, reqID, http.StatusNotFound, model.NewNotFoundError("run", id))
		return
	}
	if err := s.store.DeleteRun(r.Context(), id); err != nil {
		respondInternal(w, reqID, err)
		return
	}
	respondNoContent(w)
}

func (s *Server) handleListTicks(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	id := chi.URLParam(r, "id")

	opts, apiErr := listOptions(r)
	if apiErr != nil {
		respondError(w, reqID, http.StatusBadRequest, apiErr)
		return
	}

	run, err := s.store.GetRun(r.Context(), id)
	if err != nil {
		respondInternal(w, reqID, err)
		return
	}
	if run == nil {
		respondError(w, reqID, http.StatusNotFound, model.NewNotFoundError("run", id))
		return
	}

	ticks, total, err := s.store.ListTicks(r.Context(), id, opts)
	if err != nil {
		respondInternal(w, reqID, err)
		return
	}
	if ticks == nil {
		ticks = []model.TickSnapshot{}
	}
	opts.Clamp()
	respondList(w, reqID, ticks, &model.Pagination{
		Total:   total,
		Limit:   opts.Limit,
		Offset:  opts.Offset,
		HasMore: opts.Offset+opts.Limit < total,
	})
}

// listOptions reads ?limit= and ?offset=.
func listOptions(r *http.Request) (model.ListOptions, *model.APIError) {
	opts := model.DefaultListOptions()
	q := r.URL.Query()
	for _, p := range []struct {
		name string
		dst  *int
	}{{"limit", &opts.Limit}, {"offset", &opts.Offset}} {
		v := q.Get(p.name)
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return opts, model.NewValidationError("invalid query parameter",
				model.FieldError{Field: p.name, Message: "must be a non-negative integer"})
		}
		*p.dst = n
	}
	return opts, nil
}
