// Package ui serves a read-only HTML view of the run ledger.
package ui

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/me/coresim/internal/report"
	"github.com/me/coresim/internal/store"
	"github.com/me/coresim/pkg/model"
)

// outcomes are the dashboard's per-outcome counters, in display order.
var outcomes = []model.Outcome{
	model.OutcomeTerminated,
	model.OutcomeLivelock,
	model.OutcomeMaxTicks,
}

// UI handles the web user interface.
type UI struct {
	store     store.Store
	logger    *slog.Logger
	base      string
	startTime time.Time
}

// Config holds UI configuration.
type Config struct {
	Base string // Path prefix the UI is mounted under, e.g. "/ui"
}

// New creates a new UI handler.
func New(st store.Store, logger *slog.Logger, cfg Config) *UI {
	return &UI{
		store:     st,
		logger:    logger.With("component", "ui"),
		base:      strings.TrimSuffix(cfg.Base, "/"),
		startTime: time.Now(),
	}
}

// HandleDashboard renders run counts by outcome and the latest runs.
func (ui *UI) HandleDashboard(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	recent, total, err := ui.store.ListRuns(ctx, model.ListOptions{Limit: 5})
	if err != nil {
		ui.renderError(w, "Failed to list runs", err)
		return
	}

	counts := make(map[string]int, len(outcomes))
	for _, o := range outcomes {
		_, n, err := ui.store.ListRuns(ctx, model.ListOptions{Limit: 1, Outcome: string(o)})
		if err != nil {
			ui.renderError(w, "Failed to count runs", err)
			return
		}
		counts[string(o)] = n
	}

	ui.render(w, "dashboard", map[string]any{
		"Title":    "Dashboard - coresim",
		"Base":     ui.base,
		"Total":    total,
		"Outcomes": counts,
		"Table":    ui.table(recent),
		"Uptime":   time.Since(ui.startTime).Round(time.Second).String(),
	})
}

// HandleRunList renders one page of runs, newest first.
func (ui *UI) HandleRunList(w http.ResponseWriter, r *http.Request) {
	opts := ui.parseListOptions(r)
	runs, total, err := ui.store.ListRuns(r.Context(), opts)
	if err != nil {
		ui.renderError(w, "Failed to list runs", err)
		return
	}

	ui.render(w, "runs", map[string]any{
		"Title":      "Runs - coresim",
		"Base":       ui.base,
		"Table":      ui.table(runs),
		"Pagination": ui.buildPagination(opts, total),
	})
}

// HandleRunDetail renders a run with its workload, result and, when one was
// recorded, the console replay of its trace.
func (ui *UI) HandleRunDetail(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	run, err := ui.store.GetRun(r.Context(), id)
	if err != nil {
		ui.renderError(w, "Failed to load run", err)
		return
	}
	if run == nil {
		ui.renderNotFound(w, "Run "+id+" not found")
		return
	}

	trace, err := ui.replay(r.Context(), run)
	if err != nil {
		ui.renderError(w, "Failed to load trace", err)
		return
	}

	ui.render(w, "run", map[string]any{
		"Title": run.ID + " - coresim",
		"Base":  ui.base,
		"Run":   run,
		"Trace": trace,
	})
}

// replay prints the stored trace the way `coresim run` printed it live.
// It returns "" for a run without a trace.
func (ui *UI) replay(ctx context.Context, run *model.Run) (string, error) {
	var buf bytes.Buffer
	p := report.NewPrinter(&buf, report.FormatText)
	p.Resume(run.Policy)

	opts := model.ListOptions{Limit: 100}
	for {
		page, total, err := ui.store.ListTicks(ctx, run.ID, opts)
		if err != nil {
			return "", err
		}
		if total == 0 {
			return "", nil
		}
		for _, snap := range page {
			p.Tick(snap)
		}
		opts.Offset += len(page)
		if len(page) == 0 || opts.Offset >= total {
			break
		}
	}
	if run.Result != nil {
		p.Finish(*run.Result)
	}
	return buf.String(), p.Err()
}

func (ui *UI) table(runs []*model.Run) map[string]any {
	return map[string]any{"Base": ui.base, "Runs": runs}
}

func (ui *UI) parseListOptions(r *http.Request) model.ListOptions {
	opts := model.DefaultListOptions()

	if limit := r.URL.Query().Get("limit"); limit != "" {
		if n, err := strconv.Atoi(limit); err == nil && n > 0 && n <= 100 {
			opts.Limit = n
		}
	}
	if offset := r.URL.Query().Get("offset"); offset != "" {
		if n, err := strconv.Atoi(offset); err == nil && n >= 0 {
			opts.Offset = n
		}
	}
	opts.Policy = r.URL.Query().Get("policy")
	opts.Outcome = r.URL.Query().Get("outcome")

	return opts
}

func (ui *UI) buildPagination(opts model.ListOptions, total int) map[string]any {
	return map[string]any{
		"Total":      total,
		"Limit":      opts.Limit,
		"Offset":     opts.Offset,
		"HasMore":    opts.Offset+opts.Limit < total,
		"HasPrev":    opts.Offset > 0,
		"NextOffset": opts.Offset + opts.Limit,
		"PrevOffset": max(0, opts.Offset-opts.Limit),
	}
}

func (ui *UI) render(w http.ResponseWriter, template string, data map[string]any) {
	ui.renderStatus(w, http.StatusOK, template, data)
}

func (ui *UI) renderStatus(w http.ResponseWriter, status int, template string, data map[string]any) {
	var buf bytes.Buffer
	if err := renderTemplate(&buf, template, data); err != nil {
		ui.logger.Error("template render failed", "template", template, "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	buf.WriteTo(w)
}

func (ui *UI) renderError(w http.ResponseWriter, message string, err error) {
	ui.logger.Error(message, "error", err)
	ui.renderStatus(w, http.StatusInternalServerError, "error", map[string]any{
		"Title":   "Error - coresim",
		"Base":    ui.base,
		"Message": message,
	})
}

func (ui *UI) renderNotFound(w http.ResponseWriter, message string) {
	ui.renderStatus(w, http.StatusNotFound, "error", map[string]any{
		"Title":   "Not Found - coresim",
		"Base":    ui.base,
		"Message": message,
	})
}
