// Package metrics exports simulation counters in the Prometheus format.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/me/coresim/internal/scheduler"
	"github.com/me/coresim/pkg/model"
)

// Collector owns a private registry and the simulation metrics in it.
// A nil *Collector is valid and records nothing.
type Collector struct {
	registry *prometheus.Registry

	ticks    *prometheus.CounterVec
	reports  *prometheus.CounterVec
	promoted prometheus.Counter
	waiting  prometheus.Gauge
	runs     *prometheus.CounterVec
	runTicks *prometheus.HistogramVec
}

// NewCollector registers the simulation metrics. withRuntime adds the Go
// runtime and process collectors, which the API server wants and tests don't.
func NewCollector(withRuntime bool) *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		ticks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "coresim",
			Name:      "ticks_total",
			Help:      "Clock ticks simulated.",
		}, []string{"policy"}),
		reports: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "coresim",
			Name:      "core_reports_total",
			Help:      "Per-tick core status reports by state.",
		}, []string{"state"}),
		promoted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "coresim",
			Name:      "promotions_total",
			Help:      "Tasks moved from the waiting queue back to a ready queue.",
		}),
		waiting: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "coresim",
			Name:      "waiting_tasks",
			Help:      "Tasks in the waiting queue at the end of the latest tick.",
		}),
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "coresim",
			Name:      "runs_total",
			Help:      "Finished simulation runs by policy and outcome.",
		}, []string{"policy", "outcome"}),
		runTicks: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "coresim",
			Name:      "run_ticks",
			Help:      "Ticks taken by finished runs.",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 12),
		}, []string{"policy"}),
	}
	c.registry.MustRegister(c.ticks, c.reports, c.promoted, c.waiting, c.runs, c.runTicks)
	if withRuntime {
		c.registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}
	return c
}

// Registry returns the registry the metrics live in.
func (c *Collector) Registry() *prometheus.Registry {
	if c == nil {
		return nil
	}
	return c.registry
}

// Handler serves the registry in the exposition format.
func (c *Collector) Handler() http.Handler {
	if c == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}

// Observer returns a scheduler observer feeding this collector for one run.
// Concurrent runs each take their own observer.
func (c *Collector) Observer() scheduler.Observer {
	return &runObserver{c: c}
}

type runObserver struct {
	c      *Collector
	policy model.Policy
}

func (o *runObserver) Start(policy model.Policy, initial model.TickSnapshot) {
	o.policy = policy
	if o.c == nil {
		return
	}
	o.c.waiting.Set(float64(len(initial.Waiting)))
}

func (o *runObserver) Tick(snap model.TickSnapshot) {
	if o.c == nil {
		return
	}
	o.c.ticks.WithLabelValues(o.policy.String()).Inc()
	for _, r := range snap.Reports {
		o.c.reports.WithLabelValues(r.State.String()).Inc()
	}
	if snap.Promoted != nil {
		o.c.promoted.Inc()
	}
	o.c.waiting.Set(float64(len(snap.Waiting)))
}

func (o *runObserver) Finish(res model.Result) {
	if o.c == nil {
		return
	}
	o.c.runs.WithLabelValues(res.Policy.String(), res.Outcome.String()).Inc()
	o.c.runTicks.WithLabelValues(res.Policy.String()).Observe(float64(res.Ticks))
}
