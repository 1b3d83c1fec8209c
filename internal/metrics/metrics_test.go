package metrics

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/me/coresim/internal/config"
	"github.com/me/coresim/internal/logging"
	"github.com/me/coresim/internal/scheduler"
	"github.com/me/coresim/pkg/model"
)

func runWith(t *testing.T, c *Collector, w model.Workload) *model.Result {
	t.Helper()
	sim, err := scheduler.New(w, config.DefaultSimConfig(), logging.Discard(), c.Observer())
	require.NoError(t, err)
	res, err := sim.Run(context.Background())
	require.NoError(t, err)
	return res
}

func TestCollector_CountsTicksAndReports(t *testing.T) {
	c := NewCollector(false)
	res := runWith(t, c, model.Workload{
		Policy:    model.PolicyFCFS,
		Resources: model.Resources{A: 1, B: 1, C: 1},
		Tasks:     []model.TaskSpec{{Name: "p1", Kind: model.KindX, Total: 3}},
	})
	require.Equal(t, 3, res.Ticks)

	assert.Equal(t, 3.0, testutil.ToFloat64(c.ticks.WithLabelValues("FCFS")))
	assert.Equal(t, 3.0, testutil.ToFloat64(c.reports.WithLabelValues("processing")))
	assert.Equal(t, 9.0, testutil.ToFloat64(c.reports.WithLabelValues("idle")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.runs.WithLabelValues("FCFS", "terminated")))
	assert.Equal(t, 0.0, testutil.ToFloat64(c.waiting))
}

func TestCollector_Livelock(t *testing.T) {
	c := NewCollector(false)
	runWith(t, c, model.Workload{
		Policy:    model.PolicyRR,
		Resources: model.Resources{A: 0, B: 1, C: 1},
		Tasks:     []model.TaskSpec{{Name: "p1", Kind: model.KindX, Total: 1}},
	})

	assert.Equal(t, 1.0, testutil.ToFloat64(c.runs.WithLabelValues("RR", "livelock")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.waiting))
	assert.Equal(t, 0.0, testutil.ToFloat64(c.promoted))
}

func TestCollector_Handler(t *testing.T) {
	c := NewCollector(false)
	runWith(t, c, model.Workload{Policy: model.PolicySJF, Resources: model.Resources{A: 1, B: 1, C: 1}})

	srv := httptest.NewServer(c.Handler())
	defer srv.Close()
	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	out := string(body)
	assert.True(t, strings.Contains(out, `coresim_runs_total{outcome="terminated",policy="SJF"} 1`), out)
	assert.Contains(t, out, "coresim_run_ticks_bucket")
}

func TestCollector_NilIsNoop(t *testing.T) {
	var c *Collector
	assert.Nil(t, c.Registry())
	res := runWith(t, c, model.Workload{
		Policy:    model.PolicyMLQ,
		Resources: model.Resources{A: 1, B: 1, C: 1},
		Tasks:     []model.TaskSpec{{Name: "z", Kind: model.KindZ, Total: 1}},
	})
	assert.Equal(t, model.OutcomeTerminated, res.Outcome)

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
