package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/me/coresim/internal/config"
	"github.com/me/coresim/internal/metrics"
	"github.com/me/coresim/internal/store"
	"github.com/me/coresim/pkg/model"
)

const fcfsWorkload = `policy: FCFS
resources: {a: 1, b: 1, c: 1}
tasks:
  - {name: p1, kind: X, total: 3}
`

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

func testServer(t *testing.T, opts ...Option) *Server {
	t.Helper()
	st, err := store.NewSQLiteStore(":memory:", quietLogger())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	if err := st.Migrate(context.Background()); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return New(config.DefaultServerConfig(), st, quietLogger(), opts...)
}

// envelope is used to decode the standard response envelope.
type envelope struct {
	Status     string            `json:"status"`
	RequestID  string            `json:"request_id"`
	Timestamp  string            `json:"timestamp"`
	Data       json.RawMessage   `json:"data"`
	Pagination *model.Pagination `json:"pagination"`
	Error      *model.APIError   `json:"error"`
}

func do(t *testing.T, srv *Server, method, path, body string, want int) envelope {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)
	if w.Code != want {
		t.Fatalf("%s %s: status=%d, want %d, body=%s", method, path, w.Code, want, w.Body.String())
	}
	var env envelope
	if w.Code == http.StatusNoContent {
		return env
	}
	if err := json.Unmarshal(w.Body.Bytes(), &env); err != nil {
		t.Fatalf("%s %s: invalid JSON: %v", method, path, err)
	}
	return env
}

func createRun(t *testing.T, srv *Server, path, body string) model.Run {
	t.Helper()
	env := do(t, srv, "POST", path, body, http.StatusCreated)
	var run model.Run
	if err := json.Unmarshal(env.Data, &run); err != nil {
		t.Fatalf("decode run: %v", err)
	}
	return run
}

func TestDiscovery(t *testing.T) {
	srv := testServer(t)
	env := do(t, srv, "GET", "/api/v1/", "", http.StatusOK)
	if env.Status != "ok" {
		t.Errorf("status = %q, want ok", env.Status)
	}
	if env.RequestID == "" {
		t.Error("request_id is empty")
	}

	var data struct {
		Name      string   `json:"name"`
		Policies  []string `json:"policies"`
		Endpoints []struct {
			Path string `json:"path"`
		} `json:"endpoints"`
	}
	json.Unmarshal(env.Data, &data)
	if data.Name != "coresim API" {
		t.Errorf("name = %q, want coresim API", data.Name)
	}
	if len(data.Policies) != 4 {
		t.Errorf("policies = %v, want 4", data.Policies)
	}
	if len(data.Endpoints) < 5 {
		t.Errorf("endpoints count = %d, want >= 5", len(data.Endpoints))
	}
}

func TestHealth(t *testing.T) {
	srv := testServer(t)
	env := do(t, srv, "GET", "/api/v1/health", "", http.StatusOK)

	var data healthResponse
	json.Unmarshal(env.Data, &data)
	if data.Status != "healthy" {
		t.Errorf("status = %q, want healthy", data.Status)
	}
	if data.Version != Version {
		t.Errorf("version = %q, want %q", data.Version, Version)
	}
	if data.Cores != config.DefaultCores {
		t.Errorf("cores = %d, want %d", data.Cores, config.DefaultCores)
	}
	if data.Metrics {
		t.Error("metrics = true without a collector")
	}
}

func TestCreateRun(t *testing.T) {
	srv := testServer(t)
	run := createRun(t, srv, "/api/v1/runs", fcfsWorkload)

	if !strings.HasPrefix(run.ID, "run_") {
		t.Errorf("id = %q, want run_ prefix", run.ID)
	}
	if run.Outcome != model.OutcomeTerminated {
		t.Errorf("outcome = %q, want terminated", run.Outcome)
	}
	if run.Ticks != 3 {
		t.Errorf("ticks = %d, want 3", run.Ticks)
	}
	if run.Cores != config.DefaultCores || run.Hold != "tick" {
		t.Errorf("cores/hold = %d/%q, want %d/tick", run.Cores, run.Hold, config.DefaultCores)
	}
	if run.Result == nil || len(run.Result.Completed) != 1 {
		t.Fatalf("result = %+v, want one completed task", run.Result)
	}
}

func TestCreateRun_JSONBody(t *testing.T) {
	srv := testServer(t)
	body := `{"policy": "MLQ", "resources": {"a": 1, "b": 1, "c": 1}, "tasks": [{"name": "z1", "kind": "Z", "total": 2}]}`
	run := createRun(t, srv, "/api/v1/runs", body)
	if run.Policy != model.PolicyMLQ {
		t.Errorf("policy = %q, want MLQ", run.Policy)
	}
	if run.Outcome != model.OutcomeTerminated {
		t.Errorf("outcome = %q, want terminated", run.Outcome)
	}
}

func TestCreateRun_Livelock(t *testing.T) {
	srv := testServer(t)
	body := `policy: FCFS
resources: {a: 0, b: 1, c: 1}
tasks:
  - {name: p1, kind: X, total: 2}
`
	run := createRun(t, srv, "/api/v1/runs", body)
	if run.Outcome != model.OutcomeLivelock {
		t.Fatalf("outcome = %q, want livelock", run.Outcome)
	}
	if len(run.Result.Stuck) != 1 || run.Result.Stuck[0].Name != "p1" {
		t.Errorf("stuck = %+v, want [p1]", run.Result.Stuck)
	}
}

func TestCreateRun_ValidationError(t *testing.T) {
	srv := testServer(t)
	body := `policy: LOTTERY
resources: {a: 1, b: 1, c: 1}
tasks:
  - {name: p1, kind: Q, total: 0}
`
	env := do(t, srv, "POST", "/api/v1/runs", body, http.StatusBadRequest)
	if env.Status != "error" {
		t.Errorf("status = %q, want error", env.Status)
	}
	if env.Error == nil || env.Error.Code != model.ErrValidation {
		t.Fatalf("error = %+v, want VALIDATION_ERROR", env.Error)
	}
	fields := map[string]bool{}
	for _, d := range env.Error.Details {
		fields[d.Field] = true
	}
	for _, f := range []string{"policy", "tasks[0].kind", "tasks[0].total"} {
		if !fields[f] {
			t.Errorf("missing detail for %s in %+v", f, env.Error.Details)
		}
	}
}

func TestCreateRun_MalformedBody(t *testing.T) {
	srv := testServer(t)
	env := do(t, srv, "POST", "/api/v1/runs", "policy: [unclosed", http.StatusBadRequest)
	if env.Error == nil || env.Error.Code != model.ErrValidation {
		t.Errorf("error = %+v, want VALIDATION_ERROR", env.Error)
	}
}

func TestCreateRun_TickCap(t *testing.T) {
	st, err := store.NewSQLiteStore(":memory:", quietLogger())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer st.Close()
	if err := st.Migrate(context.Background()); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	cfg := config.DefaultServerConfig()
	cfg.MaxTicks = 2
	srv := New(cfg, st, quietLogger())

	body := `policy: FCFS
resources: {a: 1, b: 1, c: 1}
tasks:
  - {name: long, kind: X, total: 5}
options: {max_ticks: 50}
`
	run := createRun(t, srv, "/api/v1/runs", body)
	if run.Outcome != model.OutcomeMaxTicks || run.Ticks != 2 {
		t.Errorf("outcome/ticks = %s/%d, want max_ticks/2", run.Outcome, run.Ticks)
	}
}

func TestGetRun(t *testing.T) {
	srv := testServer(t)
	created := createRun(t, srv, "/api/v1/runs", fcfsWorkload)

	env := do(t, srv, "GET", "/api/v1/runs/"+created.ID, "", http.StatusOK)
	var run model.Run
	json.Unmarshal(env.Data, &run)
	if run.ID != created.ID {
		t.Errorf("id = %q, want %q", run.ID, created.ID)
	}
	if len(run.Workload.Tasks) != 1 || run.Workload.Tasks[0].Name != "p1" {
		t.Errorf("workload tasks = %+v", run.Workload.Tasks)
	}
}

func TestGetRun_NotFound(t *testing.T) {
	srv := testServer(t)
	env := do(t, srv, "GET", "/api/v1/runs/run_missing", "", http.StatusNotFound)
	if env.Error == nil || env.Error.Code != model.ErrNotFound {
		t.Errorf("error = %+v, want NOT_FOUND", env.Error)
	}
}

func TestListRuns(t *testing.T) {
	srv := testServer(t)
	createRun(t, srv, "/api/v1/runs", fcfsWorkload)
	createRun(t, srv, "/api/v1/runs", strings.Replace(fcfsWorkload, "FCFS", "RR", 1))

	env := do(t, srv, "GET", "/api/v1/runs", "", http.StatusOK)
	var runs []model.Run
	json.Unmarshal(env.Data, &runs)
	if len(runs) != 2 {
		t.Errorf("runs = %d, want 2", len(runs))
	}
	if env.Pagination == nil || env.Pagination.Total != 2 {
		t.Errorf("pagination = %+v, want total 2", env.Pagination)
	}

	env = do(t, srv, "GET", "/api/v1/runs?policy=rr", "", http.StatusOK)
	json.Unmarshal(env.Data, &runs)
	if len(runs) != 1 || runs[0].Policy != model.PolicyRR {
		t.Errorf("filtered runs = %+v, want one RR run", runs)
	}

	env = do(t, srv, "GET", "/api/v1/runs?limit=1", "", http.StatusOK)
	if env.Pagination == nil || env.Pagination.Limit != 1 || !env.Pagination.HasMore {
		t.Errorf("pagination = %+v, want limit 1 with more", env.Pagination)
	}
}

func TestListRuns_Empty(t *testing.T) {
	srv := testServer(t)
	env := do(t, srv, "GET", "/api/v1/runs", "", http.StatusOK)
	if string(env.Data) != "[]" {
		t.Errorf("data = %s, want []", env.Data)
	}
}

func TestListRuns_BadLimit(t *testing.T) {
	srv := testServer(t)
	env := do(t, srv, "GET", "/api/v1/runs?limit=abc", "", http.StatusBadRequest)
	if env.Error == nil || len(env.Error.Details) != 1 || env.Error.Details[0].Field != "limit" {
		t.Errorf("error = %+v, want a limit detail", env.Error)
	}
}

func TestListTicks(t *testing.T) {
	srv := testServer(t)
	traced := createRun(t, srv, "/api/v1/runs?trace=true", fcfsWorkload)

	env := do(t, srv, "GET", "/api/v1/runs/"+traced.ID+"/ticks", "", http.StatusOK)
	var ticks []model.TickSnapshot
	json.Unmarshal(env.Data, &ticks)
	if len(ticks) != 3 {
		t.Fatalf("ticks = %d, want 3", len(ticks))
	}
	for i, snap := range ticks {
		if snap.Tick != i+1 {
			t.Errorf("ticks[%d].Tick = %d, want %d", i, snap.Tick, i+1)
		}
		if len(snap.Reports) != config.DefaultCores {
			t.Errorf("ticks[%d] reports = %d, want %d", i, len(snap.Reports), config.DefaultCores)
		}
	}

	untraced := createRun(t, srv, "/api/v1/runs", fcfsWorkload)
	env = do(t, srv, "GET", "/api/v1/runs/"+untraced.ID+"/ticks", "", http.StatusOK)
	if env.Pagination == nil || env.Pagination.Total != 0 {
		t.Errorf("untraced pagination = %+v, want total 0", env.Pagination)
	}

	do(t, srv, "GET", "/api/v1/runs/run_missing/ticks", "", http.StatusNotFound)
}

func TestDeleteRun(t *testing.T) {
	srv := testServer(t)
	run := createRun(t, srv, "/api/v1/runs?trace=true", fcfsWorkload)

	do(t, srv, "DELETE", "/api/v1/runs/"+run.ID, "", http.StatusNoContent)
	do(t, srv, "GET", "/api/v1/runs/"+run.ID, "", http.StatusNotFound)
	do(t, srv, "DELETE", "/api/v1/runs/"+run.ID, "", http.StatusNotFound)
}

func TestMetricsEndpoint(t *testing.T) {
	srv := testServer(t, WithMetrics(metrics.NewCollector(false)))
	createRun(t, srv, "/api/v1/runs", fcfsWorkload)

	req := httptest.NewRequest("GET", "/metrics", nil)
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	body := w.Body.String()
	for _, want := range []string{
		`coresim_ticks_total{policy="FCFS"} 3`,
		`coresim_runs_total{outcome="terminated",policy="FCFS"} 1`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("metrics missing %q", want)
		}
	}
}

func TestMetricsEndpoint_Disabled(t *testing.T) {
	srv := testServer(t)
	req := httptest.NewRequest("GET", "/metrics", nil)
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)
	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
}

func TestResponseEnvelope_HasRequestID(t *testing.T) {
	srv := testServer(t)
	env := do(t, srv, "GET", "/api/v1/health", "", http.StatusOK)
	if !strings.HasPrefix(env.RequestID, "req_") {
		t.Errorf("request_id = %q, want req_ prefix", env.RequestID)
	}
}

func TestResponseEnvelope_XRequestIDHeader(t *testing.T) {
	srv := testServer(t)

	req := httptest.NewRequest("GET", "/api/v1/health", nil)
	req.Header.Set("X-Request-ID", "trace-42")
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)
	if got := w.Header().Get("X-Request-ID"); got != "trace-42" {
		t.Errorf("X-Request-ID = %q, want trace-42", got)
	}

	req = httptest.NewRequest("GET", "/api/v1/health", nil)
	req.Header.Set("X-Request-ID", "bad id with spaces")
	w = httptest.NewRecorder()
	srv.ServeHTTP(w, req)
	if got := w.Header().Get("X-Request-ID"); !strings.HasPrefix(got, "req_") {
		t.Errorf("X-Request-ID = %q, want a generated req_ id", got)
	}
}

func TestLoggingMiddleware(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo}))
	h := loggingMiddleware(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/api/v1/health", nil))
	if !strings.Contains(buf.String(), "status=418") {
		t.Errorf("log = %q, want status=418", buf.String())
	}

	buf.Reset()
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/metrics", nil))
	if buf.Len() != 0 {
		t.Errorf("metrics scrape logged at info: %q", buf.String())
	}
}

func TestUI(t *testing.T) {
	srv := testServer(t, WithUI())
	run := createRun(t, srv, "/api/v1/runs?trace=true", fcfsWorkload)

	req := httptest.NewRequest("GET", "/ui/runs/"+run.ID, nil)
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if !strings.Contains(w.Body.String(), "TOTAL CLOCKS:  3") {
		t.Error("run page missing the replayed trace")
	}

	srv = testServer(t)
	w = httptest.NewRecorder()
	srv.ServeHTTP(w, httptest.NewRequest("GET", "/ui/", nil))
	if w.Code != http.StatusNotFound {
		t.Errorf("ui without WithUI: status = %d, want 404", w.Code)
	}
}
