package metrics

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	ferrors "git.home.luguber.info/inful/sorrydb-sync/internal/foundation/errors"
)

func TestPrometheusRecorder(t *testing.T) {
	reg := prom.NewRegistry()
	pr := NewPrometheusRecorder(reg)
	pr.ObserveStepDuration("update_db", 90*time.Second)
	pr.IncStepResult("update_db", ResultSuccess)
	pr.IncStepResult("push_tags", ResultFailed)
	pr.ObserveRunDuration(2 * time.Minute)
	pr.IncRunOutcome("updated")
	pr.SetLastSuccess(time.Unix(1709632800, 0))

	mfs, err := reg.Gather()
	require.NoError(t, err)
	require.Len(t, mfs, 5)

	values := map[string]float64{}
	for _, mf := range mfs {
		for _, m := range mf.GetMetric() {
			switch {
			case m.GetCounter() != nil:
				values[mf.GetName()] += m.GetCounter().GetValue()
			case m.GetGauge() != nil:
				values[mf.GetName()] = m.GetGauge().GetValue()
			}
		}
	}
	require.InDelta(t, 1, values["sorrydb_sync_run_outcomes_total"], 0)
	require.InDelta(t, 2, values["sorrydb_sync_step_results_total"], 0)
	require.InDelta(t, 1709632800, values["sorrydb_sync_last_success_timestamp_seconds"], 0)
}

func TestNilPrometheusRecorderIsSafe(t *testing.T) {
	var pr *PrometheusRecorder
	pr.IncRunOutcome("failed")
	pr.ObserveStepDuration("stage", time.Second)
}

func TestHTTPHandler(t *testing.T) {
	pr := NewPrometheusRecorder(nil)
	pr.IncRunOutcome("no_changes")

	srv := httptest.NewServer(HTTPHandler(pr.Registry()))
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.Contains(t, string(body), `sorrydb_sync_run_outcomes_total{outcome="no_changes"} 1`)
}

func TestPush(t *testing.T) {
	var method, path string
	gw := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		method, path = r.Method, r.URL.Path
		w.WriteHeader(http.StatusOK)
	}))
	defer gw.Close()

	pr := NewPrometheusRecorder(nil)
	pr.IncRunOutcome("updated")

	require.NoError(t, Push(context.Background(), gw.URL, "sorrydb_sync", pr.Registry()))
	require.Equal(t, http.MethodPut, method)
	require.True(t, strings.HasSuffix(path, "/metrics/job/sorrydb_sync"), path)
}

func TestPush_GatewayError(t *testing.T) {
	gw := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer gw.Close()

	err := Push(context.Background(), gw.URL, "sorrydb_sync", NewPrometheusRecorder(nil).Registry())
	require.Error(t, err)
	require.True(t, ferrors.HasCategory(err, ferrors.CategoryNetwork))
}
