package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSolverMetricsObserve(t *testing.T) {
	m := NewMetrics("test")
	s := NewSolverMetrics(m)

	s.Observe("glue", OutcomeConverged, 12, 40, 2.5, 0, 150*time.Millisecond)
	s.Observe("glue", OutcomeShortfall, 8, 30, 0, 3, time.Millisecond)
	s.Failed("spectrum")

	assert.InDelta(t, 1, testutil.ToFloat64(s.Runs.WithLabelValues("glue", OutcomeConverged)), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(s.Runs.WithLabelValues("spectrum", OutcomeFailed)), 0)
	assert.InDelta(t, 3, testutil.ToFloat64(s.Shortfalls.WithLabelValues("glue")), 0)

	var nilMetrics *SolverMetrics
	nilMetrics.Observe("glue", OutcomeConverged, 1, 1, 0, 0, 0)
	nilMetrics.Failed("glue")
}

func TestHandlerExposesMetrics(t *testing.T) {
	m := NewMetrics("test")
	m.RegisterBuildInfo("binpack", "v1")
	m.RegisterBuildInfo("binpack", "v2")
	m.HTTPRequestsTotal.WithLabelValues("GET", "/healthz", "200").Inc()

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body := rec.Body.String()
	assert.Contains(t, body, `build_info{service="binpack",version="v1"} 1`)
	assert.NotContains(t, body, `version="v2"`)
	assert.Contains(t, body, "http_server_requests_total")
}
