package api

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wyfcoding/binpack/batch"
	"github.com/wyfcoding/binpack/config"
	"github.com/wyfcoding/binpack/metrics"
	"github.com/wyfcoding/binpack/middleware"
)

type envelope struct {
	Code   int             `json:"code"`
	Msg    string          `json:"msg"`
	Data   json.RawMessage `json:"data"`
	Detail string          `json:"detail"`
}

func newTestRouter(t *testing.T, mutate func(*config.Config)) (http.Handler, *Handler) {
	t.Helper()
	cfg := config.Default()
	cfg.Server.Environment = "test"
	cfg.Batch.Heuristics = []string{"ffd"}
	if mutate != nil {
		mutate(cfg)
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	m := metrics.NewMetrics("api_test")
	h, err := NewHandler(cfg, metrics.NewSolverMetrics(m), logger)
	require.NoError(t, err)

	return NewRouter(cfg, h, m, logger), h
}

func do(t *testing.T, r http.Handler, method, path, body string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var env envelope
	if w.Body.Len() > 0 && strings.HasPrefix(w.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	}
	return w, env
}

const pairInstance = `{"name":"pair","capacity":10,"items":[{"id":1,"size":6,"demand":1},{"id":2,"size":5,"demand":1}]}`

func TestSolve(t *testing.T) {
	r, _ := newTestRouter(t, nil)

	w, env := do(t, r, http.MethodPost, "/v1/solve", `{"instance":`+pairInstance+`,"optimal":2}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, 0, env.Code)
	assert.NotEmpty(t, w.Header().Get(middleware.HeaderXRequestID))

	var rep batch.Report
	require.NoError(t, json.Unmarshal(env.Data, &rep))
	assert.Equal(t, "pair", rep.Instance)
	assert.Equal(t, 2, rep.Optimal)
	require.NotNil(t, rep.Diagnostics)
	assert.Equal(t, 2, rep.Diagnostics.BinsUsed)
	assert.Equal(t, 2, rep.Diagnostics.LowerBound)
	require.Len(t, rep.Baselines, 1)
	assert.Equal(t, 2, rep.Baselines[0].Bins)
}

func TestSolveWithOptions(t *testing.T) {
	r, _ := newTestRouter(t, nil)

	body := `{"instance":` + pairInstance + `,"options":{"strategy":"spectrum","seed":7,"trials":3,"repair":true,"lp_backend":"gonum"}}`
	w, env := do(t, r, http.MethodPost, "/v1/solve", body)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var rep batch.Report
	require.NoError(t, json.Unmarshal(env.Data, &rep))
	require.NotNil(t, rep.Diagnostics)
	assert.Equal(t, "spectrum", string(rep.Diagnostics.Strategy))
	assert.Equal(t, uint64(7), rep.Diagnostics.Seed)
	assert.Equal(t, 2, rep.Diagnostics.BinsUsed)

	w, env = do(t, r, http.MethodPost, "/v1/solve", `{"instance":`+pairInstance+`,"options":{"strategy":"b"}}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	require.NoError(t, json.Unmarshal(env.Data, &rep))
	assert.Equal(t, "spectrum", string(rep.Diagnostics.Strategy))

	w, env = do(t, r, http.MethodPost, "/v1/solve", `{"instance":`+pairInstance+`,"options":{"strategy":"magic"}}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, 400005, env.Code)
}

func TestSolveRejectsBadInput(t *testing.T) {
	r, _ := newTestRouter(t, nil)

	w, env := do(t, r, http.MethodPost, "/v1/solve", `{"optimal":2}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, 400002, env.Code)

	w, _ = do(t, r, http.MethodPost, "/v1/solve", `not json`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	oversized := `{"instance":{"name":"big","capacity":10,"items":[{"id":1,"size":12,"demand":1}]}}`
	w, env = do(t, r, http.MethodPost, "/v1/solve", oversized)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, 400102, env.Code)
	assert.Contains(t, env.Detail, "exceeds capacity")
}

func TestBatch(t *testing.T) {
	r, _ := newTestRouter(t, nil)

	body := `[{"instance":` + pairInstance + `},{"instance":{"name":"bad","capacity":0,"items":[]}}]`
	w, env := do(t, r, http.MethodPost, "/v1/batch", body)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var reps []batch.Report
	require.NoError(t, json.Unmarshal(env.Data, &reps))
	require.Len(t, reps, 2)
	assert.Empty(t, reps[0].Error)
	assert.NotEmpty(t, reps[1].Error)

	w, _ = do(t, r, http.MethodPost, "/v1/batch", `[]`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHeuristics(t *testing.T) {
	r, _ := newTestRouter(t, nil)

	sizes := []float64{0.5, 0.7, 0.5, 0.2, 0.4, 0.2, 0.5, 0.1, 0.6}
	items := make([]map[string]any, len(sizes))
	for i, s := range sizes {
		items[i] = map[string]any{"id": i + 1, "size": s, "demand": 1}
	}
	payload, err := json.Marshal(map[string]any{
		"instance":   map[string]any{"name": "classic", "capacity": 1, "items": items},
		"heuristics": []string{"ff", "ffd"},
		"details":    true,
	})
	require.NoError(t, err)
	body := string(payload)

	w, env := do(t, r, http.MethodPost, "/v1/heuristics", body)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var out struct {
		LowerBound int               `json:"lower_bound"`
		Results    []HeuristicResult `json:"results"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &out))
	assert.Equal(t, 4, out.LowerBound)
	require.Len(t, out.Results, 2)
	assert.Equal(t, 5, out.Results[0].Bins)
	assert.Equal(t, 4, out.Results[1].Bins)
	assert.NotEmpty(t, out.Results[1].Packing)

	w, env = do(t, r, http.MethodPost, "/v1/heuristics", `{"instance":`+pairInstance+`,"heuristics":["nope"]}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, 400106, env.Code)
}

func TestProbesAndMetrics(t *testing.T) {
	r, h := newTestRouter(t, nil)

	w, _ := do(t, r, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, w.Code)

	w, _ = do(t, r, http.MethodGet, "/readyz", "")
	assert.Equal(t, http.StatusOK, w.Code)
	h.SetReady(false)
	w, _ = do(t, r, http.MethodGet, "/readyz", "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	do(t, r, http.MethodPost, "/v1/solve", `{"instance":`+pairInstance+`}`)

	w, env := do(t, r, http.MethodGet, "/v1/stats", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"solved":1,"failed":0,"shortfalls":0}`, string(env.Data))

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	mw := httptest.NewRecorder()
	r.ServeHTTP(mw, req)
	require.Equal(t, http.StatusOK, mw.Code)
	assert.Contains(t, mw.Body.String(), "binpack_solve_runs_total")
	assert.Contains(t, mw.Body.String(), "http_server_requests_total")
}

func TestRateLimitAndBodyLimit(t *testing.T) {
	r, _ := newTestRouter(t, func(c *config.Config) {
		c.Server.RateLimit = 0.001
		c.Server.RateBurst = 1
		c.Server.MaxBodyBytes = 1 << 10
	})

	w, _ := do(t, r, http.MethodPost, "/v1/solve", `{"instance":`+pairInstance+`}`)
	assert.Equal(t, http.StatusOK, w.Code)
	w, _ = do(t, r, http.MethodPost, "/v1/solve", `{"instance":`+pairInstance+`}`)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)

	big := bytes.Repeat([]byte(" "), 2<<10)
	w, _ = do(t, r, http.MethodPost, "/v1/heuristics", string(big))
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
}

func TestReload(t *testing.T) {
	r, h := newTestRouter(t, nil)

	next := config.Default()
	next.Server.Environment = "test"
	next.Rounding.Strategy = "spectrum"
	require.NoError(t, h.Reload(next))

	w, env := do(t, r, http.MethodPost, "/v1/solve", `{"instance":`+pairInstance+`}`)
	require.Equal(t, http.StatusOK, w.Code)
	var rep batch.Report
	require.NoError(t, json.Unmarshal(env.Data, &rep))
	assert.Equal(t, "spectrum", string(rep.Diagnostics.Strategy))

	bad := config.Default()
	bad.Solver.LPBackend = "cplex"
	assert.Error(t, h.Reload(bad))
	assert.Equal(t, "spectrum", h.cfg.Load().Rounding.Strategy)
}
