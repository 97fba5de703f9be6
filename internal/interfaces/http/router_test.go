package http

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	app "github.com/turtacn/molscore/internal/application/scoring"
	domain "github.com/turtacn/molscore/internal/domain/scoring"
	"github.com/turtacn/molscore/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/molscore/internal/infrastructure/monitoring/prometheus"
	"github.com/turtacn/molscore/internal/interfaces/http/handlers"
	"github.com/turtacn/molscore/internal/testutil"
	"github.com/turtacn/molscore/pkg/errors"
	"github.com/turtacn/molscore/pkg/types/common"
	types "github.com/turtacn/molscore/pkg/types/scoring"
)

type testEnv struct {
	handler   http.Handler
	collector prometheus.MetricsCollector
	runs      *testutil.MemoryRunStore
}

func newTestEnv(t *testing.T, checkers ...handlers.HealthChecker) *testEnv {
	t.Helper()
	loader := &testutil.StaticLoader{Err: errors.NotFound("no model")}
	registry := domain.NewDefaultRegistry(domain.Dependencies{Logger: logging.NewNopLogger(), ModelLoader: loader})
	runs := &testutil.MemoryRunStore{}
	svc, err := app.NewService(app.Config{Registry: registry, MaxBatchSize: 4, Runs: runs})
	require.NoError(t, err)

	collector, err := prometheus.NewMetricsCollector(prometheus.CollectorConfig{Namespace: "molscore"}, nil)
	require.NoError(t, err)

	return &testEnv{
		collector: collector,
		runs:      runs,
		handler: NewRouter(RouterConfig{
			ScoringHandler:   handlers.NewScoringHandler(svc, 1024, nil),
			RunsHandler:      handlers.NewRunsHandler(runs, nil),
			HealthHandler:    handlers.NewHealthHandler("test", checkers...),
			Logger:           testutil.NewMockLogger(),
			Metrics:          prometheus.NewScoringMetrics(collector),
			MetricsCollector: collector,
		}),
	}
}

func (e *testEnv) do(method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	}
	w := httptest.NewRecorder()
	e.handler.ServeHTTP(w, req)
	return w
}

func TestRouter_ListScorers(t *testing.T) {
	env := newTestEnv(t)
	w := env.do(http.MethodGet, "/api/v1/scorers", "")
	require.Equal(t, http.StatusOK, w.Code)

	var resp common.APIResponse[[]types.ScorerInfo]
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.NotEmpty(t, resp.RequestID)
	require.Len(t, resp.Data, 3)
	assert.Equal(t, "no_sulphur", resp.Data[0].Name)
}

func TestRouter_Score(t *testing.T) {
	env := newTestEnv(t)
	w := env.do(http.MethodPost, "/api/v1/scorers/no_sulphur/score",
		`{"request_id":"r-1","smiles":["CCO","CCS","not_a_smiles"]}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp common.APIResponse[types.ScoreResponse]
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "r-1", resp.Data.RequestID)
	assert.Equal(t, "no_sulphur", resp.Data.Scorer)
	assert.Equal(t, []float32{1, -1, 0}, resp.Data.Scores)
}

func TestRouter_ScoreErrors(t *testing.T) {
	tests := []struct {
		name   string
		path   string
		body   string
		status int
		code   errors.ErrorCode
	}{
		{"unknown scorer", "/api/v1/scorers/qed/score", `{"smiles":["C"]}`, http.StatusNotFound, errors.ErrCodeScorerNotFound},
		{"malformed body", "/api/v1/scorers/no_sulphur/score", `{"smiles":`, http.StatusBadRequest, errors.ErrCodeInvalidParam},
		{"oversized batch", "/api/v1/scorers/no_sulphur/score", `{"smiles":["C","C","C","C","C"]}`, http.StatusBadRequest, errors.ErrCodeInvalidParam},
		{"body too large", "/api/v1/scorers/no_sulphur/score", `{"smiles":["` + strings.Repeat("C", 2048) + `"]}`, http.StatusBadRequest, errors.ErrCodeInvalidParam},
		{"bad option", "/api/v1/scorers/tanimoto/score", `{"smiles":["C"],"options":{"k":0}}`, http.StatusBadRequest, errors.ErrCodeScorerConfigInvalid},
		{"model unavailable", "/api/v1/scorers/activity_model/score", `{"smiles":["C"]}`, http.StatusServiceUnavailable, errors.ErrCodeResourceUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			w := env.do(http.MethodPost, tt.path, tt.body)
			assert.Equal(t, tt.status, w.Code, w.Body.String())

			var resp common.APIResponse[any]
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			assert.False(t, resp.Success)
			require.NotNil(t, resp.Error)
			assert.Equal(t, tt.code.String(), resp.Error.Code)
		})
	}
}

func TestRouter_UnknownScorerListsValidNames(t *testing.T) {
	env := newTestEnv(t)
	w := env.do(http.MethodPost, "/api/v1/scorers/qed/score", `{"smiles":["C"]}`)

	var resp common.APIResponse[any]
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotNil(t, resp.Error)
	assert.Contains(t, resp.Error.Detail, "no_sulphur")
	assert.Contains(t, resp.Error.Detail, "activity_model")
}

func TestRouter_Health(t *testing.T) {
	env := newTestEnv(t, handlers.CheckFunc{Component: "cache", Fn: func(context.Context) error { return nil }})
	assert.Equal(t, http.StatusOK, env.do(http.MethodGet, "/healthz", "").Code)

	w := env.do(http.MethodGet, "/readyz", "")
	require.Equal(t, http.StatusOK, w.Code)
	var report common.HealthReport
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &report))
	assert.Equal(t, common.HealthUp, report.Status)
	require.Len(t, report.Components, 1)
	assert.Equal(t, "cache", report.Components[0].Name)
}

func TestRouter_ReadinessFailure(t *testing.T) {
	env := newTestEnv(t, handlers.CheckFunc{Component: "redis", Fn: func(context.Context) error {
		return fmt.Errorf("connection refused")
	}})
	w := env.do(http.MethodGet, "/readyz", "")
	require.Equal(t, http.StatusServiceUnavailable, w.Code)

	var report common.HealthReport
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &report))
	assert.Equal(t, common.HealthDown, report.Status)
	assert.Equal(t, "connection refused", report.Components[0].Message)
}

func TestRouter_Metrics(t *testing.T) {
	env := newTestEnv(t)
	env.do(http.MethodPost, "/api/v1/scorers/no_sulphur/score", `{"smiles":["C"]}`)
	env.do(http.MethodPost, "/api/v1/scorers/tanimoto/score", `{"smiles":["C"]}`)

	w := env.do(http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, `molscore_http_requests_total{code="200",method="POST",route="/api/v1/scorers/{name}/score"} 2`)
}

func TestRouter_Runs(t *testing.T) {
	env := newTestEnv(t)
	env.do(http.MethodPost, "/api/v1/scorers/no_sulphur/score", `{"request_id":"r-1","smiles":["CCO","CCS"]}`)
	env.do(http.MethodPost, "/api/v1/scorers/tanimoto/score", `{"request_id":"r-2","smiles":["c1ccccc1"]}`)
	env.do(http.MethodPost, "/api/v1/scorers/tanimoto/score", `{"request_id":"r-3","smiles":["C"],"options":{"k":0}}`)

	w := env.do(http.MethodGet, "/api/v1/runs/r-1", "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var one common.APIResponse[types.ScoreRun]
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &one))
	assert.Equal(t, "no_sulphur", one.Data.Scorer)
	assert.Equal(t, types.SourceHTTP, one.Data.Source)
	assert.Equal(t, 2, one.Data.Molecules)
	assert.Equal(t, 0.0, one.Data.MeanScore)
	assert.Equal(t, 1.0, one.Data.MaxScore)

	w = env.do(http.MethodGet, "/api/v1/runs?scorer=tanimoto", "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var list common.APIResponse[[]types.ScoreRun]
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	require.Len(t, list.Data, 2)
	failed := 0
	for _, run := range list.Data {
		if run.Failed() {
			failed++
			assert.Equal(t, errors.ErrCodeScorerConfigInvalid.String(), run.ErrorCode)
		}
	}
	assert.Equal(t, 1, failed)
}

func TestRouter_RunsErrors(t *testing.T) {
	env := newTestEnv(t)
	tests := []struct {
		path   string
		status int
		code   errors.ErrorCode
	}{
		{"/api/v1/runs/missing", http.StatusNotFound, errors.ErrCodeNotFound},
		{"/api/v1/runs?since=yesterday", http.StatusBadRequest, errors.ErrCodeInvalidParam},
		{"/api/v1/runs?limit=-1", http.StatusBadRequest, errors.ErrCodeInvalidParam},
		{"/api/v1/runs?limit=ten", http.StatusBadRequest, errors.ErrCodeInvalidParam},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			w := env.do(http.MethodGet, tt.path, "")
			assert.Equal(t, tt.status, w.Code, w.Body.String())
			var resp common.APIResponse[any]
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			require.NotNil(t, resp.Error)
			assert.Equal(t, tt.code.String(), resp.Error.Code)
		})
	}
}

func TestRouter_RunsEmptyList(t *testing.T) {
	env := newTestEnv(t)
	w := env.do(http.MethodGet, "/api/v1/runs?limit=5", "")
	require.Equal(t, http.StatusOK, w.Code)
	var resp common.APIResponse[[]types.ScoreRun]
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Empty(t, resp.Data)
}

func TestRouter_AuthGuardsAPIOnly(t *testing.T) {
	deny := func(http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
		})
	}
	h := NewRouter(RouterConfig{
		RunsHandler:   handlers.NewRunsHandler(&testutil.MemoryRunStore{}, nil),
		HealthHandler: handlers.NewHealthHandler("test"),
		Auth:          deny,
	})

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/runs", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}
