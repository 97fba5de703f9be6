package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/molscore/pkg/types/common"
	types "github.com/turtacn/molscore/pkg/types/scoring"
)

func newTestClient(t *testing.T, handler http.HandlerFunc, opts ...Option) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	opts = append([]Option{WithRetryWait(time.Millisecond, 5*time.Millisecond)}, opts...)
	c, err := NewClient(server.URL, opts...)
	require.NoError(t, err)
	return c
}

func writeEnvelope(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func TestNewClient(t *testing.T) {
	c, err := NewClient("http://api.example.com/")
	require.NoError(t, err)
	assert.Equal(t, "http://api.example.com", c.baseURL)
	assert.Equal(t, 3, c.retryMax)
	assert.Contains(t, c.userAgent, "molscore-go-sdk/")

	_, err = NewClient("")
	assert.ErrorIs(t, err, ErrInvalidConfig)
	_, err = NewClient("ftp://invalid")
	assert.ErrorIs(t, err, ErrInvalidConfig)
	_, err = NewClient("invalid-url")
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestOptions(t *testing.T) {
	hc := &http.Client{}
	c, err := NewClient("https://x", WithHTTPClient(hc), WithTimeout(time.Second), WithAPIKey("k"),
		WithRetryMax(1), WithRetryWait(time.Second, 2*time.Second), WithUserAgent("opt/1"))
	require.NoError(t, err)
	assert.Same(t, hc, c.httpClient)
	assert.Equal(t, time.Second, hc.Timeout)
	assert.Equal(t, "k", c.apiKey)
	assert.Equal(t, 1, c.retryMax)
	assert.Equal(t, time.Second, c.retryWaitMin)
	assert.Equal(t, 2*time.Second, c.retryWaitMax)
	assert.Equal(t, "opt/1", c.userAgent)

	c, err = NewClient("https://x", WithRetryMax(-1), WithRetryWait(0, time.Second))
	require.NoError(t, err)
	assert.Equal(t, 3, c.retryMax)
	assert.Equal(t, 500*time.Millisecond, c.retryWaitMin)
}

func TestScorers_List(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/api/v1/scorers", r.URL.Path)
		assert.Empty(t, r.Header.Get("Authorization"))
		writeEnvelope(w, http.StatusOK, common.NewSuccessResponse([]types.ScorerInfo{
			{Name: "no_sulphur", Sentinel: 0},
			{Name: "tanimoto", Sentinel: -1},
		}))
	})

	scorers, err := c.Scorers().List(context.Background())
	require.NoError(t, err)
	require.Len(t, scorers, 2)
	assert.Equal(t, "tanimoto", scorers[1].Name)
	assert.Equal(t, float32(-1), scorers[1].Sentinel)
}

func TestScorers_Score(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/v1/scorers/tanimoto/score", r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		assert.NotEmpty(t, r.Header.Get("X-Request-Id"))

		var req types.ScoreRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, []string{"CCO", "bad"}, req.SMILES)
		assert.Equal(t, 0.5, req.Options["k"])

		writeEnvelope(w, http.StatusOK, common.NewSuccessResponse(types.ScoreResponse{
			RequestID: "r", Scorer: "tanimoto", Scores: []float32{0.25, -1},
		}))
	}, WithAPIKey("secret"))

	resp, err := c.Scorers().Score(context.Background(), "tanimoto", []string{"CCO", "bad"}, map[string]any{"k": 0.5})
	require.NoError(t, err)
	assert.Equal(t, []float32{0.25, -1}, resp.Scores)
}

func TestScorers_UnknownScorer(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		resp := common.NewErrorResponse("SCORE_001", `unknown scoring function "qed"`)
		resp.Error.Detail = "scoring function must be one of [no_sulphur, tanimoto, activity_model]"
		resp.RequestID = "srv-1"
		writeEnvelope(w, http.StatusNotFound, resp)
	})

	_, err := c.Scorers().Score(context.Background(), "qed", []string{"C"}, nil)
	require.Error(t, err)
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.True(t, apiErr.IsNotFound())
	assert.Equal(t, "SCORE_001", apiErr.Code)
	assert.Equal(t, "srv-1", apiErr.RequestID)
	assert.Contains(t, apiErr.Error(), "activity_model")
	assert.EqualValues(t, 1, calls.Load(), "client errors are not retried")
}

func TestClient_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) < 3 {
			http.Error(w, "boom", http.StatusBadGateway)
			return
		}
		writeEnvelope(w, http.StatusOK, common.NewSuccessResponse([]types.ScorerInfo{}))
	})

	_, err := c.Scorers().List(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 3, calls.Load())
}

func TestClient_GivesUpAfterRetryMax(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}, WithRetryMax(2))

	_, err := c.Scorers().List(context.Background())
	require.Error(t, err)
	assert.EqualValues(t, 3, calls.Load())
}

func TestClient_ContextCancelled(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}, WithRetryWait(time.Second, time.Second))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := c.Scorers().List(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestClient_Health(t *testing.T) {
	var unhealthy atomic.Bool
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/readyz", r.URL.Path)
		report := common.HealthReport{Status: common.HealthUp}
		status := http.StatusOK
		if unhealthy.Load() {
			report = common.HealthReport{Status: common.HealthDown, Components: []common.ComponentHealth{
				{Name: "redis", Status: common.HealthDown, Message: "refused"},
			}}
			status = http.StatusServiceUnavailable
		}
		writeEnvelope(w, status, report)
	}, WithRetryMax(0))

	report, err := c.Health(context.Background())
	require.NoError(t, err)
	assert.Equal(t, common.HealthUp, report.Status)

	unhealthy.Store(true)
	report, err = c.Health(context.Background())
	require.Error(t, err)
	require.NotNil(t, report)
	assert.Equal(t, common.HealthDown, report.Status)
	assert.Equal(t, "redis", report.Components[0].Name)
}

func TestAPIError_Error(t *testing.T) {
	err := &APIError{StatusCode: 503, Code: "SCORE_003", Message: "resource unavailable", Detail: "data/clf.json", RequestID: "x"}
	assert.Equal(t, "molscore: SCORE_003 (HTTP 503): resource unavailable: data/clf.json [request_id=x]", err.Error())
	assert.True(t, err.IsUnavailable())
	assert.True(t, err.IsServerError())
	assert.False(t, err.IsNotFound())
}
