package scoring

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domain "github.com/turtacn/molscore/internal/domain/scoring"
	"github.com/turtacn/molscore/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/molscore/internal/infrastructure/monitoring/prometheus"
	"github.com/turtacn/molscore/internal/testutil"
	"github.com/turtacn/molscore/pkg/errors"
	"github.com/turtacn/molscore/pkg/types/common"
	types "github.com/turtacn/molscore/pkg/types/scoring"
)

// lengthScorer scores every identifier with its length and counts the
// identifiers it was asked to score.
type lengthScorer struct {
	scored atomic.Int64
}

func (s *lengthScorer) Name() string { return "length" }

func (s *lengthScorer) Score(_ context.Context, smiles []string) ([]float32, error) {
	s.scored.Add(int64(len(smiles)))
	out := make([]float32, len(smiles))
	for i, v := range smiles {
		out[i] = float32(len(v))
	}
	return out, nil
}

type countingRegistry struct {
	registry *domain.Registry
	builds   atomic.Int64
	scorer   *lengthScorer

	mu   sync.Mutex
	opts []domain.Options
}

func newCountingRegistry(t *testing.T) *countingRegistry {
	t.Helper()
	c := &countingRegistry{scorer: &lengthScorer{}}
	c.registry = domain.NewRegistry(domain.Dependencies{Logger: logging.NewNopLogger()})
	require.NoError(t, c.registry.Register("length", func(_ context.Context, opts domain.Options, _ domain.Dependencies) (domain.Scorer, error) {
		c.builds.Add(1)
		c.mu.Lock()
		c.opts = append(c.opts, opts)
		c.mu.Unlock()
		return c.scorer, nil
	}))
	return c
}

func TestNewService_RequiresRegistry(t *testing.T) {
	_, err := NewService(Config{})
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeInvalidParam))
}

func TestService_ListScorers(t *testing.T) {
	loader := &testutil.StaticLoader{Err: errors.NotFound("no model")}
	registry := domain.NewDefaultRegistry(domain.Dependencies{Logger: logging.NewNopLogger(), ModelLoader: loader})
	svc, err := NewService(Config{Registry: registry})
	require.NoError(t, err)

	got := svc.ListScorers(context.Background())
	assert.Equal(t, []types.ScorerInfo{
		{Name: "no_sulphur", Sentinel: 0},
		{Name: "tanimoto", Sentinel: -1},
		{Name: "activity_model", Sentinel: -1},
	}, got)
	assert.Empty(t, loader.Locations(), "listing must not construct scorers")
}

func TestService_Score_NoSulphur(t *testing.T) {
	registry := domain.NewDefaultRegistry(domain.Dependencies{Logger: logging.NewNopLogger()})
	svc, err := NewService(Config{Registry: registry})
	require.NoError(t, err)

	resp, err := svc.Score(context.Background(), &types.ScoreRequest{
		RequestID: "req-1",
		Scorer:    "no_sulphur",
		SMILES:    []string{"CCO", "CCS", "not_a_smiles"},
	})
	require.NoError(t, err)
	assert.Equal(t, "req-1", resp.RequestID)
	assert.Equal(t, "no_sulphur", resp.Scorer)
	assert.Equal(t, []float32{1, -1, 0}, resp.Scores)
}

func TestService_Score_AssignsRequestID(t *testing.T) {
	c := newCountingRegistry(t)
	svc, err := NewService(Config{Registry: c.registry})
	require.NoError(t, err)

	resp, err := svc.Score(context.Background(), &types.ScoreRequest{Scorer: "length", SMILES: []string{"C"}})
	require.NoError(t, err)
	assert.NoError(t, common.ID(resp.RequestID).Validate())
}

func TestService_Score_UnknownScorer(t *testing.T) {
	c := newCountingRegistry(t)
	svc, err := NewService(Config{Registry: c.registry})
	require.NoError(t, err)

	_, err = svc.Score(context.Background(), &types.ScoreRequest{Scorer: "qed", SMILES: []string{"C"}})
	require.Error(t, err)
	assert.True(t, errors.IsUnknownScorer(err))
}

func TestService_Score_Validation(t *testing.T) {
	c := newCountingRegistry(t)
	svc, err := NewService(Config{Registry: c.registry, MaxBatchSize: 2})
	require.NoError(t, err)

	_, err = svc.Score(context.Background(), nil)
	assert.True(t, errors.IsCode(err, errors.ErrCodeInvalidParam))

	_, err = svc.Score(context.Background(), &types.ScoreRequest{SMILES: []string{"C"}})
	assert.True(t, errors.IsCode(err, errors.ErrCodeInvalidParam))

	_, err = svc.Score(context.Background(), &types.ScoreRequest{Scorer: "length", SMILES: []string{"C", "CC", "CCC"}})
	assert.True(t, errors.IsCode(err, errors.ErrCodeInvalidParam))
	assert.Zero(t, c.builds.Load())
}

func TestService_Score_EmptyBatch(t *testing.T) {
	c := newCountingRegistry(t)
	svc, err := NewService(Config{Registry: c.registry})
	require.NoError(t, err)

	resp, err := svc.Score(context.Background(), &types.ScoreRequest{Scorer: "length"})
	require.NoError(t, err)
	assert.Empty(t, resp.Scores)
}

func TestService_PoolsScorersPerOptions(t *testing.T) {
	c := newCountingRegistry(t)
	svc, err := NewService(Config{Registry: c.registry})
	require.NoError(t, err)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Score(ctx, &types.ScoreRequest{Scorer: "length", SMILES: []string{"CC"}})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	assert.EqualValues(t, 1, c.builds.Load())

	_, err = svc.Score(ctx, &types.ScoreRequest{Scorer: "length", SMILES: []string{"CC"}, Options: map[string]any{"k": 0.5}})
	require.NoError(t, err)
	assert.EqualValues(t, 2, c.builds.Load())

	// numerically equal options share a scorer
	_, err = svc.Score(ctx, &types.ScoreRequest{Scorer: "length", SMILES: []string{"CC"}, Options: map[string]any{"k": "0.5"}})
	require.NoError(t, err)
	assert.EqualValues(t, 2, c.builds.Load())
}

func TestService_MergesDefaultOptions(t *testing.T) {
	c := newCountingRegistry(t)
	svc, err := NewService(Config{
		Registry: c.registry,
		Defaults: map[string]domain.Options{"length": {"k": 0.3, "reference": "CCO"}},
	})
	require.NoError(t, err)

	_, err = svc.Score(context.Background(), &types.ScoreRequest{
		Scorer: "length", SMILES: []string{"C"}, Options: map[string]any{"k": 0.9},
	})
	require.NoError(t, err)

	require.Len(t, c.opts, 1)
	assert.Equal(t, domain.Options{"k": 0.9, "reference": "CCO"}, c.opts[0])
}

func TestService_FailedConstructionIsNotPooled(t *testing.T) {
	loader := &testutil.StaticLoader{Err: errors.NotFound("no model")}
	registry := domain.NewDefaultRegistry(domain.Dependencies{Logger: logging.NewNopLogger(), ModelLoader: loader})
	svc, err := NewService(Config{Registry: registry})
	require.NoError(t, err)

	req := &types.ScoreRequest{Scorer: "activity_model", SMILES: []string{"CCO"}}
	_, err = svc.Score(context.Background(), req)
	assert.True(t, errors.IsResourceUnavailable(err))
	_, err = svc.Score(context.Background(), req)
	assert.True(t, errors.IsResourceUnavailable(err))
	assert.Len(t, loader.Locations(), 2)
}

func TestService_ConstructionOutlivesCancelledCaller(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	var builds atomic.Int64
	var buildErr atomic.Value
	registry := domain.NewRegistry(domain.Dependencies{Logger: logging.NewNopLogger()})
	require.NoError(t, registry.Register("slow", func(ctx context.Context, _ domain.Options, _ domain.Dependencies) (domain.Scorer, error) {
		builds.Add(1)
		close(started)
		<-release
		buildErr.Store(fmt.Sprint(ctx.Err()))
		return &lengthScorer{}, nil
	}))
	svc, err := NewService(Config{Registry: registry})
	require.NoError(t, err)
	req := &types.ScoreRequest{Scorer: "slow", SMILES: []string{"CC"}}

	ctx, cancel := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		_, err := svc.Score(ctx, req)
		firstErr <- err
	}()
	<-started
	cancel()
	select {
	case err := <-firstErr:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("cancelled caller did not return")
	}

	second := make(chan *types.ScoreResponse, 1)
	go func() {
		resp, err := svc.Score(context.Background(), req)
		assert.NoError(t, err)
		second <- resp
	}()
	close(release)
	select {
	case resp := <-second:
		require.NotNil(t, resp)
		assert.Equal(t, []float32{2}, resp.Scores)
	case <-time.After(5 * time.Second):
		t.Fatal("second caller did not receive the scorer")
	}
	assert.EqualValues(t, 1, builds.Load())
	assert.Equal(t, "<nil>", buildErr.Load())
}

func TestService_CacheServesRepeatedIdentifiers(t *testing.T) {
	c := newCountingRegistry(t)
	cache, err := domain.NewLRUCache(64)
	require.NoError(t, err)
	svc, err := NewService(Config{Registry: c.registry, Cache: cache})
	require.NoError(t, err)
	ctx := context.Background()

	first, err := svc.Score(ctx, &types.ScoreRequest{Scorer: "length", SMILES: []string{"C", "CC"}})
	require.NoError(t, err)
	second, err := svc.Score(ctx, &types.ScoreRequest{Scorer: "length", SMILES: []string{"CC", "C", "CCC"}})
	require.NoError(t, err)

	assert.Equal(t, []float32{1, 2}, first.Scores)
	assert.Equal(t, []float32{2, 1, 3}, second.Scores)
	assert.EqualValues(t, 3, c.scorer.scored.Load())
}

func TestService_RecordsMetrics(t *testing.T) {
	collector, err := prometheus.NewMetricsCollector(prometheus.CollectorConfig{Namespace: "molscore"}, nil)
	require.NoError(t, err)
	metrics := prometheus.NewScoringMetrics(collector)

	c := newCountingRegistry(t)
	svc, err := NewService(Config{Registry: c.registry, Metrics: metrics})
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		_, err = svc.Score(context.Background(), &types.ScoreRequest{Scorer: "length", SMILES: []string{"C"}})
		require.NoError(t, err)
	}
	_, _ = svc.Score(context.Background(), &types.ScoreRequest{Scorer: "nope", SMILES: []string{"C"}})

	w := httptest.NewRecorder()
	collector.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body := w.Body.String()
	assert.Contains(t, body, `molscore_score_requests_total{scorer="length",status="ok"} 2`)
	assert.Contains(t, body, `molscore_scorer_constructions_total{scorer="length",status="ok"} 1`)
	assert.Contains(t, body, `molscore_scorer_constructions_total{scorer="nope",status="error"} 1`)
	assert.Contains(t, body, `molscore_scorer_pool_lookups_total{result="hit"} 1`)
	assert.Contains(t, body, `molscore_scorer_pool_lookups_total{result="miss"} 2`)
}

func newActivityRegistry(loader domain.ClassifierLoader) *domain.Registry {
	return domain.NewDefaultRegistry(domain.Dependencies{Logger: logging.NewNopLogger(), ModelLoader: loader})
}
