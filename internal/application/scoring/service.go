// Package scoring is the application service shared by the HTTP API, the
// CLI and the Kafka worker. It constructs scorers lazily, reuses them per
// configuration and decorates them with metrics and an optional score cache.
package scoring

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	domain "github.com/turtacn/molscore/internal/domain/scoring"
	"github.com/turtacn/molscore/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/molscore/internal/infrastructure/monitoring/prometheus"
	"github.com/turtacn/molscore/pkg/errors"
	"github.com/turtacn/molscore/pkg/types/common"
	types "github.com/turtacn/molscore/pkg/types/scoring"
)

// Service scores batches of SMILES strings by scorer name.
type Service interface {
	ListScorers(ctx context.Context) []types.ScorerInfo
	Score(ctx context.Context, req *types.ScoreRequest) (*types.ScoreResponse, error)
}

// Config wires a Service.
type Config struct {
	Registry *domain.Registry
	// Cache is optional. When set every pooled scorer is memoised.
	Cache domain.ScoreCache
	// Metrics is optional.
	Metrics *prometheus.ScoringMetrics
	// Defaults are per-scorer options that request options override.
	Defaults map[string]domain.Options
	// ModelLocation is folded into the activity_model cache identity so a
	// new classifier never reads scores cached for the old one.
	ModelLocation string
	// MaxBatchSize rejects larger batches when positive.
	MaxBatchSize int
	// Runs is optional. When set every request that names a scorer is
	// recorded, failures included.
	Runs   RunRecorder
	Logger logging.Logger
}

// scorerBuildTimeout bounds scorer construction, which may load a
// classifier from object storage.
const scorerBuildTimeout = 2 * time.Minute

type serviceImpl struct {
	cfg    Config
	logger logging.Logger

	mu    sync.RWMutex
	pool  map[string]domain.Scorer
	group singleflight.Group
}

// NewService creates a scoring service.
func NewService(cfg Config) (Service, error) {
	if cfg.Registry == nil {
		return nil, errors.InvalidParam("scorer registry is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.NewNopLogger()
	}
	return &serviceImpl{
		cfg:    cfg,
		logger: cfg.Logger.Named("scoring"),
		pool:   make(map[string]domain.Scorer),
	}, nil
}

func (s *serviceImpl) ListScorers(_ context.Context) []types.ScorerInfo {
	names := s.cfg.Registry.Names()
	out := make([]types.ScorerInfo, 0, len(names))
	for _, name := range names {
		sentinel, _ := domain.Sentinel(name)
		out = append(out, types.ScorerInfo{Name: name, Sentinel: sentinel})
	}
	return out
}

func (s *serviceImpl) Score(ctx context.Context, req *types.ScoreRequest) (*types.ScoreResponse, error) {
	if req == nil || req.Scorer == "" {
		return nil, errors.InvalidParam("scorer name is required")
	}
	if s.cfg.MaxBatchSize > 0 && len(req.SMILES) > s.cfg.MaxBatchSize {
		return nil, errors.Newf(errors.ErrCodeInvalidParam, "batch of %d exceeds limit of %d", len(req.SMILES), s.cfg.MaxBatchSize)
	}

	requestID := req.RequestID
	if requestID == "" {
		requestID = string(common.NewID())
	}

	opts := s.mergeOptions(req.Scorer, req.Options)
	start := time.Now()
	scores, valid, err := s.score(ctx, req.Scorer, opts, req.SMILES)
	elapsed := time.Since(start)
	s.record(ctx, requestID, req, opts, scored{scores: scores, valid: valid}, elapsed, err)
	if err != nil {
		s.logger.Error("scoring failed",
			logging.String("request_id", requestID),
			logging.String("scorer", req.Scorer),
			logging.Int("batch", len(req.SMILES)),
			logging.Err(err),
		)
		return nil, err
	}

	s.logger.Debug("batch scored",
		logging.String("request_id", requestID),
		logging.String("scorer", req.Scorer),
		logging.Int("batch", len(req.SMILES)),
		logging.Duration("duration", elapsed),
	)
	return &types.ScoreResponse{
		RequestID:  requestID,
		Scorer:     req.Scorer,
		Scores:     scores,
		DurationMs: elapsed.Milliseconds(),
	}, nil
}

// score returns the scores and the number of valid identifiers the scorer
// reported.
func (s *serviceImpl) score(ctx context.Context, name string, opts domain.Options, smiles []string) ([]float32, int, error) {
	scorer, err := s.scorer(ctx, name, opts)
	if err != nil {
		return nil, 0, err
	}
	valid := 0
	ctx = domain.WithValidityReport(ctx, func(mask []bool) {
		valid = 0
		for _, ok := range mask {
			if ok {
				valid++
			}
		}
	})
	scores, err := scorer.Score(ctx, smiles)
	return scores, valid, err
}

func (s *serviceImpl) mergeOptions(name string, reqOpts map[string]any) domain.Options {
	defaults := s.cfg.Defaults[name]
	merged := make(domain.Options, len(defaults)+len(reqOpts))
	for k, v := range defaults {
		merged[k] = v
	}
	for k, v := range reqOpts {
		merged[k] = v
	}
	return merged
}

func (s *serviceImpl) identity(name string, opts domain.Options) string {
	if name == domain.NameActivityModel {
		return domain.CacheIdentity(name, opts, s.cfg.ModelLocation)
	}
	return domain.CacheIdentity(name, opts)
}

// scorer returns the pooled scorer for (name, opts), constructing it at
// most once even under concurrent first use. Failed constructions are not
// pooled.
func (s *serviceImpl) scorer(ctx context.Context, name string, opts domain.Options) (domain.Scorer, error) {
	id := s.identity(name, opts)

	s.mu.RLock()
	sc, ok := s.pool[id]
	s.mu.RUnlock()
	if ok {
		s.countLookup("hit")
		return sc, nil
	}
	s.countLookup("miss")

	// Construction is shared by every waiter, so it must not inherit the
	// first caller's cancellation.
	ch := s.group.DoChan(id, func() (interface{}, error) {
		s.mu.RLock()
		existing, ok := s.pool[id]
		s.mu.RUnlock()
		if ok {
			return existing, nil
		}

		bctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), scorerBuildTimeout)
		defer cancel()
		built, err := s.cfg.Registry.Get(bctx, name, opts)
		s.countConstruction(name, err)
		if err != nil {
			return nil, err
		}
		built = s.decorate(built, id)

		s.mu.Lock()
		s.pool[id] = built
		s.mu.Unlock()
		s.logger.Info("scorer constructed", logging.String("scorer", name), logging.String("identity", id))
		return built, nil
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(domain.Scorer), nil
	}
}

func (s *serviceImpl) decorate(sc domain.Scorer, id string) domain.Scorer {
	if s.cfg.Cache != nil {
		sc = domain.WithCache(sc, s.cfg.Cache, id, s.logger)
	}
	if s.cfg.Metrics != nil {
		sc = &instrumentedScorer{inner: sc, metrics: s.cfg.Metrics}
	}
	return sc
}

func (s *serviceImpl) countLookup(result string) {
	if s.cfg.Metrics != nil {
		s.cfg.Metrics.ScorerPoolLookups.WithLabelValues(result).Inc()
	}
}

func (s *serviceImpl) countConstruction(name string, err error) {
	if s.cfg.Metrics == nil {
		return
	}
	status := prometheus.StatusOK
	if err != nil {
		status = prometheus.StatusError
	}
	s.cfg.Metrics.ScorerConstructions.WithLabelValues(name, status).Inc()
}

// instrumentedScorer records call counts and latency per scorer.
type instrumentedScorer struct {
	inner   domain.Scorer
	metrics *prometheus.ScoringMetrics
}

func (i *instrumentedScorer) Name() string { return i.inner.Name() }

func (i *instrumentedScorer) Score(ctx context.Context, smiles []string) ([]float32, error) {
	name := i.inner.Name()
	timer := prometheus.NewTimer(i.metrics.ScoreDuration.WithLabelValues(name))
	scores, err := i.inner.Score(ctx, smiles)
	timer.ObserveDuration()

	status := prometheus.StatusOK
	if err != nil {
		status = prometheus.StatusError
	}
	i.metrics.ScoreRequestsTotal.WithLabelValues(name, status).Inc()
	return scores, err
}
