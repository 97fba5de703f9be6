package scoring

import (
	"context"
	"strconv"

	"github.com/cespare/xxhash/v2"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/turtacn/molscore/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/molscore/pkg/errors"
)

// ScoreCache stores scores keyed by scorer identity and SMILES.
type ScoreCache interface {
	// GetMulti returns the cached scores for the keys that are present.
	GetMulti(ctx context.Context, keys []string) (map[string]float32, error)
	// SetMulti stores every entry.
	SetMulti(ctx context.Context, entries map[string]float32) error
}

// CacheIdentity derives a stable cache namespace for a configured scorer.
// extra carries construction inputs that are not options, such as the
// classifier location.
func CacheIdentity(name string, opts Options, extra ...string) string {
	d := xxhash.New()
	_, _ = d.WriteString(opts.Canonical())
	for _, e := range extra {
		_, _ = d.WriteString("|")
		_, _ = d.WriteString(e)
	}
	return name + ":" + strconv.FormatUint(d.Sum64(), 16)
}

// cachedScorer memoises per-SMILES scores. Scores are a pure function of
// the identifier and construction-time state, so cached values never go
// stale for a given identity. When the inner scorer reports validity only
// valid identifiers are stored, so a hit always stands for a valid molecule.
type cachedScorer struct {
	inner    Scorer
	cache    ScoreCache
	identity string
	logger   logging.Logger
}

// WithCache decorates inner with a score cache. Cache failures are logged
// and the batch is scored directly.
func WithCache(inner Scorer, cache ScoreCache, identity string, logger logging.Logger) Scorer {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &cachedScorer{inner: inner, cache: cache, identity: identity, logger: logger}
}

func (c *cachedScorer) Name() string { return c.inner.Name() }

func (c *cachedScorer) key(smiles string) string { return c.identity + ":" + smiles }

func (c *cachedScorer) Score(ctx context.Context, smiles []string) ([]float32, error) {
	if len(smiles) == 0 {
		return c.inner.Score(ctx, smiles)
	}

	keys := make([]string, 0, len(smiles))
	seen := make(map[string]struct{}, len(smiles))
	for _, s := range smiles {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		keys = append(keys, c.key(s))
	}

	hits, err := c.cache.GetMulti(ctx, keys)
	if err != nil {
		c.logger.Warn("score cache read failed, scoring directly",
			logging.String("scorer", c.inner.Name()), logging.Err(err))
		return c.inner.Score(ctx, smiles)
	}
	if hits == nil {
		hits = make(map[string]float32, len(keys))
	}

	var misses []string
	for s := range seen {
		if _, ok := hits[c.key(s)]; !ok {
			misses = append(misses, s)
		}
	}

	// invalid holds the misses the inner scorer reported as invalid.
	invalid := make(map[string]bool)
	reported := len(misses) == 0
	if len(misses) > 0 {
		var mask []bool
		innerCtx := WithValidityReport(ctx, func(m []bool) { mask = m })
		scores, err := c.inner.Score(innerCtx, misses)
		if err != nil {
			return nil, err
		}
		reported = len(mask) == len(misses)

		fresh := make(map[string]float32, len(misses))
		for i, s := range misses {
			hits[c.key(s)] = scores[i]
			if reported && !mask[i] {
				invalid[s] = true
				continue
			}
			fresh[c.key(s)] = scores[i]
		}
		if len(fresh) > 0 {
			if err := c.cache.SetMulti(ctx, fresh); err != nil {
				c.logger.Warn("score cache write failed",
					logging.String("scorer", c.inner.Name()), logging.Err(err))
			}
		}
	}

	out := make([]float32, len(smiles))
	for i, s := range smiles {
		out[i] = hits[c.key(s)]
	}
	if reported {
		mask := make([]bool, len(smiles))
		for i, s := range smiles {
			mask[i] = !invalid[s]
		}
		reportValidity(ctx, mask)
	}
	return out, nil
}

// lruCache is an in-process ScoreCache with a fixed capacity.
type lruCache struct {
	c *lru.Cache[string, float32]
}

// NewLRUCache returns an in-process cache holding at most size scores.
func NewLRUCache(size int) (ScoreCache, error) {
	c, err := lru.New[string, float32](size)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeCacheError, "failed to create score cache")
	}
	return &lruCache{c: c}, nil
}

func (l *lruCache) GetMulti(_ context.Context, keys []string) (map[string]float32, error) {
	out := make(map[string]float32, len(keys))
	for _, k := range keys {
		if v, ok := l.c.Get(k); ok {
			out[k] = v
		}
	}
	return out, nil
}

func (l *lruCache) SetMulti(_ context.Context, entries map[string]float32) error {
	for k, v := range entries {
		l.c.Add(k, v)
	}
	return nil
}
