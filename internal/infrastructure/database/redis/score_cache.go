package redis

import (
	"context"
	stderrors "errors"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sony/gobreaker"

	"github.com/turtacn/molscore/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/molscore/pkg/errors"
)

// ScoreCache is a shared score cache. Scores are stored as decimal strings
// under prefix+key with a fixed TTL. Calls go through a circuit breaker so
// an unavailable Redis fails fast instead of adding latency to every batch.
type ScoreCache struct {
	client  *Client
	logger  logging.Logger
	prefix  string
	ttl     time.Duration
	trip    uint32
	timeout time.Duration
	breaker *gobreaker.CircuitBreaker
}

type ScoreCacheOption func(*ScoreCache)

func WithKeyPrefix(prefix string) ScoreCacheOption {
	return func(c *ScoreCache) { c.prefix = prefix }
}

// WithTTL sets the expiry of cached scores. Zero means no expiry.
func WithTTL(ttl time.Duration) ScoreCacheOption {
	return func(c *ScoreCache) { c.ttl = ttl }
}

// WithBreaker sets how many consecutive failures open the breaker and how
// long it stays open.
func WithBreaker(consecutiveFailures uint32, openFor time.Duration) ScoreCacheOption {
	return func(c *ScoreCache) {
		c.trip = consecutiveFailures
		c.timeout = openFor
	}
}

// NewScoreCache returns a score cache backed by client.
func NewScoreCache(client *Client, log logging.Logger, opts ...ScoreCacheOption) *ScoreCache {
	if log == nil {
		log = logging.NewNopLogger()
	}
	c := &ScoreCache{
		client:  client,
		logger:  log,
		prefix:  "molscore:",
		ttl:     24 * time.Hour,
		trip:    5,
		timeout: 30 * time.Second,
	}
	for _, opt := range opts {
		opt(c)
	}

	c.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "redis-score-cache",
		Timeout: c.timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= c.trip
		},
		IsSuccessful: func(err error) bool {
			return err == nil || stderrors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			c.logger.Warn("circuit breaker state changed",
				logging.String("breaker", name),
				logging.String("from", from.String()),
				logging.String("to", to.String()),
			)
		},
	})
	return c
}

func (c *ScoreCache) fullKey(key string) string { return c.prefix + key }

// GetMulti returns the cached scores for the keys that are present.
func (c *ScoreCache) GetMulti(ctx context.Context, keys []string) (map[string]float32, error) {
	out := make(map[string]float32, len(keys))
	if len(keys) == 0 {
		return out, nil
	}

	full := make([]string, len(keys))
	for i, k := range keys {
		full[i] = c.fullKey(k)
	}
	res, err := c.breaker.Execute(func() (interface{}, error) {
		return c.client.MGet(ctx, full...).Result()
	})
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeCacheError, "score cache read failed")
	}

	for i, v := range res.([]interface{}) {
		s, ok := v.(string)
		if !ok {
			continue
		}
		f, err := strconv.ParseFloat(s, 32)
		if err != nil {
			c.logger.Debug("discarding malformed cached score",
				logging.String("key", full[i]), logging.Err(err))
			continue
		}
		out[keys[i]] = float32(f)
	}
	return out, nil
}

// SetMulti stores every entry in one pipeline.
func (c *ScoreCache) SetMulti(ctx context.Context, entries map[string]float32) error {
	if len(entries) == 0 {
		return nil
	}
	_, err := c.breaker.Execute(func() (interface{}, error) {
		return c.client.Pipelined(ctx, func(p redis.Pipeliner) error {
			for k, v := range entries {
				p.Set(ctx, c.fullKey(k), strconv.FormatFloat(float64(v), 'g', -1, 32), c.ttl)
			}
			return nil
		})
	})
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeCacheError, "score cache write failed")
	}
	return nil
}

// State reports the circuit breaker state.
func (c *ScoreCache) State() string {
	return c.breaker.State().String()
}
