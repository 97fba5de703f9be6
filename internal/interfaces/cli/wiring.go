package cli

import (
	"context"
	"net/http"

	app "github.com/turtacn/molscore/internal/application/scoring"
	"github.com/turtacn/molscore/internal/config"
	domain "github.com/turtacn/molscore/internal/domain/scoring"
	"github.com/turtacn/molscore/internal/infrastructure/auth/keycloak"
	"github.com/turtacn/molscore/internal/infrastructure/database/postgres"
	"github.com/turtacn/molscore/internal/infrastructure/database/redis"
	"github.com/turtacn/molscore/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/molscore/internal/infrastructure/monitoring/prometheus"
	"github.com/turtacn/molscore/internal/infrastructure/storage/minio"
	activity "github.com/turtacn/molscore/internal/intelligence/activity_model"
	"github.com/turtacn/molscore/internal/interfaces/http/handlers"
)

var (
	_ domain.ScoreCache      = (*redis.ScoreCache)(nil)
	_ activity.ObjectStore   = (*minio.ModelStore)(nil)
	_ domain.BatchObserver   = (*prometheus.ScoringMetrics)(nil)
	_ app.RunStore           = (*postgres.RunRepository)(nil)
	_ handlers.HealthChecker = handlers.CheckFunc{}
	_ keycloak.TokenVerifier = (*keycloak.Verifier)(nil)
)

// components are the long-lived collaborators shared by the serve, worker
// and score commands.
type components struct {
	Service   app.Service
	Collector prometheus.MetricsCollector
	Metrics   *prometheus.ScoringMetrics
	Checkers  []handlers.HealthChecker
	// Runs is nil unless run history is enabled.
	Runs *postgres.RunRepository

	closers []func() error
}

// buildComponents wires the scoring service from cfg. withMetrics is
// ignored when metrics are disabled in cfg.
func buildComponents(ctx context.Context, cfg *config.Config, logger logging.Logger, withMetrics bool) (*components, error) {
	c := &components{}

	var observer domain.BatchObserver
	if withMetrics && cfg.Metrics.Enabled {
		collector, err := prometheus.NewMetricsCollector(cfg.Metrics.Collector, logger)
		if err != nil {
			return nil, err
		}
		c.Collector = collector
		c.Metrics = prometheus.NewScoringMetrics(collector)
		observer = c.Metrics
	}

	loader, err := newLoader(cfg, cfg.Scoring.ModelLocation, logger)
	if err != nil {
		return nil, err
	}

	registry := domain.NewDefaultRegistry(domain.Dependencies{
		Logger:        logger,
		Observer:      observer,
		Workers:       cfg.Scoring.Workers,
		ModelLocation: cfg.Scoring.ModelLocation,
		ModelLoader:   loader,
	})

	cache, err := c.buildCache(ctx, cfg, logger)
	if err != nil {
		_ = c.Close()
		return nil, err
	}

	if cfg.Postgres.Enabled {
		if c.Runs, err = c.buildRunStore(ctx, cfg, logger); err != nil {
			_ = c.Close()
			return nil, err
		}
	}

	defaults := make(map[string]domain.Options, len(cfg.Scoring.Options))
	for name, opts := range cfg.Scoring.Options {
		defaults[name] = domain.Options(opts)
	}

	c.Service, err = app.NewService(app.Config{
		Registry:      registry,
		Cache:         cache,
		Metrics:       c.Metrics,
		Defaults:      defaults,
		ModelLocation: cfg.Scoring.ModelLocation,
		MaxBatchSize:  cfg.Server.MaxBatchSize,
		Logger:        logger,
		Runs:          c.runRecorder(),
	})
	if err != nil {
		_ = c.Close()
		return nil, err
	}
	return c, nil
}

func (c *components) buildCache(_ context.Context, cfg *config.Config, logger logging.Logger) (domain.ScoreCache, error) {
	switch cfg.Cache.Backend {
	case config.CacheLRU:
		return domain.NewLRUCache(cfg.Cache.Size)
	case config.CacheRedis:
		client, err := redis.NewClient(&redis.RedisConfig{
			Addr:         cfg.Redis.Addr,
			Password:     cfg.Redis.Password,
			DB:           cfg.Redis.DB,
			PoolSize:     cfg.Redis.PoolSize,
			MinIdleConns: cfg.Redis.MinIdleConns,
			DialTimeout:  cfg.Redis.DialTimeout,
			ReadTimeout:  cfg.Redis.ReadTimeout,
			WriteTimeout: cfg.Redis.WriteTimeout,
		}, logger)
		if err != nil {
			return nil, err
		}
		c.closers = append(c.closers, client.Close)
		c.Checkers = append(c.Checkers, handlers.CheckFunc{Component: "redis", Fn: client.Ping})
		return redis.NewScoreCache(client, logger,
			redis.WithKeyPrefix(cfg.Redis.KeyPrefix),
			redis.WithTTL(cfg.Cache.TTL),
		), nil
	default:
		return nil, nil
	}
}

func (c *components) buildRunStore(ctx context.Context, cfg *config.Config, logger logging.Logger) (*postgres.RunRepository, error) {
	pgCfg := postgresConfig(cfg)
	if cfg.Postgres.AutoMigrate {
		if err := postgres.NewMigrator(pgCfg, logger).Up(); err != nil {
			return nil, err
		}
	}
	conn, err := postgres.NewConnection(ctx, pgCfg, logger)
	if err != nil {
		return nil, err
	}
	c.closers = append(c.closers, conn.Close)
	c.Checkers = append(c.Checkers, handlers.CheckFunc{Component: "postgres", Fn: conn.HealthCheck})
	return postgres.NewRunRepository(conn, logger), nil
}

// buildAuth returns the API auth middleware, or nil when auth is disabled.
func (c *components) buildAuth(ctx context.Context, cfg *config.Config, logger logging.Logger) (func(http.Handler) http.Handler, error) {
	if !cfg.Auth.Enabled {
		return nil, nil
	}
	verifier, err := keycloak.NewVerifier(ctx, keycloak.Config{
		BaseURL:        cfg.Auth.BaseURL,
		Realm:          cfg.Auth.Realm,
		ClientID:       cfg.Auth.ClientID,
		JWKSRefresh:    cfg.Auth.JWKSRefresh,
		RequestTimeout: cfg.Auth.RequestTimeout,
	}, logger.Named("auth"))
	if err != nil {
		return nil, err
	}
	c.closers = append(c.closers, verifier.Close)
	c.Checkers = append(c.Checkers, handlers.CheckFunc{Component: "keycloak", Fn: verifier.Health})
	mw := keycloak.NewAuthMiddleware(verifier, logger.Named("auth"), keycloak.MiddlewareConfig{
		RequiredRole: cfg.Auth.RequiredRole,
	})
	return mw.Handler, nil
}

// runRecorder keeps a nil repository from becoming a non-nil interface.
func (c *components) runRecorder() app.RunRecorder {
	if c.Runs == nil {
		return nil
	}
	return c.Runs
}

// Close releases connections in reverse order of creation.
func (c *components) Close() error {
	var first error
	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i](); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func newModelStore(cfg *config.Config, logger logging.Logger) (*minio.ModelStore, error) {
	client, err := minio.NewMinIOClient(&minio.MinIOConfig{
		Endpoint:        cfg.MinIO.Endpoint,
		AccessKeyID:     cfg.MinIO.AccessKey,
		SecretAccessKey: cfg.MinIO.SecretKey,
		Region:          cfg.MinIO.Region,
		UseSSL:          cfg.MinIO.UseSSL,
	}, logger)
	if err != nil {
		return nil, err
	}
	return minio.NewModelStore(client, logger), nil
}

func postgresConfig(cfg *config.Config) postgres.PostgresConfig {
	return postgres.PostgresConfig{
		Host:             cfg.Postgres.Host,
		Port:             cfg.Postgres.Port,
		Database:         cfg.Postgres.Database,
		Username:         cfg.Postgres.Username,
		Password:         cfg.Postgres.Password,
		SSLMode:          cfg.Postgres.SSLMode,
		MaxOpenConns:     cfg.Postgres.MaxOpenConns,
		MaxIdleConns:     cfg.Postgres.MaxIdleConns,
		ConnMaxLifetime:  cfg.Postgres.ConnMaxLifetime,
		StatementTimeout: cfg.Postgres.StatementTimeout,
	}
}
