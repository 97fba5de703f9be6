package config

import "time"

// ─────────────────────────────────────────────────────────────────────────────
// Default value constants
// ─────────────────────────────────────────────────────────────────────────────

const (
	DefaultLogLevel  = "info"
	DefaultLogFormat = "json"

	DefaultServerHost   = "0.0.0.0"
	DefaultServerPort   = 8080
	DefaultMaxBodySize  = 8 << 20
	DefaultMaxBatchSize = 10000

	DefaultScoringWorkers = 1
	DefaultModelLocation  = "data/clf.json"
	DefaultMaxModelBytes  = 256 << 20

	DefaultCacheBackend = CacheNone
	DefaultCacheSize    = 100000
	DefaultCacheTTL     = 24 * time.Hour

	DefaultRedisAddr      = "localhost:6379"
	DefaultRedisKeyPrefix = "molscore:"

	DefaultMinIOEndpoint = "localhost:9000"

	DefaultKafkaBroker       = "localhost:9092"
	DefaultKafkaGroupID      = "molscore-worker"
	DefaultKafkaRequestTopic = "molscore.score.requests"
	DefaultKafkaResultTopic  = "molscore.score.results"
	DefaultKafkaDeadLetter   = "molscore.score.dead_letter"

	DefaultPostgresHost     = "localhost"
	DefaultPostgresPort     = 5432
	DefaultPostgresDatabase = "molscore"
	DefaultPostgresSSLMode  = "disable"

	DefaultAuthJWKSRefresh = 5 * time.Minute

	DefaultMetricsNamespace = "molscore"
	DefaultMetricsPath      = "/metrics"
)

// ApplyDefaults fills every zero-value field in cfg with its default.
// Fields that have already been set are left unchanged so that explicit
// configuration always wins.
func ApplyDefaults(cfg *Config) {
	if cfg == nil {
		return
	}

	// ── Log ───────────────────────────────────────────────────────────────────
	if cfg.Log.Level == "" {
		cfg.Log.Level = DefaultLogLevel
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = DefaultLogFormat
	}

	// ── Server ────────────────────────────────────────────────────────────────
	if cfg.Server.Host == "" {
		cfg.Server.Host = DefaultServerHost
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = DefaultServerPort
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = 30 * time.Second
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = 5 * time.Minute
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = 15 * time.Second
	}
	if cfg.Server.MaxBodySize == 0 {
		cfg.Server.MaxBodySize = DefaultMaxBodySize
	}
	if cfg.Server.MaxBatchSize == 0 {
		cfg.Server.MaxBatchSize = DefaultMaxBatchSize
	}

	// ── Scoring ───────────────────────────────────────────────────────────────
	if cfg.Scoring.Workers == 0 {
		cfg.Scoring.Workers = DefaultScoringWorkers
	}
	if cfg.Scoring.ModelLocation == "" {
		cfg.Scoring.ModelLocation = DefaultModelLocation
	}
	if cfg.Scoring.MaxModelBytes == 0 {
		cfg.Scoring.MaxModelBytes = DefaultMaxModelBytes
	}

	// ── Cache ─────────────────────────────────────────────────────────────────
	if cfg.Cache.Backend == "" {
		cfg.Cache.Backend = DefaultCacheBackend
	}
	if cfg.Cache.Size == 0 {
		cfg.Cache.Size = DefaultCacheSize
	}
	if cfg.Cache.TTL == 0 {
		cfg.Cache.TTL = DefaultCacheTTL
	}

	// ── Redis ─────────────────────────────────────────────────────────────────
	if cfg.Redis.Addr == "" {
		cfg.Redis.Addr = DefaultRedisAddr
	}
	if cfg.Redis.KeyPrefix == "" {
		cfg.Redis.KeyPrefix = DefaultRedisKeyPrefix
	}
	if cfg.Redis.DialTimeout == 0 {
		cfg.Redis.DialTimeout = 5 * time.Second
	}
	// DB 0 is a valid explicit value and also the default.

	// ── MinIO ─────────────────────────────────────────────────────────────────
	if cfg.MinIO.Endpoint == "" {
		cfg.MinIO.Endpoint = DefaultMinIOEndpoint
	}

	// ── Kafka ─────────────────────────────────────────────────────────────────
	if len(cfg.Kafka.Brokers) == 0 {
		cfg.Kafka.Brokers = []string{DefaultKafkaBroker}
	}
	if cfg.Kafka.GroupID == "" {
		cfg.Kafka.GroupID = DefaultKafkaGroupID
	}
	if cfg.Kafka.RequestTopic == "" {
		cfg.Kafka.RequestTopic = DefaultKafkaRequestTopic
	}
	if cfg.Kafka.ResultTopic == "" {
		cfg.Kafka.ResultTopic = DefaultKafkaResultTopic
	}
	if cfg.Kafka.MinBytes == 0 {
		cfg.Kafka.MinBytes = 1
	}
	if cfg.Kafka.MaxBytes == 0 {
		cfg.Kafka.MaxBytes = 10 << 20
	}
	if cfg.Kafka.MaxWait == 0 {
		cfg.Kafka.MaxWait = 500 * time.Millisecond
	}
	if cfg.Kafka.BatchTimeout == 0 {
		cfg.Kafka.BatchTimeout = 50 * time.Millisecond
	}
	if cfg.Kafka.DeadLetterTopic == "" {
		cfg.Kafka.DeadLetterTopic = DefaultKafkaDeadLetter
	}
	if cfg.Kafka.AutoOffsetReset == "" {
		cfg.Kafka.AutoOffsetReset = "earliest"
	}
	if cfg.Kafka.RetryBackoff == 0 {
		cfg.Kafka.RetryBackoff = 500 * time.Millisecond
	}
	if cfg.Kafka.NumPartitions == 0 {
		cfg.Kafka.NumPartitions = 6
	}
	if cfg.Kafka.ReplicationFactor == 0 {
		cfg.Kafka.ReplicationFactor = 1
	}

	// ── Postgres ──────────────────────────────────────────────────────────────
	if cfg.Postgres.Host == "" {
		cfg.Postgres.Host = DefaultPostgresHost
	}
	if cfg.Postgres.Port == 0 {
		cfg.Postgres.Port = DefaultPostgresPort
	}
	if cfg.Postgres.Database == "" {
		cfg.Postgres.Database = DefaultPostgresDatabase
	}
	if cfg.Postgres.SSLMode == "" {
		cfg.Postgres.SSLMode = DefaultPostgresSSLMode
	}
	if cfg.Postgres.MaxOpenConns == 0 {
		cfg.Postgres.MaxOpenConns = 10
	}
	if cfg.Postgres.MaxIdleConns == 0 {
		cfg.Postgres.MaxIdleConns = 5
	}
	if cfg.Postgres.ConnMaxLifetime == 0 {
		cfg.Postgres.ConnMaxLifetime = 30 * time.Minute
	}
	if cfg.Postgres.StatementTimeout == 0 {
		cfg.Postgres.StatementTimeout = 10 * time.Second
	}

	// ── Auth ──────────────────────────────────────────────────────────────────
	if cfg.Auth.JWKSRefresh == 0 {
		cfg.Auth.JWKSRefresh = DefaultAuthJWKSRefresh
	}
	if cfg.Auth.RequestTimeout == 0 {
		cfg.Auth.RequestTimeout = 10 * time.Second
	}

	// ── Metrics ───────────────────────────────────────────────────────────────
	if cfg.Metrics.Path == "" {
		cfg.Metrics.Path = DefaultMetricsPath
	}
	if cfg.Metrics.Collector.Namespace == "" {
		cfg.Metrics.Collector.Namespace = DefaultMetricsNamespace
	}
}

// Default returns a Config holding only defaults.
func Default() *Config {
	cfg := &Config{Metrics: MetricsConfig{Enabled: true}}
	ApplyDefaults(cfg)
	return cfg
}
