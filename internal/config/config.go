// Package config defines the configuration structures for molscore. No I/O
// or parsing logic lives here, only plain data types and validation.
package config

import (
	"fmt"
	"time"

	"github.com/turtacn/molscore/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/molscore/internal/infrastructure/monitoring/prometheus"
)

// ─────────────────────────────────────────────────────────────────────────────
// Sub-configuration structs
// ─────────────────────────────────────────────────────────────────────────────

// ServerConfig holds HTTP server tunables.
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	MaxBodySize     int64         `mapstructure:"max_body_size"`
	MaxBatchSize    int           `mapstructure:"max_batch_size"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// Addr returns host:port.
func (s ServerConfig) Addr() string { return fmt.Sprintf("%s:%d", s.Host, s.Port) }

// ScoringConfig holds scorer construction parameters.
type ScoringConfig struct {
	// Workers bounds the goroutines used per batch; 1 scores sequentially.
	Workers int `mapstructure:"workers"`

	// ModelLocation is a file path, file:// URL or s3://bucket/key.
	ModelLocation string `mapstructure:"model_location"`
	MaxModelBytes int64  `mapstructure:"max_model_bytes"`

	// Options holds per-scorer options keyed by scorer name.
	Options map[string]map[string]any `mapstructure:"options"`
}

// Cache backends.
const (
	CacheNone  = "none"
	CacheLRU   = "lru"
	CacheRedis = "redis"
)

// CacheConfig selects the score cache.
type CacheConfig struct {
	Backend string        `mapstructure:"backend"` // "none" | "lru" | "redis"
	Size    int           `mapstructure:"size"`
	TTL     time.Duration `mapstructure:"ttl"`
}

// RedisConfig holds Redis connection parameters.
type RedisConfig struct {
	Addr         string        `mapstructure:"addr"`
	Password     string        `mapstructure:"password"`
	DB           int           `mapstructure:"db"`
	PoolSize     int           `mapstructure:"pool_size"`
	MinIdleConns int           `mapstructure:"min_idle_conns"`
	DialTimeout  time.Duration `mapstructure:"dial_timeout"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	KeyPrefix    string        `mapstructure:"key_prefix"`
}

// MinIOConfig holds MinIO / S3-compatible object-storage parameters.
type MinIOConfig struct {
	Endpoint  string `mapstructure:"endpoint"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	Region    string `mapstructure:"region"`
	UseSSL    bool   `mapstructure:"use_ssl"`
}

// KafkaConfig holds the scoring worker's Kafka parameters.
type KafkaConfig struct {
	Brokers           []string      `mapstructure:"brokers"`
	GroupID           string        `mapstructure:"group_id"`
	RequestTopic      string        `mapstructure:"request_topic"`
	ResultTopic       string        `mapstructure:"result_topic"`
	DeadLetterTopic   string        `mapstructure:"dead_letter_topic"`
	AutoOffsetReset   string        `mapstructure:"auto_offset_reset"` // "earliest" | "latest"
	MinBytes          int           `mapstructure:"min_bytes"`
	MaxBytes          int           `mapstructure:"max_bytes"`
	MaxWait           time.Duration `mapstructure:"max_wait"`
	BatchTimeout      time.Duration `mapstructure:"batch_timeout"`
	MaxRetries        int           `mapstructure:"max_retries"`
	RetryBackoff      time.Duration `mapstructure:"retry_backoff"`
	CreateTopics      bool          `mapstructure:"create_topics"`
	NumPartitions     int           `mapstructure:"num_partitions"`
	ReplicationFactor int           `mapstructure:"replication_factor"`
	SASLMechanism     string        `mapstructure:"sasl_mechanism"` // "" | PLAIN | SCRAM-SHA-256 | SCRAM-SHA-512
	SASLUsername      string        `mapstructure:"sasl_username"`
	SASLPassword      string        `mapstructure:"sasl_password"`
	TLSEnabled        bool          `mapstructure:"tls_enabled"`
	TLSCAFile         string        `mapstructure:"tls_ca_file"`
}

// PostgresConfig holds the scoring run history database parameters. The
// history is recorded only when Enabled is set.
type PostgresConfig struct {
	Enabled          bool          `mapstructure:"enabled"`
	Host             string        `mapstructure:"host"`
	Port             int           `mapstructure:"port"`
	Database         string        `mapstructure:"database"`
	Username         string        `mapstructure:"username"`
	Password         string        `mapstructure:"password"`
	SSLMode          string        `mapstructure:"ssl_mode"`
	MaxOpenConns     int           `mapstructure:"max_open_conns"`
	MaxIdleConns     int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime  time.Duration `mapstructure:"conn_max_lifetime"`
	StatementTimeout time.Duration `mapstructure:"statement_timeout"`
	// AutoMigrate applies pending schema migrations when the server or
	// worker starts.
	AutoMigrate bool `mapstructure:"auto_migrate"`
}

// AuthConfig holds bearer token verification parameters for the HTTP API.
type AuthConfig struct {
	Enabled bool `mapstructure:"enabled"`
	// BaseURL and Realm locate the Keycloak realm that issues tokens.
	BaseURL  string `mapstructure:"base_url"`
	Realm    string `mapstructure:"realm"`
	ClientID string `mapstructure:"client_id"`
	// RequiredRole, when set, must be a realm or client role of the caller.
	RequiredRole   string        `mapstructure:"required_role"`
	JWKSRefresh    time.Duration `mapstructure:"jwks_refresh"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

// MetricsConfig holds Prometheus exposition parameters.
type MetricsConfig struct {
	Enabled   bool                       `mapstructure:"enabled"`
	Path      string                     `mapstructure:"path"`
	Collector prometheus.CollectorConfig `mapstructure:",squash"`
}

// ─────────────────────────────────────────────────────────────────────────────
// Root Config
// ─────────────────────────────────────────────────────────────────────────────

// Config is the root configuration structure.
type Config struct {
	Log      logging.LogConfig `mapstructure:"log"`
	Server   ServerConfig      `mapstructure:"server"`
	Scoring  ScoringConfig     `mapstructure:"scoring"`
	Cache    CacheConfig       `mapstructure:"cache"`
	Redis    RedisConfig       `mapstructure:"redis"`
	MinIO    MinIOConfig       `mapstructure:"minio"`
	Kafka    KafkaConfig       `mapstructure:"kafka"`
	Postgres PostgresConfig    `mapstructure:"postgres"`
	Auth     AuthConfig        `mapstructure:"auth"`
	Metrics  MetricsConfig     `mapstructure:"metrics"`
}

// ScorerOptions returns the configured options for scorer name, or nil.
func (c *Config) ScorerOptions(name string) map[string]any {
	if c.Scoring.Options == nil {
		return nil
	}
	return c.Scoring.Options[name]
}

// ─────────────────────────────────────────────────────────────────────────────
// Validation
// ─────────────────────────────────────────────────────────────────────────────

// Validate performs semantic validation of the fully-populated Config.
// It returns the first error encountered.
func (c *Config) Validate() error {
	// Log
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("config: log.level %q is invalid; expected debug|info|warn|error", c.Log.Level)
	}
	switch c.Log.Format {
	case "json", "console":
	default:
		return fmt.Errorf("config: log.format %q is invalid; expected json|console", c.Log.Format)
	}

	// Server
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("config: server.port %d is out of range [1, 65535]", c.Server.Port)
	}
	if c.Server.MaxBatchSize < 1 {
		return fmt.Errorf("config: server.max_batch_size must be >= 1, got %d", c.Server.MaxBatchSize)
	}

	// Scoring
	if c.Scoring.Workers < 1 {
		return fmt.Errorf("config: scoring.workers must be >= 1, got %d", c.Scoring.Workers)
	}
	if c.Scoring.ModelLocation == "" {
		return fmt.Errorf("config: scoring.model_location is required")
	}

	// Cache
	switch c.Cache.Backend {
	case CacheNone:
	case CacheLRU:
		if c.Cache.Size < 1 {
			return fmt.Errorf("config: cache.size must be >= 1 for the lru backend, got %d", c.Cache.Size)
		}
	case CacheRedis:
		if c.Redis.Addr == "" {
			return fmt.Errorf("config: redis.addr is required for the redis cache backend")
		}
		if c.Redis.DB < 0 {
			return fmt.Errorf("config: redis.db must be >= 0, got %d", c.Redis.DB)
		}
	default:
		return fmt.Errorf("config: cache.backend %q is invalid; expected none|lru|redis", c.Cache.Backend)
	}

	// Kafka
	if len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("config: kafka.brokers must contain at least one broker address")
	}
	if c.Kafka.RequestTopic == "" || c.Kafka.ResultTopic == "" {
		return fmt.Errorf("config: kafka.request_topic and kafka.result_topic are required")
	}
	switch c.Kafka.AutoOffsetReset {
	case "earliest", "latest":
	default:
		return fmt.Errorf("config: kafka.auto_offset_reset %q is invalid; expected earliest|latest", c.Kafka.AutoOffsetReset)
	}
	switch c.Kafka.SASLMechanism {
	case "", "PLAIN", "SCRAM-SHA-256", "SCRAM-SHA-512":
	default:
		return fmt.Errorf("config: kafka.sasl_mechanism %q is invalid; expected PLAIN|SCRAM-SHA-256|SCRAM-SHA-512", c.Kafka.SASLMechanism)
	}
	if c.Kafka.MaxRetries < 0 {
		return fmt.Errorf("config: kafka.max_retries must be >= 0, got %d", c.Kafka.MaxRetries)
	}

	// Postgres
	if c.Postgres.Enabled {
		if c.Postgres.Host == "" || c.Postgres.Database == "" {
			return fmt.Errorf("config: postgres.host and postgres.database are required when postgres is enabled")
		}
		if c.Postgres.Port < 1 || c.Postgres.Port > 65535 {
			return fmt.Errorf("config: postgres.port %d is out of range [1, 65535]", c.Postgres.Port)
		}
		switch c.Postgres.SSLMode {
		case "disable", "allow", "prefer", "require", "verify-ca", "verify-full":
		default:
			return fmt.Errorf("config: postgres.ssl_mode %q is invalid", c.Postgres.SSLMode)
		}
	}

	// Auth
	if c.Auth.Enabled && (c.Auth.BaseURL == "" || c.Auth.Realm == "" || c.Auth.ClientID == "") {
		return fmt.Errorf("config: auth.base_url, auth.realm and auth.client_id are required when auth is enabled")
	}

	// Metrics
	if c.Metrics.Enabled && c.Metrics.Collector.Namespace == "" {
		return fmt.Errorf("config: metrics.namespace is required when metrics are enabled")
	}

	return nil
}
