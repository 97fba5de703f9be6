package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/spf13/viper"
)

// envPrefix is the environment variable prefix used by all settings.
const envPrefix = "MOLSCORE"

var (
	// ErrConfigFileNotFound is returned when the named config file does not exist.
	ErrConfigFileNotFound = errors.New("config: file not found")
	// ErrConfigParseError is returned when the config file is not valid YAML.
	ErrConfigParseError = errors.New("config: parse error")
)

// newViper builds a Viper instance with YAML file type, the MOLSCORE_ env
// prefix and a key replacer mapping "." to "_", so that "redis.addr"
// resolves to MOLSCORE_REDIS_ADDR.
func newViper() *viper.Viper {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	setViperDefaults(v)
	return v
}

// setViperDefaults registers every key with viper. AutomaticEnv only
// consults the environment for keys viper already knows, so a key missing
// here cannot be overridden from the environment.
func setViperDefaults(v *viper.Viper) {
	d := &Config{}
	ApplyDefaults(d)

	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)
	v.SetDefault("log.output_paths", []string{"stdout"})

	v.SetDefault("server.host", d.Server.Host)
	v.SetDefault("server.port", d.Server.Port)
	v.SetDefault("server.read_timeout", d.Server.ReadTimeout)
	v.SetDefault("server.write_timeout", d.Server.WriteTimeout)
	v.SetDefault("server.max_body_size", d.Server.MaxBodySize)
	v.SetDefault("server.max_batch_size", d.Server.MaxBatchSize)
	v.SetDefault("server.shutdown_timeout", d.Server.ShutdownTimeout)

	v.SetDefault("scoring.workers", d.Scoring.Workers)
	v.SetDefault("scoring.model_location", d.Scoring.ModelLocation)
	v.SetDefault("scoring.max_model_bytes", d.Scoring.MaxModelBytes)

	v.SetDefault("cache.backend", d.Cache.Backend)
	v.SetDefault("cache.size", d.Cache.Size)
	v.SetDefault("cache.ttl", d.Cache.TTL)

	v.SetDefault("redis.addr", d.Redis.Addr)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.key_prefix", d.Redis.KeyPrefix)
	v.SetDefault("redis.dial_timeout", d.Redis.DialTimeout)

	v.SetDefault("minio.endpoint", d.MinIO.Endpoint)
	v.SetDefault("minio.access_key", "")
	v.SetDefault("minio.secret_key", "")
	v.SetDefault("minio.region", "")
	v.SetDefault("minio.use_ssl", false)

	v.SetDefault("kafka.brokers", d.Kafka.Brokers)
	v.SetDefault("kafka.group_id", d.Kafka.GroupID)
	v.SetDefault("kafka.request_topic", d.Kafka.RequestTopic)
	v.SetDefault("kafka.result_topic", d.Kafka.ResultTopic)
	v.SetDefault("kafka.dead_letter_topic", d.Kafka.DeadLetterTopic)
	v.SetDefault("kafka.auto_offset_reset", d.Kafka.AutoOffsetReset)
	v.SetDefault("kafka.max_retries", 0)
	v.SetDefault("kafka.retry_backoff", d.Kafka.RetryBackoff)
	v.SetDefault("kafka.create_topics", false)
	v.SetDefault("kafka.num_partitions", d.Kafka.NumPartitions)
	v.SetDefault("kafka.replication_factor", d.Kafka.ReplicationFactor)
	v.SetDefault("kafka.sasl_mechanism", "")
	v.SetDefault("kafka.sasl_username", "")
	v.SetDefault("kafka.sasl_password", "")
	v.SetDefault("kafka.tls_enabled", false)

	v.SetDefault("postgres.enabled", false)
	v.SetDefault("postgres.host", d.Postgres.Host)
	v.SetDefault("postgres.port", d.Postgres.Port)
	v.SetDefault("postgres.database", d.Postgres.Database)
	v.SetDefault("postgres.username", "")
	v.SetDefault("postgres.password", "")
	v.SetDefault("postgres.ssl_mode", d.Postgres.SSLMode)
	v.SetDefault("postgres.max_open_conns", d.Postgres.MaxOpenConns)
	v.SetDefault("postgres.max_idle_conns", d.Postgres.MaxIdleConns)
	v.SetDefault("postgres.conn_max_lifetime", d.Postgres.ConnMaxLifetime)
	v.SetDefault("postgres.statement_timeout", d.Postgres.StatementTimeout)
	v.SetDefault("postgres.auto_migrate", true)

	v.SetDefault("auth.enabled", false)
	v.SetDefault("auth.base_url", "")
	v.SetDefault("auth.realm", "")
	v.SetDefault("auth.client_id", "")
	v.SetDefault("auth.required_role", "")
	v.SetDefault("auth.jwks_refresh", d.Auth.JWKSRefresh)
	v.SetDefault("auth.request_timeout", d.Auth.RequestTimeout)

	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.path", d.Metrics.Path)
	v.SetDefault("metrics.namespace", d.Metrics.Collector.Namespace)
	v.SetDefault("metrics.enable_go_metrics", true)
	v.SetDefault("metrics.enable_process_metrics", true)
}

// Load reads the YAML file at configPath, merges MOLSCORE_* environment
// overrides, applies defaults and validates the result. An empty
// configPath loads from the environment only.
func Load(configPath string) (*Config, error) {
	v := newViper()
	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			var pathErr *fs.PathError
			if errors.As(err, &pathErr) || errors.As(err, new(viper.ConfigFileNotFoundError)) {
				return nil, fmt.Errorf("%w: %q", ErrConfigFileNotFound, configPath)
			}
			return nil, fmt.Errorf("%w: %q: %v", ErrConfigParseError, configPath, err)
		}
	}
	return unmarshalAndFinalize(v)
}

// LoadFromEnv builds a Config from MOLSCORE_* environment variables alone.
//
//	MOLSCORE_<SECTION>_<FIELD>   e.g. MOLSCORE_REDIS_ADDR, MOLSCORE_SCORING_WORKERS
func LoadFromEnv() (*Config, error) {
	return Load("")
}

func unmarshalAndFinalize(v *viper.Viper) (*Config, error) {
	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("config: failed to unmarshal configuration: %w", err)
	}

	ApplyDefaults(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: validation failed: %w", err)
	}
	return cfg, nil
}

// MustLoad is Load that panics on any error.
func MustLoad(configPath string) *Config {
	cfg, err := Load(configPath)
	if err != nil {
		panic(fmt.Sprintf("config: MustLoad failed: %v", err))
	}
	return cfg
}
