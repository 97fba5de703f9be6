package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validConfigYAML = `
log:
  level: debug
  format: console
server:
  port: 9090
scoring:
  workers: 4
  model_location: s3://models/clf.json.gz
  options:
    tanimoto:
      k: 0.5
cache:
  backend: lru
  size: 1000
  ttl: 1h
kafka:
  brokers: ["kafka-1:9092", "kafka-2:9092"]
metrics:
  namespace: chem
`

func createTempConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_FromFile_ValidConfig(t *testing.T) {
	cfg, err := Load(createTempConfigFile(t, validConfigYAML))
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 4, cfg.Scoring.Workers)
	assert.Equal(t, "s3://models/clf.json.gz", cfg.Scoring.ModelLocation)
	assert.Equal(t, 0.5, cfg.ScorerOptions("tanimoto")["k"])
	assert.Equal(t, CacheLRU, cfg.Cache.Backend)
	assert.Equal(t, time.Hour, cfg.Cache.TTL)
	assert.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, "chem", cfg.Metrics.Collector.Namespace)
	assert.True(t, cfg.Metrics.Enabled)
	assert.Equal(t, DefaultKafkaRequestTopic, cfg.Kafka.RequestTopic)
}

func TestLoad_FromFile_FileNotFound(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorIs(t, err, ErrConfigFileNotFound)
}

func TestLoad_FromFile_InvalidYAML(t *testing.T) {
	_, err := Load(createTempConfigFile(t, "invalid_yaml: ["))
	assert.ErrorIs(t, err, ErrConfigParseError)
}

func TestLoad_FromFile_ValidationFailure(t *testing.T) {
	_, err := Load(createTempConfigFile(t, "cache:\n  backend: memcached\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cache.backend")
}

func TestLoadFromEnv_Defaults(t *testing.T) {
	cfg, err := LoadFromEnv()
	require.NoError(t, err)
	assert.Equal(t, DefaultServerPort, cfg.Server.Port)
	assert.Equal(t, DefaultModelLocation, cfg.Scoring.ModelLocation)
	assert.Equal(t, []string{"stdout"}, cfg.Log.OutputPaths)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	t.Setenv("MOLSCORE_SERVER_PORT", "7070")
	t.Setenv("MOLSCORE_SCORING_WORKERS", "8")
	t.Setenv("MOLSCORE_CACHE_BACKEND", "redis")
	t.Setenv("MOLSCORE_REDIS_ADDR", "redis:6380")

	cfg, err := Load(createTempConfigFile(t, validConfigYAML))
	require.NoError(t, err)
	assert.Equal(t, 7070, cfg.Server.Port)
	assert.Equal(t, 8, cfg.Scoring.Workers)
	assert.Equal(t, CacheRedis, cfg.Cache.Backend)
	assert.Equal(t, "redis:6380", cfg.Redis.Addr)
}

func TestLoadFromEnv_PostgresHistory(t *testing.T) {
	t.Setenv("MOLSCORE_POSTGRES_ENABLED", "true")
	t.Setenv("MOLSCORE_POSTGRES_HOST", "db")
	t.Setenv("MOLSCORE_POSTGRES_PASSWORD", "secret")

	cfg, err := LoadFromEnv()
	require.NoError(t, err)
	assert.True(t, cfg.Postgres.Enabled)
	assert.True(t, cfg.Postgres.AutoMigrate)
	assert.Equal(t, "db", cfg.Postgres.Host)
	assert.Equal(t, "secret", cfg.Postgres.Password)
	assert.Equal(t, DefaultPostgresDatabase, cfg.Postgres.Database)
}

func TestMustLoad_Panics(t *testing.T) {
	assert.Panics(t, func() { MustLoad(filepath.Join(t.TempDir(), "missing.yaml")) })
}
