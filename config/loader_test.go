package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kwatlas/kwcache/types"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := NewLoader().Load("")
	require.NoError(t, err)

	assert.Equal(t, "kwcache", cfg.Name)
	assert.Equal(t, "localhost", cfg.Redis.Host)
	assert.Equal(t, 6379, cfg.Redis.Port)
	assert.True(t, cfg.Cache.Enabled)
	assert.Equal(t, "kwcache", cfg.Cache.KeyPrefix)
	assert.Equal(t, 250, cfg.Cache.MaxKeyLength)
	assert.Equal(t, time.Hour, cfg.Cache.DefaultTTL)
	assert.True(t, cfg.Monitoring.Enabled)
	assert.False(t, cfg.Warming.Enabled)
}

func TestLoadYAMLFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, os.WriteFile(path, []byte(`
name: kwatlas-cache
redis:
  host: redis.internal
  port: 6380
cache:
  key_prefix: kwatlas
  default_ttl: 30m
  compression_threshold: 2048
warming:
  enabled: true
  interval: 1h
`), 0o644))

	cfg, err := NewLoader().Load(path)
	require.NoError(t, err)

	assert.Equal(t, "kwatlas-cache", cfg.Name)
	assert.Equal(t, "redis.internal", cfg.Redis.Host)
	assert.Equal(t, 6380, cfg.Redis.Port)
	assert.Equal(t, "kwatlas", cfg.Cache.KeyPrefix)
	assert.Equal(t, 30*time.Minute, cfg.Cache.DefaultTTL)
	assert.Equal(t, 2048, cfg.Cache.CompressionThreshold)
	assert.True(t, cfg.Warming.Enabled)
	assert.Equal(t, time.Hour, cfg.Warming.Interval)

	// fields absent from the file keep their defaults
	assert.Equal(t, 250, cfg.Cache.MaxKeyLength)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := NewLoader().Load("/nonexistent/config.yml")
	assert.ErrorIs(t, err, types.ErrConfigNotFound)
}

func TestLoadMalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yml")
	require.NoError(t, os.WriteFile(path, []byte("cache: [not a mapping"), 0o644))

	_, err := NewLoader().Load(path)
	assert.ErrorIs(t, err, types.ErrConfigParseFailed)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("KWCACHE_REDIS_HOST", "env-redis")
	t.Setenv("KWCACHE_REDIS_PORT", "7000")
	t.Setenv("KWCACHE_KEY_PREFIX", "envprefix")
	t.Setenv("KWCACHE_DEFAULT_TTL", "15m")
	t.Setenv("KWCACHE_COMPRESSION_ENABLED", "false")
	t.Setenv("KWCACHE_MONITORING_ENABLED", "false")

	cfg, err := NewLoader().Load("")
	require.NoError(t, err)

	assert.Equal(t, "env-redis", cfg.Redis.Host)
	assert.Equal(t, 7000, cfg.Redis.Port)
	assert.Equal(t, "envprefix", cfg.Cache.KeyPrefix)
	assert.Equal(t, 15*time.Minute, cfg.Cache.DefaultTTL)
	assert.False(t, cfg.Cache.CompressionEnabled)
	assert.False(t, cfg.Monitoring.Enabled)
}

func TestEnvClusterNodes(t *testing.T) {
	t.Setenv("KWCACHE_REDIS_CLUSTER_NODES", "node1:6379, node2:6379, ")

	cfg, err := NewLoader().Load("")
	require.NoError(t, err)

	assert.Equal(t, []string{"node1:6379", "node2:6379"}, cfg.Redis.ClusterNodes)
}

func TestEnvBadValueIgnored(t *testing.T) {
	t.Setenv("KWCACHE_REDIS_PORT", "not-a-number")

	cfg, err := NewLoader().Load("")
	require.NoError(t, err)
	assert.Equal(t, 6379, cfg.Redis.Port)
}
