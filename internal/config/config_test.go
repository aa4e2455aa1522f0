package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/IvanBrykalov/fragcache/internal/config"
)

func TestFromMap_Defaults(t *testing.T) {
	t.Parallel()

	cfg, err := config.FromMap(map[string]string{})
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.Addr)
	assert.Equal(t, 100, cfg.Capacity)
	assert.Equal(t, 5*time.Minute, cfg.PayloadTTL)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.False(t, cfg.DigestKeys)
	assert.Empty(t, cfg.RedisURL)
}

func TestFromMap_Overrides(t *testing.T) {
	t.Parallel()

	cfg, err := config.FromMap(map[string]string{
		"FRAGCACHE_ADDR":        "127.0.0.1:9000",
		"FRAGCACHE_CAPACITY":    "16",
		"FRAGCACHE_PAYLOAD_TTL": "30s",
		"FRAGCACHE_DIGEST_KEYS": "true",
		"FRAGCACHE_REDIS_URL":   "redis://localhost:6379/1",
	})
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:9000", cfg.Addr)
	assert.Equal(t, 16, cfg.Capacity)
	assert.Equal(t, 30*time.Second, cfg.PayloadTTL)
	assert.True(t, cfg.DigestKeys)
	assert.Equal(t, "redis://localhost:6379/1", cfg.RedisURL)
}

func TestFromMap_Errors(t *testing.T) {
	t.Parallel()

	_, err := config.FromMap(map[string]string{"FRAGCACHE_CAPACITY": "many"})
	require.ErrorIs(t, err, config.ErrParse)

	_, err = config.FromMap(map[string]string{"FRAGCACHE_CAPACITY": "0"})
	require.ErrorIs(t, err, config.ErrInvalid)

	_, err = config.FromMap(map[string]string{"FRAGCACHE_PAYLOAD_TTL": "-1s"})
	require.ErrorIs(t, err, config.ErrInvalid)
}

func TestLoad_DotEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.env")
	require.NoError(t, os.WriteFile(path, []byte("FRAGCACHE_LOG_LEVEL=debug\n"), 0o600))
	t.Cleanup(func() { _ = os.Unsetenv("FRAGCACHE_LOG_LEVEL") })

	cfg, err := config.Load(path, filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.LogLevel)
}
