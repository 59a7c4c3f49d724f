package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"TRASH4CASH_ADDR", "TRASH4CASH_REQUEST_TIMEOUT", "TRASH4CASH_CACHE_STALE_TIME",
		"TRASH4CASH_DEFAULT_LIMIT", "TRASH4CASH_SESSION_TTL", "TRASH4CASH_SERVER_SEARCH",
		"REDIS_URL", "REDIS_POOL_SIZE",
	} {
		t.Setenv(key, "")
	}
}

func TestFromEnvDefaults(t *testing.T) {
	clearEnv(t)
	cfg, err := FromEnv()
	require.NoError(t, err)

	assert.Equal(t, DefaultAddr, cfg.Addr)
	assert.Equal(t, DefaultRequestTimeout, cfg.RequestTimeout)
	assert.Equal(t, DefaultCacheStaleTime, cfg.CacheStaleTime)
	assert.Equal(t, DefaultLimit, cfg.DefaultLimit)
	assert.Equal(t, DefaultSessionTTL, cfg.SessionTTL)
	assert.False(t, cfg.ServerSearch)
	assert.Empty(t, cfg.Redis.URL)
	assert.Equal(t, 10, cfg.Redis.PoolSize)
}

func TestFromEnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("TRASH4CASH_ADDR", ":9090")
	t.Setenv("TRASH4CASH_BACKEND_URL", "https://api.trash4cash.id/api/v1")
	t.Setenv("TRASH4CASH_CACHE_STALE_TIME", "30s")
	t.Setenv("TRASH4CASH_DEFAULT_LIMIT", "25")
	t.Setenv("TRASH4CASH_SERVER_SEARCH", "true")
	t.Setenv("REDIS_URL", "redis://localhost:6379/0")

	cfg, err := FromEnv()
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Addr)
	assert.Equal(t, "https://api.trash4cash.id/api/v1", cfg.BackendURL)
	assert.Equal(t, 30*time.Second, cfg.CacheStaleTime)
	assert.Equal(t, 25, cfg.DefaultLimit)
	assert.True(t, cfg.ServerSearch)
	assert.Equal(t, "redis://localhost:6379/0", cfg.Redis.URL)
}

func TestFromEnvRejectsMalformedValues(t *testing.T) {
	cases := map[string]string{
		"TRASH4CASH_REQUEST_TIMEOUT": "soon",
		"TRASH4CASH_SESSION_TTL":     "-1h",
		"TRASH4CASH_DEFAULT_LIMIT":   "0",
		"REDIS_POOL_SIZE":            "many",
	}
	for key, value := range cases {
		t.Run(key, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(key, value)
			_, err := FromEnv()
			assert.Error(t, err)
		})
	}
}
