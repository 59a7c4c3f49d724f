// Package config reads the console's settings from the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Server captures HTTP server level configuration.
type Server struct {
	Addr        string
	Environment string
	LogLevel    string

	BackendURL     string
	RequestTimeout time.Duration
	// BreakerThreshold consecutive backend failures open the circuit for
	// BreakerCooldown.
	BreakerThreshold int
	BreakerCooldown  time.Duration

	CacheStaleTime time.Duration
	DefaultLimit   int
	ServerSearch   bool
	SessionTTL     time.Duration
	MaxBodyBytes   int64

	Redis RedisConfig
}

// RedisConfig configures the shared session store. An empty URL keeps
// sessions in process memory.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

const (
	DefaultAddr           = ":8080"
	DefaultBackendURL     = "http://localhost:3000/api/v1"
	DefaultRequestTimeout = 10 * time.Second
	DefaultCacheStaleTime = 2 * time.Minute
	DefaultLimit          = 10
	DefaultSessionTTL     = 24 * time.Hour
	DefaultMaxBodyBytes   = 6 << 20
)

// FromEnv builds a Server config from environment variables so main stays lean.
// Malformed values are reported rather than silently replaced.
func FromEnv() (Server, error) {
	var err error
	cfg := Server{
		Addr:        envOr("TRASH4CASH_ADDR", DefaultAddr),
		Environment: envOr("TRASH4CASH_ENV", "development"),
		LogLevel:    envOr("LOG_LEVEL", "info"),
		BackendURL:  envOr("TRASH4CASH_BACKEND_URL", DefaultBackendURL),
	}
	if cfg.RequestTimeout, err = durationEnv("TRASH4CASH_REQUEST_TIMEOUT", DefaultRequestTimeout); err != nil {
		return Server{}, err
	}
	if cfg.BreakerThreshold, err = intEnv("TRASH4CASH_BREAKER_THRESHOLD", 5); err != nil {
		return Server{}, err
	}
	if cfg.BreakerCooldown, err = durationEnv("TRASH4CASH_BREAKER_COOLDOWN", 30*time.Second); err != nil {
		return Server{}, err
	}
	if cfg.CacheStaleTime, err = durationEnv("TRASH4CASH_CACHE_STALE_TIME", DefaultCacheStaleTime); err != nil {
		return Server{}, err
	}
	if cfg.DefaultLimit, err = intEnv("TRASH4CASH_DEFAULT_LIMIT", DefaultLimit); err != nil {
		return Server{}, err
	}
	if cfg.DefaultLimit < 1 {
		return Server{}, fmt.Errorf("TRASH4CASH_DEFAULT_LIMIT must be at least 1, got %d", cfg.DefaultLimit)
	}
	cfg.ServerSearch = os.Getenv("TRASH4CASH_SERVER_SEARCH") == "true"
	if cfg.SessionTTL, err = durationEnv("TRASH4CASH_SESSION_TTL", DefaultSessionTTL); err != nil {
		return Server{}, err
	}
	maxBody, err := intEnv("TRASH4CASH_MAX_BODY_BYTES", DefaultMaxBodyBytes)
	if err != nil {
		return Server{}, err
	}
	cfg.MaxBodyBytes = int64(maxBody)

	if cfg.Redis, err = redisFromEnv(); err != nil {
		return Server{}, err
	}
	return cfg, nil
}

func redisFromEnv() (RedisConfig, error) {
	var err error
	cfg := RedisConfig{URL: os.Getenv("REDIS_URL")}
	if cfg.PoolSize, err = intEnv("REDIS_POOL_SIZE", 10); err != nil {
		return RedisConfig{}, err
	}
	if cfg.MinIdleConns, err = intEnv("REDIS_MIN_IDLE_CONNS", 2); err != nil {
		return RedisConfig{}, err
	}
	if cfg.DialTimeout, err = durationEnv("REDIS_DIAL_TIMEOUT", 5*time.Second); err != nil {
		return RedisConfig{}, err
	}
	if cfg.ReadTimeout, err = durationEnv("REDIS_READ_TIMEOUT", 3*time.Second); err != nil {
		return RedisConfig{}, err
	}
	if cfg.WriteTimeout, err = durationEnv("REDIS_WRITE_TIMEOUT", 3*time.Second); err != nil {
		return RedisConfig{}, err
	}
	return cfg, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func durationEnv(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", key, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("%s must be positive, got %s", key, v)
	}
	return d, nil
}

func intEnv(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", key, err)
	}
	return n, nil
}
