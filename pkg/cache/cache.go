package cache

import (
	"context"
	"time"
)

// Cache defines the cache interface used by the voice engine for small,
// frequently read per-user state such as last-known location.
type Cache interface {
	// Get retrieves a cached value
	Get(ctx context.Context, key string) (interface{}, bool)

	// Set stores a value in cache
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error

	// Delete removes a cached value
	Delete(ctx context.Context, key string) error

	// Exists checks if a key exists
	Exists(ctx context.Context, key string) bool

	// Clear removes all cached values
	Clear(ctx context.Context) error

	// Close closes the cache connection
	Close() error
}

// Config defines cache configuration
type Config struct {
	// Cache type: "local" or "redis"
	Type string `env:"CACHE_TYPE"`

	Redis RedisConfig
	Local LocalConfig
}

// RedisConfig defines Redis configuration
type RedisConfig struct {
	Addr     string `env:"REDIS_ADDR"`
	Password string `env:"REDIS_PASSWORD"`
	DB       int    `env:"REDIS_DB"`
}

// LocalConfig defines local cache configuration
type LocalConfig struct {
	DefaultExpiration time.Duration `env:"CACHE_LOCAL_EXPIRATION"`
	CleanupInterval   time.Duration `env:"CACHE_LOCAL_CLEANUP"`
}
