package cache

import (
	"context"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// LocalCache in-process cache backed by go-cache
type LocalCache struct {
	store *gocache.Cache
}

// NewLocalCache creates a local cache instance
func NewLocalCache(cfg LocalConfig) *LocalCache {
	defaultExpiration := cfg.DefaultExpiration
	if defaultExpiration == 0 {
		defaultExpiration = 30 * time.Minute
	}
	cleanupInterval := cfg.CleanupInterval
	if cleanupInterval == 0 {
		cleanupInterval = 10 * time.Minute
	}
	return &LocalCache{store: gocache.New(defaultExpiration, cleanupInterval)}
}

func (c *LocalCache) Get(ctx context.Context, key string) (interface{}, bool) {
	return c.store.Get(key)
}

func (c *LocalCache) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	c.store.Set(key, value, expiration)
	return nil
}

func (c *LocalCache) Delete(ctx context.Context, key string) error {
	c.store.Delete(key)
	return nil
}

func (c *LocalCache) Exists(ctx context.Context, key string) bool {
	_, found := c.store.Get(key)
	return found
}

func (c *LocalCache) Clear(ctx context.Context) error {
	c.store.Flush()
	return nil
}

func (c *LocalCache) Close() error {
	return nil
}
