package app

import (
	"strings"
	"time"

	"github.com/charlesng35/clinic/internal/cache"
)

const defaultCacheTTL = 60 * time.Second

// RedisClientConfig converts the application cache configuration into the cache package representation.
func (c CacheConfig) RedisClientConfig() cache.RedisConfig {
	return cache.RedisConfig{
		Address:    strings.TrimSpace(c.Redis.Address),
		Username:   strings.TrimSpace(c.Redis.Username),
		Password:   c.Redis.Password,
		DB:         c.Redis.DB,
		TLS:        c.Redis.TLS,
		Timeout:    c.Redis.Timeout,
		PoolSize:   c.Redis.PoolSize,
		MaxRetries: c.Redis.MaxRetries,
		KeyPrefix:  strings.TrimSpace(c.Redis.KeyPrefix),
	}
}

// EntryTTL returns the lifetime of cached entities, falling back to 60s.
func (c CacheConfig) EntryTTL() time.Duration {
	if c.DefaultTTL <= 0 {
		return defaultCacheTTL
	}
	return c.DefaultTTL
}
