package cache

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"iter"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisConfig captures the connection parameters of the Redis-backed store.
type RedisConfig struct {
	Address    string
	Username   string
	Password   string
	DB         int
	TLS        bool
	Timeout    time.Duration
	PoolSize   int
	MaxRetries int
	KeyPrefix  string
}

const (
	defaultRedisTimeout    = 5 * time.Second
	defaultRedisPoolSize   = 10
	defaultRedisMaxRetries = 3
)

// RedisStore implements Store on top of go-redis. Keys are namespaced with KeyPrefix on the
// wire; the namespace is stripped again from scanned keys so they can be passed back to Get.
type RedisStore struct {
	client redis.UniversalClient
	prefix string
}

// NewRedisStore creates a Redis-backed store. It pings the server eagerly so that
// misconfiguration is surfaced during application startup.
func NewRedisStore(cfg RedisConfig) (*RedisStore, error) {
	cfg.Address = strings.TrimSpace(cfg.Address)
	if cfg.Address == "" {
		return nil, errors.New("redis: address is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultRedisTimeout
	}
	if cfg.PoolSize <= 0 {
		cfg.PoolSize = defaultRedisPoolSize
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = defaultRedisMaxRetries
	}

	opts := &redis.Options{
		Addr:         cfg.Address,
		Username:     cfg.Username,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  cfg.Timeout,
		ReadTimeout:  cfg.Timeout,
		WriteTimeout: cfg.Timeout,
		PoolSize:     cfg.PoolSize,
		MaxRetries:   cfg.MaxRetries,
	}
	if cfg.TLS {
		host := cfg.Address
		if idx := strings.LastIndex(host, ":"); idx > 0 {
			host = host[:idx]
		}
		opts.TLSConfig = &tls.Config{ServerName: host, MinVersion: tls.VersionTLS12}
	}

	store := NewRedisStoreFromClient(redis.NewClient(opts), cfg.KeyPrefix)

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Timeout)
	defer cancel()

	if err := store.Ping(ctx); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("redis: connect to %s: %w", cfg.Address, err)
	}
	return store, nil
}

// NewRedisStoreFromClient wraps an existing go-redis client.
func NewRedisStoreFromClient(client redis.UniversalClient, prefix string) *RedisStore {
	prefix = normalizeKey(strings.TrimSpace(prefix))
	if prefix != "" && !strings.HasSuffix(prefix, ":") {
		prefix += ":"
	}
	return &RedisStore{client: client, prefix: prefix}
}

// Get retrieves the value associated with a key. A missing key is not an error.
func (s *RedisStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	val, err := s.client.Get(ensuredContext(ctx), s.prefixed(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, unavailable("get", err)
	}
	return val, true, nil
}

// Set stores a value without expiry, replacing any previous value and TTL.
func (s *RedisStore) Set(ctx context.Context, key string, value []byte) error {
	return s.SetWithExpiry(ctx, key, value, 0)
}

// SetWithExpiry stores a value that expires after ttl. A ttl of zero or less stores the value
// without automatic expiry, matching the server's SET semantics.
func (s *RedisStore) SetWithExpiry(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl < 0 {
		ttl = 0
	}
	if err := s.client.Set(ensuredContext(ctx), s.prefixed(key), value, ttl).Err(); err != nil {
		return unavailable("set", err)
	}
	return nil
}

// Delete removes keys, ignoring missing ones, and reports how many were removed.
func (s *RedisStore) Delete(ctx context.Context, keys ...string) (int64, error) {
	if len(keys) == 0 {
		return 0, nil
	}
	prefixed := make([]string, 0, len(keys))
	for _, key := range keys {
		prefixed = append(prefixed, s.prefixed(key))
	}
	n, err := s.client.Del(ensuredContext(ctx), prefixed...).Result()
	if err != nil {
		return 0, unavailable("del", err)
	}
	return n, nil
}

// Scan iterates keys matching pattern with SCAN MATCH COUNT. Each step issues one round trip;
// the batch may be empty when the server returns a cursor without matches.
func (s *RedisStore) Scan(ctx context.Context, pattern string) iter.Seq2[[]string, error] {
	ctx = ensuredContext(ctx)
	match := s.prefixed(pattern)

	return func(yield func([]string, error) bool) {
		var cursor uint64
		for {
			keys, next, err := s.client.Scan(ctx, cursor, match, ScanBatchSize).Result()
			if err != nil {
				yield(nil, unavailable("scan", err))
				return
			}

			batch := make([]string, 0, len(keys))
			for _, key := range keys {
				batch = append(batch, s.unprefixed(key))
			}
			if !yield(batch, nil) {
				return
			}

			cursor = next
			if cursor == 0 {
				return
			}
		}
	}
}

// IncrementWithTTL increments the supplied key and ensures the TTL is set to the requested window.
// It returns the current count and the remaining time-to-live.
func (s *RedisStore) IncrementWithTTL(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error) {
	ctx = ensuredContext(ctx)
	prefixedKey := s.prefixed(key)

	count, err := s.client.Incr(ctx, prefixedKey).Result()
	if err != nil {
		return 0, 0, unavailable("incr", err)
	}

	if count == 1 {
		if err := s.client.PExpire(ctx, prefixedKey, window).Err(); err != nil {
			return 0, 0, unavailable("pexpire", err)
		}
	}

	ttl, err := s.client.PTTL(ctx, prefixedKey).Result()
	if err != nil || ttl < 0 {
		return count, window, nil
	}
	return count, ttl, nil
}

// Ping checks connectivity.
func (s *RedisStore) Ping(ctx context.Context) error {
	if err := s.client.Ping(ensuredContext(ctx)).Err(); err != nil {
		return unavailable("ping", err)
	}
	return nil
}

// Close releases the connection pool.
func (s *RedisStore) Close() error {
	if s == nil || s.client == nil {
		return nil
	}
	return s.client.Close()
}

func (s *RedisStore) prefixed(key string) string {
	normalized := normalizeKey(key)
	if s.prefix == "" || strings.HasPrefix(normalized, s.prefix) {
		return normalized
	}
	return normalizeKey(s.prefix + normalized)
}

func (s *RedisStore) unprefixed(key string) string {
	if s.prefix == "" {
		return key
	}
	return strings.TrimPrefix(key, s.prefix)
}
