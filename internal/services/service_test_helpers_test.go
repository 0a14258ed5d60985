package services

import (
	"context"
	"iter"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/charlesng35/clinic/internal/cache"
	"github.com/charlesng35/clinic/internal/database/testutil"
)

type setCall struct {
	key   string
	value []byte
	ttl   time.Duration
}

// memoryStore is an in-process cache.Store that records writes.
type memoryStore struct {
	mu      sync.Mutex
	data    map[string][]byte
	sets    []setCall
	getErr  error
	batches [][]string
}

var _ cache.Store = (*memoryStore)(nil)

func newMemoryStore() *memoryStore {
	return &memoryStore{data: map[string][]byte{}}
}

func (m *memoryStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return nil, false, m.getErr
	}
	value, ok := m.data[key]
	return value, ok, nil
}

func (m *memoryStore) Set(ctx context.Context, key string, value []byte) error {
	return m.SetWithExpiry(ctx, key, value, 0)
}

func (m *memoryStore) SetWithExpiry(_ context.Context, key string, value []byte, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	m.sets = append(m.sets, setCall{key: key, value: value, ttl: ttl})
	return nil
}

func (m *memoryStore) Delete(_ context.Context, keys ...string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var removed int64
	for _, key := range keys {
		if _, ok := m.data[key]; ok {
			delete(m.data, key)
			removed++
		}
	}
	return removed, nil
}

// Scan yields the configured batches when set, otherwise every key matching a trailing-* prefix
// pattern in a single batch.
func (m *memoryStore) Scan(_ context.Context, pattern string) iter.Seq2[[]string, error] {
	return func(yield func([]string, error) bool) {
		m.mu.Lock()
		batches := m.batches
		if batches == nil {
			prefix := strings.TrimSuffix(pattern, "*")
			var keys []string
			for key := range m.data {
				if strings.HasPrefix(key, prefix) {
					keys = append(keys, key)
				}
			}
			sort.Strings(keys)
			if len(keys) > 0 {
				batches = [][]string{keys}
			}
		}
		m.mu.Unlock()

		for _, batch := range batches {
			if !yield(batch, nil) {
				return
			}
		}
	}
}

func (m *memoryStore) IncrementWithTTL(_ context.Context, _ string, window time.Duration) (int64, time.Duration, error) {
	return 1, window, nil
}

func (m *memoryStore) Ping(context.Context) error { return nil }

func (m *memoryStore) Close() error { return nil }

func (m *memoryStore) has(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.data[key]
	return ok
}

func openServiceTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	return testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
}

func newTestCacheService(t *testing.T, store cache.Store, opts ...CacheServiceOption) *CacheService {
	t.Helper()
	svc, err := NewCacheService(store, opts...)
	require.NoError(t, err)
	return svc
}
