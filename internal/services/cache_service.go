package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"iter"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/charlesng35/clinic/internal/cache"
	"github.com/charlesng35/clinic/internal/models"
	"github.com/charlesng35/clinic/pkg/logger"
	"github.com/charlesng35/clinic/pkg/metrics"
)

// Cache key prefixes. Singular prefixes address one entity as "<prefix>:<id>", plural prefixes
// are bare keys holding a serialized collection.
const (
	CachePrefixUser          = "user"
	CachePrefixUsers         = "users"
	CachePrefixDoctor        = "doctor"
	CachePrefixDoctors       = "doctors"
	CachePrefixPatient       = "patient"
	CachePrefixPatients      = "patients"
	CachePrefixAppointment   = "appointment"
	CachePrefixAppointments  = "appointments"
	CachePrefixLastConnected = "last_connected_at"
)

// DefaultCacheTTL bounds how stale a cached entity may be.
const DefaultCacheTTL = 60 * time.Second

// CacheService stores JSON snapshots of entities in the shared cache store.
type CacheService struct {
	store cache.Store
	ttl   time.Duration
	now   func() time.Time
	log   *zap.Logger
}

// CacheServiceOption customises a CacheService.
type CacheServiceOption func(*CacheService)

// WithCacheTTL overrides the default entity TTL. Non-positive values are ignored.
func WithCacheTTL(ttl time.Duration) CacheServiceOption {
	return func(s *CacheService) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

// WithCacheClock overrides the clock used for last-connected timestamps.
func WithCacheClock(now func() time.Time) CacheServiceOption {
	return func(s *CacheService) {
		if now != nil {
			s.now = now
		}
	}
}

// NewCacheService constructs a CacheService over the supplied store.
func NewCacheService(store cache.Store, opts ...CacheServiceOption) (*CacheService, error) {
	if store == nil {
		return nil, errors.New("cache service: store is required")
	}
	svc := &CacheService{
		store: store,
		ttl:   DefaultCacheTTL,
		now:   time.Now,
		log:   logger.WithModule("cache"),
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// EntityKey composes "<prefix>:<id>".
func EntityKey(prefix string, id int64) string {
	return prefix + ":" + strconv.FormatInt(id, 10)
}

// DefaultTTL returns the TTL applied to entity and collection snapshots.
func (s *CacheService) DefaultTTL() time.Duration {
	return s.ttl
}

// LastConnectedTTL returns the retention of last-connected facts: the default TTL, in whole
// seconds, squared (60s gives 3600s).
func (s *CacheService) LastConnectedTTL() time.Duration {
	seconds := int64(s.ttl / time.Second)
	return time.Duration(seconds*seconds) * time.Second
}

// SaveEntity writes a full JSON snapshot of value at "<prefix>:<id>", replacing any prior value and TTL.
func (s *CacheService) SaveEntity(ctx context.Context, prefix string, id int64, value any) error {
	return s.write(ctx, EntityKey(prefix, id), value, s.ttl)
}

// FindEntity returns the raw payload stored at "<prefix>:<id>". Absent keys report found=false.
func (s *CacheService) FindEntity(ctx context.Context, prefix string, id int64) ([]byte, bool, error) {
	return s.read(ctx, prefix, EntityKey(prefix, id))
}

// LoadEntity decodes the payload stored at "<prefix>:<id>" into dest.
func (s *CacheService) LoadEntity(ctx context.Context, prefix string, id int64, dest any) (bool, error) {
	payload, found, err := s.FindEntity(ctx, prefix, id)
	if err != nil || !found {
		return false, err
	}
	if err := json.Unmarshal(payload, dest); err != nil {
		return false, fmt.Errorf("cache service: decode %s: %w", prefix, err)
	}
	return true, nil
}

// RemoveEntity deletes "<prefix>:<id>" and returns the store's deletion count.
func (s *CacheService) RemoveEntity(ctx context.Context, prefix string, id int64) (int64, error) {
	return s.store.Delete(ctx, EntityKey(prefix, id))
}

// SaveCollection writes a serialized collection at the bare prefix key.
func (s *CacheService) SaveCollection(ctx context.Context, prefix string, values any) error {
	return s.write(ctx, prefix, values, s.ttl)
}

// FindCollection returns the raw collection payload stored at the bare prefix key.
func (s *CacheService) FindCollection(ctx context.Context, prefix string) ([]byte, bool, error) {
	return s.read(ctx, prefix, prefix)
}

// LoadCollection decodes the collection stored at the bare prefix key into dest.
func (s *CacheService) LoadCollection(ctx context.Context, prefix string, dest any) (bool, error) {
	payload, found, err := s.FindCollection(ctx, prefix)
	if err != nil || !found {
		return false, err
	}
	if err := json.Unmarshal(payload, dest); err != nil {
		return false, fmt.Errorf("cache service: decode %s: %w", prefix, err)
	}
	return true, nil
}

// RemoveCollection deletes the collection key and returns the store's deletion count.
func (s *CacheService) RemoveCollection(ctx context.Context, prefix string) (int64, error) {
	return s.store.Delete(ctx, prefix)
}

// Invalidate drops an entity snapshot together with its collection.
func (s *CacheService) Invalidate(ctx context.Context, entityPrefix string, id int64, collectionPrefix string) {
	if _, err := s.store.Delete(ctx, EntityKey(entityPrefix, id), collectionPrefix); err != nil {
		s.log.Warn("cache invalidation failed",
			zap.String("prefix", entityPrefix),
			zap.Int64("id", id),
			zap.Error(err),
		)
	}
}

// EvictUser drops the cached snapshot of a user and the user listing.
func (s *CacheService) EvictUser(ctx context.Context, id int64) {
	s.Invalidate(ctx, CachePrefixUser, id, CachePrefixUsers)
}

// SaveLastConnected records that id connected now. The fact is retained for LastConnectedTTL.
func (s *CacheService) SaveLastConnected(ctx context.Context, id int64) error {
	record := models.LastConnectedRecord{
		ID:              id,
		LastConnectedAt: s.now().Unix(),
	}
	return s.write(ctx, EntityKey(CachePrefixLastConnected, id), record, s.LastConnectedTTL())
}

// ScanLastConnected lazily yields batches of last-connected keys.
func (s *CacheService) ScanLastConnected(ctx context.Context) iter.Seq2[[]string, error] {
	return s.store.Scan(ctx, CachePrefixLastConnected+":*")
}

// FindLastConnected fetches the raw payload of a scanned last-connected key.
func (s *CacheService) FindLastConnected(ctx context.Context, key string) ([]byte, bool, error) {
	return s.store.Get(ctx, key)
}

func (s *CacheService) write(ctx context.Context, key string, value any, ttl time.Duration) error {
	payload, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("cache service: marshal %s: %w", key, err)
	}
	return s.store.SetWithExpiry(ctx, key, payload, ttl)
}

func (s *CacheService) read(ctx context.Context, prefix, key string) ([]byte, bool, error) {
	payload, found, err := s.store.Get(ctx, key)
	switch {
	case err != nil:
		metrics.CacheLookups.WithLabelValues(prefix, "error").Inc()
		return nil, false, err
	case !found:
		metrics.CacheLookups.WithLabelValues(prefix, "miss").Inc()
		return nil, false, nil
	default:
		metrics.CacheLookups.WithLabelValues(prefix, "hit").Inc()
		return payload, true, nil
	}
}
