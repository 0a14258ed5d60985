package cache

import (
	"context"
	"errors"
	"iter"
	"strconv"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/charlesng35/clinic/internal/models"
)

var errDatabaseStoreNotInitialised = errors.New("cache: database store not initialised")

var keyColumn = clause.Column{Name: "key"}

// DatabaseStore implements the cache Store interface using the primary SQL database.
type DatabaseStore struct {
	db  *gorm.DB
	now func() time.Time
}

// DatabaseStoreOption customises a DatabaseStore.
type DatabaseStoreOption func(*DatabaseStore)

// WithClock overrides the clock used for expiry decisions.
func WithClock(now func() time.Time) DatabaseStoreOption {
	return func(s *DatabaseStore) {
		if now != nil {
			s.now = now
		}
	}
}

// NewDatabaseStore constructs a database-backed Store.
func NewDatabaseStore(db *gorm.DB, opts ...DatabaseStoreOption) *DatabaseStore {
	if db == nil {
		return nil
	}
	store := &DatabaseStore{db: db, now: time.Now}
	for _, opt := range opts {
		opt(store)
	}
	return store
}

// IncrementWithTTL atomically increments a counter for the supplied key.
func (s *DatabaseStore) IncrementWithTTL(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error) {
	if s == nil {
		return 0, 0, errDatabaseStoreNotInitialised
	}
	if window <= 0 {
		window = time.Minute
	}

	key = normalizeKey(key)
	now := s.now()
	expiry := now.Add(window)

	var count int64
	err := s.db.WithContext(ensuredContext(ctx)).Transaction(func(tx *gorm.DB) error {
		var entry models.CacheEntry
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where(clause.Eq{Column: keyColumn, Value: key}).
			Take(&entry).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			count = 1
			entry = models.CacheEntry{
				Key:       key,
				Value:     []byte("1"),
				ExpiresAt: &expiry,
			}
			return tx.Create(&entry).Error
		}
		if err != nil {
			return err
		}

		if entry.Expired(now) {
			count = 1
			entry.ExpiresAt = &expiry
		} else {
			current, _ := strconv.ParseInt(string(entry.Value), 10, 64)
			count = current + 1
			if entry.ExpiresAt == nil {
				entry.ExpiresAt = &expiry
			}
		}
		entry.Value = []byte(strconv.FormatInt(count, 10))

		return tx.Save(&entry).Error
	})
	if err != nil {
		return 0, 0, unavailable("increment", err)
	}

	return count, expiry.Sub(now), nil
}

// Set upserts the value for a given key without expiry.
func (s *DatabaseStore) Set(ctx context.Context, key string, value []byte) error {
	return s.SetWithExpiry(ctx, key, value, 0)
}

// SetWithExpiry upserts the value for a given key. A non-positive ttl stores the value without expiry.
func (s *DatabaseStore) SetWithExpiry(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if s == nil {
		return errDatabaseStoreNotInitialised
	}

	entry := models.CacheEntry{
		Key:   normalizeKey(key),
		Value: value,
	}
	if ttl > 0 {
		expiry := s.now().Add(ttl)
		entry.ExpiresAt = &expiry
	}

	err := s.db.WithContext(ensuredContext(ctx)).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{keyColumn},
			DoUpdates: clause.AssignmentColumns([]string{"value", "expires_at", "updated_at"}),
		}).Create(&entry).Error
	return unavailable("set", err)
}

// Get retrieves a value by key, respecting expiry.
func (s *DatabaseStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if s == nil {
		return nil, false, errDatabaseStoreNotInitialised
	}
	ctx = ensuredContext(ctx)
	key = normalizeKey(key)

	var entry models.CacheEntry
	err := s.db.WithContext(ctx).Where(clause.Eq{Column: keyColumn, Value: key}).Take(&entry).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, unavailable("get", err)
	}

	if entry.Expired(s.now()) {
		_, _ = s.Delete(ctx, key)
		return nil, false, nil
	}

	return entry.Value, true, nil
}

// Delete removes keys from the store and reports how many live entries were removed.
func (s *DatabaseStore) Delete(ctx context.Context, keys ...string) (int64, error) {
	if s == nil {
		return 0, errDatabaseStoreNotInitialised
	}
	if len(keys) == 0 {
		return 0, nil
	}

	values := make([]any, 0, len(keys))
	for _, key := range keys {
		values = append(values, normalizeKey(key))
	}

	result := s.db.WithContext(ensuredContext(ctx)).
		Where(clause.IN{Column: keyColumn, Values: values}).
		Delete(&models.CacheEntry{})
	if result.Error != nil {
		return 0, unavailable("delete", result.Error)
	}
	return result.RowsAffected, nil
}

// Scan pages through live keys matching the glob pattern in key order, ScanBatchSize at a time.
func (s *DatabaseStore) Scan(ctx context.Context, pattern string) iter.Seq2[[]string, error] {
	return func(yield func([]string, error) bool) {
		if s == nil {
			yield(nil, errDatabaseStoreNotInitialised)
			return
		}
		ctx := ensuredContext(ctx)
		like := globToLike(normalizeKey(pattern))
		after := ""

		for {
			query := s.db.WithContext(ctx).
				Select("key", "expires_at").
				Where(clause.Expr{SQL: "? LIKE ? ESCAPE ?", Vars: []any{keyColumn, like, `\`}}).
				Order(clause.OrderByColumn{Column: keyColumn}).
				Limit(ScanBatchSize)
			if after != "" {
				query = query.Where(clause.Gt{Column: keyColumn, Value: after})
			}

			var entries []models.CacheEntry
			if err := query.Find(&entries).Error; err != nil {
				yield(nil, unavailable("scan", err))
				return
			}
			if len(entries) == 0 {
				return
			}

			now := s.now()
			keys := make([]string, 0, len(entries))
			for _, entry := range entries {
				if !entry.Expired(now) {
					keys = append(keys, entry.Key)
				}
			}
			if !yield(keys, nil) {
				return
			}
			if len(entries) < ScanBatchSize {
				return
			}
			after = entries[len(entries)-1].Key
		}
	}
}

// Ping checks the underlying database connection.
func (s *DatabaseStore) Ping(ctx context.Context) error {
	if s == nil {
		return errDatabaseStoreNotInitialised
	}
	sqlDB, err := s.db.DB()
	if err != nil {
		return unavailable("ping", err)
	}
	return unavailable("ping", sqlDB.PingContext(ensuredContext(ctx)))
}

// Close is a no-op; the database handle is owned by the caller.
func (s *DatabaseStore) Close() error {
	return nil
}

// globToLike converts a Redis-style glob (only * and ?) into a LIKE pattern escaped with a backslash.
func globToLike(pattern string) string {
	var builder strings.Builder
	builder.Grow(len(pattern) + 4)
	for _, r := range pattern {
		switch r {
		case '*':
			builder.WriteByte('%')
		case '?':
			builder.WriteByte('_')
		case '%', '_', '\\':
			builder.WriteByte('\\')
			builder.WriteRune(r)
		default:
			builder.WriteRune(r)
		}
	}
	return builder.String()
}
