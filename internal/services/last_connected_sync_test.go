package services

import (
	"context"
	"errors"
	"iter"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/charlesng35/clinic/internal/cache"
	"github.com/charlesng35/clinic/internal/models"
	"github.com/charlesng35/clinic/internal/repository"
)

type fakeSource struct {
	batches [][]string
	values  map[string][]byte
	scanErr error
	getErr  error
	gets    []string
	block   chan struct{}
}

func (f *fakeSource) ScanLastConnected(context.Context) iter.Seq2[[]string, error] {
	return func(yield func([]string, error) bool) {
		if f.block != nil {
			<-f.block
		}
		if f.scanErr != nil {
			yield(nil, f.scanErr)
			return
		}
		for _, batch := range f.batches {
			if !yield(batch, nil) {
				return
			}
		}
	}
}

func (f *fakeSource) FindLastConnected(_ context.Context, key string) ([]byte, bool, error) {
	f.gets = append(f.gets, key)
	if f.getErr != nil {
		return nil, false, f.getErr
	}
	value, ok := f.values[key]
	return value, ok, nil
}

type updateCall struct {
	id int64
	at int64
}

type fakeWriter struct {
	mu    sync.Mutex
	rows  map[int64]int64
	err   error
	calls []updateCall
}

func (f *fakeWriter) UpdateLastConnected(_ context.Context, id int64, at int64) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, updateCall{id: id, at: at})
	if f.err != nil {
		return 0, f.err
	}
	if rows, ok := f.rows[id]; ok {
		return rows, nil
	}
	return 1, nil
}

func newTestSync(t *testing.T, source LastConnectedSource, writer LastConnectedWriter) *LastConnectedSync {
	t.Helper()
	task, err := NewLastConnectedSync(source, writer)
	require.NoError(t, err)
	return task
}

func TestLastConnectedSyncAllUpdated(t *testing.T) {
	source := &fakeSource{
		batches: [][]string{{"last_connected_at:1"}, {"last_connected_at:2"}},
		values: map[string][]byte{
			"last_connected_at:1": []byte(`{"id":1,"last_connected_at":1000}`),
			"last_connected_at:2": []byte(`{"id":2,"last_connected_at":2000}`),
		},
	}
	writer := &fakeWriter{}

	result, err := newTestSync(t, source, writer).Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, SyncResultOK, result)
	require.Equal(t, []updateCall{{id: 1, at: 1000}, {id: 2, at: 2000}}, writer.calls)
}

func TestLastConnectedSyncNoBatches(t *testing.T) {
	source := &fakeSource{}
	writer := &fakeWriter{}

	result, err := newTestSync(t, source, writer).Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, SyncResultEmpty, result)
	require.Nil(t, result.Value())
	require.Empty(t, source.gets)
	require.Empty(t, writer.calls)
}

func TestLastConnectedSyncSkipsEmptyBatches(t *testing.T) {
	source := &fakeSource{
		batches: [][]string{{}, {"last_connected_at:1"}, {}},
		values: map[string][]byte{
			"last_connected_at:1": []byte(`{"id":1,"last_connected_at":10}`),
		},
	}
	writer := &fakeWriter{}

	result, err := newTestSync(t, source, writer).Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, SyncResultOK, result)
	require.Len(t, writer.calls, 1)
}

func TestLastConnectedSyncOnlyEmptyBatches(t *testing.T) {
	source := &fakeSource{batches: [][]string{{}, {}}}
	writer := &fakeWriter{}

	result, err := newTestSync(t, source, writer).Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, SyncResultEmpty, result)
	require.Empty(t, source.gets)
}

func TestLastConnectedSyncReadsFirstKeyOfEachBatch(t *testing.T) {
	source := &fakeSource{
		batches: [][]string{{"last_connected_at:1", "last_connected_at:3"}},
		values: map[string][]byte{
			"last_connected_at:1": []byte(`{"id":1,"last_connected_at":10}`),
			"last_connected_at:3": []byte(`{"id":3,"last_connected_at":30}`),
		},
	}
	writer := &fakeWriter{}

	core, logs := observer.New(zapcore.WarnLevel)
	task := newTestSync(t, source, writer)
	task.log = zap.New(core)

	result, err := task.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, SyncResultOK, result)
	require.Equal(t, []string{"last_connected_at:1"}, source.gets)
	require.Equal(t, []updateCall{{id: 1, at: 10}}, writer.calls)

	entries := logs.FilterMessage("last connected batch holds more keys than one run relays").All()
	require.Len(t, entries, 1)
	require.EqualValues(t, 1, entries[0].ContextMap()["skipped"])
	require.Equal(t, "last_connected_at:1", entries[0].ContextMap()["key"])
}

func TestLastConnectedSyncZeroRowsDoesNotShortCircuit(t *testing.T) {
	source := &fakeSource{
		batches: [][]string{{"last_connected_at:1"}, {"last_connected_at:2"}, {"last_connected_at:3"}},
		values: map[string][]byte{
			"last_connected_at:1": []byte(`{"id":1,"last_connected_at":1}`),
			"last_connected_at:2": []byte(`{"id":2,"last_connected_at":2}`),
			"last_connected_at:3": []byte(`{"id":3,"last_connected_at":3}`),
		},
	}
	writer := &fakeWriter{rows: map[int64]int64{2: 0}}

	result, err := newTestSync(t, source, writer).Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, SyncResultStale, result)
	require.False(t, *result.Value())
	require.Len(t, writer.calls, 3)
}

func TestLastConnectedSyncMissingValueAborts(t *testing.T) {
	source := &fakeSource{
		batches: [][]string{{"last_connected_at:1"}, {"last_connected_at:2"}},
		values: map[string][]byte{
			"last_connected_at:2": []byte(`{"id":2,"last_connected_at":2}`),
		},
	}
	writer := &fakeWriter{}

	result, err := newTestSync(t, source, writer).Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, SyncResultEmpty, result)
	require.Empty(t, writer.calls)
	require.Equal(t, []string{"last_connected_at:1"}, source.gets)
}

func TestLastConnectedSyncMissingValueAfterWritesStillReportsEmpty(t *testing.T) {
	source := &fakeSource{
		batches: [][]string{{"last_connected_at:1"}, {"last_connected_at:2"}},
		values: map[string][]byte{
			"last_connected_at:1": []byte(`{"id":1,"last_connected_at":1}`),
		},
	}
	writer := &fakeWriter{}

	result, err := newTestSync(t, source, writer).Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, SyncResultEmpty, result)
	require.Len(t, writer.calls, 1)
}

func TestLastConnectedSyncMalformedPayload(t *testing.T) {
	source := &fakeSource{
		batches: [][]string{{"last_connected_at:1"}},
		values: map[string][]byte{
			"last_connected_at:1": []byte("not-json"),
		},
	}
	writer := &fakeWriter{}

	_, err := newTestSync(t, source, writer).Run(context.Background())
	require.ErrorIs(t, err, ErrMalformedCachePayload)
	require.Empty(t, writer.calls)
}

func TestLastConnectedSyncPersistenceFailureAborts(t *testing.T) {
	source := &fakeSource{
		batches: [][]string{{"last_connected_at:1"}, {"last_connected_at:2"}},
		values: map[string][]byte{
			"last_connected_at:1": []byte(`{"id":1,"last_connected_at":1}`),
			"last_connected_at:2": []byte(`{"id":2,"last_connected_at":2}`),
		},
	}
	dbErr := errors.New("disk full")
	writer := &fakeWriter{err: dbErr}

	_, err := newTestSync(t, source, writer).Run(context.Background())
	require.ErrorIs(t, err, ErrPersistenceFailure)
	require.ErrorIs(t, err, dbErr)
	require.Len(t, writer.calls, 1)
}

func TestLastConnectedSyncPropagatesCacheUnavailable(t *testing.T) {
	source := &fakeSource{scanErr: cache.ErrUnavailable}

	_, err := newTestSync(t, source, &fakeWriter{}).Run(context.Background())
	require.ErrorIs(t, err, cache.ErrUnavailable)

	source = &fakeSource{
		batches: [][]string{{"last_connected_at:1"}},
		getErr:  cache.ErrUnavailable,
	}
	_, err = newTestSync(t, source, &fakeWriter{}).Run(context.Background())
	require.ErrorIs(t, err, cache.ErrUnavailable)
}

func TestLastConnectedSyncRejectsOverlappingRuns(t *testing.T) {
	source := &fakeSource{block: make(chan struct{})}
	task := newTestSync(t, source, &fakeWriter{})

	done := make(chan error, 1)
	go func() {
		_, err := task.Run(context.Background())
		done <- err
	}()

	require.Eventually(t, task.Running, time.Second, 5*time.Millisecond)

	_, err := task.Run(context.Background())
	require.ErrorIs(t, err, ErrSyncInProgress)

	close(source.block)
	require.NoError(t, <-done)
	require.False(t, task.Running())

	_, err = task.Run(context.Background())
	require.NoError(t, err)
}

func TestSyncResultJSON(t *testing.T) {
	for result, want := range map[SyncResult]string{
		SyncResultOK:    "true",
		SyncResultStale: "false",
		SyncResultEmpty: "null",
	} {
		raw, err := result.MarshalJSON()
		require.NoError(t, err)
		require.Equal(t, want, string(raw))
	}
}

func TestLastConnectedSyncEndToEnd(t *testing.T) {
	db := openServiceTestDB(t)
	users, err := repository.NewUserRepository(db)
	require.NoError(t, err)
	ctx := context.Background()

	user := &models.User{Email: "sync@example.com", Password: "x"}
	require.NoError(t, users.Create(ctx, user))

	now := time.Unix(1710000000, 0)
	cacheSvc := newTestCacheService(t, cache.NewDatabaseStore(db), WithCacheClock(func() time.Time { return now }))
	require.NoError(t, cacheSvc.SaveLastConnected(ctx, user.ID))

	result, err := newTestSync(t, cacheSvc, users).Run(ctx)
	require.NoError(t, err)
	require.Equal(t, SyncResultOK, result)

	reloaded, err := users.FindByID(ctx, user.ID)
	require.NoError(t, err)
	require.EqualValues(t, 1710000000, reloaded.LastConnectedAt)

	_, found, err := cacheSvc.FindLastConnected(ctx, EntityKey(CachePrefixLastConnected, user.ID))
	require.NoError(t, err)
	require.True(t, found, "sync leaves cached facts in place")
}

func TestLastConnectedSyncDatabaseStoreBatchesTwoUsers(t *testing.T) {
	db := openServiceTestDB(t)
	users, err := repository.NewUserRepository(db)
	require.NoError(t, err)
	ctx := context.Background()

	first := &models.User{Email: "first@example.com", Password: "x"}
	second := &models.User{Email: "second@example.com", Password: "x"}
	require.NoError(t, users.Create(ctx, first))
	require.NoError(t, users.Create(ctx, second))

	now := time.Unix(1000, 0)
	cacheSvc := newTestCacheService(t, cache.NewDatabaseStore(db), WithCacheClock(func() time.Time { return now }))
	require.NoError(t, cacheSvc.SaveLastConnected(ctx, first.ID))
	require.NoError(t, cacheSvc.SaveLastConnected(ctx, second.ID))

	core, logs := observer.New(zapcore.WarnLevel)
	task := newTestSync(t, cacheSvc, users)
	task.log = zap.New(core)

	result, err := task.Run(ctx)
	require.NoError(t, err)
	require.Equal(t, SyncResultOK, result)

	reloaded, err := users.FindByID(ctx, first.ID)
	require.NoError(t, err)
	require.EqualValues(t, 1000, reloaded.LastConnectedAt)
	reloaded, err = users.FindByID(ctx, second.ID)
	require.NoError(t, err)
	require.Zero(t, reloaded.LastConnectedAt)

	entries := logs.FilterMessage("last connected batch holds more keys than one run relays").All()
	require.Len(t, entries, 1)
	require.EqualValues(t, 1, entries[0].ContextMap()["skipped"])
}

func TestLastConnectedSyncEvictsCachedUser(t *testing.T) {
	db := openServiceTestDB(t)
	users, err := repository.NewUserRepository(db)
	require.NoError(t, err)
	ctx := context.Background()

	user := &models.User{Email: "stale@example.com", Password: "x"}
	require.NoError(t, users.Create(ctx, user))

	store := newMemoryStore()
	cacheSvc := newTestCacheService(t, store, WithCacheClock(func() time.Time { return time.Unix(5000, 0) }))
	require.NoError(t, cacheSvc.SaveEntity(ctx, CachePrefixUser, user.ID, user))
	require.NoError(t, cacheSvc.SaveCollection(ctx, CachePrefixUsers, []models.User{*user}))
	require.NoError(t, cacheSvc.SaveLastConnected(ctx, user.ID))

	result, err := newTestSync(t, cacheSvc, users).Run(ctx)
	require.NoError(t, err)
	require.Equal(t, SyncResultOK, result)

	require.False(t, store.has(EntityKey(CachePrefixUser, user.ID)))
	require.False(t, store.has(CachePrefixUsers))
	require.True(t, store.has(EntityKey(CachePrefixLastConnected, user.ID)))

	svc, err := NewUserService(users, cacheSvc)
	require.NoError(t, err)
	fresh, err := svc.Get(ctx, user.ID)
	require.NoError(t, err)
	require.EqualValues(t, 5000, fresh.LastConnectedAt)
}

func TestLastConnectedSyncKeepsSnapshotWhenNoRowMatched(t *testing.T) {
	store := newMemoryStore()
	cacheSvc := newTestCacheService(t, store)
	ctx := context.Background()
	require.NoError(t, cacheSvc.SaveEntity(ctx, CachePrefixUser, 9, map[string]any{"id": 9}))
	require.NoError(t, cacheSvc.SaveLastConnected(ctx, 9))

	result, err := newTestSync(t, cacheSvc, &fakeWriter{rows: map[int64]int64{9: 0}}).Run(ctx)
	require.NoError(t, err)
	require.Equal(t, SyncResultStale, result)
	require.True(t, store.has(EntityKey(CachePrefixUser, 9)))
}

func TestNewLastConnectedSyncRequiresCollaborators(t *testing.T) {
	_, err := NewLastConnectedSync(nil, &fakeWriter{})
	require.Error(t, err)
	_, err = NewLastConnectedSync(&fakeSource{}, nil)
	require.Error(t, err)
}
