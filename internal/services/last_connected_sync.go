package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"iter"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/charlesng35/clinic/internal/models"
	"github.com/charlesng35/clinic/pkg/logger"
	"github.com/charlesng35/clinic/pkg/metrics"
)

var (
	// ErrMalformedCachePayload indicates a cached last-connected value is not valid JSON.
	ErrMalformedCachePayload = errors.New("last connected sync: malformed cache payload")
	// ErrPersistenceFailure indicates the relational store rejected a last-connected update.
	ErrPersistenceFailure = errors.New("last connected sync: persistence failure")
	// ErrSyncInProgress is returned when a run is requested while another is still active.
	ErrSyncInProgress = errors.New("last connected sync: run already in progress")
)

// SyncResult is the tri-state outcome of a sync run.
type SyncResult int

const (
	// SyncResultEmpty means there was nothing to sync, or a scanned key vanished before it was read.
	SyncResultEmpty SyncResult = iota
	// SyncResultOK means every record updated a row.
	SyncResultOK
	// SyncResultStale means at least one record matched no row.
	SyncResultStale
)

func (r SyncResult) String() string {
	switch r {
	case SyncResultOK:
		return "ok"
	case SyncResultStale:
		return "stale"
	default:
		return "empty"
	}
}

// Value maps the result onto true, false or nil.
func (r SyncResult) Value() *bool {
	switch r {
	case SyncResultOK:
		v := true
		return &v
	case SyncResultStale:
		v := false
		return &v
	default:
		return nil
	}
}

// MarshalJSON renders the result as true, false or null.
func (r SyncResult) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.Value())
}

// LastConnectedSource exposes the cached last-connected facts.
type LastConnectedSource interface {
	ScanLastConnected(ctx context.Context) iter.Seq2[[]string, error]
	FindLastConnected(ctx context.Context, key string) ([]byte, bool, error)
}

// LastConnectedWriter persists a last-connected timestamp and reports the affected row count.
type LastConnectedWriter interface {
	UpdateLastConnected(ctx context.Context, id int64, at int64) (int64, error)
}

// userSnapshotEvicter is implemented by sources that also hold cached user snapshots.
type userSnapshotEvicter interface {
	EvictUser(ctx context.Context, id int64)
}

// LastConnectedSync copies last-connected facts from the cache into the users table.
// Runs are strictly sequential; concurrent calls to Run are rejected with ErrSyncInProgress.
type LastConnectedSync struct {
	source  LastConnectedSource
	writer  LastConnectedWriter
	running atomic.Bool
	log     *zap.Logger
}

// NewLastConnectedSync constructs the sync task.
func NewLastConnectedSync(source LastConnectedSource, writer LastConnectedWriter) (*LastConnectedSync, error) {
	if source == nil {
		return nil, errors.New("last connected sync: source is required")
	}
	if writer == nil {
		return nil, errors.New("last connected sync: writer is required")
	}
	return &LastConnectedSync{
		source: source,
		writer: writer,
		log:    logger.WithModule("sync"),
	}, nil
}

// Running reports whether a run is currently active.
func (s *LastConnectedSync) Running() bool {
	return s.running.Load()
}

// Run performs one sync pass. Only the first key of each scanned batch is relayed; the remaining
// keys of a batch are reported at warn level and wait for a later run. A key whose
// value has disappeared aborts the run with SyncResultEmpty. Parse and persistence failures abort
// the run and are returned; a zero-row update only downgrades the result to SyncResultStale.
// A successful update evicts the cached user snapshot when the source holds one.
func (s *LastConnectedSync) Run(ctx context.Context) (SyncResult, error) {
	if !s.running.CompareAndSwap(false, true) {
		metrics.SyncRuns.WithLabelValues("skipped").Inc()
		return SyncResultEmpty, ErrSyncInProgress
	}
	defer s.running.Store(false)

	start := time.Now()
	result, err := s.run(ensureContext(ctx))
	metrics.SyncDuration.Observe(time.Since(start).Seconds())

	outcome := result.String()
	if err != nil {
		outcome = "error"
	}
	metrics.SyncRuns.WithLabelValues(outcome).Inc()

	return result, err
}

func (s *LastConnectedSync) run(ctx context.Context) (SyncResult, error) {
	found := false
	allUpdated := true

	for batch, err := range s.source.ScanLastConnected(ctx) {
		if err != nil {
			return SyncResultEmpty, fmt.Errorf("last connected sync: scan: %w", err)
		}
		if len(batch) == 0 {
			continue
		}

		key := batch[0]
		if skipped := len(batch) - 1; skipped > 0 {
			s.log.Warn("last connected batch holds more keys than one run relays",
				zap.String("key", key),
				zap.Int("skipped", skipped),
			)
		}
		payload, ok, err := s.source.FindLastConnected(ctx, key)
		if err != nil {
			return SyncResultEmpty, fmt.Errorf("last connected sync: get %s: %w", key, err)
		}
		if !ok {
			s.log.Debug("last connected key vanished, aborting run", zap.String("key", key))
			return SyncResultEmpty, nil
		}

		var record models.LastConnectedRecord
		if err := json.Unmarshal(payload, &record); err != nil {
			return SyncResultEmpty, fmt.Errorf("%w: %s: %w", ErrMalformedCachePayload, key, err)
		}
		found = true

		rows, err := s.writer.UpdateLastConnected(ctx, record.ID, record.LastConnectedAt)
		if err != nil {
			return SyncResultEmpty, fmt.Errorf("%w: user %d: %w", ErrPersistenceFailure, record.ID, err)
		}
		if rows == 0 {
			allUpdated = false
			s.log.Warn("last connected record matched no user", zap.Int64("user_id", record.ID))
			continue
		}
		metrics.SyncedRecords.Inc()
		if evicter, ok := s.source.(userSnapshotEvicter); ok {
			evicter.EvictUser(ctx, record.ID)
		}
	}

	switch {
	case !found:
		return SyncResultEmpty, nil
	case allUpdated:
		return SyncResultOK, nil
	default:
		return SyncResultStale, nil
	}
}
