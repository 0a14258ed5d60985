package cache

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"strings"
	"time"
)

// ScanBatchSize bounds how many keys a single scan round trip asks the store for.
const ScanBatchSize = 100

// ErrUnavailable reports that the backing store could not be reached or failed mid-command.
var ErrUnavailable = errors.New("cache: store unavailable")

// Store represents a shared cache interface used across the application.
//
// Get reports a missing key with found=false and a nil error. Scan returns a lazy sequence of
// key batches matching a glob pattern; every call starts a fresh scan and the sequence carries
// no snapshot guarantee, so keys written or removed concurrently may or may not appear.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte) error
	SetWithExpiry(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) (int64, error)
	Scan(ctx context.Context, pattern string) iter.Seq2[[]string, error]
	IncrementWithTTL(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error)
	Ping(ctx context.Context) error
	Close() error
}

func unavailable(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrUnavailable) {
		return err
	}
	return fmt.Errorf("%w: %s: %w", ErrUnavailable, op, err)
}

func ensuredContext(ctx context.Context) context.Context {
	if ctx == nil {
		return context.Background()
	}
	return ctx
}

// normalizeKey collapses repeated colons so "a::b" and "a:b" address the same entry.
func normalizeKey(key string) string {
	if key == "" {
		return key
	}
	var builder strings.Builder
	builder.Grow(len(key))
	prevColon := false
	for i := 0; i < len(key); i++ {
		ch := key[i]
		if ch == ':' {
			if prevColon {
				continue
			}
			prevColon = true
		} else {
			prevColon = false
		}
		builder.WriteByte(ch)
	}
	return builder.String()
}
