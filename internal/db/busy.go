package db

import (
	"context"
	"strings"
	"sync/atomic"
	"time"
)

const (
	writeRetryAttempts = 8
	writeRetryBackoff  = 100 * time.Millisecond
	maxRetryBackoff    = 5 * time.Second
)

// IsBusy reports whether err is SQLite's SQLITE_BUSY (database locked).
func IsBusy(err error) bool {
	if err == nil {
		return false
	}
	s := err.Error()
	return strings.Contains(s, "SQLITE_BUSY") || strings.Contains(s, "database is locked")
}

var busyRetryCount atomic.Int64

// BusyRetryCount returns the number of busy retries since the last reset.
func BusyRetryCount() int64 {
	return busyRetryCount.Load()
}

// ResetBusyRetryCount zeroes the busy retry counter (start of a batch run).
func ResetBusyRetryCount() {
	busyRetryCount.Store(0)
}

// RetryOnBusy runs fn, retrying with doubling backoff (capped at 5s) while it
// returns a busy error, up to maxAttempts runs in total. Any other error is
// returned immediately. Returns ctx.Err() if ctx is done while backing off,
// and the last busy error when attempts are exhausted.
func RetryOnBusy(ctx context.Context, maxAttempts int, initialBackoff time.Duration, fn func() error) error {
	var lastErr error
	backoff := initialBackoff
	for attempt := 0; attempt < maxAttempts; attempt++ {
		lastErr = fn()
		if !IsBusy(lastErr) {
			return lastErr
		}
		if attempt == maxAttempts-1 {
			break
		}
		busyRetryCount.Add(1)
		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
		backoff = min(backoff*2, maxRetryBackoff)
	}
	return lastErr
}

// retry wraps a write in RetryOnBusy. Postgres never reports SQLITE_BUSY so
// this is a single call there.
func (s *Store) retry(ctx context.Context, fn func() error) error {
	return RetryOnBusy(ctx, writeRetryAttempts, writeRetryBackoff, fn)
}
