// Package batch checksums every file under a root and records the results in the ledger.
package batch

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/eargollo/crcsum/internal/checksum"
	"github.com/eargollo/crcsum/internal/db"
	"github.com/eargollo/crcsum/internal/scan"
	"golang.org/x/time/rate"
)

const progressLogInterval = 100                // log "N files" every this many files
const slowOpThreshold = 100 * time.Millisecond // log when a single DB op exceeds this
const jobChannelCap = 1000                     // bounded; the walker blocks when workers fall behind
const fileLogInterval = 5 * time.Second        // at most one per-file log line every this long

func logSlowIf(op string, start time.Time) {
	if d := time.Since(start); d > slowOpThreshold {
		log.Printf("[batch] slow: %s took %v", op, d)
	}
}

// fileLogger throttles per-file log lines across workers.
type fileLogger struct {
	mu   sync.Mutex
	last time.Time
}

func (l *fileLogger) printf(format string, args ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if time.Since(l.last) < fileLogInterval {
		return
	}
	l.last = time.Now()
	log.Printf(format, args...)
}

// Options configures a batch run. Nil means defaults.
type Options struct {
	Workers           int      // default 1
	MaxFilesPerSecond int      // 0 = no throttle; reused checksums are not throttled
	BlockSize         int      // read block size; 0 = checksum.DefaultBlockSize
	ExcludePatterns   []string // see scan.ShouldExclude
}

func (o *Options) workers() int {
	if o == nil || o.Workers <= 0 {
		return 1
	}
	return o.Workers
}

func (o *Options) blockSize() int {
	if o == nil {
		return 0
	}
	return o.BlockSize
}

func (o *Options) limiter() *rate.Limiter {
	if o == nil || o.MaxFilesPerSecond <= 0 {
		return nil
	}
	return rate.NewLimiter(rate.Limit(o.MaxFilesPerSecond), 1)
}

func (o *Options) patterns() []string {
	if o == nil {
		return nil
	}
	return o.ExcludePatterns
}

// Summary is the outcome of a completed run.
type Summary struct {
	RunID       int64
	Files       int64 // files seen
	Checksummed int64 // files read and checksummed
	Reused      int64 // unchanged files whose checksum came from an earlier run
	Errors      int64 // files that failed to open or read
	Bytes       int64 // bytes of files with a checksum (read or reused)
	Elapsed     time.Duration
}

type counters struct {
	files, checksummed, reused, errors, bytes atomic.Int64
}

func (c *counters) stats() db.RunStats {
	return db.RunStats{
		Files:       c.files.Load(),
		Checksummed: c.checksummed.Load(),
		Reused:      c.reused.Load(),
		Errors:      c.errors.Load(),
		Bytes:       c.bytes.Load(),
	}
}

// Run creates a run for root, checksums every regular file under it (or root
// itself when it is a file) with a pool of workers, records one result per
// file and completes the run. A file that fails to open or read is recorded
// with its error and counted; it does not stop the run. A ledger error or
// cancellation stops the run and leaves it without completed_at.
func Run(ctx context.Context, store *db.Store, root string, opts *Options) (*Summary, error) {
	root = filepath.Clean(root)
	if _, err := os.Stat(root); err != nil {
		return nil, err
	}
	run, err := store.CreateRun(ctx, root)
	if err != nil {
		return nil, err
	}
	db.ResetBusyRetryCount()
	n := opts.workers()
	log.Printf("[batch] run %d started for %s (%d worker(s))", run.ID, root, n)

	start := time.Now()
	var c counters
	if err := runWorkers(ctx, store, run.ID, root, opts, n, &c, start); err != nil {
		log.Printf("[batch] run %d failed: %v", run.ID, err)
		return nil, err
	}
	st := c.stats()
	if err := store.CompleteRun(ctx, run.ID, st); err != nil {
		return nil, err
	}
	elapsed := time.Since(start)
	log.Printf("[batch] run %d completed in %s: %d files, %d checksummed, %d reused, %d errors, %d bytes (SQLITE_BUSY retries: %d)",
		run.ID, formatDuration(elapsed), st.Files, st.Checksummed, st.Reused, st.Errors, st.Bytes, db.BusyRetryCount())
	return &Summary{
		RunID:       run.ID,
		Files:       st.Files,
		Checksummed: st.Checksummed,
		Reused:      st.Reused,
		Errors:      st.Errors,
		Bytes:       st.Bytes,
		Elapsed:     elapsed,
	}, nil
}

// runWorkers: the walker is the single producer feeding a bounded channel;
// n consumers checksum and record. The first producer or consumer error
// cancels the rest.
func runWorkers(ctx context.Context, store *db.Store, runID int64, root string, opts *Options, n int, c *counters, start time.Time) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	jobs := make(chan scan.Entry, jobChannelCap)
	errCh := make(chan error, 1)
	fail := func(err error) {
		select {
		case errCh <- err:
		default:
		}
		cancel()
	}

	go func() {
		defer close(jobs)
		err := scan.Walk(ctx, root, opts.patterns(), func(e scan.Entry) error {
			select {
			case jobs <- e:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		})
		if err != nil {
			fail(err)
		}
	}()

	limiter := opts.limiter()
	logger := &fileLogger{}
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for e := range jobs {
				if ctx.Err() != nil {
					continue // drain so the walker can exit
				}
				if err := processEntry(ctx, store, runID, e, opts.blockSize(), limiter, c, logger); err != nil {
					fail(err)
					continue
				}
				progressLog(c.files.Load(), start)
			}
		}()
	}
	wg.Wait()

	select {
	case err := <-errCh:
		return err
	default:
	}
	// Parent cancellation with no recorded error (e.g. walk finished first).
	return ctx.Err()
}

// processEntry checksums one file (or reuses an earlier result) and records it.
// Only ledger and context errors are returned.
func processEntry(ctx context.Context, store *db.Store, runID int64, e scan.Entry, blockSize int, limiter *rate.Limiter, c *counters, logger *fileLogger) error {
	c.files.Add(1)
	now := time.Now()

	t0 := time.Now()
	prev, err := store.PreviousChecksum(ctx, runID, e.Path, e.Size, e.MTime)
	logSlowIf("PreviousChecksum", t0)
	if err != nil {
		return err
	}
	if prev != "" {
		logger.printf("[batch] reused %s [%s]", e.Path, prev)
		if err := record(ctx, store, runID, e, prev, "", now); err != nil {
			return err
		}
		c.reused.Add(1)
		c.bytes.Add(e.Size)
		return nil
	}

	if limiter != nil {
		if err := limiter.Wait(ctx); err != nil {
			return err
		}
	}
	logger.printf("[batch] checksumming %s (%d bytes)", e.Path, e.Size)
	sum, err := checksum.ComputeContext(ctx, e.Path, blockSize)
	if err != nil {
		if ctx.Err() != nil && errors.Is(err, ctx.Err()) {
			return ctx.Err()
		}
		log.Printf("[batch] failed %s: %v", e.Path, err)
		c.errors.Add(1)
		return record(ctx, store, runID, e, "", err.Error(), now)
	}
	c.checksummed.Add(1)
	c.bytes.Add(e.Size)
	return record(ctx, store, runID, e, sum.String(), "", now)
}

func record(ctx context.Context, store *db.Store, runID int64, e scan.Entry, sum, errMsg string, now time.Time) error {
	t0 := time.Now()
	err := store.RecordResult(ctx, runID, e.Path, e.Size, e.MTime, sum, errMsg, now)
	logSlowIf("RecordResult", t0)
	return err
}

// progressLog logs the running file count and rate every progressLogInterval files.
// The total is unknown while the walk is in progress, so there is no ETA.
func progressLog(n int64, start time.Time) {
	if n == 0 || n%progressLogInterval != 0 {
		return
	}
	elapsed := time.Since(start)
	msg := fmt.Sprintf("[batch] progress: %d files | elapsed %s", n, formatDuration(elapsed))
	if secs := elapsed.Seconds(); secs >= 1 {
		msg += fmt.Sprintf(" | %.1f files/s", float64(n)/secs)
	}
	log.Print(msg)
}

func formatDuration(d time.Duration) string {
	if d < 0 {
		d = -d
	}
	if d < time.Minute {
		return fmt.Sprintf("%.0fs", d.Seconds())
	}
	if d < time.Hour {
		m := int(d.Minutes())
		s := int(d.Seconds()) % 60
		if s == 0 {
			return fmt.Sprintf("%dm", m)
		}
		return fmt.Sprintf("%dm%ds", m, s)
	}
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	if m == 0 {
		return fmt.Sprintf("%dh", h)
	}
	return fmt.Sprintf("%dh%dm", h, m)
}
