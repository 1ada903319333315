package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"eve-marketscan/internal/logger"
)

// PriceSource fetches prices for one chunk of type IDs at one location.
// Any returned error (transport, timeout, malformed payload) counts as a
// failed attempt for that chunk.
type PriceSource interface {
	FetchPrices(ctx context.Context, locationID int64, typeIDs []int32) (map[int32]Snapshot, error)
}

// FetchObserver receives per-request telemetry from a BulkFetcher.
type FetchObserver interface {
	ObserveRequest(outcome string, elapsed time.Duration)
	ObserveRetry()
	ObserveDroppedChunk()
}

// Request outcomes reported to a FetchObserver.
const (
	OutcomeOK      = "ok"
	OutcomeTimeout = "timeout"
	OutcomeError   = "error"
)

// FetchOptions controls chunking, concurrency and retries.
type FetchOptions struct {
	ChunkSize int           // ids per request
	Workers   int           // concurrent requests
	Retries   int           // extra attempts after the first
	Timeout   time.Duration // per attempt; 0 = none
	MaxChunks int           // 0 = all chunks
}

// FetchResult is the merged outcome of one bulk fetch.
type FetchResult struct {
	Items        map[int32]Snapshot
	Chunks       int
	FailedChunks int
	Attempts     int64
	Duration     time.Duration
}

// BulkFetcher splits a type ID universe into chunks and fetches them
// concurrently. The worker limit is shared by every Fetch call on the same
// BulkFetcher, so concurrent fetches for several locations never exceed it.
type BulkFetcher struct {
	source   PriceSource
	opts     FetchOptions
	observer FetchObserver
	sem      chan struct{}
}

// NewBulkFetcher creates a fetcher. observer may be nil.
func NewBulkFetcher(source PriceSource, opts FetchOptions, observer FetchObserver) *BulkFetcher {
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = 1000
	}
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	if opts.Retries < 0 {
		opts.Retries = 0
	}
	return &BulkFetcher{
		source:   source,
		opts:     opts,
		observer: observer,
		sem:      make(chan struct{}, opts.Workers),
	}
}

// Options returns the effective options.
func (f *BulkFetcher) Options() FetchOptions {
	return f.opts
}

// ChunkIDs partitions ids into consecutive chunks of size (the last may be
// smaller). Chunks share the backing array of ids.
func ChunkIDs(ids []int32, size int) [][]int32 {
	if size <= 0 || len(ids) == 0 {
		return nil
	}
	chunks := make([][]int32, 0, (len(ids)+size-1)/size)
	for start := 0; start < len(ids); start += size {
		end := start + size
		if end > len(ids) {
			end = len(ids)
		}
		chunks = append(chunks, ids[start:end:end])
	}
	return chunks
}

// Fetch requests every chunk of typeIDs for locationID and merges the results.
// It never fails: a chunk that exhausts its attempts contributes nothing.
func (f *BulkFetcher) Fetch(ctx context.Context, locationID int64, typeIDs []int32, progress func(string)) FetchResult {
	started := time.Now()
	if progress == nil {
		progress = func(string) {}
	}

	chunks := ChunkIDs(typeIDs, f.opts.ChunkSize)
	if f.opts.MaxChunks > 0 && len(chunks) > f.opts.MaxChunks {
		chunks = chunks[:f.opts.MaxChunks]
	}

	slots := make([]map[int32]Snapshot, len(chunks))
	var attempts, failed, done atomic.Int64
	var progressMu sync.Mutex

	var g errgroup.Group
	g.SetLimit(f.opts.Workers)
	for i, chunk := range chunks {
		g.Go(func() error {
			items, n, ok := f.fetchChunk(ctx, locationID, chunk)
			slots[i] = items
			attempts.Add(int64(n))
			if !ok {
				failed.Add(1)
			}
			finished := done.Add(1)
			progressMu.Lock()
			progress(fmt.Sprintf("Collecting prices %d/%d requests", finished, len(chunks)))
			progressMu.Unlock()
			return nil
		})
	}
	g.Wait()

	merged := make(map[int32]Snapshot)
	for _, items := range slots {
		for id, snap := range items {
			merged[id] = snap
		}
	}

	res := FetchResult{
		Items:        merged,
		Chunks:       len(chunks),
		FailedChunks: int(failed.Load()),
		Attempts:     attempts.Load(),
		Duration:     time.Since(started),
	}
	if res.FailedChunks > 0 {
		logger.Warn("FETCH", fmt.Sprintf("Location %d: %d/%d chunks gave up after %d attempts each",
			locationID, res.FailedChunks, res.Chunks, f.opts.Retries+1))
	}
	return res
}

// fetchChunk runs the sequential retry loop for a single chunk. It returns the
// items (nil on failure), the number of attempts made and whether one succeeded.
func (f *BulkFetcher) fetchChunk(ctx context.Context, locationID int64, chunk []int32) (map[int32]Snapshot, int, bool) {
	f.sem <- struct{}{}
	defer func() { <-f.sem }()

	maxAttempts := f.opts.Retries + 1
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if attempt > 1 && f.observer != nil {
			f.observer.ObserveRetry()
		}

		items, err := f.attempt(ctx, locationID, chunk)
		if err == nil {
			return items, attempt, true
		}
		logger.Debug("FETCH", fmt.Sprintf("Location %d chunk of %d ids: attempt %d/%d failed: %v",
			locationID, len(chunk), attempt, maxAttempts, err))
	}

	if f.observer != nil {
		f.observer.ObserveDroppedChunk()
	}
	return nil, maxAttempts, false
}

func (f *BulkFetcher) attempt(ctx context.Context, locationID int64, chunk []int32) (map[int32]Snapshot, error) {
	reqCtx := ctx
	if f.opts.Timeout > 0 {
		var cancel context.CancelFunc
		reqCtx, cancel = context.WithTimeout(ctx, f.opts.Timeout)
		defer cancel()
	}

	started := time.Now()
	items, err := f.source.FetchPrices(reqCtx, locationID, chunk)
	if err == nil && items == nil {
		items = map[int32]Snapshot{}
	}
	if f.observer != nil {
		f.observer.ObserveRequest(outcomeOf(err), time.Since(started))
	}
	return items, err
}

func outcomeOf(err error) string {
	switch {
	case err == nil:
		return OutcomeOK
	case errors.Is(err, context.DeadlineExceeded):
		return OutcomeTimeout
	default:
		return OutcomeError
	}
}
