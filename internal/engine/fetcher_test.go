package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// fakeSource answers every chunk with a valid aggregate snapshot per id,
// except for chunks containing an id listed in failIDs.
type fakeSource struct {
	mu       sync.Mutex
	calls    map[int32]int // first id of chunk -> attempts
	failIDs  map[int32]bool
	delay    time.Duration
	inFlight atomic.Int64
	peak     atomic.Int64
	blockCtx bool // wait for ctx to expire instead of answering
}

func newFakeSource() *fakeSource {
	return &fakeSource{calls: make(map[int32]int), failIDs: make(map[int32]bool)}
}

func (f *fakeSource) FetchPrices(ctx context.Context, locationID int64, ids []int32) (map[int32]Snapshot, error) {
	n := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		p := f.peak.Load()
		if n <= p || f.peak.CompareAndSwap(p, n) {
			break
		}
	}

	f.mu.Lock()
	f.calls[ids[0]]++
	f.mu.Unlock()

	if f.blockCtx {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	for _, id := range ids {
		if f.failIDs[id] {
			return nil, errors.New("malformed response")
		}
	}
	out := make(map[int32]Snapshot, len(ids))
	for _, id := range ids {
		out[id] = liquidSnapshot(float64(id), float64(id)*1.5)
	}
	return out, nil
}

func (f *fakeSource) attempts(firstID int32) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[firstID]
}

func (f *fakeSource) totalCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	total := 0
	for _, n := range f.calls {
		total += n
	}
	return total
}

type countingObserver struct {
	mu       sync.Mutex
	outcomes map[string]int
	retries  int
	dropped  int
}

func (o *countingObserver) ObserveRequest(outcome string, _ time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.outcomes == nil {
		o.outcomes = make(map[string]int)
	}
	o.outcomes[outcome]++
}

func (o *countingObserver) ObserveRetry() {
	o.mu.Lock()
	o.retries++
	o.mu.Unlock()
}

func (o *countingObserver) ObserveDroppedChunk() {
	o.mu.Lock()
	o.dropped++
	o.mu.Unlock()
}

func seqIDs(n int) []int32 {
	ids := make([]int32, n)
	for i := range ids {
		ids[i] = int32(i + 1)
	}
	return ids
}

func TestChunkIDs_CoversEveryIDOnceInOrder(t *testing.T) {
	tests := []struct {
		n, size    int
		wantChunks int
		wantLast   int
	}{
		{n: 0, size: 3, wantChunks: 0},
		{n: 1, size: 3, wantChunks: 1, wantLast: 1},
		{n: 3, size: 3, wantChunks: 1, wantLast: 3},
		{n: 7, size: 3, wantChunks: 3, wantLast: 1},
		{n: 2500, size: 1000, wantChunks: 3, wantLast: 500},
		{n: 5, size: 1, wantChunks: 5, wantLast: 1},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("n=%d/size=%d", tt.n, tt.size), func(t *testing.T) {
			ids := seqIDs(tt.n)
			chunks := ChunkIDs(ids, tt.size)
			if len(chunks) != tt.wantChunks {
				t.Fatalf("chunks = %d, want %d", len(chunks), tt.wantChunks)
			}
			var flat []int32
			for i, c := range chunks {
				if i < len(chunks)-1 && len(c) != tt.size {
					t.Fatalf("chunk %d len = %d, want %d", i, len(c), tt.size)
				}
				flat = append(flat, c...)
			}
			if len(chunks) > 0 && len(chunks[len(chunks)-1]) != tt.wantLast {
				t.Fatalf("last chunk len = %d, want %d", len(chunks[len(chunks)-1]), tt.wantLast)
			}
			if len(flat) != len(ids) {
				t.Fatalf("flattened len = %d, want %d", len(flat), len(ids))
			}
			for i := range ids {
				if flat[i] != ids[i] {
					t.Fatalf("flat[%d] = %d, want %d", i, flat[i], ids[i])
				}
			}
		})
	}
}

func TestChunkIDs_AppendDoesNotClobberNextChunk(t *testing.T) {
	chunks := ChunkIDs(seqIDs(4), 2)
	_ = append(chunks[0], 99)
	if chunks[1][0] != 3 {
		t.Fatalf("chunks[1][0] = %d, want 3", chunks[1][0])
	}
}

func TestChunkIDs_NonPositiveSize(t *testing.T) {
	if got := ChunkIDs(seqIDs(3), 0); got != nil {
		t.Fatalf("ChunkIDs(size=0) = %v, want nil", got)
	}
}

func TestBulkFetcher_MergesAllChunks(t *testing.T) {
	src := newFakeSource()
	f := NewBulkFetcher(src, FetchOptions{ChunkSize: 3, Workers: 4, Retries: 3}, nil)

	var progressCalls atomic.Int64
	res := f.Fetch(context.Background(), 60003760, seqIDs(10), func(string) { progressCalls.Add(1) })

	if len(res.Items) != 10 {
		t.Fatalf("items = %d, want 10", len(res.Items))
	}
	if res.Chunks != 4 || res.FailedChunks != 0 {
		t.Fatalf("chunks/failed = %d/%d, want 4/0", res.Chunks, res.FailedChunks)
	}
	if res.Attempts != 4 {
		t.Fatalf("attempts = %d, want 4", res.Attempts)
	}
	if progressCalls.Load() != 4 {
		t.Fatalf("progress calls = %d, want 4", progressCalls.Load())
	}
}

func TestBulkFetcher_RetryBoundThenEmptyContribution(t *testing.T) {
	src := newFakeSource()
	src.failIDs[4] = true // second chunk {4,5,6} never parses
	obs := &countingObserver{}
	f := NewBulkFetcher(src, FetchOptions{ChunkSize: 3, Workers: 2, Retries: 3}, obs)

	res := f.Fetch(context.Background(), 1, seqIDs(9), nil)

	if got := src.attempts(4); got != 4 {
		t.Fatalf("attempts for failing chunk = %d, want 4 (retries+1)", got)
	}
	if got := src.attempts(1); got != 1 {
		t.Fatalf("attempts for healthy chunk = %d, want 1", got)
	}
	if res.FailedChunks != 1 {
		t.Fatalf("FailedChunks = %d, want 1", res.FailedChunks)
	}
	if len(res.Items) != 6 {
		t.Fatalf("items = %d, want 6", len(res.Items))
	}
	for _, id := range []int32{4, 5, 6} {
		if _, ok := res.Items[id]; ok {
			t.Fatalf("item %d present, want absent after exhausted retries", id)
		}
	}
	if obs.retries != 3 || obs.dropped != 1 {
		t.Fatalf("observer retries/dropped = %d/%d, want 3/1", obs.retries, obs.dropped)
	}
	if obs.outcomes[OutcomeError] != 4 || obs.outcomes[OutcomeOK] != 2 {
		t.Fatalf("observer outcomes = %v", obs.outcomes)
	}
}

func TestBulkFetcher_ZeroRetriesMeansSingleAttempt(t *testing.T) {
	src := newFakeSource()
	src.failIDs[1] = true
	f := NewBulkFetcher(src, FetchOptions{ChunkSize: 5, Workers: 1, Retries: 0}, nil)

	res := f.Fetch(context.Background(), 1, seqIDs(5), nil)
	if got := src.attempts(1); got != 1 {
		t.Fatalf("attempts = %d, want 1", got)
	}
	if len(res.Items) != 0 {
		t.Fatalf("items = %d, want 0", len(res.Items))
	}
}

func TestBulkFetcher_TimeoutCountsAsAttempt(t *testing.T) {
	src := newFakeSource()
	src.blockCtx = true
	obs := &countingObserver{}
	f := NewBulkFetcher(src, FetchOptions{ChunkSize: 10, Workers: 1, Retries: 2, Timeout: 10 * time.Millisecond}, obs)

	res := f.Fetch(context.Background(), 1, seqIDs(3), nil)
	if got := src.attempts(1); got != 3 {
		t.Fatalf("attempts = %d, want 3", got)
	}
	if res.FailedChunks != 1 || len(res.Items) != 0 {
		t.Fatalf("failed/items = %d/%d, want 1/0", res.FailedChunks, len(res.Items))
	}
	if obs.outcomes[OutcomeTimeout] != 3 {
		t.Fatalf("timeouts = %d, want 3", obs.outcomes[OutcomeTimeout])
	}
}

func TestBulkFetcher_RespectsWorkerLimit(t *testing.T) {
	src := newFakeSource()
	src.delay = 5 * time.Millisecond
	f := NewBulkFetcher(src, FetchOptions{ChunkSize: 1, Workers: 3}, nil)

	res := f.Fetch(context.Background(), 1, seqIDs(20), nil)
	if len(res.Items) != 20 {
		t.Fatalf("items = %d, want 20", len(res.Items))
	}
	if peak := src.peak.Load(); peak > 3 {
		t.Fatalf("peak in-flight = %d, want <= 3", peak)
	}
}

func TestBulkFetcher_WorkerLimitSharedAcrossFetches(t *testing.T) {
	src := newFakeSource()
	src.delay = 5 * time.Millisecond
	f := NewBulkFetcher(src, FetchOptions{ChunkSize: 1, Workers: 2}, nil)

	var wg sync.WaitGroup
	for loc := int64(1); loc <= 3; loc++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			f.Fetch(context.Background(), loc, seqIDs(6), nil)
		}()
	}
	wg.Wait()

	if peak := src.peak.Load(); peak > 2 {
		t.Fatalf("peak in-flight = %d, want <= 2", peak)
	}
	if got := src.totalCalls(); got != 18 {
		t.Fatalf("total calls = %d, want 18", got)
	}
}

func TestBulkFetcher_MaxChunks(t *testing.T) {
	src := newFakeSource()
	f := NewBulkFetcher(src, FetchOptions{ChunkSize: 2, Workers: 2, MaxChunks: 5}, nil)

	res := f.Fetch(context.Background(), 1, seqIDs(40), nil)
	if res.Chunks != 5 {
		t.Fatalf("chunks = %d, want 5", res.Chunks)
	}
	if len(res.Items) != 10 {
		t.Fatalf("items = %d, want 10", len(res.Items))
	}
}

func TestBulkFetcher_EmptyUniverse(t *testing.T) {
	f := NewBulkFetcher(newFakeSource(), FetchOptions{ChunkSize: 10, Workers: 2}, nil)
	res := f.Fetch(context.Background(), 1, nil, nil)
	if res.Items == nil || len(res.Items) != 0 || res.Chunks != 0 {
		t.Fatalf("res = %+v, want empty non-nil items and 0 chunks", res)
	}
}

func TestNewBulkFetcher_Defaults(t *testing.T) {
	f := NewBulkFetcher(newFakeSource(), FetchOptions{Retries: -1}, nil)
	opts := f.Options()
	if opts.ChunkSize != 1000 || opts.Workers != 1 || opts.Retries != 0 {
		t.Fatalf("options = %+v", opts)
	}
}

func TestOutcomeOf(t *testing.T) {
	if got := outcomeOf(nil); got != OutcomeOK {
		t.Errorf("outcomeOf(nil) = %q", got)
	}
	if got := outcomeOf(fmt.Errorf("wrap: %w", context.DeadlineExceeded)); got != OutcomeTimeout {
		t.Errorf("outcomeOf(deadline) = %q", got)
	}
	if got := outcomeOf(errors.New("boom")); got != OutcomeError {
		t.Errorf("outcomeOf(boom) = %q", got)
	}
}
