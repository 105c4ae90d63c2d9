package service

import (
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/ewastehub/appraisal-relay/internal/models"
	"github.com/ewastehub/appraisal-relay/internal/queue"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeStore is a controllable in-memory Store for coordinator tests.
type fakeStore struct {
	mu        sync.Mutex
	available bool
	rejectIDs map[string]bool
	appended  []models.AnalysisRecord

	// onBatch runs at the start of AppendBatch, e.g. to simulate records
	// arriving while a drain is in flight.
	onBatch func()
}

func newFakeStore() *fakeStore {
	return &fakeStore{available: true, rejectIDs: map[string]bool{}}
}

func (f *fakeStore) IsAvailable(ctx context.Context) bool { return f.available }

func (f *fakeStore) Append(ctx context.Context, rec models.AnalysisRecord) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.available || f.rejectIDs[rec.ID] {
		return false
	}
	f.appended = append(f.appended, rec)
	return true
}

func (f *fakeStore) appendedRecords() []models.AnalysisRecord {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.AnalysisRecord{}, f.appended...)
}

func (f *fakeStore) AppendBatch(ctx context.Context, recs []models.AnalysisRecord) models.BatchResult {
	if f.onBatch != nil {
		f.onBatch()
	}
	ok := make([]bool, len(recs))
	for i, rec := range recs {
		ok[i] = f.Append(ctx, rec)
	}
	return models.BatchResult{OK: ok}
}

func (f *fakeStore) ReadAll(ctx context.Context) ([]models.AnalysisRecord, error) {
	return f.appendedRecords(), nil
}

func testRecord(id string) models.AnalysisRecord {
	return models.AnalysisRecord{
		ID:        id,
		Timestamp: time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC),
		WorkerID:  "bench-3",
		Model:     "DDR2 RAM",
		Category:  "Memory",
		Condition: "Good",
		GoldMg:    45,
		ValueUSD:  3.2,
	}
}

func newTestCoordinator(store Store) *Coordinator {
	return NewCoordinator(store, queue.NewMemQueue(), slog.New(slog.DiscardHandler))
}

func TestSubmitImmediateWritesThrough(t *testing.T) {
	fs := newFakeStore()
	c := newTestCoordinator(fs)

	out := c.Submit(context.Background(), testRecord("r1"), ModeImmediate)

	assert.True(t, out.Appended)
	assert.Len(t, fs.appended, 1)
	assert.Equal(t, 0, c.QueueDepth())
}

func TestSubmitImmediateDegradesToQueueOnFailure(t *testing.T) {
	fs := newFakeStore()
	fs.available = false
	c := newTestCoordinator(fs)

	out := c.Submit(context.Background(), testRecord("r1"), ModeImmediate)

	assert.False(t, out.Appended)
	assert.NotZero(t, out.Seq)
	assert.Empty(t, fs.appended)
	assert.Equal(t, 1, c.QueueDepth())
}

func TestSubmitBufferedAlwaysQueuesEvenWhenStoreUp(t *testing.T) {
	fs := newFakeStore()
	c := newTestCoordinator(fs)

	out := c.Submit(context.Background(), testRecord("r1"), ModeBuffered)

	assert.False(t, out.Appended)
	assert.Empty(t, fs.appended)
	assert.Equal(t, 1, c.QueueDepth())
}

func TestSyncNowStoreUnavailableIsNoOp(t *testing.T) {
	fs := newFakeStore()
	c := newTestCoordinator(fs)
	c.Submit(context.Background(), testRecord("r1"), ModeBuffered)
	c.Submit(context.Background(), testRecord("r2"), ModeBuffered)

	fs.available = false
	res := c.SyncNow(context.Background())

	assert.True(t, res.StoreUnavailable)
	assert.Len(t, res.Failed, 2)
	assert.Equal(t, 2, c.QueueDepth())
	assert.Empty(t, fs.appended)
}

func TestSyncNowDrainsQueue(t *testing.T) {
	fs := newFakeStore()
	c := newTestCoordinator(fs)
	c.Submit(context.Background(), testRecord("r1"), ModeBuffered)
	c.Submit(context.Background(), testRecord("r2"), ModeBuffered)

	res := c.SyncNow(context.Background())

	assert.Equal(t, 2, res.Succeeded)
	assert.Empty(t, res.Failed)
	assert.False(t, res.StoreUnavailable)
	assert.Equal(t, 0, c.QueueDepth())
	assert.Len(t, fs.appended, 2)
	assert.Equal(t, "r1", fs.appended[0].ID)
	assert.Equal(t, "r2", fs.appended[1].ID)
}

func TestSyncNowIsIdempotent(t *testing.T) {
	fs := newFakeStore()
	c := newTestCoordinator(fs)
	c.Submit(context.Background(), testRecord("r1"), ModeBuffered)

	first := c.SyncNow(context.Background())
	second := c.SyncNow(context.Background())

	assert.Equal(t, 1, first.Succeeded)
	assert.Equal(t, 0, second.Succeeded)
	assert.Empty(t, second.Failed)
	assert.Len(t, fs.appended, 1, "second sync must not double-append")
	assert.Equal(t, 0, c.QueueDepth())
}

func TestSyncNowPartialFailureKeepsRejectedEntry(t *testing.T) {
	fs := newFakeStore()
	fs.rejectIDs["r2"] = true
	c := newTestCoordinator(fs)
	c.Submit(context.Background(), testRecord("r1"), ModeBuffered)
	c.Submit(context.Background(), testRecord("r2"), ModeBuffered)
	c.Submit(context.Background(), testRecord("r3"), ModeBuffered)

	res := c.SyncNow(context.Background())

	assert.Equal(t, 2, res.Succeeded)
	require.Len(t, res.Failed, 1)
	assert.Equal(t, "r2", res.Failed[0].Record.ID)
	assert.Equal(t, 1, c.QueueDepth())

	// The failed entry is retried verbatim once the store accepts it
	delete(fs.rejectIDs, "r2")
	retry := c.SyncNow(context.Background())
	assert.Equal(t, 1, retry.Succeeded)
	assert.Equal(t, 0, c.QueueDepth())
	assert.Len(t, fs.appended, 3)
}

func TestSyncNowSnapshotExcludesConcurrentEnqueues(t *testing.T) {
	fs := newFakeStore()
	c := newTestCoordinator(fs)
	c.Submit(context.Background(), testRecord("r1"), ModeBuffered)

	fs.onBatch = func() {
		// A fresh submission lands while the drain is running
		c.Submit(context.Background(), testRecord("late"), ModeBuffered)
	}

	res := c.SyncNow(context.Background())

	assert.Equal(t, 1, res.Succeeded)
	assert.Equal(t, 1, c.QueueDepth(), "late record waits for the next sync")

	fs.onBatch = nil
	res = c.SyncNow(context.Background())
	assert.Equal(t, 1, res.Succeeded)
	assert.Equal(t, 0, c.QueueDepth())
}

func TestSyncNowConcurrentCallsAppendOnce(t *testing.T) {
	fs := newFakeStore()
	c := newTestCoordinator(fs)
	c.Submit(context.Background(), testRecord("r1"), ModeBuffered)

	// Hold each drain inside the store long enough for the callers to pile
	// up; without serialization they would all snapshot the same entry.
	fs.onBatch = func() { time.Sleep(20 * time.Millisecond) }

	const drains = 5
	results := make([]models.SyncResult, drains)
	var wg sync.WaitGroup
	for i := 0; i < drains; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			results[n] = c.SyncNow(context.Background())
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, res := range results {
		succeeded += res.Succeeded
	}
	assert.Equal(t, 1, succeeded, "exactly one drain must commit the record")
	assert.Len(t, fs.appendedRecords(), 1, "record must not be appended once per caller")
	assert.Equal(t, 0, c.QueueDepth())
}

func TestEndToEndImmediateRowShape(t *testing.T) {
	fs := newFakeStore()
	c := newTestCoordinator(fs)
	n := testNormalizer()

	rec := n.Normalize(models.RawText("DDR2 RAM | Memory | Good"))
	out := c.Submit(context.Background(), rec, ModeImmediate)

	require.True(t, out.Appended)
	require.Len(t, fs.appended, 1)
	assert.Equal(t, 0, c.QueueDepth())

	row := fs.appended[0].Row()
	require.Len(t, row, 7)
	assert.Equal(t, "bench-3", row[1])
	assert.Equal(t, []string{"DDR2 RAM", "Memory", "Good", "0", "0"}, row[2:])
}

func TestEndToEndBufferedHoldsUntilSync(t *testing.T) {
	fs := newFakeStore()
	c := newTestCoordinator(fs)
	n := testNormalizer()

	rec := n.Normalize(models.RawText("DDR2 RAM | Memory | Good"))
	c.Submit(context.Background(), rec, ModeBuffered)

	assert.Equal(t, 1, c.QueueDepth())
	assert.Empty(t, fs.appended)

	res := c.SyncNow(context.Background())
	assert.Equal(t, 1, res.Succeeded)
	assert.Equal(t, 0, c.QueueDepth())
	assert.Len(t, fs.appended, 1)
}
