package service

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/ewastehub/appraisal-relay/internal/models"
	"github.com/ewastehub/appraisal-relay/pkg/metrics"
)

// Store defines the contract for the remote append-only tabular store. All
// failure modes are reported through return values; implementations must not
// panic or leak transport errors to the coordinator.
type Store interface {
	IsAvailable(ctx context.Context) bool
	Append(ctx context.Context, rec models.AnalysisRecord) bool
	AppendBatch(ctx context.Context, recs []models.AnalysisRecord) models.BatchResult
	ReadAll(ctx context.Context) ([]models.AnalysisRecord, error)
}

// Queue defines the contract for the offline buffer.
type Queue interface {
	Enqueue(rec models.AnalysisRecord) uint64
	PeekAll() []models.QueueEntry
	Remove(seqs map[uint64]struct{})
	Size() int
}

// Mode selects how a submitted record reaches the store.
type Mode string

const (
	// ModeImmediate writes through to the store, falling back to the offline
	// queue when the write fails. An immediate submission never loses a record.
	ModeImmediate Mode = "immediate"
	// ModeBuffered always defers to the offline queue; an explicit operator
	// choice, not a failure path.
	ModeBuffered Mode = "buffered"
)

// Outcome reports where a submitted record ended up.
type Outcome struct {
	Appended bool   `json:"appended"`
	Seq      uint64 `json:"seq,omitempty"`
}

// Coordinator routes normalized records between the remote store and the
// offline queue, and drains the queue on demand. Safe for concurrent use.
type Coordinator struct {
	store  Store
	queue  Queue
	logger *slog.Logger

	// drainMu serializes drains. Two overlapping drains would take the same
	// snapshot before either removes its confirmed entries and append every
	// buffered record once per caller.
	drainMu sync.Mutex
}

func NewCoordinator(store Store, queue Queue, logger *slog.Logger) *Coordinator {
	return &Coordinator{
		store:  store,
		queue:  queue,
		logger: logger,
	}
}

// Submit routes one record according to mode. Every record ends up in exactly
// one of {store, queue}; there is no path that silently drops it.
func (c *Coordinator) Submit(ctx context.Context, rec models.AnalysisRecord, mode Mode) Outcome {
	l := c.logger.With("record_id", rec.ID, "mode", string(mode))

	if mode == ModeImmediate {
		if c.store.Append(ctx, rec) {
			l.Info("Record appended to remote store")
			metrics.RecordsSubmitted.WithLabelValues("appended", string(mode)).Inc()
			return Outcome{Appended: true}
		}
		l.Warn("Immediate append failed, degrading to offline queue")
	}

	seq := c.queue.Enqueue(rec)
	l.Info("Record buffered in offline queue", "seq", seq, "depth", c.queue.Size())
	metrics.RecordsSubmitted.WithLabelValues("queued", string(mode)).Inc()
	return Outcome{Seq: seq}
}

// SyncNow drains the current queue snapshot into the store. Entries enqueued
// while the drain is running are not part of the snapshot and wait for the
// next call. Repeated calls are safe: removed entries are never resubmitted,
// failed entries are retried verbatim.
func (c *Coordinator) SyncNow(ctx context.Context) models.SyncResult {
	c.drainMu.Lock()
	defer c.drainMu.Unlock()

	start := time.Now()

	snapshot := c.queue.PeekAll()

	if !c.store.IsAvailable(ctx) {
		metrics.StoreHealthy.Set(0)
		c.logger.Warn("Sync requested but store is unavailable", "pending", len(snapshot))
		return models.SyncResult{StoreUnavailable: true, Failed: snapshot}
	}
	metrics.StoreHealthy.Set(1)

	if len(snapshot) == 0 {
		return models.SyncResult{}
	}

	metrics.SyncBatchSize.Observe(float64(len(snapshot)))
	defer func() {
		metrics.SyncDuration.Observe(time.Since(start).Seconds())
	}()

	records := make([]models.AnalysisRecord, len(snapshot))
	for i, e := range snapshot {
		records[i] = e.Record
	}

	batch := c.store.AppendBatch(ctx, records)

	confirmed := make(map[uint64]struct{}, len(snapshot))
	var failed []models.QueueEntry
	for i, e := range snapshot {
		if i < len(batch.OK) && batch.OK[i] {
			confirmed[e.Seq] = struct{}{}
		} else {
			failed = append(failed, e)
		}
	}

	// Entries leave the queue if and only if the store confirmed them.
	c.queue.Remove(confirmed)

	res := models.SyncResult{Succeeded: len(confirmed), Failed: failed}
	c.logger.Info("Sync cycle complete",
		"succeeded", res.Succeeded,
		"failed", len(res.Failed),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return res
}

// QueueDepth exposes the offline backlog for the operator UI.
func (c *Coordinator) QueueDepth() int {
	return c.queue.Size()
}

// PendingEntries returns the buffered entries awaiting sync, oldest first.
func (c *Coordinator) PendingEntries() []models.QueueEntry {
	return c.queue.PeekAll()
}
