package queue

import (
	"sync"

	"github.com/ewastehub/appraisal-relay/internal/models"
	"github.com/ewastehub/appraisal-relay/pkg/metrics"
)

// MemQueue is the in-memory offline buffer for records that could not (or
// should not yet) be written to the remote store. Entries leave the queue
// only through Remove, after the store confirms them as durably appended.
// Sequence numbers are monotonic per process and never reused, so a drain
// snapshot stays valid across concurrent enqueues.
type MemQueue struct {
	mu      sync.Mutex
	entries []models.QueueEntry
	nextSeq uint64
}

func NewMemQueue() *MemQueue {
	return &MemQueue{nextSeq: 1}
}

// Enqueue appends the record and returns its sequence number.
func (q *MemQueue) Enqueue(rec models.AnalysisRecord) uint64 {
	q.mu.Lock()
	defer q.mu.Unlock()

	seq := q.nextSeq
	q.nextSeq++
	q.entries = append(q.entries, models.QueueEntry{Seq: seq, Record: rec})
	metrics.QueueDepth.Set(float64(len(q.entries)))
	return seq
}

// PeekAll returns a copy of the current entries in ascending sequence order
// without removing them. Callers drain against this stable snapshot.
func (q *MemQueue) PeekAll() []models.QueueEntry {
	q.mu.Lock()
	defer q.mu.Unlock()

	out := make([]models.QueueEntry, len(q.entries))
	copy(out, q.entries)
	return out
}

// Remove drops the entries whose sequence numbers appear in seqs. Unknown
// sequence numbers are ignored, which makes repeated removal after a retried
// drain harmless.
func (q *MemQueue) Remove(seqs map[uint64]struct{}) {
	if len(seqs) == 0 {
		return
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	kept := q.entries[:0]
	for _, e := range q.entries {
		if _, ok := seqs[e.Seq]; !ok {
			kept = append(kept, e)
		}
	}
	q.entries = kept
	metrics.QueueDepth.Set(float64(len(q.entries)))
}

func (q *MemQueue) Size() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.entries)
}
