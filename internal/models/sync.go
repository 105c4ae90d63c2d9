package models

// QueueEntry is a buffered record plus the sequence number assigned at
// enqueue time. The sequence number preserves insertion order through a drain
// and doubles as the idempotency key across retried sync attempts.
type QueueEntry struct {
	Seq    uint64         `json:"seq"`
	Record AnalysisRecord `json:"record"`
}

// BatchResult reports the per-record outcome of an AppendBatch call. The
// batch is not atomic: each record succeeds or fails independently.
type BatchResult struct {
	OK []bool
}

// Succeeded counts the records the store confirmed as durably written.
func (b BatchResult) Succeeded() int {
	n := 0
	for _, ok := range b.OK {
		if ok {
			n++
		}
	}
	return n
}

// SyncResult is the outcome of one drain attempt. Failed holds the entries
// that must remain queued, in their original relative order.
type SyncResult struct {
	Succeeded        int          `json:"succeeded"`
	Failed           []QueueEntry `json:"failed"`
	StoreUnavailable bool         `json:"store_unavailable"`
}

// Summary aggregates the persisted records for display and export. Queued
// but unsynced records are invisible here until a drain succeeds.
type Summary struct {
	Count    int     `json:"count"`
	GoldMg   float64 `json:"gold_mg"`
	ValueUSD float64 `json:"value_usd"`
}
