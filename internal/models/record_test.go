package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRowSchemaOrder(t *testing.T) {
	rec := AnalysisRecord{
		Timestamp: time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC),
		WorkerID:  "bench-3",
		Model:     "DDR2 RAM",
		Category:  "Memory",
		Condition: "Good",
		GoldMg:    45,
		ValueUSD:  3.2,
	}

	row := rec.Row()

	require.Len(t, row, len(Header()))
	assert.Equal(t, "2026-08-01T10:00:00Z", row[0])
	assert.Equal(t, []string{"bench-3", "DDR2 RAM", "Memory", "Good", "45", "3.2"}, row[1:])
}

func TestRecordFromRowRoundTrip(t *testing.T) {
	rec := AnalysisRecord{
		Timestamp: time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC),
		WorkerID:  "bench-3",
		Model:     "DDR2 RAM",
		Category:  "Memory",
		Condition: "Good",
		GoldMg:    45,
		ValueUSD:  3.2,
	}

	got := RecordFromRow(rec.Row())

	assert.True(t, got.Timestamp.Equal(rec.Timestamp))
	assert.Equal(t, rec.WorkerID, got.WorkerID)
	assert.Equal(t, rec.Model, got.Model)
	assert.Equal(t, rec.GoldMg, got.GoldMg)
	assert.Equal(t, rec.ValueUSD, got.ValueUSD)
}

func TestRecordFromRowShortRowDegrades(t *testing.T) {
	got := RecordFromRow([]string{"garbage-timestamp", "bench-3", "DDR2 RAM"})

	assert.True(t, got.Timestamp.IsZero())
	assert.Equal(t, "DDR2 RAM", got.Model)
	assert.Equal(t, TextDefault, got.Category)
	assert.Equal(t, TextDefault, got.Condition)
	assert.Equal(t, 0.0, got.GoldMg)
	assert.Equal(t, 0.0, got.ValueUSD)
}

func TestHeaderMatchesSchema(t *testing.T) {
	h := Header()

	require.Len(t, h, 2+len(Schema))
	assert.Equal(t, "timestamp", h[0])
	assert.Equal(t, "worker_id", h[1])
	for i, f := range Schema {
		assert.Equal(t, f.Key, h[i+2])
	}
}
