package models

import (
	"strconv"
	"time"
)

// TextDefault is the sentinel written for any textual attribute the analysis
// did not produce or that could not be coerced to a string.
const TextDefault = "unspecified"

// Schema lists the appraisal attributes in row order. The first two row
// columns (timestamp, worker_id) are fixed and not part of this list.
var Schema = []FieldDef{
	{Key: "model", Aliases: []string{"name"}},
	{Key: "category", Aliases: []string{"type"}},
	{Key: "condition"},
	{Key: "gold_mg", Numeric: true, Aliases: []string{"metal_quantity", "gold_content"}},
	{Key: "value_usd", Numeric: true, Aliases: []string{"estimated_value", "value"}},
}

// FieldDef describes one schema attribute. Aliases cover the key variants the
// analysis service uses interchangeably in its payloads.
type FieldDef struct {
	Key     string
	Aliases []string
	Numeric bool
}

// AnalysisRecord is the canonical, fully-populated result of one component
// appraisal. Records are immutable after normalization; a human correction
// produces a new record rather than mutating an existing one.
type AnalysisRecord struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	WorkerID  string    `json:"worker_id"`
	Model     string    `json:"model"`
	Category  string    `json:"category"`
	Condition string    `json:"condition"`
	GoldMg    float64   `json:"gold_mg"`
	ValueUSD  float64   `json:"value_usd"`
}

// Header returns the store header row in schema order.
func Header() []string {
	row := []string{"timestamp", "worker_id"}
	for _, f := range Schema {
		row = append(row, f.Key)
	}
	return row
}

// Row renders the record as a store row in schema order. Timestamps use
// RFC3339 so rows stay sortable as text.
func (r AnalysisRecord) Row() []string {
	return []string{
		r.Timestamp.Format(time.RFC3339),
		r.WorkerID,
		r.Model,
		r.Category,
		r.Condition,
		strconv.FormatFloat(r.GoldMg, 'f', -1, 64),
		strconv.FormatFloat(r.ValueUSD, 'f', -1, 64),
	}
}

// RecordFromRow rebuilds a record from a store row. Short or malformed rows
// degrade to defaults instead of failing; readers must tolerate rows written
// by older sessions or edited by hand in the spreadsheet.
func RecordFromRow(row []string) AnalysisRecord {
	rec := AnalysisRecord{
		Model:     TextDefault,
		Category:  TextDefault,
		Condition: TextDefault,
	}
	get := func(i int) string {
		if i < len(row) {
			return row[i]
		}
		return ""
	}
	if ts, err := time.Parse(time.RFC3339, get(0)); err == nil {
		rec.Timestamp = ts
	}
	rec.WorkerID = get(1)
	if v := get(2); v != "" {
		rec.Model = v
	}
	if v := get(3); v != "" {
		rec.Category = v
	}
	if v := get(4); v != "" {
		rec.Condition = v
	}
	if f, err := strconv.ParseFloat(get(5), 64); err == nil {
		rec.GoldMg = f
	}
	if f, err := strconv.ParseFloat(get(6), 64); err == nil {
		rec.ValueUSD = f
	}
	return rec
}
