package service

import (
	"github.com/ewastehub/appraisal-relay/internal/models"
)

// Summarize computes the totals for the persisted records. Pure function:
// an empty input yields a zero summary, and queued-but-unsynced records are
// by design not part of it.
func Summarize(records []models.AnalysisRecord) models.Summary {
	var s models.Summary
	for _, r := range records {
		s.Count++
		s.GoldMg += r.GoldMg
		s.ValueUSD += r.ValueUSD
	}
	return s
}
