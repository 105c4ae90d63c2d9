package service

import (
	"testing"

	"github.com/ewastehub/appraisal-relay/internal/models"
	"github.com/stretchr/testify/assert"
)

func TestSummarizeEmpty(t *testing.T) {
	s := Summarize(nil)

	assert.Equal(t, 0, s.Count)
	assert.Equal(t, 0.0, s.GoldMg)
	assert.Equal(t, 0.0, s.ValueUSD)
}

func TestSummarizeTotals(t *testing.T) {
	records := []models.AnalysisRecord{
		{GoldMg: 45, ValueUSD: 3.2},
		{GoldMg: 120, ValueUSD: 8.5},
		{GoldMg: 0, ValueUSD: 0},
	}

	s := Summarize(records)

	assert.Equal(t, 3, s.Count)
	assert.InDelta(t, 165.0, s.GoldMg, 1e-9)
	assert.InDelta(t, 11.7, s.ValueUSD, 1e-9)
}
