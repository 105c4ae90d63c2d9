package service

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/ewastehub/appraisal-relay/internal/models"
	"github.com/google/uuid"
)

// Delimiter separates fields in the text form of an analysis result,
// e.g. "DDR2 RAM | Memory | Good | 45 | 3.20".
const Delimiter = "|"

// Normalizer is the single point of coercion from the untrusted analysis
// output into the strict AnalysisRecord type. It never fails: malformed or
// partial input degrades to schema defaults.
type Normalizer struct {
	workerID string
	now      func() time.Time
}

func NewNormalizer(workerID string) *Normalizer {
	return &Normalizer{workerID: workerID, now: time.Now}
}

// Normalize produces a fully-populated record. The timestamp is set here, at
// acceptance time, so ordering stays meaningful even when the remote write is
// deferred through the offline queue.
func (n *Normalizer) Normalize(raw models.RawAnalysis) models.AnalysisRecord {
	rec := models.AnalysisRecord{
		ID:        uuid.NewString(),
		Timestamp: n.now(),
		WorkerID:  n.workerID,
		Model:     models.TextDefault,
		Category:  models.TextDefault,
		Condition: models.TextDefault,
	}

	switch raw.Kind {
	case models.RawKindText:
		n.fillFromText(&rec, raw.Text)
	case models.RawKindMapping:
		n.fillFromMapping(&rec, raw.Mapping)
	}

	return rec
}

// fillFromText maps delimiter-separated parts positionally onto the schema.
// Missing trailing parts keep their defaults.
func (n *Normalizer) fillFromText(rec *models.AnalysisRecord, text string) {
	parts := strings.Split(text, Delimiter)
	for i, f := range models.Schema {
		if i >= len(parts) {
			break
		}
		part := strings.TrimSpace(parts[i])
		if part == "" {
			continue
		}
		if f.Numeric {
			setNumeric(rec, f.Key, coerceFloat(part))
		} else {
			setText(rec, f.Key, part)
		}
	}
}

func (n *Normalizer) fillFromMapping(rec *models.AnalysisRecord, m map[string]any) {
	for _, f := range models.Schema {
		v, ok := lookup(m, f)
		if !ok {
			continue
		}
		if f.Numeric {
			setNumeric(rec, f.Key, coerceFloat(v))
		} else {
			if s := coerceString(v); s != "" {
				setText(rec, f.Key, s)
			}
		}
	}
}

// lookup checks the canonical key first, then the aliases the analysis
// service is known to use interchangeably. Keys are matched case-insensitively.
func lookup(m map[string]any, f models.FieldDef) (any, bool) {
	keys := append([]string{f.Key}, f.Aliases...)
	for _, k := range keys {
		if v, ok := m[k]; ok {
			return v, true
		}
	}
	for mk, v := range m {
		for _, k := range keys {
			if strings.EqualFold(mk, k) {
				return v, true
			}
		}
	}
	return nil, false
}

func setText(rec *models.AnalysisRecord, key, val string) {
	switch key {
	case "model":
		rec.Model = val
	case "category":
		rec.Category = val
	case "condition":
		rec.Condition = val
	}
}

func setNumeric(rec *models.AnalysisRecord, key string, val float64) {
	switch key {
	case "gold_mg":
		rec.GoldMg = val
	case "value_usd":
		rec.ValueUSD = val
	}
}

func coerceString(v any) string {
	switch s := v.(type) {
	case string:
		return strings.TrimSpace(s)
	case nil:
		return ""
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64)
	default:
		return strings.TrimSpace(fmt.Sprintf("%v", v))
	}
}

// coerceFloat extracts a number from whatever the model produced: a real
// number, a numeric string, or a string with units ("45 mg", "$3.20").
// Anything unparsable becomes 0.
func coerceFloat(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case int:
		return float64(n)
	case int64:
		return float64(n)
	case string:
		return parseLooseFloat(n)
	default:
		return 0
	}
}

var numberRe = regexp.MustCompile(`-?\d[\d,]*\.?\d*`)

func parseLooseFloat(s string) float64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}

	// Pull the first numeric token out of strings like "$3.20" or "45 mg"
	token := numberRe.FindString(s)
	if token == "" {
		return 0
	}
	f, err := strconv.ParseFloat(strings.ReplaceAll(token, ",", ""), 64)
	if err != nil {
		return 0
	}
	return f
}
