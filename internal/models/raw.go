package models

// RawKind tags the two shapes the analysis source produces.
type RawKind int

const (
	// RawKindText is a delimiter-separated line in fixed schema order.
	RawKindText RawKind = iota
	// RawKindMapping is a loosely-typed key/value payload, typically the
	// repaired JSON body of a model response.
	RawKindMapping
)

// RawAnalysis is the untrusted output of the analysis source. Only the
// normalizer consumes it; everything downstream sees AnalysisRecord.
type RawAnalysis struct {
	Kind    RawKind
	Text    string
	Mapping map[string]any
}

// RawText wraps a delimited-text analysis result.
func RawText(s string) RawAnalysis {
	return RawAnalysis{Kind: RawKindText, Text: s}
}

// RawMapping wraps a key/value analysis result.
func RawMapping(m map[string]any) RawAnalysis {
	return RawAnalysis{Kind: RawKindMapping, Mapping: m}
}
