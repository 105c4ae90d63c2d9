package analysis

import (
	"encoding/json"
	"regexp"
	"strings"
)

var (
	codeFenceRe    = regexp.MustCompile("(?s)```(?:json)?(.*?)```")
	trailingComma  = regexp.MustCompile(`,\s*([}\]])`)
	singleQuoteKey = regexp.MustCompile(`'([^']*)'\s*:`)
)

// Repair attempts to recover a JSON object from a model response that is not
// strictly valid JSON: fenced code blocks, prose around the object, trailing
// commas, single-quoted keys. Best effort and pure; the caller falls back to
// treating the response as delimited text when recovery fails.
func Repair(text string) (map[string]any, bool) {
	candidate := strings.TrimSpace(text)
	if candidate == "" {
		return nil, false
	}

	if m := codeFenceRe.FindStringSubmatch(candidate); m != nil {
		candidate = strings.TrimSpace(m[1])
	}

	// Cut to the outermost object
	start := strings.Index(candidate, "{")
	end := strings.LastIndex(candidate, "}")
	if start == -1 || end <= start {
		return nil, false
	}
	candidate = candidate[start : end+1]

	if out, ok := tryUnmarshal(candidate); ok {
		return out, true
	}

	candidate = trailingComma.ReplaceAllString(candidate, "$1")
	candidate = singleQuoteKey.ReplaceAllString(candidate, `"$1":`)

	return tryUnmarshal(candidate)
}

func tryUnmarshal(s string) (map[string]any, bool) {
	var out map[string]any
	if err := json.Unmarshal([]byte(s), &out); err != nil {
		return nil, false
	}
	if len(out) == 0 {
		return nil, false
	}
	return out, true
}
