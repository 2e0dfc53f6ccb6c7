package dataset

import (
	"strings"
	"unicode/utf8"
)

const (
	LabelSafe       = 0
	LabelVulnerable = 1
)

// Example is one line of the JSONL dataset.
type Example struct {
	Code  string `json:"code"`
	Label int    `json:"label"`
}

// LabelFor applies the Juliet naming convention to a function name: "_bad"
// marks the flawed variant, "goodG2B"/"goodB2G" the fixed ones. Other names
// (helpers, good1, bad sinks) carry no label. Matching is case-insensitive
// and "_bad" wins when both appear.
func LabelFor(name string) (int, bool) {
	lower := strings.ToLower(name)
	switch {
	case strings.Contains(lower, "_bad"):
		return LabelVulnerable, true
	case strings.Contains(lower, "goodg2b"), strings.Contains(lower, "goodb2g"):
		return LabelSafe, true
	}
	return 0, false
}

// Keep reports whether a labelled function is long enough to be useful.
// Length is counted in characters, not bytes.
func Keep(code string, minLength int) bool {
	return utf8.RuneCountInString(code) >= minLength
}
