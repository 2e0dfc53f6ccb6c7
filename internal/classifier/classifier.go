package classifier

import (
	"context"
	"unicode/utf8"
)

// Labels emitted by the vulnerability model.
const (
	LabelSafe       = "LABEL_0"
	LabelVulnerable = "LABEL_1"
)

// Prediction is one label with its confidence.
type Prediction struct {
	Label string  `json:"label"`
	Score float64 `json:"score"`
}

// Classifier scores source snippets. The result has one prediction list per
// input, in input order, each carrying every label.
type Classifier interface {
	Classify(ctx context.Context, codes []string) ([][]Prediction, error)
}

// Func adapts an ordinary function to the Classifier interface.
type Func func(ctx context.Context, codes []string) ([][]Prediction, error)

func (f Func) Classify(ctx context.Context, codes []string) ([][]Prediction, error) {
	return f(ctx, codes)
}

// VulnerableScore returns the LABEL_1 score, or 0 if absent.
func VulnerableScore(preds []Prediction) float64 {
	for _, p := range preds {
		if p.Label == LabelVulnerable {
			return p.Score
		}
	}
	return 0
}

// Binary turns a vulnerable probability into the two-label distribution.
func Binary(vulnerable float64) []Prediction {
	switch {
	case vulnerable < 0:
		vulnerable = 0
	case vulnerable > 1:
		vulnerable = 1
	}
	return []Prediction{
		{Label: LabelSafe, Score: 1 - vulnerable},
		{Label: LabelVulnerable, Score: vulnerable},
	}
}

// Truncate cuts s to at most n bytes without splitting a UTF-8 sequence.
// n <= 0 disables truncation.
func Truncate(s string, n int) string {
	if n <= 0 || len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
