package detector

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"

	"securecode/internal/classifier"
	"securecode/internal/config"
	"securecode/internal/parser"
)

// Finding is a function whose vulnerable score exceeded the threshold.
type Finding struct {
	Name       string  `json:"name"`
	StartLine  int     `json:"start_line"`
	EndLine    int     `json:"end_line"`
	Confidence float64 `json:"confidence"`
	Code       string  `json:"code,omitempty"`
}

// Report is the outcome of scanning one file.
type Report struct {
	Path      string    `json:"path"`
	Functions int       `json:"functions"`
	Threshold float64   `json:"threshold"`
	Findings  []Finding `json:"findings"`
}

type Detector struct {
	classifier classifier.Classifier
	threshold  float64
	log        zerolog.Logger
}

type Option func(*Detector)

// WithThreshold sets the score a function must strictly exceed to be reported.
func WithThreshold(t float64) Option {
	return func(d *Detector) { d.threshold = t }
}

func WithLogger(log zerolog.Logger) Option {
	return func(d *Detector) { d.log = log }
}

func New(c classifier.Classifier, opts ...Option) *Detector {
	d := &Detector{
		classifier: c,
		threshold:  config.DefaultThreshold,
		log:        zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// ScanFile reads path and scans its functions. Read errors are returned as is
// so callers can tell a missing file apart.
func (d *Detector) ScanFile(ctx context.Context, path string) (*Report, error) {
	code, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return d.Scan(ctx, path, code)
}

// Scan classifies every function extracted from code in a single batch.
func (d *Detector) Scan(ctx context.Context, path string, code []byte) (*Report, error) {
	funcs, err := parser.Extract(code)
	if err != nil {
		d.log.Debug().Err(err).Str("file", path).Msg("extraction was partial")
	}

	report := &Report{Path: path, Functions: len(funcs), Threshold: d.threshold}
	if len(funcs) == 0 {
		return report, nil
	}

	codes := make([]string, len(funcs))
	for i, fn := range funcs {
		codes[i] = fn.Code
	}

	preds, err := d.classifier.Classify(ctx, codes)
	if err != nil {
		return nil, fmt.Errorf("classify %s: %w", path, err)
	}
	if len(preds) != len(funcs) {
		return nil, fmt.Errorf("classifier returned %d results for %d functions", len(preds), len(funcs))
	}

	for i, fn := range funcs {
		score := classifier.VulnerableScore(preds[i])
		d.log.Debug().Str("function", fn.Name).Float64("score", score).Msg("classified")
		if score > d.threshold {
			report.Findings = append(report.Findings, Finding{
				Name:       fn.Name,
				StartLine:  fn.StartLine,
				EndLine:    fn.EndLine,
				Confidence: score,
				Code:       fn.Code,
			})
		}
	}
	return report, nil
}

// WriteReport prints a human-readable report.
func WriteReport(w io.Writer, r *Report) error {
	var b strings.Builder

	fmt.Fprintf(&b, "→ Scanning file: %s\n", r.Path)
	if r.Functions == 0 {
		b.WriteString("⚠ No functions were found to analyze in this file.\n")
		_, err := io.WriteString(w, b.String())
		return err
	}
	fmt.Fprintf(&b, "✓ Found %d functions to analyze\n", r.Functions)

	for _, f := range r.Findings {
		b.WriteString("\n-------------------------------------------\n")
		b.WriteString("✗ VULNERABILITY DETECTED\n")
		fmt.Fprintf(&b, "    - Function: %s\n", f.Name)
		fmt.Fprintf(&b, "    - Location: Line %d\n", f.StartLine)
		fmt.Fprintf(&b, "    - Confidence: %.2f%%\n", f.Confidence*100)
		b.WriteString("-------------------------------------------\n")
	}

	if n := len(r.Findings); n > 0 {
		fmt.Fprintf(&b, "\n✓ Scan complete. Found %d potential vulnerabilities.\n", n)
	} else {
		b.WriteString("\n✓ Scan complete. No potential vulnerabilities were detected.\n")
	}

	_, err := io.WriteString(w, b.String())
	return err
}
