// Package ocr turns a scanned enrollment-form image into recognized text
// lines. Two providers exist: a local PaddleOCR worker subprocess and a
// cloud OCR HTTP endpoint. Everything downstream depends only on the
// returned line sequence, never on a provider's native format.
package ocr

import (
	"context"
	"strings"
)

// Line is one recognized text line with the provider's confidence in 0..1.
type Line struct {
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
}

// Provider recognizes text lines on a form image.
type Provider interface {
	// Name identifies the provider in logs and job rows ("worker" | "cloud").
	Name() string
	// RecognizeLines returns the recognized lines in reading order.
	RecognizeLines(ctx context.Context, imagePath string) ([]Line, error)
}

// JoinLines joins recognized lines into the newline-separated text the
// field extractor operates on.
func JoinLines(lines []Line) string {
	if len(lines) == 0 {
		return ""
	}
	parts := make([]string, len(lines))
	for i, ln := range lines {
		parts[i] = ln.Text
	}
	return strings.Join(parts, "\n")
}

// MeanConfidence returns the average per-line confidence, 0 when empty.
func MeanConfidence(lines []Line) float32 {
	if len(lines) == 0 {
		return 0
	}
	var sum float64
	for _, ln := range lines {
		sum += ln.Confidence
	}
	return float32(sum / float64(len(lines)))
}

// FilterLines drops lines the provider scored below min. Lines with a zero
// confidence are kept: some providers do not score at all, and a dropped
// line is worse than a noisy one when the provider never rated it.
func FilterLines(lines []Line, min float64) (kept []Line, dropped int) {
	if min <= 0 {
		return lines, 0
	}
	kept = make([]Line, 0, len(lines))
	for _, ln := range lines {
		if ln.Confidence == 0 || ln.Confidence >= min {
			kept = append(kept, ln)
			continue
		}
		dropped++
	}
	return kept, dropped
}
