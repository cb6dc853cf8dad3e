package detect

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"unicode/utf8"

	"golang.org/x/text/language"
)

// Category classifies what kind of personal data a candidate span may be.
type Category string

const (
	CategoryPerson   Category = "PERSON"
	CategoryOrg      Category = "ORG"
	CategoryLocation Category = "LOCATION"
	CategoryEmail    Category = "EMAIL"
	CategoryPhone    Category = "PHONE"
	CategoryIDNumber Category = "ID_NUMBER"
	CategoryDate     Category = "DATE"
	CategoryMisc     Category = "MISC"
)

// Candidate is one raw detector finding. Offsets are byte offsets into the
// exact text that was scanned; candidates are immutable once produced.
type Candidate struct {
	Start      int
	End        int
	Text       string
	Category   Category
	Confidence float64
	Source     string
}

// Detector is the narrow contract every detection backend satisfies. Detect
// must be deterministic for identical input and backend version, and must
// fail with ErrUnavailable rather than returning an empty result when the
// backend cannot run: "no entities detected" and "detector failed" are never
// the same answer.
type Detector interface {
	Name() string
	Detect(ctx context.Context, text string, lang language.Tag) ([]Candidate, error)
}

// ErrUnavailable marks a recoverable detection failure. The scan can be
// retried once the backend is reachable again.
var ErrUnavailable = errors.New("detection unavailable")

// Unavailable wraps a backend failure with the ErrUnavailable marker.
func Unavailable(backend string, err error) error {
	if err == nil {
		return fmt.Errorf("%w: %s", ErrUnavailable, backend)
	}
	return fmt.Errorf("%w: %s: %w", ErrUnavailable, backend, err)
}

// Filter drops candidates below the confidence threshold, with invalid or
// non-rune-aligned spans, or whose span does not match the scanned text. The
// result is sorted by start offset for deterministic downstream processing.
func Filter(text string, candidates []Candidate, minConfidence float64) []Candidate {
	kept := make([]Candidate, 0, len(candidates))
	for _, candidate := range candidates {
		if candidate.Confidence < minConfidence {
			continue
		}
		if !validSpan(text, candidate.Start, candidate.End) {
			continue
		}
		span := text[candidate.Start:candidate.End]
		if candidate.Text == "" {
			candidate.Text = span
		} else if candidate.Text != span {
			continue
		}
		kept = append(kept, candidate)
	}
	sort.SliceStable(kept, func(i, j int) bool {
		if kept[i].Start != kept[j].Start {
			return kept[i].Start < kept[j].Start
		}
		return kept[i].End < kept[j].End
	})
	return kept
}

func validSpan(text string, start, end int) bool {
	if start < 0 || end > len(text) || start >= end {
		return false
	}
	if start > 0 && !utf8.RuneStart(text[start]) {
		return false
	}
	if end < len(text) && !utf8.RuneStart(text[end]) {
		return false
	}
	return true
}
