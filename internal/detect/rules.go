package detect

import (
	"context"
	"regexp"

	"golang.org/x/text/language"
)

// rulePattern pairs a compiled regex with the category it detects.
type rulePattern struct {
	re       *regexp.Regexp
	category Category
}

// RulesDetector finds structured personal data with compiled regular
// expressions. It is always available and reports confidence 1.0.
type RulesDetector struct {
	patterns []rulePattern
}

var ruleSpecs = []struct {
	expr     string
	category Category
}{
	{`\b[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}\b`, CategoryEmail},
	// International and German phone shapes: +49 30 1234567, (030) 123 45 67, 030/1234567.
	{`(?:\+\d{1,3}[\s\-/]?\d{1,4}|\(0\d{1,4}\)|0\d{1,4})(?:[\s\-/]?\d{2,})+`, CategoryPhone},
	// IBAN.
	{`\b[A-Z]{2}\d{2}(?:\s?\d{4}){3,7}(?:\s?\d{1,3})?\b`, CategoryIDNumber},
	// German tax identifier (11 digits, optionally space-grouped).
	{`\b\d{2}\s?\d{3}\s?\d{3}\s?\d{3}\b`, CategoryIDNumber},
	// Dates: 24.12.2023, 2023-12-24, 24. Dezember 2023.
	{`\b\d{1,2}\.\d{1,2}\.\d{2,4}\b`, CategoryDate},
	{`\b\d{4}-\d{2}-\d{2}\b`, CategoryDate},
	{`\b\d{1,2}\.\s(?:Januar|Februar|März|April|Mai|Juni|Juli|August|September|Oktober|November|Dezember)\s\d{4}\b`, CategoryDate},
}

// NewRulesDetector compiles the built-in pattern table.
func NewRulesDetector() *RulesDetector {
	patterns := make([]rulePattern, 0, len(ruleSpecs))
	for _, spec := range ruleSpecs {
		patterns = append(patterns, rulePattern{re: regexp.MustCompile(spec.expr), category: spec.category})
	}
	return &RulesDetector{patterns: patterns}
}

func (d *RulesDetector) Name() string { return "rules" }

// Detect scans text with every pattern. Matches are reported in pattern-table
// order; Filter sorts the combined result.
func (d *RulesDetector) Detect(ctx context.Context, text string, _ language.Tag) ([]Candidate, error) {
	if err := ctx.Err(); err != nil {
		return nil, Unavailable(d.Name(), err)
	}
	var candidates []Candidate
	for _, pattern := range d.patterns {
		for _, loc := range pattern.re.FindAllStringIndex(text, -1) {
			candidates = append(candidates, Candidate{
				Start:      loc[0],
				End:        loc[1],
				Text:       text[loc[0]:loc[1]],
				Category:   pattern.category,
				Confidence: 1.0,
				Source:     d.Name(),
			})
		}
	}
	return candidates, nil
}
