package detect

import (
	"context"
	"sync"

	"golang.org/x/text/language"
)

// MultiDetector fans text out to every configured backend and merges the
// results. Any backend failure aborts the whole scan with ErrUnavailable;
// partial results are never returned.
type MultiDetector struct {
	backends []Detector
}

// NewMultiDetector combines backends. At least one is required.
func NewMultiDetector(backends ...Detector) *MultiDetector {
	return &MultiDetector{backends: backends}
}

func (d *MultiDetector) Name() string { return "multi" }

func (d *MultiDetector) Detect(ctx context.Context, text string, lang language.Tag) ([]Candidate, error) {
	if len(d.backends) == 0 {
		return nil, Unavailable(d.Name(), nil)
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	type backendResult struct {
		candidates []Candidate
		err        error
	}

	results := make([]backendResult, len(d.backends))
	var wg sync.WaitGroup
	for i, backend := range d.backends {
		wg.Add(1)
		go func(i int, backend Detector) {
			defer wg.Done()
			candidates, err := backend.Detect(runCtx, text, lang)
			results[i] = backendResult{candidates: candidates, err: err}
			if err != nil {
				cancel()
			}
		}(i, backend)
	}
	wg.Wait()

	var merged []Candidate
	for _, result := range results {
		if result.err != nil {
			return nil, result.err
		}
		merged = append(merged, result.candidates...)
	}
	return merged, nil
}
