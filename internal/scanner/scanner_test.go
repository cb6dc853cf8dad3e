package scanner_test

import (
	"context"
	"errors"
	"testing"

	"golang.org/x/text/language"

	"redact/internal/config"
	"redact/internal/detect"
	"redact/internal/ledger"
	"redact/internal/logging"
	"redact/internal/scanner"
	"redact/internal/store"
	"redact/internal/testsupport"
)

type stubDetector struct {
	candidates []detect.Candidate
	err        error
	calls      int
}

func (d *stubDetector) Name() string { return "stub" }

func (d *stubDetector) Detect(ctx context.Context, text string, lang language.Tag) ([]detect.Candidate, error) {
	d.calls++
	if d.err != nil {
		return nil, d.err
	}
	return d.candidates, nil
}

func newScanner(t *testing.T, detector detect.Detector) (*scanner.Scanner, *store.Store, *config.Config) {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	return scanner.New(cfg, st, detector, logging.NewNop()), st, cfg
}

func TestScanDocumentRecordsEntities(t *testing.T) {
	detector := &stubDetector{candidates: []detect.Candidate{
		{Start: 0, End: 12, Category: detect.CategoryPerson, Confidence: 0.9, Source: "stub"},
		{Start: 21, End: 27, Category: detect.CategoryLocation, Confidence: 0.8, Source: "stub"},
	}}
	sc, st, _ := newScanner(t, detector)
	ctx := context.Background()

	talk, err := st.CreateTalk(ctx, "Testvortrag", "", "de")
	if err != nil {
		t.Fatalf("create talk: %v", err)
	}
	doc, err := st.AddDocument(ctx, talk.ID, "transcript.txt", "Anna Schmidt sprach in Berlin.")
	if err != nil {
		t.Fatalf("add document: %v", err)
	}

	findings, err := sc.ScanDocument(ctx, doc.ID)
	if err != nil {
		t.Fatalf("ScanDocument returned error: %v", err)
	}
	if findings != 2 {
		t.Fatalf("findings = %d, want 2", findings)
	}

	updated, err := st.GetDocument(ctx, doc.ID)
	if err != nil {
		t.Fatalf("get document: %v", err)
	}
	if updated.Status != store.DocumentScanned || updated.ScannedAt == nil {
		t.Fatalf("document status = %s scanned_at = %v", updated.Status, updated.ScannedAt)
	}

	entities, err := st.EntitiesForTalk(ctx, talk.ID)
	if err != nil {
		t.Fatalf("entities: %v", err)
	}
	if len(entities) != 2 {
		t.Fatalf("entities = %d, want 2", len(entities))
	}
}

func TestScanJoinsEntitiesAcrossDocuments(t *testing.T) {
	detector := &stubDetector{candidates: []detect.Candidate{
		{Start: 0, End: 12, Category: detect.CategoryPerson, Confidence: 0.9, Source: "stub"},
	}}
	sc, st, _ := newScanner(t, detector)
	ctx := context.Background()

	talk, err := st.CreateTalk(ctx, "Testvortrag", "", "de")
	if err != nil {
		t.Fatalf("create talk: %v", err)
	}
	first, err := st.AddDocument(ctx, talk.ID, "teil-1.txt", "Anna Schmidt eroeffnete.")
	if err != nil {
		t.Fatalf("add document: %v", err)
	}
	second, err := st.AddDocument(ctx, talk.ID, "teil-2.txt", "anna schmidt schloss ab.")
	if err != nil {
		t.Fatalf("add document: %v", err)
	}

	if _, err := sc.ScanDocument(ctx, first.ID); err != nil {
		t.Fatalf("scan first: %v", err)
	}
	if _, err := sc.ScanDocument(ctx, second.ID); err != nil {
		t.Fatalf("scan second: %v", err)
	}

	entities, err := st.EntitiesForTalk(ctx, talk.ID)
	if err != nil {
		t.Fatalf("entities: %v", err)
	}
	if len(entities) != 1 {
		t.Fatalf("entities = %d, want 1 shared across documents", len(entities))
	}
	if len(entities[0].Occurrences) != 2 {
		t.Fatalf("occurrences = %d, want 2", len(entities[0].Occurrences))
	}
	if entities[0].CanonicalText != "Anna Schmidt" {
		t.Fatalf("canonical text = %q, want first-seen form", entities[0].CanonicalText)
	}
}

func TestScanDetectorUnavailableKeepsDecisions(t *testing.T) {
	working := &stubDetector{candidates: []detect.Candidate{
		{Start: 0, End: 12, Category: detect.CategoryPerson, Confidence: 0.9, Source: "stub"},
	}}
	sc, st, cfg := newScanner(t, working)
	ctx := context.Background()

	talk, err := st.CreateTalk(ctx, "Testvortrag", "", "de")
	if err != nil {
		t.Fatalf("create talk: %v", err)
	}
	first, err := st.AddDocument(ctx, talk.ID, "teil-1.txt", "Anna Schmidt eroeffnete.")
	if err != nil {
		t.Fatalf("add document: %v", err)
	}
	if _, err := sc.ScanDocument(ctx, first.ID); err != nil {
		t.Fatalf("scan first: %v", err)
	}

	led := ledger.New(st)
	pending, err := led.Pending(ctx, talk.ID)
	if err != nil {
		t.Fatalf("pending: %v", err)
	}
	if len(pending) != 1 {
		t.Fatalf("pending = %d, want 1", len(pending))
	}
	if _, err := led.Decide(ctx, ledger.DecideRequest{EntityID: pending[0].EntityID, Status: "redact"}); err != nil {
		t.Fatalf("decide: %v", err)
	}

	broken := scanner.New(cfg, st, &stubDetector{err: detect.Unavailable("stub", errors.New("connection refused"))}, logging.NewNop())
	second, err := st.AddDocument(ctx, talk.ID, "teil-2.txt", "Weitere Details folgen.")
	if err != nil {
		t.Fatalf("add document: %v", err)
	}
	if _, err := broken.ScanDocument(ctx, second.ID); err == nil {
		t.Fatal("expected scan error when detector is unavailable")
	}

	failed, err := st.GetDocument(ctx, second.ID)
	if err != nil {
		t.Fatalf("get document: %v", err)
	}
	if failed.Status != store.DocumentFailed {
		t.Fatalf("document status = %s, want failed (never silently empty)", failed.Status)
	}
	if failed.ErrorMessage == "" {
		t.Fatal("failed document must carry an error hint")
	}

	pending, err = led.Pending(ctx, talk.ID)
	if err != nil {
		t.Fatalf("pending after failure: %v", err)
	}
	if len(pending) != 0 {
		t.Fatalf("pending decisions changed by failed scan: %+v", pending)
	}
	snapshot, err := led.Current(ctx, talk.ID)
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if snapshot.Len() != 1 {
		t.Fatalf("snapshot entries = %d, want decision preserved", snapshot.Len())
	}

	// Retry path: back to pending, then a working detector completes the scan.
	if _, err := st.RetryFailedDocuments(ctx, second.ID); err != nil {
		t.Fatalf("retry: %v", err)
	}
	retried, err := st.GetDocument(ctx, second.ID)
	if err != nil {
		t.Fatalf("get document: %v", err)
	}
	if retried.Status != store.DocumentPending {
		t.Fatalf("retried status = %s, want pending", retried.Status)
	}
}

func TestScanHaltsTalkOnConflict(t *testing.T) {
	detector := &stubDetector{candidates: []detect.Candidate{
		{Start: 0, End: 12, Category: detect.CategoryPerson, Confidence: 0.9, Source: "stub"},
	}}
	sc, st, _ := newScanner(t, detector)
	ctx := context.Background()

	talk, err := st.CreateTalk(ctx, "Testvortrag", "", "de")
	if err != nil {
		t.Fatalf("create talk: %v", err)
	}
	doc, err := st.AddDocument(ctx, talk.ID, "transcript.txt", "Anna Schmidt sprach.")
	if err != nil {
		t.Fatalf("add document: %v", err)
	}

	// Another entity already owns the span this scan will produce.
	err = st.CreateEntity(ctx, &store.Entity{
		ID:            "ent-other",
		TalkID:        talk.ID,
		Category:      detect.CategoryPerson,
		CanonicalText: "Peter Maier",
	})
	if err != nil {
		t.Fatalf("create entity: %v", err)
	}
	err = st.AppendOccurrence(ctx, store.Occurrence{
		EntityID:   "ent-other",
		DocumentID: doc.ID,
		Start:      0,
		End:        12,
		Text:       "Anna Schmidt",
		Confidence: 0.9,
	})
	if err != nil {
		t.Fatalf("append occurrence: %v", err)
	}
	// A same-text entity forces the matcher to pick a different owner.
	err = st.CreateEntity(ctx, &store.Entity{
		ID:            "ent-anna",
		TalkID:        talk.ID,
		Category:      detect.CategoryPerson,
		CanonicalText: "Anna Schmidt",
	})
	if err != nil {
		t.Fatalf("create entity: %v", err)
	}

	if _, err := sc.ScanDocument(ctx, doc.ID); err == nil {
		t.Fatal("expected conflict error")
	}

	halted, err := st.GetTalk(ctx, talk.ID)
	if err != nil {
		t.Fatalf("get talk: %v", err)
	}
	if halted.Status != store.TalkHalted {
		t.Fatalf("talk status = %s, want halted", halted.Status)
	}

	// Halted talks refuse further scans.
	another, err := st.AddDocument(ctx, talk.ID, "teil-2.txt", "Mehr Text.")
	if err != nil {
		t.Fatalf("add document: %v", err)
	}
	if _, err := sc.ScanDocument(ctx, another.ID); err == nil {
		t.Fatal("halted talk must refuse scans")
	}
}

// abortingDetector cancels the scan's context while detection is in flight,
// so the first store call after detection fails.
type abortingDetector struct {
	cancel     context.CancelFunc
	candidates []detect.Candidate
}

func (d *abortingDetector) Name() string { return "stub" }

func (d *abortingDetector) Detect(ctx context.Context, text string, lang language.Tag) ([]detect.Candidate, error) {
	d.cancel()
	return d.candidates, nil
}

func TestScanStoreErrorLeavesDocumentRetryable(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	scanCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	detector := &abortingDetector{cancel: cancel, candidates: []detect.Candidate{
		{Start: 0, End: 12, Category: detect.CategoryPerson, Confidence: 0.9, Source: "stub"},
	}}
	sc := scanner.New(cfg, st, detector, logging.NewNop())
	ctx := context.Background()

	talk, err := st.CreateTalk(ctx, "Testvortrag", "", "de")
	if err != nil {
		t.Fatalf("create talk: %v", err)
	}
	doc, err := st.AddDocument(ctx, talk.ID, "transcript.txt", "Anna Schmidt sprach.")
	if err != nil {
		t.Fatalf("add document: %v", err)
	}

	if _, err := sc.ScanDocument(scanCtx, doc.ID); err == nil {
		t.Fatal("expected scan error after cancellation")
	}

	failed, err := st.GetDocument(ctx, doc.ID)
	if err != nil {
		t.Fatalf("get document: %v", err)
	}
	if failed.Status != store.DocumentFailed {
		t.Fatalf("document status = %s, want failed", failed.Status)
	}
	if failed.ErrorMessage == "" {
		t.Fatal("failed document must carry an error hint")
	}

	requeued, err := st.RetryFailedDocuments(ctx, doc.ID)
	if err != nil {
		t.Fatalf("retry: %v", err)
	}
	if requeued != 1 {
		t.Fatalf("requeued = %d, want 1", requeued)
	}
	if _, err := sc.ScanDocument(ctx, doc.ID); err != nil {
		t.Fatalf("rescan: %v", err)
	}
}
