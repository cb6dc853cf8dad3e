package ledger_test

import (
	"context"
	"errors"
	"testing"

	"redact/internal/detect"
	"redact/internal/ledger"
	"redact/internal/store"
	"redact/internal/testsupport"
)

func seedTalk(t *testing.T, st *store.Store) (talkID string, docID int64) {
	t.Helper()
	ctx := context.Background()

	talk, err := st.CreateTalk(ctx, "Testvortrag", "", "de")
	if err != nil {
		t.Fatalf("create talk: %v", err)
	}
	doc, err := st.AddDocument(ctx, talk.ID, "transcript.txt", "Anna Schmidt sprach in Berlin.")
	if err != nil {
		t.Fatalf("add document: %v", err)
	}
	return talk.ID, doc.ID
}

func seedEntity(t *testing.T, st *store.Store, talkID string, docID int64, id string, category detect.Category, text string, start int) {
	t.Helper()
	ctx := context.Background()

	err := st.CreateEntity(ctx, &store.Entity{
		ID:            id,
		TalkID:        talkID,
		Category:      category,
		CanonicalText: text,
	})
	if err != nil {
		t.Fatalf("create entity: %v", err)
	}
	err = st.AppendOccurrence(ctx, store.Occurrence{
		EntityID:   id,
		DocumentID: docID,
		Start:      start,
		End:        start + len(text),
		Text:       text,
		Confidence: 0.9,
	})
	if err != nil {
		t.Fatalf("append occurrence: %v", err)
	}
}

func TestPendingOrderedByFirstOccurrence(t *testing.T) {
	st := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	talkID, docID := seedTalk(t, st)
	seedEntity(t, st, talkID, docID, "ent-berlin", detect.CategoryLocation, "Berlin", 23)
	seedEntity(t, st, talkID, docID, "ent-anna", detect.CategoryPerson, "Anna Schmidt", 0)

	findings, err := ledger.New(st).Pending(context.Background(), talkID)
	if err != nil {
		t.Fatalf("Pending returned error: %v", err)
	}
	if len(findings) != 2 {
		t.Fatalf("pending findings = %d, want 2", len(findings))
	}
	if findings[0].EntityID != "ent-anna" || findings[1].EntityID != "ent-berlin" {
		t.Fatalf("pending order = [%s %s], want document order", findings[0].EntityID, findings[1].EntityID)
	}
	if findings[0].OccurrenceCount != 1 || findings[0].Documents[0] != "transcript.txt" {
		t.Fatalf("finding summary = %+v", findings[0])
	}
}

func TestDecideRemovesFromPendingAndSnapshots(t *testing.T) {
	st := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	talkID, docID := seedTalk(t, st)
	seedEntity(t, st, talkID, docID, "ent-anna", detect.CategoryPerson, "Anna Schmidt", 0)
	led := ledger.New(st)
	ctx := context.Background()

	decision, err := led.Decide(ctx, ledger.DecideRequest{EntityID: "ent-anna", Status: "redact"})
	if err != nil {
		t.Fatalf("Decide returned error: %v", err)
	}
	if decision.Status != "redact" || decision.Superseded {
		t.Fatalf("recorded decision = %+v", decision)
	}

	findings, err := led.Pending(ctx, talkID)
	if err != nil {
		t.Fatalf("Pending returned error: %v", err)
	}
	if len(findings) != 0 {
		t.Fatalf("decided entity still pending: %+v", findings)
	}

	snapshot, err := led.Current(ctx, talkID)
	if err != nil {
		t.Fatalf("Current returned error: %v", err)
	}
	entry, ok := snapshot.Lookup("ent-anna")
	if !ok || entry.Status != store.DecisionRedact {
		t.Fatalf("snapshot entry = %+v ok=%v", entry, ok)
	}
}

func TestDecideValidation(t *testing.T) {
	st := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	talkID, docID := seedTalk(t, st)
	seedEntity(t, st, talkID, docID, "ent-anna", detect.CategoryPerson, "Anna Schmidt", 0)
	led := ledger.New(st)

	tests := []struct {
		name string
		req  ledger.DecideRequest
	}{
		{"unknown entity", ledger.DecideRequest{EntityID: "ent-missing", Status: "redact"}},
		{"unknown status", ledger.DecideRequest{EntityID: "ent-anna", Status: "maybe"}},
		{"edited without replacement", ledger.DecideRequest{EntityID: "ent-anna", Status: "edited"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := led.Decide(context.Background(), tt.req)
			if !errors.Is(err, ledger.ErrInvalidDecision) {
				t.Fatalf("expected ErrInvalidDecision, got %v", err)
			}
		})
	}
}

func TestRedecidingSupersedesAndKeepsHistory(t *testing.T) {
	st := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	talkID, docID := seedTalk(t, st)
	seedEntity(t, st, talkID, docID, "ent-anna", detect.CategoryPerson, "Anna Schmidt", 0)
	led := ledger.New(st)
	ctx := context.Background()

	if _, err := led.Decide(ctx, ledger.DecideRequest{EntityID: "ent-anna", Status: "keep"}); err != nil {
		t.Fatalf("first decision: %v", err)
	}
	if _, err := led.Decide(ctx, ledger.DecideRequest{EntityID: "ent-anna", Status: "edited", Replacement: "die Rednerin"}); err != nil {
		t.Fatalf("second decision: %v", err)
	}

	history, err := led.History(ctx, "ent-anna")
	if err != nil {
		t.Fatalf("History returned error: %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("history rows = %d, want 2", len(history))
	}
	if !history[0].Superseded || history[0].Status != "keep" {
		t.Fatalf("first row = %+v, want superseded keep", history[0])
	}
	if history[1].Superseded || history[1].Status != "edited" || history[1].Replacement != "die Rednerin" {
		t.Fatalf("second row = %+v", history[1])
	}

	snapshot, err := led.Current(ctx, talkID)
	if err != nil {
		t.Fatalf("Current returned error: %v", err)
	}
	entry, _ := snapshot.Lookup("ent-anna")
	if entry.Status != store.DecisionEdited || entry.Replacement != "die Rednerin" {
		t.Fatalf("snapshot entry = %+v", entry)
	}

	talk, err := st.GetTalk(ctx, talkID)
	if err != nil {
		t.Fatalf("get talk: %v", err)
	}
	if talk.Status != store.TalkActive {
		t.Fatalf("talk status = %s, want active", talk.Status)
	}
}

func TestHistoryUnknownEntity(t *testing.T) {
	st := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	_, _ = seedTalk(t, st)

	_, err := ledger.New(st).History(context.Background(), "ent-missing")
	if !errors.Is(err, ledger.ErrInvalidDecision) {
		t.Fatalf("expected ErrInvalidDecision, got %v", err)
	}
}

func TestEffectiveReplacement(t *testing.T) {
	tests := []struct {
		name     string
		category detect.Category
		decision store.Decision
		want     string
		applied  bool
	}{
		{"redact default mask", detect.CategoryPerson, store.Decision{Status: store.DecisionRedact}, "[PERSON]", true},
		{"redact explicit mask", detect.CategoryEmail, store.Decision{Status: store.DecisionRedact, Replacement: "<mail entfernt>"}, "<mail entfernt>", true},
		{"edited", detect.CategoryPerson, store.Decision{Status: store.DecisionEdited, Replacement: "die Rednerin"}, "die Rednerin", true},
		{"keep", detect.CategoryLocation, store.Decision{Status: store.DecisionKeep}, "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, applied := ledger.EffectiveReplacement(tt.category, tt.decision)
			if got != tt.want || applied != tt.applied {
				t.Fatalf("EffectiveReplacement = (%q, %v), want (%q, %v)", got, applied, tt.want, tt.applied)
			}
		})
	}
}
