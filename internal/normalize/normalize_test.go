package normalize

import (
	"errors"
	"testing"

	"redact/internal/detect"
	"redact/internal/store"
)

func TestMergeCandidatesJoinsAdjacentSameCategory(t *testing.T) {
	text := "Vortrag von Dr. Anna Schmidt aus Berlin"
	candidates := []detect.Candidate{
		{Start: 12, End: 15, Text: "Dr.", Category: detect.CategoryPerson, Confidence: 0.7},
		{Start: 16, End: 28, Text: "Anna Schmidt", Category: detect.CategoryPerson, Confidence: 0.9},
		{Start: 33, End: 39, Text: "Berlin", Category: detect.CategoryLocation, Confidence: 0.8},
	}

	merged := MergeCandidates(text, candidates)
	if len(merged) != 2 {
		t.Fatalf("merged spans = %d, want 2: %+v", len(merged), merged)
	}
	if merged[0].Text != "Dr. Anna Schmidt" {
		t.Fatalf("merged text = %q, want %q", merged[0].Text, "Dr. Anna Schmidt")
	}
	if merged[0].Confidence != 0.9 {
		t.Fatalf("merged confidence = %v, want 0.9", merged[0].Confidence)
	}
	if merged[1].Text != "Berlin" {
		t.Fatalf("second span = %q, want Berlin", merged[1].Text)
	}
}

func TestMergeCandidatesKeepsListItemsApart(t *testing.T) {
	text := "Anna, Berta und Clara"
	candidates := []detect.Candidate{
		{Start: 0, End: 4, Text: "Anna", Category: detect.CategoryPerson, Confidence: 0.9},
		{Start: 6, End: 11, Text: "Berta", Category: detect.CategoryPerson, Confidence: 0.9},
	}

	merged := MergeCandidates(text, candidates)
	if len(merged) != 2 {
		t.Fatalf("merged spans = %d, want 2 (comma must not bridge): %+v", len(merged), merged)
	}
}

func TestMergeCandidatesCrossCategoryOverlapKeepsStronger(t *testing.T) {
	text := "anna@example.com"
	candidates := []detect.Candidate{
		{Start: 0, End: 16, Text: text, Category: detect.CategoryEmail, Confidence: 1.0},
		{Start: 0, End: 4, Text: "anna", Category: detect.CategoryPerson, Confidence: 0.6},
	}

	merged := MergeCandidates(text, candidates)
	if len(merged) != 1 {
		t.Fatalf("merged spans = %d, want 1: %+v", len(merged), merged)
	}
	if merged[0].Category != detect.CategoryEmail {
		t.Fatalf("kept category = %s, want EMAIL", merged[0].Category)
	}
}

func TestAssignSplitsDistinctPeople(t *testing.T) {
	doc := &store.Document{ID: 1, TalkID: "talk-1", Content: "Anna Schmidt traf Peter Maier."}
	candidates := []detect.Candidate{
		{Start: 0, End: 12, Text: "Anna Schmidt", Category: detect.CategoryPerson, Confidence: 0.9},
		{Start: 18, End: 29, Text: "Peter Maier", Category: detect.CategoryPerson, Confidence: 0.9},
	}

	assignments, err := New(ExactMatcher{}).Assign(doc, candidates, nil)
	if err != nil {
		t.Fatalf("Assign returned error: %v", err)
	}
	if len(assignments) != 2 {
		t.Fatalf("assignments = %d, want 2", len(assignments))
	}
	if assignments[0].EntityID == assignments[1].EntityID {
		t.Fatal("distinct people must not share an entity")
	}
	for _, a := range assignments {
		if !a.NewEntity {
			t.Fatalf("expected new entity for %q", a.CanonicalText)
		}
	}
}

func TestAssignJoinsRepeatedMentionAcrossDocuments(t *testing.T) {
	existing := []*store.Entity{{
		ID:            "ent-anna",
		TalkID:        "talk-1",
		Category:      detect.CategoryPerson,
		CanonicalText: "Anna Schmidt",
		Occurrences: []store.Occurrence{
			{EntityID: "ent-anna", DocumentID: 1, Start: 0, End: 12, Text: "Anna Schmidt"},
		},
	}}
	doc := &store.Document{ID: 2, TalkID: "talk-1", Content: "anna schmidt sprach erneut."}
	candidates := []detect.Candidate{
		{Start: 0, End: 12, Text: "anna schmidt", Category: detect.CategoryPerson, Confidence: 0.8},
	}

	assignments, err := New(ExactMatcher{}).Assign(doc, candidates, existing)
	if err != nil {
		t.Fatalf("Assign returned error: %v", err)
	}
	if len(assignments) != 1 {
		t.Fatalf("assignments = %d, want 1", len(assignments))
	}
	if assignments[0].EntityID != "ent-anna" || assignments[0].NewEntity {
		t.Fatalf("mention did not join existing entity: %+v", assignments[0])
	}
	if assignments[0].CanonicalText != "Anna Schmidt" {
		t.Fatalf("canonical text = %q, want first-seen form", assignments[0].CanonicalText)
	}
}

func TestAssignRepeatedMentionWithinDocumentSharesNewEntity(t *testing.T) {
	doc := &store.Document{ID: 3, TalkID: "talk-1", Content: "Anna kam. Anna ging."}
	candidates := []detect.Candidate{
		{Start: 0, End: 4, Text: "Anna", Category: detect.CategoryPerson, Confidence: 0.9},
		{Start: 10, End: 14, Text: "Anna", Category: detect.CategoryPerson, Confidence: 0.9},
	}

	assignments, err := New(ExactMatcher{}).Assign(doc, candidates, nil)
	if err != nil {
		t.Fatalf("Assign returned error: %v", err)
	}
	if len(assignments) != 2 {
		t.Fatalf("assignments = %d, want 2", len(assignments))
	}
	if assignments[0].EntityID != assignments[1].EntityID {
		t.Fatal("repeated mention in one document must share the entity created for it")
	}
	if !assignments[0].NewEntity || assignments[1].NewEntity {
		t.Fatalf("only the first assignment should create the entity: %+v", assignments)
	}
}

func TestAssignIsIdempotent(t *testing.T) {
	doc := &store.Document{ID: 4, TalkID: "talk-1", Content: "Anna Schmidt war dort."}
	candidates := []detect.Candidate{
		{Start: 0, End: 12, Text: "Anna Schmidt", Category: detect.CategoryPerson, Confidence: 0.9},
	}
	existing := []*store.Entity{{
		ID:            "ent-anna",
		TalkID:        "talk-1",
		Category:      detect.CategoryPerson,
		CanonicalText: "Anna Schmidt",
		Occurrences: []store.Occurrence{
			{EntityID: "ent-anna", DocumentID: 4, Start: 0, End: 12, Text: "Anna Schmidt"},
		},
	}}

	assignments, err := New(ExactMatcher{}).Assign(doc, candidates, existing)
	if err != nil {
		t.Fatalf("Assign returned error: %v", err)
	}
	if len(assignments) != 0 {
		t.Fatalf("re-running assignment produced %d new occurrences, want 0", len(assignments))
	}
}

func TestAssignConflictingSpanOwnership(t *testing.T) {
	doc := &store.Document{ID: 5, TalkID: "talk-1", Content: "Anna Schmidt war dort."}
	candidates := []detect.Candidate{
		{Start: 0, End: 12, Text: "Anna Schmidt", Category: detect.CategoryPerson, Confidence: 0.9},
	}
	existing := []*store.Entity{
		{
			ID:            "ent-other",
			TalkID:        "talk-1",
			Category:      detect.CategoryPerson,
			CanonicalText: "Peter Maier",
			Occurrences: []store.Occurrence{
				{EntityID: "ent-other", DocumentID: 5, Start: 0, End: 12, Text: "Anna Schmidt"},
			},
		},
		{
			ID:            "ent-anna",
			TalkID:        "talk-1",
			Category:      detect.CategoryPerson,
			CanonicalText: "Anna Schmidt",
		},
	}

	_, err := New(ExactMatcher{}).Assign(doc, candidates, existing)
	var conflict *ConflictError
	if !errors.As(err, &conflict) {
		t.Fatalf("expected ConflictError, got %v", err)
	}
	if conflict.Start != 0 || conflict.End != 12 || conflict.DocumentID != 5 {
		t.Fatalf("conflict span = %+v", conflict)
	}
}

func TestPersonNameMatcherSurnameLinking(t *testing.T) {
	entities := []*store.Entity{
		{ID: "ent-anna", Category: detect.CategoryPerson, CanonicalText: "Anna Schmidt"},
		{ID: "ent-peter", Category: detect.CategoryPerson, CanonicalText: "Peter Maier"},
	}

	matched := PersonNameMatcher{}.Match("Schmidt", detect.CategoryPerson, entities)
	if len(matched) != 1 || matched[0].ID != "ent-anna" {
		t.Fatalf("surname match = %+v, want ent-anna", matched)
	}
}

func TestPersonNameMatcherAmbiguousSurnameCreatesNewEntity(t *testing.T) {
	doc := &store.Document{ID: 6, TalkID: "talk-1", Content: "Schmidt sagte zu."}
	existing := []*store.Entity{
		{ID: "ent-anna", TalkID: "talk-1", Category: detect.CategoryPerson, CanonicalText: "Anna Schmidt"},
		{ID: "ent-karl", TalkID: "talk-1", Category: detect.CategoryPerson, CanonicalText: "Karl Schmidt"},
	}
	candidates := []detect.Candidate{
		{Start: 0, End: 7, Text: "Schmidt", Category: detect.CategoryPerson, Confidence: 0.8},
	}

	assignments, err := New(PersonNameMatcher{}).Assign(doc, candidates, existing)
	if err != nil {
		t.Fatalf("Assign returned error: %v", err)
	}
	if len(assignments) != 1 || !assignments[0].NewEntity {
		t.Fatalf("ambiguous surname must create a new entity: %+v", assignments)
	}
}

func TestMatcherByName(t *testing.T) {
	if m, ok := MatcherByName("person-names"); !ok || m.Name() != "person-names" {
		t.Fatalf("person-names lookup failed: %v %v", m, ok)
	}
	if _, ok := MatcherByName("fuzzy"); ok {
		t.Fatal("unknown strategy must not resolve")
	}
}
