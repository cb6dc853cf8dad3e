package normalize

import (
	"fmt"
	"sort"
	"unicode"

	"github.com/google/uuid"

	"redact/internal/detect"
	"redact/internal/store"
)

// ConflictError reports a span that two different entities claim. The talk
// must be halted until an operator resolves it; silently picking a winner
// would apply one entity's decision to the other's text.
type ConflictError struct {
	DocumentID int64
	Start      int
	End        int
	EntityIDs  [2]string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("span %d:%d in document %d claimed by entities %s and %s",
		e.Start, e.End, e.DocumentID, e.EntityIDs[0], e.EntityIDs[1])
}

// Assignment is one occurrence mapped onto an entity, either an existing one
// or one created during this pass.
type Assignment struct {
	EntityID      string
	NewEntity     bool
	Category      detect.Category
	CanonicalText string
	Occurrence    store.Occurrence
}

type Normalizer struct {
	matcher Matcher
}

func New(matcher Matcher) *Normalizer {
	if matcher == nil {
		matcher = ExactMatcher{}
	}
	return &Normalizer{matcher: matcher}
}

func (n *Normalizer) MatcherName() string {
	return n.matcher.Name()
}

// MergeCandidates collapses raw detector output into a clean, non-overlapping
// span set. Same-category candidates that overlap or touch across only
// whitespace and punctuation merge into one span; cross-category overlaps keep
// the higher-confidence candidate. The result is sorted by start offset.
func MergeCandidates(text string, candidates []detect.Candidate) []detect.Candidate {
	if len(candidates) == 0 {
		return nil
	}
	merged := make([]detect.Candidate, len(candidates))
	copy(merged, candidates)
	sort.SliceStable(merged, func(i, j int) bool {
		if merged[i].Start != merged[j].Start {
			return merged[i].Start < merged[j].Start
		}
		return merged[i].End > merged[j].End
	})

	out := merged[:0]
	for _, cand := range merged {
		if len(out) == 0 {
			out = append(out, cand)
			continue
		}
		last := &out[len(out)-1]
		if cand.Category == last.Category && bridgeable(text, last.End, cand.Start) {
			if cand.End > last.End {
				last.End = cand.End
				last.Text = text[last.Start:last.End]
			}
			if cand.Confidence > last.Confidence {
				last.Confidence = cand.Confidence
			}
			continue
		}
		if cand.Start < last.End {
			// Cross-category overlap: keep the stronger span.
			if cand.Confidence > last.Confidence || (cand.Confidence == last.Confidence && cand.End-cand.Start > last.End-last.Start) {
				*last = cand
			}
			continue
		}
		out = append(out, cand)
	}

	result := make([]detect.Candidate, len(out))
	copy(result, out)
	return result
}

// bridgeable reports whether the gap between two spans is joining
// punctuation or whitespace, so "Dr." and "Anna Schmidt" in "Dr. Anna
// Schmidt" merge while list separators like "Anna, Berta" keep the mentions
// apart.
func bridgeable(text string, from, to int) bool {
	if to <= from {
		return true
	}
	if from < 0 || to > len(text) {
		return false
	}
	for _, r := range text[from:to] {
		if unicode.IsSpace(r) {
			continue
		}
		switch r {
		case '.', '-', '/', '\'':
		default:
			return false
		}
	}
	return true
}

// Assign partitions a document's merged candidates onto the talk's entity set.
// Existing occurrences make the operation idempotent: a candidate whose span
// is already recorded for the matched entity produces no assignment, while the
// same span held by a different entity is a conflict.
func (n *Normalizer) Assign(doc *store.Document, candidates []detect.Candidate, existing []*store.Entity) ([]Assignment, error) {
	merged := MergeCandidates(doc.Content, candidates)
	if len(merged) == 0 {
		return nil, nil
	}

	// Spans this document already has, from any prior pass.
	type span struct{ start, end int }
	claimed := make(map[span]string)
	for _, entity := range existing {
		for _, occ := range entity.Occurrences {
			if occ.DocumentID == doc.ID {
				claimed[span{occ.Start, occ.End}] = entity.ID
			}
		}
	}

	working := make([]*store.Entity, len(existing))
	copy(working, existing)

	var assignments []Assignment
	for _, cand := range merged {
		matches := n.matcher.Match(cand.Text, cand.Category, working)

		var entityID, canonical string
		newEntity := false
		if len(matches) == 1 {
			entityID = matches[0].ID
			canonical = matches[0].CanonicalText
		} else {
			entityID = uuid.NewString()
			canonical = cand.Text
			newEntity = true
		}

		if owner, ok := claimed[span{cand.Start, cand.End}]; ok {
			if owner == entityID {
				continue
			}
			if newEntity {
				// The span is already recorded but the mention no longer
				// matches its owner; treat the stored partition as
				// authoritative instead of splitting the entity.
				continue
			}
			return nil, &ConflictError{
				DocumentID: doc.ID,
				Start:      cand.Start,
				End:        cand.End,
				EntityIDs:  [2]string{owner, entityID},
			}
		}
		claimed[span{cand.Start, cand.End}] = entityID

		occ := store.Occurrence{
			EntityID:   entityID,
			DocumentID: doc.ID,
			Start:      cand.Start,
			End:        cand.End,
			Text:       cand.Text,
			Confidence: cand.Confidence,
		}
		assignments = append(assignments, Assignment{
			EntityID:      entityID,
			NewEntity:     newEntity,
			Category:      cand.Category,
			CanonicalText: canonical,
			Occurrence:    occ,
		})
		if newEntity {
			working = append(working, &store.Entity{
				ID:            entityID,
				TalkID:        doc.TalkID,
				Category:      cand.Category,
				CanonicalText: canonical,
				Occurrences:   []store.Occurrence{occ},
			})
		} else {
			for _, entity := range working {
				if entity.ID == entityID {
					entity.Occurrences = append(entity.Occurrences, occ)
					break
				}
			}
		}
	}
	return assignments, nil
}
