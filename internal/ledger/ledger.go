// Package ledger is the append-only review log for a talk's entities. Every
// human decision lands here; sanitization reads an immutable snapshot of the
// current rows so a mid-flight decision never half-applies.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"redact/internal/api"
	"redact/internal/detect"
	"redact/internal/services"
	"redact/internal/store"
)

// ErrInvalidDecision marks a decision request the ledger refuses to record.
var ErrInvalidDecision = errors.New("invalid decision")

type Ledger struct {
	store *store.Store
}

func New(st *store.Store) *Ledger {
	return &Ledger{store: st}
}

// Entry is one entity's current decision inside a snapshot.
type Entry struct {
	EntityID      string
	Category      detect.Category
	CanonicalText string
	Status        store.DecisionStatus
	Replacement   string
}

// Snapshot is a point-in-time copy of a talk's current decisions, keyed by
// entity id. It never changes after construction.
type Snapshot struct {
	entries map[string]Entry
}

func (s *Snapshot) Lookup(entityID string) (Entry, bool) {
	entry, ok := s.entries[entityID]
	return entry, ok
}

func (s *Snapshot) Len() int {
	return len(s.entries)
}

// DecideRequest is a reviewer's verdict on one entity.
type DecideRequest struct {
	EntityID    string
	Status      string
	Replacement string
	Note        string
}

// Pending lists the entities of a talk that still lack a current decision,
// ordered by where the reviewer first meets them in the transcripts. Entities
// whose occurrences all live in superseded documents carry their decision but
// never appear here.
func (l *Ledger) Pending(ctx context.Context, talkID string) ([]api.Finding, error) {
	entities, err := l.store.EntitiesForTalk(ctx, talkID)
	if err != nil {
		return nil, err
	}
	current, err := l.store.CurrentDecisions(ctx, talkID)
	if err != nil {
		return nil, err
	}
	decided := make(map[string]struct{}, len(current))
	for _, decision := range current {
		decided[decision.EntityID] = struct{}{}
	}

	type ordered struct {
		finding  api.Finding
		docID    int64
		startOff int
	}
	var pending []ordered
	for _, entity := range entities {
		if _, ok := decided[entity.ID]; ok {
			continue
		}
		if len(entity.Occurrences) == 0 {
			continue
		}
		first := entity.Occurrences[0]
		maxConfidence := 0.0
		docNames := make(map[int64]struct{})
		for _, occ := range entity.Occurrences {
			if occ.DocumentID < first.DocumentID || (occ.DocumentID == first.DocumentID && occ.Start < first.Start) {
				first = occ
			}
			if occ.Confidence > maxConfidence {
				maxConfidence = occ.Confidence
			}
			docNames[occ.DocumentID] = struct{}{}
		}
		documents := make([]string, 0, len(docNames))
		for docID := range docNames {
			doc, err := l.store.GetDocument(ctx, docID)
			if err != nil {
				return nil, err
			}
			documents = append(documents, doc.Name)
		}
		sort.Strings(documents)
		pending = append(pending, ordered{
			finding: api.Finding{
				EntityID:        entity.ID,
				Category:        string(entity.Category),
				SampleText:      entity.CanonicalText,
				Confidence:      maxConfidence,
				OccurrenceCount: len(entity.Occurrences),
				Documents:       documents,
			},
			docID:    first.DocumentID,
			startOff: first.Start,
		})
	}
	sort.SliceStable(pending, func(i, j int) bool {
		if pending[i].docID != pending[j].docID {
			return pending[i].docID < pending[j].docID
		}
		return pending[i].startOff < pending[j].startOff
	})

	findings := make([]api.Finding, len(pending))
	for i, entry := range pending {
		findings[i] = entry.finding
	}
	return findings, nil
}

// Decide validates and records a decision. Re-deciding an entity supersedes
// the prior row instead of overwriting it, so the audit trail stays complete.
func (l *Ledger) Decide(ctx context.Context, req DecideRequest) (api.Decision, error) {
	status, ok := store.ParseDecisionStatus(strings.ToLower(strings.TrimSpace(req.Status)))
	if !ok {
		return api.Decision{}, fmt.Errorf("%w: unknown status %q", ErrInvalidDecision, req.Status)
	}
	if status == store.DecisionEdited && strings.TrimSpace(req.Replacement) == "" {
		return api.Decision{}, fmt.Errorf("%w: edited decision requires replacement text", ErrInvalidDecision)
	}
	entity, err := l.store.GetEntity(ctx, req.EntityID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return api.Decision{}, fmt.Errorf("%w: unknown entity %q", ErrInvalidDecision, req.EntityID)
		}
		return api.Decision{}, services.Wrap(services.ErrTransient, "review", "decide", "load entity", err)
	}

	recorded, err := l.store.RecordDecision(ctx, store.Decision{
		EntityID:    entity.ID,
		Status:      status,
		Replacement: req.Replacement,
		Note:        req.Note,
	})
	if err != nil {
		return api.Decision{}, services.Wrap(services.ErrTransient, "review", "decide", "record decision", err)
	}
	return api.DecisionFromStore(&recorded), nil
}

// Current builds the immutable decision snapshot sanitization runs against.
func (l *Ledger) Current(ctx context.Context, talkID string) (*Snapshot, error) {
	entities, err := l.store.EntitiesForTalk(ctx, talkID)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]*store.Entity, len(entities))
	for _, entity := range entities {
		byID[entity.ID] = entity
	}

	current, err := l.store.CurrentDecisions(ctx, talkID)
	if err != nil {
		return nil, err
	}
	entries := make(map[string]Entry, len(current))
	for _, decision := range current {
		entity, ok := byID[decision.EntityID]
		if !ok {
			continue
		}
		entries[decision.EntityID] = Entry{
			EntityID:      decision.EntityID,
			Category:      entity.Category,
			CanonicalText: entity.CanonicalText,
			Status:        decision.Status,
			Replacement:   decision.Replacement,
		}
	}
	return &Snapshot{entries: entries}, nil
}

// History returns every decision ever recorded for an entity, oldest first,
// superseded rows included.
func (l *Ledger) History(ctx context.Context, entityID string) ([]api.Decision, error) {
	if _, err := l.store.GetEntity(ctx, entityID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("%w: unknown entity %q", ErrInvalidDecision, entityID)
		}
		return nil, err
	}
	rows, err := l.store.DecisionHistory(ctx, entityID)
	if err != nil {
		return nil, err
	}
	out := make([]api.Decision, len(rows))
	for i := range rows {
		out[i] = api.DecisionFromStore(&rows[i])
	}
	return out, nil
}
