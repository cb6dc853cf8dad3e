// Package api defines the wire-level view of talks, findings, and decisions
// shared by the IPC surface and the CLI renderers.
package api

import (
	"time"

	"redact/internal/store"
)

type Talk struct {
	ID        string    `json:"id"`
	Slug      string    `json:"slug"`
	Title     string    `json:"title"`
	Speaker   string    `json:"speaker,omitempty"`
	Language  string    `json:"language,omitempty"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type Document struct {
	ID         int64      `json:"id"`
	TalkID     string     `json:"talk_id"`
	Name       string     `json:"name"`
	Version    int        `json:"version"`
	Status     string     `json:"status"`
	Superseded bool       `json:"superseded"`
	ErrorHint  string     `json:"error_hint,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	ScannedAt  *time.Time `json:"scanned_at,omitempty"`
}

// Finding is one entity awaiting (or holding) a review decision, summarized
// for display.
type Finding struct {
	EntityID        string   `json:"entity_id"`
	Category        string   `json:"category"`
	SampleText      string   `json:"sample_text"`
	Confidence      float64  `json:"confidence"`
	OccurrenceCount int      `json:"occurrence_count"`
	Documents       []string `json:"documents"`
}

type Decision struct {
	Seq         int64     `json:"seq"`
	EntityID    string    `json:"entity_id"`
	Status      string    `json:"status"`
	Replacement string    `json:"replacement,omitempty"`
	Note        string    `json:"note,omitempty"`
	DecidedAt   time.Time `json:"decided_at"`
	Superseded  bool      `json:"superseded"`
}

// Replacement is one applied edit in a sanitized document, reported in
// ascending original offset order.
type Replacement struct {
	Start       int    `json:"start"`
	End         int    `json:"end"`
	Original    string `json:"original"`
	Replacement string `json:"replacement"`
	EntityID    string `json:"entity_id"`
}

type SanitizedDocument struct {
	DocumentID  int64         `json:"document_id"`
	Name        string        `json:"name"`
	Content     string        `json:"content"`
	AppliedDiff []Replacement `json:"applied_diff"`
	OutputPath  string        `json:"output_path,omitempty"`
}

type SanitizeResult struct {
	TalkID    string              `json:"talk_id"`
	Documents []SanitizedDocument `json:"documents"`
}

type ReviewProgress struct {
	Documents        int `json:"documents"`
	ScannedDocuments int `json:"scanned_documents"`
	FailedDocuments  int `json:"failed_documents"`
	Entities         int `json:"entities"`
	DecidedEntities  int `json:"decided_entities"`
	PendingEntities  int `json:"pending_entities"`
}

func TalkFromStore(talk *store.Talk) Talk {
	return Talk{
		ID:        talk.ID,
		Slug:      talk.Slug,
		Title:     talk.Title,
		Speaker:   talk.Speaker,
		Language:  talk.Language,
		Status:    string(talk.Status),
		CreatedAt: talk.CreatedAt,
		UpdatedAt: talk.UpdatedAt,
	}
}

func DocumentFromStore(doc *store.Document) Document {
	out := Document{
		ID:         doc.ID,
		TalkID:     doc.TalkID,
		Name:       doc.Name,
		Version:    doc.Version,
		Status:     string(doc.Status),
		Superseded: doc.Superseded,
		ErrorHint:  doc.ErrorMessage,
		CreatedAt:  doc.CreatedAt,
	}
	if doc.ScannedAt != nil {
		scanned := *doc.ScannedAt
		out.ScannedAt = &scanned
	}
	return out
}

func DecisionFromStore(decision *store.Decision) Decision {
	return Decision{
		Seq:         decision.Seq,
		EntityID:    decision.EntityID,
		Status:      string(decision.Status),
		Replacement: decision.Replacement,
		Note:        decision.Note,
		DecidedAt:   decision.DecidedAt,
		Superseded:  decision.Superseded,
	}
}

func ProgressFromStore(progress *store.ReviewProgress) ReviewProgress {
	return ReviewProgress{
		Documents:        progress.Documents,
		ScannedDocuments: progress.ScannedDocuments,
		FailedDocuments:  progress.FailedDocuments,
		Entities:         progress.Entities,
		DecidedEntities:  progress.Decided,
		PendingEntities:  progress.Pending,
	}
}
