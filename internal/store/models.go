package store

import (
	"strings"
	"time"

	"redact/internal/detect"
)

// TalkStatus represents the lifecycle of a talk.
type TalkStatus string

const (
	// TalkActive talks accept uploads, scans, and decisions.
	TalkActive TalkStatus = "active"
	// TalkHalted is set when normalization detects a partition conflict.
	// Halted talks reject further scanning until manually inspected.
	TalkHalted TalkStatus = "halted"
)

// DocumentStatus represents the scan lifecycle of an uploaded transcript.
type DocumentStatus string

const (
	DocumentPending  DocumentStatus = "pending"
	DocumentScanning DocumentStatus = "scanning"
	DocumentScanned  DocumentStatus = "scanned"
	DocumentFailed   DocumentStatus = "failed"
)

// DecisionStatus is the review outcome for a normalized entity.
type DecisionStatus string

const (
	// DecisionRedact masks every occurrence with the category default or an
	// explicit override.
	DecisionRedact DecisionStatus = "redact"
	// DecisionKeep leaves every occurrence untouched (reviewer judged the
	// finding a false positive or intentionally public).
	DecisionKeep DecisionStatus = "keep"
	// DecisionEdited replaces every occurrence with reviewer-supplied text.
	DecisionEdited DecisionStatus = "edited"
)

// ParseDecisionStatus converts a string into a known DecisionStatus.
func ParseDecisionStatus(value string) (DecisionStatus, bool) {
	normalized := DecisionStatus(strings.ToLower(strings.TrimSpace(value)))
	switch normalized {
	case DecisionRedact, DecisionKeep, DecisionEdited:
		return normalized, true
	default:
		return "", false
	}
}

// Talk groups the documents and review state of one recorded talk.
type Talk struct {
	ID        string
	Slug      string
	Title     string
	Speaker   string
	Language  string
	Status    TalkStatus
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Document is one uploaded transcript version. Content is immutable once
// scanned; re-uploading the same name supersedes all prior versions.
type Document struct {
	ID           int64
	TalkID       string
	Name         string
	Content      string
	ContentHash  string
	Version      int
	Superseded   bool
	Status       DocumentStatus
	ErrorMessage string
	ScannedAt    *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Entity is an identity-resolved finding: one real-world referent with all of
// its textual occurrences across the talk's documents.
type Entity struct {
	ID            string
	TalkID        string
	Category      detect.Category
	CanonicalText string
	// Pinned is set once a human decision exists; pinned entities never lose
	// occurrences to re-partitioning.
	Pinned      bool
	CreatedAt   time.Time
	Occurrences []Occurrence
}

// Occurrence is one textual mention of an entity in one document. Offsets are
// byte offsets into the exact content version scanned.
type Occurrence struct {
	ID         int64
	EntityID   string
	DocumentID int64
	Start      int
	End        int
	Text       string
	Confidence float64
}

// Decision is one append-only review decision row. Exactly one non-superseded
// row exists per decided entity; prior rows are kept for audit.
type Decision struct {
	Seq         int64
	EntityID    string
	Status      DecisionStatus
	Replacement string
	Note        string
	DecidedAt   time.Time
	Superseded  bool
}

// ReviewProgress summarizes a talk's scan and review state.
type ReviewProgress struct {
	Documents        int
	ScannedDocuments int
	FailedDocuments  int
	Entities         int
	Decided          int
	Pending          int
}
