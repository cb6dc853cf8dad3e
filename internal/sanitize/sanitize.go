// Package sanitize rewrites transcripts according to a decision snapshot. The
// rewrite is pure: it reads a document, its occurrences, and an immutable
// snapshot, and never touches the store, so concurrent decisions cannot
// half-apply.
package sanitize

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"redact/internal/api"
	"redact/internal/ledger"
	"redact/internal/store"
)

// unreviewedMessage is the fixed fragment of UnreviewedError text. Transports
// that flatten errors to strings (net/rpc) preserve it, so IsUnreviewed can
// still recognize the condition on the far side.
const unreviewedMessage = "lack a review decision"

// UnreviewedError lists the entities that still block sanitization. No output
// is produced while any entity in the document lacks a decision.
type UnreviewedError struct {
	EntityIDs []string
}

func (e *UnreviewedError) Error() string {
	return fmt.Sprintf("%d entities %s: %s", len(e.EntityIDs), unreviewedMessage, strings.Join(e.EntityIDs, ", "))
}

// IsUnreviewed reports whether err represents undecided entities, either as a
// typed UnreviewedError or as its flattened string form after an IPC hop.
func IsUnreviewed(err error) bool {
	if err == nil {
		return false
	}
	var unreviewed *UnreviewedError
	if errors.As(err, &unreviewed) {
		return true
	}
	return strings.Contains(err.Error(), unreviewedMessage)
}

// Document applies the snapshot to one document. Every occurrence must belong
// to a decided entity; keep decisions leave text untouched and stay out of the
// applied diff. Replacements apply in descending offset order so earlier
// offsets stay valid, and the diff reports them ascending.
func Document(doc *store.Document, occurrences []store.Occurrence, snapshot *ledger.Snapshot) (api.SanitizedDocument, error) {
	var unreviewed []string
	seen := make(map[string]struct{})
	for _, occ := range occurrences {
		if _, ok := snapshot.Lookup(occ.EntityID); !ok {
			if _, dup := seen[occ.EntityID]; !dup {
				seen[occ.EntityID] = struct{}{}
				unreviewed = append(unreviewed, occ.EntityID)
			}
		}
	}
	if len(unreviewed) > 0 {
		sort.Strings(unreviewed)
		return api.SanitizedDocument{}, &UnreviewedError{EntityIDs: unreviewed}
	}

	ordered := make([]store.Occurrence, len(occurrences))
	copy(ordered, occurrences)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].Start > ordered[j].Start })

	content := doc.Content
	var applied []api.Replacement
	for _, occ := range ordered {
		entry, _ := snapshot.Lookup(occ.EntityID)
		replacement, apply := ledger.EffectiveReplacement(entry.Category, store.Decision{
			EntityID:    entry.EntityID,
			Status:      entry.Status,
			Replacement: entry.Replacement,
		})
		if !apply {
			continue
		}
		if occ.Start < 0 || occ.End > len(content) || occ.Start > occ.End {
			return api.SanitizedDocument{}, fmt.Errorf("occurrence %d:%d outside document %d bounds", occ.Start, occ.End, doc.ID)
		}
		content = content[:occ.Start] + replacement + content[occ.End:]
		applied = append(applied, api.Replacement{
			Start:       occ.Start,
			End:         occ.End,
			Original:    occ.Text,
			Replacement: replacement,
			EntityID:    occ.EntityID,
		})
	}
	sort.Slice(applied, func(i, j int) bool { return applied[i].Start < applied[j].Start })

	return api.SanitizedDocument{
		DocumentID:  doc.ID,
		Name:        doc.Name,
		Content:     content,
		AppliedDiff: applied,
	}, nil
}
