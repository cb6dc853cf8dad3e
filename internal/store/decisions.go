package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// RecordDecision appends a review decision, superseding any prior current
// decision for the entity in the same transaction and pinning the entity's
// identity. The superseded row is kept for audit.
func (s *Store) RecordDecision(ctx context.Context, decision Decision) (Decision, error) {
	if decision.DecidedAt.IsZero() {
		decision.DecidedAt = time.Now().UTC()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Decision{}, fmt.Errorf("begin decision tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx,
		`UPDATE decisions SET superseded = 1 WHERE entity_id = ? AND superseded = 0`,
		decision.EntityID,
	); err != nil {
		return Decision{}, fmt.Errorf("supersede prior decision: %w", err)
	}

	res, err := tx.ExecContext(ctx,
		`INSERT INTO decisions (entity_id, status, replacement, note, decided_at, superseded)
         VALUES (?, ?, ?, ?, ?, 0)`,
		decision.EntityID, string(decision.Status), nullableString(decision.Replacement),
		nullableString(decision.Note), decision.DecidedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return Decision{}, fmt.Errorf("insert decision: %w", err)
	}
	seq, err := res.LastInsertId()
	if err != nil {
		return Decision{}, fmt.Errorf("decision seq: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE entities SET pinned = 1 WHERE id = ?`, decision.EntityID,
	); err != nil {
		return Decision{}, fmt.Errorf("pin entity: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return Decision{}, fmt.Errorf("commit decision: %w", err)
	}

	decision.Seq = seq
	decision.Superseded = false
	return decision, nil
}

// CurrentDecisions returns the non-superseded decision per decided entity of a
// talk.
func (s *Store) CurrentDecisions(ctx context.Context, talkID string) ([]Decision, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT d.seq, d.entity_id, d.status, d.replacement, d.note, d.decided_at, d.superseded
         FROM decisions d
         JOIN entities e ON e.id = d.entity_id
         WHERE e.talk_id = ? AND d.superseded = 0
         ORDER BY d.seq`,
		talkID,
	)
	if err != nil {
		return nil, fmt.Errorf("current decisions: %w", err)
	}
	defer rows.Close()
	return collectDecisions(rows)
}

// DecisionHistory returns every decision ever recorded for an entity, oldest
// first, superseded rows included.
func (s *Store) DecisionHistory(ctx context.Context, entityID string) ([]Decision, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT seq, entity_id, status, replacement, note, decided_at, superseded
         FROM decisions WHERE entity_id = ? ORDER BY seq`,
		entityID,
	)
	if err != nil {
		return nil, fmt.Errorf("decision history: %w", err)
	}
	defer rows.Close()
	return collectDecisions(rows)
}

func collectDecisions(rows *sql.Rows) ([]Decision, error) {
	var decisions []Decision
	for rows.Next() {
		var (
			decision    Decision
			status      string
			replacement sql.NullString
			note        sql.NullString
			decidedRaw  string
			superseded  int
		)
		if err := rows.Scan(&decision.Seq, &decision.EntityID, &status, &replacement, &note, &decidedRaw, &superseded); err != nil {
			return nil, err
		}
		decision.Status = DecisionStatus(status)
		decision.Replacement = replacement.String
		decision.Note = note.String
		decision.Superseded = superseded != 0
		if decided, err := parseTimeString(decidedRaw); err == nil {
			decision.DecidedAt = decided
		}
		decisions = append(decisions, decision)
	}
	return decisions, rows.Err()
}
