package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"redact/internal/detect"
)

// ErrOccurrenceTaken is returned when a span is already claimed by a different
// entity. This is the storage-level backstop for the one-entity-per-occurrence
// partition invariant.
var ErrOccurrenceTaken = errors.New("occurrence already belongs to another entity")

// EntitiesForTalk returns a talk's entities with their occurrences in
// non-superseded documents. Entities whose only occurrences live in superseded
// documents are returned with an empty occurrence list: their identity and
// decisions survive for audit, but they contribute nothing to review or
// sanitize.
func (s *Store) EntitiesForTalk(ctx context.Context, talkID string) ([]*Entity, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, talk_id, category, canonical_text, pinned, created_at
         FROM entities WHERE talk_id = ? ORDER BY created_at, id`,
		talkID,
	)
	if err != nil {
		return nil, fmt.Errorf("list entities: %w", err)
	}
	defer rows.Close()

	var entities []*Entity
	index := make(map[string]*Entity)
	for rows.Next() {
		var (
			id, talk, category, canonical string
			pinned                        int
			createdRaw                    string
		)
		if err := rows.Scan(&id, &talk, &category, &canonical, &pinned, &createdRaw); err != nil {
			return nil, err
		}
		entity := &Entity{
			ID:            id,
			TalkID:        talk,
			Category:      detect.Category(category),
			CanonicalText: canonical,
			Pinned:        pinned != 0,
		}
		if created, err := parseTimeString(createdRaw); err == nil {
			entity.CreatedAt = created
		}
		entities = append(entities, entity)
		index[id] = entity
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	occRows, err := s.db.QueryContext(ctx,
		`SELECT o.id, o.entity_id, o.document_id, o.start_offset, o.end_offset, o.text, o.confidence
         FROM occurrences o
         JOIN entities e ON e.id = o.entity_id
         JOIN documents d ON d.id = o.document_id
         WHERE e.talk_id = ? AND d.superseded = 0
         ORDER BY o.document_id, o.start_offset`,
		talkID,
	)
	if err != nil {
		return nil, fmt.Errorf("list occurrences: %w", err)
	}
	defer occRows.Close()

	for occRows.Next() {
		var occ Occurrence
		if err := occRows.Scan(&occ.ID, &occ.EntityID, &occ.DocumentID, &occ.Start, &occ.End, &occ.Text, &occ.Confidence); err != nil {
			return nil, err
		}
		if entity, ok := index[occ.EntityID]; ok {
			entity.Occurrences = append(entity.Occurrences, occ)
		}
	}
	return entities, occRows.Err()
}

// GetEntity fetches one entity with its live occurrences.
func (s *Store) GetEntity(ctx context.Context, entityID string) (*Entity, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, talk_id, category, canonical_text, pinned, created_at FROM entities WHERE id = ?`,
		entityID,
	)
	var (
		id, talkID, category, canonical string
		pinned                          int
		createdRaw                      string
	)
	err := row.Scan(&id, &talkID, &category, &canonical, &pinned, &createdRaw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("entity %s: %w", entityID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get entity: %w", err)
	}
	entity := &Entity{
		ID:            id,
		TalkID:        talkID,
		Category:      detect.Category(category),
		CanonicalText: canonical,
		Pinned:        pinned != 0,
	}
	if created, err := parseTimeString(createdRaw); err == nil {
		entity.CreatedAt = created
	}

	occRows, err := s.db.QueryContext(ctx,
		`SELECT o.id, o.entity_id, o.document_id, o.start_offset, o.end_offset, o.text, o.confidence
         FROM occurrences o
         JOIN documents d ON d.id = o.document_id
         WHERE o.entity_id = ? AND d.superseded = 0
         ORDER BY o.document_id, o.start_offset`,
		entityID,
	)
	if err != nil {
		return nil, fmt.Errorf("entity occurrences: %w", err)
	}
	defer occRows.Close()
	for occRows.Next() {
		var occ Occurrence
		if err := occRows.Scan(&occ.ID, &occ.EntityID, &occ.DocumentID, &occ.Start, &occ.End, &occ.Text, &occ.Confidence); err != nil {
			return nil, err
		}
		entity.Occurrences = append(entity.Occurrences, occ)
	}
	return entity, occRows.Err()
}

// CreateEntity inserts a new normalized entity.
func (s *Store) CreateEntity(ctx context.Context, entity *Entity) error {
	if entity == nil {
		return errors.New("entity is nil")
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO entities (id, talk_id, category, canonical_text, pinned, created_at)
         VALUES (?, ?, ?, ?, ?, ?)`,
		entity.ID, entity.TalkID, string(entity.Category), entity.CanonicalText,
		boolToInt(entity.Pinned), timestamp(),
	)
	if err != nil {
		return fmt.Errorf("insert entity: %w", err)
	}
	return nil
}

// AppendOccurrence attaches one more textual mention to an entity. Appending
// the identical span to the same entity is a no-op (rescan idempotence);
// appending a span already claimed by a different entity fails with
// ErrOccurrenceTaken.
func (s *Store) AppendOccurrence(ctx context.Context, occ Occurrence) error {
	var existingEntity string
	err := s.db.QueryRowContext(ctx,
		`SELECT entity_id FROM occurrences WHERE document_id = ? AND start_offset = ? AND end_offset = ?`,
		occ.DocumentID, occ.Start, occ.End,
	).Scan(&existingEntity)
	switch {
	case err == nil:
		if existingEntity == occ.EntityID {
			return nil
		}
		return fmt.Errorf("document %d span [%d,%d) held by entity %s: %w",
			occ.DocumentID, occ.Start, occ.End, existingEntity, ErrOccurrenceTaken)
	case errors.Is(err, sql.ErrNoRows):
		// New span, insert below.
	default:
		return fmt.Errorf("check occurrence: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO occurrences (entity_id, document_id, start_offset, end_offset, text, confidence)
         VALUES (?, ?, ?, ?, ?, ?)`,
		occ.EntityID, occ.DocumentID, occ.Start, occ.End, occ.Text, occ.Confidence,
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint") {
			return fmt.Errorf("document %d span [%d,%d): %w", occ.DocumentID, occ.Start, occ.End, ErrOccurrenceTaken)
		}
		return fmt.Errorf("insert occurrence: %w", err)
	}
	return nil
}

// OccurrencesForDocument returns a document's occurrences ordered by offset.
func (s *Store) OccurrencesForDocument(ctx context.Context, documentID int64) ([]Occurrence, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, entity_id, document_id, start_offset, end_offset, text, confidence
         FROM occurrences WHERE document_id = ? ORDER BY start_offset`,
		documentID,
	)
	if err != nil {
		return nil, fmt.Errorf("document occurrences: %w", err)
	}
	defer rows.Close()

	var occurrences []Occurrence
	for rows.Next() {
		var occ Occurrence
		if err := rows.Scan(&occ.ID, &occ.EntityID, &occ.DocumentID, &occ.Start, &occ.End, &occ.Text, &occ.Confidence); err != nil {
			return nil, err
		}
		occurrences = append(occurrences, occ)
	}
	return occurrences, rows.Err()
}

// PinEntity marks an entity as confirmed by a human decision. Pinned entities
// keep their identity across rescans.
func (s *Store) PinEntity(ctx context.Context, entityID string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE entities SET pinned = 1 WHERE id = ?`, entityID)
	if err != nil {
		return fmt.Errorf("pin entity: %w", err)
	}
	return nil
}
