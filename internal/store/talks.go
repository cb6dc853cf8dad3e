package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Slugify converts a talk title into a unique-safe, filesystem-safe slug.
func Slugify(title string) string {
	var b strings.Builder
	lastDash := true
	for _, r := range strings.ToLower(strings.TrimSpace(title)) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastDash = false
		case r == 'ä':
			b.WriteString("ae")
			lastDash = false
		case r == 'ö':
			b.WriteString("oe")
			lastDash = false
		case r == 'ü':
			b.WriteString("ue")
			lastDash = false
		case r == 'ß':
			b.WriteString("ss")
			lastDash = false
		default:
			if !lastDash {
				b.WriteByte('-')
				lastDash = true
			}
		}
	}
	slug := strings.Trim(b.String(), "-")
	if slug == "" {
		slug = "talk"
	}
	return slug
}

// CreateTalk inserts a new talk. The slug is derived from the title; a numeric
// suffix is appended when the slug is already taken.
func (s *Store) CreateTalk(ctx context.Context, title, speaker, languageTag string) (*Talk, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, errors.New("talk title is required")
	}
	if strings.TrimSpace(languageTag) == "" {
		languageTag = "de"
	}

	base := Slugify(title)
	slug := base
	for i := 2; ; i++ {
		existing, err := s.GetTalkBySlug(ctx, slug)
		if err != nil {
			return nil, err
		}
		if existing == nil {
			break
		}
		slug = fmt.Sprintf("%s-%d", base, i)
	}

	id := uuid.NewString()
	now := timestamp()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO talks (id, slug, title, speaker, language, status, created_at, updated_at)
         VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		id, slug, title, nullableString(strings.TrimSpace(speaker)), languageTag, TalkActive, now, now,
	)
	if err != nil {
		return nil, fmt.Errorf("insert talk: %w", err)
	}
	return s.GetTalk(ctx, id)
}

// GetTalk fetches a talk by identifier.
func (s *Store) GetTalk(ctx context.Context, id string) (*Talk, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+talkColumns+` FROM talks WHERE id = ?`, id)
	talk, err := scanTalk(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get talk: %w", err)
	}
	return talk, nil
}

// GetTalkBySlug fetches a talk by slug.
func (s *Store) GetTalkBySlug(ctx context.Context, slug string) (*Talk, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+talkColumns+` FROM talks WHERE slug = ?`, slug)
	talk, err := scanTalk(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get talk by slug: %w", err)
	}
	return talk, nil
}

// ResolveTalk accepts either a talk id or a slug.
func (s *Store) ResolveTalk(ctx context.Context, ref string) (*Talk, error) {
	talk, err := s.GetTalk(ctx, ref)
	if err != nil {
		return nil, err
	}
	if talk != nil {
		return talk, nil
	}
	talk, err = s.GetTalkBySlug(ctx, ref)
	if err != nil {
		return nil, err
	}
	if talk == nil {
		return nil, fmt.Errorf("talk %s: %w", ref, ErrNotFound)
	}
	return talk, nil
}

// ListTalks returns all talks ordered by creation time.
func (s *Store) ListTalks(ctx context.Context) ([]*Talk, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+talkColumns+` FROM talks ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("list talks: %w", err)
	}
	defer rows.Close()

	var talks []*Talk
	for rows.Next() {
		talk, err := scanTalk(rows)
		if err != nil {
			return nil, err
		}
		talks = append(talks, talk)
	}
	return talks, rows.Err()
}

// SetTalkStatus updates the lifecycle status of a talk.
func (s *Store) SetTalkStatus(ctx context.Context, id string, status TalkStatus) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE talks SET status = ?, updated_at = ? WHERE id = ?`,
		status, timestamp(), id,
	)
	if err != nil {
		return fmt.Errorf("set talk status: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("talk %s: %w", id, ErrNotFound)
	}
	return nil
}

// ReviewProgress aggregates document and decision counts for a talk.
func (s *Store) ReviewProgress(ctx context.Context, talkID string) (ReviewProgress, error) {
	var progress ReviewProgress
	rows, err := s.db.QueryContext(ctx,
		`SELECT status, COUNT(1) FROM documents WHERE talk_id = ? AND superseded = 0 GROUP BY status`,
		talkID,
	)
	if err != nil {
		return progress, fmt.Errorf("document counts: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return progress, err
		}
		progress.Documents += count
		switch DocumentStatus(status) {
		case DocumentScanned:
			progress.ScannedDocuments += count
		case DocumentFailed:
			progress.FailedDocuments += count
		}
	}
	if err := rows.Err(); err != nil {
		return progress, err
	}

	entities, err := s.EntitiesForTalk(ctx, talkID)
	if err != nil {
		return progress, err
	}
	decisions, err := s.CurrentDecisions(ctx, talkID)
	if err != nil {
		return progress, err
	}
	decided := make(map[string]struct{}, len(decisions))
	for _, d := range decisions {
		decided[d.EntityID] = struct{}{}
	}
	for _, entity := range entities {
		progress.Entities++
		if _, ok := decided[entity.ID]; ok {
			progress.Decided++
		} else if hasLiveOccurrence(entity) {
			progress.Pending++
		}
	}
	return progress, nil
}

func hasLiveOccurrence(entity *Entity) bool {
	return len(entity.Occurrences) > 0
}

const talkColumns = "id, slug, title, speaker, language, status, created_at, updated_at"

func scanTalk(scanner interface{ Scan(dest ...any) error }) (*Talk, error) {
	var (
		id, slug, title string
		speaker         sql.NullString
		languageTag     string
		status          string
		createdRaw      string
		updatedRaw      string
	)
	if err := scanner.Scan(&id, &slug, &title, &speaker, &languageTag, &status, &createdRaw, &updatedRaw); err != nil {
		return nil, err
	}
	talk := &Talk{
		ID:       id,
		Slug:     slug,
		Title:    title,
		Speaker:  speaker.String,
		Language: languageTag,
		Status:   TalkStatus(status),
	}
	if created, err := parseTimeString(createdRaw); err == nil {
		talk.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw); err == nil {
		talk.UpdatedAt = updated
	}
	return talk, nil
}
