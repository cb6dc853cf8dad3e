package store

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

// AddDocument stores a transcript for a talk. Re-uploading an existing name
// supersedes all prior versions of that name; superseded documents keep their
// occurrences for audit but contribute nothing to review or sanitize.
func (s *Store) AddDocument(ctx context.Context, talkID, name, content string) (*Document, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, errors.New("document name is required")
	}
	if !utf8.ValidString(content) {
		return nil, errors.New("document content is not valid UTF-8")
	}

	sum := sha256.Sum256([]byte(content))
	hash := hex.EncodeToString(sum[:])
	now := timestamp()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var maxVersion sql.NullInt64
	err = tx.QueryRowContext(ctx,
		`SELECT MAX(version) FROM documents WHERE talk_id = ? AND name = ?`, talkID, name,
	).Scan(&maxVersion)
	if err != nil {
		return nil, fmt.Errorf("read document version: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE documents SET superseded = 1, updated_at = ? WHERE talk_id = ? AND name = ? AND superseded = 0`,
		now, talkID, name,
	); err != nil {
		return nil, fmt.Errorf("supersede prior versions: %w", err)
	}

	version := int(maxVersion.Int64) + 1
	res, err := tx.ExecContext(ctx,
		`INSERT INTO documents (talk_id, name, content, content_hash, version, superseded, status, created_at, updated_at)
         VALUES (?, ?, ?, ?, ?, 0, ?, ?, ?)`,
		talkID, name, content, hash, version, DocumentPending, now, now,
	)
	if err != nil {
		return nil, fmt.Errorf("insert document: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit document: %w", err)
	}
	return s.GetDocument(ctx, id)
}

// GetDocument fetches a document by identifier.
func (s *Store) GetDocument(ctx context.Context, id int64) (*Document, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+documentColumns+` FROM documents WHERE id = ?`, id)
	doc, err := scanDocument(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get document: %w", err)
	}
	return doc, nil
}

// ListDocuments returns a talk's non-superseded documents ordered by id.
func (s *Store) ListDocuments(ctx context.Context, talkID string) ([]*Document, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+documentColumns+` FROM documents WHERE talk_id = ? AND superseded = 0 ORDER BY id`,
		talkID,
	)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer rows.Close()
	return collectDocuments(rows)
}

// DocumentsByStatus returns non-superseded documents in the given status
// across all talks, oldest first. Used by the workflow manager poll loop.
func (s *Store) DocumentsByStatus(ctx context.Context, status DocumentStatus) ([]*Document, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+documentColumns+` FROM documents WHERE status = ? AND superseded = 0 ORDER BY created_at`,
		status,
	)
	if err != nil {
		return nil, fmt.Errorf("documents by status: %w", err)
	}
	defer rows.Close()
	return collectDocuments(rows)
}

// MarkDocumentScanning transitions a pending or failed document into scanning.
func (s *Store) MarkDocumentScanning(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE documents SET status = ?, error_message = NULL, updated_at = ?
         WHERE id = ? AND superseded = 0 AND status IN (?, ?)`,
		DocumentScanning, timestamp(), id, DocumentPending, DocumentFailed,
	)
	if err != nil {
		return fmt.Errorf("mark scanning: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("document %d not eligible for scanning: %w", id, ErrNotFound)
	}
	return nil
}

// MarkDocumentScanned records a completed scan.
func (s *Store) MarkDocumentScanned(ctx context.Context, id int64) error {
	now := time.Now().UTC()
	_, err := s.db.ExecContext(ctx,
		`UPDATE documents SET status = ?, error_message = NULL, scanned_at = ?, updated_at = ? WHERE id = ?`,
		DocumentScanned, now.Format(time.RFC3339Nano), timestamp(), id,
	)
	if err != nil {
		return fmt.Errorf("mark scanned: %w", err)
	}
	return nil
}

// MarkDocumentFailed records a scan failure. The document stays retryable and
// the talk's pending review list is untouched: a failed detection is never
// reported as "no findings".
func (s *Store) MarkDocumentFailed(ctx context.Context, id int64, message string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE documents SET status = ?, error_message = ?, updated_at = ? WHERE id = ?`,
		DocumentFailed, nullableString(message), timestamp(), id,
	)
	if err != nil {
		return fmt.Errorf("mark failed: %w", err)
	}
	return nil
}

// RetryFailedDocuments moves failed documents back to pending. With no ids,
// all failed documents are retried.
func (s *Store) RetryFailedDocuments(ctx context.Context, ids ...int64) (int64, error) {
	if len(ids) == 0 {
		res, err := s.db.ExecContext(ctx,
			`UPDATE documents SET status = ?, error_message = NULL, updated_at = ? WHERE status = ? AND superseded = 0`,
			DocumentPending, timestamp(), DocumentFailed,
		)
		if err != nil {
			return 0, fmt.Errorf("retry failed documents: %w", err)
		}
		return res.RowsAffected()
	}

	var total int64
	for _, id := range ids {
		res, err := s.db.ExecContext(ctx,
			`UPDATE documents SET status = ?, error_message = NULL, updated_at = ?
             WHERE id = ? AND status = ? AND superseded = 0`,
			DocumentPending, timestamp(), id, DocumentFailed,
		)
		if err != nil {
			return total, fmt.Errorf("retry document %d: %w", id, err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return total, err
		}
		total += affected
	}
	return total, nil
}

const documentColumns = "id, talk_id, name, content, content_hash, version, superseded, status, error_message, scanned_at, created_at, updated_at"

func collectDocuments(rows *sql.Rows) ([]*Document, error) {
	var docs []*Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

func scanDocument(scanner interface{ Scan(dest ...any) error }) (*Document, error) {
	var (
		id           int64
		talkID       string
		name         string
		content      string
		contentHash  string
		version      int
		superseded   int
		status       string
		errorMessage sql.NullString
		scannedRaw   sql.NullString
		createdRaw   string
		updatedRaw   string
	)
	if err := scanner.Scan(&id, &talkID, &name, &content, &contentHash, &version, &superseded,
		&status, &errorMessage, &scannedRaw, &createdRaw, &updatedRaw); err != nil {
		return nil, err
	}
	doc := &Document{
		ID:           id,
		TalkID:       talkID,
		Name:         name,
		Content:      content,
		ContentHash:  contentHash,
		Version:      version,
		Superseded:   superseded != 0,
		Status:       DocumentStatus(status),
		ErrorMessage: errorMessage.String,
	}
	if scannedRaw.Valid {
		if scanned, err := parseTimeString(scannedRaw.String); err == nil {
			doc.ScannedAt = &scanned
		}
	}
	if created, err := parseTimeString(createdRaw); err == nil {
		doc.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw); err == nil {
		doc.UpdatedAt = updated
	}
	return doc, nil
}
