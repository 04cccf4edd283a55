package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/dekyc/apiserver/types"
)

const documentColumns = `id, user_id, type, filename, content_type, size, object_key, sha256, status, uploaded_at, verified_at`

// DocumentRepository handles persistence for uploaded documents.
type DocumentRepository struct {
	db *sql.DB
}

func NewDocumentRepository(db *sql.DB) *DocumentRepository {
	return &DocumentRepository{db: db}
}

func (r *DocumentRepository) Create(ctx context.Context, doc types.Document) (types.Document, error) {
	if doc.UploadedAt.IsZero() {
		doc.UploadedAt = time.Now()
	}

	const query = `
		INSERT INTO documents (` + documentColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`
	_, err := r.db.ExecContext(
		ctx,
		query,
		doc.ID,
		doc.UserID,
		doc.Type,
		doc.Filename,
		doc.ContentType,
		doc.Size,
		doc.ObjectKey,
		doc.SHA256,
		doc.Status,
		doc.UploadedAt,
		doc.VerifiedAt,
	)
	if err != nil {
		return types.Document{}, mapError(err)
	}
	return doc, nil
}

func (r *DocumentRepository) Get(ctx context.Context, id string) (types.Document, error) {
	const query = `SELECT ` + documentColumns + ` FROM documents WHERE id = $1`
	doc, err := scanDocument(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Document{}, ErrNotFound
		}
		return types.Document{}, err
	}
	return doc, nil
}

// ListByUser returns a user's documents, oldest first.
func (r *DocumentRepository) ListByUser(ctx context.Context, userID string) ([]types.Document, error) {
	const query = `SELECT ` + documentColumns + ` FROM documents WHERE user_id = $1 ORDER BY uploaded_at, id`
	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	docs := make([]types.Document, 0)
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return docs, nil
}

// UpdateStatus sets the review state of a document. verified_at is stamped
// with at when the document becomes verified and cleared otherwise.
func (r *DocumentRepository) UpdateStatus(ctx context.Context, id string, status types.DocumentStatus, at time.Time) (types.Document, error) {
	const query = `
		UPDATE documents
		SET status = $1,
			verified_at = CASE WHEN $1 = 'verified' THEN $2::timestamptz ELSE NULL END
		WHERE id = $3
		RETURNING ` + documentColumns
	doc, err := scanDocument(r.db.QueryRowContext(ctx, query, status, at, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Document{}, ErrNotFound
		}
		return types.Document{}, mapError(err)
	}
	return doc, nil
}

func (r *DocumentRepository) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM documents WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return err
	}
	return expectAffected(result)
}

func scanDocument(row rowScanner) (types.Document, error) {
	var doc types.Document
	var verifiedAt sql.NullTime
	err := row.Scan(
		&doc.ID,
		&doc.UserID,
		&doc.Type,
		&doc.Filename,
		&doc.ContentType,
		&doc.Size,
		&doc.ObjectKey,
		&doc.SHA256,
		&doc.Status,
		&doc.UploadedAt,
		&verifiedAt,
	)
	if err != nil {
		return types.Document{}, err
	}
	if verifiedAt.Valid {
		doc.VerifiedAt = &verifiedAt.Time
	}
	return doc, nil
}
