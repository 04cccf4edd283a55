package store

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dekyc/apiserver/types"
)

var documentRowColumns = []string{"id", "user_id", "type", "filename", "content_type", "size", "object_key", "sha256", "status", "uploaded_at", "verified_at"}

func TestDocumentRepository_ListByUser(t *testing.T) {
	db, mock := newMockDB(t)
	uploaded := time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)
	verified := time.Date(2024, 1, 16, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery(regexp.QuoteMeta("FROM documents WHERE user_id = $1")).
		WithArgs("U-1001").
		WillReturnRows(sqlmock.NewRows(documentRowColumns).
			AddRow("d1", "U-1001", "citizenship", "passport.pdf", "application/pdf", int64(10), "documents/U-1001/d1.pdf", "abc", "verified", uploaded, verified).
			AddRow("d2", "U-1001", "pan_card", "pan.png", "image/png", int64(20), "documents/U-1001/d2.png", "def", "pending", uploaded, nil))

	docs, err := NewDocumentRepository(db).ListByUser(context.Background(), "U-1001")
	require.NoError(t, err)
	require.Len(t, docs, 2)
	require.NotNil(t, docs[0].VerifiedAt)
	assert.Equal(t, verified, *docs[0].VerifiedAt)
	assert.Nil(t, docs[1].VerifiedAt)
	assert.Equal(t, types.DocumentPending, docs[1].Status)
}

func TestDocumentRepository_Create(t *testing.T) {
	db, mock := newMockDB(t)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO documents")).
		WithArgs("d1", "U-1001", "citizenship", "passport.pdf", "application/pdf", int64(10), "key", "abc", "pending", sqlmock.AnyArg(), nil).
		WillReturnResult(sqlmock.NewResult(0, 1))

	doc, err := NewDocumentRepository(db).Create(context.Background(), types.Document{
		ID:          "d1",
		UserID:      "U-1001",
		Type:        types.DocCitizenship,
		Filename:    "passport.pdf",
		ContentType: "application/pdf",
		Size:        10,
		ObjectKey:   "key",
		SHA256:      "abc",
		Status:      types.DocumentPending,
	})
	require.NoError(t, err)
	assert.False(t, doc.UploadedAt.IsZero())
}

func TestDocumentRepository_UpdateStatus(t *testing.T) {
	db, mock := newMockDB(t)
	uploaded := time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)
	at := time.Date(2024, 1, 16, 9, 30, 0, 0, time.UTC)

	mock.ExpectQuery(regexp.QuoteMeta("UPDATE documents")).
		WithArgs("verified", at, "d1").
		WillReturnRows(sqlmock.NewRows(documentRowColumns).
			AddRow("d1", "U-1001", "citizenship", "passport.pdf", "application/pdf", int64(10), "key", "abc", "verified", uploaded, at))

	doc, err := NewDocumentRepository(db).UpdateStatus(context.Background(), "d1", types.DocumentVerified, at)
	require.NoError(t, err)
	assert.Equal(t, types.DocumentVerified, doc.Status)
	require.NotNil(t, doc.VerifiedAt)
	assert.Equal(t, at, *doc.VerifiedAt)
}

func TestDocumentRepository_UpdateStatus_NotFound(t *testing.T) {
	db, mock := newMockDB(t)

	mock.ExpectQuery(regexp.QuoteMeta("UPDATE documents")).
		WillReturnRows(sqlmock.NewRows(documentRowColumns))

	_, err := NewDocumentRepository(db).UpdateStatus(context.Background(), "missing", types.DocumentRejected, time.Now())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDocumentRepository_Delete_NotFound(t *testing.T) {
	db, mock := newMockDB(t)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM documents WHERE id = $1")).
		WithArgs("missing").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := NewDocumentRepository(db).Delete(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}
