package services

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dekyc/apiserver/internal/logger"
	"github.com/dekyc/apiserver/internal/mq"
	"github.com/dekyc/apiserver/internal/store"
	"github.com/dekyc/apiserver/types"
)

// MaxDocumentSize is the largest accepted upload.
const MaxDocumentSize = 5 << 20

// allowedContentTypes maps sniffed media types to the stored extension.
var allowedContentTypes = map[string]string{
	"application/pdf": ".pdf",
	"image/png":       ".png",
	"image/jpeg":      ".jpg",
}

// docTypeLabels maps the labels of the upload form onto document types.
var docTypeLabels = map[string]types.DocType{
	"citizenship":     types.DocCitizenship,
	"pan":             types.DocPANCard,
	"driving license": types.DocDrivingLicense,
	"certificate":     types.DocCertificate,
}

// DocumentRepository defines persistence operations for documents.
type DocumentRepository interface {
	Create(ctx context.Context, doc types.Document) (types.Document, error)
	Get(ctx context.Context, id string) (types.Document, error)
	ListByUser(ctx context.Context, userID string) ([]types.Document, error)
	UpdateStatus(ctx context.Context, id string, status types.DocumentStatus, at time.Time) (types.Document, error)
	Delete(ctx context.Context, id string) error
}

// ObjectStore is the object storage the documents live in.
// *storage.Storage implements it.
type ObjectStore interface {
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
}

// DocumentList is a user's documents with their review stats.
type DocumentList struct {
	Items []types.Document    `json:"items"`
	Stats types.DocumentStats `json:"stats"`
}

// DocumentService handles identity document uploads.
type DocumentService struct {
	repo      DocumentRepository
	objects   ObjectStore
	publisher EventPublisher
	log       *logger.Logger
	now       func() time.Time
}

func NewDocumentService(repo DocumentRepository, objects ObjectStore, publisher EventPublisher, log *logger.Logger) *DocumentService {
	if log == nil {
		log = logger.Noop()
	}
	return &DocumentService{repo: repo, objects: objects, publisher: publisher, log: log, now: time.Now}
}

// ParseDocType accepts a canonical document type or an upload form label
// such as "PAN" or "Driving License".
func ParseDocType(raw string) (types.DocType, error) {
	value := strings.ToLower(strings.TrimSpace(raw))
	if value == "" {
		return "", ErrDocTypeRequired
	}
	if docType, ok := docTypeLabels[value]; ok {
		return docType, nil
	}
	docType := types.DocType(value)
	if docType.Valid() || docType == types.DocCertificate {
		return docType, nil
	}
	return "", ErrUnsupportedDocType
}

// Upload validates and stores a document for userID. contentType is the
// client supplied type and is only used when sniffing is inconclusive.
func (s *DocumentService) Upload(ctx context.Context, userID, docType, filename, contentType string, data []byte) (types.Document, error) {
	kind, err := ParseDocType(docType)
	if err != nil {
		return types.Document{}, err
	}
	if len(data) == 0 {
		return types.Document{}, ErrEmptyDocument
	}
	if len(data) > MaxDocumentSize {
		return types.Document{}, ErrDocumentTooLarge
	}

	mediaType, ext, err := detectContentType(data, contentType)
	if err != nil {
		return types.Document{}, err
	}

	hash := sha256.Sum256(data)
	id := uuid.New()
	doc := types.Document{
		ID:          id.String(),
		UserID:      userID,
		Type:        kind,
		Filename:    cleanFilename(filename, ext),
		ContentType: mediaType,
		Size:        int64(len(data)),
		ObjectKey:   path.Join("documents", userID, id.String()+ext),
		SHA256:      hex.EncodeToString(hash[:]),
		Status:      types.DocumentPending,
		UploadedAt:  s.now().UTC(),
	}

	if err := s.objects.Put(ctx, doc.ObjectKey, bytes.NewReader(data), doc.Size, doc.ContentType); err != nil {
		return types.Document{}, fmt.Errorf("failed to store document: %w", err)
	}

	stored, err := s.repo.Create(ctx, doc)
	if err != nil {
		if delErr := s.objects.Delete(ctx, doc.ObjectKey); delErr != nil {
			s.log.Warn("failed to clean up orphaned object", "key", doc.ObjectKey, "error", delErr)
		}
		return types.Document{}, fmt.Errorf("failed to record document: %w", err)
	}
	doc = stored

	s.log.Info("document uploaded", "user_id", userID, "document_id", doc.ID, "type", doc.Type, "size", doc.Size)
	if s.publisher != nil {
		event := mq.DocumentUploaded{
			DocumentID: doc.ID,
			UserID:     doc.UserID,
			Type:       doc.Type,
			Filename:   doc.Filename,
			Size:       doc.Size,
			SHA256:     doc.SHA256,
			UploadedAt: doc.UploadedAt,
		}
		if _, err := s.publisher.PublishJSON(ctx, mq.ChannelDocumentUploaded, event); err != nil {
			s.log.Warn("failed to publish document upload", "document_id", doc.ID, "error", err)
		}
	}
	return doc, nil
}

// List returns the user's documents in upload order with their stats.
func (s *DocumentService) List(ctx context.Context, userID string) (DocumentList, error) {
	docs, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		return DocumentList{}, err
	}
	return DocumentList{Items: docs, Stats: Stats(docs)}, nil
}

// Stats counts documents by review state.
func Stats(docs []types.Document) types.DocumentStats {
	stats := types.DocumentStats{Total: len(docs)}
	for _, doc := range docs {
		switch doc.Status {
		case types.DocumentVerified:
			stats.Verified++
		case types.DocumentPending:
			stats.Pending++
		case types.DocumentRejected:
			stats.Rejected++
		}
	}
	return stats
}

// Get returns a document owned by userID. Documents of other users are
// reported as not found.
func (s *DocumentService) Get(ctx context.Context, userID, docID string) (types.Document, error) {
	if _, err := uuid.Parse(docID); err != nil {
		return types.Document{}, store.ErrNotFound
	}
	doc, err := s.repo.Get(ctx, docID)
	if err != nil {
		return types.Document{}, err
	}
	if doc.UserID != userID {
		return types.Document{}, store.ErrNotFound
	}
	return doc, nil
}

// SetStatus records an administrator's review of one of userID's documents.
// Verifying stamps VerifiedAt; any other state clears it.
func (s *DocumentService) SetStatus(ctx context.Context, userID, docID string, status types.DocumentStatus, actorID string) (types.Document, error) {
	if !status.Valid() {
		return types.Document{}, ErrInvalidDocumentStatus
	}
	doc, err := s.Get(ctx, userID, docID)
	if err != nil {
		return types.Document{}, err
	}

	reviewedAt := s.now().UTC()
	updated, err := s.repo.UpdateStatus(ctx, doc.ID, status, reviewedAt)
	if err != nil {
		return types.Document{}, err
	}

	s.log.Info("document reviewed",
		"user_id", userID,
		"document_id", doc.ID,
		"previous", doc.Status,
		"status", status,
		"actor_id", actorID,
	)
	if s.publisher != nil {
		event := mq.DocumentReviewed{
			DocumentID: doc.ID,
			UserID:     userID,
			Type:       doc.Type,
			Previous:   doc.Status,
			Status:     status,
			ReviewedBy: actorID,
			ReviewedAt: reviewedAt,
		}
		if _, err := s.publisher.PublishJSON(ctx, mq.ChannelDocumentReviewed, event); err != nil {
			s.log.Warn("failed to publish document review", "document_id", doc.ID, "error", err)
		}
	}
	return updated, nil
}

// Open returns the document and a reader over its contents. The caller
// closes the reader.
func (s *DocumentService) Open(ctx context.Context, userID, docID string) (types.Document, io.ReadCloser, error) {
	doc, err := s.Get(ctx, userID, docID)
	if err != nil {
		return types.Document{}, nil, err
	}
	rc, err := s.objects.Get(ctx, doc.ObjectKey)
	if err != nil {
		return types.Document{}, nil, fmt.Errorf("failed to open document: %w", err)
	}
	return doc, rc, nil
}

// Remove deletes the document record and then its stored object. An object
// left behind by a failed delete is logged and never listed again.
func (s *DocumentService) Remove(ctx context.Context, userID, docID string) error {
	doc, err := s.Get(ctx, userID, docID)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, doc.ID); err != nil && !errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("failed to delete document: %w", err)
	}
	if err := s.objects.Delete(ctx, doc.ObjectKey); err != nil {
		s.log.Warn("failed to delete document object", "key", doc.ObjectKey, "error", err)
	}
	return nil
}

func detectContentType(data []byte, declared string) (string, string, error) {
	sniffed := http.DetectContentType(data)
	if i := strings.IndexByte(sniffed, ';'); i >= 0 {
		sniffed = sniffed[:i]
	}
	if ext, ok := allowedContentTypes[sniffed]; ok {
		return sniffed, ext, nil
	}
	// Sniffing falls back to octet-stream for some valid PDFs.
	if sniffed == "application/octet-stream" {
		declared = strings.ToLower(strings.TrimSpace(declared))
		if ext, ok := allowedContentTypes[declared]; ok {
			return declared, ext, nil
		}
	}
	return "", "", ErrUnsupportedContentType
}

func cleanFilename(name, ext string) string {
	name = path.Base(strings.ReplaceAll(strings.TrimSpace(name), `\`, "/"))
	if name == "." || name == "/" || name == "" {
		return "document" + ext
	}
	return name
}
