package handlers

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/dekyc/apiserver/internal/logger"
	"github.com/dekyc/apiserver/internal/services"
	"github.com/dekyc/apiserver/internal/store"
)

const (
	maxMultipartMemory = 8 << 20
	formFieldDocType   = "doc_type"
	formFieldFile      = "file"
)

// DocumentHandler serves the signed-in user's document area.
type DocumentHandler struct {
	documentService *services.DocumentService
	log             *logger.Logger
}

func NewDocumentHandler(documentService *services.DocumentService, log *logger.Logger) *DocumentHandler {
	if log == nil {
		log = logger.Noop()
	}
	return &DocumentHandler{documentService: documentService, log: log}
}

// DocumentRouter registers document routes. Callers mount it behind RequireAuth.
func DocumentRouter(r chi.Router, documentService *services.DocumentService, log *logger.Logger) {
	handler := NewDocumentHandler(documentService, log)

	r.Get("/", handler.ListDocuments)
	r.Post("/", handler.UploadDocument)
	r.Route("/{documentID}", func(r chi.Router) {
		r.Get("/", handler.DownloadDocument)
		r.Delete("/", handler.DeleteDocument)
	})
}

func (h *DocumentHandler) ListDocuments(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	list, err := h.documentService.List(r.Context(), userID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list documents")
		return
	}
	writeJSON(w, http.StatusOK, list)
}

// UploadDocument accepts a multipart form with doc_type and file fields.
func (h *DocumentHandler) UploadDocument(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, services.MaxDocumentSize+maxMultipartMemory)
	if err := r.ParseMultipartForm(maxMultipartMemory); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeError(w, http.StatusRequestEntityTooLarge, services.ErrDocumentTooLarge.Error())
			return
		}
		writeError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}
	defer func() {
		_ = r.MultipartForm.RemoveAll()
	}()

	file, header, err := r.FormFile(formFieldFile)
	if err != nil {
		writeError(w, http.StatusBadRequest, "file is required")
		return
	}
	defer file.Close()

	data, err := readFileLimited(file, services.MaxDocumentSize)
	if err != nil {
		if errors.Is(err, errTooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, services.ErrDocumentTooLarge.Error())
			return
		}
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	doc, err := h.documentService.Upload(
		r.Context(),
		userID,
		r.FormValue(formFieldDocType),
		header.Filename,
		header.Header.Get("Content-Type"),
		data,
	)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrDocTypeRequired),
			errors.Is(err, services.ErrUnsupportedDocType),
			errors.Is(err, services.ErrEmptyDocument):
			writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, services.ErrUnsupportedContentType):
			writeError(w, http.StatusUnsupportedMediaType, err.Error())
		case errors.Is(err, services.ErrDocumentTooLarge):
			writeError(w, http.StatusRequestEntityTooLarge, err.Error())
		default:
			h.log.Error("document upload failed", "user_id", userID, "error", err)
			writeError(w, http.StatusInternalServerError, "failed to upload document")
		}
		return
	}

	writeJSON(w, http.StatusCreated, doc)
}

func (h *DocumentHandler) DownloadDocument(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	doc, body, err := h.documentService.Open(r.Context(), userID, chi.URLParam(r, "documentID"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "document not found")
			return
		}
		h.log.Error("document download failed", "user_id", userID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to open document")
		return
	}
	defer body.Close()

	w.Header().Set("Content-Type", doc.ContentType)
	w.Header().Set("Content-Length", strconv.FormatInt(doc.Size, 10))
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": doc.Filename}))
	w.Header().Set("ETag", fmt.Sprintf("%q", doc.SHA256))
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, body); err != nil {
		h.log.Warn("document stream interrupted", "document_id", doc.ID, "error", err)
	}
}

func (h *DocumentHandler) DeleteDocument(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	if err := h.documentService.Remove(r.Context(), userID, chi.URLParam(r, "documentID")); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "document not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to delete document")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
