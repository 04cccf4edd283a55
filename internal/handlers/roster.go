package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/dekyc/apiserver/internal/roster"
	"github.com/dekyc/apiserver/internal/services"
	"github.com/dekyc/apiserver/internal/store"
	"github.com/dekyc/apiserver/types"
)

// RosterHandler serves the administrator roster.
type RosterHandler struct {
	rosterService   *services.RosterService
	documentService *services.DocumentService
}

func NewRosterHandler(rosterService *services.RosterService, documentService *services.DocumentService) *RosterHandler {
	return &RosterHandler{rosterService: rosterService, documentService: documentService}
}

// RosterRouter registers admin roster routes. Callers mount it behind
// RequireAuth and RequireAdmin.
func RosterRouter(r chi.Router, rosterService *services.RosterService, documentService *services.DocumentService) {
	handler := NewRosterHandler(rosterService, documentService)

	r.Get("/", handler.ListUsers)
	r.Route("/{userID}", func(r chi.Router) {
		r.Get("/", handler.GetUser)
		r.Put("/status", handler.UpdateStatus)
		r.Put("/documents/{documentID}/status", handler.UpdateDocumentStatus)
	})
}

type RosterListResponse struct {
	Items []types.User       `json:"items"`
	Tally roster.StatusTally `json:"tally"`
	Page  int                `json:"page"`
	Limit int                `json:"limit"`
	Total int                `json:"total"`
}

type UserDetailsResponse struct {
	User      types.User            `json:"user"`
	Checklist []types.ChecklistItem `json:"checklist"`
	Documents []types.Document      `json:"documents"`
	Stats     types.DocumentStats   `json:"stats"`
}

type StatusUpdateRequest struct {
	Status types.Status `json:"status"`
}

type DocumentStatusRequest struct {
	Status types.DocumentStatus `json:"status"`
}

// ListUsers returns a page of the filtered roster and the tally of the
// whole roster.
func (h *RosterHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	page, limit, offset, err := parsePagination(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	query := r.URL.Query()
	filter := roster.Filter{
		Query:   query.Get("q"),
		Status:  strings.ToLower(strings.TrimSpace(query.Get("status"))),
		DocType: strings.ToLower(strings.TrimSpace(query.Get("doc_type"))),
	}
	if filter.Status != "" && filter.Status != roster.All && !types.Status(filter.Status).Valid() {
		writeError(w, http.StatusBadRequest, "invalid status filter")
		return
	}
	if filter.DocType != "" && filter.DocType != roster.All && !types.DocType(filter.DocType).Valid() {
		writeError(w, http.StatusBadRequest, "invalid doc_type filter")
		return
	}

	result, err := h.rosterService.List(r.Context(), filter)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list users")
		return
	}

	writeJSON(w, http.StatusOK, RosterListResponse{
		Items: paginate(result.Items, offset, limit),
		Tally: result.Tally,
		Page:  page,
		Limit: limit,
		Total: len(result.Items),
	})
}

func (h *RosterHandler) GetUser(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	details, err := h.rosterService.Details(r.Context(), userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "user not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to load user")
		return
	}

	docs, err := h.documentService.List(r.Context(), userID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load documents")
		return
	}

	writeJSON(w, http.StatusOK, UserDetailsResponse{
		User:      details.User,
		Checklist: details.Checklist,
		Documents: docs.Items,
		Stats:     docs.Stats,
	})
}

// UpdateStatus approves or rejects a user.
func (h *RosterHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	var req StatusUpdateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}

	actorID, _ := userIDFromContext(r.Context())
	user, err := h.rosterService.SetStatus(r.Context(), chi.URLParam(r, "userID"), req.Status, actorID)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrInvalidStatus):
			writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, store.ErrNotFound):
			writeError(w, http.StatusNotFound, "user not found")
		default:
			writeError(w, http.StatusInternalServerError, "failed to update status")
		}
		return
	}

	writeJSON(w, http.StatusOK, user)
}

// UpdateDocumentStatus verifies or rejects one of the user's documents.
func (h *RosterHandler) UpdateDocumentStatus(w http.ResponseWriter, r *http.Request) {
	var req DocumentStatusRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}

	actorID, _ := userIDFromContext(r.Context())
	doc, err := h.documentService.SetStatus(
		r.Context(),
		chi.URLParam(r, "userID"),
		chi.URLParam(r, "documentID"),
		req.Status,
		actorID,
	)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrInvalidDocumentStatus):
			writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, store.ErrNotFound):
			writeError(w, http.StatusNotFound, "document not found")
		default:
			writeError(w, http.StatusInternalServerError, "failed to update document")
		}
		return
	}

	writeJSON(w, http.StatusOK, doc)
}
