package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sylwiakmieciak/madebyu-sub000/pkg/httputil"
	"github.com/sylwiakmieciak/madebyu-sub000/pkg/pagination"

	"github.com/sylwiakmieciak/madebyu-sub000/internal/service"
)

// CommentHandler handles product comment endpoints.
type CommentHandler struct {
	service *service.CommentService
	logger  *slog.Logger
}

// NewCommentHandler creates a new comment HTTP handler.
func NewCommentHandler(svc *service.CommentService, logger *slog.Logger) *CommentHandler {
	return &CommentHandler{service: svc, logger: logger}
}

// SubmitCommentRequest is the JSON request body for commenting on a product.
type SubmitCommentRequest struct {
	Comment string `json:"comment" validate:"required,notblank"`
}

// ListForProduct handles GET /api/v1/comments/product/{id}
func (h *CommentHandler) ListForProduct(w http.ResponseWriter, r *http.Request) {
	productID, ok := httputil.ParseUUID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}
	viewerID := ""
	if actor, ok := actorFromContext(r.Context()); ok {
		viewerID = actor.UserID
	}
	page := pagination.FromRequest(r)

	comments, total, err := h.service.ListForProduct(r.Context(), productID, viewerID, page)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, httputil.NewPaginatedResponse(comments, total, page.Page, page.PerPage))
}

// Submit handles POST /api/v1/comments/product/{id}
func (h *CommentHandler) Submit(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	productID, ok := httputil.ParseUUID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}

	var req SubmitCommentRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	comment, err := h.service.Submit(r.Context(), actor, productID, req.Comment)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, httputil.Response{Data: comment})
}

// ListPending handles GET /api/v1/comments/admin/pending
func (h *CommentHandler) ListPending(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	page := pagination.FromRequest(r)

	comments, total, err := h.service.ListPending(r.Context(), actor, page)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, httputil.NewPaginatedResponse(comments, total, page.Page, page.PerPage))
}

// Approve handles PUT /api/v1/comments/admin/{id}/approve
func (h *CommentHandler) Approve(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	id, ok := httputil.ParseUUID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}

	comment, err := h.service.Approve(r.Context(), actor, id)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: comment})
}

// Reject handles DELETE /api/v1/comments/admin/{id}/reject
func (h *CommentHandler) Reject(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	id, ok := httputil.ParseUUID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}

	if err := h.service.Reject(r.Context(), actor, id); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
