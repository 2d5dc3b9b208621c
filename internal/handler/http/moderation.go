package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sylwiakmieciak/madebyu-sub000/pkg/httputil"
	"github.com/sylwiakmieciak/madebyu-sub000/pkg/pagination"

	"github.com/sylwiakmieciak/madebyu-sub000/internal/service"
)

// ModerationHandler serves the product moderation queue.
type ModerationHandler struct {
	service *service.ModerationService
	logger  *slog.Logger
}

// NewModerationHandler creates a new moderation HTTP handler.
func NewModerationHandler(svc *service.ModerationService, logger *slog.Logger) *ModerationHandler {
	return &ModerationHandler{service: svc, logger: logger}
}

// RejectProductRequest is the JSON request body for rejecting a product.
type RejectProductRequest struct {
	Reason string `json:"reason" validate:"required,notblank,max=1000"`
}

// ListProducts handles GET /api/v1/moderation/products
func (h *ModerationHandler) ListProducts(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	page := pagination.FromRequest(r)

	products, total, err := h.service.ListProducts(r.Context(), actor, r.URL.Query().Get("status"), page)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, httputil.NewPaginatedResponse(products, total, page.Page, page.PerPage))
}

// Stats handles GET /api/v1/moderation/stats
func (h *ModerationHandler) Stats(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	stats, err := h.service.Stats(r.Context(), actor)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: stats})
}

// ApproveProduct handles PUT /api/v1/moderation/products/{id}/approve
func (h *ModerationHandler) ApproveProduct(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	id, ok := httputil.ParseUUID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}

	product, err := h.service.Approve(r.Context(), actor, id)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: product})
}

// RejectProduct handles PUT /api/v1/moderation/products/{id}/reject
func (h *ModerationHandler) RejectProduct(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	id, ok := httputil.ParseUUID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}

	var req RejectProductRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	product, err := h.service.Reject(r.Context(), actor, id, req.Reason)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: product})
}
