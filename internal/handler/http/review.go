package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sylwiakmieciak/madebyu-sub000/pkg/httputil"
	"github.com/sylwiakmieciak/madebyu-sub000/pkg/pagination"

	"github.com/sylwiakmieciak/madebyu-sub000/internal/service"
)

// ReviewHandler serves the public seller rating endpoints.
type ReviewHandler struct {
	service *service.ReviewService
	logger  *slog.Logger
}

// NewReviewHandler creates a new review HTTP handler.
func NewReviewHandler(svc *service.ReviewService, logger *slog.Logger) *ReviewHandler {
	return &ReviewHandler{service: svc, logger: logger}
}

// SellerStats handles GET /api/v1/reviews/seller/{userId}
func (h *ReviewHandler) SellerStats(w http.ResponseWriter, r *http.Request) {
	sellerID, ok := httputil.ParseUUID(w, chi.URLParam(r, "userId"))
	if !ok {
		return
	}
	stats, err := h.service.SellerStats(r.Context(), sellerID)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: stats})
}

// ListBySeller handles GET /api/v1/reviews/seller/{userId}/list
func (h *ReviewHandler) ListBySeller(w http.ResponseWriter, r *http.Request) {
	sellerID, ok := httputil.ParseUUID(w, chi.URLParam(r, "userId"))
	if !ok {
		return
	}
	page := pagination.FromRequest(r)

	reviews, total, err := h.service.ListBySeller(r.Context(), sellerID, page)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, httputil.NewPaginatedResponse(reviews, total, page.Page, page.PerPage))
}
