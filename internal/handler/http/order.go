package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sylwiakmieciak/madebyu-sub000/pkg/httputil"
	"github.com/sylwiakmieciak/madebyu-sub000/pkg/pagination"
	"github.com/sylwiakmieciak/madebyu-sub000/pkg/validator"

	"github.com/sylwiakmieciak/madebyu-sub000/internal/domain"
	"github.com/sylwiakmieciak/madebyu-sub000/internal/service"
)

// maxBodyBytes bounds JSON request bodies.
const maxBodyBytes = 1 << 20

// OrderHandler handles HTTP requests for order endpoints.
type OrderHandler struct {
	orders  *service.OrderService
	reviews *service.ReviewService
	logger  *slog.Logger
}

// NewOrderHandler creates a new order HTTP handler.
func NewOrderHandler(orders *service.OrderService, reviews *service.ReviewService, logger *slog.Logger) *OrderHandler {
	return &OrderHandler{
		orders:  orders,
		reviews: reviews,
		logger:  logger,
	}
}

// --- Request DTOs ---

// ShippingRequest is the delivery address captured at checkout.
type ShippingRequest struct {
	Name       string `json:"name" validate:"required,notblank,max=200"`
	Email      string `json:"email" validate:"required,email"`
	Phone      string `json:"phone" validate:"max=50"`
	Address    string `json:"address" validate:"required,notblank,max=500"`
	City       string `json:"city" validate:"required,notblank,max=100"`
	PostalCode string `json:"postal_code" validate:"max=20"`
	Country    string `json:"country" validate:"required,notblank,max=100"`
}

// CreateOrderItemRequest is one line of a new order.
type CreateOrderItemRequest struct {
	ProductID string `json:"product_id" validate:"required,uuid"`
	Quantity  int    `json:"quantity" validate:"required,gte=1,lte=10000"`
}

// CreateOrderRequest is the JSON request body for creating an order.
type CreateOrderRequest struct {
	Shipping ShippingRequest          `json:"shipping"`
	Items    []CreateOrderItemRequest `json:"items" validate:"required,min=1,dive"`
	Notes    string                   `json:"notes" validate:"max=2000"`
}

// OverrideStatusRequest is the JSON request body of the admin status editor.
type OverrideStatusRequest struct {
	Status        *string `json:"status" validate:"omitempty,oneof=pending confirmed shipped delivered cancelled"`
	PaymentStatus *string `json:"payment_status" validate:"omitempty,oneof=pending paid failed refunded"`
}

// SubmitReviewRequest is the JSON request body for reviewing a seller.
type SubmitReviewRequest struct {
	SellerID string `json:"seller_id" validate:"omitempty,uuid"`
	Rating   int    `json:"rating" validate:"required,gte=1,lte=5"`
	Comment  string `json:"comment"`
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.Response{
			Error: &httputil.ErrorResponse{Code: "INVALID_INPUT", Message: "invalid request body: " + err.Error()},
		})
		return false
	}
	if err := validator.Validate(dst); err != nil {
		httputil.WriteValidationError(w, err)
		return false
	}
	return true
}

func writeOrderPage(w http.ResponseWriter, orders []domain.Order, total int, page pagination.Params) {
	httputil.WriteJSON(w, http.StatusOK, httputil.NewPaginatedResponse(orders, total, page.Page, page.PerPage))
}

// --- Handlers ---

// CreateOrder handles POST /api/v1/orders
func (h *OrderHandler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}

	var req CreateOrderRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	lines := make([]service.OrderLineInput, len(req.Items))
	for i, item := range req.Items {
		lines[i] = service.OrderLineInput{ProductID: item.ProductID, Quantity: item.Quantity}
	}

	order, err := h.orders.Create(r.Context(), actor, service.CreateOrderInput{
		Shipping: domain.ShippingInfo(req.Shipping),
		Items:    lines,
		Notes:    req.Notes,
	})
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, httputil.Response{Data: order})
}

// ListMyPurchases handles GET /api/v1/orders/my and /api/v1/orders/my-purchases
func (h *OrderHandler) ListMyPurchases(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	page := pagination.FromRequest(r)
	orders, total, err := h.orders.ListPurchases(r.Context(), actor, page)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	writeOrderPage(w, orders, total, page)
}

// ListMySales handles GET /api/v1/orders/sales/my
func (h *OrderHandler) ListMySales(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	page := pagination.FromRequest(r)
	orders, total, err := h.orders.ListSales(r.Context(), actor, page)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	writeOrderPage(w, orders, total, page)
}

// ListAll handles GET /api/v1/orders/admin
func (h *OrderHandler) ListAll(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	page := pagination.FromRequest(r)
	orders, total, err := h.orders.ListAll(r.Context(), actor, r.URL.Query().Get("status"), page)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	writeOrderPage(w, orders, total, page)
}

// GetOrder handles GET /api/v1/orders/{id}
func (h *OrderHandler) GetOrder(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	id, ok := httputil.ParseUUID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}

	order, err := h.orders.Get(r.Context(), actor, id)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: order})
}

// transition runs a single-order state change for the caller.
func (h *OrderHandler) transition(
	w http.ResponseWriter,
	r *http.Request,
	apply func(ctx context.Context, actor domain.Actor, id string) (*domain.Order, error),
) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	id, ok := httputil.ParseUUID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}

	order, err := apply(r.Context(), actor, id)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: order})
}

// ConfirmOrder handles PUT /api/v1/orders/{id}/confirm
func (h *OrderHandler) ConfirmOrder(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.orders.Confirm)
}

// ShipOrder handles PUT /api/v1/orders/{id}/ship
func (h *OrderHandler) ShipOrder(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.orders.Ship)
}

// ConfirmDelivery handles PUT /api/v1/orders/{id}/confirm-delivery
func (h *OrderHandler) ConfirmDelivery(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.orders.ConfirmDelivery)
}

// CancelOrder handles PUT /api/v1/orders/{id}/cancel
func (h *OrderHandler) CancelOrder(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.orders.Cancel)
}

// OverrideStatus handles PUT /api/v1/orders/admin/{id}/status
func (h *OrderHandler) OverrideStatus(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	id, ok := httputil.ParseUUID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}

	var req OverrideStatusRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	order, err := h.orders.AdminOverride(r.Context(), actor, id, service.OverrideInput{
		Status:        req.Status,
		PaymentStatus: req.PaymentStatus,
	})
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: order})
}

// SubmitReview handles POST /api/v1/orders/{id}/review
func (h *OrderHandler) SubmitReview(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	id, ok := httputil.ParseUUID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}

	var req SubmitReviewRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	review, err := h.reviews.Submit(r.Context(), actor, service.SubmitReviewInput{
		OrderID:  id,
		SellerID: req.SellerID,
		Rating:   req.Rating,
		Comment:  req.Comment,
	})
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, httputil.Response{Data: review})
}

// ReviewableSellers handles GET /api/v1/orders/{id}/reviewable-sellers
func (h *OrderHandler) ReviewableSellers(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	id, ok := httputil.ParseUUID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}

	sellers, err := h.reviews.ReviewableSellers(r.Context(), actor, id)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: map[string]any{"seller_ids": sellers}})
}
