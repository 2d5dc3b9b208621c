package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
	"github.com/shopspring/decimal"

	apperrors "github.com/sylwiakmieciak/madebyu-sub000/pkg/errors"
	"github.com/sylwiakmieciak/madebyu-sub000/pkg/pagination"

	"github.com/sylwiakmieciak/madebyu-sub000/internal/domain"
	"github.com/sylwiakmieciak/madebyu-sub000/internal/policy"
	"github.com/sylwiakmieciak/madebyu-sub000/internal/repository"
)

const aggregateOrder = "order"

// OrderService implements the order lifecycle.
type OrderService struct {
	store      repository.Store
	dispatcher *Dispatcher
	now        func() time.Time
	logger     *slog.Logger
}

// NewOrderService creates a new order service.
func NewOrderService(store repository.Store, dispatcher *Dispatcher, logger *slog.Logger) *OrderService {
	return &OrderService{
		store:      store,
		dispatcher: dispatcher,
		now:        func() time.Time { return time.Now().UTC() },
		logger:     logger,
	}
}

// OrderLineInput is one requested product and quantity.
type OrderLineInput struct {
	ProductID string `json:"product_id" validate:"required"`
	Quantity  int    `json:"quantity" validate:"required,min=1,max=10000"`
}

// CreateOrderInput holds the parameters for creating an order.
type CreateOrderInput struct {
	Shipping domain.ShippingInfo
	Items    []OrderLineInput
	Notes    string
}

// OverrideInput holds an admin's direct status edit. Nil fields stay as they are.
type OverrideInput struct {
	Status        *string
	PaymentStatus *string
}

func checkQuantity(qty int) error {
	if qty < 1 || qty > domain.MaxLineQuantity {
		return apperrors.InvalidInput(fmt.Sprintf("quantity must be between 1 and %d", domain.MaxLineQuantity))
	}
	return nil
}

// mergeLines folds duplicate product lines together and orders them by
// product id, so concurrent checkouts touch rows in the same order. Every
// input line and every merged total must stay within MaxLineQuantity.
func mergeLines(lines []OrderLineInput) ([]OrderLineInput, error) {
	byProduct := make(map[string]int, len(lines))
	for _, l := range lines {
		if err := checkQuantity(l.Quantity); err != nil {
			return nil, err
		}
		byProduct[l.ProductID] += l.Quantity
		if err := checkQuantity(byProduct[l.ProductID]); err != nil {
			return nil, err
		}
	}
	merged := make([]OrderLineInput, 0, len(byProduct))
	for id, qty := range byProduct {
		merged = append(merged, OrderLineInput{ProductID: id, Quantity: qty})
	}
	sort.Slice(merged, func(i, j int) bool { return merged[i].ProductID < merged[j].ProductID })
	return merged, nil
}

func newOrderNumber(now time.Time) string {
	id := ulid.Make().String()
	return fmt.Sprintf("ORD-%d-%s", now.Unix(), id[len(id)-6:])
}

func validateShipping(s domain.ShippingInfo) error {
	required := []struct{ field, value string }{
		{"shipping name", s.Name},
		{"shipping email", s.Email},
		{"shipping address", s.Address},
		{"shipping city", s.City},
		{"shipping country", s.Country},
	}
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			return apperrors.InvalidInput(r.field + " is required")
		}
	}
	return nil
}

// Create places an order for the actor. Every line's stock is taken with an
// atomic conditional decrement inside one transaction: if any line cannot be
// fulfilled nothing is written.
func (s *OrderService) Create(ctx context.Context, actor domain.Actor, in CreateOrderInput) (*domain.Order, error) {
	if len(in.Items) == 0 {
		return nil, apperrors.InvalidInput("order must contain at least one item")
	}
	for _, l := range in.Items {
		if strings.TrimSpace(l.ProductID) == "" {
			return nil, apperrors.InvalidInput("product_id is required")
		}
	}
	if err := validateShipping(in.Shipping); err != nil {
		return nil, err
	}

	lines, err := mergeLines(in.Items)
	if err != nil {
		return nil, err
	}
	var order *domain.Order

	err = s.store.WithTx(ctx, func(tx repository.Store) error {
		now := s.now()
		orderID := uuid.New().String()
		items := make([]domain.OrderItem, 0, len(lines))
		total := decimal.Zero

		for _, line := range lines {
			p, err := tx.Products().DecrementStock(ctx, line.ProductID, line.Quantity)
			if err != nil {
				if errors.Is(err, repository.ErrStockUnavailable) {
					return s.stockFailure(ctx, tx, line)
				}
				return fmt.Errorf("decrement stock: %w", err)
			}
			if p.SellerID == actor.UserID {
				checkoutRejections.WithLabelValues("own_product").Inc()
				return apperrors.InvalidInput(fmt.Sprintf("you cannot buy your own product %s", p.ID))
			}

			item := domain.OrderItem{
				ID:          uuid.New().String(),
				OrderID:     orderID,
				ProductID:   p.ID,
				ProductName: p.Name,
				SellerID:    p.SellerID,
				Quantity:    line.Quantity,
				UnitPrice:   p.Price,
				CreatedAt:   now,
			}
			item.Subtotal = item.LineTotal()
			total = total.Add(item.Subtotal)
			items = append(items, item)
		}

		order = &domain.Order{
			ID:            orderID,
			OrderNumber:   newOrderNumber(now),
			BuyerID:       actor.UserID,
			Shipping:      in.Shipping,
			TotalAmount:   total,
			Status:        domain.OrderStatusPending,
			PaymentStatus: domain.PaymentStatusPending,
			Notes:         strings.TrimSpace(in.Notes),
			Items:         items,
			CreatedAt:     now,
			UpdatedAt:     now,
		}
		if err := tx.Orders().Create(ctx, order); err != nil {
			return fmt.Errorf("create order: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	ordersCreated.Inc()
	s.logger.InfoContext(ctx, "order created",
		slog.String("order_id", order.ID),
		slog.String("order_number", order.OrderNumber),
		slog.String("buyer_id", order.BuyerID),
		slog.String("total_amount", order.TotalAmount.StringFixed(2)),
	)

	s.dispatcher.Dispatch(ctx, []domain.Event{{
		AggregateType: aggregateOrder,
		AggregateID:   order.ID,
		Action:        "created",
		Notification:  domain.NotificationNewOrder,
		Recipients:    order.SellerIDs(),
		Title:         "New order",
		Message:       fmt.Sprintf("Order %s contains your products.", order.OrderNumber),
		Payload:       orderPayload(order),
	}})

	return order, nil
}

// stockFailure explains why a conditional decrement matched no row.
func (s *OrderService) stockFailure(ctx context.Context, tx repository.Store, line OrderLineInput) error {
	p, err := tx.Products().GetByID(ctx, line.ProductID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			checkoutRejections.WithLabelValues("not_found").Inc()
		}
		return err
	}
	if !p.IsPurchasable() {
		checkoutRejections.WithLabelValues("unavailable").Inc()
		return apperrors.InvalidInput(fmt.Sprintf("product %s is not available for purchase", p.ID))
	}
	checkoutRejections.WithLabelValues("insufficient_stock").Inc()
	return apperrors.InsufficientStock(p.ID, line.Quantity)
}

// Get returns an order visible to the actor.
func (s *OrderService) Get(ctx context.Context, actor domain.Actor, id string) (*domain.Order, error) {
	o, err := s.store.Orders().GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := policy.Authorize(actor, policy.ViewOrder, policy.Order(o)); err != nil {
		return nil, err
	}
	return o, nil
}

// ListPurchases returns the actor's own orders.
func (s *OrderService) ListPurchases(ctx context.Context, actor domain.Actor, page pagination.Params) ([]domain.Order, int, error) {
	buyer := actor.UserID
	return s.list(ctx, repository.OrderFilter{BuyerID: &buyer, Params: page})
}

// ListSales returns the orders containing at least one of the actor's products.
func (s *OrderService) ListSales(ctx context.Context, actor domain.Actor, page pagination.Params) ([]domain.Order, int, error) {
	seller := actor.UserID
	return s.list(ctx, repository.OrderFilter{SellerID: &seller, Params: page})
}

// ListAll returns every order, optionally filtered by status. Admin only.
func (s *OrderService) ListAll(ctx context.Context, actor domain.Actor, status string, page pagination.Params) ([]domain.Order, int, error) {
	if err := policy.Authorize(actor, policy.ListAllOrders, policy.None()); err != nil {
		return nil, 0, err
	}
	filter := repository.OrderFilter{Params: page}
	if status != "" {
		if !domain.IsValidStatus(status) {
			return nil, 0, apperrors.InvalidInput(fmt.Sprintf("invalid status %q", status))
		}
		st := domain.OrderStatus(status)
		filter.Status = &st
	}
	return s.list(ctx, filter)
}

func (s *OrderService) list(ctx context.Context, filter repository.OrderFilter) ([]domain.Order, int, error) {
	orders, total, err := s.store.Orders().List(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("list orders: %w", err)
	}
	return orders, total, nil
}

// transitionFunc checks its guard against the locked order and applies the
// change, returning the events to dispatch after commit.
type transitionFunc func(tx repository.Store, o *domain.Order, now time.Time) ([]domain.Event, error)

// transition loads and locks the order, authorizes the actor and runs fn in
// one transaction.
func (s *OrderService) transition(ctx context.Context, actor domain.Actor, id string, action policy.Action, fn transitionFunc) (*domain.Order, error) {
	var (
		order  *domain.Order
		events []domain.Event
	)
	err := s.store.WithTx(ctx, func(tx repository.Store) error {
		o, err := tx.Orders().GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if err := policy.Authorize(actor, action, policy.Order(o)); err != nil {
			return err
		}
		events, err = fn(tx, o, s.now())
		if err != nil {
			return err
		}
		order = o
		return nil
	})
	if err != nil {
		return nil, err
	}

	orderTransitions.WithLabelValues(string(action)).Inc()
	s.dispatcher.Dispatch(ctx, events)
	return order, nil
}

// moveTo applies a guarded status change.
func moveTo(ctx context.Context, tx repository.Store, o *domain.Order, to domain.OrderStatus, now time.Time) error {
	if !o.CanTransitionTo(to) {
		return apperrors.InvalidTransition("order", string(o.Status), string(to))
	}
	if err := tx.Orders().UpdateStatus(ctx, o.ID, to, o.PaymentStatus, now); err != nil {
		return fmt.Errorf("update order status: %w", err)
	}
	o.Status = to
	o.UpdatedAt = now
	return nil
}

func (s *OrderService) statusEvent(o *domain.Order, action string, kind domain.NotificationType, recipients []string, title, message string) domain.Event {
	payload := orderPayload(o)
	return domain.Event{
		AggregateType: aggregateOrder,
		AggregateID:   o.ID,
		Action:        action,
		Notification:  kind,
		Recipients:    recipients,
		Title:         title,
		Message:       message,
		Payload:       payload,
	}
}

// Confirm moves a pending order to confirmed. Seller of an item or admin.
func (s *OrderService) Confirm(ctx context.Context, actor domain.Actor, id string) (*domain.Order, error) {
	return s.transition(ctx, actor, id, policy.ConfirmOrder, func(tx repository.Store, o *domain.Order, now time.Time) ([]domain.Event, error) {
		if err := moveTo(ctx, tx, o, domain.OrderStatusConfirmed, now); err != nil {
			return nil, err
		}
		return []domain.Event{s.statusEvent(o, "confirmed", domain.NotificationOrderConfirmed,
			[]string{o.BuyerID}, "Order confirmed",
			fmt.Sprintf("Your order %s has been confirmed.", o.OrderNumber))}, nil
	})
}

// Ship marks a pending or confirmed order as shipped. Seller of an item or admin.
func (s *OrderService) Ship(ctx context.Context, actor domain.Actor, id string) (*domain.Order, error) {
	return s.transition(ctx, actor, id, policy.ShipOrder, func(tx repository.Store, o *domain.Order, now time.Time) ([]domain.Event, error) {
		if err := moveTo(ctx, tx, o, domain.OrderStatusShipped, now); err != nil {
			return nil, err
		}
		return []domain.Event{s.statusEvent(o, "shipped", domain.NotificationOrderShipped,
			[]string{o.BuyerID}, "Order shipped",
			fmt.Sprintf("Your order %s is on its way.", o.OrderNumber))}, nil
	})
}

// ConfirmDelivery marks a shipped order as delivered. Buyer only. This is what
// makes the order reviewable.
func (s *OrderService) ConfirmDelivery(ctx context.Context, actor domain.Actor, id string) (*domain.Order, error) {
	return s.transition(ctx, actor, id, policy.ConfirmDelivery, func(tx repository.Store, o *domain.Order, now time.Time) ([]domain.Event, error) {
		if err := moveTo(ctx, tx, o, domain.OrderStatusDelivered, now); err != nil {
			return nil, err
		}
		return []domain.Event{s.statusEvent(o, "delivered", domain.NotificationOrderDelivered,
			o.SellerIDs(), "Order delivered",
			fmt.Sprintf("The buyer confirmed delivery of order %s.", o.OrderNumber))}, nil
	})
}

// Cancel cancels an order that has not shipped yet and puts its stock back.
// Buyer, seller of an item or admin.
func (s *OrderService) Cancel(ctx context.Context, actor domain.Actor, id string) (*domain.Order, error) {
	return s.transition(ctx, actor, id, policy.CancelOrder, func(tx repository.Store, o *domain.Order, now time.Time) ([]domain.Event, error) {
		if err := moveTo(ctx, tx, o, domain.OrderStatusCancelled, now); err != nil {
			return nil, err
		}
		for _, item := range o.Items {
			err := tx.Products().RestoreStock(ctx, item.ProductID, item.Quantity)
			if err == nil {
				continue
			}
			if !errors.Is(err, apperrors.ErrNotFound) {
				return nil, fmt.Errorf("restore stock: %w", err)
			}
			s.logger.WarnContext(ctx, "cancelled order references a missing product",
				slog.String("order_id", o.ID),
				slog.String("product_id", item.ProductID),
			)
		}
		return []domain.Event{s.statusEvent(o, "cancelled", domain.NotificationOrderCancelled,
			domain.Without(o.Participants(), actor.UserID), "Order cancelled",
			fmt.Sprintf("Order %s has been cancelled.", o.OrderNumber))}, nil
	})
}

// AdminOverride sets status and/or payment status directly. It skips the
// transition guards but refuses a refund of an order that was never paid, and
// it never touches stock.
func (s *OrderService) AdminOverride(ctx context.Context, actor domain.Actor, id string, in OverrideInput) (*domain.Order, error) {
	if err := policy.Authorize(actor, policy.OverrideOrder, policy.None()); err != nil {
		return nil, err
	}
	if in.Status == nil && in.PaymentStatus == nil {
		return nil, apperrors.InvalidInput("status or payment_status is required")
	}
	if in.Status != nil && !domain.IsValidStatus(*in.Status) {
		return nil, apperrors.InvalidInput(fmt.Sprintf("invalid status %q", *in.Status))
	}
	if in.PaymentStatus != nil && !domain.IsValidPaymentStatus(*in.PaymentStatus) {
		return nil, apperrors.InvalidInput(fmt.Sprintf("invalid payment_status %q", *in.PaymentStatus))
	}

	return s.transition(ctx, actor, id, policy.OverrideOrder, func(tx repository.Store, o *domain.Order, now time.Time) ([]domain.Event, error) {
		status, payment := o.Status, o.PaymentStatus
		if in.Status != nil {
			status = domain.OrderStatus(*in.Status)
		}
		if in.PaymentStatus != nil {
			payment = domain.PaymentStatus(*in.PaymentStatus)
		}

		statusChanged := status != o.Status
		paymentChanged := payment != o.PaymentStatus
		if !statusChanged && !paymentChanged {
			return nil, apperrors.InvalidInput("order already has the requested status")
		}
		if paymentChanged && payment == domain.PaymentStatusRefunded && o.PaymentStatus != domain.PaymentStatusPaid {
			return nil, apperrors.InvalidInput("only a paid order can be refunded")
		}
		if status == domain.OrderStatusDelivered && payment == domain.PaymentStatusFailed {
			s.logger.WarnContext(ctx, "order marked delivered with failed payment",
				slog.String("order_id", o.ID),
				slog.String("admin_id", actor.UserID),
			)
		}

		if err := tx.Orders().UpdateStatus(ctx, o.ID, status, payment, now); err != nil {
			return nil, fmt.Errorf("override order status: %w", err)
		}
		previous := o.Status
		previousPayment := o.PaymentStatus
		o.Status, o.PaymentStatus, o.UpdatedAt = status, payment, now

		s.logger.InfoContext(ctx, "order status overridden",
			slog.String("order_id", o.ID),
			slog.String("admin_id", actor.UserID),
			slog.String("old_status", string(previous)),
			slog.String("new_status", string(status)),
			slog.String("old_payment_status", string(previousPayment)),
			slog.String("new_payment_status", string(payment)),
		)

		var events []domain.Event
		if statusChanged {
			events = append(events, s.statusEvent(o, "status_changed", domain.NotificationOrderStatusChanged,
				[]string{o.BuyerID}, "Order status updated",
				fmt.Sprintf("Order %s is now %s.", o.OrderNumber, status)))
		}
		if paymentChanged {
			e := s.statusEvent(o, "payment_changed", "", nil, "", "")
			events = append(events, e)
		}
		return events, nil
	})
}

// RecordPaymentResult applies the payment gateway's verdict to a pending
// payment. result must be paid or failed.
func (s *OrderService) RecordPaymentResult(ctx context.Context, id string, result domain.PaymentStatus) (*domain.Order, error) {
	if result != domain.PaymentStatusPaid && result != domain.PaymentStatusFailed {
		return nil, apperrors.InvalidInput(fmt.Sprintf("invalid payment result %q", result))
	}

	var (
		order  *domain.Order
		events []domain.Event
	)
	err := s.store.WithTx(ctx, func(tx repository.Store) error {
		o, err := tx.Orders().GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if !o.CanTransitionPaymentTo(result) {
			return apperrors.InvalidTransition("payment", string(o.PaymentStatus), string(result))
		}

		now := s.now()
		if err := tx.Orders().UpdateStatus(ctx, o.ID, o.Status, result, now); err != nil {
			return fmt.Errorf("update payment status: %w", err)
		}
		o.PaymentStatus, o.UpdatedAt = result, now

		if result == domain.PaymentStatusPaid {
			events = append(events, s.statusEvent(o, "payment_received", domain.NotificationPaymentReceived,
				[]string{o.BuyerID}, "Payment received",
				fmt.Sprintf("We received your payment for order %s.", o.OrderNumber)))
		} else {
			events = append(events, s.statusEvent(o, "payment_failed", domain.NotificationPaymentFailed,
				[]string{o.BuyerID}, "Payment failed",
				fmt.Sprintf("The payment for order %s failed.", o.OrderNumber)))
		}
		order = o
		return nil
	})
	if err != nil {
		return nil, err
	}

	orderTransitions.WithLabelValues("payment_" + string(result)).Inc()
	s.dispatcher.Dispatch(ctx, events)
	return order, nil
}

func orderPayload(o *domain.Order) map[string]any {
	return map[string]any{
		"order_id":       o.ID,
		"order_number":   o.OrderNumber,
		"buyer_id":       o.BuyerID,
		"seller_ids":     o.SellerIDs(),
		"status":         string(o.Status),
		"payment_status": string(o.PaymentStatus),
		"total_amount":   o.TotalAmount.StringFixed(2),
	}
}
