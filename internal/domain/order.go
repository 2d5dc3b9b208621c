package domain

import (
	"slices"
	"time"

	"github.com/shopspring/decimal"
)

// OrderStatus is the fulfilment state of an order.
type OrderStatus string

// Order status constants.
const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusConfirmed OrderStatus = "confirmed"
	OrderStatusShipped   OrderStatus = "shipped"
	OrderStatusDelivered OrderStatus = "delivered"
	OrderStatusCancelled OrderStatus = "cancelled"
)

// PaymentStatus is the payment state of an order, independent of OrderStatus.
type PaymentStatus string

// Payment status constants.
const (
	PaymentStatusPending  PaymentStatus = "pending"
	PaymentStatusPaid     PaymentStatus = "paid"
	PaymentStatusFailed   PaymentStatus = "failed"
	PaymentStatusRefunded PaymentStatus = "refunded"
)

// Order is a purchase made by one buyer, possibly from several sellers.
type Order struct {
	ID            string          `json:"id"`
	OrderNumber   string          `json:"order_number"`
	BuyerID       string          `json:"buyer_id"`
	Shipping      ShippingInfo    `json:"shipping"`
	TotalAmount   decimal.Decimal `json:"total_amount"`
	Status        OrderStatus     `json:"status"`
	PaymentStatus PaymentStatus   `json:"payment_status"`
	Notes         string          `json:"notes,omitempty"`
	Items         []OrderItem     `json:"items"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// ShippingInfo is the delivery snapshot copied into the order at checkout.
type ShippingInfo struct {
	Name       string `json:"name"`
	Email      string `json:"email"`
	Phone      string `json:"phone,omitempty"`
	Address    string `json:"address"`
	City       string `json:"city"`
	PostalCode string `json:"postal_code,omitempty"`
	Country    string `json:"country"`
}

// ValidStatuses returns all order statuses.
func ValidStatuses() []OrderStatus {
	return []OrderStatus{
		OrderStatusPending,
		OrderStatusConfirmed,
		OrderStatusShipped,
		OrderStatusDelivered,
		OrderStatusCancelled,
	}
}

// IsValidStatus checks if a status string is a known order status.
func IsValidStatus(status string) bool {
	return slices.Contains(ValidStatuses(), OrderStatus(status))
}

// ValidPaymentStatuses returns all payment statuses.
func ValidPaymentStatuses() []PaymentStatus {
	return []PaymentStatus{
		PaymentStatusPending,
		PaymentStatusPaid,
		PaymentStatusFailed,
		PaymentStatusRefunded,
	}
}

// IsValidPaymentStatus checks if a status string is a known payment status.
func IsValidPaymentStatus(status string) bool {
	return slices.Contains(ValidPaymentStatuses(), PaymentStatus(status))
}

// AllowedTransitions defines the forward-only order status machine.
func AllowedTransitions() map[OrderStatus][]OrderStatus {
	return map[OrderStatus][]OrderStatus{
		OrderStatusPending:   {OrderStatusConfirmed, OrderStatusShipped, OrderStatusCancelled},
		OrderStatusConfirmed: {OrderStatusShipped, OrderStatusCancelled},
		OrderStatusShipped:   {OrderStatusDelivered},
		OrderStatusDelivered: {},
		OrderStatusCancelled: {},
	}
}

// AllowedPaymentTransitions defines the payment status machine.
func AllowedPaymentTransitions() map[PaymentStatus][]PaymentStatus {
	return map[PaymentStatus][]PaymentStatus{
		PaymentStatusPending:  {PaymentStatusPaid, PaymentStatusFailed},
		PaymentStatusPaid:     {PaymentStatusRefunded},
		PaymentStatusFailed:   {},
		PaymentStatusRefunded: {},
	}
}

// CanTransitionTo checks if the order can move to the target status.
func (o *Order) CanTransitionTo(target OrderStatus) bool {
	return slices.Contains(AllowedTransitions()[o.Status], target)
}

// CanTransitionPaymentTo checks if the payment status can move to target.
func (o *Order) CanTransitionPaymentTo(target PaymentStatus) bool {
	return slices.Contains(AllowedPaymentTransitions()[o.PaymentStatus], target)
}

// IsTerminal reports whether no further status transition is possible.
func (o *Order) IsTerminal() bool {
	return len(AllowedTransitions()[o.Status]) == 0
}

// SellerIDs returns the distinct sellers of the order's items in first-seen order.
func (o *Order) SellerIDs() []string {
	seen := make(map[string]struct{}, len(o.Items))
	ids := make([]string, 0, len(o.Items))
	for _, it := range o.Items {
		if _, ok := seen[it.SellerID]; ok {
			continue
		}
		seen[it.SellerID] = struct{}{}
		ids = append(ids, it.SellerID)
	}
	return ids
}

// HasSeller reports whether userID sold at least one item of the order.
func (o *Order) HasSeller(userID string) bool {
	for _, it := range o.Items {
		if it.SellerID == userID {
			return true
		}
	}
	return false
}

// Participants returns the buyer followed by every distinct seller.
func (o *Order) Participants() []string {
	ids := []string{o.BuyerID}
	for _, s := range o.SellerIDs() {
		if s != o.BuyerID {
			ids = append(ids, s)
		}
	}
	return ids
}

// ItemsTotal sums the item subtotals. At creation it equals TotalAmount and
// TotalAmount is never recomputed afterwards.
func (o *Order) ItemsTotal() decimal.Decimal {
	total := decimal.Zero
	for _, it := range o.Items {
		total = total.Add(it.Subtotal)
	}
	return total
}
