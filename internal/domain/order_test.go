package domain

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

// ============================================================================
// Order status machine
// ============================================================================

func TestCanTransitionTo(t *testing.T) {
	tests := []struct {
		from OrderStatus
		to   OrderStatus
		want bool
	}{
		{OrderStatusPending, OrderStatusConfirmed, true},
		{OrderStatusPending, OrderStatusShipped, true},
		{OrderStatusPending, OrderStatusCancelled, true},
		{OrderStatusPending, OrderStatusDelivered, false},
		{OrderStatusConfirmed, OrderStatusShipped, true},
		{OrderStatusConfirmed, OrderStatusCancelled, true},
		{OrderStatusConfirmed, OrderStatusPending, false},
		{OrderStatusShipped, OrderStatusDelivered, true},
		{OrderStatusShipped, OrderStatusCancelled, false},
		{OrderStatusShipped, OrderStatusConfirmed, false},
		{OrderStatusDelivered, OrderStatusShipped, false},
		{OrderStatusDelivered, OrderStatusCancelled, false},
		{OrderStatusCancelled, OrderStatusPending, false},
		{OrderStatusCancelled, OrderStatusShipped, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			o := &Order{Status: tt.from}
			assert.Equal(t, tt.want, o.CanTransitionTo(tt.to))
		})
	}
}

// Every allowed edge moves forward along pending < confirmed < shipped <
// delivered, or into cancelled from a state that has not shipped yet.
func TestAllowedTransitions_OnlyMoveForward(t *testing.T) {
	rank := map[OrderStatus]int{
		OrderStatusPending:   0,
		OrderStatusConfirmed: 1,
		OrderStatusShipped:   2,
		OrderStatusDelivered: 3,
	}

	for from, targets := range AllowedTransitions() {
		for _, to := range targets {
			if to == OrderStatusCancelled {
				assert.Contains(t, []OrderStatus{OrderStatusPending, OrderStatusConfirmed}, from)
				continue
			}
			assert.Greater(t, rank[to], rank[from], "%s -> %s", from, to)
		}
	}
}

func TestIsTerminal(t *testing.T) {
	for _, s := range ValidStatuses() {
		o := &Order{Status: s}
		want := s == OrderStatusDelivered || s == OrderStatusCancelled
		assert.Equal(t, want, o.IsTerminal(), string(s))
	}
}

func TestCanTransitionPaymentTo(t *testing.T) {
	o := &Order{PaymentStatus: PaymentStatusPending}
	assert.True(t, o.CanTransitionPaymentTo(PaymentStatusPaid))
	assert.True(t, o.CanTransitionPaymentTo(PaymentStatusFailed))
	assert.False(t, o.CanTransitionPaymentTo(PaymentStatusRefunded))

	o.PaymentStatus = PaymentStatusPaid
	assert.True(t, o.CanTransitionPaymentTo(PaymentStatusRefunded))
	assert.False(t, o.CanTransitionPaymentTo(PaymentStatusFailed))

	o.PaymentStatus = PaymentStatusFailed
	assert.False(t, o.CanTransitionPaymentTo(PaymentStatusPaid))
}

func TestIsValidStatus(t *testing.T) {
	assert.True(t, IsValidStatus("shipped"))
	assert.False(t, IsValidStatus("processing"))
	assert.False(t, IsValidStatus(""))
	assert.True(t, IsValidPaymentStatus("refunded"))
	assert.False(t, IsValidPaymentStatus("void"))
}

// ============================================================================
// Items and participants
// ============================================================================

func sampleOrder() *Order {
	return &Order{
		BuyerID: "buyer",
		Items: []OrderItem{
			{SellerID: "s1", Quantity: 2, UnitPrice: decimal.RequireFromString("10.00"), Subtotal: decimal.RequireFromString("20.00")},
			{SellerID: "s2", Quantity: 1, UnitPrice: decimal.RequireFromString("4.50"), Subtotal: decimal.RequireFromString("4.50")},
			{SellerID: "s1", Quantity: 3, UnitPrice: decimal.RequireFromString("1.10"), Subtotal: decimal.RequireFromString("3.30")},
		},
	}
}

func TestSellerIDs_Distinct(t *testing.T) {
	o := sampleOrder()
	assert.Equal(t, []string{"s1", "s2"}, o.SellerIDs())
	assert.True(t, o.HasSeller("s2"))
	assert.False(t, o.HasSeller("buyer"))
}

func TestParticipants(t *testing.T) {
	assert.Equal(t, []string{"buyer", "s1", "s2"}, sampleOrder().Participants())
}

func TestItemsTotal(t *testing.T) {
	assert.True(t, decimal.RequireFromString("27.80").Equal(sampleOrder().ItemsTotal()))
}

func TestLineTotal(t *testing.T) {
	item := OrderItem{UnitPrice: decimal.RequireFromString("19.99"), Quantity: 3}
	assert.Equal(t, "59.97", item.LineTotal().StringFixed(2))

	item.Quantity = 0
	assert.True(t, item.LineTotal().IsZero())
}

func TestWithout(t *testing.T) {
	assert.Equal(t, []string{"a", "c"}, Without([]string{"a", "b", "c"}, "b"))
	assert.Equal(t, []string{"a"}, Without([]string{"a"}, "z"))
}
