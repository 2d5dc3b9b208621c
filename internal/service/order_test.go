package service

import (
	"context"
	"fmt"
	"math"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/sylwiakmieciak/madebyu-sub000/pkg/errors"
	"github.com/sylwiakmieciak/madebyu-sub000/pkg/pagination"

	"github.com/sylwiakmieciak/madebyu-sub000/internal/domain"
)

func strPtr(s string) *string { return &s }

// --- Create ---

func TestCreate_TakesStockAndTotals(t *testing.T) {
	f := newFixture(t)
	f.putProduct("p-1", "seller-1", 1, "10.00", 5)
	f.putProduct("p-2", "seller-2", 2, "4.50", 3)

	o := f.placeOrder(t, "buyer-1",
		OrderLineInput{ProductID: "p-1", Quantity: 2},
		OrderLineInput{ProductID: "p-2", Quantity: 1},
	)

	assert.Equal(t, domain.OrderStatusPending, o.Status)
	assert.Equal(t, domain.PaymentStatusPending, o.PaymentStatus)
	assert.Equal(t, "24.50", o.TotalAmount.StringFixed(2))
	assert.True(t, o.TotalAmount.Equal(o.ItemsTotal()))
	assert.Regexp(t, `^ORD-\d+-[0-9A-Z]{6}$`, o.OrderNumber)
	require.Len(t, o.Items, 2)
	assert.Equal(t, 3, f.stock(t, "p-1"))
	assert.Equal(t, 2, f.stock(t, "p-2"))

	assert.Equal(t, []domain.NotificationType{domain.NotificationNewOrder}, f.inboxTypes(t, "seller-1"))
	assert.Equal(t, []domain.NotificationType{domain.NotificationNewOrder}, f.inboxTypes(t, "seller-2"))
	assert.Empty(t, f.inboxTypes(t, "buyer-1"))
	assert.Equal(t, []string{"order.created"}, f.publisher.actions())
}

func TestCreate_MergesDuplicateLines(t *testing.T) {
	f := newFixture(t)
	f.putProduct("p-1", "seller-1", 1, "3.00", 5)

	o := f.placeOrder(t, "buyer-1",
		OrderLineInput{ProductID: "p-1", Quantity: 1},
		OrderLineInput{ProductID: "p-1", Quantity: 2},
	)

	require.Len(t, o.Items, 1)
	assert.Equal(t, 3, o.Items[0].Quantity)
	assert.Equal(t, "9.00", o.TotalAmount.StringFixed(2))
	assert.Equal(t, 2, f.stock(t, "p-1"))
}

func TestCreate_RejectsOversizedQuantities(t *testing.T) {
	f := newFixture(t)
	f.putProduct("p-1", "seller-1", 1, "10.00", 5)
	buyer := f.actor(t, "buyer-1")
	ctx := context.Background()

	tests := []struct {
		name  string
		items []OrderLineInput
	}{
		{"single line above limit", []OrderLineInput{{ProductID: "p-1", Quantity: domain.MaxLineQuantity + 1}}},
		{"huge line", []OrderLineInput{{ProductID: "p-1", Quantity: math.MaxInt}}},
		{"merged lines wrap around", []OrderLineInput{
			{ProductID: "p-1", Quantity: math.MaxInt},
			{ProductID: "p-1", Quantity: math.MaxInt},
		}},
		{"merged lines above limit", []OrderLineInput{
			{ProductID: "p-1", Quantity: domain.MaxLineQuantity},
			{ProductID: "p-1", Quantity: 1},
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o, err := f.orders.Create(ctx, buyer, CreateOrderInput{Shipping: testShipping(), Items: tt.items})
			assert.Nil(t, o)
			assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
			assert.Equal(t, "INVALID_INPUT", appErrorCode(t, err))
		})
	}

	assert.Equal(t, 5, f.stock(t, "p-1"))
	assert.Empty(t, f.inboxTypes(t, "seller-1"))
}

func TestCreate_Validation(t *testing.T) {
	f := newFixture(t)
	f.putProduct("p-1", "seller-1", 1, "3.00", 5)
	buyer := f.actor(t, "buyer-1")
	ctx := context.Background()

	tests := []struct {
		name string
		in   CreateOrderInput
	}{
		{"no items", CreateOrderInput{Shipping: testShipping()}},
		{"zero quantity", CreateOrderInput{Shipping: testShipping(), Items: []OrderLineInput{{ProductID: "p-1", Quantity: 0}}}},
		{"blank product", CreateOrderInput{Shipping: testShipping(), Items: []OrderLineInput{{ProductID: " ", Quantity: 1}}}},
		{"missing address", CreateOrderInput{Items: []OrderLineInput{{ProductID: "p-1", Quantity: 1}}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.orders.Create(ctx, buyer, tt.in)
			assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
		})
	}
	assert.Equal(t, 5, f.stock(t, "p-1"))
}

func TestCreate_InsufficientStockRollsBackEveryLine(t *testing.T) {
	f := newFixture(t)
	f.putProduct("p-1", "seller-1", 1, "10.00", 5)
	f.putProduct("p-2", "seller-1", 1, "10.00", 1)

	_, err := f.orders.Create(context.Background(), f.actor(t, "buyer-1"), CreateOrderInput{
		Shipping: testShipping(),
		Items: []OrderLineInput{
			{ProductID: "p-1", Quantity: 2},
			{ProductID: "p-2", Quantity: 2},
		},
	})

	require.ErrorIs(t, err, apperrors.ErrInvalidInput)
	assert.Equal(t, "INSUFFICIENT_STOCK", appErrorCode(t, err))
	assert.Equal(t, 5, f.stock(t, "p-1"))
	assert.Equal(t, 1, f.stock(t, "p-2"))

	orders, total, err := f.orders.ListPurchases(context.Background(), f.actor(t, "buyer-1"), pagination.DefaultParams())
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.Empty(t, orders)
	assert.Empty(t, f.inboxTypes(t, "seller-1"))
}

func TestCreate_RejectsUnavailableProducts(t *testing.T) {
	f := newFixture(t)
	f.putPendingProduct("p-draft", "seller-1", 1, 5)
	f.putProduct("p-own", "buyer-1", 1, "8.00", 5)
	buyer := f.actor(t, "buyer-1")
	ctx := context.Background()

	_, err := f.orders.Create(ctx, buyer, CreateOrderInput{
		Shipping: testShipping(),
		Items:    []OrderLineInput{{ProductID: "p-missing", Quantity: 1}},
	})
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	_, err = f.orders.Create(ctx, buyer, CreateOrderInput{
		Shipping: testShipping(),
		Items:    []OrderLineInput{{ProductID: "p-draft", Quantity: 1}},
	})
	require.ErrorIs(t, err, apperrors.ErrInvalidInput)
	assert.Equal(t, "INVALID_INPUT", appErrorCode(t, err))

	_, err = f.orders.Create(ctx, buyer, CreateOrderInput{
		Shipping: testShipping(),
		Items:    []OrderLineInput{{ProductID: "p-own", Quantity: 1}},
	})
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
	assert.Equal(t, 5, f.stock(t, "p-own"))
}

func TestCreate_ConcurrentCheckoutOfLastUnit(t *testing.T) {
	f := newFixture(t)
	f.putProduct("p-last", "seller-1", 1, "50.00", 1)

	const buyers = 16
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
		failures  []error
	)
	for i := 0; i < buyers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			buyer := domain.Actor{UserID: fmt.Sprintf("racer-%d", i), Role: domain.RoleUser}
			_, err := f.orders.Create(context.Background(), buyer, CreateOrderInput{
				Shipping: testShipping(),
				Items:    []OrderLineInput{{ProductID: "p-last", Quantity: 1}},
			})
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				succeeded++
				return
			}
			failures = append(failures, err)
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, succeeded)
	require.Len(t, failures, buyers-1)
	for _, err := range failures {
		assert.Equal(t, "INSUFFICIENT_STOCK", appErrorCode(t, err))
	}
	assert.Equal(t, 0, f.stock(t, "p-last"))
}

// --- Transitions ---

func TestShipAndDeliver(t *testing.T) {
	f := newFixture(t)
	f.putProduct("p-1", "seller-1", 1, "10.00", 5)
	o := f.placeOrder(t, "buyer-1", OrderLineInput{ProductID: "p-1", Quantity: 1})
	ctx := context.Background()

	confirmed, err := f.orders.Confirm(ctx, f.actor(t, "seller-1"), o.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusConfirmed, confirmed.Status)

	shipped, err := f.orders.Ship(ctx, f.actor(t, "seller-1"), o.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusShipped, shipped.Status)

	delivered, err := f.orders.ConfirmDelivery(ctx, f.actor(t, "buyer-1"), o.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusDelivered, delivered.Status)

	assert.ElementsMatch(t,
		[]domain.NotificationType{domain.NotificationOrderConfirmed, domain.NotificationOrderShipped},
		f.inboxTypes(t, "buyer-1"))
	assert.ElementsMatch(t,
		[]domain.NotificationType{domain.NotificationNewOrder, domain.NotificationOrderDelivered},
		f.inboxTypes(t, "seller-1"))
	assert.Equal(t, []string{"order.created", "order.confirmed", "order.shipped", "order.delivered"}, f.publisher.actions())
}

func TestShip_FromPending(t *testing.T) {
	f := newFixture(t)
	f.putProduct("p-1", "seller-1", 1, "10.00", 5)
	o := f.placeOrder(t, "buyer-1", OrderLineInput{ProductID: "p-1", Quantity: 1})

	shipped, err := f.orders.Ship(context.Background(), f.actor(t, "admin-1"), o.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusShipped, shipped.Status)
}

func TestTransitions_GuardsAndRoles(t *testing.T) {
	f := newFixture(t)
	f.putProduct("p-1", "seller-1", 1, "10.00", 5)
	o := f.placeOrder(t, "buyer-1", OrderLineInput{ProductID: "p-1", Quantity: 1})
	ctx := context.Background()

	_, err := f.orders.ConfirmDelivery(ctx, f.actor(t, "buyer-1"), o.ID)
	assert.ErrorIs(t, err, apperrors.ErrInvalidTransition)

	_, err = f.orders.Ship(ctx, f.actor(t, "seller-2"), o.ID)
	assert.ErrorIs(t, err, apperrors.ErrForbidden)

	_, err = f.orders.Ship(ctx, f.actor(t, "buyer-1"), o.ID)
	assert.ErrorIs(t, err, apperrors.ErrForbidden)

	_, err = f.orders.Ship(ctx, f.actor(t, "seller-1"), o.ID)
	require.NoError(t, err)

	_, err = f.orders.ConfirmDelivery(ctx, f.actor(t, "seller-1"), o.ID)
	assert.ErrorIs(t, err, apperrors.ErrForbidden)

	_, err = f.orders.ConfirmDelivery(ctx, f.actor(t, "admin-1"), o.ID)
	assert.ErrorIs(t, err, apperrors.ErrForbidden)

	_, err = f.orders.Cancel(ctx, f.actor(t, "buyer-1"), o.ID)
	assert.ErrorIs(t, err, apperrors.ErrInvalidTransition)

	_, err = f.orders.Ship(ctx, f.actor(t, "seller-1"), "missing")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	got, err := f.orders.Get(ctx, f.actor(t, "buyer-1"), o.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusShipped, got.Status)
}

func TestCancel_RestoresStockAndSkipsActor(t *testing.T) {
	f := newFixture(t)
	f.putProduct("p-1", "seller-1", 1, "10.00", 5)
	o := f.placeOrder(t, "buyer-1", OrderLineInput{ProductID: "p-1", Quantity: 2})
	require.Equal(t, 3, f.stock(t, "p-1"))

	cancelled, err := f.orders.Cancel(context.Background(), f.actor(t, "buyer-1"), o.ID)
	require.NoError(t, err)

	assert.Equal(t, domain.OrderStatusCancelled, cancelled.Status)
	assert.Equal(t, 5, f.stock(t, "p-1"))
	assert.Contains(t, f.inboxTypes(t, "seller-1"), domain.NotificationOrderCancelled)
	assert.NotContains(t, f.inboxTypes(t, "buyer-1"), domain.NotificationOrderCancelled)

	_, err = f.orders.Cancel(context.Background(), f.actor(t, "seller-1"), o.ID)
	assert.ErrorIs(t, err, apperrors.ErrInvalidTransition)
	assert.Equal(t, 5, f.stock(t, "p-1"))
}

func TestGet_OnlyParticipants(t *testing.T) {
	f := newFixture(t)
	f.putProduct("p-1", "seller-1", 1, "10.00", 5)
	o := f.placeOrder(t, "buyer-1", OrderLineInput{ProductID: "p-1", Quantity: 1})
	ctx := context.Background()

	for _, id := range []string{"buyer-1", "seller-1", "admin-1"} {
		_, err := f.orders.Get(ctx, f.actor(t, id), o.ID)
		assert.NoError(t, err, id)
	}
	_, err := f.orders.Get(ctx, f.actor(t, "buyer-2"), o.ID)
	assert.ErrorIs(t, err, apperrors.ErrForbidden)
}

func TestListings(t *testing.T) {
	f := newFixture(t)
	f.putProduct("p-1", "seller-1", 1, "10.00", 5)
	f.putProduct("p-2", "seller-2", 1, "10.00", 5)
	f.placeOrder(t, "buyer-1", OrderLineInput{ProductID: "p-1", Quantity: 1})
	second := f.placeOrder(t, "buyer-2", OrderLineInput{ProductID: "p-2", Quantity: 1})
	ctx := context.Background()
	page := pagination.DefaultParams()

	_, total, err := f.orders.ListPurchases(ctx, f.actor(t, "buyer-1"), page)
	require.NoError(t, err)
	assert.Equal(t, 1, total)

	sales, total, err := f.orders.ListSales(ctx, f.actor(t, "seller-2"), page)
	require.NoError(t, err)
	require.Equal(t, 1, total)
	assert.Equal(t, second.ID, sales[0].ID)

	_, _, err = f.orders.ListAll(ctx, f.actor(t, "seller-1"), "", page)
	assert.ErrorIs(t, err, apperrors.ErrForbidden)

	_, total, err = f.orders.ListAll(ctx, f.actor(t, "admin-1"), "", page)
	require.NoError(t, err)
	assert.Equal(t, 2, total)

	_, err = f.orders.Cancel(ctx, f.actor(t, "buyer-2"), second.ID)
	require.NoError(t, err)
	cancelled, total, err := f.orders.ListAll(ctx, f.actor(t, "admin-1"), "cancelled", page)
	require.NoError(t, err)
	require.Equal(t, 1, total)
	assert.Equal(t, second.ID, cancelled[0].ID)

	_, _, err = f.orders.ListAll(ctx, f.actor(t, "admin-1"), "lost", page)
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
}

// --- Admin override ---

func TestAdminOverride(t *testing.T) {
	f := newFixture(t)
	f.putProduct("p-1", "seller-1", 1, "10.00", 5)
	o := f.placeOrder(t, "buyer-1", OrderLineInput{ProductID: "p-1", Quantity: 1})
	ctx := context.Background()
	admin := f.actor(t, "admin-1")

	_, err := f.orders.AdminOverride(ctx, f.actor(t, "seller-1"), o.ID, OverrideInput{Status: strPtr("delivered")})
	assert.ErrorIs(t, err, apperrors.ErrForbidden)

	_, err = f.orders.AdminOverride(ctx, admin, o.ID, OverrideInput{})
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)

	_, err = f.orders.AdminOverride(ctx, admin, o.ID, OverrideInput{Status: strPtr("teleported")})
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)

	_, err = f.orders.AdminOverride(ctx, admin, o.ID, OverrideInput{PaymentStatus: strPtr("refunded")})
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)

	_, err = f.orders.AdminOverride(ctx, admin, o.ID, OverrideInput{Status: strPtr("pending")})
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)

	// Guards do not apply: pending straight to delivered.
	updated, err := f.orders.AdminOverride(ctx, admin, o.ID, OverrideInput{
		Status:        strPtr("delivered"),
		PaymentStatus: strPtr("paid"),
	})
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusDelivered, updated.Status)
	assert.Equal(t, domain.PaymentStatusPaid, updated.PaymentStatus)
	assert.Contains(t, f.inboxTypes(t, "buyer-1"), domain.NotificationOrderStatusChanged)
	assert.Contains(t, f.publisher.actions(), "order.payment_changed")

	refunded, err := f.orders.AdminOverride(ctx, admin, o.ID, OverrideInput{PaymentStatus: strPtr("refunded")})
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentStatusRefunded, refunded.PaymentStatus)
	assert.Equal(t, 4, f.stock(t, "p-1"))
}

// --- Payment results ---

func TestRecordPaymentResult(t *testing.T) {
	f := newFixture(t)
	f.putProduct("p-1", "seller-1", 1, "10.00", 5)
	paid := f.placeOrder(t, "buyer-1", OrderLineInput{ProductID: "p-1", Quantity: 1})
	failed := f.placeOrder(t, "buyer-1", OrderLineInput{ProductID: "p-1", Quantity: 1})
	ctx := context.Background()

	o, err := f.orders.RecordPaymentResult(ctx, paid.ID, domain.PaymentStatusPaid)
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentStatusPaid, o.PaymentStatus)
	assert.Equal(t, domain.OrderStatusPending, o.Status)

	_, err = f.orders.RecordPaymentResult(ctx, paid.ID, domain.PaymentStatusFailed)
	assert.ErrorIs(t, err, apperrors.ErrInvalidTransition)

	_, err = f.orders.RecordPaymentResult(ctx, failed.ID, domain.PaymentStatusFailed)
	require.NoError(t, err)

	_, err = f.orders.RecordPaymentResult(ctx, failed.ID, domain.PaymentStatusRefunded)
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)

	_, err = f.orders.RecordPaymentResult(ctx, "missing", domain.PaymentStatusPaid)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	assert.ElementsMatch(t,
		[]domain.NotificationType{domain.NotificationPaymentReceived, domain.NotificationPaymentFailed},
		f.inboxTypes(t, "buyer-1"))
}

func TestMergeLines_SortedByProduct(t *testing.T) {
	merged, err := mergeLines([]OrderLineInput{
		{ProductID: "p-3", Quantity: 1},
		{ProductID: "p-1", Quantity: 2},
		{ProductID: "p-3", Quantity: 4},
	})
	require.NoError(t, err)
	assert.Equal(t, []OrderLineInput{
		{ProductID: "p-1", Quantity: 2},
		{ProductID: "p-3", Quantity: 5},
	}, merged)
}

// The full flow from checkout to seller rating.
func TestMarketplaceScenario(t *testing.T) {
	f := newFixture(t)
	f.putProduct("p-vase", "seller-1", 1, "10.00", 5)
	ctx := context.Background()

	o := f.placeOrder(t, "buyer-1", OrderLineInput{ProductID: "p-vase", Quantity: 2})
	assert.True(t, o.TotalAmount.Equal(decimal.RequireFromString("20.00")))
	assert.Equal(t, 3, f.stock(t, "p-vase"))
	assert.Contains(t, f.inboxTypes(t, "seller-1"), domain.NotificationNewOrder)

	_, err := f.orders.Ship(ctx, f.actor(t, "seller-1"), o.ID)
	require.NoError(t, err)
	assert.Contains(t, f.inboxTypes(t, "buyer-1"), domain.NotificationOrderShipped)

	_, err = f.orders.ConfirmDelivery(ctx, f.actor(t, "buyer-1"), o.ID)
	require.NoError(t, err)

	r, err := f.reviews.Submit(ctx, f.actor(t, "buyer-1"), SubmitReviewInput{OrderID: o.ID, Rating: 4, Comment: "Lovely glaze"})
	require.NoError(t, err)
	assert.Equal(t, "seller-1", r.SellerID)
	assert.Contains(t, f.inboxTypes(t, "seller-1"), domain.NotificationReviewReceived)

	stats, err := f.reviews.SellerStats(ctx, "seller-1")
	require.NoError(t, err)
	assert.Equal(t, 4.0, stats.AverageRating)
	assert.Equal(t, 1, stats.TotalReviews)
	assert.Equal(t, 1, stats.Distribution[4])

	_, err = f.reviews.Submit(ctx, f.actor(t, "buyer-1"), SubmitReviewInput{OrderID: o.ID, Rating: 5})
	assert.ErrorIs(t, err, apperrors.ErrConflict)
}
