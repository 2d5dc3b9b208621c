package service

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	apperrors "github.com/sylwiakmieciak/madebyu-sub000/pkg/errors"
	"github.com/sylwiakmieciak/madebyu-sub000/pkg/pagination"

	"github.com/sylwiakmieciak/madebyu-sub000/internal/domain"
	"github.com/sylwiakmieciak/madebyu-sub000/internal/repository/memory"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

// recordingPublisher collects published events and can be told to fail.
type recordingPublisher struct {
	mu     sync.Mutex
	events []domain.Event
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, e domain.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, e)
	return nil
}

func (p *recordingPublisher) actions() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.AggregateType+"."+e.Action)
	}
	return out
}

type fixture struct {
	store         *memory.Store
	publisher     *recordingPublisher
	notifications *NotificationService
	orders        *OrderService
	moderation    *ModerationService
	comments      *CommentService
	reviews       *ReviewService
	actors        *ActorLoader
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := memory.NewStore()
	log := newTestLogger()

	for _, u := range []domain.User{
		{ID: "buyer-1", Email: "buyer@madebyu.test", Role: domain.RoleUser},
		{ID: "buyer-2", Email: "buyer2@madebyu.test", Role: domain.RoleUser},
		{ID: "seller-1", Email: "seller@madebyu.test", Role: domain.RoleUser},
		{ID: "seller-2", Email: "seller2@madebyu.test", Role: domain.RoleUser},
		{ID: "admin-1", Email: "admin@madebyu.test", Role: domain.RoleAdmin},
		{ID: "mod-1", Email: "mod@madebyu.test", Role: domain.RoleUser, CanModerateProducts: true, ModerationCategories: []int64{1}},
		{ID: "mod-all", Email: "modall@madebyu.test", Role: domain.RoleUser, CanModerateProducts: true},
		{ID: "cmod-1", Email: "cmod@madebyu.test", Role: domain.RoleUser, CanModerateComments: true},
	} {
		store.PutUser(u)
	}

	pub := &recordingPublisher{}
	notifications := NewNotificationService(store, nil, log)
	dispatcher := NewDispatcher(notifications, pub, log)

	return &fixture{
		store:         store,
		publisher:     pub,
		notifications: notifications,
		orders:        NewOrderService(store, dispatcher, log),
		moderation:    NewModerationService(store, dispatcher, log),
		comments:      NewCommentService(store, dispatcher, nil, log),
		reviews:       NewReviewService(store, dispatcher, nil, log),
		actors:        NewActorLoader(store),
	}
}

func (f *fixture) actor(t *testing.T, userID string) domain.Actor {
	t.Helper()
	a, err := f.actors.Load(context.Background(), userID)
	require.NoError(t, err)
	return a
}

func (f *fixture) putProduct(id, sellerID string, categoryID int64, price string, stock int) {
	f.store.PutProduct(domain.Product{
		ID:               id,
		SellerID:         sellerID,
		CategoryID:       categoryID,
		Name:             "Handmade " + id,
		Price:            decimal.RequireFromString(price),
		StockQuantity:    stock,
		Status:           domain.ProductStatusPublished,
		ModerationStatus: domain.ModerationApproved,
	})
}

func (f *fixture) putPendingProduct(id, sellerID string, categoryID int64, stock int) {
	f.store.PutProduct(domain.Product{
		ID:               id,
		SellerID:         sellerID,
		CategoryID:       categoryID,
		Name:             "Handmade " + id,
		Price:            decimal.NewFromInt(15),
		StockQuantity:    stock,
		Status:           domain.ProductStatusDraft,
		ModerationStatus: domain.ModerationPending,
	})
}

func (f *fixture) stock(t *testing.T, productID string) int {
	t.Helper()
	p, err := f.store.Products().GetByID(context.Background(), productID)
	require.NoError(t, err)
	return p.StockQuantity
}

func (f *fixture) inbox(t *testing.T, userID string) []domain.Notification {
	t.Helper()
	items, _, err := f.notifications.List(context.Background(), userID, false, pagination.DefaultParams())
	require.NoError(t, err)
	return items
}

func (f *fixture) inboxTypes(t *testing.T, userID string) []domain.NotificationType {
	t.Helper()
	var types []domain.NotificationType
	for _, n := range f.inbox(t, userID) {
		types = append(types, n.Type)
	}
	return types
}

func testShipping() domain.ShippingInfo {
	return domain.ShippingInfo{
		Name:    "Ada Buyer",
		Email:   "buyer@madebyu.test",
		Address: "1 Pottery Lane",
		City:    "Krakow",
		Country: "PL",
	}
}

func (f *fixture) placeOrder(t *testing.T, buyerID string, lines ...OrderLineInput) *domain.Order {
	t.Helper()
	o, err := f.orders.Create(context.Background(), f.actor(t, buyerID), CreateOrderInput{
		Shipping: testShipping(),
		Items:    lines,
	})
	require.NoError(t, err)
	return o
}

func appErrorCode(t *testing.T, err error) string {
	t.Helper()
	var appErr *apperrors.AppError
	require.True(t, errors.As(err, &appErr), "expected an AppError, got %v", err)
	return appErr.Code
}
