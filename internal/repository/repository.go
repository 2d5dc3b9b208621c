package repository

import (
	"context"
	"errors"
	"time"

	"github.com/sylwiakmieciak/madebyu-sub000/pkg/pagination"

	"github.com/sylwiakmieciak/madebyu-sub000/internal/domain"
)

// ErrStockUnavailable is returned by ProductRepository.DecrementStock when the
// product does not exist, is not purchasable or has fewer units than asked.
var ErrStockUnavailable = errors.New("stock unavailable")

// OrderFilter defines filter criteria for listing orders. At most one of
// BuyerID and SellerID is normally set.
type OrderFilter struct {
	BuyerID  *string
	SellerID *string
	Status   *domain.OrderStatus
	pagination.Params
}

// ProductModerationFilter selects products for the moderation queue.
type ProductModerationFilter struct {
	Status domain.ModerationStatus
	Scope  domain.CategoryScope
	pagination.Params
}

// NotificationFilter selects a user's notifications.
type NotificationFilter struct {
	UserID     string
	UnreadOnly bool
	pagination.Params
}

// UserRepository reads marketplace accounts.
type UserRepository interface {
	GetByID(ctx context.Context, id string) (*domain.User, error)
}

// ProductRepository covers the product fields checkout and moderation touch.
type ProductRepository interface {
	GetByID(ctx context.Context, id string) (*domain.Product, error)

	// GetForUpdate reads a product and locks its row until the transaction ends.
	GetForUpdate(ctx context.Context, id string) (*domain.Product, error)

	// DecrementStock atomically takes qty units from a purchasable product and
	// returns the product as it is after the decrement.
	DecrementStock(ctx context.Context, id string, qty int) (*domain.Product, error)

	// RestoreStock gives qty units back.
	RestoreStock(ctx context.Context, id string, qty int) error

	// UpdateModeration persists the moderation and publication fields.
	UpdateModeration(ctx context.Context, p *domain.Product) error

	ListForModeration(ctx context.Context, filter ProductModerationFilter) ([]domain.Product, int, error)
	CountByModerationStatus(ctx context.Context, scope domain.CategoryScope) (*domain.ModerationStats, error)
}

// OrderRepository defines order persistence.
type OrderRepository interface {
	// Create inserts an order and its items.
	Create(ctx context.Context, order *domain.Order) error

	// GetByID retrieves an order with its items.
	GetByID(ctx context.Context, id string) (*domain.Order, error)

	// GetForUpdate is GetByID with the order row locked until the transaction ends.
	GetForUpdate(ctx context.Context, id string) (*domain.Order, error)

	// List returns orders matching the filter along with the total count.
	List(ctx context.Context, filter OrderFilter) ([]domain.Order, int, error)

	// UpdateStatus writes both status axes.
	UpdateStatus(ctx context.Context, id string, status domain.OrderStatus, payment domain.PaymentStatus, now time.Time) error
}

// CommentRepository defines product comment persistence.
type CommentRepository interface {
	Create(ctx context.Context, c *domain.Comment) error
	GetByID(ctx context.Context, id string) (*domain.Comment, error)

	// ListVisible returns the approved comments of a product plus the pending
	// ones written by viewerID (when non-empty), newest first.
	ListVisible(ctx context.Context, productID, viewerID string, page pagination.Params) ([]domain.Comment, int, error)
	ListPending(ctx context.Context, page pagination.Params) ([]domain.Comment, int, error)

	// Approve sets approved and reports whether the row changed.
	Approve(ctx context.Context, id string) (bool, error)
	Delete(ctx context.Context, id string) error
}

// ReviewRepository defines seller review persistence.
type ReviewRepository interface {
	// Create inserts a review. A second review for the same order and seller
	// fails with a Conflict error.
	Create(ctx context.Context, r *domain.Review) error
	Exists(ctx context.Context, orderID, sellerID string) (bool, error)
	ReviewedSellers(ctx context.Context, orderID string) ([]string, error)
	SellerStats(ctx context.Context, sellerID string) (*domain.SellerStats, error)
	ListBySeller(ctx context.Context, sellerID string, page pagination.Params) ([]domain.Review, int, error)
}

// NotificationRepository defines inbox persistence.
type NotificationRepository interface {
	Create(ctx context.Context, n *domain.Notification) error
	List(ctx context.Context, filter NotificationFilter) ([]domain.Notification, int, error)

	// MarkRead flips one of userID's notifications to read, keeping an
	// existing read_at, and returns it.
	MarkRead(ctx context.Context, id, userID string, now time.Time) (*domain.Notification, error)

	// MarkAllRead flips every unread notification of userID and returns how many changed.
	MarkAllRead(ctx context.Context, userID string, now time.Time) (int, error)
	CountUnread(ctx context.Context, userID string) (int, error)
}

// Store groups the repositories over one storage backend. Repositories
// obtained from the Store passed to WithTx's callback share its transaction.
type Store interface {
	Users() UserRepository
	Products() ProductRepository
	Orders() OrderRepository
	Comments() CommentRepository
	Reviews() ReviewRepository
	Notifications() NotificationRepository

	// WithTx runs fn in a transaction, committing when fn returns nil and
	// rolling back otherwise.
	WithTx(ctx context.Context, fn func(tx Store) error) error

	Ping(ctx context.Context) error
}
