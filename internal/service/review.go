package service

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	apperrors "github.com/sylwiakmieciak/madebyu-sub000/pkg/errors"
	"github.com/sylwiakmieciak/madebyu-sub000/pkg/pagination"

	"github.com/sylwiakmieciak/madebyu-sub000/internal/domain"
	"github.com/sylwiakmieciak/madebyu-sub000/internal/policy"
	"github.com/sylwiakmieciak/madebyu-sub000/internal/repository"
)

const aggregateReview = "review"

// ReviewService handles seller reviews.
type ReviewService struct {
	store      repository.Store
	dispatcher *Dispatcher
	sanitize   Sanitizer
	now        func() time.Time
	logger     *slog.Logger
}

// NewReviewService creates a new review service. A nil sanitizer falls back to
// StrictSanitizer.
func NewReviewService(store repository.Store, dispatcher *Dispatcher, sanitize Sanitizer, logger *slog.Logger) *ReviewService {
	if sanitize == nil {
		sanitize = StrictSanitizer()
	}
	return &ReviewService{
		store:      store,
		dispatcher: dispatcher,
		sanitize:   sanitize,
		now:        func() time.Time { return time.Now().UTC() },
		logger:     logger,
	}
}

// SubmitReviewInput holds the parameters for reviewing a seller.
type SubmitReviewInput struct {
	OrderID  string
	SellerID string
	Rating   int
	Comment  string
}

// loadReviewableOrder returns the order when actor bought it and it has been
// delivered.
func (s *ReviewService) loadReviewableOrder(ctx context.Context, actor domain.Actor, orderID string) (*domain.Order, error) {
	o, err := s.store.Orders().GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if err := policy.Authorize(actor, policy.ReviewOrder, policy.Order(o)); err != nil {
		return nil, err
	}
	if o.Status != domain.OrderStatusDelivered {
		return nil, apperrors.Forbidden("only delivered orders can be reviewed")
	}
	return o, nil
}

// Submit rates one seller of a delivered order. Each (order, seller) pair can
// be reviewed once.
func (s *ReviewService) Submit(ctx context.Context, actor domain.Actor, in SubmitReviewInput) (*domain.Review, error) {
	if !domain.IsValidRating(in.Rating) {
		return nil, apperrors.InvalidInput(fmt.Sprintf("rating must be between %d and %d", domain.MinRating, domain.MaxRating))
	}
	comment, err := cleanText(s.sanitize, "comment", in.Comment, false)
	if err != nil {
		return nil, err
	}

	o, err := s.loadReviewableOrder(ctx, actor, in.OrderID)
	if err != nil {
		return nil, err
	}

	sellerID := strings.TrimSpace(in.SellerID)
	sellers := o.SellerIDs()
	switch {
	case sellerID == "" && len(sellers) == 1:
		sellerID = sellers[0]
	case sellerID == "":
		return nil, apperrors.InvalidInput("seller_id is required for orders with several sellers")
	case !o.HasSeller(sellerID):
		return nil, apperrors.InvalidInput(fmt.Sprintf("seller %s is not part of order %s", sellerID, o.ID))
	}

	exists, err := s.store.Reviews().Exists(ctx, o.ID, sellerID)
	if err != nil {
		return nil, fmt.Errorf("check existing review: %w", err)
	}
	if exists {
		return nil, apperrors.Conflict("you have already reviewed this seller for this order")
	}

	r := &domain.Review{
		ID:        uuid.New().String(),
		SellerID:  sellerID,
		BuyerID:   actor.UserID,
		OrderID:   o.ID,
		Rating:    in.Rating,
		Comment:   comment,
		CreatedAt: s.now(),
	}
	if err := s.store.Reviews().Create(ctx, r); err != nil {
		return nil, err
	}

	reviewsCreated.Inc()
	s.logger.InfoContext(ctx, "review submitted",
		slog.String("review_id", r.ID),
		slog.String("order_id", r.OrderID),
		slog.String("seller_id", r.SellerID),
		slog.Int("rating", r.Rating),
	)
	s.dispatcher.Dispatch(ctx, []domain.Event{{
		AggregateType: aggregateReview,
		AggregateID:   r.ID,
		Action:        "created",
		Notification:  domain.NotificationReviewReceived,
		Recipients:    []string{r.SellerID},
		Title:         "New review",
		Message:       fmt.Sprintf("You received a %d-star review for order %s.", r.Rating, o.OrderNumber),
		Payload: map[string]any{
			"review_id": r.ID,
			"order_id":  r.OrderID,
			"seller_id": r.SellerID,
			"buyer_id":  r.BuyerID,
			"rating":    r.Rating,
		},
	}})
	return r, nil
}

// ReviewableSellers returns the sellers of a delivered order that the buyer
// has not reviewed yet.
func (s *ReviewService) ReviewableSellers(ctx context.Context, actor domain.Actor, orderID string) ([]string, error) {
	o, err := s.loadReviewableOrder(ctx, actor, orderID)
	if err != nil {
		return nil, err
	}
	reviewed, err := s.store.Reviews().ReviewedSellers(ctx, o.ID)
	if err != nil {
		return nil, fmt.Errorf("list reviewed sellers: %w", err)
	}

	pending := make([]string, 0, len(o.SellerIDs()))
	for _, id := range o.SellerIDs() {
		if !slices.Contains(reviewed, id) {
			pending = append(pending, id)
		}
	}
	return pending, nil
}

// SellerStats returns a seller's rating summary. A seller with no reviews gets
// zeroed stats.
func (s *ReviewService) SellerStats(ctx context.Context, sellerID string) (*domain.SellerStats, error) {
	stats, err := s.store.Reviews().SellerStats(ctx, sellerID)
	if err != nil {
		return nil, fmt.Errorf("seller stats: %w", err)
	}
	return stats, nil
}

// ListBySeller returns a seller's reviews, newest first.
func (s *ReviewService) ListBySeller(ctx context.Context, sellerID string, page pagination.Params) ([]domain.Review, int, error) {
	reviews, total, err := s.store.Reviews().ListBySeller(ctx, sellerID, page)
	if err != nil {
		return nil, 0, fmt.Errorf("list seller reviews: %w", err)
	}
	return reviews, total, nil
}
