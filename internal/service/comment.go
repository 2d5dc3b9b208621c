package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/sylwiakmieciak/madebyu-sub000/pkg/pagination"

	"github.com/sylwiakmieciak/madebyu-sub000/internal/domain"
	"github.com/sylwiakmieciak/madebyu-sub000/internal/policy"
	"github.com/sylwiakmieciak/madebyu-sub000/internal/repository"
)

const aggregateComment = "comment"

// CommentService handles product comments and their moderation.
type CommentService struct {
	store      repository.Store
	dispatcher *Dispatcher
	sanitize   Sanitizer
	now        func() time.Time
	logger     *slog.Logger
}

// NewCommentService creates a new comment service. A nil sanitizer falls back
// to StrictSanitizer.
func NewCommentService(store repository.Store, dispatcher *Dispatcher, sanitize Sanitizer, logger *slog.Logger) *CommentService {
	if sanitize == nil {
		sanitize = StrictSanitizer()
	}
	return &CommentService{
		store:      store,
		dispatcher: dispatcher,
		sanitize:   sanitize,
		now:        func() time.Time { return time.Now().UTC() },
		logger:     logger,
	}
}

// Submit adds a comment to a product. It stays hidden from others until a
// moderator approves it.
func (s *CommentService) Submit(ctx context.Context, actor domain.Actor, productID, text string) (*domain.Comment, error) {
	body, err := cleanText(s.sanitize, "comment", text, true)
	if err != nil {
		return nil, err
	}
	if _, err := s.store.Products().GetByID(ctx, productID); err != nil {
		return nil, err
	}

	c := &domain.Comment{
		ID:        uuid.New().String(),
		ProductID: productID,
		UserID:    actor.UserID,
		Comment:   body,
		CreatedAt: s.now(),
	}
	if err := s.store.Comments().Create(ctx, c); err != nil {
		return nil, fmt.Errorf("create comment: %w", err)
	}

	s.logger.InfoContext(ctx, "comment submitted",
		slog.String("comment_id", c.ID),
		slog.String("product_id", productID),
		slog.String("user_id", actor.UserID),
	)
	return c, nil
}

// ListForProduct returns the approved comments of a product plus the pending
// ones the viewer wrote. viewerID is empty for anonymous visitors.
func (s *CommentService) ListForProduct(ctx context.Context, productID, viewerID string, page pagination.Params) ([]domain.Comment, int, error) {
	comments, total, err := s.store.Comments().ListVisible(ctx, productID, viewerID, page)
	if err != nil {
		return nil, 0, fmt.Errorf("list comments: %w", err)
	}
	return comments, total, nil
}

// ListPending returns comments awaiting moderation, oldest first.
func (s *CommentService) ListPending(ctx context.Context, actor domain.Actor, page pagination.Params) ([]domain.Comment, int, error) {
	if err := policy.Authorize(actor, policy.ModerateComment, policy.None()); err != nil {
		return nil, 0, err
	}
	comments, total, err := s.store.Comments().ListPending(ctx, page)
	if err != nil {
		return nil, 0, fmt.Errorf("list pending comments: %w", err)
	}
	return comments, total, nil
}

// Approve makes a comment public. Approving it again changes nothing and
// notifies nobody.
func (s *CommentService) Approve(ctx context.Context, actor domain.Actor, id string) (*domain.Comment, error) {
	if err := policy.Authorize(actor, policy.ModerateComment, policy.None()); err != nil {
		return nil, err
	}

	c, err := s.store.Comments().GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	changed, err := s.store.Comments().Approve(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("approve comment: %w", err)
	}
	c.Approved = true
	if !changed {
		return c, nil
	}

	moderationDecisions.WithLabelValues("comment", "approved").Inc()
	s.logger.InfoContext(ctx, "comment approved",
		slog.String("comment_id", c.ID),
		slog.String("moderator_id", actor.UserID),
	)
	s.dispatcher.Dispatch(ctx, []domain.Event{{
		AggregateType: aggregateComment,
		AggregateID:   c.ID,
		Action:        "approved",
		Notification:  domain.NotificationCommentApproved,
		Recipients:    []string{c.UserID},
		Title:         "Comment approved",
		Message:       "Your comment is now visible to everyone.",
		Payload:       commentPayload(c),
	}})
	return c, nil
}

// Reject deletes a comment and tells its author.
func (s *CommentService) Reject(ctx context.Context, actor domain.Actor, id string) error {
	if err := policy.Authorize(actor, policy.ModerateComment, policy.None()); err != nil {
		return err
	}

	c, err := s.store.Comments().GetByID(ctx, id)
	if err != nil {
		return err
	}
	if err := s.store.Comments().Delete(ctx, id); err != nil {
		return err
	}

	moderationDecisions.WithLabelValues("comment", "rejected").Inc()
	s.logger.InfoContext(ctx, "comment rejected",
		slog.String("comment_id", c.ID),
		slog.String("moderator_id", actor.UserID),
	)
	s.dispatcher.Dispatch(ctx, []domain.Event{{
		AggregateType: aggregateComment,
		AggregateID:   c.ID,
		Action:        "rejected",
		Notification:  domain.NotificationCommentRejected,
		Recipients:    []string{c.UserID},
		Title:         "Comment removed",
		Message:       "Your comment did not pass moderation and was removed.",
		Payload:       commentPayload(c),
	}})
	return nil
}

func commentPayload(c *domain.Comment) map[string]any {
	return map[string]any{
		"comment_id": c.ID,
		"product_id": c.ProductID,
		"user_id":    c.UserID,
	}
}
