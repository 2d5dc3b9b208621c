package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	apperrors "github.com/sylwiakmieciak/madebyu-sub000/pkg/errors"
	"github.com/sylwiakmieciak/madebyu-sub000/pkg/pagination"

	"github.com/sylwiakmieciak/madebyu-sub000/internal/domain"
	"github.com/sylwiakmieciak/madebyu-sub000/internal/repository"
)

// UnreadCache caches unread counts. The store stays the source of truth.
type UnreadCache interface {
	// Get also returns the generation Set must be given after a miss.
	Get(ctx context.Context, userID string) (n int, ok bool, generation int64, err error)
	Set(ctx context.Context, userID string, n int, generation int64) error
	Invalidate(ctx context.Context, userIDs ...string) error
}

// NotificationService manages users' notification inboxes.
type NotificationService struct {
	store  repository.Store
	cache  UnreadCache
	now    func() time.Time
	logger *slog.Logger
}

// NewNotificationService creates a notification service. cache may be nil.
func NewNotificationService(store repository.Store, cache UnreadCache, logger *slog.Logger) *NotificationService {
	return &NotificationService{
		store:  store,
		cache:  cache,
		now:    func() time.Time { return time.Now().UTC() },
		logger: logger,
	}
}

// EmitInput holds the parameters for a new notification.
type EmitInput struct {
	UserID    string
	Type      domain.NotificationType
	Title     string
	Message   string
	RelatedID string
}

// Emit appends an unread notification to a user's inbox.
func (s *NotificationService) Emit(ctx context.Context, in EmitInput) (*domain.Notification, error) {
	if strings.TrimSpace(in.UserID) == "" {
		return nil, apperrors.InvalidInput("notification recipient is required")
	}
	if in.Type == "" {
		return nil, apperrors.InvalidInput("notification type is required")
	}

	n := &domain.Notification{
		ID:        uuid.New().String(),
		UserID:    in.UserID,
		Type:      in.Type,
		Title:     in.Title,
		Message:   in.Message,
		CreatedAt: s.now(),
	}
	if in.RelatedID != "" {
		related := in.RelatedID
		n.RelatedID = &related
	}

	if err := s.store.Notifications().Create(ctx, n); err != nil {
		return nil, fmt.Errorf("create notification: %w", err)
	}
	notificationsEmitted.WithLabelValues(string(in.Type)).Inc()
	s.invalidate(ctx, in.UserID)

	return n, nil
}

// List returns a page of the user's notifications, newest first.
func (s *NotificationService) List(ctx context.Context, userID string, unreadOnly bool, page pagination.Params) ([]domain.Notification, int, error) {
	items, total, err := s.store.Notifications().List(ctx, repository.NotificationFilter{
		UserID:     userID,
		UnreadOnly: unreadOnly,
		Params:     page,
	})
	if err != nil {
		return nil, 0, fmt.Errorf("list notifications: %w", err)
	}
	return items, total, nil
}

// MarkRead marks one of the user's notifications as read. Repeating the call
// changes nothing; the first read time is kept.
func (s *NotificationService) MarkRead(ctx context.Context, userID, id string) (*domain.Notification, error) {
	n, err := s.store.Notifications().MarkRead(ctx, id, userID, s.now())
	if err != nil {
		return nil, fmt.Errorf("mark notification read: %w", err)
	}
	s.invalidate(ctx, userID)
	return n, nil
}

// MarkAllRead marks every unread notification of the user and returns how
// many changed.
func (s *NotificationService) MarkAllRead(ctx context.Context, userID string) (int, error) {
	n, err := s.store.Notifications().MarkAllRead(ctx, userID, s.now())
	if err != nil {
		return 0, fmt.Errorf("mark all notifications read: %w", err)
	}
	s.invalidate(ctx, userID)
	return n, nil
}

// UnreadCount returns the number of unread notifications, served from the
// cache when possible.
func (s *NotificationService) UnreadCount(ctx context.Context, userID string) (int, error) {
	var generation int64
	cached := false
	if s.cache != nil {
		n, ok, gen, err := s.cache.Get(ctx, userID)
		if err != nil {
			s.logger.WarnContext(ctx, "unread count cache read failed",
				slog.String("user_id", userID),
				slog.String("error", err.Error()),
			)
		} else if ok {
			return n, nil
		} else {
			generation, cached = gen, true
		}
	}

	n, err := s.store.Notifications().CountUnread(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("count unread notifications: %w", err)
	}

	if cached {
		if err := s.cache.Set(ctx, userID, n, generation); err != nil {
			s.logger.WarnContext(ctx, "unread count cache write failed",
				slog.String("user_id", userID),
				slog.String("error", err.Error()),
			)
		}
	}
	return n, nil
}

func (s *NotificationService) invalidate(ctx context.Context, userID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, userID); err != nil {
		s.logger.WarnContext(ctx, "unread count cache invalidation failed",
			slog.String("user_id", userID),
			slog.String("error", err.Error()),
		)
	}
}
