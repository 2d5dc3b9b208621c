package service

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/sylwiakmieciak/madebyu-sub000/pkg/errors"
	"github.com/sylwiakmieciak/madebyu-sub000/pkg/pagination"

	"github.com/sylwiakmieciak/madebyu-sub000/internal/cache"
	"github.com/sylwiakmieciak/madebyu-sub000/internal/domain"
	"github.com/sylwiakmieciak/madebyu-sub000/internal/repository"
	"github.com/sylwiakmieciak/madebyu-sub000/internal/repository/memory"
)

func emit(t *testing.T, svc *NotificationService, userID string) *domain.Notification {
	t.Helper()
	n, err := svc.Emit(context.Background(), EmitInput{
		UserID:    userID,
		Type:      domain.NotificationOrderShipped,
		Title:     "Order shipped",
		Message:   "On its way",
		RelatedID: "o-1",
	})
	require.NoError(t, err)
	return n
}

func TestNotifications_MarkReadTwiceKeepsFirstReadAt(t *testing.T) {
	svc := NewNotificationService(memory.NewStore(), nil, newTestLogger())
	first := time.Date(2025, 3, 14, 9, 30, 0, 0, time.UTC)
	svc.now = func() time.Time { return first }
	n := emit(t, svc, "u-1")
	ctx := context.Background()

	read, err := svc.MarkRead(ctx, "u-1", n.ID)
	require.NoError(t, err)
	require.NotNil(t, read.ReadAt)
	assert.True(t, read.IsRead)

	svc.now = func() time.Time { return first.Add(time.Hour) }
	again, err := svc.MarkRead(ctx, "u-1", n.ID)
	require.NoError(t, err)
	assert.True(t, again.ReadAt.Equal(first))
}

func TestNotifications_OtherUsersInboxIsNotFound(t *testing.T) {
	svc := NewNotificationService(memory.NewStore(), nil, newTestLogger())
	n := emit(t, svc, "u-1")

	_, err := svc.MarkRead(context.Background(), "u-2", n.ID)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestNotifications_EmitValidation(t *testing.T) {
	svc := NewNotificationService(memory.NewStore(), nil, newTestLogger())
	ctx := context.Background()

	_, err := svc.Emit(ctx, EmitInput{Type: domain.NotificationNewOrder})
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)

	_, err = svc.Emit(ctx, EmitInput{UserID: "u-1"})
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
}

func TestNotifications_ListAndMarkAll(t *testing.T) {
	svc := NewNotificationService(memory.NewStore(), nil, newTestLogger())
	ctx := context.Background()
	first := emit(t, svc, "u-1")
	emit(t, svc, "u-1")
	emit(t, svc, "u-1")
	emit(t, svc, "u-2")

	_, err := svc.MarkRead(ctx, "u-1", first.ID)
	require.NoError(t, err)

	unread, total, err := svc.List(ctx, "u-1", true, pagination.DefaultParams())
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	for _, n := range unread {
		assert.False(t, n.IsRead)
	}

	_, total, err = svc.List(ctx, "u-1", false, pagination.Params{Page: 1, PerPage: 1})
	require.NoError(t, err)
	assert.Equal(t, 3, total)

	changed, err := svc.MarkAllRead(ctx, "u-1")
	require.NoError(t, err)
	assert.Equal(t, 2, changed)

	changed, err = svc.MarkAllRead(ctx, "u-1")
	require.NoError(t, err)
	assert.Zero(t, changed)

	count, err := svc.UnreadCount(ctx, "u-2")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestNotifications_UnreadCountCache(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	svc := NewNotificationService(memory.NewStore(), cache.NewUnreadCounts(client, time.Minute), newTestLogger())
	ctx := context.Background()

	emit(t, svc, "u-1")
	count, err := svc.UnreadCount(ctx, "u-1")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
	assert.True(t, mr.Exists("notifications:unread:u-1"))

	// Emitting drops the cached value so the next read sees the new row.
	n := emit(t, svc, "u-1")
	assert.False(t, mr.Exists("notifications:unread:u-1"))
	count, err = svc.UnreadCount(ctx, "u-1")
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	_, err = svc.MarkRead(ctx, "u-1", n.ID)
	require.NoError(t, err)
	count, err = svc.UnreadCount(ctx, "u-1")
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	// With Redis gone the store still answers.
	mr.Close()
	emit(t, svc, "u-1")
	count, err = svc.UnreadCount(ctx, "u-1")
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

// countHookStore runs onCount once, right after the first unread count is read
// from the store.
type countHookStore struct {
	*memory.Store
	onCount func()
}

func (s *countHookStore) Notifications() repository.NotificationRepository {
	return countHookNotifications{NotificationRepository: s.Store.Notifications(), store: s}
}

type countHookNotifications struct {
	repository.NotificationRepository
	store *countHookStore
}

func (r countHookNotifications) CountUnread(ctx context.Context, userID string) (int, error) {
	n, err := r.NotificationRepository.CountUnread(ctx, userID)
	if hook := r.store.onCount; hook != nil {
		r.store.onCount = nil
		hook()
	}
	return n, err
}

func TestNotifications_EmitDuringCountIsNotMasked(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	store := &countHookStore{Store: memory.NewStore()}
	svc := NewNotificationService(store, cache.NewUnreadCounts(client, time.Minute), newTestLogger())
	ctx := context.Background()

	emit(t, svc, "u-1")
	store.onCount = func() { emit(t, svc, "u-1") }

	count, err := svc.UnreadCount(ctx, "u-1")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
	assert.False(t, mr.Exists("notifications:unread:u-1"), "count read before the emit is not cached")

	count, err = svc.UnreadCount(ctx, "u-1")
	require.NoError(t, err)
	assert.Equal(t, 2, count)
	assert.True(t, mr.Exists("notifications:unread:u-1"))
}
