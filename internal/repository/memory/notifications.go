package memory

import (
	"context"
	"sort"
	"time"

	apperrors "github.com/sylwiakmieciak/madebyu-sub000/pkg/errors"

	"github.com/sylwiakmieciak/madebyu-sub000/internal/domain"
	"github.com/sylwiakmieciak/madebyu-sub000/internal/repository"
)

type notificationRepo struct {
	s *Store
}

func (r *notificationRepo) Create(_ context.Context, n *domain.Notification) error {
	r.s.write(func(st *state) { st.notifications[n.ID] = *n })
	return nil
}

func (r *notificationRepo) List(_ context.Context, filter repository.NotificationFilter) ([]domain.Notification, int, error) {
	matched := make([]domain.Notification, 0)
	r.s.read(func(st *state) {
		for _, n := range st.notifications {
			if n.UserID != filter.UserID || (filter.UnreadOnly && n.IsRead) {
				continue
			}
			matched = append(matched, n)
		}
	})
	sort.Slice(matched, func(i, j int) bool {
		if matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].ID > matched[j].ID
		}
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	items, total := paginate(matched, filter.Params)
	return items, total, nil
}

func (r *notificationRepo) MarkRead(_ context.Context, id, userID string, now time.Time) (*domain.Notification, error) {
	var (
		n     domain.Notification
		found bool
	)
	r.s.write(func(st *state) {
		cur, ok := st.notifications[id]
		if !ok || cur.UserID != userID {
			return
		}
		found = true
		cur.MarkRead(now)
		st.notifications[id] = cur
		n = cur
	})
	if !found {
		return nil, apperrors.NotFound("notification", id)
	}
	return &n, nil
}

func (r *notificationRepo) MarkAllRead(_ context.Context, userID string, now time.Time) (int, error) {
	changed := 0
	r.s.write(func(st *state) {
		for id, n := range st.notifications {
			if n.UserID != userID || n.IsRead {
				continue
			}
			n.MarkRead(now)
			st.notifications[id] = n
			changed++
		}
	})
	return changed, nil
}

func (r *notificationRepo) CountUnread(_ context.Context, userID string) (int, error) {
	count := 0
	r.s.read(func(st *state) {
		for _, n := range st.notifications {
			if n.UserID == userID && !n.IsRead {
				count++
			}
		}
	})
	return count, nil
}
