package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/sylwiakmieciak/madebyu-sub000/pkg/database"
	apperrors "github.com/sylwiakmieciak/madebyu-sub000/pkg/errors"

	"github.com/sylwiakmieciak/madebyu-sub000/internal/domain"
	"github.com/sylwiakmieciak/madebyu-sub000/internal/repository"
)

const notificationColumns = `id, user_id, type, title, message, related_id, is_read, read_at, created_at`

// NotificationRepository implements repository.NotificationRepository using PostgreSQL.
type NotificationRepository struct {
	db database.DBTX
}

// NewNotificationRepository creates a new PostgreSQL-backed notification repository.
func NewNotificationRepository(db database.DBTX) *NotificationRepository {
	return &NotificationRepository{db: db}
}

func scanNotification(row pgx.Row) (*domain.Notification, error) {
	var (
		n   domain.Notification
		typ string
	)
	if err := row.Scan(
		&n.ID,
		&n.UserID,
		&typ,
		&n.Title,
		&n.Message,
		&n.RelatedID,
		&n.IsRead,
		&n.ReadAt,
		&n.CreatedAt,
	); err != nil {
		return nil, err
	}
	n.Type = domain.NotificationType(typ)
	return &n, nil
}

// Create inserts a notification.
func (r *NotificationRepository) Create(ctx context.Context, n *domain.Notification) error {
	query := `
		INSERT INTO notifications (id, user_id, type, title, message, related_id, is_read, read_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	_, err := r.db.Exec(ctx, query,
		n.ID,
		n.UserID,
		string(n.Type),
		n.Title,
		n.Message,
		n.RelatedID,
		n.IsRead,
		n.ReadAt,
		n.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert notification: %w", err)
	}
	return nil
}

// List returns a user's notifications, newest first.
func (r *NotificationRepository) List(ctx context.Context, filter repository.NotificationFilter) ([]domain.Notification, int, error) {
	where := "user_id = $1"
	if filter.UnreadOnly {
		where += " AND NOT is_read"
	}
	limit, offset := limitOffset(filter.Page, filter.PerPage)

	from := "FROM notifications WHERE " + where
	query := `
		SELECT ` + notificationColumns + `, count(*) OVER() AS total_count
		` + from + `
		ORDER BY created_at DESC, id DESC
		LIMIT $2 OFFSET $3`

	rows, err := r.db.Query(ctx, query, filter.UserID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list notifications: %w", err)
	}
	defer rows.Close()

	var total int
	notifications := make([]domain.Notification, 0)
	for rows.Next() {
		n, err := scanNotification(totalCountRow{rows: rows, total: &total})
		if err != nil {
			return nil, 0, fmt.Errorf("scan notification row: %w", err)
		}
		notifications = append(notifications, *n)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate notification rows: %w", err)
	}
	if len(notifications) == 0 && offset > 0 {
		if total, err = countPastLastPage(ctx, r.db, from, filter.UserID); err != nil {
			return nil, 0, fmt.Errorf("count notifications: %w", err)
		}
	}
	return notifications, total, nil
}

// MarkRead marks one notification of userID as read. A notification that
// belongs to someone else is reported as not found.
func (r *NotificationRepository) MarkRead(ctx context.Context, id, userID string, now time.Time) (*domain.Notification, error) {
	query := `
		UPDATE notifications
		SET is_read = TRUE, read_at = COALESCE(read_at, $1)
		WHERE id = $2 AND user_id = $3
		RETURNING ` + notificationColumns

	n, err := scanNotification(r.db.QueryRow(ctx, query, now, id, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFound("notification", id)
		}
		return nil, fmt.Errorf("mark notification read: %w", err)
	}
	return n, nil
}

// MarkAllRead marks every unread notification of userID as read.
func (r *NotificationRepository) MarkAllRead(ctx context.Context, userID string, now time.Time) (int, error) {
	ct, err := r.db.Exec(ctx,
		`UPDATE notifications SET is_read = TRUE, read_at = $1 WHERE user_id = $2 AND NOT is_read`,
		now, userID,
	)
	if err != nil {
		return 0, fmt.Errorf("mark all notifications read: %w", err)
	}
	return int(ct.RowsAffected()), nil
}

// CountUnread counts a user's unread notifications.
func (r *NotificationRepository) CountUnread(ctx context.Context, userID string) (int, error) {
	var count int
	err := r.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM notifications WHERE user_id = $1 AND NOT is_read`,
		userID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count unread notifications: %w", err)
	}
	return count, nil
}
