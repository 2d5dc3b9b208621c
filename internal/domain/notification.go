package domain

import "time"

// NotificationType identifies the domain event a notification reports.
type NotificationType string

// Notification type constants.
const (
	NotificationNewOrder           NotificationType = "new_order"
	NotificationOrderConfirmed     NotificationType = "order_confirmed"
	NotificationOrderShipped       NotificationType = "order_shipped"
	NotificationOrderDelivered     NotificationType = "order_delivered"
	NotificationOrderCancelled     NotificationType = "order_cancelled"
	NotificationOrderStatusChanged NotificationType = "order_status_changed"
	NotificationPaymentReceived    NotificationType = "payment_received"
	NotificationPaymentFailed      NotificationType = "payment_failed"
	NotificationProductApproved    NotificationType = "product_approved"
	NotificationProductRejected    NotificationType = "product_rejected"
	NotificationCommentApproved    NotificationType = "comment_approved"
	NotificationCommentRejected    NotificationType = "comment_rejected"
	NotificationReviewReceived     NotificationType = "review_received"
)

// Notification is one entry of a user's inbox. Only IsRead and ReadAt ever
// change after creation.
type Notification struct {
	ID        string           `json:"id"`
	UserID    string           `json:"user_id"`
	Type      NotificationType `json:"type"`
	Title     string           `json:"title"`
	Message   string           `json:"message"`
	RelatedID *string          `json:"related_id,omitempty"`
	IsRead    bool             `json:"is_read"`
	ReadAt    *time.Time       `json:"read_at,omitempty"`
	CreatedAt time.Time        `json:"created_at"`
}

// MarkRead flips the notification to read. The first read time is kept.
func (n *Notification) MarkRead(now time.Time) {
	if n.IsRead {
		return
	}
	n.IsRead = true
	n.ReadAt = &now
}
