package service

import (
	"context"
	"log/slog"

	"github.com/sylwiakmieciak/madebyu-sub000/internal/domain"
)

// EventPublisher forwards domain events to the message broker.
type EventPublisher interface {
	Publish(ctx context.Context, e domain.Event) error
}

// Dispatcher delivers the events of a committed transition: one notification
// per recipient and one broker message per event. Nothing it does can fail the
// transition that produced the events.
type Dispatcher struct {
	notifications *NotificationService
	publisher     EventPublisher
	logger        *slog.Logger
}

// NewDispatcher creates a dispatcher. publisher may be nil when no broker is
// configured.
func NewDispatcher(notifications *NotificationService, publisher EventPublisher, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		notifications: notifications,
		publisher:     publisher,
		logger:        logger,
	}
}

// Dispatch must only be called after the transaction that produced events has
// committed.
func (d *Dispatcher) Dispatch(ctx context.Context, events []domain.Event) {
	if len(events) == 0 {
		return
	}
	// The request may already be finished; delivery should not be cut short by it.
	ctx = context.WithoutCancel(ctx)

	for _, e := range events {
		for _, userID := range e.Recipients {
			_, err := d.notifications.Emit(ctx, EmitInput{
				UserID:    userID,
				Type:      e.Notification,
				Title:     e.Title,
				Message:   e.Message,
				RelatedID: e.AggregateID,
			})
			if err != nil {
				sideEffectFailures.WithLabelValues("notification").Inc()
				d.logger.ErrorContext(ctx, "failed to emit notification",
					slog.String("user_id", userID),
					slog.String("type", string(e.Notification)),
					slog.String("related_id", e.AggregateID),
					slog.String("error", err.Error()),
				)
			}
		}

		if d.publisher == nil {
			continue
		}
		if err := d.publisher.Publish(ctx, e); err != nil {
			sideEffectFailures.WithLabelValues("publish").Inc()
			d.logger.ErrorContext(ctx, "failed to publish domain event",
				slog.String("aggregate_type", e.AggregateType),
				slog.String("action", e.Action),
				slog.String("aggregate_id", e.AggregateID),
				slog.String("error", err.Error()),
			)
		}
	}
}
