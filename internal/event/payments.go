package event

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	apperrors "github.com/sylwiakmieciak/madebyu-sub000/pkg/errors"
	pkgkafka "github.com/sylwiakmieciak/madebyu-sub000/pkg/kafka"

	"github.com/sylwiakmieciak/madebyu-sub000/internal/domain"
)

// Payment result event types, published by the payment gateway integration on
// the topics of the same name under the madebyu prefix.
const (
	EventPaymentSucceeded = "payment.succeeded"
	EventPaymentFailed    = "payment.failed"
)

// PaymentResultData is the payload of a payment result event.
type PaymentResultData struct {
	OrderID   string `json:"order_id"`
	PaymentID string `json:"payment_id,omitempty"`
	Reason    string `json:"reason,omitempty"`
}

// PaymentRecorder applies a payment outcome to an order.
type PaymentRecorder interface {
	RecordPaymentResult(ctx context.Context, orderID string, result domain.PaymentStatus) (*domain.Order, error)
}

// PaymentHandler routes payment result events to the order service.
type PaymentHandler struct {
	recorder PaymentRecorder
	logger   *slog.Logger
}

// NewPaymentHandler creates a payment result handler.
func NewPaymentHandler(recorder PaymentRecorder, logger *slog.Logger) *PaymentHandler {
	return &PaymentHandler{recorder: recorder, logger: logger}
}

// Handle processes one payment result. Events that can never apply (unknown
// order, order no longer awaiting payment, bad payload) are logged and
// acknowledged; everything else is returned so the consumer retries it.
func (h *PaymentHandler) Handle(ctx context.Context, ev *pkgkafka.Event) error {
	var result domain.PaymentStatus
	switch ev.EventType {
	case EventPaymentSucceeded:
		result = domain.PaymentStatusPaid
	case EventPaymentFailed:
		result = domain.PaymentStatusFailed
	default:
		h.logger.WarnContext(ctx, "unknown event type received",
			slog.String("event_type", ev.EventType),
			slog.String("event_id", ev.EventID),
		)
		return nil
	}

	var data PaymentResultData
	if err := ev.UnmarshalData(&data); err != nil || data.OrderID == "" {
		h.logger.ErrorContext(ctx, "dropping malformed payment event",
			slog.String("event_id", ev.EventID),
			slog.Any("error", err),
		)
		paymentResults.WithLabelValues(string(result), "malformed").Inc()
		return nil
	}

	_, err := h.recorder.RecordPaymentResult(ctx, data.OrderID, result)
	switch {
	case err == nil:
		h.logger.InfoContext(ctx, "payment result recorded",
			slog.String("order_id", data.OrderID),
			slog.String("payment_status", string(result)),
			slog.String("payment_id", data.PaymentID),
		)
		paymentResults.WithLabelValues(string(result), "applied").Inc()
		return nil
	case errors.Is(err, apperrors.ErrNotFound), errors.Is(err, apperrors.ErrInvalidTransition):
		h.logger.WarnContext(ctx, "payment result not applicable",
			slog.String("order_id", data.OrderID),
			slog.String("payment_status", string(result)),
			slog.String("error", err.Error()),
		)
		paymentResults.WithLabelValues(string(result), "skipped").Inc()
		return nil
	default:
		paymentResults.WithLabelValues(string(result), "error").Inc()
		return fmt.Errorf("record payment result for order %s: %w", data.OrderID, err)
	}
}

// ConsumerOptions configures the payment consumers.
type ConsumerOptions struct {
	Brokers     []string
	GroupID     string
	Idempotency pkgkafka.IdempotencyStore
	DLQ         *pkgkafka.DLQProducer
}

// NewPaymentConsumers creates one consumer per payment result topic. Redelivered
// events are skipped through the idempotency store.
func NewPaymentConsumers(opts ConsumerOptions, handler *PaymentHandler, logger *slog.Logger) []*pkgkafka.Consumer {
	handle := pkgkafka.Handler(handler.Handle)
	if opts.Idempotency != nil {
		handle = pkgkafka.IdempotentHandler(opts.Idempotency, handle, logger)
	}

	topics := []string{
		pkgkafka.Topic("payment", "succeeded"),
		pkgkafka.Topic("payment", "failed"),
	}

	consumers := make([]*pkgkafka.Consumer, 0, len(topics))
	for _, topic := range topics {
		cfg := pkgkafka.ConsumerConfig{
			Brokers:  opts.Brokers,
			GroupID:  opts.GroupID,
			Topic:    topic,
			MinBytes: 1,
			MaxBytes: 10e6,
		}
		consumer := pkgkafka.NewConsumer(cfg, handle, logger)
		if opts.DLQ != nil {
			consumer.WithDLQ(opts.DLQ)
		}
		consumers = append(consumers, consumer)
	}
	return consumers
}
