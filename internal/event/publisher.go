package event

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sony/gobreaker/v2"

	pkgkafka "github.com/sylwiakmieciak/madebyu-sub000/pkg/kafka"
	"github.com/sylwiakmieciak/madebyu-sub000/pkg/logger"

	"github.com/sylwiakmieciak/madebyu-sub000/internal/domain"
)

// Source identifies messages written by this service.
const Source = "marketplace-service"

// ErrBrokerUnavailable is returned while the breaker is open.
var ErrBrokerUnavailable = errors.New("event broker unavailable")

// EventWriter is the part of pkgkafka.Producer the publisher uses.
type EventWriter interface {
	Publish(ctx context.Context, topic string, event *pkgkafka.Event) error
}

// BreakerConfig tunes the circuit breaker in front of the broker.
type BreakerConfig struct {
	Name         string
	MinRequests  uint32
	FailureRatio float64
	Interval     time.Duration
	Timeout      time.Duration
}

// DefaultBreakerConfig trips after half of at least five publishes fail and
// probes the broker again after thirty seconds.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		Name:         "kafka-publisher",
		MinRequests:  5,
		FailureRatio: 0.5,
		Interval:     time.Minute,
		Timeout:      30 * time.Second,
	}
}

// Publisher writes domain events to Kafka behind a circuit breaker, so an
// unreachable broker costs one fast failure per event instead of a write timeout.
type Publisher struct {
	writer  EventWriter
	breaker *gobreaker.CircuitBreaker[struct{}]
	logger  *slog.Logger
}

// NewPublisher creates a publisher.
func NewPublisher(writer EventWriter, cfg BreakerConfig, log *slog.Logger) *Publisher {
	settings := gobreaker.Settings{
		Name:     cfg.Name,
		Interval: cfg.Interval,
		Timeout:  cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < cfg.MinRequests {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= cfg.FailureRatio
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn("circuit breaker state change",
				slog.String("breaker", name),
				slog.String("from", from.String()),
				slog.String("to", to.String()),
			)
			breakerState.WithLabelValues(name).Set(stateToFloat(to))
		},
	}
	breakerState.WithLabelValues(cfg.Name).Set(0)

	return &Publisher{
		writer:  writer,
		breaker: gobreaker.NewCircuitBreaker[struct{}](settings),
		logger:  log,
	}
}

// Publish sends one domain event to madebyu.<aggregate>.<action>.
func (p *Publisher) Publish(ctx context.Context, e domain.Event) error {
	eventType := e.AggregateType + "." + e.Action
	topic := pkgkafka.Topic(e.AggregateType, e.Action)

	msg, err := pkgkafka.NewEvent(eventType, e.AggregateID, e.AggregateType, Source, e.Payload)
	if err != nil {
		return fmt.Errorf("create %s event: %w", eventType, err)
	}
	if id := logger.CorrelationIDFromContext(ctx); id != "" {
		msg.WithCorrelationID(id)
	}

	_, err = p.breaker.Execute(func() (struct{}, error) {
		return struct{}{}, p.writer.Publish(ctx, topic, msg)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return fmt.Errorf("publish %s: %w", eventType, ErrBrokerUnavailable)
		}
		return fmt.Errorf("publish %s: %w", eventType, err)
	}
	return nil
}

// State reports the breaker state, e.g. for readiness output.
func (p *Publisher) State() string {
	return p.breaker.State().String()
}

func stateToFloat(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}
