package event

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	breakerState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "event_publisher_circuit_breaker_state",
		Help: "Circuit breaker state of the event publisher (0=closed, 1=half-open, 2=open)",
	}, []string{"name"})

	paymentResults = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "payment_results_consumed_total",
		Help: "Payment result events consumed, by outcome",
	}, []string{"result", "outcome"})
)
