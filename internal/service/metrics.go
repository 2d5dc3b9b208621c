package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ordersCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "marketplace_orders_created_total",
		Help: "Total number of orders created",
	})

	orderTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "marketplace_order_transitions_total",
		Help: "Order state changes by operation",
	}, []string{"operation"})

	checkoutRejections = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "marketplace_checkout_rejections_total",
		Help: "Order creations refused because a line could not be fulfilled",
	}, []string{"reason"})

	moderationDecisions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "marketplace_moderation_decisions_total",
		Help: "Moderation decisions by entity and outcome",
	}, []string{"entity", "decision"})

	reviewsCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "marketplace_reviews_created_total",
		Help: "Total number of seller reviews submitted",
	})

	notificationsEmitted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "marketplace_notifications_emitted_total",
		Help: "Notifications written, by type",
	}, []string{"type"})

	sideEffectFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "marketplace_side_effect_failures_total",
		Help: "Best-effort side effects that failed after commit",
	}, []string{"stage"})
)
