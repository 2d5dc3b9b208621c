package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sylwiakmieciak/madebyu-sub000/pkg/health"
	"github.com/sylwiakmieciak/madebyu-sub000/pkg/middleware"

	"github.com/sylwiakmieciak/madebyu-sub000/internal/service"
)

// Services groups the application services the router exposes.
type Services struct {
	Orders        *service.OrderService
	Moderation    *service.ModerationService
	Comments      *service.CommentService
	Reviews       *service.ReviewService
	Notifications *service.NotificationService
	Actors        ActorLoader
}

// RouterConfig holds the cross-cutting HTTP settings.
type RouterConfig struct {
	ServiceName string
	Validate    middleware.TokenValidator
	// RateLimit, when set, is applied to state-changing API requests.
	RateLimit  func(http.Handler) http.Handler
	CORS       CORSConfig
	PprofCIDRs []string
}

// NewRouter creates a chi router with all marketplace routes registered.
func NewRouter(svc Services, healthHandler *health.Handler, cfg RouterConfig, logger *slog.Logger) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.Recovery(logger))
	r.Use(CORS(cfg.CORS))
	r.Use(chimw.Compress(5))
	r.Use(chimw.Timeout(30 * time.Second))
	r.Use(middleware.RequestLogging(logger))
	r.Use(middleware.PrometheusMetrics(cfg.ServiceName))
	r.Use(middleware.Tracing(cfg.ServiceName))
	r.Use(middleware.RequestLogger(logger))

	// Health check endpoints
	r.Get("/health/live", healthHandler.LivenessHandler())
	r.Get("/health/ready", healthHandler.ReadinessHandler())
	r.Handle("/metrics", promhttp.Handler())

	// Pprof debug endpoints with IP allowlist.
	middleware.RegisterPprof(r, cfg.PprofCIDRs, logger)

	orders := NewOrderHandler(svc.Orders, svc.Reviews, logger)
	moderation := NewModerationHandler(svc.Moderation, logger)
	comments := NewCommentHandler(svc.Comments, logger)
	reviews := NewReviewHandler(svc.Reviews, logger)
	notifications := NewNotificationHandler(svc.Notifications, logger)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(ContentTypeJSON)
		if cfg.RateLimit != nil {
			r.Use(WritesOnly(cfg.RateLimit))
		}

		// Public routes; a valid token still identifies the viewer.
		r.Group(func(r chi.Router) {
			r.Use(middleware.OptionalAuth(cfg.Validate))
			r.Use(LoadActor(svc.Actors, logger))

			r.Get("/comments/product/{id}", comments.ListForProduct)
			r.Get("/reviews/seller/{userId}", reviews.SellerStats)
			r.Get("/reviews/seller/{userId}/list", reviews.ListBySeller)
		})

		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(cfg.Validate))
			r.Use(LoadActor(svc.Actors, logger))

			r.Route("/orders", func(r chi.Router) {
				r.Post("/", orders.CreateOrder)
				r.Get("/my", orders.ListMyPurchases)
				r.Get("/my-purchases", orders.ListMyPurchases)
				r.Get("/sales/my", orders.ListMySales)
				r.Get("/admin", orders.ListAll)
				r.Put("/admin/{id}/status", orders.OverrideStatus)
				r.Get("/{id}", orders.GetOrder)
				r.Put("/{id}/confirm", orders.ConfirmOrder)
				r.Put("/{id}/ship", orders.ShipOrder)
				r.Put("/{id}/confirm-delivery", orders.ConfirmDelivery)
				r.Put("/{id}/cancel", orders.CancelOrder)
				r.Post("/{id}/review", orders.SubmitReview)
				r.Get("/{id}/reviewable-sellers", orders.ReviewableSellers)
			})

			r.Route("/moderation", func(r chi.Router) {
				r.Get("/products", moderation.ListProducts)
				r.Put("/products/{id}/approve", moderation.ApproveProduct)
				r.Put("/products/{id}/reject", moderation.RejectProduct)
				r.Get("/stats", moderation.Stats)
			})

			r.Post("/comments/product/{id}", comments.Submit)
			r.Get("/comments/admin/pending", comments.ListPending)
			r.Put("/comments/admin/{id}/approve", comments.Approve)
			r.Delete("/comments/admin/{id}/reject", comments.Reject)

			r.Route("/notifications", func(r chi.Router) {
				r.Get("/", notifications.List)
				r.Put("/read-all", notifications.MarkAllRead)
				r.Get("/unread-count", notifications.UnreadCount)
				r.Put("/{id}/read", notifications.MarkRead)
			})
		})
	})

	return r
}
