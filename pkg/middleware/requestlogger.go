package middleware

import (
	"log/slog"
	"net/http"

	"github.com/sylwiakmieciak/madebyu-sub000/pkg/logger"
)

// RequestLogger stores a logger enriched with correlation_id, user_id,
// trace_id and span_id in the request context for logger.FromContext.
// Mount it after RequestLogging and Tracing; routes behind Auth should mount
// it again so user_id is picked up.
func RequestLogger(base *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			ctx = logger.NewContext(ctx, logger.WithContext(ctx, base))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
