package middleware

import (
	"log/slog"
	"net/http"

	"github.com/cartify/cartify/pkg/logger"
)

// RequestLogger stores a logger enriched with correlation_id, owner_id,
// trace_id and span_id in the request context. Mount it after
// RequestLogging, Tracing and Auth so those fields are already set.
func RequestLogger(base *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			if ownerID := OwnerIDFromContext(ctx); ownerID != "" {
				ctx = logger.WithOwnerID(ctx, ownerID)
			}
			ctx = logger.NewContext(ctx, logger.WithContext(ctx, base))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
