package auth

import (
	"errors"
	"log/slog"
	"net/http"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	appMiddleware "github.com/FACorreiaa/go-credential-auth/app/middleware"
	"github.com/FACorreiaa/go-credential-auth/app/observability/metrics"
	"github.com/FACorreiaa/go-credential-auth/internal/api"
)

// Authenticate guards protected routes. Requests without a valid bearer
// token are answered with 401 and never reach next; accepted requests carry
// their *Claims in the context.
func Authenticate(logger *slog.Logger, gate *Gate, m *metrics.AppMetrics) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			l := logger.With(slog.String("middleware", "Authenticate"))

			claims, err := gate.Authorize(r.Header.Get("Authorization"))
			if err != nil {
				reason, msg := "invalid", "Invalid or expired token"
				switch {
				case errors.Is(err, ErrMissingToken):
					reason, msg = "missing", "Token is missing"
				case errors.Is(err, ErrExpiredToken):
					reason = "expired"
				}
				record(r, m, reason)
				l.WarnContext(ctx, "Rejected request", slog.String("reason", reason), slog.String("path", r.URL.Path))
				api.ErrorResponse(w, r, http.StatusUnauthorized, msg)
				return
			}

			record(r, m, "accepted")
			ctx = appMiddleware.WithClaims(ctx, claims)
			l.DebugContext(ctx, "Authentication successful", slog.Int64("user_id", claims.UserID))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func record(r *http.Request, m *metrics.AppMetrics, outcome string) {
	if m == nil {
		return
	}
	m.TokenVerificationsTotal.Add(r.Context(), 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}
