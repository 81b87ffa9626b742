// Package appMiddleware carries request-scoped identity between the
// authentication middleware and protected handlers.
package appMiddleware

import (
	"context"
	"errors"
)

type contextKey string

const claimsKey contextKey = "claims"

// ErrNoClaims is returned when a request carries no verified identity.
var ErrNoClaims = errors.New("no claims in context")

// WithClaims returns a copy of ctx carrying claims.
func WithClaims(ctx context.Context, claims any) context.Context {
	return context.WithValue(ctx, claimsKey, claims)
}

// ClaimsFromContext returns the claims stored by WithClaims if they have type T.
func ClaimsFromContext[T any](ctx context.Context) (T, bool) {
	claims, ok := ctx.Value(claimsKey).(T)
	return claims, ok
}

// ClaimsOrError is ClaimsFromContext returning ErrNoClaims instead of a bool.
func ClaimsOrError[T any](ctx context.Context) (T, error) {
	claims, ok := ClaimsFromContext[T](ctx)
	if !ok {
		var zero T
		return zero, ErrNoClaims
	}
	return claims, nil
}
