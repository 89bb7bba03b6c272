// Package requestctx carries per-request identity through context.
package requestctx

import "context"

// heroIDContextKey is the context key for the acting hero identity.
type heroIDContextKey struct{}

// requestIDContextKey is the context key for the caller request identifier.
type requestIDContextKey struct{}

// WithHeroID stores a hero identifier in context.
func WithHeroID(ctx context.Context, heroID string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, heroIDContextKey{}, heroID)
}

// HeroIDFromContext returns the hero identifier stored in context.
func HeroIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	value, _ := ctx.Value(heroIDContextKey{}).(string)
	return value
}

// WithRequestID stores a request identifier in context.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, requestIDContextKey{}, requestID)
}

// RequestIDFromContext returns the request identifier stored in context.
func RequestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	value, _ := ctx.Value(requestIDContextKey{}).(string)
	return value
}
