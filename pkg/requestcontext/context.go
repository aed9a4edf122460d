// Package requestcontext provides HTTP-independent accessors for
// request-scoped values. Middleware sets them; services and the rate limiter
// read them without importing net/http.
package requestcontext

import (
	"context"
	"time"
)

type (
	requestIDKey   struct{}
	clientKeyKey   struct{}
	requestTimeKey struct{}
)

// RequestID retrieves the request correlation id, or "" if unset.
func RequestID(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDKey{}).(string); ok {
		return id
	}
	return ""
}

// WithRequestID injects a request correlation id.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

// ClientKey retrieves the rate-limit identity for the caller (IP plus client
// class), or "" if unset.
func ClientKey(ctx context.Context) string {
	if key, ok := ctx.Value(clientKeyKey{}).(string); ok {
		return key
	}
	return ""
}

// WithClientKey injects the caller's rate-limit identity.
func WithClientKey(ctx context.Context, key string) context.Context {
	return context.WithValue(ctx, clientKeyKey{}, key)
}

// Now retrieves the request-scoped time, falling back to time.Now for
// non-HTTP contexts (workers, tests that don't care).
func Now(ctx context.Context) time.Time {
	if t, ok := ctx.Value(requestTimeKey{}).(time.Time); ok {
		return t
	}
	return time.Now()
}

// WithTime injects a fixed time. Used by tests and batch workers that need a
// consistent clock.
func WithTime(ctx context.Context, t time.Time) context.Context {
	return context.WithValue(ctx, requestTimeKey{}, t)
}
