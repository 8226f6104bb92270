// Package txcontext carries a per-request id through a query's context,
// so logging and cache diagnostics can correlate concurrent task
// evaluations back to the request that issued them.
package txcontext

import "context"

// requestKey is the unexported context key for the request id.
type requestKey struct{}

// WithRequestID returns a new context with the request id stored.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestKey{}, id)
}

// RequestIDFromContext retrieves the request id if present.
// Returns ("", false) if no request id is set.
func RequestIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(requestKey{}).(string)
	return id, ok
}
