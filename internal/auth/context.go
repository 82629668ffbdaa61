package auth

import "context"

// Caller identifies the authenticated party of a request
type Caller struct {
	// Session is the session token the caller presented. Empty in anonymous mode.
	Session string

	// Actor is the id of the record the session belongs to
	Actor string
}

type callerKey struct{}

// WithCaller returns a copy of ctx carrying c
func WithCaller(ctx context.Context, c Caller) context.Context {
	return context.WithValue(ctx, callerKey{}, c)
}

// CallerFromContext returns the caller stored in ctx, if any
func CallerFromContext(ctx context.Context) (Caller, bool) {
	c, ok := ctx.Value(callerKey{}).(Caller)
	return c, ok
}
