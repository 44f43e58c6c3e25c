package auth

import (
	"context"

	"go.opentelemetry.io/otel/trace"
)

// contextKey is an unexported type used for context keys in this package.
// Using a distinct type prevents collisions with keys from other packages.
type contextKey int

const (
	// userKey stores the authenticated *UserDetails in the context.
	userKey contextKey = iota
)

// ContextWithUser returns a new context with the given user snapshot
// attached. The user can later be retrieved with [UserFromContext].
//
// This is typically called by the HTTP middleware, the WebSocket handshake,
// and the gRPC interceptors after a token authenticates.
func ContextWithUser(ctx context.Context, user *UserDetails) context.Context {
	return context.WithValue(ctx, userKey, user)
}

// UserFromContext retrieves the authenticated user from the context.
// Returns the user and true if present, or nil and false if the request
// carried no valid token. This function never returns a non-nil user with
// false.
//
// Example:
//
//	user, ok := auth.UserFromContext(ctx)
//	if !ok {
//	    return errors.Unauthorized("no authenticated user")
//	}
//	log.Info("request from", "user", user.UserID)
func UserFromContext(ctx context.Context) (*UserDetails, bool) {
	user, ok := ctx.Value(userKey).(*UserDetails)
	return user, ok
}

// MustUserFromContext retrieves the authenticated user from the context,
// panicking if none is present. This should only be used in code paths where
// a user is guaranteed to exist (e.g., behind [RequireAuth]).
func MustUserFromContext(ctx context.Context) *UserDetails {
	user, ok := UserFromContext(ctx)
	if !ok {
		panic("auth: no authenticated user in context; ensure authentication middleware is configured")
	}
	return user
}

// TraceIDFromContext extracts the OpenTelemetry trace ID from the context.
// Returns the trace ID as a hex string and true if a valid trace is active,
// or an empty string and false if no trace is present.
//
// This allows correlating authentication events with distributed traces.
func TraceIDFromContext(ctx context.Context) (string, bool) {
	spanCtx := trace.SpanFromContext(ctx).SpanContext()
	if !spanCtx.HasTraceID() {
		return "", false
	}
	return spanCtx.TraceID().String(), true
}

// SpanIDFromContext extracts the OpenTelemetry span ID from the context.
// Returns the span ID as a hex string and true if a valid span is active,
// or an empty string and false if no span is present.
func SpanIDFromContext(ctx context.Context) (string, bool) {
	spanCtx := trace.SpanFromContext(ctx).SpanContext()
	if !spanCtx.HasTraceID() {
		return "", false
	}
	return spanCtx.SpanID().String(), true
}
