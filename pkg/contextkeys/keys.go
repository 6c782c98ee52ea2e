// Package contextkeys provides centralized context key definitions
//
// All context keys used across walletd are defined here so that producers
// and consumers agree on names and value types.
package contextkeys

import "context"

// Key is the type for context keys to prevent collisions
type Key string

const (
	// RequestIDKey contains the request id string.
	// Set by: httputil.RequestIDMiddleware
	RequestIDKey Key = "request_id"

	// ActorIDKey contains the opaque actor id used for ledger attribution.
	// Set by: middleware.ActorMiddleware
	ActorIDKey Key = "actor_id"

	// ActorRoleKey contains the actor's role string.
	// Set by: middleware.ActorMiddleware
	ActorRoleKey Key = "actor_role"

	// LoggerKey contains a request-scoped logrus.FieldLogger.
	// Set by: observability.WithLogger
	LoggerKey Key = "logger"
)

// WithRequestID returns a context carrying requestID.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, RequestIDKey, requestID)
}

// GetRequestID returns the request id, or "" when unset.
func GetRequestID(ctx context.Context) string {
	id, _ := ctx.Value(RequestIDKey).(string)
	return id
}

// WithActor returns a context carrying the actor id and role.
func WithActor(ctx context.Context, actorID, role string) context.Context {
	ctx = context.WithValue(ctx, ActorIDKey, actorID)
	return context.WithValue(ctx, ActorRoleKey, role)
}

// GetActorID returns the actor id, or "" when unset.
func GetActorID(ctx context.Context) string {
	id, _ := ctx.Value(ActorIDKey).(string)
	return id
}

// GetActorRole returns the actor role, or "" when unset.
func GetActorRole(ctx context.Context) string {
	role, _ := ctx.Value(ActorRoleKey).(string)
	return role
}
