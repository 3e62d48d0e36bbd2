package http

import "context"

type contextKey string

const ownerIDContextKey contextKey = "owner_id"

// ContextWithOwnerID returns a derived context carrying the owner resolved from the request path.
func ContextWithOwnerID(ctx context.Context, ownerID string) context.Context {
	return context.WithValue(ctx, ownerIDContextKey, ownerID)
}

// OwnerIDFromContext extracts the owner previously associated with the context.
func OwnerIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(ownerIDContextKey).(string)
	return id, ok && id != ""
}
