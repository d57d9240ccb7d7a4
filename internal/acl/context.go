package acl

import "context"

type contextKey string

const userIDKey contextKey = "userID"

// UserFromContext extracts the user ID from the context.
// Returns empty string if not present.
func UserFromContext(ctx context.Context) string {
	if v := ctx.Value(userIDKey); v != nil {
		if userID, ok := v.(string); ok {
			return userID
		}
	}

	return ""
}

// WithUser returns a new context carrying userID.
func WithUser(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDKey, userID)
}
