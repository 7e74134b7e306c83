package auth

import "context"

type ctxKey struct{}

// WithUserID stores the authenticated admin id on the context.
func WithUserID(ctx context.Context, userID string) context.Context {
	if userID == "" {
		return ctx
	}
	return context.WithValue(ctx, ctxKey{}, userID)
}

// UserIDFromContext returns the authenticated admin id, if any.
func UserIDFromContext(ctx context.Context) (string, bool) {
	if ctx == nil {
		return "", false
	}
	userID, ok := ctx.Value(ctxKey{}).(string)
	return userID, ok && userID != ""
}

// AccessCookieName is the HttpOnly cookie carrying the access token for page
// navigation, where no Authorization header is sent.
const AccessCookieName = "ibrbtv_access"
