package httpx

import "context"

type ctxKey string

const (
	// CtxKeyUserID holds the authenticated subject so per-user rate limits can
	// key on it without knowing the caller type.
	CtxKeyUserID ctxKey = "user_id"
)

// WithUserID stores the authenticated user id in ctx.
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, CtxKeyUserID, userID)
}

// UserIDFromContext returns the authenticated user id, or "" when the request
// is anonymous.
func UserIDFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(CtxKeyUserID).(string); ok {
		return v
	}
	return ""
}
