package internal

import (
	"context"
	"time"
)

type ctxKey string

const (
	ContextUserKey       ctxKey = "user"
	ContextSessionKeyKey ctxKey = "sessionKey"
)

// CurrentUser is the authenticated caller placed on the request context by
// the auth middleware.
type CurrentUser struct {
	ID      int64
	Email   string
	IsAdmin bool
}

func UserFromContext(ctx context.Context) (*CurrentUser, bool) {
	if ctx == nil {
		return nil, false
	}
	u, ok := ctx.Value(ContextUserKey).(*CurrentUser)
	return u, ok && u != nil
}

func ContextWithUser(ctx context.Context, user *CurrentUser) context.Context {
	return context.WithValue(ctx, ContextUserKey, user)
}

// SessionKeyFromContext returns the session key of the current request, or ""
// when the request was not made with a tracked session.
func SessionKeyFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if key, ok := ctx.Value(ContextSessionKeyKey).(string); ok {
		return key
	}
	return ""
}

func ContextWithSessionKey(ctx context.Context, key string) context.Context {
	return context.WithValue(ctx, ContextSessionKeyKey, key)
}

// WithTimeout returns a context with timeout, defaulting to 5 seconds if duration is zero or negative.
func WithTimeout(ctx context.Context, duration time.Duration) (context.Context, context.CancelFunc) {
	if duration <= 0 {
		duration = 5 * time.Second
	}
	return context.WithTimeout(ctx, duration)
}
