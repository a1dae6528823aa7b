package logger

import (
	"context"

	"baklava-be/internal/auth"

	"go.uber.org/zap"
)

type ctxKey string

const requestIDKey ctxKey = "request_id"

func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey, requestID)
}

func RequestIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

// FromCtx returns the logger enriched with request_id and, once the auth
// middleware ran, the caller's user_id.
func FromCtx(ctx context.Context) *zap.Logger {
	l := L()
	if reqID := RequestIDFrom(ctx); reqID != "" {
		l = l.With(zap.String("request_id", reqID))
	}
	if ac := auth.FromContext(ctx); ac.Authenticated() {
		l = l.With(zap.Uint("user_id", ac.UserID))
	}
	return l
}
