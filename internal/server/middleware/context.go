package middleware

import (
	"context"

	"github.com/gosuda/backoffice/internal/session"
)

type contextKey string

const ContextKeySession contextKey = "session"

func WithSession(ctx context.Context, info session.Info) context.Context {
	return context.WithValue(ctx, ContextKeySession, info)
}

func SessionFromContext(ctx context.Context) (session.Info, bool) {
	v, ok := ctx.Value(ContextKeySession).(session.Info)
	return v, ok
}
