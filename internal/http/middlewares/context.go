package middlewares

import (
	"context"

	"github.com/dropDatabas3/stagegate/internal/domain/repository"
)

type ctxKey string

const (
	ctxUserKey      ctxKey = "user"
	ctxRequestIDKey ctxKey = "request_id"
)

// WithUser inyecta el usuario autenticado en el contexto.
func WithUser(ctx context.Context, u *repository.User) context.Context {
	return context.WithValue(ctx, ctxUserKey, u)
}

func setRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, ctxRequestIDKey, requestID)
}

// GetUser devuelve el usuario que dejó RequireAuth, o nil.
func GetUser(ctx context.Context) *repository.User {
	if u, ok := ctx.Value(ctxUserKey).(*repository.User); ok {
		return u
	}
	return nil
}

// GetUserID devuelve "" si el request no pasó por RequireAuth.
func GetUserID(ctx context.Context) string {
	if u := GetUser(ctx); u != nil {
		return u.ID
	}
	return ""
}

func GetRequestID(ctx context.Context) string {
	if v, ok := ctx.Value(ctxRequestIDKey).(string); ok {
		return v
	}
	return ""
}
