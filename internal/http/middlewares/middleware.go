// Package middlewares contiene los middlewares HTTP del broker.
package middlewares

import (
	"context"
	"net/http"
)

// Middleware es la firma estándar compatible con chi.Use.
type Middleware func(http.Handler) http.Handler

type ctxKey string

const ctxRequestIDKey ctxKey = "request_id"

func setRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, ctxRequestIDKey, requestID)
}

// GetRequestID obtiene el request ID del contexto, o "" si no hay.
func GetRequestID(ctx context.Context) string {
	if v := ctx.Value(ctxRequestIDKey); v != nil {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}
