package utils

import (
	"context"

	"github.com/google/uuid"
)

type contextKey string

const contextKeyCorrelationId contextKey = "correlation_id"

func SetCorrelationIdInContext(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, contextKeyCorrelationId, id)
}

func GetCorrelationIdFromContext(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(contextKeyCorrelationId).(string)
	return v, ok && v != ""
}

func CorrelationIdFromContextOrNew(ctx context.Context) string {
	if ctx != nil {
		if v, ok := GetCorrelationIdFromContext(ctx); ok {
			return v
		}
	}
	return uuid.NewString()
}
