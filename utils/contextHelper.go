package utils

import (
	"context"
)

// ContextKey is the shared type for all context keys in this codebase.
type ContextKey string

func (c ContextKey) String() string { return string(c) }

var (
	ContextKeyCorrelationId = ContextKey("CorrelationId")
	ContextKeyRequestedBy   = ContextKey("RequestedBy")
)

func GetCorrelationIdFromContext(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(ContextKeyCorrelationId).(string)
	return v, ok
}

func SetCorrelationIdInContext(ctx context.Context, correlationId string) context.Context {
	return context.WithValue(ctx, ContextKeyCorrelationId, correlationId)
}

func GetRequestedByFromContext(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(ContextKeyRequestedBy).(string)
	return v, ok
}

func SetRequestedByInContext(ctx context.Context, requestedBy string) context.Context {
	return context.WithValue(ctx, ContextKeyRequestedBy, requestedBy)
}
