package logger

import (
	"context"
	"strings"
)

type ctxKey int

const (
	requestIDKey ctxKey = iota
	operatorIDKey
)

func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey, strings.TrimSpace(requestID))
}

func RequestIDFromContext(ctx context.Context) string {
	v, _ := ctx.Value(requestIDKey).(string)
	return v
}

// WithOperator marks the finance operator acting on behalf of the request.
func WithOperator(ctx context.Context, operatorID string) context.Context {
	return context.WithValue(ctx, operatorIDKey, strings.TrimSpace(operatorID))
}

func OperatorFromContext(ctx context.Context) string {
	v, _ := ctx.Value(operatorIDKey).(string)
	return v
}
