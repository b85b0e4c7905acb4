// Package tracing carries lightweight request-correlation identifiers
// through context.Context. Real span export is an external collaborator
// (OTEL) and out of scope for this module; this package only carries the
// identifiers the logger attaches to every line.
package tracing

import "context"

type ctxKey int

const (
	traceIDKey ctxKey = iota
	operationNameKey
)

// WithTraceID attaches a trace id to ctx.
func WithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, traceIDKey, traceID)
}

// TraceID returns the trace id carried by ctx, if any.
func TraceID(ctx context.Context) (string, bool) {
	if ctx == nil {
		return "", false
	}

	v, ok := ctx.Value(traceIDKey).(string)

	return v, ok
}

// WithOperationName attaches the current pipeline/span operation name to ctx.
func WithOperationName(ctx context.Context, name string) context.Context {
	return context.WithValue(ctx, operationNameKey, name)
}

// OperationName returns the operation name carried by ctx, if any.
func OperationName(ctx context.Context) (string, bool) {
	if ctx == nil {
		return "", false
	}

	v, ok := ctx.Value(operationNameKey).(string)

	return v, ok
}
