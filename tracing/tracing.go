// Package tracing propagates trace IDs through contexts so logs, executed
// statements and published query log entries can be correlated.
package tracing

import (
	"context"

	"github.com/birdie-ai/arangoql/slog"
	"github.com/google/uuid"
)

// Ensure returns a context that has a trace ID and a logger that logs it as "trace_id".
// If ctx already has a trace ID it is kept, otherwise a new one is generated.
func Ensure(ctx context.Context) (context.Context, string) {
	if traceID, ok := CtxGetTraceID(ctx); ok {
		return ctx, traceID
	}
	traceID := uuid.NewString()
	ctx = CtxWithTraceID(ctx, traceID)
	return ctx, traceID
}

// CtxWithTraceID creates a new [context.Context] with the given trace ID associated with it.
// The logger of the context (see [slog.FromCtx]) is extended with the trace ID.
// Call [CtxGetTraceID] to retrieve the trace ID.
func CtxWithTraceID(ctx context.Context, traceID string) context.Context {
	ctx = context.WithValue(ctx, traceIDKey, traceID)
	log := slog.FromCtx(ctx).With("trace_id", traceID)
	return slog.NewContext(ctx, log)
}

// CtxGetTraceID gets the trace ID associated with this context.
// Return the trace ID and true if there is a trace ID, empty and false otherwise.
func CtxGetTraceID(ctx context.Context) (string, bool) {
	traceID, ok := ctx.Value(traceIDKey).(string)
	if !ok || traceID == "" {
		return "", false
	}
	return traceID, true
}

// key is the type used to store data on contexts.
type key int

const traceIDKey key = iota
