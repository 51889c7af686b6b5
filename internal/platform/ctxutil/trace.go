// Package ctxutil threads per-request identifiers through context so log
// lines and error envelopes can be correlated with traces.
package ctxutil

import "context"

type traceDataKey struct{}

// TraceData pairs the caller-visible request ID with the otel trace ID when
// a span is active.
type TraceData struct {
	TraceID   string
	RequestID string
}

func WithTraceData(ctx context.Context, td *TraceData) context.Context {
	return context.WithValue(ctx, traceDataKey{}, td)
}

func GetTraceData(ctx context.Context) *TraceData {
	val := ctx.Value(traceDataKey{})
	if td, ok := val.(*TraceData); ok {
		return td
	}
	return nil
}
