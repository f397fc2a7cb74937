package tracing

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Attribute keys recorded by the pipeline.
const (
	Files            = attribute.Key("rag.files")
	Chunks           = attribute.Key("rag.chunks")
	TopK             = attribute.Key("rag.top_k")
	IndexID          = attribute.Key("rag.index_id")
	Model            = attribute.Key("llm.model")
	CompletionTokens = attribute.Key("llm.completion_tokens")
	RequestID        = attribute.Key("http.request_id")
)

// Start opens a span on the global provider.
func Start(ctx context.Context, tracer, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return otel.Tracer(tracer).Start(ctx, name, trace.WithAttributes(attrs...))
}

// StartServer opens a server-kind span.
func StartServer(ctx context.Context, tracer, name string) (context.Context, trace.Span) {
	return otel.Tracer(tracer).Start(ctx, name, trace.WithSpanKind(trace.SpanKindServer))
}

// Annotate sets attributes on the span carried by ctx, if any.
func Annotate(ctx context.Context, attrs ...attribute.KeyValue) {
	trace.SpanFromContext(ctx).SetAttributes(attrs...)
}

// Fail records err on the span carried by ctx and marks it failed.
func Fail(ctx context.Context, err error) {
	if err == nil {
		return
	}
	span := trace.SpanFromContext(ctx)
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

// TraceID returns the hex trace id of ctx, or "" outside a sampled trace.
func TraceID(ctx context.Context) string {
	sc := trace.SpanContextFromContext(ctx)
	if !sc.HasTraceID() {
		return ""
	}
	return sc.TraceID().String()
}
