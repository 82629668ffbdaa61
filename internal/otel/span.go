// Package otel provides OpenTelemetry instrumentation utilities for the contract promoter.
package otel

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Attribute keys shared by every span of the application.
const (
	AttrRecordID      = attribute.Key("record.id")
	AttrRecordSlug    = attribute.Key("record.slug")
	AttrRecordType    = attribute.Key("record.type")
	AttrRecordVersion = attribute.Key("record.version")
	AttrFinalVersion  = attribute.Key("promotion.final_version")
	AttrRegistryHost  = attribute.Key("registry.host")
	AttrQueryType     = attribute.Key("query.type")
	AttrResultCount   = attribute.Key("result.count")
)

// RecordAttributes describes a record on a span. Empty values are left out.
func RecordAttributes(id, slug, recordType, version string) []attribute.KeyValue {
	attrs := make([]attribute.KeyValue, 0, 4)
	for _, kv := range []attribute.KeyValue{
		AttrRecordID.String(id),
		AttrRecordSlug.String(slug),
		AttrRecordType.String(recordType),
		AttrRecordVersion.String(version),
	} {
		if kv.Value.AsString() != "" {
			attrs = append(attrs, kv)
		}
	}
	return attrs
}

// StartSpan starts a span on tracer. A nil tracer yields a non-recording span
// carrying the parent's span context, so ending it leaves the parent open.
func StartSpan(
	ctx context.Context,
	tracer trace.Tracer,
	name string,
	opts ...trace.SpanStartOption,
) (context.Context, trace.Span) {
	if tracer == nil {
		ctx = trace.ContextWithSpanContext(ctx, trace.SpanContextFromContext(ctx))
		return ctx, trace.SpanFromContext(ctx)
	}
	return tracer.Start(ctx, name, opts...)
}

// RecordError marks span as failed. Nil spans and nil errors are ignored.
// The status description stays generic; error details go to span events.
func RecordError(span trace.Span, err error) {
	if err != nil && span != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "operation failed")
	}
}
