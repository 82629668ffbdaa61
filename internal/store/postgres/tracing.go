package postgres

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/stacklok/contract-promoter/internal/otel"
)

const (
	// StoreTracerName is the name used for the PostgreSQL store tracer
	StoreTracerName = "github.com/stacklok/contract-promoter/store/postgres"
)

// startSpan starts a span for a store operation. Every span carries the
// db.system attribute.
func (s *pgStore) startSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	attrs = append([]attribute.KeyValue{semconv.DBSystemPostgreSQL}, attrs...)
	return otel.StartSpan(ctx, s.tracer, name, trace.WithAttributes(attrs...))
}
