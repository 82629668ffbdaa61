package telemetry

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

func newTestTracerProvider(t *testing.T) (*tracetest.InMemoryExporter, *sdktrace.TracerProvider) {
	t.Helper()
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })
	return exporter, tp
}

func spanAttr(attrs []attribute.KeyValue, key attribute.Key) (attribute.Value, bool) {
	for _, kv := range attrs {
		if kv.Key == key {
			return kv.Value, true
		}
	}
	return attribute.Value{}, false
}

func TestTracingMiddleware_NilProvider(t *testing.T) {
	t.Parallel()

	wrapped := TracingMiddleware(nil)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("X-Custom-Header", "test-value")
		w.WriteHeader(http.StatusCreated)
	}))

	rr := httptest.NewRecorder()
	wrapped.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/create", nil))
	assert.Equal(t, http.StatusCreated, rr.Code)
	assert.Equal(t, "test-value", rr.Header().Get("X-Custom-Header"))
}

func TestTracingMiddleware_StatusCodes(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		statusCode int
		wantStatus codes.Code
		wantDesc   string
	}{
		{name: "2xx is ok", statusCode: http.StatusOK, wantStatus: codes.Ok},
		{name: "4xx is unset", statusCode: http.StatusConflict, wantStatus: codes.Unset},
		{
			name:       "5xx is error",
			statusCode: http.StatusBadGateway,
			wantStatus: codes.Error,
			wantDesc:   http.StatusText(http.StatusBadGateway),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			exporter, tp := newTestTracerProvider(t)
			wrapped := TracingMiddleware(tp)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.statusCode)
			}))

			wrapped.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/test", nil))

			spans := exporter.GetSpans()
			require.Len(t, spans, 1)
			assert.Equal(t, tt.wantStatus, spans[0].Status.Code)
			assert.Equal(t, tt.wantDesc, spans[0].Status.Description)

			status, ok := spanAttr(spans[0].Attributes, semconv.HTTPResponseStatusCodeKey)
			require.True(t, ok)
			assert.Equal(t, int64(tt.statusCode), status.AsInt64())
		})
	}
}

func TestTracingMiddleware_RoutePattern(t *testing.T) {
	t.Parallel()

	exporter, tp := newTestTracerProvider(t)

	r := chi.NewRouter()
	r.Use(TracingMiddleware(tp))
	r.Get("/api/v1/records/{id}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/records/1234", nil)
	req.Header.Set("User-Agent", "contract-promoter-test/1.0")
	r.ServeHTTP(httptest.NewRecorder(), req)

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	assert.Equal(t, "GET /api/v1/records/{id}", spans[0].Name)

	route, ok := spanAttr(spans[0].Attributes, semconv.HTTPRouteKey)
	require.True(t, ok)
	assert.Equal(t, "/api/v1/records/{id}", route.AsString())

	path, ok := spanAttr(spans[0].Attributes, semconv.URLPathKey)
	require.True(t, ok)
	assert.Equal(t, "/api/v1/records/1234", path.AsString())

	ua, ok := spanAttr(spans[0].Attributes, semconv.UserAgentOriginalKey)
	require.True(t, ok)
	assert.Equal(t, "contract-promoter-test/1.0", ua.AsString())
}

func TestTracingMiddleware_UnknownRoute(t *testing.T) {
	t.Parallel()

	exporter, tp := newTestTracerProvider(t)
	wrapped := TracingMiddleware(tp)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	wrapped.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/some/path", nil))

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	assert.Equal(t, "GET unknown_route", spans[0].Name)
}

func TestTracingMiddleware_TraceContextExtraction(t *testing.T) {
	t.Parallel()

	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	exporter, tp := newTestTracerProvider(t)
	wrapped := TracingMiddleware(tp)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	traceID := "0af7651916cd43dd8448eb211c80319c"
	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	req.Header.Set("traceparent", "00-"+traceID+"-b7ad6b7169203331-01")
	wrapped.ServeHTTP(httptest.NewRecorder(), req)

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	assert.Equal(t, traceID, spans[0].SpanContext.TraceID().String())
}

func TestTracingMiddleware_SkipsProbes(t *testing.T) {
	t.Parallel()

	for _, path := range []string{"/health", "/readiness"} {
		t.Run(path, func(t *testing.T) {
			t.Parallel()

			exporter, tp := newTestTracerProvider(t)
			called := false
			wrapped := TracingMiddleware(tp)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				called = true
				w.WriteHeader(http.StatusOK)
			}))

			rr := httptest.NewRecorder()
			wrapped.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, path, nil))

			assert.True(t, called)
			assert.Equal(t, http.StatusOK, rr.Code)
			assert.Empty(t, exporter.GetSpans())
		})
	}
}

func TestTruncateUserAgent(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "curl/8.0", truncateUserAgent("curl/8.0"))
	exact := strings.Repeat("a", MaxUserAgentLength)
	assert.Equal(t, exact, truncateUserAgent(exact))
	assert.Equal(t, exact, truncateUserAgent(exact+"overflow"))
}
