package telemetry

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/metric/noop"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
)

func TestNew(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		opts    []Option
		wantErr string
	}{
		{name: "no config"},
		{name: "disabled", opts: []Option{WithTelemetryConfig(&Config{})}},
		{name: "enabled with tracing and metrics off", opts: []Option{WithTelemetryConfig(&Config{
			Enabled: true,
			Tracing: &TracingConfig{},
			Metrics: &MetricsConfig{},
		})}},
		{name: "invalid sampling", opts: []Option{WithTelemetryConfig(&Config{
			Enabled: true,
			Tracing: &TracingConfig{Enabled: true, Sampling: floatPtr(1.5)},
		})}, wantErr: "invalid telemetry configuration"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			ctx := context.Background()

			tel, err := New(ctx, tt.opts...)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)

			_, ok := tel.TracerProvider().(tracenoop.TracerProvider)
			assert.True(t, ok, "expected no-op tracer provider")
			_, ok = tel.MeterProvider().(noop.MeterProvider)
			assert.True(t, ok, "expected no-op meter provider")
			assert.NotNil(t, tel.Tracer("test"))
			require.NoError(t, tel.Shutdown(ctx))
		})
	}
}

func TestTelemetry_Instruments(t *testing.T) {
	t.Parallel()

	tel, err := New(context.Background())
	require.NoError(t, err)

	metrics, err := tel.PromotionMetrics()
	require.NoError(t, err)
	assert.NotNil(t, metrics)
	metrics.RecordPromotion(context.Background(), "promoted", 0)

	mws, err := tel.HTTPMiddleware()
	require.NoError(t, err)
	require.Len(t, mws, 2)

	var handler http.Handler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	for i := len(mws) - 1; i >= 0; i-- {
		handler = mws[i](handler)
	}
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/version", nil))
	assert.Equal(t, http.StatusNoContent, rr.Code)
}
