package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

func TestNewTracerProvider(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		opts       []TracerProviderOption
		expectNoOp bool
	}{
		{name: "no config", expectNoOp: true},
		{
			name:       "tracing disabled",
			opts:       []TracerProviderOption{WithTracingConfig(&TracingConfig{})},
			expectNoOp: true,
		},
		{
			name: "tracing enabled",
			opts: []TracerProviderOption{
				WithTracerServiceName("contract-promoter-test"),
				WithTracerServiceVersion("0.0.1"),
				WithTracerEndpoint("localhost:4318"),
				WithTracerInsecure(true),
				WithTracingConfig(&TracingConfig{Enabled: true, Sampling: floatPtr(0.5)}),
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			ctx := context.Background()

			tp, err := NewTracerProvider(ctx, tt.opts...)
			require.NoError(t, err)

			if tt.expectNoOp {
				_, ok := tp.(noop.TracerProvider)
				assert.True(t, ok, "expected no-op tracer provider")
				return
			}
			sdkTP, ok := tp.(*sdktrace.TracerProvider)
			require.True(t, ok, "expected SDK tracer provider")
			require.NoError(t, sdkTP.Shutdown(ctx))
		})
	}
}

func TestTracerProviderOptions(t *testing.T) {
	t.Parallel()

	cfg := &tracerProviderConfig{}
	tc := &TracingConfig{Enabled: true}
	for _, opt := range []TracerProviderOption{
		WithTracerServiceName("svc"),
		WithTracerServiceVersion("v1"),
		WithTracingConfig(tc),
		WithTracerEndpoint("collector:4318"),
		WithTracerInsecure(true),
	} {
		opt(cfg)
	}

	assert.Equal(t, "svc", cfg.serviceName)
	assert.Equal(t, "v1", cfg.serviceVersion)
	assert.Same(t, tc, cfg.tracingConfig)
	assert.Equal(t, "collector:4318", cfg.endpoint)
	assert.True(t, cfg.insecure)
}
