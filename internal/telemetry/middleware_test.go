package telemetry

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func TestNewHTTPMetrics(t *testing.T) {
	t.Parallel()

	metrics, err := NewHTTPMetrics(nil)
	require.NoError(t, err)
	assert.Nil(t, metrics)

	mp := sdkmetric.NewMeterProvider()
	defer func() { _ = mp.Shutdown(context.Background()) }()

	metrics, err = NewHTTPMetrics(mp)
	require.NoError(t, err)
	require.NotNil(t, metrics)
	assert.NotNil(t, metrics.requestDuration)
	assert.NotNil(t, metrics.requestsTotal)
	assert.NotNil(t, metrics.activeRequests)
}

func TestHTTPMetrics_Middleware(t *testing.T) {
	t.Parallel()

	t.Run("passes through when metrics is nil", func(t *testing.T) {
		t.Parallel()

		var metrics *HTTPMetrics
		wrapped := metrics.Middleware(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusTeapot)
		}))

		rr := httptest.NewRecorder()
		wrapped.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/x", nil))
		assert.Equal(t, http.StatusTeapot, rr.Code)
	})

	t.Run("labels requests with the route pattern", func(t *testing.T) {
		t.Parallel()

		reader := sdkmetric.NewManualReader()
		mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
		defer func() { _ = mp.Shutdown(context.Background()) }()

		mw, err := MetricsMiddleware(mp)
		require.NoError(t, err)

		r := chi.NewRouter()
		r.Use(mw)
		r.Post("/api/v1/records/{id}/promote", func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusConflict)
		})

		for _, id := range []string{"a", "b"} {
			rr := httptest.NewRecorder()
			r.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/api/v1/records/"+id+"/promote", nil))
			require.Equal(t, http.StatusConflict, rr.Code)
		}

		found := collect(t, reader, HTTPMetricsMeterName)

		counter, ok := found[metricHTTPRequestsTotal].Data.(metricdata.Sum[int64])
		require.True(t, ok)
		require.Len(t, counter.DataPoints, 1)
		dp := counter.DataPoints[0]
		assert.Equal(t, int64(2), dp.Value)

		route, _ := dp.Attributes.Value(attribute.Key("route"))
		assert.Equal(t, "/api/v1/records/{id}/promote", route.AsString())
		status, _ := dp.Attributes.Value(attribute.Key("status_code"))
		assert.Equal(t, "409", status.AsString())

		active, ok := found[metricHTTPActiveRequests].Data.(metricdata.Sum[int64])
		require.True(t, ok)
		require.Len(t, active.DataPoints, 1)
		assert.Equal(t, int64(0), active.DataPoints[0].Value)
	})
}

func TestMetricsMiddleware_NilProvider(t *testing.T) {
	t.Parallel()

	mw, err := MetricsMiddleware(nil)
	require.NoError(t, err)

	rr := httptest.NewRecorder()
	mw(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusAccepted)
	})).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusAccepted, rr.Code)
}

func TestRoutePattern(t *testing.T) {
	t.Parallel()

	req := httptest.NewRequest(http.MethodGet, "/records/1", nil)
	assert.Equal(t, unknownRoute, routePattern(req))

	rctx := chi.NewRouteContext()
	rctx.RoutePatterns = []string{"/records/{id}"}
	req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
	assert.Equal(t, "/records/{id}", routePattern(req))
}
