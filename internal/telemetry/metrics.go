package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	// PromotionMetricsMeterName is the name used for the promotion metrics meter
	PromotionMetricsMeterName = "github.com/stacklok/contract-promoter/promotion"

	metricPromotionsTotal   = "contract_promoter_promotions_total"
	metricPromotionDuration = "contract_promoter_promotion_duration_seconds"
)

// PromotionMetrics holds the OpenTelemetry instruments for draft promotions
type PromotionMetrics struct {
	promotionsTotal   metric.Int64Counter
	promotionDuration metric.Float64Histogram
}

// NewPromotionMetrics creates the promotion instruments on provider.
// If provider is nil, it returns nil (no-op metrics).
func NewPromotionMetrics(provider metric.MeterProvider) (*PromotionMetrics, error) {
	if provider == nil {
		return nil, nil
	}

	meter := provider.Meter(PromotionMetricsMeterName)

	promotionsTotal, err := meter.Int64Counter(
		metricPromotionsTotal,
		metric.WithDescription("Number of draft promotions by outcome"),
		metric.WithUnit("{promotion}"),
	)
	if err != nil {
		return nil, err
	}

	// Promotions that publish an artifact include several registry round trips
	promotionDuration, err := meter.Float64Histogram(
		metricPromotionDuration,
		metric.WithDescription("Duration of draft promotions in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30),
	)
	if err != nil {
		return nil, err
	}

	return &PromotionMetrics{
		promotionsTotal:   promotionsTotal,
		promotionDuration: promotionDuration,
	}, nil
}

// RecordPromotion records one promotion attempt
func (m *PromotionMetrics) RecordPromotion(ctx context.Context, outcome string, duration time.Duration) {
	if m == nil {
		return
	}

	attrs := metric.WithAttributes(attribute.String("outcome", outcome))
	m.promotionsTotal.Add(ctx, 1, attrs)
	m.promotionDuration.Record(ctx, duration.Seconds(), attrs)
}
